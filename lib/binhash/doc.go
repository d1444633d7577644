// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes content digests of executable artifacts.
// The hard sandbox records the digest of the warden-worker binary it
// resolved so operators can tell from a status report exactly which
// worker build is executing tasks.
package binhash
