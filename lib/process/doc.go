// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds small process-lifecycle helpers shared by the
// warden binaries.
package process
