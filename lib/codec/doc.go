// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec centralizes CBOR encoding for Warden. All wire
// formats (the worker execution protocol in particular) go through
// this package so encoder configuration lives in exactly one place.
package codec
