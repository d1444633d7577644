// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the worker execution protocol: the CBOR message
// types exchanged between a hard sandbox and its warden-worker child
// process, and the length-delimited frame codec that carries them over
// the worker's stdin/stdout pipes. Both sandbox (parent side) and
// cmd/warden-worker (child side) import this package so the wire
// contract is defined once.
package ipc
