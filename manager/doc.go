// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package manager selects and owns the process's sandbox and
// credential proxy.
//
// [Manager] is the composition root's single entry point into the
// sandbox subsystem: it resolves the configured isolation technology
// against detected host capabilities, memoizes one [sandbox.Sandbox]
// for the process, and owns the lifecycle of at most one
// [proxy.Server] at a time. Misconfiguration never fails a caller —
// an unknown or unsupported technology downgrades to the noop variant
// with a logged warning.
package manager
