// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox provides isolated execution of caller-supplied tasks.
//
// A Sandbox runs a Task — an in-process function or a small shell
// script body — under a configurable policy of filesystem paths,
// resource ceilings, and a timeout, and always returns a fully
// populated Result: value or error, resource usage, and any policy
// violations observed along the way.
//
// Four variants implement the same contract:
//
//   - Noop runs the task directly with zero validation (sandboxing
//     disabled by configuration).
//   - Soft validates configuration in userspace: suspicious-path
//     checks before the task runs, periodic heap sampling against the
//     memory ceiling while it runs, and a CPU-time check afterwards.
//     Violations are recorded, never enforced — the model is
//     fail-open and audit-oriented.
//   - Hard (Linux) delegates script tasks to a separate warden-worker
//     process over a framed CBOR pipe protocol, giving true process
//     isolation plus a best-effort kernel filesystem restriction
//     inside the worker. Any worker failure falls back transparently
//     to the soft path.
//   - PlatformExec (Darwin) wraps script tasks in the system
//     sandbox-exec facility.
//
// Callers obtain a variant from the manager package rather than
// constructing one directly.
package sandbox
