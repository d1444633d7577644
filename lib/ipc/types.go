// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "github.com/warden-foundation/warden/lib/schema"

// Message type tags. These are protocol constants — changing them
// breaks parent/worker compatibility.
const (
	// TypeExec is the single request a parent sends to a worker.
	TypeExec = "exec"

	// TypeResult is a successful protocol exchange: the worker ran the
	// task (which may itself have failed) and reports a full Result.
	TypeResult = "result"

	// TypeError is a worker-internal failure: the worker could not run
	// the task at all (bad frame, unreadable options). Task failures
	// are NOT errors — they come back as TypeResult with
	// Result.Success false.
	TypeError = "error"
)

// ExecMessage asks a worker to execute one task. A worker processes
// exactly one ExecMessage in its lifetime; the parent never reuses a
// worker for a second task.
type ExecMessage struct {
	// Type is always TypeExec.
	Type string `cbor:"type"`

	// Script is the serialized task body, executed by the worker with
	// /bin/sh -c.
	Script string `cbor:"script"`

	// Options carries the invocation policy. Nil means no policy.
	Options *schema.Options `cbor:"options,omitempty"`

	// EnforceHard asks the worker to attempt kernel-level filesystem
	// restriction before running the task. When the kernel lacks
	// support the worker records the downgrade and proceeds with the
	// userspace path checks only.
	EnforceHard bool `cbor:"enforce_hard,omitempty"`
}

// ResultMessage is the single reply a worker sends for an
// ExecMessage. Exactly one of Result or Message is populated,
// discriminated by Type. Messages with an unrecognized Type are
// ignored by both sides.
type ResultMessage struct {
	// Type is TypeResult or TypeError.
	Type string `cbor:"type"`

	// Result is the fully-populated execution result (Type ==
	// TypeResult).
	Result *schema.Result `cbor:"result,omitempty"`

	// Message is the worker-internal error text (Type == TypeError).
	Message string `cbor:"message,omitempty"`
}
