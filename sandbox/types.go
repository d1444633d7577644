// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"

	"github.com/warden-foundation/warden/lib/schema"
)

// Aliases into lib/schema so callers of this package work with
// sandbox.Options and friends without importing the schema package.
// The types live in schema because the worker protocol (lib/ipc)
// shares them and must not import this package.
type (
	Options           = schema.Options
	FilesystemOptions = schema.FilesystemOptions
	ResourceOptions   = schema.ResourceOptions
	Result            = schema.Result
	Violation         = schema.Violation
	ViolationType     = schema.ViolationType
	Usage             = schema.Usage
	ErrorInfo         = schema.ErrorInfo
)

// Task is the unit of work a sandbox executes: either an in-process
// function reference or a small serialized script body. At least one
// field must be set.
//
// The hard variant can only isolate Script tasks — a function value
// cannot cross a process boundary — so a Func-only task on the hard
// path is executed with the soft in-process checks instead.
type Task struct {
	// Func is an in-process function. Preferred by the soft and noop
	// variants when both fields are set.
	Func func(context.Context) (any, error)

	// Script is a shell script body, executed with /bin/sh -c.
	Script string
}

// Empty reports whether the task carries no work.
func (t Task) Empty() bool {
	return t.Func == nil && t.Script == ""
}

// Kind identifies a sandbox variant. The variants share a contract,
// not state, so they are dispatched as tagged implementations of the
// Sandbox interface.
type Kind string

const (
	KindNoop         Kind = "noop"
	KindSoft         Kind = "soft"
	KindHard         Kind = "hard"
	KindPlatformExec Kind = "platform-exec"
)

// Sandbox executes tasks under a policy. Implementations are created
// once and reused across invocations; per-call state lives entirely in
// the Options and Result values.
//
// Run never returns an unstructured failure: task errors, timeouts,
// and worker-protocol problems all surface inside the Result.
type Sandbox interface {
	// Run executes one task. The returned Result always has Usage
	// populated and a non-nil Violations slice, on success and
	// failure alike.
	Run(ctx context.Context, task Task, opts Options) Result

	// Kind identifies the variant.
	Kind() Kind

	// Capabilities returns the detected host capabilities.
	Capabilities() *Capabilities

	// Available reports whether this variant can actually isolate on
	// the current host.
	Available() bool
}

// failure builds a Result for a task that never produced a value.
func failure(kind, message string, usage Usage, violations []Violation) Result {
	if violations == nil {
		violations = []Violation{}
	}
	return Result{
		Success:    false,
		Err:        &ErrorInfo{Kind: kind, Message: message},
		Usage:      usage,
		Violations: violations,
	}
}
