// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
)

// Noop executes tasks directly with zero validation. Selected when
// sandboxing is disabled by configuration.
type Noop struct {
	caps *Capabilities
}

// NewNoop returns the noop variant.
func NewNoop(caps *Capabilities) *Noop {
	if caps == nil {
		caps = Detect()
	}
	return &Noop{caps: caps}
}

func (n *Noop) Kind() Kind                  { return KindNoop }
func (n *Noop) Capabilities() *Capabilities { return n.caps }
func (n *Noop) Available() bool             { return true }

// Run executes the task with no policy checks. The result shape still
// matches the contract: usage populated, violations empty but non-nil.
func (n *Noop) Run(ctx context.Context, task Task, opts Options) Result {
	if task.Empty() {
		return failure("error", "empty task", Usage{}, nil)
	}

	if task.Func != nil {
		value, err := callFunc(ctx, task.Func)
		result := Result{Success: err == nil, Value: value, Violations: []Violation{}}
		if err != nil {
			result.Err = &ErrorInfo{Kind: "error", Message: err.Error()}
		}
		return result
	}

	outcome := runScript(ctx, task.Script)
	return Result{
		Success:    outcome.err == nil,
		Output:     outcome.output,
		Err:        outcome.err,
		Usage:      outcome.usage,
		Violations: []Violation{},
	}
}

// callFunc invokes a task function, converting a panic into an error.
// A sandboxed task that panics is a failed task, not a failed sandbox.
func callFunc(ctx context.Context, fn func(context.Context) (any, error)) (value any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("task panicked: %v", recovered)
		}
	}()
	return fn(ctx)
}

var _ Sandbox = (*Noop)(nil)
