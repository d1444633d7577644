// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNoopFuncTask(t *testing.T) {
	noop := NewNoop(nil)

	result := noop.Run(context.Background(), Task{
		Func: func(context.Context) (any, error) { return 42, nil },
	}, Options{})

	if !result.Success {
		t.Fatalf("Run failed: %+v", result.Err)
	}
	if result.Value != 42 {
		t.Errorf("Value = %v, want 42", result.Value)
	}
	if result.Violations == nil {
		t.Error("Violations is nil, want empty slice")
	}
	if len(result.Violations) != 0 {
		t.Errorf("noop recorded violations: %+v", result.Violations)
	}
}

func TestNoopFuncTaskError(t *testing.T) {
	noop := NewNoop(nil)

	result := noop.Run(context.Background(), Task{
		Func: func(context.Context) (any, error) { return nil, errors.New("bad input") },
	}, Options{})

	if result.Success {
		t.Fatal("Run reported success for a failing task")
	}
	if result.Err == nil || result.Err.Message != "bad input" {
		t.Errorf("Err = %+v, want message %q", result.Err, "bad input")
	}
}

func TestNoopFuncTaskPanic(t *testing.T) {
	noop := NewNoop(nil)

	result := noop.Run(context.Background(), Task{
		Func: func(context.Context) (any, error) { panic("boom") },
	}, Options{})

	if result.Success {
		t.Fatal("Run reported success for a panicking task")
	}
	if result.Err == nil || !strings.Contains(result.Err.Message, "boom") {
		t.Errorf("Err = %+v, want panic message", result.Err)
	}
}

func TestNoopScriptTask(t *testing.T) {
	noop := NewNoop(nil)

	result := noop.Run(context.Background(), Task{Script: "printf hello"}, Options{})

	if !result.Success {
		t.Fatalf("Run failed: %+v", result.Err)
	}
	if result.Output != "hello" {
		t.Errorf("Output = %q, want %q", result.Output, "hello")
	}
}

func TestNoopScriptTaskExitCode(t *testing.T) {
	noop := NewNoop(nil)

	result := noop.Run(context.Background(), Task{Script: "exit 3"}, Options{})

	if result.Success {
		t.Fatal("Run reported success for exit 3")
	}
	if result.Err == nil || result.Err.Kind != "exit" || result.Err.ExitCode != 3 {
		t.Errorf("Err = %+v, want exit with code 3", result.Err)
	}
}

func TestNoopEmptyTask(t *testing.T) {
	noop := NewNoop(nil)

	result := noop.Run(context.Background(), Task{}, Options{})

	if result.Success {
		t.Fatal("Run accepted an empty task")
	}
	if result.Violations == nil {
		t.Error("Violations is nil, want empty slice")
	}
}
