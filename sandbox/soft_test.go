// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/schema"
)

func newTestSoft(fake *clock.Fake) *Soft {
	return NewSoft(SoftConfig{
		Capabilities: &Capabilities{Platform: PlatformLinux},
		Clock:        fake,
	})
}

// advanceUntil drives a fake clock forward in steps until a result
// arrives, bounded by a real-time deadline. The loop absorbs the
// scheduling gap between the test advancing time and the code under
// test registering its timer.
func advanceUntil(t *testing.T, fake *clock.Fake, step time.Duration, ch <-chan Result) Result {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case result := <-ch:
			return result
		case <-deadline:
			t.Fatal("timed out waiting for result")
		default:
			fake.Advance(step)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSoftViolationsDoNotFailExecution(t *testing.T) {
	soft := newTestSoft(clock.NewFake(time.Unix(1700000000, 0)))

	result := soft.Run(context.Background(), Task{Script: "printf ok"}, Options{
		Filesystem: &FilesystemOptions{ReadPaths: []string{"/data/../etc"}},
	})

	if !result.Success {
		t.Fatalf("violation flipped success: %+v", result.Err)
	}
	if result.Output != "ok" {
		t.Errorf("Output = %q, want %q", result.Output, "ok")
	}
	if len(result.Violations) != 1 || result.Violations[0].Type != schema.ViolationFilesystem {
		t.Errorf("Violations = %+v, want one filesystem violation", result.Violations)
	}
}

func TestSoftFuncTimeout(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	soft := newTestSoft(fake)
	timeout := 50 * time.Millisecond

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- soft.Run(context.Background(), Task{
			Func: func(ctx context.Context) (any, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}, Options{Timeout: timeout})
	}()

	result := advanceUntil(t, fake, timeout, resultCh)

	if result.Success {
		t.Fatal("timed-out task reported success")
	}
	if result.Err == nil || result.Err.Kind != "timeout" {
		t.Fatalf("Err = %+v, want timeout", result.Err)
	}
	if result.Usage.CPUTime != timeout {
		t.Errorf("Usage.CPUTime = %v, want the full timeout %v", result.Usage.CPUTime, timeout)
	}
	var resource int
	for _, violation := range result.Violations {
		if violation.Type == schema.ViolationResource {
			resource++
			if !strings.Contains(violation.Description, "timed out") {
				t.Errorf("violation description = %q, want a timeout mention", violation.Description)
			}
		}
	}
	if resource != 1 {
		t.Errorf("got %d resource violations, want 1: %+v", resource, result.Violations)
	}
}

func TestSoftCPUOverrunIsFailOpen(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	soft := newTestSoft(fake)

	// The task consumes 37s of fake time against a 1% allowance of a
	// one-hour timeout (36s).
	result := soft.Run(context.Background(), Task{
		Func: func(context.Context) (any, error) {
			fake.Advance(37 * time.Second)
			return "done", nil
		},
	}, Options{
		Timeout:   time.Hour,
		Resources: &ResourceOptions{MaxCPUPercent: 1},
	})

	if !result.Success {
		t.Fatalf("CPU violation flipped success: %+v", result.Err)
	}
	if result.Value != "done" {
		t.Errorf("Value = %v, want %q", result.Value, "done")
	}
	var resource int
	for _, violation := range result.Violations {
		if violation.Type == schema.ViolationResource {
			resource++
		}
	}
	if resource != 1 {
		t.Errorf("got %d resource violations, want 1: %+v", resource, result.Violations)
	}
}

func TestSoftViolationOrdering(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	soft := newTestSoft(fake)

	result := soft.Run(context.Background(), Task{
		Func: func(context.Context) (any, error) {
			fake.Advance(37 * time.Second)
			return nil, nil
		},
	}, Options{
		Timeout:    time.Hour,
		Filesystem: &FilesystemOptions{WritePaths: []string{"../escape"}},
		Resources:  &ResourceOptions{MaxCPUPercent: 1},
	})

	if len(result.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(result.Violations), result.Violations)
	}
	if result.Violations[0].Type != schema.ViolationFilesystem {
		t.Errorf("first violation type = %q, want filesystem", result.Violations[0].Type)
	}
	if result.Violations[1].Type != schema.ViolationResource {
		t.Errorf("second violation type = %q, want resource", result.Violations[1].Type)
	}
}

func TestSoftScriptTimeoutKillsProcess(t *testing.T) {
	soft := NewSoft(SoftConfig{Capabilities: &Capabilities{Platform: PlatformLinux}})

	started := time.Now()
	result := soft.Run(context.Background(), Task{Script: "sleep 30"}, Options{
		Timeout: 100 * time.Millisecond,
	})
	elapsed := time.Since(started)

	if elapsed > 5*time.Second {
		t.Fatalf("timed-out script held the invocation for %v", elapsed)
	}
	if result.Success {
		t.Fatal("timed-out script reported success")
	}
	if result.Err == nil || result.Err.Kind != "timeout" {
		t.Fatalf("Err = %+v, want timeout", result.Err)
	}
	if result.Usage.CPUTime != 100*time.Millisecond {
		t.Errorf("Usage.CPUTime = %v, want the full timeout", result.Usage.CPUTime)
	}
}

func TestSoftScriptChildAccounting(t *testing.T) {
	soft := NewSoft(SoftConfig{Capabilities: &Capabilities{Platform: PlatformLinux}})

	result := soft.Run(context.Background(), Task{Script: "printf done"}, Options{})

	if !result.Success {
		t.Fatalf("Run failed: %+v", result.Err)
	}
	if result.Output != "done" {
		t.Errorf("Output = %q, want %q", result.Output, "done")
	}
	if result.Usage.MemoryPeakMB <= 0 {
		t.Errorf("Usage.MemoryPeakMB = %v, want child maxrss > 0", result.Usage.MemoryPeakMB)
	}
}

func TestSoftFuncWithoutTimeout(t *testing.T) {
	soft := newTestSoft(clock.NewFake(time.Unix(1700000000, 0)))

	result := soft.Run(context.Background(), Task{
		Func: func(context.Context) (any, error) { return "inline", nil },
	}, Options{})

	if !result.Success || result.Value != "inline" {
		t.Fatalf("Run = %+v, want inline success", result)
	}
	if result.Usage.MemoryPeakMB <= 0 {
		t.Errorf("Usage.MemoryPeakMB = %v, want heap usage > 0", result.Usage.MemoryPeakMB)
	}
}

func TestCheckCPU(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name    string
		cpu     time.Duration
		opts    Options
		violate bool
	}{
		{"no resource options", time.Hour, Options{Timeout: time.Minute}, false},
		{"no percent", time.Hour, Options{Timeout: time.Minute, Resources: &ResourceOptions{}}, false},
		{"no timeout", time.Hour, Options{Resources: &ResourceOptions{MaxCPUPercent: 50}}, false},
		{"within allowance", 20 * time.Second, Options{Timeout: time.Minute, Resources: &ResourceOptions{MaxCPUPercent: 50}}, false},
		{"at allowance", 30 * time.Second, Options{Timeout: time.Minute, Resources: &ResourceOptions{MaxCPUPercent: 50}}, false},
		{"over allowance", 31 * time.Second, Options{Timeout: time.Minute, Resources: &ResourceOptions{MaxCPUPercent: 50}}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			violation := checkCPU(test.cpu, test.opts, now)
			if got := violation != nil; got != test.violate {
				t.Errorf("checkCPU(%v) violation = %v, want %v", test.cpu, got, test.violate)
			}
		})
	}
}
