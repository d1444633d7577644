// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/schema"
)

// defaultSampleInterval is how often the memory sampler reads heap
// usage while a task runs.
const defaultSampleInterval = 100 * time.Millisecond

// Soft validates policy in userspace without kernel enforcement:
// suspicious-path checks before the task, heap sampling against the
// memory ceiling during it, a CPU-time check after it. Violations are
// recorded and logged, never fatal — only a task error or timeout
// fails the invocation. This fail-open asymmetry is deliberate; the
// soft variant is an auditor, not a guard.
type Soft struct {
	caps           *Capabilities
	clk            clock.Clock
	sampleInterval time.Duration
	logger         *slog.Logger
}

// SoftConfig configures the soft variant. Zero values select a
// detected capability set, the real clock, the default sample
// interval, and a discard logger.
type SoftConfig struct {
	Capabilities   *Capabilities
	Clock          clock.Clock
	SampleInterval time.Duration
	Logger         *slog.Logger
}

// NewSoft returns the soft variant.
func NewSoft(config SoftConfig) *Soft {
	caps := config.Capabilities
	if caps == nil {
		caps = Detect()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	interval := config.SampleInterval
	if interval <= 0 {
		interval = defaultSampleInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Soft{caps: caps, clk: clk, sampleInterval: interval, logger: logger}
}

func (s *Soft) Kind() Kind                  { return KindSoft }
func (s *Soft) Capabilities() *Capabilities { return s.caps }
func (s *Soft) Available() bool             { return true }

// Run executes the task with userspace validation. Violations are
// appended in detection order: path checks before execution, resource
// samples during execution, the CPU-time check afterwards.
func (s *Soft) Run(ctx context.Context, task Task, opts Options) Result {
	if task.Empty() {
		return failure("error", "empty task", Usage{}, nil)
	}

	violations := checkPaths(opts.Filesystem, s.clk.Now())
	if violations == nil {
		violations = []Violation{}
	}
	for _, violation := range violations {
		s.logger.Warn("filesystem policy violation",
			"path", violation.Path,
			"description", violation.Description,
		)
	}

	// Peak memory is tracked from before the task starts so a task
	// that fails mid-flight still reports real usage.
	heapBefore := heapMB()
	var ceiling int
	if opts.Resources != nil {
		ceiling = opts.Resources.MaxMemoryMB
	}
	sampler := newMemorySampler(s.clk, s.sampleInterval, ceiling, heapBefore)
	sampler.start()

	started := s.clk.Now()
	value, output, scriptUsage, taskErr := s.execute(ctx, task, opts)
	elapsed := s.clk.Now().Sub(started)

	// The sampler is torn down on every path; a dangling ticker would
	// keep sampling a task that no longer exists.
	sampler.stop()
	violations = append(violations, sampler.violations()...)

	usage := Usage{
		MemoryPeakMB: max(sampler.peak(), heapMB()),
		CPUTime:      elapsed,
	}
	if scriptUsage != nil {
		// Script tasks report the child's own accounting instead of
		// the host heap.
		usage = *scriptUsage
	}

	if taskErr != nil && taskErr.Kind == "timeout" {
		usage.CPUTime = opts.Timeout
		violations = append(violations, Violation{
			Type:        schema.ViolationResource,
			Description: fmt.Sprintf("execution timed out after %v", opts.Timeout),
			Timestamp:   s.clk.Now(),
		})
	} else if cpuViolation := checkCPU(usage.CPUTime, opts, s.clk.Now()); cpuViolation != nil {
		violations = append(violations, *cpuViolation)
		s.logger.Warn("resource policy violation", "description", cpuViolation.Description)
	}

	result := Result{
		Success:    taskErr == nil,
		Value:      value,
		Output:     output,
		Err:        taskErr,
		Usage:      usage,
		Violations: violations,
	}
	return result
}

// execute runs the task body, honoring the invocation timeout. Script
// tasks also return the child's resource usage.
func (s *Soft) execute(ctx context.Context, task Task, opts Options) (value any, output string, scriptUsage *Usage, taskErr *ErrorInfo) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if task.Func != nil {
		return s.callWithDeadline(ctx, task.Func, opts.Timeout)
	}

	outcome := runScript(ctx, task.Script)
	return nil, outcome.output, &outcome.usage, outcome.err
}

// funcOutcome carries a task function's return across the goroutine
// boundary used for timeout supervision.
type funcOutcome struct {
	value any
	err   error
}

// callWithDeadline runs fn, abandoning it when the timeout fires.
// There is no way to force-kill a goroutine; an overrunning function
// task keeps running in the background while the invocation reports a
// timeout failure. Callers needing a hard kill must use script tasks,
// which run in a killable child process.
func (s *Soft) callWithDeadline(ctx context.Context, fn func(context.Context) (any, error), timeout time.Duration) (any, string, *Usage, *ErrorInfo) {
	if timeout <= 0 {
		value, err := callFunc(ctx, fn)
		if err != nil {
			return nil, "", nil, &ErrorInfo{Kind: "error", Message: err.Error()}
		}
		return value, "", nil, nil
	}

	done := make(chan funcOutcome, 1)
	go func() {
		value, err := callFunc(ctx, fn)
		done <- funcOutcome{value, err}
	}()

	select {
	case outcome := <-done:
		if outcome.err != nil {
			return nil, "", nil, &ErrorInfo{Kind: "error", Message: outcome.err.Error()}
		}
		return outcome.value, "", nil, nil
	case <-s.clk.After(timeout):
		s.logger.Warn("task abandoned after timeout", "timeout", timeout)
		return nil, "", nil, &ErrorInfo{Kind: "timeout", Message: fmt.Sprintf("task did not complete within %v", timeout)}
	}
}

// checkCPU flags CPU time above the configured allowance. The
// allowance is MaxCPUPercent of the invocation timeout, so both must
// be configured for the check to apply.
func checkCPU(cpuTime time.Duration, opts Options, now time.Time) *Violation {
	if opts.Resources == nil || opts.Resources.MaxCPUPercent <= 0 || opts.Timeout <= 0 {
		return nil
	}
	allowed := opts.Timeout * time.Duration(opts.Resources.MaxCPUPercent) / 100
	if cpuTime <= allowed {
		return nil
	}
	return &Violation{
		Type:        schema.ViolationResource,
		Description: fmt.Sprintf("CPU time %v exceeded allowance %v (%d%% of %v)", cpuTime, allowed, opts.Resources.MaxCPUPercent, opts.Timeout),
		Timestamp:   now,
	}
}

// heapMB returns the current Go heap usage in mebibytes.
func heapMB() float64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.HeapAlloc) / (1 << 20)
}
