// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// Options configures a single sandboxed invocation. Options are
// immutable once passed to Run; a sandbox never mutates them and never
// retains them across calls.
type Options struct {
	// Filesystem restricts which paths the task may read, write, or
	// execute. Nil means no filesystem policy.
	Filesystem *FilesystemOptions `cbor:"filesystem,omitempty" json:"filesystem,omitempty"`

	// Resources sets memory and CPU ceilings. Nil means no resource
	// policy.
	Resources *ResourceOptions `cbor:"resources,omitempty" json:"resources,omitempty"`

	// Timeout bounds wall-clock execution. Zero means the sandbox
	// default (30 seconds on the hard path).
	Timeout time.Duration `cbor:"timeout,omitempty" json:"timeoutMs,omitempty"`

	// Network indicates whether the task is expected to make outbound
	// network calls (through the credential proxy). The soft variants
	// record this for observability only; they do not enforce it.
	Network bool `cbor:"network,omitempty" json:"network,omitempty"`
}

// FilesystemOptions lists the paths a task is allowed to touch.
type FilesystemOptions struct {
	ReadPaths  []string `cbor:"read_paths,omitempty" json:"readPaths,omitempty"`
	WritePaths []string `cbor:"write_paths,omitempty" json:"writePaths,omitempty"`
	ExecPaths  []string `cbor:"exec_paths,omitempty" json:"execPaths,omitempty"`
}

// ResourceOptions sets resource ceilings for a task.
type ResourceOptions struct {
	// MaxMemoryMB is the memory ceiling in mebibytes. Zero means
	// unlimited.
	MaxMemoryMB int `cbor:"max_memory_mb,omitempty" json:"maxMemoryMb,omitempty"`

	// MaxCPUPercent is the CPU allowance as a percentage of the
	// invocation timeout. Zero means unlimited. Only meaningful when
	// Timeout is also set.
	MaxCPUPercent int `cbor:"max_cpu_percent,omitempty" json:"maxCpuPercent,omitempty"`
}

// ViolationType classifies a policy violation.
type ViolationType string

const (
	ViolationFilesystem ViolationType = "filesystem"
	ViolationResource   ViolationType = "resource"
	ViolationNetwork    ViolationType = "network"
)

// Violation records one deviation from configured policy. Violations
// are appended in detection order within an invocation and surfaced
// alongside the result — they are audit data, not errors, and do not
// by themselves fail the invocation.
type Violation struct {
	Type        ViolationType `cbor:"type" json:"type"`
	Description string        `cbor:"description" json:"description"`
	Path        string        `cbor:"path,omitempty" json:"path,omitempty"`
	Timestamp   time.Time     `cbor:"timestamp" json:"timestamp"`
}

// Usage reports the resources consumed by one invocation. Always
// populated, including on failure.
type Usage struct {
	// MemoryPeakMB is the peak observed memory in mebibytes. For
	// in-process execution this is Go heap usage; for worker execution
	// it is the child's max RSS.
	MemoryPeakMB float64 `cbor:"memory_peak_mb" json:"memoryPeakMb"`

	// CPUTime is consumed CPU time. In-process execution approximates
	// this with elapsed wall time; worker execution reports true
	// user+system time from the child's rusage.
	CPUTime time.Duration `cbor:"cpu_time" json:"cpuTimeMs"`
}

// ErrorInfo describes a task failure in a transportable form.
type ErrorInfo struct {
	// Kind is a coarse classification: "error" for task failures,
	// "timeout" for forced termination, "exit" for a non-zero script
	// exit.
	Kind string `cbor:"kind" json:"kind"`

	// Message is the error text.
	Message string `cbor:"message" json:"message"`

	// ExitCode is the script's exit code when Kind is "exit".
	ExitCode int `cbor:"exit_code,omitempty" json:"exitCode,omitempty"`
}

// Result is the outcome of one sandboxed invocation. Every field is
// populated on every path: a failed task still reports usage and any
// violations recorded before the failure.
type Result struct {
	// Success is false only when the task itself failed or timed out.
	// Recorded violations never flip Success on the soft path — the
	// enforcement model is fail-open and audit-oriented.
	Success bool `cbor:"success" json:"success"`

	// Value is the task's return value for in-process function tasks.
	// Not transported over the worker protocol.
	Value any `cbor:"-" json:"-"`

	// Output is the captured stdout of a script task.
	Output string `cbor:"output,omitempty" json:"output,omitempty"`

	// Err describes the failure when Success is false.
	Err *ErrorInfo `cbor:"error,omitempty" json:"error,omitempty"`

	// Usage is the resource accounting for this invocation.
	Usage Usage `cbor:"usage" json:"resourceUsage"`

	// Violations lists policy deviations in detection order. Never
	// nil in a returned Result.
	Violations []Violation `cbor:"violations" json:"violations"`
}

// AddViolation appends a violation stamped with now.
func (r *Result) AddViolation(kind ViolationType, description, path string, now time.Time) {
	r.Violations = append(r.Violations, Violation{
		Type:        kind,
		Description: description,
		Path:        path,
		Timestamp:   now,
	})
}
