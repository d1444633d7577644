// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/schema"
)

// PlatformExec wraps tasks in the host's own sandboxing facility
// instead of the warden-worker protocol. The only implementation today
// is Darwin's sandbox-exec with a generated deny-default profile. Like
// the hard variant it degrades to the soft path when the facility or a
// serializable task body is missing.
type PlatformExec struct {
	caps   *Capabilities
	soft   *Soft
	clk    clock.Clock
	logger *slog.Logger
}

// PlatformExecConfig configures the platform variant. Zero values
// select detected capabilities, a fresh soft variant for fallback,
// the real clock, and a discard logger.
type PlatformExecConfig struct {
	Capabilities *Capabilities
	Fallback     *Soft
	Clock        clock.Clock
	Logger       *slog.Logger
}

// NewPlatformExec returns the platform variant.
func NewPlatformExec(config PlatformExecConfig) *PlatformExec {
	caps := config.Capabilities
	if caps == nil {
		caps = Detect()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	fallback := config.Fallback
	if fallback == nil {
		fallback = NewSoft(SoftConfig{Capabilities: caps, Clock: clk, Logger: logger})
	}
	return &PlatformExec{caps: caps, soft: fallback, clk: clk, logger: logger}
}

func (p *PlatformExec) Kind() Kind                  { return KindPlatformExec }
func (p *PlatformExec) Capabilities() *Capabilities { return p.caps }

// Available reports whether the host facility is present.
func (p *PlatformExec) Available() bool {
	return p.caps.Platform == PlatformDarwin && p.caps.HardFilesystemRestriction
}

// Run executes the task under the host sandbox facility. Function
// tasks and hosts without the facility use the soft path.
func (p *PlatformExec) Run(ctx context.Context, task Task, opts Options) Result {
	if task.Empty() {
		return failure("error", "empty task", Usage{}, nil)
	}
	if task.Script == "" {
		p.logger.Debug("function task cannot be wrapped, using soft path")
		return p.soft.Run(ctx, task, opts)
	}
	if !p.Available() {
		p.logger.Warn("platform isolation downgraded", "reason", "host sandbox facility unavailable")
		return p.soft.Run(ctx, task, opts)
	}

	violations := checkPaths(opts.Filesystem, p.clk.Now())
	if violations == nil {
		violations = []Violation{}
	}

	timeout := opts.Timeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	profile := sandboxProfile(opts.Filesystem, opts.Network)
	outcome := runCommand(ctx, "sandbox-exec", "-p", profile, "/bin/sh", "-c", task.Script)

	usage := outcome.usage
	if outcome.err != nil && outcome.err.Kind == "timeout" {
		usage.CPUTime = timeout
		violations = append(violations, Violation{
			Type:        schema.ViolationResource,
			Description: fmt.Sprintf("execution timed out after %v", timeout),
			Timestamp:   p.clk.Now(),
		})
	}

	return Result{
		Success:    outcome.err == nil,
		Output:     outcome.output,
		Err:        outcome.err,
		Usage:      usage,
		Violations: violations,
	}
}

// sandboxProfile renders a deny-default sandbox-exec policy from the
// filesystem options. Reads of shared system prefixes stay allowed so
// the shell itself can start.
func sandboxProfile(filesystem *FilesystemOptions, network bool) string {
	var profile strings.Builder
	profile.WriteString("(version 1)\n(deny default)\n")
	profile.WriteString("(allow process-exec)\n(allow process-fork)\n")
	profile.WriteString("(allow file-read* (subpath \"/usr\") (subpath \"/bin\") (subpath \"/sbin\") (subpath \"/System\") (subpath \"/Library\") (subpath \"/dev\") (subpath \"/private/etc\"))\n")
	if network {
		profile.WriteString("(allow network*)\n")
	}
	if filesystem != nil {
		for _, path := range filesystem.ReadPaths {
			fmt.Fprintf(&profile, "(allow file-read* (subpath %q))\n", path)
		}
		for _, path := range filesystem.WritePaths {
			fmt.Fprintf(&profile, "(allow file-write* file-read* (subpath %q))\n", path)
		}
		for _, path := range filesystem.ExecPaths {
			fmt.Fprintf(&profile, "(allow process-exec file-read* (subpath %q))\n", path)
		}
	}
	return profile.String()
}

var _ Sandbox = (*PlatformExec)(nil)
