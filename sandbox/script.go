// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
)

// scriptOutcome is the raw result of running a script body, before a
// variant folds it into a Result.
type scriptOutcome struct {
	output string
	usage  Usage
	err    *ErrorInfo
}

// runScript executes a script body with /bin/sh -c in its own process
// group, captures stdout, and accounts the child's resources from its
// rusage. Cancel of ctx kills the whole process group so a script
// cannot outlive its invocation by forking.
func runScript(ctx context.Context, script string) scriptOutcome {
	return runCommand(ctx, "/bin/sh", "-c", script)
}

// runCommand is runScript with an explicit argv, for variants that
// wrap the shell in a supervisor like sandbox-exec.
func runCommand(ctx context.Context, name string, args ...string) scriptOutcome {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative PID signals the group. The shell may already be
		// gone; ESRCH here is fine.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	outcome := scriptOutcome{output: stdout.String()}
	if state := cmd.ProcessState; state != nil {
		outcome.usage.CPUTime = state.UserTime() + state.SystemTime()
		if rusage, ok := state.SysUsage().(*syscall.Rusage); ok {
			outcome.usage.MemoryPeakMB = maxrssMB(rusage.Maxrss)
		}
	}

	if runErr == nil {
		return outcome
	}

	message := strings.TrimSpace(stderr.String())
	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(ctx.Err(), context.DeadlineExceeded):
		if message == "" {
			message = "script killed"
		}
		outcome.err = &ErrorInfo{Kind: "timeout", Message: message}
	case errors.As(runErr, &exitErr):
		if message == "" {
			message = fmt.Sprintf("script exited with code %d", exitErr.ExitCode())
		}
		outcome.err = &ErrorInfo{Kind: "exit", Message: message, ExitCode: exitErr.ExitCode()}
	default:
		outcome.err = &ErrorInfo{Kind: "error", Message: runErr.Error()}
	}
	return outcome
}

// maxrssMB converts a Maxrss reading to mebibytes. Linux reports
// kibibytes, Darwin reports bytes.
func maxrssMB(maxrss int64) float64 {
	if runtime.GOOS == "darwin" {
		return float64(maxrss) / (1024 * 1024)
	}
	return float64(maxrss) / 1024
}
