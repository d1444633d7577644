// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/ipc"
	"github.com/warden-foundation/warden/lib/schema"
)

// DefaultTimeout bounds a hard-path invocation when the caller sets
// none.
const DefaultTimeout = 30 * time.Second

// ErrWorkerUnavailable reports that the warden-worker artifact could
// not be resolved. Exposed for callers that want to distinguish this
// downgrade cause in their own logs.
var ErrWorkerUnavailable = errors.New("sandbox: warden-worker binary unavailable")

// Hard delegates script tasks to a separate warden-worker process,
// exchanging one exec frame and one result frame over the child's
// stdin/stdout. True isolation comes from the process boundary plus
// the worker's best-effort kernel filesystem restriction.
//
// Every worker failure mode degrades to the soft variant for that
// call, transparently to the caller: the result shape is identical.
// Each fallback trigger is distinct — missing artifact, spawn failure,
// request write failure, reply read failure, worker exit without a
// reply — so logs name the actual problem rather than a catch-all.
// A timeout does not fall back: the worker is killed and the call
// reports a timeout failure.
type Hard struct {
	caps        *Capabilities
	soft        *Soft
	clk         clock.Clock
	logger      *slog.Logger
	enforceHard bool
}

// HardConfig configures the hard variant. Zero values select detected
// capabilities, a fresh soft variant for fallback, the real clock, and
// a discard logger.
type HardConfig struct {
	Capabilities *Capabilities
	Fallback     *Soft
	Clock        clock.Clock
	Logger       *slog.Logger

	// EnforceHard asks the worker to apply kernel filesystem
	// restriction even when detection reports it unsupported. The flag
	// only widens: restriction is always requested when the kernel
	// supports it, so false does not suppress it. The worker's
	// restriction step is best-effort either way; the process boundary
	// is the real guarantee.
	EnforceHard bool
}

// NewHard returns the hard variant.
func NewHard(config HardConfig) *Hard {
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
	return &Hard{
		caps:        caps,
		soft:        fallback,
		clk:         clk,
		logger:      logger,
		enforceHard: config.EnforceHard || caps.HardFilesystemRestriction,
	}
}

func (h *Hard) Kind() Kind                  { return KindHard }
func (h *Hard) Capabilities() *Capabilities { return h.caps }

// Available reports whether the worker artifact and kernel support are
// both present.
func (h *Hard) Available() bool { return h.caps.CanRunHard() }

// workerReply carries the reader goroutine's outcome: a decoded reply
// or the read error that ended the stream.
type workerReply struct {
	message ipc.ResultMessage
	err     error
}

// Run executes the task in a worker process. Function tasks cannot
// cross the process boundary and run on the soft path instead.
func (h *Hard) Run(ctx context.Context, task Task, opts Options) Result {
	if task.Empty() {
		return failure("error", "empty task", Usage{}, nil)
	}
	if task.Script == "" {
		h.logger.Debug("function task cannot be serialized, using soft path")
		return h.soft.Run(ctx, task, opts)
	}

	workerPath := h.caps.WorkerBinary
	if workerPath == "" {
		h.logger.Warn("hard isolation downgraded", "reason", ErrWorkerUnavailable)
		return h.soft.Run(ctx, task, opts)
	}

	cmd := exec.Command(workerPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.logger.Warn("hard isolation downgraded", "reason", "worker stdin pipe", "error", err)
		return h.soft.Run(ctx, task, opts)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.logger.Warn("hard isolation downgraded", "reason", "worker stdout pipe", "error", err)
		return h.soft.Run(ctx, task, opts)
	}

	if err := cmd.Start(); err != nil {
		h.logger.Warn("hard isolation downgraded", "reason", "worker spawn failed", "error", err)
		return h.soft.Run(ctx, task, opts)
	}

	request := ipc.ExecMessage{
		Type:        ipc.TypeExec,
		Script:      task.Script,
		Options:     &opts,
		EnforceHard: h.enforceHard,
	}
	if err := ipc.NewFrameWriter(stdin).WriteMessage(request); err != nil {
		h.logger.Warn("hard isolation downgraded", "reason", "worker request write failed", "error", err)
		h.kill(cmd)
		cmd.Wait()
		return h.soft.Run(ctx, task, opts)
	}
	stdin.Close()

	// One reply per worker. The goroutine ends when a recognized
	// reply arrives or the pipe closes (worker exit or kill), so no
	// listener outlives the call.
	replyCh := make(chan workerReply, 1)
	go func() {
		replyCh <- readReply(stdout)
	}()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	select {
	case reply := <-replyCh:
		return h.finish(ctx, cmd, task, opts, reply)

	case <-h.clk.After(timeout):
		h.kill(cmd)
		cmd.Wait()
		h.logger.Warn("worker killed after timeout", "timeout", timeout)
		result := failure("timeout", fmt.Sprintf("execution timed out after %v", timeout), Usage{CPUTime: timeout}, nil)
		result.AddViolation(schema.ViolationResource, fmt.Sprintf("execution timed out after %v", timeout), "", h.clk.Now())
		return result

	case <-ctx.Done():
		h.kill(cmd)
		cmd.Wait()
		return failure("error", fmt.Sprintf("invocation canceled: %v", ctx.Err()), Usage{}, nil)
	}
}

// finish handles a reader outcome on the non-timeout path.
func (h *Hard) finish(ctx context.Context, cmd *exec.Cmd, task Task, opts Options, reply workerReply) Result {
	waitErr := cmd.Wait()

	if reply.err != nil {
		// Covers both a broken reply stream and a worker that exited
		// (zero or not) without replying.
		h.logger.Warn("hard isolation downgraded", "reason", "worker reply unavailable", "error", reply.err, "wait", waitErr)
		return h.soft.Run(ctx, task, opts)
	}

	switch reply.message.Type {
	case ipc.TypeResult:
		result := reply.message.Result
		if result == nil {
			h.logger.Warn("hard isolation downgraded", "reason", "worker sent result frame without a result")
			return h.soft.Run(ctx, task, opts)
		}
		if result.Violations == nil {
			result.Violations = []Violation{}
		}
		return *result
	case ipc.TypeError:
		// The worker accepted the task but could not run it. Not
		// retried on the soft path: the task may have started and
		// produced side effects.
		return failure("error", reply.message.Message, Usage{}, nil)
	default:
		h.logger.Warn("hard isolation downgraded", "reason", "worker reply had unknown type", "type", reply.message.Type)
		return h.soft.Run(ctx, task, opts)
	}
}

// readReply reads frames until a recognized reply appears, skipping
// unknown message types per the protocol.
func readReply(r io.Reader) workerReply {
	reader := ipc.NewFrameReader(r)
	for {
		var message ipc.ResultMessage
		if err := reader.ReadMessage(&message); err != nil {
			return workerReply{err: err}
		}
		if message.Type == ipc.TypeResult || message.Type == ipc.TypeError {
			return workerReply{message: message}
		}
	}
}

// kill terminates the worker's whole process group so a forking task
// cannot survive its worker.
func (h *Hard) kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

var _ Sandbox = (*Hard)(nil)
