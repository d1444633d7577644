// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/warden-foundation/warden/lib/ipc"
)

// ServeWorker implements the worker side of the execution protocol:
// read frames until an exec request arrives, run the script, and write
// exactly one reply frame. It returns after the reply is written or
// when the request stream ends, so a worker process handles one task
// and exits.
//
// Frames with an unrecognized type are skipped. A clean end of stream
// before any exec request returns nil.
//
// cmd/warden-worker calls this with the process's stdin and stdout;
// tests call it directly over in-memory pipes.
func ServeWorker(r io.Reader, w io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	reader := ipc.NewFrameReader(r)
	writer := ipc.NewFrameWriter(w)

	for {
		var request ipc.ExecMessage
		if err := reader.ReadMessage(&request); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading exec request: %w", err)
		}
		if request.Type != ipc.TypeExec {
			logger.Debug("skipping frame with unexpected type", "type", request.Type)
			continue
		}
		return writer.WriteMessage(handleExec(request, logger))
	}
}

// handleExec runs one exec request and builds the reply.
func handleExec(request ipc.ExecMessage, logger *slog.Logger) ipc.ResultMessage {
	if request.Options == nil {
		return ipc.ResultMessage{Type: ipc.TypeError, Message: "exec request carried no options"}
	}
	if request.Script == "" {
		return ipc.ResultMessage{Type: ipc.TypeError, Message: "exec request carried no script"}
	}

	// WARDEN_WORKER_HARD_CHECK forces the kernel restriction path even
	// when the parent did not request it, for debugging restriction
	// failures in isolation.
	if request.EnforceHard || os.Getenv("WARDEN_WORKER_HARD_CHECK") != "" {
		if err := restrictProcess(); err != nil {
			// Restriction failure is reported, not fatal: the parent
			// already confined us to a separate process, and policy
			// enforcement inside the task still applies.
			logger.Warn("kernel restriction unavailable", "error", err)
		}
	}

	soft := NewSoft(SoftConfig{Logger: logger})
	result := soft.Run(context.Background(), Task{Script: request.Script}, *request.Options)
	return ipc.ResultMessage{Type: ipc.TypeResult, Result: &result}
}
