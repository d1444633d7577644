// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// warden-worker is the hard-isolation execution process. It is
// spawned per task by the hard sandbox variant, receives one exec
// frame on stdin, runs the task, writes one result frame to stdout,
// and exits. It is never run by hand.
package main

import (
	"log/slog"
	"os"

	"github.com/warden-foundation/warden/lib/process"
	"github.com/warden-foundation/warden/sandbox"
)

func main() {
	logLevel := slog.LevelWarn
	if os.Getenv("WARDEN_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	// Stdout carries protocol frames; all logging goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if err := sandbox.ServeWorker(os.Stdin, os.Stdout, logger); err != nil {
		process.Fatal(err)
	}
}
