// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// warden-sandbox runs scripts under the configured sandbox and
// reports host capabilities.
//
// Usage:
//
//	warden-sandbox run [flags] [script-file]
//	warden-sandbox capabilities [--json]
//	warden-sandbox status [flags]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/warden-foundation/warden/lib/process"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("WARDEN_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "run":
		err = runCmd(args, logger)
	case "capabilities":
		err = capabilitiesCmd(args)
	case "status":
		err = statusCmd(args, logger)
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if code, ok := isExitError(err); ok {
			os.Exit(code)
		}
		process.Fatal(err)
	}
}

func printUsage() {
	fmt.Print(`warden-sandbox - run scripts under the configured sandbox

USAGE
    warden-sandbox <command> [flags]

COMMANDS
    run           Run a script in the sandbox
    capabilities  Report detected isolation capabilities
    status        Report sandbox subsystem status
    help          Show this help

EXAMPLES
    # Run an inline script under the strongest available isolation
    warden-sandbox run -c 'make test'

    # Run a script file with an explicit policy
    warden-sandbox run --options policy.jsonc build.sh

    # Inspect what the host supports
    warden-sandbox capabilities --json
`)
}

// exitError carries a script's exit code to the process boundary.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("script exited with code %d", e.code)
}

func isExitError(err error) (int, bool) {
	if exit, ok := err.(*exitError); ok {
		return exit.code, true
	}
	return 0, false
}
