// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/warden-foundation/warden/manager"
	"github.com/warden-foundation/warden/sandbox"
)

// capabilitiesCmd reports detected isolation capabilities.
func capabilitiesCmd(args []string) error {
	flags := pflag.NewFlagSet("capabilities", pflag.ContinueOnError)
	asJSON := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return err
	}

	caps := sandbox.Detect()
	if *asJSON {
		return printJSON(caps)
	}

	fmt.Printf("platform:                %s\n", caps.Platform)
	if caps.KernelVersion != "" {
		fmt.Printf("kernel:                  %s\n", caps.KernelVersion)
	}
	fmt.Printf("hard fs restriction:     %v\n", caps.HardFilesystemRestriction)
	fmt.Printf("syscall filter:          %v\n", caps.SyscallFilter)
	fmt.Printf("user namespaces:         %v\n", caps.Namespaces)
	fmt.Printf("resource limits:         %v\n", caps.ResourceLimits)
	if caps.WorkerBinary != "" {
		fmt.Printf("worker binary:           %s\n", caps.WorkerBinary)
		fmt.Printf("worker hash:             %s\n", caps.WorkerHash)
	} else {
		fmt.Printf("worker binary:           (not found)\n")
	}
	if reason := caps.SkipReason(); reason != "" {
		fmt.Printf("hard isolation:          unavailable (%s)\n", reason)
	} else {
		fmt.Printf("hard isolation:          available\n")
	}
	return nil
}

// statusCmd reports the resolved subsystem status for the current
// configuration: JSON when piped, a readable table on a terminal.
func statusCmd(args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
	configPath := flags.String("config", "", "configuration file (or WARDEN_CONFIG)")
	asJSON := flags.Bool("json", false, "force JSON output")
	if err := flags.Parse(args); err != nil {
		return err
	}

	managerConfig, err := loadManagerConfig(*configPath, logger)
	if err != nil {
		return err
	}

	m := manager.New(managerConfig)
	defer m.Close()
	status := m.Status()

	if *asJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
		return printJSON(status)
	}

	fmt.Printf("enabled:     %v\n", status.Enabled)
	fmt.Printf("technology:  %s\n", status.Technology)
	fmt.Printf("sandbox:     %s\n", status.SandboxKind)
	if status.ProxyURL != "" {
		fmt.Printf("proxy:       %s\n", status.ProxyURL)
	} else {
		fmt.Printf("proxy:       (not running)\n")
	}
	if reason := status.Capabilities.SkipReason(); reason != "" {
		fmt.Printf("note:        %s\n", reason)
	}
	return nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
