// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/warden-foundation/warden/lib/config"
	"github.com/warden-foundation/warden/manager"
	"github.com/warden-foundation/warden/sandbox"
)

// runCmd executes a script under the configured sandbox and prints
// the result as JSON.
func runCmd(args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configPath := flags.String("config", "", "configuration file (or WARDEN_CONFIG)")
	technology := flags.String("technology", "", "override the configured isolation technology")
	command := flags.StringP("command", "c", "", "inline script body")
	optionsPath := flags.String("options", "", "JSONC execution policy file")
	timeout := flags.Duration("timeout", 0, "execution timeout (overrides the policy file)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	script, err := resolveScript(*command, flags.Args())
	if err != nil {
		return err
	}

	managerConfig, err := loadManagerConfig(*configPath, logger)
	if err != nil {
		return err
	}
	if *technology != "" {
		managerConfig.Technology = manager.Technology(*technology)
	}

	m := manager.New(managerConfig)
	defer m.Close()

	opts := m.DefaultOptions()
	if *optionsPath != "" {
		if err := applyOptionsFile(*optionsPath, &opts); err != nil {
			return err
		}
	}
	if *timeout > 0 {
		opts.Timeout = *timeout
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := m.Sandbox().Run(ctx, sandbox.Task{Script: script}, opts)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if !result.Success {
		if result.Err != nil && result.Err.ExitCode != 0 {
			return &exitError{code: result.Err.ExitCode}
		}
		return &exitError{code: 1}
	}
	return nil
}

// resolveScript picks the script body: inline -c wins, otherwise a
// single script-file argument.
func resolveScript(inline string, positional []string) (string, error) {
	if inline != "" {
		if len(positional) != 0 {
			return "", fmt.Errorf("-c and a script file are mutually exclusive")
		}
		return inline, nil
	}
	if len(positional) != 1 {
		return "", fmt.Errorf("expected a script file argument or -c")
	}
	data, err := os.ReadFile(positional[0])
	if err != nil {
		return "", fmt.Errorf("reading script file: %w", err)
	}
	return string(data), nil
}

// loadManagerConfig maps the config file onto the manager's
// configuration. Without a file (no flag, no WARDEN_CONFIG) the
// sandbox runs enabled with auto technology and no policy.
func loadManagerConfig(path string, logger *slog.Logger) (manager.Config, error) {
	if path == "" && os.Getenv("WARDEN_CONFIG") == "" {
		return manager.Config{Enabled: true, Logger: logger}, nil
	}
	loaded, err := config.Load(path)
	if err != nil {
		return manager.Config{}, err
	}
	if loaded.Sandbox.WorkerBinary != "" {
		os.Setenv("WARDEN_WORKER_BIN", loaded.Sandbox.WorkerBinary)
	}
	return manager.Config{
		Enabled:           loaded.Sandbox.Enabled,
		Technology:        manager.Technology(loaded.Sandbox.Technology),
		AllowedReadPaths:  loaded.Sandbox.AllowedReadPaths,
		AllowedWritePaths: loaded.Sandbox.AllowedWritePaths,
		MaxMemoryMB:       loaded.Sandbox.MaxMemoryMB,
		MaxCPUPercent:     loaded.Sandbox.MaxCPUPercent,
		MaxFileSizeMB:     loaded.Sandbox.MaxFileSizeMB,
		TimeoutSeconds:    loaded.Sandbox.TimeoutSeconds,
		NetworkAllowed:    loaded.Sandbox.NetworkAllowed,
		Logger:            logger,
	}, nil
}

// policyFile is the JSONC shape of an --options file. Field names
// match the Result/Options JSON surface; timeouts are milliseconds.
type policyFile struct {
	Filesystem *sandbox.FilesystemOptions `json:"filesystem"`
	Resources  *sandbox.ResourceOptions   `json:"resources"`
	TimeoutMs  int64                      `json:"timeoutMs"`
	Network    *bool                      `json:"network"`
}

// applyOptionsFile overlays a JSONC policy file onto opts. Only fields
// present in the file change.
func applyOptionsFile(path string, opts *sandbox.Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading options file: %w", err)
	}

	var policy policyFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &policy); err != nil {
		return fmt.Errorf("parsing options file %s: %w", path, err)
	}

	if policy.Filesystem != nil {
		opts.Filesystem = policy.Filesystem
	}
	if policy.Resources != nil {
		opts.Resources = policy.Resources
	}
	if policy.TimeoutMs > 0 {
		opts.Timeout = time.Duration(policy.TimeoutMs) * time.Millisecond
	}
	if policy.Network != nil {
		opts.Network = *policy.Network
	}
	return nil
}
