// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// warden-proxy runs a standalone credential proxy from a YAML rules
// file. It prints the bound URL on startup and serves until
// interrupted.
//
// Usage:
//
//	warden-proxy --rules rules.yaml [--allow host]... [--bind 127.0.0.1:0]
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/warden-foundation/warden/lib/process"
	"github.com/warden-foundation/warden/proxy"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("warden-proxy", pflag.ContinueOnError)
	rulesPath := flags.String("rules", "", "YAML credential rules file")
	allow := flags.StringArray("allow", nil, "additional allowed host (repeatable)")
	bind := flags.String("bind", "", "bind address (default 127.0.0.1:0)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if os.Getenv("WARDEN_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	var allowedHosts []string
	var rules []*proxy.CredentialRule
	if *rulesPath != "" {
		var err error
		allowedHosts, rules, err = proxy.LoadRules(*rulesPath)
		if err != nil {
			return err
		}
	}
	allowedHosts = append(allowedHosts, *allow...)

	if len(allowedHosts) == 0 && len(rules) == 0 {
		return fmt.Errorf("no allowed hosts and no credential rules: every request would be denied (pass --rules or --allow)")
	}

	server := proxy.NewServer(proxy.ServerConfig{
		BindAddress:  *bind,
		Rules:        rules,
		AllowedHosts: allowedHosts,
		Logger:       logger,
	})
	if err := server.Start(); err != nil {
		return err
	}

	// Scripted callers parse this line to discover the ephemeral port.
	fmt.Println(server.URL())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	received := <-signals
	logger.Info("shutting down", "signal", received.String())

	return server.Stop()
}
