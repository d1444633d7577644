// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Warden commands.
//
// Configuration is loaded from a single YAML file specified by:
//   - the WARDEN_CONFIG environment variable, or
//   - a --config flag passed to the command.
//
// There are no fallbacks or automatic discovery. This keeps the
// effective configuration deterministic and auditable.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for Warden commands.
type Config struct {
	// Sandbox configures the execution sandbox.
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Proxy configures the credential proxy.
	Proxy ProxyConfig `yaml:"proxy"`
}

// SandboxConfig configures sandbox selection and the default
// execution policy.
type SandboxConfig struct {
	// Enabled gates the whole subsystem.
	Enabled bool `yaml:"enabled"`

	// Technology selects the isolation strategy: auto, hard, filter,
	// or none. Empty means auto.
	Technology string `yaml:"technology"`

	// AllowedReadPaths and AllowedWritePaths seed the default
	// filesystem policy.
	AllowedReadPaths  []string `yaml:"allowed_read_paths"`
	AllowedWritePaths []string `yaml:"allowed_write_paths"`

	// Resource ceilings for the default policy.
	MaxMemoryMB   int `yaml:"max_memory_mb"`
	MaxCPUPercent int `yaml:"max_cpu_percent"`
	MaxFileSizeMB int `yaml:"max_file_size_mb"`

	// TimeoutSeconds bounds each execution. Zero keeps per-variant
	// defaults.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// NetworkAllowed permits direct egress from sandboxed tasks.
	NetworkAllowed bool `yaml:"network_allowed"`

	// WorkerBinary overrides warden-worker resolution. Equivalent to
	// the WARDEN_WORKER_BIN environment variable.
	WorkerBinary string `yaml:"worker_binary"`
}

// ProxyConfig configures the credential proxy command.
type ProxyConfig struct {
	// RulesPath points at the YAML credential rules file.
	RulesPath string `yaml:"rules_path"`

	// AllowedHosts supplements the rules file's allowlist.
	AllowedHosts []string `yaml:"allowed_hosts"`

	// BindAddress overrides the default ephemeral loopback bind.
	BindAddress string `yaml:"bind_address"`
}

// validTechnologies are the accepted sandbox.technology values.
var validTechnologies = map[string]bool{
	"": true, "auto": true, "hard": true, "filter": true, "none": true,
}

// Load reads the configuration file. The explicit path (from a
// --config flag) wins over WARDEN_CONFIG. An empty resolved path is an
// error: there is no default location.
func Load(explicitPath string) (*Config, error) {
	path := explicitPath
	if path == "" {
		path = os.Getenv("WARDEN_CONFIG")
	}
	if path == "" {
		return nil, fmt.Errorf("no configuration file: set WARDEN_CONFIG or pass --config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return &config, nil
}

// Validate checks field-level constraints.
func (c *Config) Validate() error {
	if !validTechnologies[c.Sandbox.Technology] {
		return fmt.Errorf("unknown sandbox technology %q (supported: auto, hard, filter, none)", c.Sandbox.Technology)
	}
	for name, value := range map[string]int{
		"max_memory_mb":    c.Sandbox.MaxMemoryMB,
		"max_cpu_percent":  c.Sandbox.MaxCPUPercent,
		"max_file_size_mb": c.Sandbox.MaxFileSizeMB,
		"timeout_seconds":  c.Sandbox.TimeoutSeconds,
	} {
		if value < 0 {
			return fmt.Errorf("sandbox.%s must not be negative", name)
		}
	}
	if c.Sandbox.MaxCPUPercent > 100 {
		return fmt.Errorf("sandbox.max_cpu_percent must be at most 100")
	}
	return nil
}
