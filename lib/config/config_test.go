// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadExplicitPath(t *testing.T) {
	path := writeConfig(t, `
sandbox:
  enabled: true
  technology: hard
  allowed_read_paths: [/data]
  max_memory_mb: 256
  timeout_seconds: 10
proxy:
  rules_path: /etc/warden/rules.yaml
  allowed_hosts: [api.example.com]
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !config.Sandbox.Enabled || config.Sandbox.Technology != "hard" {
		t.Errorf("Sandbox = %+v", config.Sandbox)
	}
	if config.Sandbox.MaxMemoryMB != 256 || config.Sandbox.TimeoutSeconds != 10 {
		t.Errorf("limits = %+v", config.Sandbox)
	}
	if config.Proxy.RulesPath != "/etc/warden/rules.yaml" {
		t.Errorf("Proxy = %+v", config.Proxy)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, "sandbox:\n  enabled: true\n")
	t.Setenv("WARDEN_CONFIG", path)

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load via WARDEN_CONFIG: %v", err)
	}
	if !config.Sandbox.Enabled {
		t.Error("Sandbox.Enabled = false, want true")
	}
}

func TestLoadExplicitWinsOverEnvironment(t *testing.T) {
	envPath := writeConfig(t, "sandbox:\n  technology: none\n")
	flagPath := writeConfig(t, "sandbox:\n  technology: filter\n")
	t.Setenv("WARDEN_CONFIG", envPath)

	config, err := Load(flagPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.Sandbox.Technology != "filter" {
		t.Errorf("Technology = %q, want the flag path's value", config.Sandbox.Technology)
	}
}

func TestLoadNoPath(t *testing.T) {
	t.Setenv("WARDEN_CONFIG", "")
	if _, err := Load(""); err == nil {
		t.Error("Load with no path succeeded, want error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"empty", "", true},
		{"bad technology", "sandbox:\n  technology: bubblewrap\n", false},
		{"negative memory", "sandbox:\n  max_memory_mb: -1\n", false},
		{"cpu over 100", "sandbox:\n  max_cpu_percent: 150\n", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.body))
			if got := err == nil; got != test.ok {
				t.Errorf("Load: err = %v, want ok=%v", err, test.ok)
			}
		})
	}
}
