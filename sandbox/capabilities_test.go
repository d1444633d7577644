// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKernelAtLeast(t *testing.T) {
	tests := []struct {
		release string
		major   int
		minor   int
		want    bool
	}{
		{"6.8.0-45-generic", 5, 13, true},
		{"5.13.0", 5, 13, true},
		{"5.13-rc2", 5, 13, true},
		{"5.12.19", 5, 13, false},
		{"4.19.0", 5, 13, false},
		{"10.0", 5, 13, true},
		{"5", 5, 13, false},
		{"", 5, 13, false},
		{"not-a-kernel", 5, 13, false},
		{"x.y.z", 5, 13, false},
	}
	for _, test := range tests {
		if got := kernelAtLeast(test.release, test.major, test.minor); got != test.want {
			t.Errorf("kernelAtLeast(%q, %d, %d) = %v, want %v",
				test.release, test.major, test.minor, got, test.want)
		}
	}
}

func TestWorkerPathOverride(t *testing.T) {
	dir := t.TempDir()

	worker := filepath.Join(dir, "fake-worker")
	if err := os.WriteFile(worker, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("writing fake worker: %v", err)
	}
	t.Setenv("WARDEN_WORKER_BIN", worker)

	path, err := WorkerPath()
	if err != nil {
		t.Fatalf("WorkerPath with override: %v", err)
	}
	if path != worker {
		t.Errorf("WorkerPath = %q, want %q", path, worker)
	}
}

func TestWorkerPathOverrideNotExecutable(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "not-executable")
	if err := os.WriteFile(plain, []byte("data"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	t.Setenv("WARDEN_WORKER_BIN", plain)

	if _, err := WorkerPath(); err == nil {
		t.Error("WorkerPath accepted a non-executable override")
	}

	t.Setenv("WARDEN_WORKER_BIN", filepath.Join(dir, "missing"))
	if _, err := WorkerPath(); err == nil {
		t.Error("WorkerPath accepted a missing override")
	}

	t.Setenv("WARDEN_WORKER_BIN", dir)
	if _, err := WorkerPath(); err == nil {
		t.Error("WorkerPath accepted a directory override")
	}
}

func TestSkipReason(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		can  bool
	}{
		{
			name: "ready",
			caps: Capabilities{
				Platform:                  PlatformLinux,
				HardFilesystemRestriction: true,
				WorkerBinary:              "/opt/warden/warden-worker",
			},
			can: true,
		},
		{
			name: "wrong platform",
			caps: Capabilities{Platform: PlatformDarwin, HardFilesystemRestriction: true},
			can:  false,
		},
		{
			name: "no kernel support",
			caps: Capabilities{Platform: PlatformLinux, WorkerBinary: "/opt/warden/warden-worker"},
			can:  false,
		},
		{
			name: "no worker binary",
			caps: Capabilities{Platform: PlatformLinux, HardFilesystemRestriction: true},
			can:  false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			reason := test.caps.SkipReason()
			if got := reason == ""; got != test.can {
				t.Errorf("SkipReason() = %q, want empty=%v", reason, test.can)
			}
			if got := test.caps.CanRunHard(); got != test.can {
				t.Errorf("CanRunHard() = %v, want %v", got, test.can)
			}
		})
	}
}

func TestDetectIsCached(t *testing.T) {
	first := Detect()
	second := Detect()
	if first != second {
		t.Error("Detect returned different values across calls")
	}
	if first.Platform == "" {
		t.Error("Detect left Platform empty")
	}
}
