// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/warden-foundation/warden/lib/binhash"
)

// Platform identifies the host operating system family for capability
// reporting.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
	PlatformOther   Platform = "other"
)

// Capabilities describes the isolation primitives available on this
// host. Detection runs once per process and is cached; see Detect.
type Capabilities struct {
	// HardFilesystemRestriction is true when the kernel can confine a
	// process's filesystem view: Landlock on Linux, sandbox-exec on
	// Darwin.
	HardFilesystemRestriction bool `json:"hardFsRestriction"`

	// SyscallFilter is true when the kernel exposes seccomp filtering.
	SyscallFilter bool `json:"syscallFilter"`

	// Namespaces is true when unprivileged user namespaces appear
	// usable.
	Namespaces bool `json:"namespaces"`

	// ResourceLimits is true when per-process resource limits are
	// available. Always true on Linux.
	ResourceLimits bool `json:"resourceLimits"`

	// Platform is the host OS family.
	Platform Platform `json:"platform"`

	// KernelVersion is the raw kernel release string on Linux, empty
	// elsewhere.
	KernelVersion string `json:"kernelVersion,omitempty"`

	// WorkerBinary is the resolved path of the warden-worker artifact,
	// empty when it could not be found. The hard variant requires it.
	WorkerBinary string `json:"workerBinary,omitempty"`

	// WorkerHash is the hex BLAKE3 digest of WorkerBinary, empty when
	// the binary is absent. Identifies the exact worker build in
	// status reports.
	WorkerHash string `json:"workerHash,omitempty"`
}

// landlockMinimum is the first kernel release shipping Landlock.
const landlockMinimumMajor, landlockMinimumMinor = 5, 13

// workerBinaryName is the executable the hard variant spawns. It is
// resolved next to the running binary, overridable with
// WARDEN_WORKER_BIN.
const workerBinaryName = "warden-worker"

var (
	detectOnce   sync.Once
	detectedCaps *Capabilities
)

// Detect probes the host for isolation primitives. The probe runs once
// per process; subsequent calls return the cached result. Detection
// never fails — any probe error reads as "unsupported".
func Detect() *Capabilities {
	detectOnce.Do(func() {
		detectedCaps = detect()
	})
	return detectedCaps
}

func detect() *Capabilities {
	caps := &Capabilities{Platform: hostPlatform()}

	switch caps.Platform {
	case PlatformLinux:
		caps.KernelVersion = kernelRelease()
		caps.HardFilesystemRestriction = landlockPresent(caps.KernelVersion)
		caps.SyscallFilter = seccompPresent()
		caps.Namespaces = userNamespacePresent()
		caps.ResourceLimits = true
	case PlatformDarwin:
		// Darwin substitutes its own check: the system sandbox-exec
		// facility stands in for kernel filesystem restriction.
		if _, err := exec.LookPath("sandbox-exec"); err == nil {
			caps.HardFilesystemRestriction = true
		}
	}

	if path, err := WorkerPath(); err == nil {
		caps.WorkerBinary = path
		if digest, err := binhash.HashFile(path); err == nil {
			caps.WorkerHash = binhash.FormatDigest(digest)
		}
	}

	return caps
}

func hostPlatform() Platform {
	switch runtime.GOOS {
	case "linux":
		return PlatformLinux
	case "darwin":
		return PlatformDarwin
	case "windows":
		return PlatformWindows
	default:
		return PlatformOther
	}
}

// kernelRelease returns the uname release string, or "" on error.
func kernelRelease() string {
	var name unix.Utsname
	if err := unix.Uname(&name); err != nil {
		return ""
	}
	return unix.ByteSliceToString(name.Release[:])
}

// landlockPresent checks for the Landlock securityfs surface, falling
// back to a kernel version comparison when securityfs is not mounted
// or not readable.
func landlockPresent(release string) bool {
	if info, err := os.Stat("/sys/kernel/security/landlock"); err == nil && info.IsDir() {
		return true
	}
	return kernelAtLeast(release, landlockMinimumMajor, landlockMinimumMinor)
}

// kernelAtLeast parses a release string like "6.8.0-45-generic" and
// compares the major.minor prefix. Unparseable strings read as "too
// old".
func kernelAtLeast(release string, wantMajor, wantMinor int) bool {
	fields := strings.SplitN(release, ".", 3)
	if len(fields) < 2 {
		return false
	}
	major, err := strconv.Atoi(fields[0])
	if err != nil {
		return false
	}
	// The minor field may carry a suffix ("13-rc2"); trim at the
	// first non-digit.
	minorDigits := fields[1]
	for index, r := range minorDigits {
		if r < '0' || r > '9' {
			minorDigits = minorDigits[:index]
			break
		}
	}
	minor, err := strconv.Atoi(minorDigits)
	if err != nil {
		return false
	}
	if major != wantMajor {
		return major > wantMajor
	}
	return minor >= wantMinor
}

// seccompPresent reads the Seccomp field of /proc/self/status. Any
// value at all means the kernel was built with seccomp support.
func seccompPresent() bool {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false
	}
	for line := range strings.Lines(string(data)) {
		if strings.HasPrefix(line, "Seccomp:") {
			return true
		}
	}
	return false
}

// userNamespacePresent checks for a per-process user namespace handle.
func userNamespacePresent() bool {
	_, err := os.Stat("/proc/self/ns/user")
	return err == nil
}

// WorkerPath resolves the warden-worker executable: the
// WARDEN_WORKER_BIN override first, then a sibling of the running
// binary. Returns an error when no executable is found.
func WorkerPath() (string, error) {
	if override := os.Getenv("WARDEN_WORKER_BIN"); override != "" {
		return checkExecutable(override)
	}
	self, err := os.Executable()
	if err != nil {
		return "", err
	}
	return checkExecutable(filepath.Join(filepath.Dir(self), workerBinaryName))
}

func checkExecutable(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return "", &os.PathError{Op: "exec", Path: path, Err: os.ErrPermission}
	}
	return path, nil
}

// SkipReason returns a human-readable reason hard isolation is not
// available, or "" when it is.
func (c *Capabilities) SkipReason() string {
	if c.Platform != PlatformLinux {
		return "hard isolation requires Linux"
	}
	if !c.HardFilesystemRestriction {
		return "kernel lacks Landlock filesystem restriction (need >= 5.13)"
	}
	if c.WorkerBinary == "" {
		return "warden-worker binary not found (set WARDEN_WORKER_BIN)"
	}
	return ""
}

// CanRunHard reports whether the hard variant has everything it needs.
func (c *Capabilities) CanRunHard() bool {
	return c.SkipReason() == ""
}
