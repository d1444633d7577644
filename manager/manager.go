// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/warden-foundation/warden/proxy"
	"github.com/warden-foundation/warden/sandbox"
)

// Technology names an isolation strategy in configuration.
type Technology string

const (
	// TechnologyAuto selects the strongest variant the host supports.
	TechnologyAuto Technology = "auto"

	// TechnologyHard requires the out-of-process worker path.
	TechnologyHard Technology = "hard"

	// TechnologyFilter selects userspace validation (the soft
	// variant) without kernel enforcement.
	TechnologyFilter Technology = "filter"

	// TechnologyNone disables sandboxing.
	TechnologyNone Technology = "none"
)

// Config is the manager's external configuration surface.
type Config struct {
	// Enabled gates the whole subsystem. False always yields the noop
	// variant.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Technology selects the isolation strategy. Empty means auto.
	Technology Technology `yaml:"technology" json:"technology"`

	// AllowedReadPaths, AllowedWritePaths seed the default filesystem
	// policy for Run calls that pass zero options.
	AllowedReadPaths  []string `yaml:"allowed_read_paths" json:"allowedReadPaths"`
	AllowedWritePaths []string `yaml:"allowed_write_paths" json:"allowedWritePaths"`

	// Resource ceilings for the default policy.
	MaxMemoryMB   int `yaml:"max_memory_mb" json:"maxMemoryMb"`
	MaxCPUPercent int `yaml:"max_cpu_percent" json:"maxCpuPercent"`
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"maxFileSizeMb"`

	// TimeoutSeconds bounds each Run call in the default policy. Zero
	// leaves per-variant defaults in force.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeoutSeconds"`

	// NetworkAllowed permits direct network egress from sandboxed
	// tasks. When false, egress is expected to flow through the
	// credential proxy.
	NetworkAllowed bool `yaml:"network_allowed" json:"networkAllowed"`

	// Logger for downgrade notices and proxy lifecycle events. Nil
	// discards.
	Logger *slog.Logger `yaml:"-" json:"-"`

	// Capabilities overrides host detection when non-nil. Tests use
	// this to pin the resolution input.
	Capabilities *sandbox.Capabilities `yaml:"-" json:"-"`
}

// Status is the observability snapshot of the subsystem.
type Status struct {
	Enabled      bool                  `json:"enabled"`
	Technology   Technology            `json:"technology"`
	Capabilities *sandbox.Capabilities `json:"capabilities"`
	SandboxKind  sandbox.Kind          `json:"sandboxType"`
	ProxyURL     string                `json:"credentialProxyUrl,omitempty"`
}

// Manager resolves configuration against host capabilities and owns
// the singleton sandbox and the at-most-one credential proxy.
type Manager struct {
	config Config
	caps   *sandbox.Capabilities
	logger *slog.Logger

	sandboxOnce sync.Once
	sandboxInst sandbox.Sandbox

	mu          sync.Mutex
	activeProxy *proxy.Server
}

// New builds a manager. Capabilities are detected lazily on first
// Sandbox or Status call.
func New(config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.Technology == "" {
		config.Technology = TechnologyAuto
	}
	return &Manager{config: config, caps: config.Capabilities, logger: logger}
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() Config { return m.config }

// Enabled reports whether sandboxing is enabled.
func (m *Manager) Enabled() bool { return m.config.Enabled }

// Capabilities returns the detected host capabilities.
func (m *Manager) Capabilities() *sandbox.Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capabilitiesLocked()
}

func (m *Manager) capabilitiesLocked() *sandbox.Capabilities {
	if m.caps == nil {
		m.caps = sandbox.Detect()
	}
	return m.caps
}

// Sandbox returns the process's sandbox, creating it on first call.
// The variant is chosen once; configuration or capability changes
// after that require a new Manager.
func (m *Manager) Sandbox() sandbox.Sandbox {
	m.sandboxOnce.Do(func() {
		m.sandboxInst = m.resolve()
	})
	return m.sandboxInst
}

// resolve maps (enabled, technology, capabilities) to a variant.
// Misconfiguration downgrades with a warning instead of failing: a
// broken sandbox setting must not take task execution down with it.
func (m *Manager) resolve() sandbox.Sandbox {
	caps := m.Capabilities()

	if !m.config.Enabled {
		m.logger.Info("sandboxing disabled, using noop variant")
		return sandbox.NewNoop(caps)
	}

	switch m.config.Technology {
	case TechnologyNone:
		m.logger.Info("sandbox technology none, using noop variant")
		return sandbox.NewNoop(caps)

	case TechnologyFilter:
		return sandbox.NewSoft(sandbox.SoftConfig{Capabilities: caps, Logger: m.logger})

	case TechnologyHard:
		if caps.Platform != sandbox.PlatformLinux {
			m.logger.Warn("hard isolation requires Linux, downgrading to noop",
				"platform", caps.Platform)
			return sandbox.NewNoop(caps)
		}
		if reason := caps.SkipReason(); reason != "" {
			m.logger.Warn("hard isolation prerequisites missing, worker calls will fall back",
				"reason", reason)
		}
		return sandbox.NewHard(sandbox.HardConfig{Capabilities: caps, Logger: m.logger})

	case TechnologyAuto:
		return m.resolveAuto(caps)

	default:
		m.logger.Warn("unknown sandbox technology, downgrading to noop",
			"technology", m.config.Technology)
		return sandbox.NewNoop(caps)
	}
}

// resolveAuto picks the strongest variant the host supports.
func (m *Manager) resolveAuto(caps *sandbox.Capabilities) sandbox.Sandbox {
	switch caps.Platform {
	case sandbox.PlatformLinux:
		if caps.CanRunHard() {
			m.logger.Info("auto-selected hard isolation")
			return sandbox.NewHard(sandbox.HardConfig{Capabilities: caps, Logger: m.logger})
		}
		m.logger.Warn("hard isolation unavailable, downgrading to soft validation",
			"reason", caps.SkipReason())
		return sandbox.NewSoft(sandbox.SoftConfig{Capabilities: caps, Logger: m.logger})

	case sandbox.PlatformDarwin:
		platform := sandbox.NewPlatformExec(sandbox.PlatformExecConfig{Capabilities: caps, Logger: m.logger})
		if platform.Available() {
			m.logger.Info("auto-selected platform isolation")
			return platform
		}
		m.logger.Warn("platform isolation unavailable, downgrading to soft validation")
		return sandbox.NewSoft(sandbox.SoftConfig{Capabilities: caps, Logger: m.logger})

	default:
		m.logger.Warn("no isolation available on this platform, downgrading to noop",
			"platform", caps.Platform)
		return sandbox.NewNoop(caps)
	}
}

// DefaultOptions derives the per-call policy from the manager's
// configuration. Callers with no opinion pass this to Run.
func (m *Manager) DefaultOptions() sandbox.Options {
	opts := sandbox.Options{
		Network: m.config.NetworkAllowed,
	}
	if len(m.config.AllowedReadPaths) > 0 || len(m.config.AllowedWritePaths) > 0 {
		opts.Filesystem = &sandbox.FilesystemOptions{
			ReadPaths:  m.config.AllowedReadPaths,
			WritePaths: m.config.AllowedWritePaths,
		}
	}
	if m.config.MaxMemoryMB > 0 || m.config.MaxCPUPercent > 0 {
		opts.Resources = &sandbox.ResourceOptions{
			MaxMemoryMB:   m.config.MaxMemoryMB,
			MaxCPUPercent: m.config.MaxCPUPercent,
		}
	}
	if m.config.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(m.config.TimeoutSeconds) * time.Second
	}
	return opts
}

// StartProxy starts a credential proxy over the given rules, first
// stopping any active one. The manager takes ownership of the rules;
// they are released when the proxy stops. Returns the bound URL.
func (m *Manager) StartProxy(rules []*proxy.CredentialRule, allowedHosts []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Stop-then-start: the old listener is fully closed before the
	// replacement binds, so a failed start never leaves two proxies.
	if m.activeProxy != nil {
		if err := m.activeProxy.Stop(); err != nil {
			m.logger.Warn("stopping previous proxy", "error", err)
		}
		m.activeProxy = nil
	}

	server := proxy.NewServer(proxy.ServerConfig{
		Rules:        rules,
		AllowedHosts: allowedHosts,
		Logger:       m.logger,
	})
	if err := server.Start(); err != nil {
		return "", err
	}
	m.activeProxy = server
	return server.URL(), nil
}

// StopProxy stops the active proxy. Safe to call with none active and
// safe to repeat.
func (m *Manager) StopProxy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeProxy == nil {
		return nil
	}
	err := m.activeProxy.Stop()
	m.activeProxy = nil
	return err
}

// ProxyURL returns the active proxy's URL, or "" when none runs.
func (m *Manager) ProxyURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeProxy == nil {
		return ""
	}
	return m.activeProxy.URL()
}

// Status aggregates the subsystem's observable state.
func (m *Manager) Status() Status {
	return Status{
		Enabled:      m.config.Enabled,
		Technology:   m.config.Technology,
		Capabilities: m.Capabilities(),
		SandboxKind:  m.Sandbox().Kind(),
		ProxyURL:     m.ProxyURL(),
	}
}

// Close releases everything the manager owns. Today that is the
// active proxy, if any.
func (m *Manager) Close() error {
	return m.StopProxy()
}
