// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"sync"
	"time"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/schema"
)

// memorySampler polls heap usage on a ticker while a task runs,
// tracking the peak and recording a resource violation the first time
// the configured ceiling is crossed. It is an explicit, scoped
// resource: start and stop pair on every exit path of the enclosing
// Run call.
type memorySampler struct {
	clk      clock.Clock
	interval time.Duration
	ceiling  int // MB; 0 disables the ceiling check

	mu       sync.Mutex
	peakMB   float64
	breached []schema.Violation

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newMemorySampler(clk clock.Clock, interval time.Duration, ceilingMB int, initialMB float64) *memorySampler {
	return &memorySampler{
		clk:      clk,
		interval: interval,
		ceiling:  ceilingMB,
		peakMB:   initialMB,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// start launches the sampling goroutine. With no ceiling configured
// the sampler still tracks peak usage for accurate reporting.
func (m *memorySampler) start() {
	ticker := m.clk.NewTicker(m.interval)
	go func() {
		defer close(m.doneCh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// stop halts sampling and waits for the goroutine to exit, so no
// sample can race with the caller reading results. Safe to call more
// than once.
func (m *memorySampler) stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}

func (m *memorySampler) sample() {
	current := heapMB()

	m.mu.Lock()
	defer m.mu.Unlock()
	if current > m.peakMB {
		m.peakMB = current
	}
	// One violation per invocation: the first crossing is the signal,
	// repeats on every tick would only be noise.
	if m.ceiling > 0 && current > float64(m.ceiling) && len(m.breached) == 0 {
		m.breached = append(m.breached, schema.Violation{
			Type:        schema.ViolationResource,
			Description: fmt.Sprintf("heap usage %.1f MB exceeded ceiling %d MB", current, m.ceiling),
			Timestamp:   m.clk.Now(),
		})
	}
}

// peak returns the highest usage observed. Call after stop.
func (m *memorySampler) peak() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakMB
}

// violations returns the recorded ceiling breach, if any. Call after
// stop.
func (m *memorySampler) violations() []schema.Violation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breached
}
