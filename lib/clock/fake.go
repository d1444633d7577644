// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// NewFake returns a Fake clock initialized to initial. Time stands
// still until Advance is called.
func NewFake(initial time.Time) *Fake {
	return &Fake{current: initial}
}

// Fake is a deterministic Clock for tests. Timers and tickers fire
// only when Advance moves the clock past their deadline, in deadline
// order. Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	waiters []*waiter
}

// waiter is a pending After channel or ticker.
type waiter struct {
	deadline time.Time
	channel  chan time.Time

	// interval is non-zero for tickers; after firing, the waiter is
	// rescheduled at deadline + interval.
	interval time.Duration

	stopped bool
	fired   bool
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// After returns a channel that receives once the clock advances past
// the deadline. If d <= 0 the channel receives immediately.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- f.current
		return channel
	}
	f.waiters = append(f.waiters, &waiter{
		deadline: f.current.Add(d),
		channel:  channel,
	})
	return channel
}

// NewTicker returns a Ticker that fires every d fake-time interval.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	channel := make(chan time.Time, 1)
	w := &waiter{
		deadline: f.current.Add(d),
		channel:  channel,
		interval: d,
	}
	f.waiters = append(f.waiters, w)

	return &Ticker{
		C: channel,
		stop: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			w.stopped = true
		},
	}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline falls within the new time, in deadline order. Channel sends
// are non-blocking (drop-if-full, matching time.Ticker). Tickers fire
// once per elapsed interval.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.current.Add(d)
	for {
		next := f.nextFireable(target)
		if next == nil {
			break
		}
		f.current = next.deadline
		select {
		case next.channel <- f.current:
		default:
		}
		if next.interval > 0 {
			next.deadline = next.deadline.Add(next.interval)
		} else {
			next.fired = true
		}
	}
	f.current = target
	f.compact()
}

// nextFireable returns the live waiter with the earliest deadline not
// after target, or nil when none remain.
func (f *Fake) nextFireable(target time.Time) *waiter {
	live := f.waiters[:0:0]
	for _, w := range f.waiters {
		if !w.stopped && !w.fired {
			live = append(live, w)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].deadline.Before(live[j].deadline)
	})
	if len(live) == 0 || live[0].deadline.After(target) {
		return nil
	}
	return live[0]
}

// compact drops stopped and fired one-shot waiters.
func (f *Fake) compact() {
	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.stopped && !w.fired {
			remaining = append(remaining, w)
		}
	}
	f.waiters = remaining
}
