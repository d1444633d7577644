// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"runtime"
	"testing"
	"time"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/schema"
)

func TestSamplerTracksPeak(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	sampler := newMemorySampler(fake, time.Second, 0, 5.0)

	sampler.sample()

	if peak := sampler.peak(); peak < 5.0 {
		t.Errorf("peak = %v, want at least the initial 5.0", peak)
	}
	if violations := sampler.violations(); len(violations) != 0 {
		t.Errorf("sampler without ceiling recorded violations: %+v", violations)
	}
}

func TestSamplerRecordsOneBreach(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))

	// Hold enough live heap that any sample clears a 1 MB ceiling.
	ballast := make([]byte, 32<<20)
	for index := range ballast {
		ballast[index] = byte(index)
	}

	sampler := newMemorySampler(fake, time.Second, 1, 0)
	sampler.sample()
	sampler.sample()
	sampler.sample()
	runtime.KeepAlive(ballast)

	violations := sampler.violations()
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want exactly 1: %+v", len(violations), violations)
	}
	if violations[0].Type != schema.ViolationResource {
		t.Errorf("violation type = %q, want resource", violations[0].Type)
	}
	if sampler.peak() <= 1.0 {
		t.Errorf("peak = %v, want above the 1 MB ceiling", sampler.peak())
	}
}

func TestSamplerStopIsIdempotent(t *testing.T) {
	fake := clock.NewFake(time.Unix(1700000000, 0))
	sampler := newMemorySampler(fake, 100*time.Millisecond, 0, 0)

	sampler.start()
	fake.Advance(time.Second)
	sampler.stop()
	sampler.stop()

	// After stop the goroutine is gone; reads must be stable.
	first := sampler.peak()
	fake.Advance(time.Second)
	if second := sampler.peak(); second != first {
		t.Errorf("peak changed after stop: %v -> %v", first, second)
	}
}
