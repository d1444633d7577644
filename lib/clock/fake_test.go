// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := NewFake(epoch)
	ch := fake.After(10 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(epoch.Add(10 * time.Second)) {
			t.Errorf("fire time = %v, want %v", fired, epoch.Add(10*time.Second))
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	fake := NewFake(epoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	fake := NewFake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after one interval")
	}

	// An advance spanning several intervals with an unread channel
	// drops overflow ticks rather than queueing them.
	fake.Advance(5 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire during multi-interval advance")
	}
}

func TestFakeTickerStop(t *testing.T) {
	fake := NewFake(epoch)
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(10 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeNowTracksAdvance(t *testing.T) {
	fake := NewFake(epoch)
	fake.Advance(90 * time.Minute)
	if got := fake.Now(); !got.Equal(epoch.Add(90 * time.Minute)) {
		t.Errorf("Now() = %v, want %v", got, epoch.Add(90*time.Minute))
	}
}
