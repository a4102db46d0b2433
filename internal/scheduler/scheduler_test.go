package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/scheduler"
)

func TestScheduleRetryFires(t *testing.T) {
	t.Parallel()

	s := scheduler.New()

	var fired atomic.Bool

	s.ScheduleRetry(10*time.Millisecond, func(time.Time) {
		fired.Store(true)
	})

	waitUntil(t, func() bool { return fired.Load() })
}

func TestScheduleRetryCancel(t *testing.T) {
	t.Parallel()

	s := scheduler.New()

	var fired atomic.Bool

	cancel := s.ScheduleRetry(20*time.Millisecond, func(time.Time) {
		fired.Store(true)
	})
	cancel()

	time.Sleep(40 * time.Millisecond)

	if fired.Load() {
		t.Fatal("cancelled timer fired")
	}
}

func TestScheduleLivenessWithinBounds(t *testing.T) {
	t.Parallel()

	s := scheduler.New()

	done := make(chan time.Time, 1)
	start := time.Now()

	s.ScheduleLiveness(func(fired time.Time) {
		done <- fired
	})

	select {
	case <-done:
	case <-time.After(scheduler.LivenessMax + time.Second):
		t.Fatal("liveness timer never fired")
	}

	elapsed := time.Since(start)
	if elapsed < scheduler.LivenessMin {
		t.Errorf("fired after %v, want >= %v", elapsed, scheduler.LivenessMin)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatal("condition never became true")
}
