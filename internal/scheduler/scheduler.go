// Package scheduler provides cancellable, non-blocking one-shot timers for
// the two delayed-event kinds the reducer needs: retry timers for a
// RemoteSlot backoff and the periodic liveness check (spec.md §4.4).
package scheduler

import (
	"math/rand/v2"
	"time"
)

// CancelFunc cancels a pending timer. Idempotent and safe to call from any
// goroutine; calling it after the timer has already fired is a no-op.
type CancelFunc func()

// LivenessMin and LivenessMax bound the randomized liveness-check interval
// (spec.md §4.4): each liveness timer fires after a duration drawn
// uniformly from [LivenessMin, LivenessMax).
const (
	LivenessMin = 5 * time.Second
	LivenessMax = 13 * time.Second
)

// Scheduler dispatches delayed callbacks onto a single events channel,
// mirroring the teacher's timer-to-channel pattern in
// internal/bfd/manager.go (the session timeout and tx-interval timers are
// each a time.AfterFunc posting a synthetic event, not a raw channel read in
// the select). Using a single scheduler keeps every posted event funneled
// through the reducer's one owning goroutine (spec.md §5).
type Scheduler struct {
	now func() time.Time
}

// New returns a Scheduler using time.Now for timestamps. A later test-only
// constructor can substitute a deterministic clock; production code always
// uses this one.
func New() *Scheduler {
	return &Scheduler{now: time.Now}
}

// ScheduleRetry arranges for fn to run after delay and returns a handle to
// cancel it. fn is expected to post a retry event for the given slot kind
// back onto the reducer's event channel; the scheduler itself is agnostic
// to what fn does.
func (s *Scheduler) ScheduleRetry(delay time.Duration, fn func(fired time.Time)) CancelFunc {
	return s.after(delay, fn)
}

// ScheduleLiveness arranges for fn to run after a delay drawn uniformly from
// [LivenessMin, LivenessMax) and returns a handle to cancel it.
func (s *Scheduler) ScheduleLiveness(fn func(fired time.Time)) CancelFunc {
	return s.after(randomLivenessDelay(), fn)
}

func (s *Scheduler) after(delay time.Duration, fn func(fired time.Time)) CancelFunc {
	timer := time.AfterFunc(delay, func() {
		fn(s.now())
	})

	return func() {
		timer.Stop()
	}
}

// randomLivenessDelay draws a duration uniformly from [LivenessMin, LivenessMax).
func randomLivenessDelay() time.Duration {
	span := LivenessMax - LivenessMin

	return LivenessMin + time.Duration(rand.Int64N(int64(span)))
}
