// Package remote implements the RemoteSlot bookkeeping record for a single
// outbound call kind, per spec.md §4.1.
package remote

import (
	"net/http"
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/backoff"
)

// CallError carries the diagnostic information for a failed remote call:
// the transport error (if any), the HTTP status (if a response was
// received at all), and the decoded JSON body (if decoding succeeded but
// the status was not 2xx). Mirrors original_source's
// gnosis_vpn::remote_data::CustomError.
type CallError struct {
	// Err is the underlying transport/decode error, if any.
	Err error
	// Status is the HTTP status code received, or 0 if the request never
	// got a response.
	Status int
	// Body is the decoded JSON error body, if one was returned.
	Body any
}

// Error implements the error interface.
func (e *CallError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return http.StatusText(e.Status) + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Status != 0:
		return http.StatusText(e.Status)
	default:
		return "remote call failed"
	}
}

// Unwrap exposes the underlying transport error for errors.Is/As.
func (e *CallError) Unwrap() error {
	return e.Err
}

// Phase is the RemoteSlot lifecycle state (spec.md §4.1).
type Phase uint8

const (
	// NotAsked means the call has never been dispatched.
	NotAsked Phase = iota
	// Fetching means exactly one worker is in flight.
	Fetching
	// RetryFetching means a retry timer is scheduled after a failure.
	RetryFetching
	// Failure means the backoff series is exhausted.
	Failure
	// Success means the most recent call succeeded.
	Success
)

// String returns the human-readable name of the phase.
func (p Phase) String() string {
	switch p {
	case NotAsked:
		return "NotAsked"
	case Fetching:
		return "Fetching"
	case RetryFetching:
		return "RetryFetching"
	case Failure:
		return "Failure"
	case Success:
		return "Success"
	default:
		return "Unknown"
	}
}

// CancelFunc cancels a pending retry timer. Idempotent, non-blocking.
type CancelFunc func()

// Slot is the per-call-kind bookkeeping record described in spec.md §4.1.
// It is not safe for concurrent use; all mutation happens from the
// reducer's single owning goroutine (spec.md §5).
type Slot struct {
	kind Kind

	phase     Phase
	startedAt time.Time
	lastErr   *CallError
	// remaining is stored longest-first (the reverse of backoff.Series,
	// which is shortest-first): popping the last element yields the
	// shortest remaining delay first, per spec.md §4.2 — mirrors
	// original_source's "backoffs: ... in reverse order" field comment.
	remaining []time.Duration
	cancel    CancelFunc
}

// Kind identifies which call this slot tracks; re-exported from backoff so
// callers only need to import one package for call identifiers.
type Kind = backoff.Kind

// New returns a Slot in the NotAsked phase for the given call kind.
func New(kind Kind) *Slot {
	return &Slot{kind: kind, phase: NotAsked}
}

// Kind returns the call kind this slot tracks.
func (s *Slot) Kind() Kind { return s.kind }

// Phase returns the current lifecycle phase.
func (s *Slot) Phase() Phase { return s.phase }

// LastError returns the last recorded error, if any.
func (s *Slot) LastError() *CallError { return s.lastErr }

// StartedAt returns the dispatch time of the in-flight worker, valid only
// while Phase() == Fetching.
func (s *Slot) StartedAt() time.Time { return s.startedAt }

// Dispatch transitions the slot to Fetching, resetting the backoff series.
// Per spec.md's "Lifecycles": RemoteSlots are reset to Fetching when
// re-entered, so any previously-computed remaining series is replaced with
// a fresh copy from backoff.Series.
func (s *Slot) Dispatch(now time.Time) {
	s.cancelPending()
	s.phase = Fetching
	s.startedAt = now
	s.lastErr = nil
	s.remaining = reversedSeries(s.kind)
}

// reversedSeries returns backoff.Series(kind) reversed (longest-first) so
// that popping from the tail yields delays shortest-first.
func reversedSeries(kind Kind) []time.Duration {
	src := backoff.Series(kind)
	out := make([]time.Duration, len(src))

	for i, d := range src {
		out[len(src)-1-i] = d
	}

	return out
}

// Succeed transitions the slot to Success. Valid only from Fetching; the
// caller (reducer) is responsible for checking Phase() first and treating
// an out-of-phase call as an invariant violation (spec.md §4.1, §7).
func (s *Slot) Succeed() {
	s.cancelPending()
	s.phase = Success
	s.lastErr = nil
}

// Fail records a call error. If the backoff series still has entries, the
// slot transitions to RetryFetching and schedule is invoked with the next
// delay to obtain a cancel handle; otherwise it transitions to Failure.
func (s *Slot) Fail(err *CallError, schedule func(delay time.Duration) CancelFunc) {
	s.lastErr = err

	if len(s.remaining) == 0 {
		s.phase = Failure
		return
	}

	delay := s.remaining[len(s.remaining)-1]
	s.remaining = s.remaining[:len(s.remaining)-1]
	s.phase = RetryFetching
	s.cancel = schedule(delay)
}

// Retry transitions the slot from RetryFetching back to Fetching, as if
// freshly dispatched but without resetting the remaining backoff series.
// Called when the scheduled retry timer fires.
func (s *Slot) Retry(now time.Time) {
	s.cancel = nil
	s.phase = Fetching
	s.startedAt = now
}

// Cancel invokes and clears the retry-timer cancel handle, if any. Safe to
// call from any phase; it is a no-op outside RetryFetching. Per spec.md
// invariant 2, the cancel handle is live exactly in RetryFetching.
func (s *Slot) Cancel() {
	s.cancelPending()
}

func (s *Slot) cancelPending() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Reset returns the slot to NotAsked, cancelling any pending retry timer
// first. Used when the owning EntryNode/ExitNode context disappears.
func (s *Slot) Reset() {
	s.cancelPending()
	s.phase = NotAsked
	s.lastErr = nil
	s.remaining = nil
}
