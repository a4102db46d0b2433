// Package backoff materializes the deterministic exponential retry-delay
// sequences used by each remote call kind (spec.md §4.2).
package backoff

import (
	"math"
	"time"
)

// Kind identifies one of the four remote call kinds with its own backoff
// parameters.
type Kind uint8

const (
	// KindGetAddresses backs the get_addresses call.
	KindGetAddresses Kind = iota
	// KindOpenSession backs the open_session call.
	KindOpenSession
	// KindListSessions backs the list_sessions call.
	KindListSessions
	// KindCloseSession backs the close_session call.
	KindCloseSession
)

// String returns the human-readable name of the call kind.
func (k Kind) String() string {
	switch k {
	case KindGetAddresses:
		return "get_addresses"
	case KindOpenSession:
		return "open_session"
	case KindListSessions:
		return "list_sessions"
	case KindCloseSession:
		return "close_session"
	default:
		return "unknown"
	}
}

// params holds the (attempts, min, max) triple for one call kind, per the
// table in spec.md §4.2.
type params struct {
	attempts int
	min      time.Duration
	max      time.Duration
}

//nolint:gochecknoglobals // static policy table, mirrors the teacher's fsmTable.
var table = map[Kind]params{
	KindGetAddresses: {attempts: 10, min: 1 * time.Second, max: 60 * time.Second},
	KindOpenSession:  {attempts: 3, min: 1 * time.Second, max: 5 * time.Second},
	KindListSessions: {attempts: 3, min: 1 * time.Second, max: 5 * time.Second},
	KindCloseSession: {attempts: 2, min: 1 * time.Second, max: 3 * time.Second},
}

// Series returns the full retry-delay sequence for kind, shortest delay
// first. remote.Slot keeps a reversed copy and pops from its tail, so the
// first retry waits Series()[0] == min and later retries approach max.
//
// The sequence follows the same exponential-with-fixed-endpoints shape as
// the original's exponential_backoff::Backoff (original_source/gnosis_vpn/src/backoff.rs),
// reimplemented directly since no equivalent library appears in the
// retrieved example pack.
func Series(kind Kind) []time.Duration {
	p, ok := table[kind]
	if !ok {
		return nil
	}

	return series(p.attempts, p.min, p.max)
}

// Attempts returns the configured attempt count for kind.
func Attempts(kind Kind) int {
	return table[kind].attempts
}

func series(attempts int, minD, maxD time.Duration) []time.Duration {
	if attempts <= 0 {
		return nil
	}

	out := make([]time.Duration, attempts)
	if attempts == 1 {
		out[0] = minD
		return out
	}

	minF := float64(minD)
	maxF := float64(maxD)

	for i := range attempts {
		// Exponential interpolation between min and max across [0, attempts-1].
		frac := float64(i) / float64(attempts-1)
		d := minF * math.Pow(maxF/minF, frac)
		out[i] = time.Duration(d)
	}

	return out
}
