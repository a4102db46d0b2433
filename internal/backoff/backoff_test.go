package backoff_test

import (
	"testing"
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/backoff"
)

func TestSeriesCardinalityAndEndpoints(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind     backoff.Kind
		attempts int
		min      time.Duration
		max      time.Duration
	}{
		{backoff.KindGetAddresses, 10, time.Second, 60 * time.Second},
		{backoff.KindOpenSession, 3, time.Second, 5 * time.Second},
		{backoff.KindListSessions, 3, time.Second, 5 * time.Second},
		{backoff.KindCloseSession, 2, time.Second, 3 * time.Second},
	}

	for _, tc := range cases {
		series := backoff.Series(tc.kind)

		if len(series) != tc.attempts {
			t.Errorf("%s: len = %d, want %d", tc.kind, len(series), tc.attempts)
		}

		if series[0] != tc.min {
			t.Errorf("%s: first = %v, want %v", tc.kind, series[0], tc.min)
		}

		if series[len(series)-1] != tc.max {
			t.Errorf("%s: last = %v, want %v", tc.kind, series[len(series)-1], tc.max)
		}

		if backoff.Attempts(tc.kind) != tc.attempts {
			t.Errorf("%s: Attempts() = %d, want %d", tc.kind, backoff.Attempts(tc.kind), tc.attempts)
		}
	}
}

func TestSeriesNonDecreasing(t *testing.T) {
	t.Parallel()

	for _, kind := range []backoff.Kind{
		backoff.KindGetAddresses, backoff.KindOpenSession,
		backoff.KindListSessions, backoff.KindCloseSession,
	} {
		series := backoff.Series(kind)
		for i := 1; i < len(series); i++ {
			if series[i] < series[i-1] {
				t.Errorf("%s: series not non-decreasing at %d: %v < %v", kind, i, series[i], series[i-1])
			}
		}
	}
}

func TestSeriesTwoAttemptsHasNoInterior(t *testing.T) {
	t.Parallel()

	series := backoff.Series(backoff.KindCloseSession)
	if len(series) != 2 {
		t.Fatalf("len = %d, want 2", len(series))
	}
}
