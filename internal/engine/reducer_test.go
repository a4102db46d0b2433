package engine

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/backoff"
	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
	"github.com/gnosisvpn/gnosisvpnd/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// S1: open happy path. A configured entry/exit node pair drives Idle ->
// Opening -> Monitoring once get_addresses and open_session both succeed.
func TestReducerOpenHappyPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/account/addresses":
			w.Write([]byte(`{"hopr":"hopr1","native":"native1"}`))
		case "/api/v3/session/udp":
			w.Write([]byte(`{"ip":"10.0.0.1","port":1,"protocol":"udp","target":"wg-server:51820"}`))
		}
	}))
	defer srv.Close()

	r := NewReducer(discardLogger(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.Run(ctx)

	exitID, err := peerid.Parse("11111111111111111111111111")
	if err != nil {
		t.Fatalf("peerid.Parse: %v", err)
	}

	r.Inbound <- EventEnvelope{Command: &CommandEvent{Kind: CommandEntryNode, EntryNode: EntryNodeParams{Endpoint: srv.URL}}}
	r.Inbound <- EventEnvelope{Command: &CommandEvent{Kind: CommandExitNode, ExitNodeID: exitID}}

	waitForState(t, r, Monitoring)

	if r.Core().Session() == nil {
		t.Fatal("expected a cached session after reaching Monitoring")
	}
}

// S4-style: once Monitoring, a list_sessions result that no longer contains
// the cached session drops back to Idle and re-evaluates opening.
func TestReducerListSessionsGoneReturnsToIdle(t *testing.T) {
	t.Parallel()

	r := NewReducer(discardLogger(), nil, nil)
	core := r.Core()

	// Force Monitoring with a cached session directly (white-box: same package).
	core.transition(Monitoring)
	core.session = &session.Session{IP: "10.0.0.1", Port: 1, Protocol: "udp", Target: "wg-server:51820"}
	// The reducer only applies a response to a slot that is Fetching.
	core.Slot(backoff.KindListSessions).Dispatch(time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.Run(ctx)

	r.Inbound <- EventEnvelope{Remote: &RemoteEvent{
		Kind:       backoff.KindListSessions,
		Outcome:    OutcomeResponse,
		Sessions:   nil,
		ObservedAt: time.Now(),
	}}

	waitForState(t, r, Idle)

	if r.Core().Session() != nil {
		t.Error("expected session to be dropped")
	}
}

func TestReducerStatusCommandRespondsOnResultChannel(t *testing.T) {
	t.Parallel()

	r := NewReducer(discardLogger(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.Run(ctx)

	result := make(chan string, 1)
	r.Inbound <- EventEnvelope{Command: &CommandEvent{Kind: CommandStatus, Result: result}}

	select {
	case out := <-result:
		if out == "" {
			t.Error("expected non-empty status text")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status response")
	}
}

func waitForState(t *testing.T, r *Reducer, want State) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Core().State() == want {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for state %v, last seen %v", want, r.Core().State())
}
