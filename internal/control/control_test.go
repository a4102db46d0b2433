package control

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/engine"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTestServer(t *testing.T) (*Server, *engine.Reducer, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gnosis-vpn.sock")

	r := engine.NewReducer(discardLogger(), nil, nil)
	go r.Run(t.Context())

	srv := NewServer(path, r, discardLogger())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	return srv, r, path
}

func TestClientStatusRoundTrip(t *testing.T) {
	t.Parallel()

	_, _, path := startTestServer(t)
	client := NewClient(path)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	if status == "" {
		t.Error("expected non-empty status text")
	}
}

func TestClientEntryNodeCommandIsAccepted(t *testing.T) {
	t.Parallel()

	_, r, path := startTestServer(t)
	client := NewClient(path)

	if err := client.EntryNode(EntryNodeInput{Endpoint: "http://127.0.0.1:9999", APIToken: "tok"}); err != nil {
		t.Fatalf("EntryNode: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Core().EntryNode() != nil {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("entry node was never recorded")
}

func TestClientEntryNodeRejectsInvalidListenHost(t *testing.T) {
	t.Parallel()

	_, r, path := startTestServer(t)
	client := NewClient(path)

	err := client.EntryNode(EntryNodeInput{
		Endpoint:   "http://127.0.0.1:9999",
		APIToken:   "tok",
		ListenHost: ptr("localhost:65536"),
	})
	if err == nil {
		t.Fatal("expected an error for an out-of-range listen_host port")
	}

	if r.Core().EntryNode() != nil {
		t.Error("invalid listen_host must never reach the reducer")
	}
}

func ptr(s string) *string { return &s }

func TestClientExitNodeRejectsInvalidPeerID(t *testing.T) {
	t.Parallel()

	_, _, path := startTestServer(t)
	client := NewClient(path)

	if err := client.ExitNode(ExitNodeInput{PeerID: "not-a-peer-id"}); err == nil {
		t.Fatal("expected an error for an invalid peer id")
	}
}

func TestServerListenRemovesStaleSocket(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gnosis-vpn.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write stale socket file: %v", err)
	}

	r := engine.NewReducer(discardLogger(), nil, nil)
	go r.Run(t.Context())

	srv := NewServer(path, r, discardLogger())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen should recover from a stale socket file: %v", err)
	}
	srv.Close()
}
