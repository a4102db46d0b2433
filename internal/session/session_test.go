package session_test

import (
	"testing"

	"github.com/gnosisvpn/gnosisvpnd/internal/session"
)

func TestSessionEqualCaseInsensitiveTarget(t *testing.T) {
	t.Parallel()

	a := session.Session{IP: "10.0.0.1", Port: 51820, Protocol: "udp", Target: "wg-server"}
	b := session.Session{IP: "10.0.0.1", Port: 51820, Protocol: "udp", Target: "WG-Server"}

	if !a.Equal(b) {
		t.Fatal("expected sessions to be equal ignoring target case")
	}
}

func TestSessionEqualDistinguishesPort(t *testing.T) {
	t.Parallel()

	a := session.Session{IP: "10.0.0.1", Port: 51820, Protocol: "udp", Target: "wg-server"}
	b := session.Session{IP: "10.0.0.1", Port: 51821, Protocol: "udp", Target: "wg-server"}

	if a.Equal(b) {
		t.Fatal("expected sessions with different ports to differ")
	}
}

func TestVerifyOpenReflexive(t *testing.T) {
	t.Parallel()

	s := session.Session{IP: "10.0.0.1", Port: 51820, Protocol: "udp", Target: "wg-server"}
	others := session.Session{IP: "10.0.0.1", Port: 1, Protocol: "udp", Target: "other"}

	if !s.VerifyOpen([]session.Session{others, s}) {
		t.Fatal("expected VerifyOpen to find s in the list")
	}
}

func TestVerifyOpenMissing(t *testing.T) {
	t.Parallel()

	s := session.Session{IP: "10.0.0.1", Port: 51820, Protocol: "udp", Target: "wg-server"}
	others := session.Session{IP: "10.0.0.1", Port: 1, Protocol: "udp", Target: "other"}

	if s.VerifyOpen([]session.Session{others}) {
		t.Fatal("expected VerifyOpen to report false when session is absent")
	}
}

func TestHopPath(t *testing.T) {
	t.Parallel()

	p := session.HopPath(2)
	if !p.IsHop() {
		t.Fatal("expected HopPath to report IsHop")
	}

	if *p.Hops != 2 {
		t.Fatalf("hops = %d, want 2", *p.Hops)
	}
}

func TestIntermediatesPathIsNotHop(t *testing.T) {
	t.Parallel()

	p := session.IntermediatesPath(nil)
	if p.IsHop() {
		t.Fatal("expected IntermediatesPath to not report IsHop")
	}
}
