package engine

import (
	"testing"
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/backoff"
	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
	"github.com/gnosisvpn/gnosisvpnd/internal/remote"
	"github.com/gnosisvpn/gnosisvpnd/internal/session"
)

func TestNewCoreStartsIdleWithAllSlotsNotAsked(t *testing.T) {
	t.Parallel()

	c := NewCore()

	if c.State() != Idle {
		t.Errorf("State() = %v, want Idle", c.State())
	}

	for _, kind := range []backoff.Kind{
		backoff.KindGetAddresses, backoff.KindOpenSession,
		backoff.KindListSessions, backoff.KindCloseSession,
	} {
		if phase := c.Slot(kind).Phase(); phase != remote.NotAsked {
			t.Errorf("Slot(%s).Phase() = %v, want NotAsked", kind, phase)
		}
	}
}

func TestOpenPreconditionRequiresBothNodes(t *testing.T) {
	t.Parallel()

	c := NewCore()

	if c.openPreconditionMet() {
		t.Fatal("precondition met with no nodes set")
	}

	c.entryNode = &session.EntryNode{}
	if c.openPreconditionMet() {
		t.Fatal("precondition met with only entry node set")
	}

	id, err := peerid.Parse("11111111111111111111111111")
	if err != nil {
		t.Fatalf("peerid.Parse: %v", err)
	}

	c.exitNode = &session.ExitNode{Peer: id}

	if !c.openPreconditionMet() {
		t.Fatal("precondition not met with both nodes set and state Idle")
	}

	c.transition(Opening)
	if c.openPreconditionMet() {
		t.Fatal("precondition met while not Idle")
	}
}

func TestCancelAllTimersClearsLivenessAndSlots(t *testing.T) {
	t.Parallel()

	c := NewCore()

	called := false
	c.livenessCancel = func() { called = true }

	slotCancelled := false
	slot := c.Slot(backoff.KindOpenSession)
	slot.Dispatch(time.Now())
	slot.Fail(&remote.CallError{Status: 500}, func(time.Duration) remote.CancelFunc {
		return func() { slotCancelled = true }
	})

	c.cancelAllTimers()

	if !called {
		t.Error("liveness cancel was not invoked")
	}

	if !slotCancelled {
		t.Error("slot retry cancel was not invoked")
	}

	if c.livenessCancel != nil {
		t.Error("livenessCancel was not cleared")
	}
}

func TestIssuesRetainOnePerKind(t *testing.T) {
	t.Parallel()

	c := NewCore()

	c.SetIssue(IssueConfig, "first")
	c.SetIssue(IssueConfig, "second")
	c.SetIssue(IssueWireGuardOp, "wg failed")

	issues := c.Issues()

	if issues[IssueConfig] != "second" {
		t.Errorf("Issues()[IssueConfig] = %q, want %q", issues[IssueConfig], "second")
	}

	if len(issues) != 2 {
		t.Errorf("len(Issues()) = %d, want 2", len(issues))
	}

	c.ClearIssue(IssueConfig)

	if _, ok := c.Issues()[IssueConfig]; ok {
		t.Error("IssueConfig still present after ClearIssue")
	}
}
