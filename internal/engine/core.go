package engine

import (
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/backoff"
	"github.com/gnosisvpn/gnosisvpnd/internal/remote"
	"github.com/gnosisvpn/gnosisvpnd/internal/scheduler"
	"github.com/gnosisvpn/gnosisvpnd/internal/session"
)

// Core is the mutable state owned exclusively by the reducer's single
// goroutine (spec.md §5: "Exactly one thread owns mutable Core state").
// No method on Core takes a lock; safety comes from single-owner access,
// the same invariant the teacher's bfd.Manager.run() loop relies on.
type Core struct {
	state          State
	stateStartedAt time.Time

	entryNode *session.EntryNode
	exitNode  *session.ExitNode
	session   *session.Session

	livenessCancel scheduler.CancelFunc

	slots map[backoff.Kind]*remote.Slot

	issues issues

	configDefault bool
}

// NewCore returns a Core in the Idle state with all four RemoteSlots
// NotAsked.
func NewCore() *Core {
	c := &Core{
		state:  Idle,
		issues: issues{},
		slots: map[backoff.Kind]*remote.Slot{
			backoff.KindGetAddresses: remote.New(backoff.KindGetAddresses),
			backoff.KindOpenSession:  remote.New(backoff.KindOpenSession),
			backoff.KindListSessions: remote.New(backoff.KindListSessions),
			backoff.KindCloseSession: remote.New(backoff.KindCloseSession),
		},
	}
	c.stateStartedAt = time.Now()

	return c
}

// State returns the current lifecycle state.
func (c *Core) State() State { return c.state }

// Slot returns the RemoteSlot bookkeeping record for kind.
func (c *Core) Slot(kind backoff.Kind) *remote.Slot { return c.slots[kind] }

// Session returns the currently open Session, or nil (invariant 1: non-nil
// iff State is Monitoring or Closing).
func (c *Core) Session() *session.Session { return c.session }

// EntryNode returns the current EntryNode runtime record, or nil.
func (c *Core) EntryNode() *session.EntryNode { return c.entryNode }

// ExitNode returns the current ExitNode runtime record, or nil.
func (c *Core) ExitNode() *session.ExitNode { return c.exitNode }

// SetIssue records msg for kind, replacing any prior message of the same
// kind (spec.md §7).
func (c *Core) SetIssue(kind IssueKind, msg string) {
	c.issues.set(kind, msg)
}

// ClearIssue removes any recorded message for kind.
func (c *Core) ClearIssue(kind IssueKind) {
	c.issues.clear(kind)
}

// Issues returns a copy of the currently recorded issues, keyed by kind.
func (c *Core) Issues() map[IssueKind]string {
	out := make(map[IssueKind]string, len(c.issues))
	for k, v := range c.issues {
		out[k] = v
	}

	return out
}

// SetConfigDefault records whether the running configuration fell back to
// defaults after a load error (spec.md §7 IssueConfig).
func (c *Core) SetConfigDefault(isDefault bool) {
	c.configDefault = isDefault
}

// ConfigDefault reports whether the running configuration is the built-in
// default rather than a successfully loaded file.
func (c *Core) ConfigDefault() bool {
	return c.configDefault
}

// openPreconditionMet reports whether Opening may begin: both records
// present and State is Idle (invariant 5).
func (c *Core) openPreconditionMet() bool {
	return c.state == Idle && c.entryNode != nil && c.exitNode != nil
}

// transition moves Core to newState, recording the entry time.
func (c *Core) transition(newState State) {
	c.state = newState
	c.stateStartedAt = time.Now()
}

// cancelLiveness cancels and clears the liveness handle, if any (invariant 3).
func (c *Core) cancelLiveness() {
	if c.livenessCancel != nil {
		c.livenessCancel()
		c.livenessCancel = nil
	}
}

// cancelAllSlotTimers cancels every live retry handle across all four slots
// (invariant 4).
func (c *Core) cancelAllSlotTimers() {
	for _, slot := range c.slots {
		slot.Cancel()
	}
}

// cancelAllTimers cancels liveness and every slot retry timer — the full
// set named in spec.md §5 ("addresses, open_session, list_sessions,
// close_session, liveness").
func (c *Core) cancelAllTimers() {
	c.cancelLiveness()
	c.cancelAllSlotTimers()
}
