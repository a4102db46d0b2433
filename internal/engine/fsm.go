// Package engine implements the session control engine (spec.md §4.6-4.7):
// a pure finite-state machine over a transition table, driven by a
// single-owner event reducer.
package engine

// This file implements the session lifecycle FSM (spec.md §4.6). Like the
// teacher's internal/bfd/fsm.go, the FSM is a pure function over a
// transition table: no side effects, no Core dependency. The reducer
// executes the returned Actions and owns all state.
//
// State diagram (spec.md §4.6):
//
//	Idle —[OpenPrecondition]→ Opening
//	Opening —[OpenSessionSuccess]→ Monitoring
//	Opening —[OpenSessionFailureTerminal]→ Idle
//	Monitoring —[CheckSessionTick]→ Monitoring
//	Monitoring —[ListSessionsAlive]→ Monitoring
//	Monitoring —[ListSessionsGone]→ Idle
//	Monitoring —[ListSessionsFailureTerminal]→ Closing
//	Monitoring —[ExternalChange]→ Closing
//	Closing —[CloseSessionSuccess]→ Idle
//	Closing —[CloseSessionFailureTerminal]→ Idle

// State is one of the four session lifecycle states (spec.md §3 Status).
type State uint8

const (
	// Idle means no session is open or being negotiated.
	Idle State = iota
	// Opening means get_addresses/open_session are in flight.
	Opening
	// Monitoring means a Session is open and being liveness-checked.
	Monitoring
	// Closing means close_session is in flight.
	Closing
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Opening:
		return "Opening"
	case Monitoring:
		return "Monitoring"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// Event is a session-lifecycle FSM event (spec.md §4.6).
type Event uint8

const (
	// EventOpenPrecondition fires once an EntryNode and ExitNode record are
	// both present and Status is Idle (invariant 5).
	EventOpenPrecondition Event = iota
	// EventOpenSessionSuccess fires when the open_session call succeeds.
	EventOpenSessionSuccess
	// EventOpenSessionFailureTerminal fires when the open_session slot's
	// backoff is exhausted.
	EventOpenSessionFailureTerminal
	// EventCheckSessionTick fires on the liveness timer.
	EventCheckSessionTick
	// EventListSessionsAlive fires when list_sessions succeeds and
	// verify_open reports the session is still present.
	EventListSessionsAlive
	// EventListSessionsGone fires when list_sessions succeeds and
	// verify_open reports the session has disappeared.
	EventListSessionsGone
	// EventListSessionsFailureTerminal fires when the list_sessions slot's
	// backoff is exhausted.
	EventListSessionsFailureTerminal
	// EventExternalChange fires when a Command or ConfigChanged replaces
	// the EntryNode or ExitNode record while Monitoring.
	EventExternalChange
	// EventCloseSessionSuccess fires when the close_session call succeeds.
	EventCloseSessionSuccess
	// EventCloseSessionFailureTerminal fires when the close_session slot's
	// backoff is exhausted.
	EventCloseSessionFailureTerminal
)

// String returns the human-readable name of the event.
func (e Event) String() string {
	switch e {
	case EventOpenPrecondition:
		return "OpenPrecondition"
	case EventOpenSessionSuccess:
		return "OpenSessionSuccess"
	case EventOpenSessionFailureTerminal:
		return "OpenSessionFailureTerminal"
	case EventCheckSessionTick:
		return "CheckSessionTick"
	case EventListSessionsAlive:
		return "ListSessionsAlive"
	case EventListSessionsGone:
		return "ListSessionsGone"
	case EventListSessionsFailureTerminal:
		return "ListSessionsFailureTerminal"
	case EventExternalChange:
		return "ExternalChange"
	case EventCloseSessionSuccess:
		return "CloseSessionSuccess"
	case EventCloseSessionFailureTerminal:
		return "CloseSessionFailureTerminal"
	default:
		return "Unknown"
	}
}

// Action describes a side-effect the reducer must execute after a
// transition. The FSM itself performs no effects; it only reports which
// ones apply.
type Action uint8

const (
	// ActionDispatchGetAddresses dispatches get_addresses if not cached.
	ActionDispatchGetAddresses Action = iota + 1
	// ActionDispatchOpenSession dispatches open_session.
	ActionDispatchOpenSession
	// ActionCacheSession stores the opened Session on the Core.
	ActionCacheSession
	// ActionProgramWireGuard invokes the WireGuard capability synchronously.
	ActionProgramWireGuard
	// ActionScheduleLiveness schedules the first liveness timer.
	ActionScheduleLiveness
	// ActionDispatchListSessions dispatches list_sessions.
	ActionDispatchListSessions
	// ActionRescheduleLiveness schedules the next liveness timer.
	ActionRescheduleLiveness
	// ActionDropSession clears the cached Session.
	ActionDropSession
	// ActionEvaluateOpening re-checks the Opening precondition (invariant 5)
	// and, if met, dispatches a fresh Opening attempt.
	ActionEvaluateOpening
	// ActionDispatchCloseSession dispatches close_session.
	ActionDispatchCloseSession
	// ActionCancelAllTimers cancels every live retry/liveness handle
	// (invariant 4).
	ActionCancelAllTimers
)

// String returns the human-readable name of the action.
func (a Action) String() string {
	switch a {
	case ActionDispatchGetAddresses:
		return "DispatchGetAddresses"
	case ActionDispatchOpenSession:
		return "DispatchOpenSession"
	case ActionCacheSession:
		return "CacheSession"
	case ActionProgramWireGuard:
		return "ProgramWireGuard"
	case ActionScheduleLiveness:
		return "ScheduleLiveness"
	case ActionDispatchListSessions:
		return "DispatchListSessions"
	case ActionRescheduleLiveness:
		return "RescheduleLiveness"
	case ActionDropSession:
		return "DropSession"
	case ActionEvaluateOpening:
		return "EvaluateOpening"
	case ActionDispatchCloseSession:
		return "DispatchCloseSession"
	case ActionCancelAllTimers:
		return "CancelAllTimers"
	default:
		return "Unknown"
	}
}

// stateEvent is the FSM transition table key.
type stateEvent struct {
	state State
	event Event
}

// transition describes the target state and side-effects for one
// (state, event) pair.
type transition struct {
	newState State
	actions  []Action
}

// Result holds the outcome of applying an event to the FSM.
type Result struct {
	OldState State
	NewState State
	Actions  []Action
	Changed  bool
}

//nolint:gochecknoglobals // transition table is intentionally package-level, mirrors the teacher's fsmTable.
var fsmTable = map[stateEvent]transition{
	{Idle, EventOpenPrecondition}: {
		newState: Opening,
		actions:  []Action{ActionDispatchGetAddresses, ActionDispatchOpenSession},
	},
	{Opening, EventOpenSessionSuccess}: {
		newState: Monitoring,
		actions:  []Action{ActionCacheSession, ActionProgramWireGuard, ActionScheduleLiveness},
	},
	{Opening, EventOpenSessionFailureTerminal}: {
		newState: Idle,
		actions:  nil,
	},
	{Monitoring, EventCheckSessionTick}: {
		newState: Monitoring,
		actions:  []Action{ActionDispatchListSessions},
	},
	{Monitoring, EventListSessionsAlive}: {
		newState: Monitoring,
		actions:  []Action{ActionRescheduleLiveness},
	},
	{Monitoring, EventListSessionsGone}: {
		newState: Idle,
		actions:  []Action{ActionDropSession, ActionEvaluateOpening},
	},
	{Monitoring, EventListSessionsFailureTerminal}: {
		newState: Closing,
		actions:  []Action{ActionDispatchCloseSession},
	},
	{Monitoring, EventExternalChange}: {
		newState: Closing,
		actions:  []Action{ActionCancelAllTimers, ActionDispatchCloseSession},
	},
	{Closing, EventCloseSessionSuccess}: {
		newState: Idle,
		actions:  []Action{ActionDropSession, ActionEvaluateOpening},
	},
	{Closing, EventCloseSessionFailureTerminal}: {
		newState: Idle,
		actions:  []Action{ActionDropSession},
	},
}

// Apply looks up the transition for (state, event) and returns the result.
// An unlisted pair is a no-op: the state is unchanged and no actions fire,
// mirroring the teacher's "unlisted pairs are silently ignored" fsmTable
// convention.
func Apply(state State, event Event) Result {
	t, ok := fsmTable[stateEvent{state, event}]
	if !ok {
		return Result{OldState: state, NewState: state}
	}

	return Result{
		OldState: state,
		NewState: t.newState,
		Actions:  t.actions,
		Changed:  t.newState != state,
	}
}
