package engine

import (
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/backoff"
	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
	"github.com/gnosisvpn/gnosisvpnd/internal/remote"
	"github.com/gnosisvpn/gnosisvpnd/internal/session"
)

// EventEnvelope is the single type flowing through the reducer's inbound
// channel (spec.md §4.7, §5): commands from the control surface and
// results from workers/timers/the config watcher all arrive this way, so
// the reducer is the sole consumer of one channel.
type EventEnvelope struct {
	Command         *CommandEvent
	Remote          *RemoteEvent
	WireGuard       *WireGuardParams
	SessionDefaults *SessionDefaultsParams
	CheckSession    bool
	ConfigChanged   bool
	Shutdown        bool
}

// SessionDefaultsParams carries the `connection.target`/`connection.
// capabilities` config tables (spec.md §3) into the reducer. These are
// static per-config session-shaping parameters, not part of the EntryNode/
// ExitNode command payloads (spec.md §6 Command JSON shape), so they are
// posted separately from CommandEntryNode, the same way WireGuardParams is.
type SessionDefaultsParams struct {
	Target       session.Target
	Capabilities []session.Capability
}

// WireGuardParams carries the `wireguard` config table (spec.md §3) into
// the reducer so ActionProgramWireGuard has the local interface and peer
// parameters to program. Posted once at startup and again on every config
// reload.
type WireGuardParams struct {
	PrivateKey      string
	Address         string
	AllowedIPs      string
	ServerPublicKey string
	PresharedKey    string
}

// CommandKind identifies which Command variant a CommandEvent carries.
type CommandKind uint8

const (
	// CommandStatus requests a Status snapshot.
	CommandStatus CommandKind = iota
	// CommandEntryNode replaces the EntryNode runtime record.
	CommandEntryNode
	// CommandExitNode replaces the ExitNode runtime record.
	CommandExitNode
)

// EntryNodeParams carries the literal EntryNode command payload, spec.md §6.
type EntryNodeParams struct {
	Endpoint       string
	APIToken       string
	ListenHost     string
	Hop            *uint8
	IntermediateID *peerid.ID
}

// CommandEvent carries a decoded Command and the channel to send its
// result back on (spec.md §4.8: "only the Status command produces a
// response").
type CommandEvent struct {
	Kind       CommandKind
	EntryNode  EntryNodeParams
	ExitNodeID peerid.ID
	Result     chan<- string
}

// RemoteOutcome is which of Response/Error/Retry a RemoteEvent carries.
type RemoteOutcome uint8

const (
	// OutcomeResponse means the call succeeded and Response fields are set.
	OutcomeResponse RemoteOutcome = iota
	// OutcomeError means the call failed.
	OutcomeError
	// OutcomeRetry means a scheduled retry timer fired; re-dispatch.
	OutcomeRetry
)

// RemoteEvent reports the terminal outcome of one call kind (spec.md §4.7).
type RemoteEvent struct {
	Kind    backoff.Kind
	Outcome RemoteOutcome

	Addresses  session.Addresses
	Session    session.Session
	Sessions   []session.Session
	Err        *remote.CallError
	ObservedAt time.Time
}
