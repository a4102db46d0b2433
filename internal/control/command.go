// Package control implements the UNIX domain socket control plane
// gnosisvpnctl uses to drive the daemon: connect, write one JSON-encoded
// Command, half-close, read the Response to EOF, close (spec.md §6).
// Grounded on the teacher's cmd/gobfdctl client/server split, adapted from
// ConnectRPC over TCP to a UNIX socket with the original's
// gnosis-vpn-lib/src/command.rs externally-tagged Command enum.
package control

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
)

// CommandKind identifies which Command variant is encoded.
type CommandKind string

const (
	// KindStatus requests a Status snapshot.
	KindStatus CommandKind = "Status"
	// KindEntryNode replaces the EntryNode runtime record.
	KindEntryNode CommandKind = "EntryNode"
	// KindExitNode replaces the ExitNode runtime record.
	KindExitNode CommandKind = "ExitNode"
)

// errUnknownCommand is returned by UnmarshalJSON for an unrecognized
// variant name.
var errUnknownCommand = errors.New("control: unknown command variant")

// Command is one request sent over the control socket, externally tagged
// by variant name per spec.md §6: the bare string "Status", or a
// single-key object {"EntryNode": {...}} / {"ExitNode": {...}}.
type Command struct {
	Kind      CommandKind
	EntryNode *EntryNodeInput
	ExitNode  *ExitNodeInput
}

// EntryNodeInput is the EntryNode command payload, spec.md §6.
type EntryNodeInput struct {
	Endpoint       string  `json:"endpoint"`
	APIToken       string  `json:"api_token"`
	ListenHost     *string `json:"listen_host"`
	Hop            *uint8  `json:"hop"`
	IntermediateID *string `json:"intermediate_id"`
}

// ExitNodeInput is the ExitNode command payload, spec.md §6.
type ExitNodeInput struct {
	PeerID string `json:"peer_id"`
}

// MarshalJSON renders c per the externally-tagged wire shape.
func (c Command) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindStatus:
		return json.Marshal("Status")
	case KindEntryNode:
		return json.Marshal(map[string]*EntryNodeInput{"EntryNode": c.EntryNode})
	case KindExitNode:
		return json.Marshal(map[string]*ExitNodeInput{"ExitNode": c.ExitNode})
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownCommand, c.Kind)
	}
}

// UnmarshalJSON decodes c from the externally-tagged wire shape.
func (c *Command) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		if bare != string(KindStatus) {
			return fmt.Errorf("%w: %q", errUnknownCommand, bare)
		}

		c.Kind = KindStatus

		return nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("control: decode command: %w", err)
	}

	if raw, ok := envelope[string(KindEntryNode)]; ok {
		var in EntryNodeInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return fmt.Errorf("control: decode EntryNode payload: %w", err)
		}

		c.Kind = KindEntryNode
		c.EntryNode = &in

		return nil
	}

	if raw, ok := envelope[string(KindExitNode)]; ok {
		var in ExitNodeInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return fmt.Errorf("control: decode ExitNode payload: %w", err)
		}

		c.Kind = KindExitNode
		c.ExitNode = &in

		return nil
	}

	return fmt.Errorf("%w: %v", errUnknownCommand, envelope)
}

// Redacted returns a copy of the Command safe to log: the API token is
// rendered as "*****", mirroring session.EntryNode.Redacted.
func (c Command) Redacted() Command {
	if c.EntryNode == nil {
		return c
	}

	redacted := *c.EntryNode
	redacted.APIToken = "*****"
	c.EntryNode = &redacted

	return c
}

// Response is the wire shape of one reply sent over the control socket.
type Response struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// parseIntermediate decodes the optional intermediate_id string into a
// peerid.ID, returning nil when unset.
func parseIntermediate(raw *string) (*peerid.ID, error) {
	if raw == nil {
		return nil, nil //nolint:nilnil // absence is a valid, distinct outcome from a parse error.
	}

	id, err := peerid.Parse(*raw)
	if err != nil {
		return nil, err
	}

	return &id, nil
}
