// Package session defines the runtime record types shared between the
// engine and the HTTP call layer: Session, EntryNode, ExitNode, Path,
// Target and Capability, per spec.md §3.
package session

import (
	"net/url"
	"strings"

	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
)

// Session is the mixnet UDP forwarding returned by the entry node's
// open_session call (spec.md §3).
type Session struct {
	IP       string `json:"ip"`
	Port     uint16 `json:"port"`
	Protocol string `json:"protocol"`
	Target   string `json:"target"`
}

// identity returns the comparison tuple used by Equal/VerifyOpen: ip, port
// and protocol are compared verbatim, target is compared case-insensitively
// (spec.md §3, §4.6).
func (s Session) identity() (string, uint16, string, string) {
	return s.IP, s.Port, s.Protocol, strings.ToLower(s.Target)
}

// Equal reports whether two sessions share the same identity tuple.
func (s Session) Equal(other Session) bool {
	return s.identity() == other.identity()
}

// VerifyOpen reports whether s is present in sessions by identity tuple
// (spec.md §4.6 verify_open). Reflexive: VerifyOpen is true for a slice
// containing s itself, including when target casing differs.
func (s Session) VerifyOpen(sessions []Session) bool {
	for _, candidate := range sessions {
		if s.Equal(candidate) {
			return true
		}
	}

	return false
}

// String renders the session for logging.
func (s Session) String() string {
	return s.IP + ":" + portString(s.Port) + " " + s.Protocol + " " + s.Target
}

func portString(p uint16) string {
	const base = 10

	return itoa(int(p), base)
}

// itoa avoids importing strconv solely for one call site; kept trivial and
// allocation-light.
func itoa(n, base int) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte

	i := len(buf)
	for n > 0 {
		i--
		buf[i] = "0123456789"[n%base]
		n /= base
	}

	return string(buf[i:])
}

// Path selects mixnet routing: either a hop count or an explicit ordered
// list of intermediate peer identities (spec.md §3).
type Path struct {
	// Hops is set when this path is a hop-count selection (0..3).
	Hops *uint8
	// Intermediates is set when this path is an explicit route.
	Intermediates []peerid.ID
}

// HopPath constructs a Hop(n) path selection.
func HopPath(n uint8) Path {
	return Path{Hops: &n}
}

// IntermediatesPath constructs an Intermediates([...]) path selection.
func IntermediatesPath(ids []peerid.ID) Path {
	return Path{Intermediates: ids}
}

// IsHop reports whether this path is a Hop(n) selection.
func (p Path) IsHop() bool {
	return p.Hops != nil
}

// TargetType is the entry-node session target framing (spec.md §3).
type TargetType string

const (
	// TargetPlain is the default, unencrypted target framing.
	TargetPlain TargetType = "Plain"
	// TargetSealed requests sealed framing.
	TargetSealed TargetType = "Sealed"
)

// Target describes the destination the entry node forwards decapsulated
// traffic to.
type Target struct {
	Type TargetType
	Host string
	Port uint16
}

// DefaultTargetHost is the default session target host
// (original_source/gnosis-vpn-lib/src/config.rs: config::default_session_target_host).
const DefaultTargetHost = "wg-server"

// DefaultTargetPort is the default session target port.
const DefaultTargetPort uint16 = 51820

// Capability is a session feature flag (spec.md §3, glossary).
type Capability string

const (
	// CapabilitySegmentation enables segmentation.
	CapabilitySegmentation Capability = "Segmentation"
	// CapabilityRetransmission enables retransmission.
	CapabilityRetransmission Capability = "Retransmission"
)

// DefaultCapabilities is used when connection.capabilities is unset.
func DefaultCapabilities() []Capability {
	return []Capability{CapabilitySegmentation}
}

// EntryNode is the runtime record for the configured entry node
// (spec.md §3). Addresses is the cached get_addresses result; it is
// cleared whenever the EntryNode is replaced (invariant 6).
type EntryNode struct {
	Endpoint   *url.URL
	APIToken   string
	Path       Path
	ListenHost string

	Addresses *Addresses
}

// Addresses is the cached result of the get_addresses call.
type Addresses struct {
	Hopr   string `json:"hopr"`
	Native string `json:"native"`
}

// Redacted returns the endpoint and api_token fields as a map safe to log:
// the API token is rendered as "*****", matching original_source's
// EntryNode Display impl.
func (e EntryNode) Redacted() map[string]string {
	endpoint := ""
	if e.Endpoint != nil {
		endpoint = e.Endpoint.String()
	}

	return map[string]string{
		"endpoint":  endpoint,
		"api_token": "*****",
	}
}

// ExitNode is the runtime record for the configured exit node (spec.md §3).
type ExitNode struct {
	Peer peerid.ID
}
