package engine

// IssueKind names one of the recoverable issue categories from spec.md §7.
// At most one issue of each kind is retained.
type IssueKind uint8

const (
	// IssueConfig is a config-provider error; the reducer proceeds with
	// defaults.
	IssueConfig IssueKind = iota
	// IssuePersistentState is a state-store read/write error.
	IssuePersistentState
	// IssueWireGuardInit is a WireGuard variant availability-probe failure.
	IssueWireGuardInit
	// IssueWireGuardOp is a WireGuard interface-programming failure; the
	// session continues without a local interface.
	IssueWireGuardOp
)

// String returns the human-readable name of the issue kind.
func (k IssueKind) String() string {
	switch k {
	case IssueConfig:
		return "config"
	case IssuePersistentState:
		return "persistent-state"
	case IssueWireGuardInit:
		return "wireguard-init"
	case IssueWireGuardOp:
		return "wireguard-op"
	default:
		return "unknown"
	}
}

// issues holds at most one recorded message per IssueKind (spec.md §7,
// §4.7 ConfigChanged: "Any Config error replaces the prior Config issue in
// the issue list (one of each kind retained)").
type issues map[IssueKind]string

// set records msg for kind, replacing any prior message of the same kind.
func (is issues) set(kind IssueKind, msg string) {
	is[kind] = msg
}

// clear removes any recorded message for kind.
func (is issues) clear(kind IssueKind) {
	delete(is, kind)
}
