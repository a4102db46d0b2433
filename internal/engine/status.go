package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// renderStatus builds the human-readable Status command response (spec.md
// §4.8): current state, the live entry/exit node records, the open
// session if any, and any outstanding issues. Grounded on the teacher's
// SessionSnapshot rendering in internal/bfd/manager.go, adapted from a
// struct to a flat text block since gnosisvpnctl prints it directly rather
// than re-serializing it.
func (r *Reducer) renderStatus() string {
	var b strings.Builder

	fmt.Fprintf(&b, "state: %s\n", r.core.State())

	if r.core.State() == Monitoring {
		since := r.core.stateStartedAt
		fmt.Fprintf(&b, "monitoring session since %s (%s)\n", since.Format(time.RFC3339), humanize.Time(since))
	}

	if r.core.configDefault {
		b.WriteString("config: using built-in defaults\n")
	}

	if en := r.core.entryNode; en != nil {
		fmt.Fprintf(&b, "entry node: %s\n", en.Redacted()["endpoint"])

		if en.Addresses != nil {
			fmt.Fprintf(&b, "  addresses: hopr=%s native=%s\n", en.Addresses.Hopr, en.Addresses.Native)
		}
	} else {
		b.WriteString("entry node: none\n")
	}

	if xn := r.core.exitNode; xn != nil {
		fmt.Fprintf(&b, "exit node: %s\n", xn.Peer.String())
	} else {
		b.WriteString("exit node: none\n")
	}

	if s := r.core.session; s != nil {
		fmt.Fprintf(&b, "session: %s\n", s.String())
	} else {
		b.WriteString("session: none\n")
	}

	r.renderSlots(&b)
	r.renderIssues(&b)

	return b.String()
}

func (r *Reducer) renderSlots(b *strings.Builder) {
	for _, slot := range r.core.slots {
		fmt.Fprintf(b, "call[%s]: %s\n", slot.Kind(), slot.Phase())
	}
}

func (r *Reducer) renderIssues(b *strings.Builder) {
	issues := r.core.Issues()
	if len(issues) == 0 {
		return
	}

	b.WriteString("issues:\n")

	for kind, msg := range issues {
		fmt.Fprintf(b, "  %s: %s\n", kind, msg)
	}
}
