// Package vpnmetrics exposes the daemon's runtime state as Prometheus
// metrics: per-call-kind backoff slot phase, session uptime, retry counts
// and WireGuard programming failures. Grounded on the teacher's
// internal/metrics.Collector, retargeted from BFD sessions to mixnet
// sessions (spec.md §7).
package vpnmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gnosisvpn/gnosisvpnd/internal/backoff"
	"github.com/gnosisvpn/gnosisvpnd/internal/remote"
)

// slotPhases lists every remote.Phase name, in declaration order, used to
// clear the one-hot SlotPhase gauge.
var slotPhases = []string{
	remote.NotAsked.String(), remote.Fetching.String(), remote.RetryFetching.String(),
	remote.Failure.String(), remote.Success.String(),
}

const (
	namespace = "gnosisvpn"
	subsystem = "daemon"
)

const labelKind = "kind"

// Collector holds all gnosisvpnd Prometheus metrics.
type Collector struct {
	// SlotPhase is 1 for the slot kind's current remote.Phase, 0 otherwise
	// (a one-hot gauge vec, since Phase is not naturally numeric).
	SlotPhase *prometheus.GaugeVec

	// RetryAttempts counts retry attempts per call kind (spec.md §4.5).
	RetryAttempts *prometheus.CounterVec

	// SessionUptimeSeconds is the duration of the current Monitoring-state
	// session in seconds; reset to 0 when no session is open.
	SessionUptimeSeconds prometheus.Gauge

	// WireGuardFailures counts failed ActionProgramWireGuard attempts
	// (spec.md §7 IssueWireGuardOp).
	WireGuardFailures prometheus.Counter

	// StateTransitions counts engine FSM state transitions, labeled with
	// old and new state, mirroring the teacher's StateTransitions counter.
	StateTransitions *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it against reg. If reg is
// nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.SlotPhase,
		c.RetryAttempts,
		c.SessionUptimeSeconds,
		c.WireGuardFailures,
		c.StateTransitions,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		SlotPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slot_phase",
			Help:      "One-hot gauge of the current remote.Phase per call kind, labeled kind=phase.",
		}, []string{labelKind, "phase"}),

		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retry_attempts_total",
			Help:      "Total retry attempts per call kind.",
		}, []string{labelKind}),

		SessionUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_uptime_seconds",
			Help:      "Seconds since the current session was opened; 0 when no session is open.",
		}),

		WireGuardFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "wireguard_failures_total",
			Help:      "Total failed attempts to program the WireGuard interface/peer.",
		}),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total engine FSM state transitions.",
		}, []string{"from_state", "to_state"}),
	}
}

// RecordSlotPhase sets the one-hot gauge for kind to phase, clearing the
// other known phase labels for that kind.
func (c *Collector) RecordSlotPhase(kind backoff.Kind, phase remote.Phase) {
	for _, p := range slotPhases {
		value := 0.0
		if p == phase.String() {
			value = 1.0
		}

		c.SlotPhase.WithLabelValues(kind.String(), p).Set(value)
	}
}

// IncRetryAttempts increments the retry counter for kind.
func (c *Collector) IncRetryAttempts(kind backoff.Kind) {
	c.RetryAttempts.WithLabelValues(kind.String()).Inc()
}

// SetSessionUptime records the current session uptime in seconds.
func (c *Collector) SetSessionUptime(seconds float64) {
	c.SessionUptimeSeconds.Set(seconds)
}

// IncWireGuardFailures increments the WireGuard programming failure counter.
func (c *Collector) IncWireGuardFailures() {
	c.WireGuardFailures.Inc()
}

// RecordStateTransition increments the state transition counter for the
// from->to state pair.
func (c *Collector) RecordStateTransition(from, to string) {
	c.StateTransitions.WithLabelValues(from, to).Inc()
}
