package engine

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/backoff"
	"github.com/gnosisvpn/gnosisvpnd/internal/httpapi"
	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
	"github.com/gnosisvpn/gnosisvpnd/internal/remote"
	"github.com/gnosisvpn/gnosisvpnd/internal/scheduler"
	"github.com/gnosisvpn/gnosisvpnd/internal/session"
	"github.com/gnosisvpn/gnosisvpnd/internal/vpnmetrics"
	"github.com/gnosisvpn/gnosisvpnd/internal/wireguard"
)

// errNoEntryNode is reported as a synthetic call failure when a dispatch is
// requested before any EntryNode command has configured an HTTP client.
var errNoEntryNode = errors.New("engine: no entry node configured")

// Reducer is the single goroutine that owns Core and drives it forward by
// applying the FSM to events arriving on Inbound, exactly as the teacher's
// bfd.Session.Run owns one session's state via its own select loop
// (internal/bfd/session.go runLoop). Every other goroutine in the daemon —
// HTTP call workers, the scheduler's AfterFunc timers, the control socket,
// the config watcher — only ever produces EventEnvelope values onto
// Inbound; none of them touch Core directly (spec.md §5).
type Reducer struct {
	core      *Core
	sched     *scheduler.Scheduler
	wireguard wireguard.Capability

	client          *httpapi.Client
	wgParams        WireGuardParams
	sessionDefaults SessionDefaultsParams

	metrics          *vpnmetrics.Collector
	sessionStartedAt time.Time

	Inbound chan EventEnvelope

	logger *slog.Logger
}

// NewReducer returns a Reducer in the Idle state with no client configured;
// a CommandEntryNode event builds the first httpapi.Client. metrics may be
// nil, in which case no metrics are recorded (tests construct Reducers this
// way).
func NewReducer(logger *slog.Logger, wg wireguard.Capability, metrics *vpnmetrics.Collector) *Reducer {
	return &Reducer{
		core:      NewCore(),
		sched:     scheduler.New(),
		wireguard: wg,
		metrics:   metrics,
		Inbound:   make(chan EventEnvelope, 16),
		logger:    logger.With(slog.String("component", "engine.reducer")),
	}
}

// Core exposes the owned state for read-only inspection by the Status
// command handler. Callers outside the reducer goroutine must not call any
// Core mutator.
func (r *Reducer) Core() *Core { return r.core }

// Run blocks processing events from Inbound until ctx is cancelled.
func (r *Reducer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reducer stopped")
			return

		case env := <-r.Inbound:
			r.handle(ctx, env)
		}
	}
}

// handle dispatches one EventEnvelope to the appropriate sub-handler. Every
// producer sets a single field; if several were set, only the first match in
// the switch below is handled.
func (r *Reducer) handle(ctx context.Context, env EventEnvelope) {
	switch {
	case env.Shutdown:
		r.handleShutdown()
	case env.Command != nil:
		r.handleCommand(ctx, env.Command)
	case env.Remote != nil:
		r.handleRemote(ctx, env.Remote)
	case env.WireGuard != nil:
		r.wgParams = *env.WireGuard
	case env.SessionDefaults != nil:
		r.sessionDefaults = *env.SessionDefaults
	case env.CheckSession:
		r.applyEvent(ctx, EventCheckSessionTick)
	case env.ConfigChanged:
		r.handleConfigChanged(ctx)
	}
}

func (r *Reducer) handleShutdown() {
	r.core.cancelAllTimers()
	r.logger.Info("shutdown requested")
}

// handleCommand applies a Status/EntryNode/ExitNode command, per spec.md
// §4.7-§4.8.
func (r *Reducer) handleCommand(ctx context.Context, cmd *CommandEvent) {
	switch cmd.Kind {
	case CommandStatus:
		if cmd.Result != nil {
			cmd.Result <- r.renderStatus()
		}
	case CommandEntryNode:
		r.applyEntryNode(ctx, cmd.EntryNode)
	case CommandExitNode:
		r.applyExitNode(ctx, cmd.ExitNodeID)
	}
}

// applyEntryNode implements the EntryNode command verbatim (spec.md §4.7,
// §6): replace the runtime record (invariant 6: Addresses is always
// cleared), rebuild the HTTP client against the new endpoint, then drive
// the dispatch literally rather than only through the Idle-gated opening
// precondition:
//   - Monitoring: close first (EventExternalChange); the resulting Idle
//     transition re-evaluates the opening precondition on its own.
//   - Idle with an ExitNode already present: both records are now known,
//     so this is the normal Idle->Opening transition (EventOpenPrecondition
//     dispatches get_addresses — always, since Addresses was just cleared —
//     and open_session).
//   - Idle with no ExitNode yet: only get_addresses is dispatched, as a
//     prefetch; Status stays Idle until an ExitNode arrives.
//   - Opening/Closing: get_addresses is redispatched unconditionally, and
//     open_session too if an ExitNode is present — independent of
//     invariant 5 — so replacing the EntryNode mid-Opening (scenario S3)
//     cancels the in-flight/backed-off call via Slot.Dispatch and restarts
//     it against the new client instead of leaving a stale retry timer
//     armed against the old one.
func (r *Reducer) applyEntryNode(ctx context.Context, p EntryNodeParams) {
	endpoint, err := url.Parse(p.Endpoint)
	if err != nil {
		r.core.SetIssue(IssueConfig, "invalid entry node endpoint: "+err.Error())
		return
	}

	path := entryNodePath(p)

	r.core.entryNode = &session.EntryNode{
		Endpoint:   endpoint,
		APIToken:   p.APIToken,
		Path:       path,
		ListenHost: p.ListenHost,
		Addresses:  nil,
	}

	r.client = httpapi.NewClient(endpoint, p.APIToken)

	switch r.core.State() {
	case Monitoring:
		r.applyEvent(ctx, EventExternalChange)

	case Idle:
		if r.core.exitNode != nil {
			r.applyEvent(ctx, EventOpenPrecondition)
			return
		}

		r.dispatchCall(ctx, backoff.KindGetAddresses)

	default:
		r.dispatchCall(ctx, backoff.KindGetAddresses)

		if r.core.exitNode != nil {
			r.dispatchCall(ctx, backoff.KindOpenSession)
		}
	}
}

// applyExitNode implements the ExitNode command verbatim (spec.md §4.7,
// §6): symmetric to applyEntryNode. Monitoring closes first; Idle with an
// EntryNode already present goes through the normal Idle->Opening
// transition; any other state (including Idle with no EntryNode yet, or a
// mid-Opening replacement) redispatches open_session directly iff an
// EntryNode is configured.
func (r *Reducer) applyExitNode(ctx context.Context, peer peerid.ID) {
	r.core.exitNode = &session.ExitNode{Peer: peer}

	switch r.core.State() {
	case Monitoring:
		r.applyEvent(ctx, EventExternalChange)

	case Idle:
		if r.core.entryNode != nil {
			r.applyEvent(ctx, EventOpenPrecondition)
		}

	default:
		if r.core.entryNode != nil {
			r.dispatchCall(ctx, backoff.KindOpenSession)
		}
	}
}

func entryNodePath(p EntryNodeParams) session.Path {
	if p.IntermediateID != nil {
		return session.IntermediatesPath([]peerid.ID{*p.IntermediateID})
	}

	if p.Hop != nil {
		return session.HopPath(*p.Hop)
	}

	return session.Path{}
}

// afterExternalChange runs after an EntryNode/ExitNode command or a
// ConfigChanged reload: per spec.md §4.6, this is EventExternalChange while
// Monitoring, or an opening re-evaluation otherwise.
func (r *Reducer) afterExternalChange(ctx context.Context) {
	if r.core.State() == Monitoring {
		r.applyEvent(ctx, EventExternalChange)
		return
	}

	r.evaluateOpening(ctx)
}

// handleConfigChanged re-reads entry/exit node records is the caller's
// responsibility (done before posting ConfigChanged); here the reducer
// only reacts to the fact that something changed, per spec.md §4.7.
func (r *Reducer) handleConfigChanged(ctx context.Context) {
	r.afterExternalChange(ctx)
}

// handleRemote applies the outcome of one dispatched call to its slot and
// advances the FSM accordingly (spec.md §4.1, §4.6, §4.7). A Response or
// Error arriving while the slot is not Fetching is an invariant violation
// (spec.md §4.1, §7, §9 — e.g. a stray event for a slot already Reset by
// ActionDropSession) and is logged and ignored rather than applied.
func (r *Reducer) handleRemote(ctx context.Context, ev *RemoteEvent) {
	slot := r.core.Slot(ev.Kind)

	switch ev.Outcome {
	case OutcomeResponse:
		if slot.Phase() != remote.Fetching {
			r.logStaleRemoteEvent(ev, slot)
			return
		}

		slot.Succeed()
		r.handleRemoteSuccess(ctx, ev)

	case OutcomeError:
		if slot.Phase() != remote.Fetching {
			r.logStaleRemoteEvent(ev, slot)
			return
		}

		slot.Fail(ev.Err, r.retryScheduler(ev.Kind))
		if slot.Phase() == remote.Failure {
			r.applyEvent(ctx, terminalEventFor(ev.Kind))
		} else if r.metrics != nil {
			r.metrics.IncRetryAttempts(ev.Kind)
		}

	case OutcomeRetry:
		slot.Retry(ev.ObservedAt)
		r.dispatchCall(ctx, ev.Kind)
	}

	if r.metrics != nil {
		r.metrics.RecordSlotPhase(ev.Kind, slot.Phase())
	}
}

// logStaleRemoteEvent records a Response/Error that arrived for a slot no
// longer expecting one (it was Reset, or a second terminal event arrived
// for the same dispatch).
func (r *Reducer) logStaleRemoteEvent(ev *RemoteEvent, slot *remote.Slot) {
	r.logger.Warn("remote event arrived while slot not Fetching, ignoring",
		slog.String("kind", ev.Kind.String()),
		slog.String("phase", slot.Phase().String()),
	)
}

func (r *Reducer) handleRemoteSuccess(ctx context.Context, ev *RemoteEvent) {
	switch ev.Kind {
	case backoff.KindGetAddresses:
		if r.core.entryNode != nil {
			r.core.entryNode.Addresses = &session.Addresses{Hopr: ev.Addresses.Hopr, Native: ev.Addresses.Native}
		}

	case backoff.KindOpenSession:
		r.core.session = &ev.Session
		r.sessionStartedAt = ev.ObservedAt
		r.applyEvent(ctx, EventOpenSessionSuccess)

	case backoff.KindListSessions:
		if r.core.session != nil && r.core.session.VerifyOpen(ev.Sessions) {
			if r.metrics != nil && !r.sessionStartedAt.IsZero() {
				r.metrics.SetSessionUptime(ev.ObservedAt.Sub(r.sessionStartedAt).Seconds())
			}

			r.applyEvent(ctx, EventListSessionsAlive)
		} else {
			r.applyEvent(ctx, EventListSessionsGone)
		}

	case backoff.KindCloseSession:
		r.applyEvent(ctx, EventCloseSessionSuccess)
	}
}

// terminalEventFor maps a slot kind whose backoff is exhausted to its FSM
// terminal-failure event, per spec.md §4.6.
func terminalEventFor(kind backoff.Kind) Event {
	switch kind {
	case backoff.KindOpenSession:
		return EventOpenSessionFailureTerminal
	case backoff.KindListSessions:
		return EventListSessionsFailureTerminal
	case backoff.KindCloseSession:
		return EventCloseSessionFailureTerminal
	default:
		return EventOpenSessionFailureTerminal
	}
}

// retryScheduler builds the schedule callback Slot.Fail expects: it arms a
// scheduler timer that, once fired, posts an OutcomeRetry event for kind
// back onto Inbound, and returns a remote.CancelFunc wrapping the
// scheduler's own handle (the two packages define distinct named func()
// types for the same concept, so the reducer is the one place that bridges
// them).
func (r *Reducer) retryScheduler(kind backoff.Kind) func(time.Duration) remote.CancelFunc {
	return func(delay time.Duration) remote.CancelFunc {
		cancel := r.sched.ScheduleRetry(delay, func(fired time.Time) {
			r.Inbound <- EventEnvelope{Remote: &RemoteEvent{Kind: kind, Outcome: OutcomeRetry, ObservedAt: fired}}
		})

		return remote.CancelFunc(cancel)
	}
}

// applyEvent applies event to the FSM and executes the resulting actions.
func (r *Reducer) applyEvent(ctx context.Context, event Event) {
	result := Apply(r.core.State(), event)
	if result.Changed {
		r.logger.Info("state changed",
			slog.String("old", result.OldState.String()),
			slog.String("new", result.NewState.String()),
			slog.String("event", event.String()),
		)
		r.core.transition(result.NewState)

		if r.metrics != nil {
			r.metrics.RecordStateTransition(result.OldState.String(), result.NewState.String())
		}
	}

	for _, action := range result.Actions {
		r.executeAction(ctx, action)
	}
}

// executeAction performs one FSM-requested side effect. Mirrors the
// teacher's Session.executeAction switch in internal/bfd/session.go.
func (r *Reducer) executeAction(ctx context.Context, action Action) {
	switch action {
	case ActionDispatchGetAddresses:
		if r.core.entryNode == nil || r.core.entryNode.Addresses == nil {
			r.dispatchCall(ctx, backoff.KindGetAddresses)
		}

	case ActionDispatchOpenSession:
		r.dispatchCall(ctx, backoff.KindOpenSession)

	case ActionCacheSession:
		// Session is cached by handleRemoteSuccess before the FSM fires;
		// nothing further to do here.

	case ActionProgramWireGuard:
		r.programWireGuard(ctx)

	case ActionScheduleLiveness, ActionRescheduleLiveness:
		r.scheduleLiveness()

	case ActionDispatchListSessions:
		r.dispatchCall(ctx, backoff.KindListSessions)

	case ActionDropSession:
		r.core.session = nil
		r.sessionStartedAt = time.Time{}

		if r.metrics != nil {
			r.metrics.SetSessionUptime(0)
		}

		for _, kind := range []backoff.Kind{backoff.KindGetAddresses, backoff.KindOpenSession, backoff.KindListSessions, backoff.KindCloseSession} {
			r.core.Slot(kind).Reset()
		}

	case ActionEvaluateOpening:
		r.evaluateOpening(ctx)

	case ActionDispatchCloseSession:
		r.dispatchCall(ctx, backoff.KindCloseSession)

	case ActionCancelAllTimers:
		r.core.cancelAllTimers()
	}
}

// evaluateOpening re-checks invariant 5 and, if met, starts a fresh Opening
// attempt (spec.md §4.6 ActionEvaluateOpening).
func (r *Reducer) evaluateOpening(ctx context.Context) {
	if r.core.openPreconditionMet() {
		r.applyEvent(ctx, EventOpenPrecondition)
	}
}

func (r *Reducer) scheduleLiveness() {
	r.core.cancelLiveness()

	r.core.livenessCancel = r.sched.ScheduleLiveness(func(time.Time) {
		r.Inbound <- EventEnvelope{CheckSession: true}
	})
}

// programWireGuard invokes the configured WireGuard capability with the
// session's interface/peer parameters. A failure here is recorded as an
// IssueWireGuardOp and does not roll back the opened session (spec.md §4.5,
// §7: WireGuard programming is best-effort).
func (r *Reducer) programWireGuard(ctx context.Context) {
	if r.wireguard == nil || r.core.session == nil {
		return
	}

	cs := wireguard.ConnectSession{
		Interface: wireguard.Interface{
			PrivateKey: r.wgParams.PrivateKey,
			Address:    r.wgParams.Address,
			AllowedIPs: r.wgParams.AllowedIPs,
		},
		Peer: wireguard.Peer{
			PublicKey: r.wgParams.ServerPublicKey,
			Endpoint:  net.JoinHostPort(r.core.session.IP, strconv.Itoa(int(r.core.session.Port))),
		},
	}

	if err := r.wireguard.ConnectSession(ctx, cs); err != nil {
		r.core.SetIssue(IssueWireGuardOp, err.Error())

		if r.metrics != nil {
			r.metrics.IncWireGuardFailures()
		}

		return
	}

	r.core.ClearIssue(IssueWireGuardOp)
}

// dispatchCall marks the slot Fetching and spawns a one-shot worker
// goroutine that performs the call and posts its terminal RemoteEvent back
// onto Inbound. Every Core-derived input the worker needs (the client, the
// open_session request, the close_session ip/port) is read here, on the
// reducer goroutine, and passed into the worker as plain values — the
// worker itself never touches Core, matching the teacher's "sessions only
// ever post to rawNotifyCh" pattern and the single-owner rule (spec.md
// §4.3, §5).
func (r *Reducer) dispatchCall(ctx context.Context, kind backoff.Kind) {
	slot := r.core.Slot(kind)
	slot.Dispatch(time.Now())

	if r.metrics != nil {
		r.metrics.RecordSlotPhase(kind, slot.Phase())
	}

	client := r.client
	if client == nil {
		r.Inbound <- EventEnvelope{Remote: &RemoteEvent{
			Kind: kind, Outcome: OutcomeError,
			Err: &remote.CallError{Err: errNoEntryNode},
		}}

		return
	}

	switch kind {
	case backoff.KindGetAddresses:
		go r.callGetAddresses(ctx, client)

	case backoff.KindOpenSession:
		req := r.openSessionRequest()
		go r.callOpenSession(ctx, client, req)

	case backoff.KindListSessions:
		go r.callListSessions(ctx, client)

	case backoff.KindCloseSession:
		var ip string
		var port uint16
		if r.core.session != nil {
			ip, port = r.core.session.IP, r.core.session.Port
		}
		go r.callCloseSession(ctx, client, ip, port)
	}
}

func (r *Reducer) callGetAddresses(ctx context.Context, client *httpapi.Client) {
	addrs, err := client.GetAddresses(ctx)
	r.postCallResult(backoff.KindGetAddresses, err, func(ev *RemoteEvent) { ev.Addresses = addrs })
}

func (r *Reducer) callOpenSession(ctx context.Context, client *httpapi.Client, req httpapi.OpenSessionRequest) {
	sess, err := client.OpenSession(ctx, req)
	r.postCallResult(backoff.KindOpenSession, err, func(ev *RemoteEvent) { ev.Session = sess })
}

func (r *Reducer) callListSessions(ctx context.Context, client *httpapi.Client) {
	sessions, err := client.ListSessions(ctx)
	r.postCallResult(backoff.KindListSessions, err, func(ev *RemoteEvent) { ev.Sessions = sessions })
}

func (r *Reducer) callCloseSession(ctx context.Context, client *httpapi.Client, ip string, port uint16) {
	err := client.CloseSession(ctx, ip, port)
	r.postCallResult(backoff.KindCloseSession, err, func(*RemoteEvent) {})
}

func (r *Reducer) openSessionRequest() httpapi.OpenSessionRequest {
	req := httpapi.OpenSessionRequest{
		Target:       r.sessionDefaults.Target,
		Capabilities: r.sessionDefaults.Capabilities,
	}

	if len(req.Capabilities) == 0 {
		req.Capabilities = session.DefaultCapabilities()
	}

	if r.core.exitNode != nil {
		req.Destination = r.core.exitNode.Peer
	}

	if r.core.entryNode != nil {
		req.Path = r.core.entryNode.Path
		req.ListenHost = r.core.entryNode.ListenHost
	}

	return req
}

func (r *Reducer) postCallResult(kind backoff.Kind, callErr *remote.CallError, fill func(*RemoteEvent)) {
	ev := &RemoteEvent{Kind: kind, ObservedAt: time.Now()}

	if callErr != nil {
		ev.Outcome = OutcomeError
		ev.Err = callErr
	} else {
		ev.Outcome = OutcomeResponse
		fill(ev)
	}

	r.Inbound <- EventEnvelope{Remote: ev}
}
