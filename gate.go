package flockgate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flockhq/flockgate/internal/rate"
	"github.com/flockhq/flockgate/route"
	"github.com/flockhq/flockgate/session"
)

const subscriberBuffer = 8

// pendingFederated tracks one federated round trip awaiting its callback.
// The attempt pin ties it to the mutation epoch that began it: any later
// mutation (sign-out, new attempt) invalidates the callback.
type pendingFederated struct {
	nonce   string
	attempt uint64
}

// Gate is the single source of truth for "who is logged in and with what
// role" within one browser context. It owns the Session exclusively; every
// other component reads snapshots and calls the mutators declared here.
//
// Gate instances are built through [Builder.Build] and are safe for
// concurrent use afterwards.
type Gate struct {
	config   Config
	provider IdentityProvider
	routes   *route.Table
	tokens   *session.Store
	limiter  *rate.Limiter
	audit    *auditDispatcher
	metrics  *Metrics

	mu        sync.Mutex
	state     State
	current   Session
	lastErr   *AuthError
	attempt   uint64
	inFlight  bool
	pending   pendingFederated
	subs      map[uint64]chan StateChange
	nextSubID uint64
}

// Close stops the audit dispatcher after draining queued events. The gate
// remains usable for synchronous reads but emits no further audit events.
func (g *Gate) Close() {
	if g == nil {
		return
	}
	if g.audit != nil {
		g.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped by a full buffer.
func (g *Gate) AuditDropped() uint64 {
	if g == nil || g.audit == nil {
		return 0
	}
	return g.audit.Dropped()
}

// MetricsSnapshot copies the gate's counters.
func (g *Gate) MetricsSnapshot() MetricsSnapshot {
	if g == nil || g.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return g.metrics.Snapshot()
}

func (g *Gate) metricInc(id MetricID) {
	if g == nil || g.metrics == nil {
		return
	}
	g.metrics.Inc(id)
}

// CurrentSession returns the live session snapshot; the zero (anonymous)
// session when none. Expiry is detected lazily here: a session past its
// expiry is demoted before the snapshot is taken. Never performs I/O.
func (g *Gate) CurrentSession() Session {
	if g == nil {
		return Session{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.expireLocked(time.Now())
	return g.current
}

// State returns the gate's position in the session lifecycle.
func (g *Gate) State() State {
	if g == nil {
		return StateAnonymous
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.expireLocked(time.Now())
	return g.state
}

// LastError returns the error of the most recent failed sign-in, or nil.
// It is cleared by [Gate.AcknowledgeError], a successful sign-in, or
// sign-out.
func (g *Gate) LastError() *AuthError {
	if g == nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// AcknowledgeError reverts a [StateFailed] gate to its prior stable state:
// [StateAuthenticated] when a valid session survived the failed attempt,
// [StateAnonymous] otherwise. A no-op in every other state; Failed is never
// sticky.
func (g *Gate) AcknowledgeError() {
	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateFailed {
		return
	}

	g.lastErr = nil
	g.revertLocked()
	g.notifyLocked()
}

// Subscribe registers a consumer for state-change notifications. The
// returned cancel func unregisters it. Sends never block: a slow consumer
// loses intermediate notifications, not the gate's progress.
func (g *Gate) Subscribe() (<-chan StateChange, func()) {
	ch := make(chan StateChange, subscriberBuffer)

	g.mu.Lock()
	id := g.nextSubID
	g.nextSubID++
	g.subs[id] = ch
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
	return ch, cancel
}

// notifyLocked fans the current state out to subscribers. Callers hold g.mu.
func (g *Gate) notifyLocked() {
	if len(g.subs) == 0 {
		return
	}

	change := StateChange{
		State:   g.state,
		Session: g.current,
		Err:     g.lastErr,
	}
	for _, ch := range g.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// expireLocked demotes a session past its expiry to anonymous. The persisted
// continuity token carries its own TTL, so no store round trip is needed
// here; the next restore re-verifies regardless. Callers hold g.mu.
func (g *Gate) expireLocked(now time.Time) {
	if g.current.Anonymous() || !g.current.Expired(now) {
		return
	}

	expired := g.current
	g.current = Session{}
	if g.state == StateAuthenticated {
		g.state = StateAnonymous
	}
	g.notifyLocked()

	g.metricInc(MetricSessionExpired)
	g.emit(context.Background(), AuditEvent{
		EventType: auditEventSessionExpired,
		UserID:    expired.UserID,
		Email:     expired.Email,
		Role:      expired.Role.String(),
	})
}

// revertLocked restores the stable state implied by the current session.
// Callers hold g.mu.
func (g *Gate) revertLocked() {
	now := time.Now()
	if !g.current.Anonymous() && !g.current.Expired(now) {
		g.state = StateAuthenticated
		return
	}
	g.current = Session{}
	g.state = StateAnonymous
}

// emit queues an audit event, stamping ID, timestamp, and caller context.
func (g *Gate) emit(ctx context.Context, event AuditEvent) {
	if g == nil || g.audit == nil {
		return
	}

	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["user_agent"] = ua
	}

	g.audit.Emit(ctx, event)
}
