package flockgate

import "context"

// SignOut clears the session unconditionally and deletes the persisted
// continuity token. It is idempotent: signing out an already-anonymous gate
// is a no-op, never an error.
//
// A sign-out wins over any sign-in still awaiting the provider: the attempt
// counter moves on, so a late-arriving success is discarded instead of
// resurrecting the cleared session.
func (g *Gate) SignOut(ctx context.Context) {
	if g == nil {
		return
	}

	g.mu.Lock()
	hadSession := !g.current.Anonymous()
	changed := hadSession || g.state != StateAnonymous
	cleared := g.current

	g.attempt++
	g.current = Session{}
	g.lastErr = nil
	g.pending = pendingFederated{}
	g.state = StateAnonymous
	if changed {
		g.notifyLocked()
	}
	g.mu.Unlock()

	event := AuditEvent{
		EventType: auditEventSignOut,
		UserID:    cleared.UserID,
		Email:     cleared.Email,
		Role:      cleared.Role.String(),
		Success:   true,
	}

	if g.tokens != nil {
		if err := g.tokens.DeleteToken(ctx, g.config.ContextID); err != nil {
			// The in-memory session is gone either way; the orphaned token
			// still dies by its own TTL.
			event.Error = err.Error()
		}
	}

	g.metricInc(MetricSignOut)
	g.emit(ctx, event)
}
