package flockgate

import (
	"context"
	"time"

	"github.com/flockhq/flockgate/route"
)

// CanNavigate answers whether the current session may render the area at
// path. It is called on every navigation attempt — deep links and browser
// back/forward included — reads the session synchronously at that moment,
// and never waits on an in-flight authentication.
//
// Denial is a normal control-flow outcome carrying a redirect target, never
// an error.
func (g *Gate) CanNavigate(path string) route.Decision {
	if g == nil || g.routes == nil {
		return route.Decision{Allowed: false, RedirectTo: "/"}
	}

	g.mu.Lock()
	g.expireLocked(time.Now())
	role := g.current.Role
	g.mu.Unlock()

	decision := g.routes.Evaluate(role, path)
	if decision.Allowed {
		g.metricInc(MetricNavigationAllowed)
	} else {
		g.metricInc(MetricNavigationDenied)
		g.emit(context.Background(), AuditEvent{
			EventType: auditEventNavigationDenied,
			Role:      role.String(),
			Metadata:  map[string]string{"path": path, "redirect_to": decision.RedirectTo},
		})
	}
	return decision
}

// RoleForPath returns the access tier guarding path. Pure longest-prefix
// lookup over the static rule table; total, deterministic, no side effects.
func (g *Gate) RoleForPath(path string) route.RequiredRole {
	if g == nil || g.routes == nil {
		return route.RequirePublic
	}
	return g.routes.Match(path).RequiredRole
}

// Routes exposes the indexed guard table for introspection.
func (g *Gate) Routes() *route.Table {
	if g == nil {
		return nil
	}
	return g.routes
}
