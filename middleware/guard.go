package middleware

import (
	"context"
	"net/http"

	flockgate "github.com/flockhq/flockgate"
)

type sessionContextKey struct{}

// SessionFromContext returns the session snapshot the guard stored for this
// request, when the request passed through [Guard].
func SessionFromContext(ctx context.Context) (flockgate.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(flockgate.Session)
	return sess, ok
}

// Guard wraps a handler with the gate's navigation policy. Every request —
// deep links and reloads included — is checked against the route table; a
// denied path is answered with a redirect to the matched rule's target, with
// no error flash. Permitted requests proceed with the session snapshot in
// the request context.
func Guard(gate *flockgate.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate == nil {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}

			decision := gate.CanNavigate(r.URL.Path)
			if !decision.Allowed {
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, gate.CurrentSession())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
