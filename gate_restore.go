package flockgate

import (
	"context"
	"errors"
	"time"

	"github.com/flockhq/flockgate/session"
)

// Restore rebuilds the session from a persisted continuity token at app
// start, so a page reload does not force re-authentication before expiry.
//
// No token means a clean anonymous start: the zero session and a nil error.
// An invalid or expired token is deleted, the gate quietly stays anonymous,
// and a classified [*AuthError] reports why — wrapped around
// [ErrReauthenticate] when the cause is expiry, so callers can redirect to
// the login screen instead of treating it as a generic failure.
func (g *Gate) Restore(ctx context.Context) (Session, error) {
	if g == nil || g.provider == nil || g.tokens == nil {
		return Session{}, ErrGateNotReady
	}

	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		return Session{}, NewAuthError(KindBusy, "another sign-in is already in progress", ErrSignInInFlight)
	}
	g.attempt++
	myAttempt := g.attempt
	g.inFlight = true
	g.pending = pendingFederated{}
	g.state = StateAuthenticating
	g.notifyLocked()
	g.mu.Unlock()

	tok, err := g.tokens.LoadToken(ctx, g.config.ContextID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenNotFound):
			return Session{}, g.quietRevert(myAttempt, nil)
		case errors.Is(err, session.ErrTokenCorrupt):
			_ = g.tokens.DeleteToken(ctx, g.config.ContextID)
			return Session{}, g.quietRevert(myAttempt, NewAuthError(KindUnknown, "stored session could not be read", err))
		default:
			return Session{}, g.quietRevert(myAttempt, NewAuthError(KindProviderUnavailable, "session storage unavailable", err))
		}
	}

	if tok.Expired(time.Now()) {
		_ = g.tokens.DeleteToken(ctx, g.config.ContextID)
		return Session{}, g.quietRevert(myAttempt, NewAuthError(KindSessionExpired, "your session has expired, sign in again", ErrReauthenticate))
	}

	identity, err := g.provider.VerifyToken(ctx, tok.Value)
	if err != nil {
		ae := classify(err)
		if ae.Kind == KindSessionExpired || ae.Kind == KindInvalidCredentials {
			// The provider no longer honors the token; drop it so the
			// next start is a clean anonymous one.
			_ = g.tokens.DeleteToken(ctx, g.config.ContextID)
			if ae.Kind == KindSessionExpired {
				ae = NewAuthError(KindSessionExpired, ae.Message, ErrReauthenticate)
			}
		}
		return Session{}, g.quietRevert(myAttempt, ae)
	}

	sess, ae := g.sessionFromIdentity(identity)
	if ae != nil {
		return Session{}, g.quietRevert(myAttempt, ae)
	}
	if identity.Token == "" {
		identity.Token = tok.Value
	}

	// Token unchanged on a plain restore; skip the redundant save unless
	// the provider rotated it.
	persist := identity.Token != tok.Value
	return g.finishSuccess(ctx, myAttempt, sess, identity, auditEventSessionRestored, persist)
}

// quietRevert ends a restore attempt without entering StateFailed: startup
// has no login form to show an error on, so the gate degrades to its prior
// stable state and hands the classified reason back to the caller.
func (g *Gate) quietRevert(myAttempt uint64, ae *AuthError) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.inFlight = false

	if g.attempt != myAttempt {
		g.metricInc(MetricStaleOutcomeDiscarded)
		return ErrStaleAttempt
	}

	g.revertLocked()
	g.notifyLocked()

	if ae == nil {
		return nil
	}
	return ae
}
