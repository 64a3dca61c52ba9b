package flockgate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/flockhq/flockgate/internal"
	"github.com/flockhq/flockgate/internal/rate"
	"github.com/flockhq/flockgate/route"
	"github.com/flockhq/flockgate/session"
)

// SignIn exchanges an email/password pair with the identity provider and, on
// success, installs the resulting session and persists its continuity token.
//
// A failed exchange returns a classified [*AuthError] and leaves any
// pre-existing valid session untouched; the gate parks in [StateFailed]
// until the error is acknowledged. A second SignIn while one is awaiting
// the provider is rejected with [ErrSignInInFlight] rather than coalesced.
func (g *Gate) SignIn(ctx context.Context, email, password string) (Session, error) {
	if g == nil || g.provider == nil {
		return Session{}, ErrGateNotReady
	}

	email = strings.TrimSpace(email)
	if !plausibleEmail(email) {
		return Session{}, NewAuthError(KindInvalidCredentials, "enter a valid email address", ErrEmailInvalid)
	}
	if password == "" {
		return Session{}, NewAuthError(KindInvalidCredentials, "enter your password", ErrPasswordRequired)
	}

	myAttempt, err := g.beginAttempt(ctx)
	if err != nil {
		return Session{}, err
	}

	if err := g.checkThrottle(ctx, email); err != nil {
		return Session{}, g.finishFailure(ctx, myAttempt, classify(err), auditEventSignInFailure, email)
	}

	identity, err := g.provider.VerifyPassword(ctx, email, password)
	if err != nil {
		ae := classify(err)
		if ae.Kind == KindInvalidCredentials && g.limiter != nil {
			// Only credential failures burn attempt budget; transport
			// problems are not the user's doing.
			_ = g.limiter.IncrementSignIn(ctx, email, clientIPFromContext(ctx))
		}
		return Session{}, g.finishFailure(ctx, myAttempt, ae, auditEventSignInFailure, email)
	}

	sess, ae := g.sessionFromIdentity(identity)
	if ae != nil {
		return Session{}, g.finishFailure(ctx, myAttempt, ae, auditEventSignInFailure, email)
	}

	return g.finishSuccess(ctx, myAttempt, sess, identity, auditEventSignInSuccess, true)
}

// BeginFederated opens an external redirect/popup sign-in flow. It returns
// the state nonce the provider must echo back and the provider URL to send
// the user to. The gate enters [StateAuthenticating]; credential collection
// happens entirely outside it.
//
// An abandoned flow holds no lock on the gate: a newer sign-in attempt or a
// sign-out supersedes the pending callback, whose late completion is then
// discarded.
func (g *Gate) BeginFederated(ctx context.Context) (state string, redirectURL string, err error) {
	if g == nil || g.provider == nil {
		return "", "", ErrGateNotReady
	}

	nonce, err := internal.NewStateNonce()
	if err != nil {
		return "", "", err
	}

	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		g.metricInc(MetricSignInRejectedBusy)
		return "", "", NewAuthError(KindBusy, "another sign-in is already in progress", ErrSignInInFlight)
	}
	g.attempt++
	g.pending = pendingFederated{nonce: nonce.String(), attempt: g.attempt}
	g.state = StateAuthenticating
	g.lastErr = nil
	g.notifyLocked()
	g.mu.Unlock()

	g.emit(ctx, AuditEvent{EventType: auditEventFederatedBegin, Success: true})

	return nonce.String(), g.provider.FederatedAuthURL(nonce.String()), nil
}

// CompleteFederated finishes a federated flow begun by [Gate.BeginFederated].
// The callback must carry the matching state nonce and must not have been
// superseded by a later mutation. User cancellation (provider error code
// "access_denied") reverts the gate quietly — no [StateFailed], no error
// flash — and reports a [KindCancelled] error the caller may ignore.
func (g *Gate) CompleteFederated(ctx context.Context, state string, cb FederatedCallback) (Session, error) {
	if g == nil || g.provider == nil {
		return Session{}, ErrGateNotReady
	}

	g.mu.Lock()
	if g.pending.nonce == "" || g.pending.nonce != state {
		g.mu.Unlock()
		return Session{}, ErrFederatedStateMismatch
	}
	if g.pending.attempt != g.attempt {
		g.pending = pendingFederated{}
		g.mu.Unlock()
		g.metricInc(MetricStaleOutcomeDiscarded)
		return Session{}, ErrStaleAttempt
	}
	myAttempt := g.attempt
	g.pending = pendingFederated{}
	g.inFlight = true
	g.mu.Unlock()

	identity, err := g.provider.VerifyFederatedCallback(ctx, cb)
	if err != nil {
		ae := classify(err)
		if ae.Kind == KindCancelled {
			g.mu.Lock()
			g.inFlight = false
			if g.attempt == myAttempt {
				g.revertLocked()
				g.notifyLocked()
			}
			g.mu.Unlock()

			g.metricInc(MetricFederatedCancelled)
			g.emit(ctx, AuditEvent{EventType: auditEventFederatedCancel, Success: false})
			return Session{}, ae
		}
		return Session{}, g.finishFailure(ctx, myAttempt, ae, auditEventSignInFailure, "")
	}

	sess, ae := g.sessionFromIdentity(identity)
	if ae != nil {
		return Session{}, g.finishFailure(ctx, myAttempt, ae, auditEventSignInFailure, "")
	}

	return g.finishSuccess(ctx, myAttempt, sess, identity, auditEventFederatedSuccess, true)
}

// beginAttempt opens a new mutation epoch for a password sign-in: rejects if
// one is already awaiting the provider, bumps the attempt counter, and moves
// the gate to [StateAuthenticating] while preserving the current session.
func (g *Gate) beginAttempt(ctx context.Context) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		g.metricInc(MetricSignInRejectedBusy)
		g.emit(ctx, AuditEvent{EventType: auditEventSignInRejected})
		return 0, NewAuthError(KindBusy, "another sign-in is already in progress", ErrSignInInFlight)
	}

	g.attempt++
	g.inFlight = true
	g.pending = pendingFederated{}
	g.state = StateAuthenticating
	g.lastErr = nil
	g.notifyLocked()

	return g.attempt, nil
}

// finishSuccess installs the session produced by attempt myAttempt. A late
// outcome — the attempt counter moved on, because a sign-out or newer
// attempt happened meanwhile — is discarded and must not resurrect a
// cleared session.
func (g *Gate) finishSuccess(ctx context.Context, myAttempt uint64, sess Session, identity Identity, eventType string, persist bool) (Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.inFlight = false

	if g.attempt != myAttempt {
		g.metricInc(MetricStaleOutcomeDiscarded)
		g.emit(ctx, AuditEvent{
			EventType: auditEventStaleDiscarded,
			UserID:    sess.UserID,
			Email:     sess.Email,
		})
		return Session{}, ErrStaleAttempt
	}

	g.current = sess
	g.state = StateAuthenticated
	g.lastErr = nil
	g.notifyLocked()

	event := AuditEvent{
		EventType: eventType,
		UserID:    sess.UserID,
		Email:     sess.Email,
		Role:      sess.Role.String(),
		Success:   true,
	}

	// Persist continuity while still holding the lock so a concurrent
	// sign-out cannot interleave between install and save, which would
	// leave a restorable token for a cleared session.
	if persist && g.tokens != nil && identity.Token != "" {
		tok := session.Token{Value: identity.Token, ExpiresAt: sess.ExpiresAt}
		if err := g.tokens.SaveToken(ctx, g.config.ContextID, tok); err != nil {
			// The in-memory session stands; only reload continuity is lost.
			event.Metadata = map[string]string{"persist_error": err.Error()}
		}
	}

	if g.limiter != nil && sess.Email != "" {
		_ = g.limiter.ResetSignIn(ctx, sess.Email, clientIPFromContext(ctx))
	}

	switch eventType {
	case auditEventFederatedSuccess:
		g.metricInc(MetricFederatedSuccess)
	case auditEventSessionRestored:
		g.metricInc(MetricSessionRestored)
	default:
		g.metricInc(MetricSignInSuccess)
	}
	g.emit(ctx, event)

	return sess, nil
}

// finishFailure records a failed attempt. The pre-existing session, valid or
// not, is never cleared by a failed re-authentication; the gate parks in
// [StateFailed] holding the error for display.
func (g *Gate) finishFailure(ctx context.Context, myAttempt uint64, ae *AuthError, eventType, email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.inFlight = false

	if g.attempt != myAttempt {
		g.metricInc(MetricStaleOutcomeDiscarded)
		g.emit(ctx, AuditEvent{EventType: auditEventStaleDiscarded, Email: email})
		return ErrStaleAttempt
	}

	g.state = StateFailed
	g.lastErr = ae
	g.notifyLocked()

	if ae.Kind == KindRateLimited {
		g.metricInc(MetricSignInRateLimited)
		g.emit(ctx, AuditEvent{EventType: auditEventSignInRateLimited, Email: email, Error: ae.Error()})
	} else {
		g.metricInc(MetricSignInFailure)
		g.emit(ctx, AuditEvent{EventType: eventType, Email: email, Error: ae.Error()})
	}

	return ae
}

func (g *Gate) checkThrottle(ctx context.Context, email string) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.CheckSignIn(ctx, email, clientIPFromContext(ctx))
}

// sessionFromIdentity derives the session snapshot from a verified identity.
// The role comes from the provider's authoritative claim alone; an
// unrecognized claim fails the sign-in closed instead of guessing a tier.
func (g *Gate) sessionFromIdentity(identity Identity) (Session, *AuthError) {
	role, err := route.ParseRole(identity.Role)
	if err != nil {
		return Session{}, NewAuthError(KindUnknown, "account role not recognized", err)
	}
	if role == route.RoleAnonymous {
		return Session{}, NewAuthError(KindUnknown, "account carries no portal role", nil)
	}

	now := time.Now()
	sess := Session{
		UserID:    identity.UserID,
		Email:     identity.Email,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: identity.ExpiresAt,
	}
	if sess.ExpiresAt.IsZero() && g.config.Session.DefaultTTL > 0 {
		sess.ExpiresAt = now.Add(g.config.Session.DefaultTTL)
	}
	return sess, nil
}

// classify normalizes any error from a collaborator into an *AuthError.
func classify(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, rate.ErrRateLimited):
		return NewAuthError(KindRateLimited, "too many sign-in attempts, try again later", err)
	case errors.Is(err, rate.ErrRedisUnavailable):
		return NewAuthError(KindProviderUnavailable, "sign-in temporarily unavailable", err)
	case errors.Is(err, context.Canceled):
		return NewAuthError(KindCancelled, "sign-in was cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewAuthError(KindNetworkFailure, "the sign-in request timed out", err)
	default:
		return NewAuthError(KindUnknown, "sign-in failed", err)
	}
}

// plausibleEmail applies the gate's input constraint: non-empty, exactly one
// @, and a dotted domain. Real validation belongs to the provider.
func plausibleEmail(email string) bool {
	if email == "" || strings.Count(email, "@") != 1 {
		return false
	}
	at := strings.IndexByte(email, '@')
	local, domain := email[:at], email[at+1:]
	if local == "" || domain == "" {
		return false
	}
	dot := strings.IndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}
