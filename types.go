package flockgate

import (
	"context"
	"time"

	"github.com/flockhq/flockgate/route"
)

// State is the gate's position in the session lifecycle.
type State uint8

const (
	// StateAnonymous holds when no valid credential exchange has completed.
	StateAnonymous State = iota
	// StateAuthenticating holds while a sign-in round trip is in flight.
	StateAuthenticating
	// StateAuthenticated holds while a live session exists.
	StateAuthenticated
	// StateFailed holds after a failed sign-in until the error is
	// acknowledged; it is never sticky.
	StateFailed
)

// String returns a stable name for the lifecycle state.
func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "anonymous"
	}
}

// Session is the read-only snapshot of the currently authenticated user.
// The zero value is the anonymous session.
type Session struct {
	UserID    string
	Email     string
	Role      route.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Anonymous reports whether the snapshot represents no authenticated user.
func (s Session) Anonymous() bool {
	return s.Role == route.RoleAnonymous
}

// Expired reports whether the session's expiry has passed at now. Sessions
// without an expiry never expire.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Identity is the verified account record an [IdentityProvider] returns on a
// successful credential exchange. Role is the provider's authoritative role
// claim; the gate never infers privilege from the email text.
type Identity struct {
	UserID    string
	Email     string
	Role      string
	Token     string
	ExpiresAt time.Time
}

// FederatedCallback carries the completion event of an external redirect or
// popup sign-in flow back to the gate. A provider ErrorCode of
// "access_denied" marks user cancellation.
type FederatedCallback struct {
	Token     string
	ErrorCode string
}

// IdentityProvider is the external collaborator that verifies credentials
// and issues session claims. The gate does not implement credential storage,
// password hashing, or token issuance itself.
type IdentityProvider interface {
	// VerifyPassword exchanges an email/password pair for a verified
	// identity. Failures must be classified via *AuthError.
	VerifyPassword(ctx context.Context, email, password string) (Identity, error)

	// FederatedAuthURL returns the provider URL that begins an external
	// redirect flow carrying the given state nonce.
	FederatedAuthURL(state string) string

	// VerifyFederatedCallback validates the completion event of a
	// federated flow. Cancellation maps to KindCancelled.
	VerifyFederatedCallback(ctx context.Context, cb FederatedCallback) (Identity, error)

	// VerifyToken validates a previously issued continuity token, used to
	// restore a session at startup without re-collecting credentials.
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

// StateChange is delivered to subscribers on every observable transition of
// the gate. Session is the snapshot after the transition; Err is set only
// for transitions into [StateFailed].
type StateChange struct {
	State   State
	Session Session
	Err     *AuthError
}
