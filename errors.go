package flockgate

import "errors"

var (
	// ErrGateNotReady is returned when a Gate is used before Build completed.
	ErrGateNotReady = errors.New("gate not ready")
	// ErrEmailInvalid is returned when the sign-in email is empty or implausible.
	ErrEmailInvalid = errors.New("invalid email")
	// ErrPasswordRequired is returned when the sign-in password is empty.
	ErrPasswordRequired = errors.New("password required")
	// ErrSignInInFlight is returned when a sign-in is attempted while another
	// is still awaiting the provider. The first attempt is unaffected.
	ErrSignInInFlight = errors.New("sign-in already in flight")
	// ErrStaleAttempt is returned when a sign-in outcome arrives after a
	// sign-out or a newer attempt has superseded it; the outcome is discarded.
	ErrStaleAttempt = errors.New("sign-in attempt superseded")
	// ErrFederatedStateMismatch is returned when a federated callback carries
	// an unknown or already-consumed state nonce.
	ErrFederatedStateMismatch = errors.New("federated state mismatch")
	// ErrReauthenticate is the distinguished signal that a session expired
	// and the caller should redirect to the login screen rather than treat
	// the condition as a generic failure.
	ErrReauthenticate = errors.New("reauthentication required")
)

// ErrorKind classifies a failed credential exchange for display handling.
type ErrorKind uint8

const (
	// KindUnknown covers unclassified failures; logged, generic message shown.
	KindUnknown ErrorKind = iota
	// KindInvalidCredentials marks user-correctable failures, shown inline.
	KindInvalidCredentials
	// KindNetworkFailure marks transient transport failures; user may retry.
	KindNetworkFailure
	// KindProviderUnavailable marks transient backend-side outages.
	KindProviderUnavailable
	// KindRateLimited marks sign-in attempts rejected by the local throttle
	// before the provider was contacted.
	KindRateLimited
	// KindBusy marks a sign-in rejected because another is in flight.
	KindBusy
	// KindCancelled marks a federated flow the user abandoned; treated as a
	// quiet no-op, never shown as an error.
	KindCancelled
	// KindSessionExpired marks a continuity token or session past its expiry.
	KindSessionExpired
)

// String returns the wire name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNetworkFailure:
		return "network_failure"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindRateLimited:
		return "rate_limited"
	case KindBusy:
		return "busy"
	case KindCancelled:
		return "cancelled"
	case KindSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// AuthError is the classified outcome of a failed credential exchange.
// Message is human-readable and provider-supplied where available.
type AuthError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// NewAuthError builds an [AuthError] wrapping an optional cause.
func NewAuthError(kind ErrorKind, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, cause: cause}
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Kind.String() + ": " + e.Message
	}
	return e.Kind.String()
}

func (e *AuthError) Unwrap() error {
	return e.cause
}

// KindOf extracts the [ErrorKind] from err. Non-auth errors report
// [KindUnknown].
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
