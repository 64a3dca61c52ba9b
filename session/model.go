package session

import "time"

// Token is the provider-issued continuity token persisted for one browser
// context. Value is opaque to this module; ExpiresAt zero means the token
// carries no expiry of its own.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Expired reports whether the token's own expiry has passed at now.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
