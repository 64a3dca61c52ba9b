// Package session provides Redis-backed persistence for the continuity token
// that lets a browser context resume its authenticated session across reloads.
//
// # Token storage
//
// One token is stored per browser context, keyed by an opaque context ID. The
// token value is owned by the identity provider; this package treats it as an
// opaque string and only tracks its expiry, mirrored into the Redis key TTL so
// expired tokens vanish without a sweep.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Token] model. It
// does NOT interpret tokens, derive roles, or enforce the navigation policy —
// those responsibilities belong to the Gate.
//
// # What this package must NOT do
//
//   - Import flockgate, route, or provider (no upward imports).
//   - Decode or validate the provider token payload.
//   - Hold more than one token per context.
package session
