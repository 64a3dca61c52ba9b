// Package flockgate provides the session and role gate for the Flock church
// portal: it owns "who is signed in and with what role", delegates credential
// verification to an external identity provider, and answers "may this
// navigation proceed" for every route change across the public, member, and
// admin areas.
//
// The package is designed for a single browser context per [Gate]: one live
// session, mutated only through the gate's own operations and exposed to every
// other component as read-only snapshots. Gate methods are safe to call from
// multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// flockgate is the public surface. It exposes [Gate], [Builder], [Config], and
// value types (Session, Decision via the route package, AuthError, etc.).
// Route matching lives in the route package, continuity-token persistence in
// the session package, and the Supabase-style identity client in provider.
//
// # What this package must NOT do
//
//   - Store or hash credentials; verification belongs to the identity provider.
//   - Derive a session's role from anything but the provider's role claim.
//   - Block navigation decisions on in-flight network calls: CanNavigate,
//     RoleForPath, and CurrentSession never perform I/O.
package flockgate
