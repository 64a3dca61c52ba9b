// Package route provides the static route-guard table that maps portal paths to
// required access tiers and redirect targets.
//
// # Matching
//
// Rules are matched by longest path prefix at segment boundaries: "/dashboard"
// covers "/dashboard" and "/dashboard/groups" but not "/dashboardx", and the
// root prefix "/" covers the root path alone. Every path resolves to exactly
// one rule; paths no rule covers fall through to the table's fallback rule,
// which always redirects to the public root.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. The [Table] is
// built once, validated, and immutable thereafter.
//
// # What this package must NOT do
//
//   - Access the network, Redis, or any store.
//   - Import flockgate, session, or provider (no upward imports).
//   - Mutate rules after construction.
package route
