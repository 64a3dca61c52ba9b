// Package internal contains helper utilities that are intentionally private to
// flockgate, including secure random generation for federated-flow state nonces.
//
// # Sub-packages
//
//   - rate — Redis-backed sign-in attempt throttling
//
// # What this package must NOT do
//
//   - Export types that appear in the public flockgate API.
//   - Be imported by any package outside the flockgate module.
package internal
