// Package rate provides Redis-backed sign-in attempt throttling for the gate.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - si:  — sign-in per-identifier
//   - sii: — sign-in per-IP
//
// # What this package must NOT do
//
//   - Decide what counts as a failed attempt (the Gate does).
//   - Be imported outside the flockgate module.
package rate
