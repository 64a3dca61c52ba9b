// Package middleware exposes the HTTP adapter for the gate's navigation
// policy: a handler wrapper that consults Gate.CanNavigate for every request
// and redirects denied navigations to the target the matched rule names.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Gate calls. It does NOT decide
// access itself — all decisions are delegated to Gate.CanNavigate — and a
// denial is served as a plain redirect, never an error page.
package middleware
