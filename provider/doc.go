// Package provider implements the gate's identity-provider contract against a
// Supabase-style hosted auth service: password grant over HTTPS, federated
// OAuth redirect flows, and locally verified HS256 access tokens.
//
// # Error classification
//
// Every failure is returned as a classified *flockgate.AuthError: 4xx
// credential rejections map to invalid_credentials, transport faults and
// timeouts to network_failure, 5xx responses to provider_unavailable, expired
// tokens to session_expired, and a federated callback carrying the
// "access_denied" code to cancelled.
//
// # Architecture boundaries
//
// This package talks to the network; it never touches the gate's state,
// Redis, or the route table. Role claims are passed through verbatim — tier
// interpretation belongs to the gate.
package provider
