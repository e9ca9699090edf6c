// Package oauth implements the Atlassian OAuth 2.0 (3LO) token lifecycle:
// PKCE authorization, authorization-code exchange, cloud-ID resolution, and
// proactive single-flight refresh.
//
// The Manager is an explicit state machine (Unauthenticated,
// AuthorizationPending, Authenticated, Expiring, Invalid). The interactive
// flow is a two-phase protocol: Authorize returns a consent URL plus opaque
// state, and ExchangeCode consumes the callback. The orchestrating setup
// command in cmd/ drives the phases; nothing in this package blocks on user
// interaction.
//
// Refresh concurrency is single-flight per tenant key: duplicate concurrent
// refreshes can invalidate each other's issued tokens on some providers, so
// concurrent callers share one in-flight grant. Refreshed tokens are swapped
// into the session atomically, never mutated field by field.
package oauth
