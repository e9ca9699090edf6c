// Package oauth provides shared OAuth 2.0 primitives used across atlauth:
// PKCE verifier/challenge generation and state-nonce generation.
//
// The package is dependency-free and performs no network I/O. The full
// authorization and refresh state machine lives in internal/oauth.
package oauth
