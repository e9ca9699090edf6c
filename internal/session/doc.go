// Package session constructs and caches authenticated Atlassian sessions.
//
// The factory (Build) is a pure mapping from a credential variant and a
// detected instance kind to an HTTP authentication scheme; it performs no
// network I/O. The Cache owns all long-lived sessions, bounded by an LRU
// with idle-TTL eviction, collapsing concurrent construction per tenant key
// through singleflight. Header-derived sessions are ephemeral by
// construction and are rejected by the cache.
package session
