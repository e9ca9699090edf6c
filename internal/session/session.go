package session

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"atlauth/internal/config"
	"atlauth/internal/credentials"
	"atlauth/internal/instance"
)

// Scheme is the HTTP authentication scheme a session uses.
type Scheme int

const (
	// SchemeBearer sends "Authorization: Bearer <token>".
	SchemeBearer Scheme = iota

	// SchemeBasic sends "Authorization: Basic <base64(identity:secret)>".
	SchemeBasic
)

// String returns the string representation of the scheme.
func (s Scheme) String() string {
	switch s {
	case SchemeBearer:
		return "bearer"
	case SchemeBasic:
		return "basic"
	default:
		return "unknown"
	}
}

// Session is a ready authenticated client for one tenant. Long-lived sessions
// are owned exclusively by the Cache once cached; header-derived sessions are
// ephemeral, owned solely by the request that created them, and never enter
// the cache.
//
// All mutation after construction happens through atomic swaps (credential
// replacement on OAuth refresh, last-used timestamps), so a Session is safe
// for concurrent use without external locking.
type Session struct {
	// ID uniquely identifies this session instance for log correlation.
	ID string

	// TenantKey identifies the authenticated identity/instance pair.
	TenantKey string

	// Scheme is the negotiated authentication scheme.
	Scheme Scheme

	// Profile is the instance this session talks to.
	Profile instance.Profile

	// BaseURL is the effective request base URL. For OAuth Cloud sessions
	// this is the multi-cloud gateway URL, not the configured site URL.
	BaseURL string

	// CreatedAt records construction time.
	CreatedAt time.Time

	// Ephemeral marks header-derived sessions that must never be cached.
	Ephemeral bool

	httpClient *http.Client
	transport  *authTransport
	creds      atomic.Pointer[credentials.Credentials]
	lastUsed   atomic.Int64 // unix nanoseconds
}

// HTTPClient returns the HTTP client pre-configured with the resolved auth
// scheme. The external API-wrapper layer issues domain REST calls against it.
func (s *Session) HTTPClient() *http.Client {
	return s.httpClient
}

// Credentials returns the credential snapshot currently backing the session.
func (s *Session) Credentials() credentials.Credentials {
	return *s.creds.Load()
}

// ExpiresAt returns the access-token expiry for OAuth-backed sessions, or
// the zero time for credentials that do not expire.
func (s *Session) ExpiresAt() time.Time {
	if o := s.creds.Load().OAuth(); o != nil {
		return o.ExpiresAt
	}
	return time.Time{}
}

// Touch records use of the session for idle tracking.
func (s *Session) Touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// LastUsedAt returns the last time the session was handed out.
func (s *Session) LastUsedAt() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// ReplaceOAuthToken atomically installs a refreshed access token. The
// credential snapshot and the transport's Authorization header are each
// swapped whole; concurrent readers observe either the previous or the new
// token, never a partially updated one.
func (s *Session) ReplaceOAuthToken(accessToken, refreshToken string, expiresAt time.Time) error {
	current := s.creds.Load()
	o := current.OAuth()
	if o == nil {
		return fmt.Errorf("session %s is not OAuth-backed (%s)", s.ID, current.Kind())
	}

	next := credentials.NewOAuth(credentials.OAuth{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		CloudID:      o.CloudID,
	})
	s.creds.Store(&next)
	s.transport.setAuthorization("Bearer " + accessToken)
	return nil
}

// TenantKey derives the cache identity for a credential/instance pair:
// the cloud ID when present, otherwise base URL plus principal, qualified by
// the service. Sessions are service-specific (the Cloud gateway base URL and
// custom headers differ per service), so the same cloud ID must never map
// Jira and Confluence onto one cache entry. Two requests with the same
// TenantKey resolve to the same Session unless invalidated.
func TenantKey(creds credentials.Credentials, profile instance.Profile, service config.ServiceName) string {
	var key string
	if cloudID := creds.CloudID(); cloudID != "" {
		key = "cloud:" + cloudID
	} else {
		key = profile.BaseURL + "|" + creds.Principal()
	}
	if service != "" {
		key += "|" + string(service)
	}
	return key
}
