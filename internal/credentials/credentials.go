package credentials

import (
	"fmt"
	"time"
)

// Kind is the tag of the credential union. Downstream code matches on the
// kind and never re-inspects raw configuration fields.
type Kind int

const (
	// KindNone means no credentials are present.
	KindNone Kind = iota

	// KindOAuth is an OAuth 2.0 (3LO) credential for Cloud instances.
	KindOAuth

	// KindPAT is a long-lived Personal Access Token.
	KindPAT

	// KindBasic is a username/secret pair (Cloud email+API-token or
	// Server/DC username+password).
	KindBasic

	// KindHeaderOverride is a per-request identity extracted from inbound
	// request headers. Sessions built from it are never cached.
	KindHeaderOverride
)

// String returns the string representation of the credential kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindOAuth:
		return "oauth"
	case KindPAT:
		return "pat"
	case KindBasic:
		return "basic"
	case KindHeaderOverride:
		return "header-override"
	default:
		return "unknown"
	}
}

// OAuth is the OAuth 2.0 (3LO) credential payload.
type OAuth struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CloudID      string
}

// PAT is the Personal Access Token payload.
type PAT struct {
	Token string
}

// Basic is the username/secret payload.
type Basic struct {
	// Identity is the account email (Cloud) or username (Server/DC).
	Identity string
	Secret   string
}

// HeaderOverride is a per-request bearer identity from inbound headers.
type HeaderOverride struct {
	BearerToken string
	CloudID     string
}

// Credentials is a tagged union holding exactly one credential variant.
// Construct values through the New* constructors; the zero value has
// KindNone and no payload.
type Credentials struct {
	kind   Kind
	oauth  *OAuth
	pat    *PAT
	basic  *Basic
	header *HeaderOverride
}

// NewOAuth builds OAuth credentials.
func NewOAuth(o OAuth) Credentials {
	return Credentials{kind: KindOAuth, oauth: &o}
}

// NewPAT builds Personal Access Token credentials.
func NewPAT(token string) Credentials {
	return Credentials{kind: KindPAT, pat: &PAT{Token: token}}
}

// NewBasic builds Basic credentials.
func NewBasic(identity, secret string) Credentials {
	return Credentials{kind: KindBasic, basic: &Basic{Identity: identity, Secret: secret}}
}

// NewHeaderOverride builds per-request header-derived credentials.
func NewHeaderOverride(bearerToken, cloudID string) Credentials {
	return Credentials{kind: KindHeaderOverride, header: &HeaderOverride{
		BearerToken: bearerToken,
		CloudID:     cloudID,
	}}
}

// Kind returns the variant tag.
func (c Credentials) Kind() Kind {
	return c.kind
}

// OAuth returns the OAuth payload, or nil if the kind does not match.
func (c Credentials) OAuth() *OAuth {
	return c.oauth
}

// PAT returns the PAT payload, or nil if the kind does not match.
func (c Credentials) PAT() *PAT {
	return c.pat
}

// Basic returns the Basic payload, or nil if the kind does not match.
func (c Credentials) Basic() *Basic {
	return c.basic
}

// HeaderOverride returns the header payload, or nil if the kind does not match.
func (c Credentials) HeaderOverride() *HeaderOverride {
	return c.header
}

// CloudID returns the cloud ID carried by the credential, if any.
func (c Credentials) CloudID() string {
	switch c.kind {
	case KindOAuth:
		return c.oauth.CloudID
	case KindHeaderOverride:
		return c.header.CloudID
	default:
		return ""
	}
}

// Principal identifies the authenticated identity for cache keying. It never
// contains a secret: Basic uses the account identity, OAuth the client ID,
// PAT and header overrides a fixed marker (the token itself must not leak
// into cache keys or logs).
func (c Credentials) Principal() string {
	switch c.kind {
	case KindOAuth:
		return "oauth:" + c.oauth.ClientID
	case KindPAT:
		return "pat"
	case KindBasic:
		return "basic:" + c.basic.Identity
	case KindHeaderOverride:
		return "header"
	default:
		return "none"
	}
}

// String returns a redacted description safe for logs. Token and secret
// values never appear.
func (c Credentials) String() string {
	switch c.kind {
	case KindOAuth:
		return fmt.Sprintf("oauth(client_id=%s, cloud_id=%s)", c.oauth.ClientID, c.oauth.CloudID)
	case KindBasic:
		return fmt.Sprintf("basic(identity=%s)", c.basic.Identity)
	case KindHeaderOverride:
		return fmt.Sprintf("header-override(cloud_id=%s)", c.header.CloudID)
	default:
		return c.kind.String()
	}
}
