package credentials

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"atlauth/internal/config"
	"atlauth/pkg/logging"
)

// ErrMissingCredentials is returned when no configured source resolves to a
// complete credential.
var ErrMissingCredentials = errors.New("no credentials configured")

// ErrInvalidHeaderAuth is returned for a present but malformed Authorization
// header on the per-request path.
var ErrInvalidHeaderAuth = errors.New("invalid header authentication")

// CloudIDHeader carries a per-request cloud ID alongside header-derived
// bearer credentials.
const CloudIDHeader = "X-Atlassian-Cloud-Id"

// Resolve selects one concrete credential variant from configured sources.
//
// Priority, highest first: OAuth (client ID + secret, plus either a usable
// access token or an authorization flow to initiate), then PAT, then Basic.
// Validation is structural only; liveness against the remote service is not
// checked here. When nothing resolves, ErrMissingCredentials is returned --
// never a silent downgrade to a weaker variant, since that would mask
// misconfiguration.
func Resolve(svc *config.ServiceConfig, oauth *config.OAuthConfig) (Credentials, error) {
	if oauth != nil && oauth.Configured() {
		creds := NewOAuth(OAuth{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			AccessToken:  oauth.AccessToken,
			RefreshToken: oauth.RefreshToken,
			CloudID:      oauth.CloudID,
		})
		logging.Debug("Credentials", "resolved %s credentials for %s", creds.Kind(), svc.Name)
		return creds, nil
	}

	if svc.PersonalToken != "" {
		creds := NewPAT(svc.PersonalToken)
		logging.Debug("Credentials", "resolved %s credentials for %s", creds.Kind(), svc.Name)
		return creds, nil
	}

	// APIToken doubles as the Basic password on Server/DC deployments.
	if svc.Username != "" && svc.APIToken != "" {
		creds := NewBasic(svc.Username, svc.APIToken)
		logging.Debug("Credentials", "resolved %s credentials for %s", creds.Kind(), svc.Name)
		return creds, nil
	}

	return Credentials{}, fmt.Errorf("%w for %s", ErrMissingCredentials, svc.Name)
}

// ResolveFromHeaders extracts per-request credentials from inbound headers:
// an "Authorization: Bearer <token>" header plus the optional cloud-ID
// header. This path is consulted only by the HeaderAuthGate and is
// independent of the configured-source priority order.
//
// Returns (creds, true, nil) for a well-formed header, (zero, false, nil)
// when no Authorization header is present, and ErrInvalidHeaderAuth for a
// present but malformed one (wrong scheme, empty token).
func ResolveFromHeaders(h http.Header) (Credentials, bool, error) {
	raw := h.Get("Authorization")
	if raw == "" {
		return Credentials{}, false, nil
	}

	scheme, token, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return Credentials{}, false, fmt.Errorf("%w: expected Bearer scheme", ErrInvalidHeaderAuth)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Credentials{}, false, fmt.Errorf("%w: empty bearer token", ErrInvalidHeaderAuth)
	}

	return NewHeaderOverride(token, h.Get(CloudIDHeader)), true, nil
}
