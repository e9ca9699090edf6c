package credentials

import (
	"net/http"

	"atlauth/pkg/logging"
)

// HeaderAuthGate decides whether a per-request header-derived identity
// applies. It is fully stateless and request-scoped: it holds no locks and
// touches no shared session state, and sessions built from its output are
// owned solely by the request that created them.
type HeaderAuthGate struct {
	// IgnoreHeaderAuth is the deployment-level kill switch for
	// proxy-injected headers. When set, Admit returns no credentials for
	// every input regardless of header content.
	IgnoreHeaderAuth bool
}

// Admit inspects inbound request headers for an authentication override.
//
// Returns (zero, false, nil) when the kill switch is on or no Authorization
// header is present (callers fall through to configured credentials), a
// HeaderOverride credential for a well-formed header, and
// ErrInvalidHeaderAuth for a malformed one. A malformed header is surfaced
// verbatim, never silently ignored.
func (g HeaderAuthGate) Admit(h http.Header) (Credentials, bool, error) {
	if g.IgnoreHeaderAuth {
		return Credentials{}, false, nil
	}

	creds, ok, err := ResolveFromHeaders(h)
	if err != nil {
		logging.Warn("Credentials", "rejected malformed Authorization header: %v", err)
		return Credentials{}, false, err
	}
	if ok {
		logging.Debug("Credentials", "admitted per-request %s credentials", creds.Kind())
	}
	return creds, ok, err
}
