package session

import (
	"encoding/base64"
	"fmt"
	"time"

	"atlauth/internal/config"
	"atlauth/internal/credentials"
	"atlauth/internal/instance"
	"atlauth/pkg/logging"

	"github.com/google/uuid"
)

// cloudGatewayURL is the multi-cloud API gateway. OAuth sessions address a
// Cloud site through it by cloud ID rather than the site's own hostname.
const cloudGatewayURL = "https://api.atlassian.com"

// BuildOptions carries per-service settings that shape the constructed
// session but are not part of the credential itself.
type BuildOptions struct {
	// Service selects the gateway path segment (jira or confluence).
	Service config.ServiceName

	// Identity is the account email used when a PAT is presented against a
	// Cloud instance, where the token is sent as the Basic password.
	Identity string

	// HTTPTimeout bounds requests issued through the session's client.
	HTTPTimeout time.Duration

	// SSLVerify controls TLS verification on the underlying transport.
	SSLVerify bool

	// CustomHeaders are attached to every request.
	CustomHeaders map[string]string
}

// Build maps a (credential variant, instance kind) pair to an authenticated
// session. The mapping is deterministic and performs no network I/O:
//
//	OAuth          + Cloud     => Bearer access token via the cloud gateway (cloud ID required)
//	PAT            + Cloud     => Basic base64(email:token)
//	PAT            + Server/DC => Bearer token
//	Basic          + Cloud     => Basic base64(email:api-token)
//	Basic          + Server/DC => Basic base64(username:password)
//	HeaderOverride + any       => Bearer token, ephemeral (cloud ID passed through)
//
// Any pair outside the table fails with *UnsupportedCombinationError.
func Build(creds credentials.Credentials, profile instance.Profile, opts BuildOptions) (*Session, error) {
	scheme, authorization, ephemeral, err := schemeFor(creds, profile, opts)
	if err != nil {
		return nil, err
	}

	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}

	transport := newAuthTransport(newBaseTransport(opts.SSLVerify), authorization, opts.CustomHeaders)
	sess := &Session{
		ID:        uuid.NewString(),
		TenantKey: TenantKey(creds, profile, opts.Service),
		Scheme:    scheme,
		Profile:   profile,
		BaseURL:   effectiveBaseURL(creds, profile, opts.Service),
		CreatedAt: time.Now(),
		Ephemeral: ephemeral,
		transport: transport,
	}
	sess.httpClient = newHTTPClient(transport, timeout)
	sess.creds.Store(&creds)
	sess.Touch()

	logging.Debug("Session", "built %s session %s for %s credentials on %s instance",
		sess.Scheme, sess.ID, creds.Kind(), profile.Kind)
	return sess, nil
}

// schemeFor is the scheme table. It returns the scheme, the full
// Authorization header value, and whether the session is ephemeral.
func schemeFor(creds credentials.Credentials, profile instance.Profile, opts BuildOptions) (Scheme, string, bool, error) {
	switch creds.Kind() {
	case credentials.KindOAuth:
		o := creds.OAuth()
		if profile.Kind != instance.KindCloud {
			return 0, "", false, &UnsupportedCombinationError{
				CredentialKind: creds.Kind(),
				InstanceKind:   profile.Kind,
				Reason:         "OAuth requires a Cloud instance",
			}
		}
		if o.CloudID == "" {
			return 0, "", false, &UnsupportedCombinationError{
				CredentialKind: creds.Kind(),
				InstanceKind:   profile.Kind,
				Reason:         "no usable cloud ID",
			}
		}
		return SchemeBearer, "Bearer " + o.AccessToken, false, nil

	case credentials.KindPAT:
		p := creds.PAT()
		if profile.Kind == instance.KindCloud {
			// Cloud has no PAT concept; the token is an API token and is
			// sent as the Basic password alongside the account email.
			if opts.Identity == "" {
				return 0, "", false, &UnsupportedCombinationError{
					CredentialKind: creds.Kind(),
					InstanceKind:   profile.Kind,
					Reason:         "Cloud API tokens require an account email",
				}
			}
			return SchemeBasic, basicAuthorization(opts.Identity, p.Token), false, nil
		}
		return SchemeBearer, "Bearer " + p.Token, false, nil

	case credentials.KindBasic:
		b := creds.Basic()
		return SchemeBasic, basicAuthorization(b.Identity, b.Secret), false, nil

	case credentials.KindHeaderOverride:
		h := creds.HeaderOverride()
		return SchemeBearer, "Bearer " + h.BearerToken, true, nil

	default:
		return 0, "", false, &UnsupportedCombinationError{
			CredentialKind: creds.Kind(),
			InstanceKind:   profile.Kind,
			Reason:         "no scheme mapping",
		}
	}
}

// effectiveBaseURL rewrites Cloud bearer-token sessions onto the multi-cloud
// gateway; everything else keeps the configured site URL.
func effectiveBaseURL(creds credentials.Credentials, profile instance.Profile, service config.ServiceName) string {
	cloudID := creds.CloudID()
	if cloudID == "" || profile.Kind != instance.KindCloud || service == "" {
		return profile.BaseURL
	}
	return fmt.Sprintf("%s/ex/%s/%s", cloudGatewayURL, service, cloudID)
}

func basicAuthorization(identity, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(identity+":"+secret))
}
