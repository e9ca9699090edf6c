package config

import "time"

// Config is the top-level configuration for atlauth.
//
// Values load from environment variables first, overlaid on an optional
// config.yaml in the user config directory. See LoadConfig.
type Config struct {
	// Jira holds the Jira service configuration.
	Jira ServiceConfig `yaml:"jira"`

	// Confluence holds the Confluence service configuration.
	Confluence ServiceConfig `yaml:"confluence"`

	// OAuth holds the shared Atlassian OAuth 2.0 (3LO) configuration.
	OAuth OAuthConfig `yaml:"oauth"`

	// IgnoreHeaderAuth disables per-request header-derived authentication
	// entirely. This is the deployment-level kill switch for proxy-injected
	// Authorization headers.
	IgnoreHeaderAuth bool `yaml:"ignoreHeaderAuth,omitempty"`

	// HTTPTimeout bounds every outbound network call made by the session
	// layer (token exchange, refresh, accessible-resources lookup).
	HTTPTimeout time.Duration `yaml:"httpTimeout,omitempty"`

	// Cache configures the shared session cache.
	Cache CacheConfig `yaml:"cache,omitempty"`
}

// ServiceName identifies one of the wrapped Atlassian services.
type ServiceName string

const (
	ServiceJira       ServiceName = "jira"
	ServiceConfluence ServiceName = "confluence"
)

// InstanceOverride values for ServiceConfig.InstanceOverride.
const (
	OverrideNone     = ""
	OverrideCloud    = "cloud"
	OverrideServerDC = "server"
)

// ServiceConfig is the per-service (Jira or Confluence) configuration.
type ServiceConfig struct {
	// Name is the service this configuration belongs to. Set by the loader.
	Name ServiceName `yaml:"-"`

	// URL is the base URL of the service instance.
	URL string `yaml:"url,omitempty"`

	// Username is the account email (Cloud) or username (Server/DC) for
	// Basic authentication.
	Username string `yaml:"username,omitempty"`

	// APIToken is the Cloud API token paired with Username.
	APIToken string `yaml:"apiToken,omitempty"`

	// PersonalToken is a Server/DC Personal Access Token.
	PersonalToken string `yaml:"personalToken,omitempty"`

	// SSLVerify controls TLS certificate verification for this service.
	// Defaults to true; only an explicit false/0/no disables it.
	SSLVerify bool `yaml:"sslVerify"`

	// CustomHeaders are extra headers attached to every request to this
	// service, parsed from comma-separated key=value pairs when sourced
	// from the environment.
	CustomHeaders map[string]string `yaml:"customHeaders,omitempty"`

	// InstanceOverride forces the deployment topology instead of the
	// URL heuristic: "cloud", "server", or empty to auto-detect. Needed
	// for self-hosted Cloud-compatible domains.
	InstanceOverride string `yaml:"instanceOverride,omitempty"`
}

// Configured reports whether this service has a base URL set.
func (s *ServiceConfig) Configured() bool {
	return s.URL != ""
}

// OAuthConfig holds the Atlassian OAuth 2.0 (3LO) client configuration.
// OAuth applies to Cloud instances only and is shared by both services.
type OAuthConfig struct {
	ClientID     string `yaml:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`
	RedirectURI  string `yaml:"redirectUri,omitempty"`
	Scope        string `yaml:"scope,omitempty"`
	CloudID      string `yaml:"cloudId,omitempty"`

	// AccessToken and RefreshToken allow bring-your-own-token deployments
	// where the 3LO flow ran elsewhere and only token maintenance is needed.
	AccessToken  string `yaml:"accessToken,omitempty"`
	RefreshToken string `yaml:"refreshToken,omitempty"`

	// RefreshThreshold is the remaining access-token TTL below which a
	// proactive refresh is performed. Defaults to 5 minutes.
	RefreshThreshold time.Duration `yaml:"refreshThreshold,omitempty"`
}

// Configured reports whether an OAuth client is structurally present.
// An OAuth client needs at minimum a client ID and client secret.
func (o *OAuthConfig) Configured() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// CacheConfig bounds the shared session cache.
type CacheConfig struct {
	// MaxEntries is the LRU capacity of the session cache.
	MaxEntries int `yaml:"maxEntries,omitempty"`

	// IdleTTL evicts sessions not used for this duration.
	IdleTTL time.Duration `yaml:"idleTTL,omitempty"`
}
