package config

import "time"

const (
	// DefaultHTTPTimeout bounds outbound network calls made by the session layer.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultRefreshThreshold is the remaining access-token TTL below which
	// a proactive OAuth refresh is performed.
	DefaultRefreshThreshold = 5 * time.Minute

	// DefaultCacheMaxEntries is the LRU capacity of the session cache.
	DefaultCacheMaxEntries = 128

	// DefaultCacheIdleTTL evicts sessions unused for this duration.
	DefaultCacheIdleTTL = 30 * time.Minute

	// DefaultOAuthScope is the scope set requested when none is configured.
	// offline_access is always appended if missing so refresh tokens are issued.
	DefaultOAuthScope = "read:jira-work write:jira-work read:confluence-content.all write:confluence-content offline_access"

	// DefaultRedirectURI is the loopback redirect used by the setup wizard.
	DefaultRedirectURI = "http://localhost:8080/callback"
)

// GetDefaultConfig returns the default configuration for atlauth.
func GetDefaultConfig() Config {
	return Config{
		Jira: ServiceConfig{
			Name:      ServiceJira,
			SSLVerify: true,
		},
		Confluence: ServiceConfig{
			Name:      ServiceConfluence,
			SSLVerify: true,
		},
		OAuth: OAuthConfig{
			Scope:            DefaultOAuthScope,
			RedirectURI:      DefaultRedirectURI,
			RefreshThreshold: DefaultRefreshThreshold,
		},
		HTTPTimeout: DefaultHTTPTimeout,
		Cache: CacheConfig{
			MaxEntries: DefaultCacheMaxEntries,
			IdleTTL:    DefaultCacheIdleTTL,
		},
	}
}
