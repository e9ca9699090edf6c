package config

import (
	"fmt"
	"net/url"
)

// Validate checks structural consistency of a loaded configuration.
// It collects every problem it finds rather than stopping at the first,
// and returns a *ValidationErrors when anything is wrong.
//
// Validation is structural only: it never contacts the remote services.
func Validate(cfg *Config) error {
	errs := &ValidationErrors{}

	validateService(&cfg.Jira, errs)
	validateService(&cfg.Confluence, errs)
	validateOAuth(&cfg.OAuth, errs)

	if cfg.HTTPTimeout <= 0 {
		errs.Add("httpTimeout", "must be positive",
			fmt.Sprintf("remove the setting to use the default of %s", DefaultHTTPTimeout))
	}
	if cfg.Cache.MaxEntries <= 0 {
		errs.Add("cache.maxEntries", "must be positive")
	}
	if cfg.Cache.IdleTTL <= 0 {
		errs.Add("cache.idleTTL", "must be positive")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateService(s *ServiceConfig, errs *ValidationErrors) {
	field := string(s.Name)

	if s.URL != "" {
		u, err := url.Parse(s.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add(field+".url", fmt.Sprintf("%q is not an absolute URL", s.URL),
				"use the form https://your-instance.atlassian.net or https://jira.your-company.com")
		}
	}

	// Partial Basic credentials are a misconfiguration, not a fallback case.
	if s.Username != "" && s.APIToken == "" && s.PersonalToken == "" {
		errs.Add(field+".apiToken", "username is set but no API token or password",
			"set "+field+" API token, or unset the username to use another credential source")
	}
	if s.APIToken != "" && s.Username == "" {
		errs.Add(field+".username", "API token is set but no username")
	}

	switch s.InstanceOverride {
	case OverrideNone, OverrideCloud, OverrideServerDC:
	default:
		errs.Add(field+".instanceOverride",
			fmt.Sprintf("unknown value %q", s.InstanceOverride),
			`use "cloud", "server", or leave unset to auto-detect`)
	}
}

func validateOAuth(o *OAuthConfig, errs *ValidationErrors) {
	// OAuth is optional, but a half-configured client fails fast here
	// instead of being silently skipped by the credential resolver.
	if o.ClientID == "" && o.ClientSecret == "" {
		return
	}
	if o.ClientID == "" {
		errs.Add("oauth.clientId", "client secret is set but client ID is missing")
	}
	if o.ClientSecret == "" {
		errs.Add("oauth.clientSecret", "client ID is set but client secret is missing")
	}
	if o.AccessToken != "" && o.RefreshToken == "" {
		errs.Add("oauth.refreshToken", "pre-provisioned access token has no refresh token",
			"tokens without offline_access cannot be refreshed; re-run the setup flow")
	}
	if o.RefreshThreshold <= 0 {
		errs.Add("oauth.refreshThreshold", "must be positive",
			fmt.Sprintf("remove the setting to use the default of %s", DefaultRefreshThreshold))
	}
}
