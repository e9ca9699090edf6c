package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"atlauth/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/atlauth"
	configFileName = "config.yaml"
)

// Environment variable names recognized by the loader. Jira and Confluence
// mirror each other; the OAuth client is shared between them.
const (
	EnvJiraURL           = "JIRA_URL"
	EnvJiraUsername      = "JIRA_USERNAME"
	EnvJiraAPIToken      = "JIRA_API_TOKEN"
	EnvJiraPersonalToken = "JIRA_PERSONAL_TOKEN"
	EnvJiraSSLVerify     = "JIRA_SSL_VERIFY"
	EnvJiraCustomHeaders = "JIRA_CUSTOM_HEADERS"

	EnvConfluenceURL           = "CONFLUENCE_URL"
	EnvConfluenceUsername      = "CONFLUENCE_USERNAME"
	EnvConfluenceAPIToken      = "CONFLUENCE_API_TOKEN"
	EnvConfluencePersonalToken = "CONFLUENCE_PERSONAL_TOKEN"
	EnvConfluenceSSLVerify     = "CONFLUENCE_SSL_VERIFY"
	EnvConfluenceCustomHeaders = "CONFLUENCE_CUSTOM_HEADERS"

	EnvOAuthClientID         = "ATLASSIAN_OAUTH_CLIENT_ID"
	EnvOAuthClientSecret     = "ATLASSIAN_OAUTH_CLIENT_SECRET"
	EnvOAuthRedirectURI      = "ATLASSIAN_OAUTH_REDIRECT_URI"
	EnvOAuthScope            = "ATLASSIAN_OAUTH_SCOPE"
	EnvOAuthCloudID          = "ATLASSIAN_OAUTH_CLOUD_ID"
	EnvOAuthAccessToken      = "ATLASSIAN_OAUTH_ACCESS_TOKEN"
	EnvOAuthRefreshToken     = "ATLASSIAN_OAUTH_REFRESH_TOKEN"
	EnvOAuthRefreshThreshold = "ATLASSIAN_OAUTH_REFRESH_THRESHOLD"

	EnvIgnoreHeaderAuth = "ATLASSIAN_IGNORE_HEADER_AUTH"
	EnvInstanceOverride = "ATLASSIAN_INSTANCE_OVERRIDE"
	EnvHTTPTimeout      = "ATLASSIAN_HTTP_TIMEOUT"
)

// GetDefaultConfigPath returns the default configuration directory
// (~/.config/atlauth), or an error if the home directory cannot be determined.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration for atlauth.
//
// Precedence, lowest to highest: built-in defaults, config.yaml in configPath
// (if present), then environment variables. Environment variables win so
// containerized deployments can override a checked-in file without editing it.
func LoadConfig(configPath string) (*Config, error) {
	cfg := GetDefaultConfig()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("Config", "loaded configuration from %s", configFilePath)
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("Config", "no config.yaml at %s, using defaults and environment", configFilePath)
	default:
		return nil, fmt.Errorf("error reading %s: %w", configFilePath, err)
	}

	// Names are lost through YAML round-trips; restore them before use.
	cfg.Jira.Name = ServiceJira
	cfg.Confluence.Name = ServiceConfluence

	ApplyEnv(&cfg, nil)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. The env map, when
// non-nil, shadows the process environment (used by tests and per-request
// environments).
func ApplyEnv(cfg *Config, env map[string]string) {
	applyServiceEnv(&cfg.Jira, env, serviceEnvNames{
		url:           EnvJiraURL,
		username:      EnvJiraUsername,
		apiToken:      EnvJiraAPIToken,
		personalToken: EnvJiraPersonalToken,
		sslVerify:     EnvJiraSSLVerify,
		customHeaders: EnvJiraCustomHeaders,
	})
	applyServiceEnv(&cfg.Confluence, env, serviceEnvNames{
		url:           EnvConfluenceURL,
		username:      EnvConfluenceUsername,
		apiToken:      EnvConfluenceAPIToken,
		personalToken: EnvConfluencePersonalToken,
		sslVerify:     EnvConfluenceSSLVerify,
		customHeaders: EnvConfluenceCustomHeaders,
	})

	o := &cfg.OAuth
	o.ClientID = Getenv(env, EnvOAuthClientID, o.ClientID)
	o.ClientSecret = Getenv(env, EnvOAuthClientSecret, o.ClientSecret)
	o.RedirectURI = Getenv(env, EnvOAuthRedirectURI, o.RedirectURI)
	o.Scope = Getenv(env, EnvOAuthScope, o.Scope)
	o.CloudID = Getenv(env, EnvOAuthCloudID, o.CloudID)
	o.AccessToken = Getenv(env, EnvOAuthAccessToken, o.AccessToken)
	o.RefreshToken = Getenv(env, EnvOAuthRefreshToken, o.RefreshToken)
	o.RefreshThreshold = GetenvDuration(env, EnvOAuthRefreshThreshold, o.RefreshThreshold)

	if Getenv(env, EnvIgnoreHeaderAuth, "") != "" {
		cfg.IgnoreHeaderAuth = IsEnvExtendedTruthy(env, EnvIgnoreHeaderAuth, "")
	}
	if override := Getenv(env, EnvInstanceOverride, ""); override != "" {
		cfg.Jira.InstanceOverride = override
		cfg.Confluence.InstanceOverride = override
	}
	cfg.HTTPTimeout = GetenvDuration(env, EnvHTTPTimeout, cfg.HTTPTimeout)
}

type serviceEnvNames struct {
	url           string
	username      string
	apiToken      string
	personalToken string
	sslVerify     string
	customHeaders string
}

func applyServiceEnv(s *ServiceConfig, env map[string]string, names serviceEnvNames) {
	s.URL = Getenv(env, names.url, s.URL)
	s.Username = Getenv(env, names.username, s.Username)
	s.APIToken = Getenv(env, names.apiToken, s.APIToken)
	s.PersonalToken = Getenv(env, names.personalToken, s.PersonalToken)
	if Getenv(env, names.sslVerify, "") != "" {
		s.SSLVerify = IsEnvSSLVerify(env, names.sslVerify)
	}
	if headers := ParseCustomHeaders(Getenv(env, names.customHeaders, "")); headers != nil {
		s.CustomHeaders = headers
	}
}
