package oauth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"atlauth/internal/config"
	"atlauth/internal/credentials"
	"atlauth/internal/retry"
	"atlauth/internal/session"
	"atlauth/pkg/logging"
	pkgoauth "atlauth/pkg/oauth"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// State represents the current state of the OAuth credential lifecycle.
type State int

const (
	// StateUnauthenticated means no token exists and no flow has started.
	StateUnauthenticated State = iota

	// StateAuthorizationPending means an authorization URL has been issued
	// and the flow awaits the callback code.
	StateAuthorizationPending

	// StateAuthenticated means a usable access token is held.
	StateAuthenticated

	// StateExpiring means a refresh is in flight.
	StateExpiring

	// StateInvalid means the refresh token was rejected; recovery requires
	// re-running the authorization flow.
	StateInvalid
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthorizationPending:
		return "authorization_pending"
	case StateAuthenticated:
		return "authenticated"
	case StateExpiring:
		return "expiring"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Atlassian OAuth 2.0 (3LO) endpoints.
const (
	DefaultAuthURL      = "https://auth.atlassian.com/authorize"
	DefaultTokenURL     = "https://auth.atlassian.com/oauth/token"
	DefaultResourcesURL = "https://api.atlassian.com/oauth/token/accessible-resources"

	// oauthAudience is required by Atlassian in the authorization request.
	oauthAudience = "api.atlassian.com"

	// offlineAccessScope must be requested for a refresh token to be issued.
	offlineAccessScope = "offline_access"
)

// AuthorizationRequest is the first phase of the two-phase authorization
// protocol: the URL for interactive user consent plus the opaque values the
// caller must present back to ExchangeCode.
type AuthorizationRequest struct {
	// URL is opened in the user's browser for consent.
	URL string

	// State is the anti-CSRF nonce embedded in the URL.
	State string

	// CodeVerifier is the PKCE secret; it never travels through the browser.
	CodeVerifier string
}

// ManagerConfig configures the token manager.
type ManagerConfig struct {
	// OAuth is the client configuration (ID, secret, redirect, scope, cloud ID).
	OAuth config.OAuthConfig

	// HTTPTimeout bounds every outbound call made by the manager.
	HTTPTimeout time.Duration

	// RetryPolicy governs transient-failure retries on token operations.
	RetryPolicy retry.Policy

	// Store persists tokens across restarts. Optional.
	Store *TokenStore

	// AuthURL, TokenURL, and ResourcesURL override the Atlassian endpoints,
	// primarily for tests against a local fake provider.
	AuthURL      string
	TokenURL     string
	ResourcesURL string
}

// Manager owns the OAuth 2.0 authorization and refresh state machine for the
// configured client: PKCE authorization, code exchange, and proactive
// refresh with single-flight concurrency control per tenant.
type Manager struct {
	mu      sync.RWMutex
	state   State
	pending *pendingAuthorization

	// tenantStates tracks the refresh lifecycle per tenant key, so one
	// tenant's failing refresh never mislabels the state of another.
	tenantStates map[string]State

	cfg          config.OAuthConfig
	threshold    time.Duration
	retryPolicy  retry.Policy
	store        *TokenStore
	httpClient   *http.Client
	endpoint     oauth2.Endpoint
	resourcesURL string

	// refreshGroup collapses concurrent refreshes for the same tenant key
	// into one outbound grant; duplicate refresh calls can invalidate each
	// other's issued tokens on some providers.
	refreshGroup singleflight.Group
}

type pendingAuthorization struct {
	state        string
	codeVerifier string
}

// NewManager creates a token manager.
func NewManager(cfg ManagerConfig) *Manager {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	threshold := cfg.OAuth.RefreshThreshold
	if threshold <= 0 {
		threshold = config.DefaultRefreshThreshold
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	resourcesURL := cfg.ResourcesURL
	if resourcesURL == "" {
		resourcesURL = DefaultResourcesURL
	}

	return &Manager{
		state:        StateUnauthenticated,
		tenantStates: make(map[string]State),
		cfg:          cfg.OAuth,
		threshold:    threshold,
		retryPolicy:  cfg.RetryPolicy,
		store:        cfg.Store,
		httpClient:   &http.Client{Timeout: timeout},
		endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		resourcesURL: resourcesURL,
	}
}

// State returns the state of the authorization flow (Authorize/ExchangeCode).
// Refresh lifecycle is tracked per tenant; see TenantState.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// TenantState returns the refresh lifecycle state for a tenant key.
// Tenants that have never needed a refresh report Unauthenticated.
func (m *Manager) TenantState(tenantKey string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tenantStates[tenantKey]
}

// Authorize starts the authorization flow: it generates a PKCE
// verifier/challenge pair and an anti-CSRF state nonce and returns the
// authorization URL for interactive consent. The flow transitions to
// AuthorizationPending; a previously pending flow is replaced.
//
// The offline_access scope is always requested so the provider issues a
// refresh token.
func (m *Manager) Authorize() (AuthorizationRequest, error) {
	pkce, err := pkgoauth.GeneratePKCE()
	if err != nil {
		return AuthorizationRequest{}, err
	}
	state, err := pkgoauth.GenerateState()
	if err != nil {
		return AuthorizationRequest{}, err
	}

	oc := m.oauth2Config()
	url := oc.AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", oauthAudience),
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge", pkce.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.CodeChallengeMethod),
	)

	m.mu.Lock()
	m.state = StateAuthorizationPending
	m.pending = &pendingAuthorization{
		state:        state,
		codeVerifier: pkce.CodeVerifier,
	}
	m.mu.Unlock()

	logging.Info("OAuth", "authorization flow started for client %s", m.cfg.ClientID)
	return AuthorizationRequest{
		URL:          url,
		State:        state,
		CodeVerifier: pkce.CodeVerifier,
	}, nil
}

// ExchangeCode completes the authorization flow: it validates the returned
// state against the pending flow, exchanges the code (with the PKCE
// verifier) for tokens, and resolves the cloud ID when none is configured.
// On success the manager transitions to Authenticated and returns ready
// OAuth credentials; the token is persisted when a store is configured.
//
// A state mismatch or provider rejection fails with ErrAuthorizationDenied.
func (m *Manager) ExchangeCode(ctx context.Context, code, codeVerifier, state string) (credentials.Credentials, error) {
	m.mu.RLock()
	pending := m.pending
	m.mu.RUnlock()

	if pending == nil {
		return credentials.Credentials{}, ErrNoPendingAuthorization
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(pending.state)) != 1 {
		m.setState(StateInvalid)
		return credentials.Credentials{}, fmt.Errorf("%w: state mismatch", ErrAuthorizationDenied)
	}
	if codeVerifier == "" {
		codeVerifier = pending.codeVerifier
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	var token *oauth2.Token
	err := m.retryPolicy.Do(ctx, "OAuth", func(ctx context.Context) error {
		tok, err := m.oauth2Config().Exchange(ctx, code,
			oauth2.SetAuthURLParam("code_verifier", codeVerifier))
		if err != nil {
			return classifyTokenError(err, ErrAuthorizationDenied)
		}
		token = tok
		return nil
	})
	if err != nil {
		m.setState(StateInvalid)
		logging.Error("OAuth", err, "authorization code exchange failed")
		return credentials.Credentials{}, err
	}
	if token.RefreshToken == "" {
		m.setState(StateInvalid)
		return credentials.Credentials{}, fmt.Errorf("%w: provider issued no refresh token (offline_access missing from grant)", ErrAuthorizationDenied)
	}

	cloudID := m.cfg.CloudID
	if cloudID == "" {
		cloudID, err = m.resolveCloudID(ctx, token.AccessToken)
		if err != nil {
			m.setState(StateInvalid)
			return credentials.Credentials{}, err
		}
	}

	creds := credentials.NewOAuth(credentials.OAuth{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		CloudID:      cloudID,
	})

	m.mu.Lock()
	m.state = StateAuthenticated
	m.pending = nil
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Store(m.storeKey(cloudID), &StoredToken{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenType:    token.TokenType,
			Expiry:       token.Expiry,
			CloudID:      cloudID,
			CreatedAt:    time.Now(),
		}); err != nil {
			logging.Warn("OAuth", "token obtained but not persisted: %v", err)
		}
	}

	logging.Info("OAuth", "authorization completed for cloud %s (token expires %s)",
		cloudID, token.Expiry.Format(time.RFC3339))
	return creds, nil
}

// Hydrate completes OAuth credentials missing an access token from the
// persisted store (tokens obtained by a previous 'auth setup' run). Non-OAuth
// credentials and already-complete credentials pass through unchanged.
func (m *Manager) Hydrate(creds credentials.Credentials) credentials.Credentials {
	o := creds.OAuth()
	if o == nil || o.AccessToken != "" || m.store == nil {
		return creds
	}

	stored := m.store.Get(m.storeKey(o.CloudID))
	if stored == nil {
		return creds
	}

	cloudID := o.CloudID
	if cloudID == "" {
		cloudID = stored.CloudID
	}
	logging.Debug("OAuth", "hydrated credentials from stored token for cloud %s", cloudID)
	return credentials.NewOAuth(credentials.OAuth{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		ExpiresAt:    stored.Expiry,
		CloudID:      cloudID,
	})
}

// EnsureFresh refreshes a session's access token when its remaining TTL is
// below the configured threshold (or its expiry is unknown). Non-OAuth
// sessions pass through untouched.
//
// Refresh is single-flight per tenant key: concurrent callers await the one
// in-flight grant and share its outcome. The refreshed token is swapped into
// the session atomically. A revoked or expired refresh token marks the
// tenant Invalid and fails with ErrReauthorizationRequired.
func (m *Manager) EnsureFresh(ctx context.Context, sess *session.Session) error {
	o := sess.Credentials().OAuth()
	if o == nil {
		return nil
	}
	if tokenFresh(o, m.threshold) {
		return nil
	}

	_, err, _ := m.refreshGroup.Do(sess.TenantKey, func() (interface{}, error) {
		// A caller that waited on an in-flight refresh sees its result here.
		if o := sess.Credentials().OAuth(); tokenFresh(o, m.threshold) {
			return nil, nil
		}
		return nil, m.refresh(ctx, sess)
	})
	return err
}

func tokenFresh(o *credentials.OAuth, threshold time.Duration) bool {
	return o.AccessToken != "" && !o.ExpiresAt.IsZero() && time.Until(o.ExpiresAt) > threshold
}

func (m *Manager) refresh(ctx context.Context, sess *session.Session) error {
	o := sess.Credentials().OAuth()
	if o.RefreshToken == "" {
		m.setTenantState(sess.TenantKey, StateInvalid)
		return fmt.Errorf("%w: no refresh token held", ErrReauthorizationRequired)
	}

	m.setTenantState(sess.TenantKey, StateExpiring)
	logging.Debug("OAuth", "refreshing access token for tenant %s", sess.TenantKey)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	var token *oauth2.Token
	err := m.retryPolicy.Do(ctx, "OAuth", func(ctx context.Context) error {
		// Seed with a forced-expired token so the library performs the
		// refresh grant unconditionally.
		seed := &oauth2.Token{
			AccessToken:  o.AccessToken,
			RefreshToken: o.RefreshToken,
			Expiry:       time.Now().Add(-time.Minute),
		}
		tok, err := m.oauth2Config().TokenSource(ctx, seed).Token()
		if err != nil {
			return classifyTokenError(err, ErrReauthorizationRequired)
		}
		token = tok
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrReauthorizationRequired) {
			m.setTenantState(sess.TenantKey, StateInvalid)
			logging.Warn("OAuth", "refresh token rejected for tenant %s, re-authorization required", sess.TenantKey)
		} else {
			m.setTenantState(sess.TenantKey, StateAuthenticated)
		}
		return err
	}

	// Providers may rotate the refresh token; keep the old one otherwise.
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = o.RefreshToken
	}
	if err := sess.ReplaceOAuthToken(token.AccessToken, refreshToken, token.Expiry); err != nil {
		return err
	}
	m.setTenantState(sess.TenantKey, StateAuthenticated)

	if m.store != nil {
		if err := m.store.Store(m.storeKey(o.CloudID), &StoredToken{
			AccessToken:  token.AccessToken,
			RefreshToken: refreshToken,
			TokenType:    token.TokenType,
			Expiry:       token.Expiry,
			CloudID:      o.CloudID,
			CreatedAt:    time.Now(),
		}); err != nil {
			logging.Warn("OAuth", "refreshed token not persisted: %v", err)
		}
	}

	logging.Info("OAuth", "access token refreshed for tenant %s (expires %s)",
		sess.TenantKey, token.Expiry.Format(time.RFC3339))
	return nil
}

// accessibleResource is one entry of the accessible-resources response.
type accessibleResource struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// resolveCloudID looks up the cloud ID the freshly issued token grants
// access to. The first accessible resource wins; multi-site grants need an
// explicit cloud ID in configuration.
func (m *Manager) resolveCloudID(ctx context.Context, accessToken string) (string, error) {
	var resources []accessibleResource
	err := m.retryPolicy.Do(ctx, "OAuth", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.resourcesURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := m.httpClient.Do(req)
		if err != nil {
			return &retry.TransientError{Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("accessible-resources returned status %d", resp.StatusCode)
			if retry.RetryableStatus(resp.StatusCode) {
				return &retry.TransientError{Err: err}
			}
			return err
		}
		return json.NewDecoder(resp.Body).Decode(&resources)
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve cloud ID: %w", err)
	}
	if len(resources) == 0 {
		return "", fmt.Errorf("%w: token grants access to no cloud sites", ErrAuthorizationDenied)
	}
	if len(resources) > 1 {
		logging.Warn("OAuth", "token grants access to %d sites, using %s", len(resources), resources[0].Name)
	}
	return resources[0].ID, nil
}

func (m *Manager) oauth2Config() *oauth2.Config {
	scopes := strings.Fields(m.cfg.Scope)
	if !containsScope(scopes, offlineAccessScope) {
		scopes = append(scopes, offlineAccessScope)
	}
	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		RedirectURL:  m.cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint:     m.endpoint,
	}
}

// storeKey derives the token-store key: the cloud ID when known, else the
// client ID (a flow that has not resolved its site yet).
func (m *Manager) storeKey(cloudID string) string {
	if cloudID != "" {
		return "cloud:" + cloudID
	}
	return "client:" + m.cfg.ClientID
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) setTenantState(tenantKey string, s State) {
	m.mu.Lock()
	m.tenantStates[tenantKey] = s
	m.mu.Unlock()
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

// classifyTokenError maps a token-endpoint failure onto the error taxonomy:
// rate limiting and server-side failures are retryable, definitive
// rejections wrap the provided terminal sentinel, and transport failures
// are transient.
func classifyTokenError(err error, terminal error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		code := 0
		if re.Response != nil {
			code = re.Response.StatusCode
		}
		switch {
		case code == http.StatusTooManyRequests:
			return &retry.RateLimitError{RetryAfter: retryAfterHint(re.Response), Err: err}
		case code >= 500, code == http.StatusRequestTimeout:
			return &retry.TransientError{Err: err}
		default:
			// 400/401/403: invalid_grant, revoked token, bad client.
			return fmt.Errorf("%w: %s", terminal, re.ErrorCode)
		}
	}
	// No structured provider response: treat as a network-level failure.
	return &retry.TransientError{Err: err}
}

func retryAfterHint(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
