package broker

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"atlauth/internal/config"
	"atlauth/internal/credentials"
	"atlauth/internal/instance"
	"atlauth/internal/oauth"
	"atlauth/internal/retry"
	"atlauth/internal/session"
	"atlauth/pkg/logging"
)

// Broker is the entry point of the session layer. A request flows through it
// as: HeaderAuthGate decides whether a per-request override applies; if not,
// the shared cache is consulted, and on a miss the full pipeline runs:
// credential resolution, instance detection, session construction, and
// OAuth freshening.
//
// The Broker is constructed once and passed by reference into request
// handlers; Reconfigure swaps its state wholesale on configuration reload.
type Broker struct {
	mu      sync.RWMutex
	cfg     *config.Config
	cache   *session.Cache
	manager *oauth.Manager
	gate    credentials.HeaderAuthGate

	store       *oauth.TokenStore
	retryPolicy retry.Policy
}

// New creates a broker from a loaded configuration. The token store may be
// nil for deployments without persisted OAuth tokens.
func New(cfg *config.Config, store *oauth.TokenStore) *Broker {
	b := &Broker{
		store:       store,
		retryPolicy: retry.DefaultPolicy(),
	}
	b.install(cfg)
	return b
}

// install builds the manager, cache, and gate for a configuration.
// Callers must hold b.mu or be the constructor.
func (b *Broker) install(cfg *config.Config) {
	manager := oauth.NewManager(oauth.ManagerConfig{
		OAuth:       cfg.OAuth,
		HTTPTimeout: cfg.HTTPTimeout,
		RetryPolicy: b.retryPolicy,
		Store:       b.store,
	})
	b.cfg = cfg
	b.manager = manager
	b.cache = session.NewCache(cfg.Cache, manager.EnsureFresh)
	b.gate = credentials.HeaderAuthGate{IgnoreHeaderAuth: cfg.IgnoreHeaderAuth}
}

// Reconfigure applies a reloaded configuration: the old cache is dropped so
// every tenant re-resolves credentials and re-detects topology on next use.
// Wire this to config.Manager.Subscribe.
func (b *Broker) Reconfigure(cfg *config.Config) {
	b.mu.Lock()
	old := b.cache
	b.install(cfg)
	b.mu.Unlock()

	old.Close()
	logging.Info("Session", "broker reconfigured, session cache dropped")
}

// SessionFor returns a ready authenticated session for the given service.
//
// Header-derived sessions are built fresh for the request and never enter
// the shared cache; configured-credential sessions are cached per tenant key
// with single-flight construction and transparent OAuth refresh.
func (b *Broker) SessionFor(ctx context.Context, service config.ServiceName, hdr http.Header) (*session.Session, error) {
	b.mu.RLock()
	cfg, cache, manager, gate := b.cfg, b.cache, b.manager, b.gate
	b.mu.RUnlock()

	svc, err := serviceConfig(cfg, service)
	if err != nil {
		return nil, err
	}

	override, err := instance.ParseOverride(svc.InstanceOverride)
	if err != nil {
		return nil, err
	}

	opts := session.BuildOptions{
		Service:       svc.Name,
		Identity:      svc.Username,
		HTTPTimeout:   cfg.HTTPTimeout,
		SSLVerify:     svc.SSLVerify,
		CustomHeaders: svc.CustomHeaders,
	}

	// Per-request override path: stateless, never cached.
	if hdr != nil {
		creds, ok, err := gate.Admit(hdr)
		if err != nil {
			return nil, err
		}
		if ok {
			profile, err := instance.Detect(svc.URL, override)
			if err != nil {
				return nil, err
			}
			return session.Build(creds, profile, opts)
		}
	}

	creds, err := credentials.Resolve(svc, &cfg.OAuth)
	if err != nil {
		return nil, err
	}
	creds = manager.Hydrate(creds)

	profile, err := instance.Detect(svc.URL, override)
	if err != nil {
		return nil, err
	}

	tenantKey := session.TenantKey(creds, profile, svc.Name)
	return cache.GetOrCreate(ctx, tenantKey, func(ctx context.Context) (*session.Session, error) {
		return session.Build(creds, profile, opts)
	})
}

// Invalidate drops the cached session for a tenant key. Callers use this
// after observing a 401/403 from the wrapped API.
func (b *Broker) Invalidate(tenantKey string) {
	b.mu.RLock()
	cache := b.cache
	b.mu.RUnlock()
	cache.Invalidate(tenantKey)
}

// OAuthManager exposes the token manager for the setup command.
func (b *Broker) OAuthManager() *oauth.Manager {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.manager
}

// Close releases the session cache.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Close()
}

func serviceConfig(cfg *config.Config, service config.ServiceName) (*config.ServiceConfig, error) {
	var svc *config.ServiceConfig
	switch service {
	case config.ServiceJira:
		svc = &cfg.Jira
	case config.ServiceConfluence:
		svc = &cfg.Confluence
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
	if !svc.Configured() {
		return nil, fmt.Errorf("service %s has no base URL configured", service)
	}
	return svc, nil
}
