package broker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlauth/internal/config"
	"atlauth/internal/credentials"
	"atlauth/internal/instance"
	"atlauth/internal/oauth"
	"atlauth/internal/session"
)

func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Jira.URL = "https://acme.atlassian.net"
	cfg.Jira.Username = "user@acme.com"
	cfg.Jira.APIToken = "api-token"
	cfg.Confluence.URL = "https://wiki.corp.example.com"
	cfg.Confluence.InstanceOverride = config.OverrideServerDC
	cfg.Confluence.PersonalToken = "conf-pat"
	return &cfg
}

func TestSessionFor_BasicCloud(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	sess, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)

	assert.Equal(t, session.SchemeBasic, sess.Scheme)
	assert.Equal(t, instance.KindCloud, sess.Profile.Kind)
	assert.Equal(t, credentials.KindBasic, sess.Credentials().Kind())
	assert.False(t, sess.Ephemeral)
}

func TestSessionFor_PATServerDC(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	sess, err := b.SessionFor(context.Background(), config.ServiceConfluence, nil)
	require.NoError(t, err)

	assert.Equal(t, session.SchemeBearer, sess.Scheme)
	assert.Equal(t, instance.KindServerDC, sess.Profile.Kind)
	assert.Equal(t, credentials.KindPAT, sess.Credentials().Kind())
	assert.Equal(t, "https://wiki.corp.example.com", sess.BaseURL)
}

func TestSessionFor_ReusesCachedSession(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	first, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)
	second, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestSessionFor_ServicesAreIsolated(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	jira, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)
	confluence, err := b.SessionFor(context.Background(), config.ServiceConfluence, nil)
	require.NoError(t, err)

	assert.NotSame(t, jira, confluence)
	assert.NotEqual(t, jira.TenantKey, confluence.TenantKey)
}

func TestSessionFor_SharedOAuthServicesStayIsolated(t *testing.T) {
	// One OAuth grant configured for both services: each service must get
	// its own session, addressed through its own gateway path.
	store, err := oauth.NewTokenStore(oauth.TokenStoreConfig{StorageDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, store.Store("cloud:cid-1", &oauth.StoredToken{
		AccessToken:  "stored-access",
		RefreshToken: "stored-refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
		CloudID:      "cid-1",
		CreatedAt:    time.Now(),
	}))

	cfg := config.GetDefaultConfig()
	cfg.Jira.URL = "https://acme.atlassian.net"
	cfg.Confluence.URL = "https://acme.atlassian.net"
	cfg.OAuth.ClientID = "client-1"
	cfg.OAuth.ClientSecret = "secret-1"
	cfg.OAuth.CloudID = "cid-1"

	b := New(&cfg, store)
	defer b.Close()

	jira, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)
	confluence, err := b.SessionFor(context.Background(), config.ServiceConfluence, nil)
	require.NoError(t, err)

	assert.NotSame(t, jira, confluence)
	assert.NotEqual(t, jira.TenantKey, confluence.TenantKey)
	assert.Equal(t, "https://api.atlassian.com/ex/jira/cid-1", jira.BaseURL)
	assert.Equal(t, "https://api.atlassian.com/ex/confluence/cid-1", confluence.BaseURL)
}

func TestSessionFor_HeaderOverride(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer request-token")
	hdr.Set(credentials.CloudIDHeader, "cloud-req")

	sess, err := b.SessionFor(context.Background(), config.ServiceJira, hdr)
	require.NoError(t, err)

	assert.True(t, sess.Ephemeral)
	assert.Equal(t, credentials.KindHeaderOverride, sess.Credentials().Kind())
	assert.Equal(t, "https://api.atlassian.com/ex/jira/cloud-req", sess.BaseURL)

	// The override session never lands in the shared cache.
	hdr2 := http.Header{}
	hdr2.Set("Authorization", "Bearer request-token")
	hdr2.Set(credentials.CloudIDHeader, "cloud-req")
	again, err := b.SessionFor(context.Background(), config.ServiceJira, hdr2)
	require.NoError(t, err)
	assert.NotSame(t, sess, again)

	// And the configured-credential path is unaffected by override traffic.
	configured, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)
	assert.Equal(t, credentials.KindBasic, configured.Credentials().Kind())
}

func TestSessionFor_HeaderOverrideKillSwitch(t *testing.T) {
	cfg := testConfig()
	cfg.IgnoreHeaderAuth = true
	b := New(cfg, nil)
	defer b.Close()

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer request-token")

	sess, err := b.SessionFor(context.Background(), config.ServiceJira, hdr)
	require.NoError(t, err)

	// With the kill switch on, the header is ignored entirely and the
	// configured credentials apply.
	assert.False(t, sess.Ephemeral)
	assert.Equal(t, credentials.KindBasic, sess.Credentials().Kind())
}

func TestSessionFor_MalformedHeader(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	hdr := http.Header{}
	hdr.Set("Authorization", "Token xyz")

	_, err := b.SessionFor(context.Background(), config.ServiceJira, hdr)
	assert.ErrorIs(t, err, credentials.ErrInvalidHeaderAuth)
}

func TestSessionFor_NoHeaderFallsBackToConfigured(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	sess, err := b.SessionFor(context.Background(), config.ServiceJira, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, credentials.KindBasic, sess.Credentials().Kind())
}

func TestSessionFor_MissingCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Jira.Username = ""
	cfg.Jira.APIToken = ""
	b := New(cfg, nil)
	defer b.Close()

	_, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	assert.ErrorIs(t, err, credentials.ErrMissingCredentials)
}

func TestSessionFor_UnconfiguredService(t *testing.T) {
	cfg := testConfig()
	cfg.Confluence.URL = ""
	b := New(cfg, nil)
	defer b.Close()

	_, err := b.SessionFor(context.Background(), config.ServiceConfluence, nil)
	assert.Error(t, err)
}

func TestSessionFor_UnknownService(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	_, err := b.SessionFor(context.Background(), config.ServiceName("bitbucket"), nil)
	assert.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	first, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)

	b.Invalidate(first.TenantKey)

	second, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestReconfigure(t *testing.T) {
	b := New(testConfig(), nil)
	defer b.Close()

	before, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)
	assert.Equal(t, credentials.KindBasic, before.Credentials().Kind())

	// Switch Jira to a PAT on a self-hosted deployment.
	cfg := testConfig()
	cfg.Jira.URL = "https://jira.corp.example.com"
	cfg.Jira.Username = ""
	cfg.Jira.APIToken = ""
	cfg.Jira.PersonalToken = "new-pat"
	cfg.Jira.InstanceOverride = config.OverrideServerDC
	b.Reconfigure(cfg)

	after, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)

	assert.NotSame(t, before, after)
	assert.Equal(t, credentials.KindPAT, after.Credentials().Kind())
	assert.Equal(t, instance.KindServerDC, after.Profile.Kind)
}

func TestSessionFor_DetectionOverride(t *testing.T) {
	cfg := testConfig()
	// A corporate domain would classify as Server/DC without the override
	// (a Cloud instance behind a custom domain).
	cfg.Jira.URL = "https://jira.corp.example.com"
	cfg.Jira.InstanceOverride = config.OverrideCloud
	b := New(cfg, nil)
	defer b.Close()

	sess, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	require.NoError(t, err)
	assert.Equal(t, instance.KindCloud, sess.Profile.Kind)
}

func TestSessionFor_AmbiguousDetection(t *testing.T) {
	cfg := testConfig()
	cfg.Jira.URL = "jira.corp.example.com" // no scheme
	b := New(cfg, nil)
	defer b.Close()

	_, err := b.SessionFor(context.Background(), config.ServiceJira, nil)
	assert.ErrorIs(t, err, instance.ErrDetectionAmbiguous)
}
