package credentials

import (
	"errors"
	"net/http"
	"testing"

	"atlauth/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jiraService() *config.ServiceConfig {
	return &config.ServiceConfig{
		Name: config.ServiceJira,
		URL:  "https://acme.atlassian.net",
	}
}

func TestResolve_Priority(t *testing.T) {
	// A source set with a structurally valid OAuth config, a PAT, and Basic
	// credentials must resolve to OAuth regardless of the others.
	svc := jiraService()
	svc.PersonalToken = "pat999"
	svc.Username = "a@b.com"
	svc.APIToken = "tok123"

	oauth := &config.OAuthConfig{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
	}

	creds, err := Resolve(svc, oauth)
	require.NoError(t, err)
	assert.Equal(t, KindOAuth, creds.Kind())

	// PAT beats Basic when OAuth is absent.
	creds, err = Resolve(svc, &config.OAuthConfig{})
	require.NoError(t, err)
	assert.Equal(t, KindPAT, creds.Kind())
	assert.Equal(t, "pat999", creds.PAT().Token)

	// Basic is last.
	svc.PersonalToken = ""
	creds, err = Resolve(svc, &config.OAuthConfig{})
	require.NoError(t, err)
	assert.Equal(t, KindBasic, creds.Kind())
	assert.Equal(t, "a@b.com", creds.Basic().Identity)
	assert.Equal(t, "tok123", creds.Basic().Secret)
}

func TestResolve_Missing(t *testing.T) {
	_, err := Resolve(jiraService(), &config.OAuthConfig{})
	assert.True(t, errors.Is(err, ErrMissingCredentials))

	// A client ID alone is not a structurally complete OAuth config and
	// must not resolve (nor silently downgrade masking the problem --
	// there is nothing to downgrade to here).
	_, err = Resolve(jiraService(), &config.OAuthConfig{ClientID: "client-1"})
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestResolve_BasicScenarioA(t *testing.T) {
	svc := jiraService()
	svc.Username = "a@b.com"
	svc.APIToken = "tok123"

	creds, err := Resolve(svc, nil)
	require.NoError(t, err)
	require.Equal(t, KindBasic, creds.Kind())
	assert.Equal(t, "a@b.com", creds.Basic().Identity)
	assert.Equal(t, "tok123", creds.Basic().Secret)
}

func TestResolveFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer xyz")
	h.Set(CloudIDHeader, "cid1")

	creds, ok, err := ResolveFromHeaders(h)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, KindHeaderOverride, creds.Kind())
	assert.Equal(t, "xyz", creds.HeaderOverride().BearerToken)
	assert.Equal(t, "cid1", creds.HeaderOverride().CloudID)
	assert.Equal(t, "cid1", creds.CloudID())
}

func TestResolveFromHeaders_NoHeader(t *testing.T) {
	_, ok, err := ResolveFromHeaders(http.Header{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveFromHeaders_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "wrong scheme", value: "Token xyz"},
		{name: "basic scheme", value: "Basic dXNlcjpwYXNz"},
		{name: "empty token", value: "Bearer "},
		{name: "scheme only", value: "Bearer"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			h.Set("Authorization", tc.value)

			_, ok, err := ResolveFromHeaders(h)
			assert.False(t, ok)
			assert.True(t, errors.Is(err, ErrInvalidHeaderAuth), "expected ErrInvalidHeaderAuth, got %v", err)
		})
	}
}

func TestCredentials_RedactedString(t *testing.T) {
	creds := NewOAuth(OAuth{
		ClientID:     "client-1",
		ClientSecret: "super-secret",
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
		CloudID:      "cid1",
	})
	s := creds.String()
	assert.NotContains(t, s, "super-secret")
	assert.NotContains(t, s, "access-token-value")
	assert.NotContains(t, s, "refresh-token-value")
	assert.Contains(t, s, "client-1")

	basic := NewBasic("a@b.com", "hunter2")
	assert.NotContains(t, basic.String(), "hunter2")

	header := NewHeaderOverride("bearer-value", "cid1")
	assert.NotContains(t, header.String(), "bearer-value")
}

func TestCredentials_Principal(t *testing.T) {
	assert.Equal(t, "basic:a@b.com", NewBasic("a@b.com", "s").Principal())
	assert.Equal(t, "pat", NewPAT("tok").Principal())
	assert.Equal(t, "oauth:client-1", NewOAuth(OAuth{ClientID: "client-1"}).Principal())

	// Principals feed cache keys and must never contain secrets.
	assert.NotContains(t, NewPAT("secret-token").Principal(), "secret-token")
}
