package oauth

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCallbackServer(t *testing.T) (*CallbackServer, string) {
	t.Helper()

	// Port 0 lets the listener pick a free port; the real address is read
	// back after Start.
	s, err := NewCallbackServer("http://127.0.0.1:0/callback")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, s.Start(ctx))
	t.Cleanup(s.Stop)

	return s, "http://" + s.listener.Addr().String() + "/callback"
}

func TestCallbackServer_ReceivesCode(t *testing.T) {
	s, callbackURL := startCallbackServer(t)

	resp, err := http.Get(callbackURL + "?code=auth-code&state=nonce-1")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Authorization complete")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := s.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.Equal(t, "auth-code", result.Code)
	assert.Equal(t, "nonce-1", result.State)
	assert.False(t, result.IsError())
}

func TestCallbackServer_ProviderError(t *testing.T) {
	s, callbackURL := startCallbackServer(t)

	resp, err := http.Get(callbackURL + "?error=access_denied&error_description=user+declined")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "Authorization failed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := s.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.True(t, result.IsError())
	assert.Equal(t, "access_denied", result.Error)
	assert.Equal(t, "user declined", result.ErrorDescription)
}

func TestCallbackServer_EscapesProviderError(t *testing.T) {
	s, callbackURL := startCallbackServer(t)

	resp, err := http.Get(callbackURL + "?error=" + url.QueryEscape("<script>alert(1)</script>") +
		"&error_description=" + url.QueryEscape(`"><img src=x>`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	// Provider-controlled parameters must never reach the page unescaped.
	assert.NotContains(t, string(body), "<script>")
	assert.NotContains(t, string(body), "<img")
	assert.Contains(t, string(body), "&lt;script&gt;")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := s.WaitForCallback(ctx)
	require.NoError(t, err)
	// The raw values still flow to the caller for error reporting.
	assert.Equal(t, "<script>alert(1)</script>", result.Error)
}

func TestCallbackServer_SecondCallbackRejected(t *testing.T) {
	s, callbackURL := startCallbackServer(t)

	resp, err := http.Get(callbackURL + "?code=first&state=s1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(callbackURL + "?code=second&state=s2")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := s.WaitForCallback(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", result.Code)
}

func TestCallbackServer_ContextCancellation(t *testing.T) {
	s, _ := startCallbackServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.WaitForCallback(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCallbackServer_InvalidRedirectURI(t *testing.T) {
	_, err := NewCallbackServer("not a url")
	assert.Error(t, err)
}
