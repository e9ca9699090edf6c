package session

import (
	"crypto/tls"
	"net/http"
	"sync/atomic"
	"time"
)

// authTransport injects the resolved Authorization header (and any
// configured custom headers) into every outbound request. The header value
// lives behind an atomic pointer so a token refresh swaps it in one step:
// in-flight requests see either the old or the new value, never a torn one.
type authTransport struct {
	base          http.RoundTripper
	authorization atomic.Pointer[string]
	customHeaders map[string]string
}

func newAuthTransport(base http.RoundTripper, authorization string, customHeaders map[string]string) *authTransport {
	t := &authTransport{
		base:          base,
		customHeaders: customHeaders,
	}
	t.authorization.Store(&authorization)
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", *t.authorization.Load())
	for k, v := range t.customHeaders {
		clone.Header.Set(k, v)
	}
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", "application/json")
	}
	return t.base.RoundTrip(clone)
}

// setAuthorization atomically replaces the Authorization header value.
func (t *authTransport) setAuthorization(value string) {
	t.authorization.Store(&value)
}

// newBaseTransport builds the underlying transport honoring the per-service
// TLS verification setting.
func newBaseTransport(sslVerify bool) http.RoundTripper {
	if sslVerify {
		return http.DefaultTransport
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- explicit operator opt-out for self-signed Server/DC certs
	return transport
}

func newHTTPClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
