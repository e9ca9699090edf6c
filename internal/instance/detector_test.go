package instance

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		override Override
		expected Kind
	}{
		{
			name:     "atlassian.net hostname is cloud",
			baseURL:  "https://acme.atlassian.net",
			expected: KindCloud,
		},
		{
			name:     "atlassian.net with path is cloud",
			baseURL:  "https://acme.atlassian.net/wiki",
			expected: KindCloud,
		},
		{
			name:     "jira.com hostname is cloud",
			baseURL:  "https://acme.jira.com",
			expected: KindCloud,
		},
		{
			name:     "api gateway host is cloud",
			baseURL:  "https://api.atlassian.com/ex/jira/abc123",
			expected: KindCloud,
		},
		{
			name:     "mixed-case cloud hostname is cloud",
			baseURL:  "https://Acme.Atlassian.NET",
			expected: KindCloud,
		},
		{
			name:     "corporate domain defaults to server/dc",
			baseURL:  "https://service.acme.local",
			expected: KindServerDC,
		},
		{
			name:     "self-hosted jira defaults to server/dc",
			baseURL:  "https://jira.acme-corp.com",
			expected: KindServerDC,
		},
		{
			name:     "hostname merely containing atlassian is server/dc",
			baseURL:  "https://atlassian.net.evil.example.com",
			expected: KindServerDC,
		},
		{
			name:     "override forces cloud on custom domain",
			baseURL:  "https://jira.acme-corp.com",
			override: OverrideCloud,
			expected: KindCloud,
		},
		{
			name:     "override forces server/dc on cloud domain",
			baseURL:  "https://acme.atlassian.net",
			override: OverrideServerDC,
			expected: KindServerDC,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			profile, err := Detect(tc.baseURL, tc.override)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, profile.Kind)
			assert.Equal(t, tc.baseURL, profile.BaseURL)
			assert.False(t, profile.DetectedAt.IsZero())
		})
	}
}

func TestDetect_Ambiguous(t *testing.T) {
	for _, baseURL := range []string{"", "not a url at all", "acme.atlassian.net", "/relative/path"} {
		_, err := Detect(baseURL, OverrideNone)
		assert.True(t, errors.Is(err, ErrDetectionAmbiguous), "baseURL %q: expected ErrDetectionAmbiguous, got %v", baseURL, err)
	}
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		input    string
		expected Override
		wantErr  bool
	}{
		{input: "", expected: OverrideNone},
		{input: "cloud", expected: OverrideCloud},
		{input: "server", expected: OverrideServerDC},
		{input: "datacenter", expected: OverrideServerDC},
		{input: "self-hosted", wantErr: true},
	}

	for _, tc := range tests {
		override, err := ParseOverride(tc.input)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.input)
			continue
		}
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.expected, override, "input %q", tc.input)
	}
}
