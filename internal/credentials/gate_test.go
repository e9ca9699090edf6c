package credentials

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderAuthGate_KillSwitch(t *testing.T) {
	gate := HeaderAuthGate{IgnoreHeaderAuth: true}

	// With the kill switch on, every input yields no credentials --
	// including malformed headers that would otherwise fail.
	inputs := []http.Header{
		{},
		{"Authorization": []string{"Bearer xyz"}},
		{"Authorization": []string{"Token xyz"}},
		{"Authorization": []string{"Bearer "}},
	}
	for _, h := range inputs {
		creds, ok, err := gate.Admit(h)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, KindNone, creds.Kind())
	}
}

func TestHeaderAuthGate_Admit(t *testing.T) {
	gate := HeaderAuthGate{}

	h := http.Header{}
	h.Set("Authorization", "Bearer xyz")
	h.Set(CloudIDHeader, "cid1")

	creds, ok, err := gate.Admit(h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindHeaderOverride, creds.Kind())
	assert.Equal(t, "xyz", creds.HeaderOverride().BearerToken)
	assert.Equal(t, "cid1", creds.HeaderOverride().CloudID)
}

func TestHeaderAuthGate_FallThrough(t *testing.T) {
	gate := HeaderAuthGate{}

	_, ok, err := gate.Admit(http.Header{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHeaderAuthGate_MalformedFailsVerbatim(t *testing.T) {
	gate := HeaderAuthGate{}

	h := http.Header{}
	h.Set("Authorization", "Token xyz")

	_, ok, err := gate.Admit(h)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrInvalidHeaderAuth))
}
