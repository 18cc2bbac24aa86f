package hub

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/grovetools/peersync/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNormalisesScheme(t *testing.T) {
	r := NewTokenResolver("")
	tests := []struct {
		endpoint string
		want     string
	}{
		{"ws://hub.local:8080/sync", "ws://hub.local:8080/sync"},
		{"wss://hub.example.com/sync", "wss://hub.example.com/sync"},
		{"http://hub.local/sync", "ws://hub.local/sync"},
		{"https://hub.example.com", "wss://hub.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg, err := r.Resolve(context.Background(), tt.endpoint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.URL.String())
			assert.Equal(t, tt.endpoint, cfg.Endpoint)
			assert.Empty(t, cfg.Header.Get("Authorization"))
			assert.Nil(t, cfg.Session)
		})
	}
}

func TestResolveRejectsBadEndpoints(t *testing.T) {
	r := NewTokenResolver("")
	for _, endpoint := range []string{"", "ftp://hub.local", "ws://", "://nope"} {
		_, err := r.Resolve(context.Background(), endpoint)
		assert.True(t, errors.Is(err, errors.ErrCodeEndpointInvalid), "endpoint %q", endpoint)
	}
}

func TestResolveAttachesToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "uid-123",
		"alias": "Lalafell Enjoyer",
		"exp":   exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	t.Setenv("PEERSYNC_TEST_TOKEN", token)
	cfg, err := NewTokenResolver("PEERSYNC_TEST_TOKEN").Resolve(context.Background(), "wss://hub.example.com")
	require.NoError(t, err)

	assert.Equal(t, "Bearer "+token, cfg.Header.Get("Authorization"))
	require.NotNil(t, cfg.Session)
	assert.Equal(t, "uid-123", cfg.Session.UID)
	assert.Equal(t, "Lalafell Enjoyer", cfg.Session.Alias)
	assert.True(t, exp.Equal(cfg.Session.ExpiresAt))
}

func TestResolveRejectsMalformedToken(t *testing.T) {
	t.Setenv("PEERSYNC_TEST_TOKEN", "not-a-jwt")
	_, err := NewTokenResolver("PEERSYNC_TEST_TOKEN").Resolve(context.Background(), "wss://hub.example.com")
	assert.True(t, errors.Is(err, errors.ErrCodeConnectFailed))
}
