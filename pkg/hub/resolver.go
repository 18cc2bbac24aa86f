package hub

import (
	"context"
	"net/http"
	"net/url"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/grovetools/peersync/version"
)

// EndpointConfig is the resolved connection configuration for one endpoint string.
type EndpointConfig struct {
	// Endpoint is the exact string this configuration was resolved from.
	Endpoint string
	URL      *url.URL
	Header   http.Header
	Session  *models.SessionInfo
}

// Resolver turns an endpoint string into connection configuration, including
// auth token acquisition.
type Resolver interface {
	Resolve(ctx context.Context, endpoint string) (*EndpointConfig, error)
}

// TokenResolver normalises the endpoint to a websocket URL and attaches a
// bearer token read from the environment. Session details are taken from the
// token's claims without verifying its signature; the hub verifies it.
type TokenResolver struct {
	Token func() string
}

// NewTokenResolver reads the token from the named environment variable at
// every resolution.
func NewTokenResolver(tokenEnv string) *TokenResolver {
	return &TokenResolver{
		Token: func() string {
			if tokenEnv == "" {
				return ""
			}
			return os.Getenv(tokenEnv)
		},
	}
}

// Resolve implements Resolver.
func (r *TokenResolver) Resolve(ctx context.Context, endpoint string) (*EndpointConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if endpoint == "" {
		return nil, errors.EndpointInvalid(endpoint, "no endpoint configured")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.EndpointInvalid(endpoint, err.Error())
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, errors.EndpointInvalid(endpoint, "unsupported scheme "+u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.EndpointInvalid(endpoint, "missing host")
	}

	cfg := &EndpointConfig{
		Endpoint: endpoint,
		URL:      u,
		Header:   http.Header{},
	}
	cfg.Header.Set("User-Agent", version.UserAgent())

	var token string
	if r.Token != nil {
		token = r.Token()
	}
	if token != "" {
		session, err := SessionFromToken(token)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConnectFailed, "hub token is malformed").
				WithDetail("endpoint", endpoint)
		}
		cfg.Header.Set("Authorization", "Bearer "+token)
		cfg.Session = session
	}
	return cfg, nil
}

// SessionFromToken extracts session details from an unverified JWT.
func SessionFromToken(token string) (*models.SessionInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}

	session := &models.SessionInfo{}
	if sub, err := claims.GetSubject(); err == nil {
		session.UID = sub
	}
	if alias, ok := claims["alias"].(string); ok {
		session.Alias = alias
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time
	}
	return session, nil
}
