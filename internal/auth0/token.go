package auth0

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultRefreshMargin is how long before expiry a cached token is replaced.
const DefaultRefreshMargin = 60 * time.Second

// defaultTokenLifetime applies when the token response carries no expiry.
const defaultTokenLifetime = 24 * time.Hour

// ErrNotConfigured means the tenant domain or M2M credentials are missing.
var ErrNotConfigured = errors.New("AUTH0_DOMAIN, AUTH0_CLIENT_ID or AUTH0_CLIENT_SECRET not set")

// FetchFunc obtains a fresh token from the issuer.
type FetchFunc func(ctx context.Context) (*oauth2.Token, error)

// TokenCache holds one Management API token and refreshes it at call time
// once it is within Margin of expiring. It is safe for concurrent use.
type TokenCache struct {
	Margin time.Duration

	fetch FetchFunc
	now   func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache returns a cache around fetch with the default margin.
func NewTokenCache(fetch FetchFunc) *TokenCache {
	return &TokenCache{Margin: DefaultRefreshMargin, fetch: fetch, now: time.Now}
}

// ClientCredentials returns a FetchFunc for the client-credentials grant
// against baseURL/oauth/token with the tenant's Management API audience.
func ClientCredentials(baseURL, tenant, clientID, secret string, hc *http.Client) FetchFunc {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		TokenURL:     strings.TrimRight(baseURL, "/") + "/oauth/token",
		EndpointParams: map[string][]string{
			"audience": {fmt.Sprintf("https://%s/api/v2/", tenant)},
		},
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return func(ctx context.Context) (*oauth2.Token, error) {
		if hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}
		return cc.Token(ctx)
	}
}

// Valid reports whether the cached token can still be used.
func (c *TokenCache) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked()
}

func (c *TokenCache) validLocked() bool {
	return c.token != "" && c.now().Before(c.expiresAt)
}

// Token returns the cached token or fetches a new one.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.validLocked() {
		return c.token, nil
	}
	if c.fetch == nil {
		return "", ErrNotConfigured
	}
	tok, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch management token: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", errors.New("no access_token in token response")
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = c.now().Add(defaultTokenLifetime)
	}
	c.token = tok.AccessToken
	c.expiresAt = expiry.Add(-c.Margin)
	return c.token, nil
}

// Invalidate drops the cached token, forcing the next call to fetch.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token, c.expiresAt = "", time.Time{}
	c.mu.Unlock()
}
