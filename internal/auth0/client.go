// Package auth0 edits the callback, logout and web-origin URL lists of one
// Auth0 application through the Management API.
package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNoClientID means neither an explicit client id nor AUTH0_APP_CLIENT_ID was given.
var ErrNoClientID = errors.New("no client_id provided and AUTH0_APP_CLIENT_ID not set")

// APIError is a non-2xx Management API response.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth0 %s: status %d: %s", e.Op, e.Status, e.Body)
}

// URLSets are the three URL list fields of an Auth0 client.
type URLSets struct {
	Callbacks         []string `json:"callbacks"`
	AllowedLogoutURLs []string `json:"allowed_logout_urls"`
	WebOrigins        []string `json:"web_origins"`
}

// AppClient is the subset of an Auth0 client the manager reads.
type AppClient struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	URLSets
}

// Options configures a Client.
type Options struct {
	Domain       string // tenant domain
	ClientID     string // M2M credentials
	ClientSecret string
	AppClientID  string // default application to edit
	BaseURL      string // defaults to https://<Domain>
	HTTPClient   *http.Client
}

// Client talks to the Management API clients endpoint.
type Client struct {
	baseURL     string
	appClientID string
	http        *http.Client
	tokens      *TokenCache
	log         zerolog.Logger
}

// New builds a Client with its own TokenCache.
func New(o Options) (*Client, error) {
	if o.Domain == "" || o.ClientID == "" || o.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	base := o.BaseURL
	if base == "" {
		base = "https://" + strings.TrimSuffix(o.Domain, "/")
	}
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	tokens := NewTokenCache(ClientCredentials(base, o.Domain, o.ClientID, o.ClientSecret, hc))
	return NewWithTokens(base, o.AppClientID, hc, tokens), nil
}

// NewWithTokens builds a Client around an existing TokenCache.
func NewWithTokens(baseURL, appClientID string, hc *http.Client, tokens *TokenCache) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		appClientID: appClientID,
		http:        hc,
		tokens:      tokens,
		log:         log.With().Str("component", "auth0").Logger(),
	}
}

// clientID resolves an explicit id against the configured default.
func (c *Client) clientID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = strings.TrimSpace(c.appClientID)
	}
	if id == "" {
		return "", ErrNoClientID
	}
	return id, nil
}

// GetClient fetches the application's current configuration.
func (c *Client) GetClient(ctx context.Context, id string) (AppClient, error) {
	ctx, span := otel.Tracer("auth0").Start(ctx, "Client.GetClient")
	defer span.End()
	span.SetAttributes(attribute.String("client_id", id))

	var out AppClient
	if err := c.do(ctx, http.MethodGet, id, nil, &out); err != nil {
		return AppClient{}, err
	}
	out.URLSets = out.URLSets.normalized()
	return out, nil
}

// PatchClient sends only the fields present in fields.
func (c *Client) PatchClient(ctx context.Context, id string, fields map[string][]string) error {
	ctx, span := otel.Tracer("auth0").Start(ctx, "Client.PatchClient")
	defer span.End()
	span.SetAttributes(attribute.String("client_id", id))

	body := make(map[string][]string, len(fields))
	for k, v := range fields {
		if v == nil {
			v = []string{}
		}
		body[k] = v
	}
	c.log.Info().Str("client_id", id).Int("fields", len(body)).Msg("updating Auth0 client")
	return c.do(ctx, http.MethodPatch, id, body, nil)
}

func (c *Client) do(ctx context.Context, method, id string, in, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	endpoint := c.baseURL + "/api/v2/clients/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth0 %s client: %w", strings.ToLower(method), err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: strings.ToLower(method) + " client", Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode auth0 client: %w", err)
	}
	return nil
}

func (s URLSets) normalized() URLSets {
	return URLSets{
		Callbacks:         nonNil(s.Callbacks),
		AllowedLogoutURLs: nonNil(s.AllowedLogoutURLs),
		WebOrigins:        nonNil(s.WebOrigins),
	}
}

func (s URLSets) clone() URLSets {
	return URLSets{
		Callbacks:         append([]string{}, s.Callbacks...),
		AllowedLogoutURLs: append([]string{}, s.AllowedLogoutURLs...),
		WebOrigins:        append([]string{}, s.WebOrigins...),
	}
}

func (s URLSets) fields() map[string][]string {
	return map[string][]string{
		"callbacks":           s.Callbacks,
		"allowed_logout_urls": s.AllowedLogoutURLs,
		"web_origins":         s.WebOrigins,
	}
}

func (s URLSets) counts() map[string]int {
	return map[string]int{
		"callbacks":           len(s.Callbacks),
		"allowed_logout_urls": len(s.AllowedLogoutURLs),
		"web_origins":         len(s.WebOrigins),
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
