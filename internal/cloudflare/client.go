// Package cloudflare wraps the Cloudflare custom-hostname API: lookup by
// name, fetch, create with DV/TXT validation, list and delete.
package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
)

var (
	// ErrNotFound means no custom hostname matches the requested name or id.
	ErrNotFound = errors.New("custom hostname not found")
	// ErrDuplicateHostname means Cloudflare already holds the hostname.
	ErrDuplicateHostname = errors.New("duplicate custom hostname")
	// ErrNotConfigured means the token or zone id is missing.
	ErrNotConfigured = errors.New("cloudflare token and zone id are required")
)

// API is the subset of the cloudflare-go client used here.
type API interface {
	CustomHostnames(ctx context.Context, zoneID string, page int, filter cf.CustomHostname) ([]cf.CustomHostname, cf.ResultInfo, error)
	CustomHostname(ctx context.Context, zoneID string, customHostnameID string) (cf.CustomHostname, error)
	CreateCustomHostname(ctx context.Context, zoneID string, ch cf.CustomHostname) (*cf.CustomHostnameResponse, error)
	DeleteCustomHostname(ctx context.Context, zoneID string, customHostnameID string) error
}

// Client resolves and mutates custom hostnames in a single zone.
type Client struct {
	api    API
	zoneID string
	log    zerolog.Logger
}

// Options for New.
type Options struct {
	Token      string
	ZoneID     string
	BaseURL    string
	HTTPClient *http.Client
}

// New builds a Client backed by the cloudflare-go SDK.
func New(o Options) (*Client, error) {
	if strings.TrimSpace(o.Token) == "" || strings.TrimSpace(o.ZoneID) == "" {
		return nil, ErrNotConfigured
	}
	var opts []cf.Option
	if o.BaseURL != "" {
		opts = append(opts, cf.BaseURL(o.BaseURL))
	}
	if o.HTTPClient != nil {
		opts = append(opts, cf.HTTPClient(o.HTTPClient))
	}
	api, err := cf.NewWithAPIToken(o.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloudflare client: %w", err)
	}
	return NewWithAPI(api, o.ZoneID), nil
}

// NewWithAPI wraps an existing API implementation.
func NewWithAPI(api API, zoneID string) *Client {
	return &Client{api: api, zoneID: zoneID, log: log.With().Str("component", "cloudflare").Logger()}
}

// Find resolves the id of the custom hostname for name. It tries the
// server-side hostname filter, then a full case-insensitive scan, and for
// apex names repeats both against the www. form.
func (c *Client) Find(ctx context.Context, name string) (string, error) {
	ctx, span := otel.Tracer("cloudflare").Start(ctx, "Client.Find")
	defer span.End()

	host := domainname.Normalize(name)
	span.SetAttributes(attribute.String("hostname", host))

	candidates := []string{host}
	if domainname.IsApex(host) {
		candidates = append(candidates, "www."+host)
	}
	for _, h := range candidates {
		if id := c.findFiltered(ctx, h); id != "" {
			return id, nil
		}
		if ch, err := c.Lookup(ctx, h); err == nil {
			return ch.ID, nil
		}
	}
	return "", ErrNotFound
}

func (c *Client) findFiltered(ctx context.Context, host string) string {
	items, _, err := c.api.CustomHostnames(ctx, c.zoneID, 1, cf.CustomHostname{Hostname: host})
	if err != nil {
		c.log.Debug().Err(err).Str("hostname", host).Msg("filtered hostname query failed")
		return ""
	}
	for _, it := range items {
		if strings.EqualFold(it.Hostname, host) {
			return it.ID
		}
	}
	if len(items) > 0 {
		return items[0].ID
	}
	return ""
}

// Lookup scans every page of custom hostnames for an exact,
// case-insensitive hostname match.
func (c *Client) Lookup(ctx context.Context, name string) (domain.CustomHostname, error) {
	host := domainname.Normalize(name)
	all, err := c.List(ctx)
	if err != nil {
		return domain.CustomHostname{}, err
	}
	for _, h := range all {
		if strings.EqualFold(h.Hostname, host) {
			return h, nil
		}
	}
	return domain.CustomHostname{}, ErrNotFound
}

// List returns every custom hostname in the zone.
func (c *Client) List(ctx context.Context) ([]domain.CustomHostname, error) {
	var out []domain.CustomHostname
	for page := 1; ; page++ {
		items, info, err := c.api.CustomHostnames(ctx, c.zoneID, page, cf.CustomHostname{})
		if err != nil {
			return nil, fmt.Errorf("list custom hostnames: %w", err)
		}
		for _, it := range items {
			out = append(out, fromAPI(it))
		}
		if len(items) == 0 || info.TotalPages <= page {
			return out, nil
		}
	}
}

// Get fetches the full custom hostname, including SSL validation records.
func (c *Client) Get(ctx context.Context, id string) (domain.CustomHostname, error) {
	ctx, span := otel.Tracer("cloudflare").Start(ctx, "Client.Get")
	defer span.End()

	ch, err := c.api.CustomHostname(ctx, c.zoneID, id)
	if err != nil {
		if isNotFound(err) {
			return domain.CustomHostname{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return domain.CustomHostname{}, fmt.Errorf("get custom hostname %s: %w", id, err)
	}
	return fromAPI(ch), nil
}

// Create registers hostname with DV certificate validation over TXT and the
// given custom origin server.
func (c *Client) Create(ctx context.Context, hostname, origin string) (domain.CustomHostname, error) {
	ctx, span := otel.Tracer("cloudflare").Start(ctx, "Client.Create")
	defer span.End()

	req := cf.CustomHostname{
		Hostname:           domainname.Normalize(hostname),
		CustomOriginServer: origin,
		SSL: &cf.CustomHostnameSSL{
			Method: "txt",
			Type:   "dv",
		},
	}
	resp, err := c.api.CreateCustomHostname(ctx, c.zoneID, req)
	if err != nil {
		if IsDuplicate(err) {
			return domain.CustomHostname{}, fmt.Errorf("%w: %s", ErrDuplicateHostname, req.Hostname)
		}
		return domain.CustomHostname{}, fmt.Errorf("create custom hostname %s: %w", req.Hostname, err)
	}
	if resp == nil {
		return domain.CustomHostname{}, fmt.Errorf("create custom hostname %s: empty response", req.Hostname)
	}
	c.log.Info().Str("hostname", req.Hostname).Str("id", resp.Result.ID).Msg("custom hostname created")
	return fromAPI(resp.Result), nil
}

// Delete removes the custom hostname and its validation state.
func (c *Client) Delete(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("cloudflare").Start(ctx, "Client.Delete")
	defer span.End()

	if err := c.api.DeleteCustomHostname(ctx, c.zoneID, id); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete custom hostname %s: %w", id, err)
	}
	c.log.Info().Str("id", id).Msg("custom hostname deleted")
	return nil
}

// IsDuplicate reports whether err is Cloudflare's duplicate-hostname error.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateHostname) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate custom hostname")
}

func isNotFound(err error) bool {
	var nf *cf.NotFoundError
	return errors.As(err, &nf)
}

func fromAPI(ch cf.CustomHostname) domain.CustomHostname {
	out := domain.CustomHostname{
		ID:                 ch.ID,
		Hostname:           ch.Hostname,
		Status:             string(ch.Status),
		CustomOriginServer: ch.CustomOriginServer,
		OwnershipVerification: domain.OwnershipVerification{
			Type:  ch.OwnershipVerification.Type,
			Name:  ch.OwnershipVerification.Name,
			Value: ch.OwnershipVerification.Value,
		},
	}
	if ch.SSL != nil {
		out.SSL = domain.SSLState{
			Status: ch.SSL.Status,
			Method: ch.SSL.Method,
			Type:   ch.SSL.Type,
		}
		records := ch.SSL.ValidationRecords
		// older payloads carry a single record inline on the ssl block
		if len(records) == 0 && (ch.SSL.TxtName != "" || ch.SSL.TxtValue != "") {
			records = []cf.SSLValidationRecord{ch.SSL.SSLValidationRecord}
		}
		for _, r := range records {
			out.SSL.ValidationRecords = append(out.SSL.ValidationRecords, domain.ValidationRecord{
				TXTName:  r.TxtName,
				TXTValue: r.TxtValue,
				Status:   ch.SSL.Status,
			})
		}
	}
	return out
}
