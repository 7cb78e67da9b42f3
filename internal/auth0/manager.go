package auth0

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
)

// ErrInvalidURL is returned by AddAll/RemoveAll for input without scheme and host.
var ErrInvalidURL = errors.New("invalid URL format, expected a full URL like https://example.com")

// EditReport details an add or remove.
type EditReport struct {
	ClientID  string         `json:"client_id"`
	Added     *URLSets       `json:"added,omitempty"`
	Removed   *URLSets       `json:"removed,omitempty"`
	Total     map[string]int `json:"total,omitempty"`
	Remaining map[string]int `json:"remaining,omitempty"`
}

// ChangeReport details a whole-list rewrite.
type ChangeReport struct {
	ClientID string              `json:"client_id"`
	Changed  bool                `json:"changed"`
	Before   map[string][]string `json:"before"`
	After    map[string][]string `json:"after"`
}

// ListReport is the current URL configuration of a client.
type ListReport struct {
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
	URLSets
}

func addMissing(list, added *[]string, v string) {
	if !slices.Contains(*list, v) {
		*list = append(*list, v)
		*added = append(*added, v)
	}
}

func removePresent(list, removed *[]string, v string) {
	if i := slices.Index(*list, v); i >= 0 {
		*list = slices.Delete(*list, i, i+1)
		*removed = append(*removed, v)
	}
}

func (s URLSets) empty() bool {
	return len(s.Callbacks) == 0 && len(s.AllowedLogoutURLs) == 0 && len(s.WebOrigins) == 0
}

func (c *Client) load(ctx context.Context, clientID string) (string, URLSets, AppClient, error) {
	id, err := c.clientID(clientID)
	if err != nil {
		return "", URLSets{}, AppClient{}, err
	}
	app, err := c.GetClient(ctx, id)
	if err != nil {
		return id, URLSets{}, AppClient{}, fmt.Errorf("get configuration for client %s: %w", id, err)
	}
	return id, app.URLSets.clone(), app, nil
}

// Add registers https callbacks, logout URLs and web origins for both www
// variants of raw. Entries already present are skipped; when nothing is
// missing no PATCH is sent and the result status is no_changes.
func (c *Client) Add(ctx context.Context, raw, clientID string) (domain.Result, error) {
	return c.add(ctx, raw, clientID, "https")
}

func (c *Client) add(ctx context.Context, raw, clientID, proto string) (domain.Result, error) {
	raw = domainname.Normalize(raw)
	id, cur, _, err := c.load(ctx, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	var added URLSets
	for _, d := range domainname.Variants(raw) {
		base := fmt.Sprintf("%s://%s", proto, d)
		addMissing(&cur.Callbacks, &added.Callbacks, base+"/callback")
		addMissing(&cur.Callbacks, &added.Callbacks, base+"/")
		addMissing(&cur.AllowedLogoutURLs, &added.AllowedLogoutURLs, base)
		addMissing(&cur.WebOrigins, &added.WebOrigins, base)
	}
	if added.empty() {
		c.log.Info().Str("domain", raw).Msg("all Auth0 URLs already present")
		return domain.Success(raw, domain.StatusNoChanges,
			fmt.Sprintf("All URLs for '%s' already exist in Auth0 configuration", raw),
			EditReport{ClientID: id}), nil
	}
	if err := c.PatchClient(ctx, id, cur.fields()); err != nil {
		return domain.Result{}, fmt.Errorf("update Auth0 client: %w", err)
	}
	return domain.Success(raw, domain.StatusUpdated,
		fmt.Sprintf("Successfully added domain '%s' to Auth0 configuration", raw),
		EditReport{ClientID: id, Added: &added, Total: cur.counts()}), nil
}

// Remove deletes the https and http callback, root and bare URLs for both
// www variants of raw. Status is not_found when none were present.
func (c *Client) Remove(ctx context.Context, raw, clientID string) (domain.Result, error) {
	raw = domainname.Normalize(raw)
	id, cur, _, err := c.load(ctx, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	var removed URLSets
	for _, d := range domainname.Variants(raw) {
		for _, proto := range []string{"https", "http"} {
			base := fmt.Sprintf("%s://%s", proto, d)
			removePresent(&cur.Callbacks, &removed.Callbacks, base+"/callback")
			removePresent(&cur.Callbacks, &removed.Callbacks, base+"/")
			removePresent(&cur.Callbacks, &removed.Callbacks, base)
		}
		for _, proto := range []string{"https", "http"} {
			base := fmt.Sprintf("%s://%s", proto, d)
			removePresent(&cur.AllowedLogoutURLs, &removed.AllowedLogoutURLs, base)
			removePresent(&cur.WebOrigins, &removed.WebOrigins, base)
		}
	}
	if removed.empty() {
		return domain.Success(raw, domain.StatusNotFound,
			fmt.Sprintf("No URLs for '%s' found in Auth0 configuration", raw),
			EditReport{ClientID: id}), nil
	}
	if err := c.PatchClient(ctx, id, cur.fields()); err != nil {
		return domain.Result{}, fmt.Errorf("update Auth0 client: %w", err)
	}
	return domain.Success(raw, domain.StatusUpdated,
		fmt.Sprintf("Successfully removed domain '%s' from Auth0 configuration", raw),
		EditReport{ClientID: id, Removed: &removed, Remaining: cur.counts()}), nil
}

// List returns the client's current URL lists.
func (c *Client) List(ctx context.Context, clientID string) (domain.Result, error) {
	id, cur, app, err := c.load(ctx, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	name := app.Name
	if name == "" {
		name = "Unknown"
	}
	return domain.Success("", "", fmt.Sprintf("Auth0 client %s", id),
		ListReport{ClientID: id, ClientName: name, URLSets: cur}), nil
}

// rewrite compares before and after for the named fields and PATCHes those
// fields when apply is set and something differs.
func (c *Client) rewrite(ctx context.Context, id string, before, after map[string][]string, apply bool, msg string) (domain.Result, error) {
	changed := false
	for k := range after {
		if !slices.Equal(before[k], after[k]) {
			changed = true
		}
	}
	report := ChangeReport{ClientID: id, Changed: changed, Before: before, After: after}
	if !changed || !apply {
		return domain.Success("", domain.StatusNoChanges, "No changes", report), nil
	}
	if err := c.PatchClient(ctx, id, after); err != nil {
		return domain.Result{}, fmt.Errorf("update Auth0 client: %w", err)
	}
	return domain.Success("", domain.StatusUpdated, msg, report), nil
}

// Canonicalize folds subdomain entries in all three lists into wildcards.
func (c *Client) Canonicalize(ctx context.Context, clientID string, apply bool) (domain.Result, error) {
	id, cur, _, err := c.load(ctx, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	after := URLSets{
		Callbacks:         CanonicalizeCallbacks(cur.Callbacks),
		AllowedLogoutURLs: CanonicalizeSimpleURLs(cur.AllowedLogoutURLs),
		WebOrigins:        CanonicalizeSimpleURLs(cur.WebOrigins),
	}
	return c.rewrite(ctx, id, cur.fields(), after.fields(), apply, "Client URLs canonicalized and updated")
}

// Populate replaces logout URLs and web origins with values derived from
// the callbacks.
func (c *Client) Populate(ctx context.Context, clientID string, apply bool) (domain.Result, error) {
	id, cur, _, err := c.load(ctx, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	logout, origins := DeriveLogoutAndOrigins(cur.Callbacks)
	before := map[string][]string{"allowed_logout_urls": cur.AllowedLogoutURLs, "web_origins": cur.WebOrigins}
	after := map[string][]string{"allowed_logout_urls": logout, "web_origins": origins}
	return c.rewrite(ctx, id, before, after, apply, "Logout URLs and web origins populated from callbacks")
}

// SetOrigins replaces the web origins with origins, deduplicated in order.
func (c *Client) SetOrigins(ctx context.Context, origins []string, clientID string, apply bool) (domain.Result, error) {
	if len(origins) == 0 {
		return domain.Result{}, errors.New("no web origins provided")
	}
	id, cur, _, err := c.load(ctx, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	next := uniq(origins)
	return c.rewrite(ctx, id,
		map[string][]string{"web_origins": cur.WebOrigins},
		map[string][]string{"web_origins": next},
		apply, fmt.Sprintf("Web origins updated with %d entries", len(next)))
}

func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

// AddAll adds the exact origin of rawURL to all three lists: the origin and
// origin/api/auth/callback as callbacks, origin/login as a logout URL and the
// origin itself as a web origin.
func (c *Client) AddAll(ctx context.Context, rawURL, clientID string) (domain.Result, error) {
	base, err := originOf(rawURL)
	if err != nil {
		return domain.Result{}, err
	}
	id, cur, _, err := c.load(ctx, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	var added URLSets
	addMissing(&cur.Callbacks, &added.Callbacks, base)
	addMissing(&cur.Callbacks, &added.Callbacks, base+callbackPath)
	addMissing(&cur.AllowedLogoutURLs, &added.AllowedLogoutURLs, base+"/login")
	addMissing(&cur.WebOrigins, &added.WebOrigins, base)
	if added.empty() {
		return domain.Success(rawURL, domain.StatusNoChanges,
			fmt.Sprintf("All URLs for '%s' already exist in Auth0 configuration", rawURL),
			EditReport{ClientID: id}), nil
	}
	if err := c.PatchClient(ctx, id, cur.fields()); err != nil {
		return domain.Result{}, fmt.Errorf("update Auth0 client: %w", err)
	}
	return domain.Success(rawURL, domain.StatusUpdated,
		fmt.Sprintf("Successfully added domain '%s' to all Auth0 sections", rawURL),
		EditReport{ClientID: id, Added: &added, Total: cur.counts()}), nil
}

// RemoveAll is the inverse of AddAll.
func (c *Client) RemoveAll(ctx context.Context, rawURL, clientID string) (domain.Result, error) {
	base, err := originOf(rawURL)
	if err != nil {
		return domain.Result{}, err
	}
	id, cur, _, err := c.load(ctx, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	var removed URLSets
	removePresent(&cur.Callbacks, &removed.Callbacks, base)
	removePresent(&cur.Callbacks, &removed.Callbacks, base+callbackPath)
	removePresent(&cur.AllowedLogoutURLs, &removed.AllowedLogoutURLs, base+"/login")
	removePresent(&cur.WebOrigins, &removed.WebOrigins, base)
	if removed.empty() {
		return domain.Success(rawURL, domain.StatusNotFound,
			fmt.Sprintf("No URLs for '%s' found in Auth0 configuration", rawURL),
			EditReport{ClientID: id}), nil
	}
	if err := c.PatchClient(ctx, id, cur.fields()); err != nil {
		return domain.Result{}, fmt.Errorf("update Auth0 client: %w", err)
	}
	return domain.Success(rawURL, domain.StatusUpdated,
		fmt.Sprintf("Successfully removed domain '%s' from all Auth0 sections", rawURL),
		EditReport{ClientID: id, Removed: &removed, Remaining: cur.counts()}), nil
}
