// Package dnscheck verifies the DNS records a customer must publish for a
// custom hostname: the CNAME to the SSL proxy, the Cloudflare ownership TXT
// and the ACME challenge TXT.
package dnscheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
)

// Check and overall statuses.
const (
	Pass    = "pass"
	Fail    = "fail"
	Partial = "partial"
	Unknown = "unknown"
)

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// HostnameLookup finds a Cloudflare custom hostname by exact name.
type HostnameLookup interface {
	Lookup(ctx context.Context, hostname string) (domain.CustomHostname, error)
}

// Check is one record check.
type Check struct {
	Status   string `json:"status"`
	Details  string `json:"details"`
	Expected string `json:"expected,omitempty"`
}

// Checks groups the three record checks.
type Checks struct {
	CNAME        Check `json:"cname"`
	OwnershipTXT Check `json:"ownership_txt"`
	SSLTXT       Check `json:"ssl_txt"`
}

// Report is the outcome of Validate.
type Report struct {
	Domain           string    `json:"domain"`
	Timestamp        time.Time `json:"timestamp"`
	Checks           Checks    `json:"checks"`
	CloudflareStatus Check     `json:"cloudflare_status"`
	OverallStatus    string    `json:"overall_status"`
	Passed           int       `json:"passed"`
	Total            int       `json:"total"`
}

// Validator runs the checks. Cloudflare is optional.
type Validator struct {
	Resolver   Resolver
	Cloudflare HostnameLookup
	ProxyURL   string
	Timeout    time.Duration
	Log        zerolog.Logger

	now func() time.Time
}

// New returns a Validator using the system resolver.
func New(proxy string, cf HostnameLookup) *Validator {
	return &Validator{
		Resolver:   net.DefaultResolver,
		Cloudflare: cf,
		ProxyURL:   proxy,
		Timeout:    10 * time.Second,
		Log:        log.With().Str("component", "dnscheck").Logger(),
		now:        time.Now,
	}
}

// Validate checks the records for raw and derives pass when all three pass,
// partial when some do and fail otherwise.
func (v *Validator) Validate(ctx context.Context, raw string) Report {
	ctx, span := otel.Tracer("dnscheck").Start(ctx, "Validator.Validate")
	defer span.End()

	d := domainname.Normalize(raw)
	span.SetAttributes(attribute.String("domain", d))
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}
	now := time.Now
	if v.now != nil {
		now = v.now
	}

	rep := Report{
		Domain:           d,
		Timestamp:        now().UTC(),
		CloudflareStatus: Check{Status: Unknown},
		Total:            3,
	}
	if v.Cloudflare != nil {
		rep.CloudflareStatus = v.cloudflareStatus(ctx, d)
	}

	rep.Checks.CNAME = v.checkCNAME(ctx, d)
	rep.Checks.OwnershipTXT = v.checkTXT(ctx, "_cf-custom-hostname."+d, "UUID format", "UUID", isUUID)
	rep.Checks.SSLTXT = v.checkTXT(ctx, "_acme-challenge."+d, "ACME challenge", "ACME challenge", isACMEToken)

	for _, c := range []Check{rep.Checks.CNAME, rep.Checks.OwnershipTXT, rep.Checks.SSLTXT} {
		if c.Status == Pass {
			rep.Passed++
		}
	}
	switch {
	case rep.Passed == rep.Total:
		rep.OverallStatus = Pass
	case rep.Passed > 0:
		rep.OverallStatus = Partial
	default:
		rep.OverallStatus = Fail
	}
	v.Log.Info().Str("domain", d).Str("overall", rep.OverallStatus).Int("passed", rep.Passed).Msg("dns validation")
	return rep
}

func (v *Validator) cloudflareStatus(ctx context.Context, d string) Check {
	ch, err := v.Cloudflare.Lookup(ctx, d)
	if err != nil {
		return Check{Status: Unknown, Details: "Domain not found in Cloudflare: " + err.Error()}
	}
	s := ch.SSL.Status
	if s == "" {
		s = Unknown
	}
	return Check{Status: s, Details: "Cloudflare SSL status: " + s}
}

func (v *Validator) checkCNAME(ctx context.Context, d string) Check {
	c := Check{Status: Fail, Expected: v.ProxyURL}
	ok, found, err := VerifyCNAME(ctx, v.Resolver, d, v.ProxyURL)
	switch {
	case err != nil:
		c.Details = lookupDetail(err, "No CNAME record found")
	case ok:
		c.Status, c.Details = Pass, "Correct: "+found
	default:
		c.Details = fmt.Sprintf("Expected: %s, Found: %s", v.ProxyURL, found)
	}
	return c
}

func (v *Validator) checkTXT(ctx context.Context, name, expected, kind string, match func(string) bool) Check {
	c := Check{Status: Fail, Expected: expected}
	vals, err := v.Resolver.LookupTXT(ctx, name)
	if err != nil {
		c.Details = lookupDetail(err, "No TXT record found")
		return c
	}
	if len(vals) == 0 {
		c.Details = "No TXT records found"
		return c
	}
	for _, val := range vals {
		if match(strings.Trim(val, `"`)) {
			c.Status, c.Details = Pass, fmt.Sprintf("Found %s: %v", kind, vals)
			return c
		}
	}
	c.Details = fmt.Sprintf("Found non-%s values: %v", kind, vals)
	return c
}

// VerifyCNAME resolves host and reports whether its canonical name equals
// proxy, ignoring case and the trailing dot.
func VerifyCNAME(ctx context.Context, r Resolver, host, proxy string) (bool, string, error) {
	cname, err := r.LookupCNAME(ctx, host)
	if err != nil {
		return false, "", err
	}
	found := strings.TrimSuffix(strings.ToLower(cname), ".")
	want := strings.TrimSuffix(strings.ToLower(proxy), ".")
	return found == want, found, nil
}

func lookupDetail(err error, noAnswer string) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return "Domain not found"
	}
	if errors.As(err, &dnsErr) {
		return "DNS error: " + dnsErr.Error()
	}
	if err != nil {
		return noAnswer + ": " + err.Error()
	}
	return noAnswer
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// isACMEToken reports whether s looks like an ACME DNS-01 token: longer
// than 40 characters and alphanumeric once '_' and '-' are removed.
func isACMEToken(s string) bool {
	if len(s) <= 40 {
		return false
	}
	for _, r := range s {
		switch {
		case r == '_' || r == '-':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
