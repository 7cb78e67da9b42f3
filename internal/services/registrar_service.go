// Package services – RegistrarService
//
// RegistrarService fronts the downstream registrars (load balancer, Auth0,
// nginx, CORS env files, mapping table, DNS validation) with one typed,
// in-process call per registrar. Registrars never call one another; a
// failure in one leaves the others untouched.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-domain-mapper/internal/dnscheck"
	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
)

// HostRuleRegistrar adds a host to the load balancer rule.
type HostRuleRegistrar interface {
	AddHost(ctx context.Context, raw string) (domain.Result, error)
}

// URLSetRegistrar edits the Auth0 application URL sets.
type URLSetRegistrar interface {
	Add(ctx context.Context, raw, clientID string) (domain.Result, error)
	Remove(ctx context.Context, raw, clientID string) (domain.Result, error)
	List(ctx context.Context, clientID string) (domain.Result, error)
	Canonicalize(ctx context.Context, clientID string, apply bool) (domain.Result, error)
	Populate(ctx context.Context, clientID string, apply bool) (domain.Result, error)
	SetOrigins(ctx context.Context, origins []string, clientID string, apply bool) (domain.Result, error)
	AddAll(ctx context.Context, rawURL, clientID string) (domain.Result, error)
	RemoveAll(ctx context.Context, rawURL, clientID string) (domain.Result, error)
}

// ServerNameRegistrar adds a domain to the nginx server_name directive.
type ServerNameRegistrar interface {
	AddDomain(ctx context.Context, raw string) (domain.Result, error)
}

// AgentSiteWriter writes a dedicated nginx server block routing a domain to
// an agent's site.
type AgentSiteWriter interface {
	WriteAgentSite(ctx context.Context, raw, agentID string) (domain.Result, error)
}

// OriginRegistrar adds a domain to the CORS env files.
type OriginRegistrar interface {
	AddOrigin(ctx context.Context, raw string) (domain.Result, error)
}

// DNSValidator checks the customer's DNS records.
type DNSValidator interface {
	Validate(ctx context.Context, raw string) dnscheck.Report
}

// Auth0 actions.
const (
	Auth0Add          = "add"
	Auth0Remove       = "remove"
	Auth0List         = "list"
	Auth0Canonicalize = "canonicalize"
	Auth0Populate     = "populate"
	Auth0AddAll       = "add-all"
	Auth0RemoveAll    = "remove-all"
	Auth0SetOrigins   = "set-origins"
)

// Auth0Request selects one Auth0 action. DryRun reports the rewrite of
// canonicalize, populate and set-origins without sending it.
type Auth0Request struct {
	Action   string
	Domain   string
	ClientID string
	Origins  []string
	DryRun   bool
}

// SSLWaiter blocks until the hostname certificate for raw is active.
type SSLWaiter interface {
	WaitForSSL(ctx context.Context, raw string, timeout, interval time.Duration) (domain.CustomHostname, error)
}

// RegistrarService dispatches to the configured registrars. A nil
// registrar yields ErrRegistrarDisabled.
type RegistrarService struct {
	ALB        HostRuleRegistrar
	Auth0      URLSetRegistrar
	Nginx      ServerNameRegistrar
	AgentSites AgentSiteWriter
	CORS       OriginRegistrar
	DNS        DNSValidator
	Mappings   *MappingService

	// SSL gating for the load balancer update.
	SSL             SSLWaiter
	Resolver        dnscheck.Resolver
	ProxyURL        string
	SSLWaitTimeout  time.Duration
	SSLWaitInterval time.Duration

	Log zerolog.Logger
}

// NewRegistrarService returns a RegistrarService with the default SSL wait
// (every 10s for up to 300s) and no registrars; callers set the ones they have.
func NewRegistrarService() *RegistrarService {
	return &RegistrarService{
		SSLWaitTimeout:  300 * time.Second,
		SSLWaitInterval: 10 * time.Second,
		Log:             log.With().Str("component", "registrar").Logger(),
	}
}

// observe records the outcome metric and logs the decision.
func (s *RegistrarService) observe(name string, res domain.Result, err error) (domain.Result, error) {
	outcome := "success"
	switch {
	case err != nil || res.Type == domain.ResultError:
		outcome = "error"
	case res.Status == domain.StatusNoChanges || res.Status == domain.StatusNotFound:
		outcome = res.Status
	}
	registrarOps.WithLabelValues(name, outcome).Inc()

	ev := s.Log.Info()
	if outcome == "error" {
		ev = s.Log.Warn().Err(err)
	}
	ev.Str("registrar", name).Str("domain", res.Domain).Str("outcome", outcome).Msg(res.Message)
	return res, err
}

func validDomain(raw string) (string, error) {
	d := domainname.Normalize(raw)
	if !domainname.Valid(d) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	return d, nil
}

// AddALBHost adds raw to the listener rule host-header condition. With
// waitSSL the domain's CNAME must point at the SSL proxy and its Cloudflare
// certificate must become active before the rule is touched.
func (s *RegistrarService) AddALBHost(ctx context.Context, raw string, waitSSL bool) (domain.Result, error) {
	ctx, span := otel.Tracer("services/RegistrarService").Start(ctx, "AddALBHost")
	defer span.End()
	span.SetAttributes(attribute.Bool("wait_ssl", waitSSL))

	if s.ALB == nil {
		return domain.Result{}, fmt.Errorf("alb: %w", ErrRegistrarDisabled)
	}
	d, err := validDomain(raw)
	if err != nil {
		return domain.Result{}, err
	}
	if waitSSL {
		if err := s.gateOnSSL(ctx, d); err != nil {
			return s.observe("alb", domain.Result{Type: domain.ResultError, Domain: d, Message: err.Error()}, err)
		}
	}
	res, err := s.ALB.AddHost(ctx, d)
	return s.observe("alb", res, err)
}

func (s *RegistrarService) gateOnSSL(ctx context.Context, d string) error {
	if s.SSL == nil {
		return fmt.Errorf("ssl wait: %w", ErrRegistrarDisabled)
	}
	if s.Resolver != nil && s.ProxyURL != "" {
		ok, found, err := dnscheck.VerifyCNAME(ctx, s.Resolver, d, s.ProxyURL)
		if err != nil {
			return fmt.Errorf("resolve CNAME for %s: %w", d, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s points to %q, expected %q", ErrCNAMEMismatch, d, found, s.ProxyURL)
		}
	}
	ch, err := s.SSL.WaitForSSL(ctx, d, s.SSLWaitTimeout, s.SSLWaitInterval)
	if err != nil {
		return err
	}
	s.Log.Info().Str("domain", d).Str("hostname", ch.Hostname).Msg("SSL active; updating load balancer")
	return nil
}

// Auth0Action runs one Auth0 action.
func (s *RegistrarService) Auth0Action(ctx context.Context, req Auth0Request) (domain.Result, error) {
	ctx, span := otel.Tracer("services/RegistrarService").Start(ctx, "Auth0Action")
	defer span.End()
	action := strings.ToLower(strings.TrimSpace(req.Action))
	span.SetAttributes(attribute.String("action", action))

	if s.Auth0 == nil {
		return domain.Result{}, fmt.Errorf("auth0: %w", ErrRegistrarDisabled)
	}
	apply := !req.DryRun

	needsDomain := func() (string, error) {
		if strings.TrimSpace(req.Domain) == "" {
			return "", fmt.Errorf("%w: domain is required for %s", ErrInvalidDomain, action)
		}
		return req.Domain, nil
	}

	var (
		res domain.Result
		err error
	)
	switch action {
	case Auth0Add, Auth0Remove:
		var d string
		if d, err = validDomain(req.Domain); err != nil {
			return domain.Result{}, err
		}
		if action == Auth0Add {
			res, err = s.Auth0.Add(ctx, d, req.ClientID)
		} else {
			res, err = s.Auth0.Remove(ctx, d, req.ClientID)
		}
	case Auth0List:
		res, err = s.Auth0.List(ctx, req.ClientID)
	case Auth0Canonicalize:
		res, err = s.Auth0.Canonicalize(ctx, req.ClientID, apply)
	case Auth0Populate:
		res, err = s.Auth0.Populate(ctx, req.ClientID, apply)
	case Auth0SetOrigins:
		if len(req.Origins) == 0 {
			return domain.Result{}, fmt.Errorf("%w: origins are required for %s", ErrInvalidDomain, action)
		}
		res, err = s.Auth0.SetOrigins(ctx, req.Origins, req.ClientID, apply)
	case Auth0AddAll, Auth0RemoveAll:
		var u string
		if u, err = needsDomain(); err != nil {
			return domain.Result{}, err
		}
		if action == Auth0AddAll {
			res, err = s.Auth0.AddAll(ctx, u, req.ClientID)
		} else {
			res, err = s.Auth0.RemoveAll(ctx, u, req.ClientID)
		}
	default:
		return domain.Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	return s.observe("auth0", res, err)
}

// AddNginxDomain adds raw (and its www variant) to nginx.
func (s *RegistrarService) AddNginxDomain(ctx context.Context, raw string) (domain.Result, error) {
	if s.Nginx == nil {
		return domain.Result{}, fmt.Errorf("nginx: %w", ErrRegistrarDisabled)
	}
	d, err := validDomain(raw)
	if err != nil {
		return domain.Result{}, err
	}
	res, err := s.Nginx.AddDomain(ctx, d)
	return s.observe("nginx", res, err)
}

// WriteAgentSite writes the nginx server block routing raw to agentID's site.
func (s *RegistrarService) WriteAgentSite(ctx context.Context, raw, agentID string) (domain.Result, error) {
	if s.AgentSites == nil {
		return domain.Result{}, fmt.Errorf("nginx agent sites: %w", ErrRegistrarDisabled)
	}
	d, err := validDomain(raw)
	if err != nil {
		return domain.Result{}, err
	}
	if strings.TrimSpace(agentID) == "" {
		return domain.Result{}, ErrInvalidAgentID
	}
	res, err := s.AgentSites.WriteAgentSite(ctx, d, agentID)
	return s.observe("nginx_agent_site", res, err)
}

// AddCORSOrigin adds https://raw to the CORS env files.
func (s *RegistrarService) AddCORSOrigin(ctx context.Context, raw string) (domain.Result, error) {
	if s.CORS == nil {
		return domain.Result{}, fmt.Errorf("cors: %w", ErrRegistrarDisabled)
	}
	d, err := validDomain(raw)
	if err != nil {
		return domain.Result{}, err
	}
	res, err := s.CORS.AddOrigin(ctx, d)
	return s.observe("cors", res, err)
}

// RegisterMapping inserts the domain to agent row. A domain already mapped
// to agentID is reported as no_changes; with replace the existing rows are
// swapped for a fresh one.
func (s *RegistrarService) RegisterMapping(ctx context.Context, raw, agentID string, replace bool) (domain.Result, error) {
	if s.Mappings == nil {
		return domain.Result{}, fmt.Errorf("mapping: %w", ErrRegistrarDisabled)
	}
	if !replace {
		existing, err := s.Mappings.Get(ctx, raw)
		if err == nil && existing.AgentID == strings.TrimSpace(agentID) {
			return s.observe("mapping", domain.Success(existing.Domain, domain.StatusNoChanges,
				fmt.Sprintf("%s is already mapped to agent %s", existing.Domain, existing.AgentID),
				map[string]any{"id": existing.ID, "agent_id": existing.AgentID}), nil)
		}
		if err != nil && !errors.Is(err, ErrMappingNotFound) {
			return s.observe("mapping", domain.Result{}, err)
		}
	}
	res, err := s.Mappings.Register(ctx, raw, agentID, replace)
	return s.observe("mapping", res, err)
}

// ValidateDNS checks the published DNS records for raw.
func (s *RegistrarService) ValidateDNS(ctx context.Context, raw string) (dnscheck.Report, error) {
	if s.DNS == nil {
		return dnscheck.Report{}, fmt.Errorf("dns: %w", ErrRegistrarDisabled)
	}
	d, err := validDomain(raw)
	if err != nil {
		return dnscheck.Report{}, err
	}
	return s.DNS.Validate(ctx, d), nil
}
