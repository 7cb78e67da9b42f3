// Package services – OnboardingService
//
// OnboardingService registers a customer domain as a Cloudflare custom
// hostname and hands the SSL validation watch to a background poll. It also
// reports hostname status, deletes hostnames for both www variants and waits
// for SSL activation ahead of load balancer changes.

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
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-domain-mapper/internal/cloudflare"
	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
	"github.com/tbourn/go-domain-mapper/internal/retry"
)

// HostnameManager is the Cloudflare surface onboarding needs.
type HostnameManager interface {
	HostnameSource
	Create(ctx context.Context, hostname, origin string) (domain.CustomHostname, error)
	Delete(ctx context.Context, id string) error
}

// StartResult is returned by OnboardingService.Start.
type StartResult struct {
	Envelope domain.ValidationEnvelope
	Hostname string
	Joined   bool
	Task     *PollTask
}

// OnboardingService coordinates hostname creation and background polling.
type OnboardingService struct {
	CF           HostnameManager
	Registry     *Registry
	Poller       *Poller
	ProxyURL     string
	DeleteSettle time.Duration
	FetchRetry   retry.Policy
	Log          zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOnboardingService wires an OnboardingService.
func NewOnboardingService(cf HostnameManager, reg *Registry, p *Poller, proxy string, settle time.Duration, fetch retry.Policy) *OnboardingService {
	return &OnboardingService{
		CF:           cf,
		Registry:     reg,
		Poller:       p,
		ProxyURL:     proxy,
		DeleteSettle: settle,
		FetchRetry:   fetch,
		Log:          log.With().Str("component", "onboarding").Logger(),
	}
}

func (s *OnboardingService) wait(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start normalizes raw, replaces any existing custom hostname for it with a
// fresh one and schedules the background poll. It returns as soon as the
// hostname exists, with a pending envelope. A request for a domain whose
// poll is reserved or running joins that poll and leaves Cloudflare untouched.
func (s *OnboardingService) Start(ctx context.Context, raw string) (StartResult, error) {
	tr := otel.Tracer("services/OnboardingService")
	ctx, span := tr.Start(ctx, "Start")
	defer span.End()

	d := domainname.Normalize(raw)
	if !domainname.Valid(d) {
		return StartResult{}, fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	host := domainname.HostnameFor(d)
	span.SetAttributes(attribute.String("domain", d), attribute.String("hostname", host))
	logger := s.Log.With().Str("domain", d).Str("hostname", host).Logger()

	// Claim the domain before touching Cloudflare so an overlapping request
	// joins this one instead of replacing its hostname.
	task, joined, err := s.Registry.Reserve(d)
	if err != nil {
		return StartResult{}, err
	}
	if joined {
		snap, err := s.Poller.snapshot(ctx, host)
		if err != nil {
			snap = domain.CustomHostname{Hostname: host}
		}
		logger.Info().Time("poll_started_at", task.StartedAt).Msg("onboarding already in progress; joining poll")
		return StartResult{
			Envelope: NewEnvelope(d, snap, s.ProxyURL, domain.StatePending),
			Hostname: host,
			Joined:   true,
			Task:     task,
		}, nil
	}

	snap, err := s.provision(ctx, logger, host)
	if err != nil {
		s.Registry.Release(task, err)
		return StartResult{}, err
	}
	span.AddEvent("hostname created", trace.WithAttributes(attribute.String("id", snap.ID)))

	s.Registry.Launch(task, func(ctx context.Context) PollResult {
		return s.Poller.Run(ctx, d, host)
	})
	logger.Info().Str("id", snap.ID).Msg("custom hostname created; SSL validation poll scheduled")

	return StartResult{
		Envelope: NewEnvelope(d, snap, s.ProxyURL, domain.StatePending),
		Hostname: host,
		Task:     task,
	}, nil
}

// provision replaces any custom hostname for host with a fresh one and
// returns the freshest snapshot of it.
func (s *OnboardingService) provision(ctx context.Context, logger zerolog.Logger, host string) (domain.CustomHostname, error) {
	if err := s.removeExisting(ctx, logger, host); err != nil {
		return domain.CustomHostname{}, err
	}

	created, err := s.CF.Create(ctx, host, s.ProxyURL)
	if err != nil {
		if errors.Is(err, cloudflare.ErrDuplicateHostname) {
			logger.Warn().Err(err).Msg("Duplicate custom hostname found")
		}
		return domain.CustomHostname{}, err
	}

	snap := created
	err = retry.Do(ctx, s.FetchRetry, func(ctx context.Context) error {
		got, err := s.CF.Get(ctx, created.ID)
		if err != nil {
			logger.Debug().Err(err).Msg("fetch after create failed, retrying")
			return err
		}
		snap = got
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("could not refetch created hostname; using create response")
	}
	return snap, nil
}

// removeExisting deletes a custom hostname already registered for host and
// confirms it is gone after the settle delay.
func (s *OnboardingService) removeExisting(ctx context.Context, logger zerolog.Logger, host string) error {
	existing, err := s.CF.Lookup(ctx, host)
	if errors.Is(err, cloudflare.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up existing hostname: %w", err)
	}
	logger.Info().Str("id", existing.ID).Msg("deleting existing custom hostname")
	if err := s.CF.Delete(ctx, existing.ID); err != nil && !errors.Is(err, cloudflare.ErrNotFound) {
		return err
	}
	if err := s.wait(ctx, s.DeleteSettle); err != nil {
		return err
	}
	if _, err := s.CF.Lookup(ctx, host); err == nil {
		return fmt.Errorf("%w: %s", ErrHostnameStillPresent, host)
	} else if !errors.Is(err, cloudflare.ErrNotFound) {
		return fmt.Errorf("verify hostname deletion: %w", err)
	}
	return nil
}

// Status reports verification, CNAME and SSL progress for raw. Apex
// domains fall back to their www. hostname.
func (s *OnboardingService) Status(ctx context.Context, raw string) (domain.Result, error) {
	ctx, span := otel.Tracer("services/OnboardingService").Start(ctx, "Status")
	defer span.End()

	d := domainname.Normalize(raw)
	if !domainname.Valid(d) {
		return domain.Result{}, fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	candidates := []string{d}
	if domainname.IsApex(d) {
		candidates = append(candidates, "www."+d)
	}
	for _, h := range candidates {
		ch, err := s.CF.Lookup(ctx, h)
		if errors.Is(err, cloudflare.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.Result{}, err
		}
		if full, err := s.CF.Get(ctx, ch.ID); err == nil {
			ch = full
		}
		return Summarize(ch), nil
	}
	return domain.Result{}, fmt.Errorf("%w: Hostname '%s' not found", ErrHostnameNotFound, d)
}

// VariantDeletion reports the deletion of one hostname variant.
type VariantDeletion struct {
	Hostname     string `json:"hostname"`
	Success      bool   `json:"success"`
	Status       string `json:"status"`
	ID           string `json:"id,omitempty"`
	SSLStatus    string `json:"ssl_status,omitempty"`
	CustomOrigin string `json:"custom_origin,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Delete removes the custom hostnames for both www variants of raw and
// cancels any running poll for it. Absent variants count as success.
func (s *OnboardingService) Delete(ctx context.Context, raw string) (domain.Result, error) {
	ctx, span := otel.Tracer("services/OnboardingService").Start(ctx, "Delete")
	defer span.End()

	d := domainname.Normalize(raw)
	if !domainname.Valid(d) {
		return domain.Result{}, fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	if s.Registry != nil {
		for _, v := range domainname.Variants(d) {
			s.Registry.Cancel(v)
		}
	}

	allOK := true
	var results []VariantDeletion
	for _, v := range domainname.Variants(d) {
		r := VariantDeletion{Hostname: v}
		ch, err := s.CF.Lookup(ctx, v)
		switch {
		case errors.Is(err, cloudflare.ErrNotFound):
			r.Success, r.Status = true, domain.StatusNotFound
		case err != nil:
			r.Status, r.Error = "error", err.Error()
		default:
			r.ID, r.SSLStatus, r.CustomOrigin = ch.ID, ch.SSL.Status, ch.CustomOriginServer
			if err := s.CF.Delete(ctx, ch.ID); err != nil && !errors.Is(err, cloudflare.ErrNotFound) {
				r.Status, r.Error = "error", err.Error()
			} else {
				r.Success, r.Status = true, "deleted"
			}
		}
		allOK = allOK && r.Success
		results = append(results, r)
	}

	deleted := 0
	for _, r := range results {
		if r.Status == "deleted" {
			deleted++
		}
	}
	res := domain.Result{
		Type:    domain.ResultSuccess,
		Domain:  d,
		Message: fmt.Sprintf("Deleted %d custom hostname(s) for %s", deleted, d),
		Details: results,
	}
	if deleted == 0 && allOK {
		res.Status = domain.StatusNotFound
		res.Message = fmt.Sprintf("No custom hostnames found for %s", d)
	}
	if !allOK {
		res.Type = domain.ResultError
		failed := make([]string, 0, len(results))
		for _, r := range results {
			if !r.Success {
				failed = append(failed, r.Hostname)
			}
		}
		res.Message = "Failed to delete: " + strings.Join(failed, ", ")
	}
	s.Log.Info().Str("domain", d).Str("type", string(res.Type)).Int("deleted", deleted).Msg("custom hostname delete")
	return res, nil
}

// defaultSSLWaitInterval replaces a non-positive WaitForSSL interval.
const defaultSSLWaitInterval = 10 * time.Second

// WaitForSSL polls the hostname for raw until its certificate is active,
// checking every interval until timeout.
func (s *OnboardingService) WaitForSSL(ctx context.Context, raw string, timeout, interval time.Duration) (domain.CustomHostname, error) {
	host := domainname.HostnameFor(raw)
	if interval <= 0 {
		interval = defaultSSLWaitInterval
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		ch, err := s.Poller.snapshot(ctx, host)
		if err == nil && ch.SSL.Status == domain.StatusActive {
			return ch, nil
		}
		if err == nil {
			s.Log.Info().Str("hostname", host).Str("ssl_status", ch.SSL.Status).Msg("waiting for SSL")
		}
		if werr := s.wait(ctx, interval); werr != nil {
			if errors.Is(werr, context.DeadlineExceeded) {
				return ch, fmt.Errorf("%w: %s", ErrSSLWaitTimeout, host)
			}
			return ch, werr
		}
	}
}
