package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-domain-mapper/internal/domain"
)

// HostnameSource resolves custom hostname snapshots.
type HostnameSource interface {
	Find(ctx context.Context, name string) (string, error)
	Get(ctx context.Context, id string) (domain.CustomHostname, error)
	Lookup(ctx context.Context, name string) (domain.CustomHostname, error)
}

// ValidationStore persists validation envelopes against mapping rows.
type ValidationStore interface {
	UpdateValidationData(ctx context.Context, domainName string, env domain.ValidationEnvelope) (int64, error)
}

// PollOutcome is how a poll finished.
type PollOutcome string

const (
	OutcomePersisted PollOutcome = "persisted"
	OutcomeTimeout   PollOutcome = "timeout"
	OutcomeCancelled PollOutcome = "cancelled"
	OutcomeError     PollOutcome = "error"
)

// PollResult summarizes a finished poll.
type PollResult struct {
	Domain       string                     `json:"domain"`
	Hostname     string                     `json:"hostname"`
	Outcome      PollOutcome                `json:"outcome"`
	State        domain.OnboardingState     `json:"state"`
	Ticks        int                        `json:"ticks"`
	RowsAffected int64                      `json:"rows_affected"`
	Envelope     *domain.ValidationEnvelope `json:"envelope,omitempty"`
	Err          string                     `json:"error,omitempty"`
}

// Poller watches one custom hostname until its TXT records exist or SSL is
// active, then stores the validation envelope.
//
// The loop stops at the first generated state. A later transition to
// applied is not observed.
type Poller struct {
	Source           HostnameSource
	Store            ValidationStore
	Interval         time.Duration
	Timeout          time.Duration
	RequireOwnership bool
	ProxyURL         string
	Log              zerolog.Logger
}

// NewPoller returns a Poller logging through the global logger.
func NewPoller(src HostnameSource, store ValidationStore, interval, timeout time.Duration, proxy string) *Poller {
	return &Poller{
		Source:   src,
		Store:    store,
		Interval: interval,
		Timeout:  timeout,
		ProxyURL: proxy,
		Log:      log.With().Str("component", "poller").Logger(),
	}
}

// Run polls hostname immediately and then every Interval until the state is
// generated or applied, ctx ends, or Timeout elapses. The envelope is stored
// against domainName. A timeout is logged and nothing is written.
func (p *Poller) Run(ctx context.Context, domainName, hostname string) PollResult {
	ctx, span := otel.Tracer("services/Poller").Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.String("domain", domainName), attribute.String("hostname", hostname))

	logger := p.Log.With().Str("domain", domainName).Str("hostname", hostname).Logger()
	res := PollResult{Domain: domainName, Hostname: hostname, State: domain.StatePending}

	deadline := time.NewTimer(p.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		res.Ticks++
		snap, err := p.snapshot(ctx, hostname)
		switch {
		case err != nil:
			logger.Warn().Err(err).Int("tick", res.Ticks).Msg("poll: hostname lookup failed")
		default:
			res.State = DeriveState(snap, p.RequireOwnership)
			logger.Info().Int("tick", res.Ticks).Str("state", string(res.State)).
				Str("ssl_status", snap.SSL.Status).Str("verification_status", snap.Status).Msg("poll tick")
			if res.State.Ready() {
				return p.persist(ctx, logger, res, snap)
			}
		}

		select {
		case <-ctx.Done():
			res.Outcome = OutcomeCancelled
			logger.Info().Int("ticks", res.Ticks).Msg("poll cancelled")
			pollOutcomes.WithLabelValues(string(res.Outcome)).Inc()
			return res
		case <-deadline.C:
			res.Outcome = OutcomeTimeout
			logger.Warn().Int("ticks", res.Ticks).Dur("budget", p.Timeout).Msg("poll timed out before TXT records appeared; nothing persisted")
			pollOutcomes.WithLabelValues(string(res.Outcome)).Inc()
			return res
		case <-ticker.C:
		}
	}
}

// snapshot fetches the hostname by id, falling back to a full list scan when
// the id lookup comes back empty.
func (p *Poller) snapshot(ctx context.Context, hostname string) (domain.CustomHostname, error) {
	id, err := p.Source.Find(ctx, hostname)
	if err == nil {
		snap, gerr := p.Source.Get(ctx, id)
		if gerr == nil {
			return snap, nil
		}
		err = gerr
	}
	snap, lerr := p.Source.Lookup(ctx, hostname)
	if lerr != nil {
		return domain.CustomHostname{}, errors.Join(err, lerr)
	}
	return snap, nil
}

func (p *Poller) persist(ctx context.Context, logger zerolog.Logger, res PollResult, snap domain.CustomHostname) PollResult {
	env := NewEnvelope(res.Domain, snap, p.ProxyURL, res.State)
	res.Envelope = &env

	rows, err := p.Store.UpdateValidationData(ctx, res.Domain, env.Stored())
	res.RowsAffected = rows
	switch {
	case err != nil:
		res.Outcome = OutcomeError
		res.Err = err.Error()
		logger.Error().Err(err).Msg("poll: persisting validation data failed")
	case rows == 0:
		res.Outcome = OutcomePersisted
		logger.Warn().Msg("poll: no domain_agent_mapping row matched; validation data not stored")
	default:
		res.Outcome = OutcomePersisted
		logger.Info().Int64("rows", rows).Str("state", string(res.State)).Msg("poll: validation data stored")
	}
	pollOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res
}
