// Package app assembles the onboarding services from configuration. Both the
// facade and the CLI build on it, so the two surfaces drive the same code.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-domain-mapper/internal/alb"
	"github.com/tbourn/go-domain-mapper/internal/auth0"
	"github.com/tbourn/go-domain-mapper/internal/cloudflare"
	"github.com/tbourn/go-domain-mapper/internal/config"
	"github.com/tbourn/go-domain-mapper/internal/cors"
	"github.com/tbourn/go-domain-mapper/internal/dnscheck"
	"github.com/tbourn/go-domain-mapper/internal/http/handlers"
	"github.com/tbourn/go-domain-mapper/internal/llm"
	"github.com/tbourn/go-domain-mapper/internal/nginx"
	"github.com/tbourn/go-domain-mapper/internal/repo"
	"github.com/tbourn/go-domain-mapper/internal/retry"
	"github.com/tbourn/go-domain-mapper/internal/services"
	"github.com/tbourn/go-domain-mapper/internal/sysutil"
)

// App holds the wired services. Onboarding, Content and ALB stay nil when
// their credentials are missing.
type App struct {
	Config     config.Config
	DB         *gorm.DB
	Runner     sysutil.Runner
	Registry   *services.Registry
	Onboarding *services.OnboardingService
	Registrars *services.RegistrarService
	Mappings   *services.MappingService
	Content    *services.ContentService
	ALB        *alb.Registrar
}

// Build opens the mapping store, migrates it and wires every service the
// configuration allows. Optional upstreams that are not configured are
// logged and skipped.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := repo.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open mapping store: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate mapping store: %w", err)
	}
	return BuildWithDB(ctx, cfg, db)
}

// BuildWithDB wires the services around an already migrated database.
func BuildWithDB(ctx context.Context, cfg config.Config, db *gorm.DB) (*App, error) {
	a := &App{
		Config:   cfg,
		DB:       db,
		Runner:   sysutil.ExecRunner{Sudo: cfg.Nginx.UseSudo},
		Registry: services.NewRegistry(),
		Mappings: &services.MappingService{DB: db},
	}
	proxy := cfg.Cloudflare.SSLProxyURL

	regs := services.NewRegistrarService()
	regs.Mappings = a.Mappings
	regs.ProxyURL = proxy
	regs.Resolver = net.DefaultResolver
	regs.SSLWaitTimeout = cfg.Poll.SSLWaitTimeout
	regs.SSLWaitInterval = cfg.Poll.SSLWaitInterval
	site := nginx.NewManager(cfg.Nginx.ConfigPath, cfg.Nginx.EnvPath, cfg.Nginx.TempDir, a.Runner)
	site.SitesDir = cfg.Nginx.SitesDir
	site.AgentHostSuffix = cfg.Nginx.AgentHostSuffix
	site.FrontendUpstream = cfg.Nginx.FrontendUpstream
	site.APIUpstream = cfg.Nginx.APIUpstream
	regs.Nginx = site
	regs.AgentSites = site
	regs.CORS = cors.New(cfg.CORSFiles.EnvFiles, cfg.CORSFiles.Process, cfg.CORSFiles.ProcessManager, sysutil.ExecRunner{})

	cf, err := cloudflare.New(cloudflare.Options{
		Token:   cfg.Cloudflare.Token,
		ZoneID:  cfg.Cloudflare.ZoneID,
		BaseURL: cfg.Cloudflare.BaseURL,
	})
	switch {
	case err == nil:
		poller := services.NewPoller(cf, services.NewMappingStore(db), cfg.Poll.Interval, cfg.Poll.Timeout, proxy)
		poller.RequireOwnership = cfg.Poll.RequireOwnershipTXT
		fetch := retry.Fixed(cfg.Poll.FetchRetries, cfg.Poll.FetchRetryBackoff)
		a.Onboarding = services.NewOnboardingService(cf, a.Registry, poller, proxy, cfg.Poll.DeleteSettle, fetch)
		regs.SSL = a.Onboarding
		regs.DNS = dnscheck.New(proxy, cf)
	case errors.Is(err, cloudflare.ErrNotConfigured):
		log.Warn().Msg("cloudflare not configured; hostname onboarding disabled")
		regs.DNS = dnscheck.New(proxy, nil)
	default:
		return nil, err
	}

	if cfg.AWS.RuleARN != "" {
		a.ALB, err = alb.New(ctx, cfg.AWS.Region, cfg.AWS.ListenerARN, cfg.AWS.RuleARN)
		if err != nil {
			return nil, err
		}
		regs.ALB = a.ALB
	} else {
		log.Warn().Msg("ALB_RULE_ARN not set; load balancer registrar disabled")
	}

	a0, err := auth0.New(auth0.Options{
		Domain:       cfg.Auth0.Domain,
		ClientID:     cfg.Auth0.ClientID,
		ClientSecret: cfg.Auth0.ClientSecret,
		AppClientID:  cfg.Auth0.AppClientID,
		BaseURL:      cfg.Auth0.BaseURL,
	})
	switch {
	case err == nil:
		regs.Auth0 = a0
	case errors.Is(err, auth0.ErrNotConfigured):
		log.Warn().Msg("auth0 not configured; url-set registrar disabled")
	default:
		return nil, err
	}
	a.Registrars = regs

	completer, err := llm.New(llm.Options{
		APIKey:      cfg.Content.APIKey,
		Model:       cfg.Content.Model,
		MaxTokens:   cfg.Content.MaxTokens,
		Temperature: cfg.Content.Temperature,
	})
	switch {
	case err == nil:
		tmpl, err := services.LoadPromptTemplate(cfg.Content.PromptPath)
		if err != nil {
			return nil, err
		}
		a.Content = services.NewContentService(completer, tmpl)
	case errors.Is(err, llm.ErrNotConfigured):
		log.Warn().Msg("LLM_API_KEY not set; content generation disabled")
	default:
		return nil, err
	}

	return a, nil
}

// Services exposes the wired services to the HTTP layer. Disabled services
// are left as nil interfaces so handlers answer 503.
func (a *App) Services() handlers.Services {
	s := handlers.Services{
		Registrars: a.Registrars,
		Mappings:   a.Mappings,
		Polls:      a.Registry,
	}
	if a.Onboarding != nil {
		s.Onboarding = a.Onboarding
	}
	if a.Content != nil {
		s.Content = a.Content
	}
	return s
}

// Close stops running polls and releases the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Registry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("poll registry: %w", err))
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}
