// Facade handler wiring.
//
// Handlers are transport-thin: they read the domain (and friends) from the
// query string, call one service operation, and translate the typed result
// or error into JSON. Nothing is shelled out; every former script is an
// in-process call.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-domain-mapper/internal/dnscheck"
	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/services"
	"github.com/tbourn/go-domain-mapper/internal/utils"
)

//
// Service contracts (context-aware)
//

// Onboarding starts, inspects and removes Cloudflare custom hostnames.
type Onboarding interface {
	// Start creates the hostname and schedules the background poll.
	Start(ctx context.Context, raw string) (services.StartResult, error)
	// Status summarizes verification and SSL progress.
	Status(ctx context.Context, raw string) (domain.Result, error)
	// Delete removes the www and bare variants.
	Delete(ctx context.Context, raw string) (domain.Result, error)
}

// Registrars applies a domain to the downstream systems.
type Registrars interface {
	AddALBHost(ctx context.Context, raw string, waitSSL bool) (domain.Result, error)
	Auth0Action(ctx context.Context, req services.Auth0Request) (domain.Result, error)
	AddNginxDomain(ctx context.Context, raw string) (domain.Result, error)
	AddCORSOrigin(ctx context.Context, raw string) (domain.Result, error)
	RegisterMapping(ctx context.Context, raw, agentID string, replace bool) (domain.Result, error)
	ValidateDNS(ctx context.Context, raw string) (dnscheck.Report, error)
}

// Mappings reads and removes domain_agent_mapping rows.
type Mappings interface {
	ListPage(ctx context.Context, page, pageSize int) ([]domain.DomainAgentMapping, int64, error)
	Get(ctx context.Context, raw string) (*domain.DomainAgentMapping, error)
	Remove(ctx context.Context, raw string) (int64, error)
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// ContentGenerator turns questionnaire answers into scored site content.
type ContentGenerator interface {
	Generate(ctx context.Context, req services.ContentRequest) (services.ContentResult, error)
}

// Polls exposes the background poll registry.
type Polls interface {
	Active() []services.PollInfo
	Cancel(key string) bool
}

// Services bundles the handler dependencies. A nil Onboarding or Content
// makes the matching endpoints answer 503.
type Services struct {
	Onboarding Onboarding
	Registrars Registrars
	Mappings   Mappings
	Content    ContentGenerator
	Polls      Polls
}

//
// Handler wiring
//

// Handlers groups the facade endpoints.
type Handlers struct {
	svc Services
}

// New constructs Handlers bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{svc: s}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// requireDomain returns the trimmed domain query param, failing with 400
// when it is missing.
func requireDomain(c *gin.Context) (string, bool) {
	d := strings.TrimSpace(c.Query("domain"))
	if d == "" {
		fail(c, http.StatusBadRequest, ErrCodeInvalidDomain, "domain query parameter is required")
		return "", false
	}
	return d, true
}

// notConfigured answers 503 for an endpoint whose service is absent.
func notConfigured(c *gin.Context, what string) {
	fail(c, http.StatusServiceUnavailable, ErrCodeNotConfigured, what+" is not configured")
}
