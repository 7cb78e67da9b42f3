// Package handlers provides HTTP handler implementations for the facade.
//
// This file defines the stable, machine-readable error codes carried in the
// `code` field of ErrorResponse, and the mapping from service and registrar
// errors to an HTTP status and code. Clients branch on the code, never on the
// message text.
//
// Status mapping:
//   - 400 invalid input (domain, agent id, action, Auth0 URL)
//   - 404 hostname or mapping not found
//   - 409 duplicate hostname, hostname still present, CNAME mismatch
//   - 502 upstream command or API failure
//   - 503 registrar or generator not configured, poll registry shut down
//   - 504 SSL wait or request deadline exceeded
//   - 500 anything else
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/tbourn/go-domain-mapper/internal/alb"
	"github.com/tbourn/go-domain-mapper/internal/auth0"
	"github.com/tbourn/go-domain-mapper/internal/cloudflare"
	"github.com/tbourn/go-domain-mapper/internal/cors"
	"github.com/tbourn/go-domain-mapper/internal/envfile"
	"github.com/tbourn/go-domain-mapper/internal/llm"
	"github.com/tbourn/go-domain-mapper/internal/nginx"
	"github.com/tbourn/go-domain-mapper/internal/retry"
	"github.com/tbourn/go-domain-mapper/internal/services"
	"github.com/tbourn/go-domain-mapper/internal/sysutil"
)

const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeInvalidDomain     = "invalid_domain"
	ErrCodeInvalidAgentID    = "invalid_agent_id"
	ErrCodeUnknownAction     = "unknown_action"
	ErrCodeNotFound          = "not_found"
	ErrCodeHostnameNotFound  = "hostname_not_found"
	ErrCodeMappingNotFound   = "mapping_not_found"
	ErrCodeDuplicateHostname = "duplicate_hostname"
	ErrCodeHostnamePresent   = "hostname_still_present"
	ErrCodeCNAMEMismatch     = "cname_mismatch"
	ErrCodeUpstreamFailed    = "upstream_failed"
	ErrCodeNotConfigured     = "not_configured"
	ErrCodeMisconfigured     = "registrar_misconfigured"
	ErrCodeShuttingDown      = "shutting_down"
	ErrCodeSSLTimeout        = "ssl_timeout"
	ErrCodeTimeout           = "timeout"
	ErrCodeTooManyRequests   = "too_many_requests"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
	ErrCodeInternal          = "internal_error"
)

// classify maps err to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidDomain), errors.Is(err, auth0.ErrInvalidURL):
		return http.StatusBadRequest, ErrCodeInvalidDomain
	case errors.Is(err, services.ErrInvalidAgentID):
		return http.StatusBadRequest, ErrCodeInvalidAgentID
	case errors.Is(err, services.ErrUnknownAction):
		return http.StatusBadRequest, ErrCodeUnknownAction
	case errors.Is(err, auth0.ErrNoClientID), errors.Is(err, services.ErrNoAnswers), errors.Is(err, services.ErrPromptTooLong):
		return http.StatusBadRequest, ErrCodeBadRequest

	case errors.Is(err, services.ErrHostnameNotFound), errors.Is(err, cloudflare.ErrNotFound):
		return http.StatusNotFound, ErrCodeHostnameNotFound
	case errors.Is(err, services.ErrMappingNotFound):
		return http.StatusNotFound, ErrCodeMappingNotFound

	case errors.Is(err, cloudflare.ErrDuplicateHostname):
		return http.StatusConflict, ErrCodeDuplicateHostname
	case errors.Is(err, services.ErrHostnameStillPresent):
		return http.StatusConflict, ErrCodeHostnamePresent
	case errors.Is(err, services.ErrCNAMEMismatch):
		return http.StatusConflict, ErrCodeCNAMEMismatch

	case errors.Is(err, services.ErrRegistrarDisabled),
		errors.Is(err, cloudflare.ErrNotConfigured),
		errors.Is(err, alb.ErrNotConfigured),
		errors.Is(err, auth0.ErrNotConfigured),
		errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable, ErrCodeNotConfigured
	case errors.Is(err, services.ErrRegistryClosed):
		return http.StatusServiceUnavailable, ErrCodeShuttingDown

	case errors.Is(err, nginx.ErrConfigMissing),
		errors.Is(err, nginx.ErrNoServerName),
		errors.Is(err, cors.ErrNoEnvFiles),
		errors.Is(err, envfile.ErrMissing),
		errors.Is(err, alb.ErrRuleNotFound):
		return http.StatusInternalServerError, ErrCodeMisconfigured

	case errors.Is(err, services.ErrSSLWaitTimeout):
		return http.StatusGatewayTimeout, ErrCodeSSLTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout

	case errors.Is(err, sysutil.ErrCommandFailed),
		errors.Is(err, nginx.ErrValidate),
		errors.Is(err, nginx.ErrReload),
		errors.Is(err, retry.ErrExhausted),
		errors.Is(err, services.ErrUnparseableCompletion),
		errors.Is(err, llm.ErrEmptyCompletion):
		return http.StatusBadGateway, ErrCodeUpstreamFailed
	}
	return http.StatusInternalServerError, ErrCodeInternal
}
