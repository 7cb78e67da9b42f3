// Package services holds the onboarding workflow and the registrar
// composition behind the HTTP facade and CLI. This file centralizes
// service-level error values; handlers translate them into HTTP statuses.
package services

import "errors"

var (
	// ErrInvalidDomain is returned when the input does not normalize to a hostname.
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrHostnameNotFound is returned when Cloudflare holds no matching custom hostname.
	ErrHostnameNotFound = errors.New("hostname not found")

	// ErrHostnameStillPresent is returned when a deleted hostname is still
	// listed after the settle delay.
	ErrHostnameStillPresent = errors.New("custom hostname still present after delete")

	// ErrMappingNotFound is returned when no domain_agent_mapping row matches.
	ErrMappingNotFound = errors.New("mapping not found")

	// ErrInvalidAgentID is returned for an empty agent id.
	ErrInvalidAgentID = errors.New("agent_id is required")

	// ErrSSLWaitTimeout is returned when SSL does not become active in time.
	ErrSSLWaitTimeout = errors.New("timed out waiting for SSL to become active")

	// ErrUnknownAction is returned for an unsupported registrar action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrRegistrarDisabled is returned when a registrar has no configuration.
	ErrRegistrarDisabled = errors.New("registrar not configured")

	// ErrCNAMEMismatch is returned when the domain's CNAME does not point at the SSL proxy.
	ErrCNAMEMismatch = errors.New("CNAME does not point at the SSL proxy")
)
