// Package handlers provides HTTP handler implementations for the facade.
//
// This file defines the response helpers shared by all endpoints. Every
// failure leaves the server as an ErrorResponse whose `type` is "error",
// matching the result shape the registrars use for success, so a caller can
// branch on `type` alone.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "type": "error",
//	  "code": "hostname_not_found",
//	  "message": "hostname not found: portal.example.com"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-domain-mapper/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Always "error"
	Type string `json:"type" example:"error"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"hostname_not_found"`
	// Human-readable message
	Message string `json:"message" example:"hostname not found"`
}

// fail aborts the request with a structured error. Server errors (>=500)
// are logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Type:      "error",
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail, used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr classifies err and aborts with the matching status and code.
func failErr(c *gin.Context, err error) {
	status, code := classify(err)
	fail(c, status, code, err.Error())
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
