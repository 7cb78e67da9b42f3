package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
//
// MaskHeaders adds header names whose values are replaced with "[REDACTED]",
// on top of Authorization, Cookie, Set-Cookie and X-API-Key. MaskParams adds
// query parameter names whose values are masked, on top of the built-in
// secret-looking names (token, secret, password, api_key, client_secret).
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
	// MaxQueryLength caps the logged query string in bytes. Defaults to 2048.
	MaxQueryLength int
}

var (
	emailRE  = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	bearerRE = regexp.MustCompile(`(?i)bearer\s+[a-z0-9\-._~+/]+=*`)
)

// RedactingLogger writes one access log line per request with secrets
// scrubbed, and attaches a request-scoped logger (request_id, method, path,
// and the domain query param when present) for LoggerFrom.
//
// Domains are logged in clear: they are the subject of every request here
// and are not personal data. Emails and bearer tokens are not.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		"x-api-key":     {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = struct{}{}
		}
	}
	maskParams := map[string]struct{}{
		"token":         {},
		"access_token":  {},
		"secret":        {},
		"client_secret": {},
		"password":      {},
		"api_key":       {},
	}
	for _, p := range opts.MaskParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			maskParams[p] = struct{}{}
		}
	}
	maxQuery := opts.MaxQueryLength
	if maxQuery <= 0 {
		maxQuery = 2048
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := truncate(redactQuery(c.Request.URL.RawQuery, maskParams), maxQuery)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = scrub(strings.Join(vv, ", "))
		}

		lc := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path)
		if d := c.Query("domain"); d != "" {
			lc = lc.Str("domain", d)
		}
		l := lc.Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = l.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = l.Warn()
		}
		ev.
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// scrub replaces emails and bearer tokens in s.
func scrub(s string) string {
	if s == "" {
		return s
	}
	s = bearerRE.ReplaceAllString(s, "Bearer [REDACTED]")
	return emailRE.ReplaceAllString(s, "[REDACTED:email]")
}

// redactQuery masks the values of sensitive parameters in a raw query string
// and scrubs the rest. Parameter order is preserved.
func redactQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		name, _, hasValue := strings.Cut(p, "=")
		if _, ok := mask[strings.ToLower(name)]; ok && hasValue {
			parts[i] = name + "=[REDACTED]"
			continue
		}
		parts[i] = scrub(p)
	}
	return strings.Join(parts, "&")
}

// truncate caps s at max bytes, appending an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
