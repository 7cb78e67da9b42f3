// Package httpapi wires the facade's Gin engine: middleware, the /run/*
// endpoints, mappings, polls, content generation, health, metrics and
// (optionally) Swagger UI.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-domain-mapper/internal/config"
	"github.com/tbourn/go-domain-mapper/internal/http/handlers"
	"github.com/tbourn/go-domain-mapper/internal/http/middleware"
)

// maxBodyBytes caps request bodies; only /generate-content reads one.
const maxBodyBytes = 1 << 20

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (attaches the request-scoped logger)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Rate limiter (per client IP and route)
//  8. CORS and security headers
//  9. gzip
func RegisterRoutes(r *gin.Engine, svc handlers.Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.RateRPS > 0 {
		rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIPAndRoute())
		r.Use(rl.Handler())
	}

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc)

	run := r.Group("/run")
	{
		run.GET("/autocf", h.RunAutocf)
		run.GET("/status", h.RunStatus)
		run.GET("/delete_cf", h.RunDeleteCF)
		run.GET("/alb", h.RunALB)
		run.GET("/auth0", h.RunAuth0)
		run.GET("/nginx", h.RunNginx)
		run.GET("/cors", h.RunCORS)
		run.GET("/dbkp", h.RunDBKP)
		run.GET("/validate_dns", h.RunValidateDNS)
	}

	r.GET("/polls", h.ListPolls)
	r.DELETE("/polls/:domain", h.CancelPoll)

	r.GET("/mappings", h.ListMappings)
	r.GET("/mappings/:domain", h.GetMapping)
	r.DELETE("/mappings/:domain", h.DeleteMapping)

	r.POST("/generate-content", h.GenerateContent)
}

// corsMiddleware allows every origin when allowed is empty, otherwise only
// the listed ones.
func corsMiddleware(allowed []string) []gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Poll", "ETag", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(allowed) == 0 {
		conf.AllowAllOrigins = true
		// ACAO: * even without an Origin header, for curl and health checks.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(conf),
		}
	}
	conf.AllowOrigins = allowed
	return []gin.HandlerFunc{cors.New(conf)}
}

// limitBody caps the request body at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
