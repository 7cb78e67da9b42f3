// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server, logging,
// database, upstream provider (Cloudflare, AWS, Auth0) and registrar settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the facade itself.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and configures the mapping store.
type DBConfig struct {
	Driver   string // mysql|sqlite
	Path     string // SQLite path
	DSN      string // full MySQL DSN, overrides the discrete fields
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// CloudflareConfig holds custom-hostname API settings.
type CloudflareConfig struct {
	Token       string // CF_TOKEN
	ZoneID      string // CF_ZONE_ID
	BaseURL     string // CF_BASE_URL, empty means the public API
	SSLProxyURL string // SSL_PROXY_URL, CNAME target and custom origin
}

// PollConfig tunes the SSL validation poll.
type PollConfig struct {
	Interval            time.Duration
	Timeout             time.Duration
	RequireOwnershipTXT bool
	DeleteSettle        time.Duration
	FetchRetries        int
	FetchRetryBackoff   time.Duration
	SSLWaitTimeout      time.Duration
	SSLWaitInterval     time.Duration
}

// AWSConfig holds the ALB listener rule the host-header registrar edits.
type AWSConfig struct {
	Region      string
	ListenerARN string
	RuleARN     string
}

// Auth0Config holds Management API credentials and the application client.
type Auth0Config struct {
	Domain       string // tenant domain, e.g. tenant.us.auth0.com
	ClientID     string // M2M client used for the management token
	ClientSecret string
	AppClientID  string // application whose URL lists are edited
	BaseURL      string // optional API override, defaults to https://<Domain>
}

// NginxConfig holds the server_name manager and agent site settings.
type NginxConfig struct {
	ConfigPath string
	EnvPath    string
	UseSudo    bool
	TempDir    string

	SitesDir         string // NGINX_SITES_DIR, per-agent server blocks
	AgentHostSuffix  string // NGINX_AGENT_HOST_SUFFIX, <agent_id>.<suffix> upstream Host
	FrontendUpstream string
	APIUpstream      string
}

// CORSRegistrarConfig holds the CORS_ORIGINS env-file registrar settings.
type CORSRegistrarConfig struct {
	EnvFiles       []string
	Process        string
	ProcessManager string
}

// ContentConfig configures website content generation.
type ContentConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	PromptPath  string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int    // bytes
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	DB         DBConfig
	Cloudflare CloudflareConfig
	Poll       PollConfig
	AWS        AWSConfig
	Auth0      Auth0Config
	Nginx      NginxConfig
	CORSFiles  CORSRegistrarConfig
	Content    ContentConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 330*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		DB: DBConfig{
			Driver:   strings.ToLower(getenv("DB_DRIVER", "mysql")),
			Path:     getenv("DB_PATH", "domains.db"),
			DSN:      getenv("MYSQL_DSN", ""),
			Host:     getenv("MYSQL_HOST", "127.0.0.1"),
			Port:     getint("MYSQL_PORT", 3306),
			User:     getenv("MYSQL_USER", ""),
			Password: getenv("MYSQL_PASSWORD", ""),
			Name:     getenv("MYSQL_DATABASE", ""),
		},

		Cloudflare: CloudflareConfig{
			Token:       getenv("CF_TOKEN", ""),
			ZoneID:      getenv("CF_ZONE_ID", ""),
			BaseURL:     getenv("CF_BASE_URL", ""),
			SSLProxyURL: getenv("SSL_PROXY_URL", "ssl-proxy.easydigz.com"),
		},

		Poll: PollConfig{
			Interval:            getdur("POLL_INTERVAL", 10*time.Second),
			Timeout:             getdur("POLL_TIMEOUT", 900*time.Second),
			RequireOwnershipTXT: getbool("POLL_REQUIRE_OWNERSHIP_TXT", false),
			DeleteSettle:        getdur("CF_DELETE_SETTLE", 5*time.Second),
			FetchRetries:        getint("CF_FETCH_RETRIES", 5),
			FetchRetryBackoff:   getdur("CF_FETCH_RETRY_BACKOFF", 5*time.Second),
			SSLWaitTimeout:      getdur("SSL_WAIT_TIMEOUT", 300*time.Second),
			SSLWaitInterval:     getdur("SSL_WAIT_INTERVAL", 10*time.Second),
		},

		AWS: AWSConfig{
			Region:      getenv("AWS_REGION", "us-east-1"),
			ListenerARN: getenv("ALB_LISTENER_ARN", ""),
			RuleARN:     getenv("ALB_RULE_ARN", ""),
		},

		Auth0: Auth0Config{
			Domain:       getenv("AUTH0_DOMAIN", ""),
			ClientID:     getenv("AUTH0_CLIENT_ID", ""),
			ClientSecret: getenv("AUTH0_CLIENT_SECRET", ""),
			AppClientID:  getenv("AUTH0_APP_CLIENT_ID", ""),
			BaseURL:      getenv("AUTH0_BASE_URL", ""),
		},

		Nginx: NginxConfig{
			ConfigPath: getenv("NGINX_CONFIG_PATH", "/etc/nginx/conf.d/stage.conf"),
			EnvPath:    getenv("NGINX_ENV_PATH", ".env"),
			UseSudo:    getbool("NGINX_USE_SUDO", true),
			TempDir:    getenv("NGINX_TEMP_DIR", ""),

			SitesDir:         getenv("NGINX_SITES_DIR", "/etc/nginx/conf.d"),
			AgentHostSuffix:  getenv("NGINX_AGENT_HOST_SUFFIX", "easydigz.com"),
			FrontendUpstream: getenv("NGINX_FRONTEND_UPSTREAM", "http://localhost:3000"),
			APIUpstream:      getenv("NGINX_API_UPSTREAM", "http://localhost:7000"),
		},

		CORSFiles: CORSRegistrarConfig{
			EnvFiles:       splitCSV(getenv("CORS_ENV_FILES", ".env,.env.prod,.env.local")),
			Process:        getenv("CORS_RESTART_PROCESS", ""),
			ProcessManager: getenv("CORS_PROCESS_MANAGER", "pm2"),
		},

		Content: ContentConfig{
			APIKey:      getenv("LLM_API_KEY", ""),
			Model:       getenv("LLM_MODEL", "claude-sonnet-4-5"),
			MaxTokens:   getint("LLM_MAX_TOKENS", 4096),
			Temperature: getfloat("LLM_TEMPERATURE", 0.7),
			PromptPath:  getenv("CONTENT_PROMPT_PATH", ""),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "domain-mapper"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Cloudflare.SSLProxyURL = strings.TrimSuffix(strings.TrimSpace(cfg.Cloudflare.SSLProxyURL), ".")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "mysql":
		if cfg.DB.DSN == "" && strings.TrimSpace(cfg.DB.Name) == "" {
			return cfg, errors.New("MYSQL_DATABASE or MYSQL_DSN must be set when DB_DRIVER=mysql")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: mysql, sqlite")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.Poll.Interval <= 0 || cfg.Poll.Timeout <= 0 {
		return cfg, errors.New("POLL_INTERVAL and POLL_TIMEOUT must be positive durations")
	}
	if cfg.Poll.Interval > cfg.Poll.Timeout {
		return cfg, errors.New("POLL_INTERVAL must not exceed POLL_TIMEOUT")
	}
	if cfg.Poll.SSLWaitInterval <= 0 || cfg.Poll.SSLWaitTimeout <= 0 {
		return cfg, errors.New("SSL_WAIT_INTERVAL and SSL_WAIT_TIMEOUT must be positive durations")
	}
	// wait_ssl answers synchronously, so its budget has to end before the server write deadline.
	if cfg.Poll.SSLWaitTimeout >= cfg.WriteTimeout {
		return cfg, errors.New("SSL_WAIT_TIMEOUT must be shorter than WRITE_TIMEOUT")
	}
	if cfg.Poll.DeleteSettle < 0 || cfg.Poll.FetchRetryBackoff < 0 {
		return cfg, errors.New("CF_DELETE_SETTLE and CF_FETCH_RETRY_BACKOFF must be >= 0")
	}
	if cfg.Poll.FetchRetries < 1 {
		return cfg, errors.New("CF_FETCH_RETRIES must be >= 1")
	}
	if cfg.Cloudflare.SSLProxyURL == "" {
		return cfg, errors.New("SSL_PROXY_URL must not be empty")
	}
	if cfg.Content.MaxTokens < 1 {
		return cfg, errors.New("LLM_MAX_TOKENS must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// bare integers are seconds, matching the legacy *_SECONDS style
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
