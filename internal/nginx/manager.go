// Package nginx adds customer domains to the server_name directive of the
// platform's nginx site config and reloads nginx.
package nginx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
	"github.com/tbourn/go-domain-mapper/internal/envfile"
	"github.com/tbourn/go-domain-mapper/internal/sysutil"
)

// EnvKey mirrors the served domains in the env file.
const EnvKey = "NGINX_DOMAINS"

var (
	// ErrNoServerName means the config has no uncommented server_name line.
	ErrNoServerName = errors.New("could not find server_name line in nginx configuration")
	// ErrConfigMissing means the config file does not exist.
	ErrConfigMissing = errors.New("nginx configuration file not found")
	// ErrValidate means nginx -t rejected the patched config.
	ErrValidate = errors.New("nginx configuration test failed")
	// ErrReload means systemctl reload nginx failed.
	ErrReload = errors.New("nginx reload failed")
)

// serverNameRe matches the first uncommented server_name directive; group 1
// is the directive up to, not including, the semicolon.
var serverNameRe = regexp.MustCompile(`(?m)^[ \t]*(server_name[ \t]+[^;]+);`)

// Manager patches one config file and writes per-agent site files into
// SitesDir. Privileged steps go through Runner. Files are staged in TempDir,
// the system temp dir when empty.
type Manager struct {
	ConfigPath string
	EnvPath    string
	TempDir    string
	Runner     sysutil.Runner
	Log        zerolog.Logger

	SitesDir         string
	AgentHostSuffix  string
	FrontendUpstream string
	APIUpstream      string

	mu sync.Mutex
}

// NewManager builds a Manager.
func NewManager(configPath, envPath, tempDir string, run sysutil.Runner) *Manager {
	return &Manager{
		ConfigPath: configPath,
		EnvPath:    envPath,
		TempDir:    tempDir,
		Runner:     run,
		Log:        log.With().Str("component", "nginx").Logger(),
	}
}

// Report details an AddDomain call.
type Report struct {
	ConfigPath string        `json:"config_path"`
	Added      []string      `json:"added,omitempty"`
	ServerName string        `json:"server_name"`
	BackupPath string        `json:"backup_path,omitempty"`
	Reloaded   bool          `json:"reloaded"`
	Env        *envfile.Edit `json:"env,omitempty"`
	EnvError   string        `json:"env_error,omitempty"`
}

// ServerNames returns the tokens of the first server_name directive in
// content, excluding the directive name.
func ServerNames(content string) ([]string, bool) {
	m := serverNameRe.FindStringSubmatch(content)
	if m == nil {
		return nil, false
	}
	return strings.Fields(m[1])[1:], true
}

// Patch appends each of domains missing from the first server_name
// directive. Membership is exact token equality, so a.example.com does not
// count as present because sub.a.example.com is listed. It returns the
// updated content and the tokens it added.
func Patch(content string, domains []string) (string, []string, error) {
	loc := serverNameRe.FindStringSubmatchIndex(content)
	if loc == nil {
		return content, nil, ErrNoServerName
	}
	directive := content[loc[2]:loc[3]]
	present := strings.Fields(directive)[1:]

	var added []string
	for _, d := range domains {
		if !slices.Contains(present, d) && !slices.Contains(added, d) {
			added = append(added, d)
		}
	}
	if len(added) == 0 {
		return content, nil, nil
	}
	patched := strings.TrimRight(directive, " \t") + " " + strings.Join(added, " ")
	return content[:loc[2]] + patched + content[loc[3]:], added, nil
}

// AddDomain adds the bare and www forms of raw to server_name, validates
// and reloads nginx, and mirrors the bare domain into NGINX_DOMAINS. A
// replay for a domain already served reports status no_changes. Calls are
// serialized so concurrent additions all land in the config.
func (m *Manager) AddDomain(ctx context.Context, raw string) (domain.Result, error) {
	ctx, span := otel.Tracer("nginx").Start(ctx, "Manager.AddDomain")
	defer span.End()
	m.mu.Lock()
	defer m.mu.Unlock()

	d := domainname.Normalize(raw)
	bare := strings.TrimPrefix(d, "www.")
	span.SetAttributes(attribute.String("domain", bare))
	rep := Report{ConfigPath: m.ConfigPath}
	logger := m.Log.With().Str("domain", bare).Logger()

	if m.EnvPath != "" {
		edit, err := envfile.AppendToList(m.EnvPath, EnvKey, bare, envfile.Options{Sep: ", ", Create: true})
		if err != nil {
			// The env mirror is independent of the nginx edit.
			logger.Warn().Err(err).Msg("failed to update NGINX_DOMAINS")
			rep.EnvError = err.Error()
		} else {
			rep.Env = &edit
		}
	}

	content, err := os.ReadFile(m.ConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Result{}, fmt.Errorf("%w: %s", ErrConfigMissing, m.ConfigPath)
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("read nginx config: %w", err)
	}

	patched, added, err := Patch(string(content), domainname.Variants(bare))
	if err != nil {
		return domain.Result{}, err
	}
	names, _ := ServerNames(patched)
	rep.ServerName = "server_name " + strings.Join(names, " ") + ";"

	if len(added) == 0 {
		logger.Info().Msg("domain already in nginx configuration")
		return domain.Success(bare, domain.StatusNoChanges,
			fmt.Sprintf("Domain %s already exists in nginx configuration", bare), rep), nil
	}
	rep.Added = added

	if rep.BackupPath, err = sysutil.Backup(ctx, m.Runner, m.ConfigPath); err != nil {
		return domain.Result{}, err
	}
	logger.Info().Str("backup", rep.BackupPath).Msg("nginx config backed up")

	if err := sysutil.InstallFile(ctx, m.Runner, m.TempDir, m.ConfigPath, []byte(patched)); err != nil {
		return domain.Result{}, err
	}

	if out, err := sysutil.NginxTest(ctx, m.Runner); err != nil {
		logger.Error().Err(err).Msg("nginx -t failed; restoring backup")
		if rerr := sysutil.Restore(ctx, m.Runner, rep.BackupPath, m.ConfigPath); rerr != nil {
			logger.Error().Err(rerr).Msg("restore nginx backup failed")
		}
		return domain.Result{}, fmt.Errorf("%w: %s", ErrValidate, out)
	}
	if err := sysutil.ReloadUnit(ctx, m.Runner, "nginx"); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", ErrReload, err)
	}
	rep.Reloaded = true
	logger.Info().Strs("added", added).Msg("nginx configuration updated and reloaded")

	return domain.Success(bare, domain.StatusUpdated,
		fmt.Sprintf("Added %s to nginx configuration", strings.Join(added, ", ")), rep), nil
}
