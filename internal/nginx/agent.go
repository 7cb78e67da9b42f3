package nginx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
	"github.com/tbourn/go-domain-mapper/internal/sysutil"
)

// Agent site defaults.
const (
	DefaultAgentHostSuffix  = "easydigz.com"
	DefaultFrontendUpstream = "http://localhost:3000"
	DefaultAPIUpstream      = "http://localhost:7000"
)

// ErrAgentIDRequired means an agent site was requested without an agent id.
var ErrAgentIDRequired = errors.New("agent id is required")

var agentSiteTmpl = template.Must(template.New("agent").Parse(`server {

    listen 80;
    server_name {{.Domain}};
    proxy_set_header Host {{.AgentHost}};

    location ~ /api/auth/(.*) {
        proxy_pass {{.Frontend}};
        proxy_set_header Host $host;
        proxy_set_header X-Forwarded-For $remote_addr;
    }

    location /api {
        proxy_pass {{.API}}/api;
        proxy_set_header Host $host;
        proxy_set_header X-Forwarded-For $remote_addr;
    }

    location / {
        proxy_pass {{.Frontend}};
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;

        proxy_buffer_size 16k;
        proxy_buffers 4 32k;
        proxy_busy_buffers_size 64k;
    }
}
`))

// AgentSite describes a dedicated server block routing a customer domain to
// one agent's site.
type AgentSite struct {
	Domain    string
	AgentHost string
	Frontend  string
	API       string
}

// Render returns the server block for s.
func (s AgentSite) Render() (string, error) {
	var b bytes.Buffer
	if err := agentSiteTmpl.Execute(&b, s); err != nil {
		return "", fmt.Errorf("render agent site: %w", err)
	}
	return b.String(), nil
}

// AgentSiteFile is the file name used for domain: dots become underscores.
func AgentSiteFile(d string) string {
	return strings.ReplaceAll(d, ".", "_") + ".conf"
}

// AgentReport details a WriteAgentSite call.
type AgentReport struct {
	Path       string `json:"path"`
	AgentHost  string `json:"agent_host"`
	BackupPath string `json:"backup_path,omitempty"`
	Reloaded   bool   `json:"reloaded"`
}

// WriteAgentSite installs a server block for raw under SitesDir that proxies
// to the agent's host, then validates and reloads nginx. A rejected config is
// removed again. Rewriting an identical file reports status no_changes.
func (m *Manager) WriteAgentSite(ctx context.Context, raw, agentID string) (domain.Result, error) {
	ctx, span := otel.Tracer("nginx").Start(ctx, "Manager.WriteAgentSite")
	defer span.End()

	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return domain.Result{}, ErrAgentIDRequired
	}
	d := domainname.Normalize(raw)
	span.SetAttributes(attribute.String("domain", d), attribute.String("agent_id", agentID))

	site := AgentSite{
		Domain:    d,
		AgentHost: agentID + "." + m.agentHostSuffix(),
		Frontend:  orDefault(m.FrontendUpstream, DefaultFrontendUpstream),
		API:       orDefault(m.APIUpstream, DefaultAPIUpstream),
	}
	conf, err := site.Render()
	if err != nil {
		return domain.Result{}, err
	}
	rep := AgentReport{Path: filepath.Join(m.SitesDir, AgentSiteFile(d)), AgentHost: site.AgentHost}
	logger := m.Log.With().Str("domain", d).Str("path", rep.Path).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, err := os.ReadFile(rep.Path)
	if err == nil && string(cur) == conf {
		logger.Info().Msg("agent site already written")
		return domain.Success(d, domain.StatusNoChanges,
			fmt.Sprintf("nginx site for %s already routes to %s", d, site.AgentHost), rep), nil
	}
	if err == nil {
		if rep.BackupPath, err = sysutil.Backup(ctx, m.Runner, rep.Path); err != nil {
			return domain.Result{}, err
		}
	}

	if err := sysutil.InstallFile(ctx, m.Runner, m.TempDir, rep.Path, []byte(conf)); err != nil {
		return domain.Result{}, err
	}
	if out, err := sysutil.NginxTest(ctx, m.Runner); err != nil {
		logger.Error().Err(err).Msg("nginx -t failed; rolling back agent site")
		if rep.BackupPath != "" {
			err = sysutil.Restore(ctx, m.Runner, rep.BackupPath, rep.Path)
		} else {
			_, err = m.Runner.Run(ctx, "rm", "-f", rep.Path)
		}
		if err != nil {
			logger.Error().Err(err).Msg("roll back agent site failed")
		}
		return domain.Result{}, fmt.Errorf("%w: %s", ErrValidate, out)
	}
	if err := sysutil.ReloadUnit(ctx, m.Runner, "nginx"); err != nil {
		return domain.Result{}, fmt.Errorf("%w: %v", ErrReload, err)
	}
	rep.Reloaded = true
	logger.Info().Str("agent_host", site.AgentHost).Msg("agent site written and nginx reloaded")

	return domain.Success(d, domain.StatusUpdated,
		fmt.Sprintf("nginx site for %s routes to %s", d, site.AgentHost), rep), nil
}

func (m *Manager) agentHostSuffix() string {
	return strings.TrimPrefix(orDefault(m.AgentHostSuffix, DefaultAgentHostSuffix), ".")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
