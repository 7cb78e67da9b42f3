// Package cors adds customer origins to CORS_ORIGINS in the backend's env
// files and restarts the backend so it picks them up.
package cors

import (
	"context"
	"errors"
	"fmt"
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

// EnvKey is the comma-separated origin list the backend reads.
const EnvKey = "CORS_ORIGINS"

// ErrNoEnvFiles means none of the configured env files exist.
var ErrNoEnvFiles = errors.New("no CORS env file found")

// FileResult is the outcome for one env file.
type FileResult struct {
	Path   string `json:"path"`
	Added  bool   `json:"added"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report details an AddOrigin call.
type Report struct {
	Origin    string       `json:"origin"`
	Files     []FileResult `json:"files"`
	Restarted string       `json:"restarted,omitempty"`
}

// Registrar edits EnvFiles and restarts Process through ProcessManager.
type Registrar struct {
	EnvFiles       []string
	Process        string
	ProcessManager string
	Runner         sysutil.Runner
	Log            zerolog.Logger

	mu sync.Mutex
}

// New builds a Registrar. An empty process disables the restart.
func New(files []string, process, manager string, run sysutil.Runner) *Registrar {
	if manager == "" {
		manager = "pm2"
	}
	return &Registrar{
		EnvFiles:       files,
		Process:        process,
		ProcessManager: manager,
		Runner:         run,
		Log:            log.With().Str("component", "cors").Logger(),
	}
}

// AddOrigin appends https://<domain> to CORS_ORIGINS in every existing env
// file, adding the key where it is absent. Missing files are reported and
// skipped. The process is restarted only when some file changed, so a
// replay reports status no_changes without a restart.
func (r *Registrar) AddOrigin(ctx context.Context, raw string) (domain.Result, error) {
	ctx, span := otel.Tracer("cors").Start(ctx, "Registrar.AddOrigin")
	defer span.End()

	d := domainname.Normalize(raw)
	origin := "https://" + d
	span.SetAttributes(attribute.String("origin", origin))
	rep := Report{Origin: origin}

	r.mu.Lock()
	defer r.mu.Unlock()

	found, changed := 0, 0
	for _, path := range r.EnvFiles {
		fr := FileResult{Path: path}
		edit, err := envfile.AppendToList(path, EnvKey, origin, envfile.Options{})
		switch {
		case errors.Is(err, envfile.ErrMissing):
			fr.Status = "missing"
			r.Log.Warn().Str("path", path).Msg("CORS env file not found")
		case err != nil:
			found++
			fr.Status, fr.Error = "error", err.Error()
			r.Log.Error().Err(err).Str("path", path).Msg("CORS env update failed")
		case edit.Added:
			found++
			changed++
			fr.Added, fr.Status = true, domain.StatusUpdated
			r.Log.Info().Str("path", path).Str("origin", origin).Msg("added origin to CORS_ORIGINS")
		default:
			found++
			fr.Status = domain.StatusNoChanges
		}
		rep.Files = append(rep.Files, fr)
	}
	if found == 0 {
		return domain.Result{}, fmt.Errorf("%w: %v", ErrNoEnvFiles, r.EnvFiles)
	}
	for _, fr := range rep.Files {
		if fr.Status == "error" {
			return domain.Result{Type: domain.ResultError, Domain: d, Message: "Failed to update " + fr.Path + ": " + fr.Error, Details: rep}, nil
		}
	}

	if changed == 0 {
		return domain.Success(d, domain.StatusNoChanges,
			fmt.Sprintf("%s already present in CORS_ORIGINS", origin), rep), nil
	}

	if r.Process != "" {
		if err := sysutil.RestartProcess(ctx, r.Runner, r.ProcessManager, r.Process); err != nil {
			return domain.Result{}, fmt.Errorf("restart %s: %w", r.Process, err)
		}
		rep.Restarted = r.Process
		r.Log.Info().Str("process", r.Process).Msg("process restarted")
	}
	return domain.Success(d, domain.StatusUpdated,
		fmt.Sprintf("Added %s to CORS_ORIGINS in %d file(s)", origin, changed), rep), nil
}
