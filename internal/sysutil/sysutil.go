// Package sysutil runs the host-side steps the registrars share: staging and
// installing files into root-owned paths, nginx checks, service reloads and
// process restarts. It also carries the log level switch used by both
// binaries.
package sysutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel sets the global zerolog level. "warning" is an alias for warn;
// blank and unknown values select info.
func SetLogLevel(lvl string) {
	s := strings.ToLower(strings.TrimSpace(lvl))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// FirstNonEmpty returns the first value that is not blank, unchanged.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// InstallFile stages content in a fresh temp file under tmpDir (the system
// temp dir when empty) and copies it over dst through run. The staged file is
// unique per call and always removed.
func InstallFile(ctx context.Context, run Runner, tmpDir, dst string, content []byte) error {
	f, err := os.CreateTemp(tmpDir, filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("stage %s: %w", dst, err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("stage %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("stage %s: %w", dst, err)
	}
	if _, err := run.Run(ctx, "cp", f.Name(), dst); err != nil {
		return fmt.Errorf("install %s: %w", dst, err)
	}
	return nil
}

// Backup copies path to path+".backup" and returns the backup's path.
func Backup(ctx context.Context, run Runner, path string) (string, error) {
	backup := path + ".backup"
	if _, err := run.Run(ctx, "cp", path, backup); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	return backup, nil
}

// Restore copies backup back over path.
func Restore(ctx context.Context, run Runner, backup, path string) error {
	if _, err := run.Run(ctx, "cp", backup, path); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	return nil
}

// NginxTest runs nginx -t. On failure the returned string is nginx's
// trimmed stderr.
func NginxTest(ctx context.Context, run Runner) (string, error) {
	res, err := run.Run(ctx, "nginx", "-t")
	if err != nil {
		return strings.TrimSpace(res.Stderr), err
	}
	return "", nil
}

// ReloadUnit asks systemd to reload unit.
func ReloadUnit(ctx context.Context, run Runner, unit string) error {
	_, err := run.Run(ctx, "systemctl", "reload", unit)
	return err
}

// RestartProcess restarts name under manager (pm2, systemctl, ...). pm2
// restarts pass --update-env so the process rereads its environment.
func RestartProcess(ctx context.Context, run Runner, manager, name string) error {
	args := []string{"restart", name}
	if manager == "pm2" {
		args = append(args, "--update-env")
	}
	_, err := run.Run(ctx, manager, args...)
	return err
}
