package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tbourn/go-domain-mapper/internal/config"
	"github.com/tbourn/go-domain-mapper/internal/sysutil"
)

// BackupMySQL dumps the configured database with mysqldump into
// dir/<database>_<YYYYMMDD_HHMMSS>.sql and returns the file path.
func BackupMySQL(ctx context.Context, run sysutil.Runner, cfg config.DBConfig, dir string, now time.Time) (string, error) {
	if cfg.Name == "" {
		return "", fmt.Errorf("backup: MYSQL_DATABASE is not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("backup dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", cfg.Name, now.Format("20060102_150405")))

	args := []string{
		"-h" + cfg.Host,
		"-P" + strconv.Itoa(cfg.Port),
		"-u" + cfg.User,
	}
	if cfg.Password != "" {
		args = append(args, "-p"+cfg.Password)
	}
	args = append(args, "--single-transaction", "--result-file="+path, cfg.Name)

	if _, err := run.Run(ctx, "mysqldump", args...); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("backup failed: %w", err)
	}
	return path, nil
}
