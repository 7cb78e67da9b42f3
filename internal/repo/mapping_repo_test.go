package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-domain-mapper/internal/config"
	"github.com/tbourn/go-domain-mapper/internal/sysutil"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCreateAndGetMapping(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetMappingByDomain(ctx, db, "portal.example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	m, err := CreateMapping(ctx, db, "portal.example.com", "agent-1")
	if err != nil {
		t.Fatalf("CreateMapping: %v", err)
	}
	if m.ID == 0 || !m.IsActive {
		t.Fatalf("unexpected mapping: %+v", m)
	}
	got, err := GetMappingByDomain(ctx, db, "portal.example.com")
	if err != nil || got.AgentID != "agent-1" {
		t.Fatalf("GetMappingByDomain = %+v, %v", got, err)
	}
}

func TestUpdateValidationData_RowsAffected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := CreateMapping(ctx, db, "portal.example.com", "a"); err != nil {
		t.Fatal(err)
	}

	n, err := UpdateValidationData(ctx, db, "portal.example.com", map[string]any{"script": "autocf", "exit_code": 0})
	if err != nil || n != 1 {
		t.Fatalf("update existing: n=%d err=%v", n, err)
	}
	got, _ := GetMappingByDomain(ctx, db, "portal.example.com")
	var payload map[string]any
	if err := json.Unmarshal(got.ValidationSuccessData, &payload); err != nil {
		t.Fatalf("stored json invalid: %v (%s)", err, got.ValidationSuccessData)
	}
	if payload["script"] != "autocf" {
		t.Fatalf("payload = %v", payload)
	}

	n, err = UpdateValidationData(ctx, db, "missing.example.com", map[string]any{})
	if err != nil || n != 0 {
		t.Fatalf("update missing: n=%d err=%v", n, err)
	}
}

func TestListCountDeleteAndStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if c, max, err := MappingsStats(ctx, db); err != nil || c != 0 || max != nil {
		t.Fatalf("empty stats: %d %v %v", c, max, err)
	}
	for i := 0; i < 3; i++ {
		if _, err := CreateMapping(ctx, db, fmt.Sprintf("d%d.example.com", i), "a"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := CreateMapping(ctx, db, "d0.example.com", "b"); err != nil {
		t.Fatal(err)
	}

	total, err := CountMappings(ctx, db)
	if err != nil || total != 4 {
		t.Fatalf("CountMappings = %d, %v", total, err)
	}
	page, err := ListMappingsPage(ctx, db, 0, 2)
	if err != nil || len(page) != 2 || page[0].Domain != "d0.example.com" || page[0].AgentID != "b" {
		t.Fatalf("ListMappingsPage = %+v, %v", page, err)
	}
	c, max, err := MappingsStats(ctx, db)
	if err != nil || c != 4 || max == nil {
		t.Fatalf("stats = %d %v %v", c, max, err)
	}

	n, err := DeleteMappingsByDomain(ctx, db, "d0.example.com")
	if err != nil || n != 2 {
		t.Fatalf("DeleteMappingsByDomain = %d, %v", n, err)
	}
	latest, err := GetMappingByDomain(ctx, db, "d1.example.com")
	if err != nil || latest.Domain != "d1.example.com" {
		t.Fatalf("remaining row missing: %v", err)
	}
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.DBConfig{Host: "db", Port: 3307, User: "u", Password: "p", Name: "app"})
	for _, want := range []string{"u:p@tcp(db:3307)/app", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
	if got := MySQLDSN(config.DBConfig{DSN: "raw"}); got != "raw" {
		t.Fatalf("explicit DSN should win, got %q", got)
	}
}

type recordRunner struct {
	name string
	args []string
	err  error
}

func (r *recordRunner) Run(_ context.Context, name string, args ...string) (sysutil.CommandResult, error) {
	r.name, r.args = name, args
	return sysutil.CommandResult{}, r.err
}

func TestBackupMySQL(t *testing.T) {
	dir := t.TempDir()
	rr := &recordRunner{}
	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	path, err := BackupMySQL(context.Background(), rr, config.DBConfig{Host: "h", Port: 3306, User: "u", Password: "pw", Name: "app"}, dir, when)
	if err != nil {
		t.Fatalf("BackupMySQL: %v", err)
	}
	if !strings.HasSuffix(path, "app_20240506_070809.sql") {
		t.Fatalf("path = %q", path)
	}
	if rr.name != "mysqldump" || rr.args[len(rr.args)-1] != "app" {
		t.Fatalf("unexpected invocation: %s %v", rr.name, rr.args)
	}
	joined := strings.Join(rr.args, " ")
	if !strings.Contains(joined, "-hh") || !strings.Contains(joined, "-ppw") || !strings.Contains(joined, "--result-file="+path) {
		t.Fatalf("args = %v", rr.args)
	}

	rr.err = sysutil.ErrCommandFailed
	if _, err := BackupMySQL(context.Background(), rr, config.DBConfig{Name: "app"}, dir, when); !errors.Is(err, sysutil.ErrCommandFailed) {
		t.Fatalf("want command failure, got %v", err)
	}
	if _, err := BackupMySQL(context.Background(), rr, config.DBConfig{}, dir, when); err == nil {
		t.Fatal("missing database name must fail")
	}
}
