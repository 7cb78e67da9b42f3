package cors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/envfile"
	"github.com/tbourn/go-domain-mapper/internal/sysutil"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recorder) Run(_ context.Context, name string, args ...string) (sysutil.CommandResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return sysutil.CommandResult{}, r.err
}

func TestAddOrigin(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	prod := filepath.Join(dir, ".env.prod")
	missing := filepath.Join(dir, ".env.local")
	if err := os.WriteFile(env, []byte("PORT=1\nCORS_ORIGINS=https://a.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(prod, []byte("PORT=2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	r := New([]string{env, prod, missing}, "easydigz-server", "", rec)

	res, err := r.AddOrigin(context.Background(), "Portal.Example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusUpdated {
		t.Fatalf("unexpected %+v", res)
	}
	b, _ := os.ReadFile(env)
	if string(b) != "PORT=1\nCORS_ORIGINS=https://a.com,https://portal.example.com\n" {
		t.Fatalf(".env = %q", b)
	}
	b, _ = os.ReadFile(prod)
	if string(b) != "PORT=2\nCORS_ORIGINS=https://portal.example.com\n" {
		t.Fatalf(".env.prod = %q", b)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "pm2 restart easydigz-server --update-env" {
		t.Fatalf("calls = %v", rec.calls)
	}
	rep := res.Details.(Report)
	if rep.Files[2].Status != "missing" {
		t.Fatalf("missing file should be reported, got %+v", rep.Files[2])
	}

	rec.calls = nil
	res, err = r.AddOrigin(context.Background(), "portal.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK() || res.Status != domain.StatusNoChanges {
		t.Fatalf("replay: %+v", res)
	}
	if len(rec.calls) != 0 {
		t.Fatal("replay must not restart the process")
	}
}

func TestAddOrigin_NoFiles(t *testing.T) {
	r := New([]string{filepath.Join(t.TempDir(), ".env")}, "", "", &recorder{})
	if _, err := r.AddOrigin(context.Background(), "a.com"); !errors.Is(err, ErrNoEnvFiles) {
		t.Fatalf("want ErrNoEnvFiles, got %v", err)
	}
}

func TestAddOrigin_RestartFailure(t *testing.T) {
	env := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(env, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	r := New([]string{env}, "api", "pm2", &recorder{err: sysutil.ErrCommandFailed})
	if _, err := r.AddOrigin(context.Background(), "a.com"); !errors.Is(err, sysutil.ErrCommandFailed) {
		t.Fatalf("want restart failure, got %v", err)
	}
}

func TestAddOrigin_ConcurrentOriginsAllLand(t *testing.T) {
	env := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(env, []byte("CORS_ORIGINS=\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	r := New([]string{env}, "api", "systemctl", rec)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := r.AddOrigin(context.Background(), fmt.Sprintf("c%d.example.com", i)); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	v, _, err := envfile.Lookup(env, EnvKey)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(envfile.SplitList(v)); got != n {
		t.Fatalf("CORS_ORIGINS holds %d origins, want %d: %q", got, n, v)
	}
	if len(rec.calls) != n || rec.calls[0] != "systemctl restart api" {
		t.Fatalf("restarts = %v", rec.calls)
	}
}
