package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-domain-mapper/internal/cloudflare"
	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// fakeCF is an in-memory custom hostname zone. Get replays scripted
// snapshots per id (the last one sticks) before falling back to the stored
// hostname.
type fakeCF struct {
	mu        sync.Mutex
	hosts     map[string]domain.CustomHostname
	script    map[string][]domain.CustomHostname
	gets      map[string]int
	created   []string
	deleted   []string
	createErr error
	lookupErr error
	keepOnDel bool
	nextID    int
}

func newFakeCF() *fakeCF {
	return &fakeCF{
		hosts:  map[string]domain.CustomHostname{},
		script: map[string][]domain.CustomHostname{},
		gets:   map[string]int{},
	}
}

func (f *fakeCF) put(ch domain.CustomHostname) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts[ch.Hostname] = ch
}

func (f *fakeCF) Find(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.hosts[strings.ToLower(name)]; ok {
		return ch.ID, nil
	}
	return "", cloudflare.ErrNotFound
}

func (f *fakeCF) Get(_ context.Context, id string) (domain.CustomHostname, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snaps := f.script[id]; len(snaps) > 0 {
		i := f.gets[id]
		f.gets[id]++
		if i >= len(snaps) {
			i = len(snaps) - 1
		}
		return snaps[i], nil
	}
	for _, ch := range f.hosts {
		if ch.ID == id {
			return ch, nil
		}
	}
	return domain.CustomHostname{}, cloudflare.ErrNotFound
}

func (f *fakeCF) Lookup(_ context.Context, name string) (domain.CustomHostname, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return domain.CustomHostname{}, f.lookupErr
	}
	if ch, ok := f.hosts[strings.ToLower(name)]; ok {
		return ch, nil
	}
	return domain.CustomHostname{}, cloudflare.ErrNotFound
}

func (f *fakeCF) Create(_ context.Context, hostname, origin string) (domain.CustomHostname, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.CustomHostname{}, f.createErr
	}
	if _, ok := f.hosts[hostname]; ok {
		return domain.CustomHostname{}, cloudflare.ErrDuplicateHostname
	}
	f.nextID++
	ch := domain.CustomHostname{
		ID:                 fmt.Sprintf("H%d", f.nextID),
		Hostname:           hostname,
		Status:             "pending",
		CustomOriginServer: origin,
		SSL:                domain.SSLState{Status: "initializing", Method: "txt", Type: "dv"},
	}
	f.hosts[hostname] = ch
	f.created = append(f.created, hostname)
	return ch, nil
}

func (f *fakeCF) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, ch := range f.hosts {
		if ch.ID == id {
			if !f.keepOnDel {
				delete(f.hosts, name)
			}
			f.deleted = append(f.deleted, name)
			return nil
		}
	}
	return cloudflare.ErrNotFound
}

// memStore records UpdateValidationData calls.
type memStore struct {
	mu    sync.Mutex
	rows  int64
	err   error
	calls []domain.ValidationEnvelope
}

func (m *memStore) UpdateValidationData(_ context.Context, _ string, env domain.ValidationEnvelope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, env)
	return m.rows, m.err
}

func generatedSnapshot(id, host string) domain.CustomHostname {
	return domain.CustomHostname{
		ID:       id,
		Hostname: host,
		Status:   "pending",
		SSL: domain.SSLState{
			Status: "pending_validation",
			ValidationRecords: []domain.ValidationRecord{
				{TXTName: "_acme-challenge." + host, TXTValue: "token-value", Status: "pending"},
			},
		},
	}
}
