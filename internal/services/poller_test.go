package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-domain-mapper/internal/domain"
)

const testProxy = "ssl-proxy.easydigz.com"

func scripted(host string, snaps ...domain.CustomHostname) *fakeCF {
	cf := newFakeCF()
	cf.put(domain.CustomHostname{ID: "H1", Hostname: host})
	cf.script["H1"] = snaps
	return cf
}

func TestPoller_PersistsOnFirstGenerated(t *testing.T) {
	host := "portal.example.com"
	cf := scripted(host,
		domain.CustomHostname{ID: "H1", Hostname: host, Status: "pending"},
		generatedSnapshot("H1", host),
	)
	store := &memStore{rows: 1}
	p := NewPoller(cf, store, 5*time.Millisecond, 2*time.Second, testProxy)

	before := testutil.ToFloat64(pollOutcomes.WithLabelValues(string(OutcomePersisted)))
	res := p.Run(context.Background(), host, host)

	if res.Outcome != OutcomePersisted || res.State != domain.StateGenerated || res.Ticks != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.RowsAffected != 1 || len(store.calls) != 1 {
		t.Fatalf("store calls = %d rows = %d", len(store.calls), res.RowsAffected)
	}
	stored := store.calls[0]
	if stored.Status != "" || stored.Script != EnvelopeScript || stored.Args[0] != host || stored.ExitCode != 0 {
		t.Fatalf("stored envelope = %+v", stored)
	}
	if res.Envelope == nil || res.Envelope.Status != domain.StateGenerated {
		t.Fatalf("returned envelope should keep status: %+v", res.Envelope)
	}
	if got := testutil.ToFloat64(pollOutcomes.WithLabelValues(string(OutcomePersisted))) - before; got != 1 {
		t.Fatalf("persisted outcome delta = %v", got)
	}
}

func TestPoller_AppliedOnFirstTick(t *testing.T) {
	cf := scripted("a.example.com", domain.CustomHostname{ID: "H1", Hostname: "a.example.com", SSL: domain.SSLState{Status: "active"}})
	store := &memStore{rows: 1}
	res := NewPoller(cf, store, time.Hour, time.Hour, testProxy).Run(context.Background(), "a.example.com", "a.example.com")
	if res.State != domain.StateApplied || res.Ticks != 1 || len(store.calls) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestPoller_TimeoutWritesNothing(t *testing.T) {
	cf := scripted("slow.example.com", domain.CustomHostname{ID: "H1", Hostname: "slow.example.com"})
	store := &memStore{rows: 1}
	before := testutil.ToFloat64(pollOutcomes.WithLabelValues(string(OutcomeTimeout)))

	res := NewPoller(cf, store, 5*time.Millisecond, 40*time.Millisecond, testProxy).
		Run(context.Background(), "slow.example.com", "slow.example.com")

	if res.Outcome != OutcomeTimeout || res.State != domain.StatePending || res.Ticks < 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(store.calls) != 0 {
		t.Fatal("timeout must not persist")
	}
	if got := testutil.ToFloat64(pollOutcomes.WithLabelValues(string(OutcomeTimeout))) - before; got != 1 {
		t.Fatalf("timeout outcome delta = %v", got)
	}
}

func TestPoller_ZeroRowsIsNotAnError(t *testing.T) {
	cf := scripted("nomap.example.com", generatedSnapshot("H1", "nomap.example.com"))
	res := NewPoller(cf, &memStore{}, time.Hour, time.Hour, testProxy).
		Run(context.Background(), "nomap.example.com", "nomap.example.com")
	if res.Outcome != OutcomePersisted || res.RowsAffected != 0 || res.Err != "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestPoller_StoreError(t *testing.T) {
	cf := scripted("err.example.com", generatedSnapshot("H1", "err.example.com"))
	res := NewPoller(cf, &memStore{err: errors.New("db down")}, time.Hour, time.Hour, testProxy).
		Run(context.Background(), "err.example.com", "err.example.com")
	if res.Outcome != OutcomeError || res.Err != "db down" {
		t.Fatalf("result = %+v", res)
	}
}

func TestPoller_Cancelled(t *testing.T) {
	cf := scripted("c.example.com", domain.CustomHostname{ID: "H1", Hostname: "c.example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan PollResult, 1)
	go func() {
		done <- NewPoller(cf, &memStore{}, 5*time.Millisecond, time.Hour, testProxy).Run(ctx, "c.example.com", "c.example.com")
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case res := <-done:
		if res.Outcome != OutcomeCancelled {
			t.Fatalf("result = %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop on cancel")
	}
}

// listOnly fails id lookups so the poller must fall back to the list scan.
type listOnly struct{ *fakeCF }

func (listOnly) Find(context.Context, string) (string, error) { return "", errors.New("filter query failed") }

func TestPoller_FallsBackToListScan(t *testing.T) {
	cf := newFakeCF()
	cf.put(generatedSnapshot("H9", "scan.example.com"))
	store := &memStore{rows: 1}
	res := NewPoller(listOnly{cf}, store, time.Hour, time.Hour, testProxy).
		Run(context.Background(), "scan.example.com", "scan.example.com")
	if res.State != domain.StateGenerated || len(store.calls) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestPoller_RequireOwnership(t *testing.T) {
	cf := scripted("own.example.com", generatedSnapshot("H1", "own.example.com"))
	p := NewPoller(cf, &memStore{rows: 1}, 5*time.Millisecond, 30*time.Millisecond, testProxy)
	p.RequireOwnership = true
	if res := p.Run(context.Background(), "own.example.com", "own.example.com"); res.Outcome != OutcomeTimeout {
		t.Fatalf("ownership TXT missing, want timeout: %+v", res)
	}
}
