package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-domain-mapper/internal/cloudflare"
	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/retry"
)

func newOnboarding(t *testing.T, cf *fakeCF, store ValidationStore) (*OnboardingService, *Registry) {
	t.Helper()
	reg := NewRegistry()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})
	p := NewPoller(cf, store, 5*time.Millisecond, 2*time.Second, testProxy)
	return NewOnboardingService(cf, reg, p, testProxy, 0, retry.Fixed(2, time.Millisecond)), reg
}

func TestOnboarding_StartReturnsPendingAndPolls(t *testing.T) {
	cf := newFakeCF()
	cf.script["H1"] = []domain.CustomHostname{
		{ID: "H1", Hostname: "portal.example.com"},
		generatedSnapshot("H1", "portal.example.com"),
	}
	store := &memStore{rows: 1}
	svc, _ := newOnboarding(t, cf, store)

	res, err := svc.Start(context.Background(), " HTTPS://Portal.Example.com/ ")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Joined || res.Hostname != "portal.example.com" || res.Envelope.Status != domain.StatePending {
		t.Fatalf("start result = %+v", res)
	}
	if res.Envelope.Args[0] != "portal.example.com" || !strings.Contains(res.Envelope.Stdout, "Value: "+testProxy) {
		t.Fatalf("envelope = %+v", res.Envelope)
	}
	if got := res.Task.Result(); got.Outcome != OutcomePersisted || got.State != domain.StateGenerated {
		t.Fatalf("poll result = %+v", got)
	}
	if len(store.calls) != 1 {
		t.Fatalf("store calls = %d", len(store.calls))
	}
}

func TestOnboarding_ApexUsesWWWHostname(t *testing.T) {
	cf := newFakeCF()
	svc, reg := newOnboarding(t, cf, &memStore{})
	res, err := svc.Start(context.Background(), "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Hostname != "www.example.com" || cf.created[0] != "www.example.com" {
		t.Fatalf("hostname = %s created = %v", res.Hostname, cf.created)
	}
	if res.Envelope.Args[0] != "example.com" {
		t.Fatalf("args = %v", res.Envelope.Args)
	}
	reg.Cancel("example.com")
}

func TestOnboarding_ReplacesExistingHostname(t *testing.T) {
	cf := newFakeCF()
	cf.put(domain.CustomHostname{ID: "OLD", Hostname: "portal.example.com"})
	svc, reg := newOnboarding(t, cf, &memStore{})

	if _, err := svc.Start(context.Background(), "portal.example.com"); err != nil {
		t.Fatal(err)
	}
	if len(cf.deleted) != 1 || len(cf.created) != 1 {
		t.Fatalf("deleted=%v created=%v", cf.deleted, cf.created)
	}
	reg.Cancel("portal.example.com")
}

func TestOnboarding_ExistingHostnameSurvivesDelete(t *testing.T) {
	cf := newFakeCF()
	cf.keepOnDel = true
	cf.put(domain.CustomHostname{ID: "OLD", Hostname: "portal.example.com"})
	svc, _ := newOnboarding(t, cf, &memStore{})

	if _, err := svc.Start(context.Background(), "portal.example.com"); !errors.Is(err, ErrHostnameStillPresent) {
		t.Fatalf("want ErrHostnameStillPresent, got %v", err)
	}
	if len(cf.created) != 0 {
		t.Fatal("must not create while the old hostname remains")
	}
}

func TestOnboarding_JoinsRunningPoll(t *testing.T) {
	cf := newFakeCF()
	svc, reg := newOnboarding(t, cf, &memStore{})

	first, err := svc.Start(context.Background(), "portal.example.com")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Start(context.Background(), "portal.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Joined || second.Task != first.Task || len(cf.created) != 1 {
		t.Fatalf("second start should join: joined=%v created=%v", second.Joined, cf.created)
	}
	if second.Envelope.Status != domain.StatePending {
		t.Fatalf("joined envelope = %+v", second.Envelope)
	}
	reg.Cancel("portal.example.com")
	if got := first.Task.Result(); got.Outcome != OutcomeCancelled {
		t.Fatalf("cancelled poll = %+v", got)
	}
}

func TestOnboarding_StartErrors(t *testing.T) {
	cf := newFakeCF()
	svc, _ := newOnboarding(t, cf, &memStore{})
	if _, err := svc.Start(context.Background(), "  "); !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("want ErrInvalidDomain, got %v", err)
	}
	cf.createErr = cloudflare.ErrDuplicateHostname
	if _, err := svc.Start(context.Background(), "dup.example.com"); !errors.Is(err, cloudflare.ErrDuplicateHostname) {
		t.Fatalf("want duplicate error, got %v", err)
	}
	if _, ok := svc.Registry.Get("dup.example.com"); ok {
		t.Fatal("no poll after a failed create")
	}

	// The released reservation does not block a retry.
	cf.createErr = nil
	res, err := svc.Start(context.Background(), "dup.example.com")
	if err != nil || res.Joined {
		t.Fatalf("retry after failure: joined=%v err=%v", res.Joined, err)
	}
	svc.Registry.Cancel("dup.example.com")
	<-res.Task.Done()
}

// slowLookupCF delays the first Lookup so a second Start arrives while the
// first is still talking to Cloudflare.
type slowLookupCF struct {
	*fakeCF
	delay time.Duration
	once  sync.Once
}

func (s *slowLookupCF) Lookup(ctx context.Context, name string) (domain.CustomHostname, error) {
	s.once.Do(func() { time.Sleep(s.delay) })
	return s.fakeCF.Lookup(ctx, name)
}

func TestOnboarding_OverlappingStartsShareOneHostname(t *testing.T) {
	cf := &slowLookupCF{fakeCF: newFakeCF(), delay: 50 * time.Millisecond}
	reg := NewRegistry()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})
	p := NewPoller(cf, &memStore{}, 5*time.Millisecond, 2*time.Second, testProxy)
	svc := NewOnboardingService(cf, reg, p, testProxy, 0, retry.Fixed(2, time.Millisecond))

	var (
		wg      sync.WaitGroup
		results [2]StartResult
		errs    [2]error
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Start(context.Background(), "portal.example.com")
		}(i)
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("errs = %v", errs)
	}
	cf.mu.Lock()
	created, deleted := append([]string(nil), cf.created...), append([]string(nil), cf.deleted...)
	cf.mu.Unlock()
	if len(created) != 1 || len(deleted) != 0 {
		t.Fatalf("created=%v deleted=%v", created, deleted)
	}
	if results[0].Joined || !results[1].Joined || results[0].Task != results[1].Task {
		t.Fatalf("joined=[%v %v] same task=%v", results[0].Joined, results[1].Joined, results[0].Task == results[1].Task)
	}
}

func TestOnboarding_Status(t *testing.T) {
	cf := newFakeCF()
	cf.put(domain.CustomHostname{ID: "W1", Hostname: "www.example.com", Status: "active", SSL: domain.SSLState{Status: "active"}})
	cf.put(domain.CustomHostname{ID: "P1", Hostname: "portal.example.com", Status: "pending", SSL: domain.SSLState{Status: "pending_validation"}})
	svc, _ := newOnboarding(t, cf, &memStore{})

	res, err := svc.Status(context.Background(), "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != domain.ResultSuccess || res.Domain != "www.example.com" {
		t.Fatalf("apex fallback = %+v", res)
	}
	res, err = svc.Status(context.Background(), "portal.example.com")
	if err != nil || res.Type != domain.ResultPending || res.Message != "CNAME Pending, Verification Pending, SSL Pending" {
		t.Fatalf("pending status = %+v, %v", res, err)
	}
	if _, err := svc.Status(context.Background(), "nope.example.com"); !errors.Is(err, ErrHostnameNotFound) {
		t.Fatalf("want ErrHostnameNotFound, got %v", err)
	}
}

func TestOnboarding_Delete(t *testing.T) {
	cf := newFakeCF()
	cf.put(domain.CustomHostname{ID: "W1", Hostname: "www.example.com", CustomOriginServer: testProxy, SSL: domain.SSLState{Status: "active"}})
	svc, _ := newOnboarding(t, cf, &memStore{})

	res, err := svc.Delete(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != domain.ResultSuccess || res.Status != "" || res.Message != "Deleted 1 custom hostname(s) for example.com" {
		t.Fatalf("delete = %+v", res)
	}
	details := res.Details.([]VariantDeletion)
	if details[0].Status != domain.StatusNotFound || details[1].Status != "deleted" || details[1].SSLStatus != "active" {
		t.Fatalf("details = %+v", details)
	}

	res, err = svc.Delete(context.Background(), "example.com")
	if err != nil || res.Status != domain.StatusNotFound {
		t.Fatalf("replay = %+v, %v", res, err)
	}
}

func TestOnboarding_DeleteReportsFailures(t *testing.T) {
	cf := newFakeCF()
	cf.lookupErr = errors.New("api unavailable")
	svc, _ := newOnboarding(t, cf, &memStore{})
	res, err := svc.Delete(context.Background(), "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != domain.ResultError || res.Message != "Failed to delete: example.com, www.example.com" {
		t.Fatalf("delete = %+v", res)
	}
}

func TestOnboarding_WaitForSSL(t *testing.T) {
	cf := newFakeCF()
	cf.put(domain.CustomHostname{ID: "A1", Hostname: "active.example.com", SSL: domain.SSLState{Status: "active"}})
	cf.put(domain.CustomHostname{ID: "S1", Hostname: "slow.example.com", SSL: domain.SSLState{Status: "pending_validation"}})
	svc, _ := newOnboarding(t, cf, &memStore{})

	ch, err := svc.WaitForSSL(context.Background(), "active.example.com", time.Second, time.Millisecond)
	if err != nil || ch.ID != "A1" {
		t.Fatalf("active = %+v, %v", ch, err)
	}
	_, err = svc.WaitForSSL(context.Background(), "slow.example.com", 30*time.Millisecond, 5*time.Millisecond)
	if !errors.Is(err, ErrSSLWaitTimeout) {
		t.Fatalf("want ErrSSLWaitTimeout, got %v", err)
	}
}

func TestOnboarding_WaitForSSLDefaultsNonPositiveInterval(t *testing.T) {
	cf := newFakeCF()
	cf.put(domain.CustomHostname{ID: "S1", Hostname: "slow.example.com", SSL: domain.SSLState{Status: "pending_validation"}})
	svc, _ := newOnboarding(t, cf, &memStore{})

	var waited []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return context.DeadlineExceeded
	}
	_, err := svc.WaitForSSL(context.Background(), "slow.example.com", time.Minute, 0)
	if !errors.Is(err, ErrSSLWaitTimeout) {
		t.Fatalf("want ErrSSLWaitTimeout, got %v", err)
	}
	if len(waited) != 1 || waited[0] != defaultSSLWaitInterval {
		t.Fatalf("waited = %v, want one %v pause", waited, defaultSSLWaitInterval)
	}
}
