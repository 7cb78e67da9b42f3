package dnscheck

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/tbourn/go-domain-mapper/internal/domain"
)

type fakeResolver struct {
	cname map[string]string
	txt   map[string][]string
}

func (f fakeResolver) LookupCNAME(_ context.Context, host string) (string, error) {
	if c, ok := f.cname[host]; ok {
		return c, nil
	}
	return "", &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func (f fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	if v, ok := f.txt[name]; ok {
		return v, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

type fakeCF struct {
	ch  domain.CustomHostname
	err error
}

func (f fakeCF) Lookup(context.Context, string) (domain.CustomHostname, error) { return f.ch, f.err }

const acme = "Xk3v9_Qp2mZr8-Lw7Yt6Nb5Hc4Jd3Fg2Sa1Pe0Ro9Iu8"

func newValidator(r Resolver, cf HostnameLookup) *Validator {
	v := New("ssl-proxy.easydigz.com", cf)
	v.Resolver = r
	v.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return v
}

func TestValidate_AllPass(t *testing.T) {
	r := fakeResolver{
		cname: map[string]string{"portal.example.com": "SSL-Proxy.easydigz.com."},
		txt: map[string][]string{
			"_cf-custom-hostname.portal.example.com": {"0d9f1c2a-3b4c-4d5e-8f60-718293a4b5c6"},
			"_acme-challenge.portal.example.com":     {"short", acme},
		},
	}
	v := newValidator(r, fakeCF{ch: domain.CustomHostname{SSL: domain.SSLState{Status: "active"}}})
	rep := v.Validate(context.Background(), "https://portal.example.com/")

	if rep.OverallStatus != Pass || rep.Passed != 3 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if rep.CloudflareStatus.Status != "active" {
		t.Fatalf("cloudflare status = %+v", rep.CloudflareStatus)
	}
	if rep.Timestamp.Year() != 2026 {
		t.Fatal("clock not used")
	}
}

func TestValidate_PartialAndFail(t *testing.T) {
	r := fakeResolver{
		cname: map[string]string{"a.com": "elsewhere.net."},
		txt: map[string][]string{
			"_cf-custom-hostname.a.com": {"not-a-uuid"},
			"_acme-challenge.a.com":     {acme},
		},
	}
	rep := newValidator(r, nil).Validate(context.Background(), "a.com")
	if rep.OverallStatus != Partial || rep.Passed != 1 {
		t.Fatalf("want partial 1/3, got %+v", rep)
	}
	if rep.Checks.CNAME.Details != "Expected: ssl-proxy.easydigz.com, Found: elsewhere.net" {
		t.Fatalf("cname details = %q", rep.Checks.CNAME.Details)
	}
	if rep.CloudflareStatus.Status != Unknown {
		t.Fatal("no Cloudflare lookup configured")
	}

	rep = newValidator(fakeResolver{}, fakeCF{err: errors.New("not found")}).Validate(context.Background(), "b.com")
	if rep.OverallStatus != Fail || rep.Checks.OwnershipTXT.Details != "Domain not found" {
		t.Fatalf("want fail, got %+v", rep)
	}
}

func TestTokenShapes(t *testing.T) {
	if !isUUID("0d9f1c2a-3b4c-4d5e-8f60-718293a4b5c6") || isUUID("0d9f1c2a3b4c4d5e8f60718293a4b5c6") {
		t.Fatal("uuid detection")
	}
	if !isACMEToken(acme) || isACMEToken("too-short") || isACMEToken(acme+"!") {
		t.Fatal("acme detection")
	}
}

func TestVerifyCNAME(t *testing.T) {
	r := fakeResolver{cname: map[string]string{"x.com": "ssl-proxy.easydigz.com."}}
	ok, found, err := VerifyCNAME(context.Background(), r, "x.com", "SSL-PROXY.easydigz.com")
	if err != nil || !ok || found != "ssl-proxy.easydigz.com" {
		t.Fatalf("ok=%v found=%q err=%v", ok, found, err)
	}
	if _, _, err := VerifyCNAME(context.Background(), r, "y.com", "p"); err == nil {
		t.Fatal("want lookup error")
	}
}
