package services

import (
	"strings"
	"testing"

	"github.com/tbourn/go-domain-mapper/internal/domain"
)

func TestDeriveState(t *testing.T) {
	withTXT := domain.CustomHostname{
		Hostname: "portal.example.com",
		Status:   "pending",
		SSL: domain.SSLState{
			Status:            "pending_validation",
			ValidationRecords: []domain.ValidationRecord{{TXTName: "_acme-challenge.portal.example.com", TXTValue: "abc"}},
		},
	}
	cases := []struct {
		name    string
		ch      domain.CustomHostname
		require bool
		want    domain.OnboardingState
	}{
		{"ssl active", domain.CustomHostname{SSL: domain.SSLState{Status: "active"}}, false, domain.StateApplied},
		{"verification active", domain.CustomHostname{Status: "active"}, false, domain.StateApplied},
		{"txt value only", withTXT, false, domain.StateGenerated},
		{"neither", domain.CustomHostname{Status: "pending", SSL: domain.SSLState{Status: "initializing"}}, false, domain.StatePending},
		{"half record", domain.CustomHostname{SSL: domain.SSLState{ValidationRecords: []domain.ValidationRecord{{TXTValue: "x"}}}}, false, domain.StatePending},
		{"ownership required but missing", withTXT, true, domain.StatePending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveState(tc.ch, tc.require); got != tc.want {
				t.Fatalf("DeriveState = %q, want %q", got, tc.want)
			}
		})
	}

	withOwnership := withTXT
	withOwnership.OwnershipVerification = domain.OwnershipVerification{Type: "txt", Name: "_cf-custom-hostname.portal.example.com", Value: "uuid"}
	if got := DeriveState(withOwnership, true); got != domain.StateGenerated {
		t.Fatalf("ownership present: got %q", got)
	}
}

func TestBuildDNSBlock_FullRecords(t *testing.T) {
	ch := domain.CustomHostname{
		Hostname: "portal.example.com",
		Status:   "pending",
		SSL: domain.SSLState{
			Status: "pending_validation",
			ValidationRecords: []domain.ValidationRecord{
				{TXTName: "_acme-challenge.portal.example.com", TXTValue: "tok1"},
				{},
				{TXTName: "_acme-challenge.portal.example.com", TXTValue: "tok2", Status: "pending"},
			},
		},
		OwnershipVerification: domain.OwnershipVerification{Type: "txt", Name: "_cf-custom-hostname.portal.example.com", Value: "owner"},
	}
	out := BuildDNSBlock(ch, "ssl-proxy.example.net")

	for _, want := range []string{
		"Creating Custom hostname : portal.example.com\n",
		" Verification Status: pending\n",
		" SSL status: pending_validation\n",
		"=== DNS RECORDS TO ADD ===",
		"1. CNAME record:\n   Name:  portal.example.com\n   Value: ssl-proxy.example.net\n",
		"2. Ownership Verification TXT:\n   Name:  _cf-custom-hostname.portal.example.com\n   Value: owner\n",
		"   SSL TXT Record 1 (status: unknown):\n",
		"   SSL TXT Record 3 (status: pending):\n   Name:  _acme-challenge.portal.example.com\n   Value: tok2\n",
		"   SSL Status: pending_validation\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("block missing %q\n---\n%s", want, out)
		}
	}
	if strings.Contains(out, "SSL TXT Record 2") {
		t.Errorf("empty record must be skipped")
	}
	if strings.Contains(out, "WARNING") {
		t.Errorf("no warning expected when TXT records printed")
	}
	if !strings.HasSuffix(out, strings.Repeat("=", 50)) {
		t.Errorf("block must end with a 50-char rule")
	}
}

func TestBuildDNSBlock_WarnsWhenNothingYet(t *testing.T) {
	ch := domain.CustomHostname{Hostname: "a.example.com", SSL: domain.SSLState{Status: "initializing"}}
	out := BuildDNSBlock(ch, "proxy")
	if !strings.Contains(out, "WARNING: SSL validation records not yet available from Cloudflare.") {
		t.Fatalf("expected warning:\n%s", out)
	}
	if !strings.Contains(out, " Verification Status: unknown") {
		t.Fatalf("empty status renders as unknown:\n%s", out)
	}

	active := domain.CustomHostname{Hostname: "a.example.com", SSL: domain.SSLState{Status: "active"}}
	if strings.Contains(BuildDNSBlock(active, "proxy"), "WARNING") {
		t.Fatalf("active ssl should not warn")
	}
}

func TestNewEnvelope(t *testing.T) {
	ch := domain.CustomHostname{Hostname: "portal.example.com"}
	env := NewEnvelope("portal.example.com", ch, "proxy", domain.StatePending)
	if env.Script != EnvelopeScript || env.ExitCode != 0 || env.Stderr != "" || env.Status != domain.StatePending {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if len(env.Args) != 1 || env.Args[0] != "portal.example.com" {
		t.Fatalf("args = %v", env.Args)
	}
	if !strings.Contains(env.Stdout, "=== DNS RECORDS TO ADD ===") {
		t.Fatalf("stdout should carry the DNS block")
	}
}

func TestSummarize(t *testing.T) {
	cases := []struct {
		ver, ssl string
		typ      domain.ResultType
		msg      string
	}{
		{"active", "active", domain.ResultSuccess, "CNAME Completed, Verification Completed, SSL Completed"},
		{"pending", "pending_validation", domain.ResultPending, "CNAME Pending, Verification Pending, SSL Pending"},
		{"active", "initializing", domain.ResultPending, "CNAME Completed, Verification Completed, SSL Pending"},
		{"blocked", "expired", domain.ResultPending, "CNAME Pending, Verification: blocked, SSL: expired"},
		{"", "", domain.ResultPending, "CNAME Pending, Verification: unknown, SSL: unknown"},
	}
	for _, tc := range cases {
		r := Summarize(domain.CustomHostname{Hostname: "x.com", Status: tc.ver, SSL: domain.SSLState{Status: tc.ssl}})
		if r.Type != tc.typ || r.Message != tc.msg {
			t.Errorf("Summarize(%q,%q) = %s %q; want %s %q", tc.ver, tc.ssl, r.Type, r.Message, tc.typ, tc.msg)
		}
	}
}
