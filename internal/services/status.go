package services

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-domain-mapper/internal/domain"
)

// EnvelopeScript names the producer recorded in persisted envelopes.
const EnvelopeScript = "autocf"

// DeriveState classifies a custom hostname snapshot. Applied wins over
// generated; generated needs at least one populated SSL TXT record and, when
// requireOwnership is set, a populated ownership TXT record as well.
func DeriveState(ch domain.CustomHostname, requireOwnership bool) domain.OnboardingState {
	if ch.SSL.Status == domain.StatusActive || ch.Status == domain.StatusActive {
		return domain.StateApplied
	}
	if requireOwnership && !ch.OwnershipVerification.Populated() {
		return domain.StatePending
	}
	for _, r := range ch.SSL.ValidationRecords {
		if r.Populated() {
			return domain.StateGenerated
		}
	}
	return domain.StatePending
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// BuildDNSBlock renders the operator-facing list of DNS records to publish
// for ch. The CNAME always points at proxy.
func BuildDNSBlock(ch domain.CustomHostname, proxy string) string {
	sslStatus := orUnknown(ch.SSL.Status)

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("Creating Custom hostname : %s", ch.Hostname)
	line(" Verification Status: %s", orUnknown(ch.Status))
	line(" SSL status: %s", sslStatus)
	line("")
	line("=== DNS RECORDS TO ADD ===")
	line("")
	line("Please add the following records to your domain's DNS:")
	line("")
	line("1. CNAME record:")
	line("   Name:  %s", ch.Hostname)
	line("   Value: %s", proxy)
	line("")

	printedTXT := false
	if ov := ch.OwnershipVerification; strings.EqualFold(ov.Type, "txt") {
		line("2. Ownership Verification TXT:")
		line("   Name:  %s", ov.Name)
		line("   Value: %s", ov.Value)
		line("")
		printedTXT = true
	}

	if ch.SSL.Status != "" || len(ch.SSL.ValidationRecords) > 0 {
		line("3. SSL Validation Records:")
		for i, r := range ch.SSL.ValidationRecords {
			if !r.Populated() {
				continue
			}
			line("   SSL TXT Record %d (status: %s):", i+1, orUnknown(r.Status))
			line("   Name:  %s", r.TXTName)
			line("   Value: %s", r.TXTValue)
			line("")
			printedTXT = true
		}
		line("   SSL Status: %s", sslStatus)
		line("")
	}

	if !printedTXT && sslStatus != domain.StatusActive {
		line("   WARNING: SSL validation records not yet available from Cloudflare.")
		line("")
	}
	b.WriteString(strings.Repeat("=", 50))
	return b.String()
}

// NewEnvelope builds the validation envelope for domainArg from ch.
func NewEnvelope(domainArg string, ch domain.CustomHostname, proxy string, state domain.OnboardingState) domain.ValidationEnvelope {
	return domain.ValidationEnvelope{
		Args:     []string{domainArg},
		Script:   EnvelopeScript,
		Stdout:   BuildDNSBlock(ch, proxy),
		Stderr:   "",
		ExitCode: 0,
		Status:   state,
	}
}

// Summarize reports verification, CNAME and SSL progress for ch. The result
// is a success only when both verification and SSL are active.
func Summarize(ch domain.CustomHostname) domain.Result {
	ver := orUnknown(ch.Status)
	ssl := "unknown"
	if ch.SSL.Status != "" {
		ssl = ch.SSL.Status
	}

	parts := make([]string, 0, 3)
	if ver == domain.StatusActive {
		parts = append(parts, "CNAME Completed")
	} else {
		parts = append(parts, "CNAME Pending")
	}
	switch ver {
	case domain.StatusActive:
		parts = append(parts, "Verification Completed")
	case "pending", "pending_deployment", "pending_validation":
		parts = append(parts, "Verification Pending")
	default:
		parts = append(parts, "Verification: "+ver)
	}
	switch ssl {
	case domain.StatusActive:
		parts = append(parts, "SSL Completed")
	case "pending_validation", "initializing", "pending":
		parts = append(parts, "SSL Pending")
	default:
		parts = append(parts, "SSL: "+ssl)
	}

	typ := domain.ResultPending
	if ver == domain.StatusActive && ssl == domain.StatusActive {
		typ = domain.ResultSuccess
	}
	return domain.Result{
		Type:    typ,
		Message: strings.Join(parts, ", "),
		Domain:  ch.Hostname,
		Details: map[string]string{"verification_status": ver, "ssl_status": ssl, "id": ch.ID},
	}
}
