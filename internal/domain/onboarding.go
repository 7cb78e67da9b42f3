package domain

import "strings"

// OnboardingState is derived from a CustomHostname snapshot and never stored.
type OnboardingState string

const (
	StatePending   OnboardingState = "pending"
	StateGenerated OnboardingState = "generated"
	StateApplied   OnboardingState = "applied"
)

// Ready reports whether the state is one the poller persists on.
func (s OnboardingState) Ready() bool {
	return s == StateGenerated || s == StateApplied
}

// StatusActive is the Cloudflare status value for a verified hostname or an
// issued certificate.
const StatusActive = "active"

// ValidationRecord is one SSL DCV record Cloudflare asks the owner to publish.
type ValidationRecord struct {
	TXTName  string `json:"txt_name,omitempty"`
	TXTValue string `json:"txt_value,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Populated reports whether both the TXT name and value are present.
func (r ValidationRecord) Populated() bool {
	return strings.TrimSpace(r.TXTName) != "" && strings.TrimSpace(r.TXTValue) != ""
}

// SSLState mirrors the ssl block of a custom hostname.
type SSLState struct {
	Status            string             `json:"status,omitempty"`
	Method            string             `json:"method,omitempty"`
	Type              string             `json:"type,omitempty"`
	ValidationRecords []ValidationRecord `json:"validation_records,omitempty"`
}

// OwnershipVerification is the TXT record proving control of the hostname.
type OwnershipVerification struct {
	Type  string `json:"type,omitempty"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// Populated reports whether the record is a TXT record with name and value.
func (o OwnershipVerification) Populated() bool {
	return strings.EqualFold(o.Type, "txt") && o.Name != "" && o.Value != ""
}

// CustomHostname is the subset of a Cloudflare custom hostname the system
// reads. Cloudflare owns the object; this is a point-in-time snapshot.
type CustomHostname struct {
	ID                    string                `json:"id"`
	Hostname              string                `json:"hostname"`
	Status                string                `json:"status,omitempty"`
	CustomOriginServer    string                `json:"custom_origin_server,omitempty"`
	SSL                   SSLState              `json:"ssl"`
	OwnershipVerification OwnershipVerification `json:"ownership_verification"`
}

// ValidationEnvelope is the JSON document persisted in
// DomainAgentMapping.ValidationSuccessData and returned by the onboarding
// endpoint. Status is only set on responses.
type ValidationEnvelope struct {
	Args     []string        `json:"args"`
	Script   string          `json:"script"`
	Stdout   string          `json:"stdout"`
	Stderr   string          `json:"stderr"`
	ExitCode int             `json:"exit_code"`
	Status   OnboardingState `json:"status,omitempty"`
}

// Stored returns a copy of e without Status, as written to the mapping row.
func (e ValidationEnvelope) Stored() ValidationEnvelope {
	e.Status = ""
	e.Args = append([]string(nil), e.Args...)
	return e
}

// ResultType classifies a registrar or status outcome.
type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultPending ResultType = "pending"
	ResultError   ResultType = "error"
)

// Registrar statuses reported on a successful Result.
const (
	StatusNoChanges = "no_changes"
	StatusNotFound  = "not_found"
	StatusUpdated   = "updated"
)

// Result is the typed outcome of a registrar or status operation.
type Result struct {
	Type    ResultType `json:"type"`
	Message string     `json:"message"`
	Status  string     `json:"status,omitempty"`
	Domain  string     `json:"domain,omitempty"`
	Details any        `json:"details,omitempty"`
}

// Success builds a success Result.
func Success(domain, status, message string, details any) Result {
	return Result{Type: ResultSuccess, Domain: domain, Status: status, Message: message, Details: details}
}

// OK reports whether r is a success.
func (r Result) OK() bool { return r.Type == ResultSuccess }
