// Package domain defines the persistence model for domain-to-agent mappings
// and the value types exchanged between the onboarding services: Cloudflare
// custom-hostname snapshots, derived onboarding states, validation envelopes
// and registrar results.
package domain

import (
	"encoding/json"
	"time"
)

// DomainAgentMapping binds a customer domain to the agent whose site it
// serves, and stores the DNS validation snapshot captured by the poller.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Domain: normalized hostname; indexed, not unique (rows are inserted by
//     operators and replays may leave duplicates).
//   - AgentID: agent identifier; not a foreign key.
//   - IsActive: routing flag, set on insert.
//   - ValidationSuccessData: JSON envelope written once TXT records exist.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type DomainAgentMapping struct {
	ID                    uint            `json:"id"                                gorm:"primaryKey;autoIncrement"`
	Domain                string          `json:"domain"                            gorm:"type:varchar(255);not null;index:idx_mapping_domain"`
	AgentID               string          `json:"agent_id"                          gorm:"type:varchar(64);not null;index:idx_mapping_agent"`
	IsActive              bool            `json:"is_active"                         gorm:"not null;default:true"`
	ValidationSuccessData json.RawMessage `json:"validation_success_data,omitempty" gorm:"type:json"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TableName returns the database table name for DomainAgentMapping.
func (DomainAgentMapping) TableName() string { return "domain_agent_mapping" }
