// Package repo implements the data persistence layer for domain-to-agent
// mappings. Functions are context-aware, take a *gorm.DB handle and hold no
// business rules.
//
// Error semantics:
//   - A missing mapping is reported as ErrNotFound (gorm.ErrRecordNotFound).
//   - UpdateValidationData reports zero matched rows through its count, not
//     as an error; callers decide how loud to be about it.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-domain-mapper/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateMapping inserts an active mapping of domainName to agentID.
func CreateMapping(ctx context.Context, db *gorm.DB, domainName, agentID string) (*domain.DomainAgentMapping, error) {
	now := time.Now().UTC()
	m := &domain.DomainAgentMapping{
		Domain:    domainName,
		AgentID:   agentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMappingsByDomain removes every mapping row for domainName and
// returns how many were deleted.
func DeleteMappingsByDomain(ctx context.Context, db *gorm.DB, domainName string) (int64, error) {
	res := db.WithContext(ctx).Where("domain = ?", domainName).Delete(&domain.DomainAgentMapping{})
	return res.RowsAffected, res.Error
}

// GetMappingByDomain returns the most recent mapping for domainName.
func GetMappingByDomain(ctx context.Context, db *gorm.DB, domainName string) (*domain.DomainAgentMapping, error) {
	var m domain.DomainAgentMapping
	err := db.WithContext(ctx).
		Where("domain = ?", domainName).
		Order("id desc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMappings returns the total number of mapping rows.
func CountMappings(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.DomainAgentMapping{}).Count(&total).Error
	return total, err
}

// ListMappingsPage returns a page of mappings, newest first.
func ListMappingsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.DomainAgentMapping, error) {
	var out []domain.DomainAgentMapping
	err := db.WithContext(ctx).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateValidationData stores payload as the validation JSON of every row
// for domainName and returns the number of rows matched.
func UpdateValidationData(ctx context.Context, db *gorm.DB, domainName string, payload any) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).
		Model(&domain.DomainAgentMapping{}).
		Where("domain = ?", domainName).
		Updates(map[string]any{
			"validation_success_data": json.RawMessage(b),
			"updated_at":              time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
