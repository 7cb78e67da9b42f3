package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/repo"
)

// mappingStore adapts the repo free functions to ValidationStore.
type mappingStore struct{ db *gorm.DB }

// NewMappingStore returns a ValidationStore backed by db.
func NewMappingStore(db *gorm.DB) ValidationStore { return mappingStore{db: db} }

func (m mappingStore) UpdateValidationData(ctx context.Context, domainName string, env domain.ValidationEnvelope) (int64, error) {
	return repo.UpdateValidationData(ctx, m.db, domainName, env)
}
