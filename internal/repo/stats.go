package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-domain-mapper/internal/domain"
)

// MappingsStats returns the number of mapping rows and the greatest
// UpdatedAt among them, for ETag generation. maxUpdatedAt is nil when the
// table is empty.
func MappingsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.DomainAgentMapping{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// avoid MAX() -> TEXT in SQLite
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
