package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
	"github.com/tbourn/go-domain-mapper/internal/repo"
)

// MappingService manages domain_agent_mapping rows.
type MappingService struct {
	DB *gorm.DB
}

// Register inserts an active mapping of raw (URL or bare host) to agentID.
// With replace set, existing rows for the domain are deleted first.
func (s *MappingService) Register(ctx context.Context, raw, agentID string, replace bool) (domain.Result, error) {
	d := domainname.Clean(raw)
	if !domainname.Valid(d) {
		return domain.Result{}, fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return domain.Result{}, ErrInvalidAgentID
	}

	var (
		removed int64
		m       *domain.DomainAgentMapping
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replace {
			n, err := repo.DeleteMappingsByDomain(ctx, tx, d)
			if err != nil {
				return err
			}
			removed = n
		}
		var err error
		m, err = repo.CreateMapping(ctx, tx, d, agentID)
		return err
	})
	if err != nil {
		return domain.Result{}, fmt.Errorf("insert mapping: %w", err)
	}
	return domain.Success(d, "", fmt.Sprintf("Mapped %s to agent %s", d, agentID), map[string]any{
		"id":       m.ID,
		"agent_id": agentID,
		"replaced": removed,
	}), nil
}

// Get returns the newest mapping for raw.
func (s *MappingService) Get(ctx context.Context, raw string) (*domain.DomainAgentMapping, error) {
	d := domainname.Clean(raw)
	m, err := repo.GetMappingByDomain(ctx, s.DB, d)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMappingNotFound
	}
	return m, err
}

// Remove deletes every mapping for raw.
func (s *MappingService) Remove(ctx context.Context, raw string) (int64, error) {
	d := domainname.Clean(raw)
	n, err := repo.DeleteMappingsByDomain(ctx, s.DB, d)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrMappingNotFound
	}
	return n, nil
}

// ListPage returns a page of mappings, newest first, and the total count.
func (s *MappingService) ListPage(ctx context.Context, page, pageSize int) ([]domain.DomainAgentMapping, int64, error) {
	if page < 1 {
		page = 1
	}
	total, err := repo.CountMappings(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListMappingsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Stats returns the row count and newest update time, for ETags.
func (s *MappingService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.MappingsStats(ctx, s.DB)
}
