package repository

import (
	"context"

	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/site/domain"
)

// Repository defines persistence for sites.
type Repository interface {
	// Origin is the store sites are written to.
	Origin() routing.Store
	GetByID(ctx context.Context, id int64) (*domain.Site, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*domain.Site, error)
	CountByOrganization(ctx context.Context, orgID int64) (int, error)
	Create(ctx context.Context, s *domain.Site) error
	Update(ctx context.Context, s *domain.Site) error
	Delete(ctx context.Context, id int64) error
	FindRecord(ctx context.Context, id int64) (reference.Record, error)
}
