package repository

import (
	"context"

	"gwiit/backend/internal/organization/domain"
	"gwiit/backend/internal/reference"
)

// Repository defines persistence for organizations and their contacts.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Organization, error)
	GetByName(ctx context.Context, name string) (*domain.Organization, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Organization, error)
	Create(ctx context.Context, o *domain.Organization) error
	Update(ctx context.Context, o *domain.Organization) error
	Delete(ctx context.Context, id int64) error
	CreateContact(ctx context.Context, c *domain.Contact) error
	ListContacts(ctx context.Context, orgID int64) ([]*domain.Contact, error)
	CountContacts(ctx context.Context, orgID int64) (int, error)
	FindRecord(ctx context.Context, id int64) (reference.Record, error)
}
