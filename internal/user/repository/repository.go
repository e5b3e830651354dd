package repository

import (
	"context"
	"time"

	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/user/domain"
)

// Repository defines persistence for users. Implementations reach the identity store only
// through the routing table.
type Repository interface {
	// WithinTx runs fn in one identity-store transaction; methods called with the ctx passed to
	// fn join it.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockIdentifiers serializes concurrent writers claiming the same identifier values until
	// the surrounding transaction ends.
	LockIdentifiers(ctx context.Context, ids []domain.Identifier) error
	// FindActiveConflicts returns the identifiers in ids already held by an active user other
	// than excludeID (0 excludes nobody).
	FindActiveConflicts(ctx context.Context, ids []domain.Identifier, excludeID int64) ([]domain.Identifier, error)
	// CountActivePrivileged locks and counts active privileged users.
	CountActivePrivileged(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	FindActiveByIdentifier(ctx context.Context, identifier string) ([]*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	SetLastLogin(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f domain.Filter) ([]*domain.User, error)
	CountByOrganization(ctx context.Context, orgID int64) (int, error)
	FindRecord(ctx context.Context, id int64) (reference.Record, error)
}
