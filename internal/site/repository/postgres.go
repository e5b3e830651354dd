package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gwiit/backend/internal/db"
	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/site/domain"
)

const siteColumns = `id, name, organization_id, type, address, active, created_at, created_by_id,
	updated_at, modified_by_id`

type PostgresRepository struct {
	stores routing.Locator
}

// NewPostgresRepository returns a site repository that resolves its store through stores.
func NewPostgresRepository(stores routing.Locator) *PostgresRepository {
	return &PostgresRepository{stores: stores}
}

func (r *PostgresRepository) conn(ctx context.Context) (db.Querier, error) {
	h, err := r.stores.DB(ctx, routing.DomainSite)
	if err != nil {
		return nil, err
	}
	return db.Conn(ctx, h), nil
}

func (r *PostgresRepository) writeConn(ctx context.Context, placed routing.Store) (db.Querier, error) {
	return db.WriteConn(ctx, r.stores, routing.DomainSite, placed)
}

// Origin returns the store the site domain routes to.
func (r *PostgresRepository) Origin() routing.Store {
	return r.stores.Table().Route(routing.DomainSite)
}

// GetByID returns the site for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Site, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	s, err := r.scanSite(q.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListByOrganization returns the sites of orgID ordered by name.
func (r *PostgresRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*domain.Site, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE organization_id = $1 ORDER BY name, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()
	var out []*domain.Site
	for rows.Next() {
		s, err := r.scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountByOrganization counts sites that reference orgID.
func (r *PostgresRepository) CountByOrganization(ctx context.Context, orgID int64) (int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = q.QueryRowContext(ctx, `SELECT count(*) FROM sites WHERE organization_id = $1`, orgID).Scan(&n)
	return n, err
}

// Create inserts s and sets its ID.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Site) error {
	q, err := r.writeConn(ctx, s.Store)
	if err != nil {
		return err
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO sites (name, organization_id, type, address, active, created_at, created_by_id,
			updated_at, modified_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		s.Name, s.OrganizationID, nullString(s.Type), nullString(s.Address), s.Active,
		s.CreatedAt, nullID(s.CreatedByID), s.UpdatedAt, nullID(s.ModifiedByID),
	).Scan(&s.ID)
	if err != nil {
		return err
	}
	s.Store = r.Origin()
	return nil
}

// Update persists every column of s.
func (r *PostgresRepository) Update(ctx context.Context, s *domain.Site) error {
	q, err := r.writeConn(ctx, s.Store)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE sites SET name=$2, organization_id=$3, type=$4, address=$5, active=$6, updated_at=$7,
			modified_by_id=$8
		WHERE id=$1`,
		s.ID, s.Name, s.OrganizationID, nullString(s.Type), nullString(s.Address), s.Active,
		s.UpdatedAt, nullID(s.ModifiedByID),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	s.Store = r.Origin()
	return nil
}

// Delete removes the site. Missing rows are not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	q, err := r.writeConn(ctx, "")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id)
	return err
}

// FindRecord adapts GetByID for the reference resolver.
func (r *PostgresRepository) FindRecord(ctx context.Context, id int64) (reference.Record, error) {
	s, err := r.GetByID(ctx, id)
	if err != nil || s == nil {
		return nil, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanSite(row rowScanner) (*domain.Site, error) {
	var s domain.Site
	var typ, address sql.NullString
	var createdBy, modifiedBy sql.NullInt64
	if err := row.Scan(&s.ID, &s.Name, &s.OrganizationID, &typ, &address, &s.Active, &s.CreatedAt,
		&createdBy, &s.UpdatedAt, &modifiedBy); err != nil {
		return nil, err
	}
	s.Type, s.Address = typ.String, address.String
	s.CreatedByID, s.ModifiedByID = createdBy.Int64, modifiedBy.Int64
	s.Store = r.Origin()
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}
