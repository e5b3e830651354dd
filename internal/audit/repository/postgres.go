package repository

import (
	"context"
	"database/sql"
	"errors"

	"gwiit/backend/internal/audit/domain"
	"gwiit/backend/internal/db"
	"gwiit/backend/internal/routing"
)

const auditColumns = `id, actor_id, action, domain, record_id, metadata, created_at`

type PostgresRepository struct {
	stores routing.Locator
}

// NewPostgresRepository returns an audit log repository writing to the store the default
// domain routes to.
func NewPostgresRepository(stores routing.Locator) *PostgresRepository {
	return &PostgresRepository{stores: stores}
}

func (r *PostgresRepository) conn(ctx context.Context) (db.Querier, error) {
	h, err := r.stores.DB(ctx, routing.DomainDefault)
	if err != nil {
		return nil, err
	}
	return db.Conn(ctx, h), nil
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	a, err := scanAuditLog(q.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ListByRecord returns audit logs for one record, newest first, paginated by limit and offset.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByRecord(ctx context.Context, recordDomain string, recordID int64, limit, offset int32) ([]*domain.AuditLog, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT `+auditColumns+` FROM audit_logs
		WHERE domain = $1 AND record_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		recordDomain, recordID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	q, err := db.WriteConn(ctx, r.stores, routing.DomainDefault, "")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO audit_logs (`+auditColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, sql.NullInt64{Int64: a.ActorID, Valid: a.ActorID > 0}, a.Action, a.Domain,
		sql.NullInt64{Int64: a.RecordID, Valid: a.RecordID > 0},
		sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}, a.CreatedAt)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(s scanner) (*domain.AuditLog, error) {
	var (
		a               domain.AuditLog
		actor, recordID sql.NullInt64
		meta            sql.NullString
	)
	if err := s.Scan(&a.ID, &actor, &a.Action, &a.Domain, &recordID, &meta, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ActorID, a.RecordID, a.Metadata = actor.Int64, recordID.Int64, meta.String
	return &a, nil
}
