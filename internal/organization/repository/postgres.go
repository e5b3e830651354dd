package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gwiit/backend/internal/db"
	"gwiit/backend/internal/organization/domain"
	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
)

const orgColumns = `id, name, description, classification_id, active, login_policy, mfa_required,
	created_at, created_by_id, updated_at, modified_by_id`

const contactColumns = `id, organization_id, first_name, last_name, email, phone_number, address, role,
	created_at, created_by_id, updated_at, modified_by_id`

type PostgresRepository struct {
	stores routing.Locator
}

// NewPostgresRepository returns an organization repository that resolves its store through stores.
func NewPostgresRepository(stores routing.Locator) *PostgresRepository {
	return &PostgresRepository{stores: stores}
}

func (r *PostgresRepository) conn(ctx context.Context) (db.Querier, error) {
	h, err := r.stores.DB(ctx, routing.DomainOrganization)
	if err != nil {
		return nil, err
	}
	return db.Conn(ctx, h), nil
}

func (r *PostgresRepository) writeConn(ctx context.Context, placed routing.Store) (db.Querier, error) {
	return db.WriteConn(ctx, r.stores, routing.DomainOrganization, placed)
}

func (r *PostgresRepository) origin() routing.Store {
	return r.stores.Table().Route(routing.DomainOrganization)
}

// GetByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.Organization, error) {
	return r.getOne(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
}

// GetByName returns the organization named name, or nil if there is none.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	return r.getOne(ctx, `SELECT `+orgColumns+` FROM organizations WHERE name = $1`, name)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*domain.Organization, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	o, err := r.scanOrg(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// List returns organizations ordered by name.
func (r *PostgresRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Organization, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT `+orgColumns+` FROM organizations
		WHERE active OR NOT $1 ORDER BY name`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	var out []*domain.Organization
	for rows.Next() {
		o, err := r.scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Create inserts o and sets its ID. A duplicate name returns domain.ErrNameTaken.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Organization) error {
	q, err := r.writeConn(ctx, o.Store)
	if err != nil {
		return err
	}
	policy, err := encodePolicy(o.LoginPolicy)
	if err != nil {
		return err
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO organizations (name, description, classification_id, active, login_policy,
			mfa_required, created_at, created_by_id, updated_at, modified_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		o.Name, nullString(o.Description), nullID(o.ClassificationID), o.Active, policy,
		o.MFARequired, o.CreatedAt, nullID(o.CreatedByID), o.UpdatedAt, nullID(o.ModifiedByID),
	).Scan(&o.ID)
	if err != nil {
		return mapWriteError(err)
	}
	o.Store = r.origin()
	return nil
}

// Update persists every column of o.
func (r *PostgresRepository) Update(ctx context.Context, o *domain.Organization) error {
	q, err := r.writeConn(ctx, o.Store)
	if err != nil {
		return err
	}
	policy, err := encodePolicy(o.LoginPolicy)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE organizations SET name=$2, description=$3, classification_id=$4, active=$5,
			login_policy=$6, mfa_required=$7, updated_at=$8, modified_by_id=$9
		WHERE id=$1`,
		o.ID, o.Name, nullString(o.Description), nullID(o.ClassificationID), o.Active, policy,
		o.MFARequired, o.UpdatedAt, nullID(o.ModifiedByID),
	)
	if err != nil {
		return mapWriteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	o.Store = r.origin()
	return nil
}

// Delete removes the organization. Missing rows are not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	q, err := r.writeConn(ctx, "")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	return err
}

// CreateContact inserts c and sets its ID.
func (r *PostgresRepository) CreateContact(ctx context.Context, c *domain.Contact) error {
	q, err := r.writeConn(ctx, "")
	if err != nil {
		return err
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO contacts (organization_id, first_name, last_name, email, phone_number, address,
			role, created_at, created_by_id, updated_at, modified_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		nullID(c.OrganizationID), nullString(c.FirstName), nullString(c.LastName), nullString(c.Email),
		nullString(c.Phone), nullString(c.Address), nullString(c.Role), c.CreatedAt, nullID(c.CreatedByID),
		c.UpdatedAt, nullID(c.ModifiedByID),
	).Scan(&c.ID)
	if db.ForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return err
}

// ListContacts returns the contacts of an organization ordered by id.
func (r *PostgresRepository) ListContacts(ctx context.Context, orgID int64) ([]*domain.Contact, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE organization_id = $1 ORDER BY id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()
	var out []*domain.Contact
	for rows.Next() {
		var c domain.Contact
		var org, createdBy, modifiedBy sql.NullInt64
		var first, last, email, phone, address, role sql.NullString
		if err := rows.Scan(&c.ID, &org, &first, &last, &email, &phone, &address, &role,
			&c.CreatedAt, &createdBy, &c.UpdatedAt, &modifiedBy); err != nil {
			return nil, err
		}
		c.OrganizationID, c.CreatedByID, c.ModifiedByID = org.Int64, createdBy.Int64, modifiedBy.Int64
		c.FirstName, c.LastName, c.Email = first.String, last.String, email.String
		c.Phone, c.Address, c.Role = phone.String, address.String, role.String
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CountContacts counts contacts attached to orgID.
func (r *PostgresRepository) CountContacts(ctx context.Context, orgID int64) (int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = q.QueryRowContext(ctx, `SELECT count(*) FROM contacts WHERE organization_id = $1`, orgID).Scan(&n)
	return n, err
}

// FindRecord adapts GetByID for the reference resolver.
func (r *PostgresRepository) FindRecord(ctx context.Context, id int64) (reference.Record, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil || o == nil {
		return nil, err
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOrg(row rowScanner) (*domain.Organization, error) {
	var o domain.Organization
	var description sql.NullString
	var classification, createdBy, modifiedBy sql.NullInt64
	var policy []byte
	if err := row.Scan(&o.ID, &o.Name, &description, &classification, &o.Active, &policy,
		&o.MFARequired, &o.CreatedAt, &createdBy, &o.UpdatedAt, &modifiedBy); err != nil {
		return nil, err
	}
	o.Description = description.String
	o.ClassificationID, o.CreatedByID, o.ModifiedByID = classification.Int64, createdBy.Int64, modifiedBy.Int64
	lp, err := decodePolicy(policy)
	if err != nil {
		return nil, fmt.Errorf("organization %d: %w", o.ID, err)
	}
	o.LoginPolicy = lp
	o.Store = r.origin()
	return &o, nil
}

func encodePolicy(p *domain.LoginPolicy) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode login policy: %w", err)
	}
	return b, nil
}

func decodePolicy(b []byte) (*domain.LoginPolicy, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var p domain.LoginPolicy
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode login policy: %w", err)
	}
	return &p, nil
}

func mapWriteError(err error) error {
	if constraint, ok := db.UniqueViolation(err); ok && constraint == "organizations_name_key" {
		return domain.ErrNameTaken
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}
