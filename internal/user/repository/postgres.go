package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gwiit/backend/internal/db"
	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/user/domain"
)

const userColumns = `id, email, username, badge_barcode, badge_rfid, password_hash, first_name, last_name,
	phone_number, organization_id, site_id, mfa_preference, static_code_hashes, is_active, is_staff,
	is_superuser, last_login, date_joined, created_at, created_by_id, updated_at, modified_by_id`

// uniqueIndexField maps the partial unique indexes on users to the identifier they guard.
var uniqueIndexField = map[string]string{
	"users_active_email_key":         domain.FieldEmail,
	"users_active_username_key":      domain.FieldUsername,
	"users_active_badge_barcode_key": domain.FieldBadgeBarcode,
	"users_active_badge_rfid_key":    domain.FieldBadgeRFID,
}

var ErrNoTransaction = errors.New("user repository: identifier locks require a transaction")

type PostgresRepository struct {
	stores routing.Locator
}

// NewPostgresRepository returns a user repository that resolves its store through stores.
func NewPostgresRepository(stores routing.Locator) *PostgresRepository {
	return &PostgresRepository{stores: stores}
}

func (r *PostgresRepository) handle(ctx context.Context) (*sql.DB, error) {
	return r.stores.DB(ctx, routing.DomainIdentity)
}

func (r *PostgresRepository) conn(ctx context.Context) (db.Querier, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return nil, err
	}
	return db.Conn(ctx, h), nil
}

func (r *PostgresRepository) writeConn(ctx context.Context, placed routing.Store) (db.Querier, error) {
	return db.WriteConn(ctx, r.stores, routing.DomainIdentity, placed)
}

func (r *PostgresRepository) origin() routing.Store {
	return r.stores.Table().Route(routing.DomainIdentity)
}

// WithinTx runs fn inside a transaction on the identity store.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	h, err := r.handle(ctx)
	if err != nil {
		return err
	}
	return db.WithinTx(ctx, h, fn)
}

// LockIdentifiers takes a transaction-scoped advisory lock per identifier value. Keys are
// case-folded and sorted so concurrent callers acquire them in the same order.
func (r *PostgresRepository) LockIdentifiers(ctx context.Context, ids []domain.Identifier) error {
	h, err := r.handle(ctx)
	if err != nil {
		return err
	}
	tx, ok := db.TxFrom(ctx, h)
	if !ok {
		return ErrNoTransaction
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, "users:"+id.Field+":"+strings.ToLower(id.Value))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k); err != nil {
			return fmt.Errorf("lock identifier: %w", err)
		}
	}
	return nil
}

// FindActiveConflicts returns which of ids an active user other than excludeID already holds.
func (r *PostgresRepository) FindActiveConflicts(ctx context.Context, ids []domain.Identifier, excludeID int64) ([]domain.Identifier, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var want domain.Identifiers
	for _, id := range ids {
		switch id.Field {
		case domain.FieldEmail:
			want.Email = id.Value
		case domain.FieldUsername:
			want.Username = id.Value
		case domain.FieldBadgeBarcode:
			want.BadgeBarcode = id.Value
		case domain.FieldBadgeRFID:
			want.BadgeRFID = id.Value
		}
	}
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT email, username, badge_barcode, badge_rfid FROM users
		WHERE is_active AND id <> $1 AND (
			lower(email) = lower($2) OR lower(username) = lower($3)
			OR lower(badge_barcode) = lower($4) OR lower(badge_rfid) = lower($5))`,
		excludeID, nullString(want.Email), nullString(want.Username),
		nullString(want.BadgeBarcode), nullString(want.BadgeRFID))
	if err != nil {
		return nil, fmt.Errorf("find active conflicts: %w", err)
	}
	defer rows.Close()
	hit := make(map[string]bool)
	for rows.Next() {
		var email string
		var username, barcode, rfid sql.NullString
		if err := rows.Scan(&email, &username, &barcode, &rfid); err != nil {
			return nil, err
		}
		hit[domain.FieldEmail] = hit[domain.FieldEmail] || foldEq(want.Email, email)
		hit[domain.FieldUsername] = hit[domain.FieldUsername] || foldEq(want.Username, username.String)
		hit[domain.FieldBadgeBarcode] = hit[domain.FieldBadgeBarcode] || foldEq(want.BadgeBarcode, barcode.String)
		hit[domain.FieldBadgeRFID] = hit[domain.FieldBadgeRFID] || foldEq(want.BadgeRFID, rfid.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var out []domain.Identifier
	for _, id := range ids {
		if hit[id.Field] {
			out = append(out, id)
		}
	}
	return out, nil
}

// CountActivePrivileged locks every active privileged row for the rest of the transaction and
// returns how many there are.
func (r *PostgresRepository) CountActivePrivileged(ctx context.Context) (int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := q.QueryContext(ctx, `SELECT id FROM users WHERE is_superuser AND is_active FOR UPDATE`)
	if err != nil {
		return 0, fmt.Errorf("count privileged: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	u, err := r.scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// FindActiveByIdentifier returns active users whose email, username or badge values equal
// identifier ignoring case. At most two rows are read; callers only need to tell one from many.
func (r *PostgresRepository) FindActiveByIdentifier(ctx context.Context, identifier string) ([]*domain.User, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT `+userColumns+` FROM users
		WHERE is_active AND (lower(email) = lower($1) OR lower(username) = lower($1)
			OR lower(badge_barcode) = lower($1) OR lower(badge_rfid) = lower($1))
		ORDER BY id LIMIT 2`, identifier)
	if err != nil {
		return nil, fmt.Errorf("find by identifier: %w", err)
	}
	return r.collect(rows)
}

// Create inserts u and sets its ID. Unique index violations become *domain.ConflictError.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	q, err := r.writeConn(ctx, u.Store)
	if err != nil {
		return err
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO users (email, username, badge_barcode, badge_rfid, password_hash, first_name,
			last_name, phone_number, organization_id, site_id, mfa_preference, static_code_hashes,
			is_active, is_staff, is_superuser, last_login, date_joined, created_at, created_by_id,
			updated_at, modified_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING id`,
		u.Email, nullString(u.Username), nullString(u.BadgeBarcode), nullString(u.BadgeRFID),
		u.PasswordHash, nullString(u.FirstName), nullString(u.LastName), nullString(u.Phone),
		nullID(u.OrganizationID), nullID(u.SiteID), string(u.MFAPreference), joinHashes(u.StaticCodeHashes),
		u.Active, u.Staff, u.Superuser, u.LastLogin, u.DateJoined, u.CreatedAt, nullID(u.CreatedByID),
		u.UpdatedAt, nullID(u.ModifiedByID),
	).Scan(&u.ID)
	if err != nil {
		return mapWriteError(err, u)
	}
	u.Store = r.origin()
	return nil
}

// Update persists every column of u.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	q, err := r.writeConn(ctx, u.Store)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE users SET email=$2, username=$3, badge_barcode=$4, badge_rfid=$5, password_hash=$6,
			first_name=$7, last_name=$8, phone_number=$9, organization_id=$10, site_id=$11,
			mfa_preference=$12, static_code_hashes=$13, is_active=$14, is_staff=$15, is_superuser=$16,
			last_login=$17, updated_at=$18, modified_by_id=$19
		WHERE id=$1`,
		u.ID, u.Email, nullString(u.Username), nullString(u.BadgeBarcode), nullString(u.BadgeRFID),
		u.PasswordHash, nullString(u.FirstName), nullString(u.LastName), nullString(u.Phone),
		nullID(u.OrganizationID), nullID(u.SiteID), string(u.MFAPreference), joinHashes(u.StaticCodeHashes),
		u.Active, u.Staff, u.Superuser, u.LastLogin, u.UpdatedAt, nullID(u.ModifiedByID),
	)
	if err != nil {
		return mapWriteError(err, u)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	u.Store = r.origin()
	return nil
}

// SetLastLogin stamps the last successful login.
func (r *PostgresRepository) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	q, err := r.writeConn(ctx, "")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

// Delete removes the row for id. Missing rows are not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	q, err := r.writeConn(ctx, "")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

// List returns users matching f ordered by id.
func (r *PostgresRepository) List(ctx context.Context, f domain.Filter) ([]*domain.User, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Active != nil {
		add("is_active = $%d", *f.Active)
	}
	if f.Staff != nil {
		add("is_staff = $%d", *f.Staff)
	}
	if f.Superuser != nil {
		add("is_superuser = $%d", *f.Superuser)
	}
	if f.OrganizationID != 0 {
		add("organization_id = $%d", f.OrganizationID)
	}
	if f.SiteID != 0 {
		add("site_id = $%d", f.SiteID)
	}
	if f.MFAPreference != "" {
		add("mfa_preference = $%d", string(f.MFAPreference))
	}
	if !f.JoinedSince.IsZero() {
		add("date_joined >= $%d", f.JoinedSince)
	}
	if f.CreatedByID != 0 {
		add("created_by_id = $%d", f.CreatedByID)
	}
	if f.ModifiedByID != 0 {
		add("modified_by_id = $%d", f.ModifiedByID)
	}
	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return r.collect(rows)
}

// CountByOrganization counts users of any state referencing orgID.
func (r *PostgresRepository) CountByOrganization(ctx context.Context, orgID int64) (int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = q.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE organization_id = $1`, orgID).Scan(&n)
	return n, err
}

// FindRecord lets the reference resolver dereference identity ids.
func (r *PostgresRepository) FindRecord(ctx context.Context, id int64) (reference.Record, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                                                 domain.User
		username, barcode, rfid, first, last, phone, hash sql.NullString
		orgID, siteID, createdBy, modifiedBy              sql.NullInt64
		mfa                                               string
		lastLogin                                         sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &username, &barcode, &rfid, &u.PasswordHash, &first, &last,
		&phone, &orgID, &siteID, &mfa, &hash, &u.Active, &u.Staff, &u.Superuser, &lastLogin,
		&u.DateJoined, &u.CreatedAt, &createdBy, &u.UpdatedAt, &modifiedBy)
	if err != nil {
		return nil, err
	}
	u.Username, u.BadgeBarcode, u.BadgeRFID = username.String, barcode.String, rfid.String
	u.FirstName, u.LastName, u.Phone = first.String, last.String, phone.String
	u.OrganizationID, u.SiteID = orgID.Int64, siteID.Int64
	u.CreatedByID, u.ModifiedByID = createdBy.Int64, modifiedBy.Int64
	u.MFAPreference = domain.MFAPreference(mfa)
	u.StaticCodeHashes = splitHashes(hash.String)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	u.Store = r.origin()
	return &u, nil
}

func (r *PostgresRepository) collect(rows *sql.Rows) ([]*domain.User, error) {
	defer rows.Close()
	var out []*domain.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// mapWriteError turns a unique index or check violation into the domain error it represents.
func mapWriteError(err error, u *domain.User) error {
	if constraint, ok := db.UniqueViolation(err); ok {
		if field, known := uniqueIndexField[constraint]; known {
			return &domain.ConflictError{Field: field, Value: fieldValue(u, field)}
		}
	}
	if constraint, ok := db.CheckViolation(err); ok {
		if mapped, known := checkConstraintErr[constraint]; known {
			return mapped
		}
	}
	return err
}

var checkConstraintErr = map[string]error{
	"users_login_identifier_present": domain.ErrIdentifierRequired,
	"users_privileged_active_staff":  domain.ErrPrivilegedFlags,
	"users_mfa_preference_valid":     &domain.ValidationError{Field: "mfa_preference", Reason: "unknown preference"},
}

func fieldValue(u *domain.User, field string) string {
	for _, id := range u.Identifiers().Set() {
		if id.Field == field {
			return id.Value
		}
	}
	return ""
}

func foldEq(want, have string) bool {
	return want != "" && domain.SameIdentifier(want, have)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func joinHashes(h []string) sql.NullString {
	return nullString(strings.Join(h, ","))
}

func splitHashes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
