package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwiit/backend/internal/db"
	"gwiit/backend/internal/db/migrate"
	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/user/domain"
)

func TestMapWriteError_UniqueIndex(t *testing.T) {
	u := &domain.User{Email: "a@b.com", Username: "Alice", BadgeRFID: "RF1"}
	err := mapWriteError(&pgconn.PgError{Code: "23505", ConstraintName: "users_active_username_key"}, u)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.FieldUsername, conflict.Field)
	assert.Equal(t, "Alice", conflict.Value)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMapWriteError_CheckConstraint(t *testing.T) {
	err := mapWriteError(&pgconn.PgError{Code: "23514", ConstraintName: "users_login_identifier_present"}, &domain.User{})
	assert.ErrorIs(t, err, domain.ErrIdentifierRequired)
	err = mapWriteError(&pgconn.PgError{Code: "23514", ConstraintName: "users_mfa_preference_valid"}, &domain.User{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMapWriteError_Passthrough(t *testing.T) {
	other := &pgconn.PgError{Code: "23505", ConstraintName: "users_pkey"}
	assert.Same(t, other, mapWriteError(other, &domain.User{}))
	plain := fmt.Errorf("boom")
	assert.Same(t, plain, mapWriteError(plain, &domain.User{}))
}

func TestFoldEq_MatchesLowerIndex(t *testing.T) {
	assert.True(t, foldEq("BADGE-1", "badge-1"))
	assert.False(t, foldEq("", ""))
	assert.False(t, foldEq("ſam", "sam"))
}

func TestHashes_RoundTrip(t *testing.T) {
	assert.Nil(t, splitHashes(""))
	assert.False(t, joinHashes(nil).Valid)
	assert.Equal(t, []string{"a", "b"}, splitHashes(joinHashes([]string{"a", "b"}).String))
}

func TestPostgres_UnconfiguredStore(t *testing.T) {
	r := NewPostgresRepository(db.NewStores(routing.MustDefault(), nil))
	err := r.LockIdentifiers(context.Background(), []domain.Identifier{{Field: domain.FieldEmail, Value: "a@b.com"}})
	assert.ErrorIs(t, err, db.ErrStoreNotConfigured)
	_, err = r.GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, db.ErrStoreNotConfigured)
}

func TestPostgres_WriteToWrongStore(t *testing.T) {
	r := NewPostgresRepository(db.NewStores(routing.MustDefault(), nil))
	ctx := context.Background()

	u := newUser("a@b.com", "alice")
	u.ID = 1
	u.Store = routing.StoreSites
	assert.ErrorIs(t, r.Update(ctx, u), routing.ErrWrongStore)
	assert.ErrorIs(t, r.Create(ctx, u), routing.ErrWrongStore)

	u.Store = routing.StoreUsers
	err := r.Update(ctx, u)
	assert.ErrorIs(t, err, db.ErrStoreNotConfigured)
	assert.NotErrorIs(t, err, routing.ErrWrongStore)
}

// newIntegrationRepo migrates the identity schema into USERS_DATABASE_URL and returns a
// repository over it. Skips when the variable is unset.
func newIntegrationRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("USERS_DATABASE_URL")
	if dsn == "" {
		t.Skip("USERS_DATABASE_URL not set")
	}
	if err := migrate.Run(dsn, routing.DomainIdentity, "up"); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("migrate: %v", err)
	}
	table := routing.MustDefault()
	stores, err := db.OpenStores(table, map[routing.Store]string{routing.StoreUsers: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })
	h, _ := stores.Handle(routing.StoreUsers)
	_, err = h.Exec(`TRUNCATE users RESTART IDENTITY`)
	require.NoError(t, err)
	return NewPostgresRepository(stores)
}

func newUser(email, username string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		Email: email, Username: username, PasswordHash: "x", MFAPreference: domain.MFANone,
		Active: true, DateJoined: now, CreatedAt: now, UpdatedAt: now,
	}
}

func TestPostgres_ActiveOnlyUniqueness(t *testing.T) {
	r := newIntegrationRepo(t)
	ctx := context.Background()

	a := newUser("x@y.com", "a1")
	require.NoError(t, r.Create(ctx, a))
	assert.Equal(t, routing.StoreUsers, a.Origin())

	err := r.Create(ctx, newUser("x@y.com", "b1"))
	assert.ErrorIs(t, err, domain.ErrConflict)

	conflicts, err := r.FindActiveConflicts(ctx, []domain.Identifier{{Field: domain.FieldEmail, Value: "X@Y.COM"}, {Field: domain.FieldUsername, Value: "zz"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.Identifier{{Field: domain.FieldEmail, Value: "X@Y.COM"}}, conflicts)

	conflicts, err = r.FindActiveConflicts(ctx, []domain.Identifier{{Field: domain.FieldEmail, Value: "x@y.com"}}, a.ID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	a.Active = false
	require.NoError(t, r.Update(ctx, a))
	b := newUser("x@y.com", "b1")
	require.NoError(t, r.Create(ctx, b))

	found, err := r.FindActiveByIdentifier(ctx, "X@y.Com")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)
}

func TestPostgres_PrivilegedCountInTx(t *testing.T) {
	r := newIntegrationRepo(t)
	ctx := context.Background()
	for _, e := range []string{"p1@x.com", "p2@x.com"} {
		u := newUser(e, e[:2])
		u.Superuser, u.Staff = true, true
		require.NoError(t, r.Create(ctx, u))
	}
	err := r.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, r.LockIdentifiers(ctx, []domain.Identifier{{Field: domain.FieldEmail, Value: "p1@x.com"}}))
		n, err := r.CountActivePrivileged(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgres_GetMissing(t *testing.T) {
	r := newIntegrationRepo(t)
	u, err := r.GetByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, u)
	rec, err := r.FindRecord(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPostgres_List(t *testing.T) {
	r := newIntegrationRepo(t)
	ctx := context.Background()
	a := newUser("a@x.com", "a")
	a.OrganizationID = 7
	require.NoError(t, r.Create(ctx, a))
	require.NoError(t, r.Create(ctx, newUser("b@x.com", "b")))

	list, err := r.List(ctx, domain.Filter{OrganizationID: 7})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a@x.com", list[0].Email)

	n, err := r.CountByOrganization(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := r.List(ctx, domain.Filter{Active: domain.Ptr(true), Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b@x.com", all[0].Email)
}
