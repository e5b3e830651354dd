package service

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/site/domain"
)

type memSiteRepo struct {
	mu     sync.Mutex
	sites  map[int64]*domain.Site
	nextID int64
	writes int
}

func newMemSiteRepo() *memSiteRepo { return &memSiteRepo{sites: make(map[int64]*domain.Site)} }

func (r *memSiteRepo) Origin() routing.Store { return routing.StoreSites }

func (r *memSiteRepo) GetByID(_ context.Context, id int64) (*domain.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sites[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *memSiteRepo) ListByOrganization(_ context.Context, orgID int64) ([]*domain.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Site
	for _, s := range r.sites {
		if s.OrganizationID == orgID {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memSiteRepo) Create(_ context.Context, s *domain.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.nextID++
	s.ID = r.nextID
	c := *s
	r.sites[s.ID] = &c
	return nil
}

func (r *memSiteRepo) Update(_ context.Context, s *domain.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	c := *s
	r.sites[s.ID] = &c
	return nil
}

func (r *memSiteRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sites, id)
	return nil
}

type orgRecord struct {
	id    int64
	store routing.Store
}

func (o orgRecord) Origin() routing.Store { return o.store }
func (o orgRecord) RecordID() int64       { return o.id }
func (o orgRecord) DisplayName() string   { return "Acme" }
func (o orgRecord) IsActive() bool        { return true }

// managedGate allows relations between records in the listed stores.
type managedGate map[routing.Store]bool

func (g managedGate) AllowRelation(_ context.Context, a, b routing.Placed) bool {
	return g[a.Origin()] && g[b.Origin()]
}

func newResolver(orgs map[int64]routing.Store, gate reference.Gate) *reference.Resolver {
	return reference.NewResolver(gate, reference.Bind(routing.DomainOrganization,
		reference.FinderFunc(func(_ context.Context, id int64) (reference.Record, error) {
			store, ok := orgs[id]
			if !ok {
				return nil, nil
			}
			return orgRecord{id: id, store: store}, nil
		})))
}

var managed = managedGate{routing.StoreSites: true, routing.StoreOrganizations: true}

func TestCreate_ReferenceNotValidatedByDefault(t *testing.T) {
	repo := newMemSiteRepo()
	log, _ := test.NewNullLogger()
	svc := NewService(repo, newResolver(nil, managed), nil, log, Config{})

	s, err := svc.Create(context.Background(), CreateInput{Name: " HQ ", OrganizationID: 999})
	require.NoError(t, err)
	assert.Equal(t, "HQ", s.Name)
	assert.Equal(t, int64(999), s.OrganizationID)
	assert.Equal(t, routing.StoreSites, s.Origin())

	_, found, err := svc.Organization(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMemSiteRepo(), nil, nil, nil, Config{})
	_, err := svc.Create(context.Background(), CreateInput{OrganizationID: 1})
	assert.ErrorIs(t, err, domain.ErrNameRequired)
	_, err = svc.Create(context.Background(), CreateInput{Name: "HQ"})
	assert.ErrorIs(t, err, domain.ErrOrganizationRequired)
}

func TestCreate_Strict(t *testing.T) {
	orgs := map[int64]routing.Store{1: routing.StoreOrganizations, 2: routing.Store("legacy_db")}
	repo := newMemSiteRepo()
	svc := NewService(repo, newResolver(orgs, managed), nil, nil, Config{StrictReferences: true})
	ctx := context.Background()

	s, err := svc.Create(ctx, CreateInput{Name: "HQ", OrganizationID: 1})
	require.NoError(t, err)
	org, found, err := svc.Organization(ctx, s)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), org.RecordID())

	_, err = svc.Create(ctx, CreateInput{Name: "Annex", OrganizationID: 404})
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)

	_, err = svc.Create(ctx, CreateInput{Name: "Annex", OrganizationID: 2})
	assert.ErrorIs(t, err, reference.ErrRelationDenied)

	assert.Equal(t, 1, repo.writes, "refused writes never reach the store")
}

func TestUpdate_StrictChecksNewOrganization(t *testing.T) {
	orgs := map[int64]routing.Store{1: routing.StoreOrganizations}
	repo := newMemSiteRepo()
	svc := NewService(repo, newResolver(orgs, managed), nil, nil, Config{StrictReferences: true})
	ctx := context.Background()
	s, err := svc.Create(ctx, CreateInput{Name: "HQ", OrganizationID: 1})
	require.NoError(t, err)

	_, err = svc.Update(ctx, s.ID, Patch{OrganizationID: ptr[int64](77)})
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)

	got, err := svc.Update(ctx, s.ID, Patch{Address: ptr("1 Main St"), ModifiedByID: 3})
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", got.Address)
	assert.Equal(t, int64(3), got.ModifiedByID)

	_, err = svc.Update(ctx, 404, Patch{Name: ptr("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	svc := NewService(newMemSiteRepo(), nil, nil, nil, Config{})
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateInput{Name: "A", OrganizationID: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "B", OrganizationID: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "C", OrganizationID: 2})
	require.NoError(t, err)

	sites, err := svc.ListByOrganization(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, sites, 2)

	require.NoError(t, svc.Delete(ctx, a.ID, 0))
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, a.ID, 0), domain.ErrNotFound)
}

func TestStrictWithoutResolver(t *testing.T) {
	svc := NewService(newMemSiteRepo(), nil, nil, nil, Config{StrictReferences: true})
	_, err := svc.Create(context.Background(), CreateInput{Name: "HQ", OrganizationID: 1})
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
