package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_RouteKnownDomains(t *testing.T) {
	tbl := MustDefault()
	cases := map[Domain]Store{
		DomainIdentity:       StoreUsers,
		DomainOrganization:   StoreOrganizations,
		DomainSite:           StoreSites,
		DomainAuthentication: StoreAuth,
		DomainAuthorization:  StoreAuthorization,
		DomainDefault:        StoreDefault,
	}
	for d, want := range cases {
		assert.Equal(t, want, tbl.Route(d), "route %s", d)
		assert.Equal(t, tbl.DBForRead(d), tbl.DBForWrite(d), "read/write split for %s", d)
	}
}

func TestTable_RouteIsStable(t *testing.T) {
	tbl := MustDefault()
	first := tbl.Route(DomainIdentity)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, tbl.Route(DomainIdentity))
	}
}

func TestTable_UnknownFallsBackToDefault(t *testing.T) {
	tbl := MustDefault()
	assert.Equal(t, StoreDefault, tbl.Route("contenttypes"))
	assert.False(t, tbl.Known("contenttypes"))

	custom, err := NewTable(DefaultRoutes(), WithDefaultStore("system_db"))
	require.NoError(t, err)
	assert.Equal(t, Store("system_db"), custom.Route("contenttypes"))
}

func TestTable_CheckWrite(t *testing.T) {
	tbl := MustDefault()
	require.NoError(t, tbl.CheckWrite(DomainIdentity, StoreUsers))

	err := tbl.CheckWrite(DomainIdentity, StoreSites)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrongStore))

	require.NoError(t, tbl.CheckWrite("contenttypes", StoreDefault))
	assert.ErrorIs(t, tbl.CheckWrite("contenttypes", StoreUsers), ErrWrongStore)
}

func TestTable_IsImmutable(t *testing.T) {
	routes := DefaultRoutes()
	tbl, err := NewTable(routes)
	require.NoError(t, err)

	routes[DomainIdentity] = StoreSites
	assert.Equal(t, StoreUsers, tbl.Route(DomainIdentity))

	copied := tbl.Routes()
	copied[DomainIdentity] = StoreSites
	assert.Equal(t, StoreUsers, tbl.Route(DomainIdentity))

	stores := tbl.Stores()
	stores[0] = "mutated"
	assert.NotContains(t, tbl.Stores(), Store("mutated"))
}

func TestTable_StoresAndShared(t *testing.T) {
	tbl := MustDefault(WithShared(DomainDefault))
	assert.ElementsMatch(t, []Store{StoreUsers, StoreOrganizations, StoreSites, StoreAuth, StoreAuthorization, StoreDefault}, tbl.Stores())
	assert.True(t, tbl.Managed(StoreSites))
	assert.False(t, tbl.Managed("legacy_db"))
	assert.True(t, tbl.IsShared(DomainDefault))
	assert.Equal(t, []Domain{DomainDefault}, tbl.Shared())
}

func TestNewTable_RejectsEmptyRoute(t *testing.T) {
	_, err := NewTable(map[Domain]Store{DomainIdentity: ""})
	require.Error(t, err)

	_, err = NewTable(nil, WithDefaultStore(""))
	require.Error(t, err)
}
