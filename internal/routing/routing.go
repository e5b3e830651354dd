// Package routing maps functional domains to the physical store that owns them.
//
// A Table is built once at process start and never mutated afterwards; every component that
// needs to reach a store receives the same *Table by reference.
package routing

import (
	"errors"
	"fmt"
	"sort"
)

// Domain identifies a functional area of data. It is used only for routing and never persisted.
type Domain string

const (
	DomainIdentity       Domain = "identity"
	DomainOrganization   Domain = "organization"
	DomainSite           Domain = "site"
	DomainAuthentication Domain = "authentication"
	DomainAuthorization  Domain = "authorization"
	DomainDefault        Domain = "default"
)

// Store names a physical database.
type Store string

const (
	StoreUsers         Store = "users_db"
	StoreOrganizations Store = "organizations_db"
	StoreSites         Store = "sites_db"
	StoreAuth          Store = "auth_db"
	StoreAuthorization Store = "authorization_db"
	StoreDefault       Store = "default"
)

// ErrWrongStore is returned by CheckWrite when a record of a known domain would be written to a
// store other than the one the domain is routed to.
var ErrWrongStore = errors.New("routing: write targets the wrong store")

// DefaultRoutes is the production mapping of domains to stores.
func DefaultRoutes() map[Domain]Store {
	return map[Domain]Store{
		DomainIdentity:       StoreUsers,
		DomainOrganization:   StoreOrganizations,
		DomainSite:           StoreSites,
		DomainAuthentication: StoreAuth,
		DomainAuthorization:  StoreAuthorization,
		DomainDefault:        StoreDefault,
	}
}

// Table is an immutable domain → store mapping.
type Table struct {
	routes       map[Domain]Store
	defaultStore Store
	shared       map[Domain]struct{}
	stores       []Store
}

// Option configures a Table at construction.
type Option func(*Table)

// WithDefaultStore sets the fallback store for unknown domains (StoreDefault if unset).
func WithDefaultStore(s Store) Option {
	return func(t *Table) { t.defaultStore = s }
}

// WithShared marks system domains whose schema may be materialized in every managed store.
func WithShared(domains ...Domain) Option {
	return func(t *Table) {
		for _, d := range domains {
			t.shared[d] = struct{}{}
		}
	}
}

// NewTable copies routes into a new immutable Table. It returns an error for empty store names.
func NewTable(routes map[Domain]Store, opts ...Option) (*Table, error) {
	t := &Table{
		routes:       make(map[Domain]Store, len(routes)),
		defaultStore: StoreDefault,
		shared:       make(map[Domain]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.defaultStore == "" {
		return nil, errors.New("routing: default store must be set")
	}
	seen := map[Store]struct{}{t.defaultStore: {}}
	t.stores = append(t.stores, t.defaultStore)
	for d, s := range routes {
		if d == "" || s == "" {
			return nil, fmt.Errorf("routing: invalid route %q -> %q", d, s)
		}
		t.routes[d] = s
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			t.stores = append(t.stores, s)
		}
	}
	sort.Slice(t.stores, func(i, j int) bool { return t.stores[i] < t.stores[j] })
	return t, nil
}

// MustDefault returns a Table over DefaultRoutes. Intended for tests and tools.
func MustDefault(opts ...Option) *Table {
	t, err := NewTable(DefaultRoutes(), opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Route returns the store for d, falling back to the default store for unknown domains.
func (t *Table) Route(d Domain) Store {
	if s, ok := t.routes[d]; ok {
		return s
	}
	return t.defaultStore
}

// DBForRead returns the store reads of d must use.
func (t *Table) DBForRead(d Domain) Store { return t.Route(d) }

// DBForWrite returns the store writes of d must use. Reads and writes share a store.
func (t *Table) DBForWrite(d Domain) Store { return t.DBForRead(d) }

// CheckWrite rejects writing a record of a known domain into any store but its own.
// Unknown domains may be written to the default store only.
func (t *Table) CheckWrite(d Domain, s Store) error {
	if want := t.Route(d); want != s {
		return fmt.Errorf("%w: %s belongs to %s, not %s", ErrWrongStore, d, want, s)
	}
	return nil
}

// Known reports whether d has an explicit route.
func (t *Table) Known(d Domain) bool {
	_, ok := t.routes[d]
	return ok
}

// Managed reports whether s is one of the stores the table routes to.
func (t *Table) Managed(s Store) bool {
	for _, m := range t.stores {
		if m == s {
			return true
		}
	}
	return false
}

// IsShared reports whether d is a shared system domain.
func (t *Table) IsShared(d Domain) bool {
	_, ok := t.shared[d]
	return ok
}

// Default returns the fallback store.
func (t *Table) Default() Store { return t.defaultStore }

// Stores returns the managed stores in name order. The slice is a copy.
func (t *Table) Stores() []Store {
	return append([]Store(nil), t.stores...)
}

// Domains returns the explicitly routed domains in name order.
func (t *Table) Domains() []Domain {
	out := make([]Domain, 0, len(t.routes))
	for d := range t.routes {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Routes returns a copy of the domain → store mapping.
func (t *Table) Routes() map[Domain]Store {
	out := make(map[Domain]Store, len(t.routes))
	for d, s := range t.routes {
		out[d] = s
	}
	return out
}

// Shared returns the shared system domains in name order.
func (t *Table) Shared() []Domain {
	out := make([]Domain, 0, len(t.shared))
	for d := range t.shared {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
