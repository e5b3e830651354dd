package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gwiit/backend/internal/routing"
)

// ErrStoreNotConfigured is returned when a domain routes to a store that has no open handle.
var ErrStoreNotConfigured = errors.New("db: store not configured")

// Open opens a Postgres connection using the given DSN. Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: empty DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Stores holds one *sql.DB per physical store and resolves domains to handles through a
// routing table. It implements routing.Locator.
type Stores struct {
	table *routing.Table
	dbs   map[routing.Store]*sql.DB
}

var _ routing.Locator = (*Stores)(nil)

// NewStores wraps already opened handles. Handles for stores the table does not manage are ignored.
func NewStores(table *routing.Table, dbs map[routing.Store]*sql.DB) *Stores {
	s := &Stores{table: table, dbs: make(map[routing.Store]*sql.DB, len(dbs))}
	for name, db := range dbs {
		if db != nil && table.Managed(name) {
			s.dbs[name] = db
		}
	}
	return s
}

// OpenStores opens every store that has a non-empty DSN. Stores without a DSN stay unconfigured
// and DB returns ErrStoreNotConfigured for domains routed to them. On failure all handles
// opened so far are closed.
func OpenStores(table *routing.Table, dsns map[routing.Store]string) (*Stores, error) {
	dbs := make(map[routing.Store]*sql.DB, len(dsns))
	for _, name := range table.Stores() {
		dsn := strings.TrimSpace(dsns[name])
		if dsn == "" {
			continue
		}
		db, err := Open(dsn)
		if err != nil {
			for _, opened := range dbs {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		dbs[name] = db
	}
	return NewStores(table, dbs), nil
}

// Table returns the routing table the stores resolve through.
func (s *Stores) Table() *routing.Table { return s.table }

// DB returns the handle for the store reads of d are routed to.
func (s *Stores) DB(_ context.Context, d routing.Domain) (*sql.DB, error) {
	return s.routed(d, s.table.DBForRead(d))
}

// DBForWrite returns the handle for the store writes of d are routed to.
func (s *Stores) DBForWrite(_ context.Context, d routing.Domain) (*sql.DB, error) {
	return s.routed(d, s.table.DBForWrite(d))
}

func (s *Stores) routed(d routing.Domain, name routing.Store) (*sql.DB, error) {
	db, ok := s.dbs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (domain %s)", ErrStoreNotConfigured, name, d)
	}
	return db, nil
}

// Handle returns the handle for a store by name.
func (s *Stores) Handle(name routing.Store) (*sql.DB, bool) {
	db, ok := s.dbs[name]
	return db, ok
}

// Configured returns the names of stores with an open handle, in name order.
func (s *Stores) Configured() []routing.Store {
	out := make([]routing.Store, 0, len(s.dbs))
	for name := range s.dbs {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ping checks a single store.
func (s *Stores) Ping(ctx context.Context, name routing.Store) error {
	db, ok := s.dbs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStoreNotConfigured, name)
	}
	return db.PingContext(ctx)
}

// Close closes every handle and returns the joined errors.
func (s *Stores) Close() error {
	var errs []error
	for name, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
