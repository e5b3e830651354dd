package routing

import (
	"context"
	"database/sql"
)

// Placed is implemented by records that know which store they were loaded from or written to.
type Placed interface {
	Origin() Store
}

// Locator hands out the database handle for a domain. Implementations must resolve the store
// through a Table so no query is issued against an unrouted handle.
type Locator interface {
	// DB returns the handle reads of d use.
	DB(ctx context.Context, d Domain) (*sql.DB, error)
	// DBForWrite returns the handle writes of d use.
	DBForWrite(ctx context.Context, d Domain) (*sql.DB, error)
	Table() *Table
}
