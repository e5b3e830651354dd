// Package reference models cross-store references: an integer id standing in for a foreign key
// the storage layer cannot enforce, resolved on demand against the store that owns the target.
package reference

import (
	"context"
	"errors"
	"fmt"

	"gwiit/backend/internal/routing"
)

var (
	// ErrUnknownDomain is returned when no finder is bound for a reference's domain.
	ErrUnknownDomain = errors.New("reference: no finder bound for domain")
	// ErrRelationDenied is returned by Follow when the relation gate refuses the association.
	ErrRelationDenied = errors.New("reference: relation not allowed between stores")
)

// Ref points at a record in another store. The zero ID means "unset".
type Ref struct {
	Domain routing.Domain
	ID     int64
}

// To returns a reference to id in domain d.
func To(d routing.Domain, id int64) Ref { return Ref{Domain: d, ID: id} }

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool { return r.ID <= 0 }

func (r Ref) String() string {
	if r.IsZero() {
		return string(r.Domain) + ":<none>"
	}
	return fmt.Sprintf("%s:%d", r.Domain, r.ID)
}

// Record is what a resolution yields.
type Record interface {
	routing.Placed
	RecordID() int64
	DisplayName() string
	IsActive() bool
}

// Finder looks up a record by id in the store its domain is routed to. It returns (nil, nil)
// when the id does not exist and an error only for store failures.
type Finder interface {
	FindRecord(ctx context.Context, id int64) (Record, error)
}

// FinderFunc adapts a function to Finder.
type FinderFunc func(ctx context.Context, id int64) (Record, error)

// FindRecord calls f.
func (f FinderFunc) FindRecord(ctx context.Context, id int64) (Record, error) { return f(ctx, id) }

// Gate is the subset of the relation gate Follow needs.
type Gate interface {
	AllowRelation(ctx context.Context, a, b routing.Placed) bool
}
