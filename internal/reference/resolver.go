package reference

import (
	"context"
	"fmt"

	"gwiit/backend/internal/routing"
)

// Binding attaches a Finder to a domain.
type Binding struct {
	Domain routing.Domain
	Finder Finder
}

// Bind returns a Binding of f to d.
func Bind(d routing.Domain, f Finder) Binding { return Binding{Domain: d, Finder: f} }

type resolveOptions struct {
	activeOnly bool
}

// ResolveOption adjusts a single resolution.
type ResolveOption func(*resolveOptions)

// ActiveOnly treats inactive targets as absent.
func ActiveOnly() ResolveOption {
	return func(o *resolveOptions) { o.activeOnly = true }
}

// Resolver dereferences Refs. Finders are bound at construction, so the resolver never imports
// the domain packages it resolves into. There is no cache: every call is a fresh lookup.
type Resolver struct {
	finders map[routing.Domain]Finder
	gate    Gate
}

// NewResolver returns a Resolver with the given bindings. gate may be nil, in which case Follow
// behaves like Resolve.
func NewResolver(gate Gate, bindings ...Binding) *Resolver {
	r := &Resolver{finders: make(map[routing.Domain]Finder, len(bindings)), gate: gate}
	for _, b := range bindings {
		if b.Finder != nil {
			r.finders[b.Domain] = b.Finder
		}
	}
	return r
}

// Resolve looks ref up. A zero or dangling reference yields found=false and no error; err is
// reserved for store failures and unbound domains.
func (r *Resolver) Resolve(ctx context.Context, ref Ref, opts ...ResolveOption) (Record, bool, error) {
	f, ok := r.finders[ref.Domain]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownDomain, ref.Domain)
	}
	if ref.IsZero() {
		return nil, false, nil
	}
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}
	rec, err := f.FindRecord(ctx, ref.ID)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", ref, err)
	}
	if rec == nil {
		return nil, false, nil
	}
	if o.activeOnly && !rec.IsActive() {
		return nil, false, nil
	}
	return rec, true, nil
}

// ResolveID is Resolve for a bare domain and id.
func (r *Resolver) ResolveID(ctx context.Context, d routing.Domain, id int64, opts ...ResolveOption) (Record, bool, error) {
	return r.Resolve(ctx, To(d, id), opts...)
}

// Follow resolves ref on behalf of from and refuses with ErrRelationDenied when the relation gate
// does not allow associating the two records.
func (r *Resolver) Follow(ctx context.Context, from routing.Placed, ref Ref, opts ...ResolveOption) (Record, bool, error) {
	rec, found, err := r.Resolve(ctx, ref, opts...)
	if err != nil || !found {
		return rec, found, err
	}
	if r.gate != nil && from != nil && !r.gate.AllowRelation(ctx, from, rec) {
		return nil, false, fmt.Errorf("%w: %s -> %s", ErrRelationDenied, from.Origin(), rec.Origin())
	}
	return rec, true, nil
}

// As narrows a resolution result to a concrete record type. A record of another type is
// reported as not found.
func As[T Record](rec Record, found bool, err error) (T, bool, error) {
	var zero T
	if err != nil || !found {
		return zero, false, err
	}
	t, ok := rec.(T)
	if !ok {
		return zero, false, nil
	}
	return t, true, nil
}

// Display renders a resolution for humans, using placeholder when the target is absent.
func Display(rec Record, found bool, placeholder string) string {
	if !found || rec == nil {
		return placeholder
	}
	return rec.DisplayName()
}
