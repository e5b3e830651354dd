// Package engine evaluates the store placement policy (which domains may be migrated into which
// store, which stores may be related) with OPA Rego.
package engine

import (
	"context"

	"gwiit/backend/internal/routing"
)

// Topology is the routing state the policy is evaluated against.
type Topology struct {
	Routes       map[routing.Domain]routing.Store
	DefaultStore routing.Store
	Shared       []routing.Domain
	Managed      []routing.Store
}

// TopologyOf snapshots a routing table.
func TopologyOf(t *routing.Table) Topology {
	return Topology{
		Routes:       t.Routes(),
		DefaultStore: t.Default(),
		Shared:       t.Shared(),
		Managed:      t.Stores(),
	}
}

// Evaluator decides placement questions.
type Evaluator interface {
	// AllowMigrate reports whether the schema of domain may exist in store.
	AllowMigrate(ctx context.Context, store routing.Store, domain routing.Domain) (bool, error)
	// AllowRelation reports whether records from stores a and b may be associated.
	AllowRelation(ctx context.Context, a, b routing.Store) (bool, error)
	// HealthCheck verifies the policy compiles and evaluates.
	HealthCheck(ctx context.Context) error
}
