// Package policy holds the relation gate: the coarse placement checks that run before a schema
// is materialized in a store or before two records from different stores are associated.
package policy

import (
	"context"

	"github.com/sirupsen/logrus"

	"gwiit/backend/internal/policy/engine"
	"gwiit/backend/internal/routing"
)

// Gate answers allow_migrate and allow_relation. It does not check that records still exist.
type Gate struct {
	table *routing.Table
	eval  engine.Evaluator
	log   logrus.FieldLogger
}

// NewGate returns a Gate over table using eval for decisions.
func NewGate(table *routing.Table, eval engine.Evaluator, log logrus.FieldLogger) *Gate {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gate{table: table, eval: eval, log: log.WithField("component", "relation_gate")}
}

// NewDefaultGate compiles the policy at policyPath (built-in policy if empty) for table.
func NewDefaultGate(ctx context.Context, table *routing.Table, policyPath string, log logrus.FieldLogger) (*Gate, error) {
	src, err := engine.LoadPolicy(policyPath)
	if err != nil {
		return nil, err
	}
	eval, err := engine.NewOPAEvaluator(ctx, src, engine.TopologyOf(table))
	if err != nil {
		return nil, err
	}
	return NewGate(table, eval, log), nil
}

// Table returns the routing table the gate was built for.
func (g *Gate) Table() *routing.Table { return g.table }

// AllowMigrate reports whether domain's schema may be materialized in store.
// Evaluation failures deny.
func (g *Gate) AllowMigrate(ctx context.Context, store routing.Store, domain routing.Domain) bool {
	ok, err := g.eval.AllowMigrate(ctx, store, domain)
	if err != nil {
		g.log.WithError(err).WithFields(logrus.Fields{"store": store, "domain": domain}).Error("allow_migrate evaluation failed")
		return false
	}
	return ok
}

// AllowStores reports whether records originating in stores a and b may be associated.
func (g *Gate) AllowStores(ctx context.Context, a, b routing.Store) bool {
	ok, err := g.eval.AllowRelation(ctx, a, b)
	if err != nil {
		g.log.WithError(err).WithFields(logrus.Fields{"a": a, "b": b}).Error("allow_relation evaluation failed")
		return false
	}
	return ok
}

// AllowRelation reports whether two in-memory records may be associated.
func (g *Gate) AllowRelation(ctx context.Context, a, b routing.Placed) bool {
	if a == nil || b == nil {
		return false
	}
	return g.AllowStores(ctx, a.Origin(), b.Origin())
}

// MigrationPlan lists, per store, the domains whose schema the gate allows there.
func (g *Gate) MigrationPlan(ctx context.Context, domains []routing.Domain) map[routing.Store][]routing.Domain {
	plan := make(map[routing.Store][]routing.Domain)
	for _, store := range g.table.Stores() {
		for _, d := range domains {
			if g.AllowMigrate(ctx, store, d) {
				plan[store] = append(plan[store], d)
			}
		}
	}
	return plan
}

// HealthCheck verifies the policy engine evaluates.
func (g *Gate) HealthCheck(ctx context.Context) error {
	return g.eval.HealthCheck(ctx)
}
