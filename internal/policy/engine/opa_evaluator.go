package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"gwiit/backend/internal/routing"
)

const (
	policyPackage      = "gwiit.routing"
	allowMigrateQuery  = "data.gwiit.routing.allow_migrate"
	allowRelationQuery = "data.gwiit.routing.allow_relation"
)

// DefaultRoutingPolicy mirrors the routing table: a domain's schema lives only in its routed
// store (unknown domains in the default store), shared system domains may be materialized in
// any managed store, and relations are allowed between any two managed stores.
const DefaultRoutingPolicy = `package gwiit.routing

default allow_migrate := false
default allow_relation := false

allow_migrate if {
	input.routes[input.migrate.domain] == input.migrate.store
}

allow_migrate if {
	not input.routes[input.migrate.domain]
	input.migrate.store == input.default_store
}

allow_migrate if {
	input.migrate.domain in input.shared
	input.migrate.store in input.managed
}

allow_relation if {
	input.relation.a in input.managed
	input.relation.b in input.managed
}
`

// OPAEvaluator evaluates the routing policy with queries prepared once at construction.
type OPAEvaluator struct {
	topology map[string]interface{}
	migrate  rego.PreparedEvalQuery
	relation rego.PreparedEvalQuery
}

var _ Evaluator = (*OPAEvaluator)(nil)

// LoadPolicy returns the Rego source at path, or DefaultRoutingPolicy when path is empty.
func LoadPolicy(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultRoutingPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read routing policy: %w", err)
	}
	return string(b), nil
}

// NewOPAEvaluator compiles module (DefaultRoutingPolicy if empty) and prepares both decisions.
// The module must declare package gwiit.routing.
func NewOPAEvaluator(ctx context.Context, module string, topo Topology) (*OPAEvaluator, error) {
	if strings.TrimSpace(module) == "" {
		module = DefaultRoutingPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"routing.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile routing policy: %w", err)
	}
	if !declaresPackage(compiler) {
		return nil, fmt.Errorf("routing policy must declare package %s", policyPackage)
	}
	migrate, err := rego.New(rego.Query(allowMigrateQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare allow_migrate: %w", err)
	}
	relation, err := rego.New(rego.Query(allowRelationQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare allow_relation: %w", err)
	}
	return &OPAEvaluator{
		topology: topologyInput(topo),
		migrate:  migrate,
		relation: relation,
	}, nil
}

func declaresPackage(c *ast.Compiler) bool {
	for _, m := range c.Modules {
		if strings.TrimPrefix(m.Package.Path.String(), "data.") == policyPackage {
			return true
		}
	}
	return false
}

func topologyInput(t Topology) map[string]interface{} {
	routes := make(map[string]interface{}, len(t.Routes))
	for d, s := range t.Routes {
		routes[string(d)] = string(s)
	}
	shared := make([]interface{}, 0, len(t.Shared))
	for _, d := range t.Shared {
		shared = append(shared, string(d))
	}
	managed := make([]interface{}, 0, len(t.Managed))
	for _, s := range t.Managed {
		managed = append(managed, string(s))
	}
	return map[string]interface{}{
		"routes":        routes,
		"default_store": string(t.DefaultStore),
		"shared":        shared,
		"managed":       managed,
	}
}

func (e *OPAEvaluator) input(key string, v map[string]interface{}) map[string]interface{} {
	in := make(map[string]interface{}, len(e.topology)+1)
	for k, val := range e.topology {
		in[k] = val
	}
	in[key] = v
	return in
}

// AllowMigrate evaluates allow_migrate for store and domain.
func (e *OPAEvaluator) AllowMigrate(ctx context.Context, store routing.Store, domain routing.Domain) (bool, error) {
	in := e.input("migrate", map[string]interface{}{
		"store":  string(store),
		"domain": string(domain),
	})
	return evalBool(ctx, e.migrate, in)
}

// AllowRelation evaluates allow_relation for two origin stores.
func (e *OPAEvaluator) AllowRelation(ctx context.Context, a, b routing.Store) (bool, error) {
	in := e.input("relation", map[string]interface{}{
		"a": string(a),
		"b": string(b),
	})
	return evalBool(ctx, e.relation, in)
}

// HealthCheck evaluates both decisions against the default store.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	store, _ := e.topology["default_store"].(string)
	if _, err := e.AllowMigrate(ctx, routing.Store(store), routing.DomainDefault); err != nil {
		return err
	}
	if _, err := e.AllowRelation(ctx, routing.Store(store), routing.Store(store)); err != nil {
		return err
	}
	return nil
}

func evalBool(ctx context.Context, q rego.PreparedEvalQuery, input map[string]interface{}) (bool, error) {
	rs, err := q.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval routing policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("routing policy query returned no result")
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("routing policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return v, nil
}
