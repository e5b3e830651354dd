package db

import (
	"context"
	"fmt"

	"gwiit/backend/internal/routing"
)

// ExpectedTables lists the tables each domain's migrations create.
var ExpectedTables = map[routing.Domain][]string{
	routing.DomainDefault:      {"audit_logs"},
	routing.DomainIdentity:     {"users"},
	routing.DomainOrganization: {"organizations", "contacts"},
	routing.DomainSite:         {"sites"},
}

// MissingTables returns the tables in want that do not exist in the store q talks to.
func MissingTables(ctx context.Context, q Querier, want []string) ([]string, error) {
	var missing []string
	for _, table := range want {
		var exists bool
		if err := q.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	return missing, nil
}
