package db

import (
	"embed"
	"io/fs"

	"gwiit/backend/internal/routing"
)

// MigrationFS embeds SQL migrations, one directory per domain under internal/db/migrations.
//
//go:embed migrations
var MigrationFS embed.FS

// MigrationDir returns the embedded directory holding migrations for d.
func MigrationDir(d routing.Domain) string {
	return "migrations/" + string(d)
}

// MigrationDomains lists the domains that ship migrations.
func MigrationDomains() ([]routing.Domain, error) {
	entries, err := fs.ReadDir(MigrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	var out []routing.Domain
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, routing.Domain(e.Name()))
		}
	}
	return out, nil
}
