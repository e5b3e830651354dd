// Package migrate runs the embedded per-domain migrations with golang-migrate, placing each
// domain's schema only in the stores the relation gate allows.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"gwiit/backend/internal/db"
	"gwiit/backend/internal/routing"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// Gate decides which domains may be migrated into which store.
type Gate interface {
	AllowMigrate(ctx context.Context, store routing.Store, domain routing.Domain) bool
	Table() *routing.Table
}

// Applied records one domain migrated into one store.
type Applied struct {
	Store   routing.Store
	Domain  routing.Domain
	Changed bool
}

func validateDirection(direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	return nil
}

// MigrationsTable is the bookkeeping table for domain. Each domain keeps its own version so a
// store holding several domains (shared system domains) tracks them independently.
func MigrationsTable(domain routing.Domain) string {
	return "schema_migrations_" + strings.ReplaceAll(string(domain), "-", "_")
}

func withMigrationsTable(dsn string, domain routing.Domain) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("migrate needs a URL DSN (postgres://...)")
	}
	q := u.Query()
	q.Set("x-migrations-table", MigrationsTable(domain))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run applies the migrations of domain to the database at dsn in the given direction.
// Returns ErrNoChange when already at the target version.
func Run(dsn string, domain routing.Domain, direction string) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.New("database URL is not set; set the *_DATABASE_URL variables")
	}
	if err := validateDirection(direction); err != nil {
		return err
	}
	target, err := withMigrationsTable(dsn, domain)
	if err != nil {
		return err
	}

	sourceDriver, err := iofs.New(db.MigrationFS, db.MigrationDir(domain))
	if err != nil {
		return fmt.Errorf("migrate source %s: %w", domain, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, target)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up":
		return m.Up()
	default:
		return m.Down()
	}
}

// RunAll migrates every store that has a DSN with every domain the gate allows there.
// Stores are processed independently; the first failure stops the run and is returned along
// with what was applied before it.
func RunAll(ctx context.Context, gate Gate, dsns map[routing.Store]string, direction string, log logrus.FieldLogger) ([]Applied, error) {
	if err := validateDirection(direction); err != nil {
		return nil, err
	}
	domains, err := db.MigrationDomains()
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	var applied []Applied
	for _, store := range gate.Table().Stores() {
		dsn := strings.TrimSpace(dsns[store])
		if dsn == "" {
			log.WithField("store", store).Debug("no DSN configured, skipping")
			continue
		}
		for _, d := range domains {
			if !gate.AllowMigrate(ctx, store, d) {
				continue
			}
			err := Run(dsn, d, direction)
			changed := err == nil
			if err != nil && !errors.Is(err, ErrNoChange) {
				return applied, fmt.Errorf("migrate %s into %s: %w", d, store, err)
			}
			log.WithFields(logrus.Fields{"store": store, "domain": d, "direction": direction, "changed": changed}).Info("migration applied")
			applied = append(applied, Applied{Store: store, Domain: d, Changed: changed})
		}
	}
	return applied, nil
}
