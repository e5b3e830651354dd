// checkdb verifies that every configured store holds the tables of the domains the relation
// gate places there. Exits non-zero if any are missing.
package main

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"gwiit/backend/internal/app"
	"gwiit/backend/internal/config"
	"gwiit/backend/internal/db"
	"gwiit/backend/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	table, gate, err := app.Topology(ctx, cfg, log)
	if err != nil {
		log.Fatalf("topology: %v", err)
	}
	stores, err := db.OpenStores(table, cfg.DatabaseURLs())
	if err != nil {
		log.Fatalf("open stores: %v", err)
	}
	defer stores.Close()

	domains, err := db.MigrationDomains()
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	ok := true
	for _, store := range stores.Configured() {
		h, _ := stores.Handle(store)
		for _, d := range domains {
			if !gate.AllowMigrate(ctx, store, d) {
				continue
			}
			entry := log.WithFields(logrus.Fields{"store": store, "domain": d})
			missing, err := db.MissingTables(ctx, h, db.ExpectedTables[d])
			switch {
			case err != nil:
				entry.WithError(err).Error("check failed")
				ok = false
			case len(missing) > 0:
				entry.WithField("missing", missing).Error("tables missing; run cmd/migrate")
				ok = false
			default:
				entry.Info("ok")
			}
		}
	}
	if !ok {
		os.Exit(1)
	}
}
