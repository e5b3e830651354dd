// migrate applies the embedded per-domain migrations to every configured store the relation
// gate allows.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"gwiit/backend/internal/app"
	"gwiit/backend/internal/config"
	"gwiit/backend/internal/db"
	"gwiit/backend/internal/db/migrate"
	"gwiit/backend/internal/logger"
	"gwiit/backend/internal/routing"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	store := flag.String("store", "", "Migrate only this store (e.g. users_db)")
	domain := flag.String("domain", "", "With -store, migrate only this domain")
	plan := flag.Bool("plan", false, "Print which domains each store would receive and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	dsns := cfg.DatabaseURLs()
	if len(dsns) == 0 {
		log.Fatal("no *_DATABASE_URL is set")
	}

	ctx := context.Background()
	_, gate, err := app.Topology(ctx, cfg, log)
	if err != nil {
		log.Fatalf("topology: %v", err)
	}

	if *plan {
		domains, err := db.MigrationDomains()
		if err != nil {
			log.Fatalf("list migrations: %v", err)
		}
		for s, ds := range gate.MigrationPlan(ctx, domains) {
			log.WithFields(logrus.Fields{"store": s, "domains": ds, "configured": dsns[s] != ""}).Info("planned")
		}
		return
	}

	if *store != "" {
		if *domain == "" {
			log.Fatal("-domain is required with -store")
		}
		s, d := routing.Store(*store), routing.Domain(*domain)
		if !gate.AllowMigrate(ctx, s, d) {
			log.WithFields(logrus.Fields{"store": s, "domain": d}).Fatal("relation gate refuses this migration")
		}
		if err := migrate.Run(dsns[s], d, *direction); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	applied, err := migrate.RunAll(ctx, gate, dsns, *direction, log)
	if err != nil {
		log.WithError(err).Error("migrate")
		os.Exit(1)
	}
	log.WithField("applied", len(applied)).Info("migrations done")
}
