// Package app wires the stores, routing table, relation gate, reference resolver, repositories
// and services from a Config. The binaries under cmd/ share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"gwiit/backend/internal/audit"
	auditrepo "gwiit/backend/internal/audit/repository"
	"gwiit/backend/internal/config"
	"gwiit/backend/internal/db"
	healthhandler "gwiit/backend/internal/health/handler"
	"gwiit/backend/internal/notify"
	orgrepo "gwiit/backend/internal/organization/repository"
	orgservice "gwiit/backend/internal/organization/service"
	"gwiit/backend/internal/policy"
	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/security"
	siterepo "gwiit/backend/internal/site/repository"
	siteservice "gwiit/backend/internal/site/service"
	"gwiit/backend/internal/telemetry"
	telemetryotel "gwiit/backend/internal/telemetry/otel"
	userrepo "gwiit/backend/internal/user/repository"
	userservice "gwiit/backend/internal/user/service"
)

// ServiceName is reported to the telemetry backend.
const ServiceName = "gwiit-backend"

// App holds the wired components.
type App struct {
	Table    *routing.Table
	Stores   *db.Stores
	Gate     *policy.Gate
	Resolver *reference.Resolver
	Users    *userservice.Manager
	Orgs     *orgservice.Service
	Sites    *siteservice.Service
	Health   *healthhandler.Server
	Notifier notify.Notifier
	Log      logrus.FieldLogger

	shutdownTelemetry func(context.Context) error
}

// Options select the optional parts of the wiring.
type Options struct {
	// Telemetry sets up OTLP export and the global tracer and meter providers.
	Telemetry bool
}

// New opens every configured store and builds the services. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts Options) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	table, gate, err := Topology(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	stores, err := db.OpenStores(table, cfg.DatabaseURLs())
	if err != nil {
		return nil, err
	}

	a := &App{Table: table, Stores: stores, Gate: gate, Log: log}
	var events telemetry.EventEmitter = telemetry.Nop{}
	if opts.Telemetry {
		providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, ServiceName, cfg.OTLPInsecure, log)
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		providers.SetGlobal()
		events = telemetryotel.NewEventEmitter(providers.LoggerProvider)
		a.shutdownTelemetry = providers.Shutdown
	}

	users := userrepo.NewPostgresRepository(stores)
	orgs := orgrepo.NewPostgresRepository(stores)
	sites := siterepo.NewPostgresRepository(stores)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(stores), log)

	a.Resolver = reference.NewResolver(gate,
		reference.Bind(routing.DomainIdentity, users),
		reference.Bind(routing.DomainOrganization, orgs),
		reference.Bind(routing.DomainSite, sites),
	)
	a.Notifier = NewNotifier(cfg, log)
	a.Users = userservice.NewManager(users, security.NewHasher(cfg.BcryptCost), a.Resolver, a.Notifier, auditLogger, log,
		userservice.Config{CredentialLength: cfg.CredentialLength, Events: events})
	a.Orgs = orgservice.NewService(orgs, sites, users, auditLogger, log)
	a.Sites = siteservice.NewService(sites, a.Resolver, auditLogger, log, siteservice.Config{StrictReferences: cfg.StrictReferences})
	a.Health = healthhandler.NewServer(stores, gate, log)

	log.WithFields(logrus.Fields{
		"stores":            stores.Configured(),
		"shared":            table.Shared(),
		"strict_references": cfg.StrictReferences,
		"smtp":              cfg.SMTPEnabled(),
	}).Info("application wired")
	return a, nil
}

// Topology builds the routing table and the relation gate over it.
func Topology(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*routing.Table, *policy.Gate, error) {
	shared, err := cfg.SharedDomainList()
	if err != nil {
		return nil, nil, err
	}
	table, err := routing.NewTable(routing.DefaultRoutes(), routing.WithShared(shared...))
	if err != nil {
		return nil, nil, fmt.Errorf("routing table: %w", err)
	}
	gate, err := policy.NewDefaultGate(ctx, table, cfg.RelationPolicyFile, log)
	if err != nil {
		return nil, nil, fmt.Errorf("relation gate: %w", err)
	}
	return table, gate, nil
}

// NewNotifier returns the SMTP notifier when SMTP is configured, otherwise a LogNotifier that
// reports every message as not delivered.
func NewNotifier(cfg *config.Config, log logrus.FieldLogger) notify.Notifier {
	if !cfg.SMTPEnabled() {
		return notify.LogNotifier{Log: log}
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}

// Close flushes telemetry and closes every store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.shutdownTelemetry != nil {
		errs = append(errs, a.shutdownTelemetry(ctx))
	}
	errs = append(errs, a.Stores.Close())
	return errors.Join(errs...)
}
