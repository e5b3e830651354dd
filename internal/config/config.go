// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`

	// One Postgres DSN per store. A store without a DSN is not opened; domains routed to it fail
	// with db.ErrStoreNotConfigured.
	DefaultDatabaseURL       string `mapstructure:"DEFAULT_DATABASE_URL"`
	UsersDatabaseURL         string `mapstructure:"USERS_DATABASE_URL"`
	OrganizationsDatabaseURL string `mapstructure:"ORGANIZATIONS_DATABASE_URL"`
	SitesDatabaseURL         string `mapstructure:"SITES_DATABASE_URL"`
	AuthDatabaseURL          string `mapstructure:"AUTH_DATABASE_URL"`
	AuthorizationDatabaseURL string `mapstructure:"AUTHORIZATION_DATABASE_URL"`

	// SharedDomains is a comma-separated list of system domains migrated into every managed store.
	SharedDomains string `mapstructure:"SHARED_DOMAINS"`
	// RelationPolicyFile optionally replaces the embedded Rego relation policy.
	RelationPolicyFile string `mapstructure:"RELATION_POLICY_FILE"`
	// StrictReferences resolves cross-store references before writes that set them.
	StrictReferences bool `mapstructure:"STRICT_REFERENCES"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// CredentialLength is the length of generated credentials; at least 16.
	CredentialLength int `mapstructure:"CREDENTIAL_LENGTH"`

	// SMTP settings. When SMTPHost is empty notifications are logged instead of sent.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	// OTLP endpoint for traces, metrics and logs (e.g. localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Seed settings for cmd/seed.
	SeedAdminEmail    string `mapstructure:"SEED_ADMIN_EMAIL"`
	SeedAdminUsername string `mapstructure:"SEED_ADMIN_USERNAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Every key needs a default so Unmarshal picks up its env var.
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DEFAULT_DATABASE_URL", "")
	v.SetDefault("USERS_DATABASE_URL", "")
	v.SetDefault("ORGANIZATIONS_DATABASE_URL", "")
	v.SetDefault("SITES_DATABASE_URL", "")
	v.SetDefault("AUTH_DATABASE_URL", "")
	v.SetDefault("AUTHORIZATION_DATABASE_URL", "")
	v.SetDefault("SHARED_DOMAINS", "")
	v.SetDefault("RELATION_POLICY_FILE", "")
	v.SetDefault("STRICT_REFERENCES", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("CREDENTIAL_LENGTH", security.MinCredentialLength)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@localhost")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("SEED_ADMIN_EMAIL", "")
	v.SetDefault("SEED_ADMIN_USERNAME", "admin")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.CredentialLength < security.MinCredentialLength {
		return nil, fmt.Errorf("config: CREDENTIAL_LENGTH must be at least %d", security.MinCredentialLength)
	}
	if cfg.SMTPHost != "" && (cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535) {
		return nil, errors.New("config: SMTP_PORT must be a valid port when SMTP_HOST is set")
	}
	if _, err := cfg.SharedDomainList(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DatabaseURLs maps each store to its configured DSN. Stores without a DSN are omitted.
func (c *Config) DatabaseURLs() map[routing.Store]string {
	all := map[routing.Store]string{
		routing.StoreDefault:       c.DefaultDatabaseURL,
		routing.StoreUsers:         c.UsersDatabaseURL,
		routing.StoreOrganizations: c.OrganizationsDatabaseURL,
		routing.StoreSites:         c.SitesDatabaseURL,
		routing.StoreAuth:          c.AuthDatabaseURL,
		routing.StoreAuthorization: c.AuthorizationDatabaseURL,
	}
	out := make(map[routing.Store]string, len(all))
	for s, dsn := range all {
		if dsn = strings.TrimSpace(dsn); dsn != "" {
			out[s] = dsn
		}
	}
	return out
}

// SharedDomainList parses SharedDomains. Only system domains may be shared.
func (c *Config) SharedDomainList() ([]routing.Domain, error) {
	if c == nil || strings.TrimSpace(c.SharedDomains) == "" {
		return nil, nil
	}
	var out []routing.Domain
	for _, p := range strings.Split(c.SharedDomains, ",") {
		d := routing.Domain(strings.TrimSpace(p))
		if d == "" {
			continue
		}
		if d != routing.DomainDefault {
			return nil, fmt.Errorf("config: SHARED_DOMAINS may only list system domains, got %q", d)
		}
		out = append(out, d)
	}
	return out, nil
}

// SMTPEnabled reports whether notifications should be delivered over SMTP.
func (c *Config) SMTPEnabled() bool { return c.SMTPHost != "" }
