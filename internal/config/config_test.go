package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwiit/backend/internal/routing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.GRPCAddr)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 16, cfg.CredentialLength)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "admin", cfg.SeedAdminUsername)
	assert.False(t, cfg.StrictReferences)
	assert.False(t, cfg.SMTPEnabled())
	assert.Empty(t, cfg.DatabaseURLs())
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("STRICT_REFERENCES", "true")
	os.Setenv("USERS_DATABASE_URL", " postgres://u@localhost/users ")
	os.Setenv("SITES_DATABASE_URL", "postgres://u@localhost/sites")
	os.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.GRPCAddr)
	assert.Equal(t, 14, cfg.BcryptCost)
	assert.True(t, cfg.StrictReferences)
	assert.True(t, cfg.SMTPEnabled())
	assert.Equal(t, map[routing.Store]string{
		routing.StoreUsers: "postgres://u@localhost/users",
		routing.StoreSites: "postgres://u@localhost/sites",
	}, cfg.DatabaseURLs())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bcrypt too high":   {"BCRYPT_COST": "32"},
		"short credentials": {"CREDENTIAL_LENGTH": "8"},
		"bad smtp port":     {"SMTP_HOST": "smtp.example.com", "SMTP_PORT": "0"},
		"shared non-system": {"SHARED_DOMAINS": "identity"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("GRPC_ADDR", ":8080")
			for k, v := range env {
				os.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSharedDomainList(t *testing.T) {
	cfg := &Config{SharedDomains: " default , "}
	got, err := cfg.SharedDomainList()
	require.NoError(t, err)
	assert.Equal(t, []routing.Domain{routing.DomainDefault}, got)

	var nilCfg *Config
	got, err = nilCfg.SharedDomainList()
	require.NoError(t, err)
	assert.Nil(t, got)
}
