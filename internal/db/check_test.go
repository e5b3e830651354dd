package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedTables_CoverMigrations(t *testing.T) {
	domains, err := MigrationDomains()
	require.NoError(t, err)
	require.NotEmpty(t, domains)
	for _, d := range domains {
		assert.NotEmpty(t, ExpectedTables[d], "no expected tables for %s", d)
	}
}

func TestMissingTables_Integration(t *testing.T) {
	dsn := os.Getenv("USERS_DATABASE_URL")
	if dsn == "" {
		t.Skip("USERS_DATABASE_URL not set, skipping integration test")
	}
	h, err := Open(dsn)
	require.NoError(t, err)
	defer h.Close()
	missing, err := MissingTables(context.Background(), h, []string{"definitely_not_a_table"})
	require.NoError(t, err)
	assert.Equal(t, []string{"definitely_not_a_table"}, missing)
}
