package app

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwiit/backend/internal/config"
	"gwiit/backend/internal/db"
	"gwiit/backend/internal/notify"
	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/user/domain"
)

func TestNew_NoStores(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := &config.Config{BcryptCost: 4, CredentialLength: 16}
	a, err := New(context.Background(), cfg, log, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.Equal(t, routing.StoreUsers, a.Table.Route(routing.DomainIdentity))
	assert.Empty(t, a.Stores.Configured())
	assert.IsType(t, notify.LogNotifier{}, a.Notifier)

	_, err = a.Users.Create(context.Background(), domain.CreateInput{Email: "a@b.com", Username: "a"})
	assert.ErrorIs(t, err, db.ErrStoreNotConfigured)

	_, err = a.Users.Create(context.Background(), domain.CreateInput{Email: "bad", Username: "a"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail, "validation runs before any store is touched")

	assert.True(t, a.Health.Refresh(context.Background()))
	assert.True(t, a.Gate.AllowMigrate(context.Background(), routing.StoreSites, routing.DomainSite))
	assert.False(t, a.Gate.AllowMigrate(context.Background(), routing.StoreSites, routing.DomainIdentity))
}

func TestNew_SharedDomains(t *testing.T) {
	cfg := &config.Config{BcryptCost: 4, CredentialLength: 16, SharedDomains: "default"}
	a, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	assert.True(t, a.Table.IsShared(routing.DomainDefault))
	assert.True(t, a.Gate.AllowMigrate(context.Background(), routing.StoreUsers, routing.DomainDefault))
}

func TestNew_BadPolicyFile(t *testing.T) {
	cfg := &config.Config{BcryptCost: 4, CredentialLength: 16, RelationPolicyFile: "/does/not/exist.rego"}
	_, err := New(context.Background(), cfg, nil, Options{})
	assert.Error(t, err)
}

func TestNewNotifier(t *testing.T) {
	assert.IsType(t, notify.LogNotifier{}, NewNotifier(&config.Config{}, nil))
	assert.IsType(t, &notify.SMTPNotifier{}, NewNotifier(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587}, nil))
}
