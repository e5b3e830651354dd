package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwiit/backend/internal/audit/domain"
	"gwiit/backend/internal/routing"
)

type memAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
}

func (m *memAuditRepo) GetByID(_ context.Context, id string) (*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (m *memAuditRepo) ListByRecord(_ context.Context, d string, id int64, _, _ int32) ([]*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditLog
	for _, e := range m.entries {
		if e.Domain == d && e.RecordID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, nil)

	l.LogEvent(context.Background(), Event{
		ActorID: 1, Action: domain.ActionCreate, Domain: routing.DomainIdentity, RecordID: 42,
		Metadata: map[string]any{"email": "a@b.com"},
	})

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, int64(1), entry.ActorID)
	assert.Equal(t, "create", entry.Action)
	assert.Equal(t, "identity", entry.Domain)
	assert.Equal(t, int64(42), entry.RecordID)
	assert.JSONEq(t, `{"email":"a@b.com"}`, entry.Metadata)
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := repo.ListByRecord(context.Background(), "identity", 42, 10, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLogger_LogEvent_RepositoryError(t *testing.T) {
	log, hook := test.NewNullLogger()
	l := NewLogger(&memAuditRepo{createErr: errors.New("database error")}, log)

	l.LogEvent(context.Background(), Event{Action: domain.ActionUpdate, Domain: routing.DomainSite, RecordID: 3})

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, int64(3), hook.LastEntry().Data["record_id"])
}

func TestLogger_LogEvent_NilRepo(t *testing.T) {
	var l *Logger
	l.LogEvent(context.Background(), Event{})
	NewLogger(nil, nil).LogEvent(context.Background(), Event{})
	Nop{}.LogEvent(context.Background(), Event{})
}
