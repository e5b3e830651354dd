package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gwiit/backend/internal/audit/domain"
	auditrepo "gwiit/backend/internal/audit/repository"
	"gwiit/backend/internal/routing"
)

// Event describes one write to a record.
type Event struct {
	ActorID  int64
	Action   string
	Domain   routing.Domain
	RecordID int64
	Metadata map[string]any
}

// AuditLogger records lifecycle events. LogEvent is best-effort: failures are logged and do not
// affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, ev Event)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo. repo may be nil, which makes every
// call a no-op.
func NewLogger(repo auditrepo.Repository, log logrus.FieldLogger) *Logger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logger{repo: repo, log: log, now: time.Now}
}

// LogEvent writes one audit log entry. Errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, ev Event) {
	if l == nil || l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   ev.ActorID,
		Action:    ev.Action,
		Domain:    string(ev.Domain),
		RecordID:  ev.RecordID,
		CreatedAt: l.now().UTC(),
	}
	if len(ev.Metadata) > 0 {
		if b, err := json.Marshal(ev.Metadata); err == nil {
			entry.Metadata = string(b)
		}
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.WithFields(logrus.Fields{
			"action": ev.Action, "domain": ev.Domain, "record_id": ev.RecordID,
		}).WithError(err).Warn("audit: failed to log event")
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) LogEvent(context.Context, Event) {}
