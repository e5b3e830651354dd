// Package service implements the identity lifecycle: the only code path that creates, updates
// or removes users, and the one place the identity invariants are enforced.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gwiit/backend/internal/audit"
	"gwiit/backend/internal/notify"
	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/security"
	"gwiit/backend/internal/telemetry"
	"gwiit/backend/internal/user/domain"
)

const instrumentationName = "gwiit/backend/internal/user/service"

// UserRepo is the user repository the manager needs.
type UserRepo interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockIdentifiers(ctx context.Context, ids []domain.Identifier) error
	FindActiveConflicts(ctx context.Context, ids []domain.Identifier, excludeID int64) ([]domain.Identifier, error)
	CountActivePrivileged(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	FindActiveByIdentifier(ctx context.Context, identifier string) ([]*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	SetLastLogin(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f domain.Filter) ([]*domain.User, error)
}

// PasswordHasher hashes and checks credentials. *security.Hasher satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Resolver dereferences cross-store references. *reference.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, ref reference.Ref, opts ...reference.ResolveOption) (reference.Record, bool, error)
}

// LoginPolicy is implemented by organization records that restrict login methods. method is
// one of the domain.Field* identifier names.
type LoginPolicy interface {
	AllowsLogin(method string) bool
}

// Config tunes the manager. Zero values select defaults.
type Config struct {
	// CredentialLength is the length of generated credentials; at least security.MinCredentialLength.
	CredentialLength int
	// Events receives one lifecycle event per operation.
	Events telemetry.EventEmitter
	// Now is the clock; tests pin it.
	Now func() time.Time
}

// CreateResult is the outcome of Create. The user is committed even when notification failed.
type CreateResult struct {
	User      *domain.User
	Notified  bool
	NotifyErr error
}

// Manager enforces active-only identifier uniqueness, the login-identifier requirement and the
// privileged-account protections around every write to the identity store.
type Manager struct {
	repo             UserRepo
	hasher           PasswordHasher
	resolver         Resolver
	notifier         notify.Notifier
	audit            audit.AuditLogger
	events           telemetry.EventEmitter
	log              logrus.FieldLogger
	credentialLength int
	now              func() time.Time
	tracer           trace.Tracer
	ops              metric.Int64Counter
}

// NewManager returns a Manager with the given dependencies. resolver may be nil, in which case
// reference accessors report every reference as not found and login policies are not checked.
// A nil notifier logs instead of delivering; a nil audit logger records nothing.
func NewManager(
	repo UserRepo,
	hasher PasswordHasher,
	resolver Resolver,
	notifier notify.Notifier,
	auditLogger audit.AuditLogger,
	log logrus.FieldLogger,
	cfg Config,
) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if notifier == nil {
		notifier = notify.LogNotifier{Log: log}
	}
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if cfg.Events == nil {
		cfg.Events = telemetry.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CredentialLength < security.MinCredentialLength {
		cfg.CredentialLength = security.MinCredentialLength
	}
	meter := otel.Meter(instrumentationName)
	ops, err := meter.Int64Counter("gwiit.user.lifecycle",
		metric.WithDescription("Identity lifecycle operations by outcome"))
	if err != nil {
		log.WithError(err).Warn("user lifecycle counter unavailable")
	}
	return &Manager{
		repo:             repo,
		hasher:           hasher,
		resolver:         resolver,
		notifier:         notifier,
		audit:            auditLogger,
		events:           cfg.Events,
		log:              log.WithField("component", "user_manager"),
		credentialLength: cfg.CredentialLength,
		now:              cfg.Now,
		tracer:           otel.Tracer(instrumentationName),
		ops:              ops,
	}
}

type actorKey struct{}

// WithActor records which user performs the operations made with ctx. The actor becomes
// created_by / modified_by and the audit actor.
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFrom returns the actor set by WithActor, or 0.
func ActorFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey{}).(int64)
	return id
}

func (m *Manager) start(ctx context.Context, op string, id int64) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "user."+op, trace.WithAttributes(
		attribute.String("user.operation", op),
		attribute.Int64("user.id", id),
	))
}

// finish closes the span, counts the operation and emits its lifecycle event.
func (m *Manager) finish(ctx context.Context, span trace.Span, op string, id int64, err error) {
	outcome := outcomeOf(err)
	if err != nil {
		span.RecordError(err)
		if outcome == telemetry.OutcomeError {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.SetAttributes(attribute.String("user.outcome", outcome))
	span.End()
	if m.ops != nil {
		m.ops.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		))
	}
	ev := telemetry.LifecycleEvent{
		Operation: op,
		Domain:    string(routing.DomainIdentity),
		RecordID:  id,
		ActorID:   ActorFrom(ctx),
		Outcome:   outcome,
		At:        m.now().UTC(),
	}
	if err != nil {
		ev.Reason = err.Error()
	}
	if emitErr := m.events.Emit(ctx, ev); emitErr != nil {
		m.log.WithError(emitErr).Debug("lifecycle event not emitted")
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNotPrivileged),
		errors.Is(err, domain.ErrPrivilegedUser),
		errors.Is(err, domain.ErrAlreadyInactive),
		errors.Is(err, domain.ErrAmbiguousIdentifier),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrLoginMethodDisabled),
		errors.Is(err, security.ErrCredentialTooShort):
		return telemetry.OutcomeRejected
	default:
		return telemetry.OutcomeError
	}
}

func (m *Manager) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	m.audit.LogEvent(ctx, audit.Event{
		ActorID:  ActorFrom(ctx),
		Action:   action,
		Domain:   routing.DomainIdentity,
		RecordID: id,
		Metadata: meta,
	})
}

// checkConflicts locks the given identifier values and fails with a *domain.ConflictError if an
// active user other than excludeID holds any of them. Must run inside repo.WithinTx.
func (m *Manager) checkConflicts(ctx context.Context, ids []domain.Identifier, excludeID int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := m.repo.LockIdentifiers(ctx, ids); err != nil {
		return err
	}
	conflicts, err := m.repo.FindActiveConflicts(ctx, ids, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &domain.ConflictError{Field: conflicts[0].Field, Value: conflicts[0].Value}
	}
	return nil
}
