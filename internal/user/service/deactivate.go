package service

import (
	"context"
	"errors"

	auditdomain "gwiit/backend/internal/audit/domain"
	"gwiit/backend/internal/user/domain"
)

// Deactivate soft-deletes a non-privileged user. Identifiers stay on the inactive record and
// become free for active users. A second call returns ErrAlreadyInactive.
func (m *Manager) Deactivate(ctx context.Context, id int64) (err error) {
	const op = "deactivate"
	ctx, span := m.start(ctx, op, id)
	defer func() { m.finish(ctx, span, op, id, err) }()

	err = m.repo.WithinTx(ctx, func(ctx context.Context) error {
		u, err := m.load(ctx, id)
		if err != nil {
			return err
		}
		if u.Superuser {
			return domain.ErrPrivilegedUser
		}
		return m.softDelete(ctx, u)
	})
	if err == nil {
		m.recordAudit(ctx, auditdomain.ActionDeactivate, id, nil)
	}
	return err
}

// DeactivatePrivileged soft-deletes a privileged user as long as at least one other active
// privileged user remains. The active privileged rows are locked for the count, so two
// concurrent calls cannot both pass it.
func (m *Manager) DeactivatePrivileged(ctx context.Context, id int64) (err error) {
	const op = "deactivate_privileged"
	ctx, span := m.start(ctx, op, id)
	defer func() { m.finish(ctx, span, op, id, err) }()

	err = m.repo.WithinTx(ctx, func(ctx context.Context) error {
		u, err := m.load(ctx, id)
		if err != nil {
			return err
		}
		if !u.Superuser {
			return domain.ErrNotPrivileged
		}
		if !u.Active {
			return domain.ErrAlreadyInactive
		}
		n, err := m.repo.CountActivePrivileged(ctx)
		if err != nil {
			return err
		}
		if n < 2 {
			return domain.ErrLastPrivileged
		}
		return m.softDelete(ctx, u)
	})
	if err == nil {
		m.recordAudit(ctx, auditdomain.ActionDeactivate, id, map[string]any{"privileged": true})
	} else if errors.Is(err, domain.ErrLastPrivileged) {
		m.log.WithField("user_id", id).Warn("refused to deactivate the last active privileged user")
	}
	return err
}

// Purge permanently deletes a non-privileged user. Cross-store references to the user are not
// touched and dangle afterwards.
func (m *Manager) Purge(ctx context.Context, id int64) (err error) {
	const op = "purge"
	ctx, span := m.start(ctx, op, id)
	defer func() { m.finish(ctx, span, op, id, err) }()

	err = m.repo.WithinTx(ctx, func(ctx context.Context) error {
		u, err := m.load(ctx, id)
		if err != nil {
			return err
		}
		if u.Superuser {
			return domain.ErrPrivilegedUser
		}
		return m.repo.Delete(ctx, id)
	})
	if err == nil {
		m.recordAudit(ctx, auditdomain.ActionPurge, id, nil)
	}
	return err
}

func (m *Manager) load(ctx context.Context, id int64) (*domain.User, error) {
	u, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (m *Manager) softDelete(ctx context.Context, u *domain.User) error {
	if !u.Active {
		return domain.ErrAlreadyInactive
	}
	u.Active = false
	u.UpdatedAt = m.now().UTC()
	if actor := ActorFrom(ctx); actor != 0 {
		u.ModifiedByID = actor
	}
	return m.repo.Update(ctx, u)
}
