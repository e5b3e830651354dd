package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	auditdomain "gwiit/backend/internal/audit/domain"
	"gwiit/backend/internal/mfa"
	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/user/domain"
)

// Placeholders rendered for references that do not resolve.
const (
	UnknownOrganization = "Unknown Organization"
	UnknownSite         = "Unknown Site"
	UnknownUser         = "Unknown User"
)

// Get returns the user with id or ErrNotFound.
func (m *Manager) Get(ctx context.Context, id int64) (*domain.User, error) {
	return m.load(ctx, id)
}

// FindByIdentifier returns the single active user whose email, username, badge barcode or
// badge RFID equals identifier ignoring case. Inactive users are never matched.
func (m *Manager) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, domain.ErrNotFound
	}
	users, err := m.repo.FindActiveByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	switch len(users) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		return users[0], nil
	default:
		return nil, domain.ErrAmbiguousIdentifier
	}
}

// Authenticate checks identifier and password for login. The matching identifier must be a
// login method the user's organization allows; a dangling organization reference places no
// restriction. On success the last login time is stamped.
func (m *Manager) Authenticate(ctx context.Context, identifier, password string) (u *domain.User, err error) {
	const op = "authenticate"
	ctx, span := m.start(ctx, op, 0)
	defer func() {
		var id int64
		if u != nil {
			id = u.ID
		}
		m.finish(ctx, span, op, id, err)
	}()

	found, err := m.FindByIdentifier(ctx, identifier)
	switch {
	case errors.Is(err, domain.ErrAmbiguousIdentifier):
		m.log.Warn("login identifier matches more than one active user")
		return nil, domain.ErrInvalidCredentials
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.ErrInvalidCredentials
	case err != nil:
		return nil, err
	}
	if err := m.hasher.Compare(found.PasswordHash, password); err != nil {
		m.recordAudit(ctx, auditdomain.ActionLoginFail, found.ID, nil)
		return nil, domain.ErrInvalidCredentials
	}
	if m.resolver != nil && !found.OrganizationRef().IsZero() {
		rec, ok, err := m.resolver.Resolve(ctx, found.OrganizationRef())
		if err != nil {
			return nil, fmt.Errorf("resolve organization: %w", err)
		}
		if policy, isPolicy := rec.(LoginPolicy); ok && isPolicy && !policy.AllowsLogin(matchedField(found, identifier)) {
			return nil, domain.ErrLoginMethodDisabled
		}
	}
	now := m.now().UTC()
	if err := m.repo.SetLastLogin(ctx, found.ID, now); err != nil {
		return nil, err
	}
	found.LastLogin = &now
	m.recordAudit(ctx, auditdomain.ActionLogin, found.ID, map[string]any{"method": matchedField(found, identifier)})
	return found, nil
}

// matchedField names the identifier field that equals value, preferring email.
func matchedField(u *domain.User, value string) string {
	value = strings.TrimSpace(value)
	for _, id := range u.Identifiers().Set() {
		if domain.SameIdentifier(id.Value, value) {
			return id.Field
		}
	}
	return domain.FieldEmail
}

// VerifyStaticCode consumes one of the user's static MFA codes. It reports false for unknown or
// already used codes.
func (m *Manager) VerifyStaticCode(ctx context.Context, id int64, code string) (bool, error) {
	ok := false
	err := m.repo.WithinTx(ctx, func(ctx context.Context) error {
		u, err := m.load(ctx, id)
		if err != nil {
			return err
		}
		if u.MFAPreference != domain.MFAStaticCodes {
			return nil
		}
		rest, matched := mfa.Consume(code, u.StaticCodeHashes)
		if !matched {
			return nil
		}
		u.StaticCodeHashes = rest
		u.UpdatedAt = m.now().UTC()
		if err := m.repo.Update(ctx, u); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}

// List returns users matching f.
func (m *Manager) List(ctx context.Context, f domain.Filter) ([]*domain.User, error) {
	return m.repo.List(ctx, f)
}

func (m *Manager) resolve(ctx context.Context, ref reference.Ref) (reference.Record, bool, error) {
	if m.resolver == nil || ref.IsZero() {
		return nil, false, nil
	}
	return m.resolver.Resolve(ctx, ref)
}

// Organization resolves the user's organization. found is false for unset or dangling ids.
func (m *Manager) Organization(ctx context.Context, u *domain.User) (reference.Record, bool, error) {
	return m.resolve(ctx, u.OrganizationRef())
}

// Site resolves the user's site.
func (m *Manager) Site(ctx context.Context, u *domain.User) (reference.Record, bool, error) {
	return m.resolve(ctx, u.SiteRef())
}

// CreatedBy resolves the user who created u.
func (m *Manager) CreatedBy(ctx context.Context, u *domain.User) (reference.Record, bool, error) {
	return m.resolve(ctx, u.CreatedByRef())
}

// ModifiedBy resolves the user who last modified u.
func (m *Manager) ModifiedBy(ctx context.Context, u *domain.User) (reference.Record, bool, error) {
	return m.resolve(ctx, u.ModifiedByRef())
}

// Describe renders "email (Organization - Site)". Unresolvable references render as
// placeholders; lookup failures are logged and rendered the same way.
func (m *Manager) Describe(ctx context.Context, u *domain.User) string {
	org, orgFound, err := m.Organization(ctx, u)
	if err != nil {
		m.log.WithField("user_id", u.ID).WithError(err).Warn("describe: organization lookup failed")
	}
	site, siteFound, err := m.Site(ctx, u)
	if err != nil {
		m.log.WithField("user_id", u.ID).WithError(err).Warn("describe: site lookup failed")
	}
	return fmt.Sprintf("%s (%s - %s)", u.Email,
		reference.Display(org, orgFound, UnknownOrganization),
		reference.Display(site, siteFound, UnknownSite))
}
