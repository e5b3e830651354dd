package service

import (
	"context"

	auditdomain "gwiit/backend/internal/audit/domain"
	"gwiit/backend/internal/mfa"
	"gwiit/backend/internal/notify"
	"gwiit/backend/internal/user/domain"
)

// Update applies a sparse patch to a user.
//
// Identifiers that change to a new non-empty value are checked against other active users.
// Reactivating a user checks all of its identifiers. The patch fails if it would leave the user
// without a username or badge value, and nothing is written. Privileged users keep their
// active, staff and superuser flags; a patch turning one off fails with ErrPrivilegedFlags.
func (m *Manager) Update(ctx context.Context, id int64, p domain.Patch) (*domain.User, error) {
	return m.update(ctx, "update", id, p, false)
}

// UpdatePrivileged is Update restricted to privileged users.
func (m *Manager) UpdatePrivileged(ctx context.Context, id int64, p domain.Patch) (*domain.User, error) {
	return m.update(ctx, "update_privileged", id, p, true)
}

func (m *Manager) update(ctx context.Context, op string, id int64, p domain.Patch, privilegedOnly bool) (out *domain.User, err error) {
	ctx, span := m.start(ctx, op, id)
	defer func() { m.finish(ctx, span, op, id, err) }()

	// bcrypt runs before the transaction so row locks are not held while hashing.
	var newHash string
	if p.Password != nil {
		if *p.Password == "" {
			return nil, &domain.ValidationError{Field: "password", Reason: "must not be empty"}
		}
		if newHash, err = m.hasher.Hash(*p.Password); err != nil {
			return nil, err
		}
	}
	var email string
	if p.Email != nil {
		if email, err = domain.NormalizeEmail(*p.Email); err != nil {
			return nil, err
		}
	}

	var staticCodes []string
	err = m.repo.WithinTx(ctx, func(ctx context.Context) error {
		u, err := m.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return domain.ErrNotFound
		}
		if privilegedOnly && !u.Superuser {
			return domain.ErrNotPrivileged
		}
		privileged := u.Superuser || (p.Superuser != nil && *p.Superuser)
		if privileged && p.TouchesPrivilegedFlags() {
			return domain.ErrPrivilegedFlags
		}

		wasActive := u.Active
		before := u.Identifiers()
		if p.Email != nil {
			u.Email = email
		}
		if p.Username != nil {
			u.Username = domain.NormalizeIdentifier(*p.Username)
		}
		if p.BadgeBarcode != nil {
			u.BadgeBarcode = domain.NormalizeIdentifier(*p.BadgeBarcode)
		}
		if p.BadgeRFID != nil {
			u.BadgeRFID = domain.NormalizeIdentifier(*p.BadgeRFID)
		}
		if u.Username == "" && u.BadgeBarcode == "" && u.BadgeRFID == "" {
			return domain.ErrIdentifierRequired
		}
		applyProfile(u, p)
		if newHash != "" {
			u.PasswordHash = newHash
		}
		if p.MFAPreference != nil {
			u.MFAPreference = *p.MFAPreference
			if u.MFAPreference == domain.MFAStaticCodes && len(u.StaticCodeHashes) == 0 {
				if staticCodes, err = mfa.GenerateStaticCodes(mfa.StaticCodeCount); err != nil {
					return err
				}
				u.StaticCodeHashes = mfa.HashCodes(staticCodes)
			}
			if u.MFAPreference != domain.MFAStaticCodes {
				u.StaticCodeHashes = nil
			}
		}
		if p.Active != nil {
			u.Active = *p.Active
		}
		if p.Staff != nil {
			u.Staff = *p.Staff
		}
		if p.Superuser != nil {
			u.Superuser = *p.Superuser
		}
		if privileged {
			u.Active, u.Staff, u.Superuser = true, true, true
		}
		if err := u.Validate(); err != nil {
			return err
		}

		if u.Active {
			check := changedIdentifiers(before, u.Identifiers())
			if !wasActive {
				check = u.Identifiers().Set()
			}
			if err := m.checkConflicts(ctx, check, u.ID); err != nil {
				return err
			}
		}

		u.UpdatedAt = m.now().UTC()
		u.ModifiedByID = p.ModifiedByID
		if u.ModifiedByID == 0 {
			u.ModifiedByID = ActorFrom(ctx)
		}
		if err := m.repo.Update(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.recordAudit(ctx, auditdomain.ActionUpdate, out.ID, map[string]any{"fields": patchedFields(p)})
	if len(staticCodes) > 0 {
		if nerr := m.notifier.Notify(ctx, notify.StaticCodesMessage(out.Email, staticCodes)); nerr != nil {
			m.log.WithField("user_id", out.ID).WithError(nerr).Warn("static code notification failed")
		}
	}
	return out, nil
}

func applyProfile(u *domain.User, p domain.Patch) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.OrganizationID != nil {
		u.OrganizationID = *p.OrganizationID
	}
	if p.SiteID != nil {
		u.SiteID = *p.SiteID
	}
}

// changedIdentifiers returns the identifiers in after that are set and differ from before.
func changedIdentifiers(before, after domain.Identifiers) []domain.Identifier {
	prev := make(map[string]string, 4)
	for _, id := range before.Set() {
		prev[id.Field] = id.Value
	}
	var out []domain.Identifier
	for _, id := range after.Set() {
		if !domain.SameIdentifier(prev[id.Field], id.Value) {
			out = append(out, id)
		}
	}
	return out
}

func patchedFields(p domain.Patch) []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(p.Email != nil, "email")
	add(p.Username != nil, "username")
	add(p.BadgeBarcode != nil, "badge_barcode")
	add(p.BadgeRFID != nil, "badge_rfid")
	add(p.Password != nil, "password")
	add(p.FirstName != nil, "first_name")
	add(p.LastName != nil, "last_name")
	add(p.Phone != nil, "phone_number")
	add(p.OrganizationID != nil, "organization_id")
	add(p.SiteID != nil, "site_id")
	add(p.MFAPreference != nil, "mfa_preference")
	add(p.Active != nil, "is_active")
	add(p.Staff != nil, "is_staff")
	add(p.Superuser != nil, "is_superuser")
	return f
}
