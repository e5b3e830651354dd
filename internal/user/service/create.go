package service

import (
	"context"

	"github.com/sirupsen/logrus"

	auditdomain "gwiit/backend/internal/audit/domain"
	"gwiit/backend/internal/mfa"
	"gwiit/backend/internal/notify"
	"gwiit/backend/internal/security"
	"gwiit/backend/internal/user/domain"
)

// Create validates and stores a new user, then notifies them of their credential.
//
// The email is trimmed and lower-cased. At least one of username, badge barcode or badge RFID
// is required. Active defaults to true. If no password is given one is generated. The
// uniqueness check and the insert share one identity-store transaction holding advisory locks
// on every identifier value. Organization, site and creator ids are stored as given.
// A superuser input is treated as privileged and forced active and staff.
func (m *Manager) Create(ctx context.Context, in domain.CreateInput) (*CreateResult, error) {
	return m.create(ctx, "create", in)
}

// CreatePrivileged creates an active staff superuser.
func (m *Manager) CreatePrivileged(ctx context.Context, in domain.CreateInput) (*CreateResult, error) {
	in.Superuser = true
	return m.create(ctx, "create_privileged", in)
}

func (m *Manager) create(ctx context.Context, op string, in domain.CreateInput) (res *CreateResult, err error) {
	ctx, span := m.start(ctx, op, 0)
	defer func() {
		var id int64
		if res != nil {
			id = res.User.ID
		}
		m.finish(ctx, span, op, id, err)
	}()

	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Email:          email,
		Username:       domain.NormalizeIdentifier(in.Username),
		BadgeBarcode:   domain.NormalizeIdentifier(in.BadgeBarcode),
		BadgeRFID:      domain.NormalizeIdentifier(in.BadgeRFID),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          in.Phone,
		OrganizationID: in.OrganizationID,
		SiteID:         in.SiteID,
		MFAPreference:  in.MFAPreference,
		Active:         true,
		Staff:          in.Staff,
		Superuser:      in.Superuser,
		CreatedByID:    in.CreatedByID,
	}
	if u.Username == "" && u.BadgeBarcode == "" && u.BadgeRFID == "" {
		return nil, domain.ErrIdentifierRequired
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	if u.Superuser {
		if in.Active != nil && !*in.Active {
			return nil, domain.ErrPrivilegedFlags
		}
		u.Active, u.Staff = true, true
	}
	if u.CreatedByID == 0 {
		u.CreatedByID = ActorFrom(ctx)
	}
	u.ModifiedByID = u.CreatedByID

	credential := in.Password
	if credential == "" {
		if credential, err = security.GenerateCredential(m.credentialLength); err != nil {
			return nil, err
		}
	}

	var staticCodes []string
	if u.MFAPreference == domain.MFAStaticCodes {
		if staticCodes, err = mfa.GenerateStaticCodes(mfa.StaticCodeCount); err != nil {
			return nil, err
		}
		u.StaticCodeHashes = mfa.HashCodes(staticCodes)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if u.PasswordHash, err = m.hasher.Hash(credential); err != nil {
		return nil, err
	}
	now := m.now().UTC()
	u.DateJoined, u.CreatedAt, u.UpdatedAt = now, now, now

	err = m.repo.WithinTx(ctx, func(ctx context.Context) error {
		if u.Active {
			if err := m.checkConflicts(ctx, u.Identifiers().Set(), 0); err != nil {
				return err
			}
		}
		return m.repo.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	m.recordAudit(ctx, auditdomain.ActionCreate, u.ID, map[string]any{
		"privileged": u.Superuser, "organization_id": u.OrganizationID, "site_id": u.SiteID,
	})
	res = &CreateResult{User: u}
	msg := notify.CredentialMessage(notify.Account{
		Email:        u.Email,
		Username:     u.Username,
		BadgeBarcode: u.BadgeBarcode,
		BadgeRFID:    u.BadgeRFID,
	}, credential, staticCodes)
	if nerr := m.notifier.Notify(ctx, msg); nerr != nil {
		m.log.WithFields(logrus.Fields{"user_id": u.ID, "message_id": msg.ID}).WithError(nerr).
			Warn("new account notification failed; account kept")
		res.NotifyErr = nerr
	} else {
		res.Notified = true
	}
	return res, nil
}
