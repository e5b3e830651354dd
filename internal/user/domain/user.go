package domain

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
)

// MFAPreference is the second factor a user has chosen.
type MFAPreference string

const (
	MFANone             MFAPreference = "none"
	MFAAuthenticatorApp MFAPreference = "authenticator_app"
	MFASMS              MFAPreference = "sms"
	MFAEmail            MFAPreference = "email"
	MFAStaticCodes      MFAPreference = "static_codes"
)

// Valid reports whether p is a known preference.
func (p MFAPreference) Valid() bool {
	switch p {
	case MFANone, MFAAuthenticatorApp, MFASMS, MFAEmail, MFAStaticCodes:
		return true
	}
	return false
}

// User is an identity record. It lives in the store the identity domain routes to; organization,
// site and audit actor fields are surrogate references into other stores.
type User struct {
	ID               int64
	Email            string `db:"email" validate:"max=254"`
	Username         string `db:"username" validate:"max=30"`
	BadgeBarcode     string `db:"badge_barcode" validate:"max=100"`
	BadgeRFID        string `db:"badge_rfid" validate:"max=100"`
	PasswordHash     string
	FirstName        string `db:"first_name" validate:"max=30"`
	LastName         string `db:"last_name" validate:"max=30"`
	Phone            string `db:"phone_number" validate:"max=15"`
	OrganizationID   int64
	SiteID           int64
	MFAPreference    MFAPreference
	StaticCodeHashes []string
	Active           bool
	Staff            bool
	Superuser        bool
	LastLogin        *time.Time
	DateJoined       time.Time
	CreatedAt        time.Time
	CreatedByID      int64
	UpdatedAt        time.Time
	ModifiedByID     int64

	// Store is the store the record was loaded from or written to.
	Store routing.Store
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("db")
	})
	return v
}

// Validate checks the record for persistence. Email must already be normalized.
func (u *User) Validate() error {
	if u.Email == "" {
		return ErrEmailRequired
	}
	if !WellFormedEmail(u.Email) {
		return ErrInvalidEmail
	}
	if u.Username == "" && u.BadgeBarcode == "" && u.BadgeRFID == "" {
		return ErrIdentifierRequired
	}
	if u.MFAPreference == "" {
		u.MFAPreference = MFANone
	}
	if !u.MFAPreference.Valid() {
		return &ValidationError{Field: "mfa_preference", Reason: "unknown preference " + string(u.MFAPreference)}
	}
	if u.Superuser && !u.Staff {
		return ErrPrivilegedFlags
	}
	if err := validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field(), Reason: "failed " + verrs[0].Tag() + " " + verrs[0].Param()}
		}
		return err
	}
	return nil
}

// Privileged reports whether the user holds superuser rights.
func (u *User) Privileged() bool { return u.Superuser }

// Identifiers returns the login identifiers currently set on the user.
func (u *User) Identifiers() Identifiers {
	return Identifiers{Email: u.Email, Username: u.Username, BadgeBarcode: u.BadgeBarcode, BadgeRFID: u.BadgeRFID}
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) OrganizationRef() reference.Ref {
	return reference.To(routing.DomainOrganization, u.OrganizationID)
}

func (u *User) SiteRef() reference.Ref { return reference.To(routing.DomainSite, u.SiteID) }

func (u *User) CreatedByRef() reference.Ref {
	return reference.To(routing.DomainIdentity, u.CreatedByID)
}

func (u *User) ModifiedByRef() reference.Ref {
	return reference.To(routing.DomainIdentity, u.ModifiedByID)
}

// Origin, RecordID, DisplayName and IsActive make *User a reference.Record.

func (u *User) Origin() routing.Store { return u.Store }
func (u *User) RecordID() int64       { return u.ID }
func (u *User) DisplayName() string   { return u.Email }
func (u *User) IsActive() bool        { return u.Active }

// Identifiers is the set of values a user can log in with. Empty fields are unset.
type Identifiers struct {
	Email        string
	Username     string
	BadgeBarcode string
	BadgeRFID    string
}

// Identifier is one set login value.
type Identifier struct {
	Field string
	Value string
}

// Set returns the non-empty identifiers in a fixed order.
func (ids Identifiers) Set() []Identifier {
	out := make([]Identifier, 0, 4)
	for _, id := range []Identifier{
		{FieldEmail, ids.Email},
		{FieldUsername, ids.Username},
		{FieldBadgeBarcode, ids.BadgeBarcode},
		{FieldBadgeRFID, ids.BadgeRFID},
	} {
		if id.Value != "" {
			out = append(out, id)
		}
	}
	return out
}

// Empty reports whether no identifier is set.
func (ids Identifiers) Empty() bool { return len(ids.Set()) == 0 }

// NormalizeEmail trims and lower-cases s and checks its structure.
func NormalizeEmail(s string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(s))
	if e == "" {
		return "", ErrEmailRequired
	}
	if !WellFormedEmail(e) {
		return "", ErrInvalidEmail
	}
	return e, nil
}

// NormalizeIdentifier trims surrounding whitespace. Case is kept as entered; comparisons fold it.
func NormalizeIdentifier(s string) string { return strings.TrimSpace(s) }

// SameIdentifier compares two identifier values the way the storage indexes do: both sides
// lower-cased, then compared exactly. strings.EqualFold is looser (it matches "ſ" with "s").
func SameIdentifier(a, b string) bool { return strings.ToLower(a) == strings.ToLower(b) }

// WellFormedEmail is a structural check: a non-empty local part, a single "@" and a domain
// with at least one dot and no empty labels.
func WellFormedEmail(e string) bool {
	if strings.ContainsAny(e, " \t\r\n") || strings.Count(e, "@") != 1 {
		return false
	}
	local, host, _ := strings.Cut(e, "@")
	if local == "" || !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return false
		}
	}
	return true
}
