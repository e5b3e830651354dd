package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwiit/backend/internal/routing"
)

func validUser() *User {
	return &User{Email: "a@b.com", Username: "a1", Active: true}
}

func TestNormalizeEmail(t *testing.T) {
	e, err := NormalizeEmail("  A@B.COM ")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", e)

	_, err = NormalizeEmail("   ")
	assert.ErrorIs(t, err, ErrEmailRequired)

	for _, bad := range []string{"ab.com", "a@@b.com", "a@b@c.com", "@b.com", "a@bcom", "a@.com", "a@b.", "a b@c.com"} {
		_, err := NormalizeEmail(bad)
		assert.ErrorIs(t, err, ErrInvalidEmail, bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestUser_Validate(t *testing.T) {
	require.NoError(t, validUser().Validate())

	u := validUser()
	u.Username = ""
	assert.ErrorIs(t, u.Validate(), ErrIdentifierRequired)

	u.BadgeRFID = "RF-1"
	assert.NoError(t, u.Validate())

	u = validUser()
	u.Email = ""
	assert.ErrorIs(t, u.Validate(), ErrEmailRequired)

	u = validUser()
	u.MFAPreference = "carrier_pigeon"
	var verr *ValidationError
	require.True(t, errors.As(u.Validate(), &verr))
	assert.Equal(t, "mfa_preference", verr.Field)

	u = validUser()
	u.Superuser = true
	assert.ErrorIs(t, u.Validate(), ErrPrivilegedFlags)
}

func TestUser_ValidateDefaultsMFA(t *testing.T) {
	u := validUser()
	require.NoError(t, u.Validate())
	assert.Equal(t, MFANone, u.MFAPreference)
}

func TestUser_ValidateLengths(t *testing.T) {
	u := validUser()
	u.Username = strings.Repeat("x", 31)
	var verr *ValidationError
	require.True(t, errors.As(u.Validate(), &verr))
	assert.Equal(t, "username", verr.Field)
}

func TestSameIdentifier(t *testing.T) {
	assert.True(t, SameIdentifier("Alice", "aLICE"))
	assert.True(t, SameIdentifier("", ""))
	assert.False(t, SameIdentifier("ſam", "sam"), "long s lower-cases to itself")
	assert.False(t, SameIdentifier("σ", "ς"))
}

func TestUser_Record(t *testing.T) {
	u := &User{ID: 5, Email: "a@b.com", Active: true, OrganizationID: 3, Store: routing.StoreUsers}
	assert.Equal(t, routing.StoreUsers, u.Origin())
	assert.Equal(t, int64(5), u.RecordID())
	assert.Equal(t, "a@b.com", u.DisplayName())
	assert.Equal(t, "organization:3", u.OrganizationRef().String())
	assert.True(t, u.SiteRef().IsZero())
}

func TestIdentifiers_Set(t *testing.T) {
	ids := Identifiers{Email: "a@b.com", BadgeRFID: "R1"}
	assert.Equal(t, []Identifier{{FieldEmail, "a@b.com"}, {FieldBadgeRFID, "R1"}}, ids.Set())
	assert.True(t, Identifiers{}.Empty())
}

func TestErrors(t *testing.T) {
	c := &ConflictError{Field: FieldEmail, Value: "x@y.com"}
	assert.ErrorIs(t, c, ErrConflict)
	assert.NotErrorIs(t, c, ErrValidation)
	assert.Contains(t, c.Error(), "x@y.com")
	assert.ErrorIs(t, ErrLastPrivileged, ErrConflict)
	assert.NotErrorIs(t, ErrNotFound, ErrConflict)
}

func TestPatch_TouchesPrivilegedFlags(t *testing.T) {
	assert.False(t, Patch{FirstName: Ptr("A")}.TouchesPrivilegedFlags())
	assert.False(t, Patch{Active: Ptr(true)}.TouchesPrivilegedFlags())
	assert.True(t, Patch{Staff: Ptr(false)}.TouchesPrivilegedFlags())
}
