package domain

import "time"

// CreateInput carries the fields for a new user. Password is optional; when empty a credential
// is generated. Active defaults to true when nil.
type CreateInput struct {
	Email          string
	Username       string
	BadgeBarcode   string
	BadgeRFID      string
	Password       string
	FirstName      string
	LastName       string
	Phone          string
	OrganizationID int64
	SiteID         int64
	MFAPreference  MFAPreference
	Active         *bool
	Staff          bool
	Superuser      bool
	CreatedByID    int64
}

// Patch is a sparse update: nil fields are left unchanged. An empty string clears an optional
// identifier; a zero id clears a reference.
type Patch struct {
	Email          *string
	Username       *string
	BadgeBarcode   *string
	BadgeRFID      *string
	Password       *string
	FirstName      *string
	LastName       *string
	Phone          *string
	OrganizationID *int64
	SiteID         *int64
	MFAPreference  *MFAPreference
	Active         *bool
	Staff          *bool
	Superuser      *bool
	ModifiedByID   int64
}

// TouchesPrivilegedFlags reports whether the patch tries to turn any privileged flag off.
func (p Patch) TouchesPrivilegedFlags() bool {
	return (p.Active != nil && !*p.Active) ||
		(p.Staff != nil && !*p.Staff) ||
		(p.Superuser != nil && !*p.Superuser)
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Active         *bool
	Staff          *bool
	Superuser      *bool
	OrganizationID int64
	SiteID         int64
	MFAPreference  MFAPreference
	JoinedSince    time.Time
	CreatedByID    int64
	ModifiedByID   int64
	Limit          int
	Offset         int
}

// Ptr returns a pointer to v; handy for building patches and filters.
func Ptr[T any](v T) *T { return &v }
