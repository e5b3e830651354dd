package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
)

var (
	ErrNotFound      = errors.New("organization not found")
	ErrNameRequired  = errors.New("organization name is required")
	ErrNameTaken     = errors.New("organization name is already taken")
	ErrHasDependents = errors.New("organization still has dependents")
)

// DependentsError reports what still references an organization that was asked to be deleted.
type DependentsError struct {
	Sites    int
	Users    int
	Contacts int
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("organization still has dependents: %d sites, %d users, %d contacts", e.Sites, e.Users, e.Contacts)
}

func (e *DependentsError) Is(target error) bool { return target == ErrHasDependents }

// Any reports whether anything references the organization.
func (e *DependentsError) Any() bool { return e.Sites+e.Users+e.Contacts > 0 }

// Organization is a tenant. It lives in the store the organization domain routes to.
type Organization struct {
	ID               int64
	Name             string
	Description      string
	ClassificationID int64
	Active           bool
	LoginPolicy      *LoginPolicy
	MFARequired      bool
	CreatedAt        time.Time
	CreatedByID      int64
	UpdatedAt        time.Time
	ModifiedByID     int64

	Store routing.Store
}

// Validate validates the organization for persistence.
func (o *Organization) Validate() error {
	o.Name = strings.TrimSpace(o.Name)
	if o.Name == "" {
		return ErrNameRequired
	}
	if len(o.Name) > 255 {
		return fmt.Errorf("organization name longer than 255 characters")
	}
	return nil
}

// AllowsLogin reports whether members may log in with the given identifier field. Unset
// policy entries allow.
func (o *Organization) AllowsLogin(method string) bool {
	return MergeWithDefaults(o.LoginPolicy).Allows(method)
}

func (o *Organization) CreatedByRef() reference.Ref {
	return reference.To(routing.DomainIdentity, o.CreatedByID)
}

func (o *Organization) ModifiedByRef() reference.Ref {
	return reference.To(routing.DomainIdentity, o.ModifiedByID)
}

func (o *Organization) Origin() routing.Store { return o.Store }
func (o *Organization) RecordID() int64       { return o.ID }
func (o *Organization) DisplayName() string   { return o.Name }
func (o *Organization) IsActive() bool        { return o.Active }

// Contact is a person attached to an organization.
type Contact struct {
	ID             int64
	OrganizationID int64
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Address        string
	Role           string
	CreatedAt      time.Time
	CreatedByID    int64
	UpdatedAt      time.Time
	ModifiedByID   int64
}

// FullName joins first and last name.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
