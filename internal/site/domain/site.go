package domain

import (
	"errors"
	"strings"
	"time"

	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
)

var (
	ErrNotFound             = errors.New("site not found")
	ErrNameRequired         = errors.New("site name is required")
	ErrOrganizationRequired = errors.New("site organization is required")
	ErrOrganizationNotFound = errors.New("site organization does not exist")
)

// Site is a physical location of an organization. OrganizationID points into another store and
// is not a foreign key.
type Site struct {
	ID             int64
	Name           string
	OrganizationID int64
	Type           string
	Address        string
	Active         bool
	CreatedAt      time.Time
	CreatedByID    int64
	UpdatedAt      time.Time
	ModifiedByID   int64

	Store routing.Store
}

// Validate validates the site for persistence.
func (s *Site) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return ErrNameRequired
	}
	if s.OrganizationID <= 0 {
		return ErrOrganizationRequired
	}
	return nil
}

func (s *Site) OrganizationRef() reference.Ref {
	return reference.To(routing.DomainOrganization, s.OrganizationID)
}

func (s *Site) Origin() routing.Store { return s.Store }
func (s *Site) RecordID() int64       { return s.ID }
func (s *Site) DisplayName() string   { return s.Name }
func (s *Site) IsActive() bool        { return s.Active }
