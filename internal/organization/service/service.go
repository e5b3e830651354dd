// Package service manages organizations and their contacts.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gwiit/backend/internal/audit"
	auditdomain "gwiit/backend/internal/audit/domain"
	"gwiit/backend/internal/organization/domain"
	"gwiit/backend/internal/routing"
)

// OrgRepo is the organization repository the service needs.
type OrgRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Organization, error)
	GetByName(ctx context.Context, name string) (*domain.Organization, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Organization, error)
	Create(ctx context.Context, o *domain.Organization) error
	Update(ctx context.Context, o *domain.Organization) error
	Delete(ctx context.Context, id int64) error
	CreateContact(ctx context.Context, c *domain.Contact) error
	ListContacts(ctx context.Context, orgID int64) ([]*domain.Contact, error)
	CountContacts(ctx context.Context, orgID int64) (int, error)
}

// DependentCounter counts records in another store that reference an organization.
type DependentCounter interface {
	CountByOrganization(ctx context.Context, orgID int64) (int, error)
}

// CreateInput holds the fields of a new organization.
type CreateInput struct {
	Name             string
	Description      string
	ClassificationID int64
	LoginPolicy      *domain.LoginPolicy
	MFARequired      bool
	CreatedByID      int64
}

// Patch is a sparse organization update.
type Patch struct {
	Name             *string
	Description      *string
	ClassificationID *int64
	Active           *bool
	LoginPolicy      *domain.LoginPolicy
	MFARequired      *bool
	ModifiedByID     int64
}

// Service implements organization operations.
type Service struct {
	repo  OrgRepo
	sites DependentCounter
	users DependentCounter
	audit audit.AuditLogger
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewService returns an organization service. sites and users count dependents in their own
// stores before a delete; either may be nil when that store is not part of the deployment.
func NewService(repo OrgRepo, sites, users DependentCounter, auditLogger audit.AuditLogger, log logrus.FieldLogger) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{repo: repo, sites: sites, users: users, audit: auditLogger, log: log.WithField("component", "organization_service"), now: time.Now}
}

// Create stores a new active organization. Names are unique across all organizations, active
// or not.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Organization, error) {
	now := s.now().UTC()
	o := &domain.Organization{
		Name:             in.Name,
		Description:      in.Description,
		ClassificationID: in.ClassificationID,
		Active:           true,
		LoginPolicy:      in.LoginPolicy,
		MFARequired:      in.MFARequired,
		CreatedAt:        now,
		CreatedByID:      in.CreatedByID,
		UpdatedAt:        now,
		ModifiedByID:     in.CreatedByID,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, o.Name, 0); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	s.record(ctx, in.CreatedByID, auditdomain.ActionCreate, o.ID, map[string]any{"name": o.Name})
	return o, nil
}

// Get returns the organization with id or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Organization, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// List returns organizations ordered by name.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]*domain.Organization, error) {
	return s.repo.List(ctx, activeOnly)
}

// Update applies p. A new login policy replaces the stored one as a whole.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (*domain.Organization, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		o.Name = *p.Name
	}
	if p.Description != nil {
		o.Description = *p.Description
	}
	if p.ClassificationID != nil {
		o.ClassificationID = *p.ClassificationID
	}
	if p.Active != nil {
		o.Active = *p.Active
	}
	if p.LoginPolicy != nil {
		o.LoginPolicy = p.LoginPolicy
	}
	if p.MFARequired != nil {
		o.MFARequired = *p.MFARequired
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if p.Name != nil {
		if err := s.ensureNameFree(ctx, o.Name, o.ID); err != nil {
			return nil, err
		}
	}
	o.UpdatedAt = s.now().UTC()
	o.ModifiedByID = p.ModifiedByID
	if err := s.repo.Update(ctx, o); err != nil {
		return nil, err
	}
	s.record(ctx, p.ModifiedByID, auditdomain.ActionUpdate, o.ID, nil)
	return o, nil
}

// Delete removes an organization nothing references. Sites, users and contacts are counted in
// their own stores; if any remain the delete is refused with a *domain.DependentsError.
// The counts and the delete are not atomic across stores.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	dep := &domain.DependentsError{}
	var err error
	if s.sites != nil {
		if dep.Sites, err = s.sites.CountByOrganization(ctx, id); err != nil {
			return fmt.Errorf("count sites: %w", err)
		}
	}
	if s.users != nil {
		if dep.Users, err = s.users.CountByOrganization(ctx, id); err != nil {
			return fmt.Errorf("count users: %w", err)
		}
	}
	if dep.Contacts, err = s.repo.CountContacts(ctx, id); err != nil {
		return fmt.Errorf("count contacts: %w", err)
	}
	if dep.Any() {
		s.log.WithFields(logrus.Fields{
			"organization_id": id, "sites": dep.Sites, "users": dep.Users, "contacts": dep.Contacts,
		}).Info("organization delete refused: dependents remain")
		return dep
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, auditdomain.ActionDelete, id, nil)
	return nil
}

// AddContact attaches a contact to an existing organization.
func (s *Service) AddContact(ctx context.Context, orgID int64, c domain.Contact) (*domain.Contact, error) {
	if _, err := s.Get(ctx, orgID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c.OrganizationID = orgID
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.CreatedAt, c.UpdatedAt = now, now
	if c.ModifiedByID == 0 {
		c.ModifiedByID = c.CreatedByID
	}
	if err := s.repo.CreateContact(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Contacts lists the contacts of an organization.
func (s *Service) Contacts(ctx context.Context, orgID int64) ([]*domain.Contact, error) {
	return s.repo.ListContacts(ctx, orgID)
}

func (s *Service) ensureNameFree(ctx context.Context, name string, self int64) error {
	existing, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return domain.ErrNameTaken
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor int64, action string, id int64, meta map[string]any) {
	s.audit.LogEvent(ctx, audit.Event{
		ActorID:  actor,
		Action:   action,
		Domain:   routing.DomainOrganization,
		RecordID: id,
		Metadata: meta,
	})
}
