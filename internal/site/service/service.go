// Package service manages sites. A site's organization lives in another store; by default the
// reference is stored as given and resolved lazily.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"gwiit/backend/internal/audit"
	auditdomain "gwiit/backend/internal/audit/domain"
	"gwiit/backend/internal/reference"
	"gwiit/backend/internal/routing"
	"gwiit/backend/internal/site/domain"
)

// SiteRepo is the site repository the service needs.
type SiteRepo interface {
	Origin() routing.Store
	GetByID(ctx context.Context, id int64) (*domain.Site, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*domain.Site, error)
	Create(ctx context.Context, s *domain.Site) error
	Update(ctx context.Context, s *domain.Site) error
	Delete(ctx context.Context, id int64) error
}

// Resolver dereferences cross-store references. *reference.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, ref reference.Ref, opts ...reference.ResolveOption) (reference.Record, bool, error)
	Follow(ctx context.Context, from routing.Placed, ref reference.Ref, opts ...reference.ResolveOption) (reference.Record, bool, error)
}

// Config tunes the service.
type Config struct {
	// StrictReferences resolves the organization through the relation gate before every write
	// that sets it; a missing or denied organization aborts the write.
	StrictReferences bool
}

// CreateInput holds the fields of a new site.
type CreateInput struct {
	Name           string
	OrganizationID int64
	Type           string
	Address        string
	CreatedByID    int64
}

// Patch is a sparse site update.
type Patch struct {
	Name           *string
	OrganizationID *int64
	Type           *string
	Address        *string
	Active         *bool
	ModifiedByID   int64
}

// Service implements site operations.
type Service struct {
	repo     SiteRepo
	resolver Resolver
	strict   bool
	audit    audit.AuditLogger
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService returns a site service. resolver may be nil when StrictReferences is off; the
// Organization accessor then reports not found.
func NewService(repo SiteRepo, resolver Resolver, auditLogger audit.AuditLogger, log logrus.FieldLogger, cfg Config) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		strict:   cfg.StrictReferences,
		audit:    auditLogger,
		log:      log.WithField("component", "site_service"),
		now:      time.Now,
	}
}

// Create stores a new active site.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Site, error) {
	now := s.now().UTC()
	site := &domain.Site{
		Name:           in.Name,
		OrganizationID: in.OrganizationID,
		Type:           in.Type,
		Address:        in.Address,
		Active:         true,
		CreatedAt:      now,
		CreatedByID:    in.CreatedByID,
		UpdatedAt:      now,
		ModifiedByID:   in.CreatedByID,
		Store:          s.repo.Origin(),
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkOrganization(ctx, site); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, site); err != nil {
		return nil, err
	}
	s.record(ctx, in.CreatedByID, auditdomain.ActionCreate, site.ID, map[string]any{"organization_id": site.OrganizationID})
	return site, nil
}

// Get returns the site with id or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Site, error) {
	site, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, domain.ErrNotFound
	}
	return site, nil
}

// ListByOrganization returns the sites that reference orgID.
func (s *Service) ListByOrganization(ctx context.Context, orgID int64) ([]*domain.Site, error) {
	return s.repo.ListByOrganization(ctx, orgID)
}

// Update applies p.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (*domain.Site, error) {
	site, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		site.Name = *p.Name
	}
	if p.OrganizationID != nil {
		site.OrganizationID = *p.OrganizationID
	}
	if p.Type != nil {
		site.Type = *p.Type
	}
	if p.Address != nil {
		site.Address = *p.Address
	}
	if p.Active != nil {
		site.Active = *p.Active
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	if p.OrganizationID != nil {
		if err := s.checkOrganization(ctx, site); err != nil {
			return nil, err
		}
	}
	site.UpdatedAt = s.now().UTC()
	site.ModifiedByID = p.ModifiedByID
	if err := s.repo.Update(ctx, site); err != nil {
		return nil, err
	}
	s.record(ctx, p.ModifiedByID, auditdomain.ActionUpdate, site.ID, nil)
	return site, nil
}

// Delete removes a site. Users that reference it are left dangling.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, auditdomain.ActionDelete, id, nil)
	return nil
}

// Organization resolves the site's organization. found is false for dangling ids.
func (s *Service) Organization(ctx context.Context, site *domain.Site) (reference.Record, bool, error) {
	if s.resolver == nil {
		return nil, false, nil
	}
	return s.resolver.Resolve(ctx, site.OrganizationRef())
}

func (s *Service) checkOrganization(ctx context.Context, site *domain.Site) error {
	if !s.strict {
		return nil
	}
	if s.resolver == nil {
		return fmt.Errorf("strict references need a resolver")
	}
	_, found, err := s.resolver.Follow(ctx, site, site.OrganizationRef())
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", domain.ErrOrganizationNotFound, site.OrganizationID)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor int64, action string, id int64, meta map[string]any) {
	s.audit.LogEvent(ctx, audit.Event{
		ActorID:  actor,
		Action:   action,
		Domain:   routing.DomainSite,
		RecordID: id,
		Metadata: meta,
	})
}
