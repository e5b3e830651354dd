// seed bootstraps a fresh deployment: the first privileged user plus a sample organization and
// site. Idempotent: existing records are left alone.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"gwiit/backend/internal/app"
	"gwiit/backend/internal/config"
	"gwiit/backend/internal/logger"
	orgdomain "gwiit/backend/internal/organization/domain"
	orgservice "gwiit/backend/internal/organization/service"
	"gwiit/backend/internal/security"
	siteservice "gwiit/backend/internal/site/service"
	"gwiit/backend/internal/user/domain"
)

const (
	sampleOrgName  = "Sample Organization"
	sampleSiteName = "Headquarters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.SeedAdminEmail == "" {
		log.Fatal("SEED_ADMIN_EMAIL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatalf("app: %v", err)
	}
	defer a.Close(context.Background())

	org, err := ensureOrganization(ctx, a)
	if err != nil {
		log.Fatalf("seed organization: %v", err)
	}
	site, err := ensureSite(ctx, a, org.ID)
	if err != nil {
		log.Fatalf("seed site: %v", err)
	}

	existing, err := a.Users.FindByIdentifier(ctx, cfg.SeedAdminEmail)
	switch {
	case err == nil:
		log.WithField("user_id", existing.ID).Info("admin already exists, skipping")
		return
	case !errors.Is(err, domain.ErrNotFound):
		log.Fatalf("look up admin: %v", err)
	}

	credential, err := security.GenerateCredential(cfg.CredentialLength)
	if err != nil {
		log.Fatalf("generate credential: %v", err)
	}
	res, err := a.Users.CreatePrivileged(ctx, domain.CreateInput{
		Email:          cfg.SeedAdminEmail,
		Username:       cfg.SeedAdminUsername,
		Password:       credential,
		OrganizationID: org.ID,
		SiteID:         site,
	})
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.WithFields(logrus.Fields{"user_id": res.User.ID, "notified": res.Notified}).Info("admin created")
	fmt.Printf("Admin %s created. One-time password: %s\n", res.User.Email, credential)
}

func ensureOrganization(ctx context.Context, a *app.App) (*orgdomain.Organization, error) {
	orgs, err := a.Orgs.List(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, o := range orgs {
		if o.Name == sampleOrgName {
			return o, nil
		}
	}
	return a.Orgs.Create(ctx, orgservice.CreateInput{Name: sampleOrgName, Description: "Created by seed"})
}

func ensureSite(ctx context.Context, a *app.App, orgID int64) (int64, error) {
	sites, err := a.Sites.ListByOrganization(ctx, orgID)
	if err != nil {
		return 0, err
	}
	for _, s := range sites {
		if s.Name == sampleSiteName {
			return s.ID, nil
		}
	}
	s, err := a.Sites.Create(ctx, siteservice.CreateInput{Name: sampleSiteName, OrganizationID: orgID, Type: "office"})
	if err != nil {
		return 0, err
	}
	return s.ID, nil
}
