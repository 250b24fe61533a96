package services

import (
	"context"
	"errors"
	"log"

	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/adapters/persistence/repositories"
	"ssc-carecard/internal/core/domain"
	"ssc-carecard/internal/pkg/serial"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// codeAttempts bounds the trial-generation loop for site codes. With a
// 32^4 code space a handful of attempts is plenty; exhausting them means
// the program has far outgrown the format.
const codeAttempts = 5

// SiteService manages partner sites
type SiteService struct {
	siteRepo *repositories.SiteRepository
	authz    Authorizer
}

// NewSiteService creates a new site service
func NewSiteService(siteRepo *repositories.SiteRepository, authz Authorizer) *SiteService {
	return &SiteService{siteRepo: siteRepo, authz: authz}
}

// CreateSiteInput represents a site registration request
type CreateSiteInput struct {
	Name         string           `json:"name"`
	TownCode     string           `json:"town_code"`
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
}

// Create registers a partner site. The public code is the one identifier
// class generated by trial rather than a counter: generate, check, insert,
// and retry on collision.
func (s *SiteService) Create(ctx context.Context, p Principal, input *CreateSiteInput) (*models.Site, error) {
	if !s.authz.Allow(p, ActionManageSites) {
		return nil, domain.ErrForbidden
	}

	// 1. Validate input
	if input.Name == "" || !serial.ValidTownCode(input.TownCode) {
		return nil, domain.ErrInvalidInput
	}
	if input.DiscountRate != nil {
		if input.DiscountRate.LessThan(decimal.Zero) || input.DiscountRate.GreaterThan(decimal.NewFromInt(100)) {
			return nil, domain.ErrInvalidInput
		}
	}

	// 2. Trial-generate a free code
	var lastErr error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := serial.RandomSiteCode()
		if err != nil {
			return nil, err
		}

		taken, err := s.siteRepo.ExistsByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		site := &models.Site{
			Code:         code,
			Name:         input.Name,
			TownCode:     input.TownCode,
			DiscountRate: input.DiscountRate,
			Status:       models.SiteActive,
		}
		if err := s.siteRepo.Create(ctx, site); err != nil {
			// Another request inserted the same code between our check
			// and insert; try a fresh one
			lastErr = err
			continue
		}

		log.Printf("✅ Site registered: %s (%s, town %s)", site.Code, site.Name, site.TownCode)
		return site, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, domain.ErrDuplicateEntry
}

// GetByCode gets a site by its public code
func (s *SiteService) GetByCode(ctx context.Context, code string) (*models.Site, error) {
	site, err := s.siteRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSiteNotFound
		}
		return nil, err
	}
	return site, nil
}

// List lists all sites
func (s *SiteService) List(ctx context.Context) ([]*models.Site, error) {
	return s.siteRepo.List(ctx)
}

// UpdateSiteInput represents a site update request
type UpdateSiteInput struct {
	Name         *string          `json:"name,omitempty"`
	Status       *string          `json:"status,omitempty"`
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
	ClearRate    bool             `json:"clear_rate,omitempty"`
}

// Update mutates a site's name, status, or discount override.
// Code and town code are immutable once issued.
func (s *SiteService) Update(ctx context.Context, p Principal, code string, input *UpdateSiteInput) (*models.Site, error) {
	if !s.authz.Allow(p, ActionManageSites) {
		return nil, domain.ErrForbidden
	}

	site, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, domain.ErrInvalidInput
		}
		site.Name = *input.Name
	}
	if input.Status != nil {
		switch *input.Status {
		case models.SiteActive, models.SiteInactive, models.SiteSuspended:
			site.Status = *input.Status
		default:
			return nil, domain.ErrInvalidInput
		}
	}
	if input.ClearRate {
		site.DiscountRate = nil
	} else if input.DiscountRate != nil {
		if input.DiscountRate.LessThan(decimal.Zero) || input.DiscountRate.GreaterThan(decimal.NewFromInt(100)) {
			return nil, domain.ErrInvalidInput
		}
		site.DiscountRate = input.DiscountRate
	}

	if err := s.siteRepo.Update(ctx, site); err != nil {
		return nil, err
	}

	log.Printf("✅ Site updated: %s (status %s)", site.Code, site.Status)
	return site, nil
}
