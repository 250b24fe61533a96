package services

import (
	"context"
	"errors"
	"log"

	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/adapters/persistence/repositories"
	"ssc-carecard/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the monetary result of a discount resolution
type Breakdown struct {
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
	Final      decimal.Decimal `json:"final"`
}

// ResolveRate picks the effective discount rate: the site override when the
// site defines one, otherwise the global default. An expired card gets zero
// unless policy says expired cards still qualify. That is policy, not an error.
func ResolveRate(settings *models.DiscountSettings, site *models.Site, cardExpired bool) decimal.Decimal {
	if cardExpired && !settings.ApplyToExpired {
		return decimal.Zero
	}
	if site != nil && site.DiscountRate != nil {
		return *site.DiscountRate
	}
	return settings.DefaultRate
}

// ComputeBreakdown turns a rate and an original amount into the committed
// monetary breakdown. Round-half-up to 2 decimals on the discount amount;
// final is derived by subtraction and never rounded independently, so
// final + amount == original holds exactly.
func ComputeBreakdown(rate decimal.Decimal, original decimal.Decimal) Breakdown {
	amount := original.Mul(rate).Div(hundred).Round(2)
	return Breakdown{
		Percentage: rate,
		Amount:     amount,
		Final:      original.Sub(amount),
	}
}

// DiscountService resolves discounts against the explicitly-loaded settings
// row. Resolution itself is pure; only loading settings and looking up the
// site touch storage, and nothing here ever writes or consumes a counter.
// Previews are free.
type DiscountService struct {
	settingsRepo *repositories.SettingsRepository
	siteRepo     *repositories.SiteRepository
	authz        Authorizer
}

// NewDiscountService creates a new discount service
func NewDiscountService(
	settingsRepo *repositories.SettingsRepository,
	siteRepo *repositories.SiteRepository,
	authz Authorizer,
) *DiscountService {
	return &DiscountService{
		settingsRepo: settingsRepo,
		siteRepo:     siteRepo,
		authz:        authz,
	}
}

// Preview resolves the discount breakdown for an amount without touching any
// counter or persisted state. siteCode may be empty (global default rate).
func (s *DiscountService) Preview(ctx context.Context, originalAmount decimal.Decimal, siteCode string) (*Breakdown, error) {
	if originalAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	var site *models.Site
	if siteCode != "" {
		site, err = s.siteRepo.GetByCode(ctx, siteCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrSiteNotFound
			}
			return nil, err
		}
	}

	breakdown := ComputeBreakdown(ResolveRate(settings, site, false), originalAmount)
	return &breakdown, nil
}

// GetSettings returns the current discount settings
func (s *DiscountService) GetSettings(ctx context.Context) (*models.DiscountSettings, error) {
	return s.settingsRepo.Get(ctx)
}

// UpdateSettings replaces the program-wide discount configuration.
// Privileged: gated by the injected Authorizer.
func (s *DiscountService) UpdateSettings(ctx context.Context, p Principal, defaultRate decimal.Decimal, applyToExpired bool) (*models.DiscountSettings, error) {
	if !s.authz.Allow(p, ActionManageSettings) {
		return nil, domain.ErrForbidden
	}
	if defaultRate.LessThan(decimal.Zero) || defaultRate.GreaterThan(hundred) {
		return nil, domain.ErrInvalidInput
	}

	settings, err := s.settingsRepo.Update(ctx, defaultRate, applyToExpired)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Discount settings updated by %s: default_rate=%s apply_to_expired=%t (v%d)",
		p.Username, settings.DefaultRate, settings.ApplyToExpired, settings.Version)
	return settings, nil
}
