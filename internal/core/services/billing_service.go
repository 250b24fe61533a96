package services

import (
	"context"
	"errors"
	"log"
	"time"

	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/adapters/persistence/repositories"
	"ssc-carecard/internal/core/domain"
	"ssc-carecard/internal/pkg/serial"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// readRetries bounds transparent retries of read-only steps on transient
// store failures. The allocate-and-persist step is never retried blindly.
const readRetries = 3

// BillingService orchestrates a billing event: verify card, check site,
// resolve discount, allocate receipt number, persist the immutable record.
// Validation (steps 1-3) always completes before the counter is touched, so
// a rejected request never burns a receipt number.
type BillingService struct {
	cardService  *CardService
	siteRepo     *repositories.SiteRepository
	settingsRepo *repositories.SettingsRepository
	counterRepo  *repositories.CounterRepository
	txRepo       *repositories.TransactionRepository
	authz        Authorizer
}

// NewBillingService creates a new billing service
func NewBillingService(
	cardService *CardService,
	siteRepo *repositories.SiteRepository,
	settingsRepo *repositories.SettingsRepository,
	counterRepo *repositories.CounterRepository,
	txRepo *repositories.TransactionRepository,
	authz Authorizer,
) *BillingService {
	return &BillingService{
		cardService:  cardService,
		siteRepo:     siteRepo,
		settingsRepo: settingsRepo,
		counterRepo:  counterRepo,
		txRepo:       txRepo,
		authz:        authz,
	}
}

// CreateTransactionInput represents a billing request
type CreateTransactionInput struct {
	Serial          string          `json:"serial"`
	SiteCode        string          `json:"site_code"`
	ItemDescription string          `json:"item_description"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	// RequestID is the client-supplied idempotency key. Retrying with the
	// same key returns the original transaction instead of billing twice.
	RequestID string `json:"request_id"`
}

// CreateTransaction runs the billing workflow as one logical unit.
//
// If persistence fails after the receipt number was allocated, the number is
// burned: gaps in the receipt sequence are acceptable, duplicates are not.
func (s *BillingService) CreateTransaction(ctx context.Context, p Principal, input *CreateTransactionInput) (*models.Transaction, error) {
	if !s.authz.Allow(p, ActionBill) {
		return nil, domain.ErrForbidden
	}

	// 0. Validate input
	if input.Serial == "" || input.SiteCode == "" || input.ItemDescription == "" {
		return nil, domain.ErrInvalidInput
	}
	if input.OriginalAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}

	// 1. Idempotency: a replayed request must not allocate a second receipt
	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	} else if existing, err := s.txRepo.GetByRequestID(ctx, requestID); err != nil {
		return nil, err
	} else if existing != nil {
		log.Printf("ℹ️ Billing replay for request %s → %s", requestID, existing.ReceiptNumber)
		return existing, nil
	}

	// 2. Verify the card (retried on transient store failure; pure read)
	var verify *VerifyResult
	err := s.withReadRetry(func() error {
		var err error
		verify, err = s.cardService.Verify(ctx, input.Serial)
		return err
	})
	if err != nil {
		return nil, err
	}

	cardExpired := false
	if !verify.Valid {
		switch verify.Reason {
		case domain.ReasonCardExpired:
			// Expired cards stay billable; whether they still get a
			// discount is the apply_to_expired policy decided below.
			cardExpired = true
		case domain.ReasonCardNotFound:
			return nil, domain.ErrCardNotFound
		case domain.ReasonHolderInactive:
			return nil, domain.ErrHolderInactive
		case domain.ReasonCardLost:
			return nil, domain.ErrCardLost
		default:
			return nil, domain.ErrCardNotActive
		}
	}
	card := verify.Card

	// 3. Site must exist and be ACTIVE
	site, err := s.siteRepo.GetByCode(ctx, input.SiteCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSiteNotFound
		}
		return nil, err
	}
	if site.Status != models.SiteActive {
		return nil, domain.ErrSiteInactive
	}

	// 4. Resolve the discount breakdown
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	breakdown := ComputeBreakdown(ResolveRate(settings, site, cardExpired), input.OriginalAmount)

	// 5. Allocate the receipt number. Everything before this point is
	// side-effect free; everything after must not be blindly retried.
	now := time.Now()
	seq, err := s.counterRepo.Next(ctx, serial.ReceiptScopeKey(now))
	if err != nil {
		return nil, err
	}
	receiptNumber, err := serial.ReceiptNumber(now, seq)
	if err != nil {
		if errors.Is(err, serial.ErrFieldOverflow) {
			return nil, domain.ErrSequenceExhausted
		}
		return nil, err
	}

	// 6. Persist the immutable transaction record
	tx := &models.Transaction{
		ReceiptNumber:      receiptNumber,
		RequestID:          requestID,
		CardID:             card.ID,
		SiteID:             site.ID,
		CardSerial:         card.SerialNumber,
		SiteCode:           site.Code,
		ItemDescription:    input.ItemDescription,
		OriginalAmount:     input.OriginalAmount.Round(2),
		DiscountPercentage: breakdown.Percentage,
		DiscountAmount:     breakdown.Amount,
		FinalAmount:        breakdown.Final,
		SettingsVersion:    settings.Version,
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		// A concurrent request with the same idempotency key won the
		// race; return its transaction and burn our receipt number.
		if existing, lookupErr := s.txRepo.GetByRequestID(ctx, requestID); lookupErr == nil && existing != nil {
			log.Printf("⚠️ Burned receipt %s: request %s already committed as %s",
				receiptNumber, requestID, existing.ReceiptNumber)
			return existing, nil
		}
		return nil, err
	}

	log.Printf("✅ Transaction %s: %s at %s, %s%% off %s",
		tx.ReceiptNumber, tx.CardSerial, tx.SiteCode, tx.DiscountPercentage, tx.OriginalAmount)
	return tx, nil
}

// GetByReceipt returns a transaction by receipt number
func (s *BillingService) GetByReceipt(ctx context.Context, receiptNumber string) (*models.Transaction, error) {
	tx, err := s.txRepo.GetByReceipt(ctx, receiptNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// List lists transactions, optionally filtered by site
func (s *BillingService) List(ctx context.Context, siteCode string, offset, limit int) ([]*models.Transaction, int64, error) {
	return s.txRepo.List(ctx, siteCode, offset, limit)
}

// SiteDaySummary returns one site's billing totals for a day
func (s *BillingService) SiteDaySummary(ctx context.Context, siteCode string, day time.Time) (*repositories.SiteDailySummary, error) {
	if _, err := s.siteRepo.GetByCode(ctx, siteCode); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSiteNotFound
		}
		return nil, err
	}
	return s.txRepo.SummarizeSiteDay(ctx, siteCode, day)
}

// withReadRetry retries fn on transient store errors a bounded number of
// times. Only safe for idempotent reads.
func (s *BillingService) withReadRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < readRetries; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}
