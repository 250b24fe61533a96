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

	"gorm.io/gorm"
)

// CardService governs the card lifecycle: issuance, verification with lazy
// expiry, administrative transitions, renewal, and the holder cascade
type CardService struct {
	cardRepo    *repositories.CardRepository
	holderRepo  *repositories.HolderRepository
	counterRepo *repositories.CounterRepository
	authz       Authorizer
}

// NewCardService creates a new card service
func NewCardService(
	cardRepo *repositories.CardRepository,
	holderRepo *repositories.HolderRepository,
	counterRepo *repositories.CounterRepository,
	authz Authorizer,
) *CardService {
	return &CardService{
		cardRepo:    cardRepo,
		holderRepo:  holderRepo,
		counterRepo: counterRepo,
		authz:       authz,
	}
}

// IssueCardInput represents a card issuance request
type IssueCardInput struct {
	HolderID   uint      `json:"holder_id"`
	TownCode   string    `json:"town_code"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// IssueCard allocates a serial from the (year, month, town) counter, formats
// it, and creates the card. Validation happens before the counter call so a
// rejected request never consumes a sequence value.
func (s *CardService) IssueCard(ctx context.Context, p Principal, input *IssueCardInput) (*models.Card, error) {
	if !s.authz.Allow(p, ActionIssueCard) {
		return nil, domain.ErrForbidden
	}

	// 1. Validate input
	if !serial.ValidTownCode(input.TownCode) {
		return nil, domain.ErrInvalidInput
	}
	now := time.Now()
	if !input.ExpiryDate.After(now) {
		return nil, domain.ErrInvalidInput
	}

	// 2. Holder must exist and be active
	holder, err := s.holderRepo.GetByID(ctx, input.HolderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrHolderNotFound
		}
		return nil, err
	}
	if !holder.IsActive {
		return nil, domain.ErrHolderInactive
	}

	// 3. Allocate the next serial for this month and town
	seq, err := s.counterRepo.Next(ctx, serial.CardScopeKey(now, input.TownCode))
	if err != nil {
		return nil, err
	}

	serialNumber, err := serial.CardSerial(now, input.TownCode, seq)
	if err != nil {
		if errors.Is(err, serial.ErrFieldOverflow) {
			return nil, domain.ErrSequenceExhausted
		}
		return nil, err
	}

	// 4. Create the card
	card := &models.Card{
		SerialNumber: serialNumber,
		Status:       models.CardActive,
		TownCode:     input.TownCode,
		IssueDate:    now,
		ExpiryDate:   input.ExpiryDate,
		HolderID:     holder.ID,
	}
	if err := s.cardRepo.Create(ctx, card); err != nil {
		return nil, err
	}
	card.Holder = *holder

	log.Printf("✅ Card issued: %s (holder %d, town %s)", card.SerialNumber, holder.ID, input.TownCode)
	return card, nil
}

// VerifyResult is what verification returns: never a bare boolean, always a
// status and, on rejection, a machine-readable reason
type VerifyResult struct {
	Valid      bool       `json:"valid"`
	Reason     string     `json:"reason,omitempty"`
	Status     string     `json:"status,omitempty"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Card       *models.Card
}

// Verify is the single read path other components use to check a card.
// It applies the lazy expiry transition: an ACTIVE card past its expiry date
// is persisted as EXPIRED on first observation, so later reads see the
// stored status without re-evaluating the date.
func (s *CardService) Verify(ctx context.Context, serialNumber string) (*VerifyResult, error) {
	card, err := s.cardRepo.GetBySerial(ctx, serialNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &VerifyResult{Valid: false, Reason: domain.ReasonCardNotFound}, nil
		}
		return nil, err
	}

	result := &VerifyResult{
		Status:     card.Status,
		ExpiryDate: &card.ExpiryDate,
		Card:       card,
	}

	// Lazy expiry: persist the transition the first time it is observed
	if card.Status == models.CardActive && card.IsPastExpiry(time.Now()) {
		if err := s.cardRepo.UpdateStatus(ctx, card.ID, models.CardExpired); err != nil {
			return nil, err
		}
		card.Status = models.CardExpired
		result.Status = models.CardExpired
		log.Printf("ℹ️ Card %s observed past expiry, marked EXPIRED", card.SerialNumber)
	}

	if !card.Holder.IsActive {
		result.Reason = domain.ReasonHolderInactive
		return result, nil
	}

	switch card.Status {
	case models.CardActive:
		result.Valid = true
	case models.CardExpired:
		result.Reason = domain.ReasonCardExpired
	case models.CardLost:
		result.Reason = domain.ReasonCardLost
	default:
		result.Reason = domain.ReasonCardInactive
	}
	return result, nil
}

// GetBySerial returns a card by serial number
func (s *CardService) GetBySerial(ctx context.Context, serialNumber string) (*models.Card, error) {
	card, err := s.cardRepo.GetBySerial(ctx, serialNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

// List lists cards with pagination
func (s *CardService) List(ctx context.Context, offset, limit int) ([]*models.Card, int64, error) {
	return s.cardRepo.List(ctx, offset, limit)
}

// Suspend moves an ACTIVE card to INACTIVE (administrative hold).
// An EXPIRED card reports expiry, not a generic state error: the caller's
// remedy is renewal, not waiting out the hold.
func (s *CardService) Suspend(ctx context.Context, p Principal, serialNumber string) (*models.Card, error) {
	return s.transition(ctx, p, serialNumber, func(card *models.Card) (string, error) {
		if card.Status == models.CardExpired {
			return "", domain.ErrCardExpired
		}
		if card.Status != models.CardActive {
			return "", domain.ErrCardNotActive
		}
		return models.CardInactive, nil
	})
}

// Reactivate moves an INACTIVE card back to ACTIVE, provided the holder is
// active and the card has not passed its expiry date in the meantime (in
// which case it becomes EXPIRED instead)
func (s *CardService) Reactivate(ctx context.Context, p Principal, serialNumber string) (*models.Card, error) {
	return s.transition(ctx, p, serialNumber, func(card *models.Card) (string, error) {
		if card.Status == models.CardExpired {
			return "", domain.ErrCardExpired
		}
		if card.Status != models.CardInactive {
			return "", domain.ErrCardNotActive
		}
		if !card.Holder.IsActive {
			return "", domain.ErrHolderInactive
		}
		if card.IsPastExpiry(time.Now()) {
			return models.CardExpired, nil
		}
		return models.CardActive, nil
	})
}

// ReportLost moves an ACTIVE card to LOST
func (s *CardService) ReportLost(ctx context.Context, p Principal, serialNumber string) (*models.Card, error) {
	return s.transition(ctx, p, serialNumber, func(card *models.Card) (string, error) {
		if card.Status == models.CardExpired {
			return "", domain.ErrCardExpired
		}
		if card.Status != models.CardActive {
			return "", domain.ErrCardNotActive
		}
		return models.CardLost, nil
	})
}

// Renew moves a card from any state back to ACTIVE with a new future expiry
// date. This is the only way out of EXPIRED and LOST.
func (s *CardService) Renew(ctx context.Context, p Principal, serialNumber string, newExpiry time.Time) (*models.Card, error) {
	if !s.authz.Allow(p, ActionManageCards) {
		return nil, domain.ErrForbidden
	}
	if !newExpiry.After(time.Now()) {
		return nil, domain.ErrInvalidInput
	}

	card, err := s.cardRepo.GetBySerial(ctx, serialNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	if !card.Holder.IsActive {
		return nil, domain.ErrHolderInactive
	}

	if err := s.cardRepo.Renew(ctx, card.ID, newExpiry); err != nil {
		return nil, err
	}
	card.Status = models.CardActive
	card.ExpiryDate = newExpiry

	log.Printf("✅ Card renewed: %s until %s", card.SerialNumber, newExpiry.Format("2006-01-02"))
	return card, nil
}

// DeactivateHolder marks the holder inactive and forces all their cards to
// INACTIVE regardless of current state
func (s *CardService) DeactivateHolder(ctx context.Context, p Principal, holderID uint) error {
	if !s.authz.Allow(p, ActionManageHolders) {
		return domain.ErrForbidden
	}

	if _, err := s.holderRepo.GetByID(ctx, holderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrHolderNotFound
		}
		return err
	}

	if err := s.holderRepo.SetActive(ctx, holderID, false); err != nil {
		return err
	}

	allStates := []string{models.CardActive, models.CardInactive, models.CardExpired, models.CardLost}
	if err := s.cardRepo.UpdateStatusByHolder(ctx, holderID, allStates, models.CardInactive); err != nil {
		return err
	}

	log.Printf("🛑 Holder %d deactivated, cards forced INACTIVE", holderID)
	return nil
}

// ReactivateHolder marks the holder active again. Their INACTIVE cards go
// back to ACTIVE only if still within expiry; otherwise they become EXPIRED.
func (s *CardService) ReactivateHolder(ctx context.Context, p Principal, holderID uint) error {
	if !s.authz.Allow(p, ActionManageHolders) {
		return domain.ErrForbidden
	}

	if _, err := s.holderRepo.GetByID(ctx, holderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrHolderNotFound
		}
		return err
	}

	if err := s.holderRepo.SetActive(ctx, holderID, true); err != nil {
		return err
	}

	cards, err := s.cardRepo.ListByHolder(ctx, holderID)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, card := range cards {
		if card.Status != models.CardInactive {
			continue
		}
		status := models.CardActive
		if card.IsPastExpiry(now) {
			status = models.CardExpired
		}
		if err := s.cardRepo.UpdateStatus(ctx, card.ID, status); err != nil {
			return err
		}
	}

	log.Printf("✅ Holder %d reactivated", holderID)
	return nil
}

// CreateHolder registers a new card holder
func (s *CardService) CreateHolder(ctx context.Context, p Principal, holder *models.Holder) error {
	if !s.authz.Allow(p, ActionManageHolders) {
		return domain.ErrForbidden
	}
	if holder.FullName == "" {
		return domain.ErrInvalidInput
	}
	holder.IsActive = true
	return s.holderRepo.Create(ctx, holder)
}

// ListHolders lists holders with pagination
func (s *CardService) ListHolders(ctx context.Context, offset, limit int) ([]*models.Holder, int64, error) {
	return s.holderRepo.List(ctx, offset, limit)
}

// ExpireOverdue batch-expires ACTIVE cards past their expiry date.
// Called by the nightly sweeper.
func (s *CardService) ExpireOverdue(ctx context.Context) (int64, error) {
	return s.cardRepo.ExpireOverdue(ctx, time.Now())
}

// transition loads a card, asks decide for the target status, and persists it
func (s *CardService) transition(ctx context.Context, p Principal, serialNumber string, decide func(*models.Card) (string, error)) (*models.Card, error) {
	if !s.authz.Allow(p, ActionManageCards) {
		return nil, domain.ErrForbidden
	}

	card, err := s.cardRepo.GetBySerial(ctx, serialNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}

	status, err := decide(card)
	if err != nil {
		return nil, err
	}

	if err := s.cardRepo.UpdateStatus(ctx, card.ID, status); err != nil {
		return nil, err
	}
	card.Status = status

	log.Printf("✅ Card %s → %s", card.SerialNumber, status)
	return card, nil
}
