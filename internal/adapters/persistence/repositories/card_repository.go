package repositories

import (
	"context"
	"time"

	"ssc-carecard/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// CardRepository handles card data access
type CardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository
func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Create creates a new card
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// GetBySerial gets a card by serial number, with its holder preloaded
func (r *CardRepository) GetBySerial(ctx context.Context, serial string) (*models.Card, error) {
	var card models.Card
	err := r.db.WithContext(ctx).Preload("Holder").Where("serial_number = ?", serial).First(&card).Error
	return &card, err
}

// UpdateStatus sets the status of a single card
func (r *CardRepository) UpdateStatus(ctx context.Context, cardID uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Card{}).
		Where("id = ?", cardID).
		Update("status", status).Error
}

// Renew sets status ACTIVE and advances the expiry date
func (r *CardRepository) Renew(ctx context.Context, cardID uint, expiry time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Card{}).
		Where("id = ?", cardID).
		Updates(map[string]interface{}{
			"status":      models.CardActive,
			"expiry_date": expiry,
		}).Error
}

// UpdateStatusByHolder sets the status of every card of a holder currently in
// one of fromStatuses
func (r *CardRepository) UpdateStatusByHolder(ctx context.Context, holderID uint, fromStatuses []string, status string) error {
	return r.db.WithContext(ctx).Model(&models.Card{}).
		Where("holder_id = ? AND status IN ?", holderID, fromStatuses).
		Update("status", status).Error
}

// ListByHolder lists all cards owned by a holder
func (r *CardRepository) ListByHolder(ctx context.Context, holderID uint) ([]*models.Card, error) {
	var cards []*models.Card
	err := r.db.WithContext(ctx).Where("holder_id = ?", holderID).Order("id").Find(&cards).Error
	return cards, err
}

// List lists cards with pagination
func (r *CardRepository) List(ctx context.Context, offset, limit int) ([]*models.Card, int64, error) {
	var cards []*models.Card
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Card{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).Preload("Holder").
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&cards).Error
	return cards, total, err
}

// ExpireOverdue marks every ACTIVE card past its expiry date as EXPIRED and
// returns the number of cards touched. Used by the nightly sweeper; the same
// transition also happens lazily on verify.
func (r *CardRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Card{}).
		Where("status = ? AND expiry_date < ?", models.CardActive, now).
		Update("status", models.CardExpired)
	return res.RowsAffected, res.Error
}

// HolderRepository handles card holder data access
type HolderRepository struct {
	db *gorm.DB
}

// NewHolderRepository creates a new holder repository
func NewHolderRepository(db *gorm.DB) *HolderRepository {
	return &HolderRepository{db: db}
}

// Create creates a new holder
func (r *HolderRepository) Create(ctx context.Context, holder *models.Holder) error {
	return r.db.WithContext(ctx).Create(holder).Error
}

// GetByID gets a holder by ID
func (r *HolderRepository) GetByID(ctx context.Context, id uint) (*models.Holder, error) {
	var holder models.Holder
	err := r.db.WithContext(ctx).First(&holder, id).Error
	return &holder, err
}

// SetActive updates a holder's active flag
func (r *HolderRepository) SetActive(ctx context.Context, id uint, active bool) error {
	return r.db.WithContext(ctx).Model(&models.Holder{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

// List lists holders with pagination
func (r *HolderRepository) List(ctx context.Context, offset, limit int) ([]*models.Holder, int64, error) {
	var holders []*models.Holder
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Holder{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).Order("id DESC").Offset(offset).Limit(limit).Find(&holders).Error
	return holders, total, err
}
