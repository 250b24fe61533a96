package repositories

import (
	"context"
	"errors"
	"time"

	"ssc-carecard/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionRepository handles billing transaction data access.
// The ledger is append-only: there is no update or delete method here, and
// none may ever be added.
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create persists a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// GetByReceipt gets a transaction by receipt number
func (r *TransactionRepository) GetByReceipt(ctx context.Context, receiptNumber string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).Where("receipt_number = ?", receiptNumber).First(&tx).Error
	return &tx, err
}

// GetByRequestID gets a transaction by its idempotency key.
// Returns (nil, nil) when no transaction exists for the key.
func (r *TransactionRepository) GetByRequestID(ctx context.Context, requestID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// List lists transactions with pagination, newest first, optionally filtered
// by site code
func (r *TransactionRepository) List(ctx context.Context, siteCode string, offset, limit int) ([]*models.Transaction, int64, error) {
	var txs []*models.Transaction
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	if siteCode != "" {
		q = q.Where("site_code = ?", siteCode)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&txs).Error
	return txs, total, err
}

// SiteDailySummary aggregates one site's billing for one calendar day
type SiteDailySummary struct {
	SiteCode      string          `json:"site_code"`
	Date          string          `json:"date"`
	Count         int64           `json:"count"`
	TotalOriginal decimal.Decimal `json:"total_original"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalFinal    decimal.Decimal `json:"total_final"`
}

// SummarizeSiteDay computes billing totals for a site on a given day.
// Pure read; the audit report path never touches the ledger rows themselves.
func (r *TransactionRepository) SummarizeSiteDay(ctx context.Context, siteCode string, day time.Time) (*SiteDailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	summary := &SiteDailySummary{
		SiteCode: siteCode,
		Date:     start.Format("2006-01-02"),
	}

	row := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COUNT(*) as count, COALESCE(SUM(original_amount), 0) as total_original, COALESCE(SUM(discount_amount), 0) as total_discount, COALESCE(SUM(final_amount), 0) as total_final").
		Where("site_code = ? AND created_at >= ? AND created_at < ?", siteCode, start, end).
		Row()

	var count int64
	var original, discount, final decimal.Decimal
	if err := row.Scan(&count, &original, &discount, &final); err != nil {
		return nil, err
	}

	summary.Count = count
	summary.TotalOriginal = original
	summary.TotalDiscount = discount
	summary.TotalFinal = final
	return summary, nil
}

// SettingsRepository handles the discount settings singleton row
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get loads the settings row, creating the default (no discount, expired
// cards excluded) if it does not exist yet
func (r *SettingsRepository) Get(ctx context.Context) (*models.DiscountSettings, error) {
	var settings models.DiscountSettings
	err := r.db.WithContext(ctx).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.DiscountSettings{
			DefaultRate:    decimal.Zero,
			ApplyToExpired: false,
			Version:        1,
		}
		if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update replaces rate and policy, bumping the version
func (r *SettingsRepository) Update(ctx context.Context, defaultRate decimal.Decimal, applyToExpired bool) (*models.DiscountSettings, error) {
	settings, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}

	settings.DefaultRate = defaultRate
	settings.ApplyToExpired = applyToExpired
	settings.Version++

	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}
