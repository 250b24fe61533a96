package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/core/domain"

	"gorm.io/gorm"
)

// CounterRepository hands out monotonically increasing values per scope key.
// Correctness must come from the database, not an in-process mutex: several
// server instances share these counters.
type CounterRepository struct {
	db *gorm.DB
}

// NewCounterRepository creates a new counter repository
func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Next atomically increments the counter for scopeKey and returns the new
// value. The first call for an unseen key creates the row and returns 1.
// Increment and read happen inside one DB transaction: the UPDATE takes a row
// lock, so the follow-up SELECT observes exactly the value this caller
// produced, never a concurrent writer's. A value is never returned without
// being durably incremented, and never incremented without being returned.
func (r *CounterRepository) Next(ctx context.Context, scopeKey string) (int64, error) {
	var next int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Counter{}).
			Where("scope_key = ?", scopeKey).
			Update("value", gorm.Expr("value + 1"))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			// First use of this scope: create lazily at 1
			counter := models.Counter{ScopeKey: scopeKey, Value: 1}
			createErr := tx.Create(&counter).Error
			if createErr == nil {
				next = 1
				return nil
			}
			if !isDuplicateKey(createErr) {
				return createErr
			}
			// Lost the creation race; the row exists now, bump it instead
			res = tx.Model(&models.Counter{}).
				Where("scope_key = ?", scopeKey).
				Update("value", gorm.Expr("value + 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return createErr
			}
		}

		var counter models.Counter
		if err := tx.Where("scope_key = ?", scopeKey).Take(&counter).Error; err != nil {
			return err
		}
		next = counter.Value
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("%w: scope %s: %v", domain.ErrStoreUnavailable, scopeKey, err)
	}
	return next, nil
}

// Current returns the last issued value for scopeKey (0 if the counter does
// not exist yet). Read-only; used by reports and tests, never by issuance.
func (r *CounterRepository) Current(ctx context.Context, scopeKey string) (int64, error) {
	var counter models.Counter
	err := r.db.WithContext(ctx).Where("scope_key = ?", scopeKey).Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: scope %s: %v", domain.ErrStoreUnavailable, scopeKey, err)
	}
	return counter.Value, nil
}

// isDuplicateKey detects unique constraint violations across the drivers we
// run against (MySQL in production, sqlite in tests)
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
