package services

import (
	"testing"
	"time"

	"ssc-carecard/internal/adapters/persistence/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the full schema.
// A single connection keeps in-memory sqlite consistent across goroutines.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func adminPrincipal() Principal {
	return Principal{UserID: 1, Username: "admin", Role: models.RoleAdmin}
}

func seedHolder(t *testing.T, db *gorm.DB, active bool) *models.Holder {
	t.Helper()
	holder := &models.Holder{FullName: "Test Holder", IsActive: active}
	require.NoError(t, db.Create(holder).Error)
	if !active {
		// The column has default:true, so GORM drops the zero value on
		// insert; persist the flag explicitly.
		require.NoError(t, db.Model(holder).Update("is_active", false).Error)
	}
	return holder
}

func seedSite(t *testing.T, db *gorm.DB, code string, rate *decimal.Decimal, status string) *models.Site {
	t.Helper()
	site := &models.Site{
		Code:         code,
		Name:         "Test Site " + code,
		TownCode:     "0101",
		DiscountRate: rate,
		Status:       status,
	}
	require.NoError(t, db.Create(site).Error)
	return site
}

// seedCard inserts a card directly, bypassing issuance. Needed to set up
// states issuance refuses to produce, like an ACTIVE card already past expiry.
func seedCard(t *testing.T, db *gorm.DB, holderID uint, serialNumber, status string, expiry time.Time) *models.Card {
	t.Helper()
	card := &models.Card{
		SerialNumber: serialNumber,
		Status:       status,
		TownCode:     "0101",
		IssueDate:    time.Now().AddDate(0, -6, 0),
		ExpiryDate:   expiry,
		HolderID:     holderID,
	}
	require.NoError(t, db.Create(card).Error)
	return card
}
