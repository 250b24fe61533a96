package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/adapters/persistence/repositories"
	"ssc-carecard/internal/core/domain"
	"ssc-carecard/internal/pkg/serial"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type billingFixture struct {
	db          *gorm.DB
	billing     *BillingService
	discount    *DiscountService
	counterRepo *repositories.CounterRepository
	holder      *models.Holder
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()

	counterRepo := repositories.NewCounterRepository(db)
	siteRepo := repositories.NewSiteRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	authz := NewRoleAuthorizer()

	cardService := NewCardService(
		repositories.NewCardRepository(db),
		repositories.NewHolderRepository(db),
		counterRepo,
		authz,
	)

	_, err := settingsRepo.Update(ctx, decimal.NewFromInt(20), false)
	require.NoError(t, err)

	return &billingFixture{
		db:          db,
		billing:     NewBillingService(cardService, siteRepo, settingsRepo, counterRepo, txRepo, authz),
		discount:    NewDiscountService(settingsRepo, siteRepo, authz),
		counterRepo: counterRepo,
		holder:      seedHolder(t, db, true),
	}
}

func (f *billingFixture) receiptCount(t *testing.T) int64 {
	t.Helper()
	count, err := f.counterRepo.Current(context.Background(), serial.ReceiptScopeKey(time.Now()))
	require.NoError(t, err)
	return count
}

func TestBillingService_CreateTransaction(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	thirty := decimal.NewFromInt(30)
	seedSite(t, f.db, "LAB-BILL", &thirty, models.SiteActive)
	seedCard(t, f.db, f.holder.ID, "SSC-2501-0101-0001", models.CardActive, time.Now().AddDate(1, 0, 0))

	tx, err := f.billing.CreateTransaction(ctx, adminPrincipal(), &CreateTransactionInput{
		Serial:          "SSC-2501-0101-0001",
		SiteCode:        "LAB-BILL",
		ItemDescription: "Blood panel",
		OriginalAmount:  decimal.NewFromInt(2000),
		RequestID:       "req-001",
	})
	require.NoError(t, err)

	wantReceipt := fmt.Sprintf("INV-%s-00001", time.Now().Format("2006"))
	assert.Equal(t, wantReceipt, tx.ReceiptNumber)
	assert.True(t, tx.DiscountPercentage.Equal(decimal.NewFromInt(30)))
	assert.True(t, tx.DiscountAmount.Equal(decimal.NewFromInt(600)))
	assert.True(t, tx.FinalAmount.Equal(decimal.NewFromInt(1400)))
	assert.True(t, tx.FinalAmount.Add(tx.DiscountAmount).Equal(tx.OriginalAmount))
	assert.EqualValues(t, 1, f.receiptCount(t))
}

func TestBillingService_PreviewConsumesNoCounter(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	thirty := decimal.NewFromInt(30)
	seedSite(t, f.db, "LAB-PREV", &thirty, models.SiteActive)
	seedCard(t, f.db, f.holder.ID, "SSC-2501-0202-0001", models.CardActive, time.Now().AddDate(1, 0, 0))

	for i := 0; i < 100; i++ {
		_, err := f.discount.Preview(ctx, decimal.NewFromInt(500), "LAB-PREV")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 0, f.receiptCount(t), "previews must not advance the receipt counter")

	tx, err := f.billing.CreateTransaction(ctx, adminPrincipal(), &CreateTransactionInput{
		Serial:          "SSC-2501-0202-0001",
		SiteCode:        "LAB-PREV",
		ItemDescription: "Consultation",
		OriginalAmount:  decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	wantReceipt := fmt.Sprintf("INV-%s-00001", time.Now().Format("2006"))
	assert.Equal(t, wantReceipt, tx.ReceiptNumber)
	assert.EqualValues(t, 1, f.receiptCount(t))
}

func TestBillingService_RejectionsBurnNoNumbers(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	seedSite(t, f.db, "LAB-OFF", nil, models.SiteInactive)
	seedCard(t, f.db, f.holder.ID, "SSC-2501-0303-0001", models.CardActive, time.Now().AddDate(1, 0, 0))
	lostHolder := seedHolder(t, f.db, true)
	seedCard(t, f.db, lostHolder.ID, "SSC-2501-0303-0002", models.CardLost, time.Now().AddDate(1, 0, 0))

	cases := []struct {
		name    string
		input   *CreateTransactionInput
		wantErr error
	}{
		{
			"inactive site",
			&CreateTransactionInput{Serial: "SSC-2501-0303-0001", SiteCode: "LAB-OFF", ItemDescription: "X-ray", OriginalAmount: decimal.NewFromInt(100)},
			domain.ErrSiteInactive,
		},
		{
			"unknown site",
			&CreateTransactionInput{Serial: "SSC-2501-0303-0001", SiteCode: "LAB-NONE", ItemDescription: "X-ray", OriginalAmount: decimal.NewFromInt(100)},
			domain.ErrSiteNotFound,
		},
		{
			"unknown card",
			&CreateTransactionInput{Serial: "SSC-0000-0000-0000", SiteCode: "LAB-OFF", ItemDescription: "X-ray", OriginalAmount: decimal.NewFromInt(100)},
			domain.ErrCardNotFound,
		},
		{
			"lost card",
			&CreateTransactionInput{Serial: "SSC-2501-0303-0002", SiteCode: "LAB-OFF", ItemDescription: "X-ray", OriginalAmount: decimal.NewFromInt(100)},
			domain.ErrCardLost,
		},
		{
			"non-positive amount",
			&CreateTransactionInput{Serial: "SSC-2501-0303-0001", SiteCode: "LAB-OFF", ItemDescription: "X-ray", OriginalAmount: decimal.Zero},
			domain.ErrInvalidInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.billing.CreateTransaction(ctx, adminPrincipal(), tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	assert.EqualValues(t, 0, f.receiptCount(t), "rejected requests must not advance the receipt counter")
}

// A persistence failure after the receipt number was allocated must burn the
// number: the error surfaces, and the next successful transaction gets the
// following value. Gaps are fine, a reissued number never is.
func TestBillingService_PersistFailureBurnsReceipt(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	seedSite(t, f.db, "LAB-BURN", nil, models.SiteActive)
	seedCard(t, f.db, f.holder.ID, "SSC-2501-0707-0001", models.CardActive, time.Now().AddDate(1, 0, 0))

	input := &CreateTransactionInput{
		Serial:          "SSC-2501-0707-0001",
		SiteCode:        "LAB-BURN",
		ItemDescription: "Dental cleaning",
		OriginalAmount:  decimal.NewFromInt(400),
	}

	// Make the final insert fail while validation, discount resolution, and
	// the counter all still work
	require.NoError(t, f.db.Exec("ALTER TABLE billing_transactions RENAME TO billing_transactions_hidden").Error)

	_, err := f.billing.CreateTransaction(ctx, adminPrincipal(), input)
	require.Error(t, err)
	assert.EqualValues(t, 1, f.receiptCount(t), "the failed attempt still consumed a receipt number")

	require.NoError(t, f.db.Exec("ALTER TABLE billing_transactions_hidden RENAME TO billing_transactions").Error)

	tx, err := f.billing.CreateTransaction(ctx, adminPrincipal(), input)
	require.NoError(t, err)

	burned := fmt.Sprintf("INV-%s-00001", time.Now().Format("2006"))
	assert.Equal(t, fmt.Sprintf("INV-%s-00002", time.Now().Format("2006")), tx.ReceiptNumber,
		"the next transaction takes the next value, leaving a gap")

	var reused int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("receipt_number = ?", burned).Count(&reused).Error)
	assert.Zero(t, reused, "the burned number is never reissued")
}

func TestBillingService_IdempotentReplay(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	seedSite(t, f.db, "LAB-IDEM", nil, models.SiteActive)
	seedCard(t, f.db, f.holder.ID, "SSC-2501-0404-0001", models.CardActive, time.Now().AddDate(1, 0, 0))

	input := &CreateTransactionInput{
		Serial:          "SSC-2501-0404-0001",
		SiteCode:        "LAB-IDEM",
		ItemDescription: "Vaccination",
		OriginalAmount:  decimal.NewFromInt(750),
		RequestID:       "req-replay",
	}

	first, err := f.billing.CreateTransaction(ctx, adminPrincipal(), input)
	require.NoError(t, err)

	replay, err := f.billing.CreateTransaction(ctx, adminPrincipal(), input)
	require.NoError(t, err)

	assert.Equal(t, first.ReceiptNumber, replay.ReceiptNumber)
	assert.Equal(t, first.ID, replay.ID)
	assert.EqualValues(t, 1, f.receiptCount(t), "replay must not allocate a second receipt")
}

func TestBillingService_ExpiredCardPolicy(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	thirty := decimal.NewFromInt(30)
	seedSite(t, f.db, "LAB-EXP", &thirty, models.SiteActive)
	seedCard(t, f.db, f.holder.ID, "SSC-2406-0505-0001", models.CardActive, time.Now().AddDate(0, 0, -1))

	t.Run("expired card bills at zero when excluded", func(t *testing.T) {
		tx, err := f.billing.CreateTransaction(ctx, adminPrincipal(), &CreateTransactionInput{
			Serial:          "SSC-2406-0505-0001",
			SiteCode:        "LAB-EXP",
			ItemDescription: "Checkup",
			OriginalAmount:  decimal.NewFromInt(1000),
		})
		require.NoError(t, err)
		assert.True(t, tx.DiscountPercentage.IsZero())
		assert.True(t, tx.DiscountAmount.IsZero())
		assert.True(t, tx.FinalAmount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("expired card keeps discount when policy allows", func(t *testing.T) {
		_, err := f.discount.UpdateSettings(ctx, adminPrincipal(), decimal.NewFromInt(20), true)
		require.NoError(t, err)

		tx, err := f.billing.CreateTransaction(ctx, adminPrincipal(), &CreateTransactionInput{
			Serial:          "SSC-2406-0505-0001",
			SiteCode:        "LAB-EXP",
			ItemDescription: "Checkup",
			OriginalAmount:  decimal.NewFromInt(1000),
		})
		require.NoError(t, err)
		assert.True(t, tx.DiscountPercentage.Equal(decimal.NewFromInt(30)))
		assert.True(t, tx.FinalAmount.Equal(decimal.NewFromInt(700)))
	})
}

func TestBillingService_SiteDaySummary(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	seedSite(t, f.db, "LAB-SUM", nil, models.SiteActive)
	seedCard(t, f.db, f.holder.ID, "SSC-2501-0606-0001", models.CardActive, time.Now().AddDate(1, 0, 0))

	for i := 1; i <= 3; i++ {
		_, err := f.billing.CreateTransaction(ctx, adminPrincipal(), &CreateTransactionInput{
			Serial:          "SSC-2501-0606-0001",
			SiteCode:        "LAB-SUM",
			ItemDescription: fmt.Sprintf("Item %d", i),
			OriginalAmount:  decimal.NewFromInt(int64(i * 100)),
		})
		require.NoError(t, err)
	}

	summary, err := f.billing.SiteDaySummary(ctx, "LAB-SUM", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.Count)
	assert.True(t, summary.TotalOriginal.Equal(decimal.NewFromInt(600)))
	assert.True(t, summary.TotalDiscount.Equal(decimal.NewFromInt(120)), "20%% default rate over 600")
	assert.True(t, summary.TotalFinal.Equal(decimal.NewFromInt(480)))

	_, err = f.billing.SiteDaySummary(ctx, "LAB-NONE", time.Now())
	assert.ErrorIs(t, err, domain.ErrSiteNotFound)
}
