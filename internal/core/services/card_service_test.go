package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/adapters/persistence/repositories"
	"ssc-carecard/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardService_IssueCard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewCardService(
		repositories.NewCardRepository(db),
		repositories.NewHolderRepository(db),
		repositories.NewCounterRepository(db),
		NewRoleAuthorizer(),
	)

	holder := seedHolder(t, db, true)
	expiry := time.Now().AddDate(1, 0, 0)

	t.Run("sequence starts at one and increments", func(t *testing.T) {
		first, err := svc.IssueCard(ctx, adminPrincipal(), &IssueCardInput{
			HolderID: holder.ID, TownCode: "0101", ExpiryDate: expiry,
		})
		require.NoError(t, err)

		wantFirst := fmt.Sprintf("SSC-%s-0101-0001", time.Now().Format("0601"))
		assert.Equal(t, wantFirst, first.SerialNumber)
		assert.Equal(t, models.CardActive, first.Status)

		second, err := svc.IssueCard(ctx, adminPrincipal(), &IssueCardInput{
			HolderID: holder.ID, TownCode: "0101", ExpiryDate: expiry,
		})
		require.NoError(t, err)
		wantSecond := fmt.Sprintf("SSC-%s-0101-0002", time.Now().Format("0601"))
		assert.Equal(t, wantSecond, second.SerialNumber)
	})

	t.Run("different towns count independently", func(t *testing.T) {
		card, err := svc.IssueCard(ctx, adminPrincipal(), &IssueCardInput{
			HolderID: holder.ID, TownCode: "0202", ExpiryDate: expiry,
		})
		require.NoError(t, err)
		wantSerial := fmt.Sprintf("SSC-%s-0202-0001", time.Now().Format("0601"))
		assert.Equal(t, wantSerial, card.SerialNumber)
	})

	t.Run("bad town code rejected before counter", func(t *testing.T) {
		_, err := svc.IssueCard(ctx, adminPrincipal(), &IssueCardInput{
			HolderID: holder.ID, TownCode: "12A4", ExpiryDate: expiry,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("past expiry rejected", func(t *testing.T) {
		_, err := svc.IssueCard(ctx, adminPrincipal(), &IssueCardInput{
			HolderID: holder.ID, TownCode: "0101", ExpiryDate: time.Now().AddDate(0, 0, -1),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("inactive holder rejected", func(t *testing.T) {
		inactive := seedHolder(t, db, false)
		_, err := svc.IssueCard(ctx, adminPrincipal(), &IssueCardInput{
			HolderID: inactive.ID, TownCode: "0101", ExpiryDate: expiry,
		})
		assert.ErrorIs(t, err, domain.ErrHolderInactive)
	})

	t.Run("unknown holder rejected", func(t *testing.T) {
		_, err := svc.IssueCard(ctx, adminPrincipal(), &IssueCardInput{
			HolderID: 9999, TownCode: "0101", ExpiryDate: expiry,
		})
		assert.ErrorIs(t, err, domain.ErrHolderNotFound)
	})

	t.Run("operator may not issue", func(t *testing.T) {
		operator := Principal{UserID: 5, Username: "op", Role: models.RoleOperator}
		_, err := svc.IssueCard(ctx, operator, &IssueCardInput{
			HolderID: holder.ID, TownCode: "0101", ExpiryDate: expiry,
		})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestCardService_Verify(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewCardService(
		repositories.NewCardRepository(db),
		repositories.NewHolderRepository(db),
		repositories.NewCounterRepository(db),
		NewRoleAuthorizer(),
	)

	t.Run("unknown serial", func(t *testing.T) {
		result, err := svc.Verify(ctx, "SSC-0000-0000-0000")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, domain.ReasonCardNotFound, result.Reason)
	})

	t.Run("active card within expiry is valid", func(t *testing.T) {
		holder := seedHolder(t, db, true)
		seedCard(t, db, holder.ID, "SSC-2501-0101-0001", models.CardActive, time.Now().AddDate(1, 0, 0))

		result, err := svc.Verify(ctx, "SSC-2501-0101-0001")
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Reason)
		assert.Equal(t, models.CardActive, result.Status)
	})

	t.Run("lazy expiry persists on first observation", func(t *testing.T) {
		holder := seedHolder(t, db, true)
		card := seedCard(t, db, holder.ID, "SSC-2406-0101-0001", models.CardActive, time.Now().AddDate(0, 0, -1))

		result, err := svc.Verify(ctx, card.SerialNumber)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, domain.ReasonCardExpired, result.Reason)
		assert.Equal(t, models.CardExpired, result.Status)

		// The transition is stored, not recomputed
		var stored models.Card
		require.NoError(t, db.Where("serial_number = ?", card.SerialNumber).First(&stored).Error)
		assert.Equal(t, models.CardExpired, stored.Status)

		// Second observation reads the stored status
		again, err := svc.Verify(ctx, card.SerialNumber)
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonCardExpired, again.Reason)
	})

	t.Run("inactive holder dominates card status", func(t *testing.T) {
		holder := seedHolder(t, db, false)
		seedCard(t, db, holder.ID, "SSC-2501-0303-0001", models.CardActive, time.Now().AddDate(1, 0, 0))

		result, err := svc.Verify(ctx, "SSC-2501-0303-0001")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, domain.ReasonHolderInactive, result.Reason)
	})

	t.Run("lost card", func(t *testing.T) {
		holder := seedHolder(t, db, true)
		seedCard(t, db, holder.ID, "SSC-2501-0404-0001", models.CardLost, time.Now().AddDate(1, 0, 0))

		result, err := svc.Verify(ctx, "SSC-2501-0404-0001")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, domain.ReasonCardLost, result.Reason)
	})
}

func TestCardService_Transitions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewCardService(
		repositories.NewCardRepository(db),
		repositories.NewHolderRepository(db),
		repositories.NewCounterRepository(db),
		NewRoleAuthorizer(),
	)

	holder := seedHolder(t, db, true)
	future := time.Now().AddDate(1, 0, 0)

	t.Run("suspend and reactivate", func(t *testing.T) {
		card := seedCard(t, db, holder.ID, "SSC-2501-1001-0001", models.CardActive, future)

		suspended, err := svc.Suspend(ctx, adminPrincipal(), card.SerialNumber)
		require.NoError(t, err)
		assert.Equal(t, models.CardInactive, suspended.Status)

		// Suspending again is invalid
		_, err = svc.Suspend(ctx, adminPrincipal(), card.SerialNumber)
		assert.ErrorIs(t, err, domain.ErrCardNotActive)

		restored, err := svc.Reactivate(ctx, adminPrincipal(), card.SerialNumber)
		require.NoError(t, err)
		assert.Equal(t, models.CardActive, restored.Status)
	})

	t.Run("reactivating a card past expiry yields EXPIRED", func(t *testing.T) {
		card := seedCard(t, db, holder.ID, "SSC-2406-1001-0001", models.CardInactive, time.Now().AddDate(0, 0, -1))

		result, err := svc.Reactivate(ctx, adminPrincipal(), card.SerialNumber)
		require.NoError(t, err)
		assert.Equal(t, models.CardExpired, result.Status)
	})

	t.Run("report lost then renew restores ACTIVE", func(t *testing.T) {
		card := seedCard(t, db, holder.ID, "SSC-2501-1002-0001", models.CardActive, future)

		lost, err := svc.ReportLost(ctx, adminPrincipal(), card.SerialNumber)
		require.NoError(t, err)
		assert.Equal(t, models.CardLost, lost.Status)

		newExpiry := time.Now().AddDate(2, 0, 0)
		renewed, err := svc.Renew(ctx, adminPrincipal(), card.SerialNumber, newExpiry)
		require.NoError(t, err)
		assert.Equal(t, models.CardActive, renewed.Status)
		assert.WithinDuration(t, newExpiry, renewed.ExpiryDate, time.Second)
	})

	t.Run("expired card reports expiry, not a generic state error", func(t *testing.T) {
		card := seedCard(t, db, holder.ID, "SSC-2404-1001-0001", models.CardExpired, time.Now().AddDate(0, -2, 0))

		_, err := svc.Suspend(ctx, adminPrincipal(), card.SerialNumber)
		assert.ErrorIs(t, err, domain.ErrCardExpired)

		_, err = svc.ReportLost(ctx, adminPrincipal(), card.SerialNumber)
		assert.ErrorIs(t, err, domain.ErrCardExpired)

		_, err = svc.Reactivate(ctx, adminPrincipal(), card.SerialNumber)
		assert.ErrorIs(t, err, domain.ErrCardExpired)
	})

	t.Run("renew requires future expiry", func(t *testing.T) {
		card := seedCard(t, db, holder.ID, "SSC-2501-1003-0001", models.CardExpired, time.Now().AddDate(0, 0, -30))

		_, err := svc.Renew(ctx, adminPrincipal(), card.SerialNumber, time.Now().AddDate(0, 0, -1))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("renew restores an expired card", func(t *testing.T) {
		card := seedCard(t, db, holder.ID, "SSC-2405-1001-0001", models.CardExpired, time.Now().AddDate(0, -1, 0))

		renewed, err := svc.Renew(ctx, adminPrincipal(), card.SerialNumber, future)
		require.NoError(t, err)
		assert.Equal(t, models.CardActive, renewed.Status)

		result, err := svc.Verify(ctx, card.SerialNumber)
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})
}

func TestCardService_HolderCascade(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewCardService(
		repositories.NewCardRepository(db),
		repositories.NewHolderRepository(db),
		repositories.NewCounterRepository(db),
		NewRoleAuthorizer(),
	)

	holder := seedHolder(t, db, true)
	active := seedCard(t, db, holder.ID, "SSC-2501-2001-0001", models.CardActive, time.Now().AddDate(1, 0, 0))
	expired := seedCard(t, db, holder.ID, "SSC-2406-2001-0001", models.CardExpired, time.Now().AddDate(0, -1, 0))

	require.NoError(t, svc.DeactivateHolder(ctx, adminPrincipal(), holder.ID))

	// All cards forced INACTIVE regardless of previous state
	for _, serialNumber := range []string{active.SerialNumber, expired.SerialNumber} {
		var card models.Card
		require.NoError(t, db.Where("serial_number = ?", serialNumber).First(&card).Error)
		assert.Equal(t, models.CardInactive, card.Status, serialNumber)
	}

	require.NoError(t, svc.ReactivateHolder(ctx, adminPrincipal(), holder.ID))

	// Unexpired card returns to ACTIVE, the overdue one lands in EXPIRED
	var restored, overdue models.Card
	require.NoError(t, db.Where("serial_number = ?", active.SerialNumber).First(&restored).Error)
	require.NoError(t, db.Where("serial_number = ?", expired.SerialNumber).First(&overdue).Error)
	assert.Equal(t, models.CardActive, restored.Status)
	assert.Equal(t, models.CardExpired, overdue.Status)
}

func TestCardService_ExpireOverdue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewCardService(
		repositories.NewCardRepository(db),
		repositories.NewHolderRepository(db),
		repositories.NewCounterRepository(db),
		NewRoleAuthorizer(),
	)

	holder := seedHolder(t, db, true)
	seedCard(t, db, holder.ID, "SSC-2404-3001-0001", models.CardActive, time.Now().AddDate(0, 0, -10))
	seedCard(t, db, holder.ID, "SSC-2405-3001-0001", models.CardActive, time.Now().AddDate(0, 0, -1))
	fresh := seedCard(t, db, holder.ID, "SSC-2501-3001-0001", models.CardActive, time.Now().AddDate(1, 0, 0))
	lost := seedCard(t, db, holder.ID, "SSC-2403-3001-0001", models.CardLost, time.Now().AddDate(0, 0, -5))

	n, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// Only overdue ACTIVE cards are swept; LOST stays LOST
	var card models.Card
	require.NoError(t, db.Where("serial_number = ?", fresh.SerialNumber).First(&card).Error)
	assert.Equal(t, models.CardActive, card.Status)
	// Fresh struct: reusing card would carry its primary key into the query
	var lostCard models.Card
	require.NoError(t, db.Where("serial_number = ?", lost.SerialNumber).First(&lostCard).Error)
	assert.Equal(t, models.CardLost, lostCard.Status)
}
