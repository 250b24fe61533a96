package services

import (
	"context"
	"regexp"
	"testing"

	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/adapters/persistence/repositories"
	"ssc-carecard/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var siteCodePattern = regexp.MustCompile(`^LAB-[23456789ABCDEFGHJKLMNPQRSTUVWXYZ]{4}$`)

func TestSiteService_Create(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewSiteService(repositories.NewSiteRepository(db), NewRoleAuthorizer())

	t.Run("generates a well-formed unique code", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 10; i++ {
			site, err := svc.Create(ctx, adminPrincipal(), &CreateSiteInput{
				Name: "Clinic", TownCode: "0101",
			})
			require.NoError(t, err)
			assert.Regexp(t, siteCodePattern, site.Code)
			assert.False(t, seen[site.Code], "codes must be unique")
			assert.Equal(t, models.SiteActive, site.Status)
			seen[site.Code] = true
		}
	})

	t.Run("staff may not create sites", func(t *testing.T) {
		staff := Principal{UserID: 2, Username: "staff", Role: models.RoleStaff}
		_, err := svc.Create(ctx, staff, &CreateSiteInput{Name: "Clinic", TownCode: "0101"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("bad town code rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, adminPrincipal(), &CreateSiteInput{Name: "Clinic", TownCode: "01A1"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rate out of range rejected", func(t *testing.T) {
		over := decimal.NewFromInt(101)
		_, err := svc.Create(ctx, adminPrincipal(), &CreateSiteInput{
			Name: "Clinic", TownCode: "0101", DiscountRate: &over,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestSiteService_Update(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := NewSiteService(repositories.NewSiteRepository(db), NewRoleAuthorizer())

	thirty := decimal.NewFromInt(30)
	site := seedSite(t, db, "LAB-UPD2", &thirty, models.SiteActive)

	t.Run("status and name change", func(t *testing.T) {
		name := "Renamed Clinic"
		status := models.SiteSuspended
		updated, err := svc.Update(ctx, adminPrincipal(), site.Code, &UpdateSiteInput{
			Name: &name, Status: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed Clinic", updated.Name)
		assert.Equal(t, models.SiteSuspended, updated.Status)
		assert.Equal(t, site.Code, updated.Code)
	})

	t.Run("clear rate falls back to default", func(t *testing.T) {
		updated, err := svc.Update(ctx, adminPrincipal(), site.Code, &UpdateSiteInput{ClearRate: true})
		require.NoError(t, err)
		assert.Nil(t, updated.DiscountRate)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		bad := "CLOSED"
		_, err := svc.Update(ctx, adminPrincipal(), site.Code, &UpdateSiteInput{Status: &bad})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown site", func(t *testing.T) {
		_, err := svc.Update(ctx, adminPrincipal(), "LAB-NONE", &UpdateSiteInput{})
		assert.ErrorIs(t, err, domain.ErrSiteNotFound)
	})
}
