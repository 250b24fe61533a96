package repositories

import (
	"context"

	"ssc-carecard/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// SiteRepository handles partner site data access
type SiteRepository struct {
	db *gorm.DB
}

// NewSiteRepository creates a new site repository
func NewSiteRepository(db *gorm.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// Create creates a new site
func (r *SiteRepository) Create(ctx context.Context, site *models.Site) error {
	return r.db.WithContext(ctx).Create(site).Error
}

// GetByCode gets a site by its public code
func (r *SiteRepository) GetByCode(ctx context.Context, code string) (*models.Site, error) {
	var site models.Site
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&site).Error
	return &site, err
}

// ExistsByCode checks whether a site code is already taken
func (r *SiteRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Site{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// Update updates a site
func (r *SiteRepository) Update(ctx context.Context, site *models.Site) error {
	return r.db.WithContext(ctx).Save(site).Error
}

// List lists all sites, active first
func (r *SiteRepository) List(ctx context.Context) ([]*models.Site, error) {
	var sites []*models.Site
	err := r.db.WithContext(ctx).Order("status, name").Find(&sites).Error
	return sites, err
}

// ListActive lists only sites that may accept billing
func (r *SiteRepository) ListActive(ctx context.Context) ([]*models.Site, error) {
	var sites []*models.Site
	err := r.db.WithContext(ctx).Where("status = ?", models.SiteActive).Order("name").Find(&sites).Error
	return sites, err
}
