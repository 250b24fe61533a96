package config

import (
	"log"

	"ssc-carecard/internal/adapters/persistence/models"
	"ssc-carecard/internal/pkg/password"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	cfg *Config
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, cfg *Config) *Seeder {
	return &Seeder{db: db, cfg: cfg}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedAdminUser(); err != nil {
		log.Printf("⚠️ Admin seeder skipped: %v", err)
	}
	if err := s.seedDiscountSettings(); err != nil {
		log.Printf("⚠️ Settings seeder skipped: %v", err)
	}
	if s.cfg.IsDev() {
		if err := s.seedDemoSites(); err != nil {
			log.Printf("⚠️ Demo site seeder skipped: %v", err)
		}
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedAdminUser seeds default admin user
// This is for development/testing only
// In production, create admin through secure process
func (s *Seeder) seedAdminUser() error {
	// Check if admin already exists
	var count int64
	s.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := password.Hash("admin123456")
	if err != nil {
		return err
	}

	admin := &models.User{
		Username: "admin",
		Email:    "admin@ssc.or.th",
		Password: hashedPassword,
		Role:     models.RoleAdmin,
		IsActive: true,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Admin user created: %s", admin.Username)
	return nil
}

// seedDiscountSettings seeds the program-wide discount configuration
func (s *Seeder) seedDiscountSettings() error {
	var count int64
	s.db.Model(&models.DiscountSettings{}).Count(&count)
	if count > 0 {
		return nil
	}

	settings := &models.DiscountSettings{
		DefaultRate:    decimal.NewFromInt(20),
		ApplyToExpired: false,
		Version:        1,
	}
	if err := s.db.Create(settings).Error; err != nil {
		return err
	}

	log.Printf("✅ Discount settings seeded: default_rate=%s", settings.DefaultRate)
	return nil
}

// seedDemoSites seeds a couple of partner sites for development
func (s *Seeder) seedDemoSites() error {
	var count int64
	s.db.Model(&models.Site{}).Count(&count)
	if count > 0 {
		return nil
	}

	thirty := decimal.NewFromInt(30)
	sites := []*models.Site{
		{Code: "LAB-DEMO", Name: "Central Clinic", TownCode: "0101", Status: models.SiteActive},
		{Code: "LAB-DEM2", Name: "Riverside Pharmacy", TownCode: "0202", DiscountRate: &thirty, Status: models.SiteActive},
	}
	for _, site := range sites {
		if err := s.db.Create(site).Error; err != nil {
			return err
		}
	}

	log.Printf("✅ Seeded %d demo sites", len(sites))
	return nil
}
