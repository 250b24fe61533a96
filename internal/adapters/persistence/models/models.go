package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Auth & User Tables
// ============================================================

// User represents users table (program staff and site operators)
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'STAFF'" json:"role"`
	SiteID    *uint          `gorm:"index" json:"site_id,omitempty"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// User roles
const (
	RoleAdmin    = "ADMIN"    // program administration: sites, settings, users
	RoleStaff    = "STAFF"    // registration desk: holders, card issuance/lifecycle
	RoleOperator = "OPERATOR" // partner site: verify, preview, bill
)

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	SiteID    *uint     `json:"site_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		SiteID:    u.SiteID,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Card Program Tables
// ============================================================

// Card statuses
const (
	CardActive   = "ACTIVE"
	CardInactive = "INACTIVE"
	CardExpired  = "EXPIRED"
	CardLost     = "LOST"
)

// Site statuses
const (
	SiteActive    = "ACTIVE"
	SiteInactive  = "INACTIVE"
	SiteSuspended = "SUSPENDED"
)

// Holder represents card_holders table (the owning subject of a card)
type Holder struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	FullName  string         `gorm:"size:150;not null" json:"full_name"`
	Phone     string         `gorm:"size:20" json:"phone,omitempty"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Holder) TableName() string {
	return "card_holders"
}

// Card represents cards table.
// SerialNumber is assigned once at issuance and never changes; the lifecycle
// lives entirely in Status + ExpiryDate.
type Card struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SerialNumber string    `gorm:"uniqueIndex;size:24;not null" json:"serial_number"`
	Status       string    `gorm:"size:16;not null;default:'ACTIVE'" json:"status"`
	TownCode     string    `gorm:"size:4;not null;index" json:"town_code"`
	IssueDate    time.Time `gorm:"not null" json:"issue_date"`
	ExpiryDate   time.Time `gorm:"not null;index" json:"expiry_date"`
	HolderID     uint      `gorm:"index;not null" json:"holder_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Holder       Holder    `gorm:"foreignKey:HolderID" json:"-"`
}

func (Card) TableName() string {
	return "cards"
}

func (c *Card) IsPastExpiry(now time.Time) bool {
	return now.After(c.ExpiryDate)
}

// CardResponse DTO
type CardResponse struct {
	SerialNumber string    `json:"serial_number"`
	Status       string    `json:"status"`
	TownCode     string    `json:"town_code"`
	IssueDate    time.Time `json:"issue_date"`
	ExpiryDate   time.Time `json:"expiry_date"`
	HolderID     uint      `json:"holder_id"`
	HolderName   string    `json:"holder_name,omitempty"`
}

func (c *Card) ToResponse() *CardResponse {
	resp := &CardResponse{
		SerialNumber: c.SerialNumber,
		Status:       c.Status,
		TownCode:     c.TownCode,
		IssueDate:    c.IssueDate,
		ExpiryDate:   c.ExpiryDate,
		HolderID:     c.HolderID,
	}
	if c.Holder.ID != 0 {
		resp.HolderName = c.Holder.FullName
	}
	return resp
}

// Site represents partner_sites table (labs billing against the program).
// Code is the public trial-generated identifier (LAB-XXXX); TownCode is the
// fixed 4-digit numeric code embedded in card serials issued at this town.
type Site struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Code         string           `gorm:"uniqueIndex;size:12;not null" json:"code"`
	Name         string           `gorm:"size:150;not null" json:"name"`
	TownCode     string           `gorm:"size:4;not null;index" json:"town_code"`
	DiscountRate *decimal.Decimal `gorm:"type:decimal(5,2)" json:"discount_rate,omitempty"`
	Status       string           `gorm:"size:16;not null;default:'ACTIVE'" json:"status"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (Site) TableName() string {
	return "partner_sites"
}

// ============================================================
// Counter & Billing Tables
// ============================================================

// Counter represents counters table: one monotonically increasing value per
// scope key (e.g. "receipts/2025", "cards/2512/0001"). Rows are created
// lazily on first use and never deleted.
type Counter struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ScopeKey  string    `gorm:"uniqueIndex;size:64;not null" json:"scope_key"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Counter) TableName() string {
	return "counters"
}

// DiscountSettings represents the discount_settings singleton row.
// Version is bumped on every update so callers can tell which configuration
// a computation was made against.
type DiscountSettings struct {
	ID             uint            `gorm:"primaryKey" json:"-"`
	DefaultRate    decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"default_rate"`
	ApplyToExpired bool            `gorm:"not null;default:false" json:"apply_to_expired"`
	Version        int             `gorm:"not null;default:1" json:"version"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DiscountSettings) TableName() string {
	return "discount_settings"
}

// Transaction represents billing_transactions table. Rows are append-only:
// there is deliberately no UpdatedAt and no update path anywhere in the code.
// Corrections are new transactions, never rewrites.
type Transaction struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ReceiptNumber      string          `gorm:"uniqueIndex;size:16;not null" json:"receipt_number"`
	RequestID          string          `gorm:"uniqueIndex;size:64;not null" json:"request_id"`
	CardID             uint            `gorm:"index;not null" json:"card_id"`
	SiteID             uint            `gorm:"index;not null" json:"site_id"`
	CardSerial         string          `gorm:"size:24;not null" json:"card_serial"`
	SiteCode           string          `gorm:"size:12;not null;index" json:"site_code"`
	ItemDescription    string          `gorm:"size:255;not null" json:"item_description"`
	OriginalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"original_amount"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	FinalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"final_amount"`
	SettingsVersion    int             `gorm:"not null" json:"settings_version"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string {
	return "billing_transactions"
}

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Auth
		&User{},
		&RefreshToken{},
		// Card program
		&Holder{},
		&Card{},
		&Site{},
		// Counters & billing
		&Counter{},
		&DiscountSettings{},
		&Transaction{},
	)
}
