package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, resolved once at startup
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	JWT      JWTConfig
	Cookie   CookieConfig
}

// DatabaseConfig describes the MySQL connection and its pool limits
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig holds token signing secrets and lifetimes
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

// CookieConfig controls how auth cookies are issued
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// AppConfig is set by Load for the few call sites with no injection path
// (health endpoint)
var AppConfig *Config

// Load resolves configuration for the current APP_MODE. Mode-specific values
// (database, secrets, cookie security) read env vars behind a DEV_ or PROD_
// prefix so both environments can share one .env during development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, reading environment only")
	}

	mode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if mode != "dev" && mode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE %q: want dev or prod", mode)
	}
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	cfg := &Config{
		AppMode: mode,
		Port:    getEnv("PORT", "3000"),
		Database: DatabaseConfig{
			Host:            getEnv(prefix+"DB_HOST", "localhost"),
			Port:            getEnv(prefix+"DB_PORT", "3306"),
			User:            getEnv(prefix+"DB_USER", "root"),
			Password:        getEnv(prefix+"DB_PASS", ""),
			Name:            getEnv(prefix+"DB_NAME", "ssc_carecard"),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 60)) * time.Minute,
		},
		JWT: JWTConfig{
			Secret:           getEnv(prefix+"JWT_SECRET", "default_secret"),
			RefreshSecret:    getEnv(prefix+"JWT_REFRESH_SECRET", "default_refresh_secret"),
			AccessTokenMins:  getEnvInt("ACCESS_TOKEN_MINUTES", 15),
			RefreshTokenDays: getEnvInt("REFRESH_TOKEN_DAYS", 7),
		},
		Cookie: CookieConfig{
			Secure:   getEnvBool(prefix+"COOKIE_SECURE", false),
			SameSite: getEnv("COOKIE_SAMESITE", "lax"),
			Domain:   getEnv("COOKIE_DOMAIN", ""),
		},
	}

	AppConfig = cfg
	log.Printf("✅ Configuration loaded [MODE: %s]", mode)
	return cfg, nil
}

// IsDev returns true in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns the CORS origin list
func (c *Config) GetAllowedOrigins() string {
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		return origins
	}
	if c.IsDev() {
		return "*"
	}
	return "https://carecard.ssc.or.th"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}
