package config

import (
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// db backs HealthCheck. Everything else receives the handle returned by
// Connect through constructor injection and never touches this package again.
var db *gorm.DB

// Connect opens the MySQL connection described by cfg and applies the
// configured pool limits
func Connect(cfg *Config) (*gorm.DB, error) {
	level := gormlogger.Error
	if cfg.IsDev() {
		level = gormlogger.Info
	}

	conn, err := gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
		// Counter increments and billing commits open their own
		// transactions; wrapping every single write again buys nothing
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s:%s: %w", cfg.Database.Host, cfg.Database.Port, err)
	}

	db = conn
	log.Printf("✅ Database ready [%s:%s/%s, pool %d idle / %d open]",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Name,
		cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	return conn, nil
}

// DSN renders the MySQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Close drains the connection pool on shutdown
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck pings the database; used by the health endpoint
func HealthCheck() error {
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
