package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"structura/logger"
	"structura/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to Postgres. Error translation is on so unique violations
// surface as gorm.ErrDuplicatedKey.
func Open(dsn string, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), NewConfig(logLevel))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func NewConfig(logLevel string) *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(logger.GormWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  parseLogLevel(logLevel),
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func parseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// SeedOwner creates a bootstrap owner account when none exists with that email.
func SeedOwner(ctx context.Context, db *gorm.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	var existing models.User
	err := db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("checking seed owner: %w", err)
	}

	owner := models.User{
		Email:        email,
		PasswordHash: password,
		FirstName:    "Structura",
		LastName:     "Administrator",
		Role:         models.RoleSuperAdmin,
	}
	if err := db.WithContext(ctx).Create(&owner).Error; err != nil {
		return fmt.Errorf("creating seed owner: %w", err)
	}
	logger.Info("Seed owner created", "email", owner.Email)
	return nil
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
