package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tallyboard/internal/models"
)

// InitDB opens the PostgreSQL pool, applies the schema and seeds the
// candidate pairs.
func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: NewGormLogger(cfg.DB.SlowQuery),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db, CandidatePairs(cfg)); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates every table and upserts the candidate pairs.
// Safe to call on every start.
func Migrate(db *gorm.DB, pairs []models.CandidatePair) error {
	err := db.AutoMigrate(
		&models.Department{},
		&models.Commune{},
		&models.District{},
		&models.Village{},
		&models.Center{},
		&models.PollingStation{},
		&models.CandidatePair{},
		&models.BallotRecord{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	if len(pairs) == 0 {
		return nil
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"label"}),
	}).Create(&pairs).Error
	if err != nil {
		return fmt.Errorf("seeding candidate pairs failed: %w", err)
	}
	return nil
}

// CandidatePairs returns the two static pairs with their configured labels.
func CandidatePairs(cfg *Config) []models.CandidatePair {
	return []models.CandidatePair{
		{ID: models.PairA, Label: cfg.CandidateALabel},
		{ID: models.PairB, Label: cfg.CandidateBLabel},
	}
}

// NewGormLogger routes GORM's SQL log through logrus.
func NewGormLogger(slow time.Duration) gormlogger.Interface {
	return gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// DSN is the key/value connection string understood by both pgx and lib/pq.
func (d DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}
