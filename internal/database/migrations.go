package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reelforge/studio/backend/internal/assets"
)

const migrationClampNegativeDurations = "2026-07-10_clamp_negative_durations"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationClampNegativeDurations, apply: clampNegativeDurations},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// clampNegativeDurations repairs rows written before the generation pipeline
// started coercing invalid durations to zero.
func clampNegativeDurations(db *gorm.DB) error {
	if err := db.Model(&assets.AssetVersion{}).
		Where("duration < 0").
		Update("duration", 0).Error; err != nil {
		return err
	}
	return db.Model(&assets.VersionAction{}).
		Where("duration < 0").
		Update("duration", 0).Error
}
