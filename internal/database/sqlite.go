package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reelforge/studio/backend/internal/assets"
	"github.com/reelforge/studio/backend/internal/billing"
	"github.com/reelforge/studio/backend/internal/users"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&assets.AssetVersion{},
		&assets.VersionAction{},
		&billing.TierRecord{},
		&billing.RateConfig{},
		&billing.CreditBalance{},
		&billing.CreditTransaction{},
		&billing.PaymentOrder{},
		&users.Identity{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := migrateOwnerIDs(db); err != nil && logger != nil {
		logger.Warn("owner id migration failed", zap.Error(err))
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// migrateOwnerIDs strips the legacy provider prefix from owner ids written
// before canonical user resolution landed.
func migrateOwnerIDs(db *gorm.DB) error {
	const prefix = "google:"
	start := len(prefix) + 1
	updateVersions := fmt.Sprintf("UPDATE asset_versions SET owner_id = substr(owner_id, %d) WHERE owner_id LIKE '%s%%';", start, prefix)
	if err := db.Exec(updateVersions).Error; err != nil {
		return err
	}
	updateActions := fmt.Sprintf("UPDATE version_actions SET owner_id = substr(owner_id, %d) WHERE owner_id LIKE '%s%%';", start, prefix)
	return db.Exec(updateActions).Error
}
