package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"snipr/internal/domain"
)

// AutoMigrate runs schema migrations for all domain models. Order matters
// because of foreign keys.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("starting database auto-migration")

	models := []interface{}{
		&domain.ApiKey{},
		&domain.Link{},
		&domain.ClickEvent{},
	}

	for _, model := range models {
		modelName := fmt.Sprintf("%T", model)
		if err := db.AutoMigrate(model); err != nil {
			log.Error("failed to migrate model", zap.String("model", modelName), zap.Error(err))
			return fmt.Errorf("failed to migrate model %s: %w", modelName, err)
		}
		log.Info("model migrated", zap.String("model", modelName))
	}

	log.Info("database auto-migration completed", zap.Int("migrated_models", len(models)))
	return nil
}

// SeedBootstrapKey creates an initial tier-4 API key when the api_keys
// table is empty, so a fresh deployment has a working admin-grade key. The
// generated token is logged once; it is not recoverable afterwards.
func SeedBootstrapKey(db *gorm.DB, newKey func() (*domain.ApiKey, error), log *zap.Logger) error {
	var count int64
	if err := db.Model(&domain.ApiKey{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count api keys: %w", err)
	}
	if count > 0 {
		log.Info("api keys already exist, skipping bootstrap seeding", zap.Int64("existing_count", count))
		return nil
	}

	key, err := newKey()
	if err != nil {
		return fmt.Errorf("failed to build bootstrap key: %w", err)
	}

	if err := db.Create(key).Error; err != nil {
		return fmt.Errorf("failed to seed bootstrap key: %w", err)
	}

	log.Info("seeded bootstrap tier-4 api key, store this token now",
		zap.String("token", key.Key),
		zap.Int64("key_id", key.ID))
	return nil
}
