package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"snipr/internal/domain"
	"snipr/internal/repository"
)

// PostgresStorage implements the Storage interface on top of GORM/Postgres.
// The unique index on links.code is the correctness backstop for code
// allocation; duplicate-key violations surface as repository.ErrCodeExists.
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// --- Link Methods ---

func (s *PostgresStorage) CreateLink(ctx context.Context, link *domain.Link) error {
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrCodeExists
		}
		s.log.Error("failed to create link", zap.String("code", link.Code), zap.Error(err))
		return fmt.Errorf("failed to create link: %w", err)
	}

	s.log.Info("created link", zap.String("code", link.Code))
	return nil
}

func (s *PostgresStorage) GetLink(ctx context.Context, code string) (*domain.Link, error) {
	var link domain.Link

	err := s.db.WithContext(ctx).
		Where("code = ? AND is_deleted = ?", code, false).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrCodeNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

func (s *PostgresStorage) GetLinkAnyState(ctx context.Context, code string) (*domain.Link, error) {
	var link domain.Link

	err := s.db.WithContext(ctx).Where("code = ?", code).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrCodeNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

func (s *PostgresStorage) FindLinkByTarget(ctx context.Context, target string) (*domain.Link, error) {
	var link domain.Link

	err := s.db.WithContext(ctx).
		Where("target = ? AND is_deleted = ? AND is_active = ?", target, false, true).
		Order("id").
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrCodeNotFound
	}
	if err != nil {
		s.log.Error("failed to find link by target", zap.Error(err))
		return nil, fmt.Errorf("failed to find link by target: %w", err)
	}

	return &link, nil
}

func (s *PostgresStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64

	// Deleted rows count too: codes are never reused.
	err := s.db.WithContext(ctx).Model(&domain.Link{}).
		Where("code = ?", code).
		Count(&count).Error
	if err != nil {
		s.log.Error("failed to check code existence", zap.String("code", code), zap.Error(err))
		return false, fmt.Errorf("failed to check code: %w", err)
	}

	return count > 0, nil
}

func (s *PostgresStorage) UpdateLink(ctx context.Context, link *domain.Link) error {
	result := s.db.WithContext(ctx).Model(&domain.Link{}).
		Where("code = ?", link.Code).
		Select("target", "expires_at", "is_active", "is_deleted",
			"password_hash", "title", "description", "tags", "updated_at").
		Updates(map[string]interface{}{
			"target":        link.Target,
			"expires_at":    link.ExpiresAt,
			"is_active":     link.IsActive,
			"is_deleted":    link.IsDeleted,
			"password_hash": link.PasswordHash,
			"title":         link.Title,
			"description":   link.Description,
			"tags":          link.Tags,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		s.log.Error("failed to update link", zap.String("code", link.Code), zap.Error(result.Error))
		return fmt.Errorf("failed to update link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCodeNotFound
	}

	return nil
}

func (s *PostgresStorage) SoftDeleteLink(ctx context.Context, code string) error {
	result := s.db.WithContext(ctx).Model(&domain.Link{}).
		Where("code = ? AND is_deleted = ?", code, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		s.log.Error("failed to soft delete link", zap.String("code", code), zap.Error(result.Error))
		return fmt.Errorf("failed to soft delete link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCodeNotFound
	}

	s.log.Info("soft deleted link", zap.String("code", code))
	return nil
}

func (s *PostgresStorage) PermanentDeleteLink(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link domain.Link
		err := tx.Where("code = ?", code).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrCodeNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get link for permanent delete: %w", err)
		}

		if err := tx.Where("link_id = ?", link.ID).Delete(&domain.ClickEvent{}).Error; err != nil {
			return fmt.Errorf("failed to delete click events: %w", err)
		}
		if err := tx.Delete(&link).Error; err != nil {
			return fmt.Errorf("failed to delete link: %w", err)
		}

		s.log.Info("permanently deleted link", zap.String("code", code), zap.Int64("link_id", link.ID))
		return nil
	})
}

func (s *PostgresStorage) ListLinksByOwner(ctx context.Context, ownerKey string) ([]*domain.Link, error) {
	var links []*domain.Link

	err := s.db.WithContext(ctx).
		Where("owner_key = ? AND is_deleted = ?", ownerKey, false).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		s.log.Error("failed to list links by owner", zap.Error(err))
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	return links, nil
}

// --- Click Methods ---

func (s *PostgresStorage) RecordClick(ctx context.Context, code string, click *domain.ClickEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link domain.Link
		err := tx.Where("code = ? AND is_deleted = ?", code, false).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrCodeNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get link for click: %w", err)
		}

		// Atomic increment; a plain read-modify-write would lose updates
		// under concurrent redirects.
		err = tx.Model(&link).UpdateColumn("click_count", gorm.Expr("click_count + 1")).Error
		if err != nil {
			return fmt.Errorf("failed to update click count: %w", err)
		}

		click.LinkID = link.ID
		if click.ClickedAt.IsZero() {
			click.ClickedAt = time.Now().UTC()
		}
		if err := tx.Create(click).Error; err != nil {
			return fmt.Errorf("failed to create click event: %w", err)
		}

		return nil
	})
}

func (s *PostgresStorage) AggregateClicks(ctx context.Context, linkID int64) (*domain.ClickBreakdown, error) {
	devices, err := s.groupClicks(ctx, linkID, "device_type", 0)
	if err != nil {
		return nil, err
	}
	browsers, err := s.groupClicks(ctx, linkID, "browser", 10)
	if err != nil {
		return nil, err
	}
	systems, err := s.groupClicks(ctx, linkID, "os", 10)
	if err != nil {
		return nil, err
	}

	deviceMap := make(map[string]int64, len(devices))
	for _, d := range devices {
		deviceMap[d.Name] = d.Count
	}

	return &domain.ClickBreakdown{
		Devices:          deviceMap,
		Browsers:         browsers,
		OperatingSystems: systems,
	}, nil
}

func (s *PostgresStorage) groupClicks(ctx context.Context, linkID int64, column string, limit int) ([]domain.NameCount, error) {
	var results []domain.NameCount

	query := s.db.WithContext(ctx).Model(&domain.ClickEvent{}).
		Select(fmt.Sprintf("%s as name, count(*) as count", column)).
		Where("link_id = ?", linkID).
		Group(column).
		Order("count DESC, name")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&results).Error; err != nil {
		s.log.Error("failed to aggregate clicks",
			zap.Int64("link_id", linkID),
			zap.String("column", column),
			zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate clicks by %s: %w", column, err)
	}

	return results, nil
}

// --- API Key Methods ---

func (s *PostgresStorage) CreateAPIKey(ctx context.Context, key *domain.ApiKey) error {
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		s.log.Error("failed to create api key", zap.Error(err))
		return fmt.Errorf("failed to create api key: %w", err)
	}

	s.log.Info("created api key", zap.Int64("key_id", key.ID), zap.Int16("tier", key.Tier))
	return nil
}

func (s *PostgresStorage) GetAPIKeyByToken(ctx context.Context, token string) (*domain.ApiKey, error) {
	var key domain.ApiKey

	err := s.db.WithContext(ctx).Where("key = ?", token).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrKeyNotFound
	}
	if err != nil {
		s.log.Error("failed to get api key by token", zap.Error(err))
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return &key, nil
}

func (s *PostgresStorage) GetAPIKeyByID(ctx context.Context, id int64) (*domain.ApiKey, error) {
	var key domain.ApiKey

	err := s.db.WithContext(ctx).First(&key, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrKeyNotFound
	}
	if err != nil {
		s.log.Error("failed to get api key", zap.Int64("key_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return &key, nil
}

func (s *PostgresStorage) UpdateAPIKey(ctx context.Context, key *domain.ApiKey) error {
	result := s.db.WithContext(ctx).Model(&domain.ApiKey{}).
		Where("id = ?", key.ID).
		Select("tier", "name", "description", "is_active", "daily_limit", "monthly_limit",
			"can_custom_code", "can_set_expiration", "can_password_protect", "can_bulk_create",
			"updated_at").
		Updates(key)
	if result.Error != nil {
		s.log.Error("failed to update api key", zap.Int64("key_id", key.ID), zap.Error(result.Error))
		return fmt.Errorf("failed to update api key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrKeyNotFound
	}

	return nil
}

func (s *PostgresStorage) DeleteAPIKey(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&domain.ApiKey{}, id)
	if result.Error != nil {
		s.log.Error("failed to delete api key", zap.Int64("key_id", id), zap.Error(result.Error))
		return fmt.Errorf("failed to delete api key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrKeyNotFound
	}

	s.log.Info("deleted api key", zap.Int64("key_id", id))
	return nil
}

func (s *PostgresStorage) ListAPIKeys(ctx context.Context) ([]*domain.ApiKey, error) {
	var keys []*domain.ApiKey

	if err := s.db.WithContext(ctx).Order("id").Find(&keys).Error; err != nil {
		s.log.Error("failed to list api keys", zap.Error(err))
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}

	return keys, nil
}

func (s *PostgresStorage) ResetAPIKeyUsage(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&domain.ApiKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"usage_today":        0,
			"usage_month":        0,
			"last_reset_daily":   now,
			"last_reset_monthly": now,
			"updated_at":         now,
		})
	if result.Error != nil {
		s.log.Error("failed to reset api key usage", zap.Int64("key_id", id), zap.Error(result.Error))
		return fmt.Errorf("failed to reset api key usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrKeyNotFound
	}

	s.log.Info("reset api key usage", zap.Int64("key_id", id))
	return nil
}

// ConsumeQuota locks the key row for the duration of the transaction so the
// window reset, the limit check and the increment happen as one step even
// under concurrent calls for the same key.
func (s *PostgresStorage) ConsumeQuota(ctx context.Context, token string, units int, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var key domain.ApiKey
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("key = ?", token).
			First(&key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock api key row: %w", err)
		}

		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

		if key.LastResetDaily.UTC().Before(dayStart) {
			key.UsageToday = 0
			key.LastResetDaily = now
		}
		if key.LastResetMonthly.UTC().Before(monthStart) {
			key.UsageMonth = 0
			key.LastResetMonthly = now
		}

		if key.DailyLimit != nil && key.UsageToday >= *key.DailyLimit {
			return repository.ErrDailyLimitExceeded
		}
		if key.MonthlyLimit != nil && key.UsageMonth >= *key.MonthlyLimit {
			return repository.ErrMonthlyLimitExceeded
		}

		key.UsageToday += units
		key.UsageMonth += units

		err = tx.Model(&key).Updates(map[string]interface{}{
			"usage_today":        key.UsageToday,
			"usage_month":        key.UsageMonth,
			"last_reset_daily":   key.LastResetDaily,
			"last_reset_monthly": key.LastResetMonthly,
			"updated_at":         now,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to persist quota usage: %w", err)
		}

		return nil
	})
}
