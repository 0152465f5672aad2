package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"snipr/internal/domain"
	"snipr/internal/policy"
	"snipr/internal/repository"
)

// APIKeyService is the super-admin surface for key lifecycle management.
type APIKeyService struct {
	storage repository.Storage
	log     *zap.Logger
}

func NewAPIKeyService(storage repository.Storage, log *zap.Logger) *APIKeyService {
	return &APIKeyService{
		storage: storage,
		log:     log,
	}
}

// NewToken generates a 64-character hex key token from crypto/rand.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateKeyParams configures a new key. Nil limits fall back to the tier
// defaults; capabilities always come from the tier policy.
type CreateKeyParams struct {
	Tier         int16
	Name         string
	Description  string
	DailyLimit   *int
	MonthlyLimit *int
}

// Create builds a key for the given tier. Unknown tiers are rejected here,
// at creation time, rather than leniently defaulted later.
func (s *APIKeyService) Create(ctx context.Context, params CreateKeyParams) (*domain.ApiKey, error) {
	tier := policy.Tier(params.Tier)

	caps, err := policy.CapabilitiesFor(tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	limits, err := policy.DefaultLimits(tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	if params.DailyLimit != nil {
		limits.Daily = params.DailyLimit
	}
	if params.MonthlyLimit != nil {
		limits.Monthly = params.MonthlyLimit
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := &domain.ApiKey{
		Key:                token,
		Tier:               params.Tier,
		Name:               params.Name,
		Description:        params.Description,
		IsActive:           true,
		DailyLimit:         limits.Daily,
		MonthlyLimit:       limits.Monthly,
		LastResetDaily:     now,
		LastResetMonthly:   now,
		CanCustomCode:      caps.CustomCode,
		CanSetExpiration:   caps.SetExpiration,
		CanPasswordProtect: caps.PasswordProtect,
		CanBulkCreate:      caps.BulkCreate,
	}

	if err := s.storage.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}

	s.log.Info("created api key",
		zap.Int64("key_id", key.ID),
		zap.Int16("tier", key.Tier))
	return key, nil
}

// UpdateKeyParams carries partial key updates; nil leaves a field
// unchanged. ClearLimits removes both limits, making the key unlimited.
type UpdateKeyParams struct {
	Name         *string
	Description  *string
	IsActive     *bool
	DailyLimit   *int
	MonthlyLimit *int
	ClearLimits  bool
}

func (s *APIKeyService) Update(ctx context.Context, id int64, params UpdateKeyParams) (*domain.ApiKey, error) {
	key, err := s.storage.GetAPIKeyByID(ctx, id)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	if params.Name != nil {
		key.Name = *params.Name
	}
	if params.Description != nil {
		key.Description = *params.Description
	}
	if params.IsActive != nil {
		key.IsActive = *params.IsActive
	}
	if params.ClearLimits {
		key.DailyLimit = nil
		key.MonthlyLimit = nil
	} else {
		if params.DailyLimit != nil {
			key.DailyLimit = params.DailyLimit
		}
		if params.MonthlyLimit != nil {
			key.MonthlyLimit = params.MonthlyLimit
		}
	}

	if err := s.storage.UpdateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to update api key: %w", err)
	}

	return key, nil
}

// ResetUsage zeroes both usage counters and restarts the windows.
func (s *APIKeyService) ResetUsage(ctx context.Context, id int64) error {
	err := s.storage.ResetAPIKeyUsage(ctx, id)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to reset api key usage: %w", err)
	}
	return nil
}

// Delete removes a key. Links created under it keep their owner_key value
// but it no longer resolves to a live key (orphaned ownership).
func (s *APIKeyService) Delete(ctx context.Context, id int64) error {
	err := s.storage.DeleteAPIKey(ctx, id)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}

	s.log.Info("deleted api key", zap.Int64("key_id", id))
	return nil
}

func (s *APIKeyService) Get(ctx context.Context, id int64) (*domain.ApiKey, error) {
	key, err := s.storage.GetAPIKeyByID(ctx, id)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return key, nil
}

func (s *APIKeyService) List(ctx context.Context) ([]*domain.ApiKey, error) {
	keys, err := s.storage.ListAPIKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// BootstrapKey builds (without persisting) a tier-4 key for first-run
// seeding.
func BootstrapKey() (*domain.ApiKey, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	caps, err := policy.CapabilitiesFor(policy.Tier4)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &domain.ApiKey{
		Key:                token,
		Tier:               int16(policy.Tier4),
		Name:               "bootstrap",
		Description:        "initial tier-4 key created on first run",
		IsActive:           true,
		LastResetDaily:     now,
		LastResetMonthly:   now,
		CanCustomCode:      caps.CustomCode,
		CanSetExpiration:   caps.SetExpiration,
		CanPasswordProtect: caps.PasswordProtect,
		CanBulkCreate:      caps.BulkCreate,
	}, nil
}
