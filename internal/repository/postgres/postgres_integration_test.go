//go:build integration
// +build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"snipr/internal/domain"
	"snipr/internal/repository"
)

func setupStorage(t *testing.T) (*PostgresStorage, func()) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testpostgres.Run(ctx,
		"postgres:16-alpine",
		testpostgres.WithDatabase("testdb"),
		testpostgres.WithUsername("testuser"),
		testpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(connStr), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&domain.ApiKey{}, &domain.Link{}, &domain.ClickEvent{}))

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return New(db, zap.NewNop()), cleanup
}

func seedTestKey(t *testing.T, storage *PostgresStorage, daily, monthly *int) *domain.ApiKey {
	t.Helper()
	key := &domain.ApiKey{
		Key:          "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Tier:         1,
		IsActive:     true,
		DailyLimit:   daily,
		MonthlyLimit: monthly,
	}
	require.NoError(t, storage.CreateAPIKey(context.Background(), key))
	return key
}

func TestPostgresStorage_DuplicateCode(t *testing.T) {
	storage, cleanup := setupStorage(t)
	defer cleanup()
	ctx := context.Background()

	first := &domain.Link{Code: "dup123", Target: "https://example.com/a", IsActive: true}
	require.NoError(t, storage.CreateLink(ctx, first))

	second := &domain.Link{Code: "dup123", Target: "https://example.com/b", IsActive: true}
	err := storage.CreateLink(ctx, second)
	assert.ErrorIs(t, err, repository.ErrCodeExists)
}

func TestPostgresStorage_GetLinkExcludesDeleted(t *testing.T) {
	storage, cleanup := setupStorage(t)
	defer cleanup()
	ctx := context.Background()

	link := &domain.Link{Code: "gone12", Target: "https://example.com/a", IsActive: true}
	require.NoError(t, storage.CreateLink(ctx, link))
	require.NoError(t, storage.SoftDeleteLink(ctx, "gone12"))

	_, err := storage.GetLink(ctx, "gone12")
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)

	// The code remains occupied.
	exists, err := storage.CodeExists(ctx, "gone12")
	require.NoError(t, err)
	assert.True(t, exists)

	// GetLinkAnyState still sees it.
	stored, err := storage.GetLinkAnyState(ctx, "gone12")
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)
}

func TestPostgresStorage_ConcurrentClicks(t *testing.T) {
	storage, cleanup := setupStorage(t)
	defer cleanup()
	ctx := context.Background()

	link := &domain.Link{Code: "clicks", Target: "https://example.com/a", IsActive: true}
	require.NoError(t, storage.CreateLink(ctx, link))

	const n = 30
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- storage.RecordClick(ctx, "clicks", &domain.ClickEvent{
				DeviceType: "desktop",
				Browser:    "Chrome",
				OS:         "Linux",
				ClickedAt:  time.Now().UTC(),
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := storage.GetLink(ctx, "clicks")
	require.NoError(t, err)
	assert.EqualValues(t, n, stored.ClickCount)

	breakdown, err := storage.AggregateClicks(ctx, stored.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n, breakdown.Devices["desktop"])
}

func TestPostgresStorage_ConsumeQuota_Concurrent(t *testing.T) {
	storage, cleanup := setupStorage(t)
	defer cleanup()
	ctx := context.Background()

	limit := 20
	key := seedTestKey(t, storage, &limit, nil)

	const attempts = 40
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- storage.ConsumeQuota(ctx, key.Key, 1, time.Now().UTC())
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, repository.ErrDailyLimitExceeded)
		}
	}
	assert.Equal(t, limit, succeeded)

	stored, err := storage.GetAPIKeyByToken(ctx, key.Key)
	require.NoError(t, err)
	assert.Equal(t, limit, stored.UsageToday)
}

func TestPostgresStorage_PermanentDeleteRemovesClicks(t *testing.T) {
	storage, cleanup := setupStorage(t)
	defer cleanup()
	ctx := context.Background()

	link := &domain.Link{Code: "purge1", Target: "https://example.com/a", IsActive: true}
	require.NoError(t, storage.CreateLink(ctx, link))
	require.NoError(t, storage.RecordClick(ctx, "purge1", &domain.ClickEvent{
		DeviceType: "desktop", Browser: "Chrome", OS: "Linux", ClickedAt: time.Now().UTC(),
	}))

	require.NoError(t, storage.PermanentDeleteLink(ctx, "purge1"))

	_, err := storage.GetLinkAnyState(ctx, "purge1")
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)

	breakdown, err := storage.AggregateClicks(ctx, link.ID)
	require.NoError(t, err)
	assert.Empty(t, breakdown.Devices)
}

func TestPostgresStorage_FindLinkByTarget(t *testing.T) {
	storage, cleanup := setupStorage(t)
	defer cleanup()
	ctx := context.Background()

	active := &domain.Link{Code: "act123", Target: "https://example.com/reuse", IsActive: true}
	require.NoError(t, storage.CreateLink(ctx, active))

	found, err := storage.FindLinkByTarget(ctx, "https://example.com/reuse")
	require.NoError(t, err)
	assert.Equal(t, "act123", found.Code)

	// Inactive links are not reuse candidates.
	active.IsActive = false
	require.NoError(t, storage.UpdateLink(ctx, active))

	_, err = storage.FindLinkByTarget(ctx, "https://example.com/reuse")
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)
}
