package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"snipr/internal/auth"
	"snipr/internal/domain"
	"snipr/internal/policy"
	"snipr/internal/quota"
	"snipr/internal/repository/memory"
	"snipr/pkg/useragent"
)

type testStack struct {
	storage *memory.MemStorage
	links   *LinkService
	clicks  *ClickService
	keys    *APIKeyService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	log := zap.NewNop()
	storage := memory.New()

	parser, err := useragent.NewParser("", log)
	require.NoError(t, err)

	allocator := NewCodeAllocator(storage, 6)
	ledger := quota.NewLedger(storage)
	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)

	return &testStack{
		storage: storage,
		links:   NewLinkService(storage, allocator, ledger, passwords, log),
		clicks:  NewClickService(storage, parser, log),
		keys:    NewAPIKeyService(storage, log),
	}
}

// seedKey stores a key for the given tier with policy capabilities and
// optional explicit limits.
func (ts *testStack) seedKey(t *testing.T, tier policy.Tier, daily, monthly *int) *domain.ApiKey {
	t.Helper()

	caps, err := policy.CapabilitiesFor(tier)
	require.NoError(t, err)

	token, err := NewToken()
	require.NoError(t, err)

	key := &domain.ApiKey{
		Key:                token,
		Tier:               int16(tier),
		IsActive:           true,
		DailyLimit:         daily,
		MonthlyLimit:       monthly,
		CanCustomCode:      caps.CustomCode,
		CanSetExpiration:   caps.SetExpiration,
		CanPasswordProtect: caps.PasswordProtect,
		CanBulkCreate:      caps.BulkCreate,
	}
	require.NoError(t, ts.storage.CreateAPIKey(context.Background(), key))
	return key
}

func (ts *testStack) usageToday(t *testing.T, key *domain.ApiKey) int {
	t.Helper()
	stored, err := ts.storage.GetAPIKeyByToken(context.Background(), key.Key)
	require.NoError(t, err)
	return stored.UsageToday
}

func intPtr(v int) *int { return &v }
