package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexTokenRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestNewToken(t *testing.T) {
	first, err := NewToken()
	require.NoError(t, err)
	second, err := NewToken()
	require.NoError(t, err)

	assert.Regexp(t, hexTokenRe, first)
	assert.NotEqual(t, first, second)
}

func TestAPIKeyService_Create_TierDefaults(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	cases := []struct {
		tier       int16
		daily      *int
		monthly    *int
		customCode bool
		bulk       bool
	}{
		{tier: 1, daily: intPtr(50), monthly: intPtr(500)},
		{tier: 2, daily: intPtr(500), monthly: intPtr(5000), customCode: true},
		{tier: 3, daily: intPtr(5000), monthly: intPtr(50000), customCode: true, bulk: true},
		{tier: 4, customCode: true, bulk: true},
	}

	for _, tc := range cases {
		key, err := ts.keys.Create(ctx, CreateKeyParams{Tier: tc.tier, Name: "test"})
		require.NoError(t, err, "tier %d", tc.tier)

		assert.Regexp(t, hexTokenRe, key.Key)
		assert.True(t, key.IsActive)
		assert.Equal(t, tc.daily, key.DailyLimit, "tier %d daily", tc.tier)
		assert.Equal(t, tc.monthly, key.MonthlyLimit, "tier %d monthly", tc.tier)
		assert.Equal(t, tc.customCode, key.CanCustomCode, "tier %d custom code", tc.tier)
		assert.Equal(t, tc.bulk, key.CanBulkCreate, "tier %d bulk", tc.tier)
	}
}

func TestAPIKeyService_Create_ExplicitLimitsWin(t *testing.T) {
	ts := newTestStack(t)

	key, err := ts.keys.Create(context.Background(), CreateKeyParams{
		Tier:         1,
		DailyLimit:   intPtr(10),
		MonthlyLimit: intPtr(100),
	})
	require.NoError(t, err)

	require.NotNil(t, key.DailyLimit)
	assert.Equal(t, 10, *key.DailyLimit)
	require.NotNil(t, key.MonthlyLimit)
	assert.Equal(t, 100, *key.MonthlyLimit)
}

func TestAPIKeyService_Create_UnknownTier(t *testing.T) {
	ts := newTestStack(t)

	for _, tier := range []int16{0, 5, -1} {
		_, err := ts.keys.Create(context.Background(), CreateKeyParams{Tier: tier})
		assert.ErrorIs(t, err, ErrInvalidInput, "tier %d", tier)
	}
}

func TestAPIKeyService_Update(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	key, err := ts.keys.Create(ctx, CreateKeyParams{Tier: 2, Name: "before"})
	require.NoError(t, err)

	name := "after"
	inactive := false
	updated, err := ts.keys.Update(ctx, key.ID, UpdateKeyParams{
		Name:       &name,
		IsActive:   &inactive,
		DailyLimit: intPtr(7),
	})
	require.NoError(t, err)

	assert.Equal(t, "after", updated.Name)
	assert.False(t, updated.IsActive)
	require.NotNil(t, updated.DailyLimit)
	assert.Equal(t, 7, *updated.DailyLimit)
	// Untouched fields survive a partial update.
	require.NotNil(t, updated.MonthlyLimit)
	assert.Equal(t, 5000, *updated.MonthlyLimit)

	updated, err = ts.keys.Update(ctx, key.ID, UpdateKeyParams{ClearLimits: true})
	require.NoError(t, err)
	assert.Nil(t, updated.DailyLimit)
	assert.Nil(t, updated.MonthlyLimit)

	_, err = ts.keys.Update(ctx, 99999, UpdateKeyParams{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAPIKeyService_ResetUsage(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	key, err := ts.keys.Create(ctx, CreateKeyParams{Tier: 1})
	require.NoError(t, err)

	links := ts.links
	for _, target := range []string{"https://example.com/a", "https://example.com/b"} {
		_, _, err := links.Create(ctx, target, CreateOptions{}, key)
		require.NoError(t, err)
	}
	require.Equal(t, 2, ts.usageToday(t, key))

	require.NoError(t, ts.keys.ResetUsage(ctx, key.ID))
	assert.Equal(t, 0, ts.usageToday(t, key))

	assert.ErrorIs(t, ts.keys.ResetUsage(ctx, 99999), ErrNotFound)
}

func TestAPIKeyService_Delete(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	key, err := ts.keys.Create(ctx, CreateKeyParams{Tier: 1})
	require.NoError(t, err)

	link, _, err := ts.links.Create(ctx, "https://example.com/t", CreateOptions{}, key)
	require.NoError(t, err)

	require.NoError(t, ts.keys.Delete(ctx, key.ID))
	assert.ErrorIs(t, ts.keys.Delete(ctx, key.ID), ErrNotFound)

	// The link survives its key; its owner is simply orphaned.
	resolved, err := ts.links.Resolve(ctx, link.Code, "")
	require.NoError(t, err)
	require.NotNil(t, resolved.OwnerKey)
	assert.Equal(t, key.Key, *resolved.OwnerKey)
}

func TestAPIKeyService_List(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ts.keys.Create(ctx, CreateKeyParams{Tier: 1})
		require.NoError(t, err)
	}

	keys, err := ts.keys.List(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestBootstrapKey(t *testing.T) {
	key, err := BootstrapKey()
	require.NoError(t, err)

	assert.Regexp(t, hexTokenRe, key.Key)
	assert.EqualValues(t, 4, key.Tier)
	assert.True(t, key.IsActive)
	assert.Nil(t, key.DailyLimit)
	assert.Nil(t, key.MonthlyLimit)
	assert.True(t, key.CanCustomCode)
	assert.True(t, key.CanSetExpiration)
	assert.True(t, key.CanPasswordProtect)
	assert.True(t, key.CanBulkCreate)
}
