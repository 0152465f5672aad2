package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipr/internal/domain"
	"snipr/internal/policy"
	"snipr/pkg/useragent"
)

const chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestClickService_Record(t *testing.T) {
	ts := newTestStack(t)
	key := ts.seedKey(t, policy.Tier1, nil, nil)
	ctx := context.Background()

	link, _, err := ts.links.Create(ctx, "https://example.com/t", CreateOptions{}, key)
	require.NoError(t, err)

	err = ts.clicks.Record(ctx, link.Code, RequestContext{
		IPAddress: "203.0.113.7",
		UserAgent: chromeWindowsUA,
		Referer:   "https://news.example.com",
		ClickedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	stats, err := ts.clicks.Stats(ctx, link.Code, key)
	require.NoError(t, err)

	assert.EqualValues(t, 1, stats.Link.ClickCount)
	assert.EqualValues(t, 1, stats.Breakdown.Devices[useragent.DeviceDesktop])
	require.Len(t, stats.Breakdown.Browsers, 1)
	assert.Equal(t, "Chrome", stats.Breakdown.Browsers[0].Name)
}

func TestClickService_Record_UnknownUserAgent(t *testing.T) {
	ts := newTestStack(t)
	key := ts.seedKey(t, policy.Tier1, nil, nil)
	ctx := context.Background()

	link, _, err := ts.links.Create(ctx, "https://example.com/t", CreateOptions{}, key)
	require.NoError(t, err)

	// A missing User-Agent is recorded, not rejected.
	err = ts.clicks.Record(ctx, link.Code, RequestContext{ClickedAt: time.Now().UTC()})
	require.NoError(t, err)

	stats, err := ts.clicks.Stats(ctx, link.Code, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Breakdown.Devices[useragent.DeviceUnknown])
}

func TestClickService_Record_UnknownCode(t *testing.T) {
	ts := newTestStack(t)

	err := ts.clicks.Record(context.Background(), "nosuch", RequestContext{ClickedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClickService_Record_Concurrent(t *testing.T) {
	ts := newTestStack(t)
	key := ts.seedKey(t, policy.Tier1, nil, nil)
	ctx := context.Background()

	link, _, err := ts.links.Create(ctx, "https://example.com/t", CreateOptions{}, key)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ts.clicks.Record(ctx, link.Code, RequestContext{
				UserAgent: chromeWindowsUA,
				ClickedAt: time.Now().UTC(),
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := ts.clicks.Stats(ctx, link.Code, key)
	require.NoError(t, err)
	assert.EqualValues(t, n, stats.Link.ClickCount)
	assert.EqualValues(t, n, stats.Breakdown.Devices[useragent.DeviceDesktop])
}

func TestClickService_Stats_OwnershipEnforced(t *testing.T) {
	ts := newTestStack(t)
	owner := ts.seedKey(t, policy.Tier1, nil, nil)
	other := ts.seedKey(t, policy.Tier1, nil, nil)
	ctx := context.Background()

	link, _, err := ts.links.Create(ctx, "https://example.com/t", CreateOptions{}, owner)
	require.NoError(t, err)

	_, err = ts.clicks.Stats(ctx, link.Code, other)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = ts.clicks.Stats(ctx, "nosuch", owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClickService_Stats_TopTenBrowsers(t *testing.T) {
	ts := newTestStack(t)
	key := ts.seedKey(t, policy.Tier1, nil, nil)
	ctx := context.Background()

	link, _, err := ts.links.Create(ctx, "https://example.com/t", CreateOptions{}, key)
	require.NoError(t, err)

	// 12 browsers with descending frequencies, written straight to storage
	// to control the derived facts.
	for i := 0; i < 12; i++ {
		for j := 0; j <= 12-i; j++ {
			err := ts.storage.RecordClick(ctx, link.Code, &domain.ClickEvent{
				DeviceType: useragent.DeviceDesktop,
				Browser:    fmt.Sprintf("browser-%02d", i),
				OS:         "Linux",
				ClickedAt:  time.Now().UTC(),
			})
			require.NoError(t, err)
		}
	}

	stats, err := ts.clicks.Stats(ctx, link.Code, key)
	require.NoError(t, err)

	require.Len(t, stats.Breakdown.Browsers, 10)
	assert.Equal(t, "browser-00", stats.Breakdown.Browsers[0].Name)
	assert.EqualValues(t, 13, stats.Breakdown.Browsers[0].Count)
	for i := 1; i < len(stats.Breakdown.Browsers); i++ {
		assert.GreaterOrEqual(t,
			stats.Breakdown.Browsers[i-1].Count,
			stats.Breakdown.Browsers[i].Count)
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name         string
		remoteAddr   string
		forwardedFor string
		realIP       string
		want         string
	}{
		{"forwarded first entry", "10.0.0.1:443", "203.0.113.7, 198.51.100.2", "", "203.0.113.7"},
		{"forwarded single", "10.0.0.1:443", "203.0.113.7", "198.51.100.9", "203.0.113.7"},
		{"real ip fallback", "10.0.0.1:443", "", " 198.51.100.9 ", "198.51.100.9"},
		{"remote addr", "203.0.113.7:51234", "", "", "203.0.113.7"},
		{"remote addr no port", "203.0.113.7", "", "", "203.0.113.7"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClientIP(tc.remoteAddr, tc.forwardedFor, tc.realIP))
		})
	}
}
