package useragent

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaIPhoneSafari  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaIPadSafari    = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/604.1"
	uaAndroidPhone  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	uaGooglebot     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser("", zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestParse_DeviceTypes(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name       string
		userAgent  string
		deviceType string
	}{
		{"windows desktop", uaChromeWindows, DeviceDesktop},
		{"iphone", uaIPhoneSafari, DeviceMobile},
		{"ipad", uaIPadSafari, DeviceTablet},
		{"android phone", uaAndroidPhone, DeviceMobile},
		{"googlebot", uaGooglebot, DeviceOther},
		{"garbage", "not-a-real-user-agent", DeviceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := p.Parse(tt.userAgent)
			require.Equal(t, tt.deviceType, info.DeviceType)
		})
	}
}

func TestParse_BrowserAndOS(t *testing.T) {
	p := newTestParser(t)

	info := p.Parse(uaChromeWindows)
	require.Equal(t, "Chrome", info.Browser)
	require.Equal(t, "Windows", info.OS)
	require.Equal(t, uaChromeWindows, info.Raw)
}

func TestParse_EmptyInput(t *testing.T) {
	p := newTestParser(t)

	info := p.Parse("")
	require.Equal(t, DeviceUnknown, info.DeviceType)
	require.Equal(t, DeviceUnknown, info.Browser)
	require.Equal(t, DeviceUnknown, info.OS)
	require.Empty(t, info.Raw)
}
