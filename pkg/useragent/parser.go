package useragent

import (
	"fmt"
	"os"
	"strings"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

// Device type categories recorded with every click.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceOther   = "other"
	DeviceUnknown = "unknown"
)

// Parser wraps the uap-go User-Agent parser with device type detection.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

// DeviceInfo is the derived client information for one User-Agent string.
type DeviceInfo struct {
	DeviceType string
	Browser    string
	OS         string
	Raw        string
}

// NewParser creates a parser from a uap-core regexes file. When the path is
// empty the definitions compiled into uap-go are used instead.
func NewParser(regexFilePath string, log *zap.Logger) (*Parser, error) {
	if regexFilePath == "" {
		return &Parser{parser: uaparser.NewFromSaved(), log: log}, nil
	}

	regexBytes, err := os.ReadFile(regexFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read regexes file: %w", err)
	}

	parser, err := uaparser.NewFromBytes(regexBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create User-Agent parser: %w", err)
	}

	log.Info("User-Agent parser initialized", zap.String("regexes_file", regexFilePath))

	return &Parser{parser: parser, log: log}, nil
}

// Parse derives device/browser/OS facts from a raw User-Agent string.
// Unparseable input yields "unknown" for all fields; Parse never fails.
func (p *Parser) Parse(userAgent string) DeviceInfo {
	if userAgent == "" {
		return DeviceInfo{
			DeviceType: DeviceUnknown,
			Browser:    DeviceUnknown,
			OS:         DeviceUnknown,
		}
	}

	client := p.parser.Parse(userAgent)

	info := DeviceInfo{
		Browser: normalizeFamily(client.UserAgent.Family),
		OS:      normalizeFamily(client.Os.Family),
		Raw:     userAgent,
	}
	info.DeviceType = deviceType(client, userAgent)

	return info
}

func deviceType(client *uaparser.Client, userAgent string) string {
	if isBot(client.UserAgent.Family, userAgent) {
		return DeviceOther
	}

	ua := strings.ToLower(userAgent)
	device := strings.ToLower(client.Device.Family)
	osFamily := client.Os.Family

	switch {
	case strings.Contains(device, "ipad"), strings.Contains(device, "tablet"),
		strings.Contains(device, "kindle"):
		return DeviceTablet
	case strings.Contains(device, "iphone"), strings.Contains(device, "blackberry"),
		strings.Contains(device, "phone"):
		return DeviceMobile
	}

	switch osFamily {
	case "iOS":
		if strings.Contains(ua, "ipad") {
			return DeviceTablet
		}
		return DeviceMobile
	case "Android":
		// Android tablets typically omit "Mobile" from the User-Agent.
		if !strings.Contains(ua, "mobile") {
			return DeviceTablet
		}
		return DeviceMobile
	case "Windows Phone", "BlackBerry OS", "Firefox OS", "KaiOS":
		return DeviceMobile
	}

	if isDesktopOS(osFamily) {
		return DeviceDesktop
	}

	return DeviceUnknown
}

var botMarkers = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider",
	"yandexbot", "facebookexternalhit", "twitterbot", "linkedinbot",
	"telegrambot", "whatsapp", "bot", "crawler", "spider", "scraper",
	"curl", "wget",
}

func isBot(uaFamily, userAgent string) bool {
	family := strings.ToLower(uaFamily)
	ua := strings.ToLower(userAgent)
	for _, marker := range botMarkers {
		if strings.Contains(family, marker) || strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

func isDesktopOS(osFamily string) bool {
	desktop := []string{
		"Windows", "Mac OS X", "macOS", "Linux", "Ubuntu",
		"Chrome OS", "Fedora", "FreeBSD", "OpenBSD", "NetBSD",
	}
	for _, name := range desktop {
		if strings.Contains(osFamily, name) {
			return true
		}
	}
	return false
}

func normalizeFamily(family string) string {
	if family == "" || family == "Other" {
		return DeviceUnknown
	}
	return family
}
