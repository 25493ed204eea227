package audit

import (
	"strings"

	"authguard/internal/models"

	"github.com/mssola/useragent"
)

const unknown = "unknown"

// ParseDevice classifies a User-Agent header
func ParseDevice(userAgent string) models.Device {
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()

	device := models.Device{
		Name:    orUnknown(ua.Platform()),
		OS:      orUnknown(ua.OS()),
		Browser: orUnknown(browser),
	}

	switch {
	case userAgent == "" || ua.Bot():
		device.Type = models.DeviceOther
	case isTablet(userAgent):
		device.Type = models.DeviceTablet
	case ua.Mobile():
		device.Type = models.DeviceMobile
	default:
		device.Type = models.DeviceDesktop
	}
	return device
}

func isTablet(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") {
		return true
	}
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
