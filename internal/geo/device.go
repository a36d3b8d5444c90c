package geo

import ua "github.com/mileusna/useragent"

const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
)

// DetectDevice classifies a User-Agent string. Bots are checked first.
func DetectDevice(uaString string) string {
	if uaString == "" {
		return Unknown
	}

	parsed := ua.Parse(uaString)
	switch {
	case parsed.Bot:
		return DeviceBot
	case parsed.Tablet:
		return DeviceTablet
	case parsed.Mobile:
		return DeviceMobile
	case parsed.Desktop:
		return DeviceDesktop
	}
	return Unknown
}
