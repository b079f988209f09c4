package session

import "strings"

// Browser families reported by [ClassifyBrowser].
const (
	BrowserEdge    = "Edge"
	BrowserOpera   = "Opera"
	BrowserSamsung = "Samsung Internet"
	BrowserFirefox = "Firefox"
	BrowserChrome  = "Chrome"
	BrowserSafari  = "Safari"
	BrowserUnknown = "Unknown"
)

// Device types reported by [ClassifyDevice].
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceUnknown = "Unknown"
)

// Order matters: most engines advertise the tokens of the engines they
// derive from, so the more specific markers are checked first.
var browserMarkers = []struct {
	family  string
	markers []string
}{
	{BrowserEdge, []string{"Edg"}},
	{BrowserOpera, []string{"OPR", "Opera"}},
	{BrowserSamsung, []string{"SamsungBrowser"}},
	{BrowserFirefox, []string{"Firefox", "FxiOS"}},
	{BrowserChrome, []string{"Chrome", "CriOS"}},
	{BrowserSafari, []string{"Safari"}},
}

// ClassifyBrowser maps a User-Agent header to a browser family. The result
// is a display hint, not a security signal.
func ClassifyBrowser(userAgent string) string {
	if userAgent == "" {
		return BrowserUnknown
	}
	for _, b := range browserMarkers {
		for _, m := range b.markers {
			if strings.Contains(userAgent, m) {
				return b.family
			}
		}
	}
	return BrowserUnknown
}

// ClassifyDevice maps a User-Agent header to a coarse device type.
func ClassifyDevice(userAgent string) string {
	switch {
	case userAgent == "":
		return DeviceUnknown
	case strings.Contains(userAgent, "iPad"),
		strings.Contains(userAgent, "Tablet"),
		strings.Contains(userAgent, "Android") && !strings.Contains(userAgent, "Mobile"):
		return DeviceTablet
	case strings.Contains(userAgent, "Mobi"),
		strings.Contains(userAgent, "iPhone"),
		strings.Contains(userAgent, "Android"):
		return DeviceMobile
	case strings.Contains(userAgent, "Windows"),
		strings.Contains(userAgent, "Macintosh"),
		strings.Contains(userAgent, "X11"),
		strings.Contains(userAgent, "CrOS"),
		strings.Contains(userAgent, "Linux"):
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}
