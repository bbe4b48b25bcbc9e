package useragent

import (
	"regexp"
	"strings"
)

// DeviceClass is the closed set of device classes a visit is counted under.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "Mobile"
	DeviceTablet  DeviceClass = "Tablet"
	DeviceDesktop DeviceClass = "Desktop"
	DeviceBot     DeviceClass = "Bot"
	DeviceOther   DeviceClass = "Other"
	DeviceUnknown DeviceClass = "Unknown"
)

// BrowserFamily is the closed set of browser families.
type BrowserFamily string

const (
	BrowserEdge    BrowserFamily = "Edge"
	BrowserSamsung BrowserFamily = "Samsung Internet"
	BrowserOpera   BrowserFamily = "Opera"
	BrowserChrome  BrowserFamily = "Chrome"
	BrowserFirefox BrowserFamily = "Firefox"
	BrowserSafari  BrowserFamily = "Safari"
	BrowserIE      BrowserFamily = "IE"
	BrowserOther   BrowserFamily = "Other"
	BrowserUnknown BrowserFamily = "Unknown"
)

// OSFamily is the closed set of operating system families.
type OSFamily string

const (
	OSWindows  OSFamily = "Windows"
	OSIOS      OSFamily = "iOS"
	OSMacOS    OSFamily = "macOS"
	OSAndroid  OSFamily = "Android"
	OSChromeOS OSFamily = "ChromeOS"
	OSLinux    OSFamily = "Linux"
	OSOther    OSFamily = "Other"
	OSUnknown  OSFamily = "Unknown"
)

// Classification contains the parsed information from a User-Agent string
type Classification struct {
	Device  DeviceClass   `json:"device"`
	Browser BrowserFamily `json:"browser"`
	OS      OSFamily      `json:"os"`
}

var (
	// Browser patterns (order matters - more specific first)
	browserPatterns = []struct {
		family  BrowserFamily
		pattern *regexp.Regexp
	}{
		{BrowserEdge, regexp.MustCompile(`(?i)Edg(?:e|A|iOS)?/\d+`)},
		{BrowserSamsung, regexp.MustCompile(`(?i)SamsungBrowser/\d+`)},
		{BrowserOpera, regexp.MustCompile(`(?i)(?:Opera|OPR)/\d+`)},
		{BrowserChrome, regexp.MustCompile(`(?i)(?:Chrome|CriOS)/\d+`)},
		{BrowserFirefox, regexp.MustCompile(`(?i)(?:Firefox|FxiOS)/\d+`)},
		{BrowserSafari, regexp.MustCompile(`(?i)Version/\d+.*Safari`)},
		{BrowserIE, regexp.MustCompile(`(?i)MSIE\s+\d+`)},
		{BrowserIE, regexp.MustCompile(`(?i)Trident/.*rv:\d+`)},
	}

	// OS patterns; iOS before macOS because iPhone agents say "like Mac OS X"
	osPatterns = []struct {
		family  OSFamily
		pattern *regexp.Regexp
	}{
		{OSWindows, regexp.MustCompile(`(?i)Windows`)},
		{OSIOS, regexp.MustCompile(`(?i)iPhone|iPad|iPod`)},
		{OSMacOS, regexp.MustCompile(`(?i)Mac OS X|Macintosh`)},
		{OSAndroid, regexp.MustCompile(`(?i)Android`)},
		{OSChromeOS, regexp.MustCompile(`(?i)CrOS`)},
		{OSLinux, regexp.MustCompile(`(?i)Linux|X11`)},
	}

	mobilePattern  = regexp.MustCompile(`(?i)Mobi|iPhone|iPod|Windows Phone|BlackBerry|BB10|Opera Mini|IEMobile`)
	tabletPattern  = regexp.MustCompile(`(?i)iPad|Tablet|Kindle|Silk/|PlayBook`)
	androidPattern = regexp.MustCompile(`(?i)Android`)
	desktopPattern = regexp.MustCompile(`(?i)Windows NT|Macintosh|X11|CrOS|Linux x86_64`)
	botPattern     = regexp.MustCompile(`(?i)bot|crawler|spider|scraper|slurp|curl|wget|python|go-http|java/|httpclient|headless|lighthouse|facebookexternalhit`)
)

// Parse classifies a User-Agent string. An empty string yields Unknown for
// every field. Device class priority is Mobile > Tablet > Desktop > Bot > Other.
func Parse(userAgent string) Classification {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return Classification{
			Device:  DeviceUnknown,
			Browser: BrowserUnknown,
			OS:      OSUnknown,
		}
	}

	info := Classification{
		Device:  detectDevice(userAgent),
		Browser: BrowserOther,
		OS:      OSOther,
	}

	for _, bp := range browserPatterns {
		if bp.pattern.MatchString(userAgent) {
			info.Browser = bp.family
			break
		}
	}

	for _, op := range osPatterns {
		if op.pattern.MatchString(userAgent) {
			info.OS = op.family
			break
		}
	}

	return info
}

func detectDevice(userAgent string) DeviceClass {
	isTablet := tabletPattern.MatchString(userAgent)

	switch {
	case mobilePattern.MatchString(userAgent) && !isTablet:
		return DeviceMobile
	case isTablet, androidPattern.MatchString(userAgent):
		// Android without "Mobi" is a tablet by Google's UA convention.
		return DeviceTablet
	case desktopPattern.MatchString(userAgent):
		return DeviceDesktop
	case botPattern.MatchString(userAgent):
		return DeviceBot
	default:
		return DeviceOther
	}
}

// IsKnownDevice reports whether d is one of the declared device classes.
func IsKnownDevice(d DeviceClass) bool {
	switch d {
	case DeviceMobile, DeviceTablet, DeviceDesktop, DeviceBot, DeviceOther, DeviceUnknown:
		return true
	}
	return false
}
