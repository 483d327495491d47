package useragent

import (
	"regexp"
	"strings"
)

// Info contains what the gate needs from a User-Agent string
type Info struct {
	Browser    string
	OS         string
	DeviceType string
	Bot        bool
}

var (
	// Browser patterns (order matters - more specific first)
	browserPatterns = []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"Edge", regexp.MustCompile(`(?i)Edg/\d+`)},
		{"Opera", regexp.MustCompile(`(?i)(?:Opera|OPR)/\d+`)},
		{"Chrome", regexp.MustCompile(`(?i)Chrome/\d+`)},
		{"Firefox", regexp.MustCompile(`(?i)Firefox/\d+`)},
		{"Safari", regexp.MustCompile(`(?i)Version/\d+.*Safari`)},
	}

	// OS patterns. iOS and Android come before the desktop systems they embed.
	osPatterns = []struct {
		name    string
		pattern *regexp.Regexp
	}{
		{"Windows", regexp.MustCompile(`(?i)Windows`)},
		{"iOS", regexp.MustCompile(`(?i)iPhone|iPad|iPod`)},
		{"Android", regexp.MustCompile(`(?i)Android`)},
		{"ChromeOS", regexp.MustCompile(`(?i)CrOS`)},
		{"macOS", regexp.MustCompile(`(?i)Macintosh|Mac OS X`)},
		{"Linux", regexp.MustCompile(`(?i)Linux|X11`)},
	}

	botPattern    = regexp.MustCompile(`(?i)bot|crawler|spider|scraper|curl|wget|python|go-http|headless`)
	mobilePattern = regexp.MustCompile(`(?i)mobile|android|iphone|ipad|ipod`)
)

// Parse extracts browser, OS, and device information from a User-Agent string
func Parse(userAgent string) Info {
	info := Info{Browser: "Unknown", OS: "Unknown", DeviceType: "unknown"}
	if userAgent == "" {
		return info
	}

	info.Bot = botPattern.MatchString(userAgent)

	for _, bp := range browserPatterns {
		if bp.pattern.MatchString(userAgent) {
			info.Browser = bp.name
			break
		}
	}
	for _, op := range osPatterns {
		if op.pattern.MatchString(userAgent) {
			info.OS = op.name
			break
		}
	}

	switch {
	case info.Bot:
		info.DeviceType = "bot"
	case mobilePattern.MatchString(userAgent):
		info.DeviceType = "mobile"
	default:
		info.DeviceType = "desktop"
	}
	return info
}

// PlatformOS maps a navigator.platform value to the OS family Parse reports.
// Unknown platforms map to "".
func PlatformOS(platform string) string {
	p := strings.ToLower(strings.TrimSpace(platform))
	switch {
	case p == "":
		return ""
	case strings.HasPrefix(p, "win"):
		return "Windows"
	case strings.HasPrefix(p, "iphone"), strings.HasPrefix(p, "ipad"), strings.HasPrefix(p, "ipod"):
		return "iOS"
	case strings.HasPrefix(p, "mac"):
		return "macOS"
	case strings.Contains(p, "android"):
		return "Android"
	case strings.Contains(p, "linux"), strings.Contains(p, "x11"), strings.Contains(p, "cros"):
		return "Linux"
	default:
		return ""
	}
}

// MatchesPlatform reports whether the reported navigator.platform agrees with
// the User-Agent on whether the client runs Windows. An empty or unknown
// platform always matches.
func (i Info) MatchesPlatform(platform string) bool {
	reported := PlatformOS(platform)
	switch reported {
	case "":
		return true
	case "Windows":
		return i.OS == "Windows"
	default:
		return i.OS != "Windows"
	}
}
