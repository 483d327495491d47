package risk

import (
	"fmt"
	"strings"
)

// Input is everything the rules look at for one visitor: the geolocation
// answer, an optional leaked address and the client-reported environment.
type Input struct {
	IP           string
	CountryCode  string
	ISP          string
	Org          string
	SecurityFlag bool
	// IPOffset is the UTC offset of the IP's timezone in seconds, when known
	IPOffset *int

	LeakedIP string

	UserAgent      string
	AcceptLanguage string
	Platform       string
	Webdriver      bool
	Languages      []string
	// DateToStringNative and HighResTimer are nil when the client did not report them
	DateToStringNative *bool
	HighResTimer       *bool
	// TimezoneOffset is the browser's Date#getTimezoneOffset value in minutes
	TimezoneOffset *int
}

// BrowserOffset converts the browser timezone offset to seconds east of UTC.
func (in Input) BrowserOffset() (int, bool) {
	if in.TimezoneOffset == nil {
		return 0, false
	}
	return -*in.TimezoneOffset * 60, true
}

// languages returns the navigator languages, or the Accept-Language tags when
// the client sent none.
func (in Input) languages() []string {
	if len(in.Languages) > 0 {
		return in.Languages
	}
	var out []string
	for _, part := range strings.Split(in.AcceptLanguage, ",") {
		tag, _, _ := strings.Cut(part, ";")
		if tag = strings.TrimSpace(tag); tag != "" && tag != "*" {
			out = append(out, tag)
		}
	}
	return out
}

// TimezoneDetail describes the browser and IP offsets, e.g.
// "browser UTC+03:00, IP UTC-05:00".
func TimezoneDetail(in Input) string {
	browser, ok := in.BrowserOffset()
	if !ok || in.IPOffset == nil {
		return ""
	}
	return fmt.Sprintf("browser %s, IP %s", FormatOffset(browser), FormatOffset(*in.IPOffset))
}

// FormatOffset renders an offset in seconds as UTC+hh:mm.
func FormatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, seconds/3600, seconds%3600/60)
}
