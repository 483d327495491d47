package risk

import (
	"net"
	"strings"

	"keygate/internal/parser/useragent"

	"github.com/samber/lo"
)

const (
	RuleWebRTCLeak       = "webrtc_leak"
	RuleHeaderAnomaly    = "header_anomaly"
	RuleLanguageMismatch = "language_mismatch"
	RuleAPIDetectedVPN   = "api_detected_vpn"
	RuleSuspiciousISP    = "suspicious_isp"
	RuleTimingAnomaly    = "timing_anomaly"
	RuleTimezoneMismatch = "timezone_mismatch"
)

// Rule is one independent predicate. A rule that fires adds its weight once.
type Rule struct {
	Name   string
	Label  string
	Weight int
	Eval   func(in Input) bool
}

// Rules returns the rule set in evaluation order.
func Rules(w Weights) []Rule {
	return []Rule{
		{Name: RuleWebRTCLeak, Label: "WebRTC Leak", Weight: w.WebRTCLeak, Eval: webRTCLeak},
		{Name: RuleHeaderAnomaly, Label: "Header Anomaly", Weight: w.HeaderAnomaly, Eval: headerAnomaly},
		{Name: RuleLanguageMismatch, Label: "Language Mismatch", Weight: w.LanguageMismatch, Eval: languageMismatch},
		{Name: RuleAPIDetectedVPN, Label: "API Detected VPN", Weight: w.APIDetectedVPN, Eval: func(in Input) bool {
			return in.SecurityFlag
		}},
		// Only consulted when the provider did not flag the address itself
		{Name: RuleSuspiciousISP, Label: "Suspicious ISP", Weight: w.SuspiciousISP, Eval: func(in Input) bool {
			return !in.SecurityFlag && IsDatacenter(in.ISP, in.Org)
		}},
		{Name: RuleTimingAnomaly, Label: "Timing Anomaly", Weight: w.TimingAnomaly, Eval: timingAnomaly},
		{Name: RuleTimezoneMismatch, Label: "Timezone Mismatch", Weight: w.TimezoneMismatch, Eval: func(in Input) bool {
			return timezoneMismatch(in, int(w.TimezoneTolerance.Seconds()))
		}},
	}
}

func webRTCLeak(in Input) bool {
	leaked := net.ParseIP(in.LeakedIP)
	public := net.ParseIP(in.IP)
	if leaked == nil || public == nil {
		return false
	}
	sameFamily := (leaked.To4() != nil) == (public.To4() != nil)
	return sameFamily && !leaked.Equal(public)
}

func headerAnomaly(in Input) bool {
	if in.Webdriver {
		return true
	}
	return !useragent.Parse(in.UserAgent).MatchesPlatform(in.Platform)
}

func languageMismatch(in Input) bool {
	langs := in.languages()
	if len(langs) == 0 {
		return false
	}
	allArabic := lo.EveryBy(langs, func(tag string) bool {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(tag)), "ar")
	})
	if !allArabic {
		return false
	}
	_, arab := arabCountryCodes[strings.ToUpper(in.CountryCode)]
	return !arab
}

func timingAnomaly(in Input) bool {
	if in.DateToStringNative != nil && !*in.DateToStringNative {
		return true
	}
	return in.HighResTimer != nil && !*in.HighResTimer
}

func timezoneMismatch(in Input, toleranceSeconds int) bool {
	browser, ok := in.BrowserOffset()
	if !ok || in.IPOffset == nil {
		return false
	}
	diff := browser - *in.IPOffset
	if diff < 0 {
		diff = -diff
	}
	return diff > toleranceSeconds
}

// IsDatacenter reports whether any of the names contains a hosting or VPN keyword.
func IsDatacenter(names ...string) bool {
	return lo.SomeBy(names, func(name string) bool {
		name = strings.ToLower(name)
		if name == "" {
			return false
		}
		return lo.SomeBy(datacenterKeywords, func(keyword string) bool {
			return strings.Contains(name, keyword)
		})
	})
}
