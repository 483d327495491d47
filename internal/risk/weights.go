package risk

import (
	"time"

	"keygate/internal/config"
)

// Weights holds the points each rule contributes and the thresholds the
// rules compare against.
type Weights struct {
	WebRTCLeak       int
	HeaderAnomaly    int
	LanguageMismatch int
	APIDetectedVPN   int
	SuspiciousISP    int
	TimingAnomaly    int
	TimezoneMismatch int

	// VPNThreshold is the score at or above which a visitor counts as a VPN user
	VPNThreshold int
	// TimezoneTolerance is the largest accepted gap between the browser and IP UTC offsets
	TimezoneTolerance time.Duration
}

// DefaultWeights returns the stock scoring constants.
func DefaultWeights() Weights {
	return Weights{
		WebRTCLeak:        40,
		HeaderAnomaly:     30,
		LanguageMismatch:  20,
		APIDetectedVPN:    50,
		SuspiciousISP:     40,
		TimingAnomaly:     20,
		TimezoneMismatch:  15,
		VPNThreshold:      50,
		TimezoneTolerance: time.Hour,
	}
}

// WeightsFromConfig applies the non-zero overrides from cfg on top of the defaults.
func WeightsFromConfig(cfg config.RiskConfig) Weights {
	w := DefaultWeights()
	override(&w.WebRTCLeak, cfg.WebRTCWeight)
	override(&w.HeaderAnomaly, cfg.HeaderWeight)
	override(&w.LanguageMismatch, cfg.LanguageWeight)
	override(&w.APIDetectedVPN, cfg.APIVPNWeight)
	override(&w.SuspiciousISP, cfg.ISPWeight)
	override(&w.TimingAnomaly, cfg.TimingWeight)
	override(&w.TimezoneMismatch, cfg.TimezoneWeight)
	override(&w.VPNThreshold, cfg.VPNThreshold)
	if cfg.TimezoneTolerance > 0 {
		w.TimezoneTolerance = cfg.TimezoneTolerance
	}
	return w
}

func override(dst *int, value int) {
	if value > 0 {
		*dst = value
	}
}
