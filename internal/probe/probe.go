package probe

import (
	"context"
	"time"

	"keygate/internal/geo"
	"keygate/internal/metrics"
	"keygate/internal/risk"
	"keygate/internal/safe"

	"github.com/pterm/pterm"
)

// Signals is the environment report the browser posts to the gate.
type Signals struct {
	WebRTCCandidates   []string `json:"webrtc_candidates"`
	Webdriver          bool     `json:"webdriver"`
	Platform           string   `json:"platform"`
	Languages          []string `json:"languages"`
	DateToStringNative *bool    `json:"date_to_string_native"`
	HighResTimer       *bool    `json:"high_res_timer"`
	TimezoneOffset     *int     `json:"timezone_offset"`
	PageURL            string   `json:"page_url"`
}

// Request is one visitor as seen by the server.
type Request struct {
	IP             string
	UserAgent      string
	AcceptLanguage string
	Signals        Signals
}

// Result is the probe outcome. It is never persisted as-is.
type Result struct {
	IP          string   `json:"ip"`
	CountryName string   `json:"country_name,omitempty"`
	CountryCode string   `json:"country_code,omitempty"`
	City        string   `json:"city,omitempty"`
	ISP         string   `json:"isp,omitempty"`
	IsVPN       bool     `json:"is_vpn"`
	VPNReason   string   `json:"vpn_reason,omitempty"`
	RiskScore   int      `json:"risk_score"`
	RiskFactors []string `json:"risk_factors,omitempty"`
	Source      string   `json:"source,omitempty"`
	LeakedIP    string   `json:"leaked_ip,omitempty"`

	TimezoneMismatch bool   `json:"timezone_mismatch,omitempty"`
	TimezoneDetail   string `json:"timezone_detail,omitempty"`
}

// Locator is the geolocation lookup the probe depends on.
type Locator interface {
	Lookup(ctx context.Context, ip string) (*geo.GeoInfo, error)
}

type Prober struct {
	locator     Locator
	leak        LeakDetector
	scorer      *risk.Scorer
	leakTimeout time.Duration
	logger      *pterm.Logger
}

func NewProber(locator Locator, leak LeakDetector, scorer *risk.Scorer, leakTimeout time.Duration, logger *pterm.Logger) *Prober {
	if leakTimeout <= 0 {
		leakTimeout = time.Second
	}
	return &Prober{
		locator:     locator,
		leak:        leak,
		scorer:      scorer,
		leakTimeout: leakTimeout,
		logger:      logger,
	}
}

// Probe never fails. Any step that errors or panics degrades the result:
// a geo-only answer scores zero and a total failure yields an empty Result.
func (p *Prober) Probe(ctx context.Context, req Request) Result {
	leakCtx, cancel := context.WithTimeout(ctx, p.leakTimeout)
	defer cancel()

	// leak detection overlaps the geolocation lookup
	leaked := make(chan string, 1)
	go func() {
		leaked <- safe.BestEffort(p.logger, "leak detection", "", func() (string, error) {
			return p.leak.Detect(leakCtx, req)
		})
	}()

	info := safe.BestEffort(p.logger, "geolocation", (*geo.GeoInfo)(nil), func() (*geo.GeoInfo, error) {
		return p.locator.Lookup(ctx, req.IP)
	})
	if info == nil {
		return Result{}
	}

	result := Result{
		IP:          info.IP,
		CountryName: info.CountryName,
		CountryCode: info.CountryCode,
		City:        info.City,
		ISP:         firstNonEmpty(info.ISP, info.Org),
		Source:      info.Source,
	}
	if !info.HasRiskData {
		return result
	}

	result.LeakedIP = p.awaitLeak(leakCtx, leaked, info.IP)

	in := risk.Input{
		IP:                 info.IP,
		CountryCode:        info.CountryCode,
		ISP:                info.ISP,
		Org:                info.Org,
		SecurityFlag:       info.SecurityFlag,
		IPOffset:           info.UTCOffset,
		LeakedIP:           result.LeakedIP,
		UserAgent:          req.UserAgent,
		AcceptLanguage:     req.AcceptLanguage,
		Platform:           req.Signals.Platform,
		Webdriver:          req.Signals.Webdriver,
		Languages:          req.Signals.Languages,
		DateToStringNative: req.Signals.DateToStringNative,
		HighResTimer:       req.Signals.HighResTimer,
		TimezoneOffset:     req.Signals.TimezoneOffset,
	}

	assessment := safe.BestEffort(p.logger, "risk scoring", (*risk.Assessment)(nil), func() (*risk.Assessment, error) {
		a := p.scorer.Score(in)
		return &a, nil
	})
	if assessment == nil {
		return result
	}

	metrics.RiskScore.Observe(float64(assessment.Score))
	result.RiskScore = assessment.Score
	result.RiskFactors = assessment.Factors
	result.IsVPN = assessment.IsVPN
	result.VPNReason = assessment.Reason()
	if assessment.Has(risk.RuleTimezoneMismatch) {
		result.TimezoneMismatch = true
		result.TimezoneDetail = risk.TimezoneDetail(in)
	}

	p.logger.Debug("Visitor scored", p.logger.Args(
		"ip", result.IP,
		"score", result.RiskScore,
		"factors", result.VPNReason,
		"source", result.Source,
	))
	return result
}

// awaitLeak returns a detection that already finished even when the deadline,
// which runs from the start of Probe, has since passed.
func (p *Prober) awaitLeak(ctx context.Context, leaked <-chan string, ip string) string {
	select {
	case addr := <-leaked:
		return addr
	default:
	}

	select {
	case addr := <-leaked:
		return addr
	case <-ctx.Done():
	}
	select {
	case addr := <-leaked:
		return addr
	default:
		p.logger.Trace("Leak detection timed out", p.logger.Args("ip", ip))
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
