package gate

import (
	"context"
	"fmt"
	"time"

	"keygate/internal/database/repositories"
	"keygate/internal/metrics"
	"keygate/internal/probe"
	"keygate/internal/realtime"
	"keygate/internal/session"

	"github.com/pterm/pterm"
)

// ReasonVPN is the reason tag returned for every risk-based block
const ReasonVPN = "vpn"

// Block log reasons for the static ban lists
const (
	BlockReasonIPBan      = "IP Ban"
	BlockReasonCountryBan = "Country Ban"
)

// Decision categories used for metrics and the live feed
const (
	CategoryNone               = "none"
	CategoryAdvancedProtection = "advanced_protection"
	CategoryVPN                = "vpn"
	CategoryTimezone           = "timezone_mismatch"
	CategoryIPBan              = "ip_ban"
	CategoryCountryBan         = "country_ban"
	CategoryError              = "error"
)

// Decision is the gate's answer for one page load.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Country string `json:"country,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Prober produces the risk probe for a request. It must not fail.
type Prober interface {
	Probe(ctx context.Context, req probe.Request) probe.Result
}

// DecisionSink receives every decision, e.g. the live feed.
type DecisionSink interface {
	Ingest(d realtime.Decision)
}

// Repositories groups the stores the gate reads and writes.
type Repositories struct {
	Bans     repositories.BanListRepository
	Settings repositories.SettingsRepository
	Visitors repositories.VisitorLogRepository
	Blocked  repositories.BlockedLogRepository
}

type Service struct {
	prober    Prober
	bans      repositories.BanListRepository
	settings  repositories.SettingsRepository
	visitors  repositories.VisitorLogRepository
	blocked   repositories.BlockedLogRepository
	flags     session.Flags
	sink      DecisionSink
	threshold int
	logger    *pterm.Logger
}

// NewService builds the gate. threshold is the score at which advanced
// protection blocks. sink may be nil.
func NewService(prober Prober, repos Repositories, flags session.Flags, sink DecisionSink, threshold int, logger *pterm.Logger) *Service {
	return &Service{
		prober:    prober,
		bans:      repos.Bans,
		settings:  repos.Settings,
		visitors:  repos.Visitors,
		blocked:   repos.Blocked,
		flags:     flags,
		sink:      sink,
		threshold: threshold,
		logger:    logger,
	}
}

// CheckAccess decides whether the visitor may proceed. It never fails: any
// error or panic allows the visitor through.
func (s *Service) CheckAccess(ctx context.Context, sessionID string, req probe.Request) (decision Decision) {
	var result probe.Result
	category := CategoryError

	defer func() {
		if r := recover(); r != nil {
			s.logger.WithCaller().Error("Recovered from panic in access check", s.logger.Args("panic", fmt.Sprint(r)))
			decision = Decision{Allowed: true}
			category = CategoryError
		}
		s.record(decision, category, result)
		s.rememberOutcome(sessionID, decision.Allowed)
	}()

	result = s.prober.Probe(ctx, req)

	d, cat, err := s.decide(ctx, sessionID, req, result)
	if err != nil {
		s.logger.Warn("Access check failed, allowing visitor", s.logger.Args("ip", result.IP, "error", err))
		return Decision{Allowed: true}
	}
	category = cat
	return d
}

func (s *Service) decide(ctx context.Context, sessionID string, req probe.Request, result probe.Result) (Decision, string, error) {
	cfg := s.loadConfig(ctx)

	if reason, category, blocked := s.riskBlock(cfg, result); blocked {
		s.LogBlockedAttempt(ctx, sessionID, attemptFor(req, result, reason))
		return Decision{Allowed: false, Reason: ReasonVPN, Message: cfg.vpnMessage}, category, nil
	}

	if result.IP != "" {
		banned, err := s.bans.IsIPBanned(ctx, result.IP)
		if err != nil {
			return Decision{}, "", err
		}
		if banned {
			s.LogBlockedAttempt(ctx, sessionID, attemptFor(req, result, BlockReasonIPBan))
			return Decision{Allowed: false, Message: cfg.ipMessage}, CategoryIPBan, nil
		}
	}

	if result.CountryName == "" {
		return Decision{Allowed: true}, CategoryNone, nil
	}

	banned, err := s.bans.IsCountryBanned(ctx, result.CountryName)
	if err != nil {
		return Decision{}, "", err
	}
	if banned {
		s.LogBlockedAttempt(ctx, sessionID, attemptFor(req, result, BlockReasonCountryBan))
		return Decision{Allowed: false, Country: result.CountryName, Message: cfg.geoMessage}, CategoryCountryBan, nil
	}
	return Decision{Allowed: true, Country: result.CountryName}, CategoryNone, nil
}

// riskBlock applies advanced protection first and the legacy VPN flags second.
func (s *Service) riskBlock(cfg siteConfig, result probe.Result) (reason, category string, blocked bool) {
	if cfg.blockAdvancedProtection && result.RiskScore >= s.threshold {
		return fmt.Sprintf("Advanced Protection: Score %d/100 [%s]", result.RiskScore, result.VPNReason),
			CategoryAdvancedProtection, true
	}
	if !result.IsVPN {
		return "", "", false
	}
	if result.TimezoneMismatch {
		if !cfg.blockTimezoneMismatch {
			return "", "", false
		}
		reason = "Timezone Mismatch"
		if result.TimezoneDetail != "" {
			reason += " (" + result.TimezoneDetail + ")"
		}
		return reason + " [" + result.VPNReason + "]", CategoryTimezone, true
	}
	if !cfg.blockVPN {
		return "", "", false
	}
	return "VPN Detected [" + result.VPNReason + "]", CategoryVPN, true
}

// rememberOutcome keeps the latest decision on the session so visit logging
// can skip pages the gate refused.
func (s *Service) rememberOutcome(sessionID string, allowed bool) {
	if sessionID == "" {
		return
	}
	if allowed {
		s.flags.Release(sessionID, session.FlagDenied)
		return
	}
	s.flags.Set(sessionID, session.FlagDenied)
}

func (s *Service) record(d Decision, category string, result probe.Result) {
	metrics.GateDecisions.WithLabelValues(metrics.Outcome(d.Allowed), category).Inc()
	if s.sink != nil {
		s.sink.Ingest(realtime.Decision{
			Timestamp: time.Now(),
			IP:        result.IP,
			Country:   result.CountryName,
			Allowed:   d.Allowed,
			Category:  category,
			Reason:    result.VPNReason,
			RiskScore: result.RiskScore,
		})
	}
	s.logger.Debug("Access decision", s.logger.Args(
		"ip", result.IP,
		"allowed", d.Allowed,
		"category", category,
		"score", result.RiskScore,
	))
}
