package gate

import (
	"context"
	"time"

	"keygate/internal/database/models"
	"keygate/internal/metrics"
	"keygate/internal/probe"
	"keygate/internal/safe"
	"keygate/internal/session"
)

// Visit is one allowed page view. Result may be nil, in which case the
// visitor is probed first.
type Visit struct {
	Request probe.Request
	Result  *probe.Result
}

// Attempt is one denied access.
type Attempt struct {
	IP        string
	Country   string
	City      string
	Reason    string
	UserAgent string
	URL       string
}

func attemptFor(req probe.Request, result probe.Result, reason string) Attempt {
	return Attempt{
		IP:        result.IP,
		Country:   result.CountryName,
		City:      result.City,
		Reason:    reason,
		UserAgent: req.UserAgent,
		URL:       req.Signals.PageURL,
	}
}

// LogVisit writes at most one VisitorLog per session, and none while the
// session's latest access check was a block. A failed write frees the session
// flag so a later page view can retry. Failures are swallowed.
func (s *Service) LogVisit(ctx context.Context, sessionID string, visit Visit) {
	if sessionID != "" && s.flags.IsSet(sessionID, session.FlagDenied) {
		metrics.LogWrites.WithLabelValues("visitor_logs", metrics.ResultSkipped).Inc()
		s.logger.Debug("Visit not logged for denied session", s.logger.Args("ip", visit.Request.IP))
		return
	}
	if sessionID != "" && !s.flags.MarkOnce(sessionID, session.FlagVisitorLogged) {
		metrics.LogWrites.WithLabelValues("visitor_logs", metrics.ResultSkipped).Inc()
		return
	}

	written := safe.BestEffort(s.logger, "log visit", false, func() (bool, error) {
		result := visit.Result
		if result == nil {
			probed := s.prober.Probe(ctx, visit.Request)
			result = &probed
		}
		ip := result.IP
		if ip == "" {
			ip = visit.Request.IP
		}
		err := s.visitors.Create(ctx, &models.VisitorLog{
			IPAddress: ip,
			Country:   result.CountryName,
			City:      result.City,
			UserAgent: visit.Request.UserAgent,
			PageURL:   visit.Request.Signals.PageURL,
			VisitedAt: time.Now(),
		})
		return err == nil, err
	})

	if !written {
		metrics.LogWrites.WithLabelValues("visitor_logs", metrics.ResultError).Inc()
		if sessionID != "" {
			s.flags.Release(sessionID, session.FlagVisitorLogged)
		}
		return
	}
	metrics.LogWrites.WithLabelValues("visitor_logs", metrics.ResultOK).Inc()
}

// LogBlockedAttempt writes a BlockedLog unless this session already logged
// the same reason. Failures are swallowed.
func (s *Service) LogBlockedAttempt(ctx context.Context, sessionID string, attempt Attempt) {
	if sessionID != "" && !s.flags.MarkOnce(sessionID, session.BlockedFlag(attempt.Reason)) {
		metrics.LogWrites.WithLabelValues("blocked_logs", metrics.ResultSkipped).Inc()
		return
	}

	written := safe.BestEffort(s.logger, "log blocked attempt", false, func() (bool, error) {
		err := s.blocked.Create(ctx, &models.BlockedLog{
			IPAddress:    attempt.IP,
			Country:      attempt.Country,
			City:         attempt.City,
			Reason:       attempt.Reason,
			UserAgent:    attempt.UserAgent,
			AttemptedURL: attempt.URL,
			BlockedAt:    time.Now(),
		})
		return err == nil, err
	})

	if !written {
		metrics.LogWrites.WithLabelValues("blocked_logs", metrics.ResultError).Inc()
		return
	}
	metrics.LogWrites.WithLabelValues("blocked_logs", metrics.ResultOK).Inc()
	s.logger.Info("Blocked access attempt", s.logger.Args("ip", attempt.IP, "country", attempt.Country, "reason", attempt.Reason))
}
