package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_gate_decisions_total",
		Help: "Access decisions by outcome and block category.",
	}, []string{"outcome", "category"})

	GeoLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_geo_lookups_total",
		Help: "Geolocation lookups by provider and result.",
	}, []string{"provider", "result"})

	RiskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "keygate_risk_score",
		Help:    "Distribution of computed visitor risk scores.",
		Buckets: []float64{0, 15, 20, 30, 40, 50, 70, 90, 120, 175},
	})

	LogWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_log_writes_total",
		Help: "Visitor and blocked log writes by table and result.",
	}, []string{"table", "result"})

	SlowQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keygate_db_slow_queries_total",
		Help: "Database queries slower than the slow query threshold.",
	})
)

// Result label values
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Outcome returns the decision label for an allowed flag.
func Outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "blocked"
}
