package realtime

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/pterm/pterm"
)

func quietLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard)
}

func TestCollectSummarizesDecisions(t *testing.T) {
	c := NewCollector(quietLogger())
	now := time.Now()

	c.Ingest(Decision{Timestamp: now.Add(-2 * time.Minute), IP: "9.9.9.9", Allowed: false, Category: "ip_ban"})
	c.Ingest(Decision{Timestamp: now.Add(-30 * time.Second), IP: "1.1.1.1", Allowed: true, Category: "none", RiskScore: 10})
	c.Ingest(Decision{Timestamp: now.Add(-time.Second), IP: "2.2.2.2", Country: "Russia", Allowed: false, Category: "country_ban", RiskScore: 20})
	c.Ingest(Decision{Timestamp: now, IP: "2.2.2.2", Country: "Russia", Allowed: false, Category: "country_ban", RiskScore: 30})

	c.Collect()
	s := c.Snapshot()

	if s.Allowed1m != 1 || s.Blocked1m != 2 {
		t.Errorf("Expected 1 allowed and 2 blocked, got %d/%d", s.Allowed1m, s.Blocked1m)
	}
	if s.ByCategory["ip_ban"] != 0 {
		t.Error("Expected decisions older than the buffer to be pruned")
	}
	if s.AvgRiskScore != 20 {
		t.Errorf("Expected average score 20, got %f", s.AvgRiskScore)
	}
	if len(s.TopBlockedIPs) != 1 || s.TopBlockedIPs[0].IP != "2.2.2.2" || s.TopBlockedIPs[0].Blocks != 2 {
		t.Errorf("Unexpected top blocked IPs %+v", s.TopBlockedIPs)
	}
	if len(s.LatestDecisions) != 3 || s.LatestDecisions[0].RiskScore != 30 {
		t.Errorf("Expected newest decision first, got %+v", s.LatestDecisions)
	}
	if s.BlockRate <= 0 {
		t.Error("Expected a positive block rate")
	}
}

func TestCachedJSON(t *testing.T) {
	c := NewCollector(quietLogger())
	if c.CachedJSON() != nil {
		t.Error("Expected no cached JSON before the first collection")
	}

	c.SetActiveConnections(3)
	c.Ingest(Decision{IP: "1.1.1.1", Allowed: true, Category: "none"})
	c.Collect()

	var s Snapshot
	if err := json.Unmarshal(c.CachedJSON(), &s); err != nil {
		t.Fatalf("Cached JSON is invalid: %v", err)
	}
	if s.ActiveConnections != 3 || s.Allowed1m != 1 {
		t.Errorf("Unexpected cached snapshot %+v", s)
	}
}
