package realtime

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

const (
	// BufferDuration is the duration of decisions to keep in memory
	BufferDuration = 60 * time.Second
	// rateWindow is the sliding window used for per-second rates
	rateWindow  = 5 * time.Second
	latestLimit = 20
	topIPLimit  = 10
)

// Decision is one gate outcome as shown on the live feed.
type Decision struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Country   string    `json:"country,omitempty"`
	Allowed   bool      `json:"allowed"`
	Category  string    `json:"category"`
	Reason    string    `json:"reason,omitempty"`
	RiskScore int       `json:"risk_score"`
}

// Snapshot represents current real-time statistics
type Snapshot struct {
	CheckRate         float64          `json:"check_rate"` // checks/sec
	BlockRate         float64          `json:"block_rate"` // blocks/sec
	AvgRiskScore      float64          `json:"avg_risk_score"`
	ActiveConnections int              `json:"active_connections"`
	Allowed1m         int64            `json:"allowed_1m"`
	Blocked1m         int64            `json:"blocked_1m"`
	ByCategory        map[string]int64 `json:"by_category"`
	TopBlockedIPs     []IPMetrics      `json:"top_blocked_ips"`
	LatestDecisions   []Decision       `json:"latest_decisions"`
	Timestamp         time.Time        `json:"timestamp"`
}

// IPMetrics represents blocks for a single IP over the last minute
type IPMetrics struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Blocks  int    `json:"blocks"`
}

// Collector keeps the last minute of gate decisions and periodically
// condenses them into a cached Snapshot for the SSE stream.
type Collector struct {
	logger *pterm.Logger

	bufferMu sync.Mutex
	buffer   []Decision

	mu                sync.RWMutex
	snapshot          *Snapshot
	cachedJSON        []byte
	activeConnections int

	stopChan chan struct{}
	stopped  bool
}

func NewCollector(logger *pterm.Logger) *Collector {
	return &Collector{
		logger:   logger,
		buffer:   make([]Decision, 0, 1024),
		stopChan: make(chan struct{}),
		snapshot: &Snapshot{ByCategory: map[string]int64{}},
	}
}

// Ingest adds a decision to the in-memory buffer
func (c *Collector) Ingest(d Decision) {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	c.bufferMu.Lock()
	c.buffer = append(c.buffer, d)
	c.bufferMu.Unlock()
}

// Start begins condensing the buffer at regular intervals
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopChan:
				c.logger.Info("Real-time decision collector stopped")
				return
			}
		}
	}()
	c.logger.Info("Real-time decision collector started", c.logger.Args("interval", interval.String()))
}

// Stop gracefully stops the collector
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stopChan)
	}
	c.mu.Unlock()
}

// SetActiveConnections updates the active stream count
func (c *Collector) SetActiveConnections(n int) {
	c.mu.Lock()
	c.activeConnections = n
	c.mu.Unlock()
}

// CachedJSON returns the JSON form of the latest snapshot
func (c *Collector) CachedJSON() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cachedJSON
}

// Snapshot returns the latest condensed statistics
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := *c.snapshot
	s.ActiveConnections = c.activeConnections
	return s
}

// Collect prunes the buffer and recomputes the snapshot.
func (c *Collector) Collect() {
	now := time.Now()
	windowStart := now.Add(-rateWindow)
	cutoff := now.Add(-BufferDuration)

	c.bufferMu.Lock()
	// decisions arrive in time order, so the first recent one marks the cut
	keep := sort.Search(len(c.buffer), func(i int) bool {
		return c.buffer[i].Timestamp.After(cutoff)
	})
	if keep > 0 {
		c.buffer = append(make([]Decision, 0, len(c.buffer)-keep), c.buffer[keep:]...)
	}
	window := make([]Decision, len(c.buffer))
	copy(window, c.buffer)
	c.bufferMu.Unlock()

	s := &Snapshot{ByCategory: map[string]int64{}, Timestamp: now}

	var recent, recentBlocked int
	var scoreTotal int
	blockedByIP := make(map[string]*IPMetrics)

	for _, d := range window {
		if d.Allowed {
			s.Allowed1m++
		} else {
			s.Blocked1m++
			m, ok := blockedByIP[d.IP]
			if !ok {
				m = &IPMetrics{IP: d.IP, Country: d.Country}
				blockedByIP[d.IP] = m
			}
			m.Blocks++
		}
		s.ByCategory[d.Category]++
		scoreTotal += d.RiskScore

		if d.Timestamp.After(windowStart) {
			recent++
			if !d.Allowed {
				recentBlocked++
			}
		}
	}

	s.CheckRate = float64(recent) / rateWindow.Seconds()
	s.BlockRate = float64(recentBlocked) / rateWindow.Seconds()
	if len(window) > 0 {
		s.AvgRiskScore = float64(scoreTotal) / float64(len(window))
	}

	for _, m := range blockedByIP {
		s.TopBlockedIPs = append(s.TopBlockedIPs, *m)
	}
	sort.Slice(s.TopBlockedIPs, func(i, j int) bool {
		if s.TopBlockedIPs[i].Blocks == s.TopBlockedIPs[j].Blocks {
			return s.TopBlockedIPs[i].IP < s.TopBlockedIPs[j].IP
		}
		return s.TopBlockedIPs[i].Blocks > s.TopBlockedIPs[j].Blocks
	})
	if len(s.TopBlockedIPs) > topIPLimit {
		s.TopBlockedIPs = s.TopBlockedIPs[:topIPLimit]
	}

	// newest first
	for i := len(window) - 1; i >= 0 && len(s.LatestDecisions) < latestLimit; i-- {
		s.LatestDecisions = append(s.LatestDecisions, window[i])
	}

	c.mu.Lock()
	s.ActiveConnections = c.activeConnections
	c.snapshot = s
	if data, err := json.Marshal(s); err == nil {
		c.cachedJSON = data
	}
	c.mu.Unlock()

	c.logger.Trace("Collected real-time decisions", c.logger.Args("buffer_size", len(window), "check_rate", s.CheckRate))
}
