package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"keygate/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

const (
	// MaxSSEConnections is the maximum number of simultaneous SSE connections
	MaxSSEConnections = 100

	streamInterval = time.Second
)

// RealtimeHandler streams the live decision feed
type RealtimeHandler struct {
	collector         *realtime.Collector
	logger            *pterm.Logger
	interval          time.Duration
	activeConnections int
	maxConnections    int
	connectionMutex   sync.Mutex
}

// NewRealtimeHandler creates a new realtime handler
func NewRealtimeHandler(collector *realtime.Collector, logger *pterm.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		collector:      collector,
		logger:         logger,
		interval:       streamInterval,
		maxConnections: MaxSSEConnections,
	}
}

func (h *RealtimeHandler) acquire() (int, bool) {
	h.connectionMutex.Lock()
	defer h.connectionMutex.Unlock()
	if h.activeConnections >= h.maxConnections {
		return h.activeConnections, false
	}
	h.activeConnections++
	h.collector.SetActiveConnections(h.activeConnections)
	return h.activeConnections, true
}

func (h *RealtimeHandler) release() {
	h.connectionMutex.Lock()
	h.activeConnections--
	h.collector.SetActiveConnections(h.activeConnections)
	h.connectionMutex.Unlock()
}

// StreamDecisions streams the decision snapshot via Server-Sent Events
func (h *RealtimeHandler) StreamDecisions(c *gin.Context) {
	current, ok := h.acquire()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Maximum concurrent connections reached. Please try again later."})
		return
	}
	defer func() {
		h.release()
		if r := recover(); r != nil {
			h.logger.Error("Panic in SSE stream", h.logger.Args("panic", r, "client_ip", c.ClientIP()))
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Debug("Client connected to decision stream",
		h.logger.Args("client_ip", c.ClientIP(), "active_connections", current))

	// first frame right away so clients render without waiting a tick
	if !h.writeFrame(c) {
		return
	}

	for {
		select {
		case <-c.Request.Context().Done():
			h.logger.Debug("Decision stream closed", h.logger.Args("client_ip", c.ClientIP()))
			return
		case <-ticker.C:
			if !h.writeFrame(c) {
				return
			}
		}
	}
}

// writeFrame sends one snapshot and reports whether the client is still there
func (h *RealtimeHandler) writeFrame(c *gin.Context) bool {
	data := h.collector.CachedJSON()
	if data == nil {
		var err error
		data, err = json.Marshal(h.collector.Snapshot())
		if err != nil {
			h.logger.Error("Failed to marshal decision snapshot", h.logger.Args("error", err))
			return true
		}
	}

	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
		h.logger.Debug("Failed to write SSE data", h.logger.Args("error", err))
		return false
	}
	c.Writer.Flush()
	return true
}

// GetCurrent returns a single snapshot of the decision feed
func (h *RealtimeHandler) GetCurrent(c *gin.Context) {
	c.JSON(http.StatusOK, h.collector.Snapshot())
}
