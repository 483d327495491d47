package handlers

import (
	"context"
	"net/http"
	"time"

	"keygate/internal/api/middleware"
	"keygate/internal/gate"
	"keygate/internal/metrics"
	"keygate/internal/probe"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/pterm/pterm"
)

// visitLogTimeout bounds one background visit write, probe included
const visitLogTimeout = 10 * time.Second

// GateHandler serves the storefront-facing endpoints
type GateHandler struct {
	gate   *gate.Service
	pool   *ants.Pool
	logger *pterm.Logger
}

func NewGateHandler(service *gate.Service, pool *ants.Pool, logger *pterm.Logger) *GateHandler {
	return &GateHandler{gate: service, pool: pool, logger: logger}
}

// probeRequest builds the probe input from the request. A missing or
// malformed body still yields an IP-only probe.
func (h *GateHandler) probeRequest(c *gin.Context) probe.Request {
	var signals probe.Signals
	if err := c.ShouldBindJSON(&signals); err != nil {
		h.logger.Trace("Gate request without usable signals", h.logger.Args("error", err))
		signals = probe.Signals{}
	}
	return probe.Request{
		IP:             c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		AcceptLanguage: c.GetHeader("Accept-Language"),
		Signals:        signals,
	}
}

// Check returns the access decision for the current page load
func (h *GateHandler) Check(c *gin.Context) {
	req := h.probeRequest(c)
	decision := h.gate.CheckAccess(c.Request.Context(), middleware.SessionID(c), req)
	c.JSON(http.StatusOK, decision)
}

// Visit queues the visit log write and answers immediately
func (h *GateHandler) Visit(c *gin.Context) {
	req := h.probeRequest(c)
	sessionID := middleware.SessionID(c)
	ctx := context.WithoutCancel(c.Request.Context())

	err := h.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(ctx, visitLogTimeout)
		defer cancel()
		h.gate.LogVisit(ctx, sessionID, gate.Visit{Request: req})
	})
	if err != nil {
		metrics.LogWrites.WithLabelValues("visitor_logs", metrics.ResultSkipped).Inc()
		h.logger.Warn("Visit logging pool unavailable, visit dropped", h.logger.Args("error", err, "running", h.pool.Running()))
	}

	c.Status(http.StatusAccepted)
}

type customerBanRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CustomerBan is called by the checkout before an order is placed
func (h *GateHandler) CustomerBan(c *gin.Context) {
	var body customerBanRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	c.JSON(http.StatusOK, h.gate.CheckCustomerBan(c.Request.Context(), body.Email, body.Phone))
}
