package handlers

import (
	"net/http"
	"strconv"
	"time"

	"keygate/internal/database/repositories"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

const topReasonLimit = 5

// SummaryHandler serves the dashboard widget figures
type SummaryHandler struct {
	visitors repositories.VisitorLogRepository
	blocked  repositories.BlockedLogRepository
	logger   *pterm.Logger
}

func NewSummaryHandler(visitors repositories.VisitorLogRepository, blocked repositories.BlockedLogRepository, logger *pterm.Logger) *SummaryHandler {
	return &SummaryHandler{visitors: visitors, blocked: blocked, logger: logger}
}

// GetSummary returns visits, blocks and the top block reasons over the
// last hours (default 24, at most 720).
func (h *SummaryHandler) GetSummary(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil && val > 0 && val <= 720 {
			hours = val
		}
	}

	body, err := h.summary(c, hours)
	if err != nil {
		h.logger.Debug("Summary fetch error", h.logger.Args("error", err))
		c.JSON(http.StatusOK, gin.H{
			"status":      "error",
			"hours":       hours,
			"visits":      0,
			"blocks":      0,
			"block_rate":  0,
			"top_reasons": []repositories.ReasonCount{},
		})
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *SummaryHandler) summary(c *gin.Context, hours int) (gin.H, error) {
	ctx := c.Request.Context()
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	visits, err := h.visitors.CountSince(ctx, since)
	if err != nil {
		return nil, err
	}
	blocks, err := h.blocked.CountSince(ctx, since)
	if err != nil {
		return nil, err
	}
	reasons, err := h.blocked.TopReasons(ctx, since, topReasonLimit)
	if err != nil {
		return nil, err
	}
	return summaryBody(hours, visits, blocks, reasons), nil
}

func summaryBody(hours int, visits, blocks int64, reasons []repositories.ReasonCount) gin.H {
	blockRate := 0.0
	if total := visits + blocks; total > 0 {
		blockRate = float64(blocks) / float64(total) * 100
	}

	status := "healthy"
	if blockRate > 50 {
		status = "danger"
	} else if blockRate > 20 {
		status = "warning"
	}

	if reasons == nil {
		reasons = []repositories.ReasonCount{}
	}

	return gin.H{
		"status":      status,
		"hours":       hours,
		"visits":      visits,
		"blocks":      blocks,
		"block_rate":  blockRate,
		"top_reasons": reasons,
	}
}
