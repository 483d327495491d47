package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"keygate/internal/database/models"
	"keygate/internal/database/repositories"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// LogsHandler serves the visitor and blocked-attempt lists of the admin API
type LogsHandler struct {
	visitors repositories.VisitorLogRepository
	blocked  repositories.BlockedLogRepository
	logger   *pterm.Logger
}

func NewLogsHandler(visitors repositories.VisitorLogRepository, blocked repositories.BlockedLogRepository, logger *pterm.Logger) *LogsHandler {
	return &LogsHandler{visitors: visitors, blocked: blocked, logger: logger}
}

type deleteRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

func (h *LogsHandler) ListVisitors(c *gin.Context) {
	listLogs(c, h.logger, "visitor logs", h.visitors.List)
}

func (h *LogsHandler) ListBlocked(c *gin.Context) {
	listLogs(c, h.logger, "blocked logs", h.blocked.List)
}

func (h *LogsHandler) DeleteVisitors(c *gin.Context) {
	deleteLogs(c, h.logger, "visitor logs", h.visitors.DeleteByIDs)
}

func (h *LogsHandler) DeleteBlocked(c *gin.Context) {
	deleteLogs(c, h.logger, "blocked logs", h.blocked.DeleteByIDs)
}

func listLogs[T models.VisitorLog | models.BlockedLog](
	c *gin.Context,
	logger *pterm.Logger,
	what string,
	list func(context.Context, repositories.LogFilter) (*repositories.Page[T], error),
) {
	filter, err := parseLogFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := list(c.Request.Context(), filter)
	if err != nil {
		logger.WithCaller().Error("Failed to list "+what, logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list " + what})
		return
	}
	c.JSON(http.StatusOK, page)
}

func deleteLogs(
	c *gin.Context,
	logger *pterm.Logger,
	what string,
	remove func(context.Context, []uint) (int64, error),
) {
	var body deleteRequest
	if err := c.ShouldBindJSON(&body); err != nil || len(body.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must be a non-empty list"})
		return
	}

	deleted, err := remove(c.Request.Context(), body.IDs)
	if err != nil {
		logger.WithCaller().Error("Failed to delete "+what, logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete " + what})
		return
	}

	logger.Info("Deleted "+what, logger.Args("requested", len(body.IDs), "deleted", deleted))
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// parseLogFilter reads from, to, country, q and page. Dates are either
// RFC 3339 timestamps or plain days; a plain "to" day includes the whole day.
func parseLogFilter(c *gin.Context) (repositories.LogFilter, error) {
	filter := repositories.LogFilter{
		Country: c.Query("country"),
		Search:  c.Query("q"),
	}

	if raw := c.Query("from"); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid from: %w", err)
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, dayOnly, err := parseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid to: %w", err)
		}
		if dayOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return filter, fmt.Errorf("from is after to")
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, fmt.Errorf("invalid page %q", raw)
		}
		filter.Page = page
	}
	return filter, nil
}

func parseDate(raw string) (t time.Time, dayOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	if t, err = time.ParseInLocation(time.DateOnly, raw, time.Local); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, err
}
