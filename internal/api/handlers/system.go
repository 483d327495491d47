// MIT License
//
// Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"keygate/internal/database"
	"keygate/internal/database/repositories"
	"keygate/internal/session"
	"keygate/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// SystemHandler serves process, storage and retention status
type SystemHandler struct {
	visitors  repositories.VisitorLogRepository
	blocked   repositories.BlockedLogRepository
	cleanup   *database.CleanupService
	sessions  *session.Store
	logger    *pterm.Logger
	startTime time.Time
	dbPath    string
}

type ProcessStats struct {
	Version       string  `json:"version"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	GoVersion     string  `json:"go_version"`
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
}

type StorageStats struct {
	Path           string  `json:"path"`
	SizeMB         float64 `json:"size_mb"`
	VisitorRecords int64   `json:"visitor_records"`
	BlockedRecords int64   `json:"blocked_records"`
}

type RetentionStats struct {
	Days             int              `json:"days"`
	RecordsToCleanup int64            `json:"records_to_cleanup"`
	NextRun          string           `json:"next_run"`
	NextRunIn        string           `json:"next_run_in,omitempty"`
	LastRun          string           `json:"last_run"`
	LastDeleted      int64            `json:"last_deleted"`
	LastDeletedBy    map[string]int64 `json:"last_deleted_by_table,omitempty"`
}

type SystemStats struct {
	Process            ProcessStats   `json:"process"`
	Storage            StorageStats   `json:"storage"`
	Retention          RetentionStats `json:"retention"`
	ActiveSessionFlags int            `json:"active_session_flags"`
}

// NewSystemHandler creates a new system handler. sessions may be nil.
func NewSystemHandler(
	visitors repositories.VisitorLogRepository,
	blocked repositories.BlockedLogRepository,
	cleanup *database.CleanupService,
	sessions *session.Store,
	logger *pterm.Logger,
	dbPath string,
) *SystemHandler {
	return &SystemHandler{
		visitors:  visitors,
		blocked:   blocked,
		cleanup:   cleanup,
		sessions:  sessions,
		logger:    logger,
		startTime: time.Now(),
		dbPath:    dbPath,
	}
}

func (h *SystemHandler) GetSystemStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats := SystemStats{
		Process: h.process(),
		Storage: h.storage(ctx),
	}
	stats.Retention = h.retention(ctx, stats.Storage)
	if h.sessions != nil {
		stats.ActiveSessionFlags = h.sessions.Len()
	}
	c.JSON(http.StatusOK, stats)
}

// RunCleanup triggers the retention cleanup. With wait=true the request
// blocks until the cleanup finished and reports the deleted row count.
func (h *SystemHandler) RunCleanup(c *gin.Context) {
	if !h.retentionEnabled() {
		c.JSON(http.StatusConflict, gin.H{"error": "Retention is disabled"})
		return
	}

	if c.Query("wait") != "true" {
		if err := h.cleanup.ManualCleanup(); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "started"})
		return
	}

	deleted, err := h.cleanup.RunCleanup(c.Request.Context())
	switch {
	case errors.Is(err, database.ErrCleanupRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.WithCaller().Error("Cleanup failed", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cleanup failed", "deleted": deleted})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "completed", "deleted": deleted})
	}
}

func (h *SystemHandler) retentionEnabled() bool {
	return h.cleanup != nil && h.cleanup.RetentionDays() > 0
}

func (h *SystemHandler) process() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(h.startTime)
	return ProcessStats{
		Version:       version.Version,
		Uptime:        humanDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(m.HeapAlloc) / (1 << 20),
	}
}

// storage leaves a count at zero when it cannot be read
func (h *SystemHandler) storage(ctx context.Context) StorageStats {
	out := StorageStats{Path: h.dbPath}
	if info, err := os.Stat(h.dbPath); err == nil {
		out.SizeMB = float64(info.Size()) / (1 << 20)
	}

	var err error
	if out.VisitorRecords, err = h.visitors.Count(ctx); err != nil {
		h.logger.WithCaller().Warn("Failed to count visitor logs", h.logger.Args("error", err))
	}
	if out.BlockedRecords, err = h.blocked.Count(ctx); err != nil {
		h.logger.WithCaller().Warn("Failed to count blocked logs", h.logger.Args("error", err))
	}
	return out
}

func (h *SystemHandler) retention(ctx context.Context, storage StorageStats) RetentionStats {
	if !h.retentionEnabled() {
		return RetentionStats{NextRun: "Disabled", LastRun: "N/A"}
	}

	out := RetentionStats{Days: h.cleanup.RetentionDays(), LastRun: "Never"}
	out.RecordsToCleanup = h.countExpired(ctx, time.Now().AddDate(0, 0, -out.Days), storage)

	last := h.cleanup.GetStats()
	out.NextRun = last.NextScheduledRun.Format(time.DateTime)
	out.NextRunIn = humanDuration(time.Until(last.NextScheduledRun))
	if !last.LastRunTime.IsZero() {
		out.LastRun = last.LastRunTime.Format(time.DateTime)
		out.LastDeleted = last.RecordsDeleted
		out.LastDeletedBy = last.DeletedByTable
	}
	return out
}

// countExpired derives the rows older than cutoff from the totals and the
// rows newer than cutoff.
func (h *SystemHandler) countExpired(ctx context.Context, cutoff time.Time, storage StorageStats) int64 {
	recentVisitors, err := h.visitors.CountSince(ctx, cutoff)
	if err != nil {
		h.logger.WithCaller().Warn("Failed to count recent visitor logs", h.logger.Args("error", err))
		return 0
	}
	recentBlocked, err := h.blocked.CountSince(ctx, cutoff)
	if err != nil {
		h.logger.WithCaller().Warn("Failed to count recent blocked logs", h.logger.Args("error", err))
		return 0
	}
	return max(0, storage.VisitorRecords-recentVisitors) + max(0, storage.BlockedRecords-recentBlocked)
}

// humanDuration keeps the two most significant units, e.g. "3d 4h" or "12m 5s"
func humanDuration(d time.Duration) string {
	d = d.Abs().Truncate(time.Second)
	units := []struct {
		size   time.Duration
		suffix string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}
	for i, u := range units {
		if d < u.size && u.size != time.Second {
			continue
		}
		major := int64(d / u.size)
		if i+1 == len(units) {
			return fmt.Sprintf("%d%s", major, u.suffix)
		}
		next := units[i+1]
		minor := int64(d % u.size / next.size)
		if minor == 0 {
			return fmt.Sprintf("%d%s", major, u.suffix)
		}
		return fmt.Sprintf("%d%s %d%s", major, u.suffix, minor, next.suffix)
	}
	return "0s"
}
