package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"keygate/internal/safe"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

var (
	ErrRetentionDisabled = errors.New("retention disabled (DB_RETENTION_DAYS=0)")
	ErrCleanupRunning    = errors.New("cleanup already running")
)

const (
	deleteBatchSize  = 1000
	batchPause       = 100 * time.Millisecond
	vacuumTimeout    = 10 * time.Minute
	defaultDailyTime = "03:00"
)

// retentionTarget is a log table and the column holding its row timestamp
type retentionTarget struct {
	table  string
	column string
}

var retentionTargets = []retentionTarget{
	{table: "visitor_logs", column: "visited_at"},
	{table: "blocked_logs", column: "blocked_at"},
}

// RetentionOptions configures the cleanup schedule.
type RetentionOptions struct {
	Days int
	// CheckInterval caps how long the scheduler sleeps between clock checks
	CheckInterval time.Duration
	// DailyAt is the local HH:MM at which the cleanup runs
	DailyAt string
	Vacuum  bool
}

// CleanupService deletes visitor and blocked logs older than the retention
// window once a day.
type CleanupService struct {
	db     *gorm.DB
	logger *pterm.Logger
	opts   RetentionOptions
	hour   int
	minute int

	runMu sync.Mutex // held for the duration of one cleanup

	mu     sync.Mutex
	last   CleanupStats
	cancel context.CancelFunc
	done   chan struct{}
}

// CleanupStats describes the last run and the next scheduled one.
type CleanupStats struct {
	LastRunTime      time.Time        `json:"last_run_time"`
	RecordsDeleted   int64            `json:"records_deleted"`
	DeletedByTable   map[string]int64 `json:"deleted_by_table,omitempty"`
	CleanupDuration  time.Duration    `json:"cleanup_duration"`
	NextScheduledRun time.Time        `json:"next_scheduled_run"`
}

func NewCleanupService(db *gorm.DB, logger *pterm.Logger, opts RetentionOptions) *CleanupService {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Hour
	}
	at, err := time.Parse("15:04", opts.DailyAt)
	if err != nil {
		logger.Warn("Invalid cleanup time, using "+defaultDailyTime,
			logger.Args("configured", opts.DailyAt, "error", err))
		at, _ = time.Parse("15:04", defaultDailyTime)
		opts.DailyAt = defaultDailyTime
	}
	return &CleanupService{
		db:     db,
		logger: logger,
		opts:   opts,
		hour:   at.Hour(),
		minute: at.Minute(),
	}
}

func (s *CleanupService) RetentionDays() int {
	return s.opts.Days
}

// Start launches the daily scheduler. It is a no-op when retention is
// disabled or the scheduler already runs.
func (s *CleanupService) Start() {
	if s.opts.Days <= 0 {
		s.logger.Info("Log retention disabled (DB_RETENTION_DAYS=0), cleanup service not started")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("Starting log cleanup service", s.logger.Args(
		"retention_days", s.opts.Days,
		"daily_at", s.opts.DailyAt,
		"vacuum", s.opts.Vacuum,
	))
	go s.schedule(ctx, s.done)
}

// Stop cancels the scheduler, interrupting a running cleanup between
// batches, and waits for it to exit.
func (s *CleanupService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	s.logger.Info("Stopping log cleanup service")
	cancel()
	<-done
}

func (s *CleanupService) schedule(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		target := s.nextRun(time.Now())
		s.logger.Debug("Next cleanup scheduled", s.logger.Args("next_run", target.Format(time.DateTime)))

		timer := time.NewTimer(min(time.Until(target), s.opts.CheckInterval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// the clock may have jumped while sleeping; only run once the target is reached
		if time.Now().Before(target.Add(-time.Minute)) {
			continue
		}
		if _, err := s.RunCleanup(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.WithCaller().Error("Scheduled cleanup failed", s.logger.Args("error", err))
		}
	}
}

// nextRun is the first daily slot strictly after now
func (s *CleanupService) nextRun(now time.Time) time.Time {
	target := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// RunCleanup deletes log rows older than the retention window and returns
// how many rows were removed across all log tables. Only one cleanup runs
// at a time; a concurrent call gets ErrCleanupRunning.
func (s *CleanupService) RunCleanup(ctx context.Context) (int64, error) {
	if s.opts.Days <= 0 {
		return 0, ErrRetentionDisabled
	}
	if !s.runMu.TryLock() {
		return 0, ErrCleanupRunning
	}
	defer s.runMu.Unlock()

	started := time.Now()
	cutoff := started.AddDate(0, 0, -s.opts.Days)
	s.logger.Info("Starting log cleanup", s.logger.Args("cutoff", cutoff.Format(time.DateOnly)))

	byTable := make(map[string]int64, len(retentionTargets))
	var total int64
	var runErr error
	for _, target := range retentionTargets {
		deleted, err := s.purge(ctx, target, cutoff)
		byTable[target.table] = deleted
		total += deleted
		if err != nil {
			runErr = fmt.Errorf("cleanup %s: %w", target.table, err)
			break
		}
	}

	elapsed := time.Since(started)
	s.mu.Lock()
	s.last = CleanupStats{
		LastRunTime:     started,
		RecordsDeleted:  total,
		DeletedByTable:  byTable,
		CleanupDuration: elapsed,
	}
	s.mu.Unlock()

	if runErr != nil {
		return total, runErr
	}

	s.logger.Info("Cleanup completed", s.logger.Args(
		"records_deleted", total,
		"visitor_logs", byTable["visitor_logs"],
		"blocked_logs", byTable["blocked_logs"],
		"duration", elapsed.Round(time.Millisecond),
	))

	if s.opts.Vacuum && total > 0 {
		s.vacuum()
	}
	return total, nil
}

// purge deletes in batches so the single SQLite writer is never held for long
func (s *CleanupService) purge(ctx context.Context, target retentionTarget, cutoff time.Time) (int64, error) {
	stmt := fmt.Sprintf(
		"DELETE FROM %[1]s WHERE id IN (SELECT id FROM %[1]s WHERE %[2]s < ? LIMIT ?)",
		target.table, target.column,
	)

	var deleted int64
	for {
		result := s.db.WithContext(ctx).Exec(stmt, cutoff, deleteBatchSize)
		if result.Error != nil {
			return deleted, result.Error
		}
		deleted += result.RowsAffected
		if result.RowsAffected < deleteBatchSize {
			return deleted, nil
		}

		s.logger.Trace("Deleted batch", s.logger.Args("table", target.table, "total_deleted", deleted))
		select {
		case <-ctx.Done():
			return deleted, ctx.Err()
		case <-time.After(batchPause):
		}
	}
}

func (s *CleanupService) vacuum() {
	ctx, cancel := context.WithTimeout(context.Background(), vacuumTimeout)
	defer cancel()

	started := time.Now()
	if err := s.db.WithContext(ctx).Exec("VACUUM").Error; err != nil {
		s.logger.WithCaller().Error("Failed to run VACUUM", s.logger.Args("error", err))
		return
	}
	s.logger.Info("VACUUM completed", s.logger.Args("duration", time.Since(started).Round(time.Second)))
}

func (s *CleanupService) GetStats() CleanupStats {
	s.mu.Lock()
	stats := s.last
	s.mu.Unlock()
	stats.NextScheduledRun = s.nextRun(time.Now())
	return stats
}

// ManualCleanup runs the cleanup in the background.
func (s *CleanupService) ManualCleanup() error {
	if s.opts.Days <= 0 {
		return ErrRetentionDisabled
	}

	s.logger.Info("Manual cleanup triggered")
	safe.Go(s.logger, "manual cleanup", func() {
		if _, err := s.RunCleanup(context.Background()); err != nil {
			s.logger.WithCaller().Error("Manual cleanup failed", s.logger.Args("error", err))
		}
	})
	return nil
}
