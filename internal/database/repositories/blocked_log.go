package repositories

import (
	"context"
	"fmt"
	"time"

	"keygate/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

var blockedSearchColumns = []string{"ip_address", "country", "city", "attempted_url", "reason"}

type BlockedLogRepository interface {
	Create(ctx context.Context, log *models.BlockedLog) error
	List(ctx context.Context, filter LogFilter) (*Page[models.BlockedLog], error)
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	TopReasons(ctx context.Context, since time.Time, limit int) ([]ReasonCount, error)
}

type blockedLogRepo struct {
	db     *gorm.DB
	logger *pterm.Logger
}

func NewBlockedLogRepository(db *gorm.DB, logger *pterm.Logger) BlockedLogRepository {
	return &blockedLogRepo{db: db, logger: logger}
}

func (r *blockedLogRepo) Create(ctx context.Context, log *models.BlockedLog) error {
	if log.BlockedAt.IsZero() {
		log.BlockedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("create blocked log: %w", err)
	}
	r.logger.Trace("Created blocked log", r.logger.Args("id", log.ID, "ip", log.IPAddress, "reason", log.Reason))
	return nil
}

func (r *blockedLogRepo) List(ctx context.Context, filter LogFilter) (*Page[models.BlockedLog], error) {
	base := filter.apply(r.db.WithContext(ctx).Model(&models.BlockedLog{}), "blocked_at", blockedSearchColumns)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		r.logger.WithCaller().Error("Failed to count blocked logs", r.logger.Args("error", err))
		return nil, fmt.Errorf("count blocked logs: %w", err)
	}

	rows := make([]models.BlockedLog, 0, PageSize)
	err := base.Session(&gorm.Session{}).
		Order("blocked_at DESC").
		Order("id DESC").
		Limit(PageSize).
		Offset(filter.offset()).
		Find(&rows).Error
	if err != nil {
		r.logger.WithCaller().Error("Failed to list blocked logs", r.logger.Args("error", err))
		return nil, fmt.Errorf("list blocked logs: %w", err)
	}

	return &Page[models.BlockedLog]{Rows: rows, Total: total, Page: filter.page(), PageSize: PageSize}, nil
}

func (r *blockedLogRepo) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.BlockedLog{})
	if result.Error != nil {
		r.logger.WithCaller().Error("Failed to delete blocked logs", r.logger.Args("ids", len(ids), "error", result.Error))
		return 0, fmt.Errorf("delete blocked logs: %w", result.Error)
	}
	r.logger.Debug("Deleted blocked logs", r.logger.Args("requested", len(ids), "deleted", result.RowsAffected))
	return result.RowsAffected, nil
}

func (r *blockedLogRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BlockedLog{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count blocked logs: %w", err)
	}
	return count, nil
}

func (r *blockedLogRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BlockedLog{}).
		Where("blocked_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count blocked logs since %s: %w", since.Format(time.RFC3339), err)
	}
	return count, nil
}

func (r *blockedLogRepo) TopReasons(ctx context.Context, since time.Time, limit int) ([]ReasonCount, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []ReasonCount
	err := r.db.WithContext(ctx).Model(&models.BlockedLog{}).
		Select("reason, COUNT(*) AS count").
		Where("blocked_at >= ?", since).
		Group("reason").
		Order("count DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("top block reasons: %w", err)
	}
	return out, nil
}
