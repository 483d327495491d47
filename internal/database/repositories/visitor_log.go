// MIT License
//
// # Copyright (c) 2026 Kolin
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
package repositories

import (
	"context"
	"fmt"
	"time"

	"keygate/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

var visitorSearchColumns = []string{"ip_address", "country", "city", "page_url"}

type VisitorLogRepository interface {
	Create(ctx context.Context, log *models.VisitorLog) error
	List(ctx context.Context, filter LogFilter) (*Page[models.VisitorLog], error)
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type visitorLogRepo struct {
	db     *gorm.DB
	logger *pterm.Logger
}

func NewVisitorLogRepository(db *gorm.DB, logger *pterm.Logger) VisitorLogRepository {
	return &visitorLogRepo{db: db, logger: logger}
}

func (r *visitorLogRepo) Create(ctx context.Context, log *models.VisitorLog) error {
	if log.VisitedAt.IsZero() {
		log.VisitedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("create visitor log: %w", err)
	}
	r.logger.Trace("Created visitor log", r.logger.Args("id", log.ID, "ip", log.IPAddress))
	return nil
}

func (r *visitorLogRepo) List(ctx context.Context, filter LogFilter) (*Page[models.VisitorLog], error) {
	base := filter.apply(r.db.WithContext(ctx).Model(&models.VisitorLog{}), "visited_at", visitorSearchColumns)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		r.logger.WithCaller().Error("Failed to count visitor logs", r.logger.Args("error", err))
		return nil, fmt.Errorf("count visitor logs: %w", err)
	}

	rows := make([]models.VisitorLog, 0, PageSize)
	err := base.Session(&gorm.Session{}).
		Order("visited_at DESC").
		Order("id DESC").
		Limit(PageSize).
		Offset(filter.offset()).
		Find(&rows).Error
	if err != nil {
		r.logger.WithCaller().Error("Failed to list visitor logs", r.logger.Args("error", err))
		return nil, fmt.Errorf("list visitor logs: %w", err)
	}

	r.logger.Trace("Listed visitor logs", r.logger.Args("count", len(rows), "total", total, "page", filter.page()))
	return &Page[models.VisitorLog]{Rows: rows, Total: total, Page: filter.page(), PageSize: PageSize}, nil
}

func (r *visitorLogRepo) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.VisitorLog{})
	if result.Error != nil {
		r.logger.WithCaller().Error("Failed to delete visitor logs", r.logger.Args("ids", len(ids), "error", result.Error))
		return 0, fmt.Errorf("delete visitor logs: %w", result.Error)
	}
	r.logger.Debug("Deleted visitor logs", r.logger.Args("requested", len(ids), "deleted", result.RowsAffected))
	return result.RowsAffected, nil
}

func (r *visitorLogRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.VisitorLog{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count visitor logs: %w", err)
	}
	return count, nil
}

func (r *visitorLogRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.VisitorLog{}).
		Where("visited_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count visitor logs since %s: %w", since.Format(time.RFC3339), err)
	}
	return count, nil
}
