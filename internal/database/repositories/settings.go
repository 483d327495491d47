package repositories

import (
	"context"
	"fmt"

	"keygate/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	// GetMany reads the given keys in one query. Missing keys are absent
	// from the returned map.
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	All(ctx context.Context) ([]models.SiteSetting, error)
	Set(ctx context.Context, values map[string]string) error
	// SeedDefaults inserts the values whose key does not exist yet
	SeedDefaults(ctx context.Context, defaults map[string]string) error
}

type settingsRepo struct {
	db     *gorm.DB
	logger *pterm.Logger
}

func NewSettingsRepository(db *gorm.DB, logger *pterm.Logger) SettingsRepository {
	return &settingsRepo{db: db, logger: logger}
}

func (r *settingsRepo) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []models.SiteSetting
	if err := r.db.WithContext(ctx).Where("`key` IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func (r *settingsRepo) Get(ctx context.Context, key string) (string, bool, error) {
	values, err := r.GetMany(ctx, key)
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (r *settingsRepo) All(ctx context.Context) ([]models.SiteSetting, error) {
	var rows []models.SiteSetting
	if err := r.db.WithContext(ctx).Order("`key`").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return rows, nil
}

func (r *settingsRepo) Set(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]models.SiteSetting, 0, len(values))
	for k, v := range values {
		rows = append(rows, models.SiteSetting{Key: k, Value: v})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		r.logger.WithCaller().Error("Failed to update settings", r.logger.Args("error", err))
		return fmt.Errorf("write settings: %w", err)
	}
	r.logger.Info("Site settings updated", r.logger.Args("keys", len(rows)))
	return nil
}

func (r *settingsRepo) SeedDefaults(ctx context.Context, defaults map[string]string) error {
	if len(defaults) == 0 {
		return nil
	}
	rows := make([]models.SiteSetting, 0, len(defaults))
	for k, v := range defaults {
		rows = append(rows, models.SiteSetting{Key: k, Value: v})
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&rows)
	if result.Error != nil {
		return fmt.Errorf("seed settings: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		r.logger.Debug("Seeded default settings", r.logger.Args("inserted", result.RowsAffected))
	}
	return nil
}
