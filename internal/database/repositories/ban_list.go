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
	"errors"
	"fmt"
	"strings"

	"keygate/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlreadyBanned is returned when the entry is already on the list
var ErrAlreadyBanned = errors.New("already banned")

// BanListRepository manages the country, IP and customer ban lists. All
// lookups are exact string matches.
type BanListRepository interface {
	ListCountries(ctx context.Context) ([]models.BannedCountry, error)
	AddCountry(ctx context.Context, countryName string) (*models.BannedCountry, error)
	RemoveCountry(ctx context.Context, id uint) (int64, error)
	IsCountryBanned(ctx context.Context, countryName string) (bool, error)

	ListIPs(ctx context.Context) ([]models.BannedIP, error)
	AddIP(ctx context.Context, ip, reason string) (*models.BannedIP, error)
	RemoveIP(ctx context.Context, id uint) (int64, error)
	IsIPBanned(ctx context.Context, ip string) (bool, error)

	ListCustomers(ctx context.Context) ([]models.BannedCustomer, error)
	AddCustomer(ctx context.Context, identifier string, kind models.CustomerIdentifierType, reason string) (*models.BannedCustomer, error)
	RemoveCustomer(ctx context.Context, id uint) (int64, error)
	// MatchCustomer reports whether any of the identifiers is banned. It
	// must not be called with an empty list.
	MatchCustomer(ctx context.Context, identifiers []string) (bool, error)
}

type banListRepo struct {
	db     *gorm.DB
	logger *pterm.Logger
}

func NewBanListRepository(db *gorm.DB, logger *pterm.Logger) BanListRepository {
	return &banListRepo{db: db, logger: logger}
}

// insertUnique inserts the row unless the unique column already holds the
// value, in which case ErrAlreadyBanned is returned.
func (r *banListRepo) insertUnique(ctx context.Context, row interface{}, column string) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: column}}, DoNothing: true}).
		Create(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyBanned
	}
	return nil
}

func (r *banListRepo) exists(ctx context.Context, model interface{}, where string, args ...interface{}) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where(where, args...).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *banListRepo) ListCountries(ctx context.Context) ([]models.BannedCountry, error) {
	var rows []models.BannedCountry
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list banned countries: %w", err)
	}
	return rows, nil
}

func (r *banListRepo) AddCountry(ctx context.Context, countryName string) (*models.BannedCountry, error) {
	countryName = strings.TrimSpace(countryName)
	if countryName == "" {
		return nil, fmt.Errorf("country name is required")
	}
	row := &models.BannedCountry{CountryName: countryName}
	if err := r.insertUnique(ctx, row, "country_name"); err != nil {
		return nil, fmt.Errorf("ban country %q: %w", countryName, err)
	}
	r.logger.Info("Country banned", r.logger.Args("country", countryName))
	return row, nil
}

func (r *banListRepo) RemoveCountry(ctx context.Context, id uint) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.BannedCountry{}, id)
	if result.Error != nil {
		return 0, fmt.Errorf("unban country %d: %w", id, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *banListRepo) IsCountryBanned(ctx context.Context, countryName string) (bool, error) {
	banned, err := r.exists(ctx, &models.BannedCountry{}, "country_name = ?", countryName)
	if err != nil {
		return false, fmt.Errorf("lookup banned country: %w", err)
	}
	return banned, nil
}

func (r *banListRepo) ListIPs(ctx context.Context) ([]models.BannedIP, error) {
	var rows []models.BannedIP
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list banned ips: %w", err)
	}
	return rows, nil
}

func (r *banListRepo) AddIP(ctx context.Context, ip, reason string) (*models.BannedIP, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, fmt.Errorf("ip address is required")
	}
	row := &models.BannedIP{IPAddress: ip, Reason: strings.TrimSpace(reason)}
	if err := r.insertUnique(ctx, row, "ip_address"); err != nil {
		return nil, fmt.Errorf("ban ip %q: %w", ip, err)
	}
	r.logger.Info("IP banned", r.logger.Args("ip", ip, "reason", row.Reason))
	return row, nil
}

func (r *banListRepo) RemoveIP(ctx context.Context, id uint) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.BannedIP{}, id)
	if result.Error != nil {
		return 0, fmt.Errorf("unban ip %d: %w", id, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *banListRepo) IsIPBanned(ctx context.Context, ip string) (bool, error) {
	banned, err := r.exists(ctx, &models.BannedIP{}, "ip_address = ?", ip)
	if err != nil {
		return false, fmt.Errorf("lookup banned ip: %w", err)
	}
	return banned, nil
}

func (r *banListRepo) ListCustomers(ctx context.Context) ([]models.BannedCustomer, error) {
	var rows []models.BannedCustomer
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list banned customers: %w", err)
	}
	return rows, nil
}

func (r *banListRepo) AddCustomer(ctx context.Context, identifier string, kind models.CustomerIdentifierType, reason string) (*models.BannedCustomer, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if kind != models.CustomerEmail && kind != models.CustomerPhone {
		return nil, fmt.Errorf("unknown identifier type %q", kind)
	}
	row := &models.BannedCustomer{Identifier: identifier, Type: kind, Reason: strings.TrimSpace(reason)}
	if err := r.insertUnique(ctx, row, "identifier"); err != nil {
		return nil, fmt.Errorf("ban customer %q: %w", identifier, err)
	}
	r.logger.Info("Customer banned", r.logger.Args("type", kind, "reason", row.Reason))
	return row, nil
}

func (r *banListRepo) RemoveCustomer(ctx context.Context, id uint) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.BannedCustomer{}, id)
	if result.Error != nil {
		return 0, fmt.Errorf("unban customer %d: %w", id, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *banListRepo) MatchCustomer(ctx context.Context, identifiers []string) (bool, error) {
	if len(identifiers) == 0 {
		return false, fmt.Errorf("no identifiers to match")
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BannedCustomer{}).
		Where("identifier IN ?", identifiers).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup banned customer: %w", err)
	}
	return count > 0, nil
}
