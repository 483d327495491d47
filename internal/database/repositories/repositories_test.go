package repositories

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"keygate/internal/database"
	"keygate/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, *pterm.Logger) {
	t.Helper()
	logger := pterm.DefaultLogger.WithWriter(io.Discard)
	db, err := database.NewConnection(&database.Config{Path: database.MemoryPath}, logger)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db, logger
}

func TestVisitorLogListNewestFirst(t *testing.T) {
	db, logger := setupTestDB(t)
	repo := NewVisitorLogRepository(db, logger)
	ctx := context.Background()
	base := time.Now().Add(-10 * time.Hour)

	for i := 0; i < 3; i++ {
		err := repo.Create(ctx, &models.VisitorLog{
			IPAddress: "10.0.0.1",
			Country:   "France",
			VisitedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	page, err := repo.List(ctx, LogFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 3 || len(page.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got total=%d rows=%d", page.Total, len(page.Rows))
	}
	for i := 1; i < len(page.Rows); i++ {
		if page.Rows[i].VisitedAt.After(page.Rows[i-1].VisitedAt) {
			t.Errorf("Expected newest first, row %d is newer than row %d", i, i-1)
		}
	}
	if page.PageSize != PageSize || page.Page != 1 {
		t.Errorf("Expected page 1 of size %d, got page %d size %d", PageSize, page.Page, page.PageSize)
	}
}

func TestVisitorLogPagination(t *testing.T) {
	db, logger := setupTestDB(t)
	repo := NewVisitorLogRepository(db, logger)
	ctx := context.Background()

	for i := 0; i < PageSize+5; i++ {
		if err := repo.Create(ctx, &models.VisitorLog{IPAddress: "10.0.0.1"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	page, err := repo.List(ctx, LogFilter{Page: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != int64(PageSize+5) {
		t.Errorf("Expected exact total %d, got %d", PageSize+5, page.Total)
	}
	if len(page.Rows) != 5 {
		t.Errorf("Expected 5 rows on page 2, got %d", len(page.Rows))
	}
}

func TestVisitorLogFilters(t *testing.T) {
	db, logger := setupTestDB(t)
	repo := NewVisitorLogRepository(db, logger)
	ctx := context.Background()
	now := time.Now()

	rows := []models.VisitorLog{
		{IPAddress: "1.1.1.1", Country: "France", City: "Paris", PageURL: "/shop/pubg", VisitedAt: now.Add(-48 * time.Hour)},
		{IPAddress: "2.2.2.2", Country: "Germany", City: "Berlin", PageURL: "/shop/codm", VisitedAt: now.Add(-2 * time.Hour)},
		{IPAddress: "3.3.3.3", Country: "France", City: "Lyon", PageURL: "/100%_off", VisitedAt: now.Add(-1 * time.Hour)},
	}
	for i := range rows {
		if err := repo.Create(ctx, &rows[i]); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tests := []struct {
		name     string
		filter   LogFilter
		expected int64
	}{
		{"country", LogFilter{Country: "France"}, 2},
		{"search city", LogFilter{Search: "berl"}, 1},
		{"search url", LogFilter{Search: "pubg"}, 1},
		{"search ip", LogFilter{Search: "3.3.3"}, 1},
		{"search escapes wildcards", LogFilter{Search: "100%_"}, 1},
		{"from", LogFilter{From: ptrTime(now.Add(-3 * time.Hour))}, 2},
		{"to", LogFilter{To: ptrTime(now.Add(-24 * time.Hour))}, 1},
		{"combined", LogFilter{Country: "France", From: ptrTime(now.Add(-3 * time.Hour))}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if page.Total != tt.expected {
				t.Errorf("Expected %d rows, got %d", tt.expected, page.Total)
			}
		})
	}
}

func TestDeleteByIDsReturnsRemovedCount(t *testing.T) {
	db, logger := setupTestDB(t)
	repo := NewBlockedLogRepository(db, logger)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		log := &models.BlockedLog{IPAddress: "9.9.9.9", Reason: "IP Ban"}
		if err := repo.Create(ctx, log); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, log.ID)
	}

	deleted, err := repo.DeleteByIDs(ctx, []uint{ids[0], ids[1], 99999})
	if err != nil {
		t.Fatalf("DeleteByIDs failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}

	count, _ := repo.Count(ctx)
	if count != 1 {
		t.Errorf("Expected 1 remaining row, got %d", count)
	}

	deleted, err = repo.DeleteByIDs(ctx, nil)
	if err != nil || deleted != 0 {
		t.Errorf("Expected no-op for empty id list, got %d, %v", deleted, err)
	}
}

func TestBlockedLogTopReasons(t *testing.T) {
	db, logger := setupTestDB(t)
	repo := NewBlockedLogRepository(db, logger)
	ctx := context.Background()

	for _, reason := range []string{"Country Ban", "Country Ban", "IP Ban", "Country Ban", "IP Ban", "Advanced Protection: Score 90/100 [WebRTC Leak]"} {
		if err := repo.Create(ctx, &models.BlockedLog{IPAddress: "9.9.9.9", Reason: reason}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	top, err := repo.TopReasons(ctx, time.Now().Add(-time.Hour), 2)
	if err != nil {
		t.Fatalf("TopReasons failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("Expected 2 reasons, got %d", len(top))
	}
	if top[0].Reason != "Country Ban" || top[0].Count != 3 {
		t.Errorf("Expected Country Ban x3 first, got %+v", top[0])
	}
	if top[1].Reason != "IP Ban" || top[1].Count != 2 {
		t.Errorf("Expected IP Ban x2 second, got %+v", top[1])
	}
}

func TestBanListCountries(t *testing.T) {
	db, logger := setupTestDB(t)
	repo := NewBanListRepository(db, logger)
	ctx := context.Background()

	row, err := repo.AddCountry(ctx, "Russia")
	if err != nil {
		t.Fatalf("AddCountry failed: %v", err)
	}
	if _, err := repo.AddCountry(ctx, "Russia"); !errors.Is(err, ErrAlreadyBanned) {
		t.Errorf("Expected ErrAlreadyBanned, got %v", err)
	}
	if _, err := repo.AddCountry(ctx, "China"); err != nil {
		t.Fatalf("AddCountry failed: %v", err)
	}

	banned, _ := repo.IsCountryBanned(ctx, "Russia")
	if !banned {
		t.Error("Expected Russia to be banned")
	}
	// exact match only
	banned, _ = repo.IsCountryBanned(ctx, "Russ")
	if banned {
		t.Error("Expected prefix not to match")
	}

	list, _ := repo.ListCountries(ctx)
	if len(list) != 2 || list[0].CountryName != "China" {
		t.Errorf("Expected newest first, got %+v", list)
	}

	removed, err := repo.RemoveCountry(ctx, row.ID)
	if err != nil || removed != 1 {
		t.Errorf("Expected 1 removed, got %d, %v", removed, err)
	}
	banned, _ = repo.IsCountryBanned(ctx, "Russia")
	if banned {
		t.Error("Expected Russia to be unbanned")
	}
}

func TestBanListIPsExactMatch(t *testing.T) {
	db, logger := setupTestDB(t)
	repo := NewBanListRepository(db, logger)
	ctx := context.Background()

	if _, err := repo.AddIP(ctx, "203.0.113.7", "chargeback"); err != nil {
		t.Fatalf("AddIP failed: %v", err)
	}

	tests := map[string]bool{
		"203.0.113.7":  true,
		"203.0.113.70": false,
		"203.0.113":    false,
	}
	for ip, expected := range tests {
		banned, err := repo.IsIPBanned(ctx, ip)
		if err != nil {
			t.Fatalf("IsIPBanned failed: %v", err)
		}
		if banned != expected {
			t.Errorf("IsIPBanned(%s): expected %v, got %v", ip, expected, banned)
		}
	}
}

func TestBanListCustomers(t *testing.T) {
	db, logger := setupTestDB(t)
	repo := NewBanListRepository(db, logger)
	ctx := context.Background()

	if _, err := repo.AddCustomer(ctx, "banned@example.com", models.CustomerEmail, "fraud"); err != nil {
		t.Fatalf("AddCustomer failed: %v", err)
	}
	if _, err := repo.AddCustomer(ctx, "x", "fax", ""); err == nil {
		t.Error("Expected unknown identifier type to be rejected")
	}

	matched, err := repo.MatchCustomer(ctx, []string{"other@example.com", "banned@example.com"})
	if err != nil {
		t.Fatalf("MatchCustomer failed: %v", err)
	}
	if !matched {
		t.Error("Expected match on second identifier")
	}

	matched, _ = repo.MatchCustomer(ctx, []string{"BANNED@example.com"})
	if matched {
		t.Error("Expected exact, case-sensitive match")
	}

	if _, err := repo.MatchCustomer(ctx, nil); err == nil {
		t.Error("Expected error for empty identifier list")
	}
}

func TestSettings(t *testing.T) {
	db, logger := setupTestDB(t)
	repo := NewSettingsRepository(db, logger)
	ctx := context.Background()

	err := repo.SeedDefaults(ctx, map[string]string{
		models.SettingBlockVPN:      "false",
		models.SettingVPNBanMessage: "default",
	})
	if err != nil {
		t.Fatalf("SeedDefaults failed: %v", err)
	}

	if err := repo.Set(ctx, map[string]string{models.SettingBlockVPN: "true"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// seeding again must not overwrite admin changes
	if err := repo.SeedDefaults(ctx, map[string]string{models.SettingBlockVPN: "false"}); err != nil {
		t.Fatalf("SeedDefaults failed: %v", err)
	}

	values, err := repo.GetMany(ctx, models.SettingBlockVPN, models.SettingVPNBanMessage, models.SettingGeoBanMessage)
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if values[models.SettingBlockVPN] != "true" {
		t.Errorf("Expected block_vpn=true, got %q", values[models.SettingBlockVPN])
	}
	if values[models.SettingVPNBanMessage] != "default" {
		t.Errorf("Expected default message, got %q", values[models.SettingVPNBanMessage])
	}
	if _, ok := values[models.SettingGeoBanMessage]; ok {
		t.Error("Expected missing key to be absent")
	}

	all, _ := repo.All(ctx)
	if len(all) != 2 {
		t.Errorf("Expected 2 settings, got %d", len(all))
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
