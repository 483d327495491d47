package indexes

import (
	"io"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	for _, stmt := range []string{
		`CREATE TABLE visitor_logs (id INTEGER PRIMARY KEY, visited_at DATETIME, country TEXT)`,
		`CREATE TABLE blocked_logs (id INTEGER PRIMARY KEY, blocked_at DATETIME, country TEXT, reason TEXT)`,
		`CREATE INDEX idx_visitor_time ON visitor_logs(visited_at)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("Failed to prepare schema: %v", err)
		}
	}
	return db
}

func TestEnsure(t *testing.T) {
	db := setupDB(t)
	logger := pterm.DefaultLogger.WithWriter(io.Discard)

	created, dropped, err := Ensure(db, logger)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if created != len(expectedDefinitions) {
		t.Errorf("Expected %d created, got %d", len(expectedDefinitions), created)
	}
	if dropped != 1 {
		t.Errorf("Expected 1 legacy index dropped, got %d", dropped)
	}

	created, dropped, err = Ensure(db, logger)
	if err != nil {
		t.Fatalf("Second Ensure failed: %v", err)
	}
	if created != 0 || dropped != 0 {
		t.Errorf("Expected second run to be a no-op, got created=%d dropped=%d", created, dropped)
	}

	var count int64
	db.Raw(`SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name = ?`, "idx_visitor_time").Scan(&count)
	if count != 0 {
		t.Errorf("Expected legacy index to be gone")
	}
}
