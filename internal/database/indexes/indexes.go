package indexes

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type Definition struct {
	Name  string
	Table string
	SQL   string
}

// Single-column indexes come from the gorm tags on the models; these are the
// composite ones backing the admin list queries and the retention cleanup.
var expectedDefinitions = []Definition{
	// ===== ADMIN LISTS (newest first with filters) =====
	{Name: "idx_visitor_time_country", Table: "visitor_logs", SQL: `CREATE INDEX IF NOT EXISTS idx_visitor_time_country ON visitor_logs(visited_at DESC, country)`},
	{Name: "idx_blocked_time_reason", Table: "blocked_logs", SQL: `CREATE INDEX IF NOT EXISTS idx_blocked_time_reason ON blocked_logs(blocked_at DESC, reason)`},
	{Name: "idx_blocked_time_country", Table: "blocked_logs", SQL: `CREATE INDEX IF NOT EXISTS idx_blocked_time_country ON blocked_logs(blocked_at DESC, country)`},

	// ===== SUMMARY (top reasons in a window) =====
	{Name: "idx_blocked_reason_agg", Table: "blocked_logs", SQL: `CREATE INDEX IF NOT EXISTS idx_blocked_reason_agg ON blocked_logs(reason, blocked_at)`},
}

// Names used by earlier schema revisions
var legacyIndexes = []string{
	"idx_visitor_time",
	"idx_blocked_time",
	"idx_blocked_reason",
}

// Ensure drops legacy indexes and creates the missing composite ones.
func Ensure(db *gorm.DB, logger *pterm.Logger) (created int, dropped int, err error) {
	tables := lo.Uniq(lo.Map(expectedDefinitions, func(d Definition, _ int) string { return d.Table }))

	var existing []string
	err = db.Table("sqlite_master").
		Where("type = ? AND tbl_name IN ? AND name NOT LIKE ?", "index", tables, "sqlite_%").
		Pluck("name", &existing).Error
	if err != nil {
		return 0, 0, fmt.Errorf("list indexes: %w", err)
	}
	present := lo.Associate(existing, func(name string) (string, struct{}) { return name, struct{}{} })

	for _, name := range legacyIndexes {
		if _, ok := present[name]; !ok {
			continue
		}
		if err := db.Exec("DROP INDEX IF EXISTS " + name).Error; err != nil {
			logger.Warn("Failed to drop legacy index", logger.Args("index", name, "error", err))
			continue
		}
		dropped++
	}

	for _, def := range expectedDefinitions {
		if _, ok := present[def.Name]; ok {
			continue
		}
		if err := db.Exec(def.SQL).Error; err != nil {
			return created, dropped, fmt.Errorf("create %s on %s: %w", def.Name, def.Table, err)
		}
		logger.Trace("Created index", logger.Args("index", def.Name, "table", def.Table))
		created++
	}
	return created, dropped, nil
}
