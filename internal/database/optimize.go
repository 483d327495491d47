package database

import (
	"fmt"

	"keygate/internal/database/indexes"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// applied on every open
var tuningPragmas = []string{
	"PRAGMA temp_store = MEMORY",
	"PRAGMA cache_size = -16000",
}

// OptimizeDatabase tunes the connection, checks the journal mode and
// reconciles the composite indexes the admin log queries rely on.
func OptimizeDatabase(db *gorm.DB, logger *pterm.Logger) error {
	for _, pragma := range tuningPragmas {
		if err := db.Exec(pragma).Error; err != nil {
			logger.Debug("Pragma rejected", logger.Args("pragma", pragma, "error", err))
		}
	}

	var mode string
	switch err := db.Raw("PRAGMA journal_mode").Scan(&mode).Error; {
	case err != nil:
		logger.Warn("Could not read journal mode", logger.Args("error", err))
	case mode == "memory":
		// :memory: databases have no WAL
	case mode != "wal":
		logger.Warn("Database is not in WAL mode, concurrent visit logging will contend", logger.Args("mode", mode))
	}

	created, dropped, err := indexes.Ensure(db, logger)
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	if created+dropped > 0 {
		logger.Info("Log indexes updated", logger.Args("created", created, "dropped", dropped))
	}

	if err := db.Exec("PRAGMA optimize").Error; err != nil {
		logger.Debug("PRAGMA optimize failed", logger.Args("error", err))
	}
	return nil
}
