package database

import (
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/indexes"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// OptimizeDatabase runs after migrations on a freshly created tenant file.
// It reconciles indexes and verifies SQLite settings.
func OptimizeDatabase(db *gorm.DB, logger *pterm.Logger) error {
	var journalMode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error; err != nil {
		logger.Warn("Failed to check journal mode", logger.Args("error", err))
	} else if journalMode != "wal" {
		logger.Warn("Database not in WAL mode", logger.Args("mode", journalMode))
	}

	created, dropped, err := indexes.Ensure(db, logger)
	if err != nil {
		return err
	}
	logger.Debug("Tenant indexes reconciled", logger.Args("created", created, "dropped", dropped))

	// Hint SQLite to optimize query plans using collected stats
	if err := db.Exec("PRAGMA optimize").Error; err != nil {
		logger.Debug("PRAGMA optimize failed", logger.Args("error", err))
	}
	return nil
}
