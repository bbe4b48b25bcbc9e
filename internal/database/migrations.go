package database

import (
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"gorm.io/gorm"
)

// RunMigrations creates the tenant schema if missing. It is idempotent.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UniqueVisitor{},
		&models.VisitorActivity{},
		&models.DimensionCount{},
		&models.DailyStat{},
		&models.GeneralStat{},
		&models.AuthConfig{},
		&models.BotLog{},
	)
}
