package repositories

import (
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"gorm.io/gorm"
)

type BotLogRepository interface {
	Append(entry *models.BotLog) error
	Recent(limit int) ([]models.BotLog, error)
}

type botLogRepo struct {
	db *gorm.DB
}

func NewBotLogRepository(db *gorm.DB) BotLogRepository {
	return &botLogRepo{db: db}
}

func (r *botLogRepo) Append(entry *models.BotLog) error {
	return r.db.Create(entry).Error
}

// Recent returns the newest entries first.
func (r *botLogRepo) Recent(limit int) ([]models.BotLog, error) {
	var entries []models.BotLog
	err := r.db.Order("detected_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
