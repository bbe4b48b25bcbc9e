package repositories

import (
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DailyStatRepository interface {
	Upsert(date string, visitDelta, uniqueDelta int64) error
	FindByDate(date string) (*models.DailyStat, error)
	// Series returns every day in ascending date order.
	Series() ([]models.DailyStat, error)
	// Since returns the days on or after from in ascending date order.
	Since(from string) ([]models.DailyStat, error)
}

type dailyStatRepo struct {
	db *gorm.DB
}

func NewDailyStatRepository(db *gorm.DB) DailyStatRepository {
	return &dailyStatRepo{db: db}
}

func (r *dailyStatRepo) Upsert(date string, visitDelta, uniqueDelta int64) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_visits":    gorm.Expr("daily_stats.total_visits + ?", visitDelta),
			"unique_visitors": gorm.Expr("daily_stats.unique_visitors + ?", uniqueDelta),
		}),
	}).Create(&models.DailyStat{Date: date, TotalVisits: visitDelta, UniqueVisitors: uniqueDelta}).Error
}

func (r *dailyStatRepo) FindByDate(date string) (*models.DailyStat, error) {
	var stat models.DailyStat
	if err := r.db.Where("date = ?", date).First(&stat).Error; err != nil {
		return nil, err
	}
	return &stat, nil
}

func (r *dailyStatRepo) Series() ([]models.DailyStat, error) {
	var stats []models.DailyStat
	err := r.db.Order("date ASC").Find(&stats).Error
	return stats, err
}

func (r *dailyStatRepo) Since(from string) ([]models.DailyStat, error) {
	var stats []models.DailyStat
	err := r.db.Where("date >= ?", from).Order("date ASC").Find(&stats).Error
	return stats, err
}
