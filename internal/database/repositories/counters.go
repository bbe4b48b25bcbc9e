// MIT License
//
// Copyright (c) 2026 Kolin
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
//
package repositories

import (
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterRepository covers general counters and dimension counters.
type CounterRepository interface {
	IncrementCounter(name string, delta int64) error
	GetCounter(name string) (int64, error)
	UpsertDimension(dimension models.Dimension, key string, delta int64) error
	Breakdown(dimension models.Dimension) ([]models.DimensionCount, error)
	DimensionTotal(dimension models.Dimension) (int64, error)
}

type counterRepo struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepo{db: db}
}

func (r *counterRepo) IncrementCounter(name string, delta int64) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value": gorm.Expr("general_stats.value + ?", delta),
		}),
	}).Create(&models.GeneralStat{Key: name, Value: delta}).Error
}

func (r *counterRepo) GetCounter(name string) (int64, error) {
	var stats []models.GeneralStat
	if err := r.db.Where(&models.GeneralStat{Key: name}).Limit(1).Find(&stats).Error; err != nil {
		return 0, err
	}
	if len(stats) == 0 {
		return 0, nil
	}
	return stats[0].Value, nil
}

func (r *counterRepo) UpsertDimension(dimension models.Dimension, key string, delta int64) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "dimension"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count": gorm.Expr("dimension_counts.count + ?", delta),
		}),
	}).Create(&models.DimensionCount{Dimension: dimension, Key: key, Count: delta}).Error
}

// Breakdown returns the counters of one dimension, highest count first.
func (r *counterRepo) Breakdown(dimension models.Dimension) ([]models.DimensionCount, error) {
	var rows []models.DimensionCount
	err := r.db.Where("dimension = ?", dimension).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "count"}, Desc: true}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Find(&rows).Error
	return rows, err
}

func (r *counterRepo) DimensionTotal(dimension models.Dimension) (int64, error) {
	var total int64
	err := r.db.Model(&models.DimensionCount{}).
		Where("dimension = ?", dimension).
		Select("COALESCE(SUM(count), 0)").
		Scan(&total).Error
	return total, err
}
