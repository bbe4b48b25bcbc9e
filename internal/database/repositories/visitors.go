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
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VisitorRepository interface {
	// GetOrCreate inserts the visitor when absent. For an existing visitor it
	// returns the stored last-seen time and leaves the row untouched.
	GetOrCreate(ipHash string, now time.Time) (wasNew bool, previousLastSeen time.Time, err error)
	Touch(ipHash string, now time.Time) error
	Count() (int64, error)

	// RecordActivity bumps the request count and replaces the automation score.
	RecordActivity(ipHash string, now time.Time, score float64) error
	FindActivity(ipHash string) (*models.VisitorActivity, error)
	Activities() ([]models.VisitorActivity, error)
}

type visitorRepo struct {
	db *gorm.DB
}

func NewVisitorRepository(db *gorm.DB) VisitorRepository {
	return &visitorRepo{db: db}
}

func (r *visitorRepo) GetOrCreate(ipHash string, now time.Time) (bool, time.Time, error) {
	visitor := models.UniqueVisitor{IPHash: ipHash, LastSeen: now}
	insert := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_hash"}},
		DoNothing: true,
	}).Create(&visitor)
	if insert.Error != nil {
		return false, time.Time{}, insert.Error
	}
	if insert.RowsAffected == 1 {
		return true, now, nil
	}

	var existing models.UniqueVisitor
	if err := r.db.Where("ip_hash = ?", ipHash).First(&existing).Error; err != nil {
		return false, time.Time{}, err
	}
	return false, existing.LastSeen, nil
}

func (r *visitorRepo) Touch(ipHash string, now time.Time) error {
	return r.db.Model(&models.UniqueVisitor{}).
		Where("ip_hash = ?", ipHash).
		Update("last_seen", now).Error
}

func (r *visitorRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.UniqueVisitor{}).Count(&count).Error
	return count, err
}

func (r *visitorRepo) RecordActivity(ipHash string, now time.Time, score float64) error {
	activity := models.VisitorActivity{
		IPHash:          ipHash,
		FirstSeen:       now,
		LastSeen:        now,
		RequestCount:    1,
		AutomationScore: score,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip_hash"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":    gorm.Expr("visitor_activity.request_count + 1"),
			"last_seen":        now,
			"automation_score": score,
		}),
	}).Create(&activity).Error
}

func (r *visitorRepo) FindActivity(ipHash string) (*models.VisitorActivity, error) {
	var activity models.VisitorActivity
	if err := r.db.Where("ip_hash = ?", ipHash).First(&activity).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *visitorRepo) Activities() ([]models.VisitorActivity, error) {
	var activities []models.VisitorActivity
	err := r.db.Order("automation_score DESC").Order("request_count DESC").Find(&activities).Error
	return activities, err
}
