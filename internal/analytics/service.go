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
package analytics

import (
	"context"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/repositories"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// Service runs the time-series reports for a tenant on the worker pool.
type Service struct {
	registry *database.Registry
	pool     *Pool
	logger   *pterm.Logger
}

func NewService(registry *database.Registry, pool *Pool, logger *pterm.Logger) *Service {
	return &Service{registry: registry, pool: pool, logger: logger}
}

func (s *Service) Forecast(ctx context.Context, tenant string, days int) (ForecastReport, error) {
	var report ForecastReport
	err := s.run(ctx, tenant, func(series []models.DailyStat) {
		report = Forecast(series, days)
	})
	return report, err
}

func (s *Service) Summary(ctx context.Context, tenant string) (SummaryReport, error) {
	var report SummaryReport
	err := s.run(ctx, tenant, func(series []models.DailyStat) {
		report = Summary(series)
	})
	return report, err
}

func (s *Service) Anomalies(ctx context.Context, tenant string) (AnomalyReport, error) {
	var report AnomalyReport
	err := s.run(ctx, tenant, func(series []models.DailyStat) {
		report = DetectAnomalies(series)
	})
	return report, err
}

// run loads the series and hands it to compute inside a pool slot.
func (s *Service) run(ctx context.Context, tenant string, compute func([]models.DailyStat)) error {
	store, err := s.registry.Open(tenant)
	if err != nil {
		return err
	}
	defer store.Close()

	var series []models.DailyStat
	if err := store.View(func(db *gorm.DB) error {
		var err error
		series, err = repositories.NewDailyStatRepository(db).Series()
		return err
	}); err != nil {
		return err
	}
	if _, err := parseSeries(series); err != nil {
		// Reports degrade to their not-enough-data form on a corrupt row.
		s.logger.WithCaller().Warn("Daily series has an unparseable date",
			s.logger.Args("tenant", store.Tenant, "error", err))
	}

	return s.pool.Do(ctx, func() error {
		compute(series)
		s.logger.Trace("Analytics computed", s.logger.Args("tenant", store.Tenant, "days", len(series)))
		return nil
	})
}
