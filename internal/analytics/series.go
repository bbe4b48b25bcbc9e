package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"
)

type point struct {
	date   time.Time
	total  int64
	unique int64
}

// parseSeries converts stored rows, already in ascending date order.
func parseSeries(series []models.DailyStat) ([]point, error) {
	points := make([]point, 0, len(series))
	for _, row := range series {
		date, err := time.Parse(models.DateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("parse daily stat date %q: %w", row.Date, err)
		}
		points = append(points, point{date: date, total: row.TotalVisits, unique: row.UniqueVisitors})
	}
	return points, nil
}

// roundTo rounds half to even at the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*scale) / scale
}
