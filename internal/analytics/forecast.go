package analytics

import (
	"encoding/json"
	"math"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"gonum.org/v1/gonum/stat"
)

const (
	minForecastDays = 3
	trendThreshold  = 0.5
)

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// ForecastPoint is one predicted day.
type ForecastPoint struct {
	Date            string `json:"date"`
	PredictedVisits int64  `json:"predicted_visits"`
}

// ForecastReport is either a forecast or an explanation of why none exists.
type ForecastReport struct {
	CanForecast bool
	Message     string
	Points      []ForecastPoint
	Trend       string
	Slope       float64
}

func (r ForecastReport) MarshalJSON() ([]byte, error) {
	if !r.CanForecast {
		return json.Marshal(struct {
			CanForecast bool   `json:"can_forecast"`
			Message     string `json:"message"`
		}{false, r.Message})
	}
	points := r.Points
	if points == nil {
		points = []ForecastPoint{}
	}
	return json.Marshal(struct {
		CanForecast bool            `json:"can_forecast"`
		Forecast    []ForecastPoint `json:"forecast"`
		Trend       string          `json:"trend"`
		Slope       float64         `json:"slope"`
	}{true, points, r.Trend, r.Slope})
}

// Forecast fits a least-squares line of total visits against the day number
// and extrapolates horizon days past the last recorded date. Predictions are
// clamped at zero and truncated to whole visits.
func Forecast(series []models.DailyStat, horizon int) ForecastReport {
	points, err := parseSeries(series)
	if err != nil || len(points) < minForecastDays {
		return ForecastReport{
			CanForecast: false,
			Message:     "Not enough data. Need at least 3 days of history.",
		}
	}

	// Days are counted from the first recorded date; the slope is unaffected.
	origin := points[0].date
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = daysBetween(origin, p.date)
		ys[i] = float64(p.total)
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	if horizon < 0 {
		horizon = 0
	}
	last := points[len(points)-1].date
	forecast := make([]ForecastPoint, 0, horizon)
	for i := 1; i <= horizon; i++ {
		day := last.AddDate(0, 0, i)
		predicted := intercept + slope*daysBetween(origin, day)
		forecast = append(forecast, ForecastPoint{
			Date:            day.Format(models.DateLayout),
			PredictedVisits: int64(math.Max(0, predicted)),
		})
	}

	trend := TrendStable
	switch {
	case slope > trendThreshold:
		trend = TrendIncreasing
	case slope < -trendThreshold:
		trend = TrendDecreasing
	}

	return ForecastReport{
		CanForecast: true,
		Points:      forecast,
		Trend:       trend,
		Slope:       roundTo(slope, 2),
	}
}

func daysBetween(from, to time.Time) float64 {
	return math.Round(to.Sub(from).Hours() / 24)
}
