package analytics

import (
	"encoding/json"
	"sort"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"gonum.org/v1/gonum/stat"
)

const growthWindowDays = 7

// WeeklyGrowth compares the last seven recorded days to the seven before.
type WeeklyGrowth struct {
	CurrentWeekVisits  int64   `json:"current_week_visits"`
	PreviousWeekVisits int64   `json:"previous_week_visits"`
	GrowthRatePercent  float64 `json:"growth_rate_percent"`
}

// SummaryReport holds descriptive statistics of the daily series.
type SummaryReport struct {
	HasData            bool
	AverageDailyVisits float64
	AverageDailyUnique float64
	BusiestDayOfWeek   string
	WeeklyGrowth       WeeklyGrowth
}

func (r SummaryReport) MarshalJSON() ([]byte, error) {
	if !r.HasData {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{"No data available"})
	}
	return json.Marshal(struct {
		AverageDailyVisits float64      `json:"average_daily_visits"`
		AverageDailyUnique float64      `json:"average_daily_unique"`
		BusiestDayOfWeek   string       `json:"busiest_day_of_week"`
		WeeklyGrowth       WeeklyGrowth `json:"weekly_growth"`
	}{r.AverageDailyVisits, r.AverageDailyUnique, r.BusiestDayOfWeek, r.WeeklyGrowth})
}

// Summary computes averages, the busiest weekday and, with at least two
// weeks of rows, the week-over-week growth.
func Summary(series []models.DailyStat) SummaryReport {
	points, err := parseSeries(series)
	if err != nil || len(points) == 0 {
		return SummaryReport{HasData: false}
	}

	totals := make([]float64, len(points))
	uniques := make([]float64, len(points))
	byWeekday := make(map[string][]float64)
	for i, p := range points {
		totals[i] = float64(p.total)
		uniques[i] = float64(p.unique)
		day := p.date.Weekday().String()
		byWeekday[day] = append(byWeekday[day], float64(p.total))
	}

	report := SummaryReport{
		HasData:            true,
		AverageDailyVisits: roundTo(stat.Mean(totals, nil), 1),
		AverageDailyUnique: roundTo(stat.Mean(uniques, nil), 1),
		BusiestDayOfWeek:   busiestWeekday(byWeekday),
	}

	if len(points) >= 2*growthWindowDays {
		var current, previous int64
		n := len(points)
		for _, p := range points[n-growthWindowDays:] {
			current += p.total
		}
		for _, p := range points[n-2*growthWindowDays : n-growthWindowDays] {
			previous += p.total
		}
		report.WeeklyGrowth.CurrentWeekVisits = current
		report.WeeklyGrowth.PreviousWeekVisits = previous
		if previous > 0 {
			rate := float64(current-previous) / float64(previous) * 100
			report.WeeklyGrowth.GrowthRatePercent = roundTo(rate, 1)
		}
	}

	return report
}

// busiestWeekday returns the weekday with the highest mean; ties go to the
// alphabetically first name.
func busiestWeekday(byWeekday map[string][]float64) string {
	names := make([]string, 0, len(byWeekday))
	for name := range byWeekday {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	bestMean := 0.0
	for _, name := range names {
		mean := stat.Mean(byWeekday[name], nil)
		if best == "" || mean > bestMean {
			best, bestMean = name, mean
		}
	}
	return best
}
