package analytics

import (
	"encoding/json"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"gonum.org/v1/gonum/stat"
)

const minAnomalyDays = 5

// Anomaly kinds.
const (
	AnomalySpike = "spike"
	AnomalyDip   = "dip"
)

// Anomaly is one flagged day.
type Anomaly struct {
	Date   string  `json:"date"`
	Visits int64   `json:"visits"`
	Type   string  `json:"type"`
	Score  float64 `json:"score"`
}

// AnomalyReport lists flagged days or explains why detection did not run.
type AnomalyReport struct {
	Enough    bool
	Message   string
	Anomalies []Anomaly
}

func (r AnomalyReport) MarshalJSON() ([]byte, error) {
	if !r.Enough {
		return json.Marshal(struct {
			HasAnomalies bool   `json:"has_anomalies"`
			Message      string `json:"message"`
		}{false, r.Message})
	}
	anomalies := r.Anomalies
	if anomalies == nil {
		anomalies = []Anomaly{}
	}
	return json.Marshal(struct {
		HasAnomalies bool      `json:"has_anomalies"`
		Anomalies    []Anomaly `json:"anomalies"`
	}{len(anomalies) > 0, anomalies})
}

// HasAnomalies reports whether any day was flagged.
func (r AnomalyReport) HasAnomalies() bool {
	return len(r.Anomalies) > 0
}

// DetectAnomalies flags outlying days of total visits with an isolation
// forest. Flagged days above the series mean are spikes, the rest dips.
func DetectAnomalies(series []models.DailyStat) AnomalyReport {
	points, err := parseSeries(series)
	if err != nil || len(points) < minAnomalyDays {
		return AnomalyReport{
			Enough:  false,
			Message: "Not enough data. Need at least 5 days of history.",
		}
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = float64(p.total)
	}
	mean := stat.Mean(values, nil)

	forest := fitIsolationForest(values, forestTrees, forestSeed)

	anomalies := make([]Anomaly, 0)
	for i, p := range points {
		s := forest.score(values[i])
		if s <= anomalyThreshold {
			continue
		}
		kind := AnomalyDip
		if values[i] > mean {
			kind = AnomalySpike
		}
		anomalies = append(anomalies, Anomaly{
			Date:   p.date.Format(models.DateLayout),
			Visits: p.total,
			Type:   kind,
			Score:  roundTo(s, 3),
		})
	}

	return AnomalyReport{Enough: true, Anomalies: anomalies}
}
