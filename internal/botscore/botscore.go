// Package botscore scores requests for automation and ranks the visitors
// most likely to be bots. It is a best-effort heuristic, not a classifier.
package botscore

import (
	"sort"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/parser/useragent"
)

// Reasons recorded in the bot log.
const (
	ReasonBotUserAgent   = "bot-user-agent"
	ReasonUnknownBrowser = "unknown-browser"
)

// Verdict is the automation assessment of a single request.
type Verdict struct {
	Score      float64
	Reason     string
	Confidence float64
}

// Automated reports whether the request should be logged as a bot.
func (v Verdict) Automated() bool {
	return v.Score >= 1.0
}

// Score rates one request: 1.0 when the device is a bot or the browser is
// unknown, else 0.0.
func Score(agent useragent.Classification) Verdict {
	switch {
	case agent.Device == useragent.DeviceBot:
		return Verdict{Score: 1.0, Reason: ReasonBotUserAgent, Confidence: 0.9}
	case agent.Browser == useragent.BrowserUnknown:
		return Verdict{Score: 1.0, Reason: ReasonUnknownBrowser, Confidence: 0.6}
	default:
		return Verdict{Score: 0.0}
	}
}

// Thresholds decide which visitors are reported as candidates.
type Thresholds struct {
	// MinScore admits any visitor whose latest score reaches it.
	MinScore float64 `json:"min_score"`
	// MinRequests and RatePerMinute together admit fast, busy visitors.
	MinRequests   int64   `json:"min_requests"`
	RatePerMinute float64 `json:"requests_per_minute"`
}

// Candidate is a visitor reported by DetectBots.
type Candidate struct {
	IPHash          string    `json:"ip_hash"`
	AutomationScore float64   `json:"automation_score"`
	RequestCount    int64     `json:"request_count"`
	RatePerMinute   float64   `json:"requests_per_minute"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	Reasons         []string  `json:"reasons"`
}

// RequestRate is requests per minute over the visitor's active window. A
// window shorter than a minute counts as one minute.
func RequestRate(activity models.VisitorActivity) float64 {
	minutes := activity.LastSeen.Sub(activity.FirstSeen).Minutes()
	if minutes < 1 {
		minutes = 1
	}
	return float64(activity.RequestCount) / minutes
}

// DetectBots filters activity records against the thresholds and ranks the
// result by score, then rate, then request count.
func DetectBots(activities []models.VisitorActivity, th Thresholds) []Candidate {
	candidates := make([]Candidate, 0)

	for _, activity := range activities {
		rate := RequestRate(activity)

		var reasons []string
		if activity.AutomationScore >= th.MinScore {
			reasons = append(reasons, "automation-score")
		}
		if activity.RequestCount >= th.MinRequests && rate > th.RatePerMinute {
			reasons = append(reasons, "request-rate")
		}
		if len(reasons) == 0 {
			continue
		}

		candidates = append(candidates, Candidate{
			IPHash:          activity.IPHash,
			AutomationScore: activity.AutomationScore,
			RequestCount:    activity.RequestCount,
			RatePerMinute:   rate,
			FirstSeen:       activity.FirstSeen,
			LastSeen:        activity.LastSeen,
			Reasons:         reasons,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.AutomationScore != b.AutomationScore {
			return a.AutomationScore > b.AutomationScore
		}
		if a.RatePerMinute != b.RatePerMinute {
			return a.RatePerMinute > b.RatePerMinute
		}
		return a.RequestCount > b.RequestCount
	})
	return candidates
}
