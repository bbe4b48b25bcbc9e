package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/apperr"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/botscore"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/repositories"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

const (
	// historyDays is a calendar window ending today, not a row count.
	historyDays   = 30
	recentBotLogs = 50
)

// BreakdownEntry is one key of a dimension breakdown.
type BreakdownEntry struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// StatsResponse is the payload of GET /stats.
type StatsResponse struct {
	SiteID         string             `json:"site_id"`
	TotalVisits    int64              `json:"total_visits"`
	UniqueVisitors int64              `json:"unique_visitors"`
	History        []models.DailyStat `json:"history"`
	Countries      []BreakdownEntry   `json:"countries"`
	Pages          []BreakdownEntry   `json:"pages"`
	Devices        []BreakdownEntry   `json:"devices"`
	Browsers       []BreakdownEntry   `json:"browsers"`
	OS             []BreakdownEntry   `json:"os"`
	Referrers      []BreakdownEntry   `json:"referrers"`
	Links          []BreakdownEntry   `json:"links"`
}

// BotsResponse is the payload of GET /bots.
type BotsResponse struct {
	SiteID           string               `json:"site_id"`
	Thresholds       botscore.Thresholds  `json:"thresholds"`
	Candidates       []botscore.Candidate `json:"candidates"`
	RecentDetections []models.BotLog      `json:"recent_detections"`
}

// StatsHandler serves the aggregate read endpoints.
type StatsHandler struct {
	registry   *database.Registry
	thresholds botscore.Thresholds
	logger     *pterm.Logger
	now        func() time.Time
}

// NewStatsHandler builds the handler; a nil clock means time.Now.
func NewStatsHandler(registry *database.Registry, thresholds botscore.Thresholds, logger *pterm.Logger, now func() time.Time) *StatsHandler {
	if now == nil {
		now = time.Now
	}
	return &StatsHandler{registry: registry, thresholds: thresholds, logger: logger, now: now}
}

// GetStats returns totals, the daily history of the last 30 calendar days
// and every breakdown.
func (h *StatsHandler) GetStats(c *gin.Context) {
	store, err := h.registry.Open(siteID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer store.Close()

	from := h.now().UTC().AddDate(0, 0, -(historyDays - 1)).Format(models.DateLayout)

	resp := StatsResponse{SiteID: store.Tenant}
	err = store.View(func(db *gorm.DB) error {
		counters := repositories.NewCounterRepository(db)

		var err error
		if resp.TotalVisits, err = counters.GetCounter(models.CounterTotalVisits); err != nil {
			return err
		}
		if resp.UniqueVisitors, err = repositories.NewVisitorRepository(db).Count(); err != nil {
			return err
		}
		if resp.History, err = repositories.NewDailyStatRepository(db).Since(from); err != nil {
			return err
		}

		breakdowns := []struct {
			dimension models.Dimension
			dest      *[]BreakdownEntry
		}{
			{models.DimensionCountry, &resp.Countries},
			{models.DimensionPage, &resp.Pages},
			{models.DimensionDevice, &resp.Devices},
			{models.DimensionBrowser, &resp.Browsers},
			{models.DimensionOS, &resp.OS},
			{models.DimensionReferrer, &resp.Referrers},
			{models.DimensionLink, &resp.Links},
		}
		for _, b := range breakdowns {
			rows, err := counters.Breakdown(b.dimension)
			if err != nil {
				return err
			}
			*b.dest = toEntries(rows)
		}
		return nil
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp.History == nil {
		resp.History = []models.DailyStat{}
	}

	c.JSON(http.StatusOK, resp)
}

// GetBots lists likely automated visitors and the latest per-request
// detections. min_score overrides the configured score threshold.
func (h *StatsHandler) GetBots(c *gin.Context) {
	thresholds := h.thresholds
	if raw := strings.TrimSpace(c.Query("min_score")); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil || score < 0 || score > 1 {
			AbortWithError(c, apperr.New(apperr.KindValidation, apperr.CodeInvalidParameter,
				"min_score must be a number between 0 and 1"))
			return
		}
		thresholds.MinScore = score
	}

	store, err := h.registry.Open(siteID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer store.Close()

	resp := BotsResponse{SiteID: store.Tenant, Thresholds: thresholds}
	err = store.View(func(db *gorm.DB) error {
		activities, err := repositories.NewVisitorRepository(db).Activities()
		if err != nil {
			return err
		}
		resp.Candidates = botscore.DetectBots(activities, thresholds)

		resp.RecentDetections, err = repositories.NewBotLogRepository(db).Recent(recentBotLogs)
		return err
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp.RecentDetections == nil {
		resp.RecentDetections = []models.BotLog{}
	}

	c.JSON(http.StatusOK, resp)
}

func toEntries(rows []models.DimensionCount) []BreakdownEntry {
	entries := make([]BreakdownEntry, len(rows))
	for i, row := range rows {
		entries[i] = BreakdownEntry{Key: row.Key, Count: row.Count}
	}
	return entries
}
