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
package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/analytics"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/ingestion"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// SystemHandler reports process and storage health
type SystemHandler struct {
	registry  *database.Registry
	engine    *ingestion.Engine
	pool      *analytics.Pool
	cleanup   *database.CleanupService
	logger    *pterm.Logger
	startTime time.Time
}

// SystemStats holds process, storage and ingestion statistics
type SystemStats struct {
	// Process Info
	AppVersion    string  `json:"app_version"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	StartTime     string  `json:"start_time"`
	GoVersion     string  `json:"go_version"`
	NumCPU        int     `json:"num_cpu"`
	NumGoroutines int     `json:"num_goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	MemorySysMB   float64 `json:"memory_sys_mb"`
	GCPauseMs     float64 `json:"gc_pause_ms"`

	// Storage Info
	TenantCount int     `json:"tenant_count"`
	DataDir     string  `json:"data_dir"`
	DataSizeMB  float64 `json:"data_size_mb"`

	// Ingestion Info
	VisitsRecorded    int64   `json:"visits_recorded"`
	ClicksRecorded    int64   `json:"clicks_recorded"`
	IngestionFailures int64   `json:"ingestion_failures"`
	VisitsPerSecond   float64 `json:"visits_per_second"`

	// Analytics Info
	AnalyticsWorkers int64 `json:"analytics_workers"`
	AnalyticsRunning int64 `json:"analytics_running"`

	// Cleanup Info
	NextCleanupTime      string `json:"next_cleanup_time"`
	NextCleanupCountdown string `json:"next_cleanup_countdown"`
	LastCleanupTime      string `json:"last_cleanup_time"`
	LastCleanupDeleted   int64  `json:"last_cleanup_deleted"`
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(registry *database.Registry, engine *ingestion.Engine, pool *analytics.Pool, cleanup *database.CleanupService, logger *pterm.Logger) *SystemHandler {
	return &SystemHandler{
		registry:  registry,
		engine:    engine,
		pool:      pool,
		cleanup:   cleanup,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Health is the liveness check
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
}

// GetSystemStats returns comprehensive system statistics
func (h *SystemHandler) GetSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.collectSystemStats())
}

// collectSystemStats gathers all system statistics. Storage errors only
// leave their fields empty.
func (h *SystemHandler) collectSystemStats() *SystemStats {
	stats := &SystemStats{
		AppVersion:    version.Version,
		StartTime:     h.startTime.Format(time.RFC3339),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutines: runtime.NumGoroutine(),
		DataDir:       h.registry.DataDir(),
	}

	uptime := time.Since(h.startTime)
	stats.UptimeSeconds = int64(uptime.Seconds())
	stats.Uptime = formatDuration(uptime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.MemoryAllocMB = float64(m.Alloc) / 1024 / 1024
	stats.MemoryTotalMB = float64(m.TotalAlloc) / 1024 / 1024
	stats.MemorySysMB = float64(m.Sys) / 1024 / 1024
	stats.GCPauseMs = float64(m.PauseNs[(m.NumGC+255)%256]) / 1000000

	tenants, err := h.registry.List()
	if err != nil {
		h.logger.WithCaller().Warn("Failed to list tenants", h.logger.Args("error", err))
	}
	stats.TenantCount = len(tenants)

	if size, err := h.registry.Size(); err == nil {
		stats.DataSizeMB = float64(size) / 1024 / 1024
	} else {
		h.logger.WithCaller().Warn("Failed to size data directory", h.logger.Args("error", err))
	}

	if h.engine != nil {
		ingest := h.engine.Stats()
		stats.VisitsRecorded = ingest.Visits
		stats.ClicksRecorded = ingest.Clicks
		stats.IngestionFailures = ingest.Failures
		if stats.UptimeSeconds > 0 {
			stats.VisitsPerSecond = float64(ingest.Visits) / float64(stats.UptimeSeconds)
		}
	}

	if h.pool != nil {
		stats.AnalyticsWorkers = h.pool.Size()
		stats.AnalyticsRunning = h.pool.Running()
	}

	if h.cleanup != nil && h.cleanup.Enabled() {
		cleanupStats := h.cleanup.GetStats()
		stats.NextCleanupTime = cleanupStats.NextScheduledRun.Format(time.DateTime)
		stats.NextCleanupCountdown = formatDuration(time.Until(cleanupStats.NextScheduledRun))
		stats.LastCleanupDeleted = cleanupStats.RecordsDeleted
		if !cleanupStats.LastRunTime.IsZero() {
			stats.LastCleanupTime = cleanupStats.LastRunTime.Format(time.DateTime)
		} else {
			stats.LastCleanupTime = "Never"
		}
	} else {
		stats.NextCleanupTime = "Disabled"
		stats.NextCleanupCountdown = "N/A"
		stats.LastCleanupTime = "N/A"
	}

	return stats
}

// formatDuration formats a duration into a human-readable string
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return formatPlural(days, "day", hours, "hour")
	}
	if hours > 0 {
		return formatPlural(hours, "hour", minutes, "minute")
	}
	if minutes > 0 {
		return formatPlural(minutes, "minute", seconds, "second")
	}
	return formatPlural(seconds, "second", 0, "")
}

// formatPlural formats numbers with proper pluralization
func formatPlural(n1 int, unit1 string, n2 int, unit2 string) string {
	result := formatSingle(n1, unit1)
	if n2 > 0 && unit2 != "" {
		result += ", " + formatSingle(n2, unit2)
	}
	return result
}

func formatSingle(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
