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

// Package api assembles the HTTP surface: middleware, routes and the
// handlers behind them.
package api

import (
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/analytics"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/api/handlers"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/auth"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/botscore"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/ingestion"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// Dependencies are the services the routes are served from.
type Dependencies struct {
	Registry      *database.Registry
	Engine        *ingestion.Engine
	Analytics     *analytics.Service
	Pool          *analytics.Pool
	Gate          *auth.Gate
	Limiter       *RateLimiter
	Cleanup       *database.CleanupService
	BotThresholds botscore.Thresholds
	Logger        *pterm.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// NewRouter builds the gin engine. Write endpoints are rate limited; tenant
// read endpoints pass through the signature gate.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(deps.Logger))

	tracking := handlers.NewTrackingHandler(deps.Engine, deps.Logger)
	stats := handlers.NewStatsHandler(deps.Registry, deps.BotThresholds, deps.Logger, deps.Clock)
	reports := handlers.NewAnalyticsHandler(deps.Analytics, deps.Logger)
	sites := handlers.NewSitesHandler(deps.Registry, deps.Gate, deps.Logger)
	system := handlers.NewSystemHandler(deps.Registry, deps.Engine, deps.Pool, deps.Cleanup, deps.Logger)

	router.GET("/health", system.Health)
	router.GET("/system", system.GetSystemStats)

	ingest := router.Group("/")
	if deps.Limiter != nil {
		ingest.Use(deps.Limiter.Middleware())
	}
	ingest.POST("/track", tracking.Track)
	ingest.POST("/click", tracking.Click)

	router.GET("/sites", sites.ListSites)
	router.POST("/register-key", sites.RegisterKey)

	gated := router.Group("/", RequireSignature(deps.Gate, deps.Logger))
	gated.GET("/stats", stats.GetStats)
	gated.GET("/bots", stats.GetBots)
	gated.GET("/forecast", reports.GetForecast)
	gated.GET("/summary", reports.GetSummary)
	gated.GET("/anomalies", reports.GetAnomalies)

	return router
}
