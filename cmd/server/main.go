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
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/analytics"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/api"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/auth"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/backup"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/banner"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/botscore"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/config"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/enrichment"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/identity"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/ingestion"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/parser/referrer"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	if cfg.LogFormat != "json" {
		banner.Print()
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", logger.Args("error", err))
	}
}

func run(cfg *config.Config, logger *pterm.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)

	salt, err := identity.LoadOrCreateSalt(cfg.SaltPath)
	if err != nil {
		return err
	}

	geo := enrichment.NewGeoResolver(cfg.GeoIPCityPath, cfg.GeoIPCountryPath, logger)
	defer geo.Close()
	if cfg.GeoIPWatch {
		go func() {
			if err := geo.WatchAndReload(ctx); err != nil {
				logger.Warn("GeoIP hot reload disabled", logger.Args("error", err))
			}
		}()
	}

	rules, err := referrer.LoadRules(cfg.ReferrerRulesPath)
	if err != nil {
		logger.Warn("Using default referrer rules", logger.Args("path", cfg.ReferrerRulesPath, "error", err))
	}

	registry, err := database.NewRegistry(cfg.DataDir, logger)
	if err != nil {
		return err
	}

	resolver := identity.NewResolver(salt, geo, referrer.NewClassifier(rules), logger)
	engine := ingestion.NewEngine(registry, resolver, logger)
	pool := analytics.NewPool(cfg.AnalyticsWorkers)
	gate := auth.NewGate(registry, logger, auth.WithMaxSkew(cfg.AuthMaxSkew))

	limiter := api.NewRateLimiter(resolver, cfg.RateLimit, cfg.RateLimitWindow)
	go limiter.Run(ctx)

	cleanup := database.NewCleanupService(registry, logger, cfg.BotLogRetentionDays, cfg.CleanupTime)
	cleanup.Start()
	defer cleanup.Stop()

	if cfg.BackupEnabled() {
		uploader, err := backup.NewS3Uploader(ctx, backup.S3Config{
			Bucket:   cfg.BackupBucket,
			Region:   cfg.BackupRegion,
			Endpoint: cfg.BackupEndpoint,
		})
		if err != nil {
			return err
		}
		runner := backup.NewRunner(registry, uploader, cfg.BackupPrefix, cfg.BackupInterval, logger)
		go runner.Start(ctx)
	}

	router := api.NewRouter(api.Dependencies{
		Registry:  registry,
		Engine:    engine,
		Analytics: analytics.NewService(registry, pool, logger),
		Pool:      pool,
		Gate:      gate,
		Limiter:   limiter,
		Cleanup:   cleanup,
		BotThresholds: botscore.Thresholds{
			MinScore:      cfg.BotScoreThreshold,
			MinRequests:   cfg.BotMinRequests,
			RatePerMinute: cfg.BotRateThreshold,
		},
		Logger: logger,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", logger.Args(
			"addr", cfg.ListenAddr,
			"version", version.Version,
			"data_dir", cfg.DataDir,
			"geoip", geo.Available(),
			"backup", cfg.BackupEnabled(),
		))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	stats := engine.Stats()
	logger.Info("Server stopped", logger.Args("visits", stats.Visits, "clicks", stats.Clicks, "failures", stats.Failures))
	return nil
}
