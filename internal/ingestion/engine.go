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
package ingestion

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/apperr"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/botscore"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/repositories"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/identity"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/parser/referrer"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/parser/useragent"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// DefaultPath is recorded when a visit does not name a page.
const DefaultPath = "/"

// Visit is one page view as handed over by the transport.
type Visit struct {
	Tenant  string
	Path    string
	Request identity.Request
}

// VisitResult reports what a visit was counted as.
type VisitResult struct {
	Status      string                  `json:"status"`
	SiteID      string                  `json:"site_id"`
	Country     string                  `json:"country"`
	Unique      bool                    `json:"unique"`
	UniqueToday bool                    `json:"unique_today"`
	Page        string                  `json:"page"`
	Device      useragent.DeviceClass   `json:"device"`
	Browser     useragent.BrowserFamily `json:"browser"`
	OS          useragent.OSFamily      `json:"os"`
	Referrer    referrer.Category       `json:"referrer"`
}

// Stats are process-lifetime ingestion counters.
type Stats struct {
	Visits   int64 `json:"visits"`
	Clicks   int64 `json:"clicks"`
	Failures int64 `json:"failures"`
}

// Engine applies visits and clicks to tenant stores.
type Engine struct {
	registry *database.Registry
	resolver *identity.Resolver
	logger   *pterm.Logger
	now      func() time.Time

	visits   atomic.Int64
	clicks   atomic.Int64
	failures atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, mainly for day-rollover tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an ingestion engine.
func NewEngine(registry *database.Registry, resolver *identity.Resolver, logger *pterm.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecordVisit counts one page view. Every counter touched by the visit is
// written in a single transaction under the tenant's writer lock.
func (e *Engine) RecordVisit(ctx context.Context, visit Visit) (*VisitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := e.resolver.Resolve(visit.Request)
	verdict := botscore.Score(id.Agent)

	page := strings.TrimSpace(visit.Path)
	if page == "" {
		page = DefaultPath
	}

	store, err := e.registry.Open(visit.Tenant)
	if err != nil {
		e.failures.Add(1)
		return nil, err
	}
	defer store.Close()

	now := e.now().UTC()
	today := now.Format(models.DateLayout)

	result := &VisitResult{
		Status:   "ok",
		SiteID:   store.Tenant,
		Country:  id.Country,
		Page:     page,
		Device:   id.Agent.Device,
		Browser:  id.Agent.Browser,
		OS:       id.Agent.OS,
		Referrer: id.Referrer,
	}

	err = store.Update(func(tx *gorm.DB) error {
		visitors := repositories.NewVisitorRepository(tx)
		counters := repositories.NewCounterRepository(tx)
		daily := repositories.NewDailyStatRepository(tx)

		if err := visitors.RecordActivity(id.Hash, now, verdict.Score); err != nil {
			return err
		}
		if verdict.Automated() {
			entry := &models.BotLog{
				IPHash:     id.Hash,
				DetectedAt: now,
				Reason:     verdict.Reason,
				Confidence: verdict.Confidence,
			}
			if err := repositories.NewBotLogRepository(tx).Append(entry); err != nil {
				return err
			}
		}

		if err := counters.IncrementCounter(models.CounterTotalVisits, 1); err != nil {
			return err
		}

		isNew, lastSeen, err := visitors.GetOrCreate(id.Hash, now)
		if err != nil {
			return err
		}
		result.Unique = isNew
		result.UniqueToday = isNew || lastSeen.UTC().Format(models.DateLayout) != today
		if !isNew {
			if err := visitors.Touch(id.Hash, now); err != nil {
				return err
			}
		}

		var uniqueDelta int64
		if result.UniqueToday {
			uniqueDelta = 1
		}
		if err := daily.Upsert(today, 1, uniqueDelta); err != nil {
			return err
		}

		keys := map[models.Dimension]string{
			models.DimensionCountry:  id.Country,
			models.DimensionPage:     page,
			models.DimensionDevice:   string(id.Agent.Device),
			models.DimensionBrowser:  string(id.Agent.Browser),
			models.DimensionOS:       string(id.Agent.OS),
			models.DimensionReferrer: string(id.Referrer),
		}
		for _, dim := range models.VisitDimensions {
			if err := counters.UpsertDimension(dim, keys[dim], 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.failures.Add(1)
		return nil, err
	}

	e.visits.Add(1)
	e.logger.Trace("Visit recorded",
		e.logger.Args("tenant", store.Tenant, "identity", id.Hash, "unique", result.Unique, "unique_today", result.UniqueToday))
	return result, nil
}

// RecordClick counts one outbound link click under its literal URL.
func (e *Engine) RecordClick(ctx context.Context, tenant, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(url) == "" {
		return "", apperr.New(apperr.KindValidation, apperr.CodeMissingField, "url is required")
	}

	store, err := e.registry.Open(tenant)
	if err != nil {
		e.failures.Add(1)
		return "", err
	}
	defer store.Close()

	err = store.Update(func(tx *gorm.DB) error {
		return repositories.NewCounterRepository(tx).UpsertDimension(models.DimensionLink, url, 1)
	})
	if err != nil {
		e.failures.Add(1)
		return "", err
	}

	e.clicks.Add(1)
	return store.Tenant, nil
}

// Stats returns the counters accumulated since start.
func (e *Engine) Stats() Stats {
	return Stats{
		Visits:   e.visits.Load(),
		Clicks:   e.clicks.Load(),
		Failures: e.failures.Load(),
	}
}
