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
package database

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

const cleanupBatchSize = 1000

// CleanupService prunes bot-log entries past their retention period in every
// tenant store once a day.
type CleanupService struct {
	registry      *Registry
	logger        *pterm.Logger
	retentionDays int
	cleanupTime   string
	stopChan      chan struct{}
	running       bool
	now           func() time.Time

	mu              sync.Mutex
	lastRunTime     time.Time
	recordsDeleted  int64
	cleanupDuration time.Duration
}

// CleanupStats holds statistics about cleanup operations
type CleanupStats struct {
	LastRunTime      time.Time
	RecordsDeleted   int64
	CleanupDuration  time.Duration
	NextScheduledRun time.Time
}

// NewCleanupService creates a new cleanup service. cleanupTime is HH:MM in
// UTC; retentionDays <= 0 disables pruning.
func NewCleanupService(registry *Registry, logger *pterm.Logger, retentionDays int, cleanupTime string) *CleanupService {
	return &CleanupService{
		registry:      registry,
		logger:        logger,
		retentionDays: retentionDays,
		cleanupTime:   cleanupTime,
		stopChan:      make(chan struct{}),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether a retention period is configured.
func (s *CleanupService) Enabled() bool {
	return s.retentionDays > 0
}

// Start begins the cleanup service
func (s *CleanupService) Start() {
	if !s.Enabled() {
		s.logger.Info("Bot log retention disabled, cleanup service not started")
		return
	}

	s.running = true
	s.logger.Info("Starting bot log cleanup service",
		s.logger.Args("retention_days", s.retentionDays, "cleanup_time", s.cleanupTime))

	go s.scheduledCleanupLoop()
}

// Stop stops the cleanup service
func (s *CleanupService) Stop() {
	if !s.running {
		return
	}

	s.logger.Info("Stopping bot log cleanup service")
	close(s.stopChan)
	s.running = false
}

func (s *CleanupService) scheduledCleanupLoop() {
	for {
		next := s.nextRun(s.now())
		wait := next.Sub(s.now())
		s.logger.Debug("Next cleanup scheduled",
			s.logger.Args("next_run", next.Format(time.DateTime), "wait_duration", wait.Round(time.Minute)))

		select {
		case <-s.stopChan:
			return
		case <-time.After(wait):
			if _, err := s.RunCleanup(); err != nil {
				s.logger.Warn("Cleanup finished with errors", s.logger.Args("error", err))
			}
		}
	}
}

// parseCleanupTime returns the cleanup time on the day of baseTime.
func (s *CleanupService) parseCleanupTime(baseTime time.Time) time.Time {
	cleanupTime, err := time.Parse("15:04", s.cleanupTime)
	if err != nil {
		s.logger.Warn("Invalid cleanup time format, using 02:00",
			s.logger.Args("configured", s.cleanupTime, "error", err))
		cleanupTime, _ = time.Parse("15:04", "02:00")
	}

	return time.Date(
		baseTime.Year(), baseTime.Month(), baseTime.Day(),
		cleanupTime.Hour(), cleanupTime.Minute(), 0, 0,
		baseTime.Location(),
	)
}

func (s *CleanupService) nextRun(now time.Time) time.Time {
	target := s.parseCleanupTime(now)
	if !now.Before(target) {
		target = target.Add(24 * time.Hour)
	}
	return target
}

// RunCleanup prunes every tenant now and returns the number of deleted rows.
// A failing tenant does not stop the others. Without a retention period it
// deletes nothing.
func (s *CleanupService) RunCleanup() (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	startTime := s.now()
	cutoff := startTime.AddDate(0, 0, -s.retentionDays)

	tenants, err := s.registry.List()
	if err != nil {
		return 0, err
	}

	var totalDeleted int64
	var errs []error
	for _, tenant := range tenants {
		deleted, err := s.pruneTenant(tenant, cutoff)
		totalDeleted += deleted
		if err != nil {
			s.logger.WithCaller().Error("Failed to prune bot logs",
				s.logger.Args("tenant", tenant, "error", err, "cutoff_date", cutoff.Format("2006-01-02")))
			errs = append(errs, fmt.Errorf("%s: %w", tenant, err))
		}
	}

	duration := time.Since(startTime)
	s.mu.Lock()
	s.lastRunTime = startTime
	s.recordsDeleted = totalDeleted
	s.cleanupDuration = duration
	s.mu.Unlock()

	s.logger.Info("Cleanup completed",
		s.logger.Args(
			"tenants", len(tenants),
			"records_deleted", totalDeleted,
			"cutoff_date", cutoff.Format("2006-01-02"),
		))
	return totalDeleted, errors.Join(errs...)
}

// pruneTenant deletes in batches so the writer lock is released between them.
func (s *CleanupService) pruneTenant(tenant string, cutoff time.Time) (int64, error) {
	store, err := s.registry.Open(tenant)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	var totalDeleted int64
	for {
		var deleted int64
		err := store.Update(func(tx *gorm.DB) error {
			result := tx.Exec(`
				DELETE FROM bot_logs
				WHERE id IN (
					SELECT id FROM bot_logs
					WHERE detected_at < ?
					LIMIT ?
				)
			`, cutoff, cleanupBatchSize)
			deleted = result.RowsAffected
			return result.Error
		})
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted < cleanupBatchSize {
			return totalDeleted, nil
		}
		s.logger.Trace("Deleted batch",
			s.logger.Args("tenant", tenant, "batch_deleted", deleted, "total_deleted", totalDeleted))
	}
}

// GetStats returns cleanup statistics
func (s *CleanupService) GetStats() *CleanupStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &CleanupStats{
		LastRunTime:      s.lastRunTime,
		RecordsDeleted:   s.recordsDeleted,
		CleanupDuration:  s.cleanupDuration,
		NextScheduledRun: s.nextRun(s.now()),
	}
}
