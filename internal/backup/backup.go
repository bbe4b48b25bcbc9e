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

// Package backup ships compressed snapshots of every tenant store to object
// storage on a fixed interval.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"

	"github.com/golang/snappy"
	"github.com/pterm/pterm"
)

// Runner snapshots tenant stores and uploads them.
type Runner struct {
	registry *database.Registry
	uploader Uploader
	prefix   string
	interval time.Duration
	logger   *pterm.Logger
	now      func() time.Time
}

func NewRunner(registry *database.Registry, uploader Uploader, prefix string, interval time.Duration, logger *pterm.Logger) *Runner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Runner{
		registry: registry,
		uploader: uploader,
		prefix:   prefix,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// ObjectKey is "<prefix>/<tenant>/<UTC timestamp>.db.snappy".
func ObjectKey(prefix, tenant string, at time.Time) string {
	return path.Join(prefix, tenant, at.UTC().Format("20060102T150405Z")+".db.snappy")
}

// Start runs a backup every interval until ctx is cancelled. Failed cycles
// are logged and not retried before the next tick.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Tenant backups scheduled", r.logger.Args("interval", r.interval.String(), "prefix", r.prefix))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Backup scheduler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Warn("Backup cycle finished with errors", r.logger.Args("error", err))
			}
		}
	}
}

// RunOnce backs up every tenant and returns how many uploads succeeded.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	tenants, err := r.registry.List()
	if err != nil {
		return 0, err
	}

	tmpDir, err := os.MkdirTemp("", "tenant-backup-*")
	if err != nil {
		return 0, fmt.Errorf("create backup dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	started := r.now()
	var errs []error
	uploaded := 0
	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.backupTenant(ctx, tenant, tmpDir, started); err != nil {
			r.logger.WithCaller().Error("Tenant backup failed", r.logger.Args("tenant", tenant, "error", err))
			errs = append(errs, fmt.Errorf("%s: %w", tenant, err))
			continue
		}
		uploaded++
	}

	r.logger.Info("Backup cycle completed",
		r.logger.Args("tenants", len(tenants), "uploaded", uploaded, "duration", time.Since(started).String()))
	return uploaded, errors.Join(errs...)
}

func (r *Runner) backupTenant(ctx context.Context, tenant, tmpDir string, at time.Time) error {
	store, err := r.registry.Open(tenant)
	if err != nil {
		return err
	}
	defer store.Close()

	snapshot := filepath.Join(tmpDir, store.Tenant+".db")
	if err := store.Snapshot(snapshot); err != nil {
		return err
	}
	defer os.Remove(snapshot)

	raw, err := os.ReadFile(snapshot)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	compressed := snappy.Encode(nil, raw)

	key := ObjectKey(r.prefix, store.Tenant, at)
	if err := r.uploader.Upload(ctx, key, compressed); err != nil {
		return err
	}

	r.logger.Debug("Tenant backup uploaded",
		r.logger.Args("tenant", store.Tenant, "key", key, "raw_bytes", len(raw), "compressed_bytes", len(compressed)))
	return nil
}
