package database

import (
	"testing"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/repositories"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

func TestRunCleanupPrunesOldBotLogs(t *testing.T) {
	registry := newTestRegistry(t)
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

	for _, tenant := range []string{"alpha", "beta"} {
		store, err := registry.Open(tenant)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		err = store.Update(func(tx *gorm.DB) error {
			logs := repositories.NewBotLogRepository(tx)
			for _, age := range []int{1, 29, 31, 90} {
				entry := &models.BotLog{
					IPHash:     "h",
					DetectedAt: now.AddDate(0, 0, -age),
					Reason:     "bot-user-agent",
					Confidence: 0.9,
				}
				if err := logs.Append(entry); err != nil {
					return err
				}
			}
			return nil
		})
		store.Close()
		if err != nil {
			t.Fatalf("seeding failed: %v", err)
		}
	}

	svc := NewCleanupService(registry, pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled), 30, "02:00")
	svc.now = func() time.Time { return now }

	deleted, err := svc.RunCleanup()
	if err != nil {
		t.Fatalf("RunCleanup failed: %v", err)
	}
	if deleted != 4 {
		t.Errorf("Expected 4 deleted rows, got %d", deleted)
	}

	store, err := registry.Open("alpha")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	var remaining []models.BotLog
	store.View(func(db *gorm.DB) error {
		var err error
		remaining, err = repositories.NewBotLogRepository(db).Recent(10)
		return err
	})
	if len(remaining) != 2 {
		t.Errorf("Expected 2 recent entries to survive, got %d", len(remaining))
	}

	if stats := svc.GetStats(); stats.RecordsDeleted != 4 || !stats.LastRunTime.Equal(now) {
		t.Errorf("Expected stats to reflect the run, got %+v", stats)
	}
}

func TestCleanupNextRun(t *testing.T) {
	svc := NewCleanupService(newTestRegistry(t), pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled), 30, "02:00")

	before := time.Date(2026, 5, 20, 1, 0, 0, 0, time.UTC)
	if next := svc.nextRun(before); !next.Equal(time.Date(2026, 5, 20, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected same-day run, got %v", next)
	}

	after := time.Date(2026, 5, 20, 2, 0, 0, 0, time.UTC)
	if next := svc.nextRun(after); !next.Equal(time.Date(2026, 5, 21, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected next-day run, got %v", next)
	}
}

func TestCleanupDisabled(t *testing.T) {
	svc := NewCleanupService(newTestRegistry(t), pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled), 0, "02:00")

	if svc.Enabled() {
		t.Error("Expected zero retention to disable cleanup")
	}
	svc.Start()
	svc.Stop()
}

func TestCleanupDisabledKeepsBotLogs(t *testing.T) {
	registry := newTestRegistry(t)
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

	store, err := registry.Open("alpha")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()
	err = store.Update(func(tx *gorm.DB) error {
		return repositories.NewBotLogRepository(tx).Append(&models.BotLog{
			IPHash:     "h",
			DetectedAt: now.AddDate(-2, 0, 0),
			Reason:     "bot-user-agent",
			Confidence: 0.9,
		})
	})
	if err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	svc := NewCleanupService(registry, pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled), 0, "02:00")
	svc.now = func() time.Time { return now }

	deleted, err := svc.RunCleanup()
	if err != nil {
		t.Fatalf("RunCleanup failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected nothing deleted without retention, got %d", deleted)
	}

	var remaining []models.BotLog
	store.View(func(db *gorm.DB) error {
		var err error
		remaining, err = repositories.NewBotLogRepository(db).Recent(10)
		return err
	})
	if len(remaining) != 1 {
		t.Errorf("Expected the old entry to survive, got %d entries", len(remaining))
	}
}
