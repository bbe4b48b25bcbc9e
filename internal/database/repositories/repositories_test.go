package repositories

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "tenant.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.UniqueVisitor{},
		&models.VisitorActivity{},
		&models.DimensionCount{},
		&models.DailyStat{},
		&models.GeneralStat{},
		&models.AuthConfig{},
		&models.BotLog{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestCounterRepository(t *testing.T) {
	repo := NewCounterRepository(setupTestDB(t))

	for i := 0; i < 3; i++ {
		if err := repo.IncrementCounter(models.CounterTotalVisits, 1); err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
	}
	if total, _ := repo.GetCounter(models.CounterTotalVisits); total != 3 {
		t.Errorf("Expected total 3, got %d", total)
	}
	if missing, err := repo.GetCounter("never"); err != nil || missing != 0 {
		t.Errorf("Expected 0 for unknown counter, got %d (%v)", missing, err)
	}

	repo.UpsertDimension(models.DimensionCountry, "US", 1)
	repo.UpsertDimension(models.DimensionCountry, "DE", 1)
	repo.UpsertDimension(models.DimensionCountry, "US", 1)
	repo.UpsertDimension(models.DimensionPage, "/", 1)

	rows, err := repo.Breakdown(models.DimensionCountry)
	if err != nil {
		t.Fatalf("Breakdown failed: %v", err)
	}
	if len(rows) != 2 || rows[0].Key != "US" || rows[0].Count != 2 || rows[1].Key != "DE" {
		t.Errorf("Expected [US:2 DE:1], got %+v", rows)
	}

	if total, _ := repo.DimensionTotal(models.DimensionCountry); total != 3 {
		t.Errorf("Expected country total 3, got %d", total)
	}
	if total, _ := repo.DimensionTotal(models.DimensionLink); total != 0 {
		t.Errorf("Expected empty link total 0, got %d", total)
	}
}

func TestDailyStatRepository(t *testing.T) {
	repo := NewDailyStatRepository(setupTestDB(t))

	repo.Upsert("2024-01-02", 1, 1)
	repo.Upsert("2024-01-02", 1, 0)
	repo.Upsert("2024-01-01", 5, 2)
	repo.Upsert("2024-01-03", 1, 1)

	day, err := repo.FindByDate("2024-01-02")
	if err != nil {
		t.Fatalf("FindByDate failed: %v", err)
	}
	if day.TotalVisits != 2 || day.UniqueVisitors != 1 {
		t.Errorf("Expected {2,1}, got {%d,%d}", day.TotalVisits, day.UniqueVisitors)
	}

	series, _ := repo.Series()
	if len(series) != 3 || series[0].Date != "2024-01-01" || series[2].Date != "2024-01-03" {
		t.Errorf("Expected ascending series, got %+v", series)
	}

	recent, _ := repo.Since("2024-01-02")
	if len(recent) != 2 || recent[0].Date != "2024-01-02" || recent[1].Date != "2024-01-03" {
		t.Errorf("Expected days from 2024-01-02 ascending, got %+v", recent)
	}
	if none, _ := repo.Since("2024-02-01"); len(none) != 0 {
		t.Errorf("Expected no days after the last row, got %+v", none)
	}
}

func TestVisitorRepository(t *testing.T) {
	repo := NewVisitorRepository(setupTestDB(t))
	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	isNew, _, err := repo.GetOrCreate("abc", day1)
	if err != nil || !isNew {
		t.Fatalf("Expected new visitor, got new=%v err=%v", isNew, err)
	}

	isNew, lastSeen, err := repo.GetOrCreate("abc", day2)
	if err != nil || isNew {
		t.Fatalf("Expected existing visitor, got new=%v err=%v", isNew, err)
	}
	if !lastSeen.Equal(day1) {
		t.Errorf("Expected previous last seen %v, got %v", day1, lastSeen)
	}

	if err := repo.Touch("abc", day2); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	_, lastSeen, _ = repo.GetOrCreate("abc", day2)
	if !lastSeen.Equal(day2) {
		t.Errorf("Expected touched last seen %v, got %v", day2, lastSeen)
	}

	if count, _ := repo.Count(); count != 1 {
		t.Errorf("Expected 1 unique visitor, got %d", count)
	}
}

func TestRecordActivityReplacesScore(t *testing.T) {
	repo := NewVisitorRepository(setupTestDB(t))
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	repo.RecordActivity("bot", start, 1.0)
	repo.RecordActivity("bot", start.Add(time.Minute), 0.0)

	activity, err := repo.FindActivity("bot")
	if err != nil {
		t.Fatalf("FindActivity failed: %v", err)
	}
	if activity.RequestCount != 2 {
		t.Errorf("Expected request count 2, got %d", activity.RequestCount)
	}
	if activity.AutomationScore != 0.0 {
		t.Errorf("Expected latest score 0.0, got %v", activity.AutomationScore)
	}
	if !activity.FirstSeen.Equal(start) || !activity.LastSeen.Equal(start.Add(time.Minute)) {
		t.Errorf("Unexpected window %v - %v", activity.FirstSeen, activity.LastSeen)
	}
}

func TestAuthConfigRepository(t *testing.T) {
	repo := NewAuthConfigRepository(setupTestDB(t))

	if _, ok, err := repo.PublicKey(); ok || err != nil {
		t.Fatalf("Expected no key, got ok=%v err=%v", ok, err)
	}

	stored, err := repo.SetPublicKeyIfAbsent("aa", time.Now().UTC())
	if err != nil || !stored {
		t.Fatalf("Expected first key to be stored, got %v %v", stored, err)
	}
	stored, err = repo.SetPublicKeyIfAbsent("bb", time.Now().UTC())
	if err != nil || stored {
		t.Fatalf("Expected second key to be rejected, got %v %v", stored, err)
	}

	key, ok, _ := repo.PublicKey()
	if !ok || key != "aa" {
		t.Errorf("Expected original key 'aa', got '%s'", key)
	}
}

func TestBotLogRepository(t *testing.T) {
	repo := NewBotLogRepository(setupTestDB(t))
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		repo.Append(&models.BotLog{IPHash: "h", DetectedAt: base.Add(time.Duration(i) * time.Minute), Reason: "bot-user-agent", Confidence: 0.9})
	}

	entries, err := repo.Recent(3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if !entries[0].DetectedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("Expected newest entry first, got %v", entries[0].DetectedAt)
	}
}
