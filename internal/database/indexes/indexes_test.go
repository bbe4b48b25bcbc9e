package indexes

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEnsureCreatesAndDrops(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "idx.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE dimension_counts (dimension TEXT, key TEXT, count INTEGER)`,
		`CREATE TABLE visitor_activity (ip_hash TEXT, automation_score REAL, request_count INTEGER)`,
		`CREATE TABLE bot_logs (id INTEGER PRIMARY KEY, detected_at DATETIME)`,
		`CREATE INDEX idx_stale ON dimension_counts(key)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	log := pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	created, dropped, err := Ensure(db, log)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if created != len(Expected()) {
		t.Errorf("Expected %d created, got %d", len(Expected()), created)
	}
	if dropped != 1 {
		t.Errorf("Expected 1 dropped, got %d", dropped)
	}

	created, dropped, err = Ensure(db, log)
	if err != nil || created != 0 || dropped != 0 {
		t.Errorf("Expected second run to be a no-op, got created=%d dropped=%d err=%v", created, dropped, err)
	}
}
