package enrichment

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pterm/pterm"
)

func testLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
}

func TestLookupWithoutDatabases(t *testing.T) {
	g := NewGeoResolver("", "", testLogger())
	defer g.Close()

	result := g.Lookup("8.8.8.8")
	if result.Status != LookupUnavailable {
		t.Errorf("Expected status unavailable, got %s", result.Status)
	}
	if got := g.Country("8.8.8.8"); got != UnknownCountry {
		t.Errorf("Expected '%s', got '%s'", UnknownCountry, got)
	}
}

func TestLookupWithMissingFile(t *testing.T) {
	dir := t.TempDir()
	g := NewGeoResolver(filepath.Join(dir, "GeoLite2-City.mmdb"), "", testLogger())
	defer g.Close()

	if g.Available() {
		t.Error("Expected resolver to be unavailable when the file is missing")
	}
	if got := g.Country("not-an-ip"); got != UnknownCountry {
		t.Errorf("Expected '%s' for garbage address, got '%s'", UnknownCountry, got)
	}
}

func TestLookupWithCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "GeoLite2-City.mmdb")
	if err := os.WriteFile(path, []byte("definitely not maxmind"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	g := NewGeoResolver(path, "", testLogger())
	defer g.Close()

	if g.Lookup("1.1.1.1").Status != LookupUnavailable {
		t.Error("Expected corrupt database to leave lookups unavailable")
	}
}

func TestCountryOrUnknown(t *testing.T) {
	cases := []struct {
		result GeoResult
		want   string
	}{
		{GeoResult{Country: "DE", Status: LookupFound}, "DE"},
		{GeoResult{Country: "", Status: LookupFound}, UnknownCountry},
		{GeoResult{Status: LookupNotFound}, UnknownCountry},
		{GeoResult{Status: LookupUnavailable}, UnknownCountry},
	}

	for _, tc := range cases {
		if got := tc.result.CountryOrUnknown(); got != tc.want {
			t.Errorf("Expected '%s' for %+v, got '%s'", tc.want, tc.result, got)
		}
	}
}

func TestFileWatcherReportsCreatedFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "GeoLite2-Country.mmdb")

	fw, err := NewFileWatcher([]string{target}, testLogger())
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}
	defer fw.Close()

	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	select {
	case path := <-fw.Events():
		if filepath.Base(path) != "GeoLite2-Country.mmdb" {
			t.Errorf("Expected event for target file, got '%s'", path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected an event for the created database file")
	}
}

func TestWatchAndReloadStopsOnCancel(t *testing.T) {
	g := NewGeoResolver(filepath.Join(t.TempDir(), "city.mmdb"), "", testLogger())
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.WatchAndReload(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil error on cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WatchAndReload did not return after cancel")
	}
}
