package api

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/analytics"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/auth"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/botscore"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/identity"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/ingestion"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

const fixedNow = 1700000000

type testServer struct {
	router *gin.Engine
	now    time.Time
}

func setupServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	registry, err := database.NewRegistry(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	ts := &testServer{now: time.Unix(fixedNow, 0).UTC()}
	clock := func() time.Time { return ts.now }

	resolver := identity.NewResolver(identity.Salt(bytes.Repeat([]byte{7}, identity.SaltSize)), nil, nil, logger)
	pool := analytics.NewPool(2)

	ts.router = NewRouter(Dependencies{
		Registry:  registry,
		Engine:    ingestion.NewEngine(registry, resolver, logger, ingestion.WithClock(clock)),
		Analytics: analytics.NewService(registry, pool, logger),
		Pool:      pool,
		Gate:      auth.NewGate(registry, logger, auth.WithClock(clock)),
		Limiter:   NewRateLimiter(resolver, rateLimit, time.Minute),
		BotThresholds: botscore.Thresholds{
			MinScore:      0.5,
			MinRequests:   20,
			RatePerMinute: 30,
		},
		Logger: logger,
		Clock:  clock,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.doFrom(t, "", method, target, body, headers)
}

// doFrom is do with an explicit peer address; empty keeps the httptest default.
func (ts *testServer) doFrom(t *testing.T, remoteAddr, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestTrackUniqueness(t *testing.T) {
	ts := setupServer(t, 0)
	headers := map[string]string{"X-Forwarded-For": "203.0.113.9", "User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0 Safari/537.36"}

	first := decode(t, ts.do(t, http.MethodPost, "/track", map[string]string{"path": "/home"}, headers))
	if first["unique"] != true || first["unique_today"] != true {
		t.Errorf("Expected first visit to be unique, got %v", first)
	}
	if first["site_id"] != "default" {
		t.Errorf("Expected default site, got '%v'", first["site_id"])
	}

	second := decode(t, ts.do(t, http.MethodPost, "/track", map[string]string{"path": "/home"}, headers))
	if second["unique"] != false || second["unique_today"] != false {
		t.Errorf("Expected repeat visit to be non-unique, got %v", second)
	}

	ts.now = ts.now.Add(24 * time.Hour)
	third := decode(t, ts.do(t, http.MethodPost, "/track", nil, headers))
	if third["unique"] != false || third["unique_today"] != true {
		t.Errorf("Expected next-day visit to be unique today only, got %v", third)
	}
	if third["page"] != "/" {
		t.Errorf("Expected default page '/', got '%v'", third["page"])
	}

	stats := decode(t, ts.do(t, http.MethodGet, "/stats", nil, nil))
	if stats["total_visits"] != float64(3) {
		t.Errorf("Expected 3 total visits, got %v", stats["total_visits"])
	}
	if stats["unique_visitors"] != float64(1) {
		t.Errorf("Expected 1 unique visitor, got %v", stats["unique_visitors"])
	}
	history, _ := stats["history"].([]any)
	if len(history) != 2 {
		t.Fatalf("Expected 2 history rows, got %d", len(history))
	}
	pages, _ := stats["pages"].([]any)
	if len(pages) != 2 {
		t.Fatalf("Expected 2 page keys, got %v", stats["pages"])
	}
	top := pages[0].(map[string]any)
	if top["key"] != "/home" || top["count"] != float64(2) {
		t.Errorf("Expected '/home' with 2 visits first, got %v", top)
	}
}

func TestTrackRejectsMalformedBody(t *testing.T) {
	ts := setupServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/track", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "invalid-body" {
		t.Errorf("Expected invalid-body, got %v", body["error"])
	}
}

func TestClick(t *testing.T) {
	ts := setupServer(t, 0)

	w := ts.do(t, http.MethodPost, "/click", map[string]string{"url": "https://example.com/out", "site_id": "shop"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "ok" || body["url"] != "https://example.com/out" {
		t.Errorf("Unexpected click response: %v", body)
	}

	w = ts.do(t, http.MethodPost, "/click", map[string]string{"site_id": "shop"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing url, got %d", w.Code)
	}

	stats := decode(t, ts.do(t, http.MethodGet, "/stats?site_id=shop", nil, nil))
	links, _ := stats["links"].([]any)
	if len(links) != 1 {
		t.Errorf("Expected one link key, got %v", stats["links"])
	}
}

func TestSignedStatsAccess(t *testing.T) {
	ts := setupServer(t, 0)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	w := ts.do(t, http.MethodPost, "/register-key", map[string]string{
		"site_id":        "site1",
		"public_key_hex": hex.EncodeToString(pub),
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on register, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/stats?site_id=site1", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without signature, got %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "missing-credentials" {
		t.Errorf("Expected missing-credentials, got %v", body["error"])
	}

	sig := ed25519.Sign(priv, auth.Message("site1", fixedNow))
	signed := map[string]string{
		"X-Timestamp": strconv.Itoa(fixedNow),
		"X-Signature": hex.EncodeToString(sig),
	}
	w = ts.do(t, http.MethodGet, "/stats?site_id=site1", nil, signed)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 with signature, got %d: %s", w.Code, w.Body.String())
	}

	for _, path := range []string{"/summary", "/anomalies", "/forecast", "/bots"} {
		w = ts.do(t, http.MethodGet, path+"?site_id=site1", nil, signed)
		if w.Code != http.StatusOK {
			t.Errorf("Expected 200 on %s with signature, got %d", path, w.Code)
		}
	}

	// Other tenants stay open.
	if w = ts.do(t, http.MethodGet, "/stats?site_id=other", nil, nil); w.Code != http.StatusOK {
		t.Errorf("Expected open tenant to answer 200, got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/register-key", map[string]string{
		"site_id":        "site1",
		"public_key_hex": hex.EncodeToString(pub),
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on second registration, got %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "key-already-registered" {
		t.Errorf("Expected key-already-registered, got %v", body["error"])
	}
}

func TestRegisterKeyValidation(t *testing.T) {
	ts := setupServer(t, 0)

	w := ts.do(t, http.MethodPost, "/register-key", map[string]string{"site_id": "x", "public_key_hex": "abcd"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for short key, got %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "invalid-public-key" {
		t.Errorf("Expected invalid-public-key, got %v", body["error"])
	}
}

func TestForecastParameters(t *testing.T) {
	ts := setupServer(t, 0)

	for _, days := range []string{"0", "366", "abc"} {
		if w := ts.do(t, http.MethodGet, "/forecast?days="+days, nil, nil); w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for days=%s, got %d", days, w.Code)
		}
	}

	body := decode(t, ts.do(t, http.MethodGet, "/forecast", nil, nil))
	if body["can_forecast"] != false {
		t.Errorf("Expected can_forecast false without history, got %v", body)
	}

	for i := 0; i < 3; i++ {
		ts.do(t, http.MethodPost, "/track", nil, map[string]string{"X-Forwarded-For": "198.51.100.1"})
		ts.now = ts.now.Add(24 * time.Hour)
	}
	body = decode(t, ts.do(t, http.MethodGet, "/forecast?days=5", nil, nil))
	if body["can_forecast"] != true {
		t.Fatalf("Expected forecast with 3 days of history, got %v", body)
	}
	if points, _ := body["forecast"].([]any); len(points) != 5 {
		t.Errorf("Expected 5 forecast points, got %d", len(points))
	}
}

func TestStatsHistoryIsCalendarWindow(t *testing.T) {
	ts := setupServer(t, 0)
	start := ts.now

	history := func() []any {
		t.Helper()
		body := decode(t, ts.do(t, http.MethodGet, "/stats", nil, nil))
		rows, _ := body["history"].([]any)
		return rows
	}
	dateOf := func(row any) any {
		entry, _ := row.(map[string]any)
		return entry["date"]
	}

	ts.do(t, http.MethodPost, "/track", nil, nil)
	ts.now = start.AddDate(0, 0, 29)
	ts.do(t, http.MethodPost, "/track", nil, nil)

	if rows := history(); len(rows) != 2 || dateOf(rows[0]) != start.Format("2006-01-02") {
		t.Errorf("Expected a day 29 days back to be included, got %v", rows)
	}

	// two sparse rows, but the older one is now 30 days back
	ts.now = start.AddDate(0, 0, 30)
	if rows := history(); len(rows) != 1 || dateOf(rows[0]) != start.AddDate(0, 0, 29).Format("2006-01-02") {
		t.Errorf("Expected only the last 30 calendar days, got %v", rows)
	}

	ts.now = start.AddDate(0, 0, 90)
	if rows := history(); len(rows) != 0 {
		t.Errorf("Expected empty history after a quiet quarter, got %v", rows)
	}
}

func TestSummaryWithoutData(t *testing.T) {
	ts := setupServer(t, 0)

	body := decode(t, ts.do(t, http.MethodGet, "/summary", nil, nil))
	if body["error"] != "No data available" {
		t.Errorf("Expected no-data payload, got %v", body)
	}
}

func TestRateLimit(t *testing.T) {
	ts := setupServer(t, 2)
	headers := map[string]string{"X-Forwarded-For": "192.0.2.44"}

	for i := 0; i < 2; i++ {
		if w := ts.do(t, http.MethodPost, "/track", nil, headers); w.Code != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i+1, w.Code)
		}
	}
	if w := ts.do(t, http.MethodPost, "/track", nil, headers); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after budget is spent, got %d", w.Code)
	}

	// rotating the forwarded header from the same peer does not reset the budget
	for _, forwarded := range []string{"192.0.2.45", "198.51.100.7", "203.0.113.9, 10.0.0.1"} {
		spoofed := map[string]string{"X-Forwarded-For": forwarded}
		if w := ts.do(t, http.MethodPost, "/track", nil, spoofed); w.Code != http.StatusTooManyRequests {
			t.Errorf("Expected forwarded '%s' to stay rate limited, got %d", forwarded, w.Code)
		}
	}

	if w := ts.doFrom(t, "198.51.100.20:4711", http.MethodPost, "/track", nil, headers); w.Code != http.StatusOK {
		t.Errorf("Expected another peer to pass, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/stats", nil, headers); w.Code != http.StatusOK {
		t.Errorf("Expected reads to skip the limiter, got %d", w.Code)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	resolver := identity.NewResolver(identity.Salt(bytes.Repeat([]byte{1}, identity.SaltSize)), nil, nil, logger)
	rl := NewRateLimiter(resolver, 10, time.Minute)

	now := time.Unix(fixedNow, 0)
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	now = now.Add(2 * time.Minute)
	rl.Allow("b")
	now = now.Add(2 * time.Minute)

	if remaining := rl.Sweep(); remaining != 1 {
		t.Errorf("Expected 1 limiter to survive, got %d", remaining)
	}
}

func TestRequestIDAndHealth(t *testing.T) {
	ts := setupServer(t, 0)

	w := ts.do(t, http.MethodGet, "/health", nil, map[string]string{"X-Request-ID": "abc-123"})
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("Expected echoed request id, got '%s'", got)
	}
	if body := decode(t, w); body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}

	w = ts.do(t, http.MethodGet, "/system", nil, nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected generated request id")
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 from /system, got %d", w.Code)
	}
}

func TestListSites(t *testing.T) {
	ts := setupServer(t, 0)
	ts.do(t, http.MethodPost, "/track", map[string]string{"site_id": "beta"}, nil)
	ts.do(t, http.MethodPost, "/track", map[string]string{"site_id": "alpha"}, nil)

	body := decode(t, ts.do(t, http.MethodGet, "/sites", nil, nil))
	sites, _ := body["sites"].([]any)
	if len(sites) != 2 || sites[0] != "alpha" || sites[1] != "beta" {
		t.Errorf("Expected [alpha beta], got %v", body["sites"])
	}
}
