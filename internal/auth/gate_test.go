package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/apperr"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/repositories"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

const fixedNow = 1700000000

func setupGate(t *testing.T) (*Gate, *database.Registry) {
	t.Helper()
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
	registry, err := database.NewRegistry(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	gate := NewGate(registry, logger, WithClock(func() time.Time { return time.Unix(fixedNow, 0) }))
	return gate, registry
}

func newKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return pub, priv
}

func sign(priv ed25519.PrivateKey, site string, ts int64) Credentials {
	sig := ed25519.Sign(priv, Message(site, ts))
	return Credentials{
		Timestamp: strconv.FormatInt(ts, 10),
		Signature: hex.EncodeToString(sig),
		SiteID:    site,
	}
}

func TestOpenTenantAllowsEverything(t *testing.T) {
	gate, _ := setupGate(t)

	if state, _ := gate.State("default"); state != StateOpen {
		t.Errorf("Expected open state, got '%s'", state)
	}
	for _, creds := range []Credentials{{}, {Timestamp: "junk", Signature: "zz"}, {Timestamp: "1"}} {
		if err := gate.Authorize("default", creds); err != nil {
			t.Errorf("Expected open tenant to allow %+v, got %v", creds, err)
		}
	}
}

func TestRegisterKeyOnlyOnce(t *testing.T) {
	gate, _ := setupGate(t)
	pub, _ := newKeyPair(t)
	other, _ := newKeyPair(t)

	if err := gate.RegisterKey("site1", hex.EncodeToString(pub)); err != nil {
		t.Fatalf("RegisterKey failed: %v", err)
	}
	if state, _ := gate.State("site1"); state != StateGated {
		t.Errorf("Expected gated state, got '%s'", state)
	}

	err := gate.RegisterKey("site1", hex.EncodeToString(other))
	if apperr.CodeOf(err) != apperr.CodeKeyAlreadySet {
		t.Fatalf("Expected key-already-registered, got %v", err)
	}
	if apperr.Status(err) != 400 {
		t.Errorf("Expected status 400, got %d", apperr.Status(err))
	}
}

func TestRegisterKeyValidation(t *testing.T) {
	gate, _ := setupGate(t)

	cases := map[string]string{
		"":        apperr.CodeMissingField,
		"not-hex": apperr.CodeInvalidPublicKey,
		"abcd":    apperr.CodeInvalidPublicKey,
	}
	for input, code := range cases {
		if err := gate.RegisterKey("site1", input); apperr.CodeOf(err) != code {
			t.Errorf("RegisterKey(%q): expected '%s', got %v", input, code, err)
		}
	}
	if state, _ := gate.State("site1"); state != StateOpen {
		t.Error("Expected rejected keys to leave the tenant open")
	}
}

func TestAuthorizeGatedTenant(t *testing.T) {
	gate, _ := setupGate(t)
	pub, priv := newKeyPair(t)
	if err := gate.RegisterKey("default", hex.EncodeToString(pub)); err != nil {
		t.Fatalf("RegisterKey failed: %v", err)
	}

	valid := sign(priv, "default", fixedNow)
	if err := gate.Authorize("default", valid); err != nil {
		t.Errorf("Expected valid signature to be accepted, got %v", err)
	}
	// replay inside the window is accepted
	if err := gate.Authorize("default", valid); err != nil {
		t.Errorf("Expected replay within window to be accepted, got %v", err)
	}

	cases := []struct {
		name  string
		creds Credentials
		code  string
	}{
		{"no headers", Credentials{SiteID: "default"}, apperr.CodeMissingCredentials},
		{"no signature", Credentials{Timestamp: "1700000000", SiteID: "default"}, apperr.CodeMissingCredentials},
		{"non-integer timestamp", Credentials{Timestamp: "soon", Signature: valid.Signature, SiteID: "default"}, apperr.CodeMissingCredentials},
		{"expired", sign(priv, "default", fixedNow-301), apperr.CodeTimestampExpired},
		{"future", sign(priv, "default", fixedNow+301), apperr.CodeTimestampExpired},
		{"far future", sign(priv, "default", 9000000000000000000), apperr.CodeTimestampExpired},
		{"max int64", sign(priv, "default", math.MaxInt64), apperr.CodeTimestampExpired},
		{"min int64", sign(priv, "default", math.MinInt64), apperr.CodeTimestampExpired},
		{"far future unsigned", Credentials{Timestamp: "9000000000000000000", Signature: strings.Repeat("00", 64), SiteID: "default"}, apperr.CodeTimestampExpired},
		{"bad hex", Credentials{Timestamp: valid.Timestamp, Signature: "xyz", SiteID: "default"}, apperr.CodeMalformedSignature},
		{"signed for another site", Credentials{Timestamp: valid.Timestamp, Signature: sign(priv, "site2", fixedNow).Signature, SiteID: "default"}, apperr.CodeInvalidSignature},
		{"other timestamp", Credentials{Timestamp: "1700000001", Signature: valid.Signature, SiteID: "default"}, apperr.CodeInvalidSignature},
	}

	for _, tc := range cases {
		err := gate.Authorize("default", tc.creds)
		if apperr.CodeOf(err) != tc.code {
			t.Errorf("%s: expected '%s', got %v", tc.name, tc.code, err)
		}
		if apperr.Status(err) != 401 {
			t.Errorf("%s: expected status 401, got %d", tc.name, apperr.Status(err))
		}
	}

	edge := sign(priv, "default", fixedNow-300)
	if err := gate.Authorize("default", edge); err != nil {
		t.Errorf("Expected timestamp exactly 300s old to be accepted, got %v", err)
	}
}

func TestAuthorizeCorruptStoredKey(t *testing.T) {
	gate, registry := setupGate(t)

	store, err := registry.Open("broken")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store.Update(func(tx *gorm.DB) error {
		_, err := repositories.NewAuthConfigRepository(tx).SetPublicKeyIfAbsent("this-is-not-a-key", time.Now())
		return err
	})
	store.Close()

	_, priv := newKeyPair(t)
	err = gate.Authorize("broken", sign(priv, "broken", fixedNow))
	if apperr.CodeOf(err) != apperr.CodeCorruptStoredKey {
		t.Fatalf("Expected corrupt-stored-key, got %v", err)
	}
	if apperr.Status(err) != 500 {
		t.Errorf("Expected status 500, got %d", apperr.Status(err))
	}
}

func TestSkewWindowProperty(t *testing.T) {
	gate, _ := setupGate(t)
	pub, priv := newKeyPair(t)
	if err := gate.RegisterKey("prop", hex.EncodeToString(pub)); err != nil {
		t.Fatalf("RegisterKey failed: %v", err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("signed requests pass iff within 300s", prop.ForAll(
		func(offset int64) bool {
			err := gate.Authorize("prop", sign(priv, "prop", fixedNow+offset))
			if offset >= -300 && offset <= 300 {
				return err == nil
			}
			return apperr.CodeOf(err) == apperr.CodeTimestampExpired
		},
		gen.Int64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}
