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

// Package auth implements the per-tenant signature gate for read endpoints.
//
// A tenant is open until a public key is registered and gated afterwards.
// Gated requests carry X-Timestamp (unix seconds) and X-Signature, the hex
// Ed25519 signature of "{site_id}:{timestamp}". Signatures are not tracked,
// so a captured signature can be replayed until its timestamp leaves the
// skew window.
package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/apperr"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database/repositories"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// DefaultMaxSkew is how far a timestamp may be from the server clock.
const DefaultMaxSkew = 300 * time.Second

// State is the authorization state of a tenant.
type State string

const (
	StateOpen  State = "open"
	StateGated State = "gated"
)

// Credentials are the raw values of the auth headers and the declared site.
type Credentials struct {
	Timestamp string
	Signature string
	// SiteID is the tenant id exactly as sent by the client; it is what the
	// client signed.
	SiteID string
}

// Gate verifies signed requests against each tenant's registered key.
type Gate struct {
	registry *database.Registry
	logger   *pterm.Logger
	maxSkew  time.Duration
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// WithMaxSkew overrides DefaultMaxSkew.
func WithMaxSkew(skew time.Duration) Option {
	return func(g *Gate) {
		if skew > 0 {
			g.maxSkew = skew
		}
	}
}

func NewGate(registry *database.Registry, logger *pterm.Logger, opts ...Option) *Gate {
	g := &Gate{
		registry: registry,
		logger:   logger,
		maxSkew:  DefaultMaxSkew,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ParsePublicKey decodes a hex Ed25519 public key.
func ParsePublicKey(keyHex string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Message is the exact byte string a client signs. The timestamp is in
// canonical decimal form.
func Message(siteID string, timestamp int64) []byte {
	return []byte(siteID + ":" + strconv.FormatInt(timestamp, 10))
}

// RegisterKey moves a tenant from open to gated. It fails with a conflict
// when a key is already registered and leaves the stored key untouched.
func (g *Gate) RegisterKey(tenant, keyHex string) error {
	keyHex = strings.ToLower(strings.TrimSpace(keyHex))
	if keyHex == "" {
		return apperr.New(apperr.KindValidation, apperr.CodeMissingField, "public_key_hex is required")
	}
	if _, err := ParsePublicKey(keyHex); err != nil {
		return apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidPublicKey, "public_key_hex is not a valid Ed25519 public key", err)
	}

	store, err := g.registry.Open(tenant)
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Update(func(tx *gorm.DB) error {
		stored, err := repositories.NewAuthConfigRepository(tx).SetPublicKeyIfAbsent(keyHex, g.now().UTC())
		if err != nil {
			return err
		}
		if !stored {
			return apperr.New(apperr.KindConflict, apperr.CodeKeyAlreadySet, "Public key already registered for this site")
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.logger.Info("Public key registered", g.logger.Args("tenant", store.Tenant))
	return nil
}

// State reports whether the tenant has a registered key.
func (g *Gate) State(tenant string) (State, error) {
	_, ok, err := g.storedKey(tenant)
	if err != nil {
		return "", err
	}
	if ok {
		return StateGated, nil
	}
	return StateOpen, nil
}

// Authorize returns nil to allow the request or an auth error carrying the
// denial reason code.
func (g *Gate) Authorize(tenant string, creds Credentials) error {
	keyHex, gated, err := g.storedKey(tenant)
	if err != nil {
		return err
	}
	if !gated {
		return nil
	}

	tsRaw := strings.TrimSpace(creds.Timestamp)
	sigRaw := strings.TrimSpace(creds.Signature)
	if tsRaw == "" || sigRaw == "" {
		return deny(apperr.CodeMissingCredentials, "Missing authentication headers")
	}

	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return deny(apperr.CodeMissingCredentials, "X-Timestamp must be an integer")
	}

	// Compared in whole seconds; durations overflow for extreme timestamps.
	now := g.now().Unix()
	limit := int64(g.maxSkew / time.Second)
	if ts < now-limit || ts > now+limit {
		return deny(apperr.CodeTimestampExpired, "Request timestamp expired")
	}

	signature, err := hex.DecodeString(sigRaw)
	if err != nil {
		return deny(apperr.CodeMalformedSignature, "Signature is not valid hex")
	}

	publicKey, err := ParsePublicKey(keyHex)
	if err != nil {
		g.logger.WithCaller().Error("Stored public key is corrupt", g.logger.Args("tenant", database.Sanitize(tenant), "error", err))
		return apperr.Wrap(apperr.KindAuth, apperr.CodeCorruptStoredKey, "Stored public key cannot be parsed", err)
	}

	if !ed25519.Verify(publicKey, Message(creds.SiteID, ts), signature) {
		return deny(apperr.CodeInvalidSignature, "Invalid signature")
	}
	return nil
}

func (g *Gate) storedKey(tenant string) (string, bool, error) {
	store, err := g.registry.Open(tenant)
	if err != nil {
		return "", false, err
	}
	defer store.Close()

	var keyHex string
	var ok bool
	err = store.View(func(db *gorm.DB) error {
		var err error
		keyHex, ok, err = repositories.NewAuthConfigRepository(db).PublicKey()
		return err
	})
	return keyHex, ok, err
}

func deny(code, message string) error {
	return apperr.New(apperr.KindAuth, code, message)
}
