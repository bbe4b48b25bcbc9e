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
package enrichment

import (
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pterm/pterm"
)

// UnknownCountry is reported to callers whenever no country could be resolved.
const UnknownCountry = "Unknown"

// LookupStatus distinguishes a miss from a missing geo subsystem.
type LookupStatus int

const (
	// LookupFound means a database answered with a country code.
	LookupFound LookupStatus = iota
	// LookupNotFound means a database was consulted but had no answer.
	LookupNotFound
	// LookupUnavailable means no database is loaded.
	LookupUnavailable
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// GeoResult is the internal outcome of a country lookup.
type GeoResult struct {
	Country string
	Status  LookupStatus
}

// CountryOrUnknown collapses the result to the value stored in counters.
func (r GeoResult) CountryOrUnknown() string {
	if r.Status != LookupFound || r.Country == "" {
		return UnknownCountry
	}
	return r.Country
}

// GeoResolver resolves client addresses to ISO country codes.
// City and Country databases work in any combination; City is preferred.
// Readers can be swapped at runtime with Reload.
type GeoResolver struct {
	cityPath    string
	countryPath string
	logger      *pterm.Logger

	mu        sync.RWMutex
	cityDB    *geoip2.Reader
	countryDB *geoip2.Reader
}

// NewGeoResolver opens whichever databases exist. Missing files are not an
// error: the resolver starts unavailable and Reload can enable it later.
func NewGeoResolver(cityPath, countryPath string, logger *pterm.Logger) *GeoResolver {
	g := &GeoResolver{
		cityPath:    cityPath,
		countryPath: countryPath,
		logger:      logger,
	}
	g.Reload()
	if !g.Available() {
		logger.Warn("GeoIP lookups disabled - no databases available, countries will be reported as Unknown")
	}
	return g
}

// Paths returns the configured database paths that are non-empty.
func (g *GeoResolver) Paths() []string {
	paths := make([]string, 0, 2)
	if g.cityPath != "" {
		paths = append(paths, g.cityPath)
	}
	if g.countryPath != "" {
		paths = append(paths, g.countryPath)
	}
	return paths
}

// Reload reopens the configured databases and swaps them in. A database that
// fails to open keeps its previous reader.
func (g *GeoResolver) Reload() {
	city := g.open(g.cityPath, "City")
	country := g.open(g.countryPath, "Country")

	g.mu.Lock()
	var stale []*geoip2.Reader
	if city != nil {
		if g.cityDB != nil {
			stale = append(stale, g.cityDB)
		}
		g.cityDB = city
	}
	if country != nil {
		if g.countryDB != nil {
			stale = append(stale, g.countryDB)
		}
		g.countryDB = country
	}
	// Readers are closed under the write lock so no lookup still holds them.
	for _, r := range stale {
		r.Close()
	}
	g.mu.Unlock()
}

func (g *GeoResolver) open(path, kind string) *geoip2.Reader {
	if path == "" {
		return nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		g.logger.Debug("GeoIP database not available", g.logger.Args("kind", kind, "path", path, "error", err))
		return nil
	}
	g.logger.Info("Loaded GeoIP database", g.logger.Args("kind", kind, "path", path))
	return reader
}

// Available reports whether at least one database is loaded.
func (g *GeoResolver) Available() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cityDB != nil || g.countryDB != nil
}

// Lookup resolves an address without collapsing failures.
func (g *GeoResolver) Lookup(address string) GeoResult {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.cityDB == nil && g.countryDB == nil {
		return GeoResult{Status: LookupUnavailable}
	}

	ip := net.ParseIP(strings.TrimSpace(address))
	if ip == nil {
		g.logger.Trace("Address is not an IP, skipping GeoIP lookup")
		return GeoResult{Status: LookupNotFound}
	}

	if g.cityDB != nil {
		record, err := g.cityDB.City(ip)
		if err == nil && record.Country.IsoCode != "" {
			return GeoResult{Country: record.Country.IsoCode, Status: LookupFound}
		}
		if err != nil {
			g.logger.Debug("GeoIP City lookup failed", g.logger.Args("error", err))
		}
	}

	// Fallback to Country database if City lookup failed or unavailable
	if g.countryDB != nil {
		record, err := g.countryDB.Country(ip)
		if err == nil && record.Country.IsoCode != "" {
			return GeoResult{Country: record.Country.IsoCode, Status: LookupFound}
		}
		if err != nil {
			g.logger.Debug("GeoIP Country lookup failed", g.logger.Args("error", err))
		}
	}

	return GeoResult{Status: LookupNotFound}
}

// Country resolves an address to an ISO code or UnknownCountry. It never fails.
func (g *GeoResolver) Country(address string) string {
	return g.Lookup(address).CountryOrUnknown()
}

// Close closes the GeoIP databases
func (g *GeoResolver) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cityDB != nil {
		g.cityDB.Close()
		g.cityDB = nil
	}
	if g.countryDB != nil {
		g.countryDB.Close()
		g.countryDB = nil
	}
	g.logger.Info("Closed GeoIP databases")
	return nil
}
