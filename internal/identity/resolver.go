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
package identity

import (
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/enrichment"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/parser/referrer"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/parser/useragent"

	"github.com/pterm/pterm"
)

// GeoLookup resolves addresses to countries.
type GeoLookup interface {
	Lookup(address string) enrichment.GeoResult
}

// Request is the subset of an inbound request needed to build an identity.
type Request struct {
	ForwardedFor  string
	SocketAddress string
	UserAgent     string
	Referer       string
}

// Identity is a fully resolved visitor for one request. The raw address is
// not retained.
type Identity struct {
	Hash     string
	Country  string
	Geo      enrichment.GeoResult
	Agent    useragent.Classification
	Referrer referrer.Category
}

// Resolver turns raw request data into an Identity.
type Resolver struct {
	salt     Salt
	geo      GeoLookup
	referrer *referrer.Classifier
	logger   *pterm.Logger
}

// NewResolver wires the salt and classifiers. geo may be nil, in which case
// every country resolves to Unknown.
func NewResolver(salt Salt, geo GeoLookup, classifier *referrer.Classifier, logger *pterm.Logger) *Resolver {
	if classifier == nil {
		classifier = referrer.NewClassifier(referrer.DefaultRules())
	}
	return &Resolver{
		salt:     salt,
		geo:      geo,
		referrer: classifier,
		logger:   logger,
	}
}

// Resolve never fails; lookup problems end up as sentinel values.
func (r *Resolver) Resolve(req Request) Identity {
	address := ResolveAddress(req.ForwardedFor, req.SocketAddress)

	geo := enrichment.GeoResult{Status: enrichment.LookupUnavailable}
	if r.geo != nil {
		geo = r.geo.Lookup(address)
	}

	id := Identity{
		Hash:     HashIdentity(address, r.salt),
		Geo:      geo,
		Country:  geo.CountryOrUnknown(),
		Agent:    useragent.Parse(req.UserAgent),
		Referrer: r.referrer.Classify(req.Referer),
	}

	if geo.Status != enrichment.LookupFound {
		r.logger.Trace("Country unresolved", r.logger.Args("identity", id.Hash, "status", geo.Status.String()))
	}
	return id
}

// Hash returns the identity hash for a request without classification.
func (r *Resolver) Hash(forwarded, socket string) string {
	return HashIdentity(ResolveAddress(forwarded, socket), r.salt)
}
