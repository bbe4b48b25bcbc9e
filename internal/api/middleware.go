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
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/api/handlers"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/apperr"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/auth"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/identity"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"golang.org/x/time/rate"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	limiterIdleTTL    = 3 * time.Minute
	limiterSweepEvery = time.Minute
)

// RequestID echoes an inbound X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)
		c.Set(requestIDKey, requestID)
		c.Next()
	}
}

// AccessLog writes one line per request. Client addresses are not logged.
func AccessLog(logger *pterm.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := logger.Args(
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"bytes", c.Writer.Size(),
			"request_id", c.GetString(requestIDKey),
		)
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Warn("Request failed", args)
		default:
			logger.Debug("Request processed", args)
		}
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out a token bucket per client identity hash.
type RateLimiter struct {
	resolver *identity.Resolver
	limit    rate.Limit
	burst    int

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

// NewRateLimiter allows requests per window for each client. A non-positive
// requests value disables limiting.
func NewRateLimiter(resolver *identity.Resolver, requests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		resolver: resolver,
		burst:    requests,
		clients:  make(map[string]*clientLimiter),
		now:      time.Now,
	}
	if requests > 0 && window > 0 {
		rl.limit = rate.Limit(float64(requests) / window.Seconds())
	} else {
		rl.limit = rate.Inf
	}
	return rl
}

// Allow consumes one token for the client.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	client, exists := rl.clients[key]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = rl.now()
	rl.mu.Unlock()

	return client.limiter.Allow()
}

// Sweep drops limiters idle for longer than the TTL and returns how many
// remain.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, client := range rl.clients {
		if now.Sub(client.lastSeen) > limiterIdleTTL {
			delete(rl.clients, key)
		}
	}
	return len(rl.clients)
}

// Run sweeps idle limiters until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// Middleware answers 429 once a client has spent its budget.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Keyed on the socket peer only; X-Forwarded-For is client controlled.
		key := rl.resolver.Hash("", c.RemoteIP())
		if !rl.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate-limited",
				"message": "Too many requests",
			})
			return
		}
		c.Next()
	}
}

// RequireSignature rejects requests to gated tenants that do not carry a
// valid signature for the site_id query parameter.
func RequireSignature(gate *auth.Gate, logger *pterm.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		siteID := c.DefaultQuery("site_id", database.DefaultTenant)

		err := gate.Authorize(siteID, auth.Credentials{
			Timestamp: c.GetHeader("X-Timestamp"),
			Signature: c.GetHeader("X-Signature"),
			SiteID:    siteID,
		})
		if err != nil {
			logger.Debug("Request denied", logger.Args("tenant", database.Sanitize(siteID), "reason", apperr.CodeOf(err)))
			handlers.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
