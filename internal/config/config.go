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
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
)

// Config collects everything the server needs at startup.
type Config struct {
	ListenAddr string
	Port       string
	GinMode    string

	DataDir  string
	SaltPath string

	GeoIPCityPath    string
	GeoIPCountryPath string
	GeoIPWatch       bool

	ReferrerRulesPath string

	LogLevel  string
	LogFormat string

	RateLimit       int
	RateLimitWindow time.Duration

	AnalyticsWorkers int
	AuthMaxSkew      time.Duration

	BotScoreThreshold float64
	BotRateThreshold  float64
	BotMinRequests    int64

	// BotLogRetentionDays of 0 keeps bot logs forever.
	BotLogRetentionDays int
	CleanupTime         string

	BackupBucket   string
	BackupRegion   string
	BackupEndpoint string
	BackupPrefix   string
	BackupInterval time.Duration
}

// Load reads an optional .env file and then the process environment.
// Missing values fall back to defaults suitable for a single-host deployment.
func Load() *Config {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	port := getEnv("PORT", "8000")
	listenAddr := getEnv("LISTEN_ADDR", "")
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return &Config{
		ListenAddr: listenAddr,
		Port:       port,
		GinMode:    getEnv("GIN_MODE", "release"),

		DataDir:  getEnv("DATA_DIR", "data"),
		SaltPath: getEnv("SALT_PATH", ".salt"),

		GeoIPCityPath:    getEnv("GEOIP_CITY_PATH", "GeoLite2-City.mmdb"),
		GeoIPCountryPath: getEnv("GEOIP_COUNTRY_PATH", ""),
		GeoIPWatch:       getEnvBool("GEOIP_WATCH", true),

		ReferrerRulesPath: getEnv("REFERRER_RULES_PATH", ""),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "colorful")),

		RateLimit:       getEnvInt("RATE_LIMIT", 120),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		AnalyticsWorkers: getEnvInt("ANALYTICS_WORKERS", runtime.NumCPU()),
		AuthMaxSkew:      getEnvDuration("AUTH_MAX_SKEW", 300*time.Second),

		BotScoreThreshold: getEnvFloat("BOT_SCORE_THRESHOLD", 0.5),
		BotRateThreshold:  getEnvFloat("BOT_RATE_THRESHOLD", 30),
		BotMinRequests:    int64(getEnvInt("BOT_MIN_REQUESTS", 20)),

		BotLogRetentionDays: getEnvInt("BOT_LOG_RETENTION_DAYS", 0),
		CleanupTime:         getEnv("CLEANUP_TIME", "02:00"),

		BackupBucket:   getEnv("BACKUP_S3_BUCKET", ""),
		BackupRegion:   getEnv("BACKUP_S3_REGION", "us-east-1"),
		BackupEndpoint: getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupPrefix:   getEnv("BACKUP_S3_PREFIX", "visitor-tracker"),
		BackupInterval: getEnvDuration("BACKUP_INTERVAL", 24*time.Hour),
	}
}

// BackupEnabled reports whether tenant snapshots should be shipped to S3.
func (c *Config) BackupEnabled() bool {
	return c.BackupBucket != ""
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *pterm.Logger {
	logger := pterm.DefaultLogger.WithLevel(parseLogLevel(c.LogLevel))
	if c.LogFormat == "json" {
		logger = logger.WithFormatter(pterm.LogFormatterJSON)
	}
	return logger
}

func parseLogLevel(level string) pterm.LogLevel {
	switch level {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
