package referrer

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is the closed set of referrer categories.
type Category string

const (
	CategoryDirect Category = "direct"
	CategorySearch Category = "search"
	CategorySocial Category = "social"
	CategoryOther  Category = "other"
)

// Rules lists host patterns per category. A pattern either matches a domain
// and its subdomains ("bing.com") or any TLD of a brand ("google.*").
type Rules struct {
	Search []string `yaml:"search"`
	Social []string `yaml:"social"`
}

// DefaultRules covers the engines and networks that dominate referral traffic.
func DefaultRules() Rules {
	return Rules{
		Search: []string{
			"google.*", "bing.com", "duckduckgo.com", "search.yahoo.com", "yahoo.*",
			"baidu.com", "yandex.*", "ecosia.org", "search.brave.com", "startpage.com",
			"qwant.com", "ask.com", "naver.com",
		},
		Social: []string{
			"facebook.com", "fb.com", "m.facebook.com", "l.facebook.com", "instagram.com",
			"twitter.com", "t.co", "x.com", "linkedin.com", "lnkd.in", "reddit.com",
			"pinterest.*", "tiktok.com", "youtube.com", "youtu.be", "mastodon.social",
			"bsky.app", "threads.net", "news.ycombinator.com", "vk.com", "telegram.org",
			"t.me", "whatsapp.com", "discord.com",
		},
	}
}

// LoadRules reads a YAML rules file. Categories missing from the file keep
// their default patterns.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read referrer rules: %w", err)
	}

	var fileRules Rules
	if err := yaml.Unmarshal(data, &fileRules); err != nil {
		return rules, fmt.Errorf("parse referrer rules: %w", err)
	}

	if len(fileRules.Search) > 0 {
		rules.Search = fileRules.Search
	}
	if len(fileRules.Social) > 0 {
		rules.Social = fileRules.Social
	}
	return rules, nil
}

// Classifier maps referrer URLs to categories.
type Classifier struct {
	search []string
	social []string
}

// NewClassifier normalises the rule patterns once.
func NewClassifier(rules Rules) *Classifier {
	return &Classifier{
		search: normalizePatterns(rules.Search),
		social: normalizePatterns(rules.Social),
	}
}

// Classify returns the category for a Referer header value. An absent or
// empty header is direct traffic; a header without a usable host is other.
func (c *Classifier) Classify(raw string) Category {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CategoryDirect
	}

	host := ExtractHost(raw)
	if host == "" {
		return CategoryOther
	}

	if matchAny(host, c.search) {
		return CategorySearch
	}
	if matchAny(host, c.social) {
		return CategorySocial
	}
	return CategoryOther
}

// ExtractHost returns the lower-cased host of a referrer URL without port
// and without a leading "www.".
func ExtractHost(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}

	if !strings.Contains(cleaned, "://") && !strings.HasPrefix(cleaned, "//") {
		cleaned = "//" + cleaned
	}

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	return strings.TrimSuffix(host, ".")
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(p)), "www.")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchAny(host string, patterns []string) bool {
	for _, p := range patterns {
		if matchHost(host, p) {
			return true
		}
	}
	return false
}

func matchHost(host, pattern string) bool {
	if brand, ok := strings.CutSuffix(pattern, ".*"); ok {
		// "google.*" matches google.com, google.co.uk and news.google.de
		return strings.HasPrefix(host, brand+".") || strings.Contains(host, "."+brand+".")
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
