package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds scraper and storage configuration.
type Config struct {
	SearchURL    string
	ProxyListURL string
	// ProxyAddrs optionally pre-seeds the proxy pool; when set, the
	// proxy-list service is only contacted once the seed is exhausted.
	ProxyAddrs []string

	MaxPages     int
	FetchRetries int
	PageTimeout  time.Duration
	UserAgent    string

	MongoURI          string
	MongoDatabase     string
	MongoCollection   string
	ExpiredCollection string

	Workers          int
	WriteRetryBudget int

	ExportFile  string
	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns the deployment defaults for the vendor catalog.
func DefaultConfig() *Config {
	return &Config{
		SearchURL: "https://www.vinmonopolet.no/vmpws/v2/vmp/search",
		ProxyListURL: "https://api.proxyscrape.com/v3/free-proxy-list/get?request=displayproxies" +
			"&proxy_format=protocolipport&format=text&anonymity=Elite,Anonymous&timeout=20000",
		MaxPages:          1000,
		FetchRetries:      10,
		PageTimeout:       3 * time.Second,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MongoURI:          "mongodb://localhost:27017",
		MongoDatabase:     "vinskraper",
		MongoCollection:   "varer",
		ExpiredCollection: "utgått",
		Workers:           8,
		WriteRetryBudget:  10,
		ExportFile:        "backup/varer.jsonl",
		MetricsAddr:       "",
		Verbose:           false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SearchURL == "" {
		return fmt.Errorf("search URL cannot be empty")
	}
	parsed, err := url.Parse(c.SearchURL)
	if err != nil {
		return fmt.Errorf("invalid search URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("search URL must include a host")
	}

	if c.ProxyListURL == "" && len(c.ProxyAddrs) == 0 {
		return fmt.Errorf("proxy list URL cannot be empty without seeded proxies")
	}
	for _, addr := range c.ProxyAddrs {
		if !strings.HasPrefix(addr, "http") {
			return fmt.Errorf("seeded proxy %q must be a http(s) URL", addr)
		}
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.FetchRetries <= 0 {
		return fmt.Errorf("fetch retries must be positive")
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.MongoURI == "" {
		return fmt.Errorf("mongo URI cannot be empty")
	}
	if c.MongoDatabase == "" || c.MongoCollection == "" {
		return fmt.Errorf("mongo database and collection cannot be empty")
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.WriteRetryBudget < 0 {
		return fmt.Errorf("write retry budget cannot be negative")
	}

	return nil
}
