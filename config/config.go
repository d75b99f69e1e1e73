// Package config holds enricher configuration.
package config

import (
	"fmt"
	"time"

	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
)

// Source selection values for OnlySource.
const (
	SourceEbay    = "ebay"
	SourceCatalog = "rgp"
	SourceBoth    = "both"
)

// Config holds all knobs for a batch enrichment run.
type Config struct {
	// Input/output
	InputFile   string
	OutputFile  string
	CSVLanguage string // auto, en, or fr
	Limit       int    // 0 = no limit

	// Source selection and combination weights
	OnlySource    string
	WeightEbay    float64
	WeightCatalog float64

	// Auction source
	EbayAppID       string
	StrictRegion    bool
	AllowLots       bool
	AllowBoxOnly    bool
	IncludeShipping bool
	MaxResults      int

	// Language preference
	PreferredLanguage models.Language
	StrictLanguage    bool

	// Politeness
	EbayDelay    time.Duration
	CatalogDelay time.Duration

	// Network
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgent       string

	// Processing
	IncludeNonGame bool

	// Infrastructure
	CachePath   string
	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults. The catalog delay is
// deliberately long: the scraped site rate limits aggressively.
func DefaultConfig() *Config {
	return &Config{
		CSVLanguage:       "auto",
		OnlySource:        SourceBoth,
		WeightEbay:        0.7,
		WeightCatalog:     0.3,
		StrictRegion:      true,
		MaxResults:        5,
		PreferredLanguage: models.LangAny,
		EbayDelay:         1500 * time.Millisecond,
		CatalogDelay:      12 * time.Second,
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RetryBackoff:      2 * time.Second,
		RetryBackoffMax:   10 * time.Second,
		UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		CachePath:         "cache.sqlite",
	}
}

// Validate ensures the configuration is coherent and normalizes the
// source weights to sum to 1.0. Run once at startup, never per item.
func (c *Config) Validate() error {
	switch c.OnlySource {
	case SourceEbay, SourceCatalog, SourceBoth:
	default:
		return fmt.Errorf("source must be %s, %s, or %s", SourceEbay, SourceCatalog, SourceBoth)
	}

	switch c.CSVLanguage {
	case "auto", "en", "fr":
	default:
		return fmt.Errorf("csv language must be auto, en, or fr")
	}

	if c.WeightEbay < 0 || c.WeightCatalog < 0 {
		return fmt.Errorf("source weights cannot be negative")
	}
	total := c.WeightEbay + c.WeightCatalog
	if total <= 0 {
		return fmt.Errorf("source weights cannot both be zero")
	}
	if total != 1.0 {
		c.WeightEbay /= total
		c.WeightCatalog /= total
	}

	if c.UsesEbay() && c.EbayAppID == "" {
		return fmt.Errorf("ebay app id required when the ebay source is enabled")
	}

	if c.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive")
	}
	if c.EbayDelay < 0 || c.CatalogDelay < 0 {
		return fmt.Errorf("request delays cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.CachePath == "" {
		return fmt.Errorf("cache path cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// UsesEbay reports whether the auction source is enabled.
func (c *Config) UsesEbay() bool {
	return c.OnlySource == SourceEbay || c.OnlySource == SourceBoth
}

// UsesCatalog reports whether the catalog source is enabled.
func (c *Config) UsesCatalog() bool {
	return c.OnlySource == SourceCatalog || c.OnlySource == SourceBoth
}
