// Package fx converts prices between currencies. Rates are resolved from
// the cache, then from a ranked list of free rate endpoints, then from a
// hardcoded fallback table. EUR is the reference currency: every stored
// rate means "EUR per one unit of that currency".
package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Matt-Retrogamer/retro-princing-scraper/cache"
)

// ReferenceCurrency is the currency all source prices normalize into.
const ReferenceCurrency = "EUR"

// ErrUnknownCurrency is returned when a currency has no resolved or
// fallback rate. Callers surface it as that source's failure only.
var ErrUnknownCurrency = errors.New("unknown currency")

var defaultEndpoints = []string{
	"https://api.exchangerate.host/latest?base=EUR",
	"https://open.er-api.com/v6/latest/EUR",
}

// Fallback rates, EUR per unit. Refreshed by hand now and then.
var fallbackRates = map[string]string{
	"EUR": "1.0",
	"USD": "0.92",
	"GBP": "1.17",
	"JPY": "0.0061",
	"CHF": "1.05",
	"CAD": "0.68",
	"AUD": "0.60",
	"SEK": "0.087",
	"NOK": "0.084",
	"DKK": "0.13",
	"PLN": "0.23",
	"CZK": "0.040",
}

const fxCacheKey = "base=EUR|type=fx_rates"

// Converter resolves a rate table once and converts amounts with fixed
// 2-decimal round-half-up output. Safe for concurrent use.
type Converter struct {
	cache     *cache.Cache
	client    *http.Client
	endpoints []string

	mu     sync.Mutex
	rates  map[string]decimal.Decimal
	loaded bool
}

// NewConverter builds a converter backed by the given cache (nil is
// allowed: rates are then fetched or fall back per call chain).
func NewConverter(c *cache.Cache) *Converter {
	return newConverter(c, &http.Client{Timeout: 10 * time.Second}, defaultEndpoints)
}

func newConverter(c *cache.Cache, client *http.Client, endpoints []string) *Converter {
	return &Converter{cache: c, client: client, endpoints: endpoints}
}

// LoadRates preloads the rate table (EUR per unit), bypassing cache and
// network resolution. Used when the caller already holds rates.
func (c *Converter) LoadRates(rates map[string]decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates = make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		c.rates[strings.ToUpper(code)] = rate
	}
	c.rates[ReferenceCurrency] = decimal.NewFromInt(1)
	c.loaded = true
}

func (c *Converter) ensureRates(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}

	if c.cache != nil {
		if raw, ok, err := c.cache.Get(cache.NamespaceFX, fxCacheKey); err != nil {
			slog.Warn("fx cache read failed", slog.Any("error", err))
		} else if ok {
			var cached map[string]float64
			if err := json.Unmarshal(raw, &cached); err == nil && len(cached) > 0 {
				c.rates = make(map[string]decimal.Decimal, len(cached))
				for code, rate := range cached {
					c.rates[code] = decimal.NewFromFloat(rate)
				}
				c.loaded = true
				return
			}
		}
	}

	if rates := c.fetchRates(ctx); rates != nil {
		c.rates = rates
		c.loaded = true
		if c.cache != nil {
			cacheable := make(map[string]float64, len(rates))
			for code, rate := range rates {
				cacheable[code] = rate.InexactFloat64()
			}
			if err := c.cache.Set(cache.NamespaceFX, fxCacheKey, cacheable, cache.TTLFX); err != nil {
				slog.Warn("fx cache write failed", slog.Any("error", err))
			}
		}
		return
	}

	slog.Warn("fx rate fetch failed, using fallback table")
	c.rates = make(map[string]decimal.Decimal, len(fallbackRates))
	for code, rate := range fallbackRates {
		c.rates[code] = decimal.RequireFromString(rate)
	}
	c.loaded = true
}

// fetchRates tries each endpoint in order until one yields a parseable
// non-empty table. Returns nil when all fail.
func (c *Converter) fetchRates(ctx context.Context) map[string]decimal.Decimal {
	for _, endpoint := range c.endpoints {
		rates, err := c.fetchEndpoint(ctx, endpoint)
		if err != nil {
			slog.Debug("fx endpoint failed", slog.String("endpoint", endpoint), slog.Any("error", err))
			continue
		}
		if len(rates) > 1 {
			return rates
		}
	}
	return nil
}

func (c *Converter) fetchEndpoint(ctx context.Context, endpoint string) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build fx request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch fx rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fx endpoint status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read fx response: %w", err)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
		Data  map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode fx response: %w", err)
	}

	source := payload.Rates
	if len(source) == 0 {
		source = payload.Data
	}
	if len(source) == 0 {
		return nil, fmt.Errorf("fx response has no rates")
	}

	// Endpoints quote EUR→X; invert into X→EUR.
	rates := map[string]decimal.Decimal{ReferenceCurrency: decimal.NewFromInt(1)}
	for code, rate := range source {
		if rate <= 0 {
			continue
		}
		rates[strings.ToUpper(code)] = decimal.NewFromInt(1).Div(decimal.NewFromFloat(rate))
	}
	return rates, nil
}

func (c *Converter) rateToEUR(code string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate, ok := c.rates[code]; ok {
		return rate, true
	}
	if rate, ok := fallbackRates[code]; ok {
		return decimal.RequireFromString(rate), true
	}
	return decimal.Decimal{}, false
}

// Convert converts amount between currencies, quantized to 2 decimal
// places with round-half-up. Identity conversions are quantized too.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return amount.Round(2), nil
	}

	c.ensureRates(ctx)

	fromRate, ok := c.rateToEUR(from)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	eurAmount := amount.Mul(fromRate)

	if to == ReferenceCurrency {
		return eurAmount.Round(2), nil
	}

	toRate, ok := c.rateToEUR(to)
	if !ok || toRate.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return eurAmount.Div(toRate).Round(2), nil
}

// ToEUR converts an amount into the reference currency.
func (c *Converter) ToEUR(ctx context.Context, amount decimal.Decimal, from string) (decimal.Decimal, error) {
	return c.Convert(ctx, amount, from, ReferenceCurrency)
}

var currencyAliases = map[string]string{
	"$":         "USD",
	"£":         "GBP",
	"€":         "EUR",
	"¥":         "JPY",
	"US$":       "USD",
	"US DOLLAR": "USD",
	"DOLLAR":    "USD",
	"EURO":      "EUR",
	"POUND":     "GBP",
	"YEN":       "JPY",
}

// NormalizeCurrency maps symbols and aliases to ISO currency codes.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if normalized, ok := currencyAliases[code]; ok {
		return normalized
	}
	return code
}
