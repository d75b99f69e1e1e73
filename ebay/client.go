package ebay

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Matt-Retrogamer/retro-princing-scraper/cache"
	"github.com/Matt-Retrogamer/retro-princing-scraper/fetch"
	"github.com/Matt-Retrogamer/retro-princing-scraper/fx"
	"github.com/Matt-Retrogamer/retro-princing-scraper/metrics"
	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
	"github.com/Matt-Retrogamer/retro-princing-scraper/ratelimit"
)

const (
	findingAPIURL = "https://svcs.ebay.com/services/search/FindingService/v1"
	apiVersion    = "1.13.0"

	// How many raw results to request per strategy before client-side
	// filtering narrows them down.
	entriesPerPage = 50
)

// Options controls a single search call.
type Options struct {
	Language        models.Language
	StrictLanguage  bool
	StrictRegion    bool
	AllowLots       bool
	AllowBoxOnly    bool
	IncludeShipping bool
	MaxResults      int
}

// Client queries the eBay Finding API for completed sold listings.
// The rate limiter is shared between all clients of the same source so
// that one polite clock governs the whole process.
type Client struct {
	appID   string
	cache   *cache.Cache
	fx      *fx.Converter
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	policy  fetch.Policy
	client  *http.Client
	baseURL string
	log     *slog.Logger
}

// NewClient builds a production client talking to the real Finding API.
func NewClient(appID string, store *cache.Cache, conv *fx.Converter, limiter *ratelimit.Limiter, m *metrics.Metrics, timeout time.Duration, policy fetch.Policy) *Client {
	return newClient(appID, store, conv, limiter, m, &http.Client{Timeout: timeout}, findingAPIURL, policy)
}

func newClient(appID string, store *cache.Cache, conv *fx.Converter, limiter *ratelimit.Limiter, m *metrics.Metrics, client *http.Client, baseURL string, policy fetch.Policy) *Client {
	return &Client{
		appID:   appID,
		cache:   store,
		fx:      conv,
		limiter: limiter,
		metrics: m,
		policy:  policy,
		client:  client,
		baseURL: baseURL,
		log:     slog.Default().With("source", "ebay"),
	}
}

// siteForRegion maps an item region to the Finding API marketplace site.
func siteForRegion(region models.Region) string {
	switch region {
	case models.RegionNTSCU:
		return "EBAY-US"
	case models.RegionNTSCJ:
		return "EBAY-JP"
	}
	return "EBAY-GB"
}

type strategy struct {
	name             string
	includePackaging bool
	strictLanguage   bool
}

// cachedResult is the JSON shape stored in the cache. Listings are not
// cached, only the aggregate.
type cachedResult struct {
	PriceEUR     *decimal.Decimal `json:"price_eur"`
	NumResults   int              `json:"num_results"`
	Details      string           `json:"details"`
	StrategyUsed string           `json:"strategy_used"`
}

func (c *Client) cacheKey(item *models.GameItem, language models.Language) string {
	return cache.BuildKey(map[string]string{
		"platform":  item.Platform,
		"title":     item.Title,
		"region":    string(item.Region),
		"packaging": string(item.PackagingState()),
		"language":  string(language),
	})
}

// Search looks up sold listings for the item, walking three fallback
// strategies of decreasing strictness until enough filtered listings
// are accumulated, and averages their EUR prices.
func (c *Client) Search(ctx context.Context, item *models.GameItem, opts Options) *models.PriceResult {
	result := &models.PriceResult{Source: models.SourceEbay}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}

	key := c.cacheKey(item, opts.Language)
	if c.cache != nil {
		raw, ok, err := c.cache.Get(cache.NamespaceEbay, key)
		if err != nil {
			c.log.Warn("cache read failed", "error", err)
		}
		c.metrics.IncCacheLookup(cache.NamespaceEbay, ok)
		if ok {
			var cached cachedResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				result.Success = true
				result.PriceEUR = cached.PriceEUR
				result.NumResults = cached.NumResults
				result.Details = cached.Details
				result.StrategyUsed = cached.StrategyUsed
				if result.StrategyUsed == "" {
					result.StrategyUsed = "cached"
				}
				return result
			}
			c.log.Warn("discarding malformed cache entry", "key", key)
		}
	}

	strategies := []strategy{
		{name: "strict", includePackaging: true, strictLanguage: opts.StrictLanguage},
		{name: "relaxed_language", includePackaging: true, strictLanguage: false},
		{name: "relaxed_packaging", includePackaging: false, strictLanguage: false},
	}

	site := siteForRegion(item.Region)
	var filtered []*models.SoldListing
	strategyUsed := "none"

	for _, strat := range strategies {
		query := BuildQuery(item, opts.Language, strat.includePackaging)
		negatives := NegativeKeywords(item, opts.Language, strat.strictLanguage, opts.AllowLots, opts.AllowBoxOnly)

		rawItems, err := c.fetchListings(ctx, query, negatives, site)
		if err != nil {
			c.log.Debug("strategy failed", "strategy", strat.name, "error", err)
			c.metrics.IncError("ebay", fetch.Label(err))
			result.Error = err.Error()
			continue
		}

		for _, raw := range rawItems {
			ok, reason := FilterListing(raw.Title, item, opts.StrictRegion, opts.AllowLots, opts.AllowBoxOnly)
			if !ok {
				c.log.Debug("listing rejected", "title", raw.Title, "reason", reason)
				continue
			}
			listing := c.convertListing(ctx, raw, opts.IncludeShipping)
			filtered = append(filtered, listing)
			if len(filtered) >= opts.MaxResults {
				break
			}
		}

		if len(filtered) > 0 {
			strategyUsed = strat.name
		}
		if len(filtered) >= opts.MaxResults {
			break
		}
	}

	if len(filtered) == 0 {
		result.Success = false
		if result.Error == "" {
			result.Error = "no matching sold listings found after filtering"
		}
		result.Details = fmt.Sprintf("eBay: No results found for %s (%s, %s)", item.Title, item.Platform, item.Region)
		return result
	}

	if len(filtered) > opts.MaxResults {
		filtered = filtered[:opts.MaxResults]
	}
	result.Success = true
	result.Listings = filtered
	result.NumResults = len(filtered)
	result.StrategyUsed = strategyUsed
	result.PriceEUR = meanPrice(filtered, opts.IncludeShipping)
	result.Details = c.buildDetails(item, result, opts.IncludeShipping)

	if c.cache != nil {
		err := c.cache.Set(cache.NamespaceEbay, key, cachedResult{
			PriceEUR:     result.PriceEUR,
			NumResults:   result.NumResults,
			Details:      result.Details,
			StrategyUsed: strategyUsed,
		}, cache.TTLEbay)
		if err != nil {
			c.log.Warn("cache write failed", "error", err)
		}
	}

	return result
}

// meanPrice averages the listing totals (price plus shipping when
// requested and available) and rounds to cents.
func meanPrice(listings []*models.SoldListing, includeShipping bool) *decimal.Decimal {
	total := decimal.Zero
	n := 0
	for _, lst := range listings {
		price := lst.PriceEUR
		if includeShipping {
			if t := lst.TotalEUR(); t != nil {
				price = t
			}
		}
		if price == nil {
			continue
		}
		total = total.Add(*price)
		n++
	}
	if n == 0 {
		return nil
	}
	mean := total.Div(decimal.NewFromInt(int64(n))).Round(2)
	return &mean
}

func (c *Client) buildDetails(item *models.GameItem, result *models.PriceResult, includeShipping bool) string {
	shippingNote := "excluded"
	if includeShipping {
		shippingNote = "included"
	}
	avg := "N/A"
	if result.PriceEUR != nil {
		avg = result.PriceEUR.StringFixed(2)
	}
	lines := []string{fmt.Sprintf("eBay (region=%s, avg=%s EUR, n=%d, shipping=%s, strategy=%s):",
		item.Region, avg, result.NumResults, shippingNote, result.StrategyUsed)}

	for _, lst := range result.Listings {
		price := lst.PriceEUR
		if includeShipping {
			if t := lst.TotalEUR(); t != nil {
				price = t
			}
		}
		lines = append(lines, formatListing(lst.SoldDate.Format("2006-01-02"), price, lst.Title, lst.Condition, lst.URL))
	}
	return strings.Join(lines, "\n")
}

// formatListing renders one listing line for the details block.
func formatListing(date string, priceEUR *decimal.Decimal, title, condition, listingURL string) string {
	price := "N/A"
	if priceEUR != nil {
		price = priceEUR.StringFixed(2) + " EUR"
	}
	if len(title) > 50 {
		title = title[:50] + "..."
	}
	parts := []string{fmt.Sprintf("[%s]", date), price, fmt.Sprintf("%q", title)}
	if condition != "" {
		parts = append(parts, fmt.Sprintf("(%s)", condition))
	}
	if listingURL != "" {
		parts = append(parts, "url="+listingURL)
	}
	return strings.Join(parts, " ")
}

// fetchListings issues one rate-limited, retried search request and
// parses the XML payload into raw listings.
func (c *Client) fetchListings(ctx context.Context, query string, negatives []string, site string) ([]rawListing, error) {
	params := c.buildParams(query, negatives, site)
	reqURL := c.baseURL + "?" + params.Encode()

	var body []byte
	attempt := 0
	err := fetch.Do(ctx, c.policy, func() error {
		attempt++
		if attempt > 1 {
			c.metrics.IncRetries("ebay")
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		c.metrics.IncRequest("ebay")
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		c.metrics.ObserveDuration("ebay", time.Since(start))
		if err != nil {
			return fetch.Classify(err, 0)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fetch.Classify(fmt.Errorf("finding api status %d", resp.StatusCode), resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return parseResponse(body)
}

func (c *Client) buildParams(query string, negatives []string, site string) url.Values {
	full := query
	if len(negatives) > 0 {
		var b strings.Builder
		b.WriteString(query)
		for _, kw := range negatives {
			b.WriteString(" -")
			b.WriteString(kw)
		}
		full = b.String()
	}

	params := url.Values{}
	params.Set("OPERATION-NAME", "findCompletedItems")
	params.Set("SERVICE-VERSION", apiVersion)
	params.Set("SECURITY-APPNAME", c.appID)
	params.Set("RESPONSE-DATA-FORMAT", "XML")
	params.Set("REST-PAYLOAD", "")
	params.Set("GLOBAL-ID", site)
	params.Set("keywords", full)
	params.Set("itemFilter(0).name", "SoldItemsOnly")
	params.Set("itemFilter(0).value", "true")
	params.Set("sortOrder", "EndTimeSoonest")
	params.Set("paginationInput.entriesPerPage", fmt.Sprint(entriesPerPage))
	return params
}

// rawListing is a parsed API item before currency conversion.
type rawListing struct {
	Title       string
	Price       decimal.Decimal
	Currency    string
	EndTime     time.Time
	URL         string
	Condition   string
	HasShipping bool
	Shipping    decimal.Decimal
	ShippingCur string
}

type apiAmount struct {
	Value    string `xml:",chardata"`
	Currency string `xml:"currencyId,attr"`
}

type apiItem struct {
	Title         string `xml:"title"`
	ViewItemURL   string `xml:"viewItemURL"`
	SellingStatus struct {
		CurrentPrice apiAmount `xml:"currentPrice"`
	} `xml:"sellingStatus"`
	ListingInfo struct {
		EndTime string `xml:"endTime"`
	} `xml:"listingInfo"`
	Condition struct {
		DisplayName string `xml:"conditionDisplayName"`
	} `xml:"condition"`
	ShippingInfo struct {
		Cost apiAmount `xml:"shippingServiceCost"`
	} `xml:"shippingInfo"`
}

type apiResponse struct {
	Ack          string `xml:"ack"`
	ErrorMessage struct {
		Error struct {
			Message string `xml:"message"`
		} `xml:"error"`
	} `xml:"errorMessage"`
	SearchResult struct {
		Items []apiItem `xml:"item"`
	} `xml:"searchResult"`
}

// parseResponse decodes a Finding API XML payload. A non-success
// acknowledgement aborts the whole strategy attempt.
func parseResponse(body []byte) ([]rawListing, error) {
	var resp apiResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing finding api response: %w", err)
	}

	if resp.Ack != "Success" && resp.Ack != "Warning" {
		msg := resp.ErrorMessage.Error.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("finding api error: %s", msg)
	}

	var listings []rawListing
	for _, it := range resp.SearchResult.Items {
		if it.Title == "" || it.SellingStatus.CurrentPrice.Value == "" {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(it.SellingStatus.CurrentPrice.Value))
		if err != nil {
			continue
		}
		currency := it.SellingStatus.CurrentPrice.Currency
		if currency == "" {
			currency = "USD"
		}

		raw := rawListing{
			Title:     it.Title,
			Price:     price,
			Currency:  currency,
			URL:       it.ViewItemURL,
			Condition: it.Condition.DisplayName,
		}
		if t, err := time.Parse(time.RFC3339, it.ListingInfo.EndTime); err == nil {
			raw.EndTime = t
		} else {
			raw.EndTime = time.Now()
		}
		if v := strings.TrimSpace(it.ShippingInfo.Cost.Value); v != "" {
			if ship, err := decimal.NewFromString(v); err == nil {
				raw.HasShipping = true
				raw.Shipping = ship
				raw.ShippingCur = it.ShippingInfo.Cost.Currency
				if raw.ShippingCur == "" {
					raw.ShippingCur = currency
				}
			}
		}
		listings = append(listings, raw)
	}
	return listings, nil
}

// convertListing attaches reference-currency prices to a raw listing.
// Conversion failures leave the EUR fields nil rather than failing the
// search.
func (c *Client) convertListing(ctx context.Context, raw rawListing, includeShipping bool) *models.SoldListing {
	lst := &models.SoldListing{
		Title:       raw.Title,
		Price:       raw.Price,
		Currency:    raw.Currency,
		SoldDate:    raw.EndTime,
		Condition:   raw.Condition,
		URL:         raw.URL,
		HasShipping: raw.HasShipping,
		Shipping:    raw.Shipping,
		ShippingCur: raw.ShippingCur,
	}

	if eur, err := c.fx.ToEUR(ctx, raw.Price, fx.NormalizeCurrency(raw.Currency)); err == nil {
		lst.PriceEUR = &eur
	} else {
		c.log.Warn("price conversion failed", "currency", raw.Currency, "error", err)
	}
	if includeShipping && raw.HasShipping {
		if eur, err := c.fx.ToEUR(ctx, raw.Shipping, fx.NormalizeCurrency(raw.ShippingCur)); err == nil {
			lst.ShippingEUR = &eur
		}
	}
	return lst
}
