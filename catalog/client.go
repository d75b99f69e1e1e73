package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/shopspring/decimal"

	"github.com/Matt-Retrogamer/retro-princing-scraper/cache"
	"github.com/Matt-Retrogamer/retro-princing-scraper/fetch"
	"github.com/Matt-Retrogamer/retro-princing-scraper/metrics"
	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
	"github.com/Matt-Retrogamer/retro-princing-scraper/ratelimit"
)

const defaultBaseURL = "https://www.pricecharting.com"

// SourceCurrency is the currency every price on the catalog site is
// quoted in.
const SourceCurrency = "USD"

// Client scrapes the catalog site. The shared rate limiter keeps the
// whole process under one polite clock for this source, which rate
// limits aggressively.
type Client struct {
	cache     *cache.Cache
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
	policy    fetch.Policy
	collector *colly.Collector
	baseURL   string
	log       *slog.Logger
}

// NewClient builds a catalog client. userAgent and timeout configure the
// underlying collector; policy governs per-request retries.
func NewClient(store *cache.Cache, limiter *ratelimit.Limiter, m *metrics.Metrics, userAgent string, timeout time.Duration, policy fetch.Policy) *Client {
	collector := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(timeout)

	return &Client{
		cache:     store,
		limiter:   limiter,
		metrics:   m,
		policy:    policy,
		collector: collector,
		baseURL:   defaultBaseURL,
		log:       slog.Default().With("source", "catalog"),
	}
}

// WithTransport swaps the collector's HTTP transport. Tests inject a
// mock transport here.
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	c.collector.WithTransport(rt)
	return c
}

// WithBaseURL points the client at a different site root.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

type cachedResult struct {
	LoosePrice *decimal.Decimal `json:"loose_price"`
	CIBPrice   *decimal.Decimal `json:"cib_price"`
	PriceUSD   *decimal.Decimal `json:"price_usd"`
	Details    string           `json:"details"`
}

func (c *Client) cacheKey(item *models.GameItem) string {
	return cache.BuildKey(map[string]string{
		"platform":  item.Platform,
		"title":     item.Title,
		"packaging": string(item.PackagingState()),
		"region":    string(item.Region),
	})
}

// SearchURL builds the search query URL for an item, mirroring the
// site's own search form.
func (c *Client) SearchURL(title, sitePlatform, regionToken string) string {
	term := CleanTitle(title) + " " + sitePlatform
	if regionToken != "" {
		term += " " + regionToken
	}
	term = specialCharsRe.ReplaceAllString(term, " ")
	term = strings.TrimSpace(spaceRe.ReplaceAllString(term, " "))
	return c.baseURL + "/search-products?type=prices&q=" + url.QueryEscape(term)
}

// GetPrice resolves the catalog price for an item: search, candidate
// scoring, detail-page fetch, tier extraction, tier selection. All
// prices stay in the source currency; the caller converts.
func (c *Client) GetPrice(ctx context.Context, item *models.GameItem) *models.PriceResult {
	result := &models.PriceResult{Source: models.SourceCatalog}

	regionToken := RegionToken(item.Region)
	key := c.cacheKey(item)
	if c.cache != nil {
		raw, ok, err := c.cache.Get(cache.NamespaceCatalog, key)
		if err != nil {
			c.log.Warn("cache read failed", "error", err)
		}
		c.metrics.IncCacheLookup(cache.NamespaceCatalog, ok)
		if ok {
			var cached cachedResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				result.Success = true
				result.LoosePrice = cached.LoosePrice
				result.CIBPrice = cached.CIBPrice
				result.SourcePrice = cached.PriceUSD
				result.SourceCurrency = SourceCurrency
				result.Details = cached.Details
				return result
			}
			c.log.Warn("discarding malformed cache entry", "key", key)
		}
	}

	sitePlatform := SitePlatform(item.Platform)
	searchURL := c.SearchURL(item.Title, sitePlatform, regionToken)
	c.log.Debug("searching catalog", "title", item.Title, "url", searchURL)

	searchHTML, finalURL, err := c.fetchPage(ctx, searchURL)
	if err != nil {
		c.metrics.IncError("catalog", fetch.Label(err))
		result.Error = err.Error()
		result.Details = "PriceCharting: " + err.Error()
		return result
	}

	var gameURL, gameTitle, gameHTML string
	if IsGamePage(finalURL) {
		// The site redirects straight to the game page on an exact
		// match, saving the detail fetch.
		c.log.Debug("search redirected to game page", "url", finalURL)
		gameURL = finalURL
		gameHTML = searchHTML
		gameTitle = extractPageTitle(searchHTML)
		if gameTitle == "" {
			gameTitle = item.Title
		}
	} else {
		best, ok := c.parseSearchResults(searchHTML, item.Title, sitePlatform, regionToken)
		if !ok {
			result.Error = "game not found in search results"
			result.Details = fmt.Sprintf("PriceCharting: No match for '%s' (%s) [%s]\nSearched: %s",
				item.Title, item.Platform, orDefault(regionToken, "NTSC-U"), searchURL)
			return result
		}
		gameURL = best.URL
		gameTitle = best.Title

		gameHTML, _, err = c.fetchPage(ctx, gameURL)
		if err != nil {
			c.metrics.IncError("catalog", fetch.Label(err))
			result.Error = err.Error()
			result.Details = "PriceCharting: " + err.Error()
			return result
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(gameHTML))
	if err != nil {
		result.Error = fmt.Sprintf("parsing game page: %v", err)
		return result
	}

	prices := ExtractPrices(doc)
	if prices.Empty() {
		result.Error = "could not parse prices from game page"
		result.Details = fmt.Sprintf("PriceCharting: Found '%s' but couldn't extract prices\nURL: %s", gameTitle, gameURL)
		return result
	}

	result.LoosePrice = prices.Loose
	result.CIBPrice = prices.CIB

	selected, description := SelectPrice(item, prices)
	result.SourcePrice = selected
	result.SourceCurrency = SourceCurrency
	result.Success = selected != nil
	result.Details = buildDetails(item, gameTitle, gameURL, prices, selected, description)

	if c.cache != nil && result.Success {
		err := c.cache.Set(cache.NamespaceCatalog, key, cachedResult{
			LoosePrice: result.LoosePrice,
			CIBPrice:   result.CIBPrice,
			PriceUSD:   selected,
			Details:    result.Details,
		}, cache.TTLCatalog)
		if err != nil {
			c.log.Warn("cache write failed", "error", err)
		}
	}

	return result
}

// parseSearchResults walks the search-results table and scores each
// product row against the wanted title, platform, and region.
func (c *Client) parseSearchResults(html, title, sitePlatform, regionToken string) (Candidate, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Candidate{}, false
	}

	table := doc.Find("table#games_table")
	if table.Length() == 0 {
		table = doc.Find("table.hoverable-rows")
	}
	if table.Length() == 0 {
		c.log.Warn("no games table in search results")
		return Candidate{}, false
	}

	rows := table.Find(`tr[id^="product-"]`)
	if rows.Length() == 0 {
		rows = table.Find("tr[data-product]")
	}

	wantSlug := PlatformSlug(sitePlatform)
	wantRegion := strings.ToLower(regionToken)

	var candidates []Candidate
	rows.Each(func(_ int, row *goquery.Selection) {
		link := row.Find("td.title a[href]").First()
		href, _ := link.Attr("href")
		if !strings.Contains(href, "/game/") {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = c.baseURL + href
		}
		consoleText := strings.TrimSpace(row.Find("td.console").Text())

		cand := ScoreCandidate(title, wantSlug, wantRegion, href, strings.TrimSpace(link.Text()), consoleText)
		c.log.Debug("candidate scored", "title", cand.Title,
			"score", cand.Score, "title_score", cand.TitleScore)
		candidates = append(candidates, cand)
	})

	return BestCandidate(candidates)
}

var pageTitleSuffixRe = regexp.MustCompile(`(?i)\s+Prices?$`)
var siteNameRe = regexp.MustCompile(`\s*[-|].*$`)

// extractPageTitle pulls the game title off a detail page, preferring
// the h1 heading and falling back to the document title.
func extractPageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return strings.TrimSpace(pageTitleSuffixRe.ReplaceAllString(h1, ""))
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		t = siteNameRe.ReplaceAllString(t, "")
		return strings.TrimSpace(pageTitleSuffixRe.ReplaceAllString(t, ""))
	}
	return ""
}

// fetchPage performs one rate-limited, retried page fetch and reports
// the final URL after redirects.
func (c *Client) fetchPage(ctx context.Context, pageURL string) (string, string, error) {
	var body, finalURL string

	attempt := 0
	err := fetch.Do(ctx, c.policy, func() error {
		attempt++
		if attempt > 1 {
			c.metrics.IncRetries("catalog")
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		col := c.collector.Clone()
		col.OnRequest(func(r *colly.Request) {
			r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		})
		col.OnResponse(func(r *colly.Response) {
			body = string(r.Body)
			// The collector rewrites the request URL after redirects,
			// so this is the landing URL, not the one we asked for.
			finalURL = r.Request.URL.String()
		})
		var reqErr error
		col.OnError(func(r *colly.Response, err error) {
			status := 0
			if r != nil {
				status = r.StatusCode
			}
			reqErr = fetch.Classify(err, status)
		})

		c.metrics.IncRequest("catalog")
		start := time.Now()
		visitErr := col.Visit(pageURL)
		col.Wait()
		c.metrics.ObserveDuration("catalog", time.Since(start))

		if reqErr != nil {
			return reqErr
		}
		if visitErr != nil {
			return fetch.Classify(visitErr, 0)
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return body, finalURL, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func buildDetails(item *models.GameItem, gameTitle, gameURL string, prices models.TierPrices, selected *decimal.Decimal, description string) string {
	formatTier := func(label string, p *decimal.Decimal) string {
		if p == nil {
			return ""
		}
		return fmt.Sprintf("  %s: $%s", label, p)
	}

	components := item.Components()
	lines := []string{
		"PriceCharting: " + gameTitle,
		"  Components: " + components,
	}
	if prices.Loose != nil {
		lines = append(lines, formatTier("Loose", prices.Loose))
	} else {
		lines = append(lines, "  Loose: N/A")
	}
	if prices.CIB != nil {
		lines = append(lines, formatTier("CIB", prices.CIB))
	} else {
		lines = append(lines, "  CIB: N/A")
	}
	for _, tier := range []struct {
		label string
		price *decimal.Decimal
	}{
		{"Item & Box", prices.ItemBox},
		{"Item & Manual", prices.ItemManual},
		{"Box Only", prices.BoxOnly},
		{"Manual Only", prices.ManualOnly},
	} {
		if line := formatTier(tier.label, tier.price); line != "" {
			lines = append(lines, line)
		}
	}

	if selected != nil {
		lines = append(lines, fmt.Sprintf("  -> Selected: %s = $%s USD", description, selected.StringFixed(2)))
	} else {
		lines = append(lines, "  -> Selected: "+description)
	}
	lines = append(lines,
		"  Note: Prices are in USD, will be converted to EUR",
		"  URL: "+gameURL,
	)
	return strings.Join(lines, "\n")
}
