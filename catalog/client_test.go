package catalog

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Matt-Retrogamer/retro-princing-scraper/cache"
	"github.com/Matt-Retrogamer/retro-princing-scraper/fetch"
	"github.com/Matt-Retrogamer/retro-princing-scraper/metrics"
	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
	"github.com/Matt-Retrogamer/retro-princing-scraper/ratelimit"
)

const testBaseURL = "https://catalog.test"

const searchResultsHTML = `<html><body>
<table id="games_table">
<tr id="product-1"><td class="title"><a href="/game/super-nintendo/super-mario-world">Super Mario World</a></td><td class="console">Super Nintendo</td><td>$40.00</td></tr>
<tr id="product-2"><td class="title"><a href="/game/pal-super-nintendo/super-mario-world">Super Mario World</a></td><td class="console">PAL Super Nintendo</td><td>$45.00</td></tr>
</table>
</body></html>`

const gamePageHTML = `<html><head><title>Super Mario World Prices | Catalog</title></head><body>
<h1>Super Mario World Prices</h1>
<div id="price_data">Loose$18.61Complete$45.00Box Only$12.00Manual Only$3.00</div>
</body></html>`

const emptyResultsHTML = `<html><body><table id="games_table"></table></body></html>`

func newTestClient(t *testing.T, transport *httpmock.MockTransport) (*Client, *cache.Cache) {
	t.Helper()

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	policy := fetch.DefaultPolicy()
	policy.Backoff = time.Millisecond
	policy.BackoffMax = time.Millisecond

	client := NewClient(store, ratelimit.New(0), nil, "test-agent", 5*time.Second, policy).
		WithTransport(transport).
		WithBaseURL(testBaseURL)
	return client, store
}

func palCIBItem() *models.GameItem {
	return &models.GameItem{
		Platform:  "SNES",
		Title:     "Super Mario World",
		Region:    models.RegionPAL,
		HasGame:   models.FlagYes,
		HasBox:    models.FlagYes,
		HasManual: models.FlagYes,
	}
}

func TestGetPriceViaSearchResults(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, `=~^https://catalog\.test/search-products`,
		httpmock.NewStringResponder(http.StatusOK, searchResultsHTML))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/game/pal-super-nintendo/super-mario-world",
		httpmock.NewStringResponder(http.StatusOK, gamePageHTML))

	client, _ := newTestClient(t, transport)
	result := client.GetPrice(context.Background(), palCIBItem())

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.SourcePrice == nil || result.SourcePrice.StringFixed(2) != "45.00" {
		t.Errorf("SourcePrice = %v, want 45.00 (CIB tier)", result.SourcePrice)
	}
	if result.SourceCurrency != "USD" {
		t.Errorf("SourceCurrency = %q, want USD", result.SourceCurrency)
	}
	if result.LoosePrice == nil || result.LoosePrice.StringFixed(2) != "18.61" {
		t.Errorf("LoosePrice = %v, want 18.61", result.LoosePrice)
	}
	if !strings.Contains(result.Details, "Complete (CIB)") {
		t.Errorf("details missing tier description: %q", result.Details)
	}
}

func TestGetPriceDetailPageShortCircuit(t *testing.T) {
	gameURL := testBaseURL + "/game/pal-super-nintendo/super-mario-world"

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, `=~^https://catalog\.test/search-products`,
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusFound, "")
			resp.Header.Set("Location", gameURL)
			resp.Request = req
			return resp, nil
		})
	calls := 0
	transport.RegisterResponder(http.MethodGet, gameURL,
		func(req *http.Request) (*http.Response, error) {
			calls++
			resp := httpmock.NewStringResponse(http.StatusOK, gamePageHTML)
			resp.Request = req
			return resp, nil
		})

	client, _ := newTestClient(t, transport)
	result := client.GetPrice(context.Background(), palCIBItem())

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	// The redirect target page is fetched once by the search request
	// itself; no second detail fetch happens.
	if calls != 1 {
		t.Errorf("game page fetched %d times, want 1", calls)
	}
	if !strings.Contains(result.Details, "Super Mario World") {
		t.Errorf("details should use the page title: %q", result.Details)
	}
}

func TestGetPriceNoMatch(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, `=~^https://catalog\.test/search-products`,
		httpmock.NewStringResponder(http.StatusOK, emptyResultsHTML))

	client, _ := newTestClient(t, transport)
	result := client.GetPrice(context.Background(), palCIBItem())

	if result.Success {
		t.Fatal("expected failure for empty search results")
	}
	if !strings.Contains(result.Error, "not found") {
		t.Errorf("error = %q, want a not-found message", result.Error)
	}
	if !strings.Contains(result.Details, "No match") {
		t.Errorf("details = %q, want a no-match explanation", result.Details)
	}
}

func TestGetPriceUnparseablePage(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, `=~^https://catalog\.test/search-products`,
		httpmock.NewStringResponder(http.StatusOK, searchResultsHTML))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/game/pal-super-nintendo/super-mario-world",
		httpmock.NewStringResponder(http.StatusOK, "<html><body>nothing here</body></html>"))

	client, _ := newTestClient(t, transport)
	result := client.GetPrice(context.Background(), palCIBItem())

	if result.Success {
		t.Fatal("expected failure when no prices parse")
	}
	if !strings.Contains(result.Error, "parse prices") {
		t.Errorf("unexpected error %q", result.Error)
	}
}

func TestGetPriceUsesCache(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, `=~^https://catalog\.test/search-products`,
		httpmock.NewStringResponder(http.StatusOK, searchResultsHTML))
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/game/pal-super-nintendo/super-mario-world",
		httpmock.NewStringResponder(http.StatusOK, gamePageHTML))

	client, store := newTestClient(t, transport)
	first := client.GetPrice(context.Background(), palCIBItem())
	if !first.Success {
		t.Fatalf("first lookup failed: %q", first.Error)
	}

	// A second client on the same store with a dead transport must be
	// served entirely from cache.
	policy := fetch.DefaultPolicy()
	policy.Backoff = time.Millisecond
	policy.BackoffMax = time.Millisecond
	cachedClient := NewClient(store, ratelimit.New(0), nil, "test-agent", time.Second, policy).
		WithTransport(httpmock.NewMockTransport()).
		WithBaseURL(testBaseURL)

	second := cachedClient.GetPrice(context.Background(), palCIBItem())
	if !second.Success {
		t.Fatalf("cached lookup failed: %q", second.Error)
	}
	if second.SourcePrice.StringFixed(2) != first.SourcePrice.StringFixed(2) {
		t.Errorf("cached price %s differs from original %s",
			second.SourcePrice.StringFixed(2), first.SourcePrice.StringFixed(2))
	}
}

func TestGetPriceHTTPError(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, `=~^https://catalog\.test/search-products`,
		httpmock.NewStringResponder(http.StatusForbidden, "blocked"))

	client, _ := newTestClient(t, transport)
	result := client.GetPrice(context.Background(), palCIBItem())

	if result.Success {
		t.Fatal("expected failure on 403")
	}
	if result.Error == "" {
		t.Error("error message should be populated")
	}
}

func TestGetPriceCountsRetries(t *testing.T) {
	transport := httpmock.NewMockTransport()
	searchCalls := 0
	transport.RegisterResponder(http.MethodGet, `=~^https://catalog\.test/search-products`,
		func(req *http.Request) (*http.Response, error) {
			searchCalls++
			if searchCalls == 1 {
				return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
			}
			return httpmock.NewStringResponse(http.StatusOK, searchResultsHTML), nil
		})
	transport.RegisterResponder(http.MethodGet, testBaseURL+"/game/pal-super-nintendo/super-mario-world",
		httpmock.NewStringResponder(http.StatusOK, gamePageHTML))

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	policy := fetch.DefaultPolicy()
	policy.Backoff = time.Millisecond
	policy.BackoffMax = time.Millisecond

	m := metrics.New()
	client := NewClient(store, ratelimit.New(0), m, "test-agent", 5*time.Second, policy).
		WithTransport(transport).
		WithBaseURL(testBaseURL)

	result := client.GetPrice(context.Background(), palCIBItem())
	if !result.Success {
		t.Fatalf("expected success after retry, got error %q", result.Error)
	}
	if searchCalls != 2 {
		t.Fatalf("search fetched %d times, want 2", searchCalls)
	}
	if got := testutil.ToFloat64(m.RetriesTotal.WithLabelValues("catalog")); got != 1 {
		t.Errorf("retries counter = %v, want 1", got)
	}
}

func TestSearchURL(t *testing.T) {
	client := NewClient(nil, ratelimit.New(0), nil, "test-agent", time.Second, fetch.DefaultPolicy()).
		WithBaseURL(testBaseURL)

	got := client.SearchURL("Luigi's Mansion (Platinum Edition)", "Gamecube", "PAL")
	want := testBaseURL + "/search-products?type=prices&q=Luigi%27s+Mansion+Gamecube+PAL"
	if got != want {
		t.Errorf("SearchURL = %q, want %q", got, want)
	}
}
