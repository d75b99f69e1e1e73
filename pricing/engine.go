// Package pricing orchestrates per-item price lookups across sources
// and combines them into one weighted estimate.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Matt-Retrogamer/retro-princing-scraper/config"
	"github.com/Matt-Retrogamer/retro-princing-scraper/ebay"
	"github.com/Matt-Retrogamer/retro-princing-scraper/fx"
	"github.com/Matt-Retrogamer/retro-princing-scraper/metrics"
	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
)

// AuctionSource is the sold-listings lookup the engine drives.
type AuctionSource interface {
	Search(ctx context.Context, item *models.GameItem, opts ebay.Options) *models.PriceResult
}

// CatalogSource is the tier-price lookup the engine drives.
type CatalogSource interface {
	GetPrice(ctx context.Context, item *models.GameItem) *models.PriceResult
}

// Engine runs the enrichment state machine for one item at a time.
type Engine struct {
	cfg     *config.Config
	auction AuctionSource
	catalog CatalogSource
	fx      *fx.Converter
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewEngine wires an engine from its collaborators. Either source may
// be nil when the configuration disables it.
func NewEngine(cfg *config.Config, auction AuctionSource, catalog CatalogSource, conv *fx.Converter, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:     cfg,
		auction: auction,
		catalog: catalog,
		fx:      conv,
		metrics: m,
		log:     slog.Default().With("component", "pricing"),
	}
}

// EnrichItem resolves prices for one item from the configured sources
// and combines them. A failing or panicking source degrades to a failed
// PriceResult for that source; the other source still counts.
func (e *Engine) EnrichItem(ctx context.Context, item *models.GameItem) *models.EnrichmentResult {
	result := &models.EnrichmentResult{Item: item}

	if !item.Processable() && !e.cfg.IncludeNonGame {
		result.Details = "Skipped: No game present (has_game != Y)"
		e.metrics.IncItem("skipped")
		return result
	}

	if e.cfg.UsesEbay() && e.auction != nil {
		result.EbayResult = e.safeSearch(ctx, item)
	}
	if e.cfg.UsesCatalog() && e.catalog != nil {
		result.CatalogResult = e.safeCatalog(ctx, item)
		e.convertCatalogPrices(ctx, result.CatalogResult)
	}

	result.FinalEstimate = e.weightedAverage(result.EbayResult, result.CatalogResult)
	result.Details = e.buildDetails(result)
	result.Success = result.FinalEstimate != nil

	if result.Success {
		e.metrics.IncItem("enriched")
	} else {
		e.metrics.IncItem("failed")
	}
	return result
}

func (e *Engine) safeSearch(ctx context.Context, item *models.GameItem) (res *models.PriceResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("auction source panicked", "item", item.Title, "panic", r)
			res = &models.PriceResult{
				Source:  models.SourceEbay,
				Error:   fmt.Sprint(r),
				Details: fmt.Sprintf("eBay error: %v", r),
			}
		}
	}()

	return e.auction.Search(ctx, item, ebay.Options{
		Language:        e.cfg.PreferredLanguage,
		StrictLanguage:  e.cfg.StrictLanguage,
		StrictRegion:    e.cfg.StrictRegion,
		AllowLots:       e.cfg.AllowLots,
		AllowBoxOnly:    e.cfg.AllowBoxOnly,
		IncludeShipping: e.cfg.IncludeShipping,
		MaxResults:      e.cfg.MaxResults,
	})
}

func (e *Engine) safeCatalog(ctx context.Context, item *models.GameItem) (res *models.PriceResult) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("catalog source panicked", "item", item.Title, "panic", r)
			res = &models.PriceResult{
				Source:  models.SourceCatalog,
				Error:   fmt.Sprint(r),
				Details: fmt.Sprintf("RetroGamePrices error: %v", r),
			}
		}
	}()

	return e.catalog.GetPrice(ctx, item)
}

// convertCatalogPrices moves the catalog result from its source
// currency into the reference currency, including the loose and CIB
// tiers shown in the explanation text.
func (e *Engine) convertCatalogPrices(ctx context.Context, res *models.PriceResult) {
	if res == nil || !res.Success || res.SourcePrice == nil {
		return
	}
	currency := res.SourceCurrency
	if currency == "" {
		currency = "USD"
	}

	eur, err := e.fx.ToEUR(ctx, *res.SourcePrice, currency)
	if err != nil {
		res.Success = false
		res.Error = fmt.Sprintf("currency conversion failed: %v", err)
		return
	}
	res.PriceEUR = &eur

	if res.LoosePrice != nil {
		if converted, err := e.fx.ToEUR(ctx, *res.LoosePrice, currency); err == nil {
			res.LoosePrice = &converted
		}
	}
	if res.CIBPrice != nil {
		if converted, err := e.fx.ToEUR(ctx, *res.CIBPrice, currency); err == nil {
			res.CIBPrice = &converted
		}
	}
}

// weightedAverage combines the source prices. Both present yields the
// weighted sum; one present passes through; none yields nil.
func (e *Engine) weightedAverage(ebayRes, catalogRes *models.PriceResult) *decimal.Decimal {
	var ebayPrice, catalogPrice *decimal.Decimal
	if ebayRes != nil && ebayRes.Success {
		ebayPrice = ebayRes.PriceEUR
	}
	if catalogRes != nil && catalogRes.Success {
		catalogPrice = catalogRes.PriceEUR
	}

	switch {
	case ebayPrice != nil && catalogPrice != nil:
		weighted := ebayPrice.Mul(decimal.NewFromFloat(e.cfg.WeightEbay)).
			Add(catalogPrice.Mul(decimal.NewFromFloat(e.cfg.WeightCatalog))).
			Round(2)
		return &weighted
	case ebayPrice != nil:
		rounded := ebayPrice.Round(2)
		return &rounded
	case catalogPrice != nil:
		rounded := catalogPrice.Round(2)
		return &rounded
	}
	return nil
}

// buildDetails renders the combined explanation block. The header uses
// "###" instead of "===" so spreadsheet software does not read it as a
// formula.
func (e *Engine) buildDetails(result *models.EnrichmentResult) string {
	item := result.Item
	var parts []string

	parts = append(parts,
		fmt.Sprintf("### %s (%s) ###", item.Title, item.Platform),
		fmt.Sprintf("Packaging: %s", item.PackagingState()),
		fmt.Sprintf("Region: %s", item.Region),
		"",
	)

	if result.EbayResult != nil {
		parts = append(parts, "--- eBay ---")
		if result.EbayResult.Success {
			parts = append(parts, result.EbayResult.Details)
		} else {
			parts = append(parts, "Error: "+orNoResults(result.EbayResult.Error))
		}
		parts = append(parts, "")
	}

	if result.CatalogResult != nil {
		parts = append(parts, "--- RetroGamePrices ---")
		if result.CatalogResult.Success {
			parts = append(parts, result.CatalogResult.Details)
		} else {
			parts = append(parts, "Error: "+orNoResults(result.CatalogResult.Error))
		}
		parts = append(parts, "")
	}

	parts = append(parts, "--- Final Estimate ---")
	if result.FinalEstimate == nil {
		parts = append(parts, "No estimate available - both sources failed")
		return strings.Join(parts, "\n")
	}

	ebayNote := "eBay: N/A"
	if result.EbayResult != nil && result.EbayResult.Success && result.EbayResult.PriceEUR != nil {
		ebayNote = "eBay: " + result.EbayResult.PriceEUR.StringFixed(2) + " EUR"
	}
	catalogNote := "RGP: N/A"
	if result.CatalogResult != nil && result.CatalogResult.Success && result.CatalogResult.PriceEUR != nil {
		catalogNote = "RGP: " + result.CatalogResult.PriceEUR.StringFixed(2) + " EUR"
	}

	bothUsed := result.EbayResult != nil && result.EbayResult.Success &&
		result.CatalogResult != nil && result.CatalogResult.Success
	if bothUsed {
		parts = append(parts, fmt.Sprintf("Weighted average (eBay %.0f%% / RGP %.0f%%)",
			e.cfg.WeightEbay*100, e.cfg.WeightCatalog*100))
	} else {
		parts = append(parts, "Single source")
	}

	parts = append(parts,
		ebayNote+" | "+catalogNote,
		"Final: "+result.FinalEstimate.StringFixed(2)+" EUR",
	)
	return strings.Join(parts, "\n")
}

func orNoResults(errMsg string) string {
	if errMsg == "" {
		return "No results"
	}
	return errMsg
}

// ProgressFunc reports batch progress after each item.
type ProgressFunc func(done, total int, result *models.EnrichmentResult)

// EnrichBatch drives the engine over items sequentially, honoring
// context cancellation between items.
func (e *Engine) EnrichBatch(ctx context.Context, items []*models.GameItem, progress ProgressFunc) ([]*models.EnrichmentResult, error) {
	results := make([]*models.EnrichmentResult, 0, len(items))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := e.EnrichItem(ctx, item)
		results = append(results, result)

		price := "N/A"
		if result.FinalEstimate != nil {
			price = result.FinalEstimate.StringFixed(2) + " EUR"
		}
		e.log.Info("item processed",
			"index", i+1, "total", len(items),
			"title", item.Title, "success", result.Success, "estimate", price)

		if progress != nil {
			progress(i+1, len(items), result)
		}
	}
	return results, nil
}

// ApplyEnrichment writes final estimates and explanation text back onto
// the items, matched by row index.
func ApplyEnrichment(items []*models.GameItem, results []*models.EnrichmentResult) {
	byRow := make(map[int]*models.EnrichmentResult, len(results))
	for _, r := range results {
		byRow[r.Item.RowIndex] = r
	}
	for _, item := range items {
		r, ok := byRow[item.RowIndex]
		if !ok {
			continue
		}
		item.OnlineEstimate = r.FinalEstimate
		item.Details = r.Details
	}
}
