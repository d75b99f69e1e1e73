package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
)

// Prices above this are treated as parsing errors, not data.
var maxSanePrice = decimal.NewFromInt(50000)

var (
	loosePriceRe      = regexp.MustCompile(`(?i)\bLoose\$([\d,]+\.?\d*)`)
	completePriceRe   = regexp.MustCompile(`(?i)Complete\$([\d,]+\.?\d*)`)
	itemBoxPriceRe    = regexp.MustCompile(`(?i)Item & Box\$([\d,]+\.?\d*)`)
	itemManualPriceRe = regexp.MustCompile(`(?i)Item & Manual\$([\d,]+\.?\d*)`)
	boxOnlyPriceRe    = regexp.MustCompile(`(?i)Box Only\$([\d,]+\.?\d*)`)
	manualOnlyPriceRe = regexp.MustCompile(`(?i)Manual Only\$([\d,]+\.?\d*)`)

	nonNumericRe = regexp.MustCompile(`[^\d.]`)
)

// ParsePrice turns a scraped price string into a decimal. "N/A" style
// placeholders yield nil, and ranges like "10.00 - 20.00" average out.
func ParsePrice(text string) *decimal.Decimal {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "", "n/a", "none", "none available", "-":
		return nil
	}

	replacer := strings.NewReplacer("$", "", "€", "", "£", "", ",", "")
	text = strings.TrimSpace(replacer.Replace(text))

	if parts := strings.Split(text, " - "); len(parts) == 2 {
		low, errLow := decimal.NewFromString(strings.TrimSpace(parts[0]))
		high, errHigh := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if errLow == nil && errHigh == nil {
			mid := low.Add(high).Div(decimal.NewFromInt(2))
			return &mid
		}
	}

	cleaned := nonNumericRe.ReplaceAllString(text, "")
	if cleaned == "" || cleaned == "." {
		return nil
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &price
}

func parseAmount(raw string) *decimal.Decimal {
	price, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil || price.GreaterThanOrEqual(maxSanePrice) {
		return nil
	}
	return &price
}

// completePrice finds the "Complete" tier while skipping "Incomplete"
// and "Graded Complete" occurrences, which carry unrelated amounts.
func completePrice(text string) *decimal.Decimal {
	for _, m := range completePriceRe.FindAllStringSubmatchIndex(text, -1) {
		start := m[0]
		if start > 0 {
			prev := rune(text[start-1])
			if unicode.IsLetter(prev) {
				continue
			}
		}
		before := strings.ToLower(strings.TrimRight(text[:start], " \t\n"))
		if strings.HasSuffix(before, "graded") {
			continue
		}
		if p := parseAmount(text[m[2]:m[3]]); p != nil {
			return p
		}
	}
	return nil
}

func firstMatch(re *regexp.Regexp, text string) *decimal.Decimal {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return parseAmount(m[1])
}

// ExtractPrices pulls the six completeness-tier prices out of a game
// detail page. The site glues each label straight onto its dollar
// amount in the page text, so a regex pass over the flattened text is
// the primary strategy; a label/value table walk is the fallback for
// layout variants.
func ExtractPrices(doc *goquery.Document) models.TierPrices {
	text := doc.Text()

	prices := models.TierPrices{
		Loose:      firstMatch(loosePriceRe, text),
		CIB:        completePrice(text),
		ItemBox:    firstMatch(itemBoxPriceRe, text),
		ItemManual: firstMatch(itemManualPriceRe, text),
		BoxOnly:    firstMatch(boxOnlyPriceRe, text),
		ManualOnly: firstMatch(manualOnlyPriceRe, text),
	}
	if !prices.Empty() {
		return prices
	}

	// "New" and "Sealed" rows are deliberately ignored: sealed prices
	// never apply to an owned, opened item.
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(strings.TrimSpace(cells.First().Text()))
		value := strings.TrimSpace(cells.Last().Text())

		sane := func(p *decimal.Decimal) *decimal.Decimal {
			if p == nil || p.GreaterThanOrEqual(maxSanePrice) {
				return nil
			}
			return p
		}

		switch {
		case strings.Contains(label, "loose") && prices.Loose == nil:
			prices.Loose = sane(ParsePrice(value))
		case label == "complete" && prices.CIB == nil:
			prices.CIB = sane(ParsePrice(value))
		case strings.Contains(label, "box only") && prices.BoxOnly == nil:
			prices.BoxOnly = sane(ParsePrice(value))
		case strings.Contains(label, "manual only") && prices.ManualOnly == nil:
			prices.ManualOnly = sane(ParsePrice(value))
		}
	})

	return prices
}

// SelectPrice picks the right tier for the item's physical components
// and describes the choice. Missing tiers fall back to sums of part
// prices, then to looser estimates, before giving up with nil.
func SelectPrice(item *models.GameItem, prices models.TierPrices) (*decimal.Decimal, string) {
	hasGame := item.HasGame == models.FlagYes
	hasBox := item.HasBox == models.FlagYes
	hasManual := item.HasManual == models.FlagYes

	sum := func(a, b *decimal.Decimal) *decimal.Decimal {
		total := a.Add(*b)
		return &total
	}

	if !hasGame {
		switch {
		case hasBox && hasManual:
			if prices.BoxOnly != nil && prices.ManualOnly != nil {
				return sum(prices.BoxOnly, prices.ManualOnly),
					fmt.Sprintf("Box Only + Manual Only ($%s + $%s)", prices.BoxOnly, prices.ManualOnly)
			}
			return nil, "Box + Manual only (no prices available)"
		case hasBox:
			if prices.BoxOnly != nil {
				return prices.BoxOnly, "Box Only"
			}
			return nil, "Box only (no price available)"
		case hasManual:
			if prices.ManualOnly != nil {
				return prices.ManualOnly, "Manual Only"
			}
			return nil, "Manual only (no price available)"
		}
		return nil, "No components"
	}

	switch {
	case hasBox && hasManual:
		if prices.CIB != nil {
			return prices.CIB, "Complete (CIB)"
		}
		if prices.Loose != nil && prices.BoxOnly != nil && prices.ManualOnly != nil {
			total := prices.Loose.Add(*prices.BoxOnly).Add(*prices.ManualOnly)
			return &total, fmt.Sprintf("Calculated CIB (Loose + Box + Manual: $%s + $%s + $%s)",
				prices.Loose, prices.BoxOnly, prices.ManualOnly)
		}
		if prices.ItemBox != nil && prices.ManualOnly != nil {
			return sum(prices.ItemBox, prices.ManualOnly),
				fmt.Sprintf("Calculated CIB (Item&Box + Manual: $%s + $%s)", prices.ItemBox, prices.ManualOnly)
		}
		return nil, "CIB (no price available)"

	case hasBox:
		if prices.ItemBox != nil {
			return prices.ItemBox, "Item & Box"
		}
		if prices.Loose != nil && prices.BoxOnly != nil {
			return sum(prices.Loose, prices.BoxOnly),
				fmt.Sprintf("Calculated Item&Box (Loose + Box: $%s + $%s)", prices.Loose, prices.BoxOnly)
		}
		if prices.CIB != nil {
			return prices.CIB, "CIB (used as estimate for Item & Box)"
		}
		if prices.Loose != nil {
			return prices.Loose, "Loose (Box value unknown)"
		}
		return nil, "Item & Box (no price available)"

	case hasManual:
		if prices.ItemManual != nil {
			return prices.ItemManual, "Item & Manual"
		}
		if prices.Loose != nil && prices.ManualOnly != nil {
			return sum(prices.Loose, prices.ManualOnly),
				fmt.Sprintf("Calculated Item&Manual (Loose + Manual: $%s + $%s)", prices.Loose, prices.ManualOnly)
		}
		if prices.Loose != nil {
			return prices.Loose, "Loose (Manual value unknown)"
		}
		return nil, "Item & Manual (no price available)"

	default:
		if prices.Loose != nil {
			return prices.Loose, "Loose"
		}
		return nil, "Loose (no price available)"
	}
}
