// Package models defines data structures for the price enricher.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Region identifies the geographic release region of a game.
type Region string

const (
	RegionPAL   Region = "PAL"
	RegionNTSCU Region = "NTSC-U"
	RegionNTSCJ Region = "NTSC-J"
)

// ParseRegion parses free-text region values, defaulting to PAL.
func ParseRegion(value string) Region {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "PAL", "EUR", "EUROPE", "EUROPEAN", "UK":
		return RegionPAL
	case "NTSC-U", "NTSC-U/C", "NTSCU", "NTSC_U", "USA", "US", "NA", "NORTH AMERICA":
		return RegionNTSCU
	case "NTSC-J", "NTSCJ", "NTSC_J", "JAP", "JAPAN", "JP", "JAPANESE":
		return RegionNTSCJ
	}
	return RegionPAL
}

// PackagingState classifies item completeness derived from component flags.
type PackagingState string

const (
	PackagingCIB     PackagingState = "CIB"
	PackagingLoose   PackagingState = "Loose"
	PackagingUnknown PackagingState = "Unknown"
)

// PriceSource tags which external source produced a PriceResult.
type PriceSource string

const (
	SourceEbay    PriceSource = "eBay"
	SourceCatalog PriceSource = "RetroGamePrices"
)

// Language is the preferred language for game variants.
type Language string

const (
	LangAny Language = "ANY"
	LangEN  Language = "EN"
	LangFR  Language = "FR"
	LangDE  Language = "DE"
	LangIT  Language = "IT"
	LangES  Language = "ES"
)

// ParseLanguage maps a user-supplied language code to a Language.
// Empty or unrecognized input means no preference.
func ParseLanguage(value string) Language {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "EN", "ENGLISH":
		return LangEN
	case "FR", "FRENCH":
		return LangFR
	case "DE", "GERMAN":
		return LangDE
	case "IT", "ITALIAN":
		return LangIT
	case "ES", "SPANISH":
		return LangES
	default:
		return LangAny
	}
}

// Component flag values as stored on GameItem: "Y", "N", or "" (unknown).
const (
	FlagYes = "Y"
	FlagNo  = "N"
)

// GameItem represents a single collection item from the input CSV.
type GameItem struct {
	Platform string
	Title    string

	ItemType      string
	ConditionText string
	Rarity        string
	LocalEstimate *decimal.Decimal
	HasBox        string // Y/N/""
	HasManual     string // Y/N/""
	HasInsert     string // Y/N/""
	HasGame       string // Y/N/""
	Notes         string
	Region        Region

	OnlineEstimate *decimal.Decimal
	Details        string

	// RowIndex preserves the source row position for round-tripping.
	RowIndex int
	// Raw keeps untouched source columns keyed by original header.
	Raw map[string]string
}

// PackagingState derives the completeness classification from component flags.
func (g *GameItem) PackagingState() PackagingState {
	if g.HasGame != FlagYes {
		return PackagingUnknown
	}
	if g.HasBox == FlagYes && g.HasManual == FlagYes {
		return PackagingCIB
	}
	return PackagingLoose
}

// Processable reports whether the item should be priced at all.
func (g *GameItem) Processable() bool {
	return g.HasGame == FlagYes
}

// Components describes the physical parts present, like "Game + Box".
func (g *GameItem) Components() string {
	var parts []string
	if g.HasGame == FlagYes {
		parts = append(parts, "Game")
	}
	if g.HasBox == FlagYes {
		parts = append(parts, "Box")
	}
	if g.HasManual == FlagYes {
		parts = append(parts, "Manual")
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, " + ")
}

// SoldListing is a single completed auction listing.
type SoldListing struct {
	Title       string
	Price       decimal.Decimal
	Currency    string
	SoldDate    time.Time
	Condition   string
	URL         string
	HasShipping bool
	Shipping    decimal.Decimal
	ShippingCur string

	// Converted prices in the reference currency.
	PriceEUR    *decimal.Decimal
	ShippingEUR *decimal.Decimal
}

// TotalEUR returns price plus shipping in EUR, when both converted.
func (l *SoldListing) TotalEUR() *decimal.Decimal {
	if l.PriceEUR == nil {
		return nil
	}
	if l.ShippingEUR != nil {
		total := l.PriceEUR.Add(*l.ShippingEUR)
		return &total
	}
	return l.PriceEUR
}

// TierPrices holds the six completeness-tier prices parsed from a catalog
// detail page, still in the source currency (USD). The tier set is fixed,
// so a struct with optional fields replaces the original open mapping.
type TierPrices struct {
	Loose      *decimal.Decimal
	CIB        *decimal.Decimal
	ItemBox    *decimal.Decimal
	ItemManual *decimal.Decimal
	BoxOnly    *decimal.Decimal
	ManualOnly *decimal.Decimal
}

// Empty reports whether no tier price was parsed at all.
func (t TierPrices) Empty() bool {
	return t.Loose == nil && t.CIB == nil && t.ItemBox == nil &&
		t.ItemManual == nil && t.BoxOnly == nil && t.ManualOnly == nil
}

// PriceResult is the outcome of one source lookup for one item.
type PriceResult struct {
	Source   PriceSource
	Success  bool
	PriceEUR *decimal.Decimal
	Details  string
	Error    string

	// Auction source specific.
	Listings     []*SoldListing
	NumResults   int
	StrategyUsed string

	// Catalog source specific (source currency until converted).
	LoosePrice *decimal.Decimal
	CIBPrice   *decimal.Decimal

	// Selected catalog price before conversion to the reference
	// currency. The orchestrator converts this into PriceEUR.
	SourcePrice    *decimal.Decimal
	SourceCurrency string
}

// EnrichmentResult is the combined outcome for one item.
type EnrichmentResult struct {
	Item          *GameItem
	EbayResult    *PriceResult
	CatalogResult *PriceResult
	FinalEstimate *decimal.Decimal
	Details       string
	Success       bool
}

// DecimalPtr is a small helper for building optional money values.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
