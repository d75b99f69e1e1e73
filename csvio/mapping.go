// Package csvio reads and writes the collection spreadsheet, mapping
// French or English column headers onto the internal item fields and
// preserving untouched columns on the way back out.
package csvio

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Language selects the header vocabulary of a CSV file.
type Language string

const (
	LangAuto Language = "auto"
	LangEN   Language = "en"
	LangFR   Language = "fr"
)

// Internal field keys used between the CSV layer and the item model.
const (
	fieldPlatform       = "platform"
	fieldItemType       = "item_type"
	fieldTitle          = "title"
	fieldCondition      = "condition_text"
	fieldRarity         = "rarity"
	fieldLocalEstimate  = "local_estimate_eur"
	fieldHasBox         = "has_box"
	fieldHasManual      = "has_manual"
	fieldHasInsert      = "has_insert"
	fieldHasGame        = "has_game"
	fieldNotes          = "notes"
	fieldOnlineEstimate = "online_estimate_eur"
	fieldDetails        = "calculation_details"
	fieldRegion         = "region"
)

var columnsFR = map[string]string{
	"Plateforme":        fieldPlatform,
	"Type":              fieldItemType,
	"Titre":             fieldTitle,
	"État":              fieldCondition,
	"Rareté":            fieldRarity,
	"Estimation (€)":    fieldLocalEstimate,
	"Boîte":             fieldHasBox,
	"Manuel":            fieldHasManual,
	"Cale":              fieldHasInsert,
	"Jeu":               fieldHasGame,
	"Remarques":         fieldNotes,
	"Estimation Online": fieldOnlineEstimate,
	"Détail Calcul":     fieldDetails,
	"Région":            fieldRegion,
	"Region":            fieldRegion,
}

var columnsEN = map[string]string{
	"Platform":            fieldPlatform,
	"Type":                fieldItemType,
	"Title":               fieldTitle,
	"Condition":           fieldCondition,
	"Rarity":              fieldRarity,
	"Estimate (€)":        fieldLocalEstimate,
	"Box":                 fieldHasBox,
	"Manual":              fieldHasManual,
	"Insert":              fieldHasInsert,
	"Game":                fieldHasGame,
	"Notes":               fieldNotes,
	"Online Estimate":     fieldOnlineEstimate,
	"Calculation Details": fieldDetails,
	"Region":              fieldRegion,
}

var headersFR = map[string]string{
	fieldPlatform:       "Plateforme",
	fieldItemType:       "Type",
	fieldTitle:          "Titre",
	fieldCondition:      "État",
	fieldRarity:         "Rareté",
	fieldLocalEstimate:  "Estimation (€)",
	fieldHasBox:         "Boîte",
	fieldHasManual:      "Manuel",
	fieldHasInsert:      "Cale",
	fieldHasGame:        "Jeu",
	fieldNotes:          "Remarques",
	fieldOnlineEstimate: "Estimation Online",
	fieldDetails:        "Détail Calcul",
	fieldRegion:         "Région",
}

var headersEN = map[string]string{
	fieldPlatform:       "Platform",
	fieldItemType:       "Type",
	fieldTitle:          "Title",
	fieldCondition:      "Condition",
	fieldRarity:         "Rarity",
	fieldLocalEstimate:  "Estimate (€)",
	fieldHasBox:         "Box",
	fieldHasManual:      "Manual",
	fieldHasInsert:      "Insert",
	fieldHasGame:        "Game",
	fieldNotes:          "Notes",
	fieldOnlineEstimate: "Online Estimate",
	fieldDetails:        "Calculation Details",
	fieldRegion:         "Region",
}

func columnMap(lang Language) map[string]string {
	if lang == LangFR {
		return columnsFR
	}
	return columnsEN
}

func headerMap(lang Language) map[string]string {
	if lang == LangFR {
		return headersFR
	}
	return headersEN
}

// frSpecificHeaders never appear in English files, so any of them marks
// the file as French regardless of match counts.
var frSpecificHeaders = map[string]bool{
	"Plateforme": true,
	"Titre":      true,
	"Boîte":      true,
	"Remarques":  true,
	"Région":     true,
	"État":       true,
	"Rareté":     true,
}

// DetectLanguage infers the header vocabulary from the column names,
// defaulting to English when uncertain.
func DetectLanguage(headers []string) Language {
	frMatches, enMatches := 0, 0
	for _, h := range headers {
		if frSpecificHeaders[h] {
			return LangFR
		}
		if _, ok := columnsFR[h]; ok {
			frMatches++
		}
		if _, ok := columnsEN[h]; ok {
			enMatches++
		}
	}
	if frMatches > enMatches {
		return LangFR
	}
	return LangEN
}

var (
	yesValuesFR = map[string]bool{"oui": true, "o": true, "vrai": true, "1": true}
	noValuesFR  = map[string]bool{"non": true, "n": true, "faux": true, "0": true}
	yesValuesEN = map[string]bool{"yes": true, "y": true, "true": true, "1": true}
	noValuesEN  = map[string]bool{"no": true, "n": true, "false": true, "0": true}
)

// NormalizeBool maps language-specific boolean spellings to "Y", "N",
// or "" for unrecognized input.
func NormalizeBool(value string, lang Language) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "n/a" {
		return ""
	}

	yes, no := yesValuesEN, noValuesEN
	if lang == LangFR {
		yes, no = yesValuesFR, noValuesFR
	}
	switch {
	case yes[v]:
		return "Y"
	case no[v]:
		return "N"
	// Cross-language fallback so mixed files still parse.
	case yesValuesFR[v] || yesValuesEN[v]:
		return "Y"
	case noValuesFR[v] || noValuesEN[v]:
		return "N"
	}
	return ""
}

// DenormalizeBool converts a normalized flag back to the output
// language's spelling.
func DenormalizeBool(value string, lang Language) string {
	switch value {
	case "Y":
		if lang == LangFR {
			return "Oui"
		}
		return "Yes"
	case "N":
		if lang == LangFR {
			return "Non"
		}
		return "No"
	}
	return ""
}

// ParseDecimal reads a money value tolerant of currency symbols, French
// decimal commas, and thousand separators.
func ParseDecimal(value string) *decimal.Decimal {
	s := strings.NewReplacer("€", "", "$", "", "£", "").Replace(strings.TrimSpace(value))
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && !hasDot:
		// French decimal separator: "12,50".
		s = strings.ReplaceAll(s, ",", ".")
	case hasComma && hasDot:
		// Comma is a thousand separator: "1,234.56".
		s = strings.ReplaceAll(s, ",", "")
	}
	s = strings.ReplaceAll(s, " ", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// FormatDecimal renders a money value for CSV output. French output
// uses the decimal comma.
func FormatDecimal(d *decimal.Decimal, lang Language) string {
	if d == nil {
		return ""
	}
	s := d.StringFixed(2)
	if lang == LangFR {
		return strings.Replace(s, ".", ",", 1)
	}
	return s
}
