// Package ebay queries the eBay Finding API for completed sold listings
// and turns them into an averaged price in the reference currency.
package ebay

import (
	"regexp"
	"strings"

	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
)

// RegionIncludeKeywords returns keywords to include in a search query
// for a region. Region keywords are always part of the positive query.
func RegionIncludeKeywords(region models.Region) []string {
	switch region {
	case models.RegionPAL:
		return []string{"PAL"}
	case models.RegionNTSCU:
		return []string{"NTSC", "USA", "US"}
	case models.RegionNTSCJ:
		return []string{"NTSC-J", "Japan", "Japanese", "JAP"}
	}
	return nil
}

// RegionExcludeKeywords returns the mandatory negative keywords for a
// region: every marker of the other two regions.
func RegionExcludeKeywords(region models.Region) []string {
	switch region {
	case models.RegionPAL:
		return []string{"NTSC-U", "NTSC-J", "NTSCU", "NTSCJ", "JAP", "Japan", "Japanese", "USA"}
	case models.RegionNTSCU:
		return []string{"PAL", "JAP", "Japan", "Japanese", "NTSC-J", "NTSCJ"}
	case models.RegionNTSCJ:
		return []string{"PAL", "USA", "US", "NTSC-U", "NTSCU"}
	}
	return nil
}

var languageKeywords = map[models.Language][]string{
	models.LangEN: {"English", "EN", "UK"},
	models.LangFR: {"French", "FR", "Français"},
	models.LangDE: {"German", "DE", "Deutsch"},
	models.LangIT: {"Italian", "IT", "Italiano"},
	models.LangES: {"Spanish", "ES", "Español"},
}

// LanguageKeywords returns the positive keywords for a language
// preference. LangAny yields nothing.
func LanguageKeywords(language models.Language) []string {
	return languageKeywords[language]
}

// LanguageExcludeKeywords returns the keywords of every other language,
// used only in strict-language mode.
func LanguageExcludeKeywords(language models.Language) []string {
	if language == models.LangAny {
		return nil
	}
	var exclude []string
	for _, lang := range []models.Language{models.LangEN, models.LangFR, models.LangDE, models.LangIT, models.LangES} {
		if lang != language {
			exclude = append(exclude, languageKeywords[lang]...)
		}
	}
	return exclude
}

// PackagingKeywords returns search keywords for a packaging state,
// picking cartridge or disc wording by platform.
func PackagingKeywords(packaging models.PackagingState, platform string) []string {
	isCartridge := models.CartridgePlatforms[platform]

	switch packaging {
	case models.PackagingCIB:
		keywords := []string{"CIB", "complete", "boxed", "complete in box"}
		if isCartridge {
			keywords = append(keywords, "with box")
		}
		return keywords
	case models.PackagingLoose:
		if isCartridge {
			return []string{"cartridge", "cart", "loose", "game only"}
		}
		return []string{"disc", "loose", "game only", "disc only"}
	}
	return nil
}

var (
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	editionSuffixRe = regexp.MustCompile(`(?i)\s*(Edition|Version|Release)\s*$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// CleanTitle strips parenthetical metadata, edition suffixes, trademark
// symbols, and quotes that break the search query syntax.
func CleanTitle(title string) string {
	title = parentheticalRe.ReplaceAllString(title, " ")
	title = editionSuffixRe.ReplaceAllString(title, "")
	title = strings.NewReplacer("™", "", "®", "", `"`, "").Replace(title)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(title, " "))
}

// BuildQuery builds the positive search query: cleaned title, platform
// synonyms, mandatory region keywords, optional packaging and language
// keyword groups.
func BuildQuery(item *models.GameItem, language models.Language, includePackaging bool) string {
	parts := []string{CleanTitle(item.Title)}

	platformKw := models.PlatformEbayKeywords[item.Platform]
	if len(platformKw) == 0 && item.Platform != "" {
		platformKw = []string{item.Platform}
	}
	if len(platformKw) > 0 {
		parts = append(parts, "("+strings.Join(platformKw, " OR ")+")")
	}

	if regionKw := RegionIncludeKeywords(item.Region); len(regionKw) > 0 {
		parts = append(parts, "("+strings.Join(regionKw, " OR ")+")")
	}

	if includePackaging {
		if pkgKw := PackagingKeywords(item.PackagingState(), item.Platform); len(pkgKw) > 0 {
			parts = append(parts, "("+strings.Join(pkgKw, " OR ")+")")
		}
	}

	if language != models.LangAny {
		if langKw := LanguageKeywords(language); len(langKw) > 0 {
			parts = append(parts, "("+strings.Join(langKw, " OR ")+")")
		}
	}

	return strings.Join(parts, " ")
}

// NegativeKeywords builds the exclusion list: region exclusions always,
// lot/bundle and box-only exclusions unless explicitly allowed, other
// languages only in strict mode.
func NegativeKeywords(item *models.GameItem, language models.Language, strictLanguage, allowLots, allowBoxOnly bool) []string {
	negatives := RegionExcludeKeywords(item.Region)

	if !allowLots {
		negatives = append(negatives, "lot", "bundle", "job lot", "collection", "bulk")
	}
	if !allowBoxOnly {
		negatives = append(negatives, "box only", "case only", "manual only", "empty box")
	}
	if strictLanguage && language != models.LangAny {
		negatives = append(negatives, LanguageExcludeKeywords(language)...)
	}

	return negatives
}
