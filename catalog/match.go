// Package catalog scrapes a retro-game pricing catalog site for
// completeness-tier prices. Search results are disambiguated with a
// weighted similarity score before the detail page is fetched.
package catalog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
)

// Score weights for ranking search-result candidates. Title similarity
// dominates, then region, then platform.
const (
	weightTitle    = 0.5
	weightRegion   = 0.3
	weightPlatform = 0.2

	// A best candidate below this title similarity is treated as no
	// match at all.
	minTitleScore = 0.3
)

var (
	noiseParenRe    = regexp.MustCompile(`(?i)\s*\([^)]*(?:loose|edition|platinum|essentials|classics|best seller|demo|rpg)\s*\)`)
	trailingParenRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	specialCharsRe  = regexp.MustCompile(`[^\p{L}\p{N}_\s'-]`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// CleanTitle prepares a title for searching: drops parenthetical notes
// that hurt matching, strips special characters, normalizes whitespace.
func CleanTitle(title string) string {
	cleaned := noiseParenRe.ReplaceAllString(title, "")
	cleaned = trailingParenRe.ReplaceAllString(cleaned, "")
	cleaned = specialCharsRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(cleaned, " "))
}

// RegionToken maps an item region to the catalog site's search token.
// The empty string is the site default (NTSC-U).
func RegionToken(region models.Region) string {
	switch region {
	case models.RegionPAL:
		return "PAL"
	case models.RegionNTSCJ:
		return "JP"
	}
	return ""
}

// sitePlatforms maps canonical platform names to the catalog site's
// platform vocabulary. Unknown names pass through unchanged.
var sitePlatforms = map[string]string{
	"NES":             "NES",
	"SNES":            "Super Nintendo",
	"Super Nintendo":  "Super Nintendo",
	"Nintendo 64":     "Nintendo 64",
	"GameCube":        "Gamecube",
	"Wii":             "Wii",
	"Wii U":           "Wii U",
	"Nintendo Switch": "Nintendo Switch",
	"Game Boy":         "Gameboy",
	"Game Boy Color":   "Gameboy Color",
	"Game Boy Advance": "Gameboy Advance",
	"Nintendo DS":      "Nintendo DS",
	"Nintendo 3DS":     "Nintendo 3DS",
	"Master System": "Sega Master System",
	"Mega Drive":    "Sega Genesis",
	"Genesis":       "Sega Genesis",
	"Sega Saturn":   "Sega Saturn",
	"Dreamcast":     "Sega Dreamcast",
	"Game Gear":     "Sega Game Gear",
	"PlayStation":   "Playstation",
	"PlayStation 2": "Playstation 2",
	"PlayStation 3": "Playstation 3",
	"PlayStation 4": "Playstation 4",
	"PSP":           "PSP",
	"PS Vita":       "Playstation Vita",
	"Xbox":          "Xbox",
	"Xbox 360":      "Xbox 360",
	"Xbox One":      "Xbox One",
	"Atari 2600":    "Atari 2600",
	"Neo Geo":       "Neo Geo AES",
	"TurboGrafx-16": "TurboGrafx-16",
	"PC Engine":     "TurboGrafx-16",
}

// SitePlatform maps a canonical platform name to the catalog site's
// spelling of it.
func SitePlatform(platform string) string {
	if mapped, ok := sitePlatforms[platform]; ok {
		return mapped
	}
	return platform
}

// slugOverrides covers platforms whose URL slug differs from the
// obvious lowercase-hyphenated form of the name.
var slugOverrides = map[string]string{
	"game-boy":         "gameboy",
	"game-boy-color":   "gameboy-color",
	"game-boy-advance": "gameboy-advance",
	"3ds":              "nintendo-3ds",
	"nds":              "nintendo-ds",
	"snes":             "super-nintendo",
	"n64":              "nintendo-64",
	"gc":               "gamecube",
	"mega-drive":       "sega-genesis",
	"genesis":          "sega-genesis",
	"ps1":              "playstation",
	"psx":              "playstation",
	"ps2":              "playstation-2",
	"ps3":              "playstation-3",
	"ps4":              "playstation-4",
	"ps-vita":          "playstation-vita",
	"dreamcast":        "sega-dreamcast",
	"saturn":           "sega-saturn",
	"master-system":    "sega-master-system",
	"game-gear":        "sega-game-gear",
}

// PlatformSlug normalizes a platform name into the catalog's URL slug
// form for comparison with game-page URLs.
func PlatformSlug(platform string) string {
	slug := strings.ReplaceAll(strings.ToLower(platform), " ", "-")
	if mapped, ok := slugOverrides[slug]; ok {
		return mapped
	}
	return slug
}

var gameURLRe = regexp.MustCompile(`/game/([^/]+)/`)

// ExtractPlatformFromURL splits a game-page URL into its platform slug
// and region prefix. Region is "pal", "jp", or "" for the default site.
func ExtractPlatformFromURL(pageURL string) (platform, region string) {
	m := gameURLRe.FindStringSubmatch(pageURL)
	if m == nil {
		return "", ""
	}
	slug := strings.ToLower(m[1])
	switch {
	case strings.HasPrefix(slug, "pal-"):
		return slug[4:], "pal"
	case strings.HasPrefix(slug, "jp-"):
		return slug[3:], "jp"
	}
	return slug, ""
}

// IsGamePage reports whether a URL points at a game detail page rather
// than a search-results page. The site redirects straight to the game
// page on an exact match.
func IsGamePage(pageURL string) bool {
	return strings.Contains(pageURL, "/game/") && !strings.Contains(pageURL, "/search")
}

// TitleSimilarity scores how close a result title is to the search
// title, from 0 to 1. Exact match is 1, containment scores 0.8 plus a
// length-ratio bonus, and word overlap caps at 0.7.
func TitleSimilarity(searchTitle, resultTitle string) float64 {
	a := strings.ToLower(CleanTitle(searchTitle))
	b := strings.ToLower(CleanTitle(resultTitle))

	if a == b {
		return 1.0
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		shorter, longer := len(a), len(b)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		if longer == 0 {
			return 0.8
		}
		return 0.8 + 0.2*float64(shorter)/float64(longer)
	}

	significant := func(words []string) map[string]bool {
		set := make(map[string]bool)
		for _, w := range words {
			if len(w) > 2 {
				set[w] = true
			}
		}
		if len(set) == 0 {
			for _, w := range words {
				set[w] = true
			}
		}
		return set
	}

	searchWords := significant(strings.Fields(a))
	resultWords := significant(strings.Fields(b))

	common := 0
	for w := range searchWords {
		if resultWords[w] {
			common++
		}
	}
	if common == 0 || len(searchWords) == 0 {
		return 0.0
	}

	coverage := float64(common) / float64(len(searchWords))
	score := coverage * 0.7
	if score > 0.7 {
		score = 0.7
	}
	return score
}

// platformScore compares the wanted platform slug against the slug
// extracted from a candidate URL, with the console-column text as a
// weaker fallback signal.
func platformScore(wantSlug, urlPlatform, consoleText string) float64 {
	if urlPlatform == "" {
		return 0.0
	}
	switch {
	case strings.Contains(urlPlatform, wantSlug) || strings.Contains(wantSlug, urlPlatform):
		return 1.0
	case strings.Contains(strings.ReplaceAll(urlPlatform, "-", ""), strings.ReplaceAll(wantSlug, "-", "")):
		return 0.9
	case strings.Contains(consoleText, strings.ReplaceAll(wantSlug, "-", " ")):
		return 0.8
	}
	return 0.0
}

// regionScore compares the wanted region token against the region
// prefix of a candidate URL. A PAL search landing on the default site
// is an acceptable but weak fallback.
func regionScore(wantRegion, urlRegion string) float64 {
	if wantRegion == "" {
		return 0.5
	}
	switch {
	case wantRegion == urlRegion:
		return 1.0
	case wantRegion == "pal" && urlRegion == "":
		return 0.3
	}
	return 0.0
}

// Candidate is one scored search-result row.
type Candidate struct {
	URL   string
	Title string

	Score         float64
	TitleScore    float64
	RegionScore   float64
	PlatformScore float64
}

// ScoreCandidate computes the composite score for one search result.
func ScoreCandidate(searchTitle, wantSlug, wantRegion, candidateURL, candidateTitle, consoleText string) Candidate {
	urlPlatform, urlRegion := ExtractPlatformFromURL(candidateURL)

	c := Candidate{
		URL:           candidateURL,
		Title:         candidateTitle,
		TitleScore:    TitleSimilarity(searchTitle, candidateTitle),
		RegionScore:   regionScore(wantRegion, urlRegion),
		PlatformScore: platformScore(wantSlug, urlPlatform, strings.ToLower(consoleText)),
	}
	c.Score = c.TitleScore*weightTitle + c.RegionScore*weightRegion + c.PlatformScore*weightPlatform
	return c
}

// BestCandidate ranks candidates by composite score with title score as
// tiebreaker, and rejects the winner when its title similarity is below
// the acceptance threshold.
func BestCandidate(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].TitleScore > candidates[j].TitleScore
	})
	best := candidates[0]
	if best.TitleScore < minTitleScore {
		return Candidate{}, false
	}
	return best, true
}
