package ebay

import (
	"strings"
	"testing"

	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Super Mario World", "Super Mario World"},
		{"parenthetical", "Super Mario World (SNES) (PAL)", "Super Mario World"},
		{"edition suffix", "Zelda Collector's Edition", "Zelda Collector's"},
		{"trademark", "Sonic™ The Hedgehog®", "Sonic The Hedgehog"},
		{"quotes and spacing", `  "Final  Fantasy  VII"  `, "Final Fantasy VII"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTitle(tt.input); got != tt.want {
				t.Errorf("CleanTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	item := &models.GameItem{
		Platform: "SNES",
		Title:    "Super Mario World",
		Region:   models.RegionPAL,
		HasBox:   models.FlagYes,
		HasManual: models.FlagYes,
		HasGame:  models.FlagYes,
	}

	query := BuildQuery(item, models.LangAny, true)

	for _, want := range []string{"Super Mario World", "PAL", "CIB"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}

	noPkg := BuildQuery(item, models.LangAny, false)
	if strings.Contains(noPkg, "CIB") {
		t.Errorf("query without packaging should not contain CIB: %q", noPkg)
	}
}

func TestBuildQueryLanguage(t *testing.T) {
	item := &models.GameItem{Platform: "SNES", Title: "Zelda", Region: models.RegionPAL, HasGame: models.FlagYes}

	query := BuildQuery(item, models.LangFR, false)
	if !strings.Contains(query, "French") {
		t.Errorf("query %q missing language keywords", query)
	}
}

func TestNegativeKeywords(t *testing.T) {
	item := &models.GameItem{Platform: "SNES", Title: "Zelda", Region: models.RegionPAL}

	negatives := NegativeKeywords(item, models.LangAny, false, false, false)
	joined := strings.Join(negatives, " ")

	for _, want := range []string{"NTSC-J", "USA", "lot", "bundle", "box only"} {
		if !strings.Contains(joined, want) {
			t.Errorf("negatives %v missing %q", negatives, want)
		}
	}

	allowed := NegativeKeywords(item, models.LangAny, false, true, true)
	joinedAllowed := strings.Join(allowed, " ")
	if strings.Contains(joinedAllowed, "lot") || strings.Contains(joinedAllowed, "box only") {
		t.Errorf("allowed lots/box-only should drop those exclusions: %v", allowed)
	}
}

func TestNegativeKeywordsStrictLanguage(t *testing.T) {
	item := &models.GameItem{Platform: "SNES", Title: "Zelda", Region: models.RegionPAL}

	loose := NegativeKeywords(item, models.LangFR, false, false, false)
	if strings.Contains(strings.Join(loose, " "), "German") {
		t.Errorf("non-strict language must not exclude other languages: %v", loose)
	}

	strict := NegativeKeywords(item, models.LangFR, true, false, false)
	if !strings.Contains(strings.Join(strict, " "), "German") {
		t.Errorf("strict language should exclude other languages: %v", strict)
	}
}

func TestFilterListing(t *testing.T) {
	palTarget := &models.GameItem{Platform: "SNES", Title: "Super Mario World", Region: models.RegionPAL}

	tests := []struct {
		name       string
		title      string
		wantPass   bool
		wantReason string
	}{
		{"usa rejected for pal", "Game USA Version", false, "region"},
		{"pal complete passes", "Super Mario World PAL Complete", true, ""},
		{"europe marker passes", "Super Mario World Europe Boxed", true, ""},
		{"uk version passes via loose marker", "Super Mario World UK Version", true, ""},
		{"lot rejected", "Super Mario World PAL lot of 5 games", false, "lot"},
		{"box only rejected", "Super Mario World PAL box only", false, "box"},
		{"japan rejected", "Super Mario World Japan import", false, "region"},
		{"conflicting markers pass via loose fallback", "Super Mario World PAL Japan import", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass, reason := FilterListing(tt.title, palTarget, true, false, false)
			if pass != tt.wantPass {
				t.Fatalf("FilterListing(%q) = %v, want %v (reason %q)", tt.title, pass, tt.wantPass, reason)
			}
			if !pass && !strings.Contains(strings.ToLower(reason), tt.wantReason) {
				t.Errorf("reason %q does not mention %q", reason, tt.wantReason)
			}
		})
	}
}

func TestTitleMatchesRegionLoose(t *testing.T) {
	// Without strict mode there is no region check at all, even for
	// titles carrying a conflicting region marker.
	if !TitleMatchesRegion("Super Mario World boxed", models.RegionPAL, false) {
		t.Error("unmarked title should pass without strict mode")
	}
	if !TitleMatchesRegion("Super Mario World Japan Import", models.RegionPAL, false) {
		t.Error("conflicting title should pass without strict mode")
	}
	if TitleMatchesRegion("Super Mario World boxed", models.RegionPAL, true) {
		t.Error("unmarked title should fail strict region check")
	}
	// Word boundaries: "usa" inside a longer word must not count.
	if TitleMatchesRegion("Jusant boxed", models.RegionNTSCU, true) {
		t.Error("substring of a longer word must not count as a region marker")
	}
	if !TitleMatchesRegion("Super Mario World PAL mint status", models.RegionPAL, true) {
		t.Error("pal marker should pass strict check despite unrelated words")
	}
}

func TestFilterListingLooseRegion(t *testing.T) {
	palTarget := &models.GameItem{Platform: "SNES", Title: "Super Mario World", Region: models.RegionPAL}

	pass, reason := FilterListing("Super Mario World Japan Import", palTarget, false, false, false)
	if !pass {
		t.Errorf("region filter must be off without strict mode, got rejection %q", reason)
	}
}
