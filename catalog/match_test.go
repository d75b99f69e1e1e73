package catalog

import (
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
		{"noise parenthetical", "Metroid Prime (Platinum Edition)", "Metroid Prime"},
		{"trailing parenthetical", "Zelda (PAL)", "Zelda"},
		{"special characters", "Pokémon: Red & Blue!", "Pokémon Red Blue"},
		{"apostrophe survives", "Luigi's Mansion", "Luigi's Mansion"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTitle(tt.input); got != tt.want {
				t.Errorf("CleanTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		name   string
		search string
		result string
		want   float64
	}{
		{"exact", "Super Mario World", "Super Mario World", 1.0},
		{"case insensitive", "super mario world", "SUPER MARIO WORLD", 1.0},
		{"no overlap", "Super Mario World", "Final Fantasy VII", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TitleSimilarity(tt.search, tt.result); got != tt.want {
				t.Errorf("TitleSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTitleSimilarityContainment(t *testing.T) {
	score := TitleSimilarity("Super Mario World", "Super Mario World 2")
	if score < 0.8 || score > 1.0 {
		t.Errorf("containment score %v outside [0.8, 1.0]", score)
	}

	// Containment is symmetric.
	reverse := TitleSimilarity("Super Mario World 2", "Super Mario World")
	if score != reverse {
		t.Errorf("similarity not symmetric: %v vs %v", score, reverse)
	}
}

func TestTitleSimilarityWordOverlapCapped(t *testing.T) {
	score := TitleSimilarity("Mario Kart Racing", "Mario Racing Deluxe Championship")
	if score <= 0 || score > 0.7 {
		t.Errorf("word overlap score %v outside (0, 0.7]", score)
	}
}

func TestExtractPlatformFromURL(t *testing.T) {
	tests := []struct {
		url          string
		wantPlatform string
		wantRegion   string
	}{
		{"https://www.pricecharting.com/game/pal-gameboy/super-mario-land-2", "gameboy", "pal"},
		{"/game/gameboy/super-mario-land-2", "gameboy", ""},
		{"/game/jp-nintendo-3ds/luigi's-mansion-2", "nintendo-3ds", "jp"},
		{"/search-products?q=mario", "", ""},
	}

	for _, tt := range tests {
		platform, region := ExtractPlatformFromURL(tt.url)
		if platform != tt.wantPlatform || region != tt.wantRegion {
			t.Errorf("ExtractPlatformFromURL(%q) = (%q, %q), want (%q, %q)",
				tt.url, platform, region, tt.wantPlatform, tt.wantRegion)
		}
	}
}

func TestIsGamePage(t *testing.T) {
	if !IsGamePage("https://www.pricecharting.com/game/super-nintendo/super-mario-world") {
		t.Error("game URL should be detected as a game page")
	}
	if IsGamePage("https://www.pricecharting.com/search-products?type=prices&q=mario") {
		t.Error("search URL must not be a game page")
	}
}

func TestPlatformSlug(t *testing.T) {
	tests := []struct {
		platform string
		want     string
	}{
		{"Game Boy", "gameboy"},
		{"SNES", "super-nintendo"},
		{"Mega Drive", "sega-genesis"},
		{"Super Nintendo", "super-nintendo"},
		{"Unknown System", "unknown-system"},
	}
	for _, tt := range tests {
		if got := PlatformSlug(tt.platform); got != tt.want {
			t.Errorf("PlatformSlug(%q) = %q, want %q", tt.platform, got, tt.want)
		}
	}
}

func TestRegionToken(t *testing.T) {
	if got := RegionToken(models.RegionPAL); got != "PAL" {
		t.Errorf("PAL token = %q", got)
	}
	if got := RegionToken(models.RegionNTSCU); got != "" {
		t.Errorf("NTSC-U should map to the default site, got %q", got)
	}
	if got := RegionToken(models.RegionNTSCJ); got != "JP" {
		t.Errorf("NTSC-J token = %q", got)
	}
}

func TestBestCandidatePrefersRegionMatch(t *testing.T) {
	candidates := []Candidate{
		ScoreCandidate("Super Mario World", "super-nintendo", "pal",
			"/game/super-nintendo/super-mario-world", "Super Mario World", "Super Nintendo"),
		ScoreCandidate("Super Mario World", "super-nintendo", "pal",
			"/game/pal-super-nintendo/super-mario-world", "Super Mario World", "PAL Super Nintendo"),
	}

	best, ok := BestCandidate(candidates)
	if !ok {
		t.Fatal("expected a winning candidate")
	}
	if best.URL != "/game/pal-super-nintendo/super-mario-world" {
		t.Errorf("best URL = %q, want the PAL page", best.URL)
	}
}

func TestBestCandidateRejectsWeakTitle(t *testing.T) {
	candidates := []Candidate{
		ScoreCandidate("Super Mario World", "super-nintendo", "pal",
			"/game/pal-super-nintendo/completely-different-game", "Completely Different Game", "PAL Super Nintendo"),
	}

	if _, ok := BestCandidate(candidates); ok {
		t.Error("candidate with zero title similarity should be rejected")
	}
}

func TestBestCandidateEmpty(t *testing.T) {
	if _, ok := BestCandidate(nil); ok {
		t.Error("no candidates should yield no match")
	}
}
