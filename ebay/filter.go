package ebay

import (
	"fmt"
	"strings"

	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
)

var lotMarkers = []string{"lot", "bundle", "job lot", "x games", "games bundle", "collection of", "bulk"}

// IsLotOrBundle reports whether a listing title looks like a multi-item
// sale rather than a single game.
func IsLotOrBundle(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range lotMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var boxOnlyMarkers = []string{"box only", "case only", "manual only", "empty box", "no game", "box & manual only"}

// IsBoxOrManualOnly reports whether a listing sells packaging without
// the game itself.
func IsBoxOrManualOnly(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range boxOnlyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Loose markers: any one of these in the title counts as a claim of
// that region.
var regionLooseMarkers = map[models.Region][]string{
	models.RegionPAL:   {"pal", "european", "europe", "uk version", "eur"},
	models.RegionNTSCU: {"ntsc", "usa", "us version", "north america", "american"},
	models.RegionNTSCJ: {"ntsc-j", "japan", "japanese", "jap", "jp"},
}

// Strict markers: the unambiguous subset used for conflict detection.
// "ntsc" alone is ambiguous between NTSC-U and NTSC-J, so it only
// appears in the loose sets.
var regionStrictMarkers = map[models.Region][]string{
	models.RegionPAL:   {"pal", "european", "europe"},
	models.RegionNTSCU: {"ntsc-u", "usa", "us version", "american"},
	models.RegionNTSCJ: {"ntsc-j", "japan", "japanese", "jap"},
}

func titleHasMarker(lower string, markers []string) bool {
	for _, kw := range markers {
		if containsWord(lower, kw) {
			return true
		}
	}
	return false
}

// titleContainsRegionStrict requires a strict marker of the wanted
// region and no strict marker of any other region.
func titleContainsRegionStrict(lower string, region models.Region) bool {
	if !titleHasMarker(lower, regionStrictMarkers[region]) {
		return false
	}
	for other, markers := range regionStrictMarkers {
		if other == region {
			continue
		}
		if titleHasMarker(lower, markers) {
			return false
		}
	}
	return true
}

// TitleMatchesRegion checks a listing title against the wanted region.
// Without strict mode there is no region check at all. With strict mode
// a title passes on a non-conflicting strict marker, or failing that on
// any loose marker of the wanted region.
func TitleMatchesRegion(title string, region models.Region, strict bool) bool {
	if !strict {
		return true
	}
	lower := strings.ToLower(title)
	if titleContainsRegionStrict(lower, region) {
		return true
	}
	return titleHasMarker(lower, regionLooseMarkers[region])
}

// containsWord matches kw in s on word boundaries so that "us" does not
// match inside "status" or "plus".
func containsWord(s, kw string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordChar(s[start-1])
		afterOK := end == len(s) || !isWordChar(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// FilterListing decides whether a sold listing is usable for the item.
// It returns false with a human-readable reason on rejection.
func FilterListing(title string, item *models.GameItem, strictRegion, allowLots, allowBoxOnly bool) (bool, string) {
	if !allowLots && IsLotOrBundle(title) {
		return false, "lot or bundle listing"
	}
	if !allowBoxOnly && IsBoxOrManualOnly(title) {
		return false, "box or manual only listing"
	}
	if !TitleMatchesRegion(title, item.Region, strictRegion) {
		return false, fmt.Sprintf("title does not match region %s", item.Region)
	}
	return true, ""
}
