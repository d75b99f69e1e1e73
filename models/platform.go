package models

import "strings"

// platformNormalization maps loose platform spellings (including French
// collection exports) to canonical English names.
var platformNormalization = map[string]string{
	// Nintendo
	"nes": "NES", "nintendo": "NES",
	"famicom":           "Famicom",
	"snes":              "SNES",
	"super nintendo":    "SNES",
	"super nes":         "SNES",
	"super famicom":     "Super Famicom",
	"n64":               "Nintendo 64",
	"nintendo 64":       "Nintendo 64",
	"gamecube":          "GameCube",
	"gc":                "GameCube",
	"wii":               "Wii",
	"wii u":             "Wii U",
	"switch":            "Nintendo Switch",
	"nintendo switch":   "Nintendo Switch",
	"game boy":          "Game Boy",
	"gameboy":           "Game Boy",
	"gb":                "Game Boy",
	"game boy color":    "Game Boy Color",
	"gameboy color":     "Game Boy Color",
	"gbc":               "Game Boy Color",
	"game boy advance":  "Game Boy Advance",
	"gameboy advance":   "Game Boy Advance",
	"gba":               "Game Boy Advance",
	"ds":                "Nintendo DS",
	"nintendo ds":       "Nintendo DS",
	"3ds":               "Nintendo 3DS",
	"nintendo 3ds":      "Nintendo 3DS",
	// Sega
	"master system":  "Master System",
	"sms":            "Master System",
	"mega drive":     "Mega Drive",
	"megadrive":      "Mega Drive",
	"genesis":        "Genesis",
	"sega genesis":   "Genesis",
	"saturn":         "Sega Saturn",
	"sega saturn":    "Sega Saturn",
	"dreamcast":      "Dreamcast",
	"sega dreamcast": "Dreamcast",
	"game gear":      "Game Gear",
	"gamegear":       "Game Gear",
	"gg":             "Game Gear",
	// Sony
	"playstation":          "PlayStation",
	"ps1":                  "PlayStation",
	"psx":                  "PlayStation",
	"ps one":               "PlayStation",
	"playstation 2":        "PlayStation 2",
	"ps2":                  "PlayStation 2",
	"playstation 3":        "PlayStation 3",
	"ps3":                  "PlayStation 3",
	"playstation 4":        "PlayStation 4",
	"ps4":                  "PlayStation 4",
	"playstation 5":        "PlayStation 5",
	"ps5":                  "PlayStation 5",
	"psp":                  "PSP",
	"playstation portable": "PSP",
	"ps vita":              "PS Vita",
	"vita":                 "PS Vita",
	// Microsoft
	"xbox":          "Xbox",
	"xbox 360":      "Xbox 360",
	"x360":          "Xbox 360",
	"xbox one":      "Xbox One",
	"xbone":         "Xbox One",
	"xbox series x": "Xbox Series X",
	"xbox series s": "Xbox Series S",
	// Other
	"neo geo":       "Neo Geo",
	"neogeo":        "Neo Geo",
	"neo geo aes":   "Neo Geo AES",
	"neo geo cd":    "Neo Geo CD",
	"turbografx-16": "TurboGrafx-16",
	"turbografx":    "TurboGrafx-16",
	"pc engine":     "PC Engine",
	"atari 2600":    "Atari 2600",
	"atari":         "Atari 2600",
	"atari 7800":    "Atari 7800",
	"atari jaguar":  "Atari Jaguar",
	"jaguar":        "Atari Jaguar",
	"atari lynx":    "Atari Lynx",
	"lynx":          "Atari Lynx",
	"3do":           "3DO",
	"colecovision":  "ColecoVision",
	"intellivision": "Intellivision",
}

// NormalizePlatform maps a platform name to its canonical English form.
// Unknown names pass through trimmed.
func NormalizePlatform(platform string) string {
	if platform == "" {
		return ""
	}
	if canonical, ok := platformNormalization[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return canonical
	}
	return strings.TrimSpace(platform)
}

// PlatformEbayKeywords lists marketplace search synonyms per platform.
var PlatformEbayKeywords = map[string][]string{
	"NES":              {"NES", "Nintendo Entertainment System"},
	"Famicom":          {"Famicom", "FC"},
	"SNES":             {"SNES", "Super Nintendo", "Super NES"},
	"Super Famicom":    {"Super Famicom", "SFC"},
	"Nintendo 64":      {"N64", "Nintendo 64"},
	"GameCube":         {"GameCube", "GC", "NGC"},
	"Wii":              {"Wii", "Nintendo Wii"},
	"Wii U":            {"Wii U"},
	"Nintendo Switch":  {"Switch", "Nintendo Switch"},
	"Game Boy":         {"Game Boy", "GameBoy", "GB"},
	"Game Boy Color":   {"Game Boy Color", "GameBoy Color", "GBC"},
	"Game Boy Advance": {"Game Boy Advance", "GameBoy Advance", "GBA"},
	"Nintendo DS":      {"DS", "Nintendo DS", "NDS"},
	"Nintendo 3DS":     {"3DS", "Nintendo 3DS"},
	"Master System":    {"Master System", "SMS"},
	"Mega Drive":       {"Mega Drive", "Megadrive"},
	"Genesis":          {"Genesis", "Sega Genesis"},
	"Sega Saturn":      {"Saturn", "Sega Saturn"},
	"Dreamcast":        {"Dreamcast", "DC"},
	"Game Gear":        {"Game Gear", "GameGear", "GG"},
	"PlayStation":      {"PlayStation", "PS1", "PSX", "PS One"},
	"PlayStation 2":    {"PlayStation 2", "PS2"},
	"PlayStation 3":    {"PlayStation 3", "PS3"},
	"PlayStation 4":    {"PlayStation 4", "PS4"},
	"PlayStation 5":    {"PlayStation 5", "PS5"},
	"PSP":              {"PSP", "PlayStation Portable"},
	"PS Vita":          {"PS Vita", "Vita", "PlayStation Vita"},
	"Xbox":             {"Xbox", "Original Xbox"},
	"Xbox 360":         {"Xbox 360", "X360"},
	"Xbox One":         {"Xbox One", "Xbone"},
}

// CartridgePlatforms contains platforms whose loose form is a cartridge.
// Affects packaging keywords ("cartridge" vs "disc").
var CartridgePlatforms = map[string]bool{
	"NES": true, "Famicom": true, "SNES": true, "Super Famicom": true,
	"Nintendo 64": true, "Game Boy": true, "Game Boy Color": true,
	"Game Boy Advance": true, "Nintendo DS": true, "Nintendo 3DS": true,
	"Master System": true, "Mega Drive": true, "Genesis": true,
	"Game Gear": true, "Atari 2600": true, "Atari 7800": true,
	"Atari Jaguar": true, "Neo Geo AES": true, "TurboGrafx-16": true,
	"PC Engine": true,
}
