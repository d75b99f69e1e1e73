package csvio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

const frenchCSV = `Plateforme;Titre;Boîte;Manuel;Jeu;Remarques;Estimation (€)
SNES;Super Mario World;Oui;Oui;Oui;très bon état;12,50
Game Boy;Tetris;Non;Non;Oui;;
NES;Boîte vide;Oui;Non;Non;;
`

const englishCSV = `Platform,Title,Box,Manual,Game,Region
SNES,Super Mario World,Yes,Yes,Yes,PAL
N64,GoldenEye 007,No,No,Yes,NTSC-U
`

func TestReadFrench(t *testing.T) {
	path := writeFixture(t, frenchCSV)

	f, err := Read(path, models.RegionPAL, LangAuto)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if f.Language != LangFR {
		t.Errorf("Language = %q, want fr", f.Language)
	}
	if f.Delimiter != ';' {
		t.Errorf("Delimiter = %q, want ;", f.Delimiter)
	}
	if len(f.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(f.Items))
	}

	mario := f.Items[0]
	if mario.Title != "Super Mario World" || mario.Platform != "SNES" {
		t.Errorf("unexpected first item: %+v", mario)
	}
	if mario.HasBox != "Y" || mario.HasManual != "Y" || mario.HasGame != "Y" {
		t.Errorf("flags = %q/%q/%q, want Y/Y/Y", mario.HasBox, mario.HasManual, mario.HasGame)
	}
	if mario.LocalEstimate == nil || mario.LocalEstimate.StringFixed(2) != "12.50" {
		t.Errorf("LocalEstimate = %v, want 12.50 from French decimal", mario.LocalEstimate)
	}
	if mario.Region != models.RegionPAL {
		t.Errorf("Region = %q, want default PAL", mario.Region)
	}

	boxOnly := f.Items[2]
	if boxOnly.HasGame != "N" || boxOnly.Processable() {
		t.Error("third row should be a non-processable accessory")
	}
}

func TestReadEnglish(t *testing.T) {
	path := writeFixture(t, englishCSV)

	f, err := Read(path, models.RegionPAL, LangAuto)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if f.Language != LangEN {
		t.Errorf("Language = %q, want en", f.Language)
	}
	if f.Delimiter != ',' {
		t.Errorf("Delimiter = %q, want comma", f.Delimiter)
	}
	if f.Items[1].Region != models.RegionNTSCU {
		t.Errorf("Region = %q, want NTSC-U from file", f.Items[1].Region)
	}
	if f.Items[1].Platform != "Nintendo 64" {
		t.Errorf("Platform = %q, want normalized Nintendo 64", f.Items[1].Platform)
	}
}

func TestRoundTripPreservesColumns(t *testing.T) {
	path := writeFixture(t, frenchCSV)

	f, err := Read(path, models.RegionPAL, LangAuto)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	est := decimal.RequireFromString("41.55")
	f.Items[0].OnlineEstimate = &est
	f.Items[0].Details = "### Super Mario World (SNES) ###"

	outPath := filepath.Join(t.TempDir(), "out.csv")
	if err := f.Write(outPath); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	out := string(data)

	// Original columns survive in order, enrichment columns appended.
	if !strings.HasPrefix(out, "Plateforme;Titre;Boîte;Manuel;Jeu;Remarques;Estimation (€);Estimation Online;Détail Calcul") {
		t.Errorf("unexpected header line: %q", strings.SplitN(out, "\n", 2)[0])
	}
	if !strings.Contains(out, "41,55") {
		t.Error("French output should use a decimal comma for the estimate")
	}
	if !strings.Contains(out, "très bon état") {
		t.Error("untouched columns must survive the round trip")
	}

	reread, err := Read(outPath, models.RegionPAL, LangAuto)
	if err != nil {
		t.Fatalf("re-reading output: %v", err)
	}
	if reread.Items[0].OnlineEstimate == nil || reread.Items[0].OnlineEstimate.StringFixed(2) != "41.55" {
		t.Errorf("OnlineEstimate after round trip = %v", reread.Items[0].OnlineEstimate)
	}
}

func TestWriteIntoExistingOutputColumns(t *testing.T) {
	path := writeFixture(t, "Platform,Title,Game,Online Estimate,Calculation Details\nSNES,Zelda,Yes,,\n")

	f, err := Read(path, models.RegionPAL, LangAuto)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	est := decimal.RequireFromString("10")
	f.Items[0].OnlineEstimate = &est
	f.Items[0].Details = "some details"

	outPath := filepath.Join(t.TempDir(), "out.csv")
	if err := f.Write(outPath); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, _ := os.ReadFile(outPath)
	header := strings.SplitN(string(data), "\n", 2)[0]
	if strings.Count(header, "Online Estimate") != 1 {
		t.Errorf("existing output column must not be duplicated: %q", header)
	}
	if !strings.Contains(string(data), "10.00") {
		t.Error("estimate should land in the existing column")
	}
}

func TestDetectLanguage(t *testing.T) {
	if got := DetectLanguage([]string{"Plateforme", "Titre"}); got != LangFR {
		t.Errorf("French headers detected as %q", got)
	}
	if got := DetectLanguage([]string{"Platform", "Title"}); got != LangEN {
		t.Errorf("English headers detected as %q", got)
	}
	// "Type" exists in both vocabularies; default is English.
	if got := DetectLanguage([]string{"Type"}); got != LangEN {
		t.Errorf("ambiguous headers detected as %q, want en", got)
	}
}

func TestNormalizeBool(t *testing.T) {
	tests := []struct {
		value string
		lang  Language
		want  string
	}{
		{"Oui", LangFR, "Y"},
		{"non", LangFR, "N"},
		{"1", LangFR, "Y"},
		{"Yes", LangEN, "Y"},
		{"no", LangEN, "N"},
		{"0", LangEN, "N"},
		{"true", LangEN, "Y"},
		{"N/A", LangEN, ""},
		{"", LangFR, ""},
		{"maybe", LangEN, ""},
		// Cross-language fallback.
		{"oui", LangEN, "Y"},
		{"yes", LangFR, "Y"},
	}
	for _, tt := range tests {
		if got := NormalizeBool(tt.value, tt.lang); got != tt.want {
			t.Errorf("NormalizeBool(%q, %s) = %q, want %q", tt.value, tt.lang, got, tt.want)
		}
	}
}

func TestDenormalizeBool(t *testing.T) {
	if got := DenormalizeBool("Y", LangFR); got != "Oui" {
		t.Errorf("got %q, want Oui", got)
	}
	if got := DenormalizeBool("N", LangEN); got != "No" {
		t.Errorf("got %q, want No", got)
	}
	if got := DenormalizeBool("", LangEN); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"12,50", "12.50"},
		{"1,234.56", "1234.56"},
		{"€ 42.00", "42.00"},
		{"1 234,56", "1234.56"},
	}
	for _, tt := range tests {
		got := ParseDecimal(tt.input)
		if got == nil || got.StringFixed(2) != tt.want {
			t.Errorf("ParseDecimal(%q) = %v, want %s", tt.input, got, tt.want)
		}
	}
	if ParseDecimal("") != nil || ParseDecimal("n/a") != nil {
		t.Error("unparseable input should yield nil")
	}
}

func TestFormatDecimal(t *testing.T) {
	d := decimal.RequireFromString("41.55")
	if got := FormatDecimal(&d, LangFR); got != "41,55" {
		t.Errorf("FR format = %q", got)
	}
	if got := FormatDecimal(&d, LangEN); got != "41.55" {
		t.Errorf("EN format = %q", got)
	}
	if got := FormatDecimal(nil, LangEN); got != "" {
		t.Errorf("nil format = %q", got)
	}
}
