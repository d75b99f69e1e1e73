package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
)

// File is a parsed spreadsheet: the items plus everything needed to
// write them back without disturbing untouched columns.
type File struct {
	Items     []*models.GameItem
	Headers   []string
	Delimiter rune
	Language  Language
}

// DetectDelimiter picks the most frequent candidate delimiter in the
// header line, defaulting to a comma.
func DetectDelimiter(headerLine string) rune {
	best := ','
	bestCount := strings.Count(headerLine, ",")
	for _, cand := range []rune{';', '\t', '|'} {
		if n := strings.Count(headerLine, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

// Read parses a collection CSV into items. lang may be LangAuto to
// detect the header vocabulary from the file itself. defaultRegion is
// used for rows without a region column or value.
func Read(path string, defaultRegion models.Region, lang Language) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	firstLine, _, _ := strings.Cut(text, "\n")
	delimiter := DetectDelimiter(firstLine)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	headers := records[0]
	if lang == LangAuto || lang == "" {
		lang = DetectLanguage(headers)
	}
	colMap := columnMap(lang)

	f := &File{Headers: headers, Delimiter: delimiter, Language: lang}

	for rowIdx, record := range records[1:] {
		raw := make(map[string]string, len(headers))
		mapped := make(map[string]string)
		for i, header := range headers {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			raw[header] = value
			if key, ok := colMap[header]; ok {
				mapped[key] = value
			}
		}

		region := defaultRegion
		if r := strings.TrimSpace(mapped[fieldRegion]); r != "" {
			region = models.ParseRegion(r)
		}

		item := &models.GameItem{
			Platform:       models.NormalizePlatform(mapped[fieldPlatform]),
			Title:          mapped[fieldTitle],
			ItemType:       mapped[fieldItemType],
			ConditionText:  mapped[fieldCondition],
			Rarity:         mapped[fieldRarity],
			LocalEstimate:  ParseDecimal(mapped[fieldLocalEstimate]),
			HasBox:         NormalizeBool(mapped[fieldHasBox], lang),
			HasManual:      NormalizeBool(mapped[fieldHasManual], lang),
			HasInsert:      NormalizeBool(mapped[fieldHasInsert], lang),
			HasGame:        NormalizeBool(mapped[fieldHasGame], lang),
			Notes:          mapped[fieldNotes],
			Region:         region,
			OnlineEstimate: ParseDecimal(mapped[fieldOnlineEstimate]),
			Details:        mapped[fieldDetails],
			RowIndex:       rowIdx,
			Raw:            raw,
		}
		f.Items = append(f.Items, item)
	}

	return f, nil
}

// outputAliases covers both vocabularies so enrichment lands in the
// file's existing column whatever language it uses.
var outputAliases = map[string][]string{
	fieldOnlineEstimate: {"Estimation Online", "Online Estimate"},
	fieldDetails:        {"Détail Calcul", "Calculation Details"},
}

// Write writes the items back out, preserving original column order and
// untouched values, and appending the enrichment columns when the input
// did not already carry them.
func (f *File) Write(path string) error {
	headers := append([]string(nil), f.Headers...)
	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[h] = true
	}

	hdrMap := headerMap(f.Language)
	for _, key := range []string{fieldOnlineEstimate, fieldDetails} {
		if !hasAnyAlias(have, outputAliases[key]) {
			headers = append(headers, hdrMap[key])
			have[hdrMap[key]] = true
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()

	writer := csv.NewWriter(out)
	writer.Comma = f.Delimiter

	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, item := range f.Items {
		row := make(map[string]string, len(headers))
		for k, v := range item.Raw {
			row[k] = v
		}

		if item.OnlineEstimate != nil {
			setAliased(row, have, outputAliases[fieldOnlineEstimate],
				FormatDecimal(item.OnlineEstimate, f.Language))
		}
		if item.Details != "" {
			setAliased(row, have, outputAliases[fieldDetails], item.Details)
		}

		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = row[h]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", item.RowIndex, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return nil
}

func hasAnyAlias(have map[string]bool, aliases []string) bool {
	for _, a := range aliases {
		if have[a] {
			return true
		}
	}
	return false
}

func setAliased(row map[string]string, have map[string]bool, aliases []string, value string) {
	for _, a := range aliases {
		if have[a] {
			row[a] = value
		}
	}
}
