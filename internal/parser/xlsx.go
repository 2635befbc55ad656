package parser

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/conorfennell/tango/internal/domain"
	"github.com/xuri/excelize/v2"
)

// XLSXOptions describes where the card fields live in a spreadsheet.
type XLSXOptions struct {
	Sheet         string // empty means the first sheet
	WordColumn    string
	ReadingColumn string
	MeaningColumn string
	ExampleColumn string
	HeaderRows    int
}

// DefaultXLSXOptions expects word, reading, meaning and example in columns
// A to D below a single header row.
func DefaultXLSXOptions() XLSXOptions {
	return XLSXOptions{
		WordColumn:    "A",
		ReadingColumn: "B",
		MeaningColumn: "C",
		ExampleColumn: "D",
		HeaderRows:    1,
	}
}

// ParseXLSX extracts cards from a spreadsheet. Rows without a word are skipped.
func ParseXLSX(r io.Reader, opts XLSXOptions) ([]domain.Card, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	sheet := opts.Sheet
	if sheet == "" {
		if len(sheets) == 0 {
			return nil, fmt.Errorf("spreadsheet has no sheets")
		}
		sheet = sheets[0]
	} else if !slices.Contains(sheets, sheet) {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}

	cols, err := columnIndexes(opts.WordColumn, opts.ReadingColumn, opts.MeaningColumn, opts.ExampleColumn)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheet, err)
	}

	var cards []domain.Card
	for i, row := range rows {
		if i < opts.HeaderRows {
			continue
		}
		cell := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		card := domain.Card{
			Word:    cell(cols[0]),
			Reading: cell(cols[1]),
			Meaning: cell(cols[2]),
			Example: cell(cols[3]),
		}
		if card.Word == "" {
			continue
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// columnIndexes converts column letters to zero based indexes. An empty
// column name maps to -1, meaning the field is not present.
func columnIndexes(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		if name == "" {
			idx[i] = -1
			continue
		}
		n, err := excelize.ColumnNameToNumber(name)
		if err != nil {
			return nil, fmt.Errorf("invalid column %q: %w", name, err)
		}
		idx[i] = n - 1
	}
	return idx, nil
}
