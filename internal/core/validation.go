package core

// validation.go turns raw sheet rows into ParsedRows.
//
// Parsing happens at two levels:
//  1. Header mapping: locates each known column by header text, in any order
//  2. Row parsing: coerces each cell to its ColumnSpec type
//
// Parsing is lenient. Unknown headers are ignored, missing optional columns
// read as Null, and a cell that fails coercion becomes a ParseError on the
// row instead of aborting the document. Business rules (required fields,
// ranges, references) are checked later by the diff.

import (
	"fmt"
	"strings"
)

// HeaderIndex maps a column key to its zero-based position on a sheet.
type HeaderIndex map[string]int

// MapHeaders matches header cells against the kind's columns. Matching is
// case-insensitive on both the header text and the column key. The id column
// is always taken from position 0 when no header names it.
func MapHeaders(def KindDefinition, headers []string) (HeaderIndex, []string) {
	byName := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.ToLower(CleanCell(h))
		if h == "" {
			continue
		}
		if _, dup := byName[h]; !dup {
			byName[h] = i
		}
	}

	idx := make(HeaderIndex, len(def.Columns))
	var missing []string
	for _, col := range def.Columns {
		pos, ok := byName[strings.ToLower(col.Header)]
		if !ok {
			pos, ok = byName[strings.ToLower(col.Key)]
		}
		if !ok && col.Key == IDColumn {
			pos, ok = 0, true
		}
		if !ok {
			if col.Required {
				missing = append(missing, col.Header)
			}
			continue
		}
		idx[col.Key] = pos
	}
	return idx, missing
}

// IsBlankRow reports whether every cell of a row is empty after cleanup.
func IsBlankRow(cells []string) bool {
	for _, c := range cells {
		if CleanCell(c) != "" {
			return false
		}
	}
	return true
}

// ParseRow coerces the cells of one data row. rowNumber is the 1-based sheet
// row, so the first data row is 2.
func ParseRow(def KindDefinition, idx HeaderIndex, rowNumber int, cells []string) ParsedRow {
	row := ParsedRow{
		Sheet:     def.Sheet,
		RowNumber: rowNumber,
		Kind:      def.Kind,
		Fields:    make(map[string]Value, len(def.Columns)),
	}

	for _, col := range def.Columns {
		pos, ok := idx[col.Key]
		raw := ""
		if ok && pos < len(cells) {
			raw = cells[pos]
		}

		if col.Key == IDColumn {
			row.ID = CleanCell(raw)
			continue
		}

		v, err := Coerce(col, raw)
		if err != nil {
			row.ParseErrors = append(row.ParseErrors, ParseError{
				Sheet:   def.Sheet,
				Row:     rowNumber,
				Column:  col.Header,
				Value:   CleanCell(raw),
				Message: err.Error(),
			})
			continue
		}
		row.Fields[col.Key] = v
	}

	return row
}

// MissingColumnsError reports required columns absent from a sheet header.
func MissingColumnsError(sheet string, missing []string) ParseError {
	return ParseError{
		Sheet:   sheet,
		Row:     1,
		Message: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
	}
}
