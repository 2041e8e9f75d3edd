// Package sheet converts between xlsx workbooks and core.ParsedDocument.
//
// The reader is permissive: cells that fail coercion become row-scoped parse
// errors, blank rows are skipped and unknown sheets are ignored. Only an
// unreadable file or a workbook without an Info row is fatal.
package sheet

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// Read parses a workbook.
func Read(r io.Reader) (*core.ParsedDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	return ReadBytes(data)
}

// ReadBytes parses a workbook held in memory.
func ReadBytes(data []byte) (*core.ParsedDocument, error) {
	if len(data) == 0 {
		return nil, core.ErrEmptyFile
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidDocument, err)
	}
	defer f.Close()

	doc := core.NewParsedDocument()
	seen := make(map[core.EntityKind]string)
	details := detailColumns()
	type pending struct {
		col  core.ColumnSpec
		rows [][]string
	}
	var folds []pending

	for _, name := range f.GetSheetList() {
		if col, ok := details[strings.ToLower(name)]; ok {
			delete(details, strings.ToLower(name))
			rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
			if err != nil {
				return nil, fmt.Errorf("%w: sheet %s: %v", core.ErrInvalidDocument, name, err)
			}
			folds = append(folds, pending{col: col, rows: rows})
			continue
		}

		def, ok := core.BySheet(name)
		if !ok {
			slog.Debug("ignoring unknown sheet", "sheet", name)
			continue
		}
		if first, dup := seen[def.Kind]; dup {
			doc.Errors = append(doc.Errors, core.ParseError{
				Sheet:   name,
				Row:     1,
				Message: fmt.Sprintf("duplicate sheet, only %q is read", first),
			})
			continue
		}
		seen[def.Kind] = name

		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %s: %v", core.ErrInvalidDocument, name, err)
		}
		readSheet(doc, def, rows)
	}

	if _, ok := doc.Info(); !ok {
		return nil, core.ErrMissingInfoSheet
	}
	// Detail sheets need the Info row, which may come later in the workbook.
	for _, p := range folds {
		readDetail(doc, p.col, p.rows)
	}
	return doc, nil
}

// readSheet parses one sheet into doc. Row 1 is the header.
func readSheet(doc *core.ParsedDocument, def core.KindDefinition, rows [][]string) {
	doc.Present[def.Kind] = true
	if len(rows) == 0 {
		return
	}

	idx, missing := core.MapHeaders(def, rows[0])
	if len(missing) > 0 {
		pe := core.MissingColumnsError(def.Sheet, missing)
		doc.Errors = append(doc.Errors, pe)
	}

	parsed := make([]core.ParsedRow, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if core.IsBlankRow(cells) {
			continue
		}
		rowNumber := i + 2
		if def.Kind == core.KindTopLevel && len(parsed) == 1 {
			doc.Errors = append(doc.Errors, core.ParseError{
				Sheet:   def.Sheet,
				Row:     rowNumber,
				Message: "Info sheet holds a single entity, extra row ignored",
			})
			continue
		}
		parsed = append(parsed, core.ParseRow(def, idx, rowNumber, cells))
	}
	doc.Rows[def.Kind] = parsed
}
