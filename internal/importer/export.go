package importer

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// BuildDocument flattens a persisted graph into the rows the reader would
// produce for it. Reference columns are written as target names.
func BuildDocument(snap *core.Snapshot) *core.ParsedDocument {
	doc := core.NewParsedDocument()
	names := persistedNames(snap)

	for _, def := range core.All() {
		doc.Present[def.Kind] = true

		if def.Kind == core.KindTopLevel {
			doc.Rows[def.Kind] = []core.ParsedRow{exportRow(def, 2, snap.Entity, names)}
			continue
		}

		recs := snap.Children[def.Kind]
		rows := make([]core.ParsedRow, 0, len(recs))
		for i, rec := range recs {
			rows = append(rows, exportRow(def, i+2, rec, names))
		}
		doc.Rows[def.Kind] = rows
	}
	return doc
}

func exportRow(def core.KindDefinition, rowNumber int, rec core.Record, names map[core.EntityKind]map[string]string) core.ParsedRow {
	row := core.ParsedRow{
		Sheet:     def.Sheet,
		RowNumber: rowNumber,
		Kind:      def.Kind,
		ID:        rec.ID,
		Fields:    make(map[string]core.Value, len(def.Columns)),
	}
	for _, col := range def.DataColumns() {
		if col.Ref == nil {
			if v, ok := rec.Fields[col.Key]; ok {
				row.Fields[col.Key] = v
			} else {
				row.Fields[col.Key] = core.Null()
			}
			continue
		}

		var targets []string
		for _, id := range rec.Refs[col.Key] {
			if name, ok := names[col.Ref.Target][id]; ok {
				targets = append(targets, name)
			}
		}
		switch {
		case col.Ref.Many:
			row.Fields[col.Key] = core.List(targets)
		case len(targets) > 0:
			row.Fields[col.Key] = core.String(targets[0])
		default:
			row.Fields[col.Key] = core.Null()
		}
	}
	return row
}

// exportStats counts the rows written per kind.
func exportStats(doc *core.ParsedDocument) map[core.EntityKind]int {
	stats := make(map[core.EntityKind]int, len(doc.Rows))
	for kind, rows := range doc.Rows {
		stats[kind] = len(rows)
	}
	return stats
}

// ExportFilename returns <slug>_<YYYYMMDD>.xlsx for an entity name.
func ExportFilename(name string, at time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", slugify(name), at.Format("20060102"))
}

// slugify lowercases name and joins its letters and digits with hyphens.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "export"
	}
	return b.String()
}
