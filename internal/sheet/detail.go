package sheet

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// InstructionsSheet is the help sheet added to every export. The reader
// ignores it.
const InstructionsSheet = "Instructions"

// detailColumns maps lower-cased detail sheet names to their Info column.
func detailColumns() map[string]core.ColumnSpec {
	out := make(map[string]core.ColumnSpec)
	for _, col := range core.MustGet(core.KindTopLevel).Columns {
		if col.Detail != nil {
			out[strings.ToLower(col.Detail.Name)] = col
		}
	}
	return out
}

// readDetail folds a detail sheet into the Info row as a JSON array with
// one object per non-blank row. Missing required cells are parse errors on
// the Info row.
func readDetail(doc *core.ParsedDocument, col core.ColumnSpec, rows [][]string) {
	info := &doc.Rows[core.KindTopLevel][0]
	d := col.Detail

	items := make([]map[string]string, 0, len(rows))
	if len(rows) > 0 {
		pos, missing := detailHeaders(d, rows[0])
		if len(missing) > 0 {
			doc.Errors = append(doc.Errors, core.MissingColumnsError(d.Name, missing))
		}

		for i, cells := range rows[1:] {
			if core.IsBlankRow(cells) {
				continue
			}
			item := make(map[string]string, len(d.Columns))
			for _, dc := range d.Columns {
				var v string
				if p, ok := pos[dc.Key]; ok && p < len(cells) {
					v = core.CleanCell(cells[p])
				}
				if v == "" {
					if dc.Required {
						info.ParseErrors = append(info.ParseErrors, core.ParseError{
							Sheet:   d.Name,
							Row:     i + 2,
							Column:  dc.Header,
							Message: dc.Header + " is required",
						})
					}
					continue
				}
				item[dc.Key] = v
			}
			items = append(items, item)
		}
	}

	raw, _ := json.Marshal(items)
	info.Fields[col.Key] = core.JSON(raw)
}

func detailHeaders(d *core.DetailSheet, header []string) (map[string]int, []string) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		if h = strings.ToLower(core.CleanCell(h)); h != "" {
			if _, dup := byName[h]; !dup {
				byName[h] = i
			}
		}
	}

	pos := make(map[string]int, len(d.Columns))
	var missing []string
	for _, dc := range d.Columns {
		p, ok := byName[strings.ToLower(dc.Header)]
		if !ok {
			p, ok = byName[strings.ToLower(dc.Key)]
		}
		if !ok {
			if dc.Required {
				missing = append(missing, dc.Header)
			}
			continue
		}
		pos[dc.Key] = p
	}
	return pos, missing
}

// writeDetail writes one row per element of the Info row's JSON array.
func writeDetail(f *excelize.File, col core.ColumnSpec, v core.Value, headerStyle int) error {
	d := col.Detail
	if _, err := f.NewSheet(d.Name); err != nil {
		return err
	}

	var items []map[string]any
	if !v.IsNull() {
		if err := json.Unmarshal(v.Raw(), &items); err != nil {
			return fmt.Errorf("%s must be a list of objects: %w", col.Key, err)
		}
	}

	header := make([]interface{}, len(d.Columns))
	for i, dc := range d.Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := dc.Width
		if width == 0 {
			width = 20
		}
		if err := f.SetColWidth(d.Name, name, name, width); err != nil {
			return err
		}
		header[i] = dc.Header
	}
	if err := f.SetSheetRow(d.Name, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(d.Name, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, item := range items {
		cells := make([]interface{}, len(d.Columns))
		for j, dc := range d.Columns {
			switch x := item[dc.Key].(type) {
			case nil:
			case string:
				cells[j] = x
			default:
				b, _ := json.Marshal(x)
				cells[j] = string(b)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(d.Name, cell, &cells); err != nil {
			return err
		}
	}
	return nil
}

// writeInstructions adds the help sheet, generated from the registry so it
// always lists the sheets the reader accepts.
func writeInstructions(f *excelize.File, headerStyle int) error {
	lines := []string{
		"Editing this workbook",
		"",
		"Edit the sheets, save, and upload the file for a dry run. Review the report, then commit the session to apply it.",
		"",
		"Column A of each sheet holds a hidden ID that ties the row to a stored record.",
		"Keep the ID to update a record. Leave it blank to create one. Delete the row to delete the record on commit.",
		"Removing a sheet other than Info deletes every record of its kind.",
		"References name rows on other sheets. List cells take comma separated names.",
		"",
		"Sheets:",
	}
	for _, def := range core.All() {
		var headers []string
		for _, col := range def.SheetColumns() {
			if !col.Hidden {
				headers = append(headers, col.Header)
			}
		}
		lines = append(lines, fmt.Sprintf("%s: %s", def.Sheet, strings.Join(headers, ", ")))
		for _, col := range def.Columns {
			if col.Detail == nil {
				continue
			}
			var dh []string
			for _, dc := range col.Detail.Columns {
				dh = append(dh, dc.Header)
			}
			lines = append(lines, fmt.Sprintf("%s: %s", col.Detail.Name, strings.Join(dh, ", ")))
		}
	}

	if _, err := f.NewSheet(InstructionsSheet); err != nil {
		return err
	}
	if err := f.SetColWidth(InstructionsSheet, "A", "A", 110); err != nil {
		return err
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(InstructionsSheet, cell, line); err != nil {
			return err
		}
	}
	return f.SetRowStyle(InstructionsSheet, 1, 1, headerStyle)
}
