package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// Write serializes doc to xlsx bytes. Every registered kind gets a sheet,
// in registry order, even when it has no rows. Detail sheets of the Info
// row and the Instructions sheet follow.
func Write(doc *core.ParsedDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E7E6E6"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("create wrap style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, def := range core.All() {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, def.Sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(def.Sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", def.Sheet, err)
		}

		if err := writeSheet(f, def, doc.Rows[def.Kind], headerStyle, wrapStyle); err != nil {
			return nil, fmt.Errorf("write sheet %s: %w", def.Sheet, err)
		}
	}

	info, _ := doc.Info()
	for _, col := range core.MustGet(core.KindTopLevel).Columns {
		if col.Detail == nil {
			continue
		}
		if err := writeDetail(f, col, info.Field(col.Key), headerStyle); err != nil {
			return nil, fmt.Errorf("write sheet %s: %w", col.Detail.Name, err)
		}
	}
	if err := writeInstructions(f, headerStyle); err != nil {
		return nil, fmt.Errorf("write sheet %s: %w", InstructionsSheet, err)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, def core.KindDefinition, rows []core.ParsedRow, headerStyle, wrapStyle int) error {
	sheet := def.Sheet
	columns := def.SheetColumns()

	// Column layout first so new cells pick up the column style.
	for i, col := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, col.Width); err != nil {
			return err
		}
		if col.Type == core.FieldList || col.Type == core.FieldJSON {
			if err := f.SetColStyle(sheet, name, wrapStyle); err != nil {
				return err
			}
		}
		if col.Hidden {
			if err := f.SetColVisible(sheet, name, false); err != nil {
				return err
			}
		}
	}

	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col.Header
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cells := make([]interface{}, len(columns))
		for j, col := range columns {
			if col.Key == core.IDColumn {
				cells[j] = row.ID
				continue
			}
			cells[j] = cellValue(col, row.Field(col.Key))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// cellValue converts a value to what excelize should store. Numbers and
// booleans keep their cell types; everything else is written as text.
func cellValue(col core.ColumnSpec, v core.Value) interface{} {
	switch v.Type() {
	case core.ValueNull:
		return nil
	case core.ValueNumber:
		return v.Num()
	case core.ValueBool:
		return v.Boolean()
	}

	if col.Type == core.FieldList {
		sep := col.Separator
		if sep == "," {
			sep = ", "
		}
		return strings.Join(v.Items(), sep)
	}
	return v.Text()
}
