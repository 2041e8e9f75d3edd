package store

import (
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// scanTargets returns one scan destination per column, typed by the
// column's FieldType.
func scanTargets(cols []core.ColumnSpec) []any {
	dests := make([]any, len(cols))
	for i, c := range cols {
		switch c.Type {
		case core.FieldNumeric:
			dests[i] = &pgtype.Numeric{}
		case core.FieldDate:
			dests[i] = &pgtype.Date{}
		case core.FieldBool:
			dests[i] = &pgtype.Bool{}
		case core.FieldJSON, core.FieldList:
			dests[i] = new([]byte)
		default:
			dests[i] = &pgtype.Text{}
		}
	}
	return dests
}

// scannedFields converts filled scan destinations to values keyed by column.
func scannedFields(cols []core.ColumnSpec, dests []any) map[string]core.Value {
	fields := make(map[string]core.Value, len(cols))
	for i, c := range cols {
		fields[c.Key] = fromPg(dests[i])
	}
	return fields
}

func fromPg(dest any) core.Value {
	switch d := dest.(type) {
	case *pgtype.Text:
		if !d.Valid {
			return core.Null()
		}
		return core.String(d.String)
	case *pgtype.Numeric:
		if !d.Valid {
			return core.Null()
		}
		f, err := d.Float64Value()
		if err != nil || !f.Valid {
			return core.Null()
		}
		return core.Number(f.Float64)
	case *pgtype.Date:
		if !d.Valid {
			return core.Null()
		}
		return core.Date(d.Time)
	case *pgtype.Bool:
		if !d.Valid {
			return core.Null()
		}
		return core.Bool(d.Bool)
	case *[]byte:
		if *d == nil {
			return core.Null()
		}
		return core.JSON(*d)
	default:
		return core.Null()
	}
}

// toPg converts a value to a query argument.
func toPg(v core.Value) any {
	switch v.Type() {
	case core.ValueString:
		return pgtype.Text{String: v.Str(), Valid: true}
	case core.ValueNumber:
		var n pgtype.Numeric
		if err := n.Scan(strconv.FormatFloat(v.Num(), 'f', -1, 64)); err != nil {
			return nil
		}
		return n
	case core.ValueBool:
		return pgtype.Bool{Bool: v.Boolean(), Valid: true}
	case core.ValueDate:
		return pgtype.Date{Time: v.Time(), Valid: true}
	case core.ValueJSON:
		return []byte(v.Raw())
	default:
		return nil
	}
}

// toPgUUID converts an optional id to a query argument.
func toPgUUID(ids []string) any {
	if len(ids) == 0 || ids[0] == "" {
		return nil
	}
	return ids[0]
}
