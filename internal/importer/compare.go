package importer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// compareFields lists the scalar columns whose incoming value differs from
// the persisted one. Columns missing from incoming (unreadable cells) are
// not compared.
func compareFields(def core.KindDefinition, existing, incoming map[string]core.Value) []core.FieldChange {
	var changes []core.FieldChange
	for _, col := range def.ScalarColumns() {
		newVal, ok := incoming[col.Key]
		if !ok {
			continue
		}
		oldVal := existing[col.Key]
		if oldVal.Equal(newVal) {
			continue
		}
		changes = append(changes, core.FieldChange{
			Field:      col.Key,
			OldValue:   oldVal,
			NewValue:   newVal,
			DisplayOld: oldVal.Display(),
			DisplayNew: newVal.Display(),
		})
	}
	return changes
}

// refsEqual compares persisted target ids with resolved references. List
// references compare as sets.
func refsEqual(existing []string, resolved []core.Ref) bool {
	a := make([]string, 0, len(existing))
	for _, id := range existing {
		a = append(a, core.Ref{ID: id}.Key())
	}
	b := make([]string, 0, len(resolved))
	for _, r := range resolved {
		b = append(b, r.Key())
	}
	return sameSet(a, b)
}

func sameSet(a, b []string) bool {
	a, b = dedupe(a), dedupe(b)
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

// refChange describes a reference column change in terms of target names.
func refChange(col core.ColumnSpec, oldNames []string, incoming core.Value) core.FieldChange {
	var oldVal core.Value
	switch {
	case col.Ref.Many:
		oldVal = core.List(oldNames)
	case len(oldNames) > 0:
		oldVal = core.String(oldNames[0])
	default:
		oldVal = core.Null()
	}
	return core.FieldChange{
		Field:      col.Key,
		OldValue:   oldVal,
		NewValue:   incoming,
		DisplayOld: oldVal.Display(),
		DisplayNew: incoming.Display(),
	}
}

// commaSpace matches a comma with the spacing around it.
var commaSpace = regexp.MustCompile(`\s*,\s*`)

// nameKey normalizes a name for lookups. Spacing around commas is dropped so
// a name rebuilt from the items of a list cell still matches.
func nameKey(s string) string {
	return strings.ToLower(commaSpace.ReplaceAllString(strings.TrimSpace(s), ","))
}

// refNames returns the names written in a reference cell.
func refNames(col core.ColumnSpec, v core.Value) []string {
	if v.IsNull() {
		return nil
	}
	if col.Ref.Many {
		return v.Items()
	}
	if s := strings.TrimSpace(v.Text()); s != "" {
		return []string{s}
	}
	return nil
}
