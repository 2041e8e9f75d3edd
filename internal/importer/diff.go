// Package importer reconciles workbooks with persisted entity graphs.
//
// An import runs in two phases. The dry run (Diff) classifies every row of
// the document as create, update, delete or skip and collects every
// validation problem in one pass. The commit replays that plan inside one
// transaction, creating rows in dependency order and remapping same-batch
// placeholders to the ids they receive. Export writes the inverse document,
// so an unmodified export re-imports as all skips.
package importer

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// Input is what Diff compares.
type Input struct {
	EntityType core.EntityType
	Document   *core.ParsedDocument

	// Existing is the graph named by the Info sheet id, or nil when the id
	// is blank or does not resolve to a live entity of EntityType.
	Existing *core.Snapshot

	// NameOwner is the id of a live entity of EntityType already using the
	// Info name, or "" when the name is free.
	NameOwner string
}

// Diff classifies the document against the existing graph. It never fails:
// problems are reported in the result and clear IsValid.
func Diff(in Input) *core.DryRunResult {
	d := &differ{
		in: in,
		result: &core.DryRunResult{
			EntityType: in.EntityType,
			Records:    make(map[core.EntityKind][]core.RowRecord),
			Errors:     []core.ValidationError{},
		},
		index:     make(map[core.EntityKind]map[string]int),
		claimed:   make(map[core.EntityKind]map[string]int),
		persisted: persistedNames(in.Existing),
		storedAs:  storedNames(in.Existing),
	}

	d.result.Errors = append(d.result.Errors, parseErrors(in.Document.Errors)...)
	d.entity()
	for _, def := range core.Children() {
		d.kind(def)
	}
	if e := checkTotalWeight(in.Document.Rows[core.KindTask]); e != nil {
		d.result.Errors = append(d.result.Errors, *e)
	}

	d.result.Recount()
	return d.result
}

type differ struct {
	in     Input
	result *core.DryRunResult

	// index maps a row name to its position in result.Records, per kind.
	// References resolve against it, so targets must be diffed first.
	index map[core.EntityKind]map[string]int

	// claimed maps an existing id to the position of the row keeping it.
	claimed map[core.EntityKind]map[string]int

	// persisted maps an existing id to its stored name, per kind.
	persisted map[core.EntityKind]map[string]string

	// storedAs maps a stored name key back to its id, per kind.
	storedAs map[core.EntityKind]map[string]string
}

func (d *differ) entity() {
	def := core.MustGet(core.KindTopLevel)
	info, ok := d.in.Document.Info()
	if !ok {
		d.result.EntitySummary.Action = core.ActionCreate
		d.result.Errors = append(d.result.Errors, core.ValidationError{
			Sheet:   def.Sheet,
			Row:     2,
			Message: core.ErrMissingInfoSheet.Error(),
			Code:    CodeRequired,
		})
		return
	}

	errs := parseErrors(info.ParseErrors)
	errs = append(errs, checkRow(def, info)...)

	name := info.Field("name").Text()
	sum := core.EntitySummary{Name: name, Data: info.Fields}
	if d.in.Existing != nil {
		sum.Action = core.ActionUpdate
		sum.ExistingID = d.in.Existing.Entity.ID
		sum.Changes = compareFields(def, d.in.Existing.Entity.Fields, info.Fields)
	} else {
		sum.Action = core.ActionCreate
	}

	if d.in.NameOwner != "" && d.in.NameOwner != sum.ExistingID && name != "" {
		errs = append(errs, core.ValidationError{
			Sheet:   info.Sheet,
			Row:     info.RowNumber,
			Column:  "Name",
			Value:   name,
			Message: fmt.Sprintf("another %s is already named %q", d.in.EntityType, name),
			Code:    CodeNameConflict,
		})
	}

	d.result.EntitySummary = sum
	d.result.Errors = append(d.result.Errors, errs...)
}

func (d *differ) kind(def core.KindDefinition) {
	rows := d.in.Document.Rows[def.Kind]

	existing := make(map[string]core.Record)
	var order []string
	if d.in.Existing != nil {
		for _, rec := range d.in.Existing.Children[def.Kind] {
			existing[rec.ID] = rec
			order = append(order, rec.ID)
		}
	}

	dups := checkDuplicates(def, rows)
	records := make([]core.RowRecord, 0, len(rows))
	names := make(map[string]int, len(rows))
	claimed := make(map[string]int, len(rows))

	for i, row := range rows {
		rec := core.RowRecord{
			Sheet:     row.Sheet,
			RowNumber: row.RowNumber,
			Kind:      def.Kind,
			Data:      row.Fields,
		}
		rec.ValidationErrors = append(rec.ValidationErrors, parseErrors(row.ParseErrors)...)
		rec.ValidationErrors = append(rec.ValidationErrors, checkRow(def, row)...)
		rec.ValidationErrors = append(rec.ValidationErrors, dups[i]...)

		refs, parentCreated, refErrs := d.resolve(def, row)
		rec.Refs = refs
		rec.ValidationErrors = append(rec.ValidationErrors, refErrs...)

		// A row under a parent that is being created gets a fresh identity,
		// its old id belongs to another parent.
		prior, found := existing[row.ID]
		if row.ID != "" && found && !parentCreated {
			delete(existing, row.ID)
			rec.ExistingID = row.ID
			rec.Changes = compareFields(def, prior.Fields, row.Fields)
			rec.Changes = append(rec.Changes, d.refChanges(def, prior, row, refs)...)
			if len(rec.Changes) > 0 {
				rec.Action = core.ActionUpdate
			} else {
				rec.Action = core.ActionSkip
			}
		} else {
			rec.Action = core.ActionCreate
		}

		records = append(records, rec)
		if rec.ExistingID != "" {
			claimed[rec.ExistingID] = len(records) - 1
		}
		if key := nameKey(row.Field(nameColumn(def)).Text()); key != "" {
			if _, taken := names[key]; !taken {
				names[key] = len(records) - 1
			}
		}
		d.result.Errors = append(d.result.Errors, rec.ValidationErrors...)
	}

	// Anything not claimed by a row was removed from the sheet.
	for _, id := range order {
		prior, ok := existing[id]
		if !ok {
			continue
		}
		records = append(records, core.RowRecord{
			Sheet:      def.Sheet,
			Kind:       def.Kind,
			Action:     core.ActionDelete,
			ExistingID: id,
			Data:       prior.Fields,
		})
	}

	d.result.Records[def.Kind] = records
	d.index[def.Kind] = names
	d.claimed[def.Kind] = claimed
}

// resolve maps the names in a row's reference columns to existing ids or
// same-batch placeholders. parentCreated reports whether the row's parent
// is a row being created.
func (d *differ) resolve(def core.KindDefinition, row core.ParsedRow) (map[string][]core.Ref, bool, []core.ValidationError) {
	var (
		refs          map[string][]core.Ref
		parentCreated bool
		errs          []core.ValidationError
	)

	for _, col := range def.References() {
		v, ok := row.Fields[col.Key]
		if !ok {
			continue
		}
		targets := d.result.Records[col.Ref.Target]
		matched, unknown := d.match(col.Ref.Target, refNames(col, v))
		for _, name := range unknown {
			errs = append(errs, core.ValidationError{
				Sheet:   row.Sheet,
				Row:     row.RowNumber,
				Column:  col.Header,
				Value:   name,
				Message: fmt.Sprintf("%s %q is not in this workbook", col.Ref.Target, name),
				Code:    CodeDanglingReference,
			})
		}

		var resolved []core.Ref
		seen := make(map[string]bool)
		for _, i := range matched {
			target := targets[i]
			var ref core.Ref
			if target.Action == core.ActionCreate {
				ph := target.Placeholder()
				ref = core.Ref{Row: &ph}
				if col.Ref.Parent {
					parentCreated = true
				}
			} else {
				ref = core.Ref{ID: target.ExistingID}
			}
			if !seen[ref.Key()] {
				seen[ref.Key()] = true
				resolved = append(resolved, ref)
			}
		}

		if len(resolved) > 0 {
			if refs == nil {
				refs = make(map[string][]core.Ref)
			}
			refs[col.Key] = resolved
		}
	}
	return refs, parentCreated, errs
}

// match finds the target rows named in a reference cell. List cells arrive
// split on commas, so a name containing commas spans several items; the
// longest run of items naming a row wins. Names the document does not use
// are looked up under their stored name, so a row renamed in this document
// is still found by the cells that were not edited along with it.
func (d *differ) match(kind core.EntityKind, names []string) (matched []int, unknown []string) {
	for i := 0; i < len(names); {
		j := len(names)
		for ; j > i; j-- {
			if idx, ok := d.lookup(kind, strings.Join(names[i:j], ",")); ok {
				matched = append(matched, idx)
				break
			}
		}
		if j == i {
			unknown = append(unknown, names[i])
			j = i + 1
		}
		i = j
	}
	return matched, unknown
}

func (d *differ) lookup(kind core.EntityKind, name string) (int, bool) {
	key := nameKey(name)
	if key == "" {
		return 0, false
	}
	if i, ok := d.index[kind][key]; ok {
		return i, true
	}
	if id, ok := d.storedAs[kind][key]; ok {
		i, ok := d.claimed[kind][id]
		return i, ok
	}
	return 0, false
}

// refChanges compares reference columns by resolved identity, so renaming a
// target does not mark rows pointing at it as changed.
func (d *differ) refChanges(def core.KindDefinition, prior core.Record, row core.ParsedRow, refs map[string][]core.Ref) []core.FieldChange {
	var changes []core.FieldChange
	for _, col := range def.References() {
		v, ok := row.Fields[col.Key]
		if !ok {
			continue
		}
		if refsEqual(prior.Refs[col.Key], refs[col.Key]) {
			continue
		}
		changes = append(changes, refChange(col, d.namesOf(col.Ref.Target, prior.Refs[col.Key]), v))
	}
	return changes
}

func (d *differ) namesOf(kind core.EntityKind, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := d.persisted[kind][id]; ok {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}
	return names
}

// nameColumn is the column references use to name rows of def.
func nameColumn(def core.KindDefinition) string {
	if len(def.NaturalKey) == 0 {
		return "name"
	}
	return def.NaturalKey[len(def.NaturalKey)-1]
}

// storedNames maps the stored name key of every child row to its id. The
// first row stored under a name keeps it.
func storedNames(snap *core.Snapshot) map[core.EntityKind]map[string]string {
	out := make(map[core.EntityKind]map[string]string)
	if snap == nil {
		return out
	}
	for kind, recs := range snap.Children {
		def, ok := core.Get(kind)
		if !ok {
			continue
		}
		col := nameColumn(def)
		byName := make(map[string]string, len(recs))
		for _, rec := range recs {
			key := nameKey(rec.Fields[col].Text())
			if _, taken := byName[key]; key != "" && !taken {
				byName[key] = rec.ID
			}
		}
		out[kind] = byName
	}
	return out
}

// persistedNames indexes the stored name of every child row.
func persistedNames(snap *core.Snapshot) map[core.EntityKind]map[string]string {
	out := make(map[core.EntityKind]map[string]string)
	if snap == nil {
		return out
	}
	for kind, recs := range snap.Children {
		def, ok := core.Get(kind)
		if !ok {
			continue
		}
		col := nameColumn(def)
		names := make(map[string]string, len(recs))
		for _, rec := range recs {
			names[rec.ID] = rec.Fields[col].Text()
		}
		out[kind] = names
	}
	return out
}
