package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/adoptsync/internal/core"
	"github.com/JonMunkholm/adoptsync/internal/store"
)

// Execute applies a valid plan in one transaction and writes entry to the
// audit log inside it. On failure nothing is persisted and the returned
// result carries the failed step and the operations counted before it.
func Execute(ctx context.Context, repo store.Repository, plan *core.DryRunResult, entry core.AuditEntry) (*core.ExecutionResult, error) {
	start := time.Now()
	if plan == nil || !plan.IsValid {
		return nil, core.ErrPlanInvalid
	}

	x := &execution{
		plan:  plan,
		remap: make(map[core.RowRef]string),
		stats: make(core.ExecutionStats),
	}

	err := repo.WithTx(ctx, func(tx store.Tx) error {
		x.tx = tx
		if err := x.run(ctx); err != nil {
			return err
		}

		entry.EntityID = x.entityID
		entry.EntityName = plan.EntitySummary.Name
		entry.Stats = x.stats
		if err := tx.RecordAudit(ctx, entry); err != nil {
			return &core.ExecutionError{Step: "write audit entry", Err: err}
		}
		return nil
	})

	res := &core.ExecutionResult{
		EntityType: plan.EntityType,
		EntityName: plan.EntitySummary.Name,
		Stats:      x.stats,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		var execErr *core.ExecutionError
		if !errors.As(err, &execErr) {
			execErr = &core.ExecutionError{Step: "commit transaction", Err: err}
			err = execErr
		}
		res.Error = err.Error()
		res.FailedStep = execErr.Step
		return res, err
	}

	res.Success = true
	res.EntityID = x.entityID
	return res, nil
}

// execution is the state of one commit attempt.
type execution struct {
	tx       store.Tx
	plan     *core.DryRunResult
	entityID string
	remap    map[core.RowRef]string // placeholder -> id minted in this transaction
	stats    core.ExecutionStats
}

// run applies the entity, then every child kind in rank order.
func (x *execution) run(ctx context.Context) error {
	if err := x.applyEntity(ctx); err != nil {
		return err
	}
	for _, def := range core.Children() {
		for _, rec := range x.plan.Records[def.Kind] {
			if err := ctx.Err(); err != nil {
				return &core.ExecutionError{Step: step(rec), Err: err}
			}
			if err := x.apply(ctx, def, rec); err != nil {
				return &core.ExecutionError{Step: step(rec), Err: err}
			}
			x.stats.Add(def.Kind, rec.Action)
		}
	}
	return nil
}

func (x *execution) applyEntity(ctx context.Context) error {
	def := core.MustGet(core.KindTopLevel)
	sum := x.plan.EntitySummary

	switch sum.Action {
	case core.ActionCreate:
		id, err := x.tx.CreateEntity(ctx, x.plan.EntityType, scalarValues(def, sum.Data))
		if err != nil {
			return &core.ExecutionError{Step: "create entity", Err: err}
		}
		x.entityID = id
	case core.ActionUpdate:
		// Always issued, even without changes, so a vanished entity aborts.
		if err := x.tx.UpdateEntity(ctx, sum.ExistingID, changedValues(sum.Changes)); err != nil {
			return &core.ExecutionError{Step: "update entity", Err: err}
		}
		x.entityID = sum.ExistingID
	default:
		return &core.ExecutionError{Step: "entity", Err: fmt.Errorf("unexpected action %q", sum.Action)}
	}

	x.stats.Add(core.KindTopLevel, sum.Action)
	return nil
}

func (x *execution) apply(ctx context.Context, def core.KindDefinition, rec core.RowRecord) error {
	switch rec.Action {
	case core.ActionCreate:
		parentID, err := x.parentOf(def, rec)
		if err != nil {
			return err
		}
		refs := make(map[string][]string)
		for _, col := range def.References() {
			if col.Ref.Parent {
				continue
			}
			ids, err := x.ids(rec.Refs[col.Key])
			if err != nil {
				return err
			}
			refs[col.Key] = ids
		}
		id, err := x.tx.Create(ctx, def.Kind, parentID, scalarValues(def, rec.Data), refs)
		if err != nil {
			return err
		}
		x.remap[rec.Placeholder()] = id

	case core.ActionUpdate:
		fields := make(map[string]core.Value)
		var refs map[string][]string
		for _, ch := range rec.Changes {
			col, ok := def.Column(ch.Field)
			if !ok {
				return fmt.Errorf("unknown column %q", ch.Field)
			}
			if col.Ref == nil {
				fields[ch.Field] = ch.NewValue
				continue
			}
			ids, err := x.ids(rec.Refs[col.Key])
			if err != nil {
				return err
			}
			if refs == nil {
				refs = make(map[string][]string)
			}
			refs[col.Key] = ids
		}
		return x.tx.Update(ctx, def.Kind, rec.ExistingID, fields, refs)

	case core.ActionDelete:
		// A row already removed by a cascade is still counted.
		_, err := x.tx.Delete(ctx, def.Kind, rec.ExistingID)
		return err

	case core.ActionSkip:
	default:
		return fmt.Errorf("unexpected action %q", rec.Action)
	}
	return nil
}

// parentOf returns the id of the row that owns a new row.
func (x *execution) parentOf(def core.KindDefinition, rec core.RowRecord) (string, error) {
	if def.Parent == core.KindTopLevel {
		return x.entityID, nil
	}
	col, ok := def.ParentColumn()
	if !ok || len(rec.Refs[col.Key]) == 0 {
		return "", fmt.Errorf("%s row %d has no %s", def.Sheet, rec.RowNumber, col.Header)
	}
	return x.id(rec.Refs[col.Key][0])
}

func (x *execution) ids(refs []core.Ref) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		id, err := x.id(r)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// id resolves a reference, swapping a placeholder for the id its row got.
func (x *execution) id(r core.Ref) (string, error) {
	if r.Row == nil {
		return r.ID, nil
	}
	id, ok := x.remap[*r.Row]
	if !ok {
		return "", fmt.Errorf("row %s was not created before it was referenced", r.Row)
	}
	return id, nil
}

// scalarValues keeps the scalar columns of def present in data.
func scalarValues(def core.KindDefinition, data map[string]core.Value) map[string]core.Value {
	out := make(map[string]core.Value, len(data))
	for _, col := range def.ScalarColumns() {
		if v, ok := data[col.Key]; ok {
			out[col.Key] = v
		}
	}
	return out
}

func changedValues(changes []core.FieldChange) map[string]core.Value {
	out := make(map[string]core.Value, len(changes))
	for _, ch := range changes {
		out[ch.Field] = ch.NewValue
	}
	return out
}

// step names an operation for error reports.
func step(rec core.RowRecord) string {
	if rec.Action == core.ActionDelete {
		return fmt.Sprintf("%s %s %s", rec.Action, rec.Sheet, rec.ExistingID)
	}
	return fmt.Sprintf("%s %s row %d", rec.Action, rec.Sheet, rec.RowNumber)
}
