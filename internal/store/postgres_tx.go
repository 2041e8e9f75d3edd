package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// pgTx implements Tx over a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CreateEntity(ctx context.Context, entityType core.EntityType, fields map[string]core.Value) (string, error) {
	def := core.MustGet(core.KindTopLevel)
	cols := []string{"entity_type"}
	args := []any{string(entityType)}
	for _, c := range def.ScalarColumns() {
		cols = append(cols, quoteIdentifier(c.DBColumn))
		args = append(args, toPg(fields[c.Key]))
	}

	query := fmt.Sprintf("INSERT INTO entities (%s) VALUES (%s) RETURNING id::text",
		strings.Join(cols, ", "), placeholders(1, len(args)))

	var id string
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert entity: %w", err)
	}
	return id, nil
}

func (t *pgTx) UpdateEntity(ctx context.Context, id string, fields map[string]core.Value) error {
	def := core.MustGet(core.KindTopLevel)
	sets, args, err := scalarSets(def, fields, 2)
	if err != nil {
		return err
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf("UPDATE entities SET %s WHERE id = $1 AND deleted_at IS NULL", strings.Join(sets, ", "))
	tag, err := t.tx.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrRecordVanished
	}
	return nil
}

func (t *pgTx) Create(ctx context.Context, kind core.EntityKind, parentID string, fields map[string]core.Value, refs map[string][]string) (string, error) {
	def := core.MustGet(kind)
	owner := quoteIdentifier(ownerColumn(def))
	table := quoteIdentifier(def.Table)

	cols := []string{owner, "position"}
	values := []string{"$1", fmt.Sprintf("(SELECT COALESCE(MAX(position), 0) + 1 FROM %s WHERE %s = $1)", table, owner)}
	args := []any{parentID}

	for _, c := range def.ScalarColumns() {
		args = append(args, toPg(fields[c.Key]))
		cols = append(cols, quoteIdentifier(c.DBColumn))
		values = append(values, fmt.Sprintf("$%d", len(args)))
	}
	for _, c := range def.References() {
		if c.Ref.Many || c.Ref.Parent {
			continue
		}
		args = append(args, toPgUUID(refs[c.Key]))
		cols = append(cols, quoteIdentifier(c.Ref.DBColumn))
		values = append(values, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id::text",
		table, strings.Join(cols, ", "), strings.Join(values, ", "))

	var id string
	if err := t.tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert %s: %w", def.Table, err)
	}

	for _, c := range def.References() {
		if c.Ref.Many {
			if err := t.replaceJoin(ctx, c.Ref, id, refs[c.Key]); err != nil {
				return "", err
			}
		}
	}
	return id, nil
}

func (t *pgTx) Update(ctx context.Context, kind core.EntityKind, id string, fields map[string]core.Value, refs map[string][]string) error {
	def := core.MustGet(kind)

	sets, args, err := scalarSets(def, fields, 2)
	if err != nil {
		return err
	}
	for key, ids := range refs {
		col, ok := def.Column(key)
		if !ok || col.Ref == nil {
			return fmt.Errorf("%s has no reference column %q", def.Sheet, key)
		}
		if col.Ref.Many {
			continue
		}
		args = append(args, toPgUUID(ids))
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(col.Ref.DBColumn), len(args)+1))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", quoteIdentifier(def.Table), strings.Join(sets, ", "))
	tag, err := t.tx.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update %s: %w", def.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrRecordVanished
	}

	for key, ids := range refs {
		col, _ := def.Column(key)
		if col.Ref.Many {
			if err := t.replaceJoin(ctx, col.Ref, id, ids); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *pgTx) Delete(ctx context.Context, kind core.EntityKind, id string) (bool, error) {
	def := core.MustGet(kind)
	tag, err := t.tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", quoteIdentifier(def.Table)), id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", def.Table, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) RecordAudit(ctx context.Context, entry core.AuditEntry) error {
	return insertAudit(ctx, t.tx, entry)
}

// replaceJoin rewrites the join rows of one list reference.
func (t *pgTx) replaceJoin(ctx context.Context, ref *core.Reference, ownerID string, targetIDs []string) error {
	table := quoteIdentifier(ref.JoinTable)
	joinCol := quoteIdentifier(ref.JoinColumn)
	targetCol := quoteIdentifier(ref.TargetColumn)

	if _, err := t.tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, joinCol), ownerID); err != nil {
		return fmt.Errorf("clear %s: %w", ref.JoinTable, err)
	}
	if len(targetIDs) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) SELECT $1, unnest($2::uuid[]) ON CONFLICT DO NOTHING",
		table, joinCol, targetCol,
	)
	if _, err := t.tx.Exec(ctx, query, ownerID, targetIDs); err != nil {
		return fmt.Errorf("insert %s: %w", ref.JoinTable, err)
	}
	return nil
}

// scalarSets renders "col = $n" assignments for the given fields. Parameter
// numbering starts at first.
func scalarSets(def core.KindDefinition, fields map[string]core.Value, first int) ([]string, []any, error) {
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, c := range def.ScalarColumns() {
		v, ok := fields[c.Key]
		if !ok {
			continue
		}
		args = append(args, toPg(v))
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(c.DBColumn), first+len(args)-1))
	}
	for key := range fields {
		if col, ok := def.Column(key); !ok || col.Ref != nil || key == core.IDColumn {
			return nil, nil, fmt.Errorf("%s has no scalar column %q", def.Sheet, key)
		}
	}
	return sets, args, nil
}

// placeholders renders "$from, ..., $(from+n-1)".
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}
