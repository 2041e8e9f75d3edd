package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// PostgresRepository stores entity graphs in PostgreSQL. Queries are built
// from the kind registry, so a new column only needs a registry entry and a
// migration.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository wraps a connection pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Ping verifies the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// LoadGraph reads the entity and all its children from one repeatable-read
// snapshot.
func (r *PostgresRepository) LoadGraph(ctx context.Context, entityType core.EntityType, id string) (*core.Snapshot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrNotFound
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	entity, err := queryEntity(ctx, tx, "id = $1 AND entity_type = $2", id, string(entityType))
	if err != nil {
		return nil, err
	}

	snap := &core.Snapshot{
		EntityType: entityType,
		Entity:     *entity,
		Children:   make(map[core.EntityKind][]core.Record),
	}
	for _, def := range core.Children() {
		records, err := loadChildren(ctx, tx, def, id)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", def.Sheet, err)
		}
		snap.Children[def.Kind] = records
	}

	return snap, nil
}

// FindByName returns the live entity with the given name.
func (r *PostgresRepository) FindByName(ctx context.Context, entityType core.EntityType, name string) (*core.Record, error) {
	return queryEntity(ctx, r.pool, "entity_type = $1 AND lower(name) = lower($2)", string(entityType), strings.TrimSpace(name))
}

// WithTx runs fn inside a database transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RecordAudit writes an audit entry outside any import transaction.
func (r *PostgresRepository) RecordAudit(ctx context.Context, entry core.AuditEntry) error {
	return insertAudit(ctx, r.pool, entry)
}

// ListAudit returns the newest audit entries matching filter.
func (r *PostgresRepository) ListAudit(ctx context.Context, filter AuditFilter) ([]core.AuditEntry, error) {
	return listAudit(ctx, r.pool, filter)
}

// PurgeAudit deletes up to batchSize audit entries created before cutoff.
func (r *PostgresRepository) PurgeAudit(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	return purgeAudit(ctx, r.pool, cutoff, batchSize)
}

// ----------------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------------

// queryEntity selects one live TopLevel row matching where.
func queryEntity(ctx context.Context, db DBTX, where string, args ...any) (*core.Record, error) {
	def := core.MustGet(core.KindTopLevel)
	cols := def.ScalarColumns()

	query := fmt.Sprintf(
		"SELECT id::text, %s FROM entities WHERE %s AND deleted_at IS NULL LIMIT 1",
		selectList("", cols), where,
	)

	var id string
	dests := append([]any{&id}, scanTargets(cols)...)
	if err := db.QueryRow(ctx, query, args...).Scan(dests...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("query entity: %w", err)
	}

	return &core.Record{
		ID:     id,
		Fields: scannedFields(cols, dests[1:]),
	}, nil
}

// loadChildren reads every row of a kind under entityID in stored order.
func loadChildren(ctx context.Context, db DBTX, def core.KindDefinition, entityID string) ([]core.Record, error) {
	cols := def.ScalarColumns()
	var singles []core.ColumnSpec
	for _, c := range def.References() {
		if !c.Ref.Many && !c.Ref.Parent {
			singles = append(singles, c)
		}
	}

	selects := []string{"t.id::text", fmt.Sprintf("t.%s::text", quoteIdentifier(ownerColumn(def)))}
	if len(cols) > 0 {
		selects = append(selects, selectList("t", cols))
	}
	for _, c := range singles {
		selects = append(selects, fmt.Sprintf("t.%s::text", quoteIdentifier(c.Ref.DBColumn)))
	}

	var from, order string
	if def.Parent == core.KindTopLevel {
		from = fmt.Sprintf("%s t WHERE t.owner_id = $1", quoteIdentifier(def.Table))
		order = "t.position, t.created_at, t.id"
	} else {
		parent := core.MustGet(def.Parent)
		from = fmt.Sprintf("%s t JOIN %s p ON p.id = t.%s WHERE p.owner_id = $1",
			quoteIdentifier(def.Table), quoteIdentifier(parent.Table), quoteIdentifier(ownerColumn(def)))
		order = "p.position, p.created_at, p.id, t.position, t.created_at, t.id"
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(selects, ", "), from, order)
	rows, err := db.Query(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parentCol, hasParentCol := def.ParentColumn()

	var records []core.Record
	for rows.Next() {
		var id, owner string
		scalar := scanTargets(cols)
		refTargets := make([]pgtype.Text, len(singles))

		dests := append([]any{&id, &owner}, scalar...)
		for i := range refTargets {
			dests = append(dests, &refTargets[i])
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}

		rec := core.Record{
			ID:       id,
			ParentID: owner,
			Fields:   scannedFields(cols, scalar),
			Refs:     make(map[string][]string),
		}
		if hasParentCol {
			rec.Refs[parentCol.Key] = []string{owner}
		}
		for i, c := range singles {
			if refTargets[i].Valid {
				rec.Refs[c.Key] = []string{refTargets[i].String}
			} else {
				rec.Refs[c.Key] = nil
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadJoinRefs(ctx, db, def, entityID, records); err != nil {
		return nil, err
	}
	return records, nil
}

// loadJoinRefs fills list references from their join tables. Targets are
// ordered the way the target sheet is.
func loadJoinRefs(ctx context.Context, db DBTX, def core.KindDefinition, entityID string, records []core.Record) error {
	index := make(map[string]int, len(records))
	for i, rec := range records {
		index[rec.ID] = i
	}

	for _, c := range def.References() {
		if !c.Ref.Many {
			continue
		}
		for i := range records {
			records[i].Refs[c.Key] = nil
		}

		target := core.MustGet(c.Ref.Target)
		query := fmt.Sprintf(
			"SELECT j.%s::text, j.%s::text FROM %s j JOIN %s x ON x.id = j.%s WHERE x.owner_id = $1 ORDER BY x.position, x.created_at, x.id",
			quoteIdentifier(c.Ref.JoinColumn), quoteIdentifier(c.Ref.TargetColumn),
			quoteIdentifier(c.Ref.JoinTable), quoteIdentifier(target.Table),
			quoteIdentifier(c.Ref.TargetColumn),
		)
		rows, err := db.Query(ctx, query, entityID)
		if err != nil {
			return fmt.Errorf("load %s: %w", c.Ref.JoinTable, err)
		}
		for rows.Next() {
			var ownerID, targetID string
			if err := rows.Scan(&ownerID, &targetID); err != nil {
				rows.Close()
				return err
			}
			if i, ok := index[ownerID]; ok {
				records[i].Refs[c.Key] = append(records[i].Refs[c.Key], targetID)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

// selectList renders the quoted db columns, optionally table-qualified.
func selectList(alias string, cols []core.ColumnSpec) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if alias != "" {
			parts[i] = alias + "." + quoteIdentifier(c.DBColumn)
		} else {
			parts[i] = quoteIdentifier(c.DBColumn)
		}
	}
	return strings.Join(parts, ", ")
}
