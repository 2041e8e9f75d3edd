// Package store persists entity graphs and the import audit trail.
//
// Two implementations share the Repository contract: PostgresRepository for
// production and MemoryRepository for tests and the CLI dry-run mode. All
// writes made by one commit go through a single Tx.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository reads entity graphs and opens write transactions.
type Repository interface {
	// LoadGraph returns a live entity of the given type with every child row.
	// Returns core.ErrNotFound when the id is unknown, deleted or of another type.
	LoadGraph(ctx context.Context, entityType core.EntityType, id string) (*core.Snapshot, error)

	// FindByName returns the live entity whose name matches case-insensitively.
	// Returns core.ErrNotFound when there is none.
	FindByName(ctx context.Context, entityType core.EntityType, name string) (*core.Record, error)

	// WithTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error

	AuditLog
}

// AuditLog stores and prunes import audit entries.
type AuditLog interface {
	RecordAudit(ctx context.Context, entry core.AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]core.AuditEntry, error)
	PurgeAudit(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// AuditFilter narrows ListAudit results.
type AuditFilter struct {
	EntityID string
	Action   core.AuditAction
	Limit    int
}

// DefaultAuditLimit caps ListAudit when no limit is given.
const DefaultAuditLimit = 100

// Tx is the write side of one commit.
type Tx interface {
	// CreateEntity inserts a TopLevel entity and returns its id.
	CreateEntity(ctx context.Context, entityType core.EntityType, fields map[string]core.Value) (string, error)

	// UpdateEntity patches the given TopLevel columns.
	// Returns core.ErrRecordVanished when the entity no longer exists.
	UpdateEntity(ctx context.Context, id string, fields map[string]core.Value) error

	// Create inserts a child row owned by parentID and returns its id. refs
	// maps reference column keys to target ids; the parent column is implied
	// by parentID.
	Create(ctx context.Context, kind core.EntityKind, parentID string, fields map[string]core.Value, refs map[string][]string) (string, error)

	// Update patches the given scalar columns and replaces the given
	// references. Returns core.ErrRecordVanished when the row no longer exists.
	Update(ctx context.Context, kind core.EntityKind, id string, fields map[string]core.Value, refs map[string][]string) error

	// Delete removes a row and its dependents. It reports whether the row
	// still existed.
	Delete(ctx context.Context, kind core.EntityKind, id string) (bool, error)

	// RecordAudit writes an audit entry inside the transaction.
	RecordAudit(ctx context.Context, entry core.AuditEntry) error
}

// quoteIdentifier safely quotes a PostgreSQL identifier to prevent SQL injection.
// Handles reserved words and special characters by wrapping in double quotes
// and escaping any embedded double quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ownerColumn returns the column linking a child row to its parent.
func ownerColumn(def core.KindDefinition) string {
	if def.Parent == core.KindTopLevel {
		return "owner_id"
	}
	if col, ok := def.ParentColumn(); ok {
		return col.Ref.DBColumn
	}
	return "owner_id"
}
