package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// MemoryRepository is an in-process Repository. Transactions run against a
// cloned copy of the state that replaces the live state only when the
// callback succeeds, so a failed commit leaves nothing behind.
type MemoryRepository struct {
	mu    sync.RWMutex
	state memState
}

type memEntity struct {
	Type    core.EntityType
	Record  core.Record
	Deleted bool
}

type memState struct {
	entities map[string]memEntity
	children map[core.EntityKind][]core.Record // stored order
	audit    []core.AuditEntry
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: memState{
			entities: make(map[string]memEntity),
			children: make(map[core.EntityKind][]core.Record),
		},
	}
}

func (s memState) clone() memState {
	out := memState{
		entities: make(map[string]memEntity, len(s.entities)),
		children: make(map[core.EntityKind][]core.Record, len(s.children)),
		audit:    append([]core.AuditEntry(nil), s.audit...),
	}
	for id, e := range s.entities {
		e.Record = cloneRecord(e.Record)
		out.entities[id] = e
	}
	for kind, recs := range s.children {
		cp := make([]core.Record, len(recs))
		for i, r := range recs {
			cp[i] = cloneRecord(r)
		}
		out.children[kind] = cp
	}
	return out
}

func cloneRecord(r core.Record) core.Record {
	out := core.Record{ID: r.ID, ParentID: r.ParentID}
	if r.Fields != nil {
		out.Fields = make(map[string]core.Value, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	if r.Refs != nil {
		out.Refs = make(map[string][]string, len(r.Refs))
		for k, ids := range r.Refs {
			out.Refs[k] = append([]string(nil), ids...)
		}
	}
	return out
}

// LoadGraph returns a copy of the entity and its children.
func (r *MemoryRepository) LoadGraph(ctx context.Context, entityType core.EntityType, id string) (*core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.state.entities[id]
	if !ok || e.Deleted || e.Type != entityType {
		return nil, core.ErrNotFound
	}

	snap := &core.Snapshot{
		EntityType: entityType,
		Entity:     cloneRecord(e.Record),
		Children:   make(map[core.EntityKind][]core.Record),
	}
	for _, def := range core.Children() {
		snap.Children[def.Kind] = r.state.childrenOf(def, id)
	}
	return snap, nil
}

// childrenOf returns copies of a kind's rows under entityID in stored order.
func (s memState) childrenOf(def core.KindDefinition, entityID string) []core.Record {
	var out []core.Record
	if def.Parent == core.KindTopLevel {
		for _, rec := range s.children[def.Kind] {
			if rec.ParentID == entityID {
				out = append(out, cloneRecord(rec))
			}
		}
		return out
	}

	parents := s.childrenOf(core.MustGet(def.Parent), entityID)
	for _, p := range parents {
		for _, rec := range s.children[def.Kind] {
			if rec.ParentID == p.ID {
				out = append(out, cloneRecord(rec))
			}
		}
	}
	return out
}

// FindByName returns the live entity with the given name.
func (r *MemoryRepository) FindByName(ctx context.Context, entityType core.EntityType, name string) (*core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.state.findByName(entityType, name, ""); ok {
		rec := cloneRecord(r.state.entities[id].Record)
		return &rec, nil
	}
	return nil, core.ErrNotFound
}

func (s memState) findByName(entityType core.EntityType, name, exceptID string) (string, bool) {
	name = strings.TrimSpace(name)
	for id, e := range s.entities {
		if e.Deleted || e.Type != entityType || id == exceptID {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(e.Record.Fields["name"].Str()), name) {
			return id, true
		}
	}
	return "", false
}

// WithTx runs fn against a cloned state and keeps the clone on success.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{state: r.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

// SoftDelete marks an entity deleted. Its children stay in place, matching
// the soft-delete column in the Postgres schema.
func (r *MemoryRepository) SoftDelete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.state.entities[id]; ok {
		e.Deleted = true
		r.state.entities[id] = e
	}
}

// RecordAudit appends an audit entry.
func (r *MemoryRepository) RecordAudit(_ context.Context, entry core.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.audit = append(r.state.audit, entry)
	return nil
}

// ListAudit returns matching entries, newest first.
func (r *MemoryRepository) ListAudit(_ context.Context, f AuditFilter) ([]core.AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.AuditEntry
	for _, e := range r.state.audit {
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// PurgeAudit removes up to batchSize entries created before cutoff.
func (r *MemoryRepository) PurgeAudit(_ context.Context, cutoff time.Time, batchSize int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.state.audit[:0]
	var purged int64
	for _, e := range r.state.audit {
		if e.CreatedAt.Before(cutoff) && purged < int64(batchSize) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	r.state.audit = kept
	return purged, nil
}

// ----------------------------------------------------------------------------
// Transaction
// ----------------------------------------------------------------------------

type memTx struct {
	state memState
}

func (t *memTx) CreateEntity(_ context.Context, entityType core.EntityType, fields map[string]core.Value) (string, error) {
	def := core.MustGet(core.KindTopLevel)
	if _, dup := t.state.findByName(entityType, fields["name"].Str(), ""); dup {
		return "", fmt.Errorf("insert entity: duplicate key value violates unique constraint %q", "entities_live_name_idx")
	}

	id := uuid.NewString()
	t.state.entities[id] = memEntity{
		Type:   entityType,
		Record: core.Record{ID: id, Fields: scalarFields(def, fields)},
	}
	return id, nil
}

func (t *memTx) UpdateEntity(_ context.Context, id string, fields map[string]core.Value) error {
	def := core.MustGet(core.KindTopLevel)
	e, ok := t.state.entities[id]
	if !ok || e.Deleted {
		return core.ErrRecordVanished
	}
	if err := checkScalarKeys(def, fields); err != nil {
		return err
	}
	if name, ok := fields["name"]; ok {
		if _, dup := t.state.findByName(e.Type, name.Str(), id); dup {
			return fmt.Errorf("update entity: duplicate key value violates unique constraint %q", "entities_live_name_idx")
		}
	}
	for k, v := range fields {
		e.Record.Fields[k] = v
	}
	t.state.entities[id] = e
	return nil
}

func (t *memTx) Create(_ context.Context, kind core.EntityKind, parentID string, fields map[string]core.Value, refs map[string][]string) (string, error) {
	def := core.MustGet(kind)
	if !t.exists(def.Parent, parentID) {
		return "", fmt.Errorf("insert %s: violates foreign key constraint on %s", def.Table, ownerColumn(def))
	}

	rec := core.Record{
		ID:       uuid.NewString(),
		ParentID: parentID,
		Fields:   scalarFields(def, fields),
		Refs:     make(map[string][]string),
	}
	for _, c := range def.References() {
		if c.Ref.Parent {
			rec.Refs[c.Key] = []string{parentID}
			continue
		}
		ids, err := t.checkTargets(def, c, refs[c.Key])
		if err != nil {
			return "", err
		}
		rec.Refs[c.Key] = ids
	}

	t.state.children[kind] = append(t.state.children[kind], rec)
	return rec.ID, nil
}

func (t *memTx) Update(_ context.Context, kind core.EntityKind, id string, fields map[string]core.Value, refs map[string][]string) error {
	def := core.MustGet(kind)
	i := t.index(kind, id)
	if i < 0 {
		return core.ErrRecordVanished
	}
	if err := checkScalarKeys(def, fields); err != nil {
		return err
	}

	rec := t.state.children[kind][i]
	for k, v := range fields {
		rec.Fields[k] = v
	}
	for key, ids := range refs {
		col, ok := def.Column(key)
		if !ok || col.Ref == nil {
			return fmt.Errorf("%s has no reference column %q", def.Sheet, key)
		}
		if col.Ref.Parent {
			if len(ids) == 0 || !t.exists(col.Ref.Target, ids[0]) {
				return fmt.Errorf("update %s: violates foreign key constraint on %s", def.Table, col.Ref.DBColumn)
			}
			rec.ParentID = ids[0]
			rec.Refs[key] = []string{ids[0]}
			continue
		}
		checked, err := t.checkTargets(def, col, ids)
		if err != nil {
			return err
		}
		rec.Refs[key] = checked
	}
	t.state.children[kind][i] = rec
	return nil
}

func (t *memTx) Delete(_ context.Context, kind core.EntityKind, id string) (bool, error) {
	i := t.index(kind, id)
	if i < 0 {
		return false, nil
	}
	recs := t.state.children[kind]
	t.state.children[kind] = append(recs[:i:i], recs[i+1:]...)
	t.cascade(kind, id)
	return true, nil
}

func (t *memTx) RecordAudit(_ context.Context, entry core.AuditEntry) error {
	t.state.audit = append(t.state.audit, entry)
	return nil
}

// cascade mirrors the ON DELETE rules of the schema: owned rows are deleted,
// list references are dropped and single references are cleared.
func (t *memTx) cascade(kind core.EntityKind, id string) {
	for _, def := range core.Children() {
		if def.Parent == kind {
			var orphans []string
			for _, rec := range t.state.children[def.Kind] {
				if rec.ParentID == id {
					orphans = append(orphans, rec.ID)
				}
			}
			for _, oid := range orphans {
				_, _ = t.Delete(context.Background(), def.Kind, oid)
			}
		}

		for _, c := range def.References() {
			if c.Ref.Target != kind || c.Ref.Parent {
				continue
			}
			for i, rec := range t.state.children[def.Kind] {
				ids := rec.Refs[c.Key]
				kept := ids[:0:0]
				for _, ref := range ids {
					if ref != id {
						kept = append(kept, ref)
					}
				}
				if len(kept) == 0 {
					kept = nil
				}
				t.state.children[def.Kind][i].Refs[c.Key] = kept
			}
		}
	}
}

func (t *memTx) index(kind core.EntityKind, id string) int {
	for i, rec := range t.state.children[kind] {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (t *memTx) exists(kind core.EntityKind, id string) bool {
	if kind == core.KindTopLevel {
		e, ok := t.state.entities[id]
		return ok && !e.Deleted
	}
	return t.index(kind, id) >= 0
}

// checkTargets verifies reference targets exist and dedupes them.
func (t *memTx) checkTargets(def core.KindDefinition, col core.ColumnSpec, ids []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		if !t.exists(col.Ref.Target, id) {
			return nil, fmt.Errorf("%s.%s: violates foreign key constraint, %s %s does not exist", def.Table, col.Key, col.Ref.Target, id)
		}
		seen[id] = true
		out = append(out, id)
		if !col.Ref.Many {
			break
		}
	}
	return out, nil
}

// scalarFields copies the scalar columns of def from fields, filling gaps with Null.
func scalarFields(def core.KindDefinition, fields map[string]core.Value) map[string]core.Value {
	out := make(map[string]core.Value, len(def.Columns))
	for _, c := range def.ScalarColumns() {
		if v, ok := fields[c.Key]; ok {
			out[c.Key] = v
		} else {
			out[c.Key] = core.Null()
		}
	}
	return out
}

func checkScalarKeys(def core.KindDefinition, fields map[string]core.Value) error {
	for key := range fields {
		if col, ok := def.Column(key); !ok || col.Ref != nil || key == core.IDColumn {
			return fmt.Errorf("%s has no scalar column %q", def.Sheet, key)
		}
	}
	return nil
}
