// Package core provides the business logic types for spreadsheet import/export.
// This package has no transport or storage dependencies and can be used by any frontend.
package core

import (
	"fmt"
	"strings"
	"time"
)

// EntityType is the kind of TopLevel entity an import/export unit is rooted at.
type EntityType string

const (
	EntityProduct  EntityType = "product"
	EntitySolution EntityType = "solution"
)

// ParseEntityType validates a user-supplied entity type.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(strings.ToLower(strings.TrimSpace(s))) {
	case EntityProduct:
		return EntityProduct, nil
	case EntitySolution:
		return EntitySolution, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
	}
}

// EntityKind identifies one row schema in a workbook.
type EntityKind string

const (
	KindTopLevel           EntityKind = "TopLevel"
	KindOutcome            EntityKind = "Outcome"
	KindRelease            EntityKind = "Release"
	KindLicense            EntityKind = "License"
	KindTag                EntityKind = "Tag"
	KindTask               EntityKind = "Task"
	KindTelemetryAttribute EntityKind = "TelemetryAttribute"
	KindCustomAttribute    EntityKind = "CustomAttribute"
)

// FieldType represents the declared data type of a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
	FieldJSON
	FieldList
)

// IDColumn is the key of the hidden identity column (column A on every sheet).
const IDColumn = "id"

// Reference describes a column whose cells name rows of another kind.
type Reference struct {
	Target EntityKind // Kind the names resolve against
	Parent bool       // Column selects the owning row (TelemetryAttribute -> Task)
	Many   bool       // Cell holds a list of names

	// Storage mapping. Single references use DBColumn on the owning table,
	// many-references use a join table.
	DBColumn     string
	JoinTable    string
	JoinColumn   string // join column pointing at the owning row
	TargetColumn string // join column pointing at the target row
}

// ColumnSpec defines one column of a sheet.
type ColumnSpec struct {
	Key        string    // Stable key used in Fields maps
	Header     string    // Header text written on export
	DBColumn   string    // Database column name (empty for join-table references)
	Type       FieldType // Expected data type
	Required   bool      // Value must be present
	Hidden     bool      // Column is hidden on export
	EnumValues []string  // Valid values for FieldEnum
	Separator  string    // Item separator for FieldList
	Rules      string    // Validator tag applied to non-null values
	Width      float64   // Export column width
	Ref        *Reference
	Detail     *DetailSheet // JSON column kept on a sheet of its own
}

// DetailSheet moves a TopLevel JSON column off the Info sheet. The stored
// value is an array of objects and the sheet holds one row per element.
type DetailSheet struct {
	Name    string
	Columns []DetailColumn
}

// DetailColumn maps one detail sheet column to one object key.
type DetailColumn struct {
	Key      string
	Header   string
	Required bool
	Width    float64
}

// KindDefinition contains everything needed to read, diff, write and persist one kind.
type KindDefinition struct {
	Kind       EntityKind
	Sheet      string
	Label      string
	Parent     EntityKind // Empty for TopLevel
	Table      string
	Rank       int          // Execution order; lower ranks run first
	Columns    []ColumnSpec // Columns[0] is always the id column
	NaturalKey []string     // Column keys forming the duplicate-detection key
}

// Column returns the column with the given key.
func (d KindDefinition) Column(key string) (ColumnSpec, bool) {
	for _, c := range d.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// DataColumns returns every column except the id column.
func (d KindDefinition) DataColumns() []ColumnSpec {
	cols := make([]ColumnSpec, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c.Key != IDColumn {
			cols = append(cols, c)
		}
	}
	return cols
}

// SheetColumns returns the columns written to the kind's own sheet.
func (d KindDefinition) SheetColumns() []ColumnSpec {
	cols := make([]ColumnSpec, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c.Detail == nil {
			cols = append(cols, c)
		}
	}
	return cols
}

// ScalarColumns returns data columns that are stored directly on the kind's table.
func (d KindDefinition) ScalarColumns() []ColumnSpec {
	var cols []ColumnSpec
	for _, c := range d.DataColumns() {
		if c.Ref == nil {
			cols = append(cols, c)
		}
	}
	return cols
}

// References returns the reference columns of the kind.
func (d KindDefinition) References() []ColumnSpec {
	var cols []ColumnSpec
	for _, c := range d.Columns {
		if c.Ref != nil {
			cols = append(cols, c)
		}
	}
	return cols
}

// ParentColumn returns the reference column that selects the owning row, if any.
func (d KindDefinition) ParentColumn() (ColumnSpec, bool) {
	for _, c := range d.Columns {
		if c.Ref != nil && c.Ref.Parent {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// ParseError is a non-fatal, row-scoped problem found while reading a document.
type ParseError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s row %d, %s: %s", e.Sheet, e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("%s row %d: %s", e.Sheet, e.Row, e.Message)
}

// ParsedRow is one non-blank data row read from a sheet.
type ParsedRow struct {
	Sheet       string           `json:"sheet"`
	RowNumber   int              `json:"rowNumber"`
	Kind        EntityKind       `json:"kind"`
	ID          string           `json:"id,omitempty"`
	Fields      map[string]Value `json:"fields"`
	ParseErrors []ParseError     `json:"parseErrors,omitempty"`
}

// Field returns the value of a column, or Null when absent.
func (r ParsedRow) Field(key string) Value {
	if v, ok := r.Fields[key]; ok {
		return v
	}
	return Null()
}

// ParsedDocument is the in-memory form of a workbook: one ordered row list per kind.
type ParsedDocument struct {
	Rows    map[EntityKind][]ParsedRow `json:"rows"`
	Present map[EntityKind]bool        `json:"present"`
	Errors  []ParseError               `json:"errors,omitempty"` // Sheet-level problems
}

// NewParsedDocument returns an empty document.
func NewParsedDocument() *ParsedDocument {
	return &ParsedDocument{
		Rows:    make(map[EntityKind][]ParsedRow),
		Present: make(map[EntityKind]bool),
	}
}

// Info returns the TopLevel row, if the Info sheet held one.
func (d *ParsedDocument) Info() (ParsedRow, bool) {
	rows := d.Rows[KindTopLevel]
	if len(rows) == 0 {
		return ParsedRow{}, false
	}
	return rows[0], true
}

// Action classifies a row in a dry run.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionSkip   Action = "skip"
)

// RowRef addresses a row of the imported document. It is the placeholder
// identity of a row that will only receive a real id during commit.
type RowRef struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
}

func (r RowRef) String() string {
	return fmt.Sprintf("%s!%d", r.Sheet, r.Row)
}

// Ref is a resolved reference: an existing id, or a same-batch row placeholder.
type Ref struct {
	ID  string  `json:"id,omitempty"`
	Row *RowRef `json:"row,omitempty"`
}

// Key returns a comparable identity for the reference.
func (r Ref) Key() string {
	if r.Row != nil {
		return "row:" + r.Row.String()
	}
	return "id:" + r.ID
}

// FieldChange is one column whose persisted and incoming values differ.
type FieldChange struct {
	Field      string `json:"field"`
	OldValue   Value  `json:"oldValue"`
	NewValue   Value  `json:"newValue"`
	DisplayOld string `json:"displayOld"`
	DisplayNew string `json:"displayNew"`
}

// ValidationError is a rule violation found during a dry run.
type ValidationError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s row %d, %s: %s", e.Sheet, e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("%s row %d: %s", e.Sheet, e.Row, e.Message)
}

// RowRecord is the dry-run classification of one row.
type RowRecord struct {
	Sheet            string            `json:"sheet"`
	RowNumber        int               `json:"rowNumber"`
	Kind             EntityKind        `json:"kind"`
	Action           Action            `json:"action"`
	Data             map[string]Value  `json:"data,omitempty"`
	ExistingID       string            `json:"existingId,omitempty"`
	Changes          []FieldChange     `json:"changes,omitempty"`
	Refs             map[string][]Ref  `json:"refs,omitempty"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
}

// Placeholder returns the row's same-batch identity.
func (r RowRecord) Placeholder() RowRef {
	return RowRef{Sheet: r.Sheet, Row: r.RowNumber}
}

// EntitySummary classifies the TopLevel row alone.
type EntitySummary struct {
	Name       string           `json:"name"`
	Action     Action           `json:"action"`
	ExistingID string           `json:"existingId,omitempty"`
	Data       map[string]Value `json:"data,omitempty"`
	Changes    []FieldChange    `json:"changes,omitempty"`
}

// Summary aggregates record actions across every non-TopLevel kind.
type Summary struct {
	TotalRecords int `json:"totalRecords"`
	ToCreate     int `json:"toCreate"`
	ToUpdate     int `json:"toUpdate"`
	ToDelete     int `json:"toDelete"`
	ToSkip       int `json:"toSkip"`
	ErrorCount   int `json:"errorCount"`
}

// DryRunResult is the classified change plan produced by the diff engine.
type DryRunResult struct {
	SessionID     string                     `json:"sessionId"`
	EntityType    EntityType                 `json:"entityType"`
	EntitySummary EntitySummary              `json:"entitySummary"`
	Records       map[EntityKind][]RowRecord `json:"records"`
	Summary       Summary                    `json:"summary"`
	IsValid       bool                       `json:"isValid"`
	Errors        []ValidationError          `json:"errors"`
}

// Recount recomputes Summary and IsValid from Records and Errors.
func (r *DryRunResult) Recount() {
	s := Summary{}
	for kind, records := range r.Records {
		if kind == KindTopLevel {
			continue
		}
		for _, rec := range records {
			s.TotalRecords++
			switch rec.Action {
			case ActionCreate:
				s.ToCreate++
			case ActionUpdate:
				s.ToUpdate++
			case ActionDelete:
				s.ToDelete++
			case ActionSkip:
				s.ToSkip++
			}
		}
	}
	s.ErrorCount = len(r.Errors)
	r.Summary = s
	r.IsValid = len(r.Errors) == 0
}

// ImportSession is a cached dry run awaiting commit.
type ImportSession struct {
	ID         string        `json:"id"`
	EntityType EntityType    `json:"entityType"`
	CreatedAt  time.Time     `json:"createdAt"`
	ExpiresAt  time.Time     `json:"expiresAt"`
	Result     *DryRunResult `json:"dryRunResult"`
	ArchiveKey string        `json:"archiveKey,omitempty"` // Where the uploaded workbook was archived
}

// Expired reports whether the session is past its expiry at t.
func (s *ImportSession) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// KindStats counts the operations applied to one kind.
type KindStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

// ExecutionStats holds per-kind counters returned from a commit.
type ExecutionStats map[EntityKind]KindStats

// Add records one applied operation.
func (s ExecutionStats) Add(kind EntityKind, action Action) {
	k := s[kind]
	switch action {
	case ActionCreate:
		k.Created++
	case ActionUpdate:
		k.Updated++
	case ActionDelete:
		k.Deleted++
	case ActionSkip:
		k.Skipped++
	}
	s[kind] = k
}

// ExecutionResult is returned from a commit.
type ExecutionResult struct {
	Success    bool           `json:"success"`
	EntityType EntityType     `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	EntityName string         `json:"entityName"`
	Stats      ExecutionStats `json:"stats"`
	Error      string         `json:"error,omitempty"`
	FailedStep string         `json:"failedStep,omitempty"`
	DurationMS int64          `json:"durationMs"`
}

// Record is one persisted row as seen by the diff engine and exporter.
type Record struct {
	ID       string              `json:"id"`
	ParentID string              `json:"parentId,omitempty"`
	Fields   map[string]Value    `json:"fields"`
	Refs     map[string][]string `json:"refs,omitempty"` // Reference column -> target ids
}

// Snapshot is the persisted state of one TopLevel entity and its children.
// Children are ordered as stored.
type Snapshot struct {
	EntityType EntityType              `json:"entityType"`
	Entity     Record                  `json:"entity"`
	Children   map[EntityKind][]Record `json:"children"`
}

// ExportResult is the output of exporting one entity.
type ExportResult struct {
	Filename string             `json:"filename"`
	MimeType string             `json:"mimeType"`
	Buffer   []byte             `json:"-"`
	Size     int                `json:"size"`
	Stats    map[EntityKind]int `json:"stats"`
}

// XLSXMimeType is the mime type of exported workbooks.
const XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
