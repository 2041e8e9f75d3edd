// Package core provides the domain types for spreadsheet import and export.
//
// This package holds everything the importer, the stores and the transports
// agree on, independent of any HTTP or storage layer. It can be used by web
// handlers, CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Kind Definitions: Registered via the registry, each kind describes one
//     sheet: its columns, types, validation rules and parent kind.
//   - Values: Typed cell contents produced by [Coerce] and compared by
//     [Value.Equal] when deciding whether a row changed.
//   - Plans: A [DryRunResult] lists the action for every row of a document.
//     An [ExecutionResult] reports what a commit actually applied.
//   - Audit: Every commit, failed commit and export leaves an [AuditEntry].
//
// # Kind Registry
//
// Kinds are registered at init time using [Register]. Each [KindDefinition]
// carries everything needed to read, diff, write and persist one sheet:
//
//	core.Register(core.KindDefinition{
//	    Kind:   core.KindTag,
//	    Sheet:  "Tags",
//	    Parent: core.KindTopLevel,
//	    Rank:   1,
//	    Columns: []core.ColumnSpec{
//	        {Key: core.IDColumn, Header: "ID", Hidden: true},
//	        {Key: "name", Header: "Name", Required: true, Type: core.FieldText},
//	        {Key: "color", Header: "Color", Type: core.FieldText, Rules: "hexcolor"},
//	    },
//	    NaturalKey: []string{"name"},
//	})
//
// Rank orders execution: the TopLevel row first, then rank 1 kinds, then
// kinds that reference them.
//
// # Row Parsing
//
// Sheets are parsed leniently. [MapHeaders] locates columns by header text in
// any order and [ParseRow] coerces each cell. A cell that fails coercion is
// recorded as a [ParseError] on its row; the rest of the document is still
// read so that one dry run reports every problem at once.
//
// # Concurrency
//
// Dry runs and commits hold whole documents in memory. [ImportLimiter] caps
// how many run at once and lets shutdown wait for in-flight work.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - VAL001-VAL006: Validation errors (formats, missing columns)
//   - FILE001-FILE006: File errors (size, format, missing sheets)
//   - ENT001-ENT002: Entity errors (not found, unknown type)
//   - IMP001-IMP006: Import errors (invalid plan, busy, timeout)
//   - SES001-SES003: Session errors (unknown, expired, bad extension)
//
// # Audit Retention
//
// Audit rows older than the configured retention window are purged in
// batches by [StartRetentionScheduler].
package core
