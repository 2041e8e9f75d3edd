// Package kinds registers the row schemas of every sheet in an
// import/export workbook. Importing it for side effects fills the core
// registry:
//
//	import _ "github.com/JonMunkholm/adoptsync/internal/core/kinds"
package kinds

import "github.com/JonMunkholm/adoptsync/internal/core"

func init() {
	registerTopLevel()
	registerOutcomes()
	registerReleases()
	registerLicenses()
	registerTags()
	registerCustomAttributes()
	registerTasks()
	registerTelemetryAttributes()
}

// idColumn is column A of every sheet.
func idColumn() core.ColumnSpec {
	return core.ColumnSpec{Key: core.IDColumn, Header: "ID", DBColumn: "id", Type: core.FieldText, Hidden: true, Width: 38}
}

func nameColumn() core.ColumnSpec {
	return core.ColumnSpec{Key: "name", Header: "Name", DBColumn: "name", Type: core.FieldText, Required: true, Width: 32}
}

func descriptionColumn() core.ColumnSpec {
	return core.ColumnSpec{Key: "description", Header: "Description", DBColumn: "description", Type: core.FieldText, Width: 48}
}
