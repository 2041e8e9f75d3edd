package kinds

import "github.com/JonMunkholm/adoptsync/internal/core"

// Data types a telemetry attribute may report.
var telemetryDataTypes = []string{"boolean", "number", "string", "timestamp"}

func registerTasks() {
	core.Register(core.KindDefinition{
		Kind:   core.KindTask,
		Sheet:  "Tasks",
		Label:  "Tasks",
		Parent: core.KindTopLevel,
		Table:  "tasks",
		Rank:   2,
		Columns: []core.ColumnSpec{
			idColumn(),
			nameColumn(),
			descriptionColumn(),
			{Key: "weight", Header: "Weight", DBColumn: "weight", Type: core.FieldNumeric, Rules: "gte=0,lte=100", Width: 10},
			{Key: "sequence", Header: "Sequence", DBColumn: "sequence_number", Type: core.FieldNumeric, Rules: "gte=0", Width: 10},
			{Key: "estimated_minutes", Header: "Est. Minutes", DBColumn: "estimated_minutes", Type: core.FieldNumeric, Rules: "gte=0", Width: 12},
			{
				Key: "license", Header: "License", Type: core.FieldText, Width: 20,
				Ref: &core.Reference{Target: core.KindLicense, DBColumn: "license_id"},
			},
			{Key: "notes", Header: "Notes", DBColumn: "notes", Type: core.FieldText, Width: 40},
			{Key: "how_to_doc", Header: "How To Doc", DBColumn: "how_to_doc", Type: core.FieldList, Separator: "\n", Rules: "dive,url", Width: 40},
			{Key: "how_to_video", Header: "How To Video", DBColumn: "how_to_video", Type: core.FieldList, Separator: "\n", Rules: "dive,url", Width: 40},
			{
				Key: "outcomes", Header: "Outcomes", Type: core.FieldList, Separator: ",", Width: 30,
				Ref: &core.Reference{Target: core.KindOutcome, Many: true, JoinTable: "task_outcomes", JoinColumn: "task_id", TargetColumn: "outcome_id"},
			},
			{
				Key: "releases", Header: "Releases", Type: core.FieldList, Separator: ",", Width: 30,
				Ref: &core.Reference{Target: core.KindRelease, Many: true, JoinTable: "task_releases", JoinColumn: "task_id", TargetColumn: "release_id"},
			},
			{
				Key: "tags", Header: "Tags", Type: core.FieldList, Separator: ",", Width: 30,
				Ref: &core.Reference{Target: core.KindTag, Many: true, JoinTable: "task_tags", JoinColumn: "task_id", TargetColumn: "tag_id"},
			},
		},
		NaturalKey: []string{"name"},
	})
}

func registerTelemetryAttributes() {
	core.Register(core.KindDefinition{
		Kind:   core.KindTelemetryAttribute,
		Sheet:  "TelemetryAttributes",
		Label:  "Telemetry Attributes",
		Parent: core.KindTask,
		Table:  "telemetry_attributes",
		Rank:   3,
		Columns: []core.ColumnSpec{
			idColumn(),
			{
				Key: "task", Header: "Task", Type: core.FieldText, Required: true, Width: 32,
				Ref: &core.Reference{Target: core.KindTask, Parent: true, DBColumn: "task_id"},
			},
			nameColumn(),
			{Key: "data_type", Header: "Data Type", DBColumn: "data_type", Type: core.FieldEnum, Required: true, EnumValues: telemetryDataTypes, Width: 14},
			{Key: "required", Header: "Required", DBColumn: "is_required", Type: core.FieldBool, Width: 10},
			{Key: "success_criteria", Header: "Success Criteria", DBColumn: "success_criteria", Type: core.FieldJSON, Width: 40},
			descriptionColumn(),
		},
		NaturalKey: []string{"task", "name"},
	})
}
