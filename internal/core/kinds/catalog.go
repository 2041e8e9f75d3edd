package kinds

import "github.com/JonMunkholm/adoptsync/internal/core"

func registerOutcomes() {
	core.Register(core.KindDefinition{
		Kind:   core.KindOutcome,
		Sheet:  "Outcomes",
		Label:  "Outcomes",
		Parent: core.KindTopLevel,
		Table:  "outcomes",
		Rank:   1,
		Columns: []core.ColumnSpec{
			idColumn(),
			nameColumn(),
			descriptionColumn(),
		},
		NaturalKey: []string{"name"},
	})
}

func registerReleases() {
	core.Register(core.KindDefinition{
		Kind:   core.KindRelease,
		Sheet:  "Releases",
		Label:  "Releases",
		Parent: core.KindTopLevel,
		Table:  "releases",
		Rank:   1,
		Columns: []core.ColumnSpec{
			idColumn(),
			nameColumn(),
			{Key: "level", Header: "Level", DBColumn: "level", Type: core.FieldNumeric, Rules: "gte=0", Width: 10},
			{Key: "release_date", Header: "Release Date", DBColumn: "release_date", Type: core.FieldDate, Width: 14},
			descriptionColumn(),
		},
		NaturalKey: []string{"name"},
	})
}

func registerLicenses() {
	core.Register(core.KindDefinition{
		Kind:   core.KindLicense,
		Sheet:  "Licenses",
		Label:  "Licenses",
		Parent: core.KindTopLevel,
		Table:  "licenses",
		Rank:   1,
		Columns: []core.ColumnSpec{
			idColumn(),
			nameColumn(),
			{Key: "level", Header: "Level", DBColumn: "level", Type: core.FieldNumeric, Required: true, Rules: "gte=1,lte=3", Width: 10},
			descriptionColumn(),
		},
		NaturalKey: []string{"name"},
	})
}

func registerTags() {
	core.Register(core.KindDefinition{
		Kind:   core.KindTag,
		Sheet:  "Tags",
		Label:  "Tags",
		Parent: core.KindTopLevel,
		Table:  "tags",
		Rank:   1,
		Columns: []core.ColumnSpec{
			idColumn(),
			nameColumn(),
			{Key: "color", Header: "Color", DBColumn: "color", Type: core.FieldText, Rules: "hexcolor", Width: 12},
			descriptionColumn(),
		},
		NaturalKey: []string{"name"},
	})
}

func registerCustomAttributes() {
	core.Register(core.KindDefinition{
		Kind:   core.KindCustomAttribute,
		Sheet:  "CustomAttributes",
		Label:  "Custom Attributes",
		Parent: core.KindTopLevel,
		Table:  "custom_attributes",
		Rank:   1,
		Columns: []core.ColumnSpec{
			idColumn(),
			{Key: "key", Header: "Key", DBColumn: "key", Type: core.FieldText, Required: true, Width: 28},
			{Key: "value", Header: "Value", DBColumn: "value", Type: core.FieldText, Required: true, Width: 40},
			{Key: "display_order", Header: "Display Order", DBColumn: "display_order", Type: core.FieldNumeric, Rules: "gte=0", Width: 14},
		},
		NaturalKey: []string{"key"},
	})
}
