package kinds

import "github.com/JonMunkholm/adoptsync/internal/core"

func registerTopLevel() {
	core.Register(core.KindDefinition{
		Kind:  core.KindTopLevel,
		Sheet: "Info",
		Label: "Info",
		Table: "entities",
		Rank:  0,
		Columns: []core.ColumnSpec{
			idColumn(),
			nameColumn(),
			descriptionColumn(),
			{
				Key: "resources", Header: "Resources", DBColumn: "resources", Type: core.FieldJSON,
				Detail: &core.DetailSheet{
					Name: "Resources",
					Columns: []core.DetailColumn{
						{Key: "label", Header: "Resource Name", Required: true, Width: 40},
						{Key: "url", Header: "URL", Required: true, Width: 60},
					},
				},
			},
		},
		NaturalKey: []string{"name"},
	})
}
