package sheet

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/adoptsync/internal/core"
	_ "github.com/JonMunkholm/adoptsync/internal/core/kinds"
)

func sampleDocument() *core.ParsedDocument {
	doc := core.NewParsedDocument()
	doc.Rows[core.KindTopLevel] = []core.ParsedRow{{
		ID: "p-1",
		Fields: map[string]core.Value{
			"name":      core.String("Widget"),
			"resources": core.JSON([]byte(`[{"label":"Docs","url":"https://example.com"}]`)),
		},
	}}
	doc.Rows[core.KindRelease] = []core.ParsedRow{{
		ID: "r-1",
		Fields: map[string]core.Value{
			"name":         core.String("v1"),
			"level":        core.Number(1),
			"release_date": core.Date(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)),
		},
	}}
	doc.Rows[core.KindTask] = []core.ParsedRow{
		{
			ID: "t-1",
			Fields: map[string]core.Value{
				"name":       core.String("Install agent"),
				"weight":     core.Number(12.5),
				"license":    core.String("Pro"),
				"how_to_doc": core.List([]string{"https://a.example", "https://b.example"}),
				"outcomes":   core.List([]string{"Faster", "Cheaper"}),
			},
		},
		{
			Fields: map[string]core.Value{
				"name": core.String("New task"),
			},
		},
	}
	doc.Rows[core.KindTelemetryAttribute] = []core.ParsedRow{{
		ID: "ta-1",
		Fields: map[string]core.Value{
			"task":      core.String("Install agent"),
			"name":      core.String("installed"),
			"data_type": core.String("boolean"),
			"required":  core.Bool(true),
		},
	}}
	return doc
}

func TestWriteThenRead(t *testing.T) {
	data, err := Write(sampleDocument())
	require.NoError(t, err)

	doc, err := ReadBytes(data)
	require.NoError(t, err)
	assert.Empty(t, doc.Errors)

	for _, def := range core.All() {
		assert.True(t, doc.Present[def.Kind], "sheet %s should be present", def.Sheet)
	}

	info, ok := doc.Info()
	require.True(t, ok)
	assert.Equal(t, "p-1", info.ID)
	assert.Equal(t, 2, info.RowNumber)
	assert.True(t, info.Field("resources").Equal(core.JSON([]byte(`[{"label":"Docs","url":"https://example.com"}]`))))
	assert.True(t, info.Field("description").IsNull())

	releases := doc.Rows[core.KindRelease]
	require.Len(t, releases, 1)
	assert.Equal(t, "2024-02-29", releases[0].Field("release_date").Text())
	assert.Equal(t, float64(1), releases[0].Field("level").Num())

	tasks := doc.Rows[core.KindTask]
	require.Len(t, tasks, 2)
	assert.Equal(t, "t-1", tasks[0].ID)
	assert.Equal(t, 12.5, tasks[0].Field("weight").Num())
	assert.Equal(t, "Pro", tasks[0].Field("license").Str())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, tasks[0].Field("how_to_doc").Items())
	assert.Equal(t, []string{"Faster", "Cheaper"}, tasks[0].Field("outcomes").Items())
	assert.Empty(t, tasks[1].ID)
	assert.Equal(t, 3, tasks[1].RowNumber)

	attrs := doc.Rows[core.KindTelemetryAttribute]
	require.Len(t, attrs, 1)
	assert.True(t, attrs[0].Field("required").Boolean())
	assert.Equal(t, "boolean", attrs[0].Field("data_type").Str())

	assert.Empty(t, doc.Rows[core.KindTag])
}

func TestWriteHidesIDColumn(t *testing.T) {
	data, err := Write(sampleDocument())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytesReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		"Info", "Outcomes", "Releases", "Licenses", "Tags", "CustomAttributes", "Tasks", "TelemetryAttributes",
		"Resources", "Instructions",
	}, f.GetSheetList())

	header, err := f.GetRows("Info")
	require.NoError(t, err)
	assert.NotContains(t, header[0], "Resources")

	rows, err := f.GetRows("Resources")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Resource Name", "URL"}, {"Docs", "https://example.com"}}, rows)

	visible, err := f.GetColVisible("Tasks", "A")
	require.NoError(t, err)
	assert.False(t, visible)

	id, err := f.GetCellValue("Tasks", "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", id)
}

func TestReadIsPermissive(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Info"))
	require.NoError(t, f.SetSheetRow("Info", "A1", &[]interface{}{"ID", "Name"}))
	require.NoError(t, f.SetSheetRow("Info", "A2", &[]interface{}{"p-1", "Widget"}))
	require.NoError(t, f.SetSheetRow("Info", "A3", &[]interface{}{"p-2", "Second"}))

	_, err := f.NewSheet("Tasks")
	require.NoError(t, err)
	// Columns out of order, an unknown column, a blank row and a bad number.
	require.NoError(t, f.SetSheetRow("Tasks", "A1", &[]interface{}{"ID", "Weight", "Scratch", "NAME"}))
	require.NoError(t, f.SetSheetRow("Tasks", "A2", &[]interface{}{"t-1", "ten", "x", "Alpha"}))
	require.NoError(t, f.SetSheetRow("Tasks", "A4", &[]interface{}{"", "5", "", "Beta"}))

	_, err = f.NewSheet("Notes")
	require.NoError(t, err)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	doc, err := ReadBytes(buf.Bytes())
	require.NoError(t, err)

	require.Len(t, doc.Rows[core.KindTopLevel], 1)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, 3, doc.Errors[0].Row)

	tasks := doc.Rows[core.KindTask]
	require.Len(t, tasks, 2)
	assert.Equal(t, "Alpha", tasks[0].Field("name").Str())
	require.Len(t, tasks[0].ParseErrors, 1)
	assert.Equal(t, "Weight", tasks[0].ParseErrors[0].Column)
	assert.Equal(t, 4, tasks[1].RowNumber)
	assert.Equal(t, float64(5), tasks[1].Field("weight").Num())

	assert.False(t, doc.Present[core.KindTag])
}

func TestReadResourcesSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Resources"))
	require.NoError(t, f.SetSheetRow("Resources", "A1", &[]interface{}{"URL", "Resource Name"}))
	require.NoError(t, f.SetSheetRow("Resources", "A2", &[]interface{}{"https://docs.example", "Docs"}))
	require.NoError(t, f.SetSheetRow("Resources", "A4", &[]interface{}{"", "Runbook"}))
	_, err := f.NewSheet("Info")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Info", "A1", &[]interface{}{"ID", "Name"}))
	require.NoError(t, f.SetSheetRow("Info", "A2", &[]interface{}{"p-1", "Widget"}))
	_, err = f.NewSheet(InstructionsSheet)
	require.NoError(t, err)
	require.NoError(t, f.SetCellStr(InstructionsSheet, "A1", "Name"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	doc, err := ReadBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, doc.Errors)

	info, ok := doc.Info()
	require.True(t, ok)
	assert.JSONEq(t, `[{"label":"Docs","url":"https://docs.example"},{"label":"Runbook"}]`, string(info.Field("resources").Raw()))
	require.Len(t, info.ParseErrors, 1)
	assert.Equal(t, core.ParseError{Sheet: "Resources", Row: 4, Column: "URL", Message: "URL is required"}, info.ParseErrors[0])
}

func TestReadWithoutResourcesSheetClearsResources(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Info"))
	require.NoError(t, f.SetSheetRow("Info", "A1", &[]interface{}{"ID", "Name"}))
	require.NoError(t, f.SetSheetRow("Info", "A2", &[]interface{}{"p-1", "Widget"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	doc, err := ReadBytes(buf.Bytes())
	require.NoError(t, err)
	info, _ := doc.Info()
	assert.True(t, info.Field("resources").IsNull())
}

func TestWriteRejectsNonListResources(t *testing.T) {
	doc := core.NewParsedDocument()
	doc.Rows[core.KindTopLevel] = []core.ParsedRow{{Fields: map[string]core.Value{
		"name":      core.String("Widget"),
		"resources": core.JSON([]byte(`{"docs":"https://example.com"}`)),
	}}}
	_, err := Write(doc)
	assert.ErrorContains(t, err, "Resources")
}

func TestReadFailures(t *testing.T) {
	_, err := ReadBytes(nil)
	assert.ErrorIs(t, err, core.ErrEmptyFile)

	_, err = ReadBytes([]byte("id,name\n1,x\n"))
	assert.ErrorIs(t, err, core.ErrInvalidDocument)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Tasks"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = ReadBytes(buf.Bytes())
	assert.ErrorIs(t, err, core.ErrMissingInfoSheet)
}

func TestReadReportsMissingRequiredHeader(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Info"))
	require.NoError(t, f.SetSheetRow("Info", "A1", &[]interface{}{"ID", "Name"}))
	require.NoError(t, f.SetSheetRow("Info", "A2", &[]interface{}{"", "Widget"}))
	_, err := f.NewSheet("Licenses")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Licenses", "A1", &[]interface{}{"ID", "Name"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	doc, err := ReadBytes(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "Licenses", doc.Errors[0].Sheet)
	assert.Contains(t, doc.Errors[0].Message, "Level")
}

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }
