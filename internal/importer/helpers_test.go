package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/adoptsync/internal/core"
	_ "github.com/JonMunkholm/adoptsync/internal/core/kinds"
	"github.com/JonMunkholm/adoptsync/internal/session"
	"github.com/JonMunkholm/adoptsync/internal/sheet"
	"github.com/JonMunkholm/adoptsync/internal/store"
)

type fixture struct {
	repo     *store.MemoryRepository
	sessions *session.MemoryStore
	svc      *Service
	ids      map[string]string // seeded name -> id
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := store.NewMemoryRepository()
	sessions := session.NewMemoryStore(session.Options{})
	return &fixture{
		repo:     repo,
		sessions: sessions,
		svc:      NewService(repo, sessions, Options{Limiter: core.NewImportLimiter(2, 0)}),
		ids:      make(map[string]string),
	}
}

// seed runs fn in one transaction, failing the test on error.
func (f *fixture) seed(t *testing.T, fn func(ctx context.Context, tx store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.repo.WithTx(ctx, func(tx store.Tx) error { return fn(ctx, tx) }))
}

func (f *fixture) create(ctx context.Context, tx store.Tx, kind core.EntityKind, parent, name string, fields map[string]core.Value, refs map[string][]string) error {
	if fields == nil {
		fields = make(map[string]core.Value)
	}
	if _, ok := fields["name"]; !ok {
		fields["name"] = core.String(name)
	}
	id, err := tx.Create(ctx, kind, f.ids[parent], fields, refs)
	if err != nil {
		return err
	}
	f.ids[name] = id
	return nil
}

// seedScenario stores Product "Widget" with Task A (weight 5), Task B
// (weight 10), Tags red and blue and Outcome O1.
func (f *fixture) seedScenario(t *testing.T) {
	f.seed(t, func(ctx context.Context, tx store.Tx) error {
		id, err := tx.CreateEntity(ctx, core.EntityProduct, map[string]core.Value{"name": core.String("Widget")})
		if err != nil {
			return err
		}
		f.ids["Widget"] = id

		rows := []struct {
			kind   core.EntityKind
			name   string
			fields map[string]core.Value
		}{
			{core.KindTask, "Task A", map[string]core.Value{"weight": core.Number(5)}},
			{core.KindTask, "Task B", map[string]core.Value{"weight": core.Number(10)}},
			{core.KindTag, "red", map[string]core.Value{"color": core.String("#ff0000")}},
			{core.KindTag, "blue", map[string]core.Value{"color": core.String("#0000ff")}},
			{core.KindOutcome, "O1", nil},
		}
		for _, r := range rows {
			if err := f.create(ctx, tx, r.kind, "Widget", r.name, r.fields, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// seedFull stores a product touching every kind and reference column.
func (f *fixture) seedFull(t *testing.T) {
	f.seed(t, func(ctx context.Context, tx store.Tx) error {
		id, err := tx.CreateEntity(ctx, core.EntityProduct, map[string]core.Value{
			"name":        core.String("Gadget"),
			"description": core.String("Adoption plan"),
			"resources":   core.JSON([]byte(`[{"label":"Docs","url":"https://example.com"}]`)),
		})
		if err != nil {
			return err
		}
		f.ids["Gadget"] = id

		if err := f.create(ctx, tx, core.KindOutcome, "Gadget", "Faster onboarding", nil, nil); err != nil {
			return err
		}
		if err := f.create(ctx, tx, core.KindRelease, "Gadget", "v1", map[string]core.Value{"level": core.Number(1)}, nil); err != nil {
			return err
		}
		if err := f.create(ctx, tx, core.KindLicense, "Gadget", "Pro", map[string]core.Value{"level": core.Number(2)}, nil); err != nil {
			return err
		}
		if err := f.create(ctx, tx, core.KindTag, "Gadget", "core", nil, nil); err != nil {
			return err
		}
		if _, err := tx.Create(ctx, core.KindCustomAttribute, id, map[string]core.Value{
			"key": core.String("tier"), "value": core.String("gold"), "display_order": core.Number(1),
		}, nil); err != nil {
			return err
		}
		if err := f.create(ctx, tx, core.KindTask, "Gadget", "Install", map[string]core.Value{
			"weight":     core.Number(40),
			"how_to_doc": core.List([]string{"https://example.com/install"}),
		}, map[string][]string{
			"license":  {f.ids["Pro"]},
			"outcomes": {f.ids["Faster onboarding"]},
			"releases": {f.ids["v1"]},
			"tags":     {f.ids["core"]},
		}); err != nil {
			return err
		}
		return f.create(ctx, tx, core.KindTelemetryAttribute, "Install", "installed", map[string]core.Value{
			"data_type":        core.String("boolean"),
			"required":         core.Bool(true),
			"success_criteria": core.JSON([]byte(`{"equals":true}`)),
		}, nil)
	})
}

// exportDoc exports the entity and reads the workbook back.
func (f *fixture) exportDoc(t *testing.T, name string) *core.ParsedDocument {
	t.Helper()
	res, err := f.svc.Export(context.Background(), core.EntityProduct, f.ids[name])
	require.NoError(t, err)
	doc, err := sheet.ReadBytes(res.Buffer)
	require.NoError(t, err)
	return doc
}

// dryRun writes doc to a workbook and dry runs it.
func (f *fixture) dryRun(t *testing.T, doc *core.ParsedDocument) *core.DryRunResult {
	t.Helper()
	data, err := sheet.Write(doc)
	require.NoError(t, err)
	result, err := f.svc.DryRun(context.Background(), core.EntityProduct, data)
	require.NoError(t, err)
	return result
}

func (f *fixture) graph(t *testing.T, id string) *core.Snapshot {
	t.Helper()
	snap, err := f.repo.LoadGraph(context.Background(), core.EntityProduct, id)
	require.NoError(t, err)
	return snap
}

func findRow(t *testing.T, doc *core.ParsedDocument, kind core.EntityKind, name string) *core.ParsedRow {
	t.Helper()
	rows := doc.Rows[kind]
	for i := range rows {
		if rows[i].Field("name").Text() == name {
			return &rows[i]
		}
	}
	t.Fatalf("no %s row named %q", kind, name)
	return nil
}

func removeRow(doc *core.ParsedDocument, kind core.EntityKind, name string) {
	rows := doc.Rows[kind][:0]
	for _, r := range doc.Rows[kind] {
		if r.Field("name").Text() != name {
			rows = append(rows, r)
		}
	}
	doc.Rows[kind] = rows
}

func addRow(doc *core.ParsedDocument, kind core.EntityKind, fields map[string]core.Value) {
	def := core.MustGet(kind)
	doc.Rows[kind] = append(doc.Rows[kind], core.ParsedRow{
		Sheet:  def.Sheet,
		Kind:   kind,
		Fields: fields,
	})
}

func recordFor(t *testing.T, result *core.DryRunResult, kind core.EntityKind, name string) core.RowRecord {
	t.Helper()
	for _, rec := range result.Records[kind] {
		if rec.Data["name"].Text() == name {
			return rec
		}
	}
	t.Fatalf("no %s record named %q", kind, name)
	return core.RowRecord{}
}

func namesOf(recs []core.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Fields["name"].Text())
	}
	return out
}

func codes(errs []core.ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}
