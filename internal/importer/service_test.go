package importer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/adoptsync/internal/core"
	"github.com/JonMunkholm/adoptsync/internal/sheet"
	"github.com/JonMunkholm/adoptsync/internal/store"
)

func TestRoundTripSkipsEverything(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)

	doc := f.exportDoc(t, "Gadget")
	first := f.dryRun(t, doc)
	second := f.dryRun(t, doc)

	require.True(t, first.IsValid, "errors: %v", first.Errors)
	assert.Equal(t, core.ActionUpdate, first.EntitySummary.Action)
	assert.Equal(t, f.ids["Gadget"], first.EntitySummary.ExistingID)
	assert.Empty(t, first.EntitySummary.Changes)

	for kind, recs := range first.Records {
		for _, rec := range recs {
			assert.Equal(t, core.ActionSkip, rec.Action, "%s row %d changes %v", kind, rec.RowNumber, rec.Changes)
		}
	}
	assert.Equal(t, core.Summary{TotalRecords: 7, ToSkip: 7}, first.Summary)
	assert.Equal(t, first.Summary, second.Summary)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestSingleCellUpdate(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)

	doc := f.exportDoc(t, "Widget")
	findRow(t, doc, core.KindTask, "Task A").Fields["name"] = core.String("Task A2")
	result := f.dryRun(t, doc)

	require.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Summary.ToUpdate)
	assert.Equal(t, result.Summary.TotalRecords-1, result.Summary.ToSkip)

	rec := recordFor(t, result, core.KindTask, "Task A2")
	assert.Equal(t, core.ActionUpdate, rec.Action)
	assert.Equal(t, f.ids["Task A"], rec.ExistingID)
	require.Len(t, rec.Changes, 1)
	assert.Equal(t, "name", rec.Changes[0].Field)
	assert.Equal(t, `"Task A"`, rec.Changes[0].DisplayOld)
	assert.Equal(t, `"Task A2"`, rec.Changes[0].DisplayNew)
}

func TestRenamedTargetKeepsReference(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)

	doc := f.exportDoc(t, "Gadget")
	findRow(t, doc, core.KindOutcome, "Faster onboarding").Fields["name"] = core.String("Quicker onboarding")
	findRow(t, doc, core.KindTask, "Install").Fields["outcomes"] = core.List([]string{"Quicker onboarding"})
	result := f.dryRun(t, doc)

	require.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Equal(t, core.ActionUpdate, recordFor(t, result, core.KindOutcome, "Quicker onboarding").Action)
	assert.Equal(t, core.ActionSkip, recordFor(t, result, core.KindTask, "Install").Action)
}

func TestResourcesSheetUpdatesEntity(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)
	ctx := context.Background()

	doc := f.exportDoc(t, "Gadget")
	want := `[{"label":"Docs","url":"https://example.com"},{"label":"Runbook","url":"https://example.com/runbook"}]`
	doc.Rows[core.KindTopLevel][0].Fields["resources"] = core.JSON([]byte(want))
	result := f.dryRun(t, doc)

	require.True(t, result.IsValid, "errors: %v", result.Errors)
	require.Len(t, result.EntitySummary.Changes, 1)
	assert.Equal(t, "resources", result.EntitySummary.Changes[0].Field)
	assert.Equal(t, result.Summary.TotalRecords, result.Summary.ToSkip)

	_, err := f.svc.Commit(ctx, result.SessionID)
	require.NoError(t, err)
	assert.JSONEq(t, want, string(f.graph(t, f.ids["Gadget"]).Entity.Fields["resources"].Raw()))
}

func TestRenamedTargetAloneKeepsReferrers(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)
	ctx := context.Background()

	doc := f.exportDoc(t, "Gadget")
	findRow(t, doc, core.KindTask, "Install").Fields["name"] = core.String("Install v2")
	result := f.dryRun(t, doc)

	require.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Summary.ToUpdate)
	assert.Equal(t, result.Summary.TotalRecords-1, result.Summary.ToSkip)

	task := recordFor(t, result, core.KindTask, "Install v2")
	require.Len(t, task.Changes, 1)
	assert.Equal(t, "name", task.Changes[0].Field)

	attr := recordFor(t, result, core.KindTelemetryAttribute, "installed")
	assert.Equal(t, core.ActionSkip, attr.Action)
	assert.Equal(t, []core.Ref{{ID: f.ids["Install"]}}, attr.Refs["task"])

	_, err := f.svc.Commit(ctx, result.SessionID)
	require.NoError(t, err)

	snap := f.graph(t, f.ids["Gadget"])
	require.Len(t, snap.Children[core.KindTelemetryAttribute], 1)
	assert.Equal(t, f.ids["Install"], snap.Children[core.KindTelemetryAttribute][0].ParentID)

	again := f.dryRun(t, f.exportDoc(t, "Gadget"))
	require.True(t, again.IsValid, "errors: %v", again.Errors)
	assert.Equal(t, again.Summary.TotalRecords, again.Summary.ToSkip)
}

func TestRenamedListTargetKeepsReferrers(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)

	doc := f.exportDoc(t, "Gadget")
	findRow(t, doc, core.KindOutcome, "Faster onboarding").Fields["name"] = core.String("Quicker onboarding")
	findRow(t, doc, core.KindTag, "core").Fields["name"] = core.String("essentials")
	result := f.dryRun(t, doc)

	require.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Summary.ToUpdate)
	assert.Equal(t, core.ActionSkip, recordFor(t, result, core.KindTask, "Install").Action)
}

func TestCommaInReferencedNameRoundTrips(t *testing.T) {
	f := newFixture(t)
	f.seed(t, func(ctx context.Context, tx store.Tx) error {
		id, err := tx.CreateEntity(ctx, core.EntityProduct, map[string]core.Value{"name": core.String("Widget")})
		if err != nil {
			return err
		}
		f.ids["Widget"] = id
		for _, name := range []string{"Faster, cheaper onboarding", "Reliability"} {
			if err := f.create(ctx, tx, core.KindOutcome, "Widget", name, nil, nil); err != nil {
				return err
			}
		}
		if err := f.create(ctx, tx, core.KindTag, "Widget", "sales, marketing", nil, nil); err != nil {
			return err
		}
		return f.create(ctx, tx, core.KindTask, "Widget", "T", nil, map[string][]string{
			"outcomes": {f.ids["Faster, cheaper onboarding"], f.ids["Reliability"]},
			"tags":     {f.ids["sales, marketing"]},
		})
	})

	doc := f.exportDoc(t, "Widget")
	assert.ElementsMatch(t, []string{"Faster", "cheaper onboarding", "Reliability"}, findRow(t, doc, core.KindTask, "T").Field("outcomes").Items())

	result := f.dryRun(t, doc)
	require.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Equal(t, result.Summary.TotalRecords, result.Summary.ToSkip)

	task := recordFor(t, result, core.KindTask, "T")
	assert.ElementsMatch(t, []core.Ref{{ID: f.ids["Faster, cheaper onboarding"]}, {ID: f.ids["Reliability"]}}, task.Refs["outcomes"])
	assert.Equal(t, []core.Ref{{ID: f.ids["sales, marketing"]}}, task.Refs["tags"])
}

func TestMissingSheetDeletesEveryRow(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)
	ctx := context.Background()

	data, err := sheet.Write(f.exportDoc(t, "Widget"))
	require.NoError(t, err)
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, wb.DeleteSheet(core.MustGet(core.KindTag).Sheet))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	result, err := f.svc.DryRun(ctx, core.EntityProduct, buf.Bytes())
	require.NoError(t, err)
	require.True(t, result.IsValid, "errors: %v", result.Errors)

	var deleted []string
	for _, rec := range result.Records[core.KindTag] {
		assert.Equal(t, core.ActionDelete, rec.Action)
		deleted = append(deleted, rec.ExistingID)
	}
	assert.ElementsMatch(t, []string{f.ids["red"], f.ids["blue"]}, deleted)
	assert.Equal(t, 2, result.Summary.ToDelete)

	res, err := f.svc.Commit(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, core.KindStats{Deleted: 2}, res.Stats[core.KindTag])
	assert.Empty(t, f.graph(t, f.ids["Widget"]).Children[core.KindTag])
	assert.Len(t, f.graph(t, f.ids["Widget"]).Children[core.KindTask], 2)
}

func TestBusyCommitKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)
	ctx := context.Background()

	limiter := core.NewImportLimiter(1, 20*time.Millisecond)
	busy := NewService(f.repo, f.sessions, Options{Limiter: limiter})

	result := f.dryRun(t, f.exportDoc(t, "Widget"))
	require.True(t, limiter.TryAcquire())

	_, err := busy.Commit(ctx, result.SessionID)
	assert.ErrorIs(t, err, core.ErrTooManyImports)

	limiter.Release()
	res, err := busy.Commit(ctx, result.SessionID)
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = busy.Commit(ctx, result.SessionID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestScenario(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)
	ctx := context.Background()

	doc := f.exportDoc(t, "Widget")
	findRow(t, doc, core.KindTask, "Task A").Fields["name"] = core.String("Task A2")
	removeRow(doc, core.KindTask, "Task B")
	addRow(doc, core.KindTask, map[string]core.Value{"name": core.String("Task C"), "weight": core.Number(20)})
	findRow(t, doc, core.KindTag, "red").Fields["color"] = core.String("#aa0000")
	removeRow(doc, core.KindTag, "blue")

	result := f.dryRun(t, doc)
	require.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Summary.ToCreate)
	assert.Equal(t, 2, result.Summary.ToUpdate)
	assert.Equal(t, 2, result.Summary.ToDelete)
	assert.Equal(t, 1, result.Summary.ToSkip)

	res, err := f.svc.Commit(ctx, result.SessionID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, f.ids["Widget"], res.EntityID)
	assert.Equal(t, core.KindStats{Created: 1, Updated: 1, Deleted: 1}, res.Stats[core.KindTask])
	assert.Equal(t, core.KindStats{Updated: 1, Deleted: 1}, res.Stats[core.KindTag])
	assert.Equal(t, core.KindStats{Skipped: 1}, res.Stats[core.KindOutcome])

	snap := f.graph(t, f.ids["Widget"])
	assert.ElementsMatch(t, []string{"Task A2", "Task C"}, namesOf(snap.Children[core.KindTask]))
	require.Len(t, snap.Children[core.KindTag], 1)
	assert.Equal(t, "red", snap.Children[core.KindTag][0].Fields["name"].Text())
	assert.Equal(t, "#aa0000", snap.Children[core.KindTag][0].Fields["color"].Text())
	require.Len(t, snap.Children[core.KindOutcome], 1)
	assert.Equal(t, f.ids["O1"], snap.Children[core.KindOutcome][0].ID)

	for _, task := range snap.Children[core.KindTask] {
		if task.Fields["name"].Text() == "Task A2" {
			assert.Equal(t, f.ids["Task A"], task.ID)
		} else {
			assert.NotEmpty(t, task.ID)
			assert.NotEqual(t, f.ids["Task B"], task.ID)
		}
	}

	entries, err := f.svc.AuditLog(ctx, store.AuditFilter{Action: core.ActionImportCommit})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, result.SessionID, entries[0].SessionID)
	assert.Equal(t, f.ids["Widget"], entries[0].EntityID)
}

func TestDeletionByOmission(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)

	doc := f.exportDoc(t, "Gadget")
	removeRow(doc, core.KindTelemetryAttribute, "installed")
	result := f.dryRun(t, doc)

	recs := result.Records[core.KindTelemetryAttribute]
	require.Len(t, recs, 1)
	assert.Equal(t, core.ActionDelete, recs[0].Action)
	assert.Equal(t, f.ids["installed"], recs[0].ExistingID)

	_, err := f.svc.Commit(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Empty(t, f.graph(t, f.ids["Gadget"]).Children[core.KindTelemetryAttribute])
}

func TestCreationByBlankID(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)

	doc := f.exportDoc(t, "Gadget")
	addRow(doc, core.KindOutcome, map[string]core.Value{"name": core.String("Fewer tickets")})
	result := f.dryRun(t, doc)

	rec := recordFor(t, result, core.KindOutcome, "Fewer tickets")
	assert.Equal(t, core.ActionCreate, rec.Action)
	assert.Empty(t, rec.ExistingID)

	_, err := f.svc.Commit(context.Background(), result.SessionID)
	require.NoError(t, err)

	outcomes := f.graph(t, f.ids["Gadget"]).Children[core.KindOutcome]
	require.Len(t, outcomes, 2)
	assert.Equal(t, "Fewer tickets", outcomes[1].Fields["name"].Text())
	assert.NotEmpty(t, outcomes[1].ID)
}

func TestTopLevelCreateVersusUpdate(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)

	t.Run("cleared id creates", func(t *testing.T) {
		doc := f.exportDoc(t, "Widget")
		info := &doc.Rows[core.KindTopLevel][0]
		info.ID = ""
		info.Fields["name"] = core.String("Widget Copy")

		result := f.dryRun(t, doc)
		require.True(t, result.IsValid, "errors: %v", result.Errors)
		assert.Equal(t, core.ActionCreate, result.EntitySummary.Action)
		assert.Empty(t, result.EntitySummary.ExistingID)
		assert.Equal(t, 5, result.Summary.ToCreate)
		assert.Zero(t, result.Summary.ToDelete)

		res, err := f.svc.Commit(context.Background(), result.SessionID)
		require.NoError(t, err)
		assert.NotEqual(t, f.ids["Widget"], res.EntityID)
		assert.Len(t, f.graph(t, res.EntityID).Children[core.KindTask], 2)
		assert.Len(t, f.graph(t, f.ids["Widget"]).Children[core.KindTask], 2)
	})

	t.Run("kept id updates", func(t *testing.T) {
		doc := f.exportDoc(t, "Widget")
		doc.Rows[core.KindTopLevel][0].Fields["name"] = core.String("Widget Pro")

		result := f.dryRun(t, doc)
		require.True(t, result.IsValid, "errors: %v", result.Errors)
		assert.Equal(t, core.ActionUpdate, result.EntitySummary.Action)
		assert.Equal(t, f.ids["Widget"], result.EntitySummary.ExistingID)
		require.Len(t, result.EntitySummary.Changes, 1)
		assert.Equal(t, "name", result.EntitySummary.Changes[0].Field)
	})
}

func TestNameConflict(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)
	f.seedFull(t)

	doc := f.exportDoc(t, "Gadget")
	doc.Rows[core.KindTopLevel][0].Fields["name"] = core.String("widget")
	result := f.dryRun(t, doc)

	assert.False(t, result.IsValid)
	assert.Contains(t, codes(result.Errors), CodeNameConflict)
}

func TestSessionIsSingleUse(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)
	ctx := context.Background()

	doc := f.exportDoc(t, "Widget")
	addRow(doc, core.KindTag, map[string]core.Value{"name": core.String("green")})
	result := f.dryRun(t, doc)

	_, err := f.svc.Commit(ctx, result.SessionID)
	require.NoError(t, err)
	_, err = f.svc.Commit(ctx, result.SessionID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	assert.Len(t, f.graph(t, f.ids["Widget"]).Children[core.KindTag], 3)
}

func TestInvalidPlanIsStoredButNotCommittable(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)
	ctx := context.Background()

	doc := f.exportDoc(t, "Widget")
	findRow(t, doc, core.KindTask, "Task A").Fields["weight"] = core.Number(150)
	result := f.dryRun(t, doc)

	assert.False(t, result.IsValid)
	assert.Contains(t, codes(result.Errors), CodeOutOfRange)
	assert.Contains(t, codes(result.Errors), CodeTotalWeight)
	assert.Equal(t, len(result.Errors), result.Summary.ErrorCount)

	sess, err := f.svc.Session(ctx, result.SessionID)
	require.NoError(t, err)
	assert.False(t, sess.Result.IsValid)

	_, err = f.svc.Commit(ctx, result.SessionID)
	assert.ErrorIs(t, err, core.ErrPlanInvalid)

	_, err = f.svc.Commit(ctx, result.SessionID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestSameBatchReferences(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)

	doc := f.exportDoc(t, "Gadget")
	addRow(doc, core.KindOutcome, map[string]core.Value{"name": core.String("Fewer tickets")})
	addRow(doc, core.KindLicense, map[string]core.Value{"name": core.String("Enterprise"), "level": core.Number(3)})
	addRow(doc, core.KindTask, map[string]core.Value{
		"name":     core.String("Configure SSO"),
		"weight":   core.Number(10),
		"license":  core.String("enterprise"),
		"outcomes": core.List([]string{"Fewer tickets", "Faster onboarding"}),
	})
	addRow(doc, core.KindTelemetryAttribute, map[string]core.Value{
		"task":      core.String("Configure SSO"),
		"name":      core.String("sso_enabled"),
		"data_type": core.String("boolean"),
	})
	result := f.dryRun(t, doc)
	require.True(t, result.IsValid, "errors: %v", result.Errors)

	task := recordFor(t, result, core.KindTask, "Configure SSO")
	require.Len(t, task.Refs["outcomes"], 2)
	assert.NotNil(t, task.Refs["outcomes"][0].Row)
	assert.Equal(t, f.ids["Faster onboarding"], task.Refs["outcomes"][1].ID)

	res, err := f.svc.Commit(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Stats[core.KindOutcome].Created+res.Stats[core.KindLicense].Created+
		res.Stats[core.KindTask].Created+res.Stats[core.KindTelemetryAttribute].Created)

	snap := f.graph(t, f.ids["Gadget"])
	ids := make(map[string]string)
	for _, kind := range []core.EntityKind{core.KindOutcome, core.KindLicense, core.KindTask} {
		for _, rec := range snap.Children[kind] {
			ids[rec.Fields["name"].Text()] = rec.ID
		}
	}

	var sso core.Record
	for _, rec := range snap.Children[core.KindTask] {
		if rec.ID == ids["Configure SSO"] {
			sso = rec
		}
	}
	assert.Equal(t, []string{ids["Enterprise"]}, sso.Refs["license"])
	assert.ElementsMatch(t, []string{ids["Fewer tickets"], ids["Faster onboarding"]}, sso.Refs["outcomes"])

	var attr core.Record
	for _, rec := range snap.Children[core.KindTelemetryAttribute] {
		if rec.Fields["name"].Text() == "sso_enabled" {
			attr = rec
		}
	}
	assert.Equal(t, ids["Configure SSO"], attr.ParentID)
}

func TestDanglingReference(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)

	doc := f.exportDoc(t, "Gadget")
	findRow(t, doc, core.KindTask, "Install").Fields["tags"] = core.List([]string{"core", "missing"})
	result := f.dryRun(t, doc)

	assert.False(t, result.IsValid)
	rec := recordFor(t, result, core.KindTask, "Install")
	require.Len(t, rec.ValidationErrors, 1)
	assert.Equal(t, CodeDanglingReference, rec.ValidationErrors[0].Code)
	assert.Equal(t, "missing", rec.ValidationErrors[0].Value)
}

func TestCommitAbortsWhenRecordVanished(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)
	ctx := context.Background()

	doc := f.exportDoc(t, "Widget")
	findRow(t, doc, core.KindTask, "Task A").Fields["weight"] = core.Number(7)
	addRow(doc, core.KindOutcome, map[string]core.Value{"name": core.String("O2")})
	result := f.dryRun(t, doc)
	require.True(t, result.IsValid, "errors: %v", result.Errors)

	f.seed(t, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Delete(ctx, core.KindTask, f.ids["Task A"])
		return err
	})

	res, err := f.svc.Commit(ctx, result.SessionID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRecordVanished)

	var execErr *core.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, execErr.Step, "update Tasks row")
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, execErr.Step, res.FailedStep)

	// The outcome created before the failure was rolled back.
	assert.Len(t, f.graph(t, f.ids["Widget"]).Children[core.KindOutcome], 1)

	entries, err := f.svc.AuditLog(ctx, store.AuditFilter{Action: core.ActionImportFailed})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, result.SessionID, entries[0].SessionID)

	_, err = f.svc.Commit(ctx, result.SessionID)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestExtendSession(t *testing.T) {
	f := newFixture(t)
	f.seedScenario(t)
	ctx := context.Background()

	result := f.dryRun(t, f.exportDoc(t, "Widget"))
	before, err := f.svc.Session(ctx, result.SessionID)
	require.NoError(t, err)
	expires := before.ExpiresAt

	sess, err := f.svc.ExtendSession(ctx, result.SessionID, 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, sess.ExpiresAt.After(expires))

	_, err = f.svc.ExtendSession(ctx, result.SessionID, 0)
	assert.Error(t, err)

	_, err = f.svc.ExtendSession(ctx, result.SessionID, MaxExtension+time.Minute)
	assert.Error(t, err)
}

func TestDryRunRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.DryRun(ctx, core.EntityProduct, nil)
	assert.ErrorIs(t, err, core.ErrEmptyFile)

	_, err = f.svc.DryRun(ctx, core.EntityProduct, []byte("not a workbook"))
	assert.ErrorIs(t, err, core.ErrInvalidDocument)

	small := NewService(f.repo, f.sessions, Options{MaxFileSize: 4})
	_, err = small.DryRun(ctx, core.EntityProduct, []byte("12345"))
	require.Error(t, err)
	assert.Equal(t, "FILE001", core.MapError(err).Code)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.seedFull(t)
	f.svc.now = func() time.Time { return time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC) }

	res, err := f.svc.Export(context.Background(), core.EntityProduct, f.ids["Gadget"])
	require.NoError(t, err)

	assert.Equal(t, "gadget_20250630.xlsx", res.Filename)
	assert.Equal(t, core.XLSXMimeType, res.MimeType)
	assert.Equal(t, len(res.Buffer), res.Size)
	assert.Equal(t, 1, res.Stats[core.KindTopLevel])
	assert.Equal(t, 1, res.Stats[core.KindTask])
	assert.Equal(t, 1, res.Stats[core.KindTelemetryAttribute])
	assert.Equal(t, 1, res.Stats[core.KindTag])

	_, err = f.svc.Export(context.Background(), core.EntitySolution, f.ids["Gadget"])
	assert.ErrorIs(t, err, core.ErrNotFound)

	entries, err := f.svc.AuditLog(context.Background(), store.AuditFilter{Action: core.ActionExport})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
