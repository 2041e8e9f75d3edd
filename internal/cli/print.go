package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

var (
	createColor = color.New(color.FgGreen)
	updateColor = color.New(color.FgYellow)
	deleteColor = color.New(color.FgRed)
	skipColor   = color.New(color.Faint)
	errorColor  = color.New(color.FgRed, color.Bold)
	headerColor = color.New(color.Bold)
)

func okMark() string   { return color.New(color.FgGreen).Sprint("✓") }
func failMark() string { return errorColor.Sprint("✗") }

func actionLabel(a core.Action) string {
	switch a {
	case core.ActionCreate:
		return createColor.Sprint("CREATE")
	case core.ActionUpdate:
		return updateColor.Sprint("UPDATE")
	case core.ActionDelete:
		return deleteColor.Sprint("DELETE")
	default:
		return skipColor.Sprint("SKIP")
	}
}

// count renders n in c, or a faint dash for zero.
func count(c *color.Color, n int) string {
	if n == 0 {
		return skipColor.Sprint("-")
	}
	return c.Sprint(n)
}

// printPlan writes the entity action, a per-sheet action table and every
// validation error of a dry run.
func printPlan(w io.Writer, plan *core.DryRunResult) {
	es := plan.EntitySummary
	fmt.Fprintf(w, "%s %s %q\n", actionLabel(es.Action), plan.EntityType, es.Name)
	for _, ch := range es.Changes {
		fmt.Fprintf(w, "  %s: %s -> %s\n", ch.Field, ch.DisplayOld, ch.DisplayNew)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, headerColor.Sprint("SHEET")+"\tCREATE\tUPDATE\tDELETE\tSKIP")
	for _, def := range core.Children() {
		var c, u, d, s int
		for _, rec := range plan.Records[def.Kind] {
			switch rec.Action {
			case core.ActionCreate:
				c++
			case core.ActionUpdate:
				u++
			case core.ActionDelete:
				d++
			case core.ActionSkip:
				s++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", def.Sheet,
			count(createColor, c), count(updateColor, u), count(deleteColor, d), count(skipColor, s))
	}
	tw.Flush()

	if len(plan.Errors) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", errorColor.Sprintf("%d errors:", len(plan.Errors)))
	for _, e := range plan.Errors {
		fmt.Fprintf(w, "  %s %s\n", failMark(), formatValidation(e))
	}
}

func formatValidation(e core.ValidationError) string {
	var b strings.Builder
	b.WriteString(e.Sheet)
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ", %s", e.Column)
	}
	fmt.Fprintf(&b, ": %s [%s]", e.Message, e.Code)
	return b.String()
}

// printResult writes the per-sheet counters of a commit.
func printResult(w io.Writer, res *core.ExecutionResult) {
	fmt.Fprintf(w, "\n%s imported %s %q (%s) in %dms\n", okMark(), res.EntityType, res.EntityName, res.EntityID, res.DurationMS)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, headerColor.Sprint("SHEET")+"\tCREATED\tUPDATED\tDELETED\tSKIPPED")
	for _, def := range core.Children() {
		st := res.Stats[def.Kind]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", def.Sheet,
			count(createColor, st.Created), count(updateColor, st.Updated), count(deleteColor, st.Deleted), count(skipColor, st.Skipped))
	}
	tw.Flush()
}

// printExportStats writes the row count of every exported sheet.
func printExportStats(w io.Writer, stats map[core.EntityKind]int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, def := range core.Children() {
		fmt.Fprintf(tw, "  %s\t%d\n", def.Sheet, stats[def.Kind])
	}
	tw.Flush()
}
