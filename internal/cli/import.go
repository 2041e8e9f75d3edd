package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ImportCmd returns the import command.
func ImportCmd() *cobra.Command {
	var (
		entityType string
		commit     bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Dry run a workbook import, and apply it with --commit",
		Long: `Import reads a workbook, compares it with the stored entity named on its
Info sheet and prints what would be created, updated, deleted and skipped.
Nothing is written unless --commit is given and the dry run found no errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseType(entityType)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			ctx := commandContext(cmd)
			e, err := connect(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			plan, err := e.svc.DryRun(ctx, t, data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printPlan(out, plan)
			if !plan.IsValid {
				return fmt.Errorf("dry run found %d errors, nothing was imported", len(plan.Errors))
			}
			if !commit {
				fmt.Fprintln(out, "\nDry run only. Re-run with --commit to apply.")
				return nil
			}

			res, err := e.svc.Commit(ctx, plan.SessionID)
			if err != nil {
				if res != nil && res.FailedStep != "" {
					fmt.Fprintf(out, "%s failed at %s\n", failMark(), res.FailedStep)
				}
				return err
			}
			printResult(out, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "product", "entity type: product or solution")
	cmd.Flags().BoolVar(&commit, "commit", false, "apply the import when the dry run is valid")

	return cmd
}
