package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ExportCmd returns the export command.
func ExportCmd() *cobra.Command {
	var (
		entityType string
		entityID   string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an entity and its children to an .xlsx workbook",
		Example: `  adoptctl export --type product --id 3f2c...
  adoptctl export --type solution --id 3f2c... -o onboarding.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseType(entityType)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			e, err := connect(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.svc.Export(ctx, t, entityID)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = res.Filename
			}
			if err := os.WriteFile(path, res.Buffer, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%d bytes)\n", okMark(), path, res.Size)
			printExportStats(out, res.Stats)
			return nil
		},
	}

	cmd.Flags().StringVarP(&entityType, "type", "t", "product", "entity type: product or solution")
	cmd.Flags().StringVar(&entityID, "id", "", "entity id")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <name>_<date>.xlsx)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
