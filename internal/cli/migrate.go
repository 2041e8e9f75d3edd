package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/adoptsync/internal/store"
)

// MigrateCmd returns the migrate command group.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := connect(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := store.Migrate(ctx, e.pool); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date\n", okMark())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := connect(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			return store.MigrationStatus(ctx, e.pool, cmd.OutOrStdout())
		},
	})

	return cmd
}
