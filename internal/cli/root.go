// Package cli implements the adoptctl command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/adoptsync/internal/archive"
	"github.com/JonMunkholm/adoptsync/internal/config"
	"github.com/JonMunkholm/adoptsync/internal/core"
	"github.com/JonMunkholm/adoptsync/internal/importer"
	"github.com/JonMunkholm/adoptsync/internal/logging"
	"github.com/JonMunkholm/adoptsync/internal/session"
	"github.com/JonMunkholm/adoptsync/internal/store"
)

// RootCmd returns the adoptctl root command with every subcommand attached.
func RootCmd(version string) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:     "adoptctl",
		Short:   "Export and import product adoption workbooks",
		Version: version,
		Long: `adoptctl exports a product or solution with all of its outcomes, releases,
licenses, tags, custom attributes, tasks and telemetry attributes to an .xlsx
workbook, and imports an edited workbook back with a dry run first.

Configuration comes from the environment and an optional .env file, the same
variables the server reads.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			logging.SetupWriter(os.Stderr, logLevel, "text")
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(ExportCmd())
	root.AddCommand(ImportCmd())
	root.AddCommand(MigrateCmd())
	return root
}

// env is what a command needs to reach the database.
type env struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	svc  *importer.Service
}

func (e *env) Close() {
	e.pool.Close()
}

// connect loads configuration and opens the database. Sessions live in
// memory since a CLI dry run and its commit share one process.
func connect(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var archiver archive.Archiver = archive.Noop{}
	if cfg.Archive.Enabled() {
		s3, err := archive.NewS3(ctx, archive.Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Prefix:    cfg.Archive.Prefix,
			Endpoint:  cfg.Archive.Endpoint,
			PathStyle: cfg.Archive.PathStyle,
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
		archiver = s3
	}

	svc := importer.NewService(store.NewPostgresRepository(pool), session.NewMemoryStore(session.Options{}), importer.Options{
		Archive:       archiver,
		CommitTimeout: cfg.Import.CommitTimeout,
		MaxFileSize:   cfg.Import.MaxFileSize,
	})
	return &env{cfg: cfg, pool: pool, svc: svc}, nil
}

// commandContext tags ctx with the OS user so audit rows name who ran the
// command.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	actor := "cli"
	if u, err := user.Current(); err == nil {
		actor = "cli:" + u.Username
	}
	ctx = core.ContextWithActor(ctx, actor)
	return core.ContextWithUserAgent(ctx, "adoptctl")
}

func parseType(s string) (core.EntityType, error) {
	t, err := core.ParseEntityType(s)
	if err != nil {
		return "", fmt.Errorf("--type: %w", err)
	}
	return t, nil
}
