package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/adoptsync/internal/archive"
	"github.com/JonMunkholm/adoptsync/internal/config"
	"github.com/JonMunkholm/adoptsync/internal/core"
	_ "github.com/JonMunkholm/adoptsync/internal/core/kinds" // Register all sheet kinds
	"github.com/JonMunkholm/adoptsync/internal/importer"
	"github.com/JonMunkholm/adoptsync/internal/logging"
	"github.com/JonMunkholm/adoptsync/internal/metrics"
	"github.com/JonMunkholm/adoptsync/internal/session"
	"github.com/JonMunkholm/adoptsync/internal/store"
	"github.com/JonMunkholm/adoptsync/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx, pool); err != nil {
			return err
		}
		slog.Info("migrations applied")
	}

	// Background jobs stop with this context, after the server has drained.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	sessions, closeSessions, err := openSessions(jobCtx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeSessions()

	archiver, err := openArchive(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New()
	}

	limiter := core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	rec.RegisterGauge("active_imports", "Dry runs and commits in progress.", func() float64 {
		return float64(limiter.ActiveCount())
	})

	repo := store.NewPostgresRepository(pool)
	svc := importer.NewService(repo, sessions, importer.Options{
		Limiter:       limiter,
		Archive:       archiver,
		Metrics:       rec,
		CommitTimeout: cfg.Import.CommitTimeout,
		MaxFileSize:   cfg.Import.MaxFileSize,
	})

	slog.Info("sheet kinds registered", "count", core.KindCount())

	go core.StartRetentionScheduler(jobCtx, repo, core.RetentionConfig{
		RetentionDays: cfg.Archive.AuditRetentionDays,
		BatchSize:     cfg.Archive.PurgeBatchSize,
		CheckInterval: cfg.Archive.PurgeInterval,
	})

	server := web.NewServer(web.Deps{Importer: svc, Health: repo, Metrics: rec, Limiter: limiter}, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := limiter.Status(); status.Active > 0 {
		slog.Info("waiting for imports to complete", "active", status.Active)
		if err := limiter.WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		} else {
			slog.Info("all imports completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openSessions builds the configured session backend. The memory store's
// reaper runs until ctx is cancelled; the returned func closes the Redis client.
func openSessions(ctx context.Context, cfg config.SessionConfig) (session.Store, func(), error) {
	opts := session.Options{
		TTL:          cfg.TTL,
		ReapInterval: cfg.ReapInterval,
		MaxSessions:  cfg.MaxSessions,
	}

	if strings.EqualFold(cfg.Backend, "redis") {
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("session store ready", "backend", "redis", "ttl", cfg.TTL)
		rs := session.NewRedisStore(client, opts)
		return rs, func() {
			if err := rs.Close(); err != nil {
				slog.Warn("closing redis session store", "error", err)
			}
		}, nil
	}

	mem := session.NewMemoryStore(opts)
	go mem.Run(ctx)
	slog.Info("session store ready", "backend", "memory", "ttl", cfg.TTL, "max", cfg.MaxSessions)
	return mem, func() {}, nil
}

// openArchive returns the S3 archiver when a bucket is configured.
func openArchive(ctx context.Context, cfg config.ArchiveConfig) (archive.Archiver, error) {
	if !cfg.Enabled() {
		slog.Info("workbook archive disabled")
		return archive.Noop{}, nil
	}
	s3, err := archive.NewS3(ctx, archive.Config{
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		Prefix:    cfg.Prefix,
		Endpoint:  cfg.Endpoint,
		PathStyle: cfg.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("workbook archive enabled", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	return s3, nil
}
