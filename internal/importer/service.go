package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/adoptsync/internal/archive"
	"github.com/JonMunkholm/adoptsync/internal/core"
	"github.com/JonMunkholm/adoptsync/internal/logging"
	"github.com/JonMunkholm/adoptsync/internal/metrics"
	"github.com/JonMunkholm/adoptsync/internal/session"
	"github.com/JonMunkholm/adoptsync/internal/sheet"
	"github.com/JonMunkholm/adoptsync/internal/store"
)

// DefaultCommitTimeout bounds the commit transaction.
const DefaultCommitTimeout = 60 * time.Second

// DefaultMaxFileSize is the largest workbook accepted for a dry run.
const DefaultMaxFileSize = 20 << 20

// Options configures a Service. Zero values select defaults, a nil Limiter
// runs imports unbounded and a nil Archive keeps no copies.
type Options struct {
	Limiter       *core.ImportLimiter
	Archive       archive.Archiver
	Metrics       *metrics.Recorder
	CommitTimeout time.Duration
	MaxFileSize   int64
	Now           func() time.Time
}

// Service runs dry runs, commits and exports.
type Service struct {
	repo          store.Repository
	sessions      session.Store
	limiter       *core.ImportLimiter
	archive       archive.Archiver
	metrics       *metrics.Recorder
	commitTimeout time.Duration
	maxFileSize   int64
	now           func() time.Time
}

// NewService wires the import pipeline.
func NewService(repo store.Repository, sessions session.Store, opts Options) *Service {
	s := &Service{
		repo:          repo,
		sessions:      sessions,
		limiter:       opts.Limiter,
		archive:       opts.Archive,
		metrics:       opts.Metrics,
		commitTimeout: opts.CommitTimeout,
		maxFileSize:   opts.MaxFileSize,
		now:           opts.Now,
	}
	if s.archive == nil {
		s.archive = archive.Noop{}
	}
	if s.commitTimeout <= 0 {
		s.commitTimeout = DefaultCommitTimeout
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = DefaultMaxFileSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// DryRun parses a workbook, diffs it against the entity its Info sheet
// names and caches the plan. The returned result carries the session id
// even when it is invalid.
func (s *Service) DryRun(ctx context.Context, entityType core.EntityType, data []byte) (*core.DryRunResult, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	if int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", core.ErrFileTooLarge, len(data), s.maxFileSize)
	}

	var result *core.DryRunResult
	err := s.withSlot(ctx, func(ctx context.Context) error {
		doc, err := sheet.ReadBytes(data)
		if err != nil {
			return err
		}

		result, err = s.plan(ctx, entityType, doc)
		if err != nil {
			return err
		}

		archiveKey := s.archiveCopy(ctx, archive.ImportKey(entityType, uuid.NewString(), s.now()), data)
		_, err = s.sessions.Put(ctx, &core.ImportSession{
			EntityType: entityType,
			Result:     result,
			ArchiveKey: archiveKey,
		})
		if err != nil {
			return fmt.Errorf("store session: %w", err)
		}
		return nil
	})
	s.metrics.Observe(ctx, "dry_run", err == nil, time.Since(start))
	if err != nil {
		log.Warn("dry run failed", "entity_type", entityType, "error", err)
		return nil, err
	}

	log.Info("dry run complete",
		"session_id", result.SessionID,
		"entity_type", entityType,
		"entity_action", result.EntitySummary.Action,
		"to_create", result.Summary.ToCreate,
		"to_update", result.Summary.ToUpdate,
		"to_delete", result.Summary.ToDelete,
		"to_skip", result.Summary.ToSkip,
		"errors", result.Summary.ErrorCount,
	)
	return result, nil
}

// plan loads what the document's Info row points at and diffs against it.
func (s *Service) plan(ctx context.Context, entityType core.EntityType, doc *core.ParsedDocument) (*core.DryRunResult, error) {
	in := Input{EntityType: entityType, Document: doc}

	info, ok := doc.Info()
	if !ok {
		return nil, core.ErrMissingInfoSheet
	}

	if info.ID != "" {
		snap, err := s.repo.LoadGraph(ctx, entityType, info.ID)
		switch {
		case err == nil:
			in.Existing = snap
		case errors.Is(err, core.ErrNotFound):
		default:
			return nil, fmt.Errorf("load graph: %w", err)
		}
	}

	if name := info.Field("name").Text(); name != "" {
		rec, err := s.repo.FindByName(ctx, entityType, name)
		switch {
		case err == nil:
			in.NameOwner = rec.ID
		case errors.Is(err, core.ErrNotFound):
		default:
			return nil, fmt.Errorf("find by name: %w", err)
		}
	}

	return Diff(in), nil
}

// Commit consumes a session and applies its plan. The session is gone
// afterwards whatever the outcome, so a failed commit needs a new dry run.
// The import slot is taken before the session is consumed: a commit turned
// away as busy leaves the session in place for a retry.
func (s *Service) Commit(ctx context.Context, sessionID string) (*core.ExecutionResult, error) {
	start := time.Now()
	log := logging.FromContext(ctx).With("session_id", sessionID)

	var (
		sess *core.ImportSession
		res  *core.ExecutionResult
		ran  bool
	)
	err := s.withSlot(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.sessions.Consume(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Result == nil || !sess.Result.IsValid {
			return core.ErrPlanInvalid
		}

		ctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
		defer cancel()

		entry := core.NewAuditEntry(ctx, core.ActionImportCommit, sess.EntityType)
		entry.SessionID = sess.ID
		entry.ArchiveKey = sess.ArchiveKey

		ran = true
		res, err = Execute(ctx, s.repo, sess.Result, entry)
		return err
	})
	s.metrics.Observe(ctx, "commit", err == nil, time.Since(start))

	if err != nil {
		if !ran {
			return nil, err
		}
		log.Error("import commit failed", "entity_type", sess.EntityType, "error", err)
		s.auditFailure(ctx, sess, res, err)
		return res, err
	}

	for kind, st := range res.Stats {
		s.metrics.AddRows(string(kind), string(core.ActionCreate), st.Created)
		s.metrics.AddRows(string(kind), string(core.ActionUpdate), st.Updated)
		s.metrics.AddRows(string(kind), string(core.ActionDelete), st.Deleted)
	}
	log.Info("import committed",
		"entity_type", res.EntityType,
		"entity_id", res.EntityID,
		"duration_ms", res.DurationMS,
	)
	return res, nil
}

// auditFailure records a failed commit outside the rolled back transaction.
func (s *Service) auditFailure(ctx context.Context, sess *core.ImportSession, res *core.ExecutionResult, cause error) {
	entry := core.NewAuditEntry(ctx, core.ActionImportFailed, sess.EntityType)
	entry.SessionID = sess.ID
	entry.EntityID = sess.Result.EntitySummary.ExistingID
	entry.EntityName = sess.Result.EntitySummary.Name
	entry.ArchiveKey = sess.ArchiveKey
	entry.Error = cause.Error()
	if res != nil {
		entry.Stats = res.Stats
	}
	if err := s.repo.RecordAudit(context.WithoutCancel(ctx), entry); err != nil {
		logging.FromContext(ctx).Warn("record failed import", "session_id", sess.ID, "error", err)
	}
}

// Session returns a cached dry run without consuming it.
func (s *Service) Session(ctx context.Context, sessionID string) (*core.ImportSession, error) {
	return s.sessions.Get(ctx, sessionID)
}

// MaxExtension is the longest single session extension.
const MaxExtension = time.Hour

// ExtendSession restarts a session window at now + d.
func (s *Service) ExtendSession(ctx context.Context, sessionID string, d time.Duration) (*core.ImportSession, error) {
	if d <= 0 || d > MaxExtension {
		return nil, fmt.Errorf("invalid number of minutes: %s", d)
	}
	return s.sessions.Extend(ctx, sessionID, d)
}

// Export writes an entity graph as a workbook.
func (s *Service) Export(ctx context.Context, entityType core.EntityType, entityID string) (*core.ExportResult, error) {
	start := time.Now()
	res, err := s.export(ctx, entityType, entityID)
	s.metrics.Observe(ctx, "export", err == nil, time.Since(start))
	return res, err
}

func (s *Service) export(ctx context.Context, entityType core.EntityType, entityID string) (*core.ExportResult, error) {
	snap, err := s.repo.LoadGraph(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	doc := BuildDocument(snap)
	buf, err := sheet.Write(doc)
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	now := s.now()
	name := snap.Entity.Fields["name"].Text()
	res := &core.ExportResult{
		Filename: ExportFilename(name, now),
		MimeType: core.XLSXMimeType,
		Buffer:   buf,
		Size:     len(buf),
		Stats:    exportStats(doc),
	}

	entry := core.NewAuditEntry(ctx, core.ActionExport, entityType)
	entry.EntityID = entityID
	entry.EntityName = name
	entry.ArchiveKey = s.archiveCopy(ctx, archive.ExportKey(entityType, entityID, now), buf)
	if err := s.repo.RecordAudit(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("record export", "entity_id", entityID, "error", err)
	}

	logging.FromContext(ctx).Info("entity exported",
		"entity_type", entityType,
		"entity_id", entityID,
		"filename", res.Filename,
		"size", res.Size,
	)
	return res, nil
}

// AuditLog lists recent audit entries.
func (s *Service) AuditLog(ctx context.Context, filter store.AuditFilter) ([]core.AuditEntry, error) {
	return s.repo.ListAudit(ctx, filter)
}

// archiveCopy stores data and returns its key. Failures are logged and
// yield an empty key.
func (s *Service) archiveCopy(ctx context.Context, key string, data []byte) string {
	stored, err := s.archive.Put(ctx, key, data)
	if err != nil {
		logging.FromContext(ctx).Warn("archive workbook", "key", key, "error", err)
		return ""
	}
	return stored
}

func (s *Service) withSlot(ctx context.Context, fn func(context.Context) error) error {
	if s.limiter == nil {
		return fn(ctx)
	}
	return s.limiter.Run(ctx, fn)
}
