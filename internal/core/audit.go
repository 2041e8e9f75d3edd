package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImportCommit AuditAction = "import_commit"
	ActionImportFailed AuditAction = "import_failed"
	ActionExport       AuditAction = "export"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry is one row of the import audit trail.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     AuditAction    `json:"action"`
	Severity   AuditSeverity  `json:"severity"`
	EntityType EntityType     `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	EntityName string         `json:"entityName,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Stats      ExecutionStats `json:"stats,omitempty"`
	ArchiveKey string         `json:"archiveKey,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NewAuditEntry builds an entry stamped with the request metadata carried
// on ctx.
func NewAuditEntry(ctx context.Context, action AuditAction, entityType EntityType) AuditEntry {
	return AuditEntry{
		ID:         uuid.NewString(),
		Action:     action,
		Severity:   determineSeverity(action),
		EntityType: entityType,
		Actor:      GetActorFromContext(ctx),
		IPAddress:  GetIPAddressFromContext(ctx),
		UserAgent:  GetUserAgentFromContext(ctx),
		CreatedAt:  time.Now().UTC(),
	}
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionImportCommit:
		return SeverityHigh
	case ActionImportFailed:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
