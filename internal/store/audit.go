package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

func insertAudit(ctx context.Context, db DBTX, e core.AuditEntry) error {
	var stats []byte
	if len(e.Stats) > 0 {
		var err error
		if stats, err = json.Marshal(e.Stats); err != nil {
			return fmt.Errorf("encode audit stats: %w", err)
		}
	}

	_, err := db.Exec(ctx, `
		INSERT INTO import_audit (
			id, action, severity, entity_type, entity_id, entity_name, session_id,
			actor, ip_address, user_agent, stats, archive_key, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, string(e.Action), string(e.Severity), string(e.EntityType),
		toPgText(e.EntityID), toPgText(e.EntityName), toPgText(e.SessionID),
		toPgText(e.Actor), toPgText(e.IPAddress), toPgText(e.UserAgent),
		stats, toPgText(e.ArchiveKey), toPgText(e.Error), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func listAudit(ctx context.Context, db DBTX, f AuditFilter) ([]core.AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}

	rows, err := db.Query(ctx, `
		SELECT id::text, action, severity, entity_type, entity_id, entity_name, session_id,
		       actor, ip_address, user_agent, stats, archive_key, error, created_at
		FROM import_audit
		WHERE ($1 = '' OR entity_id = $1) AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC
		LIMIT $3`,
		f.EntityID, string(f.Action), f.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []core.AuditEntry
	for rows.Next() {
		var (
			e                                      core.AuditEntry
			action, severity, entityType           string
			entityID, entityName, sessionID, actor pgtype.Text
			ip, ua, archiveKey, errText            pgtype.Text
			stats                                  []byte
		)
		if err := rows.Scan(&e.ID, &action, &severity, &entityType, &entityID, &entityName, &sessionID,
			&actor, &ip, &ua, &stats, &archiveKey, &errText, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = core.AuditAction(action)
		e.Severity = core.AuditSeverity(severity)
		e.EntityType = core.EntityType(entityType)
		e.EntityID = entityID.String
		e.EntityName = entityName.String
		e.SessionID = sessionID.String
		e.Actor = actor.String
		e.IPAddress = ip.String
		e.UserAgent = ua.String
		e.ArchiveKey = archiveKey.String
		e.Error = errText.String
		if len(stats) > 0 {
			if err := json.Unmarshal(stats, &e.Stats); err != nil {
				return nil, fmt.Errorf("decode audit stats: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func purgeAudit(ctx context.Context, db DBTX, cutoff time.Time, batchSize int) (int64, error) {
	tag, err := db.Exec(ctx, `
		DELETE FROM import_audit
		WHERE id IN (SELECT id FROM import_audit WHERE created_at < $1 ORDER BY created_at LIMIT $2)`,
		cutoff, batchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("purge audit: %w", err)
	}
	return tag.RowsAffected(), nil
}

// toPgText converts an optional string to a nullable text argument.
func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
