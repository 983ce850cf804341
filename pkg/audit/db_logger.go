package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Rebinder rewrites ? placeholders for the target SQL dialect.
type Rebinder interface {
	Rebind(query string) string
}

// DBLogger writes audit events to the audit_logs table created by the
// storage migrations.
type DBLogger struct {
	db      *sql.DB
	dialect Rebinder
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB, dialect Rebinder) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db, dialect: dialect}, nil
}

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	var metadataJSON []byte
	if len(event.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := l.dialect.Rebind(`
		INSERT INTO audit_logs (
			timestamp, event_type, status,
			account_id, username,
			resource_type, resource_id,
			ip_address, user_agent, request_id,
			message, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp, string(event.EventType), string(event.Status),
		event.AccountID, event.Username,
		string(event.ResourceType), event.ResourceID,
		event.IPAddress, event.UserAgent, event.RequestID,
		event.Message, nullableJSON(metadataJSON),
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Search returns events matching filter, newest first.
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	query := `
		SELECT
			id, timestamp, event_type, status,
			account_id, username,
			resource_type, resource_id,
			ip_address, user_agent, request_id,
			message, metadata
		FROM audit_logs
		WHERE 1=1
	`
	var args []interface{}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, *filter.EndTime)
	}
	if filter.AccountID != nil {
		query += " AND account_id = ?"
		args = append(args, *filter.AccountID)
	}
	if filter.Username != "" {
		query += " AND username = ?"
		args = append(args, filter.Username)
	}
	if len(filter.EventTypes) > 0 {
		query += " AND event_type IN (?" + strings.Repeat(", ?", len(filter.EventTypes)-1) + ")"
		for _, et := range filter.EventTypes {
			args = append(args, string(et))
		}
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.IPAddress != "" {
		query += " AND ip_address = ?"
		args = append(args, filter.IPAddress)
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := l.db.QueryContext(ctx, l.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (*AuditEvent, error) {
	var (
		event                                    AuditEvent
		eventType, status                        string
		accountID                                sql.NullInt64
		username, resourceType, resourceID       sql.NullString
		ipAddress, userAgent, requestID, message sql.NullString
		metadata                                 sql.NullString
	)
	err := rows.Scan(
		&event.ID, &event.Timestamp, &eventType, &status,
		&accountID, &username,
		&resourceType, &resourceID,
		&ipAddress, &userAgent, &requestID,
		&message, &metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log: %w", err)
	}

	event.EventType = EventType(eventType)
	event.Status = EventStatus(status)
	if accountID.Valid {
		id := accountID.Int64
		event.AccountID = &id
	}
	event.Username = username.String
	event.ResourceType = ResourceType(resourceType.String)
	event.ResourceID = resourceID.String
	event.IPAddress = ipAddress.String
	event.UserAgent = userAgent.String
	event.RequestID = requestID.String
	event.Message = message.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &event, nil
}

// Purge deletes events older than the policy's cutoff.
func (l *DBLogger) Purge(ctx context.Context, policy RetentionPolicy, now time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		l.dialect.Rebind(`DELETE FROM audit_logs WHERE timestamp < ?`),
		policy.Cutoff(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit logs: %w", err)
	}
	return res.RowsAffected()
}

// Close is a no-op; the connection pool is owned by the caller.
func (l *DBLogger) Close() error {
	return nil
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
