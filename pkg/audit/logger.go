package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close flushes any buffered events
	Close() error
}

// NewEvent creates an event stamped with the request context carried in ctx.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	event := &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		IPAddress: contextkeys.GetClientIP(ctx),
		UserAgent: contextkeys.GetUserAgent(ctx),
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
	if id, ok := contextkeys.GetAccountID(ctx); ok {
		event.AccountID = &id
	}
	return event
}

// AccountEvent builds an event about an account, attributed to that account
// unless the context already names an actor.
func AccountEvent(ctx context.Context, eventType EventType, status EventStatus, accountID int64, username, message string) *AuditEvent {
	event := NewEvent(ctx, eventType, status)
	if event.AccountID == nil && accountID != 0 {
		event.AccountID = &accountID
	}
	event.Username = username
	event.ResourceType = ResourceTypeAccount
	if accountID != 0 {
		event.ResourceID = strconv.FormatInt(accountID, 10)
	}
	event.Message = message
	return event
}

// NoOpLogger discards every event
type NoOpLogger struct{}

func (NoOpLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }
func (NoOpLogger) Close() error                                      { return nil }
