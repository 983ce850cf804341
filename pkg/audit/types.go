package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Account lifecycle events
	EventTypeAuthRegister           EventType = "auth.register"
	EventTypeAuthEmailVerify        EventType = "auth.email_verify"
	EventTypeAuthEmailVerifyFailed  EventType = "auth.email_verify_failed"
	EventTypeAuthVerificationResend EventType = "auth.verification_resend"

	// Session events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"
	EventTypeAuthLogout      EventType = "auth.logout"

	// Credential events
	EventTypeAuthPasswordResetRequest EventType = "auth.password_reset_request"
	EventTypeAuthPasswordReset        EventType = "auth.password_reset"
	EventTypeAuthPasswordChange       EventType = "auth.password_change"
	EventTypeAuthProfileUpdate        EventType = "auth.profile_update"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"
	EventTypeAuthzRoleChange   EventType = "authz.role_change"

	// Collection mutations
	EventTypeDataWhiskeyCreate EventType = "data.whiskey_create"
	EventTypeDataWhiskeyUpdate EventType = "data.whiskey_update"
	EventTypeDataWhiskeyDelete EventType = "data.whiskey_delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeAccount ResourceType = "account"
	ResourceTypeWhiskey ResourceType = "whiskey"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	AccountID *int64 `json:"account_id,omitempty"`
	Username  string `json:"username,omitempty"`

	// Target
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// RetentionPolicy defines how long audit logs are kept
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy returns a default retention policy (90 days)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}

// Cutoff returns the oldest timestamp still retained at now.
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.RetentionDays)
}

// SearchFilter narrows an audit log query. Zero values match everything.
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	AccountID  *int64
	Username   string
	EventTypes []EventType
	Status     EventStatus
	IPAddress  string

	Limit  int
	Offset int
}

// MaxSearchLimit caps a single page of results.
const MaxSearchLimit = 500

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// ParseExportFormat accepts json, csv or ndjson; empty means json.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", ExportFormatJSON:
		return ExportFormatJSON, nil
	case ExportFormatCSV, ExportFormatNDJSON:
		return ExportFormat(s), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType is the media type served for the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatCSV:
		return "text/csv"
	case ExportFormatNDJSON:
		return "application/x-ndjson"
	default:
		return "application/json"
	}
}
