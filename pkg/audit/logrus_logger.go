package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger emits audit events as structured log lines.
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates an audit logger backed by logger
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{logger: logger}
}

func (l *LogrusLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_type": event.EventType,
		"status":     event.Status,
	}
	if event.AccountID != nil {
		fields["account_id"] = *event.AccountID
	}
	if event.Username != "" {
		fields["username"] = event.Username
	}
	if event.ResourceType != "" {
		fields["resource_type"] = event.ResourceType
		fields["resource_id"] = event.ResourceID
	}
	if event.IPAddress != "" {
		fields["ip"] = event.IPAddress
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := l.logger.WithFields(fields)
	switch event.Status {
	case EventStatusSuccess:
		entry.Info(event.Message)
	default:
		entry.Warn(event.Message)
	}
	return nil
}

func (l *LogrusLogger) Close() error {
	return nil
}
