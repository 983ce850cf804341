package email

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogProvider writes messages to the logger instead of sending them. The
// text body is logged in full so codes and links can be copied in dev.
type LogProvider struct {
	logger logrus.FieldLogger
}

// NewLogProvider creates a provider that only logs
func NewLogProvider(logger logrus.FieldLogger) *LogProvider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Name() string {
	return "log"
}

func (p *LogProvider) Send(ctx context.Context, msg *Message) error {
	p.logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Text,
	}).Info("email (not delivered)")
	return nil
}
