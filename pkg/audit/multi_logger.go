package audit

import (
	"context"
	"errors"
	"time"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/async"
)

const asyncWriteTimeout = 5 * time.Second

// MultiLogger fans events out to several loggers. When a runner is set,
// writes happen in the background and Log never blocks the caller.
type MultiLogger struct {
	loggers []Logger
	runner  *async.Runner
}

// NewMultiLogger creates a synchronous multi-logger
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// NewAsyncMultiLogger creates a multi-logger that writes through runner
func NewAsyncMultiLogger(runner *async.Runner, loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers, runner: runner}
}

// Log logs an audit event to all configured loggers
func (m *MultiLogger) Log(ctx context.Context, event *AuditEvent) error {
	if m.runner == nil {
		return m.logSync(ctx, event)
	}

	for _, l := range m.loggers {
		l := l
		m.runner.Go(ctx, asyncWriteTimeout, "audit "+string(event.EventType), func(ctx context.Context) error {
			return l.Log(ctx, event)
		})
	}
	return nil
}

func (m *MultiLogger) logSync(ctx context.Context, event *AuditEvent) error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all loggers
func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
