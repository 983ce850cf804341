package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner executes background tasks and tracks them so they can be drained.
type Runner struct {
	logger *logrus.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a runner that reports task failures to logger.
func NewRunner(logger *logrus.Logger) *Runner {
	return &Runner{logger: logger}
}

// Go executes fn in a goroutine with:
// - a timeout derived from a context detached from the caller's cancellation
// - panic recovery
// - error logging
func (r *Runner) Go(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		defer func() {
			if rec := recover(); rec != nil {
				r.logger.WithFields(logrus.Fields{
					"task":  taskName,
					"panic": rec,
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			r.logger.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}

// Wait blocks until all scheduled tasks finish or the timeout elapses.
func (r *Runner) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("background tasks still running after %v", timeout)
	}
}
