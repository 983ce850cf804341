package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout bounds the whole shutdown sequence.
const DefaultShutdownTimeout = 30 * time.Second

// ErrShutdownTimeout is returned when the deadline passes before every stage finishes.
var ErrShutdownTimeout = errors.New("shutdown timeout reached")

// ShutdownFunc releases one resource.
type ShutdownFunc func(context.Context) error

type stage struct {
	name  string
	funcs []ShutdownFunc
}

// ShutdownManager drains HTTP servers, then runs registered stages in
// registration order. Functions inside one stage run concurrently. Every
// stage runs even if an earlier one failed.
type ShutdownManager struct {
	logger  logrus.FieldLogger
	servers []*http.Server
	timeout time.Duration

	mu     sync.Mutex
	stages []stage
}

// NewShutdownManager creates a manager for servers. A zero timeout means
// DefaultShutdownTimeout.
func NewShutdownManager(logger logrus.FieldLogger, timeout time.Duration, servers ...*http.Server) *ShutdownManager {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ShutdownManager{logger: logger, servers: servers, timeout: timeout}
}

// Stage appends a named stage. Nil functions are dropped; a stage with no
// functions is not recorded.
func (sm *ShutdownManager) Stage(name string, fns ...ShutdownFunc) {
	st := stage{name: name}
	for _, fn := range fns {
		if fn != nil {
			st.funcs = append(st.funcs, fn)
		}
	}
	if len(st.funcs) == 0 {
		return
	}
	sm.mu.Lock()
	sm.stages = append(sm.stages, st)
	sm.mu.Unlock()
}

// Shutdown runs the sequence under the manager's own deadline. parent only
// contributes values, so a cancelled signal context still drains cleanly.
func (sm *ShutdownManager) Shutdown(parent context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	stages := append([]stage{{name: "http", funcs: sm.serverFuncs()}}, sm.stages...)
	sm.mu.Unlock()

	var errs []error
	for _, st := range stages {
		if err := sm.runStage(ctx, st); err != nil {
			if errors.Is(err, ErrShutdownTimeout) {
				return err
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d failed stages: %w", len(errs), errors.Join(errs...))
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}

func (sm *ShutdownManager) serverFuncs() []ShutdownFunc {
	funcs := make([]ShutdownFunc, 0, len(sm.servers))
	for _, srv := range sm.servers {
		funcs = append(funcs, func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	return funcs
}

func (sm *ShutdownManager) runStage(ctx context.Context, st stage) error {
	log := sm.logger.WithField("stage", st.name)
	log.Debug("Running shutdown stage")

	var (
		g     errgroup.Group
		errMu sync.Mutex
		errs  []error
	)
	for _, fn := range st.funcs {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
				log.WithError(err).Error("Shutdown step failed")
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("Shutdown timeout reached, abandoning remaining stages")
		return ErrShutdownTimeout
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", st.name, errors.Join(errs...))
	}
	return nil
}
