package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// LogLevelWatcher re-applies observability.log_level from the config file
// whenever the file changes. Other settings still need a restart.
type LogLevelWatcher struct {
	path    string
	logger  *logrus.Logger
	watcher *fsnotify.Watcher
}

// NewLogLevelWatcher starts watching the file's directory. Editors usually
// replace files rather than write them in place, so the file itself is not
// watched directly.
func NewLogLevelWatcher(path string, logger *logrus.Logger) (*LogLevelWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &LogLevelWatcher{path: abs, logger: logger, watcher: watcher}, nil
}

// Run processes file events until ctx is done.
func (w *LogLevelWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *LogLevelWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("failed to re-read config file")
		return
	}

	var partial struct {
		Observability struct {
			LogLevel string `yaml:"log_level"`
		} `yaml:"observability"`
	}
	if err := yaml.Unmarshal(data, &partial); err != nil {
		w.logger.WithError(err).Warn("failed to parse config file")
		return
	}
	if partial.Observability.LogLevel == "" {
		return
	}

	level, err := logrus.ParseLevel(partial.Observability.LogLevel)
	if err != nil {
		w.logger.WithError(err).Warn("ignoring invalid log level in config file")
		return
	}
	if level != w.logger.GetLevel() {
		w.logger.SetLevel(level)
		w.logger.WithField("level", level.String()).Info("log level changed")
	}
}

// WatchLogLevel watches path and blocks until ctx is done.
func WatchLogLevel(ctx context.Context, path string, logger *logrus.Logger) error {
	w, err := NewLogLevelWatcher(path, logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
