package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelWatcher_AppliesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whiskey.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observability:\n  log_level: info\n"), 0o600))

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	w, err := NewLogLevelWatcher(path, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte("observability:\n  log_level: debug\n"), 0o600))
	assert.Eventually(t, func() bool {
		return logger.GetLevel() == logrus.DebugLevel
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestLogLevelWatcher_IgnoresInvalidLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whiskey.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observability:\n  log_level: shouting\n"), 0o600))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	w, err := NewLogLevelWatcher(path, logger)
	require.NoError(t, err)
	w.reload()

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "ignoring invalid log level in config file", hook.LastEntry().Message)
	require.NoError(t, w.watcher.Close())
}

func TestNewLogLevelWatcher_MissingDirectory(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewLogLevelWatcher(filepath.Join(t.TempDir(), "missing", "whiskey.yaml"), logger)
	assert.Error(t, err)
}
