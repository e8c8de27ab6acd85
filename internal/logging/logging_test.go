package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agesweep/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestSetupWritesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, closer, err := Setup(config.LoggingCfg{Level: "info", Format: "json", Dir: dir, RotationDays: 30})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("sweep finished", "job", "exports")

	data, err := os.ReadFile(filepath.Join(dir, logFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "sweep finished")
	assert.Contains(t, string(data), "exports")
}

func TestSetupStdoutOnly(t *testing.T) {
	logger, closer, err := Setup(config.LoggingCfg{Level: "debug", Format: "text"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}

func TestRotateIfNeeded(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	path := filepath.Join(dir, logFile)

	oldRotated := filepath.Join(dir, logFile+".20200101-000000")
	require.NoError(t, os.WriteFile(oldRotated, []byte("ancient"), 0o644))
	require.NoError(t, os.Chtimes(oldRotated, now, now.AddDate(0, 0, -90)))

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	stale := now.AddDate(0, 0, -40)
	require.NoError(t, os.Chtimes(path, now, stale))

	rotateIfNeeded(path, 30, now)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "current log should have been moved aside")

	rotated := path + "." + stale.Format("20060102-150405")
	_, err = os.Stat(rotated)
	assert.NoError(t, err)

	_, err = os.Stat(oldRotated)
	assert.True(t, os.IsNotExist(err), "rotated logs past retention are pruned")
}

func TestRotateSkipsFreshLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logFile)
	require.NoError(t, os.WriteFile(path, []byte("fresh"), 0o644))

	rotateIfNeeded(path, 30, time.Now())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
