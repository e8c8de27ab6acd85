package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	logfilter "github.com/jmylchreest/slog-logfilter"

	"agesweep/internal/config"
)

const logFile = "agesweep.log"

// Setup builds the process logger from cfg and installs it as slog's default.
// Output goes to stdout and, when cfg.Dir is set, to an append-only file that
// is rotated once it is older than cfg.RotationDays.
// The returned closer releases the log file; it is never nil.
func Setup(cfg config.LoggingCfg) (*slog.Logger, io.Closer, error) {
	out, closer, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}

	format := "json"
	if cfg.Format == "text" {
		format = "text"
	}

	logger := logfilter.New(
		logfilter.WithLevel(parseLevel(cfg.Level)),
		logfilter.WithOutput(out),
		logfilter.WithFormat(format),
	)
	slog.SetDefault(logger)
	return logger, closer, nil
}

func SetLevel(level string) {
	logfilter.SetLevel(parseLevel(level))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openOutput(cfg config.LoggingCfg) (io.Writer, io.Closer, error) {
	if cfg.Dir == "" {
		return os.Stdout, nopCloser{}, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory %s: %w", cfg.Dir, err)
	}

	path := filepath.Join(cfg.Dir, logFile)
	rotateIfNeeded(path, cfg.RotationDays, time.Now())

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return io.MultiWriter(os.Stdout, f), f, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// rotateIfNeeded renames the log aside, stamped with its mtime, once it is
// older than rotationDays, then prunes earlier rotated logs past the same age.
func rotateIfNeeded(logPath string, rotationDays int, now time.Time) {
	if rotationDays <= 0 {
		return
	}
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoff := now.AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoff) {
		return
	}

	rotated := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotated); err != nil {
		slog.Warn("failed to rotate log file", "path", logPath, "error", err)
		return
	}
	pruneRotated(logPath, rotated, cutoff)
}

// pruneRotated keeps the file just rotated: its mtime is already past cutoff.
func pruneRotated(logPath, keep string, cutoff time.Time) {
	dir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) || entry.Name() == filepath.Base(keep) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			full := filepath.Join(dir, entry.Name())
			if err := os.Remove(full); err != nil {
				slog.Warn("failed to remove rotated log", "path", full, "error", err)
			}
		}
	}
}
