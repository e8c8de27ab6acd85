package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agesweep/internal/config"
	"agesweep/internal/database"
	"agesweep/internal/fsops"
	"agesweep/internal/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))
	mt := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mt, mt))
}

func parseConfig(t *testing.T, format string, args ...any) *config.Config {
	t.Helper()
	cfg, err := config.Parse(strings.NewReader(fmt.Sprintf(format, args...)))
	require.NoError(t, err)
	return cfg
}

func TestRunOnceDeletesExpired(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.log"), 72*time.Hour)
	writeFile(t, filepath.Join(root, "new.log"), time.Minute)
	writeFile(t, filepath.Join(root, "old.txt"), 72*time.Hour)
	writeFile(t, filepath.Join(root, "sub", "old.LOG"), 72*time.Hour)

	cfg := parseConfig(t, `
jobs:
  - name: sweep-basic
    path: %q
    older_than: 24h
    extensions: [log]
    recursive: true
`, root)

	results, err := RunOnce(context.Background(), cfg, Options{Logger: quietLogger()})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "sweep-basic", res.Job)
	assert.Equal(t, 2, res.Deleted)
	assert.Empty(t, res.Failures)

	assert.NoFileExists(t, filepath.Join(root, "old.log"))
	assert.FileExists(t, filepath.Join(root, "new.log"))
	assert.FileExists(t, filepath.Join(root, "old.txt"))
	assert.NoDirExists(t, filepath.Join(root, "sub"))
	assert.DirExists(t, root)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.FilesDeletedTotal.WithLabelValues("sweep-basic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DirsRemovedTotal.WithLabelValues("sweep-basic")))
}

func TestRunOnceDryRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.csv"), 72*time.Hour)
	writeFile(t, filepath.Join(root, "b.csv"), 72*time.Hour)
	writeFile(t, filepath.Join(root, "c.csv"), time.Minute)

	db, err := database.NewHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := parseConfig(t, `
jobs:
  - name: sweep-dry
    path: %q
    older_than: 1d
`, root)

	results, err := RunOnce(context.Background(), cfg, Options{DryRun: true, Logger: quietLogger(), DB: db})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Matched)
	assert.Zero(t, results[0].Deleted)

	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		assert.FileExists(t, filepath.Join(root, name))
	}

	records, err := db.GetByAction(database.ActionMatch)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MatchedFiles.WithLabelValues("sweep-dry")))
}

func TestRunOnceRecordsHistory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x", "old.bin"), 72*time.Hour)

	db, err := database.NewHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := parseConfig(t, `
jobs:
  - name: sweep-history
    path: %q
    older_than: 24h
    recursive: true
`, root)

	_, err = RunOnce(context.Background(), cfg, Options{Logger: quietLogger(), DB: db})
	require.NoError(t, err)

	counts, err := db.GetCountByAction()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[database.ActionDelete])
	assert.Equal(t, 1, counts[database.ActionRmdir])

	records, err := db.GetByJob("sweep-history", 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRunOnceContinuesAfterJobError(t *testing.T) {
	gone := t.TempDir()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.log"), 72*time.Hour)

	cfg := parseConfig(t, `
jobs:
  - name: sweep-gone
    path: %q
    older_than: 24h
  - name: sweep-after
    path: %q
    older_than: 24h
`, gone, root)
	require.NoError(t, os.RemoveAll(gone))

	before := testutil.ToFloat64(metrics.ErrorsTotal)
	results, err := RunOnce(context.Background(), cfg, Options{Logger: quietLogger()})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "sweep-gone")

	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, 1, results[1].Deleted)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ErrorsTotal))
}

func TestRunOnceSafetyGuardRefusesProtected(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "keep")
	writeFile(t, filepath.Join(keep, "old.log"), 72*time.Hour)
	writeFile(t, filepath.Join(root, "old.log"), 72*time.Hour)

	cfg := parseConfig(t, `
jobs:
  - name: sweep-guard
    path: %q
    older_than: 24h
    recursive: true
protected_paths: [%q]
`, root, keep)

	results, err := RunOnce(context.Background(), cfg, Options{Logger: quietLogger()})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, 1, res.Deleted)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, filepath.Join(keep, "old.log"), res.Failures[0].Path)
	assert.True(t, res.SafetyBlocked())
	assert.FileExists(t, filepath.Join(keep, "old.log"))
}

func TestRunOnceReportsPerFileFailures(t *testing.T) {
	root := t.TempDir()
	stuck := filepath.Join(root, "stuck.log")
	writeFile(t, stuck, 72*time.Hour)
	writeFile(t, filepath.Join(root, "gone.log"), 72*time.Hour)

	fake := &fsops.FakeDeleter{
		Fail: map[string]error{stuck: errors.New("device busy")},
		Next: fsops.OSDeleter{},
	}
	cfg := parseConfig(t, `
jobs:
  - name: sweep-failures
    path: %q
    older_than: 24h
`, root)

	results, err := RunOnce(context.Background(), cfg, Options{Logger: quietLogger(), Deleter: fake})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Deleted)
	require.Len(t, results[0].Failures, 1)
	assert.False(t, results[0].SafetyBlocked())
	assert.FileExists(t, stuck)
	assert.Len(t, fake.Calls, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DeleteFailuresTotal.WithLabelValues("sweep-failures")))
}

func TestRunOnceKeepRootFalse(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "spool")
	writeFile(t, filepath.Join(root, "only.tmp"), 72*time.Hour)

	cfg := parseConfig(t, `
jobs:
  - name: sweep-root
    path: %q
    older_than: 24h
    recursive: true
    keep_root: false
`, root)

	_, err := RunOnce(context.Background(), cfg, Options{Logger: quietLogger()})
	require.NoError(t, err)
	assert.NoDirExists(t, root)
}

func TestRunOnceCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.log"), 72*time.Hour)

	cfg := parseConfig(t, `
jobs:
  - name: sweep-cancelled
    path: %q
    older_than: 24h
`, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := RunOnce(ctx, cfg, Options{Logger: quietLogger()})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.FileExists(t, filepath.Join(root, "old.log"))
}

func TestRunOnceNilConfig(t *testing.T) {
	_, err := RunOnce(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestRunHonoursTrigger(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "first.log")
	second := filepath.Join(root, "second.log")
	writeFile(t, first, 72*time.Hour)

	cfg := parseConfig(t, `
jobs:
  - name: sweep-loop
    path: %q
    older_than: 24h
interval_minutes: 60
`, root)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{Logger: quietLogger()})
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(first)
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond, "initial run did not delete file")

	writeFile(t, second, 72*time.Hour)
	require.True(t, metrics.RequestRun())

	require.Eventually(t, func() bool {
		_, err := os.Stat(second)
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond, "triggered run did not delete file")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
