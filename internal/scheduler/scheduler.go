package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agesweep/internal/cleanup"
	"agesweep/internal/config"
	"agesweep/internal/database"
	"agesweep/internal/disk"
	"agesweep/internal/fsops"
	"agesweep/internal/limiter"
	"agesweep/internal/metrics"
	"agesweep/internal/safety"
)

// Options control a run. The zero value deletes through the OS with the
// default logger and no history.
type Options struct {
	DryRun  bool
	Logger  *slog.Logger
	DB      *database.HistoryDB // nil disables history
	Deleter fsops.Deleter       // innermost deleter, defaults to fsops.OSDeleter
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Deleter == nil {
		o.Deleter = fsops.OSDeleter{}
	}
	return o
}

// JobResult is the outcome of one job in a run.
type JobResult struct {
	Job      string
	Root     string
	Deleted  int // files removed, zero in dry runs
	Matched  int // files that would be removed, dry runs only
	Failures []cleanup.Failure
	Skipped  bool // root sits on a stale network mount
	Err      error
}

// SafetyBlocked reports whether the safety guard refused any removal.
func (r JobResult) SafetyBlocked() bool {
	for _, f := range r.Failures {
		if errors.Is(f, safety.ErrProtectedPath) ||
			errors.Is(f, safety.ErrOutsideAllowed) ||
			errors.Is(f, safety.ErrTraversal) ||
			errors.Is(f, safety.ErrSymlinkEscape) {
			return true
		}
	}
	return false
}

// RunOnce runs every job of cfg in order. A failing job does not stop the
// ones after it; job errors are joined into the returned error. Per-file
// failures are reported in the results, not as errors.
func RunOnce(ctx context.Context, cfg *config.Config, opts Options) ([]JobResult, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	opts = opts.withDefaults()
	logger := opts.Logger

	metrics.Init()
	start := time.Now()
	defer metrics.RecordRun(start)

	// OS <- safety guard <- pacing, shared by every job of the run
	validator := safety.NewValidator(cfg.Roots(), cfg.ProtectedPaths)
	deleter := limiter.NewDeleter(validator.Guard(opts.Deleter), cfg.ResourceLimits.MaxDeletesPerSecond)

	var (
		results []JobResult
		errs    []error
	)
	for _, rule := range cfg.Jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res := runJob(cfg, rule, deleter, opts, start)
		if res.Err != nil {
			metrics.ErrorsTotal.Inc()
			logger.Error("job failed", "job", rule.Name, "path", rule.Path, "error", res.Err)
			errs = append(errs, fmt.Errorf("job %s: %w", rule.Name, res.Err))
		}
		results = append(results, res)
	}

	var deleted, matched, failures int
	for _, r := range results {
		deleted += r.Deleted
		matched += r.Matched
		failures += len(r.Failures)
	}
	logger.Info("run complete",
		"jobs", len(results),
		"deleted", deleted,
		"matched", matched,
		"failures", failures,
		"dry_run", opts.DryRun,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return results, errors.Join(errs...)
}

func runJob(cfg *config.Config, rule config.JobRule, deleter fsops.Deleter, opts Options, now time.Time) JobResult {
	res := JobResult{Job: rule.Name, Root: rule.Path}
	logger := opts.Logger.With("job", rule.Name)

	timeout := time.Duration(cfg.NFSTimeout) * time.Second
	if timeout > 0 && disk.IsStale(rule.Path, timeout) {
		logger.Warn("skipping job: root is on a stale or unresponsive mount", "path", rule.Path)
		res.Skipped = true
		return res
	}

	cutoff, err := rule.ResolveCutoff(now)
	if err != nil {
		res.Err = err
		return res
	}
	job, err := cleanup.NewJob(rule.Path, cutoff, rule.Extensions)
	if err != nil {
		res.Err = err
		return res
	}

	collector := &cleanup.FailureCollector{}
	observers := []cleanup.Observer{
		metrics.NewObserver(rule.Name),
		cleanup.LogObserver{Logger: logger},
		collector,
	}
	var recorder *database.Recorder
	if opts.DB != nil {
		recorder = database.NewRecorder(opts.DB, rule.Name, logger)
		observers = append(observers, recorder)
	}

	ropts := []cleanup.Option{
		cleanup.WithDeleter(deleter),
		cleanup.WithObserver(observers...),
	}
	if rule.ShouldKeepRoot() {
		ropts = append(ropts, cleanup.WithKeepRoot())
	}
	remover := cleanup.New(job, rule.Recursive, rule.ShouldRemoveEmptyDirs(), ropts...)

	logger.Debug("starting job",
		"path", rule.Path,
		"cutoff", cutoff,
		"extensions", job.Extensions(),
		"recursive", rule.Recursive,
		"remove_empty_dirs", rule.ShouldRemoveEmptyDirs(),
	)

	if opts.DryRun {
		matched, err := remover.MatchingFiles()
		if err != nil {
			res.Err = err
			return res
		}
		for _, e := range matched {
			logger.Info("would delete", "path", e.Path, "size", e.Size, "mod_time", e.ModTime)
		}
		if recorder != nil {
			recorder.Matched(matched)
		}
		metrics.SetMatchedFiles(rule.Name, len(matched))
		res.Matched = len(matched)
	} else {
		n, err := remover.Delete()
		res.Deleted = n
		res.Failures = collector.Failures()
		if err != nil {
			res.Err = err
			return res
		}
		metrics.SetMatchedFiles(rule.Name, 0)
	}

	updateFreeSpace(rule.Path, logger)

	logger.Info("job complete",
		"deleted", res.Deleted,
		"matched", res.Matched,
		"failures", len(res.Failures),
	)
	return res
}

func updateFreeSpace(path string, logger *slog.Logger) {
	usage, err := disk.GetUsage(path)
	if err != nil {
		logger.Warn("failed to get disk usage", "path", path, "error", err)
		return
	}
	metrics.UpdateFreeSpacePercent(path, usage.FreePercent())
}

// Run runs immediately, then on every interval tick and on every trigger
// request until ctx is cancelled. Failed runs are logged and retried on the
// next tick.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	opts = opts.withDefaults()
	logger := opts.Logger

	metrics.Init()
	trigger := metrics.Trigger()

	runCycle := func() {
		if _, err := RunOnce(ctx, cfg, opts); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("error running cycle", "error", err)
		}
	}

	runCycle()

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			runCycle()
		case <-trigger:
			logger.Info("run triggered")
			runCycle()
		}
	}
}
