package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"agesweep/internal/config"
	"agesweep/internal/database"
	"agesweep/internal/exitcodes"
	"agesweep/internal/logging"
	"agesweep/internal/metrics"
	"agesweep/internal/scheduler"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.StringP("config", "c", "/etc/agesweep/config.yaml", "Path to configuration file")
	dryRun := flag.BoolP("dry-run", "n", false, "List what would be deleted without deleting")
	once := flag.Bool("once", false, "Run all jobs once and exit (no loop)")
	logLevel := flag.String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	noMetrics := flag.Bool("no-metrics", false, "Do not serve Prometheus metrics")

	// Ad-hoc single job, no config file; implies --once
	path := flag.String("path", "", "Sweep this directory instead of the configured jobs")
	olderThan := flag.String("older-than", "", "Delete files older than this age (e.g. 36h, 7d)")
	cutoff := flag.String("cutoff", "", "Delete files modified before this instant (RFC3339 or 2006-01-02)")
	exts := flag.StringSlice("ext", nil, "Only delete files with these extensions (repeatable, case-insensitive)")
	recursive := flag.BoolP("recursive", "R", false, "Descend into subdirectories")
	removeEmpty := flag.Bool("remove-empty-dirs", true, "With --recursive, remove directories emptied by the sweep")
	keepRoot := flag.Bool("keep-root", true, "Never remove the swept directory itself")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *path != "" {
		cfg, err = config.FromJob(config.JobRule{
			Name:            "adhoc",
			Path:            *path,
			OlderThan:       *olderThan,
			Cutoff:          *cutoff,
			Extensions:      *exts,
			Recursive:       *recursive,
			RemoveEmptyDirs: removeEmpty,
			KeepRoot:        keepRoot,
		})
		*once = true
		*noMetrics = true
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: invalid configuration: %v\n", err)
		return exitcodes.InvalidConfig
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger, logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to set up logging: %v\n", err)
		return exitcodes.InvalidConfig
	}
	defer logCloser.Close()

	logger.Info("agesweep starting", "config", *configPath, "jobs", len(cfg.Jobs), "dry_run", *dryRun, "once", *once)
	if *dryRun {
		logger.Warn("DRY RUN MODE: no files will be deleted")
	}

	metrics.Init()
	if !*once && !*noMetrics {
		metrics.StartServer(cfg.PrometheusAddress(), logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(ctx, logger)
		}()
	}

	var db *database.HistoryDB
	if cfg.DatabasePath != "" {
		logger.Info("opening history database", "path", cfg.DatabasePath)
		db, err = database.NewHistoryDB(cfg.DatabasePath)
		if err != nil {
			logger.Error("failed to open history database", "path", cfg.DatabasePath, "error", err)
			return exitcodes.RuntimeError
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close history database", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go watchSignals(sigChan, cancel, logger)

	opts := scheduler.Options{DryRun: *dryRun, Logger: logger, DB: db}

	if *once {
		results, err := scheduler.RunOnce(ctx, cfg, opts)
		blocked := false
		for _, r := range results {
			blocked = blocked || r.SafetyBlocked()
		}
		code := exitcodes.ForRun(err, blocked)
		if code != exitcodes.Success {
			logger.Error("run finished with problems", "exit_code", code, "error", err)
		}
		return code
	}

	logger.Info("starting scheduler", "interval", cfg.Interval())
	if err := scheduler.Run(ctx, cfg, opts); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler failed", "error", err)
		return exitcodes.RuntimeError
	}

	logger.Info("agesweep stopped")
	return exitcodes.Success
}

// watchSignals cancels on SIGINT/SIGTERM and requests an immediate run on SIGHUP.
func watchSignals(sigChan <-chan os.Signal, cancel context.CancelFunc, logger *slog.Logger) {
	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if metrics.RequestRun() {
				logger.Info("received SIGHUP, run requested")
			}
			continue
		}
		logger.Info("received signal, shutting down gracefully", "signal", sig.String())
		cancel()
		return
	}
}
