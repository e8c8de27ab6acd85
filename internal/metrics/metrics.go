package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce    sync.Once
	serverMutex sync.Mutex
	currentSrv  *http.Server
	trigger     chan struct{}
)

// Init registers all metrics with the default Prometheus registry.
// Safe to call multiple times.
func Init() {
	initOnce.Do(func() {
		initCleanupMetrics()
		initDaemonMetrics()

		registerCleanupMetrics()
		registerDaemonMetrics()

		// Exposed before the first run
		LastRunTimestamp.Set(0)

		trigger = make(chan struct{}, 1)
	})
}

// Trigger returns the channel signalled by POST /trigger. Init must have been called.
func Trigger() <-chan struct{} {
	return trigger
}

// RequestRun queues a run unless one is already pending.
func RequestRun() bool {
	select {
	case trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Handler serves /metrics, /health and /trigger.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !RequestRun() {
			http.Error(w, "Run already pending", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("Run triggered"))
	})

	return mux
}

// StartServer starts the metrics HTTP server in the background
func StartServer(addr string, logger *slog.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Warn("metrics server already running", "addr", currentSrv.Addr)
		return
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: Handler(),
	}
	currentSrv = srv

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
			ErrorsTotal.Inc()
		}
	}()
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger *slog.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv == nil {
		return
	}

	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
		ErrorsTotal.Inc()
	}
	currentSrv = nil
}
