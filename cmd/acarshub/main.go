package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/sdrhub/acarshub/internal/alerts"
	"github.com/sdrhub/acarshub/internal/config"
	"github.com/sdrhub/acarshub/internal/hub"
	"github.com/sdrhub/acarshub/internal/sink"
	"github.com/sdrhub/acarshub/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	var (
		debug = flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	)
	flag.Parse()

	// Bootstrap logger for the window before config decides level and
	// format. automaxprocs has already sized GOMAXPROCS from container
	// CPU limits by the time we get here.
	logger := newLogger("info", "json")
	logger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("Starting acarshub")

	cfg, err := config.Load(&logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	logger = newLogger(cfg.LogLevel, cfg.LogFormat)
	cfg.LogConfig(logger)

	store, err := storage.Open(cfg.DatabasePath, storage.Options{SaveAll: cfg.SaveAll},
		alerts.GetCache(), logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to open database")
	}
	defer store.Close()

	wshub := sink.NewWSHub(logger)
	sinks := sink.Multi{wshub}
	if cfg.NATSURL != "" {
		ns, err := sink.NewNATSSink(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("url", cfg.NATSURL).Msg("Failed to connect NATS sink")
		}
		defer ns.Close()
		sinks = append(sinks, ns)
	}

	h := hub.New(cfg, store, sinks, logger)
	if err := h.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start hub")
	}
	defer h.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/ws", wshub)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		snap, err := h.Stats()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, snap)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown error")
	}
	wshub.Close()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

// newLogger builds the zerolog root logger.
func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if format == "pretty" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}
