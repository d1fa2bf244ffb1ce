// pasmonux is a device telemetry daemon: it probes the hardware twice a
// second, publishes an immutable value tree, and serves URL-path queries
// into that tree over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	_ "modernc.org/sqlite"

	"github.com/theonuverse/pasmonux/dbopen"
	"github.com/theonuverse/pasmonux/discover"
	"github.com/theonuverse/pasmonux/history"
	"github.com/theonuverse/pasmonux/httpapi"
	"github.com/theonuverse/pasmonux/monitor"
	"github.com/theonuverse/pasmonux/snapshot"
)

var version = "dev"

func main() {
	configPath := pflag.String("config", "", "path to YAML config file")
	addr := pflag.String("addr", "", "listen address (overrides config)")
	interval := pflag.Duration("interval", 0, "measurement interval (overrides config)")
	logLevel := pflag.String("log-level", "", "debug, info, warn or error (overrides config)")
	pflag.Parse()

	cfg := &Config{}
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			slog.Error("load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.defaults()
	if v := os.Getenv("PASMONUX_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *interval > 0 {
		cfg.Monitor.Interval = *interval
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	paths, device := discover.Probe(logger, discover.Options{
		SysRoot:  cfg.Monitor.SysRoot,
		ProcRoot: cfg.Monitor.ProcRoot,
	})
	logger.Info("device discovered",
		"manufacturer", device.Manufacturer,
		"model", device.ProductModel,
		"cores", len(device.Cores))

	store := snapshot.NewStore()

	var opts []monitor.Option

	// The privileged shell is optional: without it the daemon still serves
	// everything readable from sysfs and procfs.
	session, err := monitor.StartSession(cfg.Monitor.Shell, monitor.ProbeBatch)
	if err != nil {
		logger.Warn("privileged shell unavailable, degraded probing", "shell", cfg.Monitor.Shell, "error", err)
	} else {
		opts = append(opts, monitor.WithRunner(session))
	}

	var recorder *history.Recorder
	if cfg.History.Enabled {
		db, err := dbopen.Open(cfg.History.DBPath, dbopen.WithMkdirAll())
		if err != nil {
			slog.Error("history db", "path", cfg.History.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		recorder = history.NewRecorder(db, logger)
		if err := recorder.Init(); err != nil {
			slog.Error("history init", "error", err)
			os.Exit(1)
		}
		defer recorder.Close()

		every := uint64(cfg.History.Every)
		opts = append(opts, monitor.WithObserver(func(stats *monitor.SystemStats, v uint64) {
			if v%every != 0 {
				return
			}
			recorder.RecordAsync(history.Sample{
				Version:      v,
				TakenAt:      time.Now().UnixMilli(),
				CPUTemp:      stats.CPUTemp,
				GPUTemp:      stats.GPUTemp,
				BatteryTemp:  stats.BatteryTemp,
				BatteryLevel: stats.BatteryLevel,
				TotalCPU:     stats.TotalCPU,
				MemoryUsedMB: stats.MemoryUsedMB,
			})
		}))
	}

	mon := monitor.New(store, paths, device, cfg.Monitor, logger, opts...)
	go mon.Run(ctx)

	var hist httpapi.Historian
	if recorder != nil {
		hist = recorder
	}
	api := httpapi.NewServer(store, hist, logger, version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	}
}
