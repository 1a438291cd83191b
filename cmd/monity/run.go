package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/rzayevsahil/Monity/internal/config"
	"github.com/rzayevsahil/Monity/internal/database"
	"github.com/rzayevsahil/Monity/internal/limits"
	"github.com/rzayevsahil/Monity/internal/metrics"
	"github.com/rzayevsahil/Monity/internal/observer"
	"github.com/rzayevsahil/Monity/internal/storage"
	"github.com/rzayevsahil/Monity/internal/storage/sqlite"
	"github.com/rzayevsahil/Monity/internal/systemd"
	"github.com/rzayevsahil/Monity/internal/tracker"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the usage tracking daemon",
	Long:  `Start the foreground tracking daemon with session buffering, daily limit checks and an optional metrics endpoint.`,
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Monity")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	store, err := sqlite.New(db, observer.DisplayNameFromExe, logger)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	var onFlush tracker.FlushCallback
	if cfg.Limits.Enabled {
		checker := limits.NewChecker(store, limits.NotifierFunc(notifyLimitExceeded), logger)
		onFlush = func(appIDs []int64) {
			checker.CheckAndNotify(context.Background(), appIDs)
		}
		logger.Info().Msg("Daily limit checking enabled")
	}

	svc := tracker.NewService(observer.New(), store, tracker.ServiceConfig{
		PollInterval:      cfg.Tracking.ParsedPollInterval(),
		IdleThreshold:     cfg.Tracking.ParsedIdleThreshold(),
		MinSessionSeconds: cfg.Tracking.MinSessionSeconds,
		IgnoredProcesses:  cfg.Tracking.IgnoredProcesses,
		FlushCount:        cfg.Buffer.FlushCount,
		FlushInterval:     cfg.Buffer.ParsedFlushInterval(),
	}, onFlush, logger)

	if cfg.Metrics.Enabled {
		metrics.Register()
		addr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on metrics address %s: %w", addr, err)
		}
		metrics.Serve(listener, logger)
		logger.Info().Str("addr", addr).Msg("Metrics endpoint started")
	}

	retentionStop := make(chan struct{})
	if cfg.Retention.Days > 0 {
		go retentionLoop(svc, store, cfg.Retention.Days, retentionStop)
	}

	svc.Start(cmd.Context())

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd")
	}

	logger.Info().Msg("Monity startup complete")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			logger.Info().Msg("Reloading runtime settings")
			svc.ApplySettings(context.Background())
			continue
		}
		break
	}

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd")
	}

	close(retentionStop)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Error stopping usage tracker")
	}

	logger.Info().Msg("Monity stopped")
	return nil
}

// notifyLimitExceeded is the default limit notifier. Desktop toast delivery
// is platform specific; the daemon logs the event and counts it in metrics.
func notifyLimitExceeded(processName string, limitSeconds, usedSeconds int64, action string) error {
	log.Warn().
		Str("process", processName).
		Int64("limit_seconds", limitSeconds).
		Int64("used_seconds", usedSeconds).
		Str("action", action).
		Msg("Daily limit exceeded")
	return nil
}

// retentionLoop prunes history older than the configured window once at
// startup and then daily. The buffer is flushed first so the app prune sees
// every session that has already ended.
func retentionLoop(svc *tracker.Service, store storage.Store, days int, stop <-chan struct{}) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		if err := svc.Flush(context.Background()); err != nil {
			log.Error().Err(err).Msg("Pre-retention flush failed")
		}

		cutoff := time.Now().AddDate(0, 0, -days).Format(storage.DateFormat)
		result, err := store.Usage().DeleteDataOlderThan(context.Background(), cutoff)
		if err != nil {
			log.Error().Err(err).Str("cutoff", cutoff).Msg("Retention cleanup failed")
		} else if result.Sessions > 0 || result.Summaries > 0 || result.Apps > 0 {
			log.Info().
				Str("cutoff", cutoff).
				Int64("sessions", result.Sessions).
				Int64("summaries", result.Summaries).
				Int64("apps", result.Apps).
				Msg("Retention cleanup removed old data")
		}

		select {
		case <-ticker.C:
		case <-stop:
			return
		}
	}
}
