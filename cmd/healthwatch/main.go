package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/healthwatch/internal/alert"
	"github.com/hazz-dev/healthwatch/internal/checker"
	"github.com/hazz-dev/healthwatch/internal/config"
	"github.com/hazz-dev/healthwatch/internal/logging"
	"github.com/hazz-dev/healthwatch/internal/metrics"
	"github.com/hazz-dev/healthwatch/internal/scheduler"
	"github.com/hazz-dev/healthwatch/internal/server"
	"github.com/hazz-dev/healthwatch/internal/state"
	"github.com/hazz-dev/healthwatch/internal/storage"
	"github.com/hazz-dev/healthwatch/internal/version"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "healthwatch",
		Short:        "Periodic HTTP endpoint health monitor",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "healthwatch.yml", "config file path")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "healthwatch %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start polling targets and serve the health API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)
	logger.Info("config loaded", "targets", len(cfg.Targets), "interval", cfg.Poll.Interval.Duration, "timeout", cfg.Poll.Timeout.Duration)

	// 2. State store and scheduler
	store := state.New(cfg.Targets)
	probe := checker.NewHTTPChecker(cfg.Poll.Timeout.Duration, version.UserAgent())
	sched := scheduler.New(store, probe, cfg.Poll.Interval.Duration, logger)

	m := metrics.New()
	sched.OnResult(m.ObserveResult)
	sched.OnRound(m.ObserveRound)

	opts := server.Options{
		Metrics:     m.Handler(),
		CORSOrigins: cfg.Server.CORSOrigins,
	}

	// 3. Open the journal (if configured)
	if cfg.Storage.Path != "" {
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		sched.OnResult(journalRecorder(db, logger))
		opts.History = db
		logger.Info("journal enabled", "path", cfg.Storage.Path)
	}

	// 4. Build alerter (if configured)
	if cfg.Alerts.Webhook.URL != "" {
		alerter := alert.New(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Cooldown.Duration, logger)
		sched.OnResult(alerter.Notify)
		defer alerter.Wait()
	}

	// 5. Build API server
	apiServer := server.New(store, opts, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 7. Start scheduler
	sched.Start(ctx)
	logger.Info("scheduler started", "targets", len(cfg.Targets))

	// 8. Start HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 9. Wait for signal or server error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("HTTP server: %w", err)
		stop()
	}

	// 10. Graceful shutdown
	sched.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

// journalRecorder returns a scheduler callback that appends each result to
// the journal. Write failures are logged and otherwise ignored.
func journalRecorder(db *storage.DB, logger *slog.Logger) func(scheduler.Event) {
	return func(ev scheduler.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.RecordEvent(ctx, ev); err != nil {
			logger.Warn("journaling check result", "target", ev.Target.Name, "error", err)
		}
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single round against all configured targets",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return executeCheck(cmd, cfg)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the latest journaled result per target",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("status requires storage.path to be configured")
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return executeStatus(cmd, db)
}
