package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/statusbot/internal/checker"
	"github.com/hazz-dev/statusbot/internal/command"
	"github.com/hazz-dev/statusbot/internal/config"
	"github.com/hazz-dev/statusbot/internal/notify"
	"github.com/hazz-dev/statusbot/internal/outage"
	"github.com/hazz-dev/statusbot/internal/registry"
	"github.com/hazz-dev/statusbot/internal/report"
	"github.com/hazz-dev/statusbot/internal/scheduler"
	"github.com/hazz-dev/statusbot/internal/server"
	"github.com/hazz-dev/statusbot/internal/storage"
	"github.com/hazz-dev/statusbot/internal/version"
)

var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "statusbot",
		Short:        "Service status notifier for chat channels",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "services.yaml", "service file path")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file loaded before reading TIMEOUT, NOTIFICATION_INTERVAL and TOKEN")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(notificationsCmd())

	return root
}

// newLogger builds the process logger from the --log-level and --log-format flags.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (must be text or json)", format)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "statusbot %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func serveCmd() *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the command API and, optionally, scheduled notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, channel)
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "activate notifications for this channel at startup")
	return cmd
}

// buildNotifier selects the configured notifier. A webhook_url alongside the
// discord notifier mirrors every message to the webhook too.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, error) {
	switch cfg.Notifier.Type {
	case "discord":
		discord := notify.NewDiscord(cfg.Notifier.BaseURL, cfg.Token, logger)
		if cfg.Notifier.WebhookURL != "" {
			return notify.Multi{discord, notify.NewWebhook(cfg.Notifier.WebhookURL)}, nil
		}
		return discord, nil
	case "webhook":
		return notify.NewWebhook(cfg.Notifier.WebhookURL), nil
	case "log", "":
		return notify.NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier type %q", cfg.Notifier.Type)
	}
}

func runServe(cmd *cobra.Command, channel string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// 1. Load config
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Info("config loaded",
		"services", len(cfg.Services),
		"timeout", cfg.Timeout,
		"interval", cfg.Interval,
		"notifier", cfg.Notifier.Type,
	)

	// 2. Open SQLite
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// 3. Build notifier
	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}

	// 4. Build the engine
	reg, err := registry.New(cfg.Services)
	if err != nil {
		return err
	}
	probe := checker.NewHTTP(cfg.Timeout)
	tracker := outage.NewTracker()

	sched := scheduler.New(reg, probe, tracker, notifier, logger)
	sched.SetRecorder(db)

	reporter := report.New(reg, probe, logger)
	surface := command.New(reporter, sched, notifier, cfg.Interval, logger)

	// 5. Build API server
	apiServer := server.New(db, reg, surface, tracker, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 7. Optionally activate notifications right away
	if channel != "" {
		msg, err := surface.SetNotifications(command.ActionActive, channel)
		if err != nil {
			return fmt.Errorf("activating notifications: %w", err)
		}
		logger.Info(msg, "channel", channel)
	}

	// 8. Start HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 9. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		sched.Stop()
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 10. Graceful shutdown
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a one-off check of all configured services",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return runChecks(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
}

func statusCmd() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the last scheduled check of every service",
		Long: "Print the last scheduled check of every service. With a file-backed\n" +
			"storage path the database is read directly; otherwise the running\n" +
			"server is queried.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, serverURL)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "address of a running statusbot server")
	return cmd
}

func runStatus(cmd *cobra.Command, serverURL string) error {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Storage.Path == storage.MemoryPath {
		return executeStatus(cmd, newAPIClient(serverURL))
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return executeStatus(cmd, db)
}
