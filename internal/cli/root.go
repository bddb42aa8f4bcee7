package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/ledgerscan/internal/control"
	"github.com/vietddude/ledgerscan/internal/core/config"
	"github.com/vietddude/stylelog"
)

var (
	cfgPath string
	envFile string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "ledgerscan",
	Short: "Etherscan account tracker",
	Long: `ledgerscan fetches an address's balance, the ETH price and its transaction
history from an Etherscan-compatible API, and keeps a deduplicated CSV ledger.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file, skipped when absent")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file, skipped when absent")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env and the config file and initializes the default logger.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, *slog.Logger, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load env file", "error", err)
		return nil, nil, err
	}

	path := cfgPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		// Fall back to default logger for config load errors
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		return nil, nil, err
	}

	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		slogLevel = slog.LevelError
	}

	if cfg.Logging.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
	} else {
		stylelog.InitDefault(&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	}

	log := slog.Default().With("run_id", uuid.NewString())
	log.Debug("Configuration loaded", "config", path, "level", slogLevel.String())
	return cfg, log, nil
}

// newApp loads configuration and wires the application.
func newApp(cmd *cobra.Command) (*control.App, *config.AppConfig, *slog.Logger, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	app, err := control.NewApp(cmd.Context(), cfg, log)
	if err != nil {
		log.Error("Failed to initialize", "error", err)
		return nil, nil, nil, err
	}
	return app, cfg, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// withSignals runs the command with a context cancelled by SIGINT or SIGTERM.
func withSignals(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		cmd.SetContext(ctx)
		return run(cmd, args)
	}
}
