package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/mmk-bol-sync/config"
	"github.com/target/mmk-bol-sync/internal/bootstrap"
)

const defaultCommandTimeout = 30 * time.Minute

var (
	timeout    time.Duration
	outputJSON bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bolsync-admin",
	Short: "Administrative tasks for the bol.com sync service",
	Long: `bolsync-admin runs maintenance tasks against the sync database.

Configuration is read from the same environment variables (and optional .env
file) as the bolsync service.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultCommandTimeout, "overall command timeout")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
}

// commandContext carries what every database-backed command needs.
type commandContext struct {
	Ctx    context.Context
	Config config.AppConfig
	Logger *slog.Logger
}

// newCommandContext loads configuration and returns a context bounded by
// --timeout and cancelled on SIGINT or SIGTERM.
func newCommandContext(cmd *cobra.Command) (*commandContext, context.CancelFunc, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.IsDev)}))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, commandTimeout())

	return &commandContext{Ctx: ctx, Config: cfg, Logger: logger}, func() {
		cancel()
		stop()
	}, nil
}

func commandTimeout() time.Duration {
	if timeout <= 0 {
		return defaultCommandTimeout
	}
	return timeout
}

func logLevel(isDev bool) slog.Level {
	if isDev {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
