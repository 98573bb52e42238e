package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mpsync/syncer/internal/config"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

var (
	cfg        = config.DefaultConfig()
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "syncer",
	Short:         "Article feed synchronizer with account rotation",
	Long:          `Keeps subscribed feeds in step with the article platform, spreading calls over a pool of accounts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", config.GetEnvString("SYNCER_CONFIG", config.DefaultConfigPath), "Path to a YAML config file (env: SYNCER_CONFIG)")
	flags.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "Database driver: sqlite3 or postgres (env: SYNCER_DB_DRIVER)")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite file path or PostgreSQL DSN (env: SYNCER_DB_PATH)")
	flags.StringVar(&cfg.PlatformURL, "platform-url", cfg.PlatformURL, "Base URL of the article platform (env: SYNCER_PLATFORM_URL)")
	flags.DurationVar(&cfg.UpdateDelay, "update-delay", cfg.UpdateDelay, "Pause between upstream pages and feeds (env: SYNCER_UPDATE_DELAY)")
	flags.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Articles on a full upstream page (env: SYNCER_PAGE_SIZE)")
	flags.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error (env: SYNCER_LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, refreshCmd, backfillCmd, importCmd, migrateCmd)
}

// loadConfig layers defaults, the config file, SYNCER_* variables and the
// flags set on the command line, in that order.
func loadConfig(cmd *cobra.Command) error {
	flagged := *cfg
	merged := config.DefaultConfig()

	if configFile != "" {
		if err := merged.LoadFile(configFile); err != nil {
			return err
		}
	}
	merged.ApplyEnv()

	cmd.Flags().Visit(func(f *pflag.Flag) {
		applyFlag(merged, &flagged, f.Name)
	})
	if cmd.Flags().Changed("log-level") {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		merged.LogLevel = level
	}

	if err := merged.Validate(); err != nil {
		return err
	}
	*cfg = *merged
	zerolog.SetGlobalLevel(cfg.LogLevel)
	log.Debug().Str("db_driver", cfg.DBDriver).Str("platform_url", cfg.PlatformURL).Msg("Configuration loaded")
	return nil
}

// applyFlag copies the setting behind flag name from src to dst.
func applyFlag(dst, src *config.Config, name string) {
	switch name {
	case "db-driver":
		dst.DBDriver = src.DBDriver
	case "db":
		dst.DBPath = src.DBPath
	case "platform-url":
		dst.PlatformURL = src.PlatformURL
	case "update-delay":
		dst.UpdateDelay = src.UpdateDelay
	case "page-size":
		dst.PageSize = src.PageSize
	case "host":
		dst.ServerHost = src.ServerHost
	case "port":
		dst.ServerPort = src.ServerPort
	case "api-key":
		dst.APIKey = src.APIKey
	case "refresh-interval":
		dst.RefreshInterval = src.RefreshInterval
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-shutdown:
			log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(shutdown)
	}()
	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
