package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mpsync/syncer/internal/server"
	"mpsync/syncer/internal/server/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API and the scheduled bulk refresh",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&cfg.ServerHost, "host", cfg.ServerHost, "Host to bind the server to (env: SYNCER_HOST)")
	flags.IntVar(&cfg.ServerPort, "port", cfg.ServerPort, "Port to listen on (env: SYNCER_PORT)")
	flags.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "Key required in X-API-Key for /v1, empty disables (env: SYNCER_API_KEY)")
	flags.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval, "Interval between bulk refreshes, 0 disables (env: SYNCER_REFRESH_INTERVAL)")
}

func runServe() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		runScheduler(ctx, a, cfg.RefreshInterval)
	}()

	handler := api.NewHandler(a.repo, a.sync, a.pool, a.upstream)
	router := server.NewRouter(handler, a.db, log.Logger, cfg.APIKey)
	err = server.Run(ctx, cfg.ListenAddr(), router, log.Logger)

	cancel()
	<-schedulerDone
	return err
}

// runScheduler triggers a bulk refresh every interval until ctx is canceled.
// A tick that finds a refresh still running is skipped.
func runScheduler(ctx context.Context, a *app, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("Scheduled bulk refresh disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", interval).
		Time("next_run", time.Now().Add(interval)).
		Msg("Waiting for next bulk refresh")

	for {
		select {
		case <-ticker.C:
			log.Info().Msg("Starting scheduled bulk refresh")
			a.sync.TriggerBulkRefresh()
			log.Info().
				Time("next_run", time.Now().Add(interval)).
				Msg("Waiting for next bulk refresh")

		case <-ctx.Done():
			log.Info().Msg("Shutting down scheduler")
			return
		}
	}
}
