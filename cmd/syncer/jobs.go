package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mpsync/syncer/internal/feedsync"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [feed-id]",
	Short: "Sync the latest page of one feed, or of every enabled feed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if len(args) == 1 {
			if _, err := a.repo.GetFeed(ctx, args[0]); err != nil {
				return fmt.Errorf("feed %s: %w", args[0], err)
			}
			res, err := a.sync.RefreshFeed(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Fetched %d articles for %s, more history: %t\n", res.Fetched, args[0], res.HasMoreHistory)
			return nil
		}

		report, err := a.sync.RunBulkRefresh(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Refreshed %d feeds, %d failed\n", report.Feeds-report.Failed, report.Failed)
		return nil
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill <feed-id>",
	Short: "Walk a feed's history until the platform has no older articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		outcome, err := a.sync.RunBackfill(ctx, args[0])
		if err != nil {
			if errors.Is(err, ctx.Err()) && outcome == feedsync.BackfillCanceled {
				log.Info().Str("feed_id", args[0]).Msg("History backfill canceled")
				return nil
			}
			return err
		}
		fmt.Printf("History backfill of %s ended: %s\n", args[0], outcome)
		return nil
	},
}
