package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"mpsync/syncer/internal/accounts"
	"mpsync/syncer/internal/database"
	"mpsync/syncer/internal/feedsync"
	"mpsync/syncer/internal/storage"
	"mpsync/syncer/internal/upstream"
)

// app is the wired set of long-lived components shared by the commands.
type app struct {
	db       *database.DB
	repo     *storage.Repository
	pool     *accounts.Pool
	upstream *upstream.Client
	sync     *feedsync.Service
}

func openDB() (*database.DB, error) {
	db, err := database.NewDB(database.NewConfig(cfg.DBDriver, cfg.DBPath))
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.DBDriver).Msg("Failed to initialize database")
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func newApp() (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := openDB()
	if err != nil {
		return nil, err
	}

	repo := storage.NewRepository(db)
	pool := accounts.NewPool(repo, accounts.NewBlocklist(loc), cfg.CandidateLimit)
	client := upstream.NewClient(upstream.Options{
		BaseURL:         cfg.PlatformURL,
		Timeout:         cfg.UpstreamTimeout,
		RequestRPS:      cfg.RequestRPS,
		BadRequestDelay: cfg.BadRequestDelay,
	}, pool)
	svc := feedsync.NewService(repo, pool, client, feedsync.Options{
		PageSize:     cfg.PageSize,
		UpdateDelay:  cfg.UpdateDelay,
		RetryBackoff: cfg.RetryBackoff,
	})

	return &app{db: db, repo: repo, pool: pool, upstream: client, sync: svc}, nil
}

// Close stops background jobs, then closes the database.
func (a *app) Close() {
	a.sync.Close()
	if err := a.db.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
	}
}
