package main

import (
	"fmt"
	"log"
	"time"

	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/config"
	"github.com/pysugar/checkin-nexus/internal/db"
	"github.com/pysugar/checkin-nexus/internal/games"
	"github.com/pysugar/checkin-nexus/internal/notify"
	"github.com/pysugar/checkin-nexus/internal/scheduler"
	"github.com/pysugar/checkin-nexus/internal/secret"
	"github.com/pysugar/checkin-nexus/internal/upstream"
	"github.com/pysugar/checkin-nexus/internal/upstream/registry"
	"gorm.io/gorm"
)

// app holds the wired collaborators shared by every subcommand.
type app struct {
	cfg      config.Config
	db       *gorm.DB
	catalog  *games.Catalog
	store    *db.Store
	location *time.Location
	runner   *scheduler.Runner
}

func newApp(cfg config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	database, err := db.InitDB(cfg.DBDriver, cfg.DBDSN, cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	catalog, err := games.Load()
	if err != nil {
		// Invalid descriptors are dropped, the rest stay usable.
		log.Printf("⚠️ Game catalog loaded with errors: %v", err)
	}
	log.Printf("📦 Loaded %d game descriptors", len(catalog.List()))

	box := secret.New(cfg.EncryptionKey)
	if !box.Enabled() {
		log.Printf("⚠️ CHECKIN_ENCRYPTION_KEY is not set, session tokens are stored as given")
	}
	store := db.NewStore(database, catalog, box)

	client := upstream.NewClient(cfg.UpstreamTimeout)
	client.SetVerbose(cfg.Verbose)

	discord := notify.NewDiscord(cfg.DiscordAPIBase, cfg.DiscordBotToken, nil)
	if !discord.CanPostToChannels() {
		log.Printf("⚠️ No Discord bot token, notifications use webhooks only")
	}

	orch, err := checkin.NewOrchestrator(checkin.Config{
		Store:               store,
		Sink:                notify.NewRouter(store, discord, cfg.DefaultWebhookURL),
		Adapters:            registry.Factory(client, cfg.SigninRetryDelay),
		AccountDelay:        cfg.AccountDelay,
		NotifyAlreadySigned: cfg.NotifyAlreadySigned,
		NotifyFailures:      cfg.NotifyFailures,
		ParallelGames:       cfg.ParallelGames,
		Location:            loc,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		db:       database,
		catalog:  catalog,
		store:    store,
		location: loc,
		runner:   scheduler.NewRunner(orch.RunAll),
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
