package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/troxellophilus/baseball-clerk/internal/baseballbot"
	"github.com/troxellophilus/baseball-clerk/internal/clerk"
	"github.com/troxellophilus/baseball-clerk/internal/config"
	"github.com/troxellophilus/baseball-clerk/internal/datastore"
	"github.com/troxellophilus/baseball-clerk/internal/fetch"
	"github.com/troxellophilus/baseball-clerk/internal/logger"
	"github.com/troxellophilus/baseball-clerk/internal/mlb"
	"github.com/troxellophilus/baseball-clerk/internal/runlock"
	"github.com/troxellophilus/baseball-clerk/internal/savant"
	"github.com/troxellophilus/baseball-clerk/internal/util"
)

// runClerk executes one poll cycle. Only startup failures (config,
// storage) exit nonzero; errors inside the sweep are logged and the run
// still completes.
func runClerk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Logging.Level)
	log := logger.Log
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional guard against overlapping scheduler invocations.
	if cfg.Lock.RedisAddr != "" {
		lock, acquired, err := runlock.Acquire(ctx,
			cfg.Lock.RedisAddr, cfg.Lock.RedisPassword, cfg.Lock.RedisDB,
			cfg.Lock.Key, util.NewRunID(), cfg.Lock.TTL)
		if err != nil {
			return fmt.Errorf("run lock: %w", err)
		}
		if !acquired {
			log.Warn("another run holds the lock, skipping this invocation")
			return nil
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				log.Error("releasing run lock failed", zap.Error(err))
			}
		}()
	}

	store, err := datastore.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}
	defer func() { _ = store.Close() }()

	events := store.Table("event")
	comments := store.Table("comment")
	if err := events.Ensure(ctx); err != nil {
		return fmt.Errorf("ensure event table: %w", err)
	}
	if err := comments.Ensure(ctx); err != nil {
		return fmt.Errorf("ensure comment table: %w", err)
	}

	cache := fetch.NewCache(cfg.Poll.HTTPTimeout, cfg.Poll.UserAgent)

	c := clerk.New(
		cfg,
		events, comments,
		baseballbot.NewClient(cache),
		mlb.NewClient(cache),
		savant.NewClient(cache),
		clerk.RedditSessions(),
		log,
	)
	c.Run(ctx)

	if err := c.Metrics.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		log.Error("metrics push failed", zap.Error(err))
	}

	return nil
}
