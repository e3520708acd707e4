package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/aggregate"
	"liquidityVault/internal/chain"
	"liquidityVault/internal/config"
	"liquidityVault/internal/erc20"
	"liquidityVault/internal/storage/postgres"
)

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	windowDuration, err := time.ParseDuration(cfg.Window)
	if err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	if windowDuration <= 0 {
		return fmt.Errorf("window must be positive")
	}
	windowSeconds := uint64(windowDuration.Seconds())
	if windowSeconds == 0 {
		return fmt.Errorf("window must be at least 1s")
	}

	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if cfg.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	var decimals aggregate.DecimalsResolver
	if cfg.RPC.URL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPC.URL, chain.RetryConfig{
			MaxRetries: cfg.RPC.MaxRetries,
			Backoff:    cfg.RPC.RetryBackoff,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		cache, err := erc20.NewCache(chainClient, tokenCacheSize, logger)
		if err != nil {
			return err
		}
		decimals = cache
	}

	progressName := aggregate.ProgressName(cfg.StateName, windowSeconds)
	var progress aggregate.ProgressStore
	if cfg.StateFile != "" {
		progress = &aggregate.FileProgress{Path: cfg.StateFile, Name: progressName}
	} else {
		progress = &aggregate.PostgresProgress{Table: store, Name: progressName}
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: recomputeFrom,
		Progress:      progress,
		Decimals:      decimals,
	}, store, logger)

	logger.Info("aggregate start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("window_seconds", windowSeconds),
		zap.String("progress", progressName),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", recomputeFrom),
		zap.Bool("rpc_decimals", decimals != nil),
	)

	_, err = agg.Run(ctx, cfg.Input)
	return err
}
