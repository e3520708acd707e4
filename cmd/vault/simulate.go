package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/chain"
	"liquidityVault/internal/config"
	"liquidityVault/internal/erc20"
	"liquidityVault/internal/eventlog"
	"liquidityVault/internal/metrics"
	"liquidityVault/internal/simulation"
	"liquidityVault/internal/snapshot"
	"liquidityVault/internal/storage"
	"liquidityVault/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if !common.IsHexAddress(cfg.VaultAddress) {
		return fmt.Errorf("invalid vault address: %s", cfg.VaultAddress)
	}
	vaultAddr := common.HexToAddress(cfg.VaultAddress)

	sc, err := simulation.Load(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	encoder, err := eventlog.NewEncoder(cfg.ChainID, vaultAddr)
	if err != nil {
		return err
	}
	sink := eventlog.NewSink(encoder, storage.NewJsonlStorage(cfg.Out, true), logger)

	reg := prometheus.NewRegistry()
	vaultMetrics := metrics.New(reg)

	var resolver simulation.DecimalsResolver
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
		resolver = cache
	}

	var stores []snapshot.Store
	if cfg.Snapshot != "" {
		stores = append(stores, snapshot.NewFileStore(cfg.Snapshot))
	}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		stores = append(stores, snapshot.NewPostgresStore(pg, vaultAddr.Hex()))
	}

	runner := simulation.NewRunner(simulation.Config{
		VaultAddress: vaultAddr,
		Sink:         sink,
		Metrics:      vaultMetrics,
		Decimals:     resolver,
	}, logger)

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.String("out", cfg.Out),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("vault", vaultAddr.Hex()),
		zap.Int("pools", len(sc.Pools)),
		zap.Int("sessions", len(sc.Sessions)),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	report, err := runner.Run(ctx, sc)
	if err != nil {
		return err
	}

	for _, store := range stores {
		if err := store.Save(ctx, report.Snapshot); err != nil {
			return err
		}
	}
	if cfg.MetricsOut != "" {
		if err := metrics.WriteTextfile(cfg.MetricsOut, reg); err != nil {
			return err
		}
	}

	logger.Info("simulate complete",
		zap.Int("sessions", len(report.Outcomes)),
		zap.Int("mismatches", report.Mismatches),
		zap.Uint64("session_id", report.Snapshot.SessionID),
		zap.String("snapshot", cfg.Snapshot),
		zap.String("metrics_out", cfg.MetricsOut),
	)

	if report.Mismatches > 0 {
		return fmt.Errorf("%d session(s) did not match their expected outcome", report.Mismatches)
	}
	return nil
}
