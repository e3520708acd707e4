package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityVault/internal/chain"
	"liquidityVault/internal/config"
	"liquidityVault/internal/erc20"
)

func runTokenMeta(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTokenMeta(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPC.URL == "" {
		return fmt.Errorf("rpc url is required")
	}
	tokens, err := config.ParseAddresses(cfg.Tokens)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("token list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPC.URL, chain.RetryConfig{
		MaxRetries: cfg.RPC.MaxRetries,
		Backoff:    cfg.RPC.RetryBackoff,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	logger.Info("token-meta start",
		zap.String("chain_id", chainID.String()),
		zap.Int("tokens", len(tokens)),
	)

	cache, err := erc20.NewCache(chainClient, tokenCacheSize, logger)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	for _, token := range tokens {
		meta, err := cache.Get(ctx, token)
		if err != nil {
			return fmt.Errorf("token %s: %w", token.Hex(), err)
		}
		if err := encoder.Encode(meta); err != nil {
			return fmt.Errorf("write meta: %w", err)
		}
	}
	return nil
}
