package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// tokenCacheSize bounds the ERC20 metadata cache shared by a command run.
const tokenCacheSize = 1024

func main() {
	root := &cobra.Command{
		Use:          "vault",
		Short:        "Liquidity vault simulator and event pipeline",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scenario against an in-memory vault",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario file (yaml, json or toml)")
	simulateCmd.Flags().String("out", "./data/logs.jsonl", "output event logs JSONL")
	simulateCmd.Flags().String("snapshot", "./data/snapshot.json", "vault snapshot file, empty to skip")
	simulateCmd.Flags().String("metrics-out", "", "optional Prometheus textfile path")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for snapshots")
	simulateCmd.Flags().Uint64("chain-id", 31337, "chain id stamped on event logs")
	simulateCmd.Flags().String("vault", "0x00000000000000000000000000000000000000ba", "vault address")
	simulateCmd.Flags().String("rpc", "", "optional RPC URL to resolve missing token decimals")
	simulateCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	simulateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode vault event logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input event logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into per-token window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "", "input typed events JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Bool("migrate", true, "create tables before writing")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("state-name", "aggregate", "progress key when state is kept in Postgres")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("rpc", "", "optional RPC URL for token decimals in logs")
	aggregateCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	aggregateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	tokenMetaCmd := &cobra.Command{
		Use:   "token-meta",
		Short: "Fetch ERC20 metadata over RPC",
		RunE:  runTokenMeta,
	}

	tokenMetaCmd.Flags().String("rpc", "", "RPC URL")
	tokenMetaCmd.Flags().StringSlice("token", nil, "token addresses (comma-separated)")
	tokenMetaCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	tokenMetaCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	tokenMetaCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(tokenMetaCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
