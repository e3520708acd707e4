package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityVault/internal/model"
	"liquidityVault/internal/vault"
)

// Store receives aggregated rows. *postgres.Store implements it.
type Store interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertPoolTokens(ctx context.Context, tokens []model.PoolToken) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolTokenWindowMetrics) error
}

// DecimalsResolver looks up token decimals for log formatting.
type DecimalsResolver interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	Progress      ProgressStore
	Decimals      DecimalsResolver
}

// Aggregator windows decoded vault events per (pool, token).
type Aggregator struct {
	cfg          Config
	store        Store
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	poolSeen     map[string]model.Pool
}

func NewAggregator(cfg Config, store Store, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]model.Pool),
	}
}

// Summary counts what a run did.
type Summary struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Run executes aggregation over a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Summary, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return Summary{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return a.RunReader(ctx, file)
}

// RunReader executes aggregation over typed events read from r.
func (a *Aggregator) RunReader(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary
	if a.store == nil {
		return sum, fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return sum, fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return sum, err
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolTokenWindowMetrics, 0, a.cfg.BatchSize)
	var pools []model.Pool
	var poolTokens []model.PoolToken
	maxTs := startTs

	flush := func() error {
		if err := a.flushBatches(ctx, batch, pools, poolTokens); err != nil {
			return err
		}
		batch = batch[:0]
		pools = pools[:0]
		poolTokens = poolTokens[:0]
		return nil
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		sum.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			sum.Failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			continue
		}

		if pool, tokens := a.registerPool(record); pool != nil {
			pools = append(pools, *pool)
			poolTokens = append(poolTokens, tokens...)
		}

		if record.Timestamp <= startTs {
			sum.Skipped++
			continue
		}

		contributions, err := contributionsOf(record)
		if err != nil {
			sum.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Pool), zap.String("event", record.EventName))
			continue
		}
		if len(contributions) == 0 {
			continue
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds
		for _, c := range contributions {
			key := accumulatorKey(record.Pool, c.token)
			acc := a.accumulators[key]
			if acc != nil && acc.WindowStart != windowStart {
				batch = append(batch, a.flushAccumulator(ctx, acc))
				sum.Windows++
				acc = nil
			}
			if acc == nil {
				acc = NewAccumulator(record.ChainID, record.Pool, c.token, windowStart, windowEnd)
				a.accumulators[key] = acc
			}
			acc.apply(c)
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := flush(); err != nil {
				return sum, err
			}
			if err := a.saveProgress(ctx); err != nil {
				return sum, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		batch = append(batch, a.flushAccumulator(ctx, acc))
		sum.Windows++
	}
	a.accumulators = make(map[string]*Accumulator)

	if err := flush(); err != nil {
		return sum, err
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveProgress(ctx); err != nil {
		return sum, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", sum.Total),
		zap.Int("windows", sum.Windows),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)

	return sum, nil
}

// contributionsOf splits a record into per-token flows. Events that move
// no tokens yield none.
func contributionsOf(record model.TypedEventRecord) ([]contribution, error) {
	switch record.EventName {
	case vault.EventSwap:
		swap, err := record.DecodeSwap()
		if err != nil {
			return nil, fmt.Errorf("decode swap: %w", err)
		}
		amountIn, err := parseBigInt(swap.AmountIn)
		if err != nil {
			return nil, err
		}
		amountOut, err := parseBigInt(swap.AmountOut)
		if err != nil {
			return nil, err
		}
		fee, err := parseBigInt(swap.SwapFeeAmount)
		if err != nil {
			return nil, err
		}
		return []contribution{
			{token: swap.TokenIn, flow: flowSwapIn, amount: amountIn, fee: fee},
			{token: swap.TokenOut, flow: flowSwapOut, amount: amountOut},
		}, nil

	case vault.EventLiquidityAdded, vault.EventLiquidityRemoved:
		liq, err := record.DecodeLiquidity()
		if err != nil {
			return nil, fmt.Errorf("decode liquidity: %w", err)
		}
		tokens := record.PoolMeta.Tokens
		if len(tokens) != len(liq.Amounts) {
			return nil, fmt.Errorf("missing pool meta: %d tokens for %d amounts", len(tokens), len(liq.Amounts))
		}
		f := flowLiquidityIn
		if record.EventName == vault.EventLiquidityRemoved {
			f = flowLiquidityOut
		}
		out := make([]contribution, 0, len(tokens))
		for i, token := range tokens {
			amount, err := parseBigInt(liq.Amounts[i])
			if err != nil {
				return nil, err
			}
			var fee *big.Int
			if i < len(liq.SwapFeeAmounts) {
				if fee, err = parseBigInt(liq.SwapFeeAmounts[i]); err != nil {
					return nil, err
				}
			}
			out = append(out, contribution{token: token, flow: f, amount: amount, fee: fee})
		}
		return out, nil

	default:
		return nil, nil
	}
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.Progress == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.Progress.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveProgress(ctx context.Context) error {
	if a.cfg.Progress == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.Progress.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.Progress.Save(ctx, safeTs)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolTokenWindowMetrics, pools []model.Pool, tokens []model.PoolToken) error {
	if len(pools) > 0 {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}
	if len(tokens) > 0 {
		if err := a.store.UpsertPoolTokens(ctx, tokens); err != nil {
			return fmt.Errorf("upsert pool tokens: %w", err)
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

func (a *Aggregator) flushAccumulator(ctx context.Context, acc *Accumulator) model.PoolTokenWindowMetrics {
	if a.cfg.Decimals != nil && common.IsHexAddress(acc.Token) {
		if decimals, err := a.cfg.Decimals.Decimals(ctx, common.HexToAddress(acc.Token)); err == nil {
			a.logger.Debug("window closed",
				zap.String("pool", acc.PoolAddress),
				zap.String("token", acc.Token),
				zap.Time("window_start", time.Unix(int64(acc.WindowStart), 0).UTC()),
				zap.String("volume_in", formatTokenAmount(acc.VolumeIn, decimals)),
				zap.String("volume_out", formatTokenAmount(acc.VolumeOut, decimals)),
				zap.String("swap_fees", formatTokenAmount(acc.SwapFees, decimals)),
			)
		} else {
			a.logger.Warn("token decimals", zap.String("token", acc.Token), zap.Error(err))
		}
	}

	return model.PoolTokenWindowMetrics{
		ChainID:        acc.ChainID,
		PoolAddress:    acc.PoolAddress,
		Token:          acc.Token,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		VolumeIn:       acc.VolumeIn.String(),
		VolumeOut:      acc.VolumeOut.String(),
		SwapFees:       acc.SwapFees.String(),
		LiquidityIn:    acc.LiquidityIn.String(),
		LiquidityOut:   acc.LiquidityOut.String(),
		FeeRate:        computeFeeRate(acc.SwapFees, acc.VolumeIn),
	}
}

// registerPool returns the pool row and its token slots the first time a
// pool is seen, and again whenever its known token list grows.
func (a *Aggregator) registerPool(record model.TypedEventRecord) (*model.Pool, []model.PoolToken) {
	if record.Pool == "" {
		return nil, nil
	}
	key := addressKey(record.Pool)
	tokens := record.PoolMeta.Tokens
	pool := model.Pool{
		ChainID:          record.ChainID,
		Address:          record.Pool,
		Vault:            record.Address,
		TokenCount:       len(tokens),
		FirstSeenSession: record.BlockNumber,
	}

	existing, ok := a.poolSeen[key]
	if ok {
		if existing.TokenCount >= pool.TokenCount {
			return nil, nil
		}
		pool.FirstSeenSession = existing.FirstSeenSession
	}
	a.poolSeen[key] = pool

	rows := make([]model.PoolToken, 0, len(tokens))
	for i, token := range tokens {
		if token == "" {
			continue
		}
		rows = append(rows, model.PoolToken{
			ChainID:     record.ChainID,
			PoolAddress: record.Pool,
			Token:       token,
			TokenIndex:  i,
		})
	}
	return &pool, rows
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func addressKey(address string) string {
	return strings.ToLower(address)
}

func accumulatorKey(pool, token string) string {
	return addressKey(pool) + "/" + addressKey(token)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
