// Package vault is the multi-pool settlement engine: it custodies pool
// balances, runs every mutation inside an atomic session and refuses to close
// a session whose token deltas do not net to zero.
package vault

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"liquidityVault/internal/fixedpoint"
	"liquidityVault/internal/metrics"
	"liquidityVault/internal/model"
)

const (
	DefaultMinimumTradeAmount = 1_000_000
	DefaultMinimumTotalSupply = 1_000_000

	MinTokens = 2
	MaxTokens = 8
)

// MaxSwapFeePercentage is 99.9999%.
var MaxSwapFeePercentage = uint256.NewInt(999_999_000_000_000_000)

// Config wires a Vault.
type Config struct {
	// Address is the vault's own holder address on the token collaborators.
	Address            common.Address
	MinimumTradeAmount *uint256.Int
	MinimumTotalSupply *uint256.Int
	Authorizer         Authorizer
	Sink               EventSink
	Metrics            *metrics.Metrics
}

// Vault owns pool balances, aggregate fees, shares and reserves.
type Vault struct {
	address    common.Address
	minTrade   *uint256.Int
	minSupply  *uint256.Int
	authorizer Authorizer
	sink       EventSink
	metrics    *metrics.Metrics
	logger     *zap.Logger
	gate       *semaphore.Weighted
	mu         sync.RWMutex
	pools      map[common.Address]*poolState
	poolOrder  []common.Address
	tokens     map[common.Address]Token
	st         *state
	sessionID  uint64
}

type poolState struct {
	address common.Address
	pricing PricingPool
	tokens  []tokenInfo
	config  PoolConfig
}

type tokenInfo struct {
	token         Token
	address       common.Address
	scalingFactor *uint256.Int
	rateProvider  RateProvider
	paysYieldFees bool
}

func (t tokenInfo) rate() (*uint256.Int, error) {
	if t.rateProvider == nil {
		return fixedpoint.One(), nil
	}
	rate, err := t.rateProvider.Rate()
	if err != nil {
		return nil, fmt.Errorf("rate of token %s: %w", t.address.Hex(), err)
	}
	if rate == nil || rate.IsZero() {
		return nil, fmt.Errorf("%w: zero rate for token %s", ErrInvalidTokenConfig, t.address.Hex())
	}
	return rate, nil
}

func (p *poolState) tokenIndex(token common.Address) (int, bool) {
	for i, t := range p.tokens {
		if t.address == token {
			return i, true
		}
	}
	return 0, false
}

func (p *poolState) tokenAddresses() []common.Address {
	out := make([]common.Address, len(p.tokens))
	for i, t := range p.tokens {
		out[i] = t.address
	}
	return out
}

// New builds an empty vault.
func New(cfg Config, logger *zap.Logger) *Vault {
	if logger == nil {
		logger = zap.NewNop()
	}
	minTrade := cfg.MinimumTradeAmount
	if minTrade == nil {
		minTrade = uint256.NewInt(DefaultMinimumTradeAmount)
	}
	minSupply := cfg.MinimumTotalSupply
	if minSupply == nil {
		minSupply = uint256.NewInt(DefaultMinimumTotalSupply)
	}
	authorizer := cfg.Authorizer
	if authorizer == nil {
		authorizer = DenyAll()
	}

	return &Vault{
		address:    cfg.Address,
		minTrade:   fixedpoint.Copy(minTrade),
		minSupply:  fixedpoint.Copy(minSupply),
		authorizer: authorizer,
		sink:       cfg.Sink,
		metrics:    cfg.Metrics,
		logger:     logger,
		gate:       semaphore.NewWeighted(1),
		pools:      make(map[common.Address]*poolState),
		tokens:     make(map[common.Address]Token),
		st:         newState(),
	}
}

// Address returns the vault's holder address.
func (v *Vault) Address() common.Address { return v.address }

// Unlock opens a session for caller, runs fn inside it and closes it. The
// session commits only if fn succeeds and every token delta is zero;
// otherwise nothing fn did is kept. A ctx that already carries an open
// session of this vault runs fn in that session instead.
func (v *Vault) Unlock(ctx context.Context, caller common.Address, fn func(*Session) error) error {
	if s := sessionFromContext(ctx); s != nil && s.vault == v && !s.closed {
		return s.Unlock(fn)
	}
	return v.run(ctx, caller, false, fn)
}

// Quote runs fn in a session that is always discarded and never checked for
// settlement.
func (v *Vault) Quote(ctx context.Context, caller common.Address, fn func(*Session) error) error {
	if s := sessionFromContext(ctx); s != nil && s.vault == v && !s.closed {
		return fmt.Errorf("%w: quote inside an open session", ErrReentrancy)
	}
	return v.run(ctx, caller, true, fn)
}

func (v *Vault) run(ctx context.Context, caller common.Address, query bool, fn func(*Session) error) error {
	if err := v.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	defer v.gate.Release(1)

	start := time.Now()
	s := newSession(ctx, v, caller, query)
	v.logger.Debug("session open",
		zap.Uint64("session_id", s.id),
		zap.String("caller", caller.Hex()),
		zap.Bool("query", query),
	)

	err := s.Unlock(fn)
	if err == nil {
		err = s.close()
	}
	s.closed = true
	if err != nil || query {
		s.returnPulls()
	}

	switch {
	case err != nil:
		v.metrics.ObserveSession(metrics.OutcomeAborted, time.Since(start))
		v.metrics.ObserveError(Category(err))
		v.logger.Warn("session aborted",
			zap.Uint64("session_id", s.id),
			zap.String("caller", caller.Hex()),
			zap.String("category", Category(err)),
			zap.Error(err),
		)
	case query:
		v.metrics.ObserveSession(metrics.OutcomeQuery, time.Since(start))
	default:
		v.metrics.ObserveSession(metrics.OutcomeCommitted, time.Since(start))
		v.logger.Debug("session committed",
			zap.Uint64("session_id", s.id),
			zap.String("caller", caller.Hex()),
			zap.Int("events", len(s.events)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return err
}

// mutate applies fn to a private buffer outside any session and commits it
// on success.
func (v *Vault) mutate(ctx context.Context, fn func(b *buffer) ([]Event, error)) error {
	if s := sessionFromContext(ctx); s != nil && s.vault == v && !s.closed {
		return fmt.Errorf("%w: vault-level mutation inside an open session", ErrReentrancy)
	}
	if err := v.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire vault: %w", err)
	}
	defer v.gate.Release(1)

	b := newBuffer(v.st)
	events, err := fn(b)
	if err != nil {
		return err
	}
	v.mu.Lock()
	b.commit()
	id := v.sessionID
	v.mu.Unlock()

	return v.publish(ctx, id, events)
}

func (v *Vault) publish(ctx context.Context, sessionID uint64, events []Event) error {
	v.recordMetrics(events)
	if v.sink == nil || len(events) == 0 {
		return nil
	}
	if err := v.sink.Publish(ctx, sessionID, events); err != nil {
		return fmt.Errorf("publish events: %w", err)
	}
	return nil
}

func (v *Vault) recordMetrics(events []Event) {
	if v.metrics == nil {
		return
	}
	for _, ev := range events {
		switch e := ev.(type) {
		case SwapEvent:
			v.metrics.ObserveSwap(e.Pool.Hex(), e.TokenIn.Hex(), e.TokenOut.Hex(),
				e.AmountIn.ToBig(), e.AmountOut.ToBig(), e.SwapFeeAmount.ToBig())
		case LiquidityAddedEvent:
			v.metrics.ObserveLiquidity(e.Pool.Hex(), "add", e.Kind.String(),
				v.tokenLabels(e.Pool), toBigs(e.SwapFeeAmounts))
		case LiquidityRemovedEvent:
			v.metrics.ObserveLiquidity(e.Pool.Hex(), "remove", e.Kind.String(),
				v.tokenLabels(e.Pool), toBigs(e.SwapFeeAmounts))
		}
	}
}

func (v *Vault) tokenLabels(pool common.Address) []string {
	p, ok := v.pools[pool]
	if !ok {
		return nil
	}
	out := make([]string, len(p.tokens))
	for i, t := range p.tokens {
		out[i] = t.address.Hex()
	}
	return out
}

func (v *Vault) token(addr common.Address) (Token, error) {
	t, ok := v.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotRegistered, addr.Hex())
	}
	return t, nil
}

func (v *Vault) pool(addr common.Address) (*poolState, error) {
	p, ok := v.pools[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotRegistered, addr.Hex())
	}
	return p, nil
}

func (v *Vault) ensureValidTradeAmount(amount *uint256.Int) error {
	if !amount.IsZero() && amount.Lt(v.minTrade) {
		return fmt.Errorf("%w: %s < %s", ErrTradeAmountTooSmall, amount.Dec(), v.minTrade.Dec())
	}
	return nil
}

func (v *Vault) ensureValidSwapAmount(amount *uint256.Int) error {
	if amount.Lt(v.minTrade) {
		return fmt.Errorf("%w: %s < %s", ErrTradeAmountTooSmall, amount.Dec(), v.minTrade.Dec())
	}
	return nil
}

// SessionID returns the id the next session will run under.
func (v *Vault) SessionID() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sessionID
}

// MinimumTotalSupply returns the share supply floor.
func (v *Vault) MinimumTotalSupply() *uint256.Int { return fixedpoint.Copy(v.minSupply) }

// MinimumTradeAmount returns the smallest nonzero live amount accepted.
func (v *Vault) MinimumTradeAmount() *uint256.Int { return fixedpoint.Copy(v.minTrade) }

// Pools lists registered pools in registration order.
func (v *Vault) Pools() []common.Address {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]common.Address, len(v.poolOrder))
	copy(out, v.poolOrder)
	return out
}

// PoolTokens lists a pool's tokens in index order.
func (v *Vault) PoolTokens(pool common.Address) ([]common.Address, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, err := v.pool(pool)
	if err != nil {
		return nil, err
	}
	return p.tokenAddresses(), nil
}

// PoolBalances returns the committed balances of a pool.
func (v *Vault) PoolBalances(pool common.Address) ([]PackedBalance, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if _, err := v.pool(pool); err != nil {
		return nil, err
	}
	stored := v.st.balances[pool]
	out := make([]PackedBalance, len(stored))
	copy(out, stored)
	return out, nil
}

// PoolConfig returns the committed configuration of a pool.
func (v *Vault) PoolConfig(pool common.Address) (PoolConfig, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, err := v.pool(pool)
	if err != nil {
		return PoolConfig{}, err
	}
	cfg := p.config.clone()
	cfg.Initialized = v.st.initialized[pool]
	return cfg, nil
}

// TotalSupply returns the committed share supply of a pool.
func (v *Vault) TotalSupply(pool common.Address) *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return fixedpoint.Copy(v.st.supply[pool])
}

// ShareBalance returns holder's committed share balance.
func (v *Vault) ShareBalance(pool, holder common.Address) *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return fixedpoint.Copy(v.st.shares[shareKey{pool: pool, holder: holder}])
}

// ShareAllowance returns how many of owner's shares spender may burn.
func (v *Vault) ShareAllowance(pool, owner, spender common.Address) *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return fixedpoint.Copy(v.st.allowances[allowanceKey{pool: pool, owner: owner, spender: spender}])
}

// AggregateFees returns the pending aggregate swap and yield fees of one
// pool token.
func (v *Vault) AggregateFees(pool, token common.Address) (swap, yield *uint256.Int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	key := feeKey{pool: pool, token: token}
	return fixedpoint.Copy(v.st.swapFees[key]), fixedpoint.Copy(v.st.yieldFees[key])
}

// Reserves returns the vault's accounted holding of token.
func (v *Vault) Reserves(token common.Address) *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return fixedpoint.Copy(v.st.reserves[token])
}

// Snapshot reports the committed state of every pool and reserve.
func (v *Vault) Snapshot() model.VaultSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	snap := model.VaultSnapshot{
		SessionID: v.sessionID,
		TakenAt:   time.Now().UTC().Format(time.RFC3339),
		Pools:     make([]model.PoolSnapshot, 0, len(v.poolOrder)),
	}
	for _, addr := range v.poolOrder {
		p := v.pools[addr]
		ps := model.PoolSnapshot{
			Address:                     addr.Hex(),
			Initialized:                 v.st.initialized[addr],
			Paused:                      p.config.Paused,
			RecoveryMode:                p.config.RecoveryMode,
			StaticSwapFeePercentage:     p.config.StaticSwapFeePercentage.Dec(),
			AggregateSwapFeePercentage:  p.config.AggregateSwapFeePercentage.Dec(),
			AggregateYieldFeePercentage: p.config.AggregateYieldFeePercentage.Dec(),
			TotalSupply:                 fixedpoint.Copy(v.st.supply[addr]).Dec(),
		}
		balances := v.st.balances[addr]
		for i, t := range p.tokens {
			key := feeKey{pool: addr, token: t.address}
			ts := model.PoolTokenSnapshot{
				Token:              t.address.Hex(),
				Index:              i,
				Raw:                "0",
				LiveScaled18:       "0",
				AggregateSwapFees:  fixedpoint.Copy(v.st.swapFees[key]).Dec(),
				AggregateYieldFees: fixedpoint.Copy(v.st.yieldFees[key]).Dec(),
			}
			if i < len(balances) {
				ts.Raw = balances[i].raw.Dec()
				ts.LiveScaled18 = balances[i].live.Dec()
			}
			ps.Tokens = append(ps.Tokens, ts)
		}
		snap.Pools = append(snap.Pools, ps)
	}

	tokens := make([]common.Address, 0, len(v.st.reserves))
	for token := range v.st.reserves {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Cmp(tokens[j]) < 0 })
	for _, token := range tokens {
		snap.Reserves = append(snap.Reserves, model.ReserveSnapshot{
			Token:  token.Hex(),
			Amount: v.st.reserves[token].Dec(),
		})
	}
	return snap
}

func toBigs(values []*uint256.Int) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = fixedpoint.Copy(v).ToBig()
	}
	return out
}
