package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/fixedpoint"
)

// RegisterPoolParams describes a pool at registration.
type RegisterPoolParams struct {
	Pool    common.Address
	Pricing PricingPool
	// Tokens must be sorted by strictly ascending address.
	Tokens                      []TokenConfig
	SwapFeePercentage           *uint256.Int
	AggregateSwapFeePercentage  *uint256.Int
	AggregateYieldFeePercentage *uint256.Int
	LiquidityManagement         LiquidityManagement
}

func validateFeePercentages(swapFee, aggregateSwapFee, aggregateYieldFee *uint256.Int) error {
	if swapFee.Gt(MaxSwapFeePercentage) {
		return fmt.Errorf("%w: swap fee %s > %s", ErrInvalidFeePercentage, swapFee.Dec(), MaxSwapFeePercentage.Dec())
	}
	one := fixedpoint.One()
	if aggregateSwapFee.Gt(one) {
		return fmt.Errorf("%w: aggregate swap fee %s", ErrInvalidFeePercentage, aggregateSwapFee.Dec())
	}
	if aggregateYieldFee.Gt(one) {
		return fmt.Errorf("%w: aggregate yield fee %s", ErrInvalidFeePercentage, aggregateYieldFee.Dec())
	}
	return nil
}

func buildPoolState(params RegisterPoolParams) (*poolState, error) {
	if params.Pricing == nil {
		return nil, fmt.Errorf("%w: pool %s has no pricing", ErrInvalidTokenConfig, params.Pool.Hex())
	}
	n := len(params.Tokens)
	if n < MinTokens || n > MaxTokens {
		return nil, fmt.Errorf("%w: %d tokens, want %d..%d", ErrInvalidTokenCount, n, MinTokens, MaxTokens)
	}
	swapFee := fixedpoint.Copy(params.SwapFeePercentage)
	aggregateSwapFee := fixedpoint.Copy(params.AggregateSwapFeePercentage)
	aggregateYieldFee := fixedpoint.Copy(params.AggregateYieldFeePercentage)
	if err := validateFeePercentages(swapFee, aggregateSwapFee, aggregateYieldFee); err != nil {
		return nil, err
	}

	tokens := make([]tokenInfo, n)
	for i, cfg := range params.Tokens {
		if cfg.Token == nil {
			return nil, fmt.Errorf("%w: nil token at index %d", ErrInvalidTokenConfig, i)
		}
		addr := cfg.Token.Address()
		if addr == (common.Address{}) {
			return nil, fmt.Errorf("%w: zero token address at index %d", ErrInvalidTokenConfig, i)
		}
		if i > 0 && addr.Cmp(tokens[i-1].address) <= 0 {
			return nil, fmt.Errorf("%w: tokens not sorted at index %d", ErrInvalidTokenConfig, i)
		}
		sf, err := fixedpoint.DecimalScalingFactor(cfg.Token.Decimals())
		if err != nil {
			return nil, fmt.Errorf("%w: token %s: %w", ErrInvalidTokenConfig, addr.Hex(), err)
		}
		if cfg.PaysYieldFees && cfg.RateProvider == nil {
			return nil, fmt.Errorf("%w: token %s pays yield fees without a rate provider", ErrInvalidTokenConfig, addr.Hex())
		}
		tokens[i] = tokenInfo{
			token:         cfg.Token,
			address:       addr,
			scalingFactor: sf,
			rateProvider:  cfg.RateProvider,
			paysYieldFees: cfg.PaysYieldFees,
		}
	}

	return &poolState{
		address: params.Pool,
		pricing: params.Pricing,
		tokens:  tokens,
		config: PoolConfig{
			StaticSwapFeePercentage:     swapFee,
			AggregateSwapFeePercentage:  aggregateSwapFee,
			AggregateYieldFeePercentage: aggregateYieldFee,
			LiquidityManagement:         params.LiquidityManagement,
		},
	}, nil
}

// RegisterPool adds an uninitialized pool with zero balances.
func (v *Vault) RegisterPool(ctx context.Context, params RegisterPoolParams) error {
	if s := sessionFromContext(ctx); s != nil && s.vault == v && !s.closed {
		return fmt.Errorf("%w: register inside an open session", ErrReentrancy)
	}
	if err := v.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire vault: %w", err)
	}
	defer v.gate.Release(1)

	if _, exists := v.pools[params.Pool]; exists {
		return fmt.Errorf("%w: %s", ErrPoolAlreadyRegistered, params.Pool.Hex())
	}
	p, err := buildPoolState(params)
	if err != nil {
		return err
	}
	for _, t := range p.tokens {
		if known, ok := v.tokens[t.address]; ok && known != t.token {
			return fmt.Errorf("%w: token %s registered with another collaborator", ErrInvalidTokenConfig, t.address.Hex())
		}
	}

	zero := make([]PackedBalance, len(p.tokens))
	events := make([]Event, len(p.tokens))
	for i, t := range p.tokens {
		zero[i] = newPackedBalance(nil, nil)
		events[i] = TokenAddedEvent{Pool: p.address, Token: t.address, Index: i}
	}

	v.mu.Lock()
	v.pools[p.address] = p
	v.poolOrder = append(v.poolOrder, p.address)
	for _, t := range p.tokens {
		v.tokens[t.address] = t.token
	}
	v.st.balances[p.address] = zero
	id := v.sessionID
	v.mu.Unlock()

	v.logger.Info("pool registered",
		zap.String("pool", p.address.Hex()),
		zap.Int("tokens", len(p.tokens)),
		zap.String("swap_fee", p.config.StaticSwapFeePercentage.Dec()),
	)
	return v.publish(ctx, id, events)
}

// Initialize seeds a registered pool with its first liquidity. The minimum
// total supply is minted to the zero address and stays locked; the rest goes
// to params.To.
func (s *Session) Initialize(params InitializeParams) (*uint256.Int, error) {
	var sharesOut *uint256.Int
	err := s.guarded(entryInitialize, params.Pool, func() error {
		var err error
		sharesOut, err = s.initialize(params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sharesOut, nil
}

func (s *Session) initialize(params InitializeParams) (*uint256.Int, error) {
	p, err := s.requirePool(params.Pool)
	if err != nil {
		return nil, err
	}
	if s.buf.isInitialized(p.address) {
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyInitialized, p.address.Hex())
	}
	if err := ensureUnpaused(p); err != nil {
		return nil, err
	}
	n := len(p.tokens)
	if len(params.ExactAmountsIn) != n {
		return nil, fmt.Errorf("%w: %d amounts for %d tokens", ErrInvalidTokenCount, len(params.ExactAmountsIn), n)
	}
	amountsIn := fixedpoint.CopySlice(params.ExactAmountsIn)

	pd, err := s.loadPoolData(p, fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	for i, t := range p.tokens {
		if err := s.ledger.debit(t.address, amountsIn[i]); err != nil {
			return nil, err
		}
		pd.updateRawAndLive(i, amountsIn[i], fixedpoint.RoundDown)
	}
	s.writePoolBalances(pd)
	s.buf.initialized.set(p.address, true)

	invariant, err := computeInvariant(p.pricing, pd.live, fixedpoint.RoundDown)
	if err != nil {
		return nil, err
	}
	if err := s.vault.ensureMinimumTotalSupply(invariant); err != nil {
		return nil, err
	}
	sharesOut := fixedpoint.Sub(invariant, s.vault.minSupply)
	if minOut := fixedpoint.Copy(params.MinSharesOut); sharesOut.Lt(minOut) {
		return nil, fmt.Errorf("%w: %s < %s", ErrSharesOutBelowMin, sharesOut.Dec(), minOut.Dec())
	}
	if err := s.vault.mintShares(s.buf, p.address, common.Address{}, s.vault.minSupply); err != nil {
		return nil, err
	}
	if err := s.vault.mintShares(s.buf, p.address, params.To, sharesOut); err != nil {
		return nil, err
	}

	s.emit(PoolInitializedEvent{Pool: p.address})
	s.emit(LiquidityAddedEvent{
		Pool:           p.address,
		To:             params.To,
		Kind:           AddProportional,
		TotalSupply:    s.buf.totalSupply(p.address),
		AmountsIn:      fixedpoint.CopySlice(amountsIn),
		SwapFeeAmounts: fixedpoint.Zeros(n),
	})
	return sharesOut, nil
}
