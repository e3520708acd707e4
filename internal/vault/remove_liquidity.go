package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

// RemoveLiquidity burns params.From's shares and releases pool tokens. The
// vault owes the caller the returned amounts out.
func (s *Session) RemoveLiquidity(params RemoveLiquidityParams) (RemoveLiquidityResult, error) {
	var res RemoveLiquidityResult
	err := s.guarded(entryRemoveLiquidity, params.Pool, func() error {
		var err error
		res, err = s.removeLiquidity(params)
		return err
	})
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	return res, nil
}

func (s *Session) removeLiquidity(params RemoveLiquidityParams) (RemoveLiquidityResult, error) {
	p, err := s.requirePool(params.Pool)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	if err := s.ensureInitialized(p); err != nil {
		return RemoveLiquidityResult{}, err
	}
	if err := ensureUnpaused(p); err != nil {
		return RemoveLiquidityResult{}, err
	}
	n := len(p.tokens)
	if len(params.MinAmountsOut) != n {
		return RemoveLiquidityResult{}, fmt.Errorf("%w: %d amounts for %d tokens", ErrInvalidTokenCount, len(params.MinAmountsOut), n)
	}
	minAmountsOut := fixedpoint.CopySlice(params.MinAmountsOut)
	maxSharesIn := fixedpoint.Copy(params.MaxSharesIn)

	pd, err := s.loadPoolData(p, fixedpoint.RoundDown)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	minAmountsOutScaled18 := make([]*uint256.Int, n)
	for i, amount := range minAmountsOut {
		minAmountsOutScaled18[i] = pd.toScaled18(i, amount, fixedpoint.RoundUp)
	}
	totalSupply := s.buf.totalSupply(p.address)
	swapFee := pd.config.StaticSwapFeePercentage
	lm := pd.config.LiquidityManagement

	if params.Kind == RemoveProportional || params.Kind == RemoveSingleTokenExactIn {
		if err := s.ensureCanBurn(p.address, params.From, maxSharesIn); err != nil {
			return RemoveLiquidityResult{}, err
		}
	}

	var (
		sharesIn           *uint256.Int
		amountsOutScaled18 []*uint256.Int
		swapFeesScaled18   []*uint256.Int
		returnData         []byte
	)

	switch params.Kind {
	case RemoveProportional:
		sharesIn = maxSharesIn
		amountsOutScaled18 = computeProportionalAmountsOut(pd.live, totalSupply, sharesIn)
		swapFeesScaled18 = fixedpoint.Zeros(n)
		if s.addLiquidityCalled(p.address) {
			for i := range amountsOutScaled18 {
				swapFeesScaled18[i] = fixedpoint.MulUp(amountsOutScaled18[i], swapFee)
				amountsOutScaled18[i] = fixedpoint.Sub(amountsOutScaled18[i], swapFeesScaled18[i])
			}
		}

	case RemoveSingleTokenExactIn:
		if lm.DisableUnbalancedLiquidity {
			return RemoveLiquidityResult{}, fmt.Errorf("%w: pool %s", ErrUnbalancedLiquidityDisabled, p.address.Hex())
		}
		index, err := singleTokenIndex(minAmountsOut)
		if err != nil {
			return RemoveLiquidityResult{}, err
		}
		sharesIn = maxSharesIn
		amountsOutScaled18 = minAmountsOutScaled18
		amountsOutScaled18[index], swapFeesScaled18, err = computeRemoveLiquiditySingleTokenExactIn(p.pricing, pd.live, index, sharesIn, totalSupply, swapFee)
		if err != nil {
			return RemoveLiquidityResult{}, err
		}

	case RemoveSingleTokenExactOut:
		if lm.DisableUnbalancedLiquidity {
			return RemoveLiquidityResult{}, fmt.Errorf("%w: pool %s", ErrUnbalancedLiquidityDisabled, p.address.Hex())
		}
		index, err := singleTokenIndex(minAmountsOut)
		if err != nil {
			return RemoveLiquidityResult{}, err
		}
		amountsOutScaled18 = minAmountsOutScaled18
		sharesIn, swapFeesScaled18, err = computeRemoveLiquiditySingleTokenExactOut(p.pricing, pd.live, index, amountsOutScaled18[index], totalSupply, swapFee)
		if err != nil {
			return RemoveLiquidityResult{}, err
		}

	case RemoveCustom:
		custom, ok := p.pricing.(CustomRemoveLiquidity)
		if !lm.EnableRemoveLiquidityCustom || !ok {
			return RemoveLiquidityResult{}, fmt.Errorf("%w: pool %s", ErrCustomRemoveNotSupported, p.address.Hex())
		}
		out, err := custom.OnRemoveLiquidityCustom(RemoveLiquidityCustomParams{
			Router:                s.caller,
			MaxSharesIn:           fixedpoint.Copy(maxSharesIn),
			MinAmountsOutScaled18: fixedpoint.CopySlice(minAmountsOutScaled18),
			BalancesScaled18:      pd.liveBalances(),
			UserData:              params.UserData,
			Session:               s,
		})
		if err != nil {
			return RemoveLiquidityResult{}, fmt.Errorf("pool %s custom remove: %w", p.address.Hex(), err)
		}
		if len(out.AmountsOutScaled18) != n || len(out.SwapFeeAmountsScaled18) != n || out.SharesIn == nil {
			return RemoveLiquidityResult{}, fmt.Errorf("%w: malformed custom remove result", ErrInvalidTokenCount)
		}
		sharesIn, amountsOutScaled18, swapFeesScaled18, returnData = out.SharesIn, out.AmountsOutScaled18, out.SwapFeeAmountsScaled18, out.ReturnData

	default:
		return RemoveLiquidityResult{}, fmt.Errorf("unknown remove liquidity kind %d", params.Kind)
	}

	if sharesIn.Gt(maxSharesIn) {
		return RemoveLiquidityResult{}, fmt.Errorf("%w: %s > %s", ErrSharesInAboveMax, sharesIn.Dec(), maxSharesIn.Dec())
	}
	if err := s.vault.ensureValidTradeAmount(sharesIn); err != nil {
		return RemoveLiquidityResult{}, err
	}
	if err := s.ensureCanBurn(p.address, params.From, sharesIn); err != nil {
		return RemoveLiquidityResult{}, err
	}

	amountsOutRaw := make([]*uint256.Int, n)
	feesRaw := make([]*uint256.Int, n)
	for i, t := range p.tokens {
		if err := s.vault.ensureValidTradeAmount(amountsOutScaled18[i]); err != nil {
			return RemoveLiquidityResult{}, err
		}
		amountOutRaw := pd.toRaw(i, amountsOutScaled18[i], fixedpoint.RoundDown)
		if amountOutRaw.Lt(minAmountsOut[i]) {
			return RemoveLiquidityResult{}, fmt.Errorf("%w: token %s amount %s < min %s", ErrAmountOutBelowMin, t.address.Hex(), amountOutRaw.Dec(), minAmountsOut[i].Dec())
		}
		if err := s.ledger.credit(t.address, amountOutRaw); err != nil {
			return RemoveLiquidityResult{}, err
		}
		totalFeeRaw, aggregateFeeRaw, err := s.chargeAggregateSwapFee(pd, swapFeesScaled18[i], i)
		if err != nil {
			return RemoveLiquidityResult{}, err
		}
		pd.updateRawAndLive(i, fixedpoint.Sub(pd.raw[i], fixedpoint.Add(amountOutRaw, aggregateFeeRaw)), fixedpoint.RoundDown)
		amountsOutRaw[i] = amountOutRaw
		feesRaw[i] = totalFeeRaw
	}
	s.writePoolBalances(pd)

	if err := s.burnFrom(p.address, params.From, sharesIn); err != nil {
		return RemoveLiquidityResult{}, err
	}

	s.emit(LiquidityRemovedEvent{
		Pool:           p.address,
		From:           params.From,
		Kind:           params.Kind,
		TotalSupply:    s.buf.totalSupply(p.address),
		AmountsOut:     fixedpoint.CopySlice(amountsOutRaw),
		SwapFeeAmounts: fixedpoint.CopySlice(feesRaw),
	})

	return RemoveLiquidityResult{
		SharesIn:   fixedpoint.Copy(sharesIn),
		AmountsOut: amountsOutRaw,
		FeeAmounts: feesRaw,
		ReturnData: returnData,
	}, nil
}

// ensureCanBurn rejects a burn that from's balance or the caller's allowance
// cannot cover, before any amounts out are priced.
func (s *Session) ensureCanBurn(pool, from common.Address, sharesIn *uint256.Int) error {
	if balance := s.buf.shareBalance(pool, from); balance.Lt(sharesIn) {
		return fmt.Errorf("%w: %s holds %s, burning %s", ErrInsufficientShares, from.Hex(), balance.Dec(), sharesIn.Dec())
	}
	if s.query || from == s.caller {
		return nil
	}
	allowed := s.buf.allowance(pool, from, s.caller)
	if !allowed.Eq(maxAllowance) && allowed.Lt(sharesIn) {
		return fmt.Errorf("%w: %s allowed %s of %s, needs %s", ErrInsufficientAllowance, s.caller.Hex(), allowed.Dec(), from.Hex(), sharesIn.Dec())
	}
	return nil
}

func (s *Session) burnFrom(pool, from common.Address, sharesIn *uint256.Int) error {
	if !s.query {
		if err := s.vault.spendAllowance(s.buf, pool, from, s.caller, sharesIn); err != nil {
			return err
		}
	}
	return s.vault.burnShares(s.buf, pool, from, sharesIn)
}

// RemoveLiquidityRecovery burns exactSharesIn for a proportional share of
// raw balances without consulting the pool. It only works in recovery mode
// and ignores the paused flag.
func (s *Session) RemoveLiquidityRecovery(pool, from common.Address, exactSharesIn *uint256.Int, minAmountsOut []*uint256.Int) ([]*uint256.Int, error) {
	var amountsOut []*uint256.Int
	err := s.guarded(entryRecovery, pool, func() error {
		var err error
		amountsOut, err = s.removeLiquidityRecovery(pool, from, fixedpoint.Copy(exactSharesIn), minAmountsOut)
		return err
	})
	if err != nil {
		return nil, err
	}
	return amountsOut, nil
}

func (s *Session) removeLiquidityRecovery(pool, from common.Address, sharesIn *uint256.Int, minAmountsOut []*uint256.Int) ([]*uint256.Int, error) {
	p, err := s.requirePool(pool)
	if err != nil {
		return nil, err
	}
	if err := s.ensureInitialized(p); err != nil {
		return nil, err
	}
	if !p.config.RecoveryMode {
		return nil, fmt.Errorf("%w: %s", ErrNotRecoveryMode, pool.Hex())
	}
	n := len(p.tokens)
	if len(minAmountsOut) != n {
		return nil, fmt.Errorf("%w: %d amounts for %d tokens", ErrInvalidTokenCount, len(minAmountsOut), n)
	}
	mins := fixedpoint.CopySlice(minAmountsOut)

	packed := s.buf.poolBalances(pool)
	raw := make([]*uint256.Int, n)
	for i := range raw {
		raw[i] = packed[i].Raw()
	}
	if err := s.ensureCanBurn(pool, from, sharesIn); err != nil {
		return nil, err
	}
	totalSupply := s.buf.totalSupply(pool)
	amountsOut := computeProportionalAmountsOut(raw, totalSupply, sharesIn)
	fees := fixedpoint.Zeros(n)
	if s.addLiquidityCalled(pool) {
		swapFee := p.config.StaticSwapFeePercentage
		for i := range amountsOut {
			fees[i] = fixedpoint.MulUp(amountsOut[i], swapFee)
			amountsOut[i] = fixedpoint.Sub(amountsOut[i], fees[i])
		}
	}

	updated := make([]PackedBalance, n)
	for i, t := range p.tokens {
		if amountsOut[i].Lt(mins[i]) {
			return nil, fmt.Errorf("%w: token %s amount %s < min %s", ErrAmountOutBelowMin, t.address.Hex(), amountsOut[i].Dec(), mins[i].Dec())
		}
		if err := s.ledger.credit(t.address, amountsOut[i]); err != nil {
			return nil, err
		}
		newRaw := fixedpoint.Sub(raw[i], amountsOut[i])
		// Rate providers may be the reason for recovery, so the live value
		// keeps its last ratio to raw instead of being re-priced.
		newLive := new(uint256.Int)
		if !raw[i].IsZero() {
			newLive = fixedpoint.MulDivDown(packed[i].live, newRaw, raw[i])
		}
		updated[i] = newPackedBalance(newRaw, newLive)
	}
	s.buf.balances.set(pool, updated)

	if err := s.burnFrom(pool, from, sharesIn); err != nil {
		return nil, err
	}

	s.emit(LiquidityRemovedEvent{
		Pool:           pool,
		From:           from,
		Kind:           RemoveProportional,
		TotalSupply:    s.buf.totalSupply(pool),
		AmountsOut:     fixedpoint.CopySlice(amountsOut),
		SwapFeeAmounts: fees,
	})
	return amountsOut, nil
}
