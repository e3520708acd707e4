package vault

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

// AddLiquidity deposits tokens into a pool and mints shares to params.To.
// The caller owes the returned amounts in.
func (s *Session) AddLiquidity(params AddLiquidityParams) (AddLiquidityResult, error) {
	var res AddLiquidityResult
	err := s.guarded(entryAddLiquidity, params.Pool, func() error {
		var err error
		res, err = s.addLiquidity(params)
		return err
	})
	if err != nil {
		return AddLiquidityResult{}, err
	}
	return res, nil
}

func (s *Session) addLiquidity(params AddLiquidityParams) (AddLiquidityResult, error) {
	p, err := s.requirePool(params.Pool)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	if err := s.ensureInitialized(p); err != nil {
		return AddLiquidityResult{}, err
	}
	if err := ensureUnpaused(p); err != nil {
		return AddLiquidityResult{}, err
	}
	n := len(p.tokens)
	if len(params.MaxAmountsIn) != n {
		return AddLiquidityResult{}, fmt.Errorf("%w: %d amounts for %d tokens", ErrInvalidTokenCount, len(params.MaxAmountsIn), n)
	}
	maxAmountsIn := fixedpoint.CopySlice(params.MaxAmountsIn)
	minSharesOut := fixedpoint.Copy(params.MinSharesOut)

	s.markAddLiquidity(p.address)

	pd, err := s.loadPoolData(p, fixedpoint.RoundUp)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	// Proportional adds only bound raw amounts, which are often left at max.
	var maxAmountsInScaled18 []*uint256.Int
	if params.Kind != AddProportional {
		maxAmountsInScaled18 = make([]*uint256.Int, n)
		for i, amount := range maxAmountsIn {
			maxAmountsInScaled18[i] = pd.toScaled18(i, amount, fixedpoint.RoundDown)
		}
	}
	totalSupply := s.buf.totalSupply(p.address)
	swapFee := pd.config.StaticSwapFeePercentage
	lm := pd.config.LiquidityManagement

	var (
		amountsInScaled18 []*uint256.Int
		sharesOut         *uint256.Int
		swapFeesScaled18  []*uint256.Int
		returnData        []byte
	)

	switch params.Kind {
	case AddProportional:
		sharesOut = minSharesOut
		amountsInScaled18 = computeProportionalAmountsIn(pd.live, totalSupply, sharesOut)
		swapFeesScaled18 = fixedpoint.Zeros(n)

	case AddDonation:
		if !lm.EnableDonation {
			return AddLiquidityResult{}, fmt.Errorf("%w: pool %s", ErrDonationNotSupported, p.address.Hex())
		}
		sharesOut = new(uint256.Int)
		amountsInScaled18 = maxAmountsInScaled18
		swapFeesScaled18 = fixedpoint.Zeros(n)

	case AddUnbalanced:
		if lm.DisableUnbalancedLiquidity {
			return AddLiquidityResult{}, fmt.Errorf("%w: pool %s", ErrUnbalancedLiquidityDisabled, p.address.Hex())
		}
		amountsInScaled18 = maxAmountsInScaled18
		sharesOut, swapFeesScaled18, err = computeAddLiquidityUnbalanced(p.pricing, pd.live, amountsInScaled18, totalSupply, swapFee)
		if err != nil {
			return AddLiquidityResult{}, err
		}

	case AddSingleTokenExactOut:
		if lm.DisableUnbalancedLiquidity {
			return AddLiquidityResult{}, fmt.Errorf("%w: pool %s", ErrUnbalancedLiquidityDisabled, p.address.Hex())
		}
		index, err := singleTokenIndex(maxAmountsIn)
		if err != nil {
			return AddLiquidityResult{}, err
		}
		sharesOut = minSharesOut
		amountsInScaled18 = maxAmountsInScaled18
		amountsInScaled18[index], swapFeesScaled18, err = computeAddLiquiditySingleTokenExactOut(p.pricing, pd.live, index, sharesOut, totalSupply, swapFee)
		if err != nil {
			return AddLiquidityResult{}, err
		}

	case AddCustom:
		custom, ok := p.pricing.(CustomAddLiquidity)
		if !lm.EnableAddLiquidityCustom || !ok {
			return AddLiquidityResult{}, fmt.Errorf("%w: pool %s", ErrCustomAddNotSupported, p.address.Hex())
		}
		out, err := custom.OnAddLiquidityCustom(AddLiquidityCustomParams{
			Router:               s.caller,
			MaxAmountsInScaled18: fixedpoint.CopySlice(maxAmountsInScaled18),
			MinSharesOut:         fixedpoint.Copy(minSharesOut),
			BalancesScaled18:     pd.liveBalances(),
			UserData:             params.UserData,
			Session:              s,
		})
		if err != nil {
			return AddLiquidityResult{}, fmt.Errorf("pool %s custom add: %w", p.address.Hex(), err)
		}
		if len(out.AmountsInScaled18) != n || len(out.SwapFeeAmountsScaled18) != n || out.SharesOut == nil {
			return AddLiquidityResult{}, fmt.Errorf("%w: malformed custom add result", ErrInvalidTokenCount)
		}
		amountsInScaled18, sharesOut, swapFeesScaled18, returnData = out.AmountsInScaled18, out.SharesOut, out.SwapFeeAmountsScaled18, out.ReturnData

	default:
		return AddLiquidityResult{}, fmt.Errorf("unknown add liquidity kind %d", params.Kind)
	}

	if sharesOut.Lt(minSharesOut) {
		return AddLiquidityResult{}, fmt.Errorf("%w: %s < %s", ErrSharesOutBelowMin, sharesOut.Dec(), minSharesOut.Dec())
	}
	if err := s.vault.ensureValidTradeAmount(sharesOut); err != nil {
		return AddLiquidityResult{}, err
	}

	amountsInRaw := make([]*uint256.Int, n)
	feesRaw := make([]*uint256.Int, n)
	for i, t := range p.tokens {
		if err := s.vault.ensureValidTradeAmount(amountsInScaled18[i]); err != nil {
			return AddLiquidityResult{}, err
		}
		amountInRaw := pd.toRaw(i, amountsInScaled18[i], fixedpoint.RoundUp)
		if amountInRaw.Gt(maxAmountsIn[i]) {
			return AddLiquidityResult{}, fmt.Errorf("%w: token %s amount %s > max %s", ErrAmountInAboveMax, t.address.Hex(), amountInRaw.Dec(), maxAmountsIn[i].Dec())
		}
		if err := s.ledger.debit(t.address, amountInRaw); err != nil {
			return AddLiquidityResult{}, err
		}
		totalFeeRaw, aggregateFeeRaw, err := s.chargeAggregateSwapFee(pd, swapFeesScaled18[i], i)
		if err != nil {
			return AddLiquidityResult{}, err
		}
		pd.updateRawAndLive(i, fixedpoint.Sub(fixedpoint.Add(pd.raw[i], amountInRaw), aggregateFeeRaw), fixedpoint.RoundDown)
		amountsInRaw[i] = amountInRaw
		feesRaw[i] = totalFeeRaw
	}
	s.writePoolBalances(pd)

	if err := s.vault.mintShares(s.buf, p.address, params.To, sharesOut); err != nil {
		return AddLiquidityResult{}, err
	}

	s.emit(LiquidityAddedEvent{
		Pool:           p.address,
		To:             params.To,
		Kind:           params.Kind,
		TotalSupply:    s.buf.totalSupply(p.address),
		AmountsIn:      fixedpoint.CopySlice(amountsInRaw),
		SwapFeeAmounts: fixedpoint.CopySlice(feesRaw),
	})

	return AddLiquidityResult{
		AmountsIn:  amountsInRaw,
		SharesOut:  fixedpoint.Copy(sharesOut),
		FeeAmounts: feesRaw,
		ReturnData: returnData,
	}, nil
}

// singleTokenIndex finds the only nonzero entry of amounts.
func singleTokenIndex(amounts []*uint256.Int) (int, error) {
	index := -1
	for i, amount := range amounts {
		if amount == nil || amount.IsZero() {
			continue
		}
		if index != -1 {
			return 0, ErrInvalidSingleTokenInput
		}
		index = i
	}
	if index == -1 {
		return 0, ErrInvalidSingleTokenInput
	}
	return index, nil
}
