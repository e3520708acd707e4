package vault

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

// Swap trades tokenIn for tokenOut against one pool. EXACT_IN fixes the
// amount entering the vault, EXACT_OUT the amount leaving it; LimitRaw is
// the minimum out or maximum in respectively.
func (s *Session) Swap(params SwapParams) (SwapResult, error) {
	var res SwapResult
	err := s.guarded(entrySwap, params.Pool, func() error {
		var err error
		res, err = s.swap(params)
		return err
	})
	if err != nil {
		return SwapResult{}, err
	}
	return res, nil
}

func (s *Session) swap(params SwapParams) (SwapResult, error) {
	if params.AmountGivenRaw == nil || params.AmountGivenRaw.IsZero() {
		return SwapResult{}, ErrAmountGivenZero
	}
	if params.TokenIn == params.TokenOut {
		return SwapResult{}, fmt.Errorf("%w: %s", ErrCannotSwapSameToken, params.TokenIn.Hex())
	}
	p, err := s.requirePool(params.Pool)
	if err != nil {
		return SwapResult{}, err
	}
	if err := s.ensureInitialized(p); err != nil {
		return SwapResult{}, err
	}
	if err := ensureUnpaused(p); err != nil {
		return SwapResult{}, err
	}
	indexIn, ok := p.tokenIndex(params.TokenIn)
	if !ok {
		return SwapResult{}, fmt.Errorf("%w: %s in pool %s", ErrTokenNotRegistered, params.TokenIn.Hex(), p.address.Hex())
	}
	indexOut, ok := p.tokenIndex(params.TokenOut)
	if !ok {
		return SwapResult{}, fmt.Errorf("%w: %s in pool %s", ErrTokenNotRegistered, params.TokenOut.Hex(), p.address.Hex())
	}

	pd, err := s.loadPoolData(p, fixedpoint.RoundDown)
	if err != nil {
		return SwapResult{}, err
	}
	swapFee := pd.config.StaticSwapFeePercentage

	var amountGivenScaled18 *uint256.Int
	if params.Kind == ExactIn {
		amountGivenScaled18 = pd.toScaled18(indexIn, params.AmountGivenRaw, fixedpoint.RoundDown)
	} else {
		amountGivenScaled18 = pd.toScaled18(indexOut, params.AmountGivenRaw, fixedpoint.RoundUp)
	}

	totalFeeScaled18 := new(uint256.Int)
	if params.Kind == ExactIn {
		totalFeeScaled18 = fixedpoint.MulUp(amountGivenScaled18, swapFee)
		amountGivenScaled18 = fixedpoint.Sub(amountGivenScaled18, totalFeeScaled18)
	}

	if err := s.vault.ensureValidSwapAmount(amountGivenScaled18); err != nil {
		return SwapResult{}, err
	}

	amountCalculatedScaled18, err := p.pricing.OnSwap(PoolSwapParams{
		Kind:                params.Kind,
		AmountGivenScaled18: fixedpoint.Copy(amountGivenScaled18),
		BalancesScaled18:    pd.liveBalances(),
		IndexIn:             indexIn,
		IndexOut:            indexOut,
		Router:              s.caller,
		UserData:            params.UserData,
		Session:             s,
	})
	if err != nil {
		return SwapResult{}, fmt.Errorf("pool %s swap: %w", p.address.Hex(), err)
	}
	if amountCalculatedScaled18 == nil {
		return SwapResult{}, fmt.Errorf("pool %s swap: nil amount", p.address.Hex())
	}

	if err := s.vault.ensureValidSwapAmount(amountCalculatedScaled18); err != nil {
		return SwapResult{}, err
	}

	if params.Kind == ExactOut {
		totalFeeScaled18 = fixedpoint.MulDivUp(amountCalculatedScaled18, swapFee, fixedpoint.Complement(swapFee))
		amountCalculatedScaled18 = fixedpoint.Add(amountCalculatedScaled18, totalFeeScaled18)
	}

	var amountCalculatedRaw, amountIn, amountOut *uint256.Int
	if params.Kind == ExactIn {
		amountCalculatedRaw = pd.toRaw(indexOut, amountCalculatedScaled18, fixedpoint.RoundDown)
		amountIn, amountOut = fixedpoint.Copy(params.AmountGivenRaw), amountCalculatedRaw
		if params.LimitRaw != nil && amountOut.Lt(params.LimitRaw) {
			return SwapResult{}, fmt.Errorf("%w: amount out %s < min %s", ErrSwapLimit, amountOut.Dec(), params.LimitRaw.Dec())
		}
	} else {
		amountCalculatedRaw = pd.toRaw(indexIn, amountCalculatedScaled18, fixedpoint.RoundUp)
		amountIn, amountOut = amountCalculatedRaw, fixedpoint.Copy(params.AmountGivenRaw)
		if params.LimitRaw != nil && amountIn.Gt(params.LimitRaw) {
			return SwapResult{}, fmt.Errorf("%w: amount in %s > max %s", ErrSwapLimit, amountIn.Dec(), params.LimitRaw.Dec())
		}
	}

	if err := s.ledger.debit(params.TokenIn, amountIn); err != nil {
		return SwapResult{}, err
	}
	if err := s.ledger.credit(params.TokenOut, amountOut); err != nil {
		return SwapResult{}, err
	}

	totalFeeRaw, aggregateFeeRaw, err := s.chargeAggregateSwapFee(pd, totalFeeScaled18, indexIn)
	if err != nil {
		return SwapResult{}, err
	}

	pd.updateRawAndLive(indexIn, fixedpoint.Sub(fixedpoint.Add(pd.raw[indexIn], amountIn), aggregateFeeRaw), fixedpoint.RoundDown)
	pd.updateRawAndLive(indexOut, fixedpoint.Sub(pd.raw[indexOut], amountOut), fixedpoint.RoundDown)
	s.writePoolBalances(pd)

	s.emit(SwapEvent{
		Pool:              p.address,
		TokenIn:           params.TokenIn,
		TokenOut:          params.TokenOut,
		AmountIn:          fixedpoint.Copy(amountIn),
		AmountOut:         fixedpoint.Copy(amountOut),
		SwapFeePercentage: fixedpoint.Copy(swapFee),
		SwapFeeAmount:     fixedpoint.Copy(totalFeeRaw),
	})

	return SwapResult{
		AmountCalculatedRaw: fixedpoint.Copy(amountCalculatedRaw),
		AmountIn:            fixedpoint.Copy(amountIn),
		AmountOut:           fixedpoint.Copy(amountOut),
		TotalFeeRaw:         totalFeeRaw,
		AggregateFeeRaw:     aggregateFeeRaw,
	}, nil
}
