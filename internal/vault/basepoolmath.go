package vault

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

// computeProportionalAmountsIn returns the balances needed to mint
// sharesOut, rounded up.
func computeProportionalAmountsIn(balances []*uint256.Int, totalSupply, sharesOut *uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(balances))
	for i, b := range balances {
		out[i] = fixedpoint.MulDivUp(b, sharesOut, totalSupply)
	}
	return out
}

// computeProportionalAmountsOut returns the balances released by burning
// sharesIn, rounded down.
func computeProportionalAmountsOut(balances []*uint256.Int, totalSupply, sharesIn *uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(balances))
	for i, b := range balances {
		out[i] = fixedpoint.MulDivDown(b, sharesIn, totalSupply)
	}
	return out
}

func ensureInvariantRatioBelowMax(pool PricingPool, ratio *uint256.Int) error {
	bounds, ok := pool.(InvariantRatioBounds)
	if !ok {
		return nil
	}
	if upper := bounds.MaximumInvariantRatio(); upper != nil && ratio.Gt(upper) {
		return fmt.Errorf("%w: %s above max %s", ErrInvariantRatio, ratio.Dec(), upper.Dec())
	}
	return nil
}

func ensureInvariantRatioAboveMin(pool PricingPool, ratio *uint256.Int) error {
	bounds, ok := pool.(InvariantRatioBounds)
	if !ok {
		return nil
	}
	if lower := bounds.MinimumInvariantRatio(); lower != nil && ratio.Lt(lower) {
		return fmt.Errorf("%w: %s below min %s", ErrInvariantRatio, ratio.Dec(), lower.Dec())
	}
	return nil
}

func computeInvariant(pool PricingPool, balances []*uint256.Int, rounding fixedpoint.Rounding) (*uint256.Int, error) {
	inv, err := pool.ComputeInvariant(fixedpoint.CopySlice(balances), rounding)
	if err != nil {
		return nil, fmt.Errorf("compute invariant: %w", err)
	}
	if inv == nil || inv.IsZero() {
		return nil, fmt.Errorf("%w: zero invariant", ErrInvariantRatio)
	}
	return inv, nil
}

func computeBalance(pool PricingPool, balances []*uint256.Int, index int, ratio *uint256.Int) (*uint256.Int, error) {
	b, err := pool.ComputeBalance(fixedpoint.CopySlice(balances), index, fixedpoint.Copy(ratio))
	if err != nil {
		return nil, fmt.Errorf("compute balance: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("compute balance: nil result")
	}
	return b, nil
}

// computeAddLiquidityUnbalanced mints shares for arbitrary amounts in. The
// part of each deposit above its proportional share is charged the swap fee
// before the invariant growth is converted to shares.
func computeAddLiquidityUnbalanced(
	pool PricingPool,
	currentBalances, exactAmounts []*uint256.Int,
	totalSupply, swapFeePercentage *uint256.Int,
) (sharesOut *uint256.Int, swapFeeAmounts []*uint256.Int, err error) {
	n := len(currentBalances)
	newBalances := make([]*uint256.Int, n)
	swapFeeAmounts = fixedpoint.Zeros(n)
	for i := range currentBalances {
		newBalances[i] = fixedpoint.Add(currentBalances[i], exactAmounts[i])
	}

	currentInvariant, err := computeInvariant(pool, currentBalances, fixedpoint.RoundUp)
	if err != nil {
		return nil, nil, err
	}
	newInvariant, err := computeInvariant(pool, newBalances, fixedpoint.RoundDown)
	if err != nil {
		return nil, nil, err
	}
	invariantRatio := fixedpoint.DivDown(newInvariant, currentInvariant)
	if err := ensureInvariantRatioBelowMax(pool, invariantRatio); err != nil {
		return nil, nil, err
	}

	for i := range currentBalances {
		proportional := fixedpoint.MulDown(invariantRatio, currentBalances[i])
		if newBalances[i].Gt(proportional) {
			taxable := fixedpoint.Sub(newBalances[i], proportional)
			swapFeeAmounts[i] = fixedpoint.MulUp(taxable, swapFeePercentage)
			newBalances[i] = fixedpoint.Sub(newBalances[i], swapFeeAmounts[i])
		}
	}

	invariantWithFees, err := computeInvariant(pool, newBalances, fixedpoint.RoundDown)
	if err != nil {
		return nil, nil, err
	}
	if invariantWithFees.Lt(currentInvariant) {
		return nil, nil, fmt.Errorf("%w: invariant decreased on add", ErrInvariantRatio)
	}
	sharesOut = fixedpoint.MulDivDown(totalSupply, fixedpoint.Sub(invariantWithFees, currentInvariant), currentInvariant)
	return sharesOut, swapFeeAmounts, nil
}

// computeAddLiquiditySingleTokenExactOut solves for the amount of one token
// needed to mint exactly sharesOut, fee included.
func computeAddLiquiditySingleTokenExactOut(
	pool PricingPool,
	currentBalances []*uint256.Int,
	tokenIndex int,
	sharesOut, totalSupply, swapFeePercentage *uint256.Int,
) (amountIn *uint256.Int, swapFeeAmounts []*uint256.Int, err error) {
	newSupply := fixedpoint.Add(sharesOut, totalSupply)
	invariantRatio := fixedpoint.DivUp(newSupply, totalSupply)
	if err := ensureInvariantRatioBelowMax(pool, invariantRatio); err != nil {
		return nil, nil, err
	}

	newBalance, err := computeBalance(pool, currentBalances, tokenIndex, invariantRatio)
	if err != nil {
		return nil, nil, err
	}
	current := currentBalances[tokenIndex]
	if newBalance.Lt(current) {
		return nil, nil, fmt.Errorf("%w: balance decreased on add", ErrInvariantRatio)
	}
	amount := fixedpoint.Sub(newBalance, current)

	nonTaxable := fixedpoint.MulDivUp(newSupply, current, totalSupply)
	taxable := new(uint256.Int)
	if newBalance.Gt(nonTaxable) {
		taxable = fixedpoint.Sub(newBalance, nonTaxable)
	}
	fee := fixedpoint.Sub(fixedpoint.DivUp(taxable, fixedpoint.Complement(swapFeePercentage)), taxable)

	swapFeeAmounts = fixedpoint.Zeros(len(currentBalances))
	swapFeeAmounts[tokenIndex] = fee
	return fixedpoint.Add(amount, fee), swapFeeAmounts, nil
}

// computeRemoveLiquiditySingleTokenExactIn burns exactly sharesIn for a
// single token, taking the swap fee on the non-proportional part.
func computeRemoveLiquiditySingleTokenExactIn(
	pool PricingPool,
	currentBalances []*uint256.Int,
	tokenIndex int,
	sharesIn, totalSupply, swapFeePercentage *uint256.Int,
) (amountOut *uint256.Int, swapFeeAmounts []*uint256.Int, err error) {
	newSupply := fixedpoint.Sub(totalSupply, sharesIn)
	invariantRatio := fixedpoint.DivUp(newSupply, totalSupply)
	if err := ensureInvariantRatioAboveMin(pool, invariantRatio); err != nil {
		return nil, nil, err
	}

	newBalance, err := computeBalance(pool, currentBalances, tokenIndex, invariantRatio)
	if err != nil {
		return nil, nil, err
	}
	current := currentBalances[tokenIndex]
	if newBalance.Gt(current) {
		return nil, nil, fmt.Errorf("%w: balance increased on remove", ErrInvariantRatio)
	}
	amount := fixedpoint.Sub(current, newBalance)

	beforeTax := fixedpoint.MulDivUp(newSupply, current, totalSupply)
	taxable := new(uint256.Int)
	if beforeTax.Gt(newBalance) {
		taxable = fixedpoint.Sub(beforeTax, newBalance)
	}
	fee := fixedpoint.MulUp(taxable, swapFeePercentage)

	swapFeeAmounts = fixedpoint.Zeros(len(currentBalances))
	swapFeeAmounts[tokenIndex] = fee
	return fixedpoint.Sub(amount, fee), swapFeeAmounts, nil
}

// computeRemoveLiquiditySingleTokenExactOut returns the shares that must be
// burned to withdraw exactly amountOut of one token, fee included.
func computeRemoveLiquiditySingleTokenExactOut(
	pool PricingPool,
	currentBalances []*uint256.Int,
	tokenIndex int,
	amountOut, totalSupply, swapFeePercentage *uint256.Int,
) (sharesIn *uint256.Int, swapFeeAmounts []*uint256.Int, err error) {
	newBalances := fixedpoint.CopySlice(currentBalances)
	newBalances[tokenIndex] = fixedpoint.Sub(newBalances[tokenIndex], amountOut)

	currentInvariant, err := computeInvariant(pool, currentBalances, fixedpoint.RoundUp)
	if err != nil {
		return nil, nil, err
	}
	afterInvariant, err := pool.ComputeInvariant(fixedpoint.CopySlice(newBalances), fixedpoint.RoundUp)
	if err != nil {
		return nil, nil, fmt.Errorf("compute invariant: %w", err)
	}
	invariantRatio := fixedpoint.DivUp(afterInvariant, currentInvariant)
	if err := ensureInvariantRatioAboveMin(pool, invariantRatio); err != nil {
		return nil, nil, err
	}

	proportional := fixedpoint.MulUp(invariantRatio, currentBalances[tokenIndex])
	taxable := new(uint256.Int)
	if proportional.Gt(newBalances[tokenIndex]) {
		taxable = fixedpoint.Sub(proportional, newBalances[tokenIndex])
	}
	fee := fixedpoint.Sub(fixedpoint.DivUp(taxable, fixedpoint.Complement(swapFeePercentage)), taxable)
	newBalances[tokenIndex] = fixedpoint.Sub(newBalances[tokenIndex], fee)

	invariantWithFees, err := pool.ComputeInvariant(fixedpoint.CopySlice(newBalances), fixedpoint.RoundDown)
	if err != nil {
		return nil, nil, fmt.Errorf("compute invariant: %w", err)
	}

	swapFeeAmounts = fixedpoint.Zeros(len(currentBalances))
	swapFeeAmounts[tokenIndex] = fee
	sharesIn = fixedpoint.MulDivUp(totalSupply, fixedpoint.Sub(currentInvariant, invariantWithFees), currentInvariant)
	return sharesIn, swapFeeAmounts, nil
}
