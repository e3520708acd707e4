package vault

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

// aggregateShare is the protocol and creator portion of a raw fee.
func aggregateShare(totalFeeRaw, aggregatePercentage *uint256.Int) *uint256.Int {
	return fixedpoint.MulDown(totalFeeRaw, aggregatePercentage)
}

// chargeAggregateSwapFee converts a live fee on token index to raw, splits
// off the aggregate portion and accrues it. Pools in recovery mode keep the
// whole fee.
func (s *Session) chargeAggregateSwapFee(pd *poolData, totalFeeScaled18 *uint256.Int, index int) (totalFeeRaw, aggregateFeeRaw *uint256.Int, err error) {
	if totalFeeScaled18 == nil || totalFeeScaled18.IsZero() {
		return new(uint256.Int), new(uint256.Int), nil
	}
	totalFeeRaw = pd.toRaw(index, totalFeeScaled18, fixedpoint.RoundDown)
	if pd.config.RecoveryMode {
		return totalFeeRaw, new(uint256.Int), nil
	}

	aggregateFeeRaw = aggregateShare(totalFeeRaw, pd.config.AggregateSwapFeePercentage)
	if aggregateFeeRaw.Gt(totalFeeRaw) {
		return nil, nil, fmt.Errorf("%w: %s > %s", ErrAggregateFeeExceedsTotal, aggregateFeeRaw.Dec(), totalFeeRaw.Dec())
	}
	if !aggregateFeeRaw.IsZero() {
		key := feeKey{pool: pd.pool.address, token: pd.pool.tokens[index].address}
		s.buf.swapFees.set(key, fixedpoint.Add(s.buf.amount(&s.buf.swapFees, key), aggregateFeeRaw))
	}
	return totalFeeRaw, aggregateFeeRaw, nil
}
