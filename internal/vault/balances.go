package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

// poolData is the working copy of one pool for the duration of a single
// operation.
type poolData struct {
	pool   *poolState
	config PoolConfig
	raw    []*uint256.Int
	live   []*uint256.Int
	rates  []*uint256.Int
}

func (pd *poolData) scalingFactor(i int) *uint256.Int {
	return pd.pool.tokens[i].scalingFactor
}

func (pd *poolData) toScaled18(i int, amountRaw *uint256.Int, rounding fixedpoint.Rounding) *uint256.Int {
	return fixedpoint.ToScaled18(amountRaw, pd.scalingFactor(i), pd.rates[i], rounding)
}

func (pd *poolData) toRaw(i int, amountScaled18 *uint256.Int, rounding fixedpoint.Rounding) *uint256.Int {
	return fixedpoint.ToRaw(amountScaled18, pd.scalingFactor(i), pd.rates[i], rounding)
}

// updateRawAndLive is the only writer of a working balance pair.
func (pd *poolData) updateRawAndLive(i int, raw *uint256.Int, rounding fixedpoint.Rounding) {
	pd.raw[i] = fixedpoint.Copy(raw)
	pd.live[i] = pd.toScaled18(i, raw, rounding)
}

func (pd *poolData) liveBalances() []*uint256.Int {
	return fixedpoint.CopySlice(pd.live)
}

// requirePool resolves a registered pool.
func (s *Session) requirePool(addr common.Address) (*poolState, error) {
	return s.vault.pool(addr)
}

func (s *Session) ensureInitialized(p *poolState) error {
	if !s.buf.isInitialized(p.address) {
		return fmt.Errorf("%w: %s", ErrPoolNotInitialized, p.address.Hex())
	}
	return nil
}

func ensureUnpaused(p *poolState) error {
	if p.config.Paused {
		return fmt.Errorf("%w: %s", ErrPoolPaused, p.address.Hex())
	}
	return nil
}

// loadPoolData reads the session view of a pool, charges any yield fee owed
// since the last write and computes live balances with rounding.
func (s *Session) loadPoolData(p *poolState, rounding fixedpoint.Rounding) (*poolData, error) {
	n := len(p.tokens)
	packed := s.buf.poolBalances(p.address)
	pd := &poolData{
		pool:   p,
		config: p.config.clone(),
		raw:    make([]*uint256.Int, n),
		live:   make([]*uint256.Int, n),
		rates:  make([]*uint256.Int, n),
	}
	pd.config.Initialized = s.buf.isInitialized(p.address)

	charged := false
	for i, t := range p.tokens {
		rate, err := t.rate()
		if err != nil {
			return nil, err
		}
		pd.rates[i] = rate

		raw, lastLive := new(uint256.Int), new(uint256.Int)
		if i < len(packed) {
			raw, lastLive = packed[i].Raw(), packed[i].LiveScaled18()
		}
		pd.raw[i] = raw

		if t.paysYieldFees && !pd.config.RecoveryMode && !pd.config.AggregateYieldFeePercentage.IsZero() {
			if s.chargeYieldFee(pd, i, lastLive) {
				charged = true
			}
		}
		pd.live[i] = pd.toScaled18(i, pd.raw[i], rounding)
	}

	if charged {
		s.writePoolBalances(pd)
	}
	return pd, nil
}

// chargeYieldFee takes the aggregate share of the live value a rate-bearing
// token gained since the last write.
func (s *Session) chargeYieldFee(pd *poolData, i int, lastLive *uint256.Int) bool {
	current := pd.toScaled18(i, pd.raw[i], fixedpoint.RoundDown)
	if !current.Gt(lastLive) {
		return false
	}
	feeScaled18 := fixedpoint.MulDown(fixedpoint.Sub(current, lastLive), pd.config.AggregateYieldFeePercentage)
	feeRaw := pd.toRaw(i, feeScaled18, fixedpoint.RoundDown)
	if feeRaw.IsZero() {
		return false
	}
	pd.raw[i] = fixedpoint.Sub(pd.raw[i], feeRaw)

	key := feeKey{pool: pd.pool.address, token: pd.pool.tokens[i].address}
	s.buf.yieldFees.set(key, fixedpoint.Add(s.buf.amount(&s.buf.yieldFees, key), feeRaw))
	return true
}

// writePoolBalances stores every working pair, with live values recomputed
// rounding down from the raw balances.
func (s *Session) writePoolBalances(pd *poolData) {
	packed := make([]PackedBalance, len(pd.raw))
	for i, raw := range pd.raw {
		packed[i] = newPackedBalance(raw, pd.toScaled18(i, raw, fixedpoint.RoundDown))
	}
	s.buf.balances.set(pd.pool.address, packed)
}
