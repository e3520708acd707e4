package pools

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"liquidityVault/internal/fixedpoint"
	"liquidityVault/internal/vault"
)

func e18(v uint64) *uint256.Int { return fixedpoint.Mul(uint256.NewInt(v), fixedpoint.ONE) }

func TestConstantSumSwapIsOneToOne(t *testing.T) {
	p := NewConstantSum()
	out, err := p.OnSwap(vault.PoolSwapParams{
		Kind:                vault.ExactIn,
		AmountGivenScaled18: e18(5),
		BalancesScaled18:    []*uint256.Int{e18(100), e18(100)},
		IndexIn:             0,
		IndexOut:            1,
	})
	require.NoError(t, err)
	require.Equal(t, e18(5), out)

	_, err = p.OnSwap(vault.PoolSwapParams{
		Kind:                vault.ExactOut,
		AmountGivenScaled18: e18(101),
		BalancesScaled18:    []*uint256.Int{e18(100), e18(100)},
		IndexIn:             0,
		IndexOut:            1,
	})
	require.Error(t, err)
}

func TestConstantSumComputeBalance(t *testing.T) {
	p := NewConstantSum()
	balances := []*uint256.Int{e18(100), e18(300)}
	// Doubling the invariant of 400 adds 400 to the chosen token.
	b, err := p.ComputeBalance(balances, 0, e18(2))
	require.NoError(t, err)
	require.Equal(t, e18(500), b)
}

func TestConstantProductInvariant(t *testing.T) {
	p := NewConstantProduct()
	inv, err := p.ComputeInvariant([]*uint256.Int{e18(1000), e18(1000)}, fixedpoint.RoundDown)
	require.NoError(t, err)
	require.Equal(t, e18(1000), inv)

	_, err = p.ComputeInvariant([]*uint256.Int{e18(1)}, fixedpoint.RoundDown)
	require.Error(t, err)
}

func TestConstantProductExactOutDrain(t *testing.T) {
	p := NewConstantProduct()
	_, err := p.OnSwap(vault.PoolSwapParams{
		Kind:                vault.ExactOut,
		AmountGivenScaled18: e18(100),
		BalancesScaled18:    []*uint256.Int{e18(100), e18(100)},
		IndexIn:             0,
		IndexOut:            1,
	})
	require.Error(t, err)
}

func TestConstantProductComputeBalance(t *testing.T) {
	p := NewConstantProduct()
	balances := []*uint256.Int{e18(100), e18(400)}
	// sqrt(100*400) = 200; at ratio 1.5 the invariant is 300, so x = 300^2/400.
	b, err := p.ComputeBalance(balances, 0, uint256.NewInt(1_500_000_000_000_000_000))
	require.NoError(t, err)
	require.Equal(t, fixedpoint.DivRawUp(fixedpoint.Mul(e18(300), e18(300)), e18(400)), b)
}

func TestConstantProductSwapKeepsInvariant(t *testing.T) {
	p := NewConstantProduct()
	rapid.Check(t, func(t *rapid.T) {
		b0 := e18(rapid.Uint64Range(1, 1_000_000).Draw(t, "b0"))
		b1 := e18(rapid.Uint64Range(1, 1_000_000).Draw(t, "b1"))
		amount := uint256.NewInt(rapid.Uint64Range(1, 1<<62).Draw(t, "amount"))
		balances := []*uint256.Int{b0, b1}

		before := fixedpoint.Mul(b0, b1)

		out, err := p.OnSwap(vault.PoolSwapParams{
			Kind: vault.ExactIn, AmountGivenScaled18: amount,
			BalancesScaled18: balances, IndexIn: 0, IndexOut: 1,
		})
		if err != nil {
			t.Fatalf("exact in: %v", err)
		}
		after := fixedpoint.Mul(fixedpoint.Add(b0, amount), fixedpoint.Sub(b1, out))
		if after.Lt(before) {
			t.Fatalf("exact in shrank k: %s < %s", after.Dec(), before.Dec())
		}

		if !amount.Lt(b1) {
			return
		}
		in, err := p.OnSwap(vault.PoolSwapParams{
			Kind: vault.ExactOut, AmountGivenScaled18: amount,
			BalancesScaled18: balances, IndexIn: 0, IndexOut: 1,
		})
		if err != nil {
			t.Fatalf("exact out: %v", err)
		}
		after = fixedpoint.Mul(fixedpoint.Add(b0, in), fixedpoint.Sub(b1, amount))
		if after.Lt(before) {
			t.Fatalf("exact out shrank k: %s < %s", after.Dec(), before.Dec())
		}
	})
}
