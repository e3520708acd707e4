package vault

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"liquidityVault/internal/fixedpoint"
)

func TestLedgerConservation(t *testing.T) {
	tokens := []common.Address{
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
		common.HexToAddress("0x03"),
	}
	rapid.Check(t, func(t *rapid.T) {
		l := newLedger()
		net := make(map[common.Address]*big.Int)
		for _, tk := range tokens {
			net[tk] = new(big.Int)
		}

		steps := rapid.IntRange(0, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			tk := tokens[rapid.IntRange(0, len(tokens)-1).Draw(t, "token")]
			amount := uint256.NewInt(rapid.Uint64Range(0, 1000).Draw(t, "amount"))
			if rapid.Bool().Draw(t, "debit") {
				if err := l.debit(tk, amount); err != nil {
					t.Fatalf("debit: %v", err)
				}
				net[tk].Add(net[tk], amount.ToBig())
			} else {
				if err := l.credit(tk, amount); err != nil {
					t.Fatalf("credit: %v", err)
				}
				net[tk].Sub(net[tk], amount.ToBig())
			}
		}

		nonZero := 0
		for _, tk := range tokens {
			if net[tk].Cmp(l.delta(tk)) != 0 {
				t.Fatalf("delta of %s = %s, want %s", tk.Hex(), l.delta(tk), net[tk])
			}
			if net[tk].Sign() != 0 {
				nonZero++
			}
		}
		if l.nonZero != nonZero {
			t.Fatalf("nonZero = %d, want %d", l.nonZero, nonZero)
		}
		if l.settled() != (nonZero == 0) {
			t.Fatalf("settled = %v with %d open tokens", l.settled(), nonZero)
		}
		if len(l.outstanding()) != nonZero {
			t.Fatalf("outstanding = %d, want %d", len(l.outstanding()), nonZero)
		}
	})
}

func TestLedgerDeltaOverflow(t *testing.T) {
	l := newLedger()
	tk := common.HexToAddress("0x01")
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 254)

	require.NoError(t, l.debit(tk, huge))
	err := l.debit(tk, huge)
	require.True(t, errors.Is(err, ErrDeltaOverflow))
	require.Zero(t, huge.ToBig().Cmp(l.delta(tk)))

	l = newLedger()
	require.NoError(t, l.credit(tk, huge))
	require.NoError(t, l.credit(tk, huge))
	require.ErrorIs(t, l.credit(tk, uint256.NewInt(1)), ErrDeltaOverflow)
}

func TestLedgerTouchedOrder(t *testing.T) {
	l := newLedger()
	a, b := common.HexToAddress("0x0b"), common.HexToAddress("0x0a")
	require.NoError(t, l.debit(a, uint256.NewInt(1)))
	require.NoError(t, l.credit(b, uint256.NewInt(1)))
	require.NoError(t, l.credit(a, uint256.NewInt(1)))
	require.Equal(t, []common.Address{a, b}, l.touched)
	require.Equal(t, []common.Address{b}, l.outstanding())
}

func TestAggregateShareNeverExceedsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := new(uint256.Int).SetUint64(rapid.Uint64().Draw(t, "total"))
		total.Lsh(total, uint(rapid.IntRange(0, 128).Draw(t, "shift")))
		p := uint256.NewInt(rapid.Uint64Range(0, 1e18).Draw(t, "pct"))

		share := aggregateShare(total, p)
		if share.Gt(total) {
			t.Fatalf("share %s > total %s at %s", share.Dec(), total.Dec(), p.Dec())
		}
		if p.Eq(fixedpoint.ONE) && !share.Eq(total) {
			t.Fatalf("100%% share %s != total %s", share.Dec(), total.Dec())
		}
	})
}

func TestPackedBalanceCopies(t *testing.T) {
	raw := uint256.NewInt(5)
	b := newPackedBalance(raw, uint256.NewInt(7))
	raw.SetUint64(9)
	require.Equal(t, uint256.NewInt(5), b.Raw())

	got := b.LiveScaled18()
	got.SetUint64(1)
	require.Equal(t, uint256.NewInt(7), b.LiveScaled18())
}
