package vault

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	maxDelta = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	minDelta = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
)

// ledger tracks what the session caller owes the vault (positive) or is owed
// by it (negative), per token.
type ledger struct {
	deltas  map[common.Address]*big.Int
	touched []common.Address
	seen    map[common.Address]bool
	nonZero int
}

func newLedger() *ledger {
	return &ledger{
		deltas: make(map[common.Address]*big.Int),
		seen:   make(map[common.Address]bool),
	}
}

func (l *ledger) accountDelta(token common.Address, delta *big.Int) error {
	if delta.Sign() == 0 {
		return nil
	}
	current, ok := l.deltas[token]
	if !ok {
		current = new(big.Int)
	}
	next := new(big.Int).Add(current, delta)
	if next.Cmp(maxDelta) > 0 || next.Cmp(minDelta) < 0 {
		return fmt.Errorf("%w: token %s", ErrDeltaOverflow, token.Hex())
	}

	switch {
	case current.Sign() == 0:
		l.nonZero++
	case next.Sign() == 0:
		l.nonZero--
	}

	if !l.seen[token] {
		l.seen[token] = true
		l.touched = append(l.touched, token)
	}
	if next.Sign() == 0 {
		delete(l.deltas, token)
		return nil
	}
	l.deltas[token] = next
	return nil
}

// debit records that the caller owes amount of token.
func (l *ledger) debit(token common.Address, amount *uint256.Int) error {
	return l.accountDelta(token, amount.ToBig())
}

// credit records that the caller paid, or is owed, amount of token.
func (l *ledger) credit(token common.Address, amount *uint256.Int) error {
	return l.accountDelta(token, new(big.Int).Neg(amount.ToBig()))
}

func (l *ledger) delta(token common.Address) *big.Int {
	if d, ok := l.deltas[token]; ok {
		return new(big.Int).Set(d)
	}
	return new(big.Int)
}

func (l *ledger) settled() bool {
	return l.nonZero == 0
}

func (l *ledger) outstanding() []common.Address {
	out := make([]common.Address, 0, len(l.deltas))
	for token := range l.deltas {
		out = append(out, token)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
