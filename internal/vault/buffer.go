package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type feeKey struct {
	pool  common.Address
	token common.Address
}

type shareKey struct {
	pool   common.Address
	holder common.Address
}

type allowanceKey struct {
	pool    common.Address
	owner   common.Address
	spender common.Address
}

// overlay is a copy-on-write view over a committed table. Values are
// treated as immutable: writers always store fresh values.
type overlay[K comparable, V any] struct {
	base  map[K]V
	dirty map[K]V
}

func newOverlay[K comparable, V any](base map[K]V) overlay[K, V] {
	return overlay[K, V]{base: base, dirty: make(map[K]V)}
}

func (o *overlay[K, V]) get(key K) (V, bool) {
	if v, ok := o.dirty[key]; ok {
		return v, true
	}
	v, ok := o.base[key]
	return v, ok
}

func (o *overlay[K, V]) set(key K, value V) {
	o.dirty[key] = value
}

func (o *overlay[K, V]) commit() {
	for k, v := range o.dirty {
		o.base[k] = v
	}
	o.dirty = make(map[K]V)
}

// state is the committed vault-wide table set.
type state struct {
	balances    map[common.Address][]PackedBalance
	initialized map[common.Address]bool
	swapFees    map[feeKey]*uint256.Int
	yieldFees   map[feeKey]*uint256.Int
	supply      map[common.Address]*uint256.Int
	shares      map[shareKey]*uint256.Int
	allowances  map[allowanceKey]*uint256.Int
	reserves    map[common.Address]*uint256.Int
}

func newState() *state {
	return &state{
		balances:    make(map[common.Address][]PackedBalance),
		initialized: make(map[common.Address]bool),
		swapFees:    make(map[feeKey]*uint256.Int),
		yieldFees:   make(map[feeKey]*uint256.Int),
		supply:      make(map[common.Address]*uint256.Int),
		shares:      make(map[shareKey]*uint256.Int),
		allowances:  make(map[allowanceKey]*uint256.Int),
		reserves:    make(map[common.Address]*uint256.Int),
	}
}

// buffer holds every write of one session until commit.
type buffer struct {
	balances    overlay[common.Address, []PackedBalance]
	initialized overlay[common.Address, bool]
	swapFees    overlay[feeKey, *uint256.Int]
	yieldFees   overlay[feeKey, *uint256.Int]
	supply      overlay[common.Address, *uint256.Int]
	shares      overlay[shareKey, *uint256.Int]
	allowances  overlay[allowanceKey, *uint256.Int]
	reserves    overlay[common.Address, *uint256.Int]
}

func newBuffer(st *state) *buffer {
	return &buffer{
		balances:    newOverlay(st.balances),
		initialized: newOverlay(st.initialized),
		swapFees:    newOverlay(st.swapFees),
		yieldFees:   newOverlay(st.yieldFees),
		supply:      newOverlay(st.supply),
		shares:      newOverlay(st.shares),
		allowances:  newOverlay(st.allowances),
		reserves:    newOverlay(st.reserves),
	}
}

func (b *buffer) commit() {
	b.balances.commit()
	b.initialized.commit()
	b.swapFees.commit()
	b.yieldFees.commit()
	b.supply.commit()
	b.shares.commit()
	b.allowances.commit()
	b.reserves.commit()
}

func (b *buffer) amount(o *overlay[feeKey, *uint256.Int], key feeKey) *uint256.Int {
	if v, ok := o.get(key); ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (b *buffer) poolBalances(pool common.Address) []PackedBalance {
	stored, _ := b.balances.get(pool)
	out := make([]PackedBalance, len(stored))
	copy(out, stored)
	return out
}

func (b *buffer) reserve(token common.Address) *uint256.Int {
	if v, ok := b.reserves.get(token); ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (b *buffer) totalSupply(pool common.Address) *uint256.Int {
	if v, ok := b.supply.get(pool); ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (b *buffer) shareBalance(pool, holder common.Address) *uint256.Int {
	if v, ok := b.shares.get(shareKey{pool: pool, holder: holder}); ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (b *buffer) allowance(pool, owner, spender common.Address) *uint256.Int {
	if v, ok := b.allowances.get(allowanceKey{pool: pool, owner: owner, spender: spender}); ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (b *buffer) isInitialized(pool common.Address) bool {
	v, _ := b.initialized.get(pool)
	return v
}
