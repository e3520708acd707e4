// Package token provides an in-memory ERC20 used by the simulator and tests.
package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Memory is an ERC20 ledger held in process memory. It doubles as a rate
// provider for rate-bearing test tokens.
type Memory struct {
	address  common.Address
	symbol   string
	decimals uint8

	mu         sync.RWMutex
	balances   map[common.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	supply     *uint256.Int
	rate       *uint256.Int
}

// NewMemory creates an empty token. The rate starts at 1e18.
func NewMemory(address common.Address, symbol string, decimals uint8) *Memory {
	return &Memory{
		address:    address,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
		supply:     new(uint256.Int),
		rate:       fixedpoint.One(),
	}
}

func (m *Memory) Address() common.Address { return m.address }
func (m *Memory) Symbol() string          { return m.symbol }
func (m *Memory) Decimals() uint8         { return m.decimals }

// TotalSupply returns the minted supply.
func (m *Memory) TotalSupply() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fixedpoint.Copy(m.supply)
}

func (m *Memory) BalanceOf(holder common.Address) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fixedpoint.Copy(m.balances[holder])
}

// Mint credits amount to to.
func (m *Memory) Mint(to common.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[to] = fixedpoint.Add(fixedpoint.Copy(m.balances[to]), amount)
	m.supply = fixedpoint.Add(m.supply, amount)
}

// Approve sets spender's allowance over owner's balance.
func (m *Memory) Approve(owner, spender common.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{owner: owner, spender: spender}] = fixedpoint.Copy(amount)
}

// Allowance returns spender's remaining allowance over owner's balance.
func (m *Memory) Allowance(owner, spender common.Address) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fixedpoint.Copy(m.allowances[allowanceKey{owner: owner, spender: spender}])
}

func (m *Memory) Transfer(from, to common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(from, to, amount)
}

func (m *Memory) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if spender != from {
		key := allowanceKey{owner: from, spender: spender}
		allowed := fixedpoint.Copy(m.allowances[key])
		if allowed.Lt(amount) {
			return fmt.Errorf("%w: %s allowed %s, needs %s", ErrInsufficientAllowance, spender.Hex(), allowed.Dec(), amount.Dec())
		}
		m.allowances[key] = fixedpoint.Sub(allowed, amount)
	}
	return m.move(from, to, amount)
}

func (m *Memory) move(from, to common.Address, amount *uint256.Int) error {
	balance := fixedpoint.Copy(m.balances[from])
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), balance.Dec(), m.symbol, amount.Dec())
	}
	m.balances[from] = fixedpoint.Sub(balance, amount)
	m.balances[to] = fixedpoint.Add(fixedpoint.Copy(m.balances[to]), amount)
	return nil
}

// SetRate changes the 18-decimal rate reported by Rate.
func (m *Memory) SetRate(rate *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = fixedpoint.Copy(rate)
}

// Rate returns the current 18-decimal rate.
func (m *Memory) Rate() (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fixedpoint.Copy(m.rate), nil
}
