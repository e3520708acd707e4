package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestMemoryTransferFrom(t *testing.T) {
	alice := common.HexToAddress("0xa1")
	bob := common.HexToAddress("0xb0")
	tk := NewMemory(common.HexToAddress("0x10"), "TKA", 6)
	tk.Mint(alice, uint256.NewInt(1000))

	if err := tk.TransferFrom(bob, alice, bob, uint256.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}

	tk.Approve(alice, bob, uint256.NewInt(100))
	if err := tk.TransferFrom(bob, alice, bob, uint256.NewInt(60)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := tk.BalanceOf(bob).Uint64(); got != 60 {
		t.Fatalf("bob balance = %d, want 60", got)
	}
	if got := tk.Allowance(alice, bob).Uint64(); got != 40 {
		t.Fatalf("allowance = %d, want 40", got)
	}
	if got := tk.TotalSupply().Uint64(); got != 1000 {
		t.Fatalf("supply = %d, want 1000", got)
	}
}

func TestMemoryTransferInsufficient(t *testing.T) {
	alice := common.HexToAddress("0xa1")
	tk := NewMemory(common.HexToAddress("0x10"), "TKA", 18)
	tk.Mint(alice, uint256.NewInt(5))

	err := tk.Transfer(alice, common.HexToAddress("0xb0"), uint256.NewInt(6))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected balance error, got %v", err)
	}
	if got := tk.BalanceOf(alice).Uint64(); got != 5 {
		t.Fatalf("balance changed on failed transfer: %d", got)
	}
}

func TestMemoryRate(t *testing.T) {
	tk := NewMemory(common.HexToAddress("0x10"), "wstETH", 18)
	rate, err := tk.Rate()
	if err != nil || rate.Uint64() != 1e18 {
		t.Fatalf("default rate = %v, %v", rate, err)
	}
	tk.SetRate(uint256.NewInt(1_100_000_000_000_000_000))
	rate, _ = tk.Rate()
	if rate.Uint64() != 1_100_000_000_000_000_000 {
		t.Fatalf("rate = %s", rate.Dec())
	}
}
