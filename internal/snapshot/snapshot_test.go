package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/pools"
	"liquidityVault/internal/router"
	"liquidityVault/internal/token"
	"liquidityVault/internal/vault"
)

func TestFileStoreSavesCommittedState(t *testing.T) {
	ctx := context.Background()
	alice := common.HexToAddress("0xa11c")
	routerAddr := common.HexToAddress("0xbb")
	poolAddr := common.HexToAddress("0x5500")

	v := vault.New(vault.Config{Address: common.HexToAddress("0xaa")}, nil)
	r := router.New(v, routerAddr, nil)
	x := token.NewMemory(common.HexToAddress("0x1000"), "X", 18)
	y := token.NewMemory(common.HexToAddress("0x2000"), "Y", 18)
	for _, tk := range []*token.Memory{x, y} {
		tk.Mint(alice, uint256.NewInt(1e18))
		tk.Approve(alice, routerAddr, vault.MaxAllowance())
	}
	if err := v.RegisterPool(ctx, vault.RegisterPoolParams{
		Pool:    poolAddr,
		Pricing: pools.NewConstantSum(),
		Tokens:  []vault.TokenConfig{{Token: x}, {Token: y}},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	amount := uint256.NewInt(5e17)
	if _, err := r.Initialize(ctx, alice, vault.InitializeParams{
		Pool:           poolAddr,
		To:             alice,
		ExactAmountsIn: []*uint256.Int{amount, amount},
		MinSharesOut:   new(uint256.Int),
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	store := NewFileStore(path)
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	if err := store.Save(ctx, v.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}

	snap, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(snap.Pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(snap.Pools))
	}
	p := snap.Pools[0]
	if !p.Initialized || p.TotalSupply != "1000000000000000000" {
		t.Fatalf("unexpected pool snapshot: %+v", p)
	}
	if len(p.Tokens) != 2 || p.Tokens[0].Raw != "500000000000000000" {
		t.Fatalf("unexpected token snapshot: %+v", p.Tokens)
	}
	if len(snap.Reserves) != 2 || snap.Reserves[1].Amount != "500000000000000000" {
		t.Fatalf("unexpected reserves: %+v", snap.Reserves)
	}
}

func TestFileStoreRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := NewFileStore(dir).Load(context.Background()); err == nil {
		t.Fatalf("expected error for directory path")
	}
}
