package eventlog

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"liquidityVault/internal/model"
	"liquidityVault/internal/pools"
	"liquidityVault/internal/router"
	"liquidityVault/internal/storage"
	"liquidityVault/internal/token"
	"liquidityVault/internal/vault"
)

var (
	testVault  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testRouter = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	testPool   = common.HexToAddress("0x0000000000000000000000000000000000005500")
	testAlice  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	testX      = common.HexToAddress("0x0000000000000000000000000000000000001000")
	testY      = common.HexToAddress("0x0000000000000000000000000000000000002000")
)

func e18(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), uint256.NewInt(1e18))
}

func TestSinkRoundTripThroughDecoder(t *testing.T) {
	ctx := context.Background()
	encoder, err := NewEncoder(31337, testVault)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	store := &storage.Memory{}
	v := vault.New(vault.Config{Address: testVault, Sink: NewSink(encoder, store, nil)}, nil)
	r := router.New(v, testRouter, nil)

	x := token.NewMemory(testX, "X", 18)
	y := token.NewMemory(testY, "Y", 6)
	for _, tk := range []*token.Memory{x, y} {
		tk.Mint(testAlice, e18(1_000_000))
		tk.Approve(testAlice, testRouter, vault.MaxAllowance())
	}

	if err := v.RegisterPool(ctx, vault.RegisterPoolParams{
		Pool:              testPool,
		Pricing:           pools.NewConstantSum(),
		Tokens:            []vault.TokenConfig{{Token: x}, {Token: y}},
		SwapFeePercentage: uint256.NewInt(3e15),
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Initialize(ctx, testAlice, vault.InitializeParams{
		Pool:           testPool,
		To:             testAlice,
		ExactAmountsIn: []*uint256.Int{e18(1000), uint256.NewInt(1000_000000)},
		MinSharesOut:   new(uint256.Int),
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := r.SwapExactIn(ctx, testAlice, testPool, testX, testY, e18(10), nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	// register: 2 token events; initialize: PoolInitialized + LiquidityAdded; swap: 1.
	if len(store.Logs) != 5 {
		t.Fatalf("expected 5 logs, got %d", len(store.Logs))
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	var events []*model.TypedEvent
	for _, log := range store.Logs {
		if log.Address != testVault.Hex() {
			t.Fatalf("log address %s", log.Address)
		}
		if !decoder.CanDecode(log.Topics[0]) {
			t.Fatalf("cannot decode topic %s", log.Topics[0])
		}
		ev, err := decoder.Decode(log)
		if err != nil {
			t.Fatalf("decode %v: %v", log.Topics[0], err)
		}
		events = append(events, ev)
	}

	names := []string{
		vault.EventAddedTokenToPool,
		vault.EventAddedTokenToPool,
		vault.EventPoolInitialized,
		vault.EventLiquidityAdded,
		vault.EventSwap,
	}
	for i, name := range names {
		if events[i].EventName != name {
			t.Fatalf("event %d: got %s want %s", i, events[i].EventName, name)
		}
		if events[i].Pool != testPool.Hex() {
			t.Fatalf("event %d pool %s", i, events[i].Pool)
		}
	}

	added, ok := events[3].Decoded.(model.LiquidityEventData)
	if !ok {
		t.Fatalf("liquidity type mismatch: %T", events[3].Decoded)
	}
	if added.Kind != "proportional" || added.LiquidityProvider != testAlice.Hex() {
		t.Fatalf("unexpected liquidity payload: %+v", added)
	}
	if added.Amounts[0] != e18(1000).Dec() || added.Amounts[1] != "1000000000" {
		t.Fatalf("unexpected amounts: %v", added.Amounts)
	}

	swap, ok := events[4].Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("swap type mismatch: %T", events[4].Decoded)
	}
	if swap.TokenIn != testX.Hex() || swap.TokenOut != testY.Hex() || swap.AmountIn != e18(10).Dec() {
		t.Fatalf("unexpected swap payload: %+v", swap)
	}
	if swap.SwapFeePercentage != "3000000000000000" {
		t.Fatalf("swap fee percentage %s", swap.SwapFeePercentage)
	}
	if got := events[4].PoolMeta.Tokens; len(got) != 2 || got[0] != testX.Hex() || got[1] != testY.Hex() {
		t.Fatalf("pool meta tokens %v", got)
	}
	if events[4].TxHash != SessionTxHash(31337, testVault, events[4].BlockNumber).Hex() {
		t.Fatalf("tx hash mismatch")
	}
	if events[3].BlockNumber == events[4].BlockNumber {
		t.Fatalf("initialize and swap share session %d", events[4].BlockNumber)
	}
}

func TestDecoderAdminEvents(t *testing.T) {
	encoder, err := NewEncoder(1, testVault)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	logs, err := encoder.Encode(7, []vault.Event{
		vault.PoolPausedEvent{Pool: testPool, Paused: true},
		vault.RecoveryModeEvent{Pool: testPool, RecoveryMode: false},
		vault.AggregateFeesChangedEvent{
			Pool:                        testPool,
			AggregateSwapFeePercentage:  uint256.NewInt(5e17),
			AggregateYieldFeePercentage: uint256.NewInt(1e17),
		},
		vault.LiquidityRemovedEvent{
			Pool:           testPool,
			From:           testAlice,
			Kind:           vault.RemoveSingleTokenExactIn,
			TotalSupply:    uint256.NewInt(10),
			AmountsOut:     []*uint256.Int{uint256.NewInt(4), new(uint256.Int)},
			SwapFeeAmounts: []*uint256.Int{uint256.NewInt(1), new(uint256.Int)},
		},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i, log := range logs {
		if log.BlockNumber != 7 || log.LogIndex != uint64(i) {
			t.Fatalf("log %d position: block %d index %d", i, log.BlockNumber, log.LogIndex)
		}
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	paused, err := decoder.Decode(logs[0])
	if err != nil {
		t.Fatalf("decode paused: %v", err)
	}
	state := paused.Decoded.(model.PoolStateEventData)
	if state.Enabled == nil || !*state.Enabled {
		t.Fatalf("paused flag lost: %+v", state)
	}

	recovery, err := decoder.Decode(logs[1])
	if err != nil {
		t.Fatalf("decode recovery: %v", err)
	}
	if state := recovery.Decoded.(model.PoolStateEventData); state.Enabled == nil || *state.Enabled {
		t.Fatalf("recovery flag lost: %+v", state)
	}

	fees, err := decoder.Decode(logs[2])
	if err != nil {
		t.Fatalf("decode fees: %v", err)
	}
	feeData := fees.Decoded.(model.FeeChangeEventData)
	if feeData.AggregateSwapFeePercentage != "500000000000000000" || feeData.AggregateYieldFeePercentage != "100000000000000000" {
		t.Fatalf("unexpected fee payload: %+v", feeData)
	}
	if feeData.SwapFeePercentage != "" {
		t.Fatalf("static fee should be empty: %+v", feeData)
	}

	removed, err := decoder.Decode(logs[3])
	if err != nil {
		t.Fatalf("decode removed: %v", err)
	}
	liq := removed.Decoded.(model.LiquidityEventData)
	if liq.Kind != "single_token_exact_in" || liq.Amounts[0] != "4" || liq.SwapFeeAmounts[0] != "1" {
		t.Fatalf("unexpected removal payload: %+v", liq)
	}
	if len(removed.PoolMeta.Tokens) != 0 {
		t.Fatalf("no token events seen, got meta %v", removed.PoolMeta.Tokens)
	}
}

func TestDecoderRejectsMalformedLogs(t *testing.T) {
	vaultABI, err := VaultABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	swapID := vaultABI.Events[vault.EventSwap].ID.Hex()
	data, err := vaultABI.Events[vault.EventSwap].Inputs.NonIndexed().Pack(
		big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	cases := []struct {
		name string
		log  model.LogRecord
	}{
		{"no topics", model.LogRecord{}},
		{"unknown topic0", model.LogRecord{Topics: []string{common.Hash{1}.Hex()}}},
		{"missing indexed topics", model.LogRecord{Topics: []string{swapID}, Data: hexutil.Encode(data)}},
		{"bad data", model.LogRecord{
			Topics: []string{swapID, common.Hash{}.Hex(), common.Hash{}.Hex(), common.Hash{}.Hex()},
			Data:   "0x1234",
		}},
	}
	for _, tc := range cases {
		if _, err := decoder.Decode(tc.log); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}

	if decoder.CanDecode("") {
		t.Fatalf("empty topic0 should not decode")
	}
}
