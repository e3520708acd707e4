package vault

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event names, matching the vault event ABI.
const (
	EventSwap                           = "Swap"
	EventLiquidityAdded                 = "LiquidityAdded"
	EventLiquidityRemoved               = "LiquidityRemoved"
	EventAddedTokenToPool               = "AddedTokenToPool"
	EventPoolInitialized                = "PoolInitialized"
	EventPoolPausedStateChanged         = "PoolPausedStateChanged"
	EventPoolRecoveryModeStateChanged   = "PoolRecoveryModeStateChanged"
	EventSwapFeePercentageChanged       = "SwapFeePercentageChanged"
	EventAggregateFeePercentagesChanged = "AggregateFeePercentagesChanged"
)

// Event is a record produced by a committed vault mutation.
type Event interface {
	EventName() string
	PoolAddress() common.Address
}

// EventSink receives the events of every committed session, in order.
// sessionID is the id the session ran under.
type EventSink interface {
	Publish(ctx context.Context, sessionID uint64, events []Event) error
}

type SwapEvent struct {
	Pool              common.Address
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *uint256.Int
	AmountOut         *uint256.Int
	SwapFeePercentage *uint256.Int
	SwapFeeAmount     *uint256.Int
}

func (SwapEvent) EventName() string             { return EventSwap }
func (e SwapEvent) PoolAddress() common.Address { return e.Pool }

type LiquidityAddedEvent struct {
	Pool           common.Address
	To             common.Address
	Kind           AddLiquidityKind
	TotalSupply    *uint256.Int
	AmountsIn      []*uint256.Int
	SwapFeeAmounts []*uint256.Int
}

func (LiquidityAddedEvent) EventName() string             { return EventLiquidityAdded }
func (e LiquidityAddedEvent) PoolAddress() common.Address { return e.Pool }

type LiquidityRemovedEvent struct {
	Pool           common.Address
	From           common.Address
	Kind           RemoveLiquidityKind
	TotalSupply    *uint256.Int
	AmountsOut     []*uint256.Int
	SwapFeeAmounts []*uint256.Int
}

func (LiquidityRemovedEvent) EventName() string             { return EventLiquidityRemoved }
func (e LiquidityRemovedEvent) PoolAddress() common.Address { return e.Pool }

type TokenAddedEvent struct {
	Pool  common.Address
	Token common.Address
	Index int
}

func (TokenAddedEvent) EventName() string             { return EventAddedTokenToPool }
func (e TokenAddedEvent) PoolAddress() common.Address { return e.Pool }

type PoolInitializedEvent struct {
	Pool common.Address
}

func (PoolInitializedEvent) EventName() string             { return EventPoolInitialized }
func (e PoolInitializedEvent) PoolAddress() common.Address { return e.Pool }

type PoolPausedEvent struct {
	Pool   common.Address
	Paused bool
}

func (PoolPausedEvent) EventName() string             { return EventPoolPausedStateChanged }
func (e PoolPausedEvent) PoolAddress() common.Address { return e.Pool }

type RecoveryModeEvent struct {
	Pool         common.Address
	RecoveryMode bool
}

func (RecoveryModeEvent) EventName() string             { return EventPoolRecoveryModeStateChanged }
func (e RecoveryModeEvent) PoolAddress() common.Address { return e.Pool }

type SwapFeeChangedEvent struct {
	Pool              common.Address
	SwapFeePercentage *uint256.Int
}

func (SwapFeeChangedEvent) EventName() string             { return EventSwapFeePercentageChanged }
func (e SwapFeeChangedEvent) PoolAddress() common.Address { return e.Pool }

type AggregateFeesChangedEvent struct {
	Pool                        common.Address
	AggregateSwapFeePercentage  *uint256.Int
	AggregateYieldFeePercentage *uint256.Int
}

func (AggregateFeesChangedEvent) EventName() string             { return EventAggregateFeePercentagesChanged }
func (e AggregateFeesChangedEvent) PoolAddress() common.Address { return e.Pool }

// MemorySink collects published events in memory.
type MemorySink struct {
	Batches [][]Event
}

func (m *MemorySink) Publish(_ context.Context, _ uint64, events []Event) error {
	batch := make([]Event, len(events))
	copy(batch, events)
	m.Batches = append(m.Batches, batch)
	return nil
}

// Events flattens every published batch.
func (m *MemorySink) Events() []Event {
	var out []Event
	for _, b := range m.Batches {
		out = append(out, b...)
	}
	return out
}
