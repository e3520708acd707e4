package eventlog

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"liquidityVault/internal/model"
	"liquidityVault/internal/vault"
)

// Encoder turns committed vault events into chain-style log records.
type Encoder struct {
	abi     abi.ABI
	chainID uint64
	vault   common.Address
	now     func() time.Time
}

// NewEncoder builds an encoder for logs emitted by vaultAddr on chainID.
func NewEncoder(chainID uint64, vaultAddr common.Address) (*Encoder, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}
	return &Encoder{abi: parsed, chainID: chainID, vault: vaultAddr, now: time.Now}, nil
}

// SessionTxHash is the synthetic transaction hash of a session's logs.
func SessionTxHash(chainID uint64, vaultAddr common.Address, sessionID uint64) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], chainID)
	binary.BigEndian.PutUint64(buf[8:], sessionID)
	return crypto.Keccak256Hash(vaultAddr.Bytes(), buf[:])
}

// Encode converts the events of one session, preserving their order.
func (e *Encoder) Encode(sessionID uint64, events []vault.Event) ([]model.LogRecord, error) {
	if len(events) == 0 {
		return nil, nil
	}
	now := e.now().UTC()
	txHash := SessionTxHash(e.chainID, e.vault, sessionID).Hex()

	out := make([]model.LogRecord, 0, len(events))
	for i, ev := range events {
		topics, data, err := e.encodeEvent(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
		}
		hexTopics := make([]string, len(topics))
		for j, topic := range topics {
			hexTopics[j] = topic.Hex()
		}
		out = append(out, model.LogRecord{
			ChainID:     e.chainID,
			BlockNumber: sessionID,
			TxHash:      txHash,
			LogIndex:    uint64(i),
			Address:     e.vault.Hex(),
			Topics:      hexTopics,
			Data:        hexutil.Encode(data),
			Timestamp:   uint64(now.Unix()),
			IngestedAt:  now.Format(time.RFC3339),
		})
	}
	return out, nil
}

func (e *Encoder) encodeEvent(ev vault.Event) ([]common.Hash, []byte, error) {
	switch ev := ev.(type) {
	case vault.SwapEvent:
		return e.pack(ev.EventName(),
			[]interface{}{ev.Pool, ev.TokenIn, ev.TokenOut},
			toBig(ev.AmountIn), toBig(ev.AmountOut), toBig(ev.SwapFeePercentage), toBig(ev.SwapFeeAmount))
	case vault.LiquidityAddedEvent:
		return e.pack(ev.EventName(),
			[]interface{}{ev.Pool, ev.To, uint8(ev.Kind)},
			toBig(ev.TotalSupply), toBigs(ev.AmountsIn), toBigs(ev.SwapFeeAmounts))
	case vault.LiquidityRemovedEvent:
		return e.pack(ev.EventName(),
			[]interface{}{ev.Pool, ev.From, uint8(ev.Kind)},
			toBig(ev.TotalSupply), toBigs(ev.AmountsOut), toBigs(ev.SwapFeeAmounts))
	case vault.TokenAddedEvent:
		return e.pack(ev.EventName(), []interface{}{ev.Pool, ev.Token}, big.NewInt(int64(ev.Index)))
	case vault.PoolInitializedEvent:
		return e.pack(ev.EventName(), []interface{}{ev.Pool})
	case vault.PoolPausedEvent:
		return e.pack(ev.EventName(), []interface{}{ev.Pool}, ev.Paused)
	case vault.RecoveryModeEvent:
		return e.pack(ev.EventName(), []interface{}{ev.Pool}, ev.RecoveryMode)
	case vault.SwapFeeChangedEvent:
		return e.pack(ev.EventName(), []interface{}{ev.Pool}, toBig(ev.SwapFeePercentage))
	case vault.AggregateFeesChangedEvent:
		return e.pack(ev.EventName(), []interface{}{ev.Pool},
			toBig(ev.AggregateSwapFeePercentage), toBig(ev.AggregateYieldFeePercentage))
	default:
		return nil, nil, fmt.Errorf("unsupported event type %T", ev)
	}
}

func (e *Encoder) pack(name string, indexed []interface{}, values ...interface{}) ([]common.Hash, []byte, error) {
	event, ok := e.abi.Events[name]
	if !ok {
		return nil, nil, fmt.Errorf("event %s not in abi", name)
	}

	query := make([][]interface{}, len(indexed))
	for i, v := range indexed {
		query[i] = []interface{}{v}
	}
	indexedTopics, err := abi.MakeTopics(query...)
	if err != nil {
		return nil, nil, fmt.Errorf("make topics: %w", err)
	}
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, event.ID)
	for _, t := range indexedTopics {
		topics = append(topics, t[0])
	}

	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return nil, nil, fmt.Errorf("pack data: %w", err)
	}
	return topics, data, nil
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func toBigs(values []*uint256.Int) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = toBig(v)
	}
	return out
}
