package model

import "encoding/json"

// TypedEventRecord is the JSON representation used for aggregation.
// Decoded is left raw so readers pick the payload type by EventName.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	Pool        string          `json:"pool"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	PoolMeta    PoolMeta        `json:"pool_meta"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}

// DecodeSwap unmarshals the payload of a Swap record.
func (r TypedEventRecord) DecodeSwap() (SwapEventData, error) {
	var out SwapEventData
	err := json.Unmarshal(r.Decoded, &out)
	return out, err
}

// DecodeLiquidity unmarshals the payload of a LiquidityAdded or
// LiquidityRemoved record.
func (r TypedEventRecord) DecodeLiquidity() (LiquidityEventData, error) {
	var out LiquidityEventData
	err := json.Unmarshal(r.Decoded, &out)
	return out, err
}
