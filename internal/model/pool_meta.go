package model

// PoolMeta is what the decoder knows about a pool when it sees an event.
// Tokens is empty until the pool's AddedTokenToPool events were decoded.
type PoolMeta struct {
	Tokens []string `json:"tokens,omitempty"`
}
