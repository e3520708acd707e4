// Package erc20 reads token metadata over RPC.
package erc20

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"liquidityVault/internal/model"
)

// ContractCaller performs eth_call. *chain.Client implements it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FetchTokenMeta loads token metadata via ERC20 calls. Decimals are
// required; symbol and name are best effort.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex(), Source: "rpc"}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	strABI, err := stringABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	b32ABI, err := bytes32ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &token, Data: data}
		resp, err := caller.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		return values, nil
	}

	values, err := call("decimals", strABI)
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("unsupported decimals type %T", values[0])
	}
	meta.Decimals = decimals

	text := func(method string) string {
		if values, err := call(method, strABI); err == nil {
			if s, ok := values[0].(string); ok {
				return s
			}
		}
		values, err := call(method, b32ABI)
		if err != nil {
			logger.Debug(method+" call failed", zap.String("token", token.Hex()), zap.Error(err))
			return ""
		}
		if raw, ok := values[0].([32]byte); ok {
			return string(bytes.TrimRight(raw[:], "\x00"))
		}
		return ""
	}
	meta.Symbol = text("symbol")
	meta.Name = text("name")

	return meta, nil
}

// Cache fronts FetchTokenMeta with a bounded LRU keyed by token address.
type Cache struct {
	caller ContractCaller
	logger *zap.Logger
	cache  *lru.Cache[common.Address, model.TokenMeta]
}

func NewCache(caller ContractCaller, size int, logger *zap.Logger) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[common.Address, model.TokenMeta](size)
	if err != nil {
		return nil, fmt.Errorf("create token meta cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{caller: caller, logger: logger, cache: cache}, nil
}

// Set stores metadata known from elsewhere, such as a scenario file.
func (c *Cache) Set(meta model.TokenMeta) {
	c.cache.Add(common.HexToAddress(meta.Address), meta)
}

// Get returns cached metadata, fetching it on a miss.
func (c *Cache) Get(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := c.cache.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, c.caller, token, c.logger)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("token %s: %w", token.Hex(), err)
	}
	c.cache.Add(token, meta)
	return meta, nil
}

// Decimals returns the token's decimals.
func (c *Cache) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	meta, err := c.Get(ctx, token)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}
