package eventlog

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityVault/internal/model"
	"liquidityVault/internal/vault"
)

// Decoder turns vault log records back into typed events. It remembers the
// token layout of every pool whose AddedTokenToPool events it has seen, so
// feed it logs in commit order.
type Decoder struct {
	vaultABI    abi.ABI
	topicToName map[string]string

	mu         sync.RWMutex
	poolTokens map[common.Address][]string
}

// NewDecoder builds a vault log decoder.
func NewDecoder() (*Decoder, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}

	topicToName := make(map[string]string, len(parsed.Events))
	for name, event := range parsed.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}

	return &Decoder{
		vaultABI:    parsed,
		topicToName: topicToName,
		poolTokens:  make(map[common.Address][]string),
	}, nil
}

// CanDecode checks if the topic0 is a vault event.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// PoolMeta returns the tokens seen so far for pool.
func (d *Decoder) PoolMeta(pool common.Address) model.PoolMeta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tokens := d.poolTokens[pool]
	if len(tokens) == 0 {
		return model.PoolMeta{}
	}
	out := make([]string, len(tokens))
	copy(out, tokens)
	return model.PoolMeta{Tokens: out}
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	event := d.vaultABI.Events[name]

	fields, err := d.unpack(event, log)
	if err != nil {
		return nil, err
	}
	pool, err := asAddress(fields["pool"])
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	var decoded interface{}
	switch name {
	case vault.EventSwap:
		decoded, err = decodeSwap(pool, fields)
	case vault.EventLiquidityAdded:
		decoded, err = decodeLiquidity(pool, fields, "amountsAddedRaw", addKindName)
	case vault.EventLiquidityRemoved:
		decoded, err = decodeLiquidity(pool, fields, "amountsRemovedRaw", removeKindName)
	case vault.EventAddedTokenToPool:
		var data model.TokenAddedEventData
		data, err = decodeTokenAdded(pool, fields)
		if err == nil {
			d.trackToken(pool, data)
		}
		decoded = data
	case vault.EventPoolInitialized:
		decoded = model.PoolStateEventData{Pool: pool.Hex()}
	case vault.EventPoolPausedStateChanged:
		decoded, err = decodePoolState(pool, fields, "paused")
	case vault.EventPoolRecoveryModeStateChanged:
		decoded, err = decodePoolState(pool, fields, "recoveryMode")
	case vault.EventSwapFeePercentageChanged, vault.EventAggregateFeePercentagesChanged:
		decoded, err = decodeFeeChange(pool, fields)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Pool:        pool.Hex(),
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		PoolMeta:    d.PoolMeta(pool),
		Raw:         &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data},
	}, nil
}

func (d *Decoder) unpack(event abi.Event, log model.LogRecord) (map[string]interface{}, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if nonIndexed := event.Inputs.NonIndexed(); len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(fields, data); err != nil {
			return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
		}
	}
	return fields, nil
}

func (d *Decoder) trackToken(pool common.Address, data model.TokenAddedEventData) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tokens := d.poolTokens[pool]
	for uint64(len(tokens)) <= data.Index {
		tokens = append(tokens, "")
	}
	tokens[data.Index] = data.Token
	d.poolTokens[pool] = tokens
}

func decodeSwap(pool common.Address, fields map[string]interface{}) (model.SwapEventData, error) {
	tokenIn, err := asAddress(fields["tokenIn"])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tokenOut, err := asAddress(fields["tokenOut"])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amounts := make([]string, 4)
	for i, key := range []string{"amountIn", "amountOut", "swapFeePercentage", "swapFeeAmount"} {
		v, err := asBigInt(fields[key])
		if err != nil {
			return model.SwapEventData{}, fmt.Errorf("%s: %w", key, err)
		}
		amounts[i] = v.String()
	}
	return model.SwapEventData{
		Pool:              pool.Hex(),
		TokenIn:           tokenIn.Hex(),
		TokenOut:          tokenOut.Hex(),
		AmountIn:          amounts[0],
		AmountOut:         amounts[1],
		SwapFeePercentage: amounts[2],
		SwapFeeAmount:     amounts[3],
	}, nil
}

func decodeLiquidity(pool common.Address, fields map[string]interface{}, amountsKey string, kindName func(uint8) string) (model.LiquidityEventData, error) {
	provider, err := asAddress(fields["liquidityProvider"])
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	kind, err := asBigInt(fields["kind"])
	if err != nil {
		return model.LiquidityEventData{}, fmt.Errorf("kind: %w", err)
	}
	if !kind.IsUint64() || kind.Uint64() > 255 {
		return model.LiquidityEventData{}, fmt.Errorf("kind out of range: %s", kind)
	}
	supply, err := asBigInt(fields["totalSupply"])
	if err != nil {
		return model.LiquidityEventData{}, fmt.Errorf("totalSupply: %w", err)
	}
	amounts, err := asDecimalStrings(fields[amountsKey])
	if err != nil {
		return model.LiquidityEventData{}, fmt.Errorf("%s: %w", amountsKey, err)
	}
	fees, err := asDecimalStrings(fields["swapFeeAmountsRaw"])
	if err != nil {
		return model.LiquidityEventData{}, fmt.Errorf("swapFeeAmountsRaw: %w", err)
	}
	if len(fees) != len(amounts) {
		return model.LiquidityEventData{}, fmt.Errorf("%d amounts but %d fees", len(amounts), len(fees))
	}
	return model.LiquidityEventData{
		Pool:              pool.Hex(),
		LiquidityProvider: provider.Hex(),
		Kind:              kindName(uint8(kind.Uint64())),
		TotalSupply:       supply.String(),
		Amounts:           amounts,
		SwapFeeAmounts:    fees,
	}, nil
}

func decodeTokenAdded(pool common.Address, fields map[string]interface{}) (model.TokenAddedEventData, error) {
	token, err := asAddress(fields["token"])
	if err != nil {
		return model.TokenAddedEventData{}, err
	}
	index, err := asBigInt(fields["index"])
	if err != nil {
		return model.TokenAddedEventData{}, fmt.Errorf("index: %w", err)
	}
	if !index.IsUint64() || index.Uint64() >= vault.MaxTokens {
		return model.TokenAddedEventData{}, fmt.Errorf("token index out of range: %s", index)
	}
	return model.TokenAddedEventData{Pool: pool.Hex(), Token: token.Hex(), Index: index.Uint64()}, nil
}

func decodePoolState(pool common.Address, fields map[string]interface{}, key string) (model.PoolStateEventData, error) {
	enabled, ok := fields[key].(bool)
	if !ok {
		return model.PoolStateEventData{}, fmt.Errorf("unsupported bool type %T", fields[key])
	}
	return model.PoolStateEventData{Pool: pool.Hex(), Enabled: &enabled}, nil
}

func decodeFeeChange(pool common.Address, fields map[string]interface{}) (model.FeeChangeEventData, error) {
	out := model.FeeChangeEventData{Pool: pool.Hex()}
	targets := map[string]*string{
		"swapFeePercentage":           &out.SwapFeePercentage,
		"aggregateSwapFeePercentage":  &out.AggregateSwapFeePercentage,
		"aggregateYieldFeePercentage": &out.AggregateYieldFeePercentage,
	}
	for key, dst := range targets {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		v, err := asBigInt(raw)
		if err != nil {
			return model.FeeChangeEventData{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = v.String()
	}
	return out, nil
}

func addKindName(k uint8) string    { return vault.AddLiquidityKind(k).String() }
func removeKindName(k uint8) string { return vault.RemoveLiquidityKind(k).String() }

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asDecimalStrings(value interface{}) ([]string, error) {
	values, ok := value.([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported array type %T", value)
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out, nil
}
