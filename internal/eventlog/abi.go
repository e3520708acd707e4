package eventlog

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// vaultEventsABIJSON describes every event the vault publishes. The pool is
// always the first indexed argument.
const vaultEventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenIn", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "tokenOut", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "swapFeePercentage", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "swapFeeAmount", "type": "uint256"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "liquidityProvider", "type": "address"},
      {"indexed": true, "internalType": "uint8", "name": "kind", "type": "uint8"},
      {"indexed": false, "internalType": "uint256", "name": "totalSupply", "type": "uint256"},
      {"indexed": false, "internalType": "uint256[]", "name": "amountsAddedRaw", "type": "uint256[]"},
      {"indexed": false, "internalType": "uint256[]", "name": "swapFeeAmountsRaw", "type": "uint256[]"}
    ],
    "name": "LiquidityAdded",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "liquidityProvider", "type": "address"},
      {"indexed": true, "internalType": "uint8", "name": "kind", "type": "uint8"},
      {"indexed": false, "internalType": "uint256", "name": "totalSupply", "type": "uint256"},
      {"indexed": false, "internalType": "uint256[]", "name": "amountsRemovedRaw", "type": "uint256[]"},
      {"indexed": false, "internalType": "uint256[]", "name": "swapFeeAmountsRaw", "type": "uint256[]"}
    ],
    "name": "LiquidityRemoved",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "index", "type": "uint256"}
    ],
    "name": "AddedTokenToPool",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"}
    ],
    "name": "PoolInitialized",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"},
      {"indexed": false, "internalType": "bool", "name": "paused", "type": "bool"}
    ],
    "name": "PoolPausedStateChanged",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"},
      {"indexed": false, "internalType": "bool", "name": "recoveryMode", "type": "bool"}
    ],
    "name": "PoolRecoveryModeStateChanged",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "swapFeePercentage", "type": "uint256"}
    ],
    "name": "SwapFeePercentageChanged",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "pool", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "aggregateSwapFeePercentage", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "aggregateYieldFeePercentage", "type": "uint256"}
    ],
    "name": "AggregateFeePercentagesChanged",
    "type": "event"
  }
]`

var (
	vaultABI     abi.ABI
	vaultABIOnce sync.Once
	vaultABIErr  error
)

// VaultABI returns the parsed vault event ABI.
func VaultABI() (abi.ABI, error) {
	vaultABIOnce.Do(func() {
		vaultABI, vaultABIErr = abi.JSON(strings.NewReader(vaultEventsABIJSON))
	})
	return vaultABI, vaultABIErr
}
