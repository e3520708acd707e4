package erc20

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const stringMetaABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

// Some older tokens return bytes32 for symbol and name.
const bytes32MetaABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	stringMetaABI     abi.ABI
	stringMetaABIOnce sync.Once
	stringMetaABIErr  error

	bytes32MetaABI     abi.ABI
	bytes32MetaABIOnce sync.Once
	bytes32MetaABIErr  error
)

func stringABI() (abi.ABI, error) {
	stringMetaABIOnce.Do(func() {
		stringMetaABI, stringMetaABIErr = abi.JSON(strings.NewReader(stringMetaABIJSON))
	})
	return stringMetaABI, stringMetaABIErr
}

func bytes32ABI() (abi.ABI, error) {
	bytes32MetaABIOnce.Do(func() {
		bytes32MetaABI, bytes32MetaABIErr = abi.JSON(strings.NewReader(bytes32MetaABIJSON))
	})
	return bytes32MetaABI, bytes32MetaABIErr
}
