package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// RetryConfig bounds how calls are retried on RPC errors.
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

// Client wraps go-ethereum RPC with retries for read calls.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	retry     RetryConfig
	logger    *zap.Logger
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, retry RetryConfig, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		retry:     retry,
		logger:    logger,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.withRetry(ctx, "eth_chainId", func(ctx context.Context) error {
		var err error
		id, err = c.ethClient.ChainID(ctx)
		return err
	})
	return id, err
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.withRetry(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		out, err = c.ethClient.CallContract(ctx, msg, blockNumber)
		return err
	})
	return out, err
}

func (c *Client) withRetry(ctx context.Context, method string, fn func(context.Context) error) error {
	attempt := 0
	return withRetry(ctx, c.retry.MaxRetries, c.retry.Backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && attempt < c.retry.MaxRetries {
			c.logger.Debug("rpc call failed, retrying", zap.String("method", method), zap.Int("attempt", attempt+1), zap.Error(err))
		}
		attempt++
		return err
	})
}
