package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Config controls transport retries.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client wraps go-ethereum RPC and provides helper methods. Read calls are
// retried with exponential backoff.
type Client struct {
	cfg       Config
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient dials rpcURL and creates a chain client.
func NewClient(ctx context.Context, rpcURL string, cfg Config) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientFromRPC(rpcClient, cfg), nil
}

// NewClientFromRPC wraps an existing RPC client.
func NewClientFromRPC(rpcClient *rpc.Client, cfg Config) *Client {
	return &Client{
		cfg:       cfg,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		tsCache:   make(map[uint64]uint64),
	}
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
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		id, err = c.ethClient.ChainID(ctx)
		return err
	})
	return id, err
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var number uint64
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		number, err = c.ethClient.BlockNumber(ctx)
		return err
	})
	return number, err
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		header, err = c.ethClient.HeaderByNumber(ctx, number)
		return err
	})
	return header, err
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// LatestTimestamp returns the timestamp of the latest block.
func (c *Client) LatestTimestamp(ctx context.Context) (uint64, error) {
	number, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	return c.BlockTimestamp(ctx, number)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.ethClient.CallContract(ctx, msg, blockNumber)
		return err
	})
	return out, err
}

func (c *Client) retry(ctx context.Context, fn func(context.Context) error) error {
	return withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, fn)
}
