package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammQuote/internal/chain"
	"ammQuote/internal/model"
)

// addressCache holds immutable per-contract values: a pair's token order or
// a token's metadata.
type addressCache[V any] struct {
	mu   sync.RWMutex
	data map[common.Address]V
}

func newAddressCache[V any]() *addressCache[V] {
	return &addressCache[V]{data: make(map[common.Address]V)}
}

func (c *addressCache[V]) Get(address common.Address) (V, bool) {
	c.mu.RLock()
	v, ok := c.data[address]
	c.mu.RUnlock()
	return v, ok
}

func (c *addressCache[V]) Set(address common.Address, v V) {
	c.mu.Lock()
	c.data[address] = v
	c.mu.Unlock()
}

// callMethod packs method, runs eth_call against to and unpacks the result.
func callMethod(ctx context.Context, chainClient *chain.Client, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := chainClient.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

// FetchTokenMeta reads decimals, symbol and name. Decimals are required;
// symbol and name are best effort and fall back to the bytes32 encoding.
func FetchTokenMeta(ctx context.Context, chainClient *chain.Client, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if chainClient == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	erc20, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, chainClient, token, erc20, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint32(values[0])
	if err != nil || decimals > 255 {
		return meta, fmt.Errorf("decimals of %s: %v", token.Hex(), values[0])
	}
	meta.Decimals = uint8(decimals)

	for method, dst := range map[string]*string{"symbol": &meta.Symbol, "name": &meta.Name} {
		text, err := readText(ctx, chainClient, token, method)
		if err != nil {
			logger.Debug("token text call failed",
				zap.String("token", token.Hex()),
				zap.String("method", method),
				zap.Error(err),
			)
			continue
		}
		*dst = text
	}
	return meta, nil
}

func readText(ctx context.Context, chainClient *chain.Client, token common.Address, method string) (string, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return "", err
	}
	if values, err := callMethod(ctx, chainClient, token, erc20, method, nil); err == nil {
		if text, ok := values[0].(string); ok {
			return text, nil
		}
	}

	legacy, err := erc20Bytes32Contract.get()
	if err != nil {
		return "", err
	}
	values, err := callMethod(ctx, chainClient, token, legacy, method, nil)
	if err != nil {
		return "", err
	}
	var raw []byte
	switch v := values[0].(type) {
	case [32]byte:
		raw = v[:]
	case []byte:
		raw = v
	default:
		return "", fmt.Errorf("unsupported %s type %T", method, values[0])
	}
	return string(bytes.TrimRight(raw, "\x00")), nil
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
		return big.NewInt(int64(v)), nil
	case uint16:
		return big.NewInt(int64(v)), nil
	case uint32:
		return big.NewInt(int64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint32(value interface{}) (uint32, error) {
	v, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > 1<<32-1 {
		return 0, fmt.Errorf("uint32 overflow: %s", v)
	}
	return uint32(v.Uint64()), nil
}
