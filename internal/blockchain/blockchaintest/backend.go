package blockchaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/contracts"
)

// Token describes a simulated ERC-20. Empty Name or Symbol makes the call revert.
type Token struct {
	Name        string
	Symbol      string
	Decimals    uint8
	NoDecimals  bool
	TotalSupply *big.Int
	// Bytes32 encodes name and symbol as bytes32 like pre-standard tokens.
	Bytes32 bool
}

type poolKey struct {
	a, b common.Address
	fee  uint64
}

// Backend simulates token contracts and the two Uniswap factories.
// Its Call method can be passed to Client.SetCallContractHandler.
type Backend struct {
	mu        sync.Mutex
	v2Factory common.Address
	v3Factory common.Address
	tokens    map[common.Address]Token
	v2Pairs   map[[2]common.Address]common.Address
	v3Pools   map[poolKey]common.Address
	v2Err     error
	v3Err     error
	calls     map[string]int
}

func NewBackend(v2Factory, v3Factory common.Address) *Backend {
	return &Backend{
		v2Factory: v2Factory,
		v3Factory: v3Factory,
		tokens:    make(map[common.Address]Token),
		v2Pairs:   make(map[[2]common.Address]common.Address),
		v3Pools:   make(map[poolKey]common.Address),
		calls:     make(map[string]int),
	}
}

func (b *Backend) AddToken(addr common.Address, token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[addr] = token
}

func (b *Backend) AddV2Pair(tokenA, tokenB, pair common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.v2Pairs[[2]common.Address{tokenA, tokenB}] = pair
	b.v2Pairs[[2]common.Address{tokenB, tokenA}] = pair
}

func (b *Backend) AddV3Pool(tokenA, tokenB common.Address, fee uint64, pool common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.v3Pools[poolKey{tokenA, tokenB, fee}] = pool
	b.v3Pools[poolKey{tokenB, tokenA, fee}] = pool
}

// FailV2 makes every getPair call return err.
func (b *Backend) FailV2(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.v2Err = err
}

// FailV3 makes every getPool call return err.
func (b *Backend) FailV3(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.v3Err = err
}

// Calls returns how many times the named method was called.
func (b *Backend) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

func (b *Backend) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, ErrReverted
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch to {
	case b.v2Factory:
		return b.getPair(data)
	case b.v3Factory:
		return b.getPool(data)
	}

	token, ok := b.tokens[to]
	if !ok {
		return nil, ErrReverted
	}
	return b.tokenCall(token, data)
}

func (b *Backend) getPair(data []byte) ([]byte, error) {
	method := contracts.UniswapV2FactoryABI.Methods["getPair"]
	b.calls["getPair"]++
	if b.v2Err != nil {
		return nil, b.v2Err
	}
	args, err := unpackInputs(method, data)
	if err != nil {
		return nil, err
	}
	pair := b.v2Pairs[[2]common.Address{args[0].(common.Address), args[1].(common.Address)}]
	return method.Outputs.Pack(pair)
}

func (b *Backend) getPool(data []byte) ([]byte, error) {
	method := contracts.UniswapV3FactoryABI.Methods["getPool"]
	b.calls["getPool"]++
	if b.v3Err != nil {
		return nil, b.v3Err
	}
	args, err := unpackInputs(method, data)
	if err != nil {
		return nil, err
	}
	fee := args[2].(*big.Int).Uint64()
	pool := b.v3Pools[poolKey{args[0].(common.Address), args[1].(common.Address), fee}]
	return method.Outputs.Pack(pool)
}

func (b *Backend) tokenCall(token Token, data []byte) ([]byte, error) {
	method, err := contracts.ERC20ABI.MethodById(data[:4])
	if err != nil {
		return nil, ErrReverted
	}
	b.calls[method.Name]++

	switch method.Name {
	case "name", "symbol":
		value := token.Name
		if method.Name == "symbol" {
			value = token.Symbol
		}
		if value == "" {
			return nil, ErrReverted
		}
		if token.Bytes32 {
			var word [32]byte
			copy(word[:], value)
			return word[:], nil
		}
		return method.Outputs.Pack(value)
	case "decimals":
		if token.NoDecimals {
			return nil, ErrReverted
		}
		return method.Outputs.Pack(token.Decimals)
	case "totalSupply":
		if token.TotalSupply == nil {
			return nil, ErrReverted
		}
		return method.Outputs.Pack(token.TotalSupply)
	}
	return nil, ErrReverted
}

func unpackInputs(method abi.Method, data []byte) ([]interface{}, error) {
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("bad %s calldata: %w", method.Name, err)
	}
	return args, nil
}
