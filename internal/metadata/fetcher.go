package metadata

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/contracts"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

const defaultCallTimeout = 10 * time.Second

// textDecoders decode the return data of name() or symbol(), tried in order.
var textDecoders = []func(method string, data []byte) (string, error){
	decodeString,
	decodeBytes32,
}

// Fetcher resolves ERC-20 metadata. It never fails: every field that cannot be
// read keeps its default.
type Fetcher struct {
	logger      *logger.Logger
	callTimeout time.Duration
}

func NewFetcher(logger *logger.Logger, callTimeout time.Duration) *Fetcher {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Fetcher{logger: logger, callTimeout: callTimeout}
}

// Fetch reads name, symbol, decimals and totalSupply concurrently.
func (f *Fetcher) Fetch(ctx context.Context, client blockchain.Client, address common.Address) models.TokenMetadata {
	meta := models.DefaultMetadata()
	var rawSupply *big.Int

	var wg sync.WaitGroup
	wg.Add(4)
	go f.safely(&wg, address, "name", func() {
		if v, err := f.text(ctx, client, address, "name", models.MaxTokenNameLength); err == nil {
			meta.Name = v
		}
	})
	go f.safely(&wg, address, "symbol", func() {
		if v, err := f.text(ctx, client, address, "symbol", models.MaxTokenSymbolLength); err == nil {
			meta.Symbol = v
		}
	})
	go f.safely(&wg, address, "decimals", func() {
		if v, err := f.decimals(ctx, client, address); err == nil {
			meta.Decimals = v
		}
	})
	go f.safely(&wg, address, "totalSupply", func() {
		if v, err := f.totalSupply(ctx, client, address); err == nil {
			rawSupply = v
		}
	})
	wg.Wait()

	if rawSupply != nil {
		meta.TotalSupply = decimal.NewFromBigInt(rawSupply, -int32(meta.Decimals))
	}
	return meta
}

func (f *Fetcher) safely(wg *sync.WaitGroup, address common.Address, method string, fn func()) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("panic while reading token metadata", "address", address.Hex(), "method", method, "panic", r)
		}
	}()
	fn()
}

func (f *Fetcher) call(ctx context.Context, client blockchain.Client, address common.Address, method string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	out, err := client.CallContract(ctx, address, contracts.ERC20ABI.Methods[method].ID)
	if err != nil {
		return nil, fmt.Errorf("eth_call for %s failed: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty response for %s", method)
	}
	return out, nil
}

// text reads name() or symbol() and cuts the value to at most maxLen bytes.
func (f *Fetcher) text(ctx context.Context, client blockchain.Client, address common.Address, method string, maxLen int) (string, error) {
	out, err := f.call(ctx, client, address, method)
	if err != nil {
		return "", err
	}
	for _, decode := range textDecoders {
		value, err := decode(method, out)
		if err != nil {
			continue
		}
		if value = strings.TrimSpace(truncate(value, maxLen)); value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("undecodable %s response for %s", method, address.Hex())
}

func (f *Fetcher) decimals(ctx context.Context, client blockchain.Client, address common.Address) (uint8, error) {
	out, err := f.call(ctx, client, address, "decimals")
	if err != nil {
		return 0, err
	}
	values, err := contracts.ERC20ABI.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("failed to decode decimals: %w", err)
	}
	v, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}
	return v, nil
}

func (f *Fetcher) totalSupply(ctx context.Context, client blockchain.Client, address common.Address) (*big.Int, error) {
	out, err := f.call(ctx, client, address, "totalSupply")
	if err != nil {
		return nil, err
	}
	values, err := contracts.ERC20ABI.Unpack("totalSupply", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode totalSupply: %w", err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected totalSupply type %T", values[0])
	}
	return v, nil
}

func decodeString(method string, data []byte) (string, error) {
	values, err := contracts.ERC20ABI.Unpack(method, data)
	if err != nil {
		return "", err
	}
	s, ok := values[0].(string)
	if !ok || !utf8.ValidString(s) {
		return "", fmt.Errorf("not a string")
	}
	return s, nil
}

func decodeBytes32(method string, data []byte) (string, error) {
	if len(data) != 32 {
		return "", fmt.Errorf("not a bytes32")
	}
	values, err := contracts.ERC20Bytes32ABI.Unpack(method, data)
	if err != nil {
		return "", err
	}
	raw, ok := values[0].([32]byte)
	if !ok {
		return "", fmt.Errorf("unexpected bytes32 type %T", values[0])
	}
	trimmed := bytes.TrimRight(raw[:], "\x00")
	if !utf8.Valid(trimmed) {
		return "", fmt.Errorf("bytes32 is not utf-8")
	}
	return string(trimmed), nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
