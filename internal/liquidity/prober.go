package liquidity

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/contracts"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

const defaultCallTimeout = 10 * time.Second

// FeeTiers are the Uniswap v3 fee tiers probed in order: 0.05%, 0.3%, 1%.
var FeeTiers = []uint32{500, 3000, 10000}

// checkResult is the outcome of one factory check.
type checkResult struct {
	found bool
	// errors counts failed factory calls that could have found a pool.
	errors int
}

// Prober detects whether a token is paired against the chain's wrapped native asset.
type Prober struct {
	logger      *logger.Logger
	callTimeout time.Duration
}

func NewProber(logger *logger.Logger, callTimeout time.Duration) *Prober {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Prober{logger: logger, callTimeout: callTimeout}
}

// Probe runs the v2 and v3 checks concurrently. Status is YES when any pair or
// pool exists, ERROR when nothing was found but a factory call failed, NO otherwise.
func (p *Prober) Probe(ctx context.Context, client blockchain.Client, chain chains.ChainConfig, token common.Address) models.LPInfo {
	var v2, v3 checkResult

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		v2 = p.guard(token, "v2", func() checkResult { return p.checkV2(ctx, client, chain, token) })
	}()
	go func() {
		defer wg.Done()
		v3 = p.guard(token, "v3", func() checkResult { return p.checkV3(ctx, client, chain, token) })
	}()
	wg.Wait()

	info := models.LPInfo{V2: v2.found, V3: v3.found}
	switch {
	case info.V2 || info.V3:
		info.Status = models.LPStatusYes
	case v2.errors > 0 || v3.errors > 0:
		info.Status = models.LPStatusError
	default:
		info.Status = models.LPStatusNo
	}
	return info
}

// guard turns a panic inside a check into a failed check.
func (p *Prober) guard(token common.Address, kind string, check func() checkResult) (result checkResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("liquidity check panicked", "token", token.Hex(), "check", kind, "panic", r)
			result = checkResult{errors: 1}
		}
	}()
	return check()
}

func (p *Prober) checkV2(ctx context.Context, client blockchain.Client, chain chains.ChainConfig, token common.Address) checkResult {
	if chain.V2Factory == (common.Address{}) {
		return checkResult{}
	}
	pair, err := p.callFactory(ctx, client, chain.V2Factory, contracts.UniswapV2FactoryABI, "getPair", token, chain.WrappedNative)
	if err != nil {
		p.logger.Debug("v2 getPair failed", "chain", chain.Name, "token", token.Hex(), "error", err)
		return checkResult{errors: 1}
	}
	return checkResult{found: pair != (common.Address{})}
}

func (p *Prober) checkV3(ctx context.Context, client blockchain.Client, chain chains.ChainConfig, token common.Address) checkResult {
	var result checkResult
	if chain.V3Factory == (common.Address{}) {
		return result
	}
	for _, fee := range FeeTiers {
		pool, err := p.callFactory(ctx, client, chain.V3Factory, contracts.UniswapV3FactoryABI, "getPool", token, chain.WrappedNative, big.NewInt(int64(fee)))
		if err != nil {
			p.logger.Debug("v3 getPool failed", "chain", chain.Name, "token", token.Hex(), "fee", fee, "error", err)
			result.errors++
			continue
		}
		if pool != (common.Address{}) {
			result.found = true
			return result
		}
	}
	return result
}

// callFactory performs a factory lookup returning a single address.
func (p *Prober) callFactory(ctx context.Context, client blockchain.Client, factory common.Address, factoryABI abi.ABI, method string, args ...interface{}) (common.Address, error) {
	data, err := factoryABI.Pack(method, args...)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	out, err := client.CallContract(ctx, factory, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("eth_call for %s failed: %w", method, err)
	}
	// A valid address response from a view function is always 32 bytes long.
	if len(out) != 32 {
		return common.Address{}, fmt.Errorf("invalid response length for %s: got %d bytes", method, len(out))
	}
	return common.BytesToAddress(out), nil
}
