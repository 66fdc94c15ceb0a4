package scanner

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain/blockchaintest"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/liquidity"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metadata"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

var (
	deployer  = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	poolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

type recordingSink struct {
	mu     sync.Mutex
	tokens []*models.TokenDeployment
}

func (s *recordingSink) RecordToken(ctx context.Context, token *models.TokenDeployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

type countingWaiter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (w *countingWaiter) Wait(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.err
}

func baseChain(t *testing.T) chains.ChainConfig {
	t.Helper()
	cfg, err := chains.Default().Get("base")
	require.NoError(t, err)
	return cfg
}

func newScanner(sink Sink, batchSize int) *Scanner {
	log := logger.NewNop()
	return New(log, metadata.NewFetcher(log, 50*time.Millisecond), liquidity.NewProber(log, 50*time.Millisecond), sink, Config{BatchSize: batchSize})
}

// addCreation registers a block containing the given creation transactions.
func addCreation(client *blockchaintest.Client, number uint64, contracts ...common.Address) {
	block := &blockchain.Block{Number: hexutil.Uint64(number), Timestamp: hexutil.Uint64(1_700_000_000 + number)}
	// A regular transfer precedes the creations.
	to := common.HexToAddress("0x0000000000000000000000000000000000000e0a")
	block.Transactions = append(block.Transactions, &blockchain.Transaction{Hash: common.BigToHash(big.NewInt(int64(number * 1000))), From: deployer, To: &to})
	for i, contract := range contracts {
		hash := common.BigToHash(big.NewInt(int64(number*1000 + uint64(i) + 1)))
		tx, receipt := blockchaintest.CreationTx(hash, deployer, contract, uint64(i+1))
		block.Transactions = append(block.Transactions, tx)
		client.AddReceipt(receipt)
	}
	client.AddBlock(block)
}

func newBackend(chain chains.ChainConfig) *blockchaintest.Backend {
	return blockchaintest.NewBackend(chain.V2Factory, chain.V3Factory)
}

func testToken() blockchaintest.Token {
	supply, _ := new(big.Int).SetString("1000000000000000000000", 10)
	return blockchaintest.Token{Name: "Test", Symbol: "TST", Decimals: 18, TotalSupply: supply}
}

func TestScan_V3PoolAtMidFeeTier(t *testing.T) {
	chain := baseChain(t)
	backend := newBackend(chain)
	backend.AddToken(tokenAddr, testToken())
	backend.AddV3Pool(tokenAddr, chain.WrappedNative, 3000, poolAddr)

	client := blockchaintest.NewClient()
	client.SetCallContractHandler(backend.Call)
	addCreation(client, 101, tokenAddr)

	sink := &recordingSink{}
	result, err := newScanner(sink, 100).Scan(context.Background(), Job{Chain: chain, Client: client, From: 100, To: 102})
	require.NoError(t, err)

	assert.Equal(t, 3, result.BlocksAttempted)
	assert.Equal(t, 0, result.BlocksFailed)
	assert.Equal(t, 1, result.ContractsFound)
	require.Len(t, result.Tokens, 1)

	token := result.Tokens[0]
	assert.Equal(t, "Test", token.Metadata.Name)
	assert.Equal(t, "TST", token.Metadata.Symbol)
	assert.Equal(t, uint8(18), token.Metadata.Decimals)
	assert.True(t, decimal.NewFromInt(1000).Equal(token.Metadata.TotalSupply))
	assert.Equal(t, models.LPInfo{V2: false, V3: true, Status: models.LPStatusYes}, token.LPInfo)

	assert.Equal(t, "base", token.Chain)
	assert.Equal(t, int64(8453), token.ChainID)
	assert.True(t, token.IsOpStack)
	assert.Equal(t, tokenAddr.Hex(), token.ContractAddress)
	assert.Equal(t, deployer.Hex(), token.Deployer)
	assert.Equal(t, uint64(101), token.BlockNumber)
	assert.Equal(t, time.Unix(1_700_000_101, 0).UTC(), token.Timestamp)
	assert.Equal(t, "https://basescan.org/address/"+tokenAddr.Hex(), token.ExplorerURL)

	assert.Equal(t, 1, sink.count())
}

func TestScan_FactoryFailuresKeepTheToken(t *testing.T) {
	chain := baseChain(t)
	backend := newBackend(chain)
	backend.AddToken(tokenAddr, testToken())
	backend.FailV2(errors.New("execution reverted"))
	backend.FailV3(context.DeadlineExceeded)

	client := blockchaintest.NewClient()
	client.SetCallContractHandler(backend.Call)
	addCreation(client, 101, tokenAddr)

	result, err := newScanner(&recordingSink{}, 100).Scan(context.Background(), Job{Chain: chain, Client: client, From: 100, To: 102})
	require.NoError(t, err)

	require.Len(t, result.Tokens, 1)
	assert.Equal(t, models.LPStatusError, result.Tokens[0].LPInfo.Status)
	assert.False(t, result.Tokens[0].LPInfo.V2)
	assert.False(t, result.Tokens[0].LPInfo.V3)
	assert.Equal(t, 3, backend.Calls("getPool"))
}

func TestScan_BadBlockDoesNotAbortRange(t *testing.T) {
	chain := baseChain(t)
	before := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	after := common.HexToAddress("0x00000000000000000000000000000000000000a3")

	backend := newBackend(chain)
	backend.AddToken(before, blockchaintest.Token{Name: "Before", Symbol: "BFR", Decimals: 18, TotalSupply: big.NewInt(1)})
	backend.AddToken(after, blockchaintest.Token{Name: "After", Symbol: "AFT", Decimals: 18, TotalSupply: big.NewInt(1)})

	client := blockchaintest.NewClient()
	client.SetCallContractHandler(backend.Call)
	addCreation(client, 200, before)
	client.SetBlockError(201, errors.New("malformed block"))
	addCreation(client, 202, after)

	result, err := newScanner(nil, 100).Scan(context.Background(), Job{Chain: chain, Client: client, From: 200, To: 202})
	require.NoError(t, err)

	assert.Equal(t, 3, result.BlocksAttempted)
	assert.Equal(t, 1, result.BlocksFailed)
	require.Len(t, result.Tokens, 2)
	assert.Equal(t, before.Hex(), result.Tokens[0].ContractAddress)
	assert.Equal(t, after.Hex(), result.Tokens[1].ContractAddress)
}

func TestScan_SkipsNonTokensAndFailedDeployments(t *testing.T) {
	chain := baseChain(t)
	good := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	plain := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	noReceipt := common.HexToAddress("0x00000000000000000000000000000000000000b3")
	reverted := common.HexToAddress("0x00000000000000000000000000000000000000b4")

	backend := newBackend(chain)
	backend.AddToken(good, blockchaintest.Token{Name: "Good", Symbol: "GOOD", Decimals: 18, TotalSupply: big.NewInt(1)})
	backend.AddToken(reverted, blockchaintest.Token{Name: "Reverted", Symbol: "RVT", Decimals: 18, TotalSupply: big.NewInt(1)})

	client := blockchaintest.NewClient()
	client.SetCallContractHandler(backend.Call)

	status := hexutil.Uint64(0)
	block := &blockchain.Block{Number: 300}
	for i, contract := range []common.Address{good, plain, noReceipt, reverted} {
		hash := common.BigToHash(big.NewInt(int64(3000 + i)))
		tx, receipt := blockchaintest.CreationTx(hash, deployer, contract, uint64(i))
		block.Transactions = append(block.Transactions, tx)
		switch contract {
		case noReceipt:
			continue
		case reverted:
			receipt.Status = &status
		}
		client.AddReceipt(receipt)
	}
	client.AddBlock(block)

	sink := &recordingSink{}
	result, err := newScanner(sink, 10).Scan(context.Background(), Job{Chain: chain, Client: client, From: 300, To: 300})
	require.NoError(t, err)

	assert.Equal(t, 4, result.ContractsFound)
	require.Len(t, result.Tokens, 1)
	assert.Equal(t, good.Hex(), result.Tokens[0].ContractAddress)
	assert.Equal(t, 1, sink.count())
}

func TestScan_PreservesTxOrderWithinBlock(t *testing.T) {
	chain := baseChain(t)
	backend := newBackend(chain)
	var addrs []common.Address
	for i := 1; i <= 8; i++ {
		addr := common.BigToAddress(big.NewInt(int64(0xc000 + i)))
		backend.AddToken(addr, blockchaintest.Token{Name: "T", Symbol: "T", Decimals: 18, TotalSupply: big.NewInt(1)})
		addrs = append(addrs, addr)
	}
	client := blockchaintest.NewClient()
	client.SetCallContractHandler(backend.Call)
	addCreation(client, 400, addrs...)

	result, err := newScanner(nil, 100).Scan(context.Background(), Job{Chain: chain, Client: client, From: 400, To: 400})
	require.NoError(t, err)

	require.Len(t, result.Tokens, len(addrs))
	for i, token := range result.Tokens {
		assert.Equal(t, addrs[i].Hex(), token.ContractAddress)
	}
}

func TestScan_BatchesAndRateLimiter(t *testing.T) {
	chain := baseChain(t)
	client := blockchaintest.NewClient()
	waiter := &countingWaiter{}

	result, err := newScanner(nil, 10).Scan(context.Background(), Job{Chain: chain, Client: client, Limiter: waiter, From: 1, To: 25})
	require.NoError(t, err)

	assert.Equal(t, 25, result.BlocksAttempted)
	assert.Equal(t, 25, client.BlockCalls())
	assert.Equal(t, 3, waiter.calls)
	assert.Empty(t, result.Tokens)
}

func TestScan_LimiterErrorStopsWithPartialResult(t *testing.T) {
	chain := baseChain(t)
	client := blockchaintest.NewClient()
	waiter := &countingWaiter{err: context.Canceled}

	result, err := newScanner(nil, 10).Scan(context.Background(), Job{Chain: chain, Client: client, Limiter: waiter, From: 1, To: 25})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result)
	assert.Equal(t, 0, result.BlocksAttempted)
}

func TestScan_InvalidRange(t *testing.T) {
	_, err := newScanner(nil, 10).Scan(context.Background(), Job{Chain: baseChain(t), Client: blockchaintest.NewClient(), From: 10, To: 9})
	assert.Error(t, err)
}

func TestScan_SameRangeTwiceFindsSameTokens(t *testing.T) {
	chain := baseChain(t)
	backend := newBackend(chain)
	backend.AddToken(tokenAddr, testToken())
	client := blockchaintest.NewClient()
	client.SetCallContractHandler(backend.Call)
	addCreation(client, 101, tokenAddr)

	s := newScanner(nil, 100)
	first, err := s.Scan(context.Background(), Job{Chain: chain, Client: client, From: 100, To: 102})
	require.NoError(t, err)
	second, err := s.Scan(context.Background(), Job{Chain: chain, Client: client, From: 100, To: 102})
	require.NoError(t, err)

	require.Len(t, first.Tokens, 1)
	require.Len(t, second.Tokens, 1)
	assert.Equal(t, first.Tokens[0].ContractAddress, second.Tokens[0].ContractAddress)
	assert.Equal(t, models.LPStatusNo, second.Tokens[0].LPInfo.Status)
}

func TestScan_CancelledMidBatchReturnsError(t *testing.T) {
	chain := baseChain(t)
	client := blockchaintest.NewClient()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.OnBlockFetch(func(number uint64) {
		if number == 100 {
			cancel()
		}
	})

	result, err := newScanner(nil, 100).Scan(ctx, Job{Chain: chain, Client: client, From: 100, To: 150})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result)
	assert.Equal(t, 51, result.BlocksAttempted)
}

func TestScan_CancelledContextStopsBeforeFirstBatch(t *testing.T) {
	chain := baseChain(t)
	client := blockchaintest.NewClient()
	waiter := &countingWaiter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newScanner(nil, 10).Scan(ctx, Job{Chain: chain, Client: client, Limiter: waiter, From: 1, To: 25})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, result.BlocksAttempted)
	assert.Equal(t, 0, client.BlockCalls())
	assert.Equal(t, 0, waiter.calls)
}
