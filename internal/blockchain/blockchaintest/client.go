// Package blockchaintest provides in-memory fakes of blockchain.Client for tests.
package blockchaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain"
)

var ErrReverted = errors.New("execution reverted")

type CallHandler func(ctx context.Context, to common.Address, data []byte) ([]byte, error)

// Client is a configurable blockchain.Client. Blocks that were never added are
// returned empty so range scans only need to register interesting blocks.
type Client struct {
	mu          sync.Mutex
	head        uint64
	headErr     error
	blocks      map[uint64]*blockchain.Block
	blockErrs   map[uint64]error
	receipts    map[common.Hash]*blockchain.Receipt
	callHandler CallHandler
	gasPrice    *big.Int
	gasErr      error
	closed      bool
	onBlock     func(number uint64)

	blockCalls int
}

var _ blockchain.Client = (*Client)(nil)

func NewClient() *Client {
	return &Client{
		blocks:    make(map[uint64]*blockchain.Block),
		blockErrs: make(map[uint64]error),
		receipts:  make(map[common.Hash]*blockchain.Receipt),
		gasPrice:  big.NewInt(1_000_000_000),
	}
}

func (c *Client) SetHead(number uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = number
}

// SetHeadError makes the liveness probe fail.
func (c *Client) SetHeadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headErr = err
}

func (c *Client) AddBlock(block *blockchain.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[uint64(block.Number)] = block
}

func (c *Client) SetBlockError(number uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockErrs[number] = err
}

// OnBlockFetch registers a hook run at the start of every BlockByNumber call.
func (c *Client) OnBlockFetch(hook func(number uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onBlock = hook
}

func (c *Client) AddReceipt(receipt *blockchain.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[receipt.TransactionHash] = receipt
}

// SetCallContractHandler sets the function answering eth_call requests.
func (c *Client) SetCallContractHandler(handler CallHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callHandler = handler
}

func (c *Client) SetGasPrice(price *big.Int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gasPrice = price
	c.gasErr = err
}

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) BlockCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockCalls
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headErr != nil {
		return 0, c.headErr
	}
	return c.head, nil
}

func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*blockchain.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockCalls++
	if c.onBlock != nil {
		c.onBlock(number)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := c.blockErrs[number]; ok {
		return nil, err
	}
	if block, ok := c.blocks[number]; ok {
		return block, nil
	}
	return &blockchain.Block{Number: hexutil.Uint64(number)}, nil
}

func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*blockchain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, blockchain.ErrReceiptNotFound
	}
	return receipt, nil
}

func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	c.mu.Lock()
	handler := c.callHandler
	c.mu.Unlock()
	if handler == nil {
		return nil, ErrReverted
	}
	return handler(ctx, to, data)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gasErr != nil {
		return nil, c.gasErr
	}
	return new(big.Int).Set(c.gasPrice), nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// CreationTx builds a contract-creation transaction with a matching successful receipt.
func CreationTx(hash common.Hash, from, contract common.Address, index uint64) (*blockchain.Transaction, *blockchain.Receipt) {
	status := hexutil.Uint64(1)
	tx := &blockchain.Transaction{Hash: hash, From: from, TransactionIndex: hexutil.Uint64(index)}
	receipt := &blockchain.Receipt{TransactionHash: hash, ContractAddress: &contract, Status: &status}
	return tx, receipt
}
