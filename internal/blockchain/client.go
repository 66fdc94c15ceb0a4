package blockchain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrBlockNotFound   = errors.New("block not found")
	ErrReceiptNotFound = errors.New("receipt not found")
)

// Client is the subset of the EVM JSON-RPC surface the explorer needs.
type Client interface {
	// BlockNumber returns the latest block number. It doubles as the liveness probe.
	BlockNumber(ctx context.Context) (uint64, error)
	// BlockByNumber returns a block with full transaction bodies.
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
	// CallContract executes a read-only call against the latest state.
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	Close()
}

// Block is decoded from the raw JSON-RPC response instead of go-ethereum's types.Block,
// so that chain specific transaction types (OP-Stack deposits) never fail decoding.
type Block struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Transactions []*Transaction `json:"transactions"`
}

type Transaction struct {
	Hash             common.Hash     `json:"hash"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Type             hexutil.Uint64  `json:"type"`
	TransactionIndex hexutil.Uint64  `json:"transactionIndex"`
}

// IsContractCreation reports whether the transaction has no destination.
func (tx *Transaction) IsContractCreation() bool {
	return tx.To == nil || *tx.To == (common.Address{})
}

type Receipt struct {
	TransactionHash common.Hash     `json:"transactionHash"`
	BlockNumber     hexutil.Uint64  `json:"blockNumber"`
	ContractAddress *common.Address `json:"contractAddress"`
	// Status is absent on pre-Byzantium receipts.
	Status *hexutil.Uint64 `json:"status"`
}

// Succeeded reports whether the transaction executed successfully.
func (r *Receipt) Succeeded() bool {
	return r.Status == nil || uint64(*r.Status) == 1
}

// DeployedContract returns the created contract address, if any.
func (r *Receipt) DeployedContract() (common.Address, bool) {
	if r.ContractAddress == nil || *r.ContractAddress == (common.Address{}) {
		return common.Address{}, false
	}
	return *r.ContractAddress, true
}
