package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// EVMClient talks to a single JSON-RPC endpoint.
type EVMClient struct {
	rpc    *rpc.Client
	client *ethclient.Client
}

// Dial connects to the endpoint. For HTTP endpoints no request is made until the first call.
func Dial(ctx context.Context, url string) (*EVMClient, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return &EVMClient{rpc: rpcClient, client: ethclient.NewClient(rpcClient)}, nil
}

func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	number, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get block number: %w", err)
	}
	return number, nil
}

func (c *EVMClient) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", number, err)
	}
	if isNull(raw) {
		return nil, fmt.Errorf("block %d: %w", number, ErrBlockNotFound)
	}
	var block Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("failed to decode block %d: %w", number, err)
	}
	return &block, nil
}

func (c *EVMClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getTransactionReceipt", hash); err != nil {
		return nil, fmt.Errorf("failed to get receipt %s: %w", hash.Hex(), err)
	}
	if isNull(raw) {
		return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), ErrReceiptNotFound)
	}
	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode receipt %s: %w", hash.Hex(), err)
	}
	return &receipt, nil
}

func (c *EVMClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

func (c *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return price, nil
}

func (c *EVMClient) Close() {
	c.rpc.Close()
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
