package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newRPCServer answers JSON-RPC requests with the raw result registered for the method.
func newRPCServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialTest(t *testing.T, results map[string]string) *EVMClient {
	t.Helper()
	srv := newRPCServer(t, results)
	client, err := Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestBlockNumber(t *testing.T) {
	client := dialTest(t, map[string]string{"eth_blockNumber": `"0x66"`})

	number, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(102), number)
}

func TestBlockByNumber_DecodesCreationAndDepositTxs(t *testing.T) {
	block := `{
		"number":"0x65","hash":"0x1111111111111111111111111111111111111111111111111111111111111111","timestamp":"0x6553f100",
		"transactions":[
			{"hash":"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","from":"0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001","to":"0x4200000000000000000000000000000000000015","type":"0x7e","transactionIndex":"0x0","sourceHash":"0x01","mint":"0x0","isSystemTx":false},
			{"hash":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","from":"0x00000000000000000000000000000000000000d1","to":null,"type":"0x2","transactionIndex":"0x1"}
		]
	}`
	client := dialTest(t, map[string]string{"eth_getBlockByNumber": block})

	got, err := client.BlockByNumber(context.Background(), 101)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), uint64(got.Number))
	assert.Equal(t, uint64(0x6553f100), uint64(got.Timestamp))
	require.Len(t, got.Transactions, 2)
	assert.False(t, got.Transactions[0].IsContractCreation())
	assert.True(t, got.Transactions[1].IsContractCreation())
	assert.Equal(t, common.HexToAddress("0xd1"), got.Transactions[1].From)
}

func TestBlockByNumber_NotFound(t *testing.T) {
	client := dialTest(t, map[string]string{"eth_getBlockByNumber": `null`})

	_, err := client.BlockByNumber(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrBlockNotFound))
}

func TestTransactionReceipt(t *testing.T) {
	receipt := `{"transactionHash":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","blockNumber":"0x65","contractAddress":"0x00000000000000000000000000000000000000c1","status":"0x1"}`
	client := dialTest(t, map[string]string{"eth_getTransactionReceipt": receipt})

	got, err := client.TransactionReceipt(context.Background(), common.HexToHash("0xbb"))
	require.NoError(t, err)
	assert.True(t, got.Succeeded())
	addr, ok := got.DeployedContract()
	assert.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xc1"), addr)
}

func TestTransactionReceipt_NotFound(t *testing.T) {
	client := dialTest(t, map[string]string{"eth_getTransactionReceipt": `null`})

	_, err := client.TransactionReceipt(context.Background(), common.HexToHash("0xbb"))
	assert.True(t, errors.Is(err, ErrReceiptNotFound))
}

func TestReceiptHelpers(t *testing.T) {
	failed := &Receipt{}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"0x0","contractAddress":null}`), failed))
	assert.False(t, failed.Succeeded())
	_, ok := failed.DeployedContract()
	assert.False(t, ok)

	legacy := &Receipt{}
	require.NoError(t, json.Unmarshal([]byte(`{"contractAddress":"0x00000000000000000000000000000000000000c1"}`), legacy))
	assert.True(t, legacy.Succeeded())
}

func TestCallContractAndGasPrice(t *testing.T) {
	client := dialTest(t, map[string]string{
		"eth_call":     `"0x000000000000000000000000000000000000000000000000000000000000002a"`,
		"eth_gasPrice": `"0x3b9aca00"`,
	})

	out, err := client.CallContract(context.Background(), common.HexToAddress("0x01"), []byte{0x01})
	require.NoError(t, err)
	require.Len(t, out, 32)
	assert.Equal(t, byte(0x2a), out[31])

	price, err := client.SuggestGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), price.Int64())
}

func TestRPCError(t *testing.T) {
	client := dialTest(t, map[string]string{})

	_, err := client.BlockNumber(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}
