package http_api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain/blockchaintest"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/explorer"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/repository"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/rpcpool"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	deployer  = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	poolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

type testAPI struct {
	server   *HTTPServer
	explorer *explorer.Explorer
	feed     *Feed
	repo     *repository.MemoryDB
	client   *blockchaintest.Client
}

type apiOptions struct {
	dialErr    error
	rateLimit  int
	adminToken string
}

func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()
	registry := chains.Default()
	base, err := registry.Get("base")
	require.NoError(t, err)

	api := &testAPI{
		client: blockchaintest.NewClient(),
		repo:   repository.NewMemoryDB(0),
	}
	backend := blockchaintest.NewBackend(base.V2Factory, base.V3Factory)
	backend.AddToken(tokenAddr, blockchaintest.Token{
		Name:        "Test",
		Symbol:      "TST",
		Decimals:    18,
		TotalSupply: new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18)),
	})
	backend.AddV2Pair(tokenAddr, base.WrappedNative, poolAddr)
	api.client.SetCallContractHandler(backend.Call)
	api.client.SetHead(102)

	tx, receipt := blockchaintest.CreationTx(common.HexToHash("0xabc"), deployer, tokenAddr, 0)
	api.client.AddReceipt(receipt)
	api.client.AddBlock(&blockchain.Block{
		Number:       hexutil.Uint64(101),
		Timestamp:    hexutil.Uint64(1_717_243_200),
		Transactions: []*blockchain.Transaction{tx},
	})

	log := logger.NewNop()
	pool := rpcpool.New(log, registry,
		rpcpool.WithRateLimit(0),
		rpcpool.WithDialer(func(ctx context.Context, url string) (blockchain.Client, error) {
			if opts.dialErr != nil {
				return nil, opts.dialErr
			}
			return api.client, nil
		}),
	)
	api.explorer = explorer.NewExplorer(api.repo, registry, pool, log, explorer.Config{CallTimeout: time.Second})
	api.feed = NewFeed(log)
	api.explorer.AddListener(api.feed)

	rateLimit := opts.rateLimit
	if rateLimit == 0 {
		rateLimit = 1000
	}
	api.server = NewHTTPServer(api.explorer, api.feed, ServerConfig{RateLimit: rateLimit, AdminToken: opts.adminToken}, log)
	t.Cleanup(func() { _ = api.server.Shutdown() })
	return api
}

func (a *testAPI) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestScanEndpoint(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	w := api.do(http.MethodGet, "/api/v1/scan?chain=base&fromBlock=100&toBlock=102", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "base", resp.Chain)
	assert.False(t, resp.FromCache)
	assert.Equal(t, models.BlockRange{From: 100, To: 102, Total: 3}, resp.ScannedBlocks)
	require.Len(t, resp.Tokens, 1)
	assert.Equal(t, "TST", resp.Tokens[0].Metadata.Symbol)
	assert.Equal(t, models.LPStatusYes, resp.Tokens[0].LPInfo.Status)

	w = api.do(http.MethodGet, "/api/v1/scan?chain=base&fromBlock=100&toBlock=102", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["fromCache"])

	w = api.do(http.MethodGet, "/api/v1/scan?chain=base&fromBlock=100&toBlock=102&useCache=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["fromCache"])
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown chain", "/api/v1/scan?chain=solana", http.StatusBadRequest},
		{"missing chain", "/api/v1/scan", http.StatusBadRequest},
		{"inverted range", "/api/v1/scan?chain=base&fromBlock=10&toBlock=5", http.StatusBadRequest},
		{"malformed block", "/api/v1/scan?chain=base&fromBlock=abc", http.StatusBadRequest},
		{"malformed bool", "/api/v1/tokens?hasLiquidity=maybe", http.StatusBadRequest},
		{"negative limit", "/api/v1/tokens?limit=-1", http.StatusBadRequest},
		{"bad sort key", "/api/v1/deployers?sortBy=name", http.StatusBadRequest},
		{"invalid address", "/api/v1/tokens/base/0x123", http.StatusBadRequest},
		{"unknown token", "/api/v1/tokens/base/" + poolAddr.Hex(), http.StatusNotFound},
		{"gas on unknown chain", "/api/v1/gas-prices?chain=nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, w.Code, w.Body.String())
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestScanEndpoint_NoProvider(t *testing.T) {
	api := newTestAPI(t, apiOptions{dialErr: errors.New("connection refused")})

	w := api.do(http.MethodGet, "/api/v1/scan?chain=base", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w)["error"], "no provider available")
}

func TestScanEndpoint_FailedBlocksAreUnavailable(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	for n := uint64(100); n <= 102; n++ {
		api.client.SetBlockError(n, errors.New("header not found"))
	}

	w := api.do(http.MethodGet, "/api/v1/scan?chain=base&fromBlock=100&toBlock=102", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	assert.Contains(t, decode(t, w)["error"], "scan failed")
}

func TestQueryEndpoints(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	w := api.do(http.MethodGet, "/api/v1/scan?chain=base&fromBlock=100&toBlock=102", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/v1/tokens?chain=base&hasLiquidity=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = api.do(http.MethodGet, "/api/v1/tokens?hasLiquidity=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["count"])

	lower := strings.ToLower(tokenAddr.Hex())
	w = api.do(http.MethodGet, "/api/v1/tokens/base/"+lower, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode(t, w)["token"].(map[string]interface{})
	assert.Equal(t, tokenAddr.Hex(), token["contract_address"])
	assert.Equal(t, "Test", token["metadata"].(map[string]interface{})["name"])

	w = api.do(http.MethodGet, "/api/v1/scan-history?chain=base", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = api.do(http.MethodGet, "/api/v1/deployers?sortBy=success_rate", "")
	require.Equal(t, http.StatusOK, w.Code)
	deployers := decode(t, w)["deployers"].([]interface{})
	require.Len(t, deployers, 1)
	assert.Equal(t, deployer.Hex(), deployers[0].(map[string]interface{})["deployer"])

	w = api.do(http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["total_tokens"])
	assert.Equal(t, float64(1), stats["total_scans"])

	w = api.do(http.MethodGet, "/api/v1/chains", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["chains"])

	w = api.do(http.MethodGet, "/api/v1/activity?hours=1", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSubscriptionEndpoints(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	w := api.do(http.MethodPost, "/api/v1/subscriptions", `{"chains":["base"],"symbol_pattern":"^TST$","webhook_url":"https://hooks.example.com/x"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decode(t, w)["subscription"].(map[string]interface{})
	id := sub["id"].(string)
	assert.NotEmpty(t, id)

	subs, err := api.repo.GetSubscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.StringList{"base"}, subs[0].Chains)

	w = api.do(http.MethodPost, "/api/v1/subscriptions", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/subscriptions", `{"chains":["base"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "a subscription needs a delivery channel")

	w = api.do(http.MethodPost, "/api/v1/subscriptions", `{"name_pattern":"(","email":"a@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodDelete, "/api/v1/subscriptions/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodDelete, "/api/v1/subscriptions/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	api := newTestAPI(t, apiOptions{adminToken: "s3cret"})
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/scan?chain=base&fromBlock=100&toBlock=102", "").Code)

	w := api.do(http.MethodGet, "/api/v1/admin/export", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = api.do(http.MethodGet, "/api/v1/admin/export", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auth := []string{"Authorization", "Bearer s3cret"}
	w = api.do(http.MethodGet, "/api/v1/admin/export", "", auth...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	exported := w.Body.String()

	w = api.do(http.MethodDelete, "/api/v1/admin/data", "", auth...)
	assert.Equal(t, http.StatusBadRequest, w.Code, "kind is required")

	w = api.do(http.MethodDelete, "/api/v1/admin/data?kind=all", "", auth...)
	require.Equal(t, http.StatusOK, w.Code)
	tokens, err := api.repo.GetTokenDeployments(models.TokenFilter{})
	require.NoError(t, err)
	assert.Empty(t, tokens)

	w = api.do(http.MethodPost, "/api/v1/admin/import", exported, auth...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["token_deployments"])

	tokens, err = api.repo.GetTokenDeployments(models.TokenFilter{})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, tokenAddr.Hex(), tokens[0].ContractAddress)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	w := api.do(http.MethodOptions, "/api/v1/tokens", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	w := api.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "explorer_api_rate_limited_total")
}

func TestAPIRateLimit(t *testing.T) {
	api := newTestAPI(t, apiOptions{rateLimit: 2})

	for i := 0; i < 2; i++ {
		w := api.do(http.MethodGet, "/api/v1/chains", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := api.do(http.MethodGet, "/api/v1/chains", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, false, decode(t, w)["success"])

	w = api.do(http.MethodGet, "/api/v1/chains", "", "X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, http.StatusOK, w.Code, "other clients have their own bucket")

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/healthz", "").Code, "health checks are not limited")
}
