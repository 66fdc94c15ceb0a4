package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/cache"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"

	defaultCacheTTL = time.Minute
	// maxConcurrent limits in-flight requests to the aggregator
	maxConcurrent = 5
)

// TokensResponse is the body of /latest/dex/tokens/{address}
type TokensResponse struct {
	Pairs []Pair `json:"pairs"`
}

// Pair is one trading pair of the token on some DEX.
type Pair struct {
	ChainID  string          `json:"chainId"`
	DexID    string          `json:"dexId"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
	Volume   struct {
		H24 decimal.Decimal `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"liquidity"`
}

// DexScreener looks up market data of tokens. It implements models.PriceEnricher.
type DexScreener struct {
	logger  *logger.Logger
	baseURL string
	client  *http.Client

	sem   chan struct{}
	cache *cache.TTL[*models.MarketData]
}

var _ models.PriceEnricher = (*DexScreener)(nil)

// NewDexScreener creates a client. An empty baseURL uses the public API.
func NewDexScreener(logger *logger.Logger, baseURL string, timeout time.Duration) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DexScreener{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		sem:   make(chan struct{}, maxConcurrent),
		cache: cache.NewTTL[*models.MarketData]("price", defaultCacheTTL),
	}
}

// Lookup returns market data of the most liquid pair of the token on chain.
// It returns nil without error when the token is not listed.
func (d *DexScreener) Lookup(ctx context.Context, chain, address string) (*models.MarketData, error) {
	key := cache.Key{Chain: chain, Purpose: "price:" + strings.ToLower(address)}
	if cached, ok := d.cache.Get(key); ok {
		return cached, nil
	}

	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tokens, err := d.fetchTokenPairs(ctx, address)
	if err != nil {
		return nil, err
	}

	var best *Pair
	for i := range tokens.Pairs {
		p := &tokens.Pairs[i]
		if !strings.EqualFold(p.ChainID, chain) {
			continue
		}
		if best == nil || p.Liquidity.USD.GreaterThan(best.Liquidity.USD) {
			best = p
		}
	}

	var market *models.MarketData
	if best != nil {
		market = &models.MarketData{
			PriceUSD:  best.PriceUSD,
			Volume24h: best.Volume.H24,
			Liquidity: best.Liquidity.USD,
			Dex:       best.DexID,
		}
	}
	d.cache.Set(key, market)
	d.logger.Debug("Token market data fetched", "chain", chain, "address", address, "listed", market != nil)
	return market, nil
}

// fetchTokenPairs fetches every pair of a token across chains
func (d *DexScreener) fetchTokenPairs(ctx context.Context, address string) (*TokensResponse, error) {
	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token pairs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var tokens TokensResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token pairs: %w", err)
	}
	return &tokens, nil
}
