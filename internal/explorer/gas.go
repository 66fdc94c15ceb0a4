package explorer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/cache"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
)

const gasPurpose = "gas"

var (
	slowMultiplier = decimal.RequireFromString("0.8")
	fastMultiplier = decimal.RequireFromString("1.3")

	// thresholds in gwei, above which congestion is medium and high
	l1Medium = decimal.NewFromInt(20)
	l1High   = decimal.NewFromInt(50)
	l2Medium = decimal.RequireFromString("0.05")
	l2High   = decimal.RequireFromString("0.1")
)

// GasPrices returns the slow, standard and fast gas price of a chain in gwei.
func (e *Explorer) GasPrices(ctx context.Context, chain string) (*models.GasPrice, error) {
	cfg, err := e.registry.Get(chain)
	if err != nil {
		return nil, err
	}
	key := cache.Key{Chain: cfg.Name, Purpose: gasPurpose}
	if cached, ok := e.gasCache.Get(key); ok {
		gp := *cached
		return &gp, nil
	}

	client, err := e.pool.GetClient(ctx, cfg.Name)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()
	wei, err := client.SuggestGasPrice(callCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price for %s: %w", cfg.Name, err)
	}

	standard := decimal.NewFromBigInt(wei, -9)
	gp := &models.GasPrice{
		Chain:      cfg.Name,
		ChainID:    cfg.ChainID,
		Slow:       standard.Mul(slowMultiplier),
		Standard:   standard,
		Fast:       standard.Mul(fastMultiplier),
		Congestion: congestion(cfg, standard),
		UpdatedAt:  e.now().UTC(),
	}
	e.gasCache.Set(key, gp)

	out := *gp
	return &out, nil
}

func congestion(cfg chains.ChainConfig, gwei decimal.Decimal) string {
	medium, high := l2Medium, l2High
	if cfg.ChainID == 1 {
		medium, high = l1Medium, l1High
	}
	switch {
	case gwei.GreaterThan(high):
		return models.CongestionHigh
	case gwei.GreaterThan(medium):
		return models.CongestionMedium
	default:
		return models.CongestionLow
	}
}

// AllGasPrices queries every chain concurrently. A chain that fails is reported
// with its error instead of failing the whole listing.
func (e *Explorer) AllGasPrices(ctx context.Context) []*models.GasPrice {
	all := e.registry.All()
	prices := make([]*models.GasPrice, len(all))

	var g errgroup.Group
	for i, cfg := range all {
		i, cfg := i, cfg
		g.Go(func() error {
			gp, err := e.GasPrices(ctx, cfg.Name)
			if err != nil {
				e.logger.Warn("Failed to get gas price", "chain", cfg.Name, "error", err)
				gp = &models.GasPrice{Chain: cfg.Name, ChainID: cfg.ChainID, Error: err.Error(), UpdatedAt: e.now().UTC()}
			}
			prices[i] = gp
			return nil
		})
	}
	_ = g.Wait()
	return prices
}
