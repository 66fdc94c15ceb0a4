package models

import "context"

// TokenListener is notified once for every token persisted for the first time.
type TokenListener interface {
	OnTokenDiscovered(token *TokenDeployment)
}

// PriceEnricher looks up market data for a token.
type PriceEnricher interface {
	Lookup(ctx context.Context, chain, address string) (*MarketData, error)
}
