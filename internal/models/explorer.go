package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ExplorerI interface {
	// Start runs the background auto-scan loop until ctx is done.
	Start(ctx context.Context)

	Scan(ctx context.Context, req ScanRequest) (*ScanResponse, error)
	GasPrices(ctx context.Context, chain string) (*GasPrice, error)
	AllGasPrices(ctx context.Context) []*GasPrice
	Chains() []ChainInfo

	Tokens(filter TokenFilter) ([]*TokenDeployment, error)
	Token(chain, address string) (*TokenDeployment, error)
	ScanHistory(chain string, limit int) ([]*ScanRun, error)
	Deployers(filter DeployerFilter) ([]*DeployerStats, error)
	Stats() (*ChainStats, error)
	RecentActivity(hours int) ([]*TokenDeployment, error)

	Subscribe(sub *Subscription) error
	Unsubscribe(id string) error

	Export() (*DataExport, error)
	Import(data *DataExport) error
	Clear(kind string) error
}

type APIServer interface {
	// Start blocks serving requests until Shutdown is called.
	Start()
	Shutdown() error
}

// ScanRequest is the invocation surface of a scan. Nil bounds default to the
// latest blocks up to the chain tip.
type ScanRequest struct {
	Chain     string  `json:"chain"`
	FromBlock *uint64 `json:"fromBlock,omitempty"`
	ToBlock   *uint64 `json:"toBlock,omitempty"`
	UseCache  bool    `json:"useCache"`
}

type ScanResponse struct {
	Tokens        []*TokenDeployment `json:"tokens"`
	FromCache     bool               `json:"fromCache"`
	ScannedBlocks BlockRange         `json:"scannedBlocks"`
	Chain         string             `json:"chain"`
	Summary       ScanSummary        `json:"summary"`
}

type BlockRange struct {
	From  uint64 `json:"from"`
	To    uint64 `json:"to"`
	Total uint64 `json:"total"`
}

type ScanSummary struct {
	BlocksFailed        int   `json:"blocks_failed"`
	ContractsFound      int   `json:"contracts_found"`
	TokensFound         int   `json:"tokens_found"`
	TokensWithLiquidity int   `json:"lp_contracts"`
	DurationMs          int64 `json:"duration_ms"`
}

const (
	CongestionLow    = "low"
	CongestionMedium = "medium"
	CongestionHigh   = "high"
)

// GasPrice holds gas price tiers in gwei.
type GasPrice struct {
	Chain      string          `json:"chain"`
	ChainID    int64           `json:"chain_id"`
	Slow       decimal.Decimal `json:"slow"`
	Standard   decimal.Decimal `json:"standard"`
	Fast       decimal.Decimal `json:"fast"`
	Congestion string          `json:"congestion,omitempty"`
	Error      string          `json:"error,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ChainInfo is the public view of a configured chain.
type ChainInfo struct {
	Name        string `json:"name"`
	ChainID     int64  `json:"chain_id"`
	ExplorerURL string `json:"explorer_url"`
	IsOpStack   bool   `json:"is_op_stack"`
	Scannable   bool   `json:"scannable"`
}
