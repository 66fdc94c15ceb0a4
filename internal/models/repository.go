package models

import "time"

type Repository interface {
	// SaveTokenDeployment upserts the token keyed by (chain, contract address) and
	// updates the deployer statistics in the same transaction. It reports whether
	// the token was inserted for the first time.
	SaveTokenDeployment(token *TokenDeployment) (bool, error)
	GetTokenDeployments(filter TokenFilter) ([]*TokenDeployment, error)
	GetTokenDeployment(chain, address string) (*TokenDeployment, error)
	GetRecentActivity(since time.Time, limit int) ([]*TokenDeployment, error)

	// SaveScanRun appends to the scan log and prunes it to the configured size per chain.
	SaveScanRun(run *ScanRun) error
	GetScanHistory(chain string, limit int) ([]*ScanRun, error)

	GetDeployerStats(filter DeployerFilter) ([]*DeployerStats, error)
	GetChainStats() (*ChainStats, error)

	AddSubscription(sub *Subscription) error
	GetSubscriptions() ([]*Subscription, error)
	RemoveSubscription(id string) error
	BindTelegramChat(username, chatID string) (int64, error)
	MarkSubscriptionNotified(id string, at time.Time) error

	ClearTokenDeployments() error
	ClearScanHistory() error
	ClearDeployerStats() error

	// AcquireLock takes or renews the named lease for instanceID. It reports
	// false while another instance holds an unexpired lease.
	AcquireLock(name, instanceID string, ttl time.Duration) (bool, error)

	ExportData() (*DataExport, error)
	ImportData(data *DataExport) error

	Close() error
}

type TokenFilter struct {
	Chain        string
	IsOpStack    *bool
	HasLiquidity *bool
	Limit        int
	Offset       int
}

// ChainStats summarises the stored data.
type ChainStats struct {
	TotalTokens         int64         `json:"total_tokens"`
	TokensWithLiquidity int64         `json:"tokens_with_liquidity"`
	TotalDeployers      int64         `json:"total_deployers"`
	TotalScans          int64         `json:"total_scans"`
	Chains              []*ChainCount `json:"chains"`
}

type ChainCount struct {
	Chain         string `json:"chain"`
	Tokens        int64  `json:"tokens"`
	WithLiquidity int64  `json:"with_liquidity"`
}

// DataExport is the bulk backup format.
type DataExport struct {
	ExportedAt       time.Time          `json:"exported_at"`
	TokenDeployments []*TokenDeployment `json:"token_deployments"`
	ScanHistory      []*ScanRun         `json:"scan_history"`
	DeployerStats    []*DeployerStats   `json:"deployer_stats"`
	Subscriptions    []*Subscription    `json:"subscriptions"`
}
