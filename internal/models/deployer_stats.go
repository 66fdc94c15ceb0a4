package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeployerStats aggregates every token a deployer created on one chain.
type DeployerStats struct {
	Deployer string `json:"deployer" gorm:"column:deployer;size:42;primaryKey"`
	Chain    string `json:"chain" gorm:"column:chain;size:32;primaryKey"`
	// TokenCount counts distinct tokens, each once on first insertion.
	TokenCount int64 `json:"total_deployments" gorm:"column:token_count;not null;default:0;index"`
	// SuccessfulTokens counts tokens that reached LP status YES.
	SuccessfulTokens int64 `json:"successful_deployments" gorm:"column:successful_tokens;not null;default:0"`
	// SuccessRate is SuccessfulTokens / TokenCount * 100.
	SuccessRate    float64         `json:"success_rate" gorm:"column:success_rate;not null;default:0"`
	TotalLiquidity decimal.Decimal `json:"total_liquidity" gorm:"column:total_liquidity;type:decimal(38,18);default:0"`
	FirstSeen      time.Time       `json:"first_seen" gorm:"column:first_seen"`
	LastSeen       time.Time       `json:"last_seen" gorm:"column:last_seen"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

// RecomputeSuccessRate derives SuccessRate from the counters.
func (s *DeployerStats) RecomputeSuccessRate() {
	if s.TokenCount == 0 {
		s.SuccessRate = 0
		return
	}
	s.SuccessRate = float64(s.SuccessfulTokens) / float64(s.TokenCount) * 100
}

const (
	SortByDeployments = "total_deployments"
	SortBySuccessRate = "success_rate"
	SortByLiquidity   = "total_liquidity"
)

type DeployerFilter struct {
	Chain          string
	MinDeployments int64
	SortBy         string
	Limit          int
}

// TableName specifies the table name for GORM
func (DeployerStats) TableName() string {
	return "deployer_stats"
}
