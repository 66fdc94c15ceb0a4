package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LPStatus is the derived liquidity status of a token.
type LPStatus string

const (
	LPStatusYes   LPStatus = "YES"
	LPStatusNo    LPStatus = "NO"
	LPStatusError LPStatus = "ERROR"
)

const (
	DefaultTokenName     = "Unknown"
	DefaultTokenSymbol   = "UNKNOWN"
	DefaultTokenDecimals = 18

	// Byte limits of the name and symbol columns.
	MaxTokenNameLength   = 256
	MaxTokenSymbolLength = 128
)

// TokenDeployment is a discovered contract believed to be a token.
// Chain and ContractAddress identify it; provenance fields are written once.
type TokenDeployment struct {
	ID int64 `json:"-" gorm:"column:id;primaryKey;autoIncrement"`
	// ContractAddress is the EIP-55 checksummed address of the deployed contract.
	ContractAddress string `json:"contract_address" gorm:"column:contract_address;size:42;not null;uniqueIndex:idx_token_chain_address,priority:2"`
	// Chain is the registry name of the chain (base, optimism, ...).
	Chain     string `json:"chain" gorm:"column:chain;size:32;not null;uniqueIndex:idx_token_chain_address,priority:1"`
	ChainID   int64  `json:"chain_id" gorm:"column:chain_id"`
	IsOpStack bool   `json:"is_op_stack" gorm:"column:is_op_stack;index"`

	// Deployer is the sender of the creation transaction.
	Deployer    string    `json:"deployer" gorm:"column:deployer;size:42;index"`
	TxHash      string    `json:"hash" gorm:"column:tx_hash;size:66"`
	BlockNumber uint64    `json:"block" gorm:"column:block_number"`
	TxIndex     uint64    `json:"tx_index" gorm:"column:tx_index"`
	Timestamp   time.Time `json:"timestamp" gorm:"column:deployed_at;index"`

	Metadata TokenMetadata `json:"metadata" gorm:"embedded"`
	LPInfo   LPInfo        `json:"lp_info" gorm:"embedded;embeddedPrefix:lp_"`
	// DexData is filled by the price enrichment step, when enabled.
	DexData MarketData `json:"dex_data" gorm:"embedded;embeddedPrefix:dex_"`

	ExplorerURL string    `json:"explorer_url" gorm:"column:explorer_url;size:256"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// TokenMetadata is the best-effort ERC-20 metadata of a contract.
type TokenMetadata struct {
	Name     string `json:"name" gorm:"column:name;size:256"`
	Symbol   string `json:"symbol" gorm:"column:symbol;size:128"`
	Decimals uint8  `json:"decimals" gorm:"column:decimals"`
	// TotalSupply is in human units (raw supply / 10^decimals). Stored as text
	// because a uint256 does not fit any portable numeric column.
	TotalSupply decimal.Decimal `json:"total_supply" gorm:"column:total_supply;type:varchar(100)"`
}

func DefaultMetadata() TokenMetadata {
	return TokenMetadata{
		Name:        DefaultTokenName,
		Symbol:      DefaultTokenSymbol,
		Decimals:    DefaultTokenDecimals,
		TotalSupply: decimal.Zero,
	}
}

// LooksLikeToken is false when neither name nor symbol could be resolved.
func (m TokenMetadata) LooksLikeToken() bool {
	return !(m.Name == DefaultTokenName && m.Symbol == DefaultTokenSymbol)
}

// LPInfo records pair/pool existence on the two probed DEX factories.
type LPInfo struct {
	V2     bool     `json:"v2" gorm:"column:v2"`
	V3     bool     `json:"v3" gorm:"column:v3"`
	Status LPStatus `json:"status" gorm:"column:status;size:8;index"`
}

func (l LPInfo) HasLiquidity() bool {
	return l.Status == LPStatusYes
}

// MarketData comes from an external price aggregator.
type MarketData struct {
	PriceUSD  decimal.Decimal `json:"price_usd" gorm:"column:price_usd;type:decimal(38,18);default:0"`
	Volume24h decimal.Decimal `json:"volume_24h" gorm:"column:volume_24h;type:decimal(38,18);default:0"`
	Liquidity decimal.Decimal `json:"liquidity" gorm:"column:liquidity;type:decimal(38,18);default:0"`
	Dex       string          `json:"dex" gorm:"column:name;size:64"`
}

func (m MarketData) Present() bool {
	return m.Dex != ""
}

func (TokenDeployment) TableName() string {
	return "token_deployments"
}
