package models

import "time"

// ScanRun is one row of the append-only scan log.
type ScanRun struct {
	ID        string `json:"id" gorm:"column:id;primaryKey;size:36"`
	Chain     string `json:"chain" gorm:"column:chain;size:32;index:idx_scan_runs_chain_time,priority:1"`
	FromBlock uint64 `json:"from_block" gorm:"column:from_block"`
	ToBlock   uint64 `json:"to_block" gorm:"column:to_block"`
	// BlocksScanned is the number of blocks attempted, BlocksFailed the ones skipped.
	BlocksScanned       int     `json:"blocks_scanned" gorm:"column:blocks_scanned"`
	BlocksFailed        int     `json:"blocks_failed" gorm:"column:blocks_failed"`
	ContractsFound      int     `json:"contracts_found" gorm:"column:contracts_found"`
	TokensFound         int     `json:"tokens_found" gorm:"column:tokens_found"`
	TokensWithLiquidity int     `json:"lp_contracts" gorm:"column:tokens_with_liquidity"`
	SuccessRate         float64 `json:"success_rate" gorm:"column:success_rate"`
	DurationMs          int64   `json:"duration_ms" gorm:"column:duration_ms"`
	// ErrorMessage is set when the scan could not run.
	ErrorMessage string    `json:"error_message,omitempty" gorm:"column:error_message;type:text"`
	ScanTime     time.Time `json:"scan_time" gorm:"column:scan_time;index:idx_scan_runs_chain_time,priority:2"`
}

func (ScanRun) TableName() string {
	return "scan_runs"
}
