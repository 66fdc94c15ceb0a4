package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

const (
	DefaultTokenLimit          = 100
	DefaultScanHistoryLimit    = 100
	DefaultDeployerLimit       = 50
	DefaultScanHistoryPerChain = 1000
)

// SQLDB is the gorm backed repository used with PostgreSQL and MySQL.
type SQLDB struct {
	logger *logger.Logger
	// historyLimit is the number of scan runs kept per chain.
	historyLimit int

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, historyLimit int, logger *logger.Logger) (*SQLDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)
	return NewPostgresDBFromDSN(dsn, historyLimit, logger)
}

func NewPostgresDBFromDSN(dsn string, historyLimit int, logger *logger.Logger) (*SQLDB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	store, err := newSQLDB(db, historyLimit, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return store, nil
}

// newGormLogger suppresses "record not found" messages and only logs slow queries and errors.
func newGormLogger() gormLogger.Interface {
	return gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
}

func newSQLDB(db *gorm.DB, historyLimit int, logger *logger.Logger) (*SQLDB, error) {
	if err := db.AutoMigrate(&models.TokenDeployment{}, &models.DeployerStats{}, &models.ScanRun{}, &models.Subscription{}, &models.AppLock{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	if historyLimit <= 0 {
		historyLimit = DefaultScanHistoryPerChain
	}
	return &SQLDB{Conn: db, logger: logger, historyLimit: historyLimit}, nil
}

func (db *SQLDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *SQLDB) SaveTokenDeployment(token *models.TokenDeployment) (bool, error) {
	created := false
	err := db.Conn.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		row := *token
		row.ID = 0
		row.CreatedAt, row.UpdatedAt = now, now

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain"}, {Name: "contract_address"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("failed to insert token deployment: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			created = true
			return addDeployerToken(tx, token, now)
		}
		return refreshTokenDeployment(tx, token)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// addDeployerToken counts a newly inserted token in the deployer statistics.
func addDeployerToken(tx *gorm.DB, token *models.TokenDeployment, now time.Time) error {
	var successful int64
	if token.LPInfo.HasLiquidity() {
		successful = 1
	}
	stats := models.DeployerStats{
		Deployer:         token.Deployer,
		Chain:            token.Chain,
		TokenCount:       1,
		SuccessfulTokens: successful,
		TotalLiquidity:   token.DexData.Liquidity,
		FirstSeen:        token.Timestamp,
		LastSeen:         token.Timestamp,
		UpdatedAt:        now,
	}
	stats.RecomputeSuccessRate()

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "deployer"}, {Name: "chain"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"token_count":       gorm.Expr("deployer_stats.token_count + 1"),
			"successful_tokens": gorm.Expr("deployer_stats.successful_tokens + ?", successful),
			"total_liquidity":   gorm.Expr("deployer_stats.total_liquidity + ?", token.DexData.Liquidity),
			"updated_at":        now,
		}),
	}).Create(&stats).Error
	if err != nil {
		return fmt.Errorf("failed to upsert deployer stats: %w", err)
	}

	q := deployerQuery(tx, token.Deployer, token.Chain)
	if err := q.Where("last_seen < ?", token.Timestamp).Update("last_seen", token.Timestamp).Error; err != nil {
		return fmt.Errorf("failed to update deployer last seen: %w", err)
	}
	q = deployerQuery(tx, token.Deployer, token.Chain)
	if err := q.Where("first_seen > ?", token.Timestamp).Update("first_seen", token.Timestamp).Error; err != nil {
		return fmt.Errorf("failed to update deployer first seen: %w", err)
	}
	return recomputeSuccessRate(tx, token.Deployer, token.Chain)
}

// refreshTokenDeployment updates the mutable fields of an existing token.
// Provenance and metadata stay as first seen and LP status is never demoted from YES.
func refreshTokenDeployment(tx *gorm.DB, token *models.TokenDeployment) error {
	status := token.LPInfo.Status
	res := tokenQuery(tx, token).Where("lp_status <> ?", models.LPStatusYes).Update("lp_status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update token lp status: %w", res.Error)
	}
	promoted := status == models.LPStatusYes && res.RowsAffected == 1

	updates := map[string]interface{}{}
	if token.LPInfo.V2 {
		updates["lp_v2"] = true
	}
	if token.LPInfo.V3 {
		updates["lp_v3"] = true
	}
	if token.DexData.Present() {
		updates["dex_price_usd"] = token.DexData.PriceUSD
		updates["dex_volume_24h"] = token.DexData.Volume24h
		updates["dex_liquidity"] = token.DexData.Liquidity
		updates["dex_name"] = token.DexData.Dex
	}
	if len(updates) > 0 {
		if err := tokenQuery(tx, token).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to refresh token deployment: %w", err)
		}
	}

	if !promoted {
		return nil
	}
	// the stored deployer is the one credited, not the rediscovering sender
	var stored models.TokenDeployment
	if err := tokenQuery(tx, token).Select("deployer").Take(&stored).Error; err != nil {
		return fmt.Errorf("failed to load token deployer: %w", err)
	}
	err := deployerQuery(tx, stored.Deployer, token.Chain).Update("successful_tokens", gorm.Expr("successful_tokens + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to promote deployer stats: %w", err)
	}
	return recomputeSuccessRate(tx, stored.Deployer, token.Chain)
}

func recomputeSuccessRate(tx *gorm.DB, deployer, chain string) error {
	err := deployerQuery(tx, deployer, chain).Where("token_count > 0").
		Update("success_rate", gorm.Expr("successful_tokens * 100.0 / token_count")).Error
	if err != nil {
		return fmt.Errorf("failed to recompute success rate: %w", err)
	}
	return nil
}

func tokenQuery(tx *gorm.DB, token *models.TokenDeployment) *gorm.DB {
	return tx.Model(&models.TokenDeployment{}).Where("chain = ? AND contract_address = ?", token.Chain, token.ContractAddress)
}

func deployerQuery(tx *gorm.DB, deployer, chain string) *gorm.DB {
	return tx.Model(&models.DeployerStats{}).Where("deployer = ? AND chain = ?", deployer, chain)
}

func (db *SQLDB) GetTokenDeployments(filter models.TokenFilter) ([]*models.TokenDeployment, error) {
	q := db.Conn.Model(&models.TokenDeployment{})
	if filter.Chain != "" {
		q = q.Where("chain = ?", filter.Chain)
	}
	if filter.IsOpStack != nil {
		q = q.Where("is_op_stack = ?", *filter.IsOpStack)
	}
	if filter.HasLiquidity != nil {
		if *filter.HasLiquidity {
			q = q.Where("lp_status = ?", models.LPStatusYes)
		} else {
			q = q.Where("lp_status <> ?", models.LPStatusYes)
		}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultTokenLimit
	}

	var tokens []*models.TokenDeployment
	err := q.Order("deployed_at DESC").Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get token deployments: %w", err)
	}
	return tokens, nil
}

func (db *SQLDB) GetTokenDeployment(chain, address string) (*models.TokenDeployment, error) {
	var token models.TokenDeployment
	err := db.Conn.Where("chain = ? AND contract_address = ?", chain, address).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token deployment: %w", err)
	}
	return &token, nil
}

func (db *SQLDB) GetRecentActivity(since time.Time, limit int) ([]*models.TokenDeployment, error) {
	if limit <= 0 {
		limit = DefaultTokenLimit
	}
	var tokens []*models.TokenDeployment
	err := db.Conn.Where("deployed_at >= ?", since).Order("deployed_at DESC").Order("id DESC").Limit(limit).Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activity: %w", err)
	}
	return tokens, nil
}

func (db *SQLDB) SaveScanRun(run *models.ScanRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("failed to save scan run: %w", err)
		}

		var cutoff []time.Time
		err := tx.Model(&models.ScanRun{}).Where("chain = ?", run.Chain).
			Order("scan_time DESC").Offset(db.historyLimit).Limit(1).Pluck("scan_time", &cutoff).Error
		if err != nil {
			return fmt.Errorf("failed to find scan history cutoff: %w", err)
		}
		if len(cutoff) == 0 {
			return nil
		}
		err = tx.Where("chain = ? AND scan_time <= ?", run.Chain, cutoff[0]).Delete(&models.ScanRun{}).Error
		if err != nil {
			return fmt.Errorf("failed to prune scan history: %w", err)
		}
		return nil
	})
}

func (db *SQLDB) GetScanHistory(chain string, limit int) ([]*models.ScanRun, error) {
	if limit <= 0 {
		limit = DefaultScanHistoryLimit
	}
	q := db.Conn.Model(&models.ScanRun{})
	if chain != "" {
		q = q.Where("chain = ?", chain)
	}
	var runs []*models.ScanRun
	if err := q.Order("scan_time DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	return runs, nil
}

// deployerSortColumns maps the public sort keys to columns.
var deployerSortColumns = map[string]string{
	models.SortByDeployments: "token_count",
	models.SortBySuccessRate: "success_rate",
	models.SortByLiquidity:   "total_liquidity",
}

func (db *SQLDB) GetDeployerStats(filter models.DeployerFilter) ([]*models.DeployerStats, error) {
	column, ok := deployerSortColumns[filter.SortBy]
	if !ok {
		column = deployerSortColumns[models.SortByDeployments]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultDeployerLimit
	}

	q := db.Conn.Model(&models.DeployerStats{})
	if filter.Chain != "" {
		q = q.Where("chain = ?", filter.Chain)
	}
	if filter.MinDeployments > 0 {
		q = q.Where("token_count >= ?", filter.MinDeployments)
	}

	var stats []*models.DeployerStats
	if err := q.Order(column + " DESC").Order("deployer").Limit(limit).Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to get deployer stats: %w", err)
	}
	return stats, nil
}

func (db *SQLDB) GetChainStats() (*models.ChainStats, error) {
	stats := &models.ChainStats{}
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalTokens, db.Conn.Model(&models.TokenDeployment{})},
		{&stats.TokensWithLiquidity, db.Conn.Model(&models.TokenDeployment{}).Where("lp_status = ?", models.LPStatusYes)},
		{&stats.TotalDeployers, db.Conn.Model(&models.DeployerStats{})},
		{&stats.TotalScans, db.Conn.Model(&models.ScanRun{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count chain stats: %w", err)
		}
	}

	err := db.Conn.Model(&models.TokenDeployment{}).
		Select("chain, COUNT(*) AS tokens, SUM(CASE WHEN lp_status = ? THEN 1 ELSE 0 END) AS with_liquidity", models.LPStatusYes).
		Group("chain").Order("tokens DESC").Scan(&stats.Chains).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get per-chain stats: %w", err)
	}
	return stats, nil
}

func (db *SQLDB) AddSubscription(sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if err := db.Conn.Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (db *SQLDB) GetSubscriptions() ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := db.Conn.Order("created_at").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to get subscriptions: %w", err)
	}
	return subs, nil
}

func (db *SQLDB) RemoveSubscription(id string) error {
	res := db.Conn.Where("id = ?", id).Delete(&models.Subscription{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *SQLDB) BindTelegramChat(username, chatID string) (int64, error) {
	res := db.Conn.Model(&models.Subscription{}).Where("telegram_username = ?", username).Update("telegram_chat_id", chatID)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to bind telegram chat: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (db *SQLDB) MarkSubscriptionNotified(id string, at time.Time) error {
	if err := db.Conn.Model(&models.Subscription{}).Where("id = ?", id).Update("last_notified", at).Error; err != nil {
		return fmt.Errorf("failed to mark subscription notified: %w", err)
	}
	return nil
}

func (db *SQLDB) ClearTokenDeployments() error {
	return db.clear(&models.TokenDeployment{}, "token deployments")
}

func (db *SQLDB) ClearScanHistory() error {
	return db.clear(&models.ScanRun{}, "scan history")
}

func (db *SQLDB) ClearDeployerStats() error {
	return db.clear(&models.DeployerStats{}, "deployer stats")
}

func (db *SQLDB) clear(model interface{}, what string) error {
	if err := db.Conn.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
		return fmt.Errorf("failed to clear %s: %w", what, err)
	}
	return nil
}

func (db *SQLDB) AcquireLock(name, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	lock := models.AppLock{
		LockName:   name,
		InstanceID: instanceID,
		AcquiredAt: now.UnixMilli(),
		ExpiresAt:  now.Add(ttl).UnixMilli(),
	}

	acquired := false
	err := db.Conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AppLock{}).
			Where("lock_name = ? AND (expires_at < ? OR instance_id = ?)", name, lock.AcquiredAt, instanceID).
			Updates(map[string]interface{}{
				"instance_id": instanceID,
				"acquired_at": lock.AcquiredAt,
				"expires_at":  lock.ExpiresAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			acquired = true
			return nil
		}
		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
		if res.Error != nil {
			return res.Error
		}
		acquired = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	return acquired, nil
}

func (db *SQLDB) ExportData() (*models.DataExport, error) {
	data := &models.DataExport{ExportedAt: time.Now().UTC()}
	for _, target := range []struct {
		dest  interface{}
		order string
	}{
		{&data.TokenDeployments, "id"},
		{&data.ScanHistory, "scan_time"},
		{&data.DeployerStats, "chain, deployer"},
		{&data.Subscriptions, "created_at"},
	} {
		if err := db.Conn.Order(target.order).Find(target.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to export data: %w", err)
		}
	}
	return data, nil
}

// ImportData replaces tokens, scan history and deployer stats with the export.
// Subscriptions are merged by ID.
func (db *SQLDB) ImportData(data *models.DataExport) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []interface{}{&models.TokenDeployment{}, &models.ScanRun{}, &models.DeployerStats{}} {
			if err := all.Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clear before import: %w", err)
			}
		}

		for _, token := range data.TokenDeployments {
			token.ID = 0
		}
		if len(data.TokenDeployments) > 0 {
			if err := tx.CreateInBatches(data.TokenDeployments, 500).Error; err != nil {
				return fmt.Errorf("failed to import token deployments: %w", err)
			}
		}
		if len(data.ScanHistory) > 0 {
			if err := tx.CreateInBatches(data.ScanHistory, 500).Error; err != nil {
				return fmt.Errorf("failed to import scan history: %w", err)
			}
		}
		if len(data.DeployerStats) > 0 {
			if err := tx.CreateInBatches(data.DeployerStats, 500).Error; err != nil {
				return fmt.Errorf("failed to import deployer stats: %w", err)
			}
		}
		if len(data.Subscriptions) > 0 {
			err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(data.Subscriptions, 500).Error
			if err != nil {
				return fmt.Errorf("failed to import subscriptions: %w", err)
			}
		}
		return nil
	})
}
