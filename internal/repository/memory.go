package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
)

type tokenKey struct {
	chain   string
	address string
}

type deployerKey struct {
	deployer string
	chain    string
}

// MemoryDB keeps everything in process memory. It follows the same upsert and
// pruning rules as SQLDB and is used for local runs and tests.
type MemoryDB struct {
	mu sync.RWMutex

	historyLimit int
	nextID       int64
	now          func() time.Time

	tokens        map[tokenKey]*models.TokenDeployment
	deployers     map[deployerKey]*models.DeployerStats
	scans         []*models.ScanRun
	subscriptions map[string]*models.Subscription
	locks         map[string]models.AppLock
}

func NewMemoryDB(historyLimit int) *MemoryDB {
	if historyLimit <= 0 {
		historyLimit = DefaultScanHistoryPerChain
	}
	return &MemoryDB{
		historyLimit:  historyLimit,
		now:           func() time.Time { return time.Now().UTC() },
		tokens:        make(map[tokenKey]*models.TokenDeployment),
		deployers:     make(map[deployerKey]*models.DeployerStats),
		subscriptions: make(map[string]*models.Subscription),
		locks:         make(map[string]models.AppLock),
	}
}

func (m *MemoryDB) Close() error { return nil }

func (m *MemoryDB) SaveTokenDeployment(token *models.TokenDeployment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := tokenKey{token.Chain, token.ContractAddress}
	existing, ok := m.tokens[key]
	if !ok {
		m.nextID++
		row := *token
		row.ID = m.nextID
		row.CreatedAt, row.UpdatedAt = now, now
		m.tokens[key] = &row
		m.addDeployerToken(&row, now)
		return true, nil
	}

	promoted := token.LPInfo.Status == models.LPStatusYes && existing.LPInfo.Status != models.LPStatusYes
	if existing.LPInfo.Status != models.LPStatusYes {
		existing.LPInfo.Status = token.LPInfo.Status
	}
	existing.LPInfo.V2 = existing.LPInfo.V2 || token.LPInfo.V2
	existing.LPInfo.V3 = existing.LPInfo.V3 || token.LPInfo.V3
	if token.DexData.Present() {
		existing.DexData = token.DexData
	}
	existing.UpdatedAt = now

	if promoted {
		if stats, ok := m.deployers[deployerKey{existing.Deployer, existing.Chain}]; ok {
			stats.SuccessfulTokens++
			stats.RecomputeSuccessRate()
			stats.UpdatedAt = now
		}
	}
	return false, nil
}

func (m *MemoryDB) addDeployerToken(token *models.TokenDeployment, now time.Time) {
	key := deployerKey{token.Deployer, token.Chain}
	stats, ok := m.deployers[key]
	if !ok {
		stats = &models.DeployerStats{
			Deployer:       token.Deployer,
			Chain:          token.Chain,
			TotalLiquidity: decimal.Zero,
			FirstSeen:      token.Timestamp,
			LastSeen:       token.Timestamp,
		}
		m.deployers[key] = stats
	}
	stats.TokenCount++
	if token.LPInfo.HasLiquidity() {
		stats.SuccessfulTokens++
	}
	stats.TotalLiquidity = stats.TotalLiquidity.Add(token.DexData.Liquidity)
	if token.Timestamp.Before(stats.FirstSeen) {
		stats.FirstSeen = token.Timestamp
	}
	if token.Timestamp.After(stats.LastSeen) {
		stats.LastSeen = token.Timestamp
	}
	stats.RecomputeSuccessRate()
	stats.UpdatedAt = now
}

// newestFirst orders by deployment time, then by insertion order.
func newestFirst(tokens []*models.TokenDeployment) {
	sort.Slice(tokens, func(i, j int) bool {
		if !tokens[i].Timestamp.Equal(tokens[j].Timestamp) {
			return tokens[i].Timestamp.After(tokens[j].Timestamp)
		}
		return tokens[i].ID > tokens[j].ID
	})
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (m *MemoryDB) GetTokenDeployments(filter models.TokenFilter) ([]*models.TokenDeployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.TokenDeployment
	for _, t := range m.tokens {
		if filter.Chain != "" && t.Chain != filter.Chain {
			continue
		}
		if filter.IsOpStack != nil && t.IsOpStack != *filter.IsOpStack {
			continue
		}
		if filter.HasLiquidity != nil && t.LPInfo.HasLiquidity() != *filter.HasLiquidity {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	newestFirst(out)

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultTokenLimit
	}
	return page(out, filter.Offset, limit), nil
}

func (m *MemoryDB) GetTokenDeployment(chain, address string) (*models.TokenDeployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[tokenKey{chain, address}]
	if !ok {
		return nil, ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *MemoryDB) GetRecentActivity(since time.Time, limit int) ([]*models.TokenDeployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.TokenDeployment
	for _, t := range m.tokens {
		if t.Timestamp.Before(since) {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	newestFirst(out)
	if limit <= 0 {
		limit = DefaultTokenLimit
	}
	return page(out, 0, limit), nil
}

func (m *MemoryDB) SaveScanRun(run *models.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	c := *run
	m.scans = append(m.scans, &c)

	var kept []*models.ScanRun
	count := 0
	for i := len(m.scans) - 1; i >= 0; i-- {
		s := m.scans[i]
		if s.Chain == run.Chain {
			count++
			if count > m.historyLimit {
				continue
			}
		}
		kept = append(kept, s)
	}
	// kept is newest first; store oldest first again
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	m.scans = kept
	return nil
}

func (m *MemoryDB) GetScanHistory(chain string, limit int) ([]*models.ScanRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultScanHistoryLimit
	}
	out := []*models.ScanRun{}
	for i := len(m.scans) - 1; i >= 0 && len(out) < limit; i-- {
		if chain != "" && m.scans[i].Chain != chain {
			continue
		}
		c := *m.scans[i]
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryDB) GetDeployerStats(filter models.DeployerFilter) ([]*models.DeployerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.DeployerStats
	for _, s := range m.deployers {
		if filter.Chain != "" && s.Chain != filter.Chain {
			continue
		}
		if s.TokenCount < filter.MinDeployments {
			continue
		}
		c := *s
		out = append(out, &c)
	}

	less := func(a, b *models.DeployerStats) int {
		switch filter.SortBy {
		case models.SortBySuccessRate:
			switch {
			case a.SuccessRate > b.SuccessRate:
				return -1
			case a.SuccessRate < b.SuccessRate:
				return 1
			}
		case models.SortByLiquidity:
			return -a.TotalLiquidity.Cmp(b.TotalLiquidity)
		default:
			switch {
			case a.TokenCount > b.TokenCount:
				return -1
			case a.TokenCount < b.TokenCount:
				return 1
			}
		}
		return 0
	}
	sort.Slice(out, func(i, j int) bool {
		if c := less(out[i], out[j]); c != 0 {
			return c < 0
		}
		return out[i].Deployer < out[j].Deployer
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultDeployerLimit
	}
	return page(out, 0, limit), nil
}

func (m *MemoryDB) GetChainStats() (*models.ChainStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.ChainStats{
		TotalDeployers: int64(len(m.deployers)),
		TotalScans:     int64(len(m.scans)),
		Chains:         []*models.ChainCount{},
	}
	perChain := map[string]*models.ChainCount{}
	for _, t := range m.tokens {
		stats.TotalTokens++
		c, ok := perChain[t.Chain]
		if !ok {
			c = &models.ChainCount{Chain: t.Chain}
			perChain[t.Chain] = c
			stats.Chains = append(stats.Chains, c)
		}
		c.Tokens++
		if t.LPInfo.HasLiquidity() {
			stats.TokensWithLiquidity++
			c.WithLiquidity++
		}
	}
	sort.Slice(stats.Chains, func(i, j int) bool {
		if stats.Chains[i].Tokens != stats.Chains[j].Tokens {
			return stats.Chains[i].Tokens > stats.Chains[j].Tokens
		}
		return stats.Chains[i].Chain < stats.Chains[j].Chain
	})
	return stats, nil
}

func (m *MemoryDB) AddSubscription(sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = m.now()
	}
	c := *sub
	m.subscriptions[sub.ID] = &c
	return nil
}

func (m *MemoryDB) GetSubscriptions() ([]*models.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryDB) RemoveSubscription(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscriptions[id]; !ok {
		return ErrNotFound
	}
	delete(m.subscriptions, id)
	return nil
}

func (m *MemoryDB) BindTelegramChat(username, chatID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, s := range m.subscriptions {
		if s.TelegramUsername == username {
			s.TelegramChatID = chatID
			n++
		}
	}
	return n, nil
}

func (m *MemoryDB) MarkSubscriptionNotified(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.subscriptions[id]; ok {
		s.LastNotified = &at
	}
	return nil
}

func (m *MemoryDB) ClearTokenDeployments() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = make(map[tokenKey]*models.TokenDeployment)
	return nil
}

func (m *MemoryDB) ClearScanHistory() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = nil
	return nil
}

func (m *MemoryDB) ClearDeployerStats() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployers = make(map[deployerKey]*models.DeployerStats)
	return nil
}

func (m *MemoryDB) AcquireLock(name, instanceID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.locks[name]; ok && held.InstanceID != instanceID && held.ExpiresAt >= now.UnixMilli() {
		return false, nil
	}
	m.locks[name] = models.AppLock{
		LockName:   name,
		InstanceID: instanceID,
		AcquiredAt: now.UnixMilli(),
		ExpiresAt:  now.Add(ttl).UnixMilli(),
	}
	return true, nil
}

func (m *MemoryDB) ExportData() (*models.DataExport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data := &models.DataExport{
		ExportedAt:       m.now(),
		TokenDeployments: []*models.TokenDeployment{},
		ScanHistory:      []*models.ScanRun{},
		DeployerStats:    []*models.DeployerStats{},
		Subscriptions:    []*models.Subscription{},
	}
	for _, t := range m.tokens {
		c := *t
		data.TokenDeployments = append(data.TokenDeployments, &c)
	}
	sort.Slice(data.TokenDeployments, func(i, j int) bool {
		return data.TokenDeployments[i].ID < data.TokenDeployments[j].ID
	})
	for _, s := range m.scans {
		c := *s
		data.ScanHistory = append(data.ScanHistory, &c)
	}
	for _, s := range m.deployers {
		c := *s
		data.DeployerStats = append(data.DeployerStats, &c)
	}
	sort.Slice(data.DeployerStats, func(i, j int) bool {
		a, b := data.DeployerStats[i], data.DeployerStats[j]
		if a.Chain != b.Chain {
			return a.Chain < b.Chain
		}
		return a.Deployer < b.Deployer
	})
	for _, s := range m.subscriptions {
		c := *s
		data.Subscriptions = append(data.Subscriptions, &c)
	}
	sort.Slice(data.Subscriptions, func(i, j int) bool {
		return data.Subscriptions[i].CreatedAt.Before(data.Subscriptions[j].CreatedAt)
	})
	return data, nil
}

func (m *MemoryDB) ImportData(data *models.DataExport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens = make(map[tokenKey]*models.TokenDeployment)
	m.deployers = make(map[deployerKey]*models.DeployerStats)
	m.scans = nil

	for _, t := range data.TokenDeployments {
		m.nextID++
		c := *t
		c.ID = m.nextID
		m.tokens[tokenKey{c.Chain, c.ContractAddress}] = &c
	}
	for _, s := range data.ScanHistory {
		c := *s
		m.scans = append(m.scans, &c)
	}
	sort.SliceStable(m.scans, func(i, j int) bool { return m.scans[i].ScanTime.Before(m.scans[j].ScanTime) })
	for _, s := range data.DeployerStats {
		c := *s
		m.deployers[deployerKey{c.Deployer, c.Chain}] = &c
	}
	for _, s := range data.Subscriptions {
		c := *s
		m.subscriptions[c.ID] = &c
	}
	return nil
}
