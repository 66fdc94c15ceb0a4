package explorer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/validation"
)

const defaultActivityHours = 24

const (
	ClearTokens        = "tokens"
	ClearScanHistory   = "scan_history"
	ClearDeployerStats = "deployer_stats"
	ClearAll           = "all"
)

func (e *Explorer) Tokens(filter models.TokenFilter) ([]*models.TokenDeployment, error) {
	if filter.Chain != "" {
		cfg, err := e.registry.Get(filter.Chain)
		if err != nil {
			return nil, err
		}
		filter.Chain = cfg.Name
	}
	return e.repo.GetTokenDeployments(filter)
}

// Token looks up one deployment. The address may be given in any case.
func (e *Explorer) Token(chain, address string) (*models.TokenDeployment, error) {
	cfg, err := e.registry.Get(chain)
	if err != nil {
		return nil, err
	}
	normalized, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return e.repo.GetTokenDeployment(cfg.Name, normalized)
}

func (e *Explorer) ScanHistory(chain string, limit int) ([]*models.ScanRun, error) {
	if chain != "" {
		cfg, err := e.registry.Get(chain)
		if err != nil {
			return nil, err
		}
		chain = cfg.Name
	}
	return e.repo.GetScanHistory(chain, limit)
}

func (e *Explorer) Deployers(filter models.DeployerFilter) ([]*models.DeployerStats, error) {
	switch filter.SortBy {
	case "", models.SortByDeployments, models.SortBySuccessRate, models.SortByLiquidity:
	default:
		return nil, fmt.Errorf("%w: unknown sort key %q", ErrInvalidArgument, filter.SortBy)
	}
	if filter.Chain != "" {
		cfg, err := e.registry.Get(filter.Chain)
		if err != nil {
			return nil, err
		}
		filter.Chain = cfg.Name
	}
	return e.repo.GetDeployerStats(filter)
}

func (e *Explorer) Stats() (*models.ChainStats, error) {
	return e.repo.GetChainStats()
}

// RecentActivity returns tokens deployed within the last hours, 24 by default.
func (e *Explorer) RecentActivity(hours int) ([]*models.TokenDeployment, error) {
	if hours <= 0 {
		hours = defaultActivityHours
	}
	return e.repo.GetRecentActivity(e.now().Add(-time.Duration(hours)*time.Hour), 0)
}

// Subscribe validates and stores a subscription. Patterns must compile and at
// least one delivery channel is required.
func (e *Explorer) Subscribe(sub *models.Subscription) error {
	if !sub.HasChannel() {
		return fmt.Errorf("%w: a webhook url, email or telegram username is required", ErrInvalidSubscription)
	}
	for _, pattern := range []string{sub.NamePattern, sub.SymbolPattern} {
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return fmt.Errorf("%w: bad pattern %q: %s", ErrInvalidSubscription, pattern, err)
		}
	}
	if sub.MinLiquidity.IsNegative() {
		return fmt.Errorf("%w: min liquidity must not be negative", ErrInvalidSubscription)
	}
	for i, chain := range sub.Chains {
		cfg, err := e.registry.Get(chain)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidSubscription, err)
		}
		sub.Chains[i] = cfg.Name
	}
	sub.TelegramUsername = strings.TrimPrefix(sub.TelegramUsername, "@")
	sub.ID = ""
	sub.TelegramChatID = ""
	sub.CreatedAt = e.now().UTC()
	sub.LastNotified = nil
	return e.repo.AddSubscription(sub)
}

func (e *Explorer) Unsubscribe(id string) error {
	return e.repo.RemoveSubscription(id)
}

func (e *Explorer) Export() (*models.DataExport, error) {
	return e.repo.ExportData()
}

// Import replaces the stored data and drops cached scan listings.
func (e *Explorer) Import(data *models.DataExport) error {
	if err := e.repo.ImportData(data); err != nil {
		return err
	}
	e.scanCache.Clear()
	return nil
}

// Clear deletes one kind of stored data, or all of it.
func (e *Explorer) Clear(kind string) error {
	var clear []func() error
	switch kind {
	case ClearTokens:
		clear = append(clear, e.repo.ClearTokenDeployments)
	case ClearScanHistory:
		clear = append(clear, e.repo.ClearScanHistory)
	case ClearDeployerStats:
		clear = append(clear, e.repo.ClearDeployerStats)
	case ClearAll:
		clear = append(clear, e.repo.ClearTokenDeployments, e.repo.ClearScanHistory, e.repo.ClearDeployerStats)
	default:
		return fmt.Errorf("%w: unknown data kind %q", ErrInvalidArgument, kind)
	}
	for _, fn := range clear {
		if err := fn(); err != nil {
			return err
		}
	}
	e.scanCache.Clear()
	e.logger.Info("Cleared stored data", "kind", kind)
	return nil
}
