package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/cache"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/liquidity"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metadata"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metrics"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/rpcpool"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/scanner"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

var (
	ErrInvalidRange        = errors.New("invalid block range")
	ErrInvalidSubscription = errors.New("invalid subscription")
	ErrInvalidArgument     = errors.New("invalid argument")
	// ErrScanFailed marks a scan that was cancelled or could not fetch any block.
	ErrScanFailed = errors.New("scan failed")
)

const autoScanLock = "auto-scan"

// Config holds the tunables of the explorer service.
type Config struct {
	BatchSize    int
	CallTimeout  time.Duration
	DefaultRange uint64
	MaxRange     uint64
	ScanCacheTTL time.Duration
	GasCacheTTL  time.Duration

	// AutoScanChains are scanned every AutoScanInterval by Start.
	AutoScanChains   []string
	AutoScanInterval time.Duration
	// InstanceID identifies this process for the auto scan lease.
	InstanceID string
}

func (c *Config) setDefaults() {
	if c.DefaultRange == 0 {
		c.DefaultRange = 1000
	}
	if c.MaxRange == 0 {
		c.MaxRange = 10000
	}
	if c.ScanCacheTTL == 0 {
		c.ScanCacheTTL = 5 * time.Minute
	}
	if c.GasCacheTTL == 0 {
		c.GasCacheTTL = time.Minute
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.AutoScanInterval == 0 {
		c.AutoScanInterval = 5 * time.Minute
	}
	if c.InstanceID == "" {
		c.InstanceID = uuid.NewString()
	}
}

// Explorer is the main struct of the application.
// It wires the chain registry, the RPC pool, the scanner and the repository
// and serves all business logic.
type Explorer struct {
	logger *logger.Logger
	config Config

	registry *chains.Registry
	pool     *rpcpool.Pool
	scanner  *scanner.Scanner
	repo     models.Repository
	enricher models.PriceEnricher

	scanCache *cache.TTL[*models.ScanResponse]
	gasCache  *cache.TTL[*models.GasPrice]

	mu        sync.RWMutex
	listeners []models.TokenListener

	now func() time.Time
}

type Option func(*Explorer)

// WithPriceEnricher fills market data of tokens with liquidity before they are stored.
func WithPriceEnricher(enricher models.PriceEnricher) Option {
	return func(e *Explorer) { e.enricher = enricher }
}

// WithClock replaces the clock of the explorer and its caches.
func WithClock(now func() time.Time) Option {
	return func(e *Explorer) {
		e.now = now
		e.scanCache.WithClock(now)
		e.gasCache.WithClock(now)
	}
}

// NewExplorer creates a new Explorer instance
func NewExplorer(
	repo models.Repository,
	registry *chains.Registry,
	pool *rpcpool.Pool,
	logger *logger.Logger,
	config Config,
	opts ...Option,
) *Explorer {
	config.setDefaults()
	e := &Explorer{
		logger:    logger,
		config:    config,
		registry:  registry,
		pool:      pool,
		repo:      repo,
		scanCache: cache.NewTTL[*models.ScanResponse]("scan", config.ScanCacheTTL),
		gasCache:  cache.NewTTL[*models.GasPrice]("gas", config.GasCacheTTL),
		now:       time.Now,
	}
	e.scanner = scanner.New(
		logger.Named("scanner"),
		metadata.NewFetcher(logger.Named("metadata"), config.CallTimeout),
		liquidity.NewProber(logger.Named("liquidity"), config.CallTimeout),
		e,
		scanner.Config{BatchSize: config.BatchSize, CallTimeout: config.CallTimeout},
	)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddListener registers a listener for newly stored tokens.
func (e *Explorer) AddListener(l models.TokenListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Start runs the auto scan loop until ctx is cancelled. It returns at once when
// no chain is configured for auto scanning.
func (e *Explorer) Start(ctx context.Context) {
	if len(e.config.AutoScanChains) == 0 {
		return
	}
	e.logger.Info("Starting auto scan", "chains", e.config.AutoScanChains, "interval", e.config.AutoScanInterval)

	ticker := time.NewTicker(e.config.AutoScanInterval)
	defer ticker.Stop()
	for {
		e.autoScan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Explorer) autoScan(ctx context.Context) {
	// the lease outlives one interval so a healthy holder keeps it
	held, err := e.repo.AcquireLock(autoScanLock, e.config.InstanceID, 2*e.config.AutoScanInterval)
	if err != nil {
		e.logger.Error("Failed to acquire auto scan lock", "error", err)
		return
	}
	if !held {
		e.logger.Debug("Auto scan lock held by another instance")
		return
	}

	for _, chain := range e.config.AutoScanChains {
		if ctx.Err() != nil {
			return
		}
		resp, err := e.Scan(ctx, models.ScanRequest{Chain: chain})
		if err != nil {
			e.logger.Error("Auto scan failed", "chain", chain, "error", err)
			continue
		}
		e.logger.Info("Auto scan finished", "chain", chain, "from", resp.ScannedBlocks.From, "to", resp.ScannedBlocks.To, "tokens", len(resp.Tokens))
	}
}

// RecordToken is the persistence sink of the scanner. Failures are logged and
// never reach the scan.
func (e *Explorer) RecordToken(ctx context.Context, token *models.TokenDeployment) {
	if e.enricher != nil && token.LPInfo.HasLiquidity() {
		market, err := e.enricher.Lookup(ctx, token.Chain, token.ContractAddress)
		if err != nil {
			e.logger.Warn("Failed to enrich token", "chain", token.Chain, "address", token.ContractAddress, "error", err)
		} else if market != nil {
			token.DexData = *market
		}
	}

	created, err := e.repo.SaveTokenDeployment(token)
	if err != nil {
		metrics.PersistErrors.WithLabelValues("save_token").Inc()
		e.logger.Error("Failed to save token deployment", "chain", token.Chain, "address", token.ContractAddress, "error", err)
		return
	}
	if !created {
		return
	}

	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()
	for _, l := range listeners {
		go e.safeNotify(l, token)
	}
}

func (e *Explorer) safeNotify(l models.TokenListener, token *models.TokenDeployment) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Token listener panicked", "listener", fmt.Sprintf("%T", l), "panic", r)
		}
	}()
	l.OnTokenDiscovered(token)
}
