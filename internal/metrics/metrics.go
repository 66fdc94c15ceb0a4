package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPC pool
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "rpc",
		Name:      "provider_failures_total",
		Help:      "Liveness probe or dial failures per endpoint",
	}, []string{"chain", "endpoint"})

	ProviderSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "rpc",
		Name:      "provider_switches_total",
		Help:      "Number of times a new endpoint was selected for a chain",
	}, []string{"chain"})

	ProviderUnavailable = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "rpc",
		Name:      "provider_unavailable_total",
		Help:      "Requests that found no live endpoint",
	}, []string{"chain"})

	RateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Batches that had to wait for the per-chain rate limiter",
	}, []string{"chain"})

	// Scanner
	BlocksScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "scanner",
		Name:      "blocks_scanned_total",
		Help:      "Blocks fetched successfully",
	}, []string{"chain"})

	BlockErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "scanner",
		Name:      "block_errors_total",
		Help:      "Blocks skipped because they could not be fetched",
	}, []string{"chain"})

	TokensDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "scanner",
		Name:      "tokens_discovered_total",
		Help:      "Token deployments found, partitioned by liquidity status",
	}, []string{"chain", "lp_status"})

	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "explorer",
		Subsystem: "scanner",
		Name:      "scan_duration_seconds",
		Help:      "Duration of a block range scan",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"chain"})

	// Cache
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Result cache lookups by purpose and outcome",
	}, []string{"purpose", "result"})

	// Persistence
	PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "repository",
		Name:      "errors_total",
		Help:      "Swallowed persistence errors",
	}, []string{"operation"})

	// Notifications
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "notificator",
		Name:      "sent_total",
		Help:      "Notifications delivered per channel and status",
	}, []string{"channel", "status"})

	// API
	APIRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "explorer",
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-IP rate limiter",
	})
)
