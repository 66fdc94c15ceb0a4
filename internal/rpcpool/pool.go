package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/blockchain"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/chains"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metrics"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

var ErrNoProviderAvailable = errors.New("no provider available")

const (
	// An endpoint with more than maxFailures failures is skipped until failureCooldown
	// has passed since its last failure.
	maxFailures     = 3
	failureCooldown = 5 * time.Minute

	defaultProbeTimeout = 10 * time.Second
	// A client dropped after a failed probe stays open this long so scans
	// that already hold it can finish their in-flight calls.
	defaultRetireGrace = time.Minute
)

// Dialer opens a client for a single endpoint URL.
type Dialer func(ctx context.Context, url string) (blockchain.Client, error)

// EndpointState is the failure bookkeeping of one endpoint.
type EndpointState struct {
	URL         string    `json:"url"`
	Priority    int       `json:"priority"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	Active      bool      `json:"active"`
}

type chainState struct {
	mu        sync.Mutex
	endpoints []*EndpointState
	client    blockchain.Client
	active    *EndpointState
	limiter   *Limiter
}

// Pool hands out live clients per chain and fails over between endpoints.
type Pool struct {
	logger       *logger.Logger
	registry     *chains.Registry
	dial         Dialer
	now          func() time.Time
	probeTimeout time.Duration
	rateLimit    int
	retireGrace  time.Duration

	mu     sync.Mutex
	states map[string]*chainState

	retiredMu sync.Mutex
	retired   map[blockchain.Client]*time.Timer
}

type Option func(*Pool)

func WithDialer(dial Dialer) Option {
	return func(p *Pool) { p.dial = dial }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

func WithProbeTimeout(timeout time.Duration) Option {
	return func(p *Pool) { p.probeTimeout = timeout }
}

// WithRetireGrace sets how long a dropped client stays open before it is closed.
func WithRetireGrace(grace time.Duration) Option {
	return func(p *Pool) { p.retireGrace = grace }
}

// WithRateLimit sets the number of RPC bursts allowed per minute per chain.
// Zero disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(p *Pool) { p.rateLimit = perMinute }
}

func New(logger *logger.Logger, registry *chains.Registry, opts ...Option) *Pool {
	p := &Pool{
		logger:       logger,
		registry:     registry,
		now:          time.Now,
		probeTimeout: defaultProbeTimeout,
		rateLimit:    30,
		retireGrace:  defaultRetireGrace,
		states:       make(map[string]*chainState),
		retired:      make(map[blockchain.Client]*time.Timer),
		dial: func(ctx context.Context, url string) (blockchain.Client, error) {
			return blockchain.Dial(ctx, url)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) state(chain string) (*chainState, string, error) {
	cfg, err := p.registry.Get(chain)
	if err != nil {
		return nil, "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.states[cfg.Name]; ok {
		return st, cfg.Name, nil
	}
	st := &chainState{limiter: NewLimiter(p.rateLimit, cfg.Name)}
	for _, e := range cfg.SortedEndpoints() {
		st.endpoints = append(st.endpoints, &EndpointState{URL: e.URL, Priority: e.Priority})
	}
	p.states[cfg.Name] = st
	return st, cfg.Name, nil
}

// GetClient returns a client that just answered a liveness probe, or
// ErrNoProviderAvailable when every endpoint is down or cooling off.
func (p *Pool) GetClient(ctx context.Context, chain string) (blockchain.Client, error) {
	st, name, err := p.state(chain)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.client != nil {
		err := p.probe(ctx, st.client)
		if err == nil {
			return st.client, nil
		}
		p.logger.Warn("cached rpc client failed liveness probe", "chain", name, "endpoint", st.active.URL, "error", err)
		p.recordFailure(name, st.active)
		p.retire(st.client)
		st.client = nil
		st.active = nil
	}

	for _, endpoint := range st.endpoints {
		if p.coolingOff(endpoint) {
			p.logger.Debug("skipping rpc endpoint", "chain", name, "endpoint", endpoint.URL, "failures", endpoint.Failures)
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		client, err := p.connect(ctx, endpoint.URL)
		if err != nil {
			p.logger.Warn("rpc endpoint unavailable", "chain", name, "endpoint", endpoint.URL, "error", err)
			p.recordFailure(name, endpoint)
			continue
		}

		endpoint.Failures = 0
		endpoint.LastFailure = time.Time{}
		st.client = client
		st.active = endpoint
		metrics.ProviderSwitches.WithLabelValues(name).Inc()
		p.logger.Info("connected to rpc endpoint", "chain", name, "endpoint", endpoint.URL)
		return client, nil
	}

	metrics.ProviderUnavailable.WithLabelValues(name).Inc()
	return nil, fmt.Errorf("%w for chain %s", ErrNoProviderAvailable, name)
}

// retire closes a dropped client once the grace period has passed. Other
// callers may still be using it.
func (p *Pool) retire(client blockchain.Client) {
	p.retiredMu.Lock()
	defer p.retiredMu.Unlock()
	if _, ok := p.retired[client]; ok {
		return
	}
	p.retired[client] = time.AfterFunc(p.retireGrace, func() {
		p.retiredMu.Lock()
		delete(p.retired, client)
		p.retiredMu.Unlock()
		client.Close()
	})
}

func (p *Pool) connect(ctx context.Context, url string) (blockchain.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	client, err := p.dial(dialCtx, url)
	if err != nil {
		return nil, err
	}
	if err := p.probe(ctx, client); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (p *Pool) probe(ctx context.Context, client blockchain.Client) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	_, err := client.BlockNumber(probeCtx)
	return err
}

func (p *Pool) coolingOff(endpoint *EndpointState) bool {
	return endpoint.Failures > maxFailures && p.now().Sub(endpoint.LastFailure) < failureCooldown
}

func (p *Pool) recordFailure(chain string, endpoint *EndpointState) {
	if endpoint == nil {
		return
	}
	endpoint.Failures++
	endpoint.LastFailure = p.now()
	metrics.ProviderFailures.WithLabelValues(chain, endpoint.URL).Inc()
}

// Limiter returns the per-chain rate limiter.
func (p *Pool) Limiter(chain string) (*Limiter, error) {
	st, _, err := p.state(chain)
	if err != nil {
		return nil, err
	}
	return st.limiter, nil
}

// Endpoints returns a snapshot of the endpoint bookkeeping for a chain.
func (p *Pool) Endpoints(chain string) ([]EndpointState, error) {
	st, _, err := p.state(chain)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	snapshot := make([]EndpointState, 0, len(st.endpoints))
	for _, e := range st.endpoints {
		s := *e
		s.Active = e == st.active
		snapshot = append(snapshot, s)
	}
	return snapshot, nil
}

// Close closes every cached and retired client.
func (p *Pool) Close() {
	p.retiredMu.Lock()
	for client, timer := range p.retired {
		if timer.Stop() {
			client.Close()
		}
		delete(p.retired, client)
	}
	p.retiredMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, st := range p.states {
		st.mu.Lock()
		if st.client != nil {
			st.client.Close()
			st.client = nil
			st.active = nil
		}
		st.mu.Unlock()
	}
}
