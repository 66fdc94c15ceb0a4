package chains

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownChain   = errors.New("unknown chain")
	ErrMissingFactory = errors.New("missing factory address")
)

// Endpoint is a JSON-RPC URL with a static priority. Higher priority endpoints are tried first.
type Endpoint struct {
	URL      string `json:"url" yaml:"url"`
	Priority int    `json:"priority" yaml:"priority"`
}

// ChainConfig is the static configuration of one chain. Values are copied out of the
// registry so callers can never mutate the process-wide configuration.
type ChainConfig struct {
	Name          string         `json:"name"`
	ChainID       int64          `json:"chain_id"`
	RPCEndpoints  []Endpoint     `json:"-"`
	ExplorerURL   string         `json:"explorer_url"`
	WrappedNative common.Address `json:"wrapped_native"`
	V2Factory     common.Address `json:"v2_factory"`
	V3Factory     common.Address `json:"v3_factory"`
	IsOpStack     bool           `json:"is_op_stack"`
}

// Validate reports configuration problems that make a chain unscannable.
func (c ChainConfig) Validate() error {
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("chain %s has no rpc endpoints", c.Name)
	}
	if c.WrappedNative == (common.Address{}) {
		return fmt.Errorf("chain %s: wrapped native: %w", c.Name, ErrMissingFactory)
	}
	if c.V2Factory == (common.Address{}) {
		return fmt.Errorf("chain %s: v2 factory: %w", c.Name, ErrMissingFactory)
	}
	if c.V3Factory == (common.Address{}) {
		return fmt.Errorf("chain %s: v3 factory: %w", c.Name, ErrMissingFactory)
	}
	return nil
}

// SortedEndpoints returns the endpoints ordered by descending priority.
// Endpoints with equal priority keep their configured order.
func (c ChainConfig) SortedEndpoints() []Endpoint {
	endpoints := make([]Endpoint, len(c.RPCEndpoints))
	copy(endpoints, c.RPCEndpoints)
	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].Priority > endpoints[j].Priority
	})
	return endpoints
}

func (c ChainConfig) TxURL(hash string) string {
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + hash
}

func (c ChainConfig) AddressURL(address string) string {
	return strings.TrimRight(c.ExplorerURL, "/") + "/address/" + address
}

func (c ChainConfig) clone() ChainConfig {
	c.RPCEndpoints = append([]Endpoint(nil), c.RPCEndpoints...)
	return c
}

// Registry holds the immutable set of configured chains.
type Registry struct {
	chains map[string]ChainConfig
	names  []string
}

// NewRegistry builds a registry from the given chain configurations.
func NewRegistry(configs ...ChainConfig) (*Registry, error) {
	r := &Registry{chains: make(map[string]ChainConfig, len(configs))}
	for _, cfg := range configs {
		name := strings.ToLower(strings.TrimSpace(cfg.Name))
		if name == "" {
			return nil, fmt.Errorf("chain name cannot be empty")
		}
		if _, exists := r.chains[name]; exists {
			return nil, fmt.Errorf("duplicate chain %s", name)
		}
		cfg.Name = name
		r.chains[name] = cfg.clone()
		r.names = append(r.names, name)
	}
	return r, nil
}

// Get returns a copy of the configuration for the named chain.
func (r *Registry) Get(name string) (ChainConfig, error) {
	cfg, ok := r.chains[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %s", ErrUnknownChain, name)
	}
	return cfg.clone(), nil
}

// Names returns chain names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) All() []ChainConfig {
	all := make([]ChainConfig, 0, len(r.names))
	for _, name := range r.names {
		all = append(all, r.chains[name].clone())
	}
	return all
}
