package chains

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// chainOverride is one entry of the chains file. Empty fields keep the built-in value.
type chainOverride struct {
	Name          string     `yaml:"name"`
	ChainID       int64      `yaml:"chain_id"`
	RPCEndpoints  []Endpoint `yaml:"rpc_endpoints"`
	ExplorerURL   string     `yaml:"explorer_url"`
	WrappedNative string     `yaml:"wrapped_native"`
	V2Factory     string     `yaml:"v2_factory"`
	V3Factory     string     `yaml:"v3_factory"`
	IsOpStack     *bool      `yaml:"is_op_stack"`
}

type chainsFile struct {
	Chains []chainOverride `yaml:"chains"`
}

// LoadFile reads a YAML chains file and merges it over the given base set.
// Unknown chain names are added as new chains.
func LoadFile(path string, base []ChainConfig) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chains file: %w", err)
	}
	return Parse(data, base)
}

// Parse merges YAML encoded chain overrides over the given base set.
func Parse(data []byte, base []ChainConfig) (*Registry, error) {
	var file chainsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse chains file: %w", err)
	}

	merged := make([]ChainConfig, 0, len(base)+len(file.Chains))
	index := make(map[string]int, len(base))
	for _, cfg := range base {
		index[strings.ToLower(cfg.Name)] = len(merged)
		merged = append(merged, cfg.clone())
	}

	for _, o := range file.Chains {
		name := strings.ToLower(strings.TrimSpace(o.Name))
		if name == "" {
			return nil, fmt.Errorf("chains file: entry without name")
		}
		i, ok := index[name]
		if !ok {
			index[name] = len(merged)
			merged = append(merged, ChainConfig{Name: name})
			i = index[name]
		}
		if err := o.apply(&merged[i]); err != nil {
			return nil, fmt.Errorf("chains file: %s: %w", name, err)
		}
	}

	return NewRegistry(merged...)
}

func (o chainOverride) apply(cfg *ChainConfig) error {
	if o.ChainID != 0 {
		cfg.ChainID = o.ChainID
	}
	if len(o.RPCEndpoints) > 0 {
		cfg.RPCEndpoints = append([]Endpoint(nil), o.RPCEndpoints...)
	}
	if o.ExplorerURL != "" {
		cfg.ExplorerURL = o.ExplorerURL
	}
	if o.IsOpStack != nil {
		cfg.IsOpStack = *o.IsOpStack
	}
	for _, f := range []struct {
		label string
		value string
		dst   *common.Address
	}{
		{"wrapped_native", o.WrappedNative, &cfg.WrappedNative},
		{"v2_factory", o.V2Factory, &cfg.V2Factory},
		{"v3_factory", o.V3Factory, &cfg.V3Factory},
	} {
		if f.value == "" {
			continue
		}
		if !common.IsHexAddress(f.value) {
			return fmt.Errorf("invalid %s address %q", f.label, f.value)
		}
		*f.dst = common.HexToAddress(f.value)
	}
	return nil
}
