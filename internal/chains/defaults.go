package chains

import "github.com/ethereum/go-ethereum/common"

var (
	// Predeploy shared by every OP-Stack chain.
	opStackWETH = common.HexToAddress("0x4200000000000000000000000000000000000006")
	// Uniswap v3 factory deployed with the same address on most chains.
	canonicalV3Factory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
)

// DefaultChains returns the built-in chain set.
func DefaultChains() []ChainConfig {
	return []ChainConfig{
		{
			Name:    "base",
			ChainID: 8453,
			RPCEndpoints: []Endpoint{
				{URL: "https://mainnet.base.org", Priority: 1},
				{URL: "https://base.publicnode.com", Priority: 2},
				{URL: "https://base.meowrpc.com", Priority: 3},
			},
			ExplorerURL:   "https://basescan.org",
			WrappedNative: opStackWETH,
			V2Factory:     common.HexToAddress("0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"),
			V3Factory:     common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD"),
			IsOpStack:     true,
		},
		{
			Name:    "optimism",
			ChainID: 10,
			RPCEndpoints: []Endpoint{
				{URL: "https://mainnet.optimism.io", Priority: 1},
				{URL: "https://optimism.publicnode.com", Priority: 2},
				{URL: "https://optimism.drpc.org", Priority: 3},
			},
			ExplorerURL:   "https://optimistic.etherscan.io",
			WrappedNative: opStackWETH,
			V2Factory:     common.HexToAddress("0x0c3c1c532F1e39EdF36BE9Fe0bE1410313E074Bf"),
			V3Factory:     canonicalV3Factory,
			IsOpStack:     true,
		},
		{
			// No canonical Uniswap deployment; factories come from CHAINS_FILE.
			Name:          "mode",
			ChainID:       34443,
			RPCEndpoints:  []Endpoint{{URL: "https://mainnet.mode.network", Priority: 1}},
			ExplorerURL:   "https://explorer.mode.network",
			WrappedNative: opStackWETH,
			IsOpStack:     true,
		},
		{
			Name:          "zora",
			ChainID:       7777777,
			RPCEndpoints:  []Endpoint{{URL: "https://rpc.zora.energy", Priority: 1}},
			ExplorerURL:   "https://explorer.zora.energy",
			WrappedNative: opStackWETH,
			V2Factory:     common.HexToAddress("0x0F797dC7efaEA995bB916f268D919d0a1950eE3C"),
			V3Factory:     common.HexToAddress("0x7145F8aeef1f6510E92164038E1B6F8cB2c42Cbb"),
			IsOpStack:     true,
		},
		{
			Name:          "unichain",
			ChainID:       130,
			RPCEndpoints:  []Endpoint{{URL: "https://mainnet.unichain.org", Priority: 1}},
			ExplorerURL:   "https://uniscan.xyz",
			WrappedNative: opStackWETH,
			V2Factory:     common.HexToAddress("0x1f98400000000000000000000000000000000002"),
			V3Factory:     common.HexToAddress("0x1f98400000000000000000000000000000000003"),
			IsOpStack:     true,
		},
		{
			Name:    "ethereum",
			ChainID: 1,
			RPCEndpoints: []Endpoint{
				{URL: "https://eth.llamarpc.com", Priority: 1},
				{URL: "https://ethereum.publicnode.com", Priority: 2},
			},
			ExplorerURL:   "https://etherscan.io",
			WrappedNative: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
			V2Factory:     common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
			V3Factory:     canonicalV3Factory,
		},
		{
			Name:          "arbitrum",
			ChainID:       42161,
			RPCEndpoints:  []Endpoint{{URL: "https://arb1.arbitrum.io/rpc", Priority: 1}},
			ExplorerURL:   "https://arbiscan.io",
			WrappedNative: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
			V2Factory:     common.HexToAddress("0xf1D7CC64Fb4452F05c498126312eBE29f30Fbcf9"),
			V3Factory:     canonicalV3Factory,
		},
		{
			Name:          "polygon",
			ChainID:       137,
			RPCEndpoints:  []Endpoint{{URL: "https://polygon-rpc.com", Priority: 1}},
			ExplorerURL:   "https://polygonscan.com",
			WrappedNative: common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"),
			V2Factory:     common.HexToAddress("0x9e5A52f57b3038F1B8EeE45F28b3C1967e22799C"),
			V3Factory:     canonicalV3Factory,
		},
	}
}

// Default returns a registry with the built-in chain set.
func Default() *Registry {
	r, err := NewRegistry(DefaultChains()...)
	if err != nil {
		panic(err)
	}
	return r
}
