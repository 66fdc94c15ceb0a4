package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 100, cfg.ScanBatchSize)
	assert.Equal(t, uint64(1000), cfg.ScanDefaultRange)
	assert.Equal(t, uint64(10000), cfg.ScanMaxRange)
	assert.Equal(t, 10*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 30, cfg.RPCRateLimit)
	assert.Equal(t, 10, cfg.APIRateLimit)
	assert.Equal(t, 5*time.Minute, cfg.ScanCacheTTL)
	assert.Equal(t, time.Minute, cfg.GasCacheTTL)
	assert.Equal(t, 1000, cfg.ScanHistoryLimit)
	assert.Empty(t, cfg.AutoScanChains)
	assert.False(t, cfg.PriceEnrichment)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MySQL")
	t.Setenv("MYSQL_HOST", "db")
	t.Setenv("MYSQL_PORT", "3307")
	t.Setenv("AUTO_SCAN_CHAINS", " base, optimism ,,")
	t.Setenv("AUTO_SCAN_INTERVAL", "90s")
	t.Setenv("RPC_TIMEOUT", "3s")
	t.Setenv("SCAN_BATCH_SIZE", "not-a-number")
	t.Setenv("PRICE_ENRICHMENT", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMySQL, cfg.StorageDriver)
	assert.Equal(t, "db", cfg.MySQLHost)
	assert.Equal(t, 3307, cfg.MySQLPort)
	assert.Equal(t, []string{"base", "optimism"}, cfg.AutoScanChains)
	assert.Equal(t, 90*time.Second, cfg.AutoScanInterval)
	assert.Equal(t, 3*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 100, cfg.ScanBatchSize, "unparsable values fall back to the default")
	assert.True(t, cfg.PriceEnrichment)
}

func validConfig() *Config {
	return &Config{
		APIPort:          8080,
		APIRateLimit:     10,
		StorageDriver:    StorageDriverPostgres,
		PostgresHost:     "localhost",
		PostgresDB:       "superchain",
		ScanBatchSize:    100,
		ScanDefaultRange: 1000,
		ScanMaxRange:     10000,
		RPCTimeout:       10 * time.Second,
		RPCRateLimit:     30,
		DexScreenerURL:   "https://api.dexscreener.com",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.StorageDriver = "sqlite" }, "STORAGE_DRIVER"},
		{"postgres without db", func(c *Config) { c.PostgresDB = "" }, "POSTGRES_DB"},
		{"mysql without host", func(c *Config) { c.StorageDriver = StorageDriverMySQL; c.MySQLDB = "x" }, "MYSQL_HOST"},
		{"memory needs nothing", func(c *Config) { c.StorageDriver = StorageDriverMemory; c.PostgresDB = "" }, ""},
		{"bad port", func(c *Config) { c.APIPort = 70000 }, "API_PORT"},
		{"zero batch", func(c *Config) { c.ScanBatchSize = 0 }, "SCAN_BATCH_SIZE"},
		{"max below default", func(c *Config) { c.ScanMaxRange = 10 }, "SCAN_MAX_RANGE"},
		{"zero timeout", func(c *Config) { c.RPCTimeout = 0 }, "RPC_TIMEOUT"},
		{"zero api limit", func(c *Config) { c.APIRateLimit = 0 }, "API_RATE_LIMIT"},
		{"auto scan without interval", func(c *Config) { c.AutoScanChains = []string{"base"} }, "AUTO_SCAN_INTERVAL"},
		{"enrichment without url", func(c *Config) { c.PriceEnrichment = true; c.DexScreenerURL = "" }, "DEXSCREENER_URL"},
		{"smtp without sender", func(c *Config) { c.SMTPHost = "smtp.example.com" }, "SMTP_SENDER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
