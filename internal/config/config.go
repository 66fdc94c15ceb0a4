package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMySQL    = "mysql"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Development bool
	// API configuration
	APIPort       int
	APIRateLimit  int
	APIAdminToken string

	// Storage configuration
	StorageDriver    string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	MySQLUser        string
	MySQLPassword    string
	MySQLHost        string
	MySQLPort        int
	MySQLDB          string
	ScanHistoryLimit int

	// Chain and scan configuration
	ChainsFile       string
	ScanBatchSize    int
	ScanDefaultRange uint64
	ScanMaxRange     uint64
	RPCTimeout       time.Duration
	RPCRateLimit     int
	ScanCacheTTL     time.Duration
	GasCacheTTL      time.Duration
	AutoScanChains   []string
	AutoScanInterval time.Duration

	// Price enrichment configuration
	PriceEnrichment bool
	DexScreenerURL  string

	// SMTP configuration
	SMTPHost            string
	SMTPPort            int
	SMTPAlternativePort int
	SMTPUser            string
	SMTPPassword        string
	SMTPSender          string

	// Notification configuration
	TelegramBotToken string
	WebhookTimeout   time.Duration
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:   getEnvAsBool("DEVELOPMENT", false),
		APIPort:       getEnvAsInt("API_PORT", 8080),
		APIRateLimit:  getEnvAsInt("API_RATE_LIMIT", 10),
		APIAdminToken: getEnv("API_ADMIN_TOKEN", ""),

		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "superchain"),
		MySQLUser:        getEnv("MYSQL_USER", "root"),
		MySQLPassword:    getEnv("MYSQL_PASSWORD", ""),
		MySQLHost:        getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:        getEnvAsInt("MYSQL_PORT", 3306),
		MySQLDB:          getEnv("MYSQL_DB", "superchain"),
		ScanHistoryLimit: getEnvAsInt("SCAN_HISTORY_LIMIT", 1000),

		ChainsFile:       getEnv("CHAINS_FILE", ""),
		ScanBatchSize:    getEnvAsInt("SCAN_BATCH_SIZE", 100),
		ScanDefaultRange: getEnvAsUint64("SCAN_DEFAULT_RANGE", 1000),
		ScanMaxRange:     getEnvAsUint64("SCAN_MAX_RANGE", 10000),
		RPCTimeout:       getEnvAsDuration("RPC_TIMEOUT", 10*time.Second),
		RPCRateLimit:     getEnvAsInt("RPC_RATE_LIMIT", 30),
		ScanCacheTTL:     getEnvAsDuration("SCAN_CACHE_TTL", 5*time.Minute),
		GasCacheTTL:      getEnvAsDuration("GAS_CACHE_TTL", time.Minute),
		AutoScanChains:   getEnvAsList("AUTO_SCAN_CHAINS", nil),
		AutoScanInterval: getEnvAsDuration("AUTO_SCAN_INTERVAL", 5*time.Minute),

		PriceEnrichment: getEnvAsBool("PRICE_ENRICHMENT", false),
		DexScreenerURL:  getEnv("DEXSCREENER_URL", "https://api.dexscreener.com"),

		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvAsInt("SMTP_PORT", 587),
		SMTPAlternativePort: getEnvAsInt("SMTP_ALTERNATIVE_PORT", 465),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		SMTPSender:          getEnv("SMTP_SENDER", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookTimeout:   getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	case StorageDriverMySQL:
		if c.MySQLDB == "" {
			return fmt.Errorf("MYSQL_DB is required")
		}
		if c.MySQLHost == "" {
			return fmt.Errorf("MYSQL_HOST is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid API_PORT %d", c.APIPort)
	}
	if c.ScanBatchSize <= 0 {
		return fmt.Errorf("SCAN_BATCH_SIZE must be positive")
	}
	if c.ScanDefaultRange == 0 {
		return fmt.Errorf("SCAN_DEFAULT_RANGE must be positive")
	}
	if c.ScanMaxRange < c.ScanDefaultRange {
		return fmt.Errorf("SCAN_MAX_RANGE (%d) is below SCAN_DEFAULT_RANGE (%d)", c.ScanMaxRange, c.ScanDefaultRange)
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("RPC_TIMEOUT must be positive")
	}
	if c.RPCRateLimit < 0 {
		return fmt.Errorf("RPC_RATE_LIMIT must not be negative")
	}
	if c.APIRateLimit <= 0 {
		return fmt.Errorf("API_RATE_LIMIT must be positive")
	}
	if len(c.AutoScanChains) > 0 && c.AutoScanInterval <= 0 {
		return fmt.Errorf("AUTO_SCAN_INTERVAL must be positive")
	}
	if c.PriceEnrichment && c.DexScreenerURL == "" {
		return fmt.Errorf("DEXSCREENER_URL is required when PRICE_ENRICHMENT is enabled")
	}
	if c.SMTPHost != "" && c.SMTPSender == "" {
		return fmt.Errorf("SMTP_SENDER is required when SMTP_HOST is set")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsUint64(name string, defaultValue uint64) uint64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseUint(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(name string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(name)
	if !exists {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
