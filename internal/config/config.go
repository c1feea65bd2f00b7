package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// API settings
	APIAddr  string
	APIKey   string
	DevMode  bool
	LogLevel string

	// Build settings
	BuildTimeout    time.Duration
	BuildRateLimit  float64 // requests per second per client, 0 disables
	DexProgramID    string
	DefaultSlippage int64
	VerifyByDefault bool

	// RPC settings
	RPCUrl       string
	RPCTimeout   time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Redis settings
	RedisAddr    string
	RedisDB      int
	PoolCacheTTL time.Duration

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// AI settings
	OpenRouterAPIKey string
	AIModel          string
}

// Load reads the configuration from the environment. Redis and ClickHouse
// are optional: an empty address disables them.
func Load() *Config {
	return &Config{
		// API
		APIAddr:  getEnv("API_ADDR", ":8090"),
		APIKey:   getEnv("API_KEY", ""),
		DevMode:  getBoolEnv("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Build
		BuildTimeout:    getDurationEnv("BUILD_TIMEOUT", 10*time.Second),
		BuildRateLimit:  getFloatEnv("BUILD_RATE_LIMIT", 20),
		DexProgramID:    getEnv("DEX_PROGRAM_ID", ""),
		DefaultSlippage: int64(getIntEnv("DEFAULT_SLIPPAGE_BPS", 50)),
		VerifyByDefault: getBoolEnv("VERIFY_ACCOUNTS", false),

		// RPC
		RPCUrl:       getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		RPCTimeout:   getDurationEnv("RPC_TIMEOUT", 5*time.Second),
		MaxRetries:   getIntEnv("RPC_MAX_RETRIES", 0),
		RetryBackoff: getDurationEnv("RPC_RETRY_BACKOFF", 250*time.Millisecond),

		// Redis
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisDB:      getIntEnv("REDIS_DB", 0),
		PoolCacheTTL: getDurationEnv("POOL_CACHE_TTL", 2*time.Second),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "dexai"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// AI
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", "openai/gpt-4.1-mini"),
	}
}

// Validate checks values Load cannot reject on its own.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.APIAddr) == "" {
		errs = append(errs, errors.New("API_ADDR must not be empty"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.BuildTimeout <= 0 {
		errs = append(errs, errors.New("BUILD_TIMEOUT must be positive"))
	}
	if c.BuildRateLimit < 0 {
		errs = append(errs, errors.New("BUILD_RATE_LIMIT must not be negative"))
	}
	if c.DefaultSlippage < 0 || c.DefaultSlippage > 10_000 {
		errs = append(errs, fmt.Errorf("DEFAULT_SLIPPAGE_BPS must be within [0, 10000], got %d", c.DefaultSlippage))
	}
	if c.DexProgramID != "" {
		if _, err := solana.PublicKeyFromBase58(c.DexProgramID); err != nil {
			errs = append(errs, fmt.Errorf("DEX_PROGRAM_ID: %w", err))
		}
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("RPC_MAX_RETRIES must not be negative"))
	}
	if c.RPCTimeout <= 0 {
		errs = append(errs, errors.New("RPC_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// ProgramID returns the configured program id, or the zero key when unset.
func (c *Config) ProgramID() solana.PublicKey {
	if c.DexProgramID == "" {
		return solana.PublicKey{}
	}
	pk, err := solana.PublicKeyFromBase58(c.DexProgramID)
	if err != nil {
		return solana.PublicKey{}
	}
	return pk
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
