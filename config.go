package payto

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds everything the CLI and server need to build a Resolver and
// the local store.
type Config struct {
	SolanaRPC       string        `validate:"required,url"`
	EthereumRPC     string        `validate:"omitempty,url"`
	RegistryProgram string        `validate:"omitempty,min=32,max=44"`
	DBPath          string        `validate:"required"`
	KeyPath         string        `validate:"required"`
	PostgresDSN     string        `validate:"omitempty"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	CacheTTL        time.Duration `validate:"min=0"`
	ResolveTimeout  time.Duration `validate:"min=0"`
	HTTPAddr        string        `validate:"required,hostname_port"`
}

// DefaultConfig stores state under ~/.payto.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, ".payto")
	return Config{
		SolanaRPC:      MainnetRPC,
		DBPath:         filepath.Join(dir, "payto.db"),
		KeyPath:        filepath.Join(dir, "keypair.json"),
		LogLevel:       "info",
		CacheTTL:       10 * time.Minute,
		ResolveTimeout: 5 * time.Second,
		HTTPAddr:       "127.0.0.1:8080",
	}
}

// LoadConfig applies PAYTO_* environment variables over the defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	cfg.SolanaRPC = envOr("PAYTO_SOLANA_RPC", cfg.SolanaRPC)
	cfg.EthereumRPC = envOr("PAYTO_ETHEREUM_RPC", cfg.EthereumRPC)
	cfg.RegistryProgram = envOr("PAYTO_REGISTRY_PROGRAM", cfg.RegistryProgram)
	cfg.DBPath = envOr("PAYTO_DB", cfg.DBPath)
	cfg.KeyPath = envOr("PAYTO_KEYPAIR", cfg.KeyPath)
	cfg.PostgresDSN = envOr("PAYTO_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.LogLevel = envOr("PAYTO_LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPAddr = envOr("PAYTO_HTTP_ADDR", cfg.HTTPAddr)

	var err error
	if cfg.CacheTTL, err = envOrDuration("PAYTO_CACHE_TTL", cfg.CacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.ResolveTimeout, err = envOrDuration("PAYTO_RESOLVE_TIMEOUT", cfg.ResolveTimeout); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(&c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) (time.Duration, error) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
