package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultRPCURL      = "https://rpc.moderato.tempo.xyz"
	DefaultChainID     = 42431
	DefaultExplorerURL = "https://explore.tempo.xyz"
	DefaultSlippageBps = 50
)

// LedgerConfig selects the session store behind the activity ledger
type LedgerConfig struct {
	Backend       string        // memory, file, redis or wal
	Dir           string        // file path for "file", directory for "wal"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
}

// FaucetConfig configures the funding service
type FaucetConfig struct {
	PrivateKey    string
	Amount        string
	Tokens        []string
	Listen        string
	RatePerMinute int
	EnableMetrics bool
}

// Config holds the application configuration
type Config struct {
	RPCURL       string
	ChainID      int64
	DEXAddress   string
	PrivateKey   string
	ExplorerURL  string
	SlippageBps  uint64
	PollInterval time.Duration
	// Tokens maps symbol to token address
	Tokens map[string]string
	Ledger LedgerConfig
	Faucet FaucetConfig
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".tempo-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("rpc_url", DefaultRPCURL)
	viper.SetDefault("chain_id", DefaultChainID)
	viper.SetDefault("explorer_url", DefaultExplorerURL)
	viper.SetDefault("slippage_bps", DefaultSlippageBps)
	viper.SetDefault("poll_interval", 2*time.Second)
	viper.SetDefault("ledger.backend", "file")
	viper.SetDefault("ledger.redis_addr", "localhost:6379")
	viper.SetDefault("ledger.session_ttl", 12*time.Hour)
	viper.SetDefault("faucet.amount", "1000")
	viper.SetDefault("faucet.listen", ":8080")
	viper.SetDefault("faucet.rate_per_minute", 30)
	viper.SetDefault("faucet.enable_metrics", true)

	// Read from environment variables
	viper.SetEnvPrefix("TEMPO_SWAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := FromViper(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		RPCURL:       v.GetString("rpc_url"),
		ChainID:      v.GetInt64("chain_id"),
		DEXAddress:   v.GetString("dex_address"),
		PrivateKey:   v.GetString("private_key"),
		ExplorerURL:  v.GetString("explorer_url"),
		SlippageBps:  v.GetUint64("slippage_bps"),
		PollInterval: v.GetDuration("poll_interval"),
		Tokens:       map[string]string{},
		Ledger: LedgerConfig{
			Backend:       strings.ToLower(v.GetString("ledger.backend")),
			Dir:           v.GetString("ledger.dir"),
			RedisAddr:     v.GetString("ledger.redis_addr"),
			RedisPassword: v.GetString("ledger.redis_password"),
			RedisDB:       v.GetInt("ledger.redis_db"),
			SessionTTL:    v.GetDuration("ledger.session_ttl"),
		},
		Faucet: FaucetConfig{
			PrivateKey:    v.GetString("faucet.private_key"),
			Amount:        v.GetString("faucet.amount"),
			Tokens:        v.GetStringSlice("faucet.tokens"),
			Listen:        v.GetString("faucet.listen"),
			RatePerMinute: v.GetInt("faucet.rate_per_minute"),
			EnableMetrics: v.GetBool("faucet.enable_metrics"),
		},
	}

	for sym, addr := range v.GetStringMapString("tokens") {
		cfg.Tokens[strings.ToUpper(sym)] = addr
	}

	// faucet tokens default to every configured swap token
	if len(cfg.Faucet.Tokens) == 0 {
		for _, addr := range cfg.Tokens {
			cfg.Faucet.Tokens = append(cfg.Faucet.Tokens, addr)
		}
	}

	return cfg
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC URL not found. Please set TEMPO_SWAP_RPC_URL or rpc_url in .tempo-swap.yaml")
	}
	if c.DEXAddress == "" {
		return fmt.Errorf("DEX address not found. Please set TEMPO_SWAP_DEX_ADDRESS or dex_address in .tempo-swap.yaml")
	}
	if c.SlippageBps >= 10000 {
		return fmt.Errorf("slippage_bps must be below 10000, got %d", c.SlippageBps)
	}
	switch c.Ledger.Backend {
	case "", "memory", "file", "redis", "wal":
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
