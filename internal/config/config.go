package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BurnAddress is the canonical dead address burn transfers are sent to.
const BurnAddress = "0x000000000000000000000000000000000000dEaD"

// ChainConfig holds per-chain endpoints and contract addresses.
// Chains are table-driven: adding a chain is a config change, not a code change.
type ChainConfig struct {
	RPCURL string `mapstructure:"rpc"`
	Token  string `mapstructure:"token"`
	Game   string `mapstructure:"game"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PGDSN             string
	LogLevel          string
	HomeChain         string
	SettlementAddress string
	RewardToken       string
	SwapAPIURL        string
	SwapAPIKey        string
	Slippage          float64
	SenderAddress     string
	WindowBlocks      uint64
	StagingTTL        time.Duration
	ReconcileTick     time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	Chains            map[string]ChainConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SETTLER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("window-blocks", uint64(50))
	v.SetDefault("staging-ttl", 600*time.Second)
	v.SetDefault("reconcile-tick", 60*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("slippage", 0.01)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		PGDSN:             v.GetString("pg-dsn"),
		LogLevel:          v.GetString("log-level"),
		HomeChain:         v.GetString("home-chain"),
		SettlementAddress: v.GetString("settlement-address"),
		RewardToken:       v.GetString("reward-token"),
		SwapAPIURL:        v.GetString("swap-api-url"),
		SwapAPIKey:        v.GetString("swap-api-key"),
		Slippage:          v.GetFloat64("slippage"),
		SenderAddress:     v.GetString("sender-address"),
		WindowBlocks:      v.GetUint64("window-blocks"),
		StagingTTL:        v.GetDuration("staging-ttl"),
		ReconcileTick:     v.GetDuration("reconcile-tick"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
	}

	if v.IsSet("chains") {
		if err := v.UnmarshalKey("chains", &cfg.Chains); err != nil {
			return Config{}, fmt.Errorf("parse chains: %w", err)
		}
	}

	return cfg, nil
}

// ChainNames returns the configured chain names.
func (c Config) ChainNames() []string {
	names := make([]string, 0, len(c.Chains))
	for name := range c.Chains {
		names = append(names, name)
	}
	return names
}
