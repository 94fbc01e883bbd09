// Package config loads the engine/edge configuration surface (spec §6.3)
// through viper and godotenv, mirroring pkg/config.Config's mapstructure-
// tagged shape and walletserver/config's .env loading, merged into one
// loader since both tiers share most of the same option set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Options is the full recognized configuration surface. Unknown keys in the
// source file/environment are rejected at Load time (spec §9 redesign note)
// rather than silently ignored.
type Options struct {
	// Ambient: process wiring, not named in spec.md §6.3 but required to run
	// the two binaries.
	EdgeBindAddr   string `mapstructure:"edge_bind_addr"`
	EngineBindAddr string `mapstructure:"engine_bind_addr"`
	LogLevel       string `mapstructure:"log_level"`

	// Rate limiter (§4.2).
	RateLimitWindowSeconds int `mapstructure:"rate_limit_window_seconds"`
	RateLimitMaxRequests   int `mapstructure:"rate_limit_max_requests"`
	RateLimitLRUCapacity   int `mapstructure:"rate_limit_lru_capacity"`

	// Crypto settlement toggle and params (§6.3).
	CryptoEnabled       bool   `mapstructure:"crypto_enabled"`
	CryptoCurrency      string `mapstructure:"crypto_currency"`
	DealTTLSeconds      int    `mapstructure:"deal_ttl_seconds"`
	HighValueThreshold  string `mapstructure:"high_value_threshold"`
	Strategy            string `mapstructure:"strategy"`
	ReceivingWalletKey  string `mapstructure:"receiving_wallet_key"`
	ChainRPCURL         string `mapstructure:"chain_rpc_url"`
	ChainNetwork        string `mapstructure:"chain_network"`
	StableTokenMint     string `mapstructure:"stable_token_mint"`
	SecretEncryptionKey string `mapstructure:"secret_encryption_key"`

	// Wiring (§6.3).
	CacheURL      string `mapstructure:"cache_url"`
	CatalogURL    string `mapstructure:"catalog_url"`
	EngineRPCAddr string `mapstructure:"engine_rpc_addr"`

	// Price converter (§4.7, §9 Open Question resolution).
	UseFixedRates bool   `mapstructure:"use_fixed_rates"`
	USDPerNative  string `mapstructure:"usd_per_native"`
	USDPerStable  string `mapstructure:"usd_per_stable"`
}

func defaults() map[string]any {
	return map[string]any{
		"edge_bind_addr":            ":8080",
		"engine_bind_addr":          ":8090",
		"log_level":                 "info",
		"rate_limit_window_seconds": 60,
		"rate_limit_max_requests":   100,
		"rate_limit_lru_capacity":   10000,
		"crypto_enabled":            false,
		"crypto_currency":           "SOL",
		"deal_ttl_seconds":          3600,
		"high_value_threshold":      "1000",
		"strategy":                  "rule",
		"use_fixed_rates":           true,
		"usd_per_stable":            "1.0",
	}
}

// allowedKeys is the exhaustive set of recognized mapstructure tags, used to
// reject anything else at load time.
var allowedKeys = func() map[string]bool {
	keys := []string{
		"edge_bind_addr", "engine_bind_addr", "log_level",
		"rate_limit_window_seconds", "rate_limit_max_requests", "rate_limit_lru_capacity",
		"crypto_enabled", "crypto_currency", "deal_ttl_seconds", "high_value_threshold",
		"strategy", "receiving_wallet_key", "chain_rpc_url", "chain_network",
		"stable_token_mint", "secret_encryption_key",
		"cache_url", "catalog_url", "engine_rpc_addr",
		"use_fixed_rates", "usd_per_native", "usd_per_stable",
	}
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}()

// Load reads an optional .env file, then a config file named `name`
// (extension-less, any viper-supported format) from the given search paths,
// then environment variables prefixed `NEGENGINE_`, in increasing priority.
// It fails if the merged key set contains anything outside allowedKeys.
func Load(name string, searchPaths []string, envFile string) (*Options, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: loading env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("NEGENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if name != "" {
		v.SetConfigName(name)
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: reading config file: %w", err)
			}
		}
	}

	for _, k := range v.AllKeys() {
		if !allowedKeys[k] {
			return nil, fmt.Errorf("config: unrecognized option %q", k)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if opts.CryptoEnabled && opts.ReceivingWalletKey == "" {
		return nil, fmt.Errorf("config: crypto_enabled requires receiving_wallet_key")
	}
	if opts.CryptoEnabled && opts.SecretEncryptionKey == "" {
		return nil, fmt.Errorf("config: crypto_enabled requires secret_encryption_key")
	}
	return &opts, nil
}
