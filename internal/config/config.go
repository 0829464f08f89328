// Package config defines the dualdex configuration and its validation.
package config

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DUALDEX_* environment variables.
type Config struct {
	LogLevel string                 `toml:"log_level"`
	Wallet   WalletConfig           `toml:"wallet"`
	Indexer  IndexerConfig          `toml:"indexer"`
	Gas      GasConfig              `toml:"gas"`
	Chains   map[string]ChainConfig `toml:"chains"`
	Postgres PostgresConfig         `toml:"postgres"`
	Redis    RedisConfig            `toml:"redis"`
	Notify   NotifyConfig           `toml:"notify"`
}

// WalletConfig holds the trader's key material. Without either source the
// client runs read-only.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// IndexerConfig locates the exchange indexer.
type IndexerConfig struct {
	BaseURL      string   `toml:"base_url"`
	Origin       string   `toml:"origin"`
	Timeout      duration `toml:"timeout"`
	PollInterval duration `toml:"poll_interval"`
}

// GasConfig holds chain-independent gas pricing. Amounts are wei in decimal
// text so they survive TOML's int64 limit.
type GasConfig struct {
	PriceOverrideWei string   `toml:"price_override_wei"`
	StationURL       string   `toml:"station_url"`
	StationChains    []string `toml:"station_chains"`
	Timeout          duration `toml:"timeout"`
}

// ChainConfig configures one blockchain. An empty RPCURL leaves the chain
// registered without a node: awaits and lookups work, writes do not.
type ChainConfig struct {
	RPCURL                string `toml:"rpc_url"`
	ChainID               int64  `toml:"chain_id"`
	GasLimit              uint64 `toml:"gas_limit"`
	FixedGasPriceWei      string `toml:"fixed_gas_price_wei"`
	RevertOnGasExhaustion bool   `toml:"revert_on_gas_exhaustion"`
}

// PostgresConfig holds connection parameters for the journal database.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	LockTTL    duration `toml:"lock_ttl"`
}

// NotifyConfig holds notification channel credentials. Events lists the
// transaction statuses to forward; empty forwards all.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the exchange's production values.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Indexer: IndexerConfig{
			BaseURL:      "https://ticker.saturn.network/api/v2",
			Origin:       "dualdex",
			Timeout:      duration{30 * time.Second},
			PollInterval: duration{5 * time.Second},
		},
		Gas: GasConfig{
			StationURL:    "https://www.ethgasstationapi.com/api/standard",
			StationChains: []string{"ETH"},
			Timeout:       duration{10 * time.Second},
		},
		Chains: map[string]ChainConfig{
			"ETH": {
				ChainID:               1,
				GasLimit:              domain.DefaultGasLimit,
				RevertOnGasExhaustion: true,
			},
			"ETC": {
				ChainID:               61,
				GasLimit:              domain.DefaultGasLimit,
				FixedGasPriceWei:      "1000000",
				RevertOnGasExhaustion: true,
			},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "dualdex",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  0,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			KeyPrefix:  "dualdex",
			LockTTL:    duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"confirmed", "failed"},
		},
	}
}

// ChainIDs returns the configured chains in a stable order.
func (c *Config) ChainIDs() ([]domain.ChainID, error) {
	ids := make([]domain.ChainID, 0, len(c.Chains))
	for name := range c.Chains {
		id, err := domain.ParseChain(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Chain returns the configuration of id, matching names case-insensitively.
func (c *Config) Chain(id domain.ChainID) (ChainConfig, bool) {
	for name, cc := range c.Chains {
		if strings.EqualFold(name, id.String()) {
			return cc, true
		}
	}
	return ChainConfig{}, false
}

// GasOverride parses the global gas price override. It returns nil when
// none is set.
func (c *Config) GasOverride() (*big.Int, error) {
	return parseWei(c.Gas.PriceOverrideWei)
}

// FixedGasPrice parses the chain's fixed gas price, nil when unset.
func (cc ChainConfig) FixedGasPrice() (*big.Int, error) {
	return parseWei(cc.FixedGasPriceWei)
}

// GasExhaustionLimit is the gas-used value treated as a revert, or 0 when
// the check is disabled.
func (cc ChainConfig) GasExhaustionLimit() uint64 {
	if !cc.RevertOnGasExhaustion {
		return 0
	}
	return cc.GasLimit
}

func parseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.PrivateKey != "" && c.Wallet.EncryptedKeyPath != "" {
		errs = append(errs, "wallet: set only one of private_key and encrypted_key_path")
	}

	if strings.TrimSpace(c.Indexer.BaseURL) == "" {
		errs = append(errs, "indexer: base_url must not be empty")
	}
	if c.Indexer.Timeout.Duration <= 0 {
		errs = append(errs, "indexer: timeout must be > 0")
	}
	if c.Indexer.PollInterval.Duration <= 0 {
		errs = append(errs, "indexer: poll_interval must be > 0")
	}

	if _, err := c.GasOverride(); err != nil {
		errs = append(errs, "gas: price_override_wei: "+err.Error())
	}
	for _, name := range c.Gas.StationChains {
		if _, err := domain.ParseChain(name); err != nil {
			errs = append(errs, fmt.Sprintf("gas: station_chains: unknown chain %q", name))
		}
	}

	if len(c.Chains) == 0 {
		errs = append(errs, "chains: at least one chain must be configured")
	}
	for name, cc := range c.Chains {
		if _, err := domain.ParseChain(name); err != nil {
			errs = append(errs, fmt.Sprintf("chains: unknown chain %q (valid: ETH, ETC)", name))
			continue
		}
		if cc.ChainID <= 0 {
			errs = append(errs, fmt.Sprintf("chains.%s: chain_id must be positive", name))
		}
		if cc.GasLimit == 0 {
			errs = append(errs, fmt.Sprintf("chains.%s: gas_limit must be > 0", name))
		}
		if _, err := cc.FixedGasPrice(); err != nil {
			errs = append(errs, fmt.Sprintf("chains.%s: fixed_gas_price_wei: %v", name, err))
		}
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
