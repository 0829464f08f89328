package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DUALDEX_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		// Chains declared in the file replace the defaults wholesale.
		cfg.Chains = nil
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
		if cfg.Chains == nil {
			cfg.Chains = Defaults().Chains
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DUALDEX_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "DUALDEX_LOG_LEVEL")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "DUALDEX_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "DUALDEX_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "DUALDEX_WALLET_KEY_PASSWORD")

	// ── Indexer ──
	setStr(&cfg.Indexer.BaseURL, "DUALDEX_INDEXER_BASE_URL")
	setStr(&cfg.Indexer.Origin, "DUALDEX_INDEXER_ORIGIN")
	setDuration(&cfg.Indexer.Timeout, "DUALDEX_INDEXER_TIMEOUT")
	setDuration(&cfg.Indexer.PollInterval, "DUALDEX_INDEXER_POLL_INTERVAL")

	// ── Gas ──
	setStr(&cfg.Gas.PriceOverrideWei, "DUALDEX_GAS_PRICE")
	setStr(&cfg.Gas.StationURL, "DUALDEX_GAS_STATION_URL")
	setStringSlice(&cfg.Gas.StationChains, "DUALDEX_GAS_STATION_CHAINS")

	// ── Chains ──
	for name, cc := range cfg.Chains {
		prefix := "DUALDEX_" + strings.ToUpper(name) + "_"
		setStr(&cc.RPCURL, prefix+"RPC_URL")
		setInt64(&cc.ChainID, prefix+"CHAIN_ID")
		setUint64(&cc.GasLimit, prefix+"GAS_LIMIT")
		setStr(&cc.FixedGasPriceWei, prefix+"FIXED_GAS_PRICE_WEI")
		setBool(&cc.RevertOnGasExhaustion, prefix+"REVERT_ON_GAS_EXHAUSTION")
		cfg.Chains[name] = cc
	}

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "DUALDEX_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "DUALDEX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DUALDEX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DUALDEX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DUALDEX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DUALDEX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DUALDEX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DUALDEX_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DUALDEX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DUALDEX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DUALDEX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DUALDEX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DUALDEX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DUALDEX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DUALDEX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DUALDEX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DUALDEX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DUALDEX_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "DUALDEX_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.LockTTL, "DUALDEX_REDIS_LOCK_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DUALDEX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DUALDEX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DUALDEX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DUALDEX_NOTIFY_EVENTS")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
