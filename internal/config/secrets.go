package config

import "maps"

// RedactedConfig returns a copy of cfg with sensitive fields replaced by
// "***", safe to log.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// RPC URLs often embed provider API keys.
	out.Chains = maps.Clone(cfg.Chains)
	for name, cc := range out.Chains {
		redact(&cc.RPCURL)
		out.Chains[name] = cc
	}

	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Gas.StationChains != nil {
		out.Gas.StationChains = append([]string(nil), cfg.Gas.StationChains...)
	}
	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
