package config

import (
	"fmt"
	"net/url"

	"github.com/Klingon-tech/octwallet/internal/storage"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Mainnet, Testnet, Custom:
	default:
		return fmt.Errorf("network must be %q, %q or %q", Mainnet, Testnet, Custom)
	}

	if cfg.Node.URL == "" {
		return fmt.Errorf("node.url is required")
	}
	u, err := url.Parse(cfg.Node.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("node.url must be an http(s) URL, got %q", cfg.Node.URL)
	}
	if cfg.Node.ColdTimeout <= 0 || cfg.Node.WarmTimeout <= 0 {
		return fmt.Errorf("node timeouts must be positive")
	}
	if cfg.Node.RetryBase <= 0 || cfg.Node.RetryCap < cfg.Node.RetryBase {
		return fmt.Errorf("node.retry_base must be positive and not above node.retry_cap")
	}
	if cfg.Node.RetryMax < 0 {
		return fmt.Errorf("node.retry_max must not be negative")
	}
	if cfg.Node.RateLimit < 0 {
		return fmt.Errorf("node.rate_limit must not be negative")
	}
	if cfg.Node.RateLimit > 0 && cfg.Node.RateBurst < 1 {
		return fmt.Errorf("node.rate_burst must be at least 1 when rate limiting")
	}

	if len(cfg.Address.Prefix) != 3 {
		return fmt.Errorf("address.prefix must be 3 characters, got %q", cfg.Address.Prefix)
	}
	if cfg.Address.MinBody < 1 || cfg.Address.MinBody > cfg.Address.MaxBody {
		return fmt.Errorf("address body window [%d, %d] is invalid", cfg.Address.MinBody, cfg.Address.MaxBody)
	}

	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if cfg.Bulk.PollInterval <= 0 || cfg.Bulk.WaitTimeout <= 0 || cfg.Bulk.Countdown < 0 {
		return fmt.Errorf("bulk waits must be positive")
	}
	if cfg.Tracker.Interval <= 0 || cfg.Tracker.PruneAge <= 0 {
		return fmt.Errorf("tracker.interval and tracker.prune_age must be positive")
	}

	switch cfg.Storage.Backend {
	case storage.BackendBadger, storage.BackendMemory, "":
	case storage.BackendRedis:
		if cfg.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.backend=redis requires storage.redis_addr")
		}
	default:
		return fmt.Errorf("storage.backend must be badger, memory or redis")
	}

	return nil
}
