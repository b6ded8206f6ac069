package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads wallet configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	var err error
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// Node
	case "node.url", "node":
		cfg.Node.URL = value
	case "node.cold_timeout":
		cfg.Node.ColdTimeout, err = time.ParseDuration(value)
	case "node.warm_timeout":
		cfg.Node.WarmTimeout, err = time.ParseDuration(value)
	case "node.retry_base":
		cfg.Node.RetryBase, err = time.ParseDuration(value)
	case "node.retry_cap":
		cfg.Node.RetryCap, err = time.ParseDuration(value)
	case "node.retry_max":
		cfg.Node.RetryMax, err = strconv.Atoi(value)
	case "node.rate_limit":
		cfg.Node.RateLimit, err = strconv.ParseFloat(value, 64)
	case "node.rate_burst":
		cfg.Node.RateBurst, err = strconv.Atoi(value)

	// Address
	case "address.prefix":
		cfg.Address.Prefix = value
	case "address.min_body":
		cfg.Address.MinBody, err = strconv.Atoi(value)
	case "address.max_body":
		cfg.Address.MaxBody, err = strconv.Atoi(value)

	// Fee
	case "fee.min":
		cfg.Fee.MinFee, err = strconv.ParseUint(value, 10, 64)
	case "fee.rate_bps":
		cfg.Fee.RateBps, err = strconv.ParseUint(value, 10, 64)

	// Cache
	case "cache.ttl":
		cfg.Cache.TTL, err = time.ParseDuration(value)

	// Bulk
	case "bulk.poll_interval":
		cfg.Bulk.PollInterval, err = time.ParseDuration(value)
	case "bulk.wait_timeout":
		cfg.Bulk.WaitTimeout, err = time.ParseDuration(value)
	case "bulk.countdown":
		cfg.Bulk.Countdown, err = time.ParseDuration(value)

	// Sender
	case "sender.allow_self_send":
		cfg.Sender.AllowSelfSend = parseBool(value)

	// Tracker
	case "tracker.interval":
		cfg.Tracker.Interval, err = time.ParseDuration(value)
	case "tracker.prune_age":
		cfg.Tracker.PruneAge, err = time.ParseDuration(value)

	// Storage
	case "storage.backend":
		cfg.Storage.Backend = strings.ToLower(value)
	case "storage.redis_addr":
		cfg.Storage.RedisAddr = value
	case "storage.redis_password":
		cfg.Storage.RedisPassword = value
	case "storage.redis_db":
		cfg.Storage.RedisDB, err = strconv.Atoi(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return err
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default wallet configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	d := Default(network)
	content := `# Octra Wallet Configuration
#
# Environment variables (OCTWALLET_*) and command-line flags override
# the values in this file.

# Network: mainnet, testnet or custom
network = ` + string(network) + `

# Data directory (default: ~/.octwallet)
# datadir = ~/.octwallet

# ============================================================================
# Node
# ============================================================================

node.url = ` + d.Node.URL + `
node.cold_timeout = ` + d.Node.ColdTimeout.String() + `
node.warm_timeout = ` + d.Node.WarmTimeout.String() + `

# Retry policy for transient failures (timeouts, 5xx, 429)
node.retry_base = ` + d.Node.RetryBase.String() + `
node.retry_cap = ` + d.Node.RetryCap.String() + `
node.retry_max = ` + strconv.Itoa(d.Node.RetryMax) + `

# Client-side rate limit (requests per second, 0 disables)
# node.rate_limit = 10
# node.rate_burst = 5

# ============================================================================
# Fees
# ============================================================================

fee.min = ` + strconv.FormatUint(d.Fee.MinFee, 10) + `
fee.rate_bps = ` + strconv.FormatUint(d.Fee.RateBps, 10) + `

# ============================================================================
# Wallet behaviour
# ============================================================================

cache.ttl = ` + d.Cache.TTL.String() + `
sender.allow_self_send = true

# Waits between bulk private transfers
# bulk.poll_interval = 2s
# bulk.wait_timeout = 1m0s
# bulk.countdown = 10s

# Pending-transaction tracker
# tracker.interval = 15s
# tracker.prune_age = 168h0m0s

# ============================================================================
# Storage
# ============================================================================

# Backend: badger (default), memory or redis
storage.backend = badger
# storage.redis_addr = 127.0.0.1:6379
# storage.redis_password =
# storage.redis_db = 0

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
