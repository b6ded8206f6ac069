// Package config handles wallet configuration.
//
// Settings come from four layers, lowest precedence first: built-in
// defaults, the octwallet.conf file, OCTWALLET_* environment variables and
// command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Klingon-tech/octwallet/internal/storage"
)

// NetworkType identifies the node network the wallet talks to.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Custom  NetworkType = "custom" // node.url must be set
)

// Config holds the wallet runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Node connection
	Node NodeConfig

	// Address format
	Address AddressConfig

	// Fee schedule
	Fee FeeConfig

	// Balance cache
	Cache CacheConfig

	// Bulk private transfers
	Bulk BulkConfig

	// Sender policy
	Sender SenderConfig

	// Pending-transaction tracker
	Tracker TrackerConfig

	// Local key-value storage
	Storage StorageConfig

	// Logging
	Log LogConfig
}

// NodeConfig holds the node RPC settings.
type NodeConfig struct {
	URL         string        `conf:"node.url"`
	ColdTimeout time.Duration `conf:"node.cold_timeout"` // until the first successful call
	WarmTimeout time.Duration `conf:"node.warm_timeout"`
	RetryBase   time.Duration `conf:"node.retry_base"`
	RetryCap    time.Duration `conf:"node.retry_cap"`
	RetryMax    int           `conf:"node.retry_max"`
	RateLimit   float64       `conf:"node.rate_limit"` // requests per second, 0 = unlimited
	RateBurst   int           `conf:"node.rate_burst"`
}

// AddressConfig holds the address syntax accepted by the wallet.
type AddressConfig struct {
	Prefix  string `conf:"address.prefix"`
	MinBody int    `conf:"address.min_body"`
	MaxBody int    `conf:"address.max_body"`
}

// FeeConfig holds the fee schedule parameters.
type FeeConfig struct {
	MinFee  uint64 `conf:"fee.min"`
	RateBps uint64 `conf:"fee.rate_bps"`
}

// CacheConfig holds balance cache settings.
type CacheConfig struct {
	TTL time.Duration `conf:"cache.ttl"`
}

// BulkConfig holds the waits used between bulk private transfers.
type BulkConfig struct {
	PollInterval time.Duration `conf:"bulk.poll_interval"`
	WaitTimeout  time.Duration `conf:"bulk.wait_timeout"`
	Countdown    time.Duration `conf:"bulk.countdown"`
}

// SenderConfig holds sender policy.
type SenderConfig struct {
	AllowSelfSend bool `conf:"sender.allow_self_send"`
}

// TrackerConfig holds pending-transaction tracker settings.
type TrackerConfig struct {
	Interval time.Duration `conf:"tracker.interval"`
	PruneAge time.Duration `conf:"tracker.prune_age"` // failed records older than this are dropped
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Backend       string `conf:"storage.backend"` // badger, memory or redis
	RedisAddr     string `conf:"storage.redis_addr"`
	RedisPassword string `conf:"storage.redis_password"`
	RedisDB       int    `conf:"storage.redis_db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.octwallet
//	macOS:   ~/Library/Application Support/OctWallet
//	Windows: %APPDATA%\OctWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".octwallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "OctWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "OctWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "OctWallet")
	default:
		return filepath.Join(home, ".octwallet")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// DBDir returns the badger database directory. It is shared by all
// networks; the wallet core namespaces keys per network.
func (c *Config) DBDir() string {
	return filepath.Join(c.DataDir, "db")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "octwallet.conf")
}

// StorageOptions returns the options for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend: c.Storage.Backend,
		Path:    c.DBDir(),
		Redis: storage.RedisOptions{
			Addr:     c.Storage.RedisAddr,
			Password: c.Storage.RedisPassword,
			DB:       c.Storage.RedisDB,
		},
	}
}
