package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by ApplyEnv.
const EnvPrefix = "OCTWALLET"

// envOverrides mirrors the settings that may come from the environment.
// Nil pointers are variables that were not set. Names are derived with
// split_words so every variable carries the prefix (NodeURL reads
// OCTWALLET_NODE_URL); an explicit envconfig tag would also match the
// unprefixed name.
type envOverrides struct {
	Network         *string        `split_words:"true"`
	Datadir         *string        `split_words:"true"`
	NodeURL         *string        `split_words:"true"`
	NodeColdTimeout *time.Duration `split_words:"true"`
	NodeWarmTimeout *time.Duration `split_words:"true"`
	NodeRetryBase   *time.Duration `split_words:"true"`
	NodeRetryCap    *time.Duration `split_words:"true"`
	NodeRetryMax    *int           `split_words:"true"`
	NodeRateLimit   *float64       `split_words:"true"`
	NodeRateBurst   *int           `split_words:"true"`
	FeeMin          *uint64        `split_words:"true"`
	FeeRateBps      *uint64        `split_words:"true"`
	CacheTTL        *time.Duration `split_words:"true"`
	AllowSelfSend   *bool          `split_words:"true"`
	Storage         *string        `split_words:"true"`
	RedisAddr       *string        `split_words:"true"`
	RedisPassword   *string        `split_words:"true"`
	RedisDB         *int           `split_words:"true"`
	LogLevel        *string        `split_words:"true"`
	LogFile         *string        `split_words:"true"`
	LogJSON         *bool          `split_words:"true"`
}

// ApplyEnv applies OCTWALLET_* environment variables to cfg.
func ApplyEnv(cfg *Config) error {
	var e envOverrides
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	if e.Network != nil {
		cfg.Network = NetworkType(strings.ToLower(*e.Network))
	}
	if e.Datadir != nil {
		cfg.DataDir = *e.Datadir
	}
	if e.NodeURL != nil {
		cfg.Node.URL = *e.NodeURL
	}
	if e.NodeColdTimeout != nil {
		cfg.Node.ColdTimeout = *e.NodeColdTimeout
	}
	if e.NodeWarmTimeout != nil {
		cfg.Node.WarmTimeout = *e.NodeWarmTimeout
	}
	if e.NodeRetryBase != nil {
		cfg.Node.RetryBase = *e.NodeRetryBase
	}
	if e.NodeRetryCap != nil {
		cfg.Node.RetryCap = *e.NodeRetryCap
	}
	if e.NodeRetryMax != nil {
		cfg.Node.RetryMax = *e.NodeRetryMax
	}
	if e.NodeRateLimit != nil {
		cfg.Node.RateLimit = *e.NodeRateLimit
	}
	if e.NodeRateBurst != nil {
		cfg.Node.RateBurst = *e.NodeRateBurst
	}
	if e.FeeMin != nil {
		cfg.Fee.MinFee = *e.FeeMin
	}
	if e.FeeRateBps != nil {
		cfg.Fee.RateBps = *e.FeeRateBps
	}
	if e.CacheTTL != nil {
		cfg.Cache.TTL = *e.CacheTTL
	}
	if e.AllowSelfSend != nil {
		cfg.Sender.AllowSelfSend = *e.AllowSelfSend
	}
	if e.Storage != nil {
		cfg.Storage.Backend = strings.ToLower(*e.Storage)
	}
	if e.RedisAddr != nil {
		cfg.Storage.RedisAddr = *e.RedisAddr
	}
	if e.RedisPassword != nil {
		cfg.Storage.RedisPassword = *e.RedisPassword
	}
	if e.RedisDB != nil {
		cfg.Storage.RedisDB = *e.RedisDB
	}
	if e.LogLevel != nil {
		cfg.Log.Level = *e.LogLevel
	}
	if e.LogFile != nil {
		cfg.Log.File = *e.LogFile
	}
	if e.LogJSON != nil {
		cfg.Log.JSON = *e.LogJSON
	}
	return nil
}
