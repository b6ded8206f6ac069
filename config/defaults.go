package config

import "time"

// Default node endpoints.
const (
	MainnetNodeURL = "https://octra.network"
	TestnetNodeURL = "https://testnet.octra.network"
)

// DefaultMainnet returns the default wallet configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			URL:         MainnetNodeURL,
			ColdTimeout: 20 * time.Second,
			WarmTimeout: 10 * time.Second,
			RetryBase:   500 * time.Millisecond,
			RetryCap:    8 * time.Second,
			RetryMax:    3,
			RateLimit:   10,
			RateBurst:   5,
		},
		Address: AddressConfig{
			Prefix:  "oct",
			MinBody: 43,
			MaxBody: 44,
		},
		Fee: FeeConfig{
			MinFee:  1000,
			RateBps: 1,
		},
		Cache: CacheConfig{
			TTL: 30 * time.Second,
		},
		Bulk: BulkConfig{
			PollInterval: 2 * time.Second,
			WaitTimeout:  60 * time.Second,
			Countdown:    10 * time.Second,
		},
		Sender: SenderConfig{
			AllowSelfSend: true,
		},
		Tracker: TrackerConfig{
			Interval: 15 * time.Second,
			PruneAge: 7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Backend: "badger",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default wallet configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Node.URL = TestnetNodeURL
	return cfg
}

// Default returns the default wallet configuration for the given network.
// A custom network starts from the mainnet values with no node URL.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	case Custom:
		cfg := DefaultMainnet()
		cfg.Network = Custom
		cfg.Node.URL = ""
		return cfg
	default:
		return DefaultMainnet()
	}
}
