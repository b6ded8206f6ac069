package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/octwallet/config"
	klog "github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/storage"
)

var settingsKey = []byte("settings")

// CustomNetwork is a user-supplied node.
type CustomNetwork struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

// Settings are the wallet-wide preferences kept outside any network
// namespace.
type Settings struct {
	CurrentNetwork config.NetworkType `json:"currentNetwork"`
	CustomNetwork  *CustomNetwork     `json:"customNetwork,omitempty"`
}

// DefaultSettings selects mainnet.
func DefaultSettings() Settings {
	return Settings{CurrentNetwork: config.Mainnet}
}

// LoadSettings reads the stored settings. Missing or invalid documents
// read as DefaultSettings.
func LoadSettings(db storage.DB) Settings {
	data, err := db.Get(settingsKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			klog.Storage.Warn().Err(err).Msg("Could not read settings")
		}
		return DefaultSettings()
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		klog.Storage.Warn().Msg("Ignoring unreadable settings")
		return DefaultSettings()
	}
	switch s.CurrentNetwork {
	case config.Mainnet, config.Testnet:
	case config.Custom:
		if s.CustomNetwork == nil || s.CustomNetwork.URL == "" {
			return DefaultSettings()
		}
	default:
		return DefaultSettings()
	}
	return s
}

// SaveSettings stores s.
func SaveSettings(db storage.DB, s Settings) error {
	if s.CurrentNetwork == config.Custom && (s.CustomNetwork == nil || s.CustomNetwork.URL == "") {
		return fmt.Errorf("custom network needs a node url")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return db.Put(settingsKey, data)
}

// Apply points cfg at the network s selects. The CLI applies it only when
// no network was chosen on the command line.
func (s Settings) Apply(cfg *config.Config) {
	if s.CurrentNetwork != "" && s.CurrentNetwork != cfg.Network {
		def := config.Default(s.CurrentNetwork)
		cfg.Network = def.Network
		cfg.Node.URL = def.Node.URL
	}
	if cfg.Network == config.Custom && s.CustomNetwork != nil && cfg.Node.URL == "" {
		cfg.Node.URL = s.CustomNetwork.URL
	}
}
