package core

import (
	"fmt"

	"github.com/Klingon-tech/octwallet/config"
	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/internal/storage"
	"github.com/Klingon-tech/octwallet/internal/tracker"
)

// networks are the namespaces a wallet may have written to.
var networks = []config.NetworkType{config.Mainnet, config.Testnet, config.Custom}

// NetworkDB returns the namespace of network n inside db. Keys outside
// every namespace, such as the settings, are shared.
func NetworkDB(db storage.DB, n config.NetworkType) *storage.PrefixDB {
	return storage.NewPrefixDB(db, []byte(string(n)+"/"))
}

// ForgetAddress deletes the tracked transactions of addr on every network.
func ForgetAddress(db storage.DB, addr string) error {
	for _, n := range networks {
		if err := tracker.Forget(NetworkDB(db, n), addr); err != nil {
			return fmt.Errorf("forget %s on %s: %w", addr, n, err)
		}
	}
	return nil
}

// ResetNetwork deletes everything stored in network n's namespace, for
// every wallet.
func ResetNetwork(db storage.DB, n config.NetworkType) error {
	if err := NetworkDB(db, n).DeleteAll(); err != nil {
		return fmt.Errorf("reset %s: %w", n, err)
	}
	return nil
}

// Cancel aborts one of the wallet's tracked transactions that was queued
// but never handed to the node, e.g. after a crash mid-batch.
func (c *Core) Cancel(id string) error {
	r, ok := c.Tracker.Get(id)
	if !ok || r.From != c.Address() {
		return errs.Ef(errs.NotFound, "core.Cancel", "no tracked transaction %s for this wallet", id)
	}
	return c.Tracker.Cancel(id)
}
