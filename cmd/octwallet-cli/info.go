package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/Klingon-tech/octwallet/config"
	"github.com/Klingon-tech/octwallet/internal/core"
	"github.com/Klingon-tech/octwallet/internal/rpcclient"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// client builds a node client for commands that need no wallet.
func client(e *env) *rpcclient.Client {
	types.SetAddressFormat(e.cfg.Address.Prefix, e.cfg.Address.MinBody, e.cfg.Address.MaxBody)
	return rpcclient.NewWithOptions(e.cfg.Node.URL, rpcclient.Options{
		ColdTimeout: e.cfg.Node.ColdTimeout,
		WarmTimeout: e.cfg.Node.WarmTimeout,
		Retry: rpcclient.RetryPolicy{
			Base: e.cfg.Node.RetryBase,
			Cap:  e.cfg.Node.RetryCap,
			Max:  e.cfg.Node.RetryMax,
		},
	})
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(e *env) {
	c := client(e)
	st, err := c.GetNetworkStatus(context.Background())
	if err != nil {
		fatal("status: %s", describe(err))
	}
	fmt.Printf("Network: %s\n", e.cfg.Network)
	fmt.Printf("Node:    %s\n", c.Endpoint())
	fmt.Printf("Epoch:   %d\n", st.Epoch)
}

// ── balance ─────────────────────────────────────────────────────────────

func cmdBalance(e *env, args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name (shows the encrypted balance too)")
	fs.Parse(args)

	ctx := context.Background()
	if *name == "" {
		if fs.NArg() < 1 {
			fatal("Usage: octwallet-cli balance <address> | --wallet <name>")
		}
		addr, err := types.ParseAddress(fs.Arg(0))
		if err != nil {
			fatal("%v", err)
		}
		bal, err := client(e).GetBalance(ctx, addr.String())
		if err != nil {
			fatal("balance: %s", describe(err))
		}
		fmt.Printf("Address: %s\n", addr)
		fmt.Printf("Balance: %s\n", types.FormatOCT(bal.Micro))
		fmt.Printf("Nonce:   %d\n", bal.Nonce)
		return
	}

	c, done := openCore(ctx, e, *name)
	defer done()

	snap, err := c.Balance.Get(ctx, true)
	if err != nil {
		done()
		fatal("balance: %s", describe(err))
	}
	b, err := c.Private.Balance(ctx)
	if err != nil {
		done()
		fatal("balance: %s", describe(err))
	}

	fmt.Printf("Address:   %s\n", c.Address())
	fmt.Printf("Public:    %s\n", types.FormatOCT(b.PublicRaw))
	fmt.Printf("Encrypted: %s", types.FormatOCT(b.EncryptedRaw))
	switch {
	case b.Verified:
		fmt.Print(" (verified)")
	case b.Mismatch:
		fmt.Print(" (stored blob disagrees)")
	}
	fmt.Println()
	fmt.Printf("Nonce:     %d", snap.Nonce)
	if snap.StagedCount > 0 {
		fmt.Printf(" (%d staged)", snap.StagedCount)
	}
	fmt.Println()
}

// ── history ─────────────────────────────────────────────────────────────

func cmdHistory(e *env, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	all := fs.Bool("all", false, "Include confirmed, failed and cancelled transactions")
	cancel := fs.String("cancel", "", "Cancel the queued transaction with this id")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: octwallet-cli history --wallet <name> [--all] [--cancel <id>]")
	}

	ctx := context.Background()
	c, done := openCore(ctx, e, *name)
	defer done()

	if *cancel != "" {
		if err := c.Cancel(*cancel); err != nil {
			fatal("cancel: %s", describe(err))
		}
		fmt.Printf("Cancelled %s\n", *cancel)
		return
	}

	records := c.Tracker.Visible(c.Address())
	if *all {
		records = c.Tracker.History(c.Address())
	}
	if len(records) == 0 {
		fmt.Println("No tracked transactions.")
		return
	}
	fmt.Printf("%-17s %-18s %-10s %-6s %-14s %s\n", "CREATED", "KIND", "STATUS", "NONCE", "AMOUNT", "TX")
	for _, r := range records {
		fmt.Printf("%-17s %-18s %-10s %-6d %-14s %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Kind, r.Status, r.Nonce,
			types.FormatOCT(r.Amount), r.TxHash)
		fmt.Printf("  id: %s\n", r.ID)
		if r.LastError != "" {
			fmt.Printf("  error: %s\n", r.LastError)
		}
	}
	if t := c.Tracker.LastFetch(c.Address()); !t.IsZero() {
		fmt.Printf("\nLast checked %s ago\n", time.Since(t).Round(time.Second))
	}
}

// ── network ─────────────────────────────────────────────────────────────

func cmdNetwork(e *env, args []string) {
	if len(args) < 1 {
		fatal("Usage: octwallet-cli network <show|use|reset> [flags]")
	}

	switch args[0] {
	case "show":
		s := core.LoadSettings(e.db)
		fmt.Printf("Saved network: %s\n", s.CurrentNetwork)
		if s.CustomNetwork != nil {
			fmt.Printf("Custom node:   %s\n", s.CustomNetwork.URL)
		}
		fmt.Printf("In use:        %s (%s)\n", e.cfg.Network, e.cfg.Node.URL)
	case "use":
		fs := flag.NewFlagSet("network use", flag.ExitOnError)
		url := fs.String("url", "", "Node URL for the custom network")
		fs.Parse(args[1:])
		var n config.NetworkType
		if fs.NArg() > 0 {
			n = config.NetworkType(fs.Arg(0))
			fs.Parse(fs.Args()[1:])
		}
		if n == "" || fs.NArg() != 0 {
			fatal("Usage: octwallet-cli network use <mainnet|testnet|custom> [--url <node>]")
		}

		s := core.LoadSettings(e.db)
		s.CurrentNetwork = n
		switch s.CurrentNetwork {
		case config.Mainnet, config.Testnet:
		case config.Custom:
			if *url != "" {
				s.CustomNetwork = &core.CustomNetwork{Name: "custom", URL: *url}
			}
		default:
			fatal("unknown network %q", n)
		}
		if err := core.SaveSettings(e.db, s); err != nil {
			fatal("save settings: %v", err)
		}
		fmt.Printf("Default network set to %s\n", s.CurrentNetwork)
	case "reset":
		fs := flag.NewFlagSet("network reset", flag.ExitOnError)
		yes := fs.Bool("yes", false, "Confirm deleting every tracked transaction on the network")
		fs.Parse(args[1:])
		var n config.NetworkType
		if fs.NArg() > 0 {
			n = config.NetworkType(fs.Arg(0))
			fs.Parse(fs.Args()[1:])
		}
		if n == "" || fs.NArg() != 0 || !*yes {
			fatal("Usage: octwallet-cli network reset <mainnet|testnet|custom> --yes")
		}
		switch n {
		case config.Mainnet, config.Testnet, config.Custom:
		default:
			fatal("unknown network %q", n)
		}
		if err := core.ResetNetwork(e.db, n); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Local data for %s deleted\n", n)
	default:
		fatal("Unknown network command: %s", args[0])
	}
}
