// octwallet-cli is a command-line wallet for the Octra network.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/octwallet/config"
	"github.com/Klingon-tech/octwallet/internal/core"
	klog "github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/storage"
	"github.com/Klingon-tech/octwallet/internal/wallet"
)

var version = "dev"

// env is what every command gets: resolved config and the open store.
type env struct {
	cfg *config.Config
	db  storage.DB
}

func main() {
	cfg, flags, err := config.Load(os.Args[1:])
	if err != nil {
		fatal("%v", err)
	}
	if flags.Version {
		fmt.Printf("octwallet-cli %s\n", version)
		return
	}
	if flags.Help || len(flags.Args) == 0 {
		usage()
		if !flags.Help {
			os.Exit(1)
		}
		return
	}

	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("initializing logger: %v", err)
	}

	db, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		fatal("open storage: %v", err)
	}
	defer db.Close()

	// A network chosen on the command line or in the environment wins over
	// the saved one.
	if flags.Network == "" && os.Getenv(config.EnvPrefix+"_NETWORK") == "" {
		if s := core.LoadSettings(db); s.CurrentNetwork != cfg.Network || s.CurrentNetwork == config.Custom {
			s.Apply(cfg)
			config.ApplyFlags(cfg, flags)
			if err := config.Validate(cfg); err != nil {
				fatal("invalid config for saved network %s: %v", s.CurrentNetwork, err)
			}
			if err := config.EnsureDataDirs(cfg); err != nil {
				fatal("%v", err)
			}
		}
	}

	e := &env{cfg: cfg, db: db}
	cmd := flags.Args[0]
	args := flags.Args[1:]

	switch cmd {
	case "status":
		cmdStatus(e)
	case "wallet":
		cmdWallet(e, args)
	case "balance":
		cmdBalance(e, args)
	case "send":
		cmdSend(e, args)
	case "sendmany":
		cmdSendMany(e, args)
	case "encrypt":
		cmdEncrypt(e, args)
	case "decrypt":
		cmdDecrypt(e, args)
	case "private-send":
		cmdPrivateSend(e, args)
	case "bulk-private":
		cmdBulkPrivate(e, args)
	case "pending":
		cmdPending(e, args)
	case "claim":
		cmdClaim(e, args)
	case "history":
		cmdHistory(e, args)
	case "network":
		cmdNetwork(e, args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: octwallet-cli [global flags] <command> [flags]

Commands:
  status                          Show node endpoint and current epoch
  balance <address>               Show the public balance of any address
  balance --wallet <w>            Show public and encrypted balance

  wallet create --name <n>        Create a new wallet
  wallet import --name <n> [--mnemonic "..." | --key <base64>] [--strict]
                                  Import a wallet
  wallet list                     List wallets
  wallet address --wallet <w>     Show a wallet's address and public key
  wallet delete --name <n> --yes  Delete a wallet file and its tracked transactions

  send --wallet <w> --to <addr> --amount <oct> [--message <m>]
                                  Send a public transfer
  sendmany --wallet <w> --recipients <file.json>
                                  Send public transfers with consecutive nonces

  encrypt --wallet <w> --amount <oct>
                                  Move funds into the encrypted balance
  decrypt --wallet <w> --amount <oct>
                                  Move funds back to the public balance
  private-send --wallet <w> --to <addr> --amount <oct>
                                  Send a private transfer
  bulk-private --wallet <w> --recipients <file.json>
                                  Send private transfers one epoch apart
  pending --wallet <w>            List incoming private transfers
  claim --wallet <w> --id <id>    Claim an incoming private transfer
  history --wallet <w> [--all]    Show tracked transactions
  history --wallet <w> --cancel <id>
                                  Cancel a queued transaction never sent

  network show                    Show the saved network
  network use <mainnet|testnet|custom> [--url <node>]
                                  Save the network used by default
  network reset <network> --yes   Delete all local data for a network

`)
	config.PrintUsage(os.Stderr)
}

// ── Wallet unlock ───────────────────────────────────────────────────────

func keystore(e *env) *wallet.Keystore {
	ks, err := wallet.NewKeystore(e.cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	return ks
}

func unlock(e *env, name string) *wallet.Keys {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	keys, err := keystore(e).Load(name, password)
	zero(password)
	if err != nil {
		fatal("unlock wallet %s: %v", name, err)
	}
	return keys
}

// openCore unlocks name, builds the wallet core around it and loads its
// tracked transactions. The caller must call done.
func openCore(ctx context.Context, e *env, name string, opts ...core.Option) (c *core.Core, done func()) {
	keys := unlock(e, name)
	c, err := core.New(e.cfg, keys, e.db, opts...)
	if err != nil {
		keys.Zero()
		fatal("%v", err)
	}
	if err := c.Start(ctx); err != nil {
		keys.Zero()
		fatal("%v", err)
	}
	return c, func() {
		c.Close()
		keys.Zero()
	}
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func readNewPassword() []byte {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}
	zero(confirm)
	return password
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
