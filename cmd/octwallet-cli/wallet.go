package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/Klingon-tech/octwallet/internal/core"
	"github.com/Klingon-tech/octwallet/internal/wallet"
)

// ── wallet ──────────────────────────────────────────────────────────────

func cmdWallet(e *env, args []string) {
	if len(args) < 1 {
		fatal("Usage: octwallet-cli wallet <create|import|list|address|delete> [flags]")
	}

	switch args[0] {
	case "create":
		cmdWalletCreate(e, args[1:])
	case "import":
		cmdWalletImport(e, args[1:])
	case "list":
		cmdWalletList(e)
	case "address":
		cmdWalletAddress(e, args[1:])
	case "delete":
		cmdWalletDelete(e, args[1:])
	default:
		fatal("Unknown wallet command: %s\nUsage: octwallet-cli wallet <create|import|list|address|delete> [flags]", args[0])
	}
}

func cmdWalletCreate(e *env, args []string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: octwallet-cli wallet create --name <name>")
	}

	keys, err := wallet.Generate(wallet.WithName(*name))
	if err != nil {
		fatal("generate wallet: %v", err)
	}
	defer keys.Zero()

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", keys.Mnemonic())

	password := readNewPassword()
	defer zero(password)
	if err := keystore(e).Create(keys, password, wallet.DefaultParams()); err != nil {
		fatal("create wallet: %v", err)
	}

	fmt.Printf("\nWallet created: %s\n", *name)
	fmt.Printf("Address: %s\n", keys.Address())
}

func cmdWalletImport(e *env, args []string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "12-word recovery phrase")
	key := fs.String("key", "", "Base64 private key")
	strict := fs.Bool("strict", false, "Reject phrases without a valid BIP-39 checksum")
	fs.Parse(args)

	if *name == "" || (*mnemonic == "") == (*key == "") {
		fatal("Usage: octwallet-cli wallet import --name <name> (--mnemonic \"word1 word2 ...\" | --key <base64>)")
	}

	var keys *wallet.Keys
	var err error
	if *key != "" {
		keys, err = wallet.FromAuthKey(strings.TrimSpace(*key), wallet.WithName(*name))
	} else {
		opts := []wallet.Option{wallet.WithName(*name)}
		if *strict {
			opts = append(opts, wallet.RequireChecksum())
		}
		keys, err = wallet.LoadFromMnemonic(*mnemonic, opts...)
	}
	if err != nil {
		fatal("import wallet: %v", err)
	}
	defer keys.Zero()
	if *mnemonic != "" && !keys.ChecksumValid() {
		fmt.Println("Warning: the phrase has no valid BIP-39 checksum; importing anyway.")
	}

	password := readNewPassword()
	defer zero(password)
	if err := keystore(e).Create(keys, password, wallet.DefaultParams()); err != nil {
		fatal("save wallet: %v", err)
	}

	fmt.Printf("\nWallet imported: %s\n", *name)
	fmt.Printf("Address: %s\n", keys.Address())
}

func cmdWalletList(e *env) {
	entries, err := keystore(e).List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("No wallets found.")
		return
	}
	fmt.Printf("%-20s %s\n", "NAME", "ADDRESS")
	for _, en := range entries {
		fmt.Printf("%-20s %s\n", en.Name, en.Address)
	}
}

func cmdWalletAddress(e *env, args []string) {
	fs := flag.NewFlagSet("wallet address", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: octwallet-cli wallet address --wallet <name>")
	}
	keys := unlock(e, *name)
	defer keys.Zero()

	fmt.Printf("Address:    %s\n", keys.Address())
	fmt.Printf("Public key: %s\n", keys.PublicKeyBase64())
}

func cmdWalletDelete(e *env, args []string) {
	fs := flag.NewFlagSet("wallet delete", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	yes := fs.Bool("yes", false, "Confirm deleting the wallet file")
	fs.Parse(args)

	if *name == "" || !*yes {
		fatal("Usage: octwallet-cli wallet delete --name <name> --yes")
	}
	ks := keystore(e)
	entries, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	var addr string
	for _, en := range entries {
		if en.Name == *name {
			addr = en.Address.String()
		}
	}
	if err := ks.Delete(*name); err != nil {
		fatal("delete wallet: %v", err)
	}
	if addr != "" {
		if err := core.ForgetAddress(e.db, addr); err != nil {
			fatal("%v", err)
		}
	}
	fmt.Printf("Wallet deleted: %s\n", *name)
}
