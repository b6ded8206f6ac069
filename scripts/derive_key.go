// derive_key.go prints the public key and address for a base64 private key
// file, or for a recovery phrase with -mnemonic.
// Usage: go run scripts/derive_key.go [-mnemonic] <keyfile>
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/octwallet/internal/wallet"
)

func main() {
	args := os.Args[1:]
	mnemonic := len(args) > 0 && args[0] == "-mnemonic"
	if mnemonic {
		args = args[1:]
	}
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: derive_key [-mnemonic] <keyfile>")
		os.Exit(1)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	secret := strings.TrimSpace(string(data))

	var keys *wallet.Keys
	if mnemonic {
		keys, err = wallet.LoadFromMnemonic(secret)
	} else {
		keys, err = wallet.FromAuthKey(secret)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer keys.Zero()

	fmt.Printf("pubkey=%s\n", keys.PublicKeyBase64())
	fmt.Printf("address=%s\n", keys.Address())
	if mnemonic && !keys.ChecksumValid() {
		fmt.Println("warning: phrase has no valid BIP-39 checksum")
	}
}
