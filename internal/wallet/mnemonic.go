// Package wallet implements the key and address manager: mnemonic handling,
// key derivation, signing and the encrypted on-disk keystore.
package wallet

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tyler-smith/go-bip39"

	"github.com/Klingon-tech/octwallet/internal/errs"
)

// Mnemonic constants. Wallets use 12-word phrases.
const (
	MnemonicWords       = 12
	MnemonicEntropyBits = 128
)

var (
	wordIndexOnce sync.Once
	wordIndex     map[string]struct{}
)

func inWordList(w string) bool {
	wordIndexOnce.Do(func() {
		list := bip39.GetWordList()
		wordIndex = make(map[string]struct{}, len(list))
		for _, word := range list {
			wordIndex[word] = struct{}{}
		}
	})
	_, ok := wordIndex[w]
	return ok
}

// GenerateMnemonic creates a new 12-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// NormalizeMnemonic lowercases the phrase and collapses all whitespace to
// single spaces.
func NormalizeMnemonic(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// ValidateMnemonic checks if a mnemonic is valid per BIP-39
// (correct word count, valid words, valid checksum).
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}

// CheckMnemonic verifies the shape of a normalized phrase: exactly
// MnemonicWords words, all from the BIP-39 English list. The checksum is
// enforced only when requireChecksum is set. It reports whether the
// checksum is valid either way.
func CheckMnemonic(phrase string, requireChecksum bool) (checksumOK bool, err error) {
	const op = "wallet.CheckMnemonic"

	words := strings.Fields(phrase)
	if len(words) != MnemonicWords {
		return false, errs.Ef(errs.BadMnemonic, op, "expected %d words, got %d", MnemonicWords, len(words))
	}
	for i, w := range words {
		if !inWordList(w) {
			return false, errs.Ef(errs.BadMnemonic, op, "word %d is not in the BIP-39 word list", i+1)
		}
	}
	checksumOK = bip39.IsMnemonicValid(strings.Join(words, " "))
	if !checksumOK && requireChecksum {
		return false, errs.E(errs.BadMnemonic, op, "mnemonic checksum mismatch")
	}
	return checksumOK, nil
}
