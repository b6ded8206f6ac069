package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

const keystoreVersion = 2

// keystoreFile is the on-disk JSON format for an encrypted wallet. The
// address is stored in clear so wallets can be listed without a password.
type keystoreFile struct {
	Version         int           `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	Name            string        `json:"name"`
	Address         types.Address `json:"address"`
	EncryptedSecret []byte        `json:"encrypted_secret"`
}

// secret is the plaintext sealed inside EncryptedSecret. Exactly one field
// is set.
type secret struct {
	Mnemonic string `json:"mnemonic,omitempty"`
	Seed     string `json:"seed,omitempty"` // base64, seed-imported wallets
}

// Entry describes a stored wallet without decrypting it.
type Entry struct {
	Name      string
	Address   types.Address
	CreatedAt time.Time
}

// Keystore manages encrypted key storage on disk.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore that reads/writes to the given directory.
// The directory is created if it doesn't exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

// walletPath returns the file path for a wallet by name.
func (ks *Keystore) walletPath(name string) string {
	return filepath.Join(ks.path, name+".wallet")
}

// Create encrypts the wallet's phrase (or seed) with password and writes it
// under the wallet's name.
func (ks *Keystore) Create(keys *Keys, password []byte, params EncryptionParams) error {
	name := keys.Name()
	if name == "" || filepath.Base(name) != name {
		return errs.Ef(errs.BadInput, "wallet.Keystore.Create", "invalid wallet name %q", name)
	}
	path := ks.walletPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("wallet %q already exists", name)
	}

	sec := secret{Mnemonic: keys.Mnemonic()}
	if sec.Mnemonic == "" {
		sec.Seed = keys.AuthKey()
	}
	plain, err := json.Marshal(sec)
	if err != nil {
		return fmt.Errorf("marshal secret: %w", err)
	}
	defer zero(plain)

	encrypted, err := Encrypt(plain, password, params)
	if err != nil {
		return fmt.Errorf("encrypt secret: %w", err)
	}

	kf := keystoreFile{
		Version:         keystoreVersion,
		CreatedAt:       time.Now().UTC(),
		Name:            name,
		Address:         keys.Address(),
		EncryptedSecret: encrypted,
	}
	return ks.writeFile(path, &kf)
}

// Load decrypts a wallet and rebuilds its keys.
func (ks *Keystore) Load(name string, password []byte) (*Keys, error) {
	kf, err := ks.readFile(ks.walletPath(name))
	if err != nil {
		return nil, err
	}

	plain, err := Decrypt(kf.EncryptedSecret, password)
	if err != nil {
		return nil, errs.E(errs.Auth, "wallet.Keystore.Load", "wrong password or corrupted wallet file")
	}
	defer zero(plain)

	var sec secret
	if err := json.Unmarshal(plain, &sec); err != nil {
		return nil, fmt.Errorf("parse wallet secret: %w", err)
	}

	var keys *Keys
	if sec.Mnemonic != "" {
		keys, err = LoadFromMnemonic(sec.Mnemonic, WithName(kf.Name))
	} else {
		keys, err = FromAuthKey(sec.Seed, WithName(kf.Name))
	}
	if err != nil {
		return nil, err
	}
	if keys.Address() != kf.Address {
		return nil, fmt.Errorf("wallet %q: stored address does not match derived key", name)
	}
	return keys, nil
}

// List returns all wallets in the keystore.
func (ks *Keystore) List() ([]Entry, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	var out []Entry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".wallet" {
			continue
		}
		kf, err := ks.readFile(filepath.Join(ks.path, name))
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: kf.Name, Address: kf.Address, CreatedAt: kf.CreatedAt})
	}
	return out, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errs.Ef(errs.NotFound, "wallet.Keystore.Delete", "wallet %q not found", name)
	}
	return os.Remove(path)
}

func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(path string) (*keystoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Ef(errs.NotFound, "wallet.Keystore", "wallet %q not found",
				filepath.Base(path[:len(path)-len(filepath.Ext(path))]))
		}
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, nil
}
