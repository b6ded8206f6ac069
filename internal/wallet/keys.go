package wallet

import (
	"encoding/base64"

	"github.com/google/uuid"

	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/pkg/crypto"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// identityNamespace scopes wallet IDs so the same address always gets the
// same ID.
var identityNamespace = uuid.MustParse("5b0e2a8e-3f4c-4d7a-9a51-0c7e5d6f1a20")

// Identity is the public part of a wallet.
type Identity struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Address   types.Address `json:"address"`
	PublicKey []byte        `json:"public_key"`
}

// Keys owns the active keypair. Other components receive it only through
// the narrow capabilities below; none of them returns the raw seed bytes.
type Keys struct {
	name       string
	address    types.Address
	pub        []byte
	key        *crypto.PrivateKey
	mnemonic   string
	checksumOK bool
}

type loadOptions struct {
	name            string
	requireChecksum bool
}

// Option configures LoadFromMnemonic and FromSeed.
type Option func(*loadOptions)

// WithName sets the display name of the wallet.
func WithName(name string) Option {
	return func(o *loadOptions) { o.name = name }
}

// RequireChecksum rejects phrases whose BIP-39 checksum does not match.
func RequireChecksum() Option {
	return func(o *loadOptions) { o.requireChecksum = true }
}

func applyOptions(opts []Option) loadOptions {
	o := loadOptions{name: "default"}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// LoadFromMnemonic derives the wallet keys from a 12-word phrase. The phrase
// is case and whitespace normalized first, so the result is a pure function
// of the words. The Ed25519 seed is the first 32 bytes of the BIP-39 seed.
func LoadFromMnemonic(phrase string, opts ...Option) (*Keys, error) {
	const op = "wallet.LoadFromMnemonic"
	o := applyOptions(opts)

	normalized := NormalizeMnemonic(phrase)
	checksumOK, err := CheckMnemonic(normalized, o.requireChecksum)
	if err != nil {
		return nil, err
	}

	seed := seedFromWords(normalized)
	defer zero(seed)

	k, err := fromSeed(seed[:crypto.SeedSize], o.name)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, op, err)
	}
	k.mnemonic = normalized
	k.checksumOK = checksumOK
	return k, nil
}

// FromSeed builds keys from a raw 32-byte Ed25519 seed (wallets imported
// without a phrase).
func FromSeed(seed []byte, opts ...Option) (*Keys, error) {
	const op = "wallet.FromSeed"
	o := applyOptions(opts)
	if len(seed) != crypto.SeedSize {
		return nil, errs.Ef(errs.BadInput, op, "seed must be %d bytes, got %d", crypto.SeedSize, len(seed))
	}
	k, err := fromSeed(seed, o.name)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, op, err)
	}
	return k, nil
}

// FromAuthKey builds keys from the base64 seed form returned by AuthKey.
func FromAuthKey(b64 string, opts ...Option) (*Keys, error) {
	seed, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errs.E(errs.BadInput, "wallet.FromAuthKey", "private key is not valid base64")
	}
	defer zero(seed)
	return FromSeed(seed, opts...)
}

// Generate creates a fresh wallet with a new 12-word phrase.
func Generate(opts ...Option) (*Keys, error) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, "wallet.Generate", err)
	}
	return LoadFromMnemonic(mnemonic, append(opts, RequireChecksum())...)
}

func fromSeed(seed []byte, name string) (*Keys, error) {
	key, err := crypto.PrivateKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return &Keys{
		name:    name,
		address: types.AddressFromPubKey(key.PublicKey()),
		pub:     key.PublicKey(),
		key:     key,
	}, nil
}

// Address returns the wallet address.
func (k *Keys) Address() types.Address { return k.address }

// Name returns the display name.
func (k *Keys) Name() string { return k.name }

// ID returns a stable identifier derived from the address.
func (k *Keys) ID() string {
	return uuid.NewSHA1(identityNamespace, []byte(k.address)).String()
}

// PublicKey returns the 32-byte Ed25519 public key.
func (k *Keys) PublicKey() []byte {
	out := make([]byte, len(k.pub))
	copy(out, k.pub)
	return out
}

// PublicKeyBase64 returns the public key in its wire form.
func (k *Keys) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.pub)
}

// Sign signs msg. Failures never include key material.
func (k *Keys) Sign(msg []byte) ([]byte, error) {
	sig, err := k.key.Sign(msg)
	if err != nil {
		return nil, errs.E(errs.CryptoFailure, "wallet.Sign", "signing failed")
	}
	return sig, nil
}

// AuthKey returns the base64 seed the node expects as the credential for
// owner-only reads (encrypted balance, pending transfers, claims).
func (k *Keys) AuthKey() string {
	seed := k.key.Seed()
	defer zero(seed)
	return base64.StdEncoding.EncodeToString(seed)
}

// BalanceKey returns sha256("BAL|" || seed), the AES key for the
// client-side encrypted balance value.
func (k *Keys) BalanceKey() [32]byte {
	seed := k.key.Seed()
	defer zero(seed)
	return [32]byte(crypto.SHA256Concat([]byte("BAL|"), seed))
}

// Mnemonic returns the normalized phrase, or "" for seed-imported wallets.
func (k *Keys) Mnemonic() string { return k.mnemonic }

// ChecksumValid reports whether the phrase carried a valid BIP-39 checksum.
func (k *Keys) ChecksumValid() bool { return k.checksumOK }

// Identity returns the public description of the wallet.
func (k *Keys) Identity() Identity {
	return Identity{
		ID:        k.ID(),
		Name:      k.name,
		Address:   k.address,
		PublicKey: k.PublicKey(),
	}
}

// Zero wipes the private key. The Keys value is unusable afterwards.
func (k *Keys) Zero() {
	k.key.Zero()
	k.mnemonic = ""
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
