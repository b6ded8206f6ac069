package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
)

// Key sizes.
const (
	SeedSize      = ed25519.SeedSize
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
)

// Signer signs messages with a private key the caller never sees.
type Signer interface {
	// Sign produces a 64-byte Ed25519 signature over msg.
	Sign(msg []byte) ([]byte, error)
	// PublicKey returns the 32-byte public key.
	PublicKey() []byte
}

// PrivateKey wraps an Ed25519 private key.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// GenerateKey creates a new Ed25519 key from rng (crypto/rand when nil).
func GenerateKey(rng io.Reader) (*PrivateKey, error) {
	if rng == nil {
		rng = rand.Reader
	}
	_, key, err := ed25519.GenerateKey(rng)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromSeed creates a PrivateKey from a 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Sign produces an Ed25519 signature over msg.
func (pk *PrivateKey) Sign(msg []byte) ([]byte, error) {
	if len(pk.key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key is zeroed or malformed")
	}
	return ed25519.Sign(pk.key, msg), nil
}

// PublicKey returns the 32-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	if len(pk.key) != ed25519.PrivateKeySize {
		return nil
	}
	pub := make([]byte, PublicKeySize)
	copy(pub, pk.key[SeedSize:])
	return pub
}

// Seed returns a copy of the 32-byte seed.
func (pk *PrivateKey) Seed() []byte {
	if len(pk.key) != ed25519.PrivateKeySize {
		return nil
	}
	return pk.key.Seed()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	for i := range pk.key {
		pk.key[i] = 0
	}
	pk.key = nil
}

// VerifySignature checks an Ed25519 signature. Returns false on malformed
// input instead of panicking.
func VerifySignature(publicKey, msg, signature []byte) bool {
	if len(publicKey) != PublicKeySize || len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), msg, signature)
}
