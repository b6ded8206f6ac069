// Package crypto provides the cryptographic primitives used by the wallet:
// SHA-256, Ed25519, AES-256-GCM and constant-time helpers.
package crypto

import (
	"crypto/sha256"

	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/octwallet/pkg/types"
)

// SHA256 computes the SHA-256 digest of data.
func SHA256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// SHA256Concat hashes the concatenation of parts without an intermediate
// allocation per part.
func SHA256Concat(parts ...[]byte) types.Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Fingerprint computes a BLAKE3-256 digest. It identifies local records
// (e.g. identical signed payloads) and never goes on the wire.
func Fingerprint(data []byte) types.Hash {
	return blake3.Sum256(data)
}
