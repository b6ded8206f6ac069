package private

import (
	"encoding/base64"
	"io"
	"strconv"
	"strings"

	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/pkg/crypto"
)

// Envelope version tags.
const (
	BalancePrefix = "v1|" // owner-only encrypted balance value
	AmountPrefix  = "v2|" // transfer amount readable by both parties
)

const sharedKeyLabel = "OCTRA_SYMMETRIC_V1"

// DeriveSharedKey derives the transfer key from two 32-byte public keys.
// The result does not depend on argument order:
//
//	round1 = sha256(min(a, b) || max(a, b))
//	key    = sha256(round1 || "OCTRA_SYMMETRIC_V1")
func DeriveSharedKey(a, b []byte) ([32]byte, error) {
	if len(a) != crypto.PublicKeySize || len(b) != crypto.PublicKeySize {
		return [32]byte{}, errs.E(errs.CryptoFailure, "private.DeriveSharedKey", "public keys must be 32 bytes")
	}
	small, large := crypto.Ordered(a, b)
	round1 := crypto.SHA256Concat(small, large)
	round2 := crypto.SHA256Concat(round1[:], []byte(sharedKeyLabel))
	return round2, nil
}

// SealAmount encrypts amount under key as a "v2|" envelope.
func SealAmount(key [32]byte, amount uint64, rng io.Reader) (string, error) {
	return seal("private.SealAmount", AmountPrefix, key, amount, rng)
}

// OpenAmount decrypts a "v2|" envelope.
func OpenAmount(key [32]byte, envelope string) (uint64, error) {
	return open("private.OpenAmount", AmountPrefix, key, envelope)
}

// SealBalance encrypts an encrypted-balance value under the owner's balance
// key as a "v1|" blob.
func SealBalance(key [32]byte, raw uint64, rng io.Reader) (string, error) {
	return seal("private.SealBalance", BalancePrefix, key, raw, rng)
}

// OpenBalance decrypts a "v1|" blob.
func OpenBalance(key [32]byte, blob string) (uint64, error) {
	return open("private.OpenBalance", BalancePrefix, key, blob)
}

func seal(op, prefix string, key [32]byte, v uint64, rng io.Reader) (string, error) {
	ct, err := crypto.Seal(key[:], []byte(strconv.FormatUint(v, 10)), rng)
	if err != nil {
		return "", errs.Wrap(errs.CryptoFailure, op, err)
	}
	return prefix + base64.StdEncoding.EncodeToString(ct), nil
}

func open(op, prefix string, key [32]byte, s string) (uint64, error) {
	if !strings.HasPrefix(s, prefix) {
		return 0, errs.Ef(errs.CryptoFailure, op, "envelope must start with %q", prefix)
	}
	blob, err := base64.StdEncoding.DecodeString(s[len(prefix):])
	if err != nil {
		return 0, errs.E(errs.CryptoFailure, op, "envelope is not base64")
	}
	pt, err := crypto.Open(key[:], blob)
	if err != nil {
		return 0, errs.E(errs.CryptoFailure, op, "envelope does not decrypt")
	}
	v, err := strconv.ParseUint(string(pt), 10, 64)
	if err != nil {
		return 0, errs.E(errs.CryptoFailure, op, "envelope payload is not an amount")
	}
	return v, nil
}
