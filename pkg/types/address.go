package types

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/Klingon-tech/octwallet/internal/errs"
)

// Address format constants. The node pins these; SetAddressFormat exists so
// a network config can override them without a rebuild.
const (
	DefaultAddressPrefix = "oct"
	// AddressBodyLen is the number of base58 characters kept from the
	// encoded public-key hash.
	AddressBodyLen = 44
	// MinAddressBodyLen is the shortest body accepted on input.
	MinAddressBodyLen = 43
)

var (
	activePrefix  = DefaultAddressPrefix
	activeMinBody = MinAddressBodyLen
	activeMaxBody = AddressBodyLen
)

// SetAddressFormat sets the active prefix and accepted body length window
// (call once at startup).
func SetAddressFormat(prefix string, minBody, maxBody int) {
	activePrefix = prefix
	activeMinBody = minBody
	activeMaxBody = maxBody
}

// AddressPrefix returns the active address prefix.
func AddressPrefix() string {
	return activePrefix
}

// Address is the canonical text form of an account, e.g. "oct8UYo...".
type Address string

// AddressFromPubKey derives the address for a 32-byte Ed25519 public key:
// prefix || base58(sha256(pk)) truncated to AddressBodyLen characters and
// left-padded with '1' when the encoding is shorter.
func AddressFromPubKey(pubKey []byte) Address {
	sum := sha256.Sum256(pubKey)
	body := base58.Encode(sum[:])
	if len(body) > activeMaxBody {
		body = body[:activeMaxBody]
	}
	if len(body) < activeMaxBody {
		body = strings.Repeat("1", activeMaxBody-len(body)) + body
	}
	return Address(activePrefix + body)
}

// String returns the address text.
func (a Address) String() string {
	return string(a)
}

// IsZero returns true for the empty address.
func (a Address) IsZero() bool {
	return a == ""
}

// Short returns an abbreviated form for logs, e.g. "oct8UYo…x9Qa".
func (a Address) Short() string {
	s := string(a)
	if len(s) <= 14 {
		return s
	}
	return s[:7] + "…" + s[len(s)-4:]
}

// UnmarshalJSON decodes and validates an address string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = ""
		return nil
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress trims s and validates it with ValidateAddress.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if err := ValidateAddress(s); err != nil {
		return "", err
	}
	return Address(s), nil
}

// ValidateAddress rejects anything that is not prefix + base58 body within
// the accepted length window.
func ValidateAddress(s string) error {
	const op = "types.ValidateAddress"
	if s == "" {
		return errs.E(errs.BadAddress, op, "empty address")
	}
	if !strings.HasPrefix(s, activePrefix) {
		return errs.Ef(errs.BadAddress, op, "address must start with %q", activePrefix)
	}
	body := s[len(activePrefix):]
	if len(body) < activeMinBody || len(body) > activeMaxBody {
		return errs.Ef(errs.BadAddress, op, "address body must be %d-%d characters, got %d",
			activeMinBody, activeMaxBody, len(body))
	}
	for i := 0; i < len(body); i++ {
		if !isBase58Char(body[i]) {
			return errs.Ef(errs.BadAddress, op, "invalid base58 character %q at position %d",
				body[i], len(activePrefix)+i)
		}
	}
	return nil
}

// IsValidAddress is the boolean form of ValidateAddress.
func IsValidAddress(s string) bool {
	return ValidateAddress(s) == nil
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func isBase58Char(c byte) bool {
	return strings.IndexByte(base58Alphabet, c) >= 0
}

// MustAddress panics on invalid input. Test and constant use only.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(fmt.Sprintf("invalid address %q: %v", s, err))
	}
	return a
}
