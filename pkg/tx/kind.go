package tx

import "fmt"

// Kind tags the operation a signed payload performs.
type Kind uint8

const (
	KindPublic Kind = iota
	KindPrivateTransfer
	KindEncrypt
	KindDecrypt
	KindClaim
)

// PrivateTransferMessage is the message field carried by every private
// transfer's canonical form.
const PrivateTransferMessage = "PRIVATE_TRANSFER"

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPublic:
		return "public"
	case KindPrivateTransfer:
		return "private_transfer"
	case KindEncrypt:
		return "encrypt"
	case KindDecrypt:
		return "decrypt"
	case KindClaim:
		return "claim"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "public", "":
		return KindPublic, nil
	case "private_transfer":
		return KindPrivateTransfer, nil
	case "encrypt":
		return KindEncrypt, nil
	case "decrypt":
		return KindDecrypt, nil
	case "claim":
		return KindClaim, nil
	}
	return 0, fmt.Errorf("unknown transaction kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Transfer reports whether the kind moves funds between two addresses.
func (k Kind) Transfer() bool {
	return k == KindPublic || k == KindPrivateTransfer
}
