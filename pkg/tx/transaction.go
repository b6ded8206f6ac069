// Package tx defines the signable ledger operations, their canonical
// encoding and the fee schedule.
package tx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Klingon-tech/octwallet/pkg/crypto"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// MaxMessageBytes bounds the optional message of a public transfer.
const MaxMessageBytes = 1024

// Transaction is a transfer from one address to another. Kind is either
// KindPublic or KindPrivateTransfer.
type Transaction struct {
	Kind      Kind
	From      types.Address
	To        types.Address
	Amount    uint64 // micro-OCT
	Nonce     uint64
	Fee       uint64 // micro-OCT
	Message   string
	Timestamp uint64 // unix ms
	PublicKey []byte // 32 bytes, set by Sign
	Signature []byte // 64 bytes, set by Sign
}

// canonicalTx fixes the field order of the signed form. encoding/json keeps
// struct declaration order.
type canonicalTx struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Nonce     string `json:"nonce"`
	Fee       string `json:"fee"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// message returns the message that goes into the canonical form.
func (tx *Transaction) message() string {
	if tx.Kind == KindPrivateTransfer {
		return PrivateTransferMessage
	}
	return tx.Message
}

// CanonicalBytes returns the deterministic encoding of the signed fields:
// compact JSON in the order from, to, amount, nonce, fee, message,
// timestamp, with numbers as ASCII decimal strings and an absent message
// as "". Public key and signature are not covered.
func (tx *Transaction) CanonicalBytes() []byte {
	return marshalCanonical(canonicalTx{
		From:      tx.From.String(),
		To:        tx.To.String(),
		Amount:    strconv.FormatUint(tx.Amount, 10),
		Nonce:     strconv.FormatUint(tx.Nonce, 10),
		Fee:       strconv.FormatUint(tx.Fee, 10),
		Message:   tx.message(),
		Timestamp: strconv.FormatUint(tx.Timestamp, 10),
	})
}

// SigningHash is the pre-image the signature covers: sha256(canonical).
func (tx *Transaction) SigningHash() types.Hash {
	return crypto.SHA256(tx.CanonicalBytes())
}

// Sign fills PublicKey and Signature using signer.
func (tx *Transaction) Sign(signer crypto.Signer) error {
	h := tx.SigningHash()
	sig, err := signer.Sign(h[:])
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	tx.PublicKey = signer.PublicKey()
	tx.Signature = sig
	return nil
}

// Verify reports whether Signature verifies under PublicKey.
func (tx *Transaction) Verify() bool {
	h := tx.SigningHash()
	return crypto.VerifySignature(tx.PublicKey, h[:], tx.Signature)
}

// Fingerprint identifies a signed transaction locally. Two records with
// the same fingerprint carry byte-identical signed payloads.
func (tx *Transaction) Fingerprint() types.Hash {
	buf := make([]byte, 0, 256)
	buf = append(buf, tx.Kind.String()...)
	buf = append(buf, '|')
	buf = append(buf, tx.CanonicalBytes()...)
	buf = append(buf, tx.Signature...)
	return crypto.Fingerprint(buf)
}

// Total returns amount + fee, or an error on overflow.
func (tx *Transaction) Total() (uint64, error) {
	return addAmounts(tx.Amount, tx.Fee)
}

// BalanceOp is an encrypt or decrypt of part of the caller's balance. The
// node checks the delta against NewEncryptedRaw, which is sent alongside
// as a client-encrypted blob.
type BalanceOp struct {
	Op              Kind // KindEncrypt or KindDecrypt
	Address         types.Address
	Amount          uint64
	NewEncryptedRaw uint64
}

type canonicalBalanceOp struct {
	Op           string `json:"op"`
	Address      string `json:"address"`
	Amount       string `json:"amount"`
	NewEncrypted string `json:"new_encrypted"`
}

// CanonicalBytes returns the deterministic encoding of the op.
func (op *BalanceOp) CanonicalBytes() []byte {
	return marshalCanonical(canonicalBalanceOp{
		Op:           op.Op.String(),
		Address:      op.Address.String(),
		Amount:       strconv.FormatUint(op.Amount, 10),
		NewEncrypted: strconv.FormatUint(op.NewEncryptedRaw, 10),
	})
}

// SigningHash returns sha256 of the canonical bytes.
func (op *BalanceOp) SigningHash() types.Hash {
	return crypto.SHA256(op.CanonicalBytes())
}

// Sign returns a signature over the op's signing hash.
func (op *BalanceOp) Sign(signer crypto.Signer) ([]byte, error) {
	if op.Op != KindEncrypt && op.Op != KindDecrypt {
		return nil, fmt.Errorf("balance op must be encrypt or decrypt, got %s", op.Op)
	}
	h := op.SigningHash()
	sig, err := signer.Sign(h[:])
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", op.Op, err)
	}
	return sig, nil
}

func marshalCanonical(v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Only strings are encoded; this cannot fail.
	_ = enc.Encode(v)
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
