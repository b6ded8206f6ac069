package tx

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/Klingon-tech/octwallet/pkg/types"
)

// WireTx is the JSON object the submit endpoints accept. Bytes are base64,
// numbers are ASCII decimal.
type WireTx struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Nonce     string `json:"nonce"`
	Fee       string `json:"fee"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// WirePrivateTransfer is the submit body of a private transfer.
type WirePrivateTransfer struct {
	WireTx
	EncryptedData string `json:"encrypted_data"`
	EphemeralKey  string `json:"ephemeral_key"`
}

// WireBalanceOp is the submit body of an encrypt or decrypt.
type WireBalanceOp struct {
	Address       string `json:"address"`
	Amount        string `json:"amount"`
	PublicKey     string `json:"public_key"`
	Signature     string `json:"signature"`
	EncryptedData string `json:"encrypted_data"`
}

// Wire converts tx to its transport form.
func (tx *Transaction) Wire() WireTx {
	return WireTx{
		From:      tx.From.String(),
		To:        tx.To.String(),
		Amount:    strconv.FormatUint(tx.Amount, 10),
		Nonce:     strconv.FormatUint(tx.Nonce, 10),
		Fee:       strconv.FormatUint(tx.Fee, 10),
		Message:   tx.message(),
		Timestamp: strconv.FormatUint(tx.Timestamp, 10),
		PublicKey: base64.StdEncoding.EncodeToString(tx.PublicKey),
		Signature: base64.StdEncoding.EncodeToString(tx.Signature),
	}
}

// FromWire decodes a transport object back into a Transaction of the given
// kind. Addresses are validated.
func FromWire(kind Kind, w WireTx) (*Transaction, error) {
	from, err := types.ParseAddress(w.From)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	to, err := types.ParseAddress(w.To)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	tx := &Transaction{Kind: kind, From: from, To: to}
	if kind != KindPrivateTransfer {
		tx.Message = w.Message
	}

	nums := []struct {
		name string
		s    string
		dst  *uint64
	}{
		{"amount", w.Amount, &tx.Amount},
		{"nonce", w.Nonce, &tx.Nonce},
		{"fee", w.Fee, &tx.Fee},
		{"timestamp", w.Timestamp, &tx.Timestamp},
	}
	for _, n := range nums {
		v, err := strconv.ParseUint(n.s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.name, err)
		}
		*n.dst = v
	}

	if tx.PublicKey, err = base64.StdEncoding.DecodeString(w.PublicKey); err != nil {
		return nil, fmt.Errorf("public_key: %w", err)
	}
	if tx.Signature, err = base64.StdEncoding.DecodeString(w.Signature); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return tx, nil
}
