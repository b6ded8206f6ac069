package rpcclient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Klingon-tech/octwallet/pkg/types"
)

// Balance is the confirmed public state of an address.
type Balance struct {
	Micro uint64 // public balance in micro-OCT
	Nonce uint64 // last confirmed nonce
}

// StagedTx is an accepted but unconfirmed transaction in the node's staging
// area.
type StagedTx struct {
	From  string
	To    string
	Nonce uint64
	Hash  string
}

// EncryptedBalance is the split public/encrypted view of an address.
type EncryptedBalance struct {
	PublicRaw    uint64
	EncryptedRaw uint64
	Public       string // display strings as reported by the node
	Encrypted    string
	Total        string

	// Ciphertext is the "v1|" blob last stored by the owner, if the node
	// returns it.
	Ciphertext string
}

// SubmitResult is returned by every submit call. TxHash may be empty when
// the node accepted the request without naming a hash.
type SubmitResult struct {
	TxHash        string
	RetryAttempts int
}

// PendingTransfer is an unclaimed incoming private transfer.
type PendingTransfer struct {
	ID            string
	Sender        string
	EncryptedData string // "v2|" envelope
	EphemeralKey  string // base64 32 bytes
	Epoch         uint64
}

// TxStatus is the node's view of a submitted transaction.
type TxStatus struct {
	Hash   string
	Status string // "pending", "confirmed", "rejected", ...
	Epoch  uint64
	Error  string
}

// Transaction status values reported by the node.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusFailed    = "failed"
)

// Confirmed reports whether the transaction is final and accepted.
func (s TxStatus) Confirmed() bool { return s.Status == StatusConfirmed }

// Rejected reports whether the node dropped the transaction for good.
func (s TxStatus) Rejected() bool {
	return s.Status == StatusRejected || s.Status == StatusFailed
}

// NetworkStatus carries the ledger's current epoch.
type NetworkStatus struct {
	Epoch uint64
}

// =============================================================================
// Wire shapes
// =============================================================================

type balanceResponse struct {
	Balance    json.Number `json:"balance"` // OCT
	BalanceRaw json.Number `json:"balance_raw"`
	Nonce      json.Number `json:"nonce"`
}

type stagingResponse struct {
	Staged []struct {
		From  string      `json:"from"`
		To    string      `json:"to"`
		Nonce json.Number `json:"nonce"`
		Hash  string      `json:"hash"`
	} `json:"staged_transactions"`
}

type encryptedBalanceResponse struct {
	Public       string      `json:"public_balance"`
	PublicRaw    json.Number `json:"public_balance_raw"`
	Encrypted    string      `json:"encrypted_balance"`
	EncryptedRaw json.Number `json:"encrypted_balance_raw"`
	Total        string      `json:"total_balance"`
	Ciphertext   string      `json:"encrypted_data"`
}

type publicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

type pendingResponse struct {
	Transfers []struct {
		ID            json.RawMessage `json:"id"`
		Sender        string          `json:"sender"`
		EncryptedData string          `json:"encrypted_data"`
		EphemeralKey  string          `json:"ephemeral_key"`
		Epoch         json.Number     `json:"epoch_id"`
	} `json:"pending_transfers"`
}

type claimRequest struct {
	RecipientAddress string `json:"recipient_address"`
	TransferID       string `json:"transfer_id"`
}

type txResponse struct {
	Hash   string      `json:"hash"`
	Status string      `json:"status"`
	Epoch  json.Number `json:"epoch"`
	Error  string      `json:"error"`
}

type statusResponse struct {
	Epoch        json.Number `json:"epoch"`
	CurrentEpoch json.Number `json:"current_epoch"`
}

// envelope holds the fields every node reply may carry.
type envelope struct {
	Success         *bool  `json:"success"`
	Error           string `json:"error"`
	Message         string `json:"message"`
	TxHash          string `json:"tx_hash"`
	Hash            string `json:"hash"`
	TransactionHash string `json:"transaction_hash"`
}

// hash returns the first non-empty hash key.
func (e envelope) hash() string {
	for _, h := range []string{e.TxHash, e.Hash, e.TransactionHash} {
		if h != "" {
			return h
		}
	}
	return ""
}

func (e envelope) reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// parseUint reads a non-negative integer that the node may send as a
// number or a string. Empty means zero.
func parseUint(field string, n json.Number) (uint64, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an unsigned integer", field, s)
	}
	return v, nil
}

// parseOCT reads a decimal OCT amount into micro-OCT.
func parseOCT(field string, n json.Number) (uint64, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, nil
	}
	v, err := types.ParseOCT(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

// rawID renders an identifier the node may send as a string or a number.
func rawID(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
