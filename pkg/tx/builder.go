package tx

import (
	"fmt"
	"time"

	"github.com/Klingon-tech/octwallet/pkg/crypto"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder for kind.
func NewBuilder(kind Kind) *Builder {
	return &Builder{
		tx: &Transaction{Kind: kind},
	}
}

// From sets the sender.
func (b *Builder) From(addr types.Address) *Builder {
	b.tx.From = addr
	return b
}

// To sets the recipient.
func (b *Builder) To(addr types.Address) *Builder {
	b.tx.To = addr
	return b
}

// Amount sets the amount in micro-OCT and prices it with fees.
func (b *Builder) Amount(amount uint64, fees FeeSchedule) *Builder {
	b.tx.Amount = amount
	b.tx.Fee = fees.Fee(amount)
	return b
}

// Nonce sets the nonce.
func (b *Builder) Nonce(nonce uint64) *Builder {
	b.tx.Nonce = nonce
	return b
}

// Message sets the optional message. Ignored for private transfers.
func (b *Builder) Message(msg string) *Builder {
	b.tx.Message = msg
	return b
}

// Timestamp sets the timestamp from t (millisecond precision).
func (b *Builder) Timestamp(t time.Time) *Builder {
	b.tx.Timestamp = uint64(t.UnixMilli())
	return b
}

// Sign signs the transaction with signer.
func (b *Builder) Sign(signer crypto.Signer) error {
	if err := b.tx.Sign(signer); err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	return nil
}

// Build returns the constructed transaction.
// Does NOT validate; call tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
