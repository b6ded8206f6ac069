package tx

import (
	"unicode/utf8"

	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/pkg/crypto"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// Validate checks the structural rules a transfer must satisfy before it is
// signed: addresses parse, amount is positive, the message fits and the fee
// matches the schedule.
func (tx *Transaction) Validate(fees FeeSchedule) error {
	const op = "tx.Validate"

	if !tx.Kind.Transfer() {
		return errs.Ef(errs.BadInput, op, "%s is not a transfer", tx.Kind)
	}
	if err := types.ValidateAddress(tx.From.String()); err != nil {
		return errs.Ef(errs.BadInput, op, "from: %v", err)
	}
	if err := types.ValidateAddress(tx.To.String()); err != nil {
		return errs.Ef(errs.BadInput, op, "to: %v", err)
	}
	if tx.Amount == 0 {
		return errs.E(errs.BadInput, op, "amount must be positive")
	}
	if len(tx.Message) > MaxMessageBytes {
		return errs.Ef(errs.BadInput, op, "message is %d bytes, max %d", len(tx.Message), MaxMessageBytes)
	}
	// The canonical encoder would replace invalid bytes with U+FFFD, so two
	// different messages could sign the same pre-image.
	if !utf8.ValidString(tx.Message) {
		return errs.E(errs.BadInput, op, "message is not valid UTF-8")
	}
	if want := fees.Fee(tx.Amount); tx.Fee != want {
		return errs.Ef(errs.BadInput, op, "fee %d does not match schedule (%d)", tx.Fee, want)
	}
	if _, err := tx.Total(); err != nil {
		return errs.Wrap(errs.BadInput, op, err)
	}
	return nil
}

// ValidateSigned runs Validate and additionally checks that the public key
// derives From and that the signature verifies.
func (tx *Transaction) ValidateSigned(fees FeeSchedule) error {
	const op = "tx.ValidateSigned"

	if err := tx.Validate(fees); err != nil {
		return err
	}
	if len(tx.PublicKey) != crypto.PublicKeySize {
		return errs.E(errs.BadInput, op, "missing public key")
	}
	if types.AddressFromPubKey(tx.PublicKey) != tx.From {
		return errs.E(errs.BadInput, op, "public key does not derive sender address")
	}
	if !tx.Verify() {
		return errs.E(errs.BadInput, op, "signature does not verify")
	}
	return nil
}
