package private

import (
	"context"
	"encoding/base64"

	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/rpcclient"
	"github.com/Klingon-tech/octwallet/pkg/crypto"
	"github.com/Klingon-tech/octwallet/pkg/tx"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// TransferResult is the outcome of a private transfer.
type TransferResult struct {
	TxHash        string // may be empty if the node named no hash
	Nonce         uint64
	Fee           uint64
	EphemeralKey  string // base64
	RecordID      string // tracker record, empty without a Recorder
	RetryAttempts int
}

// Transfer sends amount micro-OCT from the encrypted balance to to. The
// recipient must have published a public key by sending at least once.
func (e *Engine) Transfer(ctx context.Context, to string, amount uint64) (_ *TransferResult, err error) {
	const op = "private.Transfer"
	defer func() { err = log.Surface(log.Private, op, err) }()
	dest, err := e.checkTransfer(op, to, amount)
	if err != nil {
		return nil, err
	}
	recipientPub, err := e.RecipientKey(ctx, dest.String())
	if err != nil {
		return nil, err
	}
	return e.transfer(ctx, op, dest, amount, recipientPub)
}

// TransferTo is Transfer for a caller that already looked up the
// recipient's public key.
func (e *Engine) TransferTo(ctx context.Context, to string, amount uint64, recipientPub []byte) (_ *TransferResult, err error) {
	const op = "private.TransferTo"
	defer func() { err = log.Surface(log.Private, op, err) }()
	dest, err := e.checkTransfer(op, to, amount)
	if err != nil {
		return nil, err
	}
	if len(recipientPub) != crypto.PublicKeySize {
		return nil, errs.Ef(errs.BadInput, op, "recipient key must be %d bytes", crypto.PublicKeySize)
	}
	return e.transfer(ctx, op, dest, amount, recipientPub)
}

// RecipientKey returns the public key addr has published.
func (e *Engine) RecipientKey(ctx context.Context, addr string) ([]byte, error) {
	pub, err := e.node.GetPublicKey(ctx, addr)
	if errs.Is(err, errs.NoRecipientKey) {
		return nil, errs.E(errs.NoRecipientKey, "private.RecipientKey", "recipient must have sent at least one transaction")
	}
	if err != nil {
		return nil, err
	}
	return pub, nil
}

func (e *Engine) checkTransfer(op, to string, amount uint64) (types.Address, error) {
	if amount == 0 {
		return "", errs.E(errs.BadInput, op, "amount must be positive")
	}
	dest, err := types.ParseAddress(to)
	if err != nil {
		return "", err
	}
	if dest == e.keys.Address() {
		return "", errs.E(errs.BadInput, op, "cannot send a private transfer to yourself")
	}
	return dest, nil
}

func (e *Engine) transfer(ctx context.Context, op string, dest types.Address, amount uint64, recipientPub []byte) (*TransferResult, error) {
	release, err := e.nonces.Reserve(op)
	if err != nil {
		return nil, err
	}
	defer release()

	self := e.keys.Address()
	pre, err := e.node.GetEncryptedBalance(ctx, self.String(), e.keys.AuthKey())
	if err != nil {
		return nil, err
	}
	if amount > pre.EncryptedRaw {
		return nil, errs.Ef(errs.InsufficientEncrypted, op, "encrypted balance is %s", types.FormatOCT(pre.EncryptedRaw))
	}

	snap, err := e.nonces.Get(ctx, true)
	if err != nil {
		return nil, err
	}

	eph, err := crypto.GenerateKey(e.rng)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, op, err)
	}
	ephPub := eph.PublicKey()
	eph.Zero()

	key, err := DeriveSharedKey(ephPub, recipientPub)
	if err != nil {
		return nil, err
	}
	envelope, err := SealAmount(key, amount, e.rng)
	if err != nil {
		return nil, err
	}

	b := tx.NewBuilder(tx.KindPrivateTransfer).
		From(self).
		To(dest).
		Amount(amount, e.fees).
		Nonce(snap.Nonce + 1).
		Timestamp(e.clock.Now())
	if err := b.Sign(e.keys); err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, op, err)
	}
	t := b.Build()

	res := &TransferResult{
		Nonce:        t.Nonce,
		Fee:          t.Fee,
		EphemeralKey: base64.StdEncoding.EncodeToString(ephPub),
	}
	res.RecordID = e.recordQueued(t)

	sub, err := e.node.SubmitPrivateTransfer(ctx, tx.WirePrivateTransfer{
		WireTx:        t.Wire(),
		EncryptedData: envelope,
		EphemeralKey:  res.EphemeralKey,
	})
	e.nonces.Invalidate()
	if err != nil {
		e.recordFailed(res.RecordID, err)
		return nil, err
	}
	res.TxHash = sub.TxHash
	res.RetryAttempts = sub.RetryAttempts
	e.recordSubmitted(res.RecordID, sub.TxHash)

	log.Private.Info().
		Str("from", self.String()).
		Str("to", dest.String()).
		Uint64("nonce", t.Nonce).
		Str("tx", sub.TxHash).
		Msg("Private transfer submitted")
	return res, nil
}

// PendingItem is an incoming transfer with its amount decrypted.
type PendingItem struct {
	rpcclient.PendingTransfer

	Amount  uint64 // micro-OCT, zero when Err is set
	Display string // e.g. "2.50 OCT"
	Err     string // why the amount could not be read
}

// Pending lists incoming transfers and decrypts each amount. Items that do
// not decrypt are returned with Err set.
func (e *Engine) Pending(ctx context.Context) ([]PendingItem, error) {
	list, err := e.node.ListPendingTransfers(ctx, e.keys.Address().String(), e.keys.AuthKey())
	if err != nil {
		return nil, err
	}
	out := make([]PendingItem, 0, len(list))
	for _, p := range list {
		item := PendingItem{PendingTransfer: p}
		amount, err := e.DecryptPending(p)
		if err != nil {
			item.Err = err.Error()
			log.Private.Debug().Str("id", p.ID).Str("sender", p.Sender).Msg("Pending transfer does not decrypt")
		} else {
			item.Amount = amount
			item.Display = types.FormatOCT(amount)
		}
		out = append(out, item)
	}
	return out, nil
}

// DecryptPending reads the amount of an incoming transfer using its
// ephemeral key and this wallet's public key.
func (e *Engine) DecryptPending(p rpcclient.PendingTransfer) (uint64, error) {
	const op = "private.DecryptPending"
	ephPub, err := base64.StdEncoding.DecodeString(p.EphemeralKey)
	if err != nil || len(ephPub) != crypto.PublicKeySize {
		return 0, errs.E(errs.CryptoFailure, op, "ephemeral key must be 32 bytes of base64")
	}
	key, err := DeriveSharedKey(ephPub, e.keys.PublicKey())
	if err != nil {
		return 0, err
	}
	return OpenAmount(key, p.EncryptedData)
}

// Claim moves pending transfer id into the encrypted balance.
func (e *Engine) Claim(ctx context.Context, id string) (*rpcclient.SubmitResult, error) {
	if id == "" {
		return nil, errs.E(errs.BadInput, "private.Claim", "transfer id is required")
	}
	res, err := e.node.ClaimTransfer(ctx, e.keys.Address().String(), e.keys.AuthKey(), id)
	if err != nil {
		return nil, err
	}
	log.Private.Info().Str("id", id).Str("tx", res.TxHash).Msg("Private transfer claimed")
	return res, nil
}

func (e *Engine) recordQueued(t *tx.Transaction) string {
	if e.rec == nil {
		return ""
	}
	id, err := e.rec.Queue(t)
	if err != nil {
		log.Failure(log.Private, err).Msg("Could not record private transfer")
		return ""
	}
	if err := e.rec.Processing(id); err != nil {
		log.Failure(log.Private, err).Str("id", id).Msg("Could not mark transfer processing")
	}
	return id
}

func (e *Engine) recordSubmitted(id, hash string) {
	if e.rec == nil || id == "" {
		return
	}
	if err := e.rec.Submitted(id, hash); err != nil {
		log.Failure(log.Private, err).Str("id", id).Msg("Could not mark transfer submitted")
	}
}

func (e *Engine) recordFailed(id string, cause error) {
	if e.rec == nil || id == "" {
		return
	}
	if err := e.rec.Failed(id, cause); err != nil {
		log.Failure(log.Private, err).Str("id", id).Msg("Could not mark transfer failed")
	}
}
