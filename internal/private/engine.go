// Package private implements the encrypted-balance operations: moving
// funds between the public and encrypted balance, private transfers and
// claiming incoming ones.
package private

import (
	"context"
	"encoding/base64"
	"io"
	"math"
	"strconv"

	"github.com/Klingon-tech/octwallet/internal/balance"
	"github.com/Klingon-tech/octwallet/internal/clock"
	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/rpcclient"
	"github.com/Klingon-tech/octwallet/pkg/tx"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// FeeReserve is the part of the public balance Encrypt leaves untouched.
const FeeReserve = types.MicroPerOCT

// Node is the subset of the node client the engine uses.
type Node interface {
	GetEncryptedBalance(ctx context.Context, addr, auth string) (*rpcclient.EncryptedBalance, error)
	GetPublicKey(ctx context.Context, addr string) ([]byte, error)
	SubmitEncrypt(ctx context.Context, op tx.WireBalanceOp) (*rpcclient.SubmitResult, error)
	SubmitDecrypt(ctx context.Context, op tx.WireBalanceOp) (*rpcclient.SubmitResult, error)
	SubmitPrivateTransfer(ctx context.Context, t tx.WirePrivateTransfer) (*rpcclient.SubmitResult, error)
	ListPendingTransfers(ctx context.Context, addr, auth string) ([]rpcclient.PendingTransfer, error)
	ClaimTransfer(ctx context.Context, addr, auth, id string) (*rpcclient.SubmitResult, error)
}

// Keys is the key material the engine needs. *wallet.Keys satisfies it.
type Keys interface {
	Address() types.Address
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
	AuthKey() string
	BalanceKey() [32]byte
}

// NonceSource provides the nonce base and the wallet-wide nonce
// reservation shared with public sends. *balance.Cache satisfies it.
type NonceSource interface {
	Get(ctx context.Context, force bool) (balance.Snapshot, error)
	Invalidate()
	Reserve(op string) (release func(), err error)
}

// Recorder follows a private transfer through the pending-transaction
// tracker.
type Recorder interface {
	Queue(t *tx.Transaction) (string, error)
	Processing(id string) error
	Submitted(id, txHash string) error
	Failed(id string, cause error) error
}

// Options configures an Engine.
type Options struct {
	Fees     tx.FeeSchedule
	Clock    clock.Clock
	Rand     io.Reader // crypto/rand when nil
	Recorder Recorder  // optional
}

// Engine runs encrypted-balance operations for one wallet.
type Engine struct {
	node   Node
	keys   Keys
	nonces NonceSource
	fees   tx.FeeSchedule
	clock  clock.Clock
	rng    io.Reader
	rec    Recorder
}

// NewEngine creates an engine for keys.
func NewEngine(node Node, keys Keys, nonces NonceSource, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Fees == (tx.FeeSchedule{}) {
		opts.Fees = tx.DefaultFeeSchedule()
	}
	return &Engine{
		node:   node,
		keys:   keys,
		nonces: nonces,
		fees:   opts.Fees,
		clock:  opts.Clock,
		rng:    opts.Rand,
		rec:    opts.Recorder,
	}
}

// Balance is the wallet's split balance.
type Balance struct {
	rpcclient.EncryptedBalance

	// Verified is set when the node returned the owner's "v1|" blob and it
	// decrypts to EncryptedRaw.
	Verified bool
	// Mismatch is set when the blob decrypts to a different value.
	Mismatch bool
}

// Balance fetches the public/encrypted split and checks the node's stored
// blob against it when one is present.
func (e *Engine) Balance(ctx context.Context) (*Balance, error) {
	addr := e.keys.Address().String()
	eb, err := e.node.GetEncryptedBalance(ctx, addr, e.keys.AuthKey())
	if err != nil {
		return nil, err
	}
	b := &Balance{EncryptedBalance: *eb}
	if eb.Ciphertext == "" {
		return b, nil
	}
	v, err := OpenBalance(e.keys.BalanceKey(), eb.Ciphertext)
	switch {
	case err != nil:
		log.Private.Warn().Str("address", addr).Msg("Stored balance blob does not decrypt with this wallet's key")
	case v == eb.EncryptedRaw:
		b.Verified = true
	default:
		b.Mismatch = true
		log.Private.Warn().Str("address", addr).Msg("Stored balance blob disagrees with the node's encrypted balance")
	}
	return b, nil
}

// OpResult is the outcome of Encrypt or Decrypt.
type OpResult struct {
	TxHash          string
	NewEncryptedRaw uint64
	RetryAttempts   int
}

// Encrypt moves amount micro-OCT from the public to the encrypted balance.
// One OCT of public balance is kept back for fees.
func (e *Engine) Encrypt(ctx context.Context, amount uint64) (_ *OpResult, err error) {
	const op = "private.Encrypt"
	defer func() { err = log.Surface(log.Private, op, err) }()
	if amount == 0 {
		return nil, errs.E(errs.BadInput, op, "amount must be positive")
	}
	pre, err := e.node.GetEncryptedBalance(ctx, e.keys.Address().String(), e.keys.AuthKey())
	if err != nil {
		return nil, err
	}
	if pre.PublicRaw < FeeReserve || amount > pre.PublicRaw-FeeReserve {
		return nil, errs.Ef(errs.InsufficientFunds, op, "can encrypt at most %s (1 OCT is reserved for fees)",
			types.FormatOCT(saturatingSub(pre.PublicRaw, FeeReserve)))
	}
	if amount > math.MaxUint64-pre.EncryptedRaw {
		return nil, errs.E(errs.BadInput, op, "encrypted balance would overflow")
	}
	return e.balanceOp(ctx, op, tx.KindEncrypt, amount, pre.EncryptedRaw+amount)
}

// Decrypt moves amount micro-OCT from the encrypted back to the public
// balance.
func (e *Engine) Decrypt(ctx context.Context, amount uint64) (_ *OpResult, err error) {
	const op = "private.Decrypt"
	defer func() { err = log.Surface(log.Private, op, err) }()
	if amount == 0 {
		return nil, errs.E(errs.BadInput, op, "amount must be positive")
	}
	pre, err := e.node.GetEncryptedBalance(ctx, e.keys.Address().String(), e.keys.AuthKey())
	if err != nil {
		return nil, err
	}
	if amount > pre.EncryptedRaw {
		return nil, errs.Ef(errs.InsufficientEncrypted, op, "encrypted balance is %s", types.FormatOCT(pre.EncryptedRaw))
	}
	return e.balanceOp(ctx, op, tx.KindDecrypt, amount, pre.EncryptedRaw-amount)
}

func (e *Engine) balanceOp(ctx context.Context, op string, kind tx.Kind, amount, newRaw uint64) (*OpResult, error) {
	blob, err := SealBalance(e.keys.BalanceKey(), newRaw, e.rng)
	if err != nil {
		return nil, err
	}
	bop := tx.BalanceOp{Op: kind, Address: e.keys.Address(), Amount: amount, NewEncryptedRaw: newRaw}
	sig, err := bop.Sign(e.keys)
	if err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, op, err)
	}
	wire := tx.WireBalanceOp{
		Address:       e.keys.Address().String(),
		Amount:        strconv.FormatUint(amount, 10),
		PublicKey:     base64.StdEncoding.EncodeToString(e.keys.PublicKey()),
		Signature:     base64.StdEncoding.EncodeToString(sig),
		EncryptedData: blob,
	}

	submit := e.node.SubmitEncrypt
	if kind == tx.KindDecrypt {
		submit = e.node.SubmitDecrypt
	}
	res, err := submit(ctx, wire)
	if e.nonces != nil {
		e.nonces.Invalidate()
	}
	if err != nil {
		return nil, err
	}

	log.Private.Info().
		Str("op", kind.String()).
		Str("address", e.keys.Address().String()).
		Str("tx", res.TxHash).
		Msg("Balance operation submitted")
	return &OpResult{TxHash: res.TxHash, NewEncryptedRaw: newRaw, RetryAttempts: res.RetryAttempts}, nil
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
