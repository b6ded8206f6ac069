// Package sender submits public transfers. One nonce-consuming submission
// runs at a time per wallet so that nonces stay monotonic.
package sender

import (
	"context"
	"unicode/utf8"

	"github.com/Klingon-tech/octwallet/internal/balance"
	"github.com/Klingon-tech/octwallet/internal/clock"
	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/rpcclient"
	"github.com/Klingon-tech/octwallet/pkg/tx"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// Node is the subset of the node client the sender uses.
type Node interface {
	SubmitTransaction(ctx context.Context, t tx.WireTx) (*rpcclient.SubmitResult, error)
}

// Keys signs for the sending address. *wallet.Keys satisfies it.
type Keys interface {
	Address() types.Address
	PublicKey() []byte
	Sign(msg []byte) ([]byte, error)
}

// Balances provides the public balance and nonce base, and the wallet-wide
// nonce reservation. *balance.Cache satisfies it.
type Balances interface {
	Get(ctx context.Context, force bool) (balance.Snapshot, error)
	Invalidate()
	Reserve(op string) (release func(), err error)
}

// Recorder follows each submitted transaction through the tracker.
type Recorder interface {
	Queue(t *tx.Transaction) (string, error)
	Processing(id string) error
	Submitted(id, txHash string) error
	Failed(id string, cause error) error
	Cancel(id string) error
}

// Request is one public transfer.
type Request struct {
	To      string
	Amount  uint64 // micro-OCT
	Message string
}

// Result is the outcome of a submitted transfer.
type Result struct {
	TxHash        string
	Nonce         uint64
	Fee           uint64
	RecordID      string
	RetryAttempts int
}

// Options configures a Sender.
type Options struct {
	Fees          tx.FeeSchedule
	AllowSelfSend bool
	Clock         clock.Clock
	Recorder      Recorder // optional
}

// DefaultOptions returns the default sender policy.
func DefaultOptions() Options {
	return Options{Fees: tx.DefaultFeeSchedule(), AllowSelfSend: true}
}

// Sender builds, signs and submits public transfers for one wallet.
type Sender struct {
	node     Node
	keys     Keys
	balances Balances
	opts     Options
	clock    clock.Clock
}

// New creates a sender.
func New(node Node, keys Keys, balances Balances, opts Options) *Sender {
	if opts.Fees == (tx.FeeSchedule{}) {
		opts.Fees = tx.DefaultFeeSchedule()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Sender{node: node, keys: keys, balances: balances, opts: opts, clock: opts.Clock}
}

// Fees returns the fee schedule in use.
func (s *Sender) Fees() tx.FeeSchedule { return s.opts.Fees }

// Send submits a single transfer. A Duplicate or NonceConflict reply is
// retried exactly once with a freshly fetched nonce.
func (s *Sender) Send(ctx context.Context, req Request) (_ *Result, err error) {
	const op = "sender.Send"
	defer func() { err = log.Surface(log.Sender, op, err) }()
	release, err := s.balances.Reserve(op)
	if err != nil {
		return nil, err
	}
	defer release()

	to, err := s.check(op, req)
	if err != nil {
		return nil, err
	}

	snap, err := s.balances.Get(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := s.ensureFunds(op, snap.Micro, req.Amount); err != nil {
		return nil, err
	}

	t, err := s.build(to, req, snap.Nonce+1)
	if err != nil {
		return nil, err
	}
	id := s.recordQueued(t)
	s.recordProcessing(id)

	sub, err := s.node.SubmitTransaction(ctx, t.Wire())
	s.balances.Invalidate()
	if err == nil {
		return s.done(t, id, sub, 0), nil
	}
	if !errs.IsRetryableSubmit(err) {
		s.recordFailed(id, err)
		return nil, err
	}

	log.Sender.Warn().
		Str("kind", errs.KindOf(err).String()).
		Uint64("nonce", t.Nonce).
		Msg("Submit rejected, retrying once with a fresh nonce")

	if err := ctx.Err(); err != nil {
		s.recordFailed(id, err)
		return nil, errs.Wrap(errs.Cancelled, op, err)
	}
	snap, err = s.balances.Get(ctx, true)
	if err != nil {
		s.recordFailed(id, err)
		return nil, errs.WithAttempts(err, 1)
	}
	if err := s.ensureFunds(op, snap.Micro, req.Amount); err != nil {
		s.recordFailed(id, err)
		return nil, errs.WithAttempts(err, 1)
	}
	t, err = s.build(to, req, snap.Nonce+1)
	if err != nil {
		s.recordFailed(id, err)
		return nil, err
	}

	sub, err = s.node.SubmitTransaction(ctx, t.Wire())
	s.balances.Invalidate()
	if err != nil {
		s.recordFailed(id, err)
		return nil, errs.WithAttempts(err, 1+errs.Attempts(err))
	}
	return s.done(t, id, sub, 1), nil
}

// BatchLine is the outcome of one request of SendMany.
type BatchLine struct {
	Request Request
	Result  *Result
	Err     error
}

// SendMany submits reqs in order with consecutive nonces. Other sends from
// the wallet fail with Busy until it returns. Every valid line is queued in
// the tracker before the first submit. A failed line does not stop the
// batch; the nonce base is refetched after any submit error and lines
// queued at a stale nonce are cancelled and queued again. Lines not yet
// submitted when ctx is cancelled are cancelled.
func (s *Sender) SendMany(ctx context.Context, reqs []Request) ([]BatchLine, error) {
	const op = "sender.SendMany"
	if len(reqs) == 0 {
		return nil, errs.E(errs.BadInput, op, "no transfers given")
	}
	release, err := s.balances.Reserve(op)
	if err != nil {
		return nil, err
	}
	defer release()

	snap, err := s.balances.Get(ctx, true)
	if err != nil {
		return nil, err
	}
	available := snap.Micro
	nonce := snap.Nonce

	lines := make([]BatchLine, len(reqs))
	queued := make([]*queuedLine, len(reqs))
	for i, req := range reqs {
		lines[i].Request = req
		q, err := s.prepare(op, req, available, nonce+1)
		if err != nil {
			lines[i].Err = err
			continue
		}
		queued[i] = q
		nonce = q.t.Nonce
		total, _ := q.t.Total()
		available -= total
	}

	available, nonce = snap.Micro, snap.Nonce
	for i, q := range queued {
		if q == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			s.recordCancelled(q.id)
			lines[i].Err = errs.Wrap(errs.Cancelled, op, err)
			continue
		}
		if q.t.Nonce != nonce+1 {
			s.recordCancelled(q.id)
			if q, err = s.prepare(op, lines[i].Request, available, nonce+1); err != nil {
				lines[i].Err = err
				continue
			}
		}
		s.recordProcessing(q.id)

		sub, err := s.node.SubmitTransaction(context.WithoutCancel(ctx), q.t.Wire())
		if err != nil {
			s.recordFailed(q.id, err)
			lines[i].Err = err
			s.balances.Invalidate()
			if fresh, ferr := s.balances.Get(ctx, true); ferr == nil {
				nonce = fresh.Nonce
				available = fresh.Micro
			}
			continue
		}
		lines[i].Result = s.done(q.t, q.id, sub, 0)
		nonce = q.t.Nonce
		total, _ := q.t.Total()
		available -= total
	}
	s.balances.Invalidate()
	for i := range lines {
		lines[i].Err = log.Surface(log.Sender, op, lines[i].Err)
	}
	return lines, nil
}

// queuedLine is a signed batch line and its tracker record.
type queuedLine struct {
	t  *tx.Transaction
	id string
}

func (s *Sender) prepare(op string, req Request, available, nonce uint64) (*queuedLine, error) {
	to, err := s.check(op, req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureFunds(op, available, req.Amount); err != nil {
		return nil, err
	}
	t, err := s.build(to, req, nonce)
	if err != nil {
		return nil, err
	}
	return &queuedLine{t: t, id: s.recordQueued(t)}, nil
}

func (s *Sender) check(op string, req Request) (types.Address, error) {
	to, err := types.ParseAddress(req.To)
	if err != nil {
		return "", err
	}
	if req.Amount == 0 {
		return "", errs.E(errs.BadInput, op, "amount must be positive")
	}
	if len(req.Message) > tx.MaxMessageBytes {
		return "", errs.Ef(errs.BadInput, op, "message is %d bytes, max %d", len(req.Message), tx.MaxMessageBytes)
	}
	if !utf8.ValidString(req.Message) {
		return "", errs.E(errs.BadInput, op, "message is not valid UTF-8")
	}
	if !s.opts.AllowSelfSend && to == s.keys.Address() {
		return "", errs.E(errs.BadInput, op, "sending to your own address is disabled")
	}
	return to, nil
}

func (s *Sender) ensureFunds(op string, available, amount uint64) error {
	total, err := s.opts.Fees.Total(amount)
	if err != nil {
		return errs.Wrap(errs.BadInput, op, err)
	}
	if available < total {
		return errs.Ef(errs.InsufficientFunds, op, "need %s including fee %s, have %s",
			types.FormatOCT(total), types.FormatOCT(s.opts.Fees.Fee(amount)), types.FormatOCT(available))
	}
	return nil
}

func (s *Sender) build(to types.Address, req Request, nonce uint64) (*tx.Transaction, error) {
	t := tx.NewBuilder(tx.KindPublic).
		From(s.keys.Address()).
		To(to).
		Amount(req.Amount, s.opts.Fees).
		Nonce(nonce).
		Message(req.Message).
		Timestamp(s.clock.Now()).
		Build()
	if err := t.Validate(s.opts.Fees); err != nil {
		return nil, err
	}
	if err := t.Sign(s.keys); err != nil {
		return nil, errs.Wrap(errs.CryptoFailure, "sender.build", err)
	}
	return t, nil
}

func (s *Sender) done(t *tx.Transaction, id string, sub *rpcclient.SubmitResult, resubmits int) *Result {
	s.recordSubmitted(id, sub.TxHash)
	log.Sender.Info().
		Str("to", t.To.String()).
		Str("amount", types.FormatOCT(t.Amount)).
		Uint64("nonce", t.Nonce).
		Str("tx", sub.TxHash).
		Msg("Transaction submitted")
	return &Result{
		TxHash:        sub.TxHash,
		Nonce:         t.Nonce,
		Fee:           t.Fee,
		RecordID:      id,
		RetryAttempts: resubmits + sub.RetryAttempts,
	}
}
