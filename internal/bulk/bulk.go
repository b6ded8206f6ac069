// Package bulk sends private transfers to many recipients one at a time.
// Each transfer is confirmed and the ledger epoch must advance before the
// next one is submitted; the node rejects two private transfers from one
// sender within the same epoch.
package bulk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Klingon-tech/octwallet/internal/clock"
	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/private"
	"github.com/Klingon-tech/octwallet/internal/rpcclient"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// Default timings.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultWaitTimeout  = 60 * time.Second
	DefaultCountdown    = 10 * time.Second
)

// Engine is the private-balance engine the orchestrator drives.
type Engine interface {
	Balance(ctx context.Context) (*private.Balance, error)
	TransferTo(ctx context.Context, to string, amount uint64, recipientPub []byte) (*private.TransferResult, error)
}

// Node is the subset of the node client used for key lookup and polling.
type Node interface {
	GetPublicKey(ctx context.Context, addr string) ([]byte, error)
	GetTransaction(ctx context.Context, hash string) (*rpcclient.TxStatus, error)
	GetNetworkStatus(ctx context.Context) (*rpcclient.NetworkStatus, error)
}

// Recipient is one line of a bulk transfer.
type Recipient struct {
	Address string
	Amount  uint64 // micro-OCT
}

// Line is the outcome of one recipient.
type Line struct {
	Index    int
	Address  string
	Amount   uint64
	TxHash   string
	Reason   string // why the line failed or was cancelled
	TimedOut bool   // proceeded without seeing confirmation and epoch advance
}

// Report is the outcome of a bulk run.
type Report struct {
	BulkID    string
	Success   []Line
	Failed    []Line
	Cancelled []Line
	TimedOut  int
}

// EventKind names a progress event.
type EventKind string

// Progress events.
const (
	EventSubmitted      EventKind = "submitted"
	EventConfirmed      EventKind = "confirmed"
	EventEpochAdvanced  EventKind = "epoch_advanced"
	EventTimeoutAdvance EventKind = "timeout_advance"
	EventCountdown      EventKind = "countdown"
	EventFailed         EventKind = "failed"
	EventCancelled      EventKind = "cancelled"
)

// Event reports progress on one recipient.
type Event struct {
	BulkID    string
	Kind      EventKind
	Index     int
	Address   string
	TxHash    string
	Epoch     uint64
	Remaining time.Duration // countdown only
	Reason    string
}

// Options configures an Orchestrator.
type Options struct {
	PollInterval time.Duration
	WaitTimeout  time.Duration
	Countdown    time.Duration
	Clock        clock.Clock
	Rand         io.Reader // bulk id suffix; crypto/rand when nil
	OnEvent      func(Event)
}

// DefaultOptions returns the standard wait timings.
func DefaultOptions() Options {
	return Options{
		PollInterval: DefaultPollInterval,
		WaitTimeout:  DefaultWaitTimeout,
		Countdown:    DefaultCountdown,
	}
}

// Orchestrator runs bulk private transfers for one wallet.
type Orchestrator struct {
	engine Engine
	node   Node
	opts   Options
	clock  clock.Clock
}

// New creates an orchestrator. Zero timings take their defaults.
func New(engine Engine, node Node, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = def.WaitTimeout
	}
	if opts.Countdown <= 0 {
		opts.Countdown = def.Countdown
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	return &Orchestrator{engine: engine, node: node, opts: opts, clock: opts.Clock}
}

// NewBulkID returns "bulk_<unix ms>_<8 hex chars>".
func (o *Orchestrator) NewBulkID() (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(o.opts.Rand, b[:]); err != nil {
		return "", errs.Wrap(errs.CryptoFailure, "bulk.NewBulkID", err)
	}
	return fmt.Sprintf("bulk_%d_%s", o.clock.Now().UnixMilli(), hex.EncodeToString(b[:])), nil
}

// Run sends to every recipient in order. It fails up front when the
// recipients add up to more than the encrypted balance. Cancelling ctx
// stops the run between steps; a submit already on the wire is let finish
// and the remaining recipients are reported as cancelled.
func (o *Orchestrator) Run(ctx context.Context, recipients []Recipient) (*Report, error) {
	const op = "bulk.Run"
	if len(recipients) == 0 {
		return nil, errs.E(errs.BadInput, op, "no recipients given")
	}
	var sum uint64
	for i, r := range recipients {
		if r.Amount > math.MaxUint64-sum {
			return nil, errs.Ef(errs.BadInput, op, "total overflows at recipient %d", i+1)
		}
		sum += r.Amount
	}

	bal, err := o.engine.Balance(ctx)
	if err != nil {
		return nil, err
	}
	if sum > bal.EncryptedRaw {
		return nil, errs.Ef(errs.InsufficientEncrypted, op, "recipients need %s, encrypted balance is %s",
			types.FormatOCT(sum), types.FormatOCT(bal.EncryptedRaw))
	}

	id, err := o.NewBulkID()
	if err != nil {
		return nil, err
	}
	rep := &Report{BulkID: id}
	logger := log.Bulk.With().Str("bulk", id).Logger()
	logger.Info().Int("recipients", len(recipients)).Str("total", types.FormatOCT(sum)).Msg("Bulk private transfer started")

	for i, r := range recipients {
		line := Line{Index: i, Address: r.Address, Amount: r.Amount}
		if ctx.Err() != nil {
			o.cancelFrom(rep, recipients, i)
			break
		}

		pub, reason := o.prepare(ctx, r)
		if reason != "" {
			if ctx.Err() != nil {
				o.cancelFrom(rep, recipients, i)
				break
			}
			line.Reason = reason
			rep.Failed = append(rep.Failed, line)
			o.emit(Event{BulkID: id, Kind: EventFailed, Index: i, Address: r.Address, Reason: reason})
			continue
		}

		res, err := o.engine.TransferTo(context.WithoutCancel(ctx), r.Address, r.Amount, pub)
		if err != nil {
			log.Failure(logger, err).Int("index", i).Msg("Bulk transfer line failed")
			line.Reason = errs.Redact(op, err).Error()
			rep.Failed = append(rep.Failed, line)
			o.emit(Event{BulkID: id, Kind: EventFailed, Index: i, Address: r.Address, Reason: line.Reason})
			continue
		}
		line.TxHash = res.TxHash
		o.emit(Event{BulkID: id, Kind: EventSubmitted, Index: i, Address: r.Address, TxHash: res.TxHash})

		w := o.wait(ctx, id, i, r.Address, res.TxHash)
		switch {
		case w.rejected != "":
			line.Reason = w.rejected
			rep.Failed = append(rep.Failed, line)
			o.emit(Event{BulkID: id, Kind: EventFailed, Index: i, Address: r.Address, TxHash: res.TxHash, Reason: w.rejected})
			continue
		case w.timedOut:
			line.TimedOut = true
			rep.TimedOut++
		}
		rep.Success = append(rep.Success, line)
		if w.cancelled {
			o.cancelFrom(rep, recipients, i+1)
			break
		}
	}

	logger.Info().
		Int("success", len(rep.Success)).
		Int("failed", len(rep.Failed)).
		Int("cancelled", len(rep.Cancelled)).
		Int("timed_out", rep.TimedOut).
		Msg("Bulk private transfer finished")
	return rep, nil
}

// prepare resolves the recipient's key and re-checks the encrypted
// balance. It returns the key, or a failure reason when the line cannot
// be sent.
func (o *Orchestrator) prepare(ctx context.Context, r Recipient) ([]byte, string) {
	if r.Amount == 0 {
		return nil, "amount must be positive"
	}
	if _, err := types.ParseAddress(r.Address); err != nil {
		return nil, err.Error()
	}
	pub, err := o.node.GetPublicKey(ctx, r.Address)
	if err != nil {
		if errs.Is(err, errs.NoRecipientKey) {
			return nil, "recipient must have sent at least one transaction"
		}
		return nil, err.Error()
	}
	bal, err := o.engine.Balance(ctx)
	if err != nil {
		return nil, err.Error()
	}
	if r.Amount > bal.EncryptedRaw {
		return nil, fmt.Sprintf("encrypted balance is now %s", types.FormatOCT(bal.EncryptedRaw))
	}
	return pub, ""
}

func (o *Orchestrator) cancelFrom(rep *Report, recipients []Recipient, from int) {
	for j := from; j < len(recipients); j++ {
		r := recipients[j]
		rep.Cancelled = append(rep.Cancelled, Line{Index: j, Address: r.Address, Amount: r.Amount, Reason: "cancelled"})
		o.emit(Event{BulkID: rep.BulkID, Kind: EventCancelled, Index: j, Address: r.Address})
	}
}

func (o *Orchestrator) emit(ev Event) {
	if o.opts.OnEvent != nil {
		o.opts.OnEvent(ev)
	}
}
