// Package tracker keeps a durable per-address list of the transactions the
// wallet submitted and reconciles them against the node.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Klingon-tech/octwallet/internal/clock"
	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/rpcclient"
	"github.com/Klingon-tech/octwallet/internal/storage"
	"github.com/Klingon-tech/octwallet/pkg/tx"
)

// Default timings.
const (
	DefaultInterval = 15 * time.Second
	DefaultPruneAge = 7 * 24 * time.Hour

	// DefaultHashlessAge is how long a record the node named no hash for
	// may stay live before it is failed.
	DefaultHashlessAge = 10 * time.Minute
)

// StatusSource is the node lookup used for reconciliation.
type StatusSource interface {
	GetTransaction(ctx context.Context, hash string) (*rpcclient.TxStatus, error)
}

// Options configures a Tracker.
type Options struct {
	Clock       clock.Clock
	PruneAge    time.Duration
	HashlessAge time.Duration
}

// book is the in-memory state of one address.
type book struct {
	records       []*Record
	lastFetchTime int64
}

// Tracker is safe for concurrent use.
type Tracker struct {
	db       storage.DB
	node     StatusSource
	clock       clock.Clock
	pruneAge    time.Duration
	hashlessAge time.Duration

	mu        sync.Mutex
	books     map[string]*book
	byID      map[string]*Record
	history   map[string][]Record
	listeners []func(Transition)
}

// New creates a tracker persisting to db. node may be nil when no
// reconciliation is wanted.
func New(db storage.DB, node StatusSource, opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.PruneAge <= 0 {
		opts.PruneAge = DefaultPruneAge
	}
	if opts.HashlessAge <= 0 {
		opts.HashlessAge = DefaultHashlessAge
	}
	return &Tracker{
		db:       db,
		node:     node,
		clock:    opts.Clock,
		pruneAge:    opts.PruneAge,
		hashlessAge: opts.HashlessAge,
		books:    make(map[string]*book),
		byID:     make(map[string]*Record),
		history:  make(map[string][]Record),
	}
}

// OnTransition registers fn to be called after every status change.
func (t *Tracker) OnTransition(fn func(Transition)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Load reads the stored records of addr, prunes failed records older than
// the prune age and re-verifies records that carry a hash.
func (t *Tracker) Load(ctx context.Context, addr string) error {
	doc := readDocument(t.db, addr)
	now := t.clock.Now()

	t.mu.Lock()
	if old, ok := t.books[addr]; ok {
		for _, r := range old.records {
			delete(t.byID, r.ID)
		}
	}
	b := &book{lastFetchTime: doc.LastFetchTime}
	pruned := 0
	for _, r := range doc.Transactions {
		if r.Status == StatusFailed && now.Sub(r.UpdatedAt) > t.pruneAge {
			pruned++
			continue
		}
		b.records = append(b.records, r)
		t.byID[r.ID] = r
	}
	t.books[addr] = b
	delete(t.history, addr)
	var err error
	if pruned > 0 {
		err = t.persistLocked(addr)
	}
	t.mu.Unlock()

	log.Tracker.Debug().
		Str("address", addr).
		Int("records", len(b.records)).
		Int("pruned", pruned).
		Msg("Pending transactions loaded")
	if err != nil {
		return err
	}
	return t.reconcile(ctx, addr)
}

// Queue starts tracking a signed transaction. A transaction whose
// fingerprint is already tracked and still live is rejected with
// Duplicate and the existing record's ID.
func (t *Tracker) Queue(txn *tx.Transaction) (string, error) {
	const op = "tracker.Queue"
	fp := txn.Fingerprint().String()
	addr := txn.From.String()
	now := t.clock.Now()

	t.mu.Lock()
	b := t.bookLocked(addr)
	for _, r := range b.records {
		if r.Fingerprint == fp && r.Status != StatusFailed && r.Status != StatusCancelled {
			t.mu.Unlock()
			return r.ID, errs.E(errs.Duplicate, op, "transaction is already tracked")
		}
	}
	r := &Record{
		ID:          uuid.NewString(),
		Kind:        txn.Kind,
		From:        addr,
		To:          txn.To.String(),
		Amount:      txn.Amount,
		Fee:         txn.Fee,
		Nonce:       txn.Nonce,
		Status:      StatusQueued,
		Fingerprint: fp,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.records = append(b.records, r)
	t.byID[r.ID] = r
	delete(t.history, addr)
	err := t.persistLocked(addr)
	fire := t.snapshotLocked(r, "")
	t.mu.Unlock()

	fire()
	if err != nil {
		return r.ID, errs.Wrap(errs.Unknown, op, err)
	}
	return r.ID, nil
}

// Processing marks a queued record as being submitted.
func (t *Tracker) Processing(id string) error {
	return t.transition(id, StatusProcessing, func(*Record) {})
}

// Submitted records the node's acceptance of a record.
func (t *Tracker) Submitted(id, txHash string) error {
	return t.transition(id, StatusSubmitted, func(r *Record) { r.TxHash = txHash })
}

// Failed records a terminal failure.
func (t *Tracker) Failed(id string, cause error) error {
	return t.transition(id, StatusFailed, func(r *Record) {
		if cause != nil {
			r.LastError = cause.Error()
		}
	})
}

// Cancel aborts a record that has not been handed to the node yet.
func (t *Tracker) Cancel(id string) error {
	return t.transition(id, StatusCancelled, func(*Record) {})
}

func (t *Tracker) transition(id string, to Status, apply func(*Record)) error {
	const op = "tracker.transition"
	t.mu.Lock()
	r, ok := t.byID[id]
	if !ok {
		t.mu.Unlock()
		return errs.Ef(errs.NotFound, op, "no tracked transaction %s", id)
	}
	from := r.Status
	if !canTransition(from, to) {
		t.mu.Unlock()
		return errs.Ef(errs.BadInput, op, "cannot move %s from %s to %s", id, from, to)
	}
	apply(r)
	r.Status = to
	r.UpdatedAt = t.clock.Now()
	delete(t.history, r.From)
	err := t.persistLocked(r.From)
	fire := t.snapshotLocked(r, from)
	t.mu.Unlock()

	fire()
	if err != nil {
		return errs.Wrap(errs.Unknown, op, err)
	}
	return nil
}

// Get returns a copy of the record with id.
func (t *Tracker) Get(id string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byID[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Visible returns the live records sent from addr, newest first. Records
// stored under addr but sent from another address are not shown.
func (t *Tracker) Visible(addr string) []Record {
	var out []Record
	for _, r := range t.History(addr) {
		if r.Pending() {
			out = append(out, r)
		}
	}
	return out
}

// History returns every record sent from addr, newest first. The list is
// cached until the next change to addr.
func (t *Tracker) History(addr string) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.history[addr]; ok {
		return append([]Record(nil), h...)
	}
	var h []Record
	if b, ok := t.books[addr]; ok {
		for _, r := range b.records {
			if r.From == addr {
				h = append(h, *r)
			}
		}
	}
	sort.SliceStable(h, func(i, j int) bool { return h[i].CreatedAt.After(h[j].CreatedAt) })
	t.history[addr] = h
	return append([]Record(nil), h...)
}

// LastFetch returns when addr was last reconciled against the node.
func (t *Tracker) LastFetch(addr string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.books[addr]
	if !ok || b.lastFetchTime == 0 {
		return time.Time{}
	}
	return time.UnixMilli(b.lastFetchTime)
}

func (t *Tracker) bookLocked(addr string) *book {
	b, ok := t.books[addr]
	if !ok {
		b = &book{}
		t.books[addr] = b
	}
	return b
}

func (t *Tracker) persistLocked(addr string) error {
	b := t.bookLocked(addr)
	doc := document{Address: addr, Transactions: b.records, LastFetchTime: b.lastFetchTime}
	if err := writeDocument(t.db, doc, t.clock.Now()); err != nil {
		log.Failure(log.Tracker, err).Str("address", addr).Msg("Could not persist pending transactions")
		return err
	}
	return nil
}

// snapshotLocked captures the listeners and the record so they can be
// called after the lock is released.
func (t *Tracker) snapshotLocked(r *Record, from Status) func() {
	if len(t.listeners) == 0 {
		return func() {}
	}
	fns := append([]func(Transition){}, t.listeners...)
	tr := Transition{Record: *r, From: from}
	return func() {
		for _, fn := range fns {
			fn(tr)
		}
	}
}
