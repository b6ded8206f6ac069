package tracker

import (
	"context"
	"time"

	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/internal/log"
)

// Reconcile asks the node about every submitted record and moves it to
// confirmed or failed. Lookups that fail are left for the next round.
// Records the node named no hash for are failed once they are older than
// the hashless age, since nothing can be looked up for them.
func (t *Tracker) Reconcile(ctx context.Context) error {
	t.mu.Lock()
	addrs := make([]string, 0, len(t.books))
	for a := range t.books {
		addrs = append(addrs, a)
	}
	t.mu.Unlock()

	for _, a := range addrs {
		if err := t.reconcile(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

type check struct {
	id   string
	hash string
}

func (t *Tracker) reconcile(ctx context.Context, addr string) error {
	if t.node == nil {
		return nil
	}
	now := t.clock.Now()
	t.mu.Lock()
	var todo []check
	var hashless []string
	if b, ok := t.books[addr]; ok {
		for _, r := range b.records {
			switch {
			case r.needsCheck():
				todo = append(todo, check{id: r.ID, hash: r.TxHash})
			case r.hashless() && now.Sub(r.UpdatedAt) > t.hashlessAge:
				hashless = append(hashless, r.ID)
			}
		}
	}
	t.mu.Unlock()
	for _, id := range hashless {
		t.expire(id)
	}
	if len(todo) == 0 {
		return nil
	}

	for _, c := range todo {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.Cancelled, "tracker.Reconcile", err)
		}
		st, err := t.node.GetTransaction(ctx, c.hash)
		t.countAttempt(c.id)
		switch {
		case errs.Is(err, errs.NotFound):
			continue
		case err != nil:
			log.Tracker.Debug().Err(err).Str("tx", c.hash).Msg("Status lookup failed")
			continue
		case st.Confirmed():
			t.settle(c.id, StatusConfirmed, st.Epoch, "")
		case st.Rejected():
			reason := st.Error
			if reason == "" {
				reason = "rejected by node"
			}
			t.settle(c.id, StatusFailed, st.Epoch, reason)
		}
	}

	t.mu.Lock()
	t.bookLocked(addr).lastFetchTime = t.clock.Now().UnixMilli()
	err := t.persistLocked(addr)
	t.mu.Unlock()
	return err
}

func (t *Tracker) expire(id string) {
	err := t.transition(id, StatusFailed, func(r *Record) { r.LastError = "node returned no hash" })
	if err != nil {
		log.Failure(log.Tracker, err).Str("id", id).Msg("Could not expire transaction")
		return
	}
	log.Tracker.Warn().Str("id", id).Msg("Transaction without a hash expired")
}

func (t *Tracker) countAttempt(id string) {
	t.mu.Lock()
	if r, ok := t.byID[id]; ok {
		r.Attempts++
	}
	t.mu.Unlock()
}

func (t *Tracker) settle(id string, to Status, epoch uint64, reason string) {
	t.mu.Lock()
	r, ok := t.byID[id]
	if ok && r.Status == StatusProcessing {
		// A hash proves the node saw it.
		r.Status = StatusSubmitted
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	err := t.transition(id, to, func(r *Record) {
		r.Epoch = epoch
		r.LastError = reason
	})
	if err != nil {
		log.Failure(log.Tracker, err).Str("id", id).Msg("Could not settle transaction")
		return
	}
	log.Tracker.Info().Str("id", id).Str("status", string(to)).Msg("Transaction settled")
}

// Run reconciles every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	for {
		if err := t.Reconcile(ctx); err != nil && !errs.Is(err, errs.Cancelled) {
			log.Failure(log.Tracker, err).Msg("Reconcile failed")
		}
		if err := t.clock.Sleep(ctx, interval); err != nil {
			return
		}
	}
}
