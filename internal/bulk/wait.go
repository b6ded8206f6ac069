package bulk

import (
	"context"
	"time"

	"github.com/Klingon-tech/octwallet/internal/log"
)

type waitResult struct {
	timedOut  bool
	cancelled bool
	rejected  string
}

// wait blocks until hash is confirmed and the epoch has moved past the
// confirming one, or the wait timeout passes. Without a hash it sleeps a
// fixed countdown instead.
func (o *Orchestrator) wait(ctx context.Context, id string, i int, addr, hash string) waitResult {
	if hash == "" {
		return o.countdown(ctx, id, i, addr)
	}
	deadline := o.clock.Now().Add(o.opts.WaitTimeout)
	ev := Event{BulkID: id, Index: i, Address: addr, TxHash: hash}

	var epoch uint64
	for {
		st, err := o.node.GetTransaction(ctx, hash)
		if err == nil && st.Confirmed() {
			epoch = st.Epoch
			ev.Kind, ev.Epoch = EventConfirmed, epoch
			o.emit(ev)
			break
		}
		if err == nil && st.Rejected() {
			reason := st.Error
			if reason == "" {
				reason = "rejected by node"
			}
			return waitResult{rejected: reason}
		}
		if err != nil {
			log.Bulk.Debug().Err(err).Str("tx", hash).Msg("Confirmation poll failed")
		}
		if r, done := o.pause(ctx, deadline, ev); done {
			return r
		}
	}

	for {
		ns, err := o.node.GetNetworkStatus(ctx)
		if err == nil && ns.Epoch > epoch {
			ev.Kind, ev.Epoch = EventEpochAdvanced, ns.Epoch
			o.emit(ev)
			return waitResult{}
		}
		if err != nil {
			log.Bulk.Debug().Err(err).Msg("Epoch poll failed")
		}
		if r, done := o.pause(ctx, deadline, ev); done {
			return r
		}
	}
}

// pause sleeps one poll interval unless the deadline has passed or ctx is
// done, in which case it reports the outcome and done.
func (o *Orchestrator) pause(ctx context.Context, deadline time.Time, ev Event) (waitResult, bool) {
	if !o.clock.Now().Before(deadline) {
		ev.Kind = EventTimeoutAdvance
		o.emit(ev)
		log.Bulk.Warn().Str("bulk", ev.BulkID).Str("tx", ev.TxHash).Msg("Timed out waiting for epoch advance, proceeding")
		return waitResult{timedOut: true}, true
	}
	if err := o.clock.Sleep(ctx, o.opts.PollInterval); err != nil {
		return waitResult{cancelled: true}, true
	}
	return waitResult{}, false
}

func (o *Orchestrator) countdown(ctx context.Context, id string, i int, addr string) waitResult {
	for left := o.opts.Countdown; left > 0; left -= time.Second {
		o.emit(Event{BulkID: id, Kind: EventCountdown, Index: i, Address: addr, Remaining: left})
		if err := o.clock.Sleep(ctx, time.Second); err != nil {
			return waitResult{cancelled: true}
		}
	}
	o.emit(Event{BulkID: id, Kind: EventCountdown, Index: i, Address: addr})
	return waitResult{}
}
