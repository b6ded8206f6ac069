// Package balance caches an address's public balance and next-usable nonce
// base.
package balance

import (
	"context"
	"sync"
	"time"

	"github.com/Klingon-tech/octwallet/internal/clock"
	"github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/rpcclient"
)

// DefaultTTL is how long a snapshot is served without refetching.
const DefaultTTL = 30 * time.Second

// Source is the subset of the node client the cache reads from.
type Source interface {
	GetBalance(ctx context.Context, addr string) (*rpcclient.Balance, error)
	GetStaging(ctx context.Context, addr string) ([]rpcclient.StagedTx, error)
}

// Snapshot is one fetch of balance and nonce.
type Snapshot struct {
	Micro          uint64 // confirmed public balance
	Nonce          uint64 // max(confirmed, staged); the next tx uses Nonce+1
	ConfirmedNonce uint64
	StagedCount    int
	FetchedAt      time.Time
}

// Cache holds the latest Snapshot for one address. Its embedded Gate is
// the wallet's nonce reservation.
type Cache struct {
	Gate

	src   Source
	addr  string
	ttl   time.Duration
	clock clock.Clock

	mu   sync.Mutex
	snap *Snapshot
	gen  uint64 // bumped by Invalidate; fetches that straddle it are discarded
}

// New creates a cache for addr.
func New(src Source, addr string, ttl time.Duration, clk clock.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Cache{src: src, addr: addr, ttl: ttl, clock: clk}
}

// Address returns the cached address.
func (c *Cache) Address() string { return c.addr }

// Get returns the cached snapshot while fresh, otherwise fetches the
// confirmed balance and the staging area. Staging is best effort: a failed
// staging read counts as no staged transactions.
func (c *Cache) Get(ctx context.Context, force bool) (Snapshot, error) {
	c.mu.Lock()
	if !force && c.snap != nil && c.clock.Now().Sub(c.snap.FetchedAt) < c.ttl {
		s := *c.snap
		c.mu.Unlock()
		return s, nil
	}
	gen := c.gen
	c.mu.Unlock()

	b, err := c.src.GetBalance(ctx, c.addr)
	if err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		Micro:          b.Micro,
		Nonce:          b.Nonce,
		ConfirmedNonce: b.Nonce,
		FetchedAt:      c.clock.Now(),
	}
	staged, err := c.src.GetStaging(ctx, c.addr)
	if err != nil {
		log.Balance.Debug().Err(err).Str("address", c.addr).Msg("Staging unavailable, using confirmed nonce")
		staged = nil
	}
	for _, st := range staged {
		if st.Nonce > s.Nonce {
			s.Nonce = st.Nonce
		}
	}
	s.StagedCount = len(staged)

	c.mu.Lock()
	if c.gen == gen {
		c.snap = &s
	}
	c.mu.Unlock()
	return s, nil
}

// Invalidate drops the cached snapshot. The next Get refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.gen++
	c.mu.Unlock()
}
