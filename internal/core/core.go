// Package core wires the wallet's components together for one unlocked
// wallet. Front ends hold a *Core; nothing in the core refers back to them.
package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/octwallet/config"
	"github.com/Klingon-tech/octwallet/internal/balance"
	"github.com/Klingon-tech/octwallet/internal/bulk"
	"github.com/Klingon-tech/octwallet/internal/clock"
	klog "github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/private"
	"github.com/Klingon-tech/octwallet/internal/rpcclient"
	"github.com/Klingon-tech/octwallet/internal/sender"
	"github.com/Klingon-tech/octwallet/internal/storage"
	"github.com/Klingon-tech/octwallet/internal/tracker"
	"github.com/Klingon-tech/octwallet/internal/wallet"
	"github.com/Klingon-tech/octwallet/pkg/tx"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// Core holds the components of one unlocked wallet on one network.
type Core struct {
	cfg    *config.Config
	logger zerolog.Logger

	Keys    *wallet.Keys
	DB      storage.DB // namespaced to the network
	Client  *rpcclient.Client
	Balance *balance.Cache
	Private *private.Engine
	Sender  *sender.Sender
	Bulk    *bulk.Orchestrator
	Tracker *tracker.Tracker

	// Lifecycle
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type settings struct {
	clock      clock.Clock
	httpClient *http.Client
	onBulk     func(bulk.Event)
	onTx       func(tracker.Transition)
}

// Option customizes New.
type Option func(*settings)

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option { return func(s *settings) { s.clock = c } }

// WithHTTPClient sets the HTTP client used for node calls.
func WithHTTPClient(c *http.Client) Option { return func(s *settings) { s.httpClient = c } }

// WithBulkEvents registers a progress callback for bulk runs.
func WithBulkEvents(fn func(bulk.Event)) Option { return func(s *settings) { s.onBulk = fn } }

// WithTransitions registers a callback for tracker status changes.
func WithTransitions(fn func(tracker.Transition)) Option { return func(s *settings) { s.onTx = fn } }

// New builds every component for keys from cfg. db is shared across
// networks; the core works inside a per-network namespace of it. New does
// not start background work; call Start for that.
func New(cfg *config.Config, keys *wallet.Keys, db storage.DB, opts ...Option) (*Core, error) {
	if cfg == nil || keys == nil || db == nil {
		return nil, fmt.Errorf("core: config, keys and db are required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	var s settings
	for _, o := range opts {
		o(&s)
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}

	// ── 1. Address format ───────────────────────────────────────────
	types.SetAddressFormat(cfg.Address.Prefix, cfg.Address.MinBody, cfg.Address.MaxBody)
	addr := keys.Address().String()
	logger := klog.WithAddress(klog.WithComponent("core"), addr)

	// ── 2. Storage namespace ────────────────────────────────────────
	ndb := NetworkDB(db, cfg.Network)

	// ── 3. Node client ──────────────────────────────────────────────
	client := rpcclient.NewWithOptions(cfg.Node.URL, rpcclient.Options{
		ColdTimeout: cfg.Node.ColdTimeout,
		WarmTimeout: cfg.Node.WarmTimeout,
		Retry: rpcclient.RetryPolicy{
			Base: cfg.Node.RetryBase,
			Cap:  cfg.Node.RetryCap,
			Max:  cfg.Node.RetryMax,
		},
		RateLimit:  cfg.Node.RateLimit,
		RateBurst:  cfg.Node.RateBurst,
		Clock:      s.clock,
		HTTPClient: s.httpClient,
	})

	// ── 4. Tracker and caches ───────────────────────────────────────
	trk := tracker.New(ndb, client, tracker.Options{Clock: s.clock, PruneAge: cfg.Tracker.PruneAge})
	if s.onTx != nil {
		trk.OnTransition(s.onTx)
	}
	cache := balance.New(client, addr, cfg.Cache.TTL, s.clock)
	fees := tx.FeeSchedule{MinFee: cfg.Fee.MinFee, RateBps: cfg.Fee.RateBps}

	// ── 5. Engines ──────────────────────────────────────────────────
	engine := private.NewEngine(client, keys, cache, private.Options{
		Fees:     fees,
		Clock:    s.clock,
		Recorder: trk,
	})
	snd := sender.New(client, keys, cache, sender.Options{
		Fees:          fees,
		AllowSelfSend: cfg.Sender.AllowSelfSend,
		Clock:         s.clock,
		Recorder:      trk,
	})
	orch := bulk.New(engine, client, bulk.Options{
		PollInterval: cfg.Bulk.PollInterval,
		WaitTimeout:  cfg.Bulk.WaitTimeout,
		Countdown:    cfg.Bulk.Countdown,
		Clock:        s.clock,
		OnEvent:      s.onBulk,
	})

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("node", client.Endpoint()).
		Msg("Wallet core ready")

	return &Core{
		cfg:     cfg,
		logger:  logger,
		Keys:    keys,
		DB:      ndb,
		Client:  client,
		Balance: cache,
		Private: engine,
		Sender:  snd,
		Bulk:    orch,
		Tracker: trk,
	}, nil
}

// Config returns the configuration the core was built from.
func (c *Core) Config() *config.Config { return c.cfg }

// Address returns the wallet address.
func (c *Core) Address() string { return c.Keys.Address().String() }

// Start loads the wallet's tracked transactions and begins reconciling
// them in the background.
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("core already started")
	}
	if err := c.Tracker.Load(ctx, c.Address()); err != nil {
		c.logger.Warn().Err(err).Msg("Initial reconcile failed")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Tracker.Run(runCtx, c.cfg.Tracker.Interval)
	}()
	c.logger.Debug().Dur("interval", c.cfg.Tracker.Interval).Msg("Tracker started")
	return nil
}

// Close stops background work. The caller still owns the keys and the
// underlying database.
func (c *Core) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		c.wg.Wait()
	}
	return nil
}
