// Package rpcclient provides a typed HTTP JSON client for Octra nodes.
//
// Every call is bounded by a per-attempt timeout, retried on transient
// failures with capped exponential backoff and returned as an *errs.Error
// whose Kind says what went wrong.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Klingon-tech/octwallet/internal/clock"
	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/internal/log"
)

// AuthHeader carries the caller's credential on authenticated reads.
const AuthHeader = "X-Private-Key"

// maxResponseBytes caps how much of a reply is read.
const maxResponseBytes = 4 << 20

// RetryPolicy is a capped exponential backoff.
type RetryPolicy struct {
	Base time.Duration
	Cap  time.Duration
	Max  int // retries after the first attempt
}

// DefaultRetryPolicy is 500ms doubling up to 8s, three retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: 500 * time.Millisecond, Cap: 8 * time.Second, Max: 3}
}

// Delay returns the wait before retry n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := p.Base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// Options configures a Client.
type Options struct {
	ColdTimeout time.Duration // per attempt, until the first success
	WarmTimeout time.Duration // per attempt, afterwards
	Retry       RetryPolicy
	RateLimit   float64 // requests per second, 0 = unlimited
	RateBurst   int
	Clock       clock.Clock  // backoff sleeps; defaults to clock.Real
	HTTPClient  *http.Client // defaults to a client with no global timeout
}

// DefaultOptions returns the stock timeouts and retry policy.
func DefaultOptions() Options {
	return Options{
		ColdTimeout: 20 * time.Second,
		WarmTimeout: 10 * time.Second,
		Retry:       DefaultRetryPolicy(),
	}
}

// Client talks to one node.
type Client struct {
	endpoint string
	http     *http.Client
	opts     Options
	clock    clock.Clock
	limiter  *rate.Limiter
	warm     atomic.Bool
}

// New creates a client for endpoint with default options.
func New(endpoint string) *Client {
	return NewWithOptions(endpoint, DefaultOptions())
}

// NewWithOptions creates a client for endpoint.
func NewWithOptions(endpoint string, opts Options) *Client {
	def := DefaultOptions()
	if opts.ColdTimeout <= 0 {
		opts.ColdTimeout = def.ColdTimeout
	}
	if opts.WarmTimeout <= 0 {
		opts.WarmTimeout = def.WarmTimeout
	}
	if opts.Retry.Base <= 0 {
		opts.Retry = def.Retry
	}
	if opts.Retry.Cap < opts.Retry.Base {
		opts.Retry.Cap = opts.Retry.Base
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     opts.HTTPClient,
		opts:     opts,
		clock:    opts.Clock,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.clock == nil {
		c.clock = clock.Real{}
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// Endpoint returns the node base URL.
func (c *Client) Endpoint() string { return c.endpoint }

// request describes one logical call.
type request struct {
	method string
	path   string
	auth   string
	body   any

	// notFound is the kind a 404 maps to; NotFound when zero.
	notFound errs.Kind
}

// response is a successful reply.
type response struct {
	body     []byte
	env      envelope
	attempts int
}

// do runs req with retries. The returned attempts count is the number of
// retries spent (0 when the first attempt settled the call).
func (c *Client) do(ctx context.Context, op string, req request) (*response, error) {
	var payload []byte
	if req.body != nil {
		var err error
		if payload, err = json.Marshal(req.body); err != nil {
			return nil, errs.Wrap(errs.BadInput, op, fmt.Errorf("marshal request: %w", err))
		}
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errs.WithAttempts(errs.Wrap(errs.Cancelled, op, err), attempt)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, errs.WithAttempts(errs.Wrap(errs.Cancelled, op, err), attempt)
			}
		}

		status, body, err := c.roundTrip(ctx, req, payload)
		resp, cerr := classify(op, req, status, body, err, ctx.Err())
		if cerr == nil {
			c.warm.Store(true)
			resp.attempts = attempt
			return resp, nil
		}

		if errs.KindOf(cerr) != errs.Transient || attempt >= c.opts.Retry.Max {
			return nil, errs.WithAttempts(cerr, attempt)
		}

		delay := c.opts.Retry.Delay(attempt + 1)
		log.RPC.Warn().
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Str("error", cerr.Error()).
			Msg("Transient node failure, retrying")
		if err := c.clock.Sleep(ctx, delay); err != nil {
			return nil, errs.WithAttempts(errs.Wrap(errs.Cancelled, op, err), attempt)
		}
	}
}

// roundTrip performs one HTTP exchange under the current call timeout.
func (c *Client) roundTrip(ctx context.Context, req request, payload []byte) (int, []byte, error) {
	timeout := c.opts.WarmTimeout
	if !c.warm.Load() {
		timeout = c.opts.ColdTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(actx, req.method, c.endpoint+req.path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.auth != "" {
		httpReq.Header.Set(AuthHeader, req.auth)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	log.RPC.Debug().
		Str("method", req.method).
		Str("path", logPath(req.path)).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Node call")
	return resp.StatusCode, data, nil
}

// decode unmarshals a successful reply into out.
func decode(op string, resp *response, out any) error {
	if err := json.Unmarshal(resp.body, out); err != nil {
		return errs.Wrap(errs.Unknown, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// logPath strips the query string.
func logPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}
