// Package client implements the randbeacon façade (C6): the type most
// callers construct and hold onto, combining the endpoint pool (C4) and the
// boot/get policy engine (C5) behind one lock.
package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kysee/randbeacon/beacon"
	"github.com/kysee/randbeacon/endpoint"
	"github.com/kysee/randbeacon/xerrors"
)

// Client fetches and verifies rounds from a redundant set of randomness
// beacon endpoints. The zero value is not usable; construct with
// FromConfig. A Client is safe for concurrent use: state mutation is
// serialized behind mu, mirroring the RWMutex-guarded state seen in
// drand's own HTTP server (chainInfoLk/pendingLk).
type Client struct {
	mu       sync.RWMutex
	pool     *pool
	cfg      Config
	booted   bool
	poisoned atomic.Bool
}

// FromConfig constructs an unbooted Client. Call AddEndpoint at least once
// and then Boot before calling Get.
func FromConfig(cfg Config) *Client {
	return &Client{
		pool: newPool(),
		cfg:  cfg,
	}
}

// AddEndpoint registers one HTTP endpoint by base URL. Must be called
// before Boot; calling it after Boot returns an Invalid error.
func (c *Client) AddEndpoint(baseURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkPoisoned("AddEndpoint"); err != nil {
		return err
	}
	if c.booted {
		return xerrors.Invalidf("AddEndpoint called after Boot")
	}
	c.pool.addEndpoint(endpoint.New(baseURL, c.cfg.RequestTimeout, c.cfg.MaxConns, c.cfg.Logger))
	return nil
}

// AddEndpointKind is a convenience wrapper around AddEndpoint for one of
// the well-known mainnet relays.
func (c *Client) AddEndpointKind(kind EndpointKind) error {
	url, err := kind.BaseURL()
	if err != nil {
		return err
	}
	return c.AddEndpoint(url)
}

// Boot runs the cross-validation protocol (§4.4) across every registered
// endpoint and establishes the initial checkpoint per the configured
// (determinism, secure) mode. rootOfTrust is compared against every
// endpoint's reported chain hash; pass nil to skip that check (trust
// whatever the first endpoint reports).
func (c *Client) Boot(ctx context.Context, rootOfTrust *[beacon.HashSize]byte) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkPoisoned("Boot"); err != nil {
		return err
	}
	if c.booted {
		return xerrors.Invalidf("Boot called twice")
	}

	defer c.recoverToPoison(&err)

	if err := c.pool.boot(ctx, rootOfTrust, c.cfg, c.cfg.Logger); err != nil {
		return err
	}
	c.booted = true
	return nil
}

// Get fetches a verified round. round == nil requests the latest round;
// round == 0 is rejected with Invalid. Once a round at or below the
// established checkpoint is requested, it is served from the checkpoint
// without a network call (B3).
func (c *Client) Get(ctx context.Context, round *uint64) (r *beacon.Random, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkPoisoned("Get"); err != nil {
		return nil, err
	}
	if !c.booted {
		return nil, xerrors.Fatalf("Get called before Boot")
	}

	defer c.recoverToPoison(&err)

	return c.pool.get(ctx, round, c.cfg.Logger)
}

// Info returns the chain Info established at Boot. Returns Invalid if
// called before Boot.
func (c *Client) Info() (*beacon.Info, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkPoisoned("Info"); err != nil {
		return nil, err
	}
	if !c.booted {
		return nil, xerrors.Invalidf("Info called before Boot")
	}
	return c.pool.state.Info, nil
}

// Name identifies this client in logs; it is the chain hash truncated to
// its first 8 bytes, hex-encoded, or "unbooted" before Boot.
func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.booted || c.pool.state.Info == nil {
		return "unbooted"
	}
	return hexString(c.pool.state.Info.Hash[:8])
}

// checkPoisoned returns a PoisonedLock error once a prior call has
// panicked while holding the lock, the way a poisoned std::sync::Mutex
// in Rust refuses every subsequent lock acquisition.
func (c *Client) checkPoisoned(op string) error {
	if c.poisoned.Load() {
		return xerrors.Poisoned(op + ": client state was poisoned by a prior panic")
	}
	return nil
}

// recoverToPoison marks the client poisoned and converts a panic into a
// returned error instead of unwinding past the lock holder, so the mutex
// is always released in a known, permanently-failed state.
func (c *Client) recoverToPoison(errp *error) {
	if r := recover(); r != nil {
		c.poisoned.Store(true)
		*errp = xerrors.Fatalf("recovered panic: %v", r)
	}
}
