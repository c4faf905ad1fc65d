package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kysee/randbeacon/beacon"
	"github.com/kysee/randbeacon/endpoint"
	"github.com/kysee/randbeacon/policy"
	"github.com/kysee/randbeacon/xerrors"
)

// pool is the endpoint coordinator (C4): n HTTP endpoint adapters plus the
// shared policy.State. It is owned exclusively by Client, which serializes
// access to it with its own mutex (§5) — pool itself holds no lock.
type pool struct {
	endpoints []*endpoint.Endpoint
	state     policy.State
}

func newPool() *pool {
	return &pool{}
}

func (p *pool) addEndpoint(e *endpoint.Endpoint) {
	p.endpoints = append(p.endpoints, e)
}

// boot runs the cross-validation boot protocol exactly as specified in
// §4.4: endpoint 0 defines the canonical (info, latest) pair, every other
// endpoint must agree on Info (public_key, hash) and on the latest round's
// four fields, and only then does endpoint 0 run boot_phase2 to establish
// the checkpoint.
func (p *pool) boot(ctx context.Context, rootOfTrust *[beacon.HashSize]byte, cfg Config, log zerolog.Logger) error {
	if len(p.endpoints) == 0 {
		return xerrors.Invalidf("initialize endpoint: pool has no endpoints")
	}

	primary := p.endpoints[0]
	info0, latest0, err := primary.BootPhase1(ctx, rootOfTrust)
	if err != nil {
		return err
	}
	log.Info().Str("hash", hexString(info0.Hash[:])).Uint64("round", latest0.Round).Msg("boot phase1 on primary endpoint")

	if len(p.endpoints) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		var tailErr *multierror.Error

		for _, tail := range p.endpoints[1:] {
			tail := tail
			g.Go(func() error {
				if err := p.validateTail(gctx, tail, rootOfTrust, info0, latest0); err != nil {
					mu.Lock()
					tailErr = multierror.Append(tailErr, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
		if tailErr != nil {
			return xerrors.NotSecureWrap(tailErr.ErrorOrNil(), "endpoint cross-validation failed")
		}
	}

	p.state = policy.State{
		Info:        info0,
		CheckPoint:  cfg.CheckPoint,
		Determinism: cfg.Determinism,
		Secure:      cfg.Secure,
		MaxConns:    cfg.MaxConns,
	}

	newState, err := policy.ApplyBootPhase2(ctx, p.state, primary, latest0)
	if err != nil {
		return err
	}
	p.state = newState
	log.Info().Bool("determinism", cfg.Determinism).Bool("secure", cfg.Secure).Msg("boot phase2 complete")
	return nil
}

func (p *pool) validateTail(ctx context.Context, tail *endpoint.Endpoint, rootOfTrust *[beacon.HashSize]byte, info0 *beacon.Info, latest0 *beacon.Random) error {
	infoI, _, err := tail.BootPhase1(ctx, rootOfTrust)
	if err != nil {
		return err
	}
	if !infoI.Equal(info0) {
		return xerrors.NotSecureWrap(nil, "endpoint %s disagrees with primary on public_key/hash", tail.BaseURL)
	}

	latestI, err := tail.FetchRound(ctx, latest0.Round)
	if err != nil {
		return err
	}
	if !latestI.Equal(latest0) {
		return xerrors.NotSecureWrap(nil, "endpoint %s disagrees with primary on round %d", tail.BaseURL, latest0.Round)
	}
	return nil
}

// get runs the racing protocol exactly as specified in §4.4.
func (p *pool) get(ctx context.Context, round *uint64, log zerolog.Logger) (*beacon.Random, error) {
	if p.state.Info == nil {
		return nil, xerrors.Fatalf("get called before boot")
	}
	if round != nil && *round == 0 {
		return nil, xerrors.Invalidf("round 0 is not a valid round number")
	}

	// B3: served from checkpoint without a network round trip.
	if round != nil && p.state.CheckPoint != nil && *round <= p.state.CheckPoint.Round {
		return p.state.CheckPoint, nil
	}

	excluded := make(map[int]bool)
	for {
		idxs := p.eligible(excluded)
		if len(idxs) == 0 {
			return nil, xerrors.Fatalf("missing/exhausted endpoint")
		}

		var (
			newState  policy.State
			result    *beacon.Random
			succeeded bool
			failedIdx []int
		)

		if len(idxs) >= 2 {
			newState, result, succeeded, failedIdx = p.race(ctx, idxs[0], idxs[1], round)
		} else {
			st, r, err := p.endpointGet(ctx, idxs[0], round)
			if err == nil {
				newState, result, succeeded = st, r, true
			} else {
				failedIdx = []int{idxs[0]}
			}
		}

		if succeeded {
			p.state = newState
			log.Debug().Uint64("round", result.Round).Msg("get succeeded")
			return result, nil
		}
		for _, i := range failedIdx {
			excluded[i] = true
		}
	}
}

// race issues get to both i and j concurrently, waits for both, and prefers
// the successful response with the higher round (ties resolved to either).
func (p *pool) race(ctx context.Context, i, j int, round *uint64) (policy.State, *beacon.Random, bool, []int) {
	type outcome struct {
		idx   int
		state policy.State
		r     *beacon.Random
		err   error
	}
	ch := make(chan outcome, 2)
	for _, idx := range []int{i, j} {
		idx := idx
		go func() {
			st, r, err := p.endpointGet(ctx, idx, round)
			ch <- outcome{idx: idx, state: st, r: r, err: err}
		}()
	}

	o1 := <-ch
	o2 := <-ch

	var best *outcome
	var failed []int
	for _, o := range []outcome{o1, o2} {
		o := o
		if o.err != nil {
			failed = append(failed, o.idx)
			continue
		}
		if best == nil || o.r.Round > best.r.Round {
			best = &o
		}
	}

	if best == nil {
		return policy.State{}, nil, false, failed
	}
	return best.state, best.r, true, nil
}

// endpointGet fetches via one endpoint and applies the per-get policy
// (§4.3's Endpoint.get(state, round) -> (State', Random)).
func (p *pool) endpointGet(ctx context.Context, idx int, round *uint64) (policy.State, *beacon.Random, error) {
	ep := p.endpoints[idx]
	fetched, err := ep.DoGet(ctx, round)
	if err != nil {
		return policy.State{}, nil, err
	}
	return policy.ApplyGet(ctx, p.state.Clone(), ep, fetched)
}

// eligible returns endpoint indices (excluding those in excluded) sorted by
// avgElapsed ascending, restricted to those below MaxElapsed, at most 2.
func (p *pool) eligible(excluded map[int]bool) []int {
	type cand struct {
		idx int
		avg time.Duration
	}
	var cands []cand
	for i, ep := range p.endpoints {
		if excluded[i] {
			continue
		}
		avg := ep.AvgElapsed()
		if avg >= endpoint.MaxElapsed {
			continue
		}
		cands = append(cands, cand{idx: i, avg: avg})
	}
	sort.Slice(cands, func(a, b int) bool { return cands[a].avg < cands[b].avg })
	if len(cands) > 2 {
		cands = cands[:2]
	}
	idxs := make([]int, len(cands))
	for i, c := range cands {
		idxs[i] = c.idx
	}
	return idxs
}

func hexString(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
