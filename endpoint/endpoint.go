// Package endpoint implements the HTTP adapter for one remote beacon (C3):
// it fetches JSON resources over net/http — the external transport boundary
// named in spec.md §1 — and maintains its own latency statistics. It knows
// nothing of cross-endpoint policy; it reports raw results and timings
// upstream to the pool.
package endpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kysee/randbeacon/beacon"
	"github.com/kysee/randbeacon/verify"
	"github.com/kysee/randbeacon/xerrors"
)

// maxSweepWindow is the maximum number of rounds verified in one batch
// (§4.3's "chunks the range into windows of at most 1000 rounds").
const maxSweepWindow = 1000

// maxSweepConcurrency bounds the number of in-flight fetches within a single
// sweep window (spec.md §9's "any implementation must cap concurrency").
const maxSweepConcurrency = 32

// Endpoint is one remote beacon HTTP endpoint.
type Endpoint struct {
	BaseURL string

	httpClient *http.Client
	window     *Window
	log        zerolog.Logger
}

// New builds an Endpoint for baseURL, bounding every request to timeout and
// the connection pool to maxConns per host.
func New(baseURL string, timeout time.Duration, maxConns int, logger zerolog.Logger) *Endpoint {
	if maxConns <= 0 {
		maxConns = 4
	}
	transport := &http.Transport{
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: maxConns,
	}
	return &Endpoint{
		BaseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		window: NewWindow(MaxWindow),
		log:    logger.With().Str("endpoint", baseURL).Logger(),
	}
}

// AvgElapsed returns the endpoint's current mean latency, or Infinite if no
// sample has been recorded yet.
func (e *Endpoint) AvgElapsed() time.Duration {
	return e.window.Avg()
}

// FetchInfo performs GET {base}/info.
func (e *Endpoint) FetchInfo(ctx context.Context) (*beacon.Info, error) {
	body, err := e.fetch(ctx, "/info")
	if err != nil {
		return nil, err
	}
	return beacon.DecodeInfo(body)
}

// FetchLatest performs GET {base}/public/latest.
func (e *Endpoint) FetchLatest(ctx context.Context) (*beacon.Random, error) {
	body, err := e.fetch(ctx, "/public/latest")
	if err != nil {
		return nil, err
	}
	return beacon.DecodeRandom(body)
}

// FetchRound performs GET {base}/public/{n}.
func (e *Endpoint) FetchRound(ctx context.Context, round uint64) (*beacon.Random, error) {
	body, err := e.fetch(ctx, "/public/"+strconv.FormatUint(round, 10))
	if err != nil {
		return nil, err
	}
	return beacon.DecodeRandom(body)
}

// DoGet is the pure fetcher with no policy side effects: round == nil means
// "latest"; round == 0 is rejected (§9 open-question decision).
func (e *Endpoint) DoGet(ctx context.Context, round *uint64) (*beacon.Random, error) {
	if round == nil {
		return e.FetchLatest(ctx)
	}
	if *round == 0 {
		return nil, xerrors.Invalidf("round 0 is not a valid round number")
	}
	return e.FetchRound(ctx, *round)
}

// BootPhase1 fetches /info then /public/latest, rejecting the endpoint if a
// caller-supplied root of trust disagrees with the fetched chain hash.
func (e *Endpoint) BootPhase1(ctx context.Context, rootOfTrust *[beacon.HashSize]byte) (*beacon.Info, *beacon.Random, error) {
	info, err := e.FetchInfo(ctx)
	if err != nil {
		return nil, nil, err
	}
	if rootOfTrust != nil && *rootOfTrust != info.Hash {
		return nil, nil, xerrors.NotSecuref("not expected drand-group")
	}
	latest, err := e.FetchLatest(ctx)
	if err != nil {
		return nil, nil, err
	}
	return info, latest, nil
}

// Verify sweeps rounds from.round+1..till.round (or 1..till.round when from
// is nil, meaning "start of chain") in batches of at most maxSweepWindow,
// fetching concurrently within a batch and then verifying each link in order
// against the running previous signature. It fails NotSecure on the first
// invalid link and propagates the first fetch error encountered; rounds
// after a fetch error in the same window are not verified, though their
// latencies are still recorded.
func (e *Endpoint) Verify(ctx context.Context, info *beacon.Info, from, till *beacon.Random) (*beacon.Random, error) {
	start := uint64(1)
	prevSig := info.GroupHash[:]
	if from != nil {
		start = from.Round + 1
		prevSig = from.Signature[:]
	}
	if till == nil {
		return nil, xerrors.Fatalf("verify called with nil till")
	}
	if start > till.Round {
		return till, nil
	}

	for windowStart := start; windowStart <= till.Round; windowStart += maxSweepWindow {
		windowEnd := windowStart + maxSweepWindow - 1
		if windowEnd > till.Round {
			windowEnd = till.Round
		}

		rounds, err := e.fetchWindow(ctx, windowStart, windowEnd, till)
		if err != nil {
			return nil, err
		}

		for r := windowStart; r <= windowEnd; r++ {
			round := rounds[r]
			if round == nil {
				return nil, xerrors.IOErrorWrap(nil, "round %d missing from sweep window", r)
			}
			if _, err := verify.Chain(info.PublicKey, prevSig, round); err != nil {
				return nil, err
			}
			prevSig = round.Signature[:]
		}
	}

	return till, nil
}

// fetchWindow fetches [start, end] concurrently, bounded at
// maxSweepConcurrency in flight, reusing till when end == till.Round so the
// already-fetched latest round is not requested twice.
func (e *Endpoint) fetchWindow(ctx context.Context, start, end uint64, till *beacon.Random) (map[uint64]*beacon.Random, error) {
	rounds := make(map[uint64]*beacon.Random, end-start+1)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSweepConcurrency)

	for r := start; r <= end; r++ {
		r := r
		if till != nil && r == till.Round {
			mu.Lock()
			rounds[r] = till
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			round, err := e.FetchRound(gctx, r)
			if err != nil {
				return fmt.Errorf("fetch round %d: %w", r, err)
			}
			mu.Lock()
			rounds[r] = round
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, xerrors.IOErrorWrap(err, "verification sweep fetch failed")
	}
	return rounds, nil
}

// fetch performs an HTTP GET against path, recording the elapsed latency
// (§4.3's latency bookkeeping: success pushes the real elapsed time, failure
// pushes a penalty capped at MaxElapsed so failing endpoints decay out of
// eligibility rather than being permanently blacklisted).
func (e *Endpoint) fetch(ctx context.Context, path string) ([]byte, error) {
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return nil, xerrors.Invalidf("invalid base url %q: %v", e.BaseURL, err)
	}
	u.Path = path

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		e.recordFailure()
		return nil, xerrors.IOErrorWrap(err, "build request for %s", path)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.recordFailure()
		e.log.Debug().Err(err).Str("path", path).Msg("request failed")
		return nil, xerrors.IOErrorWrap(err, "request %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.recordFailure()
		return nil, xerrors.IOErrorWrap(err, "read response body for %s", path)
	}

	if resp.StatusCode != http.StatusOK {
		e.recordFailure()
		return nil, xerrors.IOErrorWrap(nil, "request %s: status %d: %s", path, resp.StatusCode, string(body))
	}

	elapsed := time.Since(start)
	e.window.Push(elapsed)
	e.log.Debug().Str("path", path).Dur("elapsed", elapsed).Msg("request succeeded")
	return body, nil
}

func (e *Endpoint) recordFailure() {
	penalty := e.window.Avg() * 2
	if penalty > MaxElapsed || penalty <= 0 {
		penalty = MaxElapsed
	}
	e.window.Push(penalty)
}
