package aggregate

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Fanout runs bounded concurrent probes. It is shared by every aggregation
// so that MaxInFlight holds across clients. Safe for concurrent use.
type Fanout struct {
	global      *semaphore.Weighted
	maxInFlight int
	perClient   int
	limiter     *HostLimiter // nil when rate limiting is disabled
}

// NewFanout creates a Fanout. A ratePerSecond of zero disables rate limiting.
func NewFanout(maxInFlight, perClient int, ratePerSecond float64, burst int) *Fanout {
	if perClient < 1 {
		perClient = 1
	}
	if maxInFlight < perClient {
		maxInFlight = perClient
	}
	f := &Fanout{
		global:      semaphore.NewWeighted(int64(maxInFlight)),
		maxInFlight: maxInFlight,
		perClient:   perClient,
	}
	if ratePerSecond > 0 {
		f.limiter = NewHostLimiter(ratePerSecond, max(burst, 1))
	}
	return f
}

// Each calls fn for every endpoint with at most perClient calls in flight.
// Each call holds one global slot and waits for its host's rate limit first.
// The returned slice holds the error of each index: an admission failure
// (ctx done) or whatever fn returned. One failing call never cancels its
// siblings.
func (f *Fanout) Each(ctx context.Context, endpoints []string, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, len(endpoints))
	var g errgroup.Group
	g.SetLimit(f.perClient)

	for i, ep := range endpoints {
		g.Go(func() error {
			if err := f.admit(ctx, ep); err != nil {
				errs[i] = err
				return nil
			}
			defer f.global.Release(1)
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Clients runs fn once per index in [0, n) with at most the global in-flight
// bound of clients processed concurrently. Probes issued by fn still take
// their own global slots.
func (f *Fanout) Clients(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(f.maxInFlight)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func (f *Fanout) admit(ctx context.Context, endpoint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, hostOf(endpoint)); err != nil {
			return err
		}
	}
	return f.global.Acquire(ctx, 1)
}

// HostLimiter is a token bucket per endpoint host.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewHostLimiter creates a limiter with rate r tokens per second and burst b
// for each host.
func NewHostLimiter(r float64, b int) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

func (l *HostLimiter) get(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiters[host] = lim
	}
	return lim
}

// Allow reports whether a request to host may proceed now.
func (l *HostLimiter) Allow(host string) bool {
	return l.get(host).Allow()
}

// Wait blocks until a request to host may proceed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	return l.get(host).Wait(ctx)
}

// hostOf returns the host of an endpoint URL, or the raw string when it
// does not parse.
func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}
