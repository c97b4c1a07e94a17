// Package resolve maps opaque ledger identifiers (reward or merchant object
// ids) to display names through a slow remote lookup.
//
// A Resolver keeps every successful lookup for the life of the process (or
// until TTL, when one is set), lets concurrent callers for the same key share
// a single in-flight fetch, and never caches a failure: the next call after a
// failed fetch starts a new one.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/metrics"
)

// ErrEmptyKey is returned for an empty key; no fetch is attempted.
var ErrEmptyKey = errors.New("resolve: empty key")

// Fetcher performs the remote lookup. It should honour ctx cancellation.
type Fetcher interface {
	FetchName(ctx context.Context, key string) (string, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, key string) (string, error)

func (f FetchFunc) FetchName(ctx context.Context, key string) (string, error) { return f(ctx, key) }

type entry struct {
	name       string
	resolvedAt time.Time
}

// Resolver is the single-flight name cache. Its zero value is not usable;
// construct it with New.
type Resolver struct {
	fetcher Fetcher
	flight  singleflight.Group

	mu    sync.RWMutex
	names map[string]entry // resolved only; in-flight keys live in flight

	fetchTimeout time.Duration
	ttl          time.Duration
	workers      int
	now          func() time.Time
	logger       *slog.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithClock replaces time.Now, for TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver around fetcher.
func New(fetcher Fetcher, conf config.ResolverConf, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:      fetcher,
		names:        make(map[string]entry),
		fetchTimeout: time.Duration(conf.FetchTimeoutMs) * time.Millisecond,
		ttl:          conf.TTL,
		workers:      conf.BatchWorkers,
		now:          time.Now,
		logger:       slog.Default(),
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the name for key, fetching it at most once across all
// concurrent callers. If ctx ends first the caller gets ctx.Err(); the
// shared fetch keeps running (bounded by the fetch timeout) for any other
// waiters and still populates the cache on success.
func (r *Resolver) Resolve(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if name, ok := r.lookup(key); ok {
		metrics.ResolveRequests.WithLabelValues("hit").Inc()
		return name, nil
	}

	ch := r.flight.DoChan(key, func() (interface{}, error) {
		// A fetch for key may have completed between lookup and DoChan.
		if name, ok := r.lookup(key); ok {
			return name, nil
		}
		return r.fetch(context.WithoutCancel(ctx), key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.ResolveRequests.WithLabelValues("error").Inc()
			return "", fmt.Errorf("resolve %s: %w", key, res.Err)
		}
		outcome := "fetched"
		if res.Shared {
			outcome = "shared"
		}
		metrics.ResolveRequests.WithLabelValues(outcome).Inc()
		return res.Val.(string), nil
	case <-ctx.Done():
		metrics.ResolveRequests.WithLabelValues("error").Inc()
		return "", ctx.Err()
	}
}

// fetch runs inside the single-flight call; no Resolver lock is held here.
func (r *Resolver) fetch(ctx context.Context, key string) (string, error) {
	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}
	start := time.Now()
	name, err := r.fetcher.FetchName(ctx, key)
	if err != nil {
		metrics.ResolveFetches.WithLabelValues("error").Inc()
		r.logger.Warn("name fetch failed", "key", key, "err", err)
		return "", err
	}
	metrics.ResolveFetches.WithLabelValues("ok").Inc()
	r.logger.Debug("name fetched", "key", key, "name", name, "took", time.Since(start))

	r.mu.Lock()
	r.names[key] = entry{name: name, resolvedAt: r.now()}
	n := len(r.names)
	r.mu.Unlock()
	metrics.ResolvedNames.Set(float64(n))
	return name, nil
}

func (r *Resolver) lookup(key string) (string, bool) {
	r.mu.RLock()
	e, ok := r.names[key]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	if r.ttl > 0 && r.now().Sub(e.resolvedAt) >= r.ttl {
		return "", false
	}
	return e.name, true
}

// Peek returns a cached name without fetching.
func (r *Resolver) Peek(key string) (string, bool) {
	return r.lookup(key)
}

// Forget drops a resolved name so the next Resolve fetches again.
// An in-flight fetch for key is not interrupted.
func (r *Resolver) Forget(key string) {
	r.mu.Lock()
	delete(r.names, key)
	n := len(r.names)
	r.mu.Unlock()
	metrics.ResolvedNames.Set(float64(n))
}

// Len returns the number of resolved names held, including expired ones not
// yet refreshed.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Result is the outcome of resolving one key in a batch.
type Result struct {
	Key   string `json:"key"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// ResolveAll resolves keys with at most BatchWorkers concurrent lookups.
// Results are in input order; duplicate keys share one fetch.
func (r *Resolver) ResolveAll(ctx context.Context, keys []string) []Result {
	results := make([]Result, len(keys))
	if len(keys) == 0 {
		return results
	}
	done := make([]bool, len(keys))

	workers := min(r.workers, len(keys))
	pool := newWorkerPool(ctx, workers, len(keys), func(ctx context.Context, i int) {
		name, err := r.Resolve(ctx, keys[i])
		results[i] = Result{Key: keys[i], Name: name, Err: err}
		done[i] = true
	})
	for i := range keys {
		pool.Submit(i) // queue holds every key, never full
	}
	pool.Drain()

	for i := range results {
		if !done[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = Result{Key: keys[i], Err: err}
		}
		if results[i].Err != nil {
			results[i].Error = results[i].Err.Error()
		}
	}
	return results
}
