// Package analytics answers the read-side queries over the loyalty ledger:
// overall snapshot, per-merchant breakdown, engagement, revenue and time
// series. Every query reloads and recomputes from the event source; only
// name resolution is cached (in resolve.Resolver).
//
// The event source is best effort. When it fails the query is logged,
// counted in metrics.SourceErrors and answered with a zeroed result.
package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/pointlens/internal/bucket"
	"github.com/gyaneshwarpardhi/pointlens/internal/classify"
	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
	"github.com/gyaneshwarpardhi/pointlens/internal/growth"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger"
	"github.com/gyaneshwarpardhi/pointlens/internal/metrics"
	"github.com/gyaneshwarpardhi/pointlens/internal/resolve"
)

// settings is the hot-reloadable part of the configuration, swapped as a unit.
type settings struct {
	filter     ledger.Filter
	pageLimit  int
	maxPages   int
	classifier *classify.Classifier
	windows    bucket.Windows
	policy     growth.Policy
	fees       growth.FeeSchedule
	rates      growth.BreakdownRates
}

// Service is the analytics facade. It is safe for concurrent use.
type Service struct {
	src       ledger.Source
	resolver  *resolve.Resolver
	settings  atomic.Pointer[settings]
	classOpts []classify.Option
	now       func() time.Time
	logger    *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now as the anchor for windows and buckets.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClassifierOptions passes extra matchers or amount sources to every
// classifier the service builds, including after a config swap.
func WithClassifierOptions(opts ...classify.Option) Option {
	return func(s *Service) { s.classOpts = append(s.classOpts, opts...) }
}

// New creates a Service reading from src and resolving names through resolver.
func New(src ledger.Source, resolver *resolve.Resolver, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		src:      src,
		resolver: resolver,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.SwapConfig(cfg)
	return s
}

// SwapConfig atomically replaces classifier, fee, growth and window settings.
// Queries already running finish with the settings they started with.
func (s *Service) SwapConfig(cfg *config.Config) {
	fees, rates := growth.SchedulesFrom(cfg.Fees)
	s.settings.Store(&settings{
		filter:     ledger.Filter{Package: cfg.Ledger.PackageID, Module: cfg.Ledger.Module},
		pageLimit:  cfg.Ledger.PageLimit,
		maxPages:   cfg.Ledger.MaxPages,
		classifier: classify.New(cfg.Classifier, s.classOpts...),
		windows:    bucket.NewWindows(cfg.Windows),
		policy:     growth.PolicyFrom(cfg.Growth),
		fees:       fees,
		rates:      rates,
	})
}

// load reads, classifies and deduplicates the current event batch.
func (s *Service) load(ctx context.Context, st *settings) ([]event.DomainEvent, error) {
	raws, err := ledger.FetchAll(ctx, s.src, st.filter, st.pageLimit, st.maxPages, ledger.Descending)
	if err != nil {
		return nil, err
	}
	metrics.EventsFetched.Add(float64(len(raws)))

	classified := st.classifier.ClassifyAll(raws)
	events := event.Dedupe(classified)
	if dropped := len(classified) - len(events); dropped > 0 {
		metrics.EventsDeduplicated.Add(float64(dropped))
	}
	return events, nil
}

// loadOrEmpty is load for queries that degrade to an empty batch.
func (s *Service) loadOrEmpty(ctx context.Context, st *settings, query string) []event.DomainEvent {
	events, err := s.load(ctx, st)
	if err != nil {
		s.sourceFailed(query, err)
		return nil
	}
	return events
}

func (s *Service) sourceFailed(query string, err error) {
	metrics.SourceErrors.WithLabelValues(query).Inc()
	s.logger.Error("event source unavailable, returning empty result", "query", query, "err", err)
}

func observe(query string, start time.Time) {
	metrics.QueryDuration.WithLabelValues(query).Observe(float64(time.Since(start).Milliseconds()))
}

// ResolveName returns the display name for an object id.
func (s *Service) ResolveName(ctx context.Context, key string) (string, error) {
	return s.resolver.Resolve(ctx, key)
}

// ResolveNames resolves a batch of object ids; see resolve.Resolver.ResolveAll.
func (s *Service) ResolveNames(ctx context.Context, keys []string) []resolve.Result {
	return s.resolver.ResolveAll(ctx, keys)
}

// activity keeps loyalty events, dropping unclassified ones.
func activity(events []event.DomainEvent) []event.DomainEvent {
	return event.Filter(events, func(ev event.DomainEvent) bool { return ev.Kind != event.KindOther })
}

// through returns events in [from, now], now included.
func through(events []event.DomainEvent, from, now time.Time) []event.DomainEvent {
	return event.Between(events, from, now.Add(time.Nanosecond))
}
