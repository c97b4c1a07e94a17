package analytics

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/gyaneshwarpardhi/pointlens/internal/bucket"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
	"github.com/gyaneshwarpardhi/pointlens/internal/growth"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger"
	"github.com/gyaneshwarpardhi/pointlens/internal/metrics"
)

// Snapshot is the platform-wide summary.
type Snapshot struct {
	TotalEvents         int     `json:"total_events"`
	TotalAmount         uint64  `json:"total_amount"`   // points issued
	TotalRedeemed       uint64  `json:"total_redeemed"` // points redeemed
	TotalActors         int     `json:"total_actors"`
	TotalCounterparties int     `json:"total_counterparties"`
	RevenueEstimate     float64 `json:"revenue_estimate"`
	GrowthPercent       float64 `json:"growth_percent"` // month over month
	EstimatedAmounts    int     `json:"estimated_amounts"`
	// FromRegistry marks a snapshot read from the on-chain analytics
	// registry. The registry carries no point totals, so the amount fields
	// are zero.
	FromRegistry bool `json:"from_registry,omitempty"`
}

// Engagement counts distinct actors over rolling windows.
type Engagement struct {
	ActiveUsers    int     `json:"active_users"`    // last 30 days
	NewUsers       int     `json:"new_users"`       // last 7 days
	ReturningUsers int     `json:"returning_users"` // active - new
	EngagementRate float64 `json:"engagement_rate"` // events in 30 days per active user
}

const (
	activeWindow = 30 * 24 * time.Hour
	newWindow    = 7 * 24 * time.Hour
)

// OverallAnalytics summarises the whole batch. A source with an analytics
// registry answers from the registry; events are the fallback.
func (s *Service) OverallAnalytics(ctx context.Context) Snapshot {
	defer observe("overall", time.Now())
	if snap, ok := s.registrySnapshot(ctx); ok {
		return snap
	}
	st := s.settings.Load()
	events := s.loadOrEmpty(ctx, st, "overall")
	now := s.now()

	loyalty := activity(events)
	current := through(events, now.AddDate(0, -1, 0), now)
	previous := event.Between(events, now.AddDate(0, -2, 0), now.AddDate(0, -1, 0))

	return Snapshot{
		TotalEvents:         len(events),
		TotalAmount:         event.SumAmount(event.OfKind(events, event.KindEarned)),
		TotalRedeemed:       event.SumAmount(event.OfKind(events, event.KindRedeemed)),
		TotalActors:         len(distinct(loyalty, actorOf)),
		TotalCounterparties: len(distinct(loyalty, counterpartyOf)),
		RevenueEstimate:     growth.Round2(growth.Revenue(events, st.fees)),
		GrowthPercent:       growth.Rate(current, previous, st.policy),
		EstimatedAmounts:    lo.CountBy(events, func(ev event.DomainEvent) bool { return ev.AmountEstimated }),
	}
}

func (s *Service) registrySnapshot(ctx context.Context) (Snapshot, bool) {
	rr, ok := s.src.(ledger.RegistryReader)
	if !ok {
		return Snapshot{}, false
	}
	reg, found, err := rr.ReadRegistry(ctx)
	if err != nil {
		metrics.SourceErrors.WithLabelValues("registry").Inc()
		s.logger.Warn("analytics registry unavailable, reading events", "err", err)
		return Snapshot{}, false
	}
	if !found {
		return Snapshot{}, false
	}
	return Snapshot{
		TotalEvents:         reg.TotalTransactions,
		TotalActors:         reg.TotalUsers,
		TotalCounterparties: reg.TotalMerchants,
		RevenueEstimate:     growth.Round2(reg.MerchantFees),
		GrowthPercent:       growth.Round2(reg.GrowthPercent),
		FromRegistry:        true,
	}, true
}

// Engagement reports active, new and returning users. "New" means seen in
// the last 7 days; returning users are the remaining active ones.
func (s *Service) Engagement(ctx context.Context) Engagement {
	defer observe("engagement", time.Now())
	st := s.settings.Load()
	events := activity(s.loadOrEmpty(ctx, st, "engagement"))
	now := s.now()

	recent := through(events, now.Add(-activeWindow), now)
	active := len(distinct(recent, actorOf))
	fresh := len(distinct(through(events, now.Add(-newWindow), now), actorOf))

	e := Engagement{
		ActiveUsers:    active,
		NewUsers:       fresh,
		ReturningUsers: max(active-fresh, 0),
	}
	if active > 0 {
		e.EngagementRate = growth.Round2(float64(len(recent)) / float64(active))
	}
	return e
}

// RevenueBreakdown prices loyalty activity by category.
func (s *Service) RevenueBreakdown(ctx context.Context) growth.RevenueBreakdown {
	defer observe("revenue", time.Now())
	st := s.settings.Load()
	return growth.Breakdown(activity(s.loadOrEmpty(ctx, st, "revenue")), st.rates)
}

// TimeSeries buckets events for one granularity. Count is the number of
// events; Value is the number of points issued.
func (s *Service) TimeSeries(ctx context.Context, g bucket.Granularity) []bucket.TimeBucket {
	defer observe("timeseries", time.Now())
	st := s.settings.Load()
	return st.windows.Bucket(s.loadOrEmpty(ctx, st, "timeseries"), g, s.now(), issuedValue)
}

// AllTimeSeries is TimeSeries for every granularity over one batch.
func (s *Service) AllTimeSeries(ctx context.Context) bucket.Series {
	defer observe("timeseries", time.Now())
	st := s.settings.Load()
	return st.windows.All(s.loadOrEmpty(ctx, st, "timeseries"), s.now(), issuedValue)
}

func issuedValue(ev event.DomainEvent) float64 {
	if ev.Kind != event.KindEarned {
		return 0
	}
	return float64(ev.Amount)
}

func actorOf(ev event.DomainEvent) string        { return ev.Actor }
func counterpartyOf(ev event.DomainEvent) string { return ev.Counterparty }

// distinct returns the non-empty values of key over events, first seen first.
func distinct(events []event.DomainEvent, key func(event.DomainEvent) string) []string {
	return lo.Uniq(lo.FilterMap(events, func(ev event.DomainEvent, _ int) (string, bool) {
		k := key(ev)
		return k, k != ""
	}))
}
