package analytics_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/pointlens/internal/analytics"
	"github.com/gyaneshwarpardhi/pointlens/internal/bucket"
	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
	"github.com/gyaneshwarpardhi/pointlens/internal/growth"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger/memory"
	"github.com/gyaneshwarpardhi/pointlens/internal/resolve"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func earned(id, user, merchant string, amount float64, at time.Time) event.RawEvent {
	return event.RawEvent{
		ID:        id,
		Type:      "0xpkg::loyalty::PointsEarned",
		Fields:    map[string]any{"user": user, "merchant": merchant, "amount": amount},
		Timestamp: at,
	}
}

func redeemed(id, user, merchant, reward string, amount float64, at time.Time) event.RawEvent {
	return event.RawEvent{
		ID:        id,
		Type:      "0xpkg::loyalty::PointsRedeemed",
		Fields:    map[string]any{"user": user, "merchant": merchant, "reward_id": reward, "amount": amount},
		Timestamp: at,
	}
}

func newService(src *memory.Source, mutate func(*config.Config)) *analytics.Service {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res := resolve.New(src, cfg.Resolver, resolve.WithLogger(logger))
	return analytics.New(src, res, cfg,
		analytics.WithClock(func() time.Time { return now }),
		analytics.WithLogger(logger),
	)
}

// scenario: three earned {50, 100, 20} and one redeemed 30 by the same user
// within the last 24 hours.
func scenario() []event.RawEvent {
	return []event.RawEvent{
		earned("tx1:0", "0xu1", "0xm1", 50, now.Add(-1*time.Hour)),
		earned("tx2:0", "0xu1", "0xm1", 100, now.Add(-2*time.Hour)),
		earned("tx3:0", "0xu1", "0xm1", 20, now.Add(-3*time.Hour)),
		redeemed("tx4:0", "0xu1", "0xm1", "0xr1", 30, now.Add(-4*time.Hour)),
	}
}

func TestOverallAnalytics_Scenario(t *testing.T) {
	svc := newService(memory.New(scenario()...), nil)
	got := svc.OverallAnalytics(context.Background())

	want := analytics.Snapshot{
		TotalEvents:         4,
		TotalAmount:         170,
		TotalRedeemed:       30,
		TotalActors:         1,
		TotalCounterparties: 1,
		RevenueEstimate:     1.85, // 170 × 0.01 + 30 × 0.005
		GrowthPercent:       100,  // nothing last month
	}
	if got != want {
		t.Errorf("OverallAnalytics =\n  %+v\nwant\n  %+v", got, want)
	}

	eng := svc.Engagement(context.Background())
	if eng.ActiveUsers != 1 || eng.NewUsers != 1 || eng.ReturningUsers != 0 || eng.EngagementRate != 4 {
		t.Errorf("Engagement = %+v", eng)
	}

	daily := svc.TimeSeries(context.Background(), bucket.Daily)
	if len(daily) != 30 {
		t.Fatalf("got %d daily buckets, want 30", len(daily))
	}
	last := daily[len(daily)-1]
	if last.Count != 4 || last.Value != 170 {
		t.Errorf("latest daily bucket = %+v, want count 4 value 170", last)
	}
}

func TestOverallAnalytics_OverlappingPagesNotDoubleCounted(t *testing.T) {
	src := memory.New(scenario()...)
	src.Overlap = 1
	svc := newService(src, func(c *config.Config) {
		c.Ledger.PageLimit = 2
		c.Ledger.MaxPages = 0
	})

	got := svc.OverallAnalytics(context.Background())
	if got.TotalEvents != 4 {
		t.Errorf("TotalEvents = %d, want 4", got.TotalEvents)
	}
	if got.TotalAmount != 170 {
		t.Errorf("TotalAmount = %d, want 170", got.TotalAmount)
	}
}

func TestOverallAnalytics_MonthOverMonth(t *testing.T) {
	var raws []event.RawEvent
	for i, at := range []time.Time{
		now.AddDate(0, 0, -3),
		now.AddDate(0, 0, -20),
		now.AddDate(0, -1, -1),
		now.AddDate(0, -1, -5),
		now.AddDate(0, -1, -10),
		now.AddDate(0, -1, -20),
		now.AddDate(0, -3, 0), // outside both windows
	} {
		raws = append(raws, earned(string(rune('a'+i)), "0xu1", "0xm1", 10, at))
	}
	got := newService(memory.New(raws...), nil).OverallAnalytics(context.Background())
	if got.GrowthPercent != -50 {
		t.Errorf("GrowthPercent = %v, want -50", got.GrowthPercent)
	}
}

func TestOverallAnalytics_FallbackAmountsAreFlagged(t *testing.T) {
	raw := event.RawEvent{ID: "tx9:0", Type: "0xpkg::loyalty::PointsEarned", Sender: "0xu9", Timestamp: now.Add(-time.Hour)}
	got := newService(memory.New(raw), nil).OverallAnalytics(context.Background())
	if got.EstimatedAmounts != 1 || got.TotalAmount != 50 {
		t.Errorf("snapshot = %+v, want one estimated amount of 50", got)
	}
	if got.TotalActors != 1 {
		t.Errorf("TotalActors = %d, want sender as actor", got.TotalActors)
	}
}

func TestSourceFailure_ZeroedResults(t *testing.T) {
	src := memory.New(scenario()...)
	src.AddEntity(ledger.Entity{ID: "0xm1", Name: "Bean There"})
	src.SetError(errors.New("fullnode unreachable"))
	svc := newService(src, nil)
	ctx := context.Background()

	if got := svc.OverallAnalytics(ctx); got != (analytics.Snapshot{}) {
		t.Errorf("OverallAnalytics = %+v, want zero", got)
	}
	if got := svc.Engagement(ctx); got != (analytics.Engagement{}) {
		t.Errorf("Engagement = %+v, want zero", got)
	}
	if got := svc.RevenueBreakdown(ctx); got != (growth.RevenueBreakdown{}) {
		t.Errorf("RevenueBreakdown = %+v, want zero", got)
	}
	if got := svc.EntityAnalytics(ctx, ""); got == nil || len(got) != 0 {
		t.Errorf("EntityAnalytics = %v, want empty slice", got)
	}
	series := svc.AllTimeSeries(ctx)
	if len(series.Daily) != 30 || len(series.Weekly) != 12 || len(series.Monthly) != 12 {
		t.Fatalf("series lengths = %d/%d/%d", len(series.Daily), len(series.Weekly), len(series.Monthly))
	}
	for _, b := range series.Daily {
		if b.Count != 0 || b.Value != 0 {
			t.Errorf("bucket %s not zero: %+v", b.Label, b)
		}
	}
}

func TestEngagement_Windows(t *testing.T) {
	day := 24 * time.Hour
	src := memory.New(
		earned("1", "0xu1", "0xm1", 10, now.Add(-20*day)),
		earned("2", "0xu1", "0xm1", 10, now.Add(-10*day)),
		earned("3", "0xu2", "0xm1", 10, now.Add(-3*day)),
		earned("4", "0xu3", "0xm1", 10, now.Add(-40*day)),
		event.RawEvent{ID: "5", Type: "0xpkg::loyalty::MerchantCreated", Sender: "0xowner", Timestamp: now.Add(-day)},
	)
	got := newService(src, nil).Engagement(context.Background())
	want := analytics.Engagement{ActiveUsers: 2, NewUsers: 1, ReturningUsers: 1, EngagementRate: 1.5}
	if got != want {
		t.Errorf("Engagement = %+v, want %+v", got, want)
	}
}

func TestRevenueBreakdown(t *testing.T) {
	src := memory.New(
		earned("1", "0xu1", "0xm1", 1000, now.Add(-time.Hour)),
		redeemed("2", "0xu1", "0xm1", "0xr1", 1000, now.Add(-time.Hour)),
		// Operator calls are not priced.
		event.RawEvent{ID: "3", Type: "0xpkg::loyalty::MerchantCreated", Sender: "0xowner", Timestamp: now.Add(-time.Hour)},
	)
	got := newService(src, nil).RevenueBreakdown(context.Background())
	want := growth.RevenueBreakdown{MerchantFees: 10, TransactionFees: 0.002, PremiumFeatures: 2, Total: 12.002}
	if got != want {
		t.Errorf("RevenueBreakdown = %+v, want %+v", got, want)
	}
}

func TestEntityAnalytics(t *testing.T) {
	src := memory.New(append(scenario(),
		earned("tx5:0", "0xu2", "0xm2", 20, now.Add(-10*24*time.Hour)),
		redeemed("tx6:0", "0xu2", "0xm2", "0xr2", 5, now.Add(-10*24*time.Hour)),
		redeemed("tx7:0", "0xu3", "0xm2", "0xr2", 5, now.Add(-9*24*time.Hour)),
		redeemed("tx8:0", "0xu3", "0xm2", "0xr3", 40, now.Add(-9*24*time.Hour)),
	)...)
	src.AddEntity(ledger.Entity{ID: "0xm1", Name: "Bean There"})
	src.AddEntity(ledger.Entity{ID: "0xm3", Name: "Quiet Shop"})
	src.SetName("0xm2", "Tea House")
	src.SetName("0xr1", "Free Coffee")
	src.SetName("0xr2", "Free Tea")
	svc := newService(src, nil)

	got := svc.EntityAnalytics(context.Background(), "")
	if len(got) != 3 {
		t.Fatalf("got %d entities, want 3", len(got))
	}
	if got[0].EntityID != "0xm1" || got[1].EntityID != "0xm2" || got[2].EntityID != "0xm3" {
		t.Fatalf("order = %s, %s, %s", got[0].EntityID, got[1].EntityID, got[2].EntityID)
	}

	m1 := got[0]
	if m1.Name != "Bean There" || m1.Customers != 1 || m1.PointsIssued != 170 || m1.PointsRedeemed != 30 {
		t.Errorf("m1 = %+v", m1)
	}
	if m1.Revenue != 1.7 || m1.GrowthPercent != 100 {
		t.Errorf("m1 revenue/growth = %v/%v, want 1.7/100", m1.Revenue, m1.GrowthPercent)
	}
	if len(m1.Daily) != 30 || m1.Daily[29].Count != 4 {
		t.Errorf("m1 daily last = %+v", m1.Daily[len(m1.Daily)-1])
	}
	if len(m1.TopRewards) != 1 || m1.TopRewards[0].Name != "Free Coffee" || m1.TopRewards[0].Revenue != 0.3 {
		t.Errorf("m1 rewards = %+v", m1.TopRewards)
	}

	m2 := got[1]
	if m2.Name != "Tea House" || m2.Customers != 2 || m2.PointsIssued != 20 {
		t.Errorf("m2 = %+v", m2)
	}
	if m2.GrowthPercent != -100 {
		t.Errorf("m2 growth = %v, want -100 (active last week only)", m2.GrowthPercent)
	}
	if len(m2.TopRewards) != 2 {
		t.Fatalf("m2 rewards = %+v", m2.TopRewards)
	}
	if r := m2.TopRewards[0]; r.RewardRef != "0xr2" || r.Name != "Free Tea" || r.Redemptions != 2 || r.Points != 10 {
		t.Errorf("top reward = %+v", r)
	}
	if r := m2.TopRewards[1]; r.RewardRef != "0xr3" || r.Name != "0xr3" {
		t.Errorf("unresolvable reward = %+v, want id as name", r)
	}

	m3 := got[2]
	if m3.Name != "Quiet Shop" || m3.Customers != 0 || len(m3.TopRewards) != 0 || len(m3.Daily) != 30 {
		t.Errorf("m3 = %+v", m3)
	}

	if one := svc.EntityAnalytics(context.Background(), "0xm2"); len(one) != 1 || one[0].EntityID != "0xm2" {
		t.Errorf("filtered = %+v", one)
	}
	if none := svc.EntityAnalytics(context.Background(), "0xunknown"); len(none) != 0 {
		t.Errorf("unknown entity = %+v", none)
	}
}

func TestEntityAnalytics_TopRewardsCapped(t *testing.T) {
	var raws []event.RawEvent
	for i := 0; i < 7; i++ {
		ref := "0xr" + string(rune('a'+i))
		for j := 0; j <= i; j++ {
			raws = append(raws, redeemed(ref+string(rune('0'+j)), "0xu1", "0xm1", ref, 10, now.Add(-time.Hour)))
		}
	}
	got := newService(memory.New(raws...), nil).EntityAnalytics(context.Background(), "0xm1")
	if len(got) != 1 {
		t.Fatalf("got %d entities", len(got))
	}
	top := got[0].TopRewards
	if len(top) != 5 {
		t.Fatalf("got %d top rewards, want 5", len(top))
	}
	if top[0].RewardRef != "0xrg" || top[0].Redemptions != 7 || top[4].RewardRef != "0xrc" {
		t.Errorf("ranking = %+v", top)
	}
}

func TestSwapConfig(t *testing.T) {
	bonus := event.RawEvent{
		ID:        "tx1:0",
		Type:      "0xpkg::loyalty::BonusPoints",
		Fields:    map[string]any{"user": "0xu1", "amount": float64(200)},
		Timestamp: now.Add(-time.Hour),
	}
	svc := newService(memory.New(bonus), nil)
	if got := svc.OverallAnalytics(context.Background()); got.TotalAmount != 0 {
		t.Fatalf("TotalAmount before swap = %d, want 0", got.TotalAmount)
	}

	cfg := config.Default()
	cfg.Classifier.EarnedOps = append(cfg.Classifier.EarnedOps, "BonusPoints")
	cfg.Fees.EarnedRate = 0.1
	svc.SwapConfig(cfg)

	got := svc.OverallAnalytics(context.Background())
	if got.TotalAmount != 200 || got.RevenueEstimate != 20 {
		t.Errorf("after swap = %+v, want amount 200 revenue 20", got)
	}
}

func TestResolveName(t *testing.T) {
	src := memory.New()
	src.SetName("0xr1", "Free Coffee")
	svc := newService(src, nil)

	name, err := svc.ResolveName(context.Background(), "0xr1")
	if err != nil || name != "Free Coffee" {
		t.Errorf("ResolveName = %q, %v", name, err)
	}
	if _, err := svc.ResolveName(context.Background(), "0xnone"); err == nil {
		t.Error("expected error for unknown object")
	}
	res := svc.ResolveNames(context.Background(), []string{"0xr1", "0xnone"})
	if len(res) != 2 || res[0].Name != "Free Coffee" || res[1].Err == nil {
		t.Errorf("ResolveNames = %+v", res)
	}
}

func TestOverallAnalytics_PrefersRegistry(t *testing.T) {
	src := memory.New(scenario()...)
	src.SetRegistry(ledger.Registry{
		TotalTransactions: 1200,
		TotalUsers:        340,
		TotalMerchants:    12,
		RewardsRedeemed:   90,
		GrowthPercent:     12.5,
		MerchantFees:      56.789,
	})
	got := newService(src, nil).OverallAnalytics(context.Background())
	want := analytics.Snapshot{
		TotalEvents:         1200,
		TotalActors:         340,
		TotalCounterparties: 12,
		RevenueEstimate:     56.79,
		GrowthPercent:       12.5,
		FromRegistry:        true,
	}
	if got != want {
		t.Errorf("OverallAnalytics =\n  %+v\nwant\n  %+v", got, want)
	}
}

// brokenRegistry is a memory ledger whose registry read always fails.
type brokenRegistry struct {
	*memory.Source
}

func (brokenRegistry) ReadRegistry(context.Context) (ledger.Registry, bool, error) {
	return ledger.Registry{}, false, errors.New("registry object unreadable")
}

func TestOverallAnalytics_RegistryFailureReadsEvents(t *testing.T) {
	src := brokenRegistry{memory.New(scenario()...)}
	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := analytics.New(src, resolve.New(src, cfg.Resolver, resolve.WithLogger(logger)), cfg,
		analytics.WithClock(func() time.Time { return now }),
		analytics.WithLogger(logger),
	)
	got := svc.OverallAnalytics(context.Background())
	if got.FromRegistry || got.TotalEvents != 4 || got.TotalAmount != 170 {
		t.Errorf("OverallAnalytics = %+v, want the event-based snapshot", got)
	}
}
