package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/pointlens/internal/bucket"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
	"github.com/gyaneshwarpardhi/pointlens/internal/growth"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger"
)

const topRewards = 5

// EntityAnalytics is the breakdown for one counterparty (merchant).
type EntityAnalytics struct {
	EntityID       string              `json:"entity_id"`
	Name           string              `json:"name"`
	Customers      int                 `json:"customers"`
	PointsIssued   uint64              `json:"points_issued"`
	PointsRedeemed uint64              `json:"points_redeemed"`
	Revenue        float64             `json:"revenue"`
	GrowthPercent  float64             `json:"growth_percent"` // week over week
	Daily          []bucket.TimeBucket `json:"daily"`
	TopRewards     []RewardStat        `json:"top_rewards"`
}

// RewardStat ranks a reward by how often it was redeemed.
type RewardStat struct {
	RewardRef   string  `json:"reward_ref"`
	Name        string  `json:"name"`
	Redemptions int     `json:"redemptions"`
	Points      uint64  `json:"points"`
	Revenue     float64 `json:"revenue"`
}

// EntityAnalytics groups the batch by counterparty. A non-empty entityID
// restricts the result to that entity. Entities come from the source's
// directory when it has one, plus every counterparty seen in events.
func (s *Service) EntityAnalytics(ctx context.Context, entityID string) []EntityAnalytics {
	defer observe("entities", time.Now())
	st := s.settings.Load()

	var (
		events    []event.DomainEvent
		directory []ledger.Entity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = s.load(gctx, st)
		return err
	})
	if lister, ok := s.src.(ledger.EntityLister); ok {
		g.Go(func() error {
			var err error
			if directory, err = lister.ListEntities(gctx); err != nil {
				s.logger.Warn("entity directory unavailable, resolving names instead", "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.sourceFailed("entities", err)
		return []EntityAnalytics{}
	}

	byEntity := lo.GroupBy(
		lo.Filter(activity(events), func(ev event.DomainEvent, _ int) bool { return ev.Counterparty != "" }),
		counterpartyOf,
	)
	names := make(map[string]string, len(directory))
	ids := make([]string, 0, len(directory)+len(byEntity))
	for _, e := range directory {
		names[e.ID] = e.Name
		ids = append(ids, e.ID)
	}
	ids = append(ids, lo.Keys(byEntity)...)
	ids = lo.Uniq(ids)
	if entityID != "" {
		ids = lo.Filter(ids, func(id string, _ int) bool { return id == entityID })
	}

	now := s.now()
	out := make([]EntityAnalytics, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entity(st, id, byEntity[id], now))
	}
	s.annotate(ctx, out, names)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PointsIssued != out[j].PointsIssued {
			return out[i].PointsIssued > out[j].PointsIssued
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

func (s *Service) entity(st *settings, id string, events []event.DomainEvent, now time.Time) EntityAnalytics {
	issued := event.SumAmount(event.OfKind(events, event.KindEarned))
	thisWeek := through(events, now.Add(-newWindow), now)
	lastWeek := event.Between(events, now.Add(-2*newWindow), now.Add(-newWindow))

	return EntityAnalytics{
		EntityID:       id,
		Customers:      len(distinct(events, actorOf)),
		PointsIssued:   issued,
		PointsRedeemed: event.SumAmount(event.OfKind(events, event.KindRedeemed)),
		Revenue:        growth.Round2(growth.Charge(issued, st.fees.EarnedRate)),
		GrowthPercent:  growth.Rate(thisWeek, lastWeek, st.policy),
		Daily:          st.windows.Bucket(events, bucket.Daily, now, nil),
		TopRewards:     rankRewards(event.OfKind(events, event.KindRedeemed), st.fees.EarnedRate),
	}
}

func rankRewards(redeemed []event.DomainEvent, rate float64) []RewardStat {
	grouped := lo.GroupBy(
		lo.Filter(redeemed, func(ev event.DomainEvent, _ int) bool { return ev.RewardRef != "" }),
		func(ev event.DomainEvent) string { return ev.RewardRef },
	)
	stats := make([]RewardStat, 0, len(grouped))
	for ref, evs := range grouped {
		points := event.SumAmount(evs)
		stats = append(stats, RewardStat{
			RewardRef:   ref,
			Redemptions: len(evs),
			Points:      points,
			Revenue:     growth.Round2(growth.Charge(points, rate)),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Redemptions != stats[j].Redemptions {
			return stats[i].Redemptions > stats[j].Redemptions
		}
		if stats[i].Points != stats[j].Points {
			return stats[i].Points > stats[j].Points
		}
		return stats[i].RewardRef < stats[j].RewardRef
	})
	if len(stats) > topRewards {
		stats = stats[:topRewards]
	}
	return stats
}

// annotate fills entity and reward names. Directory names win; everything
// else goes through the resolver in one batch, falling back to the raw id.
func (s *Service) annotate(ctx context.Context, entities []EntityAnalytics, known map[string]string) {
	var keys []string
	for _, e := range entities {
		if known[e.EntityID] == "" {
			keys = append(keys, e.EntityID)
		}
		for _, r := range e.TopRewards {
			keys = append(keys, r.RewardRef)
		}
	}
	resolved := make(map[string]string, len(keys))
	for _, res := range s.resolver.ResolveAll(ctx, lo.Uniq(keys)) {
		if res.Err == nil {
			resolved[res.Key] = res.Name
		}
	}
	nameOf := func(id string) string {
		if n := known[id]; n != "" {
			return n
		}
		if n := resolved[id]; n != "" {
			return n
		}
		return id
	}
	for i := range entities {
		entities[i].Name = nameOf(entities[i].EntityID)
		for j := range entities[i].TopRewards {
			entities[i].TopRewards[j].Name = nameOf(entities[i].TopRewards[j].RewardRef)
		}
	}
}
