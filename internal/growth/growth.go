package growth

import (
	"math"

	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
)

// DefaultSentinel is reported when there was no previous activity but there
// is current activity.
const DefaultSentinel = 100

// Range bounds a percentage.
type Range struct {
	Min, Max float64
}

// Policy controls degenerate cases and presentation of growth percentages.
type Policy struct {
	// Sentinel is returned when previous is empty and current is not.
	Sentinel float64
	// Clamp, when set, bounds the computed percentage. The sentinel is not clamped.
	Clamp *Range
}

// PolicyFrom converts the YAML growth section.
func PolicyFrom(conf config.GrowthConf) Policy {
	p := Policy{Sentinel: conf.Sentinel}
	if conf.Clamp != nil {
		p.Clamp = &Range{Min: conf.Clamp.Min, Max: conf.Clamp.Max}
	}
	return p
}

// Rate is the period-over-period change in event count, in percent.
func Rate(current, previous []event.DomainEvent, p Policy) float64 {
	return RateCounts(len(current), len(previous), p)
}

// RateCounts is Rate over plain counts.
func RateCounts(current, previous int, p Policy) float64 {
	switch {
	case previous == 0 && current == 0:
		return 0
	case previous == 0:
		return p.Sentinel
	}
	pct := float64(current-previous) / float64(previous) * 100
	if p.Clamp != nil {
		pct = math.Max(p.Clamp.Min, math.Min(p.Clamp.Max, pct))
	}
	return Round2(pct)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
