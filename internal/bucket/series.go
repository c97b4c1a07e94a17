package bucket

import (
	"time"

	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
)

// Series holds one bucket sequence per granularity.
type Series struct {
	Daily   []TimeBucket `json:"daily"`
	Weekly  []TimeBucket `json:"weekly"`
	Monthly []TimeBucket `json:"monthly"`
}

// Windows binds bucket counts and a calendar location.
type Windows struct {
	counts map[Granularity]int
	loc    *time.Location
}

// NewWindows builds Windows from conf. An unknown location falls back to UTC;
// config.Validate rejects those before they get here.
func NewWindows(conf config.WindowConf) Windows {
	loc, err := time.LoadLocation(conf.Location)
	if err != nil {
		loc = time.UTC
	}
	return Windows{
		counts: map[Granularity]int{
			Daily:   conf.Daily,
			Weekly:  conf.Weekly,
			Monthly: conf.Monthly,
		},
		loc: loc,
	}
}

// Count returns the configured number of buckets for g.
func (w Windows) Count(g Granularity) int { return w.counts[g] }

// Location returns the calendar location used for alignment.
func (w Windows) Location() *time.Location {
	if w.loc == nil {
		return time.UTC
	}
	return w.loc
}

// Bucket aggregates events for one granularity with the configured count.
func (w Windows) Bucket(events []event.DomainEvent, g Granularity, now time.Time, value ValueFunc) []TimeBucket {
	return Aggregate(events, g, w.Count(g), now.In(w.Location()), value)
}

// All aggregates every granularity against the same now.
func (w Windows) All(events []event.DomainEvent, now time.Time, value ValueFunc) Series {
	return Series{
		Daily:   w.Bucket(events, Daily, now, value),
		Weekly:  w.Bucket(events, Weekly, now, value),
		Monthly: w.Bucket(events, Monthly, now, value),
	}
}
