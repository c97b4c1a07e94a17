// Package bucket groups events into fixed calendar windows.
package bucket

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/pointlens/internal/event"
)

// Granularity is the width of a bucket.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity accepts "daily", "weekly" or "monthly" (case-insensitive).
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Daily, Weekly, Monthly:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// TimeBucket is one window of a series.
type TimeBucket struct {
	Label       string    `json:"label"`
	PeriodStart time.Time `json:"period_start"`
	Count       int       `json:"count"`
	Value       float64   `json:"value"`
}

// ValueFunc extracts the value an event contributes to its bucket.
// A nil ValueFunc makes Value equal to Count.
type ValueFunc func(event.DomainEvent) float64

// AmountValue sums event amounts.
func AmountValue(ev event.DomainEvent) float64 { return float64(ev.Amount) }

// Aggregate returns exactly n contiguous buckets ordered oldest to newest.
// The newest bucket is the period containing now; windows are aligned to
// now's location (days at midnight, weeks on Monday, months on the 1st).
// Events before the oldest bucket or after now are ignored.
//
// Daily buckets are calendar days, not trailing 24-hour windows: shortly after
// midnight the newest bucket holds only what happened since midnight, and
// earlier events from the last 24 hours land in the previous day.
func Aggregate(events []event.DomainEvent, g Granularity, n int, now time.Time, value ValueFunc) []TimeBucket {
	if n <= 0 {
		return []TimeBucket{}
	}
	buckets := make([]TimeBucket, n)
	current := periodStart(now, g)
	for i := 0; i < n; i++ {
		start := shift(current, g, i-(n-1))
		buckets[i] = TimeBucket{Label: label(start, g), PeriodStart: start}
	}

	oldest := buckets[0].PeriodStart
	for _, ev := range events {
		ts := ev.Timestamp
		if ts.Before(oldest) || ts.After(now) {
			continue
		}
		// Last bucket whose start is <= ts.
		i := sort.Search(n, func(i int) bool { return buckets[i].PeriodStart.After(ts) }) - 1
		if i < 0 {
			continue
		}
		buckets[i].Count++
		if value != nil {
			buckets[i].Value += value(ev)
		}
	}
	if value == nil {
		for i := range buckets {
			buckets[i].Value = float64(buckets[i].Count)
		}
	}
	return buckets
}

// periodStart truncates t to the start of its period in t's location.
func periodStart(t time.Time, g Granularity) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	switch g {
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

// shift moves a period start by k periods (negative k goes back).
func shift(start time.Time, g Granularity, k int) time.Time {
	switch g {
	case Weekly:
		return start.AddDate(0, 0, 7*k)
	case Monthly:
		return start.AddDate(0, k, 0)
	default:
		return start.AddDate(0, 0, k)
	}
}

func label(start time.Time, g Granularity) string {
	if g == Monthly {
		return start.Format("2006-01")
	}
	return start.Format("2006-01-02")
}
