// Package store accumulates time spent per category into hourly buckets and
// persists the result to a versioned file.
package store

import (
	"sort"
	"time"
)

// Bucket identifies one hour of one local calendar day.
type Bucket struct {
	Day  string // 2006-01-02
	Hour int    // 0..23
}

func BucketOf(t time.Time) Bucket {
	l := t.Local()
	return Bucket{Day: l.Format("2006-01-02"), Hour: l.Hour()}
}

// Aggregate maps buckets to per-category accumulated durations. It is mutated
// only from the tracker's activation callback, so it needs no locking.
type Aggregate struct {
	buckets map[Bucket]map[string]time.Duration
}

func NewAggregate() *Aggregate {
	return &Aggregate{buckets: make(map[Bucket]map[string]time.Duration)}
}

// AddSlice attributes the interval [from, to) to a category, splitting it
// across hour boundaries so every part lands in its own bucket. The sum of
// added durations always equals to.Sub(from).
func (a *Aggregate) AddSlice(category string, from, to time.Time) {
	for from.Before(to) {
		l := from.Local()
		hourEnd := time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), 0, 0, 0, l.Location()).Add(time.Hour)
		end := to
		if hourEnd.Before(to) {
			end = hourEnd
		}
		a.add(BucketOf(from), category, end.Sub(from))
		from = end
	}
}

func (a *Aggregate) add(b Bucket, category string, d time.Duration) {
	m := a.buckets[b]
	if m == nil {
		m = make(map[string]time.Duration)
		a.buckets[b] = m
	}
	m[category] += d
}

// Total returns the accumulated duration of a category across all buckets.
func (a *Aggregate) Total(category string) time.Duration {
	var total time.Duration
	for _, m := range a.buckets {
		total += m[category]
	}
	return total
}

// CategoryTotals returns the per-category sums across all buckets.
func (a *Aggregate) CategoryTotals() map[string]time.Duration {
	totals := make(map[string]time.Duration)
	for _, m := range a.buckets {
		for category, d := range m {
			totals[category] += d
		}
	}
	return totals
}

// BucketTotals is one bucket's per-category seconds, for display and
// serialization.
type BucketTotals struct {
	Bucket  Bucket
	Seconds map[string]int64
}

// Buckets returns a copy of all buckets ordered by day then hour.
func (a *Aggregate) Buckets() []BucketTotals {
	out := make([]BucketTotals, 0, len(a.buckets))
	for b, m := range a.buckets {
		seconds := make(map[string]int64, len(m))
		for category, d := range m {
			seconds[category] = int64(d / time.Second)
		}
		out = append(out, BucketTotals{Bucket: b, Seconds: seconds})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bucket.Day != out[j].Bucket.Day {
			return out[i].Bucket.Day < out[j].Bucket.Day
		}
		return out[i].Bucket.Hour < out[j].Bucket.Hour
	})
	return out
}

func (a *Aggregate) Len() int {
	return len(a.buckets)
}
