// Package interval implements the half-open time range [start, end) that
// all booking comparisons are built on. Adjacent intervals share an
// endpoint without overlapping, so back-to-back bookings are legal.
package interval

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) Interval {
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// ValidOrdering reports whether the interval is well formed. Zero-length
// intervals are never valid.
func (iv Interval) ValidOrdering() bool {
	return iv.Start.Before(iv.End)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv Interval) DurationAtLeast(minimum time.Duration) bool {
	return iv.Duration() >= minimum
}

// Overlaps reports whether two half-open intervals share any instant.
// The single inequality subsumes the starts-inside, ends-inside, contains
// and contained-by cases; enumerating them separately invites off-by-one
// mistakes at exact boundaries.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// DayWindow returns the [00:00, next midnight) window of the calendar day
// containing t, in UTC.
func DayWindow(t time.Time) Interval {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Interval{Start: start, End: start.Add(24 * time.Hour)}
}
