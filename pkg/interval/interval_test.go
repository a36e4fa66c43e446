package interval

import (
	"testing"
	"time"
)

func ts(hour, min int) time.Time {
	return time.Date(2026, 1, 15, hour, min, 0, 0, time.UTC)
}

func TestValidOrdering(t *testing.T) {
	tests := []struct {
		name string
		iv   Interval
		want bool
	}{
		{"start before end", New(ts(10, 0), ts(12, 0)), true},
		{"start equals end", New(ts(10, 0), ts(10, 0)), false},
		{"start after end", New(ts(12, 0), ts(10, 0)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.iv.ValidOrdering(); got != tt.want {
				t.Errorf("ValidOrdering() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDurationAtLeast(t *testing.T) {
	iv := New(ts(10, 0), ts(10, 30))

	if !iv.DurationAtLeast(30 * time.Minute) {
		t.Errorf("exactly 30 minutes should satisfy a 30 minute minimum")
	}
	if iv.DurationAtLeast(30*time.Minute + time.Second) {
		t.Errorf("30 minutes should not satisfy a longer minimum")
	}
}

func TestOverlaps(t *testing.T) {
	existing := New(ts(10, 0), ts(12, 0))

	tests := []struct {
		name string
		iv   Interval
		want bool
	}{
		{"starts inside", New(ts(11, 0), ts(13, 0)), true},
		{"ends inside", New(ts(9, 0), ts(11, 0)), true},
		{"contains", New(ts(9, 0), ts(13, 0)), true},
		{"contained", New(ts(10, 30), ts(11, 30)), true},
		{"identical", New(ts(10, 0), ts(12, 0)), true},
		{"back-to-back after", New(ts(12, 0), ts(13, 0)), false},
		{"back-to-back before", New(ts(9, 0), ts(10, 0)), false},
		{"disjoint after", New(ts(13, 0), ts(14, 0)), false},
		{"disjoint before", New(ts(7, 0), ts(8, 0)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := existing.Overlaps(tt.iv); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric
			if got := tt.iv.Overlaps(existing); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDayWindow(t *testing.T) {
	w := DayWindow(time.Date(2026, 1, 15, 14, 23, 45, 0, time.UTC))

	wantStart := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)

	if !w.Start.Equal(wantStart) {
		t.Errorf("window start = %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(wantEnd) {
		t.Errorf("window end = %v, want %v", w.End, wantEnd)
	}

	// Booking ending exactly at midnight belongs to the previous day only.
	endsAtMidnight := New(ts(23, 0), wantEnd)
	if !w.Overlaps(endsAtMidnight) {
		t.Errorf("booking ending at midnight should intersect its own day")
	}
	nextDay := DayWindow(wantEnd)
	if nextDay.Overlaps(endsAtMidnight) {
		t.Errorf("booking ending at midnight should not intersect the next day")
	}
}
