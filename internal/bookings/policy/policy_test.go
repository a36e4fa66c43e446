package policy

import (
	"errors"
	"testing"
	"time"

	"roomly/pkg/interval"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

const minDuration = 30 * time.Minute

func checkReason(t *testing.T, err error, want Reason) {
	t.Helper()

	var policyErr *Error
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected *policy.Error, got %v", err)
	}
	if policyErr.Reason != want {
		t.Errorf("expected reason %s, got %s", want, policyErr.Reason)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		wantReason Reason // empty means accept
	}{
		{
			name:  "valid one hour booking",
			start: now.Add(time.Hour),
			end:   now.Add(2 * time.Hour),
		},
		{
			name:  "starting exactly now is allowed",
			start: now,
			end:   now.Add(time.Hour),
		},
		{
			name:  "exactly thirty minutes is allowed",
			start: now.Add(time.Hour),
			end:   now.Add(time.Hour + 30*time.Minute),
		},
		{
			name:       "zero length interval",
			start:      now.Add(time.Hour),
			end:        now.Add(time.Hour),
			wantReason: ReasonInvalidOrdering,
		},
		{
			name:       "end before start",
			start:      now.Add(2 * time.Hour),
			end:        now.Add(time.Hour),
			wantReason: ReasonInvalidOrdering,
		},
		{
			name:       "starting one second in the past",
			start:      now.Add(-time.Second),
			end:        now.Add(time.Hour),
			wantReason: ReasonPastBooking,
		},
		{
			name:       "one second short of the minimum",
			start:      now.Add(time.Hour),
			end:        now.Add(time.Hour + 29*time.Minute + 59*time.Second),
			wantReason: ReasonTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(interval.New(tt.start, tt.end), now, minDuration)

			if tt.wantReason == "" {
				if err != nil {
					t.Errorf("expected acceptance, got %v", err)
				}
				return
			}
			checkReason(t, err, tt.wantReason)
		})
	}
}

func TestCheckOrderingWinsOverOtherRules(t *testing.T) {
	// An inverted interval in the past fails on ordering, not on
	// past-booking: rules apply in order and the first failure wins.
	iv := interval.New(now.Add(-2*time.Hour), now.Add(-3*time.Hour))
	checkReason(t, Check(iv, now, minDuration), ReasonInvalidOrdering)
}
