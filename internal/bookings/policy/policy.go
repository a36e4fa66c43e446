// Package policy holds the pure business rules a proposed booking
// interval must satisfy before the engine even looks at existing
// reservations. No I/O, no clock reads: the current instant is an
// explicit argument, so every rule is deterministic under test.
package policy

import (
	"fmt"
	"time"

	"roomly/pkg/interval"
)

type Reason string

const (
	ReasonInvalidOrdering Reason = "invalid_ordering"
	ReasonPastBooking     Reason = "past_booking"
	ReasonTooShort        Reason = "too_short"
)

type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("booking rejected (%s): %s", e.Reason, e.Message)
}

// Check applies the rules in order; the first failure wins.
func Check(iv interval.Interval, now time.Time, minDuration time.Duration) error {
	if !iv.ValidOrdering() {
		return &Error{
			Reason:  ReasonInvalidOrdering,
			Message: "start time must be before end time",
		}
	}

	if iv.Start.Before(now) {
		return &Error{
			Reason:  ReasonPastBooking,
			Message: "booking cannot start in the past",
		}
	}

	if !iv.DurationAtLeast(minDuration) {
		return &Error{
			Reason:  ReasonTooShort,
			Message: fmt.Sprintf("booking must last at least %s", minDuration),
		}
	}

	return nil
}
