package model

import (
	"time"

	"roomly/pkg/interval"
)

// Booking statuses. A booking is created active and can only move to
// cancelled; cancelled is terminal.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

type Booking struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid4"`
	RoomID      string    `json:"room_id" bson:"room_id" validate:"required,uuid4"`
	RequesterID string    `json:"requester_id" bson:"requester_id" validate:"required"`
	StartTime   time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Purpose     string    `json:"purpose,omitempty" bson:"purpose,omitempty" validate:"omitempty,max=500"`
	Status      string    `json:"status" bson:"status" validate:"required,oneof=active cancelled"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (b *Booking) Interval() interval.Interval {
	return interval.New(b.StartTime, b.EndTime)
}

// BookingRequest is the caller's proposal before the engine has assigned
// identity or status.
type BookingRequest struct {
	RoomID      string    `json:"room_id" validate:"required,uuid4"`
	RequesterID string    `json:"requester_id" validate:"required"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	Purpose     string    `json:"purpose,omitempty" validate:"omitempty,max=500"`
}

func (r *BookingRequest) Interval() interval.Interval {
	return interval.New(r.StartTime, r.EndTime)
}

// AvailabilitySlot is one booked range in an availability report,
// decorated with the requester display name for user-facing output.
type AvailabilitySlot struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Purpose   string    `json:"purpose,omitempty"`
	BookedBy  string    `json:"booked_by"`
}

type AvailabilityReport struct {
	Date        string             `json:"date"`
	IsAvailable bool               `json:"is_available"`
	Bookings    []AvailabilitySlot `json:"bookings"`
}
