package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"roomly/pkg/kafka"
	"roomly/pkg/logger"
	"roomly/pkg/model"
)

const (
	TopicBookingEvents = "booking-events"

	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"

	sourceBookingsService = "bookings-service"
)

// BookingEvent is the payload published to the booking events topic.
// Messages are keyed by room ID so events for a room preserve order.
type BookingEvent struct {
	EventType   string    `json:"event_type"`
	BookingID   string    `json:"booking_id"`
	RoomID      string    `json:"room_id"`
	RequesterID string    `json:"requester_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Purpose     string    `json:"purpose,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher interface {
	BookingCreated(ctx context.Context, booking *model.Booking)
	BookingCancelled(ctx context.Context, booking *model.Booking)
	Close() error
}

type kafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		log:      log,
	}
}

func (p *kafkaPublisher) BookingCreated(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, EventBookingCreated, booking)
}

func (p *kafkaPublisher) BookingCancelled(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, EventBookingCancelled, booking)
}

// publish is best-effort: a booking that committed to the ledger is
// valid whether or not the event reaches the broker, so failures are
// logged and not propagated to the caller.
func (p *kafkaPublisher) publish(ctx context.Context, eventType string, booking *model.Booking) {
	event := BookingEvent{
		EventType:   eventType,
		BookingID:   booking.ID,
		RoomID:      booking.RoomID,
		RequesterID: booking.RequesterID,
		StartTime:   booking.StartTime,
		EndTime:     booking.EndTime,
		Purpose:     booking.Purpose,
		OccurredAt:  time.Now().UTC(),
	}

	msg := kafka.NewMessage().
		WithKey(booking.RoomID).
		WithValue(event).
		WithEventID(uuid.NewString()).
		WithEventType(eventType).
		WithSource(sourceBookingsService).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"room_id", booking.RoomID,
			"error", err,
		)
	}
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops events. Used when the broker is not configured,
// for example in the migration tool or in tests.
type NoopPublisher struct{}

func (NoopPublisher) BookingCreated(context.Context, *model.Booking)   {}
func (NoopPublisher) BookingCancelled(context.Context, *model.Booking) {}
func (NoopPublisher) Close() error                                     { return nil }
