package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"roomly/internal/bookings/events"
	"roomly/pkg/config"
	"roomly/pkg/kafka"
	kafkaconfig "roomly/pkg/kafka/config"
	kafkamiddleware "roomly/pkg/kafka/middleware"
	"roomly/pkg/logger"
)

const (
	ServiceName   = "notifier"
	consumerGroup = "roomly-notifier"
)

// The notifier tails the booking events topic and emits a notification
// per event. Delivery targets (mail, chat) hang off this loop; for now
// it writes structured log lines that downstream tooling scrapes.
func main() {
	cfg := config.Load(ServiceName)
	log := cfg.Log

	log.Info("Starting notifier service")

	consumer, err := kafka.NewConsumer(
		kafkaconfig.Load(),
		events.TopicBookingEvents,
		consumerGroup,
		events.TopicBookingEvents+"-dlq",
		handleBookingEvent(log),
	)
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafkamiddleware.ConsumerLogging(log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
		log.Error("Consumer stopped with error", "error", err)
		if closeErr := consumer.Close(); closeErr != nil {
			log.Error("Failed to close consumer", "error", closeErr)
		}
		os.Exit(1)
	}

	if err := consumer.Close(); err != nil {
		log.Error("Failed to close consumer", "error", err)
	}
	log.Info("Notifier stopped")
}

func handleBookingEvent(log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event events.BookingEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("malformed booking event: %w", err)
		}

		switch event.EventType {
		case events.EventBookingCreated:
			log.Info("Notify: booking confirmed",
				"booking_id", event.BookingID,
				"room_id", event.RoomID,
				"requester_id", event.RequesterID,
				"start_time", event.StartTime,
				"end_time", event.EndTime,
			)
		case events.EventBookingCancelled:
			log.Info("Notify: booking cancelled",
				"booking_id", event.BookingID,
				"room_id", event.RoomID,
				"requester_id", event.RequesterID,
				"start_time", event.StartTime,
			)
		default:
			log.Warn("Unknown booking event type, skipping",
				"event_type", event.EventType,
				"booking_id", event.BookingID,
			)
		}
		return nil
	}
}
