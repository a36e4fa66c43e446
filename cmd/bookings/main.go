package main

import (
	"roomly/internal/bookings/events"
	"roomly/internal/bookings/handler"
	"roomly/internal/bookings/repository"
	"roomly/internal/bookings/service"
	"roomly/internal/bookings/validator"
	roomsrepository "roomly/internal/rooms/repository"
	roomsservice "roomly/internal/rooms/service"
	roomsvalidator "roomly/internal/rooms/validator"
	usersrepository "roomly/internal/users/repository"
	"roomly/pkg/app"
	"roomly/pkg/clock"
	"roomly/pkg/config"
	"roomly/pkg/kafka"
	kafkaconfig "roomly/pkg/kafka/config"
	kafkamiddleware "roomly/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Bookings service")
	cfg.SetMongo()

	publisher := initPublisher(cfg)
	defer publisher.Close()

	bookingService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, clock.NewSystem(), cfg.Log))
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	kafkaCfg := kafkaconfig.Load()
	producer, err := kafka.NewProducer(kafkaCfg, events.TopicBookingEvents, events.TopicBookingEvents+"-dlq")
	if err != nil {
		cfg.Log.Warn("Kafka producer unavailable, booking events disabled", "error", err)
		return events.NoopPublisher{}
	}
	producer.Use(kafkamiddleware.ProducerLogging(cfg.Log))
	return events.NewKafkaPublisher(producer, cfg.Log)
}

func initServices(cfg *config.Config, publisher events.Publisher) service.BookingService {
	roomRepo := roomsrepository.NewMongoRoomRepository(cfg)
	roomService := roomsservice.NewRoomService(roomRepo, roomsvalidator.NewRoomValidator(), cfg)

	userRepo := usersrepository.NewMongoUserRepository(cfg)

	bookingRepo := repository.NewMongoBookingRepository(cfg)
	bookingService := service.NewBookingService(
		cfg,
		bookingRepo,
		roomService,
		userRepo,
		validator.NewBookingValidator(cfg.Log),
		publisher,
		clock.NewSystem(),
		cfg.Log,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService
}
