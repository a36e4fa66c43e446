package main

import (
	"roomly/internal/rooms/handler"
	"roomly/internal/rooms/repository"
	"roomly/internal/rooms/service"
	"roomly/internal/rooms/validator"
	"roomly/pkg/app"
	"roomly/pkg/config"
)

const ServiceName = "rooms"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Rooms service")
	cfg.SetMongo()

	roomService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewRoomHandler(roomService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.RoomService {
	roomRepo := repository.NewMongoRoomRepository(cfg)
	roomService := service.NewRoomService(roomRepo, validator.NewRoomValidator(), cfg)

	cfg.Log.Info("Room service initialized", "database", cfg.MongoDatabaseName)
	return roomService
}
