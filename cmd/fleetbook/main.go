package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	bookingshandler "fleetbook/internal/bookings/handler"
	bookingsrepository "fleetbook/internal/bookings/repository"
	bookingsservice "fleetbook/internal/bookings/service"
	bookingsvalidator "fleetbook/internal/bookings/validator"
	groupshandler "fleetbook/internal/groups/handler"
	groupsrepository "fleetbook/internal/groups/repository"
	groupsservice "fleetbook/internal/groups/service"
	groupsvalidator "fleetbook/internal/groups/validator"
	usershandler "fleetbook/internal/users/handler"
	usersrepository "fleetbook/internal/users/repository"
	usersservice "fleetbook/internal/users/service"
	usersvalidator "fleetbook/internal/users/validator"
	vehicleshandler "fleetbook/internal/vehicles/handler"
	vehiclesrepository "fleetbook/internal/vehicles/repository"
	vehiclesservice "fleetbook/internal/vehicles/service"
	vehiclesvalidator "fleetbook/internal/vehicles/validator"
	"fleetbook/pkg/app"
	"fleetbook/pkg/clock"
	"fleetbook/pkg/config"
	"fleetbook/pkg/contracts"
	mongotx "fleetbook/pkg/db/mongo"
	"fleetbook/pkg/events"
)

const ServiceName = "fleetbook"

const slotLockCollection = "SlotLocks"

func main() {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.Client.GracefulShutdown()

	cfg.Log.Info("Starting Fleetbook service")

	publisher := initPublisher(cfg)
	handlers := initServices(cfg, publisher)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, handlers...)
	if publisher != nil {
		serverApp.OnShutdown(func() {
			if err := publisher.Close(); err != nil {
				cfg.Log.Warn("Failed to close event publisher", "error", err)
			}
		})
	}
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		cfg.Log.Info("Kafka brokers not configured, event publishing disabled")
		return nil
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic, ServiceName, cfg.Log)
}

func initServices(cfg *config.Config, publisher events.Publisher) []contracts.Handler {
	lockRepo := mongotx.NewSlotLockRepository(cfg.Client.Mongo, cfg.MongoDatabaseName, slotLockCollection)

	userRepo := usersrepository.NewMongoUserRepository(cfg)
	groupRepo := groupsrepository.NewMongoGroupRepository(cfg)
	vehicleRepo := vehiclesrepository.NewMongoVehicleRepository(cfg)
	bookingRepo := bookingsrepository.NewMongoBookingRepository(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create user indexes", "error", err)
	}
	if err := lockRepo.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create slot lock indexes", "error", err)
	}

	adminGate := groupsservice.NewAdminGate(groupRepo)

	userService := usersservice.NewUserService(
		userRepo,
		usersvalidator.NewUserValidator(cfg.Log),
		cfg,
	)

	vehicleService := vehiclesservice.NewVehicleService(
		vehicleRepo,
		bookingRepo,
		adminGate,
		vehiclesvalidator.NewVehicleValidator(cfg.Log),
		publisher,
		cfg,
	)

	groupService := groupsservice.NewGroupService(
		groupRepo,
		lockRepo,
		groupsvalidator.NewGroupValidator(cfg.Log),
		vehicleService,
		publisher,
		cfg,
	)

	bookingService := bookingsservice.NewBookingService(
		bookingRepo,
		lockRepo,
		bookingsvalidator.NewBookingValidator(clock.System(), cfg.Log),
		vehicleService,
		adminGate,
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return []contracts.Handler{
		usershandler.NewUserHandler(userService, cfg.Log),
		groupshandler.NewGroupHandler(groupService, cfg.Log),
		vehicleshandler.NewVehicleHandler(vehicleService, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
	}
}
