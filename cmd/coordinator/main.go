package main

import (
	"context"

	bookinghandler "rentkar/internal/bookings/handler"
	bookingrepository "rentkar/internal/bookings/repository"
	bookingservice "rentkar/internal/bookings/service"
	bookingvalidator "rentkar/internal/bookings/validator"
	"rentkar/internal/events"
	feedhandler "rentkar/internal/livefeed/handler"
	partnerhandler "rentkar/internal/partners/handler"
	partnerrepository "rentkar/internal/partners/repository"
	partnerservice "rentkar/internal/partners/service"
	"rentkar/pkg/app"
	"rentkar/pkg/config"
	"rentkar/pkg/contracts"
	"rentkar/pkg/kafka"
	"rentkar/pkg/lock"
	"rentkar/pkg/pubsub"
	"rentkar/pkg/ws"
)

const ServiceName = "coordinator"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting booking coordinator")

	locker := lock.NewRedisLocker(cfg.Client.Redis, cfg.Log, cfg.LockRetryBackoff, cfg.LockMaxAttempts)
	bus := pubsub.NewRedisBus(cfg.Client.Redis, cfg.Client.RedisSub, cfg.Log)
	hub := ws.NewHub(cfg.Log)

	var archiver *kafka.Archiver
	if len(cfg.KafkaBrokers) > 0 {
		var err error
		archiver, err = kafka.NewArchiver(cfg.KafkaBrokers, cfg.KafkaEventTopic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to initialize event archiver", "error", err)
		}
	}

	relay := events.NewRelay(bus, archiver, hub, cfg.Log)
	relay.Start()

	partnerRepo := partnerrepository.NewMongoPartnerRepository(cfg)
	if err := partnerRepo.EnsureIndexes(context.Background()); err != nil {
		cfg.Log.Fatal("Failed to ensure partner indexes", "error", err)
	}
	tracking := partnerrepository.NewRedisTrackingStore(cfg.Client.Redis)
	partnerSvc := partnerservice.NewPartnerService(partnerRepo, tracking, bus, cfg)

	bookingRepo := bookingrepository.NewMongoBookingRepository(cfg)
	bookingSvc := bookingservice.NewBookingService(
		bookingRepo,
		partnerSvc,
		locker,
		bus,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Coordinator services initialized", "database", cfg.MongoDatabaseName)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		[]contracts.Handler{
			bookinghandler.NewBookingHandler(bookingSvc, cfg.Log),
			partnerhandler.NewPartnerHandler(partnerSvc, cfg.Log),
		},
		feedhandler.NewFeedHandler(bus, hub, cfg.FeedHeartbeat, cfg.Log),
	)

	serverApp.OnShutdown(func() {
		relay.Stop()
		if err := bus.Close(); err != nil {
			cfg.Log.Error("Failed to close event bus", "error", err)
		}
		if archiver != nil {
			if err := archiver.Close(); err != nil {
				cfg.Log.Error("Failed to close event archiver", "error", err)
			}
		}
		cfg.GracefulShutdown()
	})

	serverApp.Run()
}
