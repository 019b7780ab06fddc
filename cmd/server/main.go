package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/barterverse-backend/internal/chat"
	"github.com/barterverse-backend/internal/chat/ws"
	"github.com/barterverse-backend/internal/config"
	mongodata "github.com/barterverse-backend/internal/data/mongo"
	"github.com/barterverse-backend/internal/data/postgres"
	"github.com/barterverse-backend/internal/ledger"
	"github.com/barterverse-backend/internal/logger"
	"github.com/barterverse-backend/internal/notifier"
	"github.com/barterverse-backend/internal/platform/messaging/consumers"
	"github.com/barterverse-backend/internal/platform/messaging/producers"
	"github.com/barterverse-backend/internal/platform/persistence"
	"github.com/barterverse-backend/internal/server"
	"github.com/barterverse-backend/internal/trade"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("server")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting BarterVerse backend",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	profileRepo := postgres.NewProfileRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	tradeRepo := postgres.NewTradeRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	messageRepo := mongodata.NewMessageRepository(log, mongoDB.Database())
	conversationRepo := mongodata.NewConversationRepository(log, mongoDB.Database())

	// Initialize Kafka producers and consumer for the coin-event bus
	coinEventProducer, err := producers.NewCoinEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize coin event producer", "error", err)
		os.Exit(1)
	}
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer is nil when no DLQ topic is configured; the pusher is nil-safe
	var dlq producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlq = dlqProducer
	}
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize wallet and trade services
	mover := ledger.NewCoinMover(profileRepo, ledgerRepo, outboxRepo, log)
	ledgerService := ledger.NewService(postgresDB.Pool(), profileRepo, ledgerRepo, mover, log)
	tradeService := trade.NewService(postgresDB.Pool(), tradeRepo, profileRepo, outboxRepo, mover, log)

	// Initialize the realtime messaging stack
	registry := chat.NewRegistry(log)
	presence := chat.NewPresenceTracker(registry, log)
	delivery := chat.NewDeliveryService(registry, messageRepo, conversationRepo, profileRepo, log)
	verifier := ws.NewTokenVerifier(&cfg.JWT)
	hub := ws.NewHub(delivery, presence, log)

	// Initialize the coin-event notifier pipeline
	poller := notifier.NewPoller(&cfg.Outbox, outboxRepo, coinEventProducer, log)
	pusher, err := notifier.NewPusher(&cfg.WorkerPool, registry, dlq, log)
	if err != nil {
		log.Error("Failed to initialize coin update pusher", "error", err)
		os.Exit(1)
	}

	// Initialize REST and websocket server
	srv := server.NewServer(log, cfg, verifier, hub, delivery, profileRepo, ledgerService, tradeService)
	log.Info("Server initialized")

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Start Kafka consumer feeding the pusher
	if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.CoinEventTopic, cfg.Kafka.ConsumerGroup, pusher.Handle); err != nil {
		log.Error("Failed to subscribe to coin event topic", "error", err)
		os.Exit(1)
	}

	// Start outbox poller in a goroutine
	go poller.Start(appCtx)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context to stop the poller and consumer
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	if err = srv.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	pusher.Shutdown()

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err = coinEventProducer.Close(); err != nil {
		log.Error("Error closing coin event producer", "error", err)
	}
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ producer", "error", err)
		}
	}

	postgresDB.Close()

	mongoCloseCtx, cancelMongoClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelMongoClose()
	if err = mongoDB.Close(mongoCloseCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Server shutdown with errors", "error", serviceErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
