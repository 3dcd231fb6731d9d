package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hospital-accounting-ledger/internal/audit"
	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/hospital-accounting-ledger/internal/data/mongo"
	"github.com/hospital-accounting-ledger/internal/data/postgres"
	"github.com/hospital-accounting-ledger/internal/depreciation"
	"github.com/hospital-accounting-ledger/internal/dispatcher"
	"github.com/hospital-accounting-ledger/internal/logger"
	"github.com/hospital-accounting-ledger/internal/outbox_poller"
	"github.com/hospital-accounting-ledger/internal/platform/messaging/consumers"
	"github.com/hospital-accounting-ledger/internal/platform/messaging/producers"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/hospital-accounting-ledger/internal/posting"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("posting_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Posting Processor",
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
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	lockRepo := postgres.NewBookLockRepository(log, postgresDB)
	currencyRepo := postgres.NewCurrencyRepository(log, postgresDB)
	ruleRepo := postgres.NewRuleRepository(log, postgresDB)
	invoiceRepo := postgres.NewInvoiceRepository(log, postgresDB)
	obligationRepo := postgres.NewObligationRepository(log, postgresDB)
	assetRepo := postgres.NewAssetRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler should be nil-safe.

	// Initialize Kafka producer for LedgerEntryPosted events
	postedProducer, err := producers.NewPostedEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize posted-event Kafka producer", "error", err)
		os.Exit(1)
	}

	// Audit records ride the posting transaction through the outbox
	recorder := audit.NewRecorder(outboxRepo, log)

	// Posting engine shared by the dispatcher and the depreciation runner
	engine := posting.NewEngine(postgresDB, accountRepo, ledgerRepo, lockRepo, currencyRepo, outboxRepo, recorder, log)

	// Initialize dispatch service with a bounded worker pool
	baseDispatch := dispatcher.NewDispatchService(engine, ruleRepo, invoiceRepo, obligationRepo, &cfg.Dispatcher, log)
	dispatchService, err := dispatcher.NewWorkerPoolDispatchService(
		baseDispatch,
		dispatcher.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize dispatch worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize source event handler
	sourceEventHandler := dispatcher.NewSourceEventHandler(
		log,
		dispatchService,
		dlqProducer,
	)

	// Initialize outbox poller
	deliverer := outbox_poller.NewDeliverer(auditRepo, postedProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, deliverer, log)

	// Initialize obligation retry poller
	obligationPoller := dispatcher.NewObligationPoller(&cfg.Dispatcher, obligationRepo, dispatchService, log)

	// Initialize depreciation runner
	depreciationRunner := depreciation.NewRunner(&cfg.Depreciation, engine, assetRepo, currencyRepo, recorder, log)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.SourceEventTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.SourceEventTopic, cfg.Kafka.ConsumerGroup, sourceEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Start obligation poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		obligationPoller.Start(appCtx)
	}()

	// Start depreciation runner in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		depreciationRunner.Start(appCtx)
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

	// Cancel the application context
	cancelAppCtx()

	// Shut down the dispatch worker pool
	log.Info("Shutting down worker pool", "running_workers", dispatchService.Running())
	dispatchService.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if err = postedProducer.Close(); err != nil {
		log.Error("Error closing posted-event Kafka producer", "error", err)
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Posting Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Posting Processor shutdown completed with errors")
	} else {
		log.Info("Posting Processor shutdown completed successfully")
	}
}
