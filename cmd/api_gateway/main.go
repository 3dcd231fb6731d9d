package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hospital-accounting-ledger/internal/api_gateway"
	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/audit"
	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/hospital-accounting-ledger/internal/data/mongo"
	"github.com/hospital-accounting-ledger/internal/data/postgres"
	"github.com/hospital-accounting-ledger/internal/logger"
	"github.com/hospital-accounting-ledger/internal/platform/persistence"
	"github.com/hospital-accounting-ledger/internal/posting"
	"github.com/hospital-accounting-ledger/internal/reporting"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

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
	obligationRepo := postgres.NewObligationRepository(log, postgresDB)
	assetRepo := postgres.NewAssetRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())

	// Audit records ride the posting transaction through the outbox
	recorder := audit.NewRecorder(outboxRepo, log)

	// Posting engine used by the manual-batch endpoints
	engine := posting.NewEngine(postgresDB, accountRepo, ledgerRepo, lockRepo, currencyRepo, outboxRepo, recorder, log)

	// Initialize services
	svcs := api_gateway.Services{
		Account:    service.NewAccountService(postgresDB, accountRepo, recorder),
		Ledger:     service.NewLedgerService(engine, ledgerRepo),
		BookLock:   service.NewBookLockService(postgresDB, lockRepo, recorder),
		Audit:      service.NewAuditService(auditRepo),
		Obligation: service.NewObligationService(postgresDB, obligationRepo, recorder),
		Admin:      service.NewAdminService(postgresDB, currencyRepo, ruleRepo, assetRepo, recorder),
		Reporting:  reporting.NewService(postgresDB, accountRepo, ledgerRepo, log),
	}

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, svcs)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
