package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hospital-accounting-ledger/internal/api_gateway/handler"
	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/hospital-accounting-ledger/internal/reporting"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger // For structured logging
	httpServer *http.Server // Underlying HTTP server
	httpRouter *gin.Engine  // Gin router instance
}

// Services bundles everything the HTTP layer needs
type Services struct {
	Account    service.AccountService
	Ledger     service.LedgerService
	BookLock   service.BookLockService
	Audit      service.AuditService
	Obligation service.ObligationService
	Admin      service.AdminService
	Reporting  *reporting.Service
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(log *slog.Logger, cfg *config.Config, svcs Services) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	accountHandler := handler.NewAccountHandler(log, svcs.Account)
	ledgerHandler := handler.NewLedgerHandler(log, svcs.Ledger)
	reportHandler := handler.NewReportHandler(log, svcs.Reporting)
	bookLockHandler := handler.NewBookLockHandler(log, svcs.BookLock)
	auditHandler := handler.NewAuditHandler(log, svcs.Audit)
	obligationHandler := handler.NewObligationHandler(log, svcs.Obligation)
	adminHandler := handler.NewAdminHandler(log, svcs.Admin)
	assetHandler := handler.NewAssetHandler(log, svcs.Admin)

	setupRouter(log, httpRouter,
		accountHandler, ledgerHandler, reportHandler,
		bookLockHandler, auditHandler, obligationHandler, adminHandler, assetHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	// Use server's write timeout for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}
