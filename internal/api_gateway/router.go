package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hospital-accounting-ledger/internal/api_gateway/handler"
	"github.com/hospital-accounting-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	ledgerHandler *handler.LedgerHandler,
	reportHandler *handler.ReportHandler,
	bookLockHandler *handler.BookLockHandler,
	auditHandler *handler.AuditHandler,
	obligationHandler *handler.ObligationHandler,
	adminHandler *handler.AdminHandler,
	assetHandler *handler.AssetHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints, scoped per hospital
	v1 := r.Group("/api/v1")
	{
		hospitals := v1.Group("/hospitals/:hospital_id")
		{
			// Chart of accounts
			accounts := hospitals.Group("/accounts")
			{
				accounts.POST("", accountHandler.Create)
				accounts.GET("", accountHandler.List)
				accounts.GET("/:code", accountHandler.GetByCode)
				accounts.GET("/:code/balance", reportHandler.GetBalance)
				accounts.GET("/:code/entries", ledgerHandler.ListAccountEntries)
			}

			// Ledger batches
			batches := hospitals.Group("/batches")
			{
				batches.POST("", ledgerHandler.PostBatch)
				batches.GET("/:ref", ledgerHandler.GetByRef)
				batches.POST("/:ref/reverse", ledgerHandler.Reverse)
			}

			hospitals.GET("/trial-balance", reportHandler.GetTrialBalance)

			// Period close
			bookLock := hospitals.Group("/book-lock")
			{
				bookLock.GET("", bookLockHandler.Get)
				bookLock.PUT("", bookLockHandler.Lock)
				bookLock.POST("/unlock", bookLockHandler.Unlock)
			}

			hospitals.GET("/audit", auditHandler.Query)
			hospitals.GET("/obligations", obligationHandler.List)

			// Configuration
			hospitals.PUT("/currencies", adminHandler.UpsertCurrency)
			hospitals.PUT("/rules", adminHandler.UpsertRule)
			hospitals.GET("/rules", adminHandler.ListRules)

			// Fixed-asset register
			assets := hospitals.Group("/assets")
			{
				assets.POST("", assetHandler.Register)
				assets.GET("", assetHandler.List)
				assets.POST("/:asset_id/retire", assetHandler.Retire)
			}
		}

		v1.POST("/obligations/:id/abandon", obligationHandler.Abandon)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
