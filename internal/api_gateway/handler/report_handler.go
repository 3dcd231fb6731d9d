package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hospital-accounting-ledger/internal/domain/account"
	"github.com/hospital-accounting-ledger/internal/reporting"
)

// ReportHandler handles HTTP requests for balances and trial balances
type ReportHandler struct {
	reportService *reporting.Service
	logger        *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(logger *slog.Logger, reportService *reporting.Service) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// BalanceResponse carries the cached balance, plus the entry-derived
// balance when recomputation was requested
type BalanceResponse struct {
	AccountCode            string `json:"account_code"`
	BalanceCents           int64  `json:"balance_cents"`
	RecomputedBalanceCents *int64 `json:"recomputed_balance_cents,omitempty"`
}

// GetBalance returns an account balance; ?recompute=true re-derives it
// from raw entries alongside the cached value
func (h *ReportHandler) GetBalance(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}
	code := c.Param("code")

	acc, err := h.reportService.GetAccountBalance(c.Request.Context(), hospitalID, code)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get balance", "account_code", code, "error", err)
		RespondInternalError(c)
		return
	}

	response := BalanceResponse{
		AccountCode:  acc.Code,
		BalanceCents: acc.BalanceCents,
	}

	if c.Query("recompute") == "true" {
		recomputed, err := h.reportService.RecomputeBalance(c.Request.Context(), hospitalID, code)
		if err != nil {
			h.logger.Error("Failed to recompute balance", "account_code", code, "error", err)
			RespondInternalError(c)
			return
		}
		response.RecomputedBalanceCents = &recomputed
	}

	RespondOK(c, response)
}

// GetTrialBalance produces the point-in-time trial balance report
func (h *ReportHandler) GetTrialBalance(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}

	asOf := c.Query("as_of")
	var report *reporting.TrialBalance
	if asOf == "" {
		report, err = h.reportService.GenerateTrialBalance(c.Request.Context(), hospitalID, time.Time{})
	} else {
		parsed, parseErr := parseDate(asOf)
		if parseErr != nil {
			RespondBadRequest(c, "Invalid as_of date: "+parseErr.Error())
			return
		}
		report, err = h.reportService.GenerateTrialBalance(c.Request.Context(), hospitalID, parsed)
	}
	if err != nil {
		h.logger.Error("Failed to generate trial balance", "hospital_id", hospitalID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, report)
}
