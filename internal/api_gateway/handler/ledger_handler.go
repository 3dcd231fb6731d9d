package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/domain/account"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
)

// LedgerHandler handles HTTP requests for journal batch operations
type LedgerHandler struct {
	ledgerService service.LedgerService
	logger        *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// PostBatch posts a balanced journal batch. Re-posting a committed
// transaction_ref returns the already-committed batch.
func (h *LedgerHandler) PostBatch(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}
	actor, err := actorFrom(c)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	var req PostBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	transactionDate, err := parseDate(req.TransactionDate)
	if err != nil {
		RespondBadRequest(c, "Invalid transaction_date: "+err.Error())
		return
	}

	lines := make([]ledger.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, ledger.Line{
			DebitAccountCode:  l.DebitAccountCode,
			CreditAccountCode: l.CreditAccountCode,
			AmountCents:       l.AmountCents,
			CurrencyCode:      l.CurrencyCode,
			Description:       l.Description,
		})
	}

	batch, err := h.ledgerService.PostBatch(c.Request.Context(), &ledger.BatchRequest{
		TransactionRef:  req.TransactionRef,
		HospitalID:      hospitalID,
		TransactionDate: transactionDate,
		Description:     req.Description,
		Actor:           actor,
		Lines:           lines,
	})
	if err != nil {
		h.respondPostingError(c, req.TransactionRef, err)
		return
	}

	RespondCreated(c, mapBatchToResponse(batch))
}

// GetByRef retrieves a posted batch with its entries
func (h *LedgerHandler) GetByRef(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}
	ref := c.Param("ref")

	batch, err := h.ledgerService.GetBatch(c.Request.Context(), hospitalID, ref)
	if err != nil {
		if errors.Is(err, ledger.ErrBatchNotFound{}) {
			RespondNotFound(c, "Batch not found")
			return
		}
		h.logger.Error("Failed to get batch", "transaction_ref", ref, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapBatchToResponse(batch))
}

// Reverse posts the compensating batch for a committed transaction_ref
func (h *LedgerHandler) Reverse(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}
	actor, err := actorFrom(c)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}
	ref := c.Param("ref")

	batch, err := h.ledgerService.ReverseBatch(c.Request.Context(), hospitalID, ref, actor)
	if err != nil {
		if errors.Is(err, ledger.ErrBatchNotFound{}) {
			RespondNotFound(c, "Batch not found")
			return
		}
		h.respondPostingError(c, ref, err)
		return
	}

	RespondCreated(c, mapBatchToResponse(batch))
}

// ListAccountEntries returns the paginated posting history of one account
func (h *LedgerHandler) ListAccountEntries(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}
	code := c.Param("code")

	var params struct {
		Page    int `form:"page,default=1" binding:"min=1"`
		PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	entries, err := h.ledgerService.ListAccountEntries(c.Request.Context(), hospitalID, code,
		params.PerPage, (params.Page-1)*params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list entries", "account_code", code, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		responses = append(responses, mapEntryToResponse(e))
	}
	RespondOK(c, responses)
}

// respondPostingError maps posting engine failures onto HTTP statuses
func (h *LedgerHandler) respondPostingError(c *gin.Context, transactionRef string, err error) {
	switch {
	case errors.Is(err, ledger.ValidationError{}):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondUnprocessable(c, "INVALID_ACCOUNT", err.Error())
	case errors.Is(err, currency.ErrCurrencyNotFound{}):
		RespondUnprocessable(c, "UNKNOWN_CURRENCY", err.Error())
	case errors.Is(err, ledger.ErrPeriodLocked{}):
		RespondUnprocessable(c, "PERIOD_LOCKED", err.Error())
	case errors.Is(err, ledger.ErrUnbalancedBatch{}):
		RespondUnprocessable(c, "UNBALANCED_BATCH", err.Error())
	case errors.Is(err, ledger.ErrConcurrencyConflict{}):
		RespondConflict(c, "Posting conflicted with a concurrent transaction, retry")
	default:
		h.logger.Error("Failed to post batch", "transaction_ref", transactionRef, "error", err)
		RespondInternalError(c)
	}
}

func mapEntryToResponse(e *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:                    e.ID.String(),
		TransactionDate:       e.TransactionDate.Format(time.RFC3339),
		Description:           e.Description,
		DebitAccountCode:      e.DebitAccountCode,
		CreditAccountCode:     e.CreditAccountCode,
		AmountCents:           e.AmountCents,
		CurrencyCode:          e.CurrencyCode,
		ExchangeRateAtPosting: e.ExchangeRateAtPosting.String(),
		BaseAmountCents:       e.BaseAmountCents,
	}
}

func mapBatchToResponse(b *ledger.Batch) BatchResponse {
	entries := make([]EntryResponse, 0, len(b.Entries))
	for _, e := range b.Entries {
		entries = append(entries, mapEntryToResponse(e))
	}
	return BatchResponse{
		ID:              b.ID.String(),
		TransactionRef:  b.TransactionRef,
		HospitalID:      b.HospitalID.String(),
		TransactionDate: b.TransactionDate.Format(time.RFC3339),
		Description:     b.Description,
		Actor:           b.Actor,
		TotalCents:      b.TotalCents,
		Reversed:        b.Reversed,
		CreatedAt:       b.CreatedAt.Format(time.RFC3339),
		Entries:         entries,
	}
}
