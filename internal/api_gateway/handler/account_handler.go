package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/domain/account"
)

// AccountHandler handles HTTP requests for chart-of-accounts operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Create registers a new ledger account for a hospital
func (h *AccountHandler) Create(c *gin.Context) {
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

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.accountService.CreateAccount(c.Request.Context(), hospitalID, req.Code, req.Name, account.Type(req.Type), actor)
	if err != nil {
		var duplicate account.ErrDuplicateCode
		if errors.As(err, &duplicate) {
			h.logger.Warn("Attempt to create account with duplicate code", "code", duplicate.Code)
			RespondConflict(c, "Account with this code already exists")
			return
		}
		if errors.Is(err, account.ErrEmptyCode) || errors.Is(err, account.ErrEmptyName) || errors.Is(err, account.ErrInvalidType) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to create account", "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// GetByCode retrieves an account by its code, returning 404 if not found
func (h *AccountHandler) GetByCode(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}
	code := c.Param("code")

	acc, err := h.accountService.GetAccount(c.Request.Context(), hospitalID, code)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get account", "code", code, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// List returns a hospital's full chart of accounts
func (h *AccountHandler) List(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}

	accounts, err := h.accountService.ListAccounts(c.Request.Context(), hospitalID)
	if err != nil {
		h.logger.Error("Failed to list accounts", "hospital_id", hospitalID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for _, acc := range accounts {
		responses = append(responses, mapAccountToResponse(acc))
	}
	RespondOK(c, responses)
}

// mapAccountToResponse maps an account entity to an account response DTO
func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:            acc.ID.String(),
		HospitalID:    acc.HospitalID.String(),
		Code:          acc.Code,
		Name:          acc.Name,
		Type:          string(acc.Type),
		NormalBalance: string(acc.NormalBalance()),
		BalanceCents:  acc.BalanceCents,
		CreatedAt:     acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     acc.UpdatedAt.Format(time.RFC3339),
	}
}
