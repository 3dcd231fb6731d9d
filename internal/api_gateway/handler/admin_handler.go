package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/domain/rule"
	"github.com/hospital-accounting-ledger/internal/domain/shared"
)

// AdminHandler handles HTTP requests for per-hospital configuration:
// currency rates and posting rules
type AdminHandler struct {
	adminService service.AdminService
	logger       *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(logger *slog.Logger, adminService service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// UpsertCurrency creates or updates a currency rate
func (h *AdminHandler) UpsertCurrency(c *gin.Context) {
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

	var req UpsertCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	rate, err := decimal.NewFromString(req.ExchangeRate)
	if err != nil {
		RespondBadRequest(c, "Invalid exchange_rate: "+err.Error())
		return
	}

	cur, err := currency.NewCurrency(hospitalID, req.Code, rate, req.IsBase)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	if err := h.adminService.UpsertCurrency(c.Request.Context(), cur, actor); err != nil {
		h.logger.Error("Failed to upsert currency", "code", req.Code, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, cur)
}

// UpsertRule creates or updates the posting rule for one transition
func (h *AdminHandler) UpsertRule(c *gin.Context) {
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

	var req UpsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	lines := make([]rule.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, rule.Line{
			DebitAccountCode:      l.DebitAccountCode,
			CreditAccountCode:     l.CreditAccountCode,
			CashCreditAccountCode: l.CashCreditAccountCode,
			Basis:                 rule.Basis(l.Basis),
			RateBps:               l.RateBps,
			Description:           l.Description,
		})
	}

	r := &rule.Rule{
		ID:         uuid.New(),
		HospitalID: hospitalID,
		SourceType: shared.SourceType(req.SourceType),
		Transition: shared.Transition(req.Transition),
		Lines:      lines,
	}

	if err := h.adminService.UpsertRule(c.Request.Context(), r, actor); err != nil {
		h.logger.Error("Failed to upsert posting rule",
			"source_type", req.SourceType, "transition", req.Transition, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, r)
}

// ListRules returns a hospital's posting rules
func (h *AdminHandler) ListRules(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}

	rules, err := h.adminService.ListRules(c.Request.Context(), hospitalID)
	if err != nil {
		h.logger.Error("Failed to list posting rules", "hospital_id", hospitalID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, rules)
}
