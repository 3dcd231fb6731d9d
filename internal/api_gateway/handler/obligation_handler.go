package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/domain/obligation"
)

// ObligationHandler handles HTTP requests for pending posting obligations
type ObligationHandler struct {
	obligationService service.ObligationService
	logger            *slog.Logger
}

// NewObligationHandler creates a new obligation handler
func NewObligationHandler(logger *slog.Logger, obligationService service.ObligationService) *ObligationHandler {
	return &ObligationHandler{
		obligationService: obligationService,
		logger:            logger,
	}
}

// List returns a hospital's posting obligations filtered by status
func (h *ObligationHandler) List(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}

	var params ObligationListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	obligations, err := h.obligationService.ListObligations(c.Request.Context(), hospitalID,
		obligation.Status(params.Status), params.PerPage, (params.Page-1)*params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list obligations", "hospital_id", hospitalID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, obligations)
}

// Abandon permanently parks an obligation that will never post
func (h *ObligationHandler) Abandon(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondBadRequest(c, "Invalid obligation ID")
		return
	}
	actor, err := actorFrom(c)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	if err := h.obligationService.AbandonObligation(c.Request.Context(), id, actor); err != nil {
		if errors.Is(err, obligation.ErrObligationNotFound{}) {
			RespondNotFound(c, "Obligation not found or not pending")
			return
		}
		h.logger.Error("Failed to abandon obligation", "obligation_id", id, "error", err)
		RespondInternalError(c)
		return
	}

	RespondNoContent(c)
}
