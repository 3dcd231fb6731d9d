package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/domain/audit"
)

// AuditHandler handles HTTP requests against the audit archive
type AuditHandler struct {
	auditService service.AuditService
	logger       *slog.Logger
}

// NewAuditHandler creates a new audit query handler
func NewAuditHandler(logger *slog.Logger, auditService service.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// Query returns a filtered, paginated page of audit entries
func (h *AuditHandler) Query(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}

	var params AuditQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter := audit.Filter{
		HospitalID: hospitalID,
		TableName:  params.TableName,
	}
	if params.From != "" {
		from, err := parseDate(params.From)
		if err != nil {
			RespondBadRequest(c, "Invalid from date: "+err.Error())
			return
		}
		filter.From = from
	}
	if params.To != "" {
		to, err := parseDate(params.To)
		if err != nil {
			RespondBadRequest(c, "Invalid to date: "+err.Error())
			return
		}
		filter.To = to
	}

	entries, total, err := h.auditService.QueryAudit(c.Request.Context(), filter, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to query audit archive", "hospital_id", hospitalID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondWithPaginatedData(c, 200, entries, params.Page, params.PerPage, int(total))
}
