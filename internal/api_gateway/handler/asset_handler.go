package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/domain/asset"
)

// AssetHandler handles HTTP requests for the fixed-asset register
type AssetHandler struct {
	adminService service.AdminService
	logger       *slog.Logger
}

// NewAssetHandler creates a new fixed-asset handler
func NewAssetHandler(logger *slog.Logger, adminService service.AdminService) *AssetHandler {
	return &AssetHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// Register places a new asset on the books
func (h *AssetHandler) Register(c *gin.Context) {
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

	var req RegisterAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acquiredAt, err := parseDate(req.AcquiredAt)
	if err != nil {
		RespondBadRequest(c, "Invalid acquired_at: "+err.Error())
		return
	}

	method := asset.Method(req.DepreciationMethod)
	if method == "" {
		method = asset.MethodStraightLine
	}

	a, err := asset.NewFixedAsset(hospitalID, req.Name, req.CostCenter,
		req.PurchaseCostCents, req.SalvageValueCents, req.UsefulLifeYears, method, acquiredAt)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	if err := h.adminService.RegisterAsset(c.Request.Context(), a, actor); err != nil {
		h.logger.Error("Failed to register fixed asset", "name", req.Name, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, a)
}

// Retire takes an asset out of service; it stays on the books
func (h *AssetHandler) Retire(c *gin.Context) {
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
	assetID, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		RespondBadRequest(c, "Invalid asset ID")
		return
	}

	a, err := h.adminService.RetireAsset(c.Request.Context(), hospitalID, assetID, actor)
	if err != nil {
		if errors.Is(err, asset.ErrAssetNotFound{}) {
			RespondNotFound(c, "Fixed asset not found")
			return
		}
		h.logger.Error("Failed to retire fixed asset", "asset_id", assetID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, a)
}

// List returns a hospital's active assets
func (h *AssetHandler) List(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}

	assets, err := h.adminService.ListAssets(c.Request.Context(), hospitalID)
	if err != nil {
		h.logger.Error("Failed to list fixed assets", "hospital_id", hospitalID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, assets)
}
