package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hospital-accounting-ledger/internal/api_gateway/service"
	"github.com/hospital-accounting-ledger/internal/domain/booklock"
)

// BookLockHandler handles HTTP requests for period close operations
type BookLockHandler struct {
	lockService service.BookLockService
	logger      *slog.Logger
}

// NewBookLockHandler creates a new book-lock handler
func NewBookLockHandler(logger *slog.Logger, lockService service.BookLockService) *BookLockHandler {
	return &BookLockHandler{
		lockService: lockService,
		logger:      logger,
	}
}

// Get returns the current close boundary; 404 means fully open books
func (h *BookLockHandler) Get(c *gin.Context) {
	hospitalID, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}

	lock, err := h.lockService.GetLock(c.Request.Context(), hospitalID)
	if err != nil {
		if errors.Is(err, booklock.ErrLockNotFound{}) {
			RespondNotFound(c, "Books are fully open: no lock set")
			return
		}
		h.logger.Error("Failed to get book lock", "hospital_id", hospitalID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapLockToResponse(lock))
}

// Lock advances the close boundary. Attempts to move it backwards are
// rejected; use Unlock for deliberate reopening.
func (h *BookLockHandler) Lock(c *gin.Context) {
	hospitalID, actor, lockDate, ok := h.bindLockRequest(c)
	if !ok {
		return
	}

	lock, err := h.lockService.AdvanceLock(c.Request.Context(), hospitalID, lockDate, actor)
	if err != nil {
		var regression booklock.ErrLockRegression
		if errors.As(err, &regression) {
			RespondConflict(c, regression.Error())
			return
		}
		h.logger.Error("Failed to advance book lock", "hospital_id", hospitalID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapLockToResponse(lock))
}

// Unlock rewinds the close boundary to reopen a period
func (h *BookLockHandler) Unlock(c *gin.Context) {
	hospitalID, actor, lockDate, ok := h.bindLockRequest(c)
	if !ok {
		return
	}

	lock, err := h.lockService.RewindLock(c.Request.Context(), hospitalID, lockDate, actor)
	if err != nil {
		if errors.Is(err, booklock.ErrLockNotFound{}) {
			RespondNotFound(c, "Books are fully open: no lock set")
			return
		}
		h.logger.Error("Failed to rewind book lock", "hospital_id", hospitalID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapLockToResponse(lock))
}

func (h *BookLockHandler) bindLockRequest(c *gin.Context) (hospitalID uuid.UUID, actor string, lockDate time.Time, ok bool) {
	id, err := hospitalIDParam(c)
	if err != nil {
		RespondBadRequest(c, "Invalid hospital ID")
		return
	}
	actor, err = actorFrom(c)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	var req BookLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	lockDate, err = parseDate(req.LockDate)
	if err != nil {
		RespondBadRequest(c, "Invalid lock_date: "+err.Error())
		return
	}

	return id, actor, lockDate, true
}

func mapLockToResponse(lock *booklock.Lock) BookLockResponse {
	return BookLockResponse{
		HospitalID: lock.HospitalID.String(),
		LockDate:   lock.LockDate.Format("2006-01-02"),
		UpdatedBy:  lock.UpdatedBy,
		UpdatedAt:  lock.UpdatedAt.Format(time.RFC3339),
	}
}
