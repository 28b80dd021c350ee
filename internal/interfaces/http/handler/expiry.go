package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/stockledger/internal/infrastructure/scheduler"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ExpiryRunner is the part of the expiry scheduler the API drives
type ExpiryRunner interface {
	TriggerNow(ctx context.Context) (int64, error)
	Stats() scheduler.SweepStats
	IsRunning() bool
}

// ExpirySweepResponse reports a manual sweep
type ExpirySweepResponse struct {
	Transitioned int64 `json:"transitioned"`
}

// ExpiryStatusResponse reports the scheduler state
type ExpiryStatusResponse struct {
	Running bool                 `json:"running"`
	Stats   scheduler.SweepStats `json:"stats"`
}

// ExpiryHandler exposes the expiry scheduler
type ExpiryHandler struct {
	BaseHandler
	runner ExpiryRunner
}

// NewExpiryHandler creates a new ExpiryHandler
func NewExpiryHandler(runner ExpiryRunner) *ExpiryHandler {
	return &ExpiryHandler{runner: runner}
}

// Trigger handles POST /expiry/sweep
func (h *ExpiryHandler) Trigger(c *gin.Context) {
	count, err := h.runner.TriggerNow(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrSweepInProgress):
		h.Error(c, http.StatusConflict, dto.ErrCodeConcurrencyConflict, err.Error(), nil)
		return
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, err.Error(), nil)
		return
	case err != nil:
		h.HandleError(c, err)
		return
	}
	h.Success(c, ExpirySweepResponse{Transitioned: count})
}

// Status handles GET /expiry/status
func (h *ExpiryHandler) Status(c *gin.Context) {
	h.Success(c, ExpiryStatusResponse{
		Running: h.runner.IsRunning(),
		Stats:   h.runner.Stats(),
	})
}
