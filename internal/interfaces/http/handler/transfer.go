package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// TransferHandler handles stock transfers between locations
type TransferHandler struct {
	BaseHandler
	transferService *inventoryapp.TransferService
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(transferService *inventoryapp.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

// Transfer handles POST /transfers
func (h *TransferHandler) Transfer(c *gin.Context) {
	var req inventoryapp.TransferRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Options.ActorID = middleware.GetActorID(c)

	result, err := h.transferService.TransferStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
