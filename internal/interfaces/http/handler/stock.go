package handler

import (
	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StockHandler handles location stock and movement endpoints
type StockHandler struct {
	BaseHandler
	stockService *inventoryapp.StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService *inventoryapp.StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

// Add handles POST /stock/add
func (h *StockHandler) Add(c *gin.Context) {
	var req inventoryapp.StockChangeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Options.ActorID = middleware.GetActorID(c)

	result, err := h.stockService.AddStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Remove handles POST /stock/remove
func (h *StockHandler) Remove(c *gin.Context) {
	var req inventoryapp.StockChangeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Options.ActorID = middleware.GetActorID(c)

	result, err := h.stockService.RemoveStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Adjust handles POST /stock/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	var req inventoryapp.AdjustStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Options.ActorID = middleware.GetActorID(c)

	result, err := h.stockService.AdjustStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Allocate handles POST /stock/allocate
func (h *StockHandler) Allocate(c *gin.Context) {
	var req inventoryapp.AllocationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	stock, err := h.stockService.Allocate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}

// Release handles POST /stock/release
func (h *StockHandler) Release(c *gin.Context) {
	var req inventoryapp.AllocationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	stock, err := h.stockService.Release(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}

// SetReorderPoint handles PUT /stock/reorder-point
func (h *StockHandler) SetReorderPoint(c *gin.Context) {
	var req inventoryapp.ReorderPointRequest
	if !h.bindJSON(c, &req) {
		return
	}
	stock, err := h.stockService.SetReorderPoint(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}

// Get handles GET /stock?item_id=&location_id=&bin=
func (h *StockHandler) Get(c *gin.Context) {
	var itemID, locationID *uuid.UUID
	if !h.queryUUID(c, "item_id", &itemID) || !h.queryUUID(c, "location_id", &locationID) {
		return
	}
	if itemID == nil || locationID == nil {
		h.BadRequest(c, "item_id and location_id are required")
		return
	}
	stock, err := h.stockService.GetStock(c.Request.Context(), *itemID, *locationID, c.Query("bin"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stock)
}

// ByItem handles GET /stock/items/:id
func (h *StockHandler) ByItem(c *gin.Context) {
	itemID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	rows, err := h.stockService.GetStockByItem(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// ByLocation handles GET /stock/locations/:id
func (h *StockHandler) ByLocation(c *gin.Context) {
	locationID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	rows, err := h.stockService.GetStockByLocation(c.Request.Context(), locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// LowStock handles GET /stock/low?threshold=N
func (h *StockHandler) LowStock(c *gin.Context) {
	threshold, ok := h.queryInt64(c, "threshold")
	if !ok {
		return
	}
	rows, err := h.stockService.GetLowStock(c.Request.Context(), threshold)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// Movements handles GET /movements
func (h *StockHandler) Movements(c *gin.Context) {
	var filter inventoryapp.MovementHistoryFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	if !h.queryUUID(c, "item_id", &filter.ItemID) ||
		!h.queryUUID(c, "location_id", &filter.LocationID) ||
		!h.queryUUID(c, "batch_id", &filter.BatchID) {
		return
	}
	movements, err := h.stockService.GetMovementHistory(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movements)
}
