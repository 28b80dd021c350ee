package handler

import (
	"strconv"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// DefaultExpiringDays is the look-ahead window of /batches/expiring
const DefaultExpiringDays = 30

// BatchHandler handles batch registry endpoints
type BatchHandler struct {
	BaseHandler
	batchService *inventoryapp.BatchService
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(batchService *inventoryapp.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

// Create handles POST /batches
func (h *BatchHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = middleware.GetActorID(c)

	batch, err := h.batchService.CreateBatch(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// GetByID handles GET /batches/:id
func (h *BatchHandler) GetByID(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	batch, err := h.batchService.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// GetByNumber handles GET /batches/lookup?item_id=&batch_number=
func (h *BatchHandler) GetByNumber(c *gin.Context) {
	var filter inventoryapp.BatchListFilter
	if !h.queryUUID(c, "item_id", &filter.ItemID) {
		return
	}
	number := c.Query("batch_number")
	if filter.ItemID == nil || number == "" {
		h.BadRequest(c, "item_id and batch_number are required")
		return
	}
	batch, err := h.batchService.GetBatchByNumber(c.Request.Context(), *filter.ItemID, number)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Update handles PUT /batches/:id
func (h *BatchHandler) Update(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.UpdateBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	batch, err := h.batchService.UpdateBatch(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Delete handles DELETE /batches/:id
func (h *BatchHandler) Delete(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.batchService.DeleteBatch(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// List handles GET /batches
func (h *BatchHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	batches, total, err := h.batchService.ListBatches(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, batches, total, filter.Page, filter.PageSize)
}

// ListExpiring handles GET /batches/expiring?days=N
func (h *BatchHandler) ListExpiring(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	days := DefaultExpiringDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.BadRequest(c, "Invalid days value")
			return
		}
		days = n
	}
	batches, total, err := h.batchService.ListExpiring(c.Request.Context(), days, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, batches, total, filter.Page, filter.PageSize)
}

// ListExpired handles GET /batches/expired
func (h *BatchHandler) ListExpired(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	batches, total, err := h.batchService.ListExpired(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, batches, total, filter.Page, filter.PageSize)
}

// Quarantine handles POST /batches/:id/quarantine
func (h *BatchHandler) Quarantine(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	batch, err := h.batchService.QuarantineBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Release handles POST /batches/:id/release
func (h *BatchHandler) Release(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	batch, err := h.batchService.ReleaseBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// UpdateQuantity handles POST /batches/:id/quantity
func (h *BatchHandler) UpdateQuantity(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.UpdateBatchQuantityRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Options.ActorID = middleware.GetActorID(c)

	result, err := h.batchService.UpdateBatchQuantity(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Statistics handles GET /batches/statistics
func (h *BatchHandler) Statistics(c *gin.Context) {
	var filter inventory.StatisticsFilter
	if !h.queryUUID(c, "item_id", &filter.ItemID) || !h.queryUUID(c, "location_id", &filter.LocationID) {
		return
	}
	stats, err := h.batchService.GetStatistics(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

func (h *BatchHandler) listFilter(c *gin.Context) (inventoryapp.BatchListFilter, bool) {
	var filter inventoryapp.BatchListFilter
	if !h.bindQuery(c, &filter) {
		return filter, false
	}
	ok := h.queryUUID(c, "item_id", &filter.ItemID) &&
		h.queryUUID(c, "location_id", &filter.LocationID) &&
		h.queryUUID(c, "supplier_id", &filter.SupplierID)
	return filter, ok
}
