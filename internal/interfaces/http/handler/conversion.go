package handler

import (
	"github.com/erp/stockledger/internal/domain/shared/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// UnitsRequest converts boxes to loose units
type UnitsRequest struct {
	BoxQty   int64 `json:"box_qty"`
	PackSize int64 `json:"pack_size"`
}

// UnitsResponse is the result of a box → unit conversion
type UnitsResponse struct {
	Units int64 `json:"units"`
}

// BoxesRequest splits loose units into boxes
type BoxesRequest struct {
	TotalUnits int64 `json:"total_units"`
	PackSize   int64 `json:"pack_size"`
}

// CartonsRequest computes the cartons needed for a box count
type CartonsRequest struct {
	BoxQty         int64 `json:"box_qty"`
	BoxesPerCarton int64 `json:"boxes_per_carton"`
}

// CartonsResponse is the result of a box → carton conversion
type CartonsResponse struct {
	Cartons int64  `json:"cartons"`
	Display string `json:"display"`
}

// LineTotalRequest prices a mixed box/unit line
type LineTotalRequest struct {
	BoxQty   int64           `json:"box_qty"`
	BoxRate  decimal.Decimal `json:"box_rate"`
	UnitQty  int64           `json:"unit_qty"`
	UnitRate decimal.Decimal `json:"unit_rate"`
}

// LineTotalResponse is a priced line
type LineTotalResponse struct {
	Total decimal.Decimal `json:"total"`
}

// FormatResponse is a display string for a unit quantity
type FormatResponse struct {
	Display string `json:"display"`
}

// ConversionHandler exposes the unit conversion engine
type ConversionHandler struct {
	BaseHandler
	conversions *service.UnitConversionService
}

// NewConversionHandler creates a new ConversionHandler
func NewConversionHandler(conversions *service.UnitConversionService) *ConversionHandler {
	return &ConversionHandler{conversions: conversions}
}

// Units handles POST /conversions/units
func (h *ConversionHandler) Units(c *gin.Context) {
	var req UnitsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	units, err := h.conversions.UnitsFromBoxes(req.BoxQty, req.PackSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, UnitsResponse{Units: units})
}

// Boxes handles POST /conversions/boxes
func (h *ConversionHandler) Boxes(c *gin.Context) {
	var req BoxesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	breakdown, err := h.conversions.BoxesFromUnits(req.TotalUnits, req.PackSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, breakdown)
}

// Cartons handles POST /conversions/cartons
func (h *ConversionHandler) Cartons(c *gin.Context) {
	var req CartonsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cartons, err := h.conversions.CartonsFromBoxes(req.BoxQty, req.BoxesPerCarton)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	display, err := h.conversions.FormatCartons(req.BoxQty, req.BoxesPerCarton)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CartonsResponse{Cartons: cartons, Display: display})
}

// LineTotal handles POST /conversions/line-total
func (h *ConversionHandler) LineTotal(c *gin.Context) {
	var req LineTotalRequest
	if !h.bindJSON(c, &req) {
		return
	}
	total, err := h.conversions.LineTotal(req.BoxQty, req.BoxRate, req.UnitQty, req.UnitRate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, LineTotalResponse{Total: total})
}

// Format handles POST /conversions/format
func (h *ConversionHandler) Format(c *gin.Context) {
	var req BoxesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	display, err := h.conversions.FormatQuantity(req.TotalUnits, req.PackSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, FormatResponse{Display: display})
}
