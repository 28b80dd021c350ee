package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemResponse represents an item in API responses
type ItemResponse struct {
	ID             uuid.UUID `json:"id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	PackSize       int64     `json:"pack_size"`
	BoxesPerCarton int64     `json:"boxes_per_carton"`
	MinStock       int64     `json:"min_stock"`
	MaxStock       int64     `json:"max_stock"`
	CurrentStock   int64     `json:"current_stock"`
	IsActive       bool      `json:"is_active"`
	IsBelowMinimum bool      `json:"is_below_minimum"`
	IsAboveMaximum bool      `json:"is_above_maximum"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID                uuid.UUID       `json:"id"`
	ItemID            uuid.UUID       `json:"item_id"`
	BatchNumber       string          `json:"batch_number"`
	Quantity          int64           `json:"quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	TotalValue        decimal.Decimal `json:"total_value"`
	ManufacturingDate *time.Time      `json:"manufacturing_date,omitempty"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	DaysUntilExpiry   *int            `json:"days_until_expiry,omitempty"`
	LocationID        *uuid.UUID      `json:"location_id,omitempty"`
	Bin               string          `json:"bin,omitempty"`
	SupplierID        *uuid.UUID      `json:"supplier_id,omitempty"`
	Status            string          `json:"status"`
	Notes             string          `json:"notes,omitempty"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// LocationStockResponse represents one item's stock at one location
type LocationStockResponse struct {
	ID           uuid.UUID `json:"id"`
	ItemID       uuid.UUID `json:"item_id"`
	LocationID   uuid.UUID `json:"location_id"`
	Bin          string    `json:"bin,omitempty"`
	Quantity     int64     `json:"quantity"`
	Allocated    int64     `json:"allocated"`
	Available    int64     `json:"available"`
	ReorderPoint int64     `json:"reorder_point"`
	IsLowStock   bool      `json:"is_low_stock"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MovementResponse represents a journal entry in API responses
type MovementResponse struct {
	ID           uuid.UUID  `json:"id"`
	ItemID       uuid.UUID  `json:"item_id"`
	LocationID   uuid.UUID  `json:"location_id"`
	Bin          string     `json:"bin,omitempty"`
	BatchID      *uuid.UUID `json:"batch_id,omitempty"`
	Quantity     int64      `json:"quantity"`
	Type         string     `json:"type"`
	ReferenceID  string     `json:"reference_id,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	ActorID      *uuid.UUID `json:"actor_id,omitempty"`
	BalanceAfter int64      `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}

// LedgerResult is the snapshot returned by every ledger movement
type LedgerResult struct {
	Movements []MovementResponse    `json:"movements"`
	Location  LocationStockResponse `json:"location"`
	Item      ItemResponse          `json:"item"`
	Replayed  bool                  `json:"replayed"`
}

// TransferResult holds both legs of a transfer
type TransferResult struct {
	ReferenceID string        `json:"reference_id"`
	Out         *LedgerResult `json:"out"`
	In          *LedgerResult `json:"in"`
}

// MovementRequest is one signed quantity change routed through the ledger.
// With TargetQuantity set the type must be adjust and Delta is left zero; the
// ledger derives it from the locked location row.
type MovementRequest struct {
	ItemID         uuid.UUID
	LocationID     uuid.UUID
	Bin            string
	Delta          int64
	TargetQuantity *int64
	Type           inventory.MovementType
	Options        inventory.MovementOptions
}

// CreateItemRequest registers an item in the local item master
type CreateItemRequest struct {
	SKU            string `json:"sku" binding:"required,max=64"`
	Name           string `json:"name" binding:"required,max=200"`
	PackSize       int64  `json:"pack_size" binding:"required,min=1"`
	BoxesPerCarton int64  `json:"boxes_per_carton" binding:"omitempty,min=1"`
	MinStock       int64  `json:"min_stock" binding:"min=0"`
	MaxStock       int64  `json:"max_stock" binding:"min=0"`
}

// UpdateThresholdsRequest changes an item's min/max stock thresholds
type UpdateThresholdsRequest struct {
	MinStock int64 `json:"min_stock" binding:"min=0"`
	MaxStock int64 `json:"max_stock" binding:"min=0"`
}

// ItemListFilter represents filter options for item lists
type ItemListFilter struct {
	Search   string `form:"search"`
	Active   *bool  `form:"active"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// CreateBatchRequest registers a new lot. When LocationID is set the lot's
// quantity is received into that location in the same transaction.
type CreateBatchRequest struct {
	ItemID            uuid.UUID       `json:"item_id" binding:"required"`
	BatchNumber       string          `json:"batch_number" binding:"required,max=64"`
	Quantity          int64           `json:"quantity" binding:"required,gt=0"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	ManufacturingDate *time.Time      `json:"manufacturing_date"`
	ExpiryDate        *time.Time      `json:"expiry_date"`
	LocationID        *uuid.UUID      `json:"location_id"`
	Bin               string          `json:"bin" binding:"max=50"`
	SupplierID        *uuid.UUID      `json:"supplier_id"`
	Notes             string          `json:"notes" binding:"max=500"`
	ReferenceID       string          `json:"reference_id" binding:"max=100"`
	ActorID           *uuid.UUID      `json:"-"`
}

// UpdateBatchRequest edits non-quantity batch fields. Version must match the stored version.
type UpdateBatchRequest struct {
	BatchNumber       *string          `json:"batch_number" binding:"omitempty,max=64"`
	UnitCost          *decimal.Decimal `json:"unit_cost"`
	ManufacturingDate *time.Time       `json:"manufacturing_date"`
	ExpiryDate        *time.Time       `json:"expiry_date"`
	ClearExpiry       bool             `json:"clear_expiry"`
	SupplierID        *uuid.UUID       `json:"supplier_id"`
	Notes             *string          `json:"notes" binding:"omitempty,max=500"`
	Version           int              `json:"version" binding:"min=0"`
}

// UpdateBatchQuantityRequest applies a signed delta to a named batch
type UpdateBatchQuantityRequest struct {
	Delta   int64                     `json:"delta" binding:"required"`
	Type    inventory.MovementType    `json:"type"`
	Bin     string                    `json:"bin" binding:"max=50"`
	Options inventory.MovementOptions `json:"options"`
}

// BatchListFilter represents filter options for batch lists
type BatchListFilter struct {
	ItemID        *uuid.UUID `form:"-"`
	LocationID    *uuid.UUID `form:"-"`
	SupplierID    *uuid.UUID `form:"-"`
	Status        []string   `form:"status"`
	ExpiresAfter  *time.Time `form:"expires_after" time_format:"2006-01-02T15:04:05Z07:00"`
	ExpiresBefore *time.Time `form:"expires_before" time_format:"2006-01-02T15:04:05Z07:00"`
	Page          int        `form:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy       string     `form:"order_by"`
	OrderDir      string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// StockChangeRequest adds or removes stock at a location
type StockChangeRequest struct {
	ItemID     uuid.UUID                 `json:"item_id" binding:"required"`
	LocationID uuid.UUID                 `json:"location_id" binding:"required"`
	Bin        string                    `json:"bin" binding:"max=50"`
	Quantity   int64                     `json:"quantity" binding:"required,gt=0"`
	Options    inventory.MovementOptions `json:"options"`
}

// AdjustStockRequest sets a location's quantity to an absolute value
type AdjustStockRequest struct {
	ItemID      uuid.UUID                 `json:"item_id" binding:"required"`
	LocationID  uuid.UUID                 `json:"location_id" binding:"required"`
	Bin         string                    `json:"bin" binding:"max=50"`
	NewQuantity int64                     `json:"new_quantity" binding:"min=0"`
	Options     inventory.MovementOptions `json:"options"`
}

// AllocationRequest reserves or releases stock at a location
type AllocationRequest struct {
	ItemID     uuid.UUID `json:"item_id" binding:"required"`
	LocationID uuid.UUID `json:"location_id" binding:"required"`
	Bin        string    `json:"bin" binding:"max=50"`
	Quantity   int64     `json:"quantity" binding:"required,gt=0"`
}

// ReorderPointRequest sets a location's reorder point
type ReorderPointRequest struct {
	ItemID       uuid.UUID `json:"item_id" binding:"required"`
	LocationID   uuid.UUID `json:"location_id" binding:"required"`
	Bin          string    `json:"bin" binding:"max=50"`
	ReorderPoint int64     `json:"reorder_point" binding:"min=0"`
}

// TransferRequest moves stock between two locations
type TransferRequest struct {
	ItemID         uuid.UUID                 `json:"item_id" binding:"required"`
	FromLocationID uuid.UUID                 `json:"from_location_id" binding:"required"`
	FromBin        string                    `json:"from_bin" binding:"max=50"`
	ToLocationID   uuid.UUID                 `json:"to_location_id" binding:"required"`
	ToBin          string                    `json:"to_bin" binding:"max=50"`
	Quantity       int64                     `json:"quantity" binding:"required,gt=0"`
	Options        inventory.MovementOptions `json:"options"`
}

// MovementHistoryFilter represents filter options for movement history
type MovementHistoryFilter struct {
	ItemID      *uuid.UUID `form:"-"`
	LocationID  *uuid.UUID `form:"-"`
	BatchID     *uuid.UUID `form:"-"`
	Types       []string   `form:"type"`
	ReferenceID string     `form:"reference_id" binding:"max=100"`
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit       int        `form:"limit" binding:"omitempty,min=1"`
}

// ToItemResponse converts a domain item to a response
func ToItemResponse(item *inventory.Item) ItemResponse {
	return ItemResponse{
		ID:             item.ID,
		SKU:            item.SKU,
		Name:           item.Name,
		PackSize:       item.PackSize,
		BoxesPerCarton: item.BoxesPerCarton,
		MinStock:       item.MinStock,
		MaxStock:       item.MaxStock,
		CurrentStock:   item.CurrentStock,
		IsActive:       item.IsActive,
		IsBelowMinimum: item.IsBelowMinimum(),
		IsAboveMaximum: item.IsAboveMaximum(),
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

// ToItemResponses converts a slice of items
func ToItemResponses(items []inventory.Item) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i := range items {
		out[i] = ToItemResponse(&items[i])
	}
	return out
}

// ToBatchResponse converts a domain batch to a response; now drives DaysUntilExpiry
func ToBatchResponse(b *inventory.Batch, now time.Time) BatchResponse {
	resp := BatchResponse{
		ID:                b.ID,
		ItemID:            b.ItemID,
		BatchNumber:       b.BatchNumber,
		Quantity:          b.Quantity,
		RemainingQuantity: b.RemainingQuantity,
		UnitCost:          b.UnitCost,
		TotalValue:        b.TotalValue(),
		ManufacturingDate: b.ManufacturingDate,
		ExpiryDate:        b.ExpiryDate,
		LocationID:        b.LocationID,
		Bin:               b.Bin,
		SupplierID:        b.SupplierID,
		Status:            b.Status.String(),
		Notes:             b.Notes,
		Version:           b.Version,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
	if days, ok := b.DaysUntilExpiry(now); ok {
		resp.DaysUntilExpiry = &days
	}
	return resp
}

// ToBatchResponses converts a slice of batches
func ToBatchResponses(batches []inventory.Batch, now time.Time) []BatchResponse {
	out := make([]BatchResponse, len(batches))
	for i := range batches {
		out[i] = ToBatchResponse(&batches[i], now)
	}
	return out
}

// ToLocationStockResponse converts a location aggregate to a response
func ToLocationStockResponse(l *inventory.LocationInventory) LocationStockResponse {
	return LocationStockResponse{
		ID:           l.ID,
		ItemID:       l.ItemID,
		LocationID:   l.LocationID,
		Bin:          l.Bin,
		Quantity:     l.Quantity,
		Allocated:    l.Allocated,
		Available:    l.Available(),
		ReorderPoint: l.ReorderPoint,
		IsLowStock:   l.IsLowStock(nil),
		UpdatedAt:    l.UpdatedAt,
	}
}

// ToLocationStockResponses converts a slice of location aggregates
func ToLocationStockResponses(rows []inventory.LocationInventory) []LocationStockResponse {
	out := make([]LocationStockResponse, len(rows))
	for i := range rows {
		out[i] = ToLocationStockResponse(&rows[i])
	}
	return out
}

// ToMovementResponse converts a journal entry to a response
func ToMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:           m.ID,
		ItemID:       m.ItemID,
		LocationID:   m.LocationID,
		Bin:          m.Bin,
		BatchID:      m.BatchID,
		Quantity:     m.Quantity,
		Type:         m.Type.String(),
		ReferenceID:  m.ReferenceID,
		Notes:        m.Notes,
		ActorID:      m.ActorID,
		BalanceAfter: m.BalanceAfter,
		CreatedAt:    m.CreatedAt,
	}
}

// ToMovementResponses converts a slice of journal entries
func ToMovementResponses(movements []inventory.StockMovement) []MovementResponse {
	out := make([]MovementResponse, len(movements))
	for i := range movements {
		out[i] = ToMovementResponse(&movements[i])
	}
	return out
}
