package inventory

import (
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
)

// Item mirrors the upstream item master. The ledger reads pack size and
// thresholds from it and is the only writer of CurrentStock.
type Item struct {
	shared.BaseEntity
	SKU            string
	Name           string
	PackSize       int64
	BoxesPerCarton int64
	MinStock       int64
	MaxStock       int64 // 0 means no upper bound
	CurrentStock   int64
	IsActive       bool
}

// NewItem creates a new active item with zero stock
func NewItem(sku, name string, packSize, boxesPerCarton int64, now time.Time) (*Item, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.NewValidationError("INVALID_SKU", "SKU cannot be empty")
	}
	if len(sku) > 64 {
		return nil, shared.NewValidationError("INVALID_SKU", "SKU cannot exceed 64 characters")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Item name cannot be empty")
	}
	if packSize < 1 {
		return nil, shared.NewValidationError("INVALID_PACK_SIZE", "Pack size must be at least 1")
	}
	if boxesPerCarton < 1 {
		return nil, shared.NewValidationError("INVALID_BOXES_PER_CARTON", "Boxes per carton must be at least 1")
	}
	return &Item{
		BaseEntity:     shared.NewBaseEntity(now),
		SKU:            sku,
		Name:           strings.TrimSpace(name),
		PackSize:       packSize,
		BoxesPerCarton: boxesPerCarton,
		IsActive:       true,
	}, nil
}

// SetThresholds updates the minimum and maximum stock thresholds
func (i *Item) SetThresholds(minStock, maxStock int64, now time.Time) error {
	if minStock < 0 || maxStock < 0 {
		return shared.NewValidationError("INVALID_THRESHOLD", "Stock thresholds cannot be negative")
	}
	if maxStock > 0 && minStock > maxStock {
		return shared.NewValidationError("INVALID_THRESHOLD", "Minimum stock cannot exceed maximum stock")
	}
	i.MinStock = minStock
	i.MaxStock = maxStock
	i.Touch(now)
	return nil
}

// Deactivate marks the item inactive; inactive items accept no new movements
func (i *Item) Deactivate(now time.Time) {
	i.IsActive = false
	i.Touch(now)
}

// IsBelowMinimum returns true when current stock is at or below the minimum threshold
func (i *Item) IsBelowMinimum() bool {
	return i.MinStock > 0 && i.CurrentStock <= i.MinStock
}

// IsAboveMaximum returns true when a maximum is configured and current stock exceeds it
func (i *Item) IsAboveMaximum() bool {
	return i.MaxStock > 0 && i.CurrentStock > i.MaxStock
}
