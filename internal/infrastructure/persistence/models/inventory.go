package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemModel is the persistence model for the Item aggregate.
type ItemModel struct {
	BaseModel
	SKU            string `gorm:"column:sku;type:varchar(64);not null;uniqueIndex:idx_items_sku"`
	Name           string `gorm:"type:varchar(200);not null"`
	PackSize       int64  `gorm:"not null;default:1"`
	BoxesPerCarton int64  `gorm:"not null;default:1"`
	MinStock       int64  `gorm:"not null;default:0"`
	MaxStock       int64  `gorm:"not null;default:0"`
	CurrentStock   int64  `gorm:"not null;default:0"`
	IsActive       bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ToDomain converts the persistence model to a domain Item.
func (m *ItemModel) ToDomain() *inventory.Item {
	return &inventory.Item{
		BaseEntity:     m.Entity(),
		SKU:            m.SKU,
		Name:           m.Name,
		PackSize:       m.PackSize,
		BoxesPerCarton: m.BoxesPerCarton,
		MinStock:       m.MinStock,
		MaxStock:       m.MaxStock,
		CurrentStock:   m.CurrentStock,
		IsActive:       m.IsActive,
	}
}

// ItemModelFromDomain creates a persistence model from a domain Item.
func ItemModelFromDomain(i *inventory.Item) *ItemModel {
	m := &ItemModel{
		SKU:            i.SKU,
		Name:           i.Name,
		PackSize:       i.PackSize,
		BoxesPerCarton: i.BoxesPerCarton,
		MinStock:       i.MinStock,
		MaxStock:       i.MaxStock,
		CurrentStock:   i.CurrentStock,
		IsActive:       i.IsActive,
	}
	m.SetEntity(i.BaseEntity)
	return m
}

// BatchModel is the persistence model for the Batch aggregate.
type BatchModel struct {
	AggregateModel
	ItemID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_batches_item_number,priority:1"`
	BatchNumber       string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_batches_item_number,priority:2"`
	Quantity          int64           `gorm:"not null"`
	RemainingQuantity int64           `gorm:"not null"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time `gorm:"index"`
	LocationID        *uuid.UUID `gorm:"type:uuid;index"`
	Bin               string     `gorm:"type:varchar(50);not null;default:''"`
	SupplierID        *uuid.UUID `gorm:"type:uuid;index"`
	Status            string     `gorm:"type:varchar(20);not null;default:'active';index"`
	Notes             string     `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a domain Batch.
func (m *BatchModel) ToDomain() *inventory.Batch {
	return &inventory.Batch{
		BaseAggregateRoot: m.Aggregate(),
		ItemID:            m.ItemID,
		BatchNumber:       m.BatchNumber,
		Quantity:          m.Quantity,
		RemainingQuantity: m.RemainingQuantity,
		UnitCost:          m.UnitCost,
		ManufacturingDate: utcPtr(m.ManufacturingDate),
		ExpiryDate:        utcPtr(m.ExpiryDate),
		LocationID:        m.LocationID,
		Bin:               m.Bin,
		SupplierID:        m.SupplierID,
		Status:            inventory.BatchStatus(m.Status),
		Notes:             m.Notes,
	}
}

// BatchModelFromDomain creates a persistence model from a domain Batch.
func BatchModelFromDomain(b *inventory.Batch) *BatchModel {
	m := &BatchModel{
		ItemID:            b.ItemID,
		BatchNumber:       b.BatchNumber,
		Quantity:          b.Quantity,
		RemainingQuantity: b.RemainingQuantity,
		UnitCost:          b.UnitCost,
		ManufacturingDate: b.ManufacturingDate,
		ExpiryDate:        b.ExpiryDate,
		LocationID:        b.LocationID,
		Bin:               b.Bin,
		SupplierID:        b.SupplierID,
		Status:            string(b.Status),
		Notes:             b.Notes,
	}
	m.SetAggregate(b.BaseAggregateRoot)
	return m
}

// LocationInventoryModel is the persistence model for the LocationInventory aggregate.
// It has no available column; available is derived on load.
type LocationInventoryModel struct {
	BaseModel
	ItemID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_location_inventories_key,priority:1"`
	LocationID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_location_inventories_key,priority:2;index"`
	Bin          string    `gorm:"type:varchar(50);not null;default:'';uniqueIndex:idx_location_inventories_key,priority:3"`
	Quantity     int64     `gorm:"not null;default:0"`
	Allocated    int64     `gorm:"not null;default:0"`
	ReorderPoint int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (LocationInventoryModel) TableName() string {
	return "location_inventories"
}

// ToDomain converts the persistence model to a domain LocationInventory.
func (m *LocationInventoryModel) ToDomain() *inventory.LocationInventory {
	inv := &inventory.LocationInventory{
		BaseEntity:   m.Entity(),
		ItemID:       m.ItemID,
		LocationID:   m.LocationID,
		Bin:          m.Bin,
		Quantity:     m.Quantity,
		Allocated:    m.Allocated,
		ReorderPoint: m.ReorderPoint,
	}
	inv.RecomputeAvailable()
	return inv
}

// LocationInventoryModelFromDomain creates a persistence model from a domain LocationInventory.
func LocationInventoryModelFromDomain(l *inventory.LocationInventory) *LocationInventoryModel {
	m := &LocationInventoryModel{
		ItemID:       l.ItemID,
		LocationID:   l.LocationID,
		Bin:          l.Bin,
		Quantity:     l.Quantity,
		Allocated:    l.Allocated,
		ReorderPoint: l.ReorderPoint,
	}
	m.SetEntity(l.BaseEntity)
	return m
}

// StockMovementModel is the persistence model for the append-only movement journal.
type StockMovementModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	ItemID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_stock_movements_item_created,priority:1"`
	LocationID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Bin          string     `gorm:"type:varchar(50);not null;default:''"`
	BatchID      *uuid.UUID `gorm:"type:uuid;index"`
	Quantity     int64      `gorm:"not null"`
	MovementType string     `gorm:"type:varchar(20);not null"`
	ReferenceID  string     `gorm:"type:varchar(100);not null;default:'';index"`
	Notes        string     `gorm:"type:varchar(500)"`
	ActorID      *uuid.UUID `gorm:"type:uuid"`
	BalanceAfter int64      `gorm:"not null"`
	CreatedAt    time.Time  `gorm:"not null;index:idx_stock_movements_item_created,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		ID:           m.ID,
		ItemID:       m.ItemID,
		LocationID:   m.LocationID,
		Bin:          m.Bin,
		BatchID:      m.BatchID,
		Quantity:     m.Quantity,
		Type:         inventory.MovementType(m.MovementType),
		ReferenceID:  m.ReferenceID,
		Notes:        m.Notes,
		ActorID:      m.ActorID,
		BalanceAfter: m.BalanceAfter,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

// StockMovementModelFromDomain creates a persistence model from a domain StockMovement.
func StockMovementModelFromDomain(s *inventory.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:           s.ID,
		ItemID:       s.ItemID,
		LocationID:   s.LocationID,
		Bin:          s.Bin,
		BatchID:      s.BatchID,
		Quantity:     s.Quantity,
		MovementType: string(s.Type),
		ReferenceID:  s.ReferenceID,
		Notes:        s.Notes,
		ActorID:      s.ActorID,
		BalanceAfter: s.BalanceAfter,
		CreatedAt:    s.CreatedAt,
	}
}
