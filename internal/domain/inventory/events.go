package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypeLocationInventory = "LocationInventory"
	AggregateTypeExpirySweep       = "ExpirySweep"
)

// Event type constants
const (
	EventTypeStockMovementRecorded = "StockMovementRecorded"
	EventTypeBatchStatusChanged    = "BatchStatusChanged"
	EventTypeLowStockDetected      = "LowStockDetected"
	EventTypeBatchesExpired        = "BatchesExpired"
)

// StockMovementRecordedEvent is raised after a movement commits
type StockMovementRecordedEvent struct {
	shared.EventMeta
	MovementID   uuid.UUID    `json:"movement_id"`
	ItemID       uuid.UUID    `json:"item_id"`
	LocationID   uuid.UUID    `json:"location_id"`
	BatchID      *uuid.UUID   `json:"batch_id,omitempty"`
	Quantity     int64        `json:"quantity"`
	MovementType MovementType `json:"movement_type"`
	ReferenceID  string       `json:"reference_id,omitempty"`
	BalanceAfter int64        `json:"balance_after"`
}

// NewStockMovementRecordedEvent creates a new StockMovementRecordedEvent
func NewStockMovementRecordedEvent(m *StockMovement) *StockMovementRecordedEvent {
	return &StockMovementRecordedEvent{
		EventMeta:    shared.NewEventMeta(EventTypeStockMovementRecorded, AggregateTypeLocationInventory, m.ItemID, m.CreatedAt),
		MovementID:   m.ID,
		ItemID:       m.ItemID,
		LocationID:   m.LocationID,
		BatchID:      m.BatchID,
		Quantity:     m.Quantity,
		MovementType: m.Type,
		ReferenceID:  m.ReferenceID,
		BalanceAfter: m.BalanceAfter,
	}
}

// BatchStatusChangedEvent is raised when a batch changes status
type BatchStatusChangedEvent struct {
	shared.EventMeta
	BatchID     uuid.UUID   `json:"batch_id"`
	ItemID      uuid.UUID   `json:"item_id"`
	BatchNumber string      `json:"batch_number"`
	From        BatchStatus `json:"from"`
	To          BatchStatus `json:"to"`
}

// NewBatchStatusChangedEvent creates a new BatchStatusChangedEvent
func NewBatchStatusChangedEvent(b *Batch, from, to BatchStatus, at time.Time) *BatchStatusChangedEvent {
	return &BatchStatusChangedEvent{
		EventMeta:   shared.NewEventMeta(EventTypeBatchStatusChanged, AggregateTypeBatch, b.ID, at),
		BatchID:     b.ID,
		ItemID:      b.ItemID,
		BatchNumber: b.BatchNumber,
		From:        from,
		To:          to,
	}
}

// LowStockDetectedEvent is raised when a movement leaves a location at or below its reorder point
type LowStockDetectedEvent struct {
	shared.EventMeta
	ItemID       uuid.UUID `json:"item_id"`
	LocationID   uuid.UUID `json:"location_id"`
	Bin          string    `json:"bin,omitempty"`
	Quantity     int64     `json:"quantity"`
	ReorderPoint int64     `json:"reorder_point"`
}

// NewLowStockDetectedEvent creates a new LowStockDetectedEvent
func NewLowStockDetectedEvent(l *LocationInventory, at time.Time) *LowStockDetectedEvent {
	return &LowStockDetectedEvent{
		EventMeta:    shared.NewEventMeta(EventTypeLowStockDetected, AggregateTypeLocationInventory, l.ID, at),
		ItemID:       l.ItemID,
		LocationID:   l.LocationID,
		Bin:          l.Bin,
		Quantity:     l.Quantity,
		ReorderPoint: l.ReorderPoint,
	}
}

// BatchesExpiredEvent is raised by an expiry sweep that transitioned at least one batch
type BatchesExpiredEvent struct {
	shared.EventMeta
	Count int64     `json:"count"`
	AsOf  time.Time `json:"as_of"`
}

// NewBatchesExpiredEvent creates a new BatchesExpiredEvent
func NewBatchesExpiredEvent(count int64, asOf time.Time) *BatchesExpiredEvent {
	return &BatchesExpiredEvent{
		EventMeta: shared.NewEventMeta(EventTypeBatchesExpired, AggregateTypeExpirySweep, uuid.Nil, asOf),
		Count:     count,
		AsOf:      asOf.UTC(),
	}
}
