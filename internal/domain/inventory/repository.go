package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// ItemRepository defines the interface for item master persistence.
// It never writes current stock; see ItemStockWriter.
type ItemRepository interface {
	// FindByID finds an item by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// FindBySKU finds an item by SKU
	FindBySKU(ctx context.Context, sku string) (*Item, error)

	// FindAll lists items
	FindAll(ctx context.Context, filter shared.Filter) ([]Item, int64, error)

	// Create inserts a new item; a SKU collision returns a duplicate error
	Create(ctx context.Context, item *Item) error

	// UpdateMaster updates master fields (name, pack size, thresholds, active flag)
	UpdateMaster(ctx context.Context, item *Item) error
}

// ItemStockWriter writes the denormalized item current stock.
// Implementations are only handed out inside a ledger transaction.
type ItemStockWriter interface {
	// AdjustCurrentStock adds delta to the item's current stock, refusing to go
	// below zero. Returns the new current stock.
	AdjustCurrentStock(ctx context.Context, itemID uuid.UUID, delta int64) (int64, error)
}

// BatchFilter narrows batch listings
type BatchFilter struct {
	shared.Filter
	ItemID        *uuid.UUID
	LocationID    *uuid.UUID
	SupplierID    *uuid.UUID
	Statuses      []BatchStatus
	ExpiresAfter  *time.Time
	ExpiresBefore *time.Time
}

// BatchRepository defines the interface for batch persistence
type BatchRepository interface {
	// FindByID finds a batch by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindByNumber finds a batch by item and batch number
	FindByNumber(ctx context.Context, itemID uuid.UUID, batchNumber string) (*Batch, error)

	// ExistsByNumber checks whether the batch number is taken for the item
	ExistsByNumber(ctx context.Context, itemID uuid.UUID, batchNumber string) (bool, error)

	// Create inserts a new batch; an (item, batch number) collision returns a duplicate error
	Create(ctx context.Context, batch *Batch) error

	// UpdateWithVersion persists non-quantity fields and status, guarded by version
	UpdateWithVersion(ctx context.Context, batch *Batch) error

	// Delete removes a batch only if it holds no stock
	Delete(ctx context.Context, id uuid.UUID) error

	// FindAll lists batches matching the filter
	FindAll(ctx context.Context, filter BatchFilter) ([]Batch, int64, error)

	// FindFEFOCandidates returns active batches with stock at (item, location, bin), FEFO ordered
	FindFEFOCandidates(ctx context.Context, key LocationKey, now time.Time) ([]Batch, error)

	// CountNonDepleted counts batches with stock at (item, location, bin)
	CountNonDepleted(ctx context.Context, key LocationKey) (int64, error)

	// Consume decrements remaining quantity only if it covers qty; a lost guard returns a conflict error
	Consume(ctx context.Context, id uuid.UUID, qty int64, now time.Time) error

	// Replenish increments remaining quantity only if it stays within the original quantity
	Replenish(ctx context.Context, id uuid.UUID, qty int64, now time.Time) error

	// MarkExpired moves every active batch with stock whose expiry passed to expired
	MarkExpired(ctx context.Context, now time.Time) (int64, error)

	// Statistics aggregates the registry
	Statistics(ctx context.Context, filter StatisticsFilter, now time.Time) (*BatchStatistics, error)
}

// LocationInventoryRepository defines the interface for per-location stock persistence
type LocationInventoryRepository interface {
	// Find finds the aggregate for key
	Find(ctx context.Context, key LocationKey) (*LocationInventory, error)

	// FindOrCreate returns the aggregate for key, creating an empty one on first use
	FindOrCreate(ctx context.Context, key LocationKey) (*LocationInventory, error)

	// FindForUpdate is FindOrCreate plus a row lock held until the transaction ends
	FindForUpdate(ctx context.Context, key LocationKey) (*LocationInventory, error)

	// ApplyDelta adds delta to quantity; a decrement only applies if available covers it
	ApplyDelta(ctx context.Context, key LocationKey, delta int64) error

	// Allocate moves qty from available to allocated if available covers it
	Allocate(ctx context.Context, key LocationKey, qty int64) error

	// Release moves qty from allocated back to available if allocated covers it
	Release(ctx context.Context, key LocationKey, qty int64) error

	// SetReorderPoint sets the reorder point
	SetReorderPoint(ctx context.Context, key LocationKey, reorderPoint int64) error

	// FindByItem lists an item's stock across locations
	FindByItem(ctx context.Context, itemID uuid.UUID) ([]LocationInventory, error)

	// FindByLocation lists all item stock held at a location
	FindByLocation(ctx context.Context, locationID uuid.UUID) ([]LocationInventory, error)

	// FindLowStock lists rows at or below threshold, or their reorder point when threshold is nil
	FindLowStock(ctx context.Context, threshold *int64) ([]LocationInventory, error)
}

// MovementFilter narrows movement history queries
type MovementFilter struct {
	ItemID      *uuid.UUID
	LocationID  *uuid.UUID
	BatchID     *uuid.UUID
	Types       []MovementType
	ReferenceID string
	From        *time.Time
	To          *time.Time
	Limit       int
}

// MovementRepository is the append-only movement journal
type MovementRepository interface {
	// CreateAll appends movements
	CreateAll(ctx context.Context, movements []*StockMovement) error

	// FindByReference returns every movement recorded under referenceID, oldest first
	FindByReference(ctx context.Context, referenceID string) ([]StockMovement, error)

	// FindAll returns movements matching the filter, newest first, at most filter.Limit rows
	FindAll(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
}

// Directory answers existence questions about collaborator-owned records
type Directory interface {
	LocationExists(ctx context.Context, id uuid.UUID) (bool, error)
	SupplierExists(ctx context.Context, id uuid.UUID) (bool, error)
}
