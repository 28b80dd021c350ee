package inventory

import (
	"strconv"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// LocationKey identifies one item's stock at a warehouse and optional bin
type LocationKey struct {
	ItemID     uuid.UUID
	LocationID uuid.UUID
	Bin        string
}

// NewLocationKey normalizes the bin code
func NewLocationKey(itemID, locationID uuid.UUID, bin string) LocationKey {
	return LocationKey{ItemID: itemID, LocationID: locationID, Bin: strings.TrimSpace(bin)}
}

// Validate checks the key references
func (k LocationKey) Validate() error {
	if k.ItemID == uuid.Nil {
		return shared.NewValidationError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if k.LocationID == uuid.Nil {
		return shared.NewValidationError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	if len(k.Bin) > 50 {
		return shared.NewValidationError("INVALID_BIN", "Bin code cannot exceed 50 characters")
	}
	return nil
}

// LocationInventory holds the stock totals of one item at one location.
// Available is derived from Quantity and Allocated and restored at the end of
// every mutation; it is never stored.
type LocationInventory struct {
	shared.BaseEntity
	ItemID       uuid.UUID
	LocationID   uuid.UUID
	Bin          string
	Quantity     int64
	Allocated    int64
	ReorderPoint int64
	available    int64
}

// NewLocationInventory creates an empty aggregate for key
func NewLocationInventory(key LocationKey, now time.Time) (*LocationInventory, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	inv := &LocationInventory{
		BaseEntity: shared.NewBaseEntity(now),
		ItemID:     key.ItemID,
		LocationID: key.LocationID,
		Bin:        key.Bin,
	}
	inv.RecomputeAvailable()
	return inv, nil
}

// Key returns the composite key
func (l *LocationInventory) Key() LocationKey {
	return LocationKey{ItemID: l.ItemID, LocationID: l.LocationID, Bin: l.Bin}
}

// Available returns quantity − allocated
func (l *LocationInventory) Available() int64 {
	return l.available
}

// RecomputeAvailable restores the derived available total
func (l *LocationInventory) RecomputeAvailable() {
	l.available = l.Quantity - l.Allocated
}

// Add increases quantity by qty
func (l *LocationInventory) Add(qty int64, now time.Time) error {
	if qty <= 0 {
		return invalidQuantity(qty)
	}
	l.Quantity += qty
	l.touch(now)
	return nil
}

// Remove decreases quantity by qty; qty may not exceed available
func (l *LocationInventory) Remove(qty int64, now time.Time) error {
	if qty <= 0 {
		return invalidQuantity(qty)
	}
	if qty > l.available {
		return l.insufficient(qty)
	}
	l.Quantity -= qty
	l.touch(now)
	return nil
}

// Apply adds a signed delta
func (l *LocationInventory) Apply(delta int64, now time.Time) error {
	switch {
	case delta > 0:
		return l.Add(delta, now)
	case delta < 0:
		return l.Remove(-delta, now)
	}
	return shared.NewValidationError("INVALID_QUANTITY", "Quantity change cannot be zero")
}

// DeltaTo returns the signed change needed to reach target. A target below the
// allocated quantity is rejected.
func (l *LocationInventory) DeltaTo(target int64) (int64, error) {
	if target < 0 {
		return 0, shared.NewValidationError("INVALID_QUANTITY", "Target quantity cannot be negative").
			WithDetail("target", strconv.FormatInt(target, 10))
	}
	if target < l.Allocated {
		return 0, shared.NewValidationError("TARGET_BELOW_ALLOCATED", "Target quantity is below the allocated quantity").
			WithDetail("target", strconv.FormatInt(target, 10)).
			WithDetail("allocated", strconv.FormatInt(l.Allocated, 10))
	}
	return target - l.Quantity, nil
}

// Allocate reserves qty of the available stock
func (l *LocationInventory) Allocate(qty int64, now time.Time) error {
	if qty <= 0 {
		return invalidQuantity(qty)
	}
	if qty > l.available {
		return l.insufficient(qty)
	}
	l.Allocated += qty
	l.touch(now)
	return nil
}

// Release returns qty of allocated stock to available
func (l *LocationInventory) Release(qty int64, now time.Time) error {
	if qty <= 0 {
		return invalidQuantity(qty)
	}
	if qty > l.Allocated {
		return shared.NewValidationError("RELEASE_EXCEEDS_ALLOCATED", "Cannot release more than the allocated quantity").
			WithDetail("allocated", strconv.FormatInt(l.Allocated, 10)).
			WithDetail("requested", strconv.FormatInt(qty, 10))
	}
	l.Allocated -= qty
	l.touch(now)
	return nil
}

// SetReorderPoint sets the low-stock reorder point
func (l *LocationInventory) SetReorderPoint(rp int64, now time.Time) error {
	if rp < 0 {
		return shared.NewValidationError("INVALID_REORDER_POINT", "Reorder point cannot be negative")
	}
	l.ReorderPoint = rp
	l.touch(now)
	return nil
}

// IsLowStock reports quantity ≤ threshold when given, else quantity ≤ reorder point.
// Without a threshold, a zero reorder point never flags.
func (l *LocationInventory) IsLowStock(threshold *int64) bool {
	if threshold != nil {
		return l.Quantity <= *threshold
	}
	return l.ReorderPoint > 0 && l.Quantity <= l.ReorderPoint
}

func (l *LocationInventory) touch(now time.Time) {
	l.Touch(now)
	l.RecomputeAvailable()
}

func (l *LocationInventory) insufficient(qty int64) *shared.DomainError {
	return shared.NewInsufficientStockError("LOCATION_INSUFFICIENT_STOCK", "Insufficient available stock at location").
		WithDetail("item_id", l.ItemID.String()).
		WithDetail("location_id", l.LocationID.String()).
		WithDetail("available", strconv.FormatInt(l.available, 10)).
		WithDetail("requested", strconv.FormatInt(qty, 10))
}

func invalidQuantity(qty int64) *shared.DomainError {
	return shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive").
		WithDetail("quantity", strconv.FormatInt(qty, 10))
}
