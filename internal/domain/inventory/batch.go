package inventory

import (
	"strconv"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus represents the lifecycle status of a batch
type BatchStatus string

const (
	BatchStatusActive      BatchStatus = "active"
	BatchStatusExpired     BatchStatus = "expired"
	BatchStatusDepleted    BatchStatus = "depleted"
	BatchStatusQuarantined BatchStatus = "quarantined"
)

// IsValid checks if the status is valid
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusActive, BatchStatusExpired, BatchStatusDepleted, BatchStatusQuarantined:
		return true
	}
	return false
}

// String returns the string representation
func (s BatchStatus) String() string {
	return string(s)
}

// batchTransitions lists the transitions reachable through TransitionTo.
// Leaving depleted is only possible through Replenish.
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusActive:      {BatchStatusExpired, BatchStatusDepleted, BatchStatusQuarantined},
	BatchStatusExpired:     {BatchStatusDepleted, BatchStatusQuarantined},
	BatchStatusQuarantined: {BatchStatusActive, BatchStatusExpired},
	BatchStatusDepleted:    {},
}

// CanTransitionTo reports whether the status machine allows s -> target
func (s BatchStatus) CanTransitionTo(target BatchStatus) bool {
	for _, t := range batchTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

const (
	AggregateTypeBatch = "Batch"

	maxBatchNumberLength = 64
	maxBatchNotesLength  = 500
)

// Batch is a lot of one item received together, sharing dates and unit cost
type Batch struct {
	shared.BaseAggregateRoot
	ItemID            uuid.UUID
	BatchNumber       string
	Quantity          int64
	RemainingQuantity int64
	UnitCost          decimal.Decimal
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time
	LocationID        *uuid.UUID
	Bin               string
	SupplierID        *uuid.UUID
	Status            BatchStatus
	Notes             string
}

// NewBatchParams holds the inputs for NewBatch
type NewBatchParams struct {
	ItemID            uuid.UUID
	BatchNumber       string
	Quantity          int64
	UnitCost          decimal.Decimal
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time
	LocationID        *uuid.UUID
	Bin               string
	SupplierID        *uuid.UUID
	Notes             string
}

// NewBatch validates the params and creates an active batch holding its full quantity
func NewBatch(p NewBatchParams, now time.Time) (*Batch, error) {
	if p.ItemID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ITEM", "Item ID cannot be empty")
	}
	number, err := normalizeBatchNumber(p.BatchNumber)
	if err != nil {
		return nil, err
	}
	if p.Quantity <= 0 {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "Batch quantity must be positive").
			WithDetail("quantity", strconv.FormatInt(p.Quantity, 10))
	}
	if p.UnitCost.IsNegative() {
		return nil, shared.NewValidationError("INVALID_UNIT_COST", "Unit cost cannot be negative")
	}
	if err := validateBatchDates(p.ManufacturingDate, p.ExpiryDate); err != nil {
		return nil, err
	}
	if len(p.Notes) > maxBatchNotesLength {
		return nil, shared.NewValidationError("INVALID_NOTES", "Notes cannot exceed 500 characters")
	}

	return &Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		ItemID:            p.ItemID,
		BatchNumber:       number,
		Quantity:          p.Quantity,
		RemainingQuantity: p.Quantity,
		UnitCost:          p.UnitCost,
		ManufacturingDate: utcPtr(p.ManufacturingDate),
		ExpiryDate:        utcPtr(p.ExpiryDate),
		LocationID:        p.LocationID,
		Bin:               p.Bin,
		SupplierID:        p.SupplierID,
		Status:            BatchStatusActive,
		Notes:             p.Notes,
	}, nil
}

// Consume draws qty from the remaining quantity. A batch drained to zero becomes depleted.
func (b *Batch) Consume(qty int64, now time.Time) error {
	if qty <= 0 {
		return shared.NewValidationError("INVALID_QUANTITY", "Consume quantity must be positive")
	}
	if b.Status == BatchStatusQuarantined {
		return b.transitionError("BATCH_QUARANTINED", "Cannot draw stock from a quarantined batch")
	}
	if qty > b.RemainingQuantity {
		return shared.NewInsufficientStockError("BATCH_INSUFFICIENT_STOCK", "Batch has insufficient remaining quantity").
			WithDetail("batch_id", b.ID.String()).
			WithDetail("remaining", strconv.FormatInt(b.RemainingQuantity, 10)).
			WithDetail("requested", strconv.FormatInt(qty, 10))
	}
	b.RemainingQuantity -= qty
	b.Touch(now)
	if b.RemainingQuantity == 0 {
		b.setStatus(BatchStatusDepleted, now)
	}
	return nil
}

// Replenish returns qty to the batch. The remaining quantity may never exceed the
// original quantity. A depleted batch comes back as active or expired depending on
// its expiry date.
func (b *Batch) Replenish(qty int64, now time.Time) error {
	if qty <= 0 {
		return shared.NewValidationError("INVALID_QUANTITY", "Replenish quantity must be positive")
	}
	if b.RemainingQuantity+qty > b.Quantity {
		return shared.NewValidationError("BATCH_OVERFILL", "Replenishment would exceed the batch's original quantity").
			WithDetail("batch_id", b.ID.String()).
			WithDetail("quantity", strconv.FormatInt(b.Quantity, 10)).
			WithDetail("remaining", strconv.FormatInt(b.RemainingQuantity, 10)).
			WithDetail("requested", strconv.FormatInt(qty, 10))
	}
	b.RemainingQuantity += qty
	b.Touch(now)
	if b.Status == BatchStatusDepleted {
		b.setStatus(b.liveStatusAt(now), now)
	}
	return nil
}

// TransitionTo moves the batch to target if the status machine allows it
func (b *Batch) TransitionTo(target BatchStatus, now time.Time) error {
	if !target.IsValid() {
		return shared.NewValidationError("INVALID_STATUS", "Unknown batch status").
			WithDetail("status", string(target))
	}
	if !b.Status.CanTransitionTo(target) {
		return b.transitionError("INVALID_BATCH_TRANSITION", "Batch status transition is not allowed").
			WithDetail("to", string(target))
	}
	switch target {
	case BatchStatusDepleted:
		if b.RemainingQuantity > 0 {
			return b.transitionError("INVALID_BATCH_TRANSITION", "Batch with remaining stock cannot be depleted")
		}
	case BatchStatusExpired:
		if !b.IsExpiredAt(now) {
			return b.transitionError("INVALID_BATCH_TRANSITION", "Batch has not reached its expiry date")
		}
	case BatchStatusActive:
		if b.IsExpiredAt(now) {
			return b.transitionError("INVALID_BATCH_TRANSITION", "Batch is past its expiry date")
		}
	}
	b.setStatus(target, now)
	return nil
}

// Quarantine places an active or expired batch on hold
func (b *Batch) Quarantine(now time.Time) error {
	return b.TransitionTo(BatchStatusQuarantined, now)
}

// ReleaseQuarantine returns a quarantined batch to active, or expired if its expiry passed meanwhile
func (b *Batch) ReleaseQuarantine(now time.Time) error {
	if b.Status != BatchStatusQuarantined {
		return b.transitionError("BATCH_NOT_QUARANTINED", "Batch is not quarantined")
	}
	return b.TransitionTo(b.liveStatusAt(now), now)
}

// ShouldExpire reports whether the expiry sweep would move this batch to expired
func (b *Batch) ShouldExpire(now time.Time) bool {
	return b.Status == BatchStatusActive && b.RemainingQuantity > 0 && b.IsExpiredAt(now)
}

// IsExpiredAt returns true if the expiry date is at or before now
func (b *Batch) IsExpiredAt(now time.Time) bool {
	return b.ExpiryDate != nil && !b.ExpiryDate.After(now)
}

// IsFEFOEligible reports whether automatic selection may draw from this batch
func (b *Batch) IsFEFOEligible(now time.Time) bool {
	return b.Status == BatchStatusActive && b.RemainingQuantity > 0 && !b.IsExpiredAt(now)
}

// IsDeletable returns true once the batch holds no stock
func (b *Batch) IsDeletable() bool {
	return b.RemainingQuantity == 0
}

// CheckDeletable returns a validation error if the batch still holds stock
func (b *Batch) CheckDeletable() error {
	if b.IsDeletable() {
		return nil
	}
	return shared.NewValidationError("BATCH_HAS_STOCK", "Batch with remaining stock cannot be deleted").
		WithDetail("batch_id", b.ID.String()).
		WithDetail("remaining", strconv.FormatInt(b.RemainingQuantity, 10))
}

// DaysUntilExpiry returns whole days until expiry (negative once expired), and false if no expiry is set
func (b *Batch) DaysUntilExpiry(now time.Time) (int, bool) {
	if b.ExpiryDate == nil {
		return 0, false
	}
	d := b.ExpiryDate.Sub(now)
	days := int(d.Hours() / 24)
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days, true
}

// TotalValue returns remaining quantity × unit cost
func (b *Batch) TotalValue() decimal.Decimal {
	return decimal.NewFromInt(b.RemainingQuantity).Mul(b.UnitCost)
}

// SplitBatchNumber derives the batch number of a lot split off by a transfer
func SplitBatchNumber(number, suffix string) string {
	keep := maxBatchNumberLength - len(suffix) - 1
	if keep < 1 {
		keep = 1
	}
	if len(number) > keep {
		number = number[:keep]
	}
	return number + "-" + suffix
}

// Split creates a new batch holding qty units of this lot at (locationID, bin). The
// split keeps cost, dates and supplier and starts expired when the lot is past
// its expiry. The source batch is not changed; the caller consumes it.
func (b *Batch) Split(qty int64, locationID uuid.UUID, bin, number string, now time.Time) (*Batch, error) {
	if qty > b.Quantity {
		return nil, shared.NewValidationError("INVALID_SPLIT", "Split quantity exceeds the batch quantity").
			WithDetail("batch_id", b.ID.String()).
			WithDetail("quantity", strconv.FormatInt(b.Quantity, 10)).
			WithDetail("requested", strconv.FormatInt(qty, 10))
	}
	loc := locationID
	split, err := NewBatch(NewBatchParams{
		ItemID:            b.ItemID,
		BatchNumber:       number,
		Quantity:          qty,
		UnitCost:          b.UnitCost,
		ManufacturingDate: b.ManufacturingDate,
		ExpiryDate:        b.ExpiryDate,
		LocationID:        &loc,
		Bin:               bin,
		SupplierID:        b.SupplierID,
		Notes:             b.Notes,
	}, now)
	if err != nil {
		return nil, err
	}
	if split.IsExpiredAt(now) {
		split.Status = BatchStatusExpired
	}
	return split, nil
}

// BatchUpdate carries the non-quantity fields that may be edited after creation.
// Nil fields are left unchanged.
type BatchUpdate struct {
	BatchNumber       *string
	UnitCost          *decimal.Decimal
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time
	ClearExpiry       bool
	SupplierID        *uuid.UUID
	Notes             *string
}

// Update applies non-quantity changes and re-validates date ordering
func (b *Batch) Update(u BatchUpdate, now time.Time) error {
	number := b.BatchNumber
	if u.BatchNumber != nil {
		n, err := normalizeBatchNumber(*u.BatchNumber)
		if err != nil {
			return err
		}
		number = n
	}
	cost := b.UnitCost
	if u.UnitCost != nil {
		if u.UnitCost.IsNegative() {
			return shared.NewValidationError("INVALID_UNIT_COST", "Unit cost cannot be negative")
		}
		cost = *u.UnitCost
	}
	mfg := b.ManufacturingDate
	if u.ManufacturingDate != nil {
		mfg = utcPtr(u.ManufacturingDate)
	}
	exp := b.ExpiryDate
	if u.ClearExpiry {
		exp = nil
	} else if u.ExpiryDate != nil {
		exp = utcPtr(u.ExpiryDate)
	}
	if err := validateBatchDates(mfg, exp); err != nil {
		return err
	}
	notes := b.Notes
	if u.Notes != nil {
		if len(*u.Notes) > maxBatchNotesLength {
			return shared.NewValidationError("INVALID_NOTES", "Notes cannot exceed 500 characters")
		}
		notes = *u.Notes
	}

	b.BatchNumber = number
	b.UnitCost = cost
	b.ManufacturingDate = mfg
	b.ExpiryDate = exp
	b.Notes = notes
	if u.SupplierID != nil {
		b.SupplierID = u.SupplierID
	}
	b.Touch(now)
	return nil
}

func (b *Batch) liveStatusAt(now time.Time) BatchStatus {
	if b.IsExpiredAt(now) {
		return BatchStatusExpired
	}
	return BatchStatusActive
}

func (b *Batch) setStatus(target BatchStatus, now time.Time) {
	if b.Status == target {
		return
	}
	from := b.Status
	b.Status = target
	b.Touch(now)
	b.AddDomainEvent(NewBatchStatusChangedEvent(b, from, target, now))
}

func (b *Batch) transitionError(code, message string) *shared.DomainError {
	return shared.NewInvalidTransitionError(code, message).
		WithDetail("batch_id", b.ID.String()).
		WithDetail("status", string(b.Status))
}

func normalizeBatchNumber(n string) (string, error) {
	n = strings.TrimSpace(n)
	if n == "" {
		return "", shared.NewValidationError("INVALID_BATCH_NUMBER", "Batch number cannot be empty")
	}
	if len(n) > maxBatchNumberLength {
		return "", shared.NewValidationError("INVALID_BATCH_NUMBER", "Batch number cannot exceed 64 characters")
	}
	return n, nil
}

func validateBatchDates(mfg, exp *time.Time) error {
	if mfg != nil && exp != nil && !exp.After(*mfg) {
		return shared.NewValidationError("INVALID_BATCH_DATES", "Expiry date must be after manufacturing date").
			WithDetail("manufacturing_date", mfg.Format(time.DateOnly)).
			WithDetail("expiry_date", exp.Format(time.DateOnly))
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
