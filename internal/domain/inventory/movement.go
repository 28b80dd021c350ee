package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementType classifies a stock movement
type MovementType string

const (
	MovementTypeStockIn     MovementType = "stock_in"
	MovementTypeStockOut    MovementType = "stock_out"
	MovementTypeTransferOut MovementType = "transfer_out"
	MovementTypeTransferIn  MovementType = "transfer_in"
	MovementTypeAdjust      MovementType = "adjust"
)

// IsValid checks if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeStockIn, MovementTypeStockOut, MovementTypeTransferOut, MovementTypeTransferIn, MovementTypeAdjust:
		return true
	}
	return false
}

// String returns the string representation
func (t MovementType) String() string {
	return string(t)
}

// ValidateDelta checks that delta is non-zero and its sign agrees with the type
func (t MovementType) ValidateDelta(delta int64) error {
	if !t.IsValid() {
		return shared.NewValidationError("INVALID_MOVEMENT_TYPE", "Unknown movement type").
			WithDetail("type", string(t))
	}
	if delta == 0 {
		return shared.NewValidationError("INVALID_QUANTITY", "Quantity change cannot be zero")
	}
	switch t {
	case MovementTypeStockIn, MovementTypeTransferIn:
		if delta < 0 {
			return signMismatch(t, delta)
		}
	case MovementTypeStockOut, MovementTypeTransferOut:
		if delta > 0 {
			return signMismatch(t, delta)
		}
	}
	return nil
}

func signMismatch(t MovementType, delta int64) error {
	return shared.NewValidationError("MOVEMENT_SIGN_MISMATCH", "Quantity sign does not match movement type").
		WithDetail("type", string(t)).
		WithDetail("delta", strconv.FormatInt(delta, 10))
}

const (
	maxReferenceIDLength = 100
	maxNotesLength       = 500
)

// MovementOptions are the optional inputs of a ledger movement
type MovementOptions struct {
	BatchID     *uuid.UUID `json:"batch_id,omitempty"`
	ReferenceID string     `json:"reference_id,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	ActorID     *uuid.UUID `json:"actor_id,omitempty"`
}

// Validate checks field lengths
func (o MovementOptions) Validate() error {
	if len(o.ReferenceID) > maxReferenceIDLength {
		return shared.NewValidationError("INVALID_REFERENCE", "Reference ID cannot exceed 100 characters")
	}
	if len(o.Notes) > maxNotesLength {
		return shared.NewValidationError("INVALID_NOTES", "Notes cannot exceed 500 characters")
	}
	if o.BatchID != nil && *o.BatchID == uuid.Nil {
		return shared.NewValidationError("INVALID_BATCH", "Batch ID cannot be the nil UUID")
	}
	return nil
}

// DecodeMovementOptions parses a JSON options object, rejecting unknown fields
func DecodeMovementOptions(data []byte) (MovementOptions, error) {
	var opts MovementOptions
	if len(bytes.TrimSpace(data)) == 0 {
		return opts, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return MovementOptions{}, shared.NewValidationError("INVALID_OPTIONS", "Malformed movement options").WithCause(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return MovementOptions{}, shared.NewValidationError("INVALID_OPTIONS", "Movement options must be a single JSON object")
	}
	return opts, opts.Validate()
}

// StockMovement is an immutable journal entry of one quantity change
type StockMovement struct {
	ID           uuid.UUID
	ItemID       uuid.UUID
	LocationID   uuid.UUID
	Bin          string
	BatchID      *uuid.UUID
	Quantity     int64
	Type         MovementType
	ReferenceID  string
	Notes        string
	ActorID      *uuid.UUID
	BalanceAfter int64
	CreatedAt    time.Time
}

// NewStockMovement creates a journal entry for delta at key
func NewStockMovement(key LocationKey, batchID *uuid.UUID, delta int64, t MovementType, opts MovementOptions, balanceAfter int64, now time.Time) (*StockMovement, error) {
	if err := t.ValidateDelta(delta); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &StockMovement{
		ID:           uuid.New(),
		ItemID:       key.ItemID,
		LocationID:   key.LocationID,
		Bin:          key.Bin,
		BatchID:      batchID,
		Quantity:     delta,
		Type:         t,
		ReferenceID:  opts.ReferenceID,
		Notes:        opts.Notes,
		ActorID:      opts.ActorID,
		BalanceAfter: balanceAfter,
		CreatedAt:    now.UTC(),
	}, nil
}
