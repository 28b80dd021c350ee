package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchService handles the batch registry
type BatchService struct {
	ledger    *LedgerService
	batches   inventory.BatchRepository
	items     inventory.ItemRepository
	directory inventory.Directory
}

// NewBatchService creates a new BatchService
func NewBatchService(
	ledger *LedgerService,
	batches inventory.BatchRepository,
	items inventory.ItemRepository,
	directory inventory.Directory,
) *BatchService {
	return &BatchService{
		ledger:    ledger,
		batches:   batches,
		items:     items,
		directory: directory,
	}
}

// CreateBatch registers a lot. With a location the batch row, its stock_in
// movement and the location and item totals commit together.
func (s *BatchService) CreateBatch(ctx context.Context, req CreateBatchRequest) (*BatchResponse, error) {
	now := s.ledger.now().UTC()
	batch, err := inventory.NewBatch(inventory.NewBatchParams{
		ItemID:            req.ItemID,
		BatchNumber:       req.BatchNumber,
		Quantity:          req.Quantity,
		UnitCost:          req.UnitCost,
		ManufacturingDate: req.ManufacturingDate,
		ExpiryDate:        req.ExpiryDate,
		LocationID:        req.LocationID,
		Bin:               req.Bin,
		SupplierID:        req.SupplierID,
		Notes:             req.Notes,
	}, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.items.FindByID(ctx, req.ItemID); err != nil {
		return nil, err
	}
	if err := s.checkSupplier(ctx, req.SupplierID); err != nil {
		return nil, err
	}
	taken, err := s.batches.ExistsByNumber(ctx, batch.ItemID, batch.BatchNumber)
	if err != nil {
		return nil, err
	}
	if taken && req.ReferenceID == "" {
		return nil, shared.NewDuplicateError("BATCH_NUMBER_EXISTS", "Batch number already exists for this item").
			WithDetail("item_id", batch.ItemID.String()).
			WithDetail("batch_number", batch.BatchNumber)
	}

	if req.LocationID == nil {
		if err := s.batches.Create(ctx, batch); err != nil {
			return nil, err
		}
		resp := ToBatchResponse(batch, now)
		return &resp, nil
	}

	result, err := s.ledger.post(ctx, OperationCreateBatch, MovementRequest{
		ItemID:     batch.ItemID,
		LocationID: *req.LocationID,
		Bin:        req.Bin,
		Delta:      batch.Quantity,
		Type:       inventory.MovementTypeStockIn,
		Options: inventory.MovementOptions{
			BatchID:     &batch.ID,
			ReferenceID: req.ReferenceID,
			Notes:       req.Notes,
			ActorID:     req.ActorID,
		},
	}, []leg{{batchID: &batch.ID, delta: batch.Quantity, newBatch: batch}})
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		return s.replayedBatch(ctx, result, batch)
	}
	resp := ToBatchResponse(batch, now)
	return &resp, nil
}

// replayedBatch returns the batch an earlier CreateBatch recorded under the
// same reference. A reference first used for a different receipt is a conflict.
func (s *BatchService) replayedBatch(ctx context.Context, result *LedgerResult, requested *inventory.Batch) (*BatchResponse, error) {
	reused := shared.NewConflictError("REFERENCE_REUSED", "Reference was already used for a different receipt").
		WithDetail("reference_id", result.Movements[0].ReferenceID).
		WithDetail("batch_number", requested.BatchNumber)
	original := result.Movements[0].BatchID
	if original == nil {
		return nil, reused
	}
	resp, err := s.GetBatch(ctx, *original)
	if err != nil {
		return nil, err
	}
	if resp.BatchNumber != requested.BatchNumber {
		return nil, reused
	}
	return resp, nil
}

// GetBatch returns a batch by ID
func (s *BatchService) GetBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch, s.ledger.now())
	return &resp, nil
}

// GetBatchByNumber returns an item's batch by batch number
func (s *BatchService) GetBatchByNumber(ctx context.Context, itemID uuid.UUID, batchNumber string) (*BatchResponse, error) {
	batch, err := s.batches.FindByNumber(ctx, itemID, batchNumber)
	if err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch, s.ledger.now())
	return &resp, nil
}

// UpdateBatch edits non-quantity fields, guarded by the caller's version
func (s *BatchService) UpdateBatch(ctx context.Context, id uuid.UUID, req UpdateBatchRequest) (*BatchResponse, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Version != batch.Version {
		return nil, versionConflict(batch, req.Version)
	}
	if err := s.checkSupplier(ctx, req.SupplierID); err != nil {
		return nil, err
	}
	now := s.ledger.now().UTC()
	if err := batch.Update(inventory.BatchUpdate{
		BatchNumber:       req.BatchNumber,
		UnitCost:          req.UnitCost,
		ManufacturingDate: req.ManufacturingDate,
		ExpiryDate:        req.ExpiryDate,
		ClearExpiry:       req.ClearExpiry,
		SupplierID:        req.SupplierID,
		Notes:             req.Notes,
	}, now); err != nil {
		return nil, err
	}
	if err := s.batches.UpdateWithVersion(ctx, batch); err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch, now)
	return &resp, nil
}

// QuarantineBatch places a batch on hold
func (s *BatchService) QuarantineBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	return s.transition(ctx, id, func(b *inventory.Batch, now time.Time) error {
		return b.Quarantine(now)
	})
}

// ReleaseBatch returns a quarantined batch to active or expired
func (s *BatchService) ReleaseBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	return s.transition(ctx, id, func(b *inventory.Batch, now time.Time) error {
		return b.ReleaseQuarantine(now)
	})
}

func (s *BatchService) transition(ctx context.Context, id uuid.UUID, fn func(*inventory.Batch, time.Time) error) (*BatchResponse, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.ledger.now().UTC()
	if err := fn(batch, now); err != nil {
		return nil, err
	}
	if err := s.batches.UpdateWithVersion(ctx, batch); err != nil {
		return nil, err
	}
	s.ledger.publish(ctx, batch.GetDomainEvents())
	batch.ClearDomainEvents()
	resp := ToBatchResponse(batch, now)
	return &resp, nil
}

// DeleteBatch removes a batch that no longer holds stock
func (s *BatchService) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := batch.CheckDeletable(); err != nil {
		return err
	}
	return s.batches.Delete(ctx, id)
}

// ListBatches lists batches by item, location or supplier with status and expiry filters
func (s *BatchService) ListBatches(ctx context.Context, filter BatchListFilter) ([]BatchResponse, int64, error) {
	f, err := toDomainBatchFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	batches, total, err := s.batches.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return ToBatchResponses(batches, s.ledger.now()), total, nil
}

// ListExpiring lists active batches expiring within the next days days
func (s *BatchService) ListExpiring(ctx context.Context, days int, filter BatchListFilter) ([]BatchResponse, int64, error) {
	if days < 0 {
		return nil, 0, shared.NewValidationError("INVALID_DAYS", "Days cannot be negative").
			WithDetail("days", strconv.Itoa(days))
	}
	now := s.ledger.now().UTC()
	until := now.AddDate(0, 0, days)
	filter.Status = []string{inventory.BatchStatusActive.String()}
	filter.ExpiresAfter = &now
	filter.ExpiresBefore = &until
	return s.ListBatches(ctx, filter)
}

// ListExpired lists batches past their expiry that still hold stock,
// including active ones the sweep has not reached yet
func (s *BatchService) ListExpired(ctx context.Context, filter BatchListFilter) ([]BatchResponse, int64, error) {
	now := s.ledger.now().UTC()
	filter.Status = []string{inventory.BatchStatusExpired.String(), inventory.BatchStatusActive.String()}
	filter.ExpiresAfter = nil
	filter.ExpiresBefore = &now
	return s.ListBatches(ctx, filter)
}

// UpdateBatchQuantity routes a signed delta on a named batch through the ledger
func (s *BatchService) UpdateBatchQuantity(ctx context.Context, id uuid.UUID, req UpdateBatchQuantityRequest) (*LedgerResult, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch.LocationID == nil {
		return nil, shared.NewValidationError("BATCH_NOT_LOCATED", "Batch has no location").
			WithDetail("batch_id", id.String())
	}
	movementType := req.Type
	if movementType == "" {
		movementType = inventory.MovementTypeAdjust
	}
	opts := req.Options
	opts.BatchID = &batch.ID
	return s.ledger.RecordMovement(ctx, MovementRequest{
		ItemID:     batch.ItemID,
		LocationID: *batch.LocationID,
		Bin:        req.Bin,
		Delta:      req.Delta,
		Type:       movementType,
		Options:    opts,
	})
}

// GetStatistics aggregates the registry
func (s *BatchService) GetStatistics(ctx context.Context, filter inventory.StatisticsFilter) (*inventory.BatchStatistics, error) {
	return s.batches.Statistics(ctx, filter, s.ledger.now().UTC())
}

// UpdateBatchStatuses expires every active batch with stock whose expiry has
// passed. Running it again without time passing changes nothing.
func (s *BatchService) UpdateBatchStatuses(ctx context.Context) (count int64, err error) {
	start := time.Now()
	defer func() {
		s.ledger.metrics.OperationCompleted(ctx, OperationExpirySweep, time.Since(start), err)
	}()

	now := s.ledger.now().UTC()
	count, err = s.batches.MarkExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire batches: %w", err)
	}
	s.ledger.metrics.ExpirySweepCompleted(ctx, count)
	if count > 0 {
		s.ledger.publish(ctx, []shared.DomainEvent{inventory.NewBatchesExpiredEvent(count, now)})
	}
	return count, nil
}

func (s *BatchService) checkSupplier(ctx context.Context, supplierID *uuid.UUID) error {
	if supplierID == nil {
		return nil
	}
	exists, err := s.directory.SupplierExists(ctx, *supplierID)
	if err != nil {
		return fmt.Errorf("failed to check supplier: %w", err)
	}
	if !exists {
		return shared.NewNotFoundError("SUPPLIER_NOT_FOUND", "Supplier not found").
			WithDetail("supplier_id", supplierID.String())
	}
	return nil
}

func versionConflict(b *inventory.Batch, expected int) error {
	return shared.NewConflictError("VERSION_CONFLICT", "Batch was modified by another process").
		WithDetail("batch_id", b.ID.String()).
		WithDetail("expected_version", strconv.Itoa(expected)).
		WithDetail("current_version", strconv.Itoa(b.Version))
}

func toDomainBatchFilter(f BatchListFilter) (inventory.BatchFilter, error) {
	out := inventory.BatchFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
		},
		ItemID:        f.ItemID,
		LocationID:    f.LocationID,
		SupplierID:    f.SupplierID,
		ExpiresAfter:  f.ExpiresAfter,
		ExpiresBefore: f.ExpiresBefore,
	}
	if out.Page < 1 {
		out.Page = 1
	}
	if out.PageSize < 1 {
		out.PageSize = 20
	}
	for _, raw := range f.Status {
		status := inventory.BatchStatus(raw)
		if !status.IsValid() {
			return out, shared.NewValidationError("INVALID_STATUS", "Unknown batch status").
				WithDetail("status", raw)
		}
		out.Statuses = append(out.Statuses, status)
	}
	if out.ExpiresAfter != nil && out.ExpiresBefore != nil && out.ExpiresBefore.Before(*out.ExpiresAfter) {
		return out, shared.NewValidationError("INVALID_EXPIRY_WINDOW", "Expiry window end is before its start")
	}
	return out, nil
}
