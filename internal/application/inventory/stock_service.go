package inventory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// StockService handles per-location stock operations
type StockService struct {
	ledger       *LedgerService
	scope        TransactionScope
	items        inventory.ItemRepository
	locations    inventory.LocationInventoryRepository
	movements    inventory.MovementRepository
	directory    inventory.Directory
	historyLimit int
}

// NewStockService creates a new StockService. historyLimit bounds every
// movement history query.
func NewStockService(
	ledger *LedgerService,
	scope TransactionScope,
	items inventory.ItemRepository,
	locations inventory.LocationInventoryRepository,
	movements inventory.MovementRepository,
	directory inventory.Directory,
	historyLimit int,
) *StockService {
	return &StockService{
		ledger:       ledger,
		scope:        scope,
		items:        items,
		locations:    locations,
		movements:    movements,
		directory:    directory,
		historyLimit: historyLimit,
	}
}

// AddStock records a stock_in movement
func (s *StockService) AddStock(ctx context.Context, req StockChangeRequest) (*LedgerResult, error) {
	if req.Quantity <= 0 {
		return nil, nonPositive(req.Quantity)
	}
	return s.ledger.RecordMovement(ctx, MovementRequest{
		ItemID:     req.ItemID,
		LocationID: req.LocationID,
		Bin:        req.Bin,
		Delta:      req.Quantity,
		Type:       inventory.MovementTypeStockIn,
		Options:    req.Options,
	})
}

// RemoveStock records a stock_out movement
func (s *StockService) RemoveStock(ctx context.Context, req StockChangeRequest) (*LedgerResult, error) {
	if req.Quantity <= 0 {
		return nil, nonPositive(req.Quantity)
	}
	return s.ledger.RecordMovement(ctx, MovementRequest{
		ItemID:     req.ItemID,
		LocationID: req.LocationID,
		Bin:        req.Bin,
		Delta:      -req.Quantity,
		Type:       inventory.MovementTypeStockOut,
		Options:    req.Options,
	})
}

// AdjustStock brings a location to NewQuantity with a single adjust movement.
// The delta is computed under the location row lock, so writers that commit
// first are accounted for.
func (s *StockService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*LedgerResult, error) {
	target := req.NewQuantity
	return s.ledger.RecordMovement(ctx, MovementRequest{
		ItemID:         req.ItemID,
		LocationID:     req.LocationID,
		Bin:            req.Bin,
		TargetQuantity: &target,
		Type:           inventory.MovementTypeAdjust,
		Options:        req.Options,
	})
}

// Allocate reserves available stock at a location
func (s *StockService) Allocate(ctx context.Context, req AllocationRequest) (*LocationStockResponse, error) {
	return s.mutateLocation(ctx, "allocate", req.key(), func(repos TransactionalRepositories, loc *inventory.LocationInventory) error {
		if err := loc.Allocate(req.Quantity, s.ledger.now().UTC()); err != nil {
			return err
		}
		return repos.Locations().Allocate(ctx, req.key(), req.Quantity)
	})
}

// Release returns allocated stock to available
func (s *StockService) Release(ctx context.Context, req AllocationRequest) (*LocationStockResponse, error) {
	return s.mutateLocation(ctx, "release", req.key(), func(repos TransactionalRepositories, loc *inventory.LocationInventory) error {
		if err := loc.Release(req.Quantity, s.ledger.now().UTC()); err != nil {
			return err
		}
		return repos.Locations().Release(ctx, req.key(), req.Quantity)
	})
}

// SetReorderPoint sets the reorder point, creating the location row on first use
func (s *StockService) SetReorderPoint(ctx context.Context, req ReorderPointRequest) (*LocationStockResponse, error) {
	key := inventory.NewLocationKey(req.ItemID, req.LocationID, req.Bin)
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.items.FindByID(ctx, req.ItemID); err != nil {
		return nil, err
	}
	if err := s.checkLocation(ctx, req.LocationID); err != nil {
		return nil, err
	}
	var out *inventory.LocationInventory
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		loc, err := repos.Locations().FindOrCreate(ctx, key)
		if err != nil {
			return err
		}
		if err := loc.SetReorderPoint(req.ReorderPoint, s.ledger.now().UTC()); err != nil {
			return err
		}
		if err := repos.Locations().SetReorderPoint(ctx, key, req.ReorderPoint); err != nil {
			return err
		}
		out, err = repos.Locations().Find(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp := ToLocationStockResponse(out)
	return &resp, nil
}

func (s *StockService) mutateLocation(ctx context.Context, operation string, key inventory.LocationKey, fn func(TransactionalRepositories, *inventory.LocationInventory) error) (*LocationStockResponse, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var out *inventory.LocationInventory
	err := s.ledger.withRetry(ctx, operation, func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			loc, err := repos.Locations().Find(ctx, key)
			if err != nil {
				return err
			}
			if err := fn(repos, loc); err != nil {
				return err
			}
			out, err = repos.Locations().Find(ctx, key)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	resp := ToLocationStockResponse(out)
	return &resp, nil
}

// GetStock returns one item's stock at one location
func (s *StockService) GetStock(ctx context.Context, itemID, locationID uuid.UUID, bin string) (*LocationStockResponse, error) {
	loc, err := s.locations.Find(ctx, inventory.NewLocationKey(itemID, locationID, bin))
	if err != nil {
		return nil, err
	}
	resp := ToLocationStockResponse(loc)
	return &resp, nil
}

// GetStockByItem lists an item's stock across locations
func (s *StockService) GetStockByItem(ctx context.Context, itemID uuid.UUID) ([]LocationStockResponse, error) {
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return nil, err
	}
	rows, err := s.locations.FindByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return ToLocationStockResponses(rows), nil
}

// GetStockByLocation lists all item stock held at a location
func (s *StockService) GetStockByLocation(ctx context.Context, locationID uuid.UUID) ([]LocationStockResponse, error) {
	if err := s.checkLocation(ctx, locationID); err != nil {
		return nil, err
	}
	rows, err := s.locations.FindByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return ToLocationStockResponses(rows), nil
}

// GetLowStock lists rows at or below threshold, or at or below their reorder
// point when threshold is nil
func (s *StockService) GetLowStock(ctx context.Context, threshold *int64) ([]LocationStockResponse, error) {
	if threshold != nil && *threshold < 0 {
		return nil, shared.NewValidationError("INVALID_THRESHOLD", "Threshold cannot be negative").
			WithDetail("threshold", strconv.FormatInt(*threshold, 10))
	}
	rows, err := s.locations.FindLowStock(ctx, threshold)
	if err != nil {
		return nil, err
	}
	return ToLocationStockResponses(rows), nil
}

// GetMovementHistory returns journal entries newest first, bounded by the history limit
func (s *StockService) GetMovementHistory(ctx context.Context, filter MovementHistoryFilter) ([]MovementResponse, error) {
	f := inventory.MovementFilter{
		ItemID:      filter.ItemID,
		LocationID:  filter.LocationID,
		BatchID:     filter.BatchID,
		ReferenceID: filter.ReferenceID,
		From:        filter.From,
		To:          filter.To,
		Limit:       filter.Limit,
	}
	for _, raw := range filter.Types {
		t := inventory.MovementType(raw)
		if !t.IsValid() {
			return nil, shared.NewValidationError("INVALID_MOVEMENT_TYPE", "Unknown movement type").
				WithDetail("type", raw)
		}
		f.Types = append(f.Types, t)
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, shared.NewValidationError("INVALID_TIME_RANGE", "History range end must be after its start")
	}
	if f.Limit <= 0 || (s.historyLimit > 0 && f.Limit > s.historyLimit) {
		f.Limit = s.historyLimit
	}
	movements, err := s.movements.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	return ToMovementResponses(movements), nil
}

func (s *StockService) checkLocation(ctx context.Context, locationID uuid.UUID) error {
	exists, err := s.directory.LocationExists(ctx, locationID)
	if err != nil {
		return fmt.Errorf("failed to check location: %w", err)
	}
	if !exists {
		return shared.NewNotFoundError("LOCATION_NOT_FOUND", "Location not found").
			WithDetail("location_id", locationID.String())
	}
	return nil
}

func (r AllocationRequest) key() inventory.LocationKey {
	return inventory.NewLocationKey(r.ItemID, r.LocationID, r.Bin)
}

func nonPositive(qty int64) error {
	return shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive").
		WithDetail("quantity", strconv.FormatInt(qty, 10))
}
