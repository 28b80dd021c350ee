package inventory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerConfig tunes the ledger's retry loop
type LedgerConfig struct {
	// MaxRetries is the number of extra attempts after a lost guard
	MaxRetries int
	// RetryBackoff is the base delay between attempts; a random jitter up to
	// the same amount is added
	RetryBackoff time.Duration
}

// DefaultLedgerConfig returns the default retry settings
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxRetries:   3,
		RetryBackoff: 5 * time.Millisecond,
	}
}

// LedgerService is the only writer of batch remaining quantities, location
// totals and item current stock. Each movement mutates all three together with
// the journal inside one transaction.
type LedgerService struct {
	scope          TransactionScope
	directory      inventory.Directory
	cfg            LedgerConfig
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	metrics        LedgerMetrics
	now            func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(scope TransactionScope, directory inventory.Directory, cfg LedgerConfig, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &LedgerService{
		scope:     scope,
		directory: directory,
		cfg:       cfg,
		logger:    logger,
		metrics:   NoopMetrics(),
		now:       time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the metrics sink; nil restores the no-op sink
func (s *LedgerService) SetMetrics(metrics LedgerMetrics) {
	if metrics == nil {
		metrics = NoopMetrics()
	}
	s.metrics = metrics
}

// SetClock overrides the time source used for expiry decisions and timestamps
func (s *LedgerService) SetClock(now func() time.Time) {
	s.now = now
}

// leg is the share of a movement applied to one batch. A leg without a batch
// only changes the location and item totals.
type leg struct {
	batchID  *uuid.UUID
	delta    int64
	newBatch *inventory.Batch
}

type ledgerOutcome struct {
	result    *LedgerResult
	movements []*inventory.StockMovement
	events    []shared.DomainEvent
}

// RecordMovement applies a signed quantity change at a location.
//
// With Options.BatchID set the named batch takes the whole delta. Otherwise a
// removal is drawn from the location's batches earliest expiry first, one
// movement per touched batch, and an addition only changes the location and
// item totals. A repeated ReferenceID for the same type, item and location
// returns the movements recorded the first time.
func (s *LedgerService) RecordMovement(ctx context.Context, req MovementRequest) (*LedgerResult, error) {
	return s.post(ctx, OperationRecordMovement, req, nil)
}

func (s *LedgerService) post(ctx context.Context, operation string, req MovementRequest, legs []leg) (result *LedgerResult, err error) {
	start := time.Now()
	defer func() {
		s.metrics.OperationCompleted(ctx, operation, time.Since(start), err)
	}()

	key, err := s.validate(ctx, req, legs)
	if err != nil {
		return nil, err
	}

	var outcome *ledgerOutcome
	err = s.withRetry(ctx, operation, func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			o, err := s.apply(ctx, repos, req, key, legs)
			if err != nil {
				return err
			}
			outcome = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	for _, m := range outcome.movements {
		s.metrics.MovementRecorded(ctx, m.Type, m.Quantity)
	}
	s.publish(ctx, outcome.events)
	return outcome.result, nil
}

func (s *LedgerService) validate(ctx context.Context, req MovementRequest, legs []leg) (inventory.LocationKey, error) {
	key := inventory.NewLocationKey(req.ItemID, req.LocationID, req.Bin)
	if req.TargetQuantity != nil {
		if err := validateTarget(req, legs); err != nil {
			return key, err
		}
	} else if err := req.Type.ValidateDelta(req.Delta); err != nil {
		return key, err
	}
	if err := req.Options.Validate(); err != nil {
		return key, err
	}
	if err := key.Validate(); err != nil {
		return key, err
	}
	if legs != nil {
		var total int64
		for _, l := range legs {
			total += l.delta
		}
		if total != req.Delta {
			return key, shared.NewValidationError("LEG_TOTAL_MISMATCH", "Batch shares do not add up to the movement quantity").
				WithDetail("delta", strconv.FormatInt(req.Delta, 10)).
				WithDetail("legs", strconv.FormatInt(total, 10))
		}
	}
	exists, err := s.directory.LocationExists(ctx, req.LocationID)
	if err != nil {
		return key, fmt.Errorf("failed to check location: %w", err)
	}
	if !exists {
		return key, shared.NewNotFoundError("LOCATION_NOT_FOUND", "Location not found").
			WithDetail("location_id", req.LocationID.String())
	}
	return key, nil
}

func validateTarget(req MovementRequest, legs []leg) error {
	if req.Type != inventory.MovementTypeAdjust || req.Delta != 0 || legs != nil {
		return shared.NewValidationError("INVALID_TARGET_MOVEMENT", "A target quantity is only valid for a plain adjust movement").
			WithDetail("type", string(req.Type))
	}
	if *req.TargetQuantity < 0 {
		return shared.NewValidationError("INVALID_QUANTITY", "Target quantity cannot be negative").
			WithDetail("target", strconv.FormatInt(*req.TargetQuantity, 10))
	}
	return nil
}

// withRetry reruns fn after a lost guard. Any other error ends the loop.
func (s *LedgerService) withRetry(ctx context.Context, operation string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !shared.IsKind(err, shared.KindConflict) {
			return err
		}
		if attempt >= s.cfg.MaxRetries {
			return shared.NewConflictError("LEDGER_RETRIES_EXHAUSTED", "Stock was changed concurrently, retries exhausted").
				WithDetail("operation", operation).
				WithDetail("attempts", strconv.Itoa(attempt+1)).
				WithCause(err)
		}
		s.metrics.RetryAttempted(ctx, operation)
		s.logger.Debug("ledger guard lost, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if err := backoff(ctx, s.cfg.RetryBackoff, attempt); err != nil {
			return err
		}
	}
}

func backoff(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(base*time.Duration(attempt+1) + rand.N(base))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *LedgerService) apply(ctx context.Context, repos TransactionalRepositories, req MovementRequest, key inventory.LocationKey, legs []leg) (*ledgerOutcome, error) {
	item, err := repos.Items().FindByID(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	// Movements on one location serialize on its row, which is locked before
	// any batch or item row
	loc, err := repos.Locations().FindForUpdate(ctx, key)
	if err != nil {
		return nil, err
	}
	if req.Options.ReferenceID != "" {
		prior, err := priorMovements(ctx, repos.Movements(), req, key)
		if err != nil {
			return nil, err
		}
		if len(prior) > 0 {
			return replay(ctx, repos.Locations(), key, item, prior)
		}
	}
	if !item.IsActive {
		return nil, shared.NewValidationError("ITEM_INACTIVE", "Item is inactive").
			WithDetail("item_id", item.ID.String())
	}

	if req.TargetQuantity != nil {
		delta, err := loc.DeltaTo(*req.TargetQuantity)
		if err != nil {
			return nil, err
		}
		if delta == 0 {
			return &ledgerOutcome{result: &LedgerResult{
				Movements: []MovementResponse{},
				Location:  ToLocationStockResponse(loc),
				Item:      ToItemResponse(item),
			}}, nil
		}
		req.Delta = delta
	}

	now := s.now().UTC()
	if err := loc.Apply(req.Delta, now); err != nil {
		return nil, err
	}

	if legs == nil {
		legs, err = selectLegs(ctx, repos.Batches(), req, now)
		if err != nil {
			return nil, err
		}
	}
	events := make([]shared.DomainEvent, 0, 2*len(legs)+1)
	for _, l := range legs {
		evs, err := applyLeg(ctx, repos.Batches(), req, l, now)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}

	if err := repos.Locations().ApplyDelta(ctx, key, req.Delta); err != nil {
		return nil, err
	}
	loc, err = repos.Locations().Find(ctx, key)
	if err != nil {
		return nil, err
	}
	stock, err := repos.ItemStock().AdjustCurrentStock(ctx, req.ItemID, req.Delta)
	if err != nil {
		return nil, err
	}
	item.CurrentStock = stock

	movements := make([]*inventory.StockMovement, 0, len(legs))
	balance := loc.Quantity - req.Delta
	for _, l := range legs {
		balance += l.delta
		m, err := inventory.NewStockMovement(key, l.batchID, l.delta, req.Type, req.Options, balance, now)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := repos.Movements().CreateAll(ctx, movements); err != nil {
		return nil, err
	}

	result := &LedgerResult{
		Movements: make([]MovementResponse, len(movements)),
		Location:  ToLocationStockResponse(loc),
		Item:      ToItemResponse(item),
	}
	for i, m := range movements {
		result.Movements[i] = ToMovementResponse(m)
		events = append(events, inventory.NewStockMovementRecordedEvent(m))
	}
	if req.Delta < 0 && loc.IsLowStock(nil) {
		events = append(events, inventory.NewLowStockDetectedEvent(loc, now))
	}
	return &ledgerOutcome{result: result, movements: movements, events: events}, nil
}

func priorMovements(ctx context.Context, movements inventory.MovementRepository, req MovementRequest, key inventory.LocationKey) ([]inventory.StockMovement, error) {
	recorded, err := movements.FindByReference(ctx, req.Options.ReferenceID)
	if err != nil {
		return nil, err
	}
	matched := make([]inventory.StockMovement, 0, len(recorded))
	for _, m := range recorded {
		if m.Type == req.Type && m.ItemID == key.ItemID && m.LocationID == key.LocationID && m.Bin == key.Bin {
			matched = append(matched, m)
		}
	}
	return matched, nil
}

func replay(ctx context.Context, locations inventory.LocationInventoryRepository, key inventory.LocationKey, item *inventory.Item, prior []inventory.StockMovement) (*ledgerOutcome, error) {
	loc, err := locations.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	return &ledgerOutcome{
		result: &LedgerResult{
			Movements: ToMovementResponses(prior),
			Location:  ToLocationStockResponse(loc),
			Item:      ToItemResponse(item),
			Replayed:  true,
		},
	}, nil
}

// selectLegs splits the movement into batch shares
func selectLegs(ctx context.Context, batches inventory.BatchRepository, req MovementRequest, now time.Time) ([]leg, error) {
	if id := req.Options.BatchID; id != nil {
		return []leg{{batchID: id, delta: req.Delta}}, nil
	}
	if req.Delta > 0 {
		return []leg{{delta: req.Delta}}, nil
	}
	key := inventory.LocationKey{ItemID: req.ItemID, LocationID: req.LocationID, Bin: req.Bin}
	tracked, err := batches.CountNonDepleted(ctx, key)
	if err != nil {
		return nil, err
	}
	if tracked == 0 {
		return []leg{{delta: req.Delta}}, nil
	}
	candidates, err := batches.FindFEFOCandidates(ctx, key, now)
	if err != nil {
		return nil, err
	}
	plan, err := inventory.PlanFEFO(candidates, -req.Delta, now)
	if err != nil {
		return nil, err
	}
	legs := make([]leg, len(plan.Draws))
	for i, d := range plan.Draws {
		id := d.BatchID
		legs[i] = leg{batchID: &id, delta: -d.Quantity}
	}
	return legs, nil
}

// applyLeg writes one batch share and returns the status events it caused
func applyLeg(ctx context.Context, batches inventory.BatchRepository, req MovementRequest, l leg, now time.Time) ([]shared.DomainEvent, error) {
	if l.newBatch != nil {
		if err := batches.Create(ctx, l.newBatch); err != nil {
			return nil, err
		}
		return append([]shared.DomainEvent(nil), l.newBatch.GetDomainEvents()...), nil
	}
	if l.batchID == nil {
		return nil, nil
	}

	batch, err := batches.FindByID(ctx, *l.batchID)
	if err != nil {
		return nil, err
	}
	if batch.ItemID != req.ItemID || batch.LocationID == nil || *batch.LocationID != req.LocationID || batch.Bin != req.Bin {
		return nil, shared.NewValidationError("BATCH_LOCATION_MISMATCH", "Batch does not hold this item at this location").
			WithDetail("batch_id", batch.ID.String()).
			WithDetail("item_id", req.ItemID.String()).
			WithDetail("location_id", req.LocationID.String()).
			WithDetail("bin", req.Bin)
	}

	before := batch.Status
	if l.delta < 0 {
		if err := batch.Consume(-l.delta, now); err != nil {
			return nil, err
		}
		err = batches.Consume(ctx, batch.ID, -l.delta, now)
	} else {
		if err := batch.Replenish(l.delta, now); err != nil {
			return nil, err
		}
		err = batches.Replenish(ctx, batch.ID, l.delta, now)
	}
	if err != nil {
		return nil, err
	}

	after, err := batches.FindByID(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	if after.Status == before {
		return nil, nil
	}
	return []shared.DomainEvent{inventory.NewBatchStatusChangedEvent(after, before, after.Status, now)}, nil
}

func (s *LedgerService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish ledger events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}
