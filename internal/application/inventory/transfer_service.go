package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	compensationSuffix   = ":compensation"
	maxTransferReference = 100 - len(compensationSuffix)
)

// TransferService moves stock between two locations as a transfer_out and a
// transfer_in ledger movement sharing one reference id. Stock drawn from a
// batch arrives at the destination as a split of that batch.
type TransferService struct {
	ledger    *LedgerService
	locations inventory.LocationInventoryRepository
	batches   inventory.BatchRepository
	movements inventory.MovementRepository
	directory inventory.Directory
	logger    *zap.Logger
}

// NewTransferService creates a new TransferService
func NewTransferService(
	ledger *LedgerService,
	locations inventory.LocationInventoryRepository,
	batches inventory.BatchRepository,
	movements inventory.MovementRepository,
	directory inventory.Directory,
	logger *zap.Logger,
) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		ledger:    ledger,
		locations: locations,
		batches:   batches,
		movements: movements,
		directory: directory,
		logger:    logger,
	}
}

// TransferStock moves req.Quantity from the source to the destination. If the
// destination leg fails after the source leg committed, the source is restored
// with a compensating transfer_in before the error is returned.
func (s *TransferService) TransferStock(ctx context.Context, req TransferRequest) (result *TransferResult, err error) {
	start := time.Now()
	defer func() {
		s.ledger.metrics.OperationCompleted(ctx, OperationTransfer, time.Since(start), err)
	}()

	from := inventory.NewLocationKey(req.ItemID, req.FromLocationID, req.FromBin)
	to := inventory.NewLocationKey(req.ItemID, req.ToLocationID, req.ToBin)
	if err := s.validate(ctx, req, from, to); err != nil {
		return nil, err
	}

	ref := req.Options.ReferenceID
	if ref == "" {
		ref = "TRF-" + uuid.NewString()
	} else if err := s.checkNotCompensated(ctx, ref); err != nil {
		return nil, err
	}
	opts := req.Options
	opts.ReferenceID = ref

	out, err := s.ledger.RecordMovement(ctx, MovementRequest{
		ItemID:     req.ItemID,
		LocationID: from.LocationID,
		Bin:        from.Bin,
		Delta:      -req.Quantity,
		Type:       inventory.MovementTypeTransferOut,
		Options:    opts,
	})
	if err != nil {
		return nil, err
	}

	inOpts := opts
	inOpts.BatchID = nil
	in, err := s.receive(ctx, req, to, out, inOpts)
	if err != nil {
		return nil, s.compensate(ctx, req, from, out, opts, err)
	}
	return &TransferResult{ReferenceID: ref, Out: out, In: in}, nil
}

func (s *TransferService) validate(ctx context.Context, req TransferRequest, from, to inventory.LocationKey) error {
	if req.Quantity <= 0 {
		return nonPositive(req.Quantity)
	}
	if from == to {
		return shared.NewValidationError("SAME_LOCATION", "Source and destination must differ").
			WithDetail("location_id", from.LocationID.String())
	}
	if err := to.Validate(); err != nil {
		return err
	}
	if len(req.Options.ReferenceID) > maxTransferReference {
		return shared.NewValidationError("INVALID_REFERENCE", "Transfer reference ID is too long").
			WithDetail("max_length", strconv.Itoa(maxTransferReference))
	}
	exists, err := s.directory.LocationExists(ctx, to.LocationID)
	if err != nil {
		return fmt.Errorf("failed to check destination: %w", err)
	}
	if !exists {
		return shared.NewNotFoundError("LOCATION_NOT_FOUND", "Destination location not found").
			WithDetail("location_id", to.LocationID.String())
	}

	var available int64
	src, err := s.locations.Find(ctx, from)
	switch {
	case err == nil:
		available = src.Available()
	case !shared.IsKind(err, shared.KindNotFound):
		return err
	}
	if available < req.Quantity {
		return shared.NewInsufficientStockError("TRANSFER_INSUFFICIENT_STOCK", "Source location has insufficient available stock").
			WithDetail("location_id", from.LocationID.String()).
			WithDetail("available", strconv.FormatInt(available, 10)).
			WithDetail("requested", strconv.FormatInt(req.Quantity, 10))
	}
	return nil
}

// checkNotCompensated rejects a reference whose earlier transfer was rolled back
func (s *TransferService) checkNotCompensated(ctx context.Context, ref string) error {
	prior, err := s.movements.FindByReference(ctx, ref+compensationSuffix)
	if err != nil {
		return err
	}
	if len(prior) > 0 {
		return shared.NewConflictError("TRANSFER_COMPENSATED", "A transfer with this reference was rolled back; use a new reference").
			WithDetail("reference_id", ref)
	}
	return nil
}

// receive records the destination leg. Every batch draw of the source leg
// becomes a split batch at the destination, including when the source leg is
// a replay of an earlier attempt.
func (s *TransferService) receive(ctx context.Context, req TransferRequest, to inventory.LocationKey, out *LedgerResult, opts inventory.MovementOptions) (*LedgerResult, error) {
	inReq := MovementRequest{
		ItemID:     req.ItemID,
		LocationID: to.LocationID,
		Bin:        to.Bin,
		Delta:      req.Quantity,
		Type:       inventory.MovementTypeTransferIn,
		Options:    opts,
	}
	now := s.ledger.now().UTC()
	suffix := shortSuffix()
	legs := make([]leg, 0, len(out.Movements))
	for _, m := range out.Movements {
		if m.BatchID == nil {
			legs = append(legs, leg{delta: -m.Quantity})
			continue
		}
		src, err := s.batches.FindByID(ctx, *m.BatchID)
		if err != nil {
			return nil, err
		}
		split, err := src.Split(-m.Quantity, to.LocationID, to.Bin, inventory.SplitBatchNumber(src.BatchNumber, suffix), now)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg{batchID: &split.ID, delta: -m.Quantity, newBatch: split})
	}
	return s.ledger.post(ctx, OperationRecordMovement, inReq, legs)
}

// compensate restores the source leg and returns the destination failure
func (s *TransferService) compensate(ctx context.Context, req TransferRequest, from inventory.LocationKey, out *LedgerResult, opts inventory.MovementOptions, cause error) error {
	legs := make([]leg, 0, len(out.Movements))
	for _, m := range out.Movements {
		legs = append(legs, leg{batchID: m.BatchID, delta: -m.Quantity})
	}
	compOpts := inventory.MovementOptions{
		ReferenceID: opts.ReferenceID + compensationSuffix,
		Notes:       "Reversal of failed transfer " + opts.ReferenceID,
		ActorID:     opts.ActorID,
	}
	_, err := s.ledger.post(ctx, OperationRecordMovement, MovementRequest{
		ItemID:     req.ItemID,
		LocationID: from.LocationID,
		Bin:        from.Bin,
		Delta:      req.Quantity,
		Type:       inventory.MovementTypeTransferIn,
		Options:    compOpts,
	}, legs)
	if err != nil {
		joined := errors.Join(cause, err)
		s.logger.Error("transfer compensation failed",
			zap.String("reference_id", opts.ReferenceID),
			zap.String("item_id", req.ItemID.String()),
			zap.String("from_location_id", req.FromLocationID.String()),
			zap.Int64("quantity", req.Quantity),
			zap.Error(joined),
		)
		return joined
	}
	s.logger.Warn("transfer destination leg failed, source restored",
		zap.String("reference_id", opts.ReferenceID),
		zap.String("to_location_id", req.ToLocationID.String()),
		zap.Error(cause),
	)
	return cause
}

func shortSuffix() string {
	id := uuid.New()
	return "T" + id.String()[:8]
}
