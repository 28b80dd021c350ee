package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_FEFOAcrossBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "FEFO-1")
	wh := env.seedWarehouse(t)

	later := env.receiveBatch(t, itemID, wh, "LOT-FEB", 10, date(2024, 2, 1))
	first := env.receiveBatch(t, itemID, wh, "LOT-JAN", 5, date(2024, 1, 1))
	env.publisher.Reset()

	result, err := env.ledger.RecordMovement(ctx, appinv.MovementRequest{
		ItemID:     itemID,
		LocationID: wh,
		Delta:      -8,
		Type:       inventory.MovementTypeStockOut,
		Options:    inventory.MovementOptions{ReferenceID: "INV-1001"},
	})
	require.NoError(t, err)

	require.Len(t, result.Movements, 2)
	assert.Equal(t, first.ID, *result.Movements[0].BatchID)
	assert.Equal(t, int64(-5), result.Movements[0].Quantity)
	assert.Equal(t, later.ID, *result.Movements[1].BatchID)
	assert.Equal(t, int64(-3), result.Movements[1].Quantity)
	for _, m := range result.Movements {
		assert.Equal(t, "INV-1001", m.ReferenceID)
		assert.Equal(t, "stock_out", m.Type)
	}
	assert.Equal(t, int64(10), result.Movements[0].BalanceAfter)
	assert.Equal(t, int64(7), result.Movements[1].BalanceAfter)
	assert.Equal(t, int64(7), result.Location.Quantity)
	assert.Equal(t, int64(7), result.Item.CurrentStock)

	remaining, status := env.batchRemaining(t, first.ID)
	assert.Equal(t, int64(0), remaining)
	assert.Equal(t, "depleted", status)
	remaining, status = env.batchRemaining(t, later.ID)
	assert.Equal(t, int64(7), remaining)
	assert.Equal(t, "active", status)
	env.assertConserved(t, itemID)

	assert.Len(t, env.publisher.GetEventsByType(inventory.EventTypeStockMovementRecorded), 2)
	changed := env.publisher.GetEventsByType(inventory.EventTypeBatchStatusChanged)
	require.Len(t, changed, 1)
	ev := changed[0].(*inventory.BatchStatusChangedEvent)
	assert.Equal(t, first.ID, ev.BatchID)
	assert.Equal(t, inventory.BatchStatusDepleted, ev.To)
}

func TestLedger_FEFOSkipsIneligibleBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "FEFO-2")
	wh := env.seedWarehouse(t)

	stale := env.receiveBatch(t, itemID, wh, "LOT-STALE", 4, date(2023, 11, 1))
	held := env.receiveBatch(t, itemID, wh, "LOT-HELD", 4, date(2024, 1, 1))
	_, err := env.batches.QuarantineBatch(ctx, held.ID)
	require.NoError(t, err)
	open := env.receiveBatch(t, itemID, wh, "LOT-OPEN", 4, nil)

	result, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, result.Movements, 1)
	assert.Equal(t, open.ID, *result.Movements[0].BatchID)

	remaining, _ := env.batchRemaining(t, stale.ID)
	assert.Equal(t, int64(4), remaining)
	remaining, _ = env.batchRemaining(t, held.ID)
	assert.Equal(t, int64(4), remaining)
	env.assertConserved(t, itemID)
}

func TestLedger_FEFOShortfallLeavesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "FEFO-3")
	wh := env.seedWarehouse(t)

	a := env.receiveBatch(t, itemID, wh, "LOT-A", 5, date(2024, 1, 1))
	b := env.receiveBatch(t, itemID, wh, "LOT-B", 5, date(2024, 2, 1))
	before := env.movementCount(t)

	_, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 11})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	remaining, _ := env.batchRemaining(t, a.ID)
	assert.Equal(t, int64(5), remaining)
	remaining, _ = env.batchRemaining(t, b.ID)
	assert.Equal(t, int64(5), remaining)
	assert.Equal(t, before, env.movementCount(t))
	assert.Equal(t, int64(10), env.locationQuantity(t, itemID, wh))
	env.assertConserved(t, itemID)
}

func TestLedger_FEFOStaysInBin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "FEFO-BIN")
	wh := env.seedWarehouse(t)

	receive := func(number, bin string, expiry *time.Time) *appinv.BatchResponse {
		batch, err := env.batches.CreateBatch(ctx, appinv.CreateBatchRequest{
			ItemID:      itemID,
			BatchNumber: number,
			Quantity:    10,
			ExpiryDate:  expiry,
			LocationID:  &wh,
			Bin:         bin,
		})
		require.NoError(t, err)
		return batch
	}
	shelfA := receive("LOT-A", "A-01", date(2024, 1, 1))
	shelfB := receive("LOT-B", "B-01", date(2024, 6, 1))
	assert.Equal(t, "A-01", shelfA.Bin)

	result, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Bin: "B-01", Quantity: 4})
	require.NoError(t, err)
	require.Len(t, result.Movements, 1)
	assert.Equal(t, shelfB.ID, *result.Movements[0].BatchID)
	assert.Equal(t, "B-01", result.Location.Bin)
	assert.Equal(t, int64(6), result.Location.Quantity)

	remaining, _ := env.batchRemaining(t, shelfA.ID)
	assert.Equal(t, int64(10), remaining)
	remaining, _ = env.batchRemaining(t, shelfB.ID)
	assert.Equal(t, int64(6), remaining)

	_, err = env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Bin: "B-01", Quantity: 7})
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	_, err = env.ledger.RecordMovement(ctx, appinv.MovementRequest{
		ItemID:     itemID,
		LocationID: wh,
		Bin:        "B-01",
		Delta:      -1,
		Type:       inventory.MovementTypeStockOut,
		Options:    inventory.MovementOptions{BatchID: &shelfA.ID},
	})
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	env.assertConserved(t, itemID)
}

func TestLedger_NamedBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "NAMED-1")
	wh := env.seedWarehouse(t)

	env.receiveBatch(t, itemID, wh, "LOT-EARLY", 5, date(2024, 1, 1))
	named := env.receiveBatch(t, itemID, wh, "LOT-NAMED", 6, date(2024, 6, 1))

	t.Run("consumes only the named batch", func(t *testing.T) {
		result, err := env.ledger.RecordMovement(ctx, appinv.MovementRequest{
			ItemID:     itemID,
			LocationID: wh,
			Delta:      -6,
			Type:       inventory.MovementTypeStockOut,
			Options:    inventory.MovementOptions{BatchID: &named.ID},
		})
		require.NoError(t, err)
		require.Len(t, result.Movements, 1)
		remaining, status := env.batchRemaining(t, named.ID)
		assert.Equal(t, int64(0), remaining)
		assert.Equal(t, "depleted", status)
		env.assertConserved(t, itemID)
	})

	t.Run("replenish revives a depleted batch", func(t *testing.T) {
		_, err := env.ledger.RecordMovement(ctx, appinv.MovementRequest{
			ItemID:     itemID,
			LocationID: wh,
			Delta:      2,
			Type:       inventory.MovementTypeAdjust,
			Options:    inventory.MovementOptions{BatchID: &named.ID},
		})
		require.NoError(t, err)
		remaining, status := env.batchRemaining(t, named.ID)
		assert.Equal(t, int64(2), remaining)
		assert.Equal(t, "active", status)
		env.assertConserved(t, itemID)
	})

	t.Run("replenish beyond the original quantity", func(t *testing.T) {
		_, err := env.ledger.RecordMovement(ctx, appinv.MovementRequest{
			ItemID:     itemID,
			LocationID: wh,
			Delta:      5,
			Type:       inventory.MovementTypeStockIn,
			Options:    inventory.MovementOptions{BatchID: &named.ID},
		})
		assert.True(t, errors.Is(err, shared.ErrValidation))
		env.assertConserved(t, itemID)
	})

	t.Run("batch at another location", func(t *testing.T) {
		other := env.seedWarehouse(t)
		env.addStock(t, itemID, other, 3)
		_, err := env.ledger.RecordMovement(ctx, appinv.MovementRequest{
			ItemID:     itemID,
			LocationID: other,
			Delta:      -1,
			Type:       inventory.MovementTypeStockOut,
			Options:    inventory.MovementOptions{BatchID: &named.ID},
		})
		require.Error(t, err)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "BATCH_LOCATION_MISMATCH", de.Code)
	})
}

func TestLedger_UntrackedStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "LOOSE-1")
	wh := env.seedWarehouse(t)

	added := env.addStock(t, itemID, wh, 12)
	require.Len(t, added.Movements, 1)
	assert.Nil(t, added.Movements[0].BatchID)

	removed, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 5})
	require.NoError(t, err)
	require.Len(t, removed.Movements, 1)
	assert.Nil(t, removed.Movements[0].BatchID)
	assert.Equal(t, int64(7), removed.Location.Quantity)
	assert.Equal(t, int64(7), removed.Item.CurrentStock)

	_, err = env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 8})
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
}

func TestLedger_ReferenceReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "REPLAY-1")
	wh := env.seedWarehouse(t)

	req := appinv.MovementRequest{
		ItemID:     itemID,
		LocationID: wh,
		Delta:      9,
		Type:       inventory.MovementTypeStockIn,
		Options:    inventory.MovementOptions{ReferenceID: "PO-77", Notes: "receipt"},
	}
	first, err := env.ledger.RecordMovement(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	published := len(env.publisher.GetEvents())

	second, err := env.ledger.RecordMovement(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	require.Len(t, second.Movements, 1)
	assert.Equal(t, first.Movements[0].ID, second.Movements[0].ID)
	assert.Equal(t, int64(9), second.Location.Quantity)
	assert.Equal(t, int64(9), second.Item.CurrentStock)
	assert.Len(t, env.publisher.GetEvents(), published)

	t.Run("same reference with another type is a new movement", func(t *testing.T) {
		out := req
		out.Delta = -2
		out.Type = inventory.MovementTypeStockOut
		result, err := env.ledger.RecordMovement(ctx, out)
		require.NoError(t, err)
		assert.False(t, result.Replayed)
		assert.Equal(t, int64(7), result.Location.Quantity)
	})
}

func TestLedger_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "VAL-1")
	wh := env.seedWarehouse(t)

	tests := []struct {
		name string
		req  appinv.MovementRequest
		kind shared.ErrorKind
		code string
	}{
		{
			name: "zero delta",
			req:  appinv.MovementRequest{ItemID: itemID, LocationID: wh, Delta: 0, Type: inventory.MovementTypeAdjust},
			kind: shared.KindValidation,
			code: "INVALID_QUANTITY",
		},
		{
			name: "stock_in with negative delta",
			req:  appinv.MovementRequest{ItemID: itemID, LocationID: wh, Delta: -1, Type: inventory.MovementTypeStockIn},
			kind: shared.KindValidation,
			code: "MOVEMENT_SIGN_MISMATCH",
		},
		{
			name: "transfer_out with positive delta",
			req:  appinv.MovementRequest{ItemID: itemID, LocationID: wh, Delta: 1, Type: inventory.MovementTypeTransferOut},
			kind: shared.KindValidation,
			code: "MOVEMENT_SIGN_MISMATCH",
		},
		{
			name: "unknown location",
			req:  appinv.MovementRequest{ItemID: itemID, LocationID: uuid.New(), Delta: 1, Type: inventory.MovementTypeStockIn},
			kind: shared.KindNotFound,
			code: "LOCATION_NOT_FOUND",
		},
		{
			name: "unknown item",
			req:  appinv.MovementRequest{ItemID: uuid.New(), LocationID: wh, Delta: 1, Type: inventory.MovementTypeStockIn},
			kind: shared.KindNotFound,
			code: "ITEM_NOT_FOUND",
		},
		{
			name: "reference too long",
			req: appinv.MovementRequest{ItemID: itemID, LocationID: wh, Delta: 1, Type: inventory.MovementTypeStockIn,
				Options: inventory.MovementOptions{ReferenceID: string(make([]byte, 101))}},
			kind: shared.KindValidation,
			code: "INVALID_REFERENCE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.RecordMovement(ctx, tt.req)
			require.Error(t, err)
			var de *shared.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.kind, de.Kind)
			assert.Equal(t, tt.code, de.Code)
		})
	}
	assert.Equal(t, int64(0), env.movementCount(t))
}

func TestLedger_InactiveItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "OFF-1")
	wh := env.seedWarehouse(t)
	_, err := env.items.DeactivateItem(ctx, itemID)
	require.NoError(t, err)

	_, err = env.stock.AddStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 1})
	require.Error(t, err)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "ITEM_INACTIVE", de.Code)
}

func TestLedger_LowStockEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "LOW-1")
	wh := env.seedWarehouse(t)

	env.addStock(t, itemID, wh, 10)
	_, err := env.stock.SetReorderPoint(ctx, appinv.ReorderPointRequest{ItemID: itemID, LocationID: wh, ReorderPoint: 4})
	require.NoError(t, err)

	_, err = env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 5})
	require.NoError(t, err)
	assert.Empty(t, env.publisher.GetEventsByType(inventory.EventTypeLowStockDetected))

	_, err = env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 1})
	require.NoError(t, err)
	events := env.publisher.GetEventsByType(inventory.EventTypeLowStockDetected)
	require.Len(t, events, 1)
	ev := events[0].(*inventory.LowStockDetectedEvent)
	assert.Equal(t, int64(4), ev.Quantity)
	assert.Equal(t, int64(4), ev.ReorderPoint)
}

func TestLedger_PublishFailureDoesNotFailMovement(t *testing.T) {
	env := newTestEnv(t)
	itemID := env.seedItem(t, "PUB-1")
	wh := env.seedWarehouse(t)
	env.publisher.err = errors.New("bus closed")

	result := env.addStock(t, itemID, wh, 3)
	assert.Equal(t, int64(3), result.Location.Quantity)
}

func TestLedger_RetriesLostGuards(t *testing.T) {
	env := newTestEnvWithConfig(t, appinv.LedgerConfig{MaxRetries: 2, RetryBackoff: time.Millisecond})
	ctx := context.Background()
	itemID := env.seedItem(t, "RETRY-1")
	wh := env.seedWarehouse(t)
	env.addStock(t, itemID, wh, 5)

	t.Run("succeeds after a lost guard", func(t *testing.T) {
		start := env.scope.calls.Load()
		env.scope.fail = func(call int32) error {
			if call == start+1 {
				return shared.NewConflictError("GUARD_REJECTED", "lost")
			}
			return nil
		}
		defer func() { env.scope.fail = nil }()

		result, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(4), result.Location.Quantity)
		assert.Equal(t, 1, env.metrics.retries)
	})

	t.Run("exhausted retries surface a conflict", func(t *testing.T) {
		start := env.scope.calls.Load()
		env.scope.fail = func(int32) error {
			return shared.NewConflictError("GUARD_REJECTED", "lost")
		}
		defer func() { env.scope.fail = nil }()

		_, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 1})
		require.Error(t, err)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, shared.KindConflict, de.Kind)
		assert.Equal(t, "LEDGER_RETRIES_EXHAUSTED", de.Code)
		assert.Equal(t, int32(3), env.scope.calls.Load()-start)
		assert.Equal(t, int64(4), env.locationQuantity(t, itemID, wh))
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		start := env.scope.calls.Load()
		env.scope.fail = func(int32) error { return errStoreDown }
		defer func() { env.scope.fail = nil }()

		_, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 1})
		assert.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, int32(1), env.scope.calls.Load()-start)
	})
}

func TestLedger_ConcurrentRemovalsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "RACE-1")
	wh := env.seedWarehouse(t)
	env.receiveBatch(t, itemID, wh, "LOT-R1", 6, date(2024, 1, 1))
	env.receiveBatch(t, itemID, wh, "LOT-R2", 4, date(2024, 3, 1))

	const workers = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, shared.ErrInsufficientStock):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, workers-10, insufficient)
	assert.Equal(t, int64(0), env.locationQuantity(t, itemID, wh))
	env.assertConserved(t, itemID)
}

func TestLedger_Metrics(t *testing.T) {
	env := newTestEnv(t)
	itemID := env.seedItem(t, "MET-1")
	wh := env.seedWarehouse(t)

	env.addStock(t, itemID, wh, 2)
	_, err := env.stock.RemoveStock(context.Background(), appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 3})
	require.Error(t, err)

	assert.Equal(t, 1, env.metrics.movements[inventory.MovementTypeStockIn])
	assert.Equal(t, 2, env.metrics.operations[appinv.OperationRecordMovement])
	assert.Equal(t, 1, env.metrics.failures[appinv.OperationRecordMovement])
}
