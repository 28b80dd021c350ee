package inventory_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockService_AddAndRemove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "STK-1")
	wh := env.seedWarehouse(t)

	result := env.addStock(t, itemID, wh, 20)
	assert.Equal(t, int64(20), result.Location.Quantity)
	assert.Equal(t, int64(20), result.Item.CurrentStock)

	result, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 7})
	require.NoError(t, err)
	require.Len(t, result.Movements, 1)
	assert.Equal(t, int64(-7), result.Movements[0].Quantity)
	assert.Equal(t, int64(13), result.Movements[0].BalanceAfter)
	assert.Equal(t, int64(13), result.Item.CurrentStock)

	_, err = env.stock.AddStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 0})
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: -3})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestStockService_Bins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "BIN-1")
	wh := env.seedWarehouse(t)

	env.addStock(t, itemID, wh, 5)
	_, err := env.stock.AddStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Bin: "A-01", Quantity: 3})
	require.NoError(t, err)

	binStock, err := env.stock.GetStock(ctx, itemID, wh, "A-01")
	require.NoError(t, err)
	assert.Equal(t, int64(3), binStock.Quantity)
	assert.Equal(t, int64(5), env.locationQuantity(t, itemID, wh))

	rows, err := env.stock.GetStockByItem(ctx, itemID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	item, err := env.items.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.CurrentStock)
}

func TestStockService_AdjustStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "ADJ-1")
	wh := env.seedWarehouse(t)

	t.Run("first adjustment creates the row", func(t *testing.T) {
		result, err := env.stock.AdjustStock(ctx, appinv.AdjustStockRequest{ItemID: itemID, LocationID: wh, NewQuantity: 12})
		require.NoError(t, err)
		require.Len(t, result.Movements, 1)
		assert.Equal(t, "adjust", result.Movements[0].Type)
		assert.Equal(t, int64(12), result.Movements[0].Quantity)
	})

	t.Run("downward adjustment", func(t *testing.T) {
		result, err := env.stock.AdjustStock(ctx, appinv.AdjustStockRequest{ItemID: itemID, LocationID: wh, NewQuantity: 9})
		require.NoError(t, err)
		assert.Equal(t, int64(-3), result.Movements[0].Quantity)
		assert.Equal(t, int64(9), result.Location.Quantity)
		assert.Equal(t, int64(9), result.Item.CurrentStock)
	})

	t.Run("no change writes no movement", func(t *testing.T) {
		before := env.movementCount(t)
		result, err := env.stock.AdjustStock(ctx, appinv.AdjustStockRequest{ItemID: itemID, LocationID: wh, NewQuantity: 9})
		require.NoError(t, err)
		assert.Empty(t, result.Movements)
		assert.Equal(t, int64(9), result.Location.Quantity)
		assert.Equal(t, before, env.movementCount(t))
	})

	t.Run("target below allocated", func(t *testing.T) {
		_, err := env.stock.Allocate(ctx, appinv.AllocationRequest{ItemID: itemID, LocationID: wh, Quantity: 4})
		require.NoError(t, err)
		_, err = env.stock.AdjustStock(ctx, appinv.AdjustStockRequest{ItemID: itemID, LocationID: wh, NewQuantity: 3})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrValidation))
		assert.Equal(t, int64(9), env.locationQuantity(t, itemID, wh))
	})

	t.Run("unknown location", func(t *testing.T) {
		_, err := env.stock.AdjustStock(ctx, appinv.AdjustStockRequest{ItemID: itemID, LocationID: uuid.New(), NewQuantity: 1})
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestStockService_AdjustStockAfterConcurrentRemoval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "ADJ-RACE")
	wh := env.seedWarehouse(t)
	env.addStock(t, itemID, wh, 100)

	// Another writer commits a removal just before the adjustment's transaction
	var interleaved atomic.Bool
	env.scope.fail = func(int32) error {
		if interleaved.CompareAndSwap(false, true) {
			_, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 30})
			require.NoError(t, err)
		}
		return nil
	}

	result, err := env.stock.AdjustStock(ctx, appinv.AdjustStockRequest{ItemID: itemID, LocationID: wh, NewQuantity: 50})
	require.NoError(t, err)
	require.Len(t, result.Movements, 1)
	assert.Equal(t, int64(-20), result.Movements[0].Quantity)
	assert.Equal(t, int64(50), result.Movements[0].BalanceAfter)
	assert.Equal(t, int64(50), result.Location.Quantity)
	assert.Equal(t, int64(50), result.Item.CurrentStock)
	assert.Equal(t, int64(50), env.locationQuantity(t, itemID, wh))
}

func TestLedger_TargetQuantityRequiresAdjust(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "ADJ-TYPE")
	wh := env.seedWarehouse(t)
	target := int64(5)

	_, err := env.ledger.RecordMovement(ctx, appinv.MovementRequest{
		ItemID:         itemID,
		LocationID:     wh,
		TargetQuantity: &target,
		Type:           inventory.MovementTypeStockIn,
	})
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	negative := int64(-1)
	_, err = env.ledger.RecordMovement(ctx, appinv.MovementRequest{
		ItemID:         itemID,
		LocationID:     wh,
		TargetQuantity: &negative,
		Type:           inventory.MovementTypeAdjust,
	})
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	assert.Zero(t, env.movementCount(t))
}

func TestStockService_Allocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "ALLOC-1")
	wh := env.seedWarehouse(t)
	env.addStock(t, itemID, wh, 10)

	req := appinv.AllocationRequest{ItemID: itemID, LocationID: wh, Quantity: 6}
	stock, err := env.stock.Allocate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stock.Allocated)
	assert.Equal(t, int64(4), stock.Available)

	_, err = env.stock.Allocate(ctx, appinv.AllocationRequest{ItemID: itemID, LocationID: wh, Quantity: 5})
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	_, err = env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 5})
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock), "allocated stock cannot be removed")

	_, err = env.stock.Release(ctx, appinv.AllocationRequest{ItemID: itemID, LocationID: wh, Quantity: 7})
	assert.True(t, errors.Is(err, shared.ErrValidation))

	stock, err = env.stock.Release(ctx, appinv.AllocationRequest{ItemID: itemID, LocationID: wh, Quantity: 6})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stock.Allocated)
	assert.Equal(t, int64(10), stock.Available)

	_, err = env.stock.Allocate(ctx, appinv.AllocationRequest{ItemID: itemID, LocationID: env.seedWarehouse(t), Quantity: 1})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestStockService_ReorderPointAndLowStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "LOW-1")
	wh := env.seedWarehouse(t)
	other := env.seedWarehouse(t)

	stock, err := env.stock.SetReorderPoint(ctx, appinv.ReorderPointRequest{ItemID: itemID, LocationID: wh, ReorderPoint: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stock.Quantity)
	assert.True(t, stock.IsLowStock)

	env.addStock(t, itemID, wh, 8)
	env.addStock(t, itemID, other, 2)

	low, err := env.stock.GetLowStock(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, low, "rows without a reorder point never flag")

	threshold := int64(3)
	low, err = env.stock.GetLowStock(ctx, &threshold)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, other, low[0].LocationID)

	_, err = env.stock.RemoveStock(ctx, appinv.StockChangeRequest{ItemID: itemID, LocationID: wh, Quantity: 4})
	require.NoError(t, err)
	low, err = env.stock.GetLowStock(ctx, nil)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, wh, low[0].LocationID)

	negative := int64(-1)
	_, err = env.stock.GetLowStock(ctx, &negative)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = env.stock.SetReorderPoint(ctx, appinv.ReorderPointRequest{ItemID: itemID, LocationID: wh, ReorderPoint: -2})
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = env.stock.SetReorderPoint(ctx, appinv.ReorderPointRequest{ItemID: uuid.New(), LocationID: wh, ReorderPoint: 1})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestStockService_Lookups(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "LOOK-1")
	wh := env.seedWarehouse(t)

	_, err := env.stock.GetStock(ctx, itemID, wh, "")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	env.addStock(t, itemID, wh, 4)
	rows, err := env.stock.GetStockByLocation(ctx, wh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, itemID, rows[0].ItemID)

	_, err = env.stock.GetStockByLocation(ctx, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	_, err = env.stock.GetStockByItem(ctx, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestStockService_GetMovementHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	itemID := env.seedItem(t, "HIST-1")
	wh := env.seedWarehouse(t)

	for i := 0; i < 60; i++ {
		env.addStock(t, itemID, wh, 1)
	}
	_, err := env.stock.RemoveStock(ctx, appinv.StockChangeRequest{
		ItemID:     itemID,
		LocationID: wh,
		Quantity:   2,
		Options:    inventory.MovementOptions{ReferenceID: "SO-9"},
	})
	require.NoError(t, err)

	t.Run("limit is clamped", func(t *testing.T) {
		history, err := env.stock.GetMovementHistory(ctx, appinv.MovementHistoryFilter{ItemID: &itemID, Limit: 1000})
		require.NoError(t, err)
		assert.Len(t, history, 50)

		history, err = env.stock.GetMovementHistory(ctx, appinv.MovementHistoryFilter{ItemID: &itemID, Limit: 5})
		require.NoError(t, err)
		assert.Len(t, history, 5)
	})

	t.Run("filter by type and reference", func(t *testing.T) {
		history, err := env.stock.GetMovementHistory(ctx, appinv.MovementHistoryFilter{Types: []string{"stock_out"}})
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "SO-9", history[0].ReferenceID)

		history, err = env.stock.GetMovementHistory(ctx, appinv.MovementHistoryFilter{ReferenceID: "SO-9", LocationID: &wh})
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("time range", func(t *testing.T) {
		from := testNow.Add(-time.Hour)
		to := testNow.Add(time.Hour)
		history, err := env.stock.GetMovementHistory(ctx, appinv.MovementHistoryFilter{ItemID: &itemID, From: &from, To: &to, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, history, 10)

		_, err = env.stock.GetMovementHistory(ctx, appinv.MovementHistoryFilter{From: &to, To: &from})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := env.stock.GetMovementHistory(ctx, appinv.MovementHistoryFilter{Types: []string{"teleport"}})
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}
