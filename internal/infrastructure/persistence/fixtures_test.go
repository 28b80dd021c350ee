package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixtureNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seedItem(t *testing.T, db *gorm.DB, sku string) *inventory.Item {
	t.Helper()
	item, err := inventory.NewItem(sku, "Item "+sku, 12, 4, fixtureNow)
	require.NoError(t, err)
	require.NoError(t, NewGormItemRepository(db).Create(context.Background(), item))
	return item
}

func seedWarehouse(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, NewGormDirectory(db).RegisterWarehouse(context.Background(), id, "WH-"+id.String()[:8], "Main"))
	return id
}

func seedBatch(t *testing.T, db *gorm.DB, itemID, locationID uuid.UUID, number string, qty int64, expiry *time.Time, createdAt time.Time) *inventory.Batch {
	t.Helper()
	batch, err := inventory.NewBatch(inventory.NewBatchParams{
		ItemID:      itemID,
		BatchNumber: number,
		Quantity:    qty,
		UnitCost:    decimal.NewFromFloat(2.5),
		ExpiryDate:  expiry,
		LocationID:  &locationID,
	}, createdAt)
	require.NoError(t, err)
	require.NoError(t, NewGormBatchRepository(db).Create(context.Background(), batch))
	return batch
}

func days(n int) *time.Time {
	t := fixtureNow.AddDate(0, 0, n)
	return &t
}
