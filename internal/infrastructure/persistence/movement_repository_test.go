package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormMovementRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormMovementRepository(db, 3)
	ctx := context.Background()
	itemID := uuid.New()
	key := inventory.NewLocationKey(itemID, uuid.New(), "")

	var movements []*inventory.StockMovement
	for i := 0; i < 4; i++ {
		m, err := inventory.NewStockMovement(key, nil, 5, inventory.MovementTypeStockIn,
			inventory.MovementOptions{ReferenceID: "PO-1"}, int64(5*(i+1)), fixtureNow.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		movements = append(movements, m)
	}
	out, err := inventory.NewStockMovement(key, nil, -2, inventory.MovementTypeStockOut,
		inventory.MovementOptions{ReferenceID: "SO-9"}, 18, fixtureNow.Add(time.Hour))
	require.NoError(t, err)
	movements = append(movements, out)

	require.NoError(t, repo.CreateAll(ctx, movements))
	require.NoError(t, repo.CreateAll(ctx, nil))

	byRef, err := repo.FindByReference(ctx, "PO-1")
	require.NoError(t, err)
	require.Len(t, byRef, 4)
	assert.Equal(t, movements[0].ID, byRef[0].ID, "oldest first")

	history, err := repo.FindAll(ctx, inventory.MovementFilter{ItemID: &itemID})
	require.NoError(t, err)
	require.Len(t, history, 3, "capped at the repository limit")
	assert.Equal(t, out.ID, history[0].ID, "newest first")
	assert.Equal(t, int64(-2), history[0].Quantity)
	assert.Equal(t, int64(18), history[0].BalanceAfter)

	history, err = repo.FindAll(ctx, inventory.MovementFilter{
		ItemID: &itemID,
		Types:  []inventory.MovementType{inventory.MovementTypeStockOut},
	})
	require.NoError(t, err)
	require.Len(t, history, 1)

	from := fixtureNow.Add(2 * time.Minute)
	to := fixtureNow.Add(30 * time.Minute)
	history, err = repo.FindAll(ctx, inventory.MovementFilter{ItemID: &itemID, From: &from, To: &to, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
