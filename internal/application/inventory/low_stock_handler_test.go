package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockStockAlertNotifier is a mock notifier for testing
type MockStockAlertNotifier struct {
	mu     sync.Mutex
	alerts []appinv.StockAlert
	err    error
}

func NewMockStockAlertNotifier() *MockStockAlertNotifier {
	return &MockStockAlertNotifier{
		alerts: make([]appinv.StockAlert, 0),
	}
}

func (n *MockStockAlertNotifier) SendAlert(ctx context.Context, alert appinv.StockAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.err
}

func (n *MockStockAlertNotifier) GetAlerts() []appinv.StockAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := make([]appinv.StockAlert, len(n.alerts))
	copy(result, n.alerts)
	return result
}

func (n *MockStockAlertNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = make([]appinv.StockAlert, 0)
	n.err = nil
}

func lowStockEvent(qty, reorderPoint int64) *inventory.LowStockDetectedEvent {
	loc, _ := inventory.NewLocationInventory(inventory.NewLocationKey(uuid.New(), uuid.New(), "A-1"), testNow)
	loc.Quantity = qty
	loc.ReorderPoint = reorderPoint
	return inventory.NewLowStockDetectedEvent(loc, testNow)
}

func TestLowStockHandler_Handle(t *testing.T) {
	logger := zaptest.NewLogger(t)
	notifier := NewMockStockAlertNotifier()

	handler := appinv.NewLowStockHandler(logger).
		WithNotifier(notifier)

	t.Run("handles low stock event", func(t *testing.T) {
		notifier.Reset()
		event := lowStockEvent(3, 5)

		err := handler.Handle(context.Background(), event)
		require.NoError(t, err)

		alerts := notifier.GetAlerts()
		require.Len(t, alerts, 1)
		assert.Equal(t, appinv.AlertTypeLowStock, alerts[0].AlertType)
		assert.Equal(t, event.ItemID.String(), alerts[0].ItemID)
		assert.Equal(t, event.LocationID.String(), alerts[0].LocationID)
		assert.Equal(t, "A-1", alerts[0].Bin)
		assert.Equal(t, "3", alerts[0].Quantity)
		assert.Equal(t, "5", alerts[0].ReorderPoint)
	})

	t.Run("detects out of stock", func(t *testing.T) {
		notifier.Reset()

		err := handler.Handle(context.Background(), lowStockEvent(0, 5))
		require.NoError(t, err)

		alerts := notifier.GetAlerts()
		require.Len(t, alerts, 1)
		assert.Equal(t, appinv.AlertTypeOutOfStock, alerts[0].AlertType)
	})

	t.Run("notifier failure is not returned", func(t *testing.T) {
		notifier.Reset()
		notifier.err = errors.New("smtp down")

		err := handler.Handle(context.Background(), lowStockEvent(1, 2))
		assert.NoError(t, err)
		assert.Len(t, notifier.GetAlerts(), 1)
	})

	t.Run("returns error for wrong event type", func(t *testing.T) {
		notifier.Reset()

		err := handler.Handle(context.Background(), inventory.NewBatchesExpiredEvent(2, testNow))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected event type")
		assert.Empty(t, notifier.GetAlerts())
	})
}

func TestLowStockHandler_WithoutNotifier(t *testing.T) {
	handler := appinv.NewLowStockHandler(zaptest.NewLogger(t))
	assert.NoError(t, handler.Handle(context.Background(), lowStockEvent(1, 4)))
}

func TestLowStockHandler_EventTypes(t *testing.T) {
	handler := appinv.NewLowStockHandler(zaptest.NewLogger(t))
	assert.Equal(t, []string{inventory.EventTypeLowStockDetected}, handler.EventTypes())
}

func TestLoggingStockAlertNotifier(t *testing.T) {
	notifier := appinv.NewLoggingStockAlertNotifier(zaptest.NewLogger(t))
	err := notifier.SendAlert(context.Background(), appinv.StockAlert{
		ItemID:    uuid.NewString(),
		AlertType: appinv.AlertTypeLowStock,
	})
	assert.NoError(t, err)
}
