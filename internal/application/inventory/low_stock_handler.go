package inventory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Alert types
const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeOutOfStock = "out_of_stock"
)

// LowStockHandler handles LowStockDetected events
// and forwards an alert when a location falls to its reorder point
type LowStockHandler struct {
	logger   *zap.Logger
	notifier StockAlertNotifier
}

// StockAlertNotifier is the interface for sending stock alerts
type StockAlertNotifier interface {
	// SendAlert sends a stock alert notification
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlert represents a stock level alert
type StockAlert struct {
	ItemID       string `json:"item_id"`
	LocationID   string `json:"location_id"`
	Bin          string `json:"bin,omitempty"`
	Quantity     string `json:"quantity"`
	ReorderPoint string `json:"reorder_point"`
	AlertType    string `json:"alert_type"` // "low_stock", "out_of_stock"
}

// NewLowStockHandler creates a new handler for low stock events
func NewLowStockHandler(logger *zap.Logger) *LowStockHandler {
	return &LowStockHandler{
		logger: logger,
	}
}

// WithNotifier sets the notifier for sending alerts
func (h *LowStockHandler) WithNotifier(notifier StockAlertNotifier) *LowStockHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockHandler) EventTypes() []string {
	return []string{inventory.EventTypeLowStockDetected}
}

// Handle processes a LowStockDetectedEvent
func (h *LowStockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	lowStock, ok := event.(*inventory.LowStockDetectedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", inventory.EventTypeLowStockDetected),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeLowStockDetected, event.EventType())
	}

	h.logger.Warn("low stock detected",
		zap.String("item_id", lowStock.ItemID.String()),
		zap.String("location_id", lowStock.LocationID.String()),
		zap.String("bin", lowStock.Bin),
		zap.Int64("quantity", lowStock.Quantity),
		zap.Int64("reorder_point", lowStock.ReorderPoint),
	)

	alertType := AlertTypeLowStock
	if lowStock.Quantity == 0 {
		alertType = AlertTypeOutOfStock
	}
	alert := StockAlert{
		ItemID:       lowStock.ItemID.String(),
		LocationID:   lowStock.LocationID.String(),
		Bin:          lowStock.Bin,
		Quantity:     strconv.FormatInt(lowStock.Quantity, 10),
		ReorderPoint: strconv.FormatInt(lowStock.ReorderPoint, 10),
		AlertType:    alertType,
	}

	if h.notifier != nil {
		if err := h.notifier.SendAlert(ctx, alert); err != nil {
			// Notification failure shouldn't fail the event handling
			h.logger.Error("failed to send stock alert notification",
				zap.String("item_id", alert.ItemID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Ensure LowStockHandler implements shared.EventHandler
var _ shared.EventHandler = (*LowStockHandler)(nil)

// LoggingStockAlertNotifier is a simple notifier that logs alerts
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{
		logger: logger,
	}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(ctx context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("item_id", alert.ItemID),
		zap.String("location_id", alert.LocationID),
		zap.String("quantity", alert.Quantity),
		zap.String("reorder_point", alert.ReorderPoint),
	)
	return nil
}
