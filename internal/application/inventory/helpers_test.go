package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2023, 12, 1, 8, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		events: make([]shared.DomainEvent, 0),
	}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return m.err
}

func (m *MockEventPublisher) GetEvents() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, len(m.events))
	copy(result, m.events)
	return result
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

func (m *MockEventPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make([]shared.DomainEvent, 0)
}

// recordingMetrics counts what the ledger reports
type recordingMetrics struct {
	mu          sync.Mutex
	movements   map[inventory.MovementType]int
	retries     int
	operations  map[string]int
	failures    map[string]int
	transitions int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		movements:  make(map[inventory.MovementType]int),
		operations: make(map[string]int),
		failures:   make(map[string]int),
	}
}

func (r *recordingMetrics) MovementRecorded(_ context.Context, t inventory.MovementType, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements[t]++
}

func (r *recordingMetrics) RetryAttempted(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *recordingMetrics) OperationCompleted(_ context.Context, op string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[op]++
	if err != nil {
		r.failures[op]++
	}
}

func (r *recordingMetrics) ExpirySweepCompleted(_ context.Context, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions += n
}

// scriptedScope wraps a scope and fails chosen Execute calls
type scriptedScope struct {
	inner appinv.TransactionScope
	calls atomic.Int32
	fail  func(call int32) error
}

func (s *scriptedScope) Execute(ctx context.Context, fn func(appinv.TransactionalRepositories) error) error {
	call := s.calls.Add(1)
	if s.fail != nil {
		if err := s.fail(call); err != nil {
			return err
		}
	}
	return s.inner.Execute(ctx, fn)
}

type testEnv struct {
	db        *gorm.DB
	scope     *scriptedScope
	directory *persistence.GormDirectory
	ledger    *appinv.LedgerService
	batches   *appinv.BatchService
	stock     *appinv.StockService
	transfers *appinv.TransferService
	items     *appinv.ItemService
	publisher *MockEventPublisher
	metrics   *recordingMetrics
	log       *zap.Logger
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := persistence.SQLiteDSN(uuid.NewString(), "mode=memory&cache=shared")
	db, err := gorm.Open(sqlite.Open(dsn), persistence.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, appinv.LedgerConfig{MaxRetries: 3, RetryBackoff: time.Millisecond})
}

func newTestEnvWithConfig(t *testing.T, cfg appinv.LedgerConfig) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := zaptest.NewLogger(t)

	scope := &scriptedScope{inner: persistence.NewGormTransactionScope(db, 0)}
	directory := persistence.NewGormDirectory(db)
	itemRepo := persistence.NewGormItemRepository(db)
	batchRepo := persistence.NewGormBatchRepository(db)
	locationRepo := persistence.NewGormLocationInventoryRepository(db)
	movementRepo := persistence.NewGormMovementRepository(db, 50)

	publisher := NewMockEventPublisher()
	metrics := newRecordingMetrics()
	ledger := appinv.NewLedgerService(scope, directory, cfg, log)
	ledger.SetEventPublisher(publisher)
	ledger.SetMetrics(metrics)
	ledger.SetClock(func() time.Time { return testNow })

	return &testEnv{
		db:        db,
		scope:     scope,
		directory: directory,
		ledger:    ledger,
		batches:   appinv.NewBatchService(ledger, batchRepo, itemRepo, directory),
		stock:     appinv.NewStockService(ledger, scope, itemRepo, locationRepo, movementRepo, directory, 50),
		transfers: appinv.NewTransferService(ledger, locationRepo, batchRepo, movementRepo, directory, log),
		items:     appinv.NewItemService(itemRepo),
		publisher: publisher,
		metrics:   metrics,
		log:       log,
	}
}

func (e *testEnv) seedItem(t *testing.T, sku string) uuid.UUID {
	t.Helper()
	item, err := e.items.CreateItem(context.Background(), appinv.CreateItemRequest{
		SKU:            sku,
		Name:           "Item " + sku,
		PackSize:       10,
		BoxesPerCarton: 6,
	})
	require.NoError(t, err)
	return item.ID
}

func (e *testEnv) seedWarehouse(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.directory.RegisterWarehouse(context.Background(), id, "WH-"+id.String()[:8], "Warehouse"))
	return id
}

func (e *testEnv) receiveBatch(t *testing.T, itemID, locationID uuid.UUID, number string, qty int64, expiry *time.Time) *appinv.BatchResponse {
	t.Helper()
	batch, err := e.batches.CreateBatch(context.Background(), appinv.CreateBatchRequest{
		ItemID:      itemID,
		BatchNumber: number,
		Quantity:    qty,
		UnitCost:    decimal.NewFromInt(3),
		ExpiryDate:  expiry,
		LocationID:  &locationID,
	})
	require.NoError(t, err)
	return batch
}

func (e *testEnv) addStock(t *testing.T, itemID, locationID uuid.UUID, qty int64) *appinv.LedgerResult {
	t.Helper()
	result, err := e.stock.AddStock(context.Background(), appinv.StockChangeRequest{
		ItemID:     itemID,
		LocationID: locationID,
		Quantity:   qty,
	})
	require.NoError(t, err)
	return result
}

func (e *testEnv) locationQuantity(t *testing.T, itemID, locationID uuid.UUID) int64 {
	t.Helper()
	stock, err := e.stock.GetStock(context.Background(), itemID, locationID, "")
	require.NoError(t, err)
	return stock.Quantity
}

func (e *testEnv) batchRemaining(t *testing.T, id uuid.UUID) (int64, string) {
	t.Helper()
	b, err := e.batches.GetBatch(context.Background(), id)
	require.NoError(t, err)
	return b.RemainingQuantity, b.Status
}

// assertConserved checks that batch, location and item totals agree for a
// lot-tracked item
func (e *testEnv) assertConserved(t *testing.T, itemID uuid.UUID) {
	t.Helper()
	var batchTotal, locationTotal int64
	require.NoError(t, e.db.Model(&models.BatchModel{}).
		Where("item_id = ? AND status <> ?", itemID, "depleted").
		Select("COALESCE(SUM(remaining_quantity), 0)").Scan(&batchTotal).Error)
	require.NoError(t, e.db.Model(&models.LocationInventoryModel{}).
		Where("item_id = ?", itemID).
		Select("COALESCE(SUM(quantity), 0)").Scan(&locationTotal).Error)
	item, err := e.items.GetItem(context.Background(), itemID)
	require.NoError(t, err)

	assert.Equal(t, batchTotal, locationTotal, "batch remaining vs location quantity")
	assert.Equal(t, locationTotal, item.CurrentStock, "location quantity vs item current stock")
}

func (e *testEnv) movementCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.StockMovementModel{}).Count(&n).Error)
	return n
}

var errStoreDown = errors.New("store unavailable")
