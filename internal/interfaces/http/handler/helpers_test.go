package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total    int64 `json:"total"`
		Page     int   `json:"page"`
		PageSize int   `json:"page_size"`
	} `json:"meta"`
}

type handlerEnv struct {
	db        *gorm.DB
	router    *gin.Engine
	directory *persistence.GormDirectory
	items     *inventoryapp.ItemService
	batches   *inventoryapp.BatchService
	stock     *inventoryapp.StockService
	transfers *inventoryapp.TransferService
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	dsn := persistence.SQLiteDSN(uuid.NewString(), "mode=memory&cache=shared")
	db, err := gorm.Open(sqlite.Open(dsn), persistence.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	log := zaptest.NewLogger(t)
	scope := persistence.NewGormTransactionScope(db, 0)
	directory := persistence.NewGormDirectory(db)
	itemRepo := persistence.NewGormItemRepository(db)
	batchRepo := persistence.NewGormBatchRepository(db)
	locationRepo := persistence.NewGormLocationInventoryRepository(db)
	movementRepo := persistence.NewGormMovementRepository(db, 50)

	ledger := inventoryapp.NewLedgerService(scope, directory,
		inventoryapp.LedgerConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, log)

	env := &handlerEnv{
		db:        db,
		router:    gin.New(),
		directory: directory,
		items:     inventoryapp.NewItemService(itemRepo),
		batches:   inventoryapp.NewBatchService(ledger, batchRepo, itemRepo, directory),
		stock:     inventoryapp.NewStockService(ledger, scope, itemRepo, locationRepo, movementRepo, directory, 50),
		transfers: inventoryapp.NewTransferService(ledger, locationRepo, batchRepo, movementRepo, directory, log),
	}
	env.router.Use(middleware.RequestID(), middleware.Actor())
	return env
}

func (e *handlerEnv) seedItem(t *testing.T, sku string) uuid.UUID {
	t.Helper()
	item, err := e.items.CreateItem(context.Background(), inventoryapp.CreateItemRequest{
		SKU:            sku,
		Name:           "Item " + sku,
		PackSize:       12,
		BoxesPerCarton: 4,
	})
	require.NoError(t, err)
	return item.ID
}

func (e *handlerEnv) seedWarehouse(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.directory.RegisterWarehouse(context.Background(), id, "WH-"+id.String()[:8], "Warehouse"))
	return id
}

func (e *handlerEnv) addStock(t *testing.T, itemID, locationID uuid.UUID, qty int64) {
	t.Helper()
	_, err := e.stock.AddStock(context.Background(), inventoryapp.StockChangeRequest{
		ItemID:     itemID,
		LocationID: locationID,
		Quantity:   qty,
	})
	require.NoError(t, err)
}

func (e *handlerEnv) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	return doRequest(t, e.router, method, path, body, headers...)
}

// doRequest sends body as JSON; headers are name/value pairs
func doRequest(t *testing.T, router http.Handler, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}
