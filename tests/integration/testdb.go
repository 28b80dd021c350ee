// Package integration runs the stock ledger against real PostgreSQL and Redis
// instances started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/migration"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const postgresImage = "postgres:16-alpine"

// ledgerTables are truncated between tests sharing a container
var ledgerTables = []string{
	"stock_movements", "location_inventories", "batches", "items", "warehouses", "suppliers",
}

// sharedPG is the package wide container, started and migrated on first use
var sharedPG struct {
	mu        sync.Mutex
	container testcontainers.Container
	dsn       string
}

// TestDB is a migrated PostgreSQL database and an open pool on it
type TestDB struct {
	DB    *gorm.DB
	SqlDB *sql.DB
}

// NewTestDB starts a dedicated container, for tests that change the schema.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, dsn := startPostgres(t, ctx, "stock_test")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	tdb := open(t, dsn)
	migrateUp(t, tdb.SqlDB)
	return tdb
}

// NewSharedTestDB connects to the package container with every ledger
// table emptied.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	sharedPG.mu.Lock()
	if sharedPG.container == nil {
		sharedPG.container, sharedPG.dsn = startPostgres(t, context.Background(), "stock_shared_test")
		boot := open(t, sharedPG.dsn)
		migrateUp(t, boot.SqlDB)
	}
	dsn := sharedPG.dsn
	sharedPG.mu.Unlock()

	tdb := open(t, dsn)
	require.NoError(t, tdb.DB.Exec("TRUNCATE TABLE "+strings.Join(ledgerTables, ", ")+" CASCADE").Error,
		"Failed to truncate ledger tables")
	return tdb
}

// StopSharedPostgres terminates the package container. TestMain calls it
// once every test has run.
func StopSharedPostgres() {
	sharedPG.mu.Lock()
	defer sharedPG.mu.Unlock()
	if sharedPG.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = sharedPG.container.Terminate(ctx)
	sharedPG.container, sharedPG.dsn = nil, ""
}

func startPostgres(t *testing.T, ctx context.Context, database string) (testcontainers.Container, string) {
	t.Helper()

	container, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase(database),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")
	return container, dsn
}

// open connects with the gorm settings the server uses. TEST_DB_DEBUG=1
// echoes every statement.
func open(t *testing.T, dsn string) *TestDB {
	t.Helper()

	level := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = logger.Info
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), persistence.GormConfig(logger.Default.LogMode(level)))
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// the concurrency tests need real contention on the pool
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{DB: db, SqlDB: sqlDB}
}

func migrateUp(t *testing.T, sqlDB *sql.DB) {
	t.Helper()
	path := findMigrationsPath()
	require.NotEmpty(t, path, "Could not find migrations directory")

	m, err := migration.New(sqlDB, path, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// findMigrationsPath walks up from this file to the repository's migrations
// directory
func findMigrationsPath() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	for dir := filepath.Dir(file); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return ""
}
