package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestLedgerMetrics(t *testing.T) {
	mp, reader := newManualMeter(t)
	m, err := telemetry.NewLedgerMetrics(mp.Meter(telemetry.LedgerMeterName))
	require.NoError(t, err)
	ctx := context.Background()

	m.MovementRecorded(ctx, inventory.MovementTypeStockIn, 10)
	m.MovementRecorded(ctx, inventory.MovementTypeStockOut, -4)
	m.MovementRecorded(ctx, inventory.MovementTypeStockOut, -2)
	m.RetryAttempted(ctx, appinv.OperationRecordMovement)
	m.OperationCompleted(ctx, appinv.OperationRecordMovement, 3*time.Millisecond, nil)
	m.OperationCompleted(ctx, appinv.OperationRecordMovement, time.Millisecond,
		fmt.Errorf("remove: %w", shared.ErrInsufficientStock))
	m.OperationCompleted(ctx, appinv.OperationTransfer, time.Millisecond, errors.New("disk on fire"))
	m.ExpirySweepCompleted(ctx, 4)
	m.ExpirySweepCompleted(ctx, 1)

	got := collect(t, reader)

	assert.Equal(t, int64(3), sumFor(t, got["ledger.movements"]))
	assert.Equal(t, int64(2), sumFor(t, got["ledger.movements"], telemetry.AttrMovementType.String("stock_out")))
	assert.Equal(t, int64(16), sumFor(t, got["ledger.movement.units"]), "units are absolute")
	assert.Equal(t, int64(1), sumFor(t, got["ledger.retries"], telemetry.AttrOperation.String(appinv.OperationRecordMovement)))

	failures := got["ledger.operation.failures"]
	assert.Equal(t, int64(2), sumFor(t, failures))
	assert.Equal(t, int64(1), sumFor(t, failures, telemetry.AttrErrorKind.String(string(shared.KindInsufficientStock))))
	assert.Equal(t, int64(1), sumFor(t, failures,
		telemetry.AttrOperation.String(appinv.OperationTransfer), telemetry.AttrErrorKind.String("INTERNAL")))

	h, ok := got["ledger.operation.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range h.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
	assert.Len(t, h.DataPoints, 3, "one series per operation and outcome")

	assert.Equal(t, int64(5), sumFor(t, got["ledger.expiry.transitions"]))
	g, ok := got["ledger.expiry.last_sweep"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(1), g.DataPoints[0].Value)
}
