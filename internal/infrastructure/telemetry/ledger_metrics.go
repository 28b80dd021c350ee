package telemetry

import (
	"context"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
)

// LedgerMeterName is the instrumentation scope of the ledger instruments
const LedgerMeterName = "github.com/erp/stockledger/ledger"

// Outcome values attached to ledger.operation.duration
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// LedgerMetrics records ledger activity as OpenTelemetry instruments.
type LedgerMetrics struct {
	movements        metric.Int64Counter
	movementUnits    metric.Int64Counter
	retries          metric.Int64Counter
	failures         metric.Int64Counter
	duration         metric.Float64Histogram
	sweepTransitions metric.Int64Counter
	lastSweepBatches metric.Int64Gauge
}

// NewLedgerMetrics registers the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	in := NewInstruments(meter)
	m := &LedgerMetrics{
		movements:        in.Counter("ledger.movements", "Committed stock movements", "{movement}"),
		movementUnits:    in.Counter("ledger.movement.units", "Absolute base units moved", "{unit}"),
		retries:          in.Counter("ledger.retries", "Retries after a lost guarded update", "{retry}"),
		failures:         in.Counter("ledger.operation.failures", "Failed ledger operations by error kind", "{operation}"),
		duration:         in.Histogram("ledger.operation.duration", "Duration of ledger operations including retries", "s", OperationDurationBuckets...),
		sweepTransitions: in.Counter("ledger.expiry.transitions", "Batches moved to expired by sweeps", "{batch}"),
		lastSweepBatches: in.Gauge("ledger.expiry.last_sweep", "Batches expired by the most recent sweep", "{batch}"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LedgerMetrics) MovementRecorded(ctx context.Context, movementType inventory.MovementType, quantity int64) {
	attrs := metric.WithAttributes(AttrMovementType.String(string(movementType)))
	m.movements.Add(ctx, 1, attrs)
	if quantity < 0 {
		quantity = -quantity
	}
	m.movementUnits.Add(ctx, quantity, attrs)
}

func (m *LedgerMetrics) RetryAttempted(ctx context.Context, operation string) {
	m.retries.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation)))
}

// OperationCompleted records duration and, on failure, the error kind.
func (m *LedgerMetrics) OperationCompleted(ctx context.Context, operation string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
		m.failures.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation), AttrErrorKind.String(errorKind(err))))
	}
	RecordSeconds(ctx, m.duration, duration, AttrOperation.String(operation), AttrOutcome.String(outcome))
}

func (m *LedgerMetrics) ExpirySweepCompleted(ctx context.Context, transitioned int64) {
	m.sweepTransitions.Add(ctx, transitioned)
	m.lastSweepBatches.Record(ctx, transitioned)
}

func errorKind(err error) string {
	if kind := shared.KindOf(err); kind != "" {
		return string(kind)
	}
	return "INTERNAL"
}

var _ appinv.LedgerMetrics = (*LedgerMetrics)(nil)
