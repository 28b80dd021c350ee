package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
)

// Operation names reported to LedgerMetrics
const (
	OperationRecordMovement = "record_movement"
	OperationTransfer       = "transfer"
	OperationCreateBatch    = "create_batch"
	OperationExpirySweep    = "expiry_sweep"
)

// LedgerMetrics receives ledger measurements. The telemetry package provides
// the OpenTelemetry implementation.
type LedgerMetrics interface {
	// MovementRecorded counts one committed movement
	MovementRecorded(ctx context.Context, movementType inventory.MovementType, quantity int64)
	// RetryAttempted counts a retry after a lost guard
	RetryAttempted(ctx context.Context, operation string)
	// OperationCompleted records duration and outcome of an operation; err may be nil
	OperationCompleted(ctx context.Context, operation string, duration time.Duration, err error)
	// ExpirySweepCompleted records how many batches a sweep transitioned
	ExpirySweepCompleted(ctx context.Context, transitioned int64)
}

type noopMetrics struct{}

func (noopMetrics) MovementRecorded(context.Context, inventory.MovementType, int64) {}

func (noopMetrics) RetryAttempted(context.Context, string) {}

func (noopMetrics) OperationCompleted(context.Context, string, time.Duration, error) {}

func (noopMetrics) ExpirySweepCompleted(context.Context, int64) {}

// NoopMetrics returns a LedgerMetrics that discards everything
func NoopMetrics() LedgerMetrics {
	return noopMetrics{}
}
