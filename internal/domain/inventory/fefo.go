package inventory

import (
	"sort"
	"strconv"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchDraw is the quantity FEFO selection takes from one batch
type BatchDraw struct {
	BatchID     uuid.UUID
	BatchNumber string
	Quantity    int64
}

// FEFOPlan is the ordered list of draws satisfying a removal
type FEFOPlan struct {
	Draws []BatchDraw
	Total int64
}

// SortFEFO returns the eligible batches ordered by expiry date ascending (batches
// without an expiry last), then creation time ascending.
func SortFEFO(batches []Batch, now time.Time) []Batch {
	eligible := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if b.IsFEFOEligible(now) {
			eligible = append(eligible, b)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		ei, ej := eligible[i].ExpiryDate, eligible[j].ExpiryDate
		switch {
		case ei != nil && ej != nil:
			if !ei.Equal(*ej) {
				return ei.Before(*ej)
			}
		case ei != nil:
			return true
		case ej != nil:
			return false
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	return eligible
}

// PlanFEFO selects draws for qty units from batches, earliest expiry first.
// Only active, unexpired batches with remaining stock take part. If they cannot
// cover qty together, nothing is planned and an insufficient stock error is returned.
func PlanFEFO(batches []Batch, qty int64, now time.Time) (*FEFOPlan, error) {
	if qty <= 0 {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "Requested quantity must be positive")
	}
	plan := &FEFOPlan{Draws: make([]BatchDraw, 0, 2)}
	need := qty
	for _, b := range SortFEFO(batches, now) {
		if need == 0 {
			break
		}
		take := b.RemainingQuantity
		if take > need {
			take = need
		}
		plan.Draws = append(plan.Draws, BatchDraw{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
		})
		plan.Total += take
		need -= take
	}
	if need > 0 {
		return nil, shared.NewInsufficientStockError("FEFO_INSUFFICIENT_STOCK", "Eligible batches cannot cover the requested quantity").
			WithDetail("requested", strconv.FormatInt(qty, 10)).
			WithDetail("eligible", strconv.FormatInt(plan.Total, 10))
	}
	return plan, nil
}
