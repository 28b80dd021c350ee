package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpiryBucket groups non-depleted batches by time left until expiry
type ExpiryBucket string

const (
	ExpiryBucketExpired  ExpiryBucket = "expired"
	ExpiryBucket0To7     ExpiryBucket = "0-7d"
	ExpiryBucket8To30    ExpiryBucket = "8-30d"
	ExpiryBucket31To90   ExpiryBucket = "31-90d"
	ExpiryBucketOver90   ExpiryBucket = "90d+"
	ExpiryBucketNoExpiry ExpiryBucket = "no_expiry"
)

// AllExpiryBuckets returns the buckets in display order
func AllExpiryBuckets() []ExpiryBucket {
	return []ExpiryBucket{
		ExpiryBucketExpired,
		ExpiryBucket0To7,
		ExpiryBucket8To30,
		ExpiryBucket31To90,
		ExpiryBucketOver90,
		ExpiryBucketNoExpiry,
	}
}

// ExpiryBucketBounds are the upper bounds of the dated buckets relative to now.
// A batch lands in the first bucket whose bound it does not exceed.
type ExpiryBucketBounds struct {
	Now     time.Time
	Week    time.Time
	Month   time.Time
	Quarter time.Time
}

// NewExpiryBucketBounds computes the bounds for now
func NewExpiryBucketBounds(now time.Time) ExpiryBucketBounds {
	now = now.UTC()
	return ExpiryBucketBounds{
		Now:     now,
		Week:    now.AddDate(0, 0, 7),
		Month:   now.AddDate(0, 0, 30),
		Quarter: now.AddDate(0, 0, 90),
	}
}

// BucketFor returns the bucket of an expiry date
func (b ExpiryBucketBounds) BucketFor(expiry *time.Time) ExpiryBucket {
	switch {
	case expiry == nil:
		return ExpiryBucketNoExpiry
	case !expiry.After(b.Now):
		return ExpiryBucketExpired
	case !expiry.After(b.Week):
		return ExpiryBucket0To7
	case !expiry.After(b.Month):
		return ExpiryBucket8To30
	case !expiry.After(b.Quarter):
		return ExpiryBucket31To90
	}
	return ExpiryBucketOver90
}

// BatchGroupStats aggregates batches sharing a grouping key
type BatchGroupStats struct {
	Key               string          `json:"key"`
	BatchCount        int64           `json:"batch_count"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	TotalValue        decimal.Decimal `json:"total_value"`
}

// BatchStatistics summarizes the batch registry
type BatchStatistics struct {
	TotalBatches    int64                  `json:"total_batches"`
	TotalRemaining  int64                  `json:"total_remaining"`
	TotalValue      decimal.Decimal        `json:"total_value"`
	ByStatus        []BatchGroupStats      `json:"by_status"`
	ByLocation      []BatchGroupStats      `json:"by_location"`
	BySupplier      []BatchGroupStats      `json:"by_supplier"`
	ExpiryHistogram map[ExpiryBucket]int64 `json:"expiry_histogram"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// StatisticsFilter narrows the statistics to one item or location
type StatisticsFilter struct {
	ItemID     *uuid.UUID
	LocationID *uuid.UUID
}

// UnassignedGroupKey labels batches without a location or supplier
const UnassignedGroupKey = "unassigned"
