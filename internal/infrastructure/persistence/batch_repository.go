package persistence

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Guarded quantity updates. Each applies only while the guard still holds, so
// concurrent writers can never drive remaining_quantity outside [0, quantity].
const (
	consumeBatchSQL = `UPDATE batches SET
	remaining_quantity = remaining_quantity - ?,
	status = CASE WHEN remaining_quantity - ? = 0 THEN 'depleted' ELSE status END,
	version = version + 1,
	updated_at = ?
WHERE id = ? AND remaining_quantity >= ? AND status IN ('active', 'expired')`

	replenishBatchSQL = `UPDATE batches SET
	remaining_quantity = remaining_quantity + ?,
	status = CASE
		WHEN status <> 'depleted' THEN status
		WHEN expiry_date IS NOT NULL AND expiry_date <= ? THEN 'expired'
		ELSE 'active'
	END,
	version = version + 1,
	updated_at = ?
WHERE id = ? AND remaining_quantity + ? <= quantity`

	markExpiredSQL = `UPDATE batches SET
	status = 'expired',
	version = version + 1,
	updated_at = ?
WHERE status = 'active' AND remaining_quantity > 0 AND expiry_date IS NOT NULL AND expiry_date <= ?`

	expiryHistogramSelect = `CASE
		WHEN expiry_date IS NULL THEN 'no_expiry'
		WHEN expiry_date <= ? THEN 'expired'
		WHEN expiry_date <= ? THEN '0-7d'
		WHEN expiry_date <= ? THEN '8-30d'
		WHEN expiry_date <= ? THEN '31-90d'
		ELSE '90d+'
	END AS bucket, COUNT(*) AS batch_count`
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, batchNotFound(id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a batch by item and batch number
func (r *GormBatchRepository) FindByNumber(ctx context.Context, itemID uuid.UUID, batchNumber string) (*inventory.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND batch_number = ?", itemID, batchNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("BATCH_NOT_FOUND", "Batch not found").
				WithDetail("item_id", itemID.String()).
				WithDetail("batch_number", batchNumber)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByNumber checks whether the batch number is taken for the item
func (r *GormBatchRepository) ExistsByNumber(ctx context.Context, itemID uuid.UUID, batchNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("item_id = ? AND batch_number = ?", itemID, batchNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new batch
func (r *GormBatchRepository) Create(ctx context.Context, batch *inventory.Batch) error {
	if err := r.db.WithContext(ctx).Create(models.BatchModelFromDomain(batch)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return duplicateBatchNumber(batch)
		}
		return err
	}
	return nil
}

// UpdateWithVersion persists the non-quantity fields and status when the stored
// version still matches batch.Version, then advances batch.Version.
func (r *GormBatchRepository) UpdateWithVersion(ctx context.Context, batch *inventory.Batch) error {
	result := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("id = ? AND version = ?", batch.ID, batch.Version).
		Updates(map[string]interface{}{
			"batch_number":       batch.BatchNumber,
			"unit_cost":          batch.UnitCost,
			"manufacturing_date": batch.ManufacturingDate,
			"expiry_date":        batch.ExpiryDate,
			"supplier_id":        batch.SupplierID,
			"status":             string(batch.Status),
			"notes":              batch.Notes,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         batch.UpdatedAt,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return duplicateBatchNumber(batch)
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, batch.ID); err != nil {
			return err
		}
		return shared.NewConflictError("VERSION_CONFLICT", "Batch was modified concurrently").
			WithDetail("batch_id", batch.ID.String()).
			WithDetail("expected_version", strconv.Itoa(batch.Version))
	}
	batch.IncrementVersion()
	return nil
}

// Delete removes a batch only if it holds no stock
func (r *GormBatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND remaining_quantity = 0", id).
		Delete(&models.BatchModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		batch, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		return batch.CheckDeletable()
	}
	return nil
}

// FindAll lists batches matching the filter, soonest expiry first by default
func (r *GormBatchRepository) FindAll(ctx context.Context, filter inventory.BatchFilter) ([]inventory.Batch, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.BatchModel{})
	if filter.ItemID != nil {
		query = query.Where("item_id = ?", *filter.ItemID)
	}
	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}
	if filter.ExpiresAfter != nil {
		query = query.Where("expiry_date > ?", filter.ExpiresAfter.UTC())
	}
	if filter.ExpiresBefore != nil {
		query = query.Where("expiry_date <= ?", filter.ExpiresBefore.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.OrderBy == "" {
		query = query.Order("expiry_date IS NULL, expiry_date ASC")
	}
	var rows []models.BatchModel
	if err := paginate(query, filter.Filter, batchSortColumns).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDomainBatches(rows), total, nil
}

// FindFEFOCandidates returns active, unexpired batches with stock at (item, location, bin),
// earliest expiry first, undated last, ties by creation time.
func (r *GormBatchRepository) FindFEFOCandidates(ctx context.Context, key inventory.LocationKey, now time.Time) ([]inventory.Batch, error) {
	var rows []models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND location_id = ? AND bin = ?", key.ItemID, key.LocationID, key.Bin).
		Where("status = ? AND remaining_quantity > 0", string(inventory.BatchStatusActive)).
		Where("expiry_date IS NULL OR expiry_date > ?", now.UTC()).
		Order("expiry_date IS NULL, expiry_date ASC, created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainBatches(rows), nil
}

// CountNonDepleted counts batches at (item, location, bin) that are not depleted,
// regardless of whether automatic selection may draw from them.
func (r *GormBatchRepository) CountNonDepleted(ctx context.Context, key inventory.LocationKey) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("item_id = ? AND location_id = ? AND bin = ?", key.ItemID, key.LocationID, key.Bin).
		Where("status <> ?", string(inventory.BatchStatusDepleted)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Consume draws qty from the batch while remaining quantity still covers it
func (r *GormBatchRepository) Consume(ctx context.Context, id uuid.UUID, qty int64, now time.Time) error {
	result := r.db.WithContext(ctx).Exec(consumeBatchSQL, qty, qty, now.UTC(), id, qty)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return guardRejected(id)
	}
	return nil
}

// Replenish returns qty to the batch while it stays within the original quantity
func (r *GormBatchRepository) Replenish(ctx context.Context, id uuid.UUID, qty int64, now time.Time) error {
	now = now.UTC()
	result := r.db.WithContext(ctx).Exec(replenishBatchSQL, qty, now, now, id, qty)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return guardRejected(id)
	}
	return nil
}

// MarkExpired moves active batches with stock whose expiry passed to expired
func (r *GormBatchRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	result := r.db.WithContext(ctx).Exec(markExpiredSQL, now, now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

type batchGroupRow struct {
	Status     string
	LocationID *uuid.UUID
	SupplierID *uuid.UUID
	BatchCount int64
	Remaining  int64
	Value      decimal.Decimal
}

type bucketRow struct {
	Bucket     string
	BatchCount int64
}

// Statistics aggregates the registry. Totals and groups cover every batch;
// the expiry histogram only counts batches that are not depleted.
func (r *GormBatchRepository) Statistics(ctx context.Context, filter inventory.StatisticsFilter, now time.Time) (*inventory.BatchStatistics, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.BatchModel{})
		if filter.ItemID != nil {
			q = q.Where("item_id = ?", *filter.ItemID)
		}
		if filter.LocationID != nil {
			q = q.Where("location_id = ?", *filter.LocationID)
		}
		return q
	}
	const aggregates = "COUNT(*) AS batch_count, COALESCE(SUM(remaining_quantity), 0) AS remaining, " +
		"COALESCE(SUM(remaining_quantity * unit_cost), 0) AS value"

	stats := &inventory.BatchStatistics{
		TotalValue:      decimal.Zero,
		ExpiryHistogram: make(map[inventory.ExpiryBucket]int64, len(inventory.AllExpiryBuckets())),
		GeneratedAt:     now.UTC(),
	}
	for _, b := range inventory.AllExpiryBuckets() {
		stats.ExpiryHistogram[b] = 0
	}

	var byStatus []batchGroupRow
	if err := scoped().Select("status, " + aggregates).Group("status").Order("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.TotalBatches += row.BatchCount
		stats.TotalRemaining += row.Remaining
		stats.TotalValue = stats.TotalValue.Add(row.Value)
		stats.ByStatus = append(stats.ByStatus, groupStats(row.Status, row))
	}

	var byLocation []batchGroupRow
	if err := scoped().Select("location_id, " + aggregates).Group("location_id").Scan(&byLocation).Error; err != nil {
		return nil, err
	}
	for _, row := range byLocation {
		stats.ByLocation = append(stats.ByLocation, groupStats(uuidKey(row.LocationID), row))
	}

	var bySupplier []batchGroupRow
	if err := scoped().Select("supplier_id, " + aggregates).Group("supplier_id").Scan(&bySupplier).Error; err != nil {
		return nil, err
	}
	for _, row := range bySupplier {
		stats.BySupplier = append(stats.BySupplier, groupStats(uuidKey(row.SupplierID), row))
	}

	bounds := inventory.NewExpiryBucketBounds(now)
	histogram := scoped().
		Select(expiryHistogramSelect, bounds.Now, bounds.Week, bounds.Month, bounds.Quarter).
		Where("status <> ?", string(inventory.BatchStatusDepleted)).
		Group("bucket")
	var buckets []bucketRow
	if err := histogram.Scan(&buckets).Error; err != nil {
		return nil, err
	}
	for _, row := range buckets {
		stats.ExpiryHistogram[inventory.ExpiryBucket(row.Bucket)] += row.BatchCount
	}

	return stats, nil
}

func groupStats(key string, row batchGroupRow) inventory.BatchGroupStats {
	return inventory.BatchGroupStats{
		Key:               key,
		BatchCount:        row.BatchCount,
		RemainingQuantity: row.Remaining,
		TotalValue:        row.Value,
	}
}

func uuidKey(id *uuid.UUID) string {
	if id == nil {
		return inventory.UnassignedGroupKey
	}
	return id.String()
}

func toDomainBatches(rows []models.BatchModel) []inventory.Batch {
	batches := make([]inventory.Batch, len(rows))
	for i := range rows {
		batches[i] = *rows[i].ToDomain()
	}
	return batches
}

func batchNotFound(id uuid.UUID) error {
	return shared.NewNotFoundError("BATCH_NOT_FOUND", "Batch not found").WithDetail("batch_id", id.String())
}

func duplicateBatchNumber(batch *inventory.Batch) error {
	return shared.NewDuplicateError("BATCH_NUMBER_EXISTS", "Batch number already exists for this item").
		WithDetail("item_id", batch.ItemID.String()).
		WithDetail("batch_number", batch.BatchNumber)
}

func guardRejected(id uuid.UUID) error {
	return shared.NewConflictError("GUARD_REJECTED", "Concurrent update rejected by quantity guard").
		WithDetail("id", id.String())
}

// Ensure GormBatchRepository implements BatchRepository
var _ inventory.BatchRepository = (*GormBatchRepository)(nil)
