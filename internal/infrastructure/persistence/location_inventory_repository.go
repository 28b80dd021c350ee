package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLocationInventoryRepository implements LocationInventoryRepository using GORM
type GormLocationInventoryRepository struct {
	db *gorm.DB
}

// NewGormLocationInventoryRepository creates a new GormLocationInventoryRepository
func NewGormLocationInventoryRepository(db *gorm.DB) *GormLocationInventoryRepository {
	return &GormLocationInventoryRepository{db: db}
}

func (r *GormLocationInventoryRepository) byKey(ctx context.Context, key inventory.LocationKey) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.LocationInventoryModel{}).
		Where("item_id = ? AND location_id = ? AND bin = ?", key.ItemID, key.LocationID, key.Bin)
}

// Find finds the aggregate for key
func (r *GormLocationInventoryRepository) Find(ctx context.Context, key inventory.LocationKey) (*inventory.LocationInventory, error) {
	var model models.LocationInventoryModel
	if err := r.byKey(ctx, key).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, locationInventoryNotFound(key)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOrCreate returns the aggregate for key, inserting an empty row on first use.
// Concurrent first uses race on the unique key; the loser's insert is a no-op.
func (r *GormLocationInventoryRepository) FindOrCreate(ctx context.Context, key inventory.LocationKey) (*inventory.LocationInventory, error) {
	existing, err := r.Find(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !shared.IsKind(err, shared.KindNotFound) {
		return nil, err
	}

	fresh, err := inventory.NewLocationInventory(key, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.LocationInventoryModelFromDomain(fresh)).Error; err != nil {
		return nil, err
	}
	return r.Find(ctx, key)
}

// FindForUpdate returns the aggregate for key, creating it on first use, and
// holds a row lock on it until the surrounding transaction ends. SQLite has no
// row locks and drops the clause.
func (r *GormLocationInventoryRepository) FindForUpdate(ctx context.Context, key inventory.LocationKey) (*inventory.LocationInventory, error) {
	if _, err := r.FindOrCreate(ctx, key); err != nil {
		return nil, err
	}
	var model models.LocationInventoryModel
	if err := r.byKey(ctx, key).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, locationInventoryNotFound(key)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ApplyDelta adds delta to quantity while quantity + delta stays at or above allocated
func (r *GormLocationInventoryRepository) ApplyDelta(ctx context.Context, key inventory.LocationKey, delta int64) error {
	result := r.byKey(ctx, key).
		Where("quantity + ? >= allocated", delta).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity + ?", delta),
		})
	return r.guarded(ctx, key, result)
}

// Allocate moves qty from available to allocated while available covers it
func (r *GormLocationInventoryRepository) Allocate(ctx context.Context, key inventory.LocationKey, qty int64) error {
	result := r.byKey(ctx, key).
		Where("quantity - allocated >= ?", qty).
		Updates(map[string]interface{}{
			"allocated": gorm.Expr("allocated + ?", qty),
		})
	return r.guarded(ctx, key, result)
}

// Release moves qty from allocated back to available while allocated covers it
func (r *GormLocationInventoryRepository) Release(ctx context.Context, key inventory.LocationKey, qty int64) error {
	result := r.byKey(ctx, key).
		Where("allocated >= ?", qty).
		Updates(map[string]interface{}{
			"allocated": gorm.Expr("allocated - ?", qty),
		})
	return r.guarded(ctx, key, result)
}

// SetReorderPoint sets the reorder point
func (r *GormLocationInventoryRepository) SetReorderPoint(ctx context.Context, key inventory.LocationKey, reorderPoint int64) error {
	result := r.byKey(ctx, key).Updates(map[string]interface{}{
		"reorder_point": reorderPoint,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return locationInventoryNotFound(key)
	}
	return nil
}

// FindByItem lists an item's stock across locations
func (r *GormLocationInventoryRepository) FindByItem(ctx context.Context, itemID uuid.UUID) ([]inventory.LocationInventory, error) {
	return r.list(r.db.WithContext(ctx).Where("item_id = ?", itemID))
}

// FindByLocation lists all item stock held at a location
func (r *GormLocationInventoryRepository) FindByLocation(ctx context.Context, locationID uuid.UUID) ([]inventory.LocationInventory, error) {
	return r.list(r.db.WithContext(ctx).Where("location_id = ?", locationID))
}

// FindLowStock lists rows at or below threshold, or at or below a positive reorder point when threshold is nil
func (r *GormLocationInventoryRepository) FindLowStock(ctx context.Context, threshold *int64) ([]inventory.LocationInventory, error) {
	query := r.db.WithContext(ctx)
	if threshold != nil {
		query = query.Where("quantity <= ?", *threshold)
	} else {
		query = query.Where("reorder_point > 0 AND quantity <= reorder_point")
	}
	return r.list(query)
}

func (r *GormLocationInventoryRepository) list(query *gorm.DB) ([]inventory.LocationInventory, error) {
	var rows []models.LocationInventoryModel
	if err := query.Order("item_id, location_id, bin").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.LocationInventory, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// guarded maps a zero-row guarded update to not-found or a lost guard
func (r *GormLocationInventoryRepository) guarded(ctx context.Context, key inventory.LocationKey, result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := r.Find(ctx, key); err != nil {
		return err
	}
	return shared.NewConflictError("GUARD_REJECTED", "Concurrent update rejected by stock guard").
		WithDetail("item_id", key.ItemID.String()).
		WithDetail("location_id", key.LocationID.String())
}

func locationInventoryNotFound(key inventory.LocationKey) error {
	return shared.NewNotFoundError("LOCATION_INVENTORY_NOT_FOUND", "No stock record for item at location").
		WithDetail("item_id", key.ItemID.String()).
		WithDetail("location_id", key.LocationID.String()).
		WithDetail("bin", key.Bin)
}

// Ensure GormLocationInventoryRepository implements LocationInventoryRepository
var _ inventory.LocationInventoryRepository = (*GormLocationInventoryRepository)(nil)
