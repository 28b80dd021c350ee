package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormItemRepository implements ItemRepository and ItemStockWriter using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByID finds an item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Item, error) {
	var model models.ItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, itemLookupError(err, "id", id.String())
	}
	return model.ToDomain(), nil
}

// FindBySKU finds an item by SKU
func (r *GormItemRepository) FindBySKU(ctx context.Context, sku string) (*inventory.Item, error) {
	var model models.ItemModel
	if err := r.db.WithContext(ctx).
		Where("sku = ?", strings.TrimSpace(sku)).
		First(&model).Error; err != nil {
		return nil, itemLookupError(err, "sku", sku)
	}
	return model.ToDomain(), nil
}

// FindAll lists items. Supported filters: "active" (bool), "search" (sku or name prefix).
func (r *GormItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]inventory.Item, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ItemModel{})
	for key, value := range filter.Criteria {
		switch key {
		case "active":
			if active, ok := value.(bool); ok {
				query = query.Where("is_active = ?", active)
			}
		case "search":
			if s, ok := value.(string); ok && s != "" {
				like := strings.ToLower(s) + "%"
				query = query.Where("LOWER(sku) LIKE ? OR LOWER(name) LIKE ?", like, like)
			}
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ItemModel
	if err := paginate(query, filter, itemSortColumns).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	items := make([]inventory.Item, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, total, nil
}

// Create inserts a new item
func (r *GormItemRepository) Create(ctx context.Context, item *inventory.Item) error {
	if err := r.db.WithContext(ctx).Create(models.ItemModelFromDomain(item)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDuplicateError("ITEM_SKU_EXISTS", "An item with this SKU already exists").
				WithDetail("sku", item.SKU)
		}
		return err
	}
	return nil
}

// UpdateMaster updates master fields. Current stock is never written here.
func (r *GormItemRepository) UpdateMaster(ctx context.Context, item *inventory.Item) error {
	result := r.db.WithContext(ctx).
		Model(&models.ItemModel{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"name":             item.Name,
			"pack_size":        item.PackSize,
			"boxes_per_carton": item.BoxesPerCarton,
			"min_stock":        item.MinStock,
			"max_stock":        item.MaxStock,
			"is_active":        item.IsActive,
			"updated_at":       item.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return itemNotFound("id", item.ID.String())
	}
	return nil
}

// AdjustCurrentStock adds delta to current stock unless the result would be negative
func (r *GormItemRepository) AdjustCurrentStock(ctx context.Context, itemID uuid.UUID, delta int64) (int64, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.ItemModel{}).
		Where("id = ? AND current_stock + ? >= 0", itemID, delta).
		Update("current_stock", gorm.Expr("current_stock + ?", delta))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, itemID); err != nil {
			return 0, err
		}
		return 0, shared.NewConflictError("GUARD_REJECTED", "Item current stock changed concurrently").
			WithDetail("item_id", itemID.String())
	}

	var current int64
	if err := db.Model(&models.ItemModel{}).
		Where("id = ?", itemID).
		Pluck("current_stock", &current).Error; err != nil {
		return 0, err
	}
	return current, nil
}

func itemNotFound(field, value string) error {
	return shared.NewNotFoundError("ITEM_NOT_FOUND", "Item not found").WithDetail(field, value)
}

func itemLookupError(err error, field, value string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return itemNotFound(field, value)
	}
	return err
}

// Ensure GormItemRepository implements the item interfaces
var (
	_ inventory.ItemRepository  = (*GormItemRepository)(nil)
	_ inventory.ItemStockWriter = (*GormItemRepository)(nil)
)
