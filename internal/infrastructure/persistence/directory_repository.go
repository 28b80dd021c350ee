package persistence

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDirectory answers existence checks against the warehouse and supplier tables
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a new GormDirectory
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// LocationExists reports whether an active warehouse with id exists
func (d *GormDirectory) LocationExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.WarehouseModel{}).
		Where("id = ? AND is_active = ?", id, true).
		Count(&count).Error
	return count > 0, err
}

// SupplierExists reports whether a supplier with id exists
func (d *GormDirectory) SupplierExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.SupplierModel{}).
		Where("id = ?", id).
		Count(&count).Error
	return count > 0, err
}

// RegisterWarehouse upserts a warehouse record. Used by seeding and tests.
func (d *GormDirectory) RegisterWarehouse(ctx context.Context, id uuid.UUID, code, name string) error {
	m := &models.WarehouseModel{Code: code, Name: name, IsActive: true}
	m.ID = id
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	return d.db.WithContext(ctx).Save(m).Error
}

// RegisterSupplier upserts a supplier record. Used by seeding and tests.
func (d *GormDirectory) RegisterSupplier(ctx context.Context, id uuid.UUID, code, name string) error {
	m := &models.SupplierModel{Code: code, Name: name}
	m.ID = id
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	return d.db.WithContext(ctx).Save(m).Error
}

// Ensure GormDirectory implements Directory
var _ inventory.Directory = (*GormDirectory)(nil)
