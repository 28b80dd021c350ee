package models

// WarehouseModel is a collaborator-owned stock location.
type WarehouseModel struct {
	BaseModel
	Code     string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name     string `gorm:"type:varchar(200);not null"`
	IsActive bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WarehouseModel) TableName() string {
	return "warehouses"
}

// SupplierModel is a collaborator-owned supplier reference.
type SupplierModel struct {
	BaseModel
	Code string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}

// AllModels returns every model, in dependency order, for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&WarehouseModel{},
		&SupplierModel{},
		&ItemModel{},
		&BatchModel{},
		&LocationInventoryModel{},
		&StockMovementModel{},
	}
}
