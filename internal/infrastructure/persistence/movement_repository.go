package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// DefaultMovementLimit caps movement history queries that pass no limit
const DefaultMovementLimit = 500

// GormMovementRepository implements MovementRepository using GORM.
// The journal is append-only: there is no update or delete.
type GormMovementRepository struct {
	db       *gorm.DB
	maxLimit int
}

// NewGormMovementRepository creates a new GormMovementRepository.
// maxLimit bounds every history query; non-positive means DefaultMovementLimit.
func NewGormMovementRepository(db *gorm.DB, maxLimit int) *GormMovementRepository {
	if maxLimit <= 0 {
		maxLimit = DefaultMovementLimit
	}
	return &GormMovementRepository{db: db, maxLimit: maxLimit}
}

// CreateAll appends movements in one statement
func (r *GormMovementRepository) CreateAll(ctx context.Context, movements []*inventory.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	rows := make([]*models.StockMovementModel, len(movements))
	for i, m := range movements {
		rows[i] = models.StockMovementModelFromDomain(m)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// FindByReference returns every movement recorded under referenceID, oldest first
func (r *GormMovementRepository) FindByReference(ctx context.Context, referenceID string) ([]inventory.StockMovement, error) {
	var rows []models.StockMovementModel
	if err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainMovements(rows), nil
}

// FindAll returns movements matching the filter, newest first
func (r *GormMovementRepository) FindAll(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	query := r.db.WithContext(ctx).Model(&models.StockMovementModel{})
	if filter.ItemID != nil {
		query = query.Where("item_id = ?", *filter.ItemID)
	}
	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query = query.Where("movement_type IN ?", types)
	}
	if filter.ReferenceID != "" {
		query = query.Where("reference_id = ?", filter.ReferenceID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.UTC())
	}

	limit := filter.Limit
	if limit <= 0 || limit > r.maxLimit {
		limit = r.maxLimit
	}

	var rows []models.StockMovementModel
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainMovements(rows), nil
}

func toDomainMovements(rows []models.StockMovementModel) []inventory.StockMovement {
	out := make([]inventory.StockMovement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormMovementRepository implements MovementRepository
var _ inventory.MovementRepository = (*GormMovementRepository)(nil)
