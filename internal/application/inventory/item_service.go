package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// ItemService maintains the local item master. It never writes current stock.
type ItemService struct {
	items inventory.ItemRepository
	now   func() time.Time
}

// NewItemService creates a new ItemService
func NewItemService(items inventory.ItemRepository) *ItemService {
	return &ItemService{items: items, now: time.Now}
}

// CreateItem registers an item
func (s *ItemService) CreateItem(ctx context.Context, req CreateItemRequest) (*ItemResponse, error) {
	boxesPerCarton := req.BoxesPerCarton
	if boxesPerCarton == 0 {
		boxesPerCarton = 1
	}
	now := s.now().UTC()
	item, err := inventory.NewItem(req.SKU, req.Name, req.PackSize, boxesPerCarton, now)
	if err != nil {
		return nil, err
	}
	if err := item.SetThresholds(req.MinStock, req.MaxStock, now); err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}

// GetItem returns an item by ID
func (s *ItemService) GetItem(ctx context.Context, id uuid.UUID) (*ItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}

// GetItemBySKU returns an item by SKU
func (s *ItemService) GetItemBySKU(ctx context.Context, sku string) (*ItemResponse, error) {
	item, err := s.items.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}

// ListItems lists items
func (s *ItemService) ListItems(ctx context.Context, filter ItemListFilter) ([]ItemResponse, int64, error) {
	f := shared.DefaultFilter()
	f.OrderBy = "sku"
	f.OrderDir = "asc"
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		f.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		f.OrderDir = filter.OrderDir
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		f.Criteria["search"] = search
	}
	if filter.Active != nil {
		f.Criteria["active"] = *filter.Active
	}
	items, total, err := s.items.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return ToItemResponses(items), total, nil
}

// UpdateThresholds changes the min/max stock thresholds
func (s *ItemService) UpdateThresholds(ctx context.Context, id uuid.UUID, req UpdateThresholdsRequest) (*ItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := item.SetThresholds(req.MinStock, req.MaxStock, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.items.UpdateMaster(ctx, item); err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}

// DeactivateItem stops an item from accepting movements
func (s *ItemService) DeactivateItem(ctx context.Context, id uuid.UUID) (*ItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Deactivate(s.now().UTC())
	if err := s.items.UpdateMaster(ctx, item); err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}
