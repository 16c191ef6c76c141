package sales

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
)

// ItemService maintains the item master that supplies default uom and
// warehouse to document lines
type ItemService struct {
	itemRepo inventory.ItemRepository
}

// NewItemService creates a new ItemService
func NewItemService(itemRepo inventory.ItemRepository) *ItemService {
	return &ItemService{itemRepo: itemRepo}
}

// Save creates the item or replaces name, uom and default warehouse of an
// existing one
func (s *ItemService) Save(ctx context.Context, req SaveItemRequest) (*ItemResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	item, err := s.itemRepo.FindByCode(ctx, req.Code)
	switch {
	case shared.IsNotFound(err):
		item, err = inventory.NewItem(req.Code, req.Name, req.DefaultUOM, req.DefaultWarehouse)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		fresh, err := inventory.NewItem(req.Code, req.Name, req.DefaultUOM, req.DefaultWarehouse)
		if err != nil {
			return nil, err
		}
		fresh.BaseEntity = item.BaseEntity
		item = fresh
	}

	if err := s.itemRepo.Save(ctx, item); err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}

// Get returns an item by code
func (s *ItemService) Get(ctx context.Context, code string) (*ItemResponse, error) {
	item, err := s.itemRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}
