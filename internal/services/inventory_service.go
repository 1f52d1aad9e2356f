package services

import (
	"context"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// InventoryService is the ledger over products.stock. Writes go through the
// store's conditional AdjustStock; CheckStock is an unlocked read that only
// serves as a fast pre-check.
type InventoryService struct {
	store repository.Store
}

func NewInventoryService(store repository.Store) *InventoryService {
	return &InventoryService{store: store}
}

func (s *InventoryService) CheckStock(ctx context.Context, productID uint64, qty int) (bool, error) {
	p, err := s.store.Products().FindByID(ctx, productID)
	if err != nil {
		return false, fmt.Errorf("check stock for product %d: %w", productID, err)
	}
	if p == nil || !p.IsActive {
		return false, nil
	}
	return p.Stock >= qty, nil
}

// AdjustStock applies delta and reports false when the product is unknown or
// the stock would drop below zero. Nothing is written in that case.
func (s *InventoryService) AdjustStock(ctx context.Context, productID uint64, delta int) (bool, error) {
	ok, err := s.store.Products().AdjustStock(ctx, productID, delta)
	if err != nil {
		return false, fmt.Errorf("adjust stock for product %d by %d: %w", productID, delta, err)
	}
	return ok, nil
}

func (s *InventoryService) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	return s.store.Products().LowStock(ctx, threshold)
}
