package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// ProductService covers the admin side of the catalog: field edits, stock
// moves through the inventory ledger and soft deletion.
type ProductService struct {
	store             repository.Store
	lowStockThreshold int
	log               *slog.Logger
}

func NewProductService(store repository.Store, lowStockThreshold int) *ProductService {
	return &ProductService{
		store:             store,
		lowStockThreshold: lowStockThreshold,
		log:               slog.Default().With("component", "products"),
	}
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uint64, patch domain.ProductPatch) (*domain.Product, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidProductPatch)
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidProductPatch)
	}

	if _, err := s.find(ctx, s.store, id); err != nil {
		return nil, err
	}
	if err := s.store.Products().Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	return s.find(ctx, s.store, id)
}

// AdjustStock moves stock by delta. A shrink below zero is rejected whole.
func (s *ProductService) AdjustStock(ctx context.Context, id uint64, delta int) (*domain.Product, error) {
	p, err := s.find(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return p, nil
	}

	ok, err := NewInventoryService(s.store).AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.InsufficientStockError{ProductID: id, Requested: -delta, Available: p.Stock}
	}
	s.log.InfoContext(ctx, "stock adjusted", "product_id", id, "delta", delta)
	return s.find(ctx, s.store, id)
}

// DeleteProduct deactivates the product and removes it from every cart in
// one transaction. Order lines keep their snapshots.
func (s *ProductService) DeleteProduct(ctx context.Context, id uint64) error {
	inactive := false
	return s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := s.find(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Products().Update(ctx, id, domain.ProductPatch{IsActive: &inactive}); err != nil {
			return fmt.Errorf("deactivate product %d: %w", id, err)
		}
		removed, err := NewCartService(tx).DeleteByProduct(ctx, id)
		if err != nil {
			return err
		}
		s.log.InfoContext(ctx, "product deleted", "product_id", id, "cart_lines_removed", removed)
		return nil
	})
}

// LowStock lists active products below threshold, or below the configured
// default when threshold is not positive.
func (s *ProductService) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}
	return NewInventoryService(s.store).LowStock(ctx, threshold)
}

func (s *ProductService) find(ctx context.Context, store repository.Store, id uint64) (*domain.Product, error) {
	p, err := store.Products().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}
